package utils

import "time"

const (
	AppName = "storefront"

	// Pagination
	DefaultPageSize = 50
	MaxPageSize     = 500
	MinPageSize     = 1

	// Summary
	DefaultTopN              = 10
	DefaultSummaryWindowDays = 30
	DefaultSummaryMaxAge     = 60

	// Matches "DM To Place Order", "dm to order" and similar order-intent labels.
	DMOrderPattern = "DM.*Order"

	RequestTimeout = 15 * time.Second
)

const (
	ErrMsgInvalidEvent     = "Missing required fields"
	ErrMsgNoValidEvents    = "No valid events in batch"
	ErrMsgInvalidBody      = "Invalid request body"
	ErrMsgUnauthorized     = "Unauthorized"
	ErrMsgSummaryFailed    = "Failed to fetch analytics"
	ErrMsgEventsFailed     = "Failed to fetch events"
	ErrMsgPurgeFailed      = "Failed to purge events"
	ErrMsgInvalidRetention = "olderThanDays must be a positive integer"
	ErrMsgRealtimeDisabled = "Realtime analytics is not configured"
	ErrMsgRealtimeFailed   = "Failed to fetch realtime analytics"
)

// Context keys
const (
	ContextRequestID = "request_id"
)
