package validators

import (
	"storefront/internal/models"
)

// ValidateEvent checks the top-level fields every stored event must carry:
// id, eventType, timestamp and sessionId. Metadata is never inspected.
func ValidateEvent(event *models.AnalyticsEvent) ValidationErrors {
	if event == nil {
		return ValidationErrors{{Field: "event", Tag: "required", Message: "event is required"}}
	}
	return ValidateStruct(event)
}

func IsValidEvent(event *models.AnalyticsEvent) bool {
	return len(ValidateEvent(event)) == 0
}

// FilterValidEvents keeps the events that pass ValidateEvent, preserving order.
func FilterValidEvents(events []models.AnalyticsEvent) []*models.AnalyticsEvent {
	valid := make([]*models.AnalyticsEvent, 0, len(events))
	for i := range events {
		if IsValidEvent(&events[i]) {
			valid = append(valid, &events[i])
		}
	}
	return valid
}
