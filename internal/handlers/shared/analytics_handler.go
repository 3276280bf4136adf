package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"storefront/internal/models"
	"storefront/internal/services"
	"storefront/internal/utils"
	"storefront/pkg/logger"

	"github.com/gin-gonic/gin"
)

type AnalyticsHandler struct {
	analyticsService services.AnalyticsService
	summaryMaxAge    int
	retentionDays    int
	log              *logger.Logger
}

func NewAnalyticsHandler(analyticsService services.AnalyticsService, summaryMaxAge, retentionDays int, log *logger.Logger) *AnalyticsHandler {
	if log == nil {
		log = logger.NewNop()
	}
	if summaryMaxAge <= 0 {
		summaryMaxAge = utils.DefaultSummaryMaxAge
	}
	return &AnalyticsHandler{
		analyticsService: analyticsService,
		summaryMaxAge:    summaryMaxAge,
		retentionDays:    retentionDays,
		log:              log.WithComponent("analytics_handler"),
	}
}

// Track ingests a single event or an {"events": [...]} batch. Storage
// failures are logged and still answered with success so the storefront
// never surfaces analytics errors.
func (h *AnalyticsHandler) Track(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		utils.BadRequestResponse(c, utils.ErrMsgInvalidBody)
		return
	}

	// A body that is not an event object carries none of the required fields.
	request, err := models.ParseTrackRequest(body)
	if err != nil {
		utils.BadRequestResponse(c, utils.ErrMsgInvalidBody)
		return
	}

	tracked, err := h.analyticsService.TrackEvents(c.Request.Context(), request)
	switch {
	case errors.Is(err, services.ErrInvalidEvent):
		utils.BadRequestResponse(c, utils.ErrMsgInvalidEvent)
		return
	case errors.Is(err, services.ErrNoValidEvents):
		utils.BadRequestResponse(c, utils.ErrMsgNoValidEvents)
		return
	case err != nil:
		h.log.WithContext(c.Request.Context()).WithError(err).Error("Analytics tracking error")
		c.JSON(http.StatusOK, models.TrackResponse{Success: true})
		return
	}

	c.JSON(http.StatusOK, models.TrackResponse{Success: true, Tracked: &tracked})
}

// GetSummary returns the aggregate dashboard for ?startDate=&endDate=.
func (h *AnalyticsHandler) GetSummary(c *gin.Context) {
	summary, err := h.analyticsService.GetSummary(c.Request.Context(), c.Query("startDate"), c.Query("endDate"))
	if err != nil {
		h.log.WithContext(c.Request.Context()).WithError(err).Error("Analytics summary error")
		utils.InternalServerErrorResponse(c, utils.ErrMsgSummaryFailed)
		return
	}

	utils.SetPrivateCache(c, h.summaryMaxAge)
	c.JSON(http.StatusOK, summary)
}

// ListEvents pages through raw events, newest first by default.
func (h *AnalyticsHandler) ListEvents(c *gin.Context) {
	filter := &models.EventFilter{
		StartDate:  c.Query("startDate"),
		EndDate:    c.Query("endDate"),
		EventTypes: parseEventTypes(c.QueryArray("eventType")),
	}
	params := utils.GetPaginationParams(c)

	events, total, err := h.analyticsService.ListEvents(c.Request.Context(), filter, params)
	if err != nil {
		h.log.WithContext(c.Request.Context()).WithError(err).Error("Analytics event listing error")
		utils.InternalServerErrorResponse(c, utils.ErrMsgEventsFailed)
		return
	}

	if events == nil {
		events = []*models.AnalyticsEvent{}
	}
	utils.PaginatedResponse(c, events, utils.CreatePaginationMeta(params, total))
}

func (h *AnalyticsHandler) GetRealtime(c *gin.Context) {
	snapshot, err := h.analyticsService.GetRealtime(c.Request.Context())
	if errors.Is(err, services.ErrRealtimeDisabled) {
		utils.ServiceUnavailableResponse(c, utils.ErrMsgRealtimeDisabled)
		return
	}
	if err != nil {
		h.log.WithContext(c.Request.Context()).WithError(err).Error("Realtime analytics error")
		utils.InternalServerErrorResponse(c, utils.ErrMsgRealtimeFailed)
		return
	}

	c.JSON(http.StatusOK, snapshot)
}

// PurgeEvents runs the retention sweep for ?olderThanDays=N, defaulting to
// the configured retention.
func (h *AnalyticsHandler) PurgeEvents(c *gin.Context) {
	days := h.retentionDays
	if raw := c.Query("olderThanDays"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			utils.BadRequestResponse(c, utils.ErrMsgInvalidRetention)
			return
		}
		days = parsed
	}

	result, err := h.analyticsService.PurgeEvents(c.Request.Context(), days)
	if errors.Is(err, services.ErrInvalidRetention) {
		utils.BadRequestResponse(c, utils.ErrMsgInvalidRetention)
		return
	}
	if err != nil {
		h.log.WithContext(c.Request.Context()).WithError(err).Error("Analytics purge error")
		utils.InternalServerErrorResponse(c, utils.ErrMsgPurgeFailed)
		return
	}

	c.JSON(http.StatusOK, result)
}

// parseEventTypes accepts repeated and comma-separated eventType values.
func parseEventTypes(values []string) []models.EventType {
	var types []models.EventType
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				types = append(types, models.EventType(part))
			}
		}
	}
	return types
}
