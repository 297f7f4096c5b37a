package handler

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/Dminor7/ga4bigquery/docs"
	"github.com/Dminor7/ga4bigquery/internal/dto"
	"github.com/Dminor7/ga4bigquery/internal/errs"
	"github.com/Dminor7/ga4bigquery/internal/service"
)

const healthCheckTimeout = 2 * time.Second

// HealthCheck reports whether a dependency is reachable
type HealthCheck func(ctx context.Context) error

type Handler struct {
	eventService   service.EventServicer
	sessionService service.SessionServicer
	checks         map[string]HealthCheck
	router         *gin.Engine
	log            *zap.Logger
}

func NewHandler(eventService service.EventServicer, sessionService service.SessionServicer, log *zap.Logger) *Handler {
	h := &Handler{
		eventService:   eventService,
		sessionService: sessionService,
		checks:         make(map[string]HealthCheck),
		router:         gin.Default(),
		log:            log,
	}

	h.registerRoutes()

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

// AddHealthCheck registers a dependency checked by GET /health
func (h *Handler) AddHealthCheck(name string, check HealthCheck) {
	h.checks[name] = check
}

func (h *Handler) registerRoutes() {
	h.router.GET("/health", h.healthCheck)
	h.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	h.router.POST("/events", h.publishEvent)
	h.router.POST("/events/bulk", h.publishEventsBulk)
	h.router.POST("/classify", h.classify)
	h.router.POST("/sessions/run", h.runSessions)
	h.router.GET("/channels", h.getChannels)
	h.router.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
}

// healthCheck handles GET /health. It answers 503 when a registered dependency fails.
// @Summary Health check
// @Description Probe every registered dependency
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /health [get]
func (h *Handler) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := http.StatusOK
	body := gin.H{"status": "ok"}
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			h.log.Warn("Health check failed", zap.String("dependency", name), zap.Error(err))
			status = http.StatusServiceUnavailable
			body["status"] = "unavailable"
			body[name] = err.Error()
			continue
		}
		body[name] = "ok"
	}

	c.JSON(status, body)
}

// publishEvent handles POST /events
// @Summary Publish a single event
// @Description Assign a fingerprint event id to a raw GA4 event and publish it to the queue
// @Tags events
// @Accept json
// @Produce json
// @Param event body dto.PublishEventRequest true "Raw GA4 event"
// @Success 202 {object} dto.PublishEventResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /events [post]
func (h *Handler) publishEvent(c *gin.Context) {
	var req dto.PublishEventRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warn("Invalid event request",
			zap.Error(err),
			zap.String("event_name", req.EventName))
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
		})
		return
	}

	resp, err := h.eventService.ProcessEvent(c.Request.Context(), &req)
	if err != nil {
		h.log.Error("Failed to process event",
			zap.Error(err),
			zap.String("event_name", req.EventName),
			zap.String("user_pseudo_id", req.UserPseudoID))
		h.writeError(c, err)
		return
	}

	h.log.Debug("Event accepted",
		zap.String("event_id", resp.EventID),
		zap.String("event_name", req.EventName))

	c.JSON(http.StatusAccepted, resp)
}

// publishEventsBulk handles POST /events/bulk
// @Summary Publish multiple events
// @Description Publish up to 1000 raw GA4 events. Invalid events are rejected individually.
// @Tags events
// @Accept json
// @Produce json
// @Param events body dto.PublishEventsBulkRequest true "Raw GA4 events"
// @Success 202 {object} dto.PublishBulkEventsResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /events/bulk [post]
func (h *Handler) publishEventsBulk(c *gin.Context) {
	var bulkRequest dto.PublishEventsBulkRequest

	if err := c.ShouldBindJSON(&bulkRequest); err != nil {
		h.log.Warn("Invalid bulk event request", zap.Error(err))
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
		})
		return
	}

	eventIDs, rejected, err := h.eventService.ProcessBulkEvents(c.Request.Context(), bulkRequest.Events)
	if err != nil {
		h.log.Error("Failed to process bulk events",
			zap.Error(err),
			zap.Int("event_count", len(bulkRequest.Events)))
		h.writeError(c, err)
		return
	}

	h.log.Info("Bulk events processed",
		zap.Int("accepted", len(eventIDs)),
		zap.Int("rejected", len(rejected)),
		zap.Int("total", len(bulkRequest.Events)))

	c.JSON(http.StatusAccepted, dto.PublishBulkEventsResponse{
		Accepted: len(eventIDs),
		Rejected: len(rejected),
		EventIDs: eventIDs,
		Errors:   rejected,
	})
}

// classify handles POST /classify
// @Summary Classify a source and medium
// @Description Resolve the source category and default channel group
// @Tags sessions
// @Accept json
// @Produce json
// @Param request body dto.ClassifyRequest true "Source and medium"
// @Success 200 {object} dto.ClassifyResponse
// @Failure 400 {object} dto.ErrorResponse
// @Router /classify [post]
func (h *Handler) classify(c *gin.Context) {
	var req dto.ClassifyRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, h.sessionService.Classify(&req))
}

// runSessions handles POST /sessions/run. An empty body runs with the service defaults.
// @Summary Build sessions
// @Description Build attributed sessions from the configured source and write them to the sink
// @Tags sessions
// @Accept json
// @Produce json
// @Param request body dto.RunSessionsRequest false "Run options"
// @Success 200 {object} dto.RunSessionsResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Failure 422 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /sessions/run [post]
func (h *Handler) runSessions(c *gin.Context) {
	var req dto.RunSessionsRequest

	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{
				Error:   "validation_error",
				Message: err.Error(),
			})
			return
		}
	}

	resp, err := h.sessionService.RunSessions(c.Request.Context(), &req)
	if err != nil {
		h.log.Error("Session run failed", zap.Error(err))
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// getChannels handles GET /channels
// @Summary Channel report
// @Description Sessions and engaged sessions per channel between two dates
// @Tags sessions
// @Produce json
// @Param from query string true "Start date (YYYY-MM-DD)"
// @Param to query string true "End date (YYYY-MM-DD)"
// @Param group_by query string false "Breakdown: channel, day, source_medium or source_category"
// @Success 200 {object} dto.ChannelReportResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /channels [get]
func (h *Handler) getChannels(c *gin.Context) {
	var req dto.GetChannelsRequest

	if err := c.ShouldBindQuery(&req); err != nil {
		h.log.Warn("Invalid channel report request", zap.Error(err))
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
		})
		return
	}

	response, err := h.sessionService.GetChannelReport(c.Request.Context(), &req)
	if err != nil {
		h.log.Error("Failed to get channel report",
			zap.Error(err),
			zap.String("from", req.From),
			zap.String("to", req.To))
		h.writeError(c, err)
		return
	}

	h.log.Info("Channel report retrieved",
		zap.String("from", req.From),
		zap.String("to", req.To),
		zap.Uint64("total_sessions", response.TotalSessions))

	c.JSON(http.StatusOK, response)
}

// writeError maps service errors onto status codes
func (h *Handler) writeError(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, "internal_error"
	switch {
	case errors.Is(err, service.ErrInvalidEvent), errors.Is(err, service.ErrInvalidReport):
		status, code = http.StatusBadRequest, "validation_error"
	case errors.Is(err, service.ErrRunInProgress):
		status, code = http.StatusConflict, "run_in_progress"
	case errs.CategoryOf(err) != "":
		status, code = http.StatusUnprocessableEntity, string(errs.CategoryOf(err))
	}
	c.JSON(status, dto.ErrorResponse{
		Error:   code,
		Message: err.Error(),
	})
}
