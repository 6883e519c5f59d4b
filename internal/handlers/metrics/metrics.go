package handlers_metrics

import (
	"net/http"

	"cantostudio/internal/models/cserrors"
	"cantostudio/internal/models/csevents"
	"cantostudio/internal/models/csmetrics"

	"github.com/gin-gonic/gin"
)

type MetricsHandler struct {
	metrics *csmetrics.Service
	events  *csevents.Service
}

func NewMetricsHandler(metrics *csmetrics.Service, events *csevents.Service) *MetricsHandler {
	return &MetricsHandler{
		metrics: metrics,
		events:  events,
	}
}

// TrackRequest duration est laissé libre, une valeur non numérique compte pour 0
type TrackRequest struct {
	EventType string `json:"eventType"`
	SessionID string `json:"sessionId"`
	Duration  any    `json:"duration"`
}

// Track enregistre un événement émis par le site
func (mh *MetricsHandler) Track(c *gin.Context) {
	var req TrackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields"})
		return
	}

	ev := csevents.Event{
		Type:      csevents.EventType(req.EventType),
		SessionID: req.SessionID,
	}
	if ev.Type == csevents.SessionDuration {
		ev.Payload = csevents.SessionDurationPayload{Minutes: csevents.DurationMinutes(req.Duration), Valid: true}
	}

	if _, err := mh.events.Record(c.Request.Context(), ev); err != nil {
		cserrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// GetMetrics indicateurs sur ?startDate=AAAA-MM-JJ&endDate=AAAA-MM-JJ, tout l'historique sans dates
func (mh *MetricsHandler) GetMetrics(c *gin.Context) {
	r, err := csmetrics.ParseRange(c.Query("startDate"), c.Query("endDate"), mh.metrics.Location())
	if err != nil {
		cserrors.Respond(c, err)
		return
	}

	snap, err := mh.metrics.Compute(c.Request.Context(), r)
	if err != nil {
		cserrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"metrics": snap})
}

// GetRealtime compteurs du jour, vide sans redis
func (mh *MetricsHandler) GetRealtime(c *gin.Context) {
	counts, err := mh.metrics.Realtime(c.Request.Context())
	if err != nil {
		cserrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"realtime": counts})
}
