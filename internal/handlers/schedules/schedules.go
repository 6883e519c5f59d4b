package handlers_schedules

import (
	"encoding/json"
	"net/http"

	"cantostudio/internal/models/cserrors"
	"cantostudio/internal/models/csevents"
	"cantostudio/internal/models/csschedules"

	"github.com/gin-gonic/gin"
)

const (
	ActionTrackEvent     = "TRACK_EVENT"
	ActionCreateSchedule = "CREATE_SCHEDULE"
)

type ScheduleHandler struct {
	schedules *csschedules.Service
	events    *csevents.Service
}

func NewScheduleHandler(schedules *csschedules.Service, events *csevents.Service) *ScheduleHandler {
	return &ScheduleHandler{
		schedules: schedules,
		events:    events,
	}
}

type actionRequest struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload"`
}

type trackPayload struct {
	EventType string         `json:"eventType"`
	SessionID string         `json:"sessionId"`
	Metadata  map[string]any `json:"metadata"`
}

type statusRequest struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// Post formulaire de réservation: suivi du tunnel ou création de la réservation
func (sh *ScheduleHandler) Post(c *gin.Context) {
	var req actionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid action"})
		return
	}

	switch req.Action {
	case ActionTrackEvent:
		sh.trackEvent(c, req.Payload)
	case ActionCreateSchedule:
		sh.createSchedule(c, req.Payload)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid action"})
	}
}

func (sh *ScheduleHandler) trackEvent(c *gin.Context, raw json.RawMessage) {
	var payload trackPayload
	if err := decodePayload(raw, &payload); err != nil {
		cserrors.Respond(c, err)
		return
	}

	eventType := csevents.EventType(payload.EventType)
	_, err := sh.events.Record(c.Request.Context(), csevents.Event{
		Type:      eventType,
		SessionID: payload.SessionID,
		Payload:   csevents.PayloadFromMetadata(eventType, payload.Metadata),
	})
	if err != nil {
		cserrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (sh *ScheduleHandler) createSchedule(c *gin.Context, raw json.RawMessage) {
	var booking csschedules.BookingRequest
	if err := decodePayload(raw, &booking); err != nil {
		cserrors.Respond(c, err)
		return
	}

	schedule, err := sh.schedules.CreateBooking(c.Request.Context(), booking)
	if err != nil {
		cserrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "scheduleId": schedule.ID})
}

func decodePayload(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return cserrors.Validation("Missing required fields")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return cserrors.Validation("Dados inválidos.")
	}
	return nil
}

// List liste admin, par date de cours croissante
func (sh *ScheduleHandler) List(c *gin.Context) {
	schedules, err := sh.schedules.ListAll(c.Request.Context())
	if err != nil {
		cserrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"schedules": schedules})
}

func (sh *ScheduleHandler) UpdateStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing id or status"})
		return
	}

	schedule, err := sh.schedules.UpdateStatus(c.Request.Context(), req.ID, csschedules.Status(req.Status))
	if err != nil {
		cserrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "schedule": schedule})
}

// Student page élève: réservations associées à ?email=
func (sh *ScheduleHandler) Student(c *gin.Context) {
	schedules, err := sh.schedules.FindByEmail(c.Request.Context(), c.Query("email"))
	if err != nil {
		cserrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"schedules": schedules})
}
