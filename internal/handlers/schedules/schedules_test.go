package handlers_schedules

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"cantostudio/internal/models/csevents"
	"cantostudio/internal/models/csschedules"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(append(csschedules.Models(), &csevents.EventLog{})...))

	events := csevents.NewService(db, csevents.WithLocation(time.UTC))
	handler := NewScheduleHandler(csschedules.NewService(db, events, nil, time.UTC), events)

	r := gin.New()
	r.POST("/api/schedule", handler.Post)
	r.GET("/api/student", handler.Student)
	r.GET("/api/admin/schedules", handler.List)
	r.PATCH("/api/admin/schedules", handler.UpdateStatus)
	return r, db
}

func send(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	data, _ := json.Marshal(body)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func bookingBody(email, date string) gin.H {
	return gin.H{
		"action": ActionCreateSchedule,
		"payload": gin.H{
			"email":       email,
			"name":        "Ana",
			"phone":       "11999990000",
			"date":        date,
			"isBeginner":  true,
			"goal":        "Cantar melhor",
			"improvement": "Agudos",
			"sessionId":   "sess-1",
		},
	}
}

func TestCreateSchedule(t *testing.T) {
	r, db := setupTestRouter(t)

	w := send(r, http.MethodPost, "/api/schedule", bookingBody("ana@example.com", "2026-06-10T14:00:00.000Z"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body struct {
		Success    bool   `json:"success"`
		ScheduleID string `json:"scheduleId"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.NotEmpty(t, body.ScheduleID)

	var schedule csschedules.Schedule
	require.NoError(t, db.First(&schedule, "id = ?", body.ScheduleID).Error)
	assert.Equal(t, csschedules.StatusPending, schedule.Status)
}

func TestCreateScheduleValidation(t *testing.T) {
	r, _ := setupTestRouter(t)

	w := send(r, http.MethodPost, "/api/schedule", bookingBody("", "2026-06-10"))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = send(r, http.MethodPost, "/api/schedule", gin.H{"action": ActionCreateSchedule})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = send(r, http.MethodPost, "/api/schedule", gin.H{"action": ActionCreateSchedule, "payload": "oops"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTrackEventAction(t *testing.T) {
	r, db := setupTestRouter(t)

	w := send(r, http.MethodPost, "/api/schedule", gin.H{
		"action":  ActionTrackEvent,
		"payload": gin.H{"eventType": "ABANDONED_SCHEDULING", "sessionId": "s1", "metadata": gin.H{"step": 2}},
	})
	require.Equal(t, http.StatusOK, w.Code)

	var ev csevents.EventLog
	require.NoError(t, db.First(&ev).Error)
	assert.Equal(t, csevents.AbandonedScheduling, ev.EventType)
	assert.Equal(t, float64(2), ev.Metadata["step"])

	w = send(r, http.MethodPost, "/api/schedule", gin.H{"action": ActionTrackEvent, "payload": gin.H{"eventType": "STARTED_SCHEDULING"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestInvalidAction(t *testing.T) {
	r, _ := setupTestRouter(t)

	w := send(r, http.MethodPost, "/api/schedule", gin.H{"action": "DELETE_ALL"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Invalid action"}`, w.Body.String())
}

func TestAdminListAndUpdate(t *testing.T) {
	r, _ := setupTestRouter(t)

	require.Equal(t, http.StatusOK, send(r, http.MethodPost, "/api/schedule", bookingBody("ana@example.com", "2026-07-01")).Code)
	require.Equal(t, http.StatusOK, send(r, http.MethodPost, "/api/schedule", bookingBody("bia@example.com", "2026-06-01")).Code)

	w := send(r, http.MethodGet, "/api/admin/schedules", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Schedules []csschedules.Schedule `json:"schedules"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Schedules, 2)
	require.NotNil(t, list.Schedules[0].User)
	assert.Equal(t, "bia@example.com", list.Schedules[0].User.Email)

	id := list.Schedules[0].ID
	w = send(r, http.MethodPatch, "/api/admin/schedules", gin.H{"id": id, "status": "CONFIRMED"})
	require.Equal(t, http.StatusOK, w.Code)
	var updated struct {
		Success  bool                 `json:"success"`
		Schedule csschedules.Schedule `json:"schedule"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	assert.Equal(t, csschedules.StatusConfirmed, updated.Schedule.Status)

	assert.Equal(t, http.StatusBadRequest, send(r, http.MethodPatch, "/api/admin/schedules", gin.H{"id": id}).Code)
	assert.Equal(t, http.StatusBadRequest, send(r, http.MethodPatch, "/api/admin/schedules", gin.H{"id": id, "status": "REJECTED"}).Code)
	assert.Equal(t, http.StatusNotFound, send(r, http.MethodPatch, "/api/admin/schedules", gin.H{"id": "nope", "status": "CONFIRMED"}).Code)
}

func TestStudent(t *testing.T) {
	r, _ := setupTestRouter(t)
	require.Equal(t, http.StatusOK, send(r, http.MethodPost, "/api/schedule", bookingBody("ana@example.com", "2026-07-01")).Code)

	w := send(r, http.MethodGet, "/api/student?email=ana@example.com", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Schedules []csschedules.Schedule `json:"schedules"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Schedules, 1)
	require.NotNil(t, body.Schedules[0].Details)
	assert.Equal(t, "Agudos", body.Schedules[0].Details.Improvement)

	w = send(r, http.MethodGet, "/api/student?email=unknown@example.com", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"schedules":[]}`, w.Body.String())

	w = send(r, http.MethodGet, "/api/student", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"E-mail é obrigatório"}`, w.Body.String())
}
