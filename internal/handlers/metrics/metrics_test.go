package handlers_metrics

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"cantostudio/internal/models/csevents"
	"cantostudio/internal/models/csmetrics"
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

	handler := NewMetricsHandler(
		csmetrics.NewService(db, nil, time.UTC),
		csevents.NewService(db, csevents.WithLocation(time.UTC)),
	)

	r := gin.New()
	r.POST("/api/metrics/track", handler.Track)
	r.GET("/api/admin/metrics", handler.GetMetrics)
	r.GET("/api/admin/metrics/realtime", handler.GetRealtime)
	return r, db
}

func postJSON(r http.Handler, path string, body any) *httptest.ResponseRecorder {
	data, _ := json.Marshal(body)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestTrack(t *testing.T) {
	r, db := setupTestRouter(t)

	w := postJSON(r, "/api/metrics/track", gin.H{"eventType": "SITE_VIEW", "sessionId": "abc"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true}`, w.Body.String())

	// deuxième vue du jour ignorée mais réponse identique
	w = postJSON(r, "/api/metrics/track", gin.H{"eventType": "SITE_VIEW", "sessionId": "abc"})
	assert.Equal(t, http.StatusOK, w.Code)

	var n int64
	require.NoError(t, db.Model(&csevents.EventLog{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}

func TestTrackSessionDuration(t *testing.T) {
	r, db := setupTestRouter(t)

	require.Equal(t, http.StatusOK, postJSON(r, "/api/metrics/track", gin.H{"eventType": "SESSION_DURATION", "sessionId": "a", "duration": 3.5}).Code)
	require.Equal(t, http.StatusOK, postJSON(r, "/api/metrics/track", gin.H{"eventType": "SESSION_DURATION", "sessionId": "a", "duration": "long"}).Code)
	require.Equal(t, http.StatusOK, postJSON(r, "/api/metrics/track", gin.H{"eventType": "SESSION_DURATION", "sessionId": "a"}).Code)

	var logs []csevents.EventLog
	require.NoError(t, db.Find(&logs).Error)
	require.Len(t, logs, 3)
	total := 0.0
	for _, l := range logs {
		p := l.Payload().(csevents.SessionDurationPayload)
		assert.True(t, p.Valid)
		total += p.Minutes
	}
	assert.Equal(t, 3.5, total)
}

func TestTrackMissingFields(t *testing.T) {
	r, _ := setupTestRouter(t)

	w := postJSON(r, "/api/metrics/track", gin.H{"eventType": "SITE_VIEW"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Missing required fields"}`, w.Body.String())

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/metrics/track", bytes.NewBufferString("not json"))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetMetrics(t *testing.T) {
	r, _ := setupTestRouter(t)

	for i := 0; i < 4; i++ {
		postJSON(r, "/api/metrics/track", gin.H{"eventType": "SITE_VIEW", "sessionId": string(rune('a' + i))})
	}
	postJSON(r, "/api/metrics/track", gin.H{"eventType": "COMPLETED_SCHEDULING", "sessionId": "a"})
	postJSON(r, "/api/metrics/track", gin.H{"eventType": "CLICK_AGENDAR", "sessionId": "a"})

	w := get(r, "/api/admin/metrics")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Metrics csmetrics.Snapshot `json:"metrics"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, int64(4), body.Metrics.SiteViews)
	assert.Equal(t, int64(1), body.Metrics.TotalCompleted)
	assert.Equal(t, int64(1), body.Metrics.ClicksAgendar)
	assert.Equal(t, "75.0%", body.Metrics.AbandonmentRate)
	assert.Equal(t, "0", body.Metrics.AvgSessionMinutes)
}

func TestGetMetricsRange(t *testing.T) {
	r, _ := setupTestRouter(t)
	postJSON(r, "/api/metrics/track", gin.H{"eventType": "SITE_VIEW", "sessionId": "a"})

	// période passée: rien
	w := get(r, "/api/admin/metrics?startDate=2020-01-01&endDate=2020-01-31")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"siteViews":0`)

	// début après la fin: instantané vide
	w = get(r, "/api/admin/metrics?startDate=2030-01-31&endDate=2030-01-01")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"abandonmentRate":"0%"`)

	w = get(r, "/api/admin/metrics?startDate=31-01-2020&endDate=2020-01-31")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetRealtimeWithoutRedis(t *testing.T) {
	r, _ := setupTestRouter(t)
	w := get(r, "/api/admin/metrics/realtime")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"realtime":{}}`, w.Body.String())
}
