package handlers_lgpd

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"cantostudio/internal/models/cscaptchas"
	"cantostudio/internal/models/csevents"
	"cantostudio/internal/models/cslgpd"
	"cantostudio/internal/models/csschedules"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestRouter(t *testing.T, captcha *cscaptchas.Captchas) (*gin.Engine, *gorm.DB) {
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)
	models := append(csschedules.Models(), &csevents.EventLog{}, &cslgpd.DataDeletionRequest{})
	require.NoError(t, db.AutoMigrate(models...))

	handler := NewLgpdHandler(cslgpd.NewService(db, nil), captcha)

	r := gin.New()
	r.POST("/api/data-request", handler.Submit)
	r.GET("/api/admin/data-requests", handler.List)
	r.PATCH("/api/admin/data-requests", handler.Process)
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

type listResponse struct {
	Requests     []cslgpd.DataDeletionRequest `json:"requests"`
	PendingCount int                          `json:"pendingCount"`
}

func TestSubmitListProcess(t *testing.T) {
	r, db := setupTestRouter(t, nil)

	user := csschedules.User{Email: "ana@example.com", Name: "Ana"}
	require.NoError(t, db.Create(&user).Error)

	w := send(r, http.MethodPost, "/api/data-request", gin.H{"email": " ANA@example.com", "reason": "privacidade"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true}`, w.Body.String())

	w = send(r, http.MethodGet, "/api/admin/data-requests", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list listResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Requests, 1)
	assert.Equal(t, 1, list.PendingCount)
	assert.Equal(t, "ana@example.com", list.Requests[0].Email)

	w = send(r, http.MethodPatch, "/api/admin/data-requests", gin.H{"requestId": list.Requests[0].ID})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"deletedEmail":"ana@example.com"}`, w.Body.String())

	var n int64
	require.NoError(t, db.Model(&csschedules.User{}).Count(&n).Error)
	assert.Equal(t, int64(0), n)

	w = send(r, http.MethodPatch, "/api/admin/data-requests", gin.H{"requestId": list.Requests[0].ID})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = send(r, http.MethodGet, "/api/admin/data-requests", nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, 0, list.PendingCount)
	assert.Equal(t, cslgpd.RequestCompleted, list.Requests[0].Status)
}

func TestSubmitErrors(t *testing.T) {
	r, _ := setupTestRouter(t, nil)

	w := send(r, http.MethodPost, "/api/data-request", gin.H{"name": "Ana"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"E-mail é obrigatório."}`, w.Body.String())

	w = send(r, http.MethodPost, "/api/data-request", gin.H{"email": 42})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProcessErrors(t *testing.T) {
	r, _ := setupTestRouter(t, nil)

	w := send(r, http.MethodPatch, "/api/admin/data-requests", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"requestId é obrigatório."}`, w.Body.String())

	w = send(r, http.MethodPatch, "/api/admin/data-requests", gin.H{"requestId": "unknown"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"Solicitação não encontrada."}`, w.Body.String())
}

func TestSubmitWithCaptcha(t *testing.T) {
	captcha := cscaptchas.New(nil, false)
	r, _ := setupTestRouter(t, captcha)

	w := send(r, http.MethodPost, "/api/data-request", gin.H{"email": "ana@example.com"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	data, err := captcha.Generate()
	require.NoError(t, err)

	w = send(r, http.MethodPost, "/api/data-request", gin.H{
		"email":         "ana@example.com",
		"captchaId":     data["captchaId"],
		"captchaAnswer": data["answer"],
	})
	assert.Equal(t, http.StatusOK, w.Code)
}
