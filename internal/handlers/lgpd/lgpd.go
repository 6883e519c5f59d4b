package handlers_lgpd

import (
	"net/http"

	"cantostudio/internal/models/cscaptchas"
	"cantostudio/internal/models/cserrors"
	"cantostudio/internal/models/cslgpd"

	"github.com/gin-gonic/gin"
)

type LgpdHandler struct {
	service *cslgpd.Service
	captcha *cscaptchas.Captchas
}

// NewLgpdHandler captcha peut être nil, le formulaire n'est alors pas protégé
func NewLgpdHandler(service *cslgpd.Service, captcha *cscaptchas.Captchas) *LgpdHandler {
	return &LgpdHandler{
		service: service,
		captcha: captcha,
	}
}

type submitRequest struct {
	Email         string `json:"email"`
	Name          string `json:"name"`
	Reason        string `json:"reason"`
	CaptchaID     string `json:"captchaId"`
	CaptchaAnswer string `json:"captchaAnswer"`
}

type processRequest struct {
	RequestID string `json:"requestId"`
}

// Submit demande d'effacement publique
func (lh *LgpdHandler) Submit(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "E-mail é obrigatório."})
		return
	}

	if lh.captcha != nil {
		if err := lh.captcha.Verify(req.CaptchaID, req.CaptchaAnswer); err != nil {
			cserrors.Respond(c, err)
			return
		}
	}

	_, err := lh.service.Submit(c.Request.Context(), cslgpd.SubmitRequest{
		Email:  req.Email,
		Name:   req.Name,
		Reason: req.Reason,
	})
	if err != nil {
		cserrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (lh *LgpdHandler) List(c *gin.Context) {
	requests, pending, err := lh.service.List(c.Request.Context())
	if err != nil {
		cserrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": requests, "pendingCount": pending})
}

// Process efface les données et clôt la demande
func (lh *LgpdHandler) Process(c *gin.Context) {
	var req processRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "requestId é obrigatório."})
		return
	}

	erasure, err := lh.service.Process(c.Request.Context(), req.RequestID)
	if err != nil {
		cserrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "deletedEmail": erasure.Email})
}
