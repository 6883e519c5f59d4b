package handlers_admin

import (
	"context"
	"net/http"
	"time"

	"cantostudio/internal/csmiddleware"

	"github.com/andskur/argon2-hashing"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Pinger vérifie les dépendances pour /healthz
type Pinger interface {
	Ping(ctx context.Context) error
}

type AdminHandler struct {
	hash    string
	pinger  Pinger
	version string
}

func NewAdminHandler(hash string, pinger Pinger, version string) *AdminHandler {
	return &AdminHandler{
		hash:    hash,
		pinger:  pinger,
		version: version,
	}
}

type LoginRequest struct {
	Password string `json:"password" binding:"required"`
}

func (ah *AdminHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Senha obrigatória."})
		return
	}

	// Vérification du mot de passe
	if err := argon2.CompareHashAndPassword([]byte(ah.hash), []byte(req.Password)); err != nil {
		log.Warn().Str("ip", csmiddleware.ClientIP(c)).Msg("Tentative de connexion échouée")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Senha incorreta."})
		return
	}
	log.Info().Str("ip", csmiddleware.ClientIP(c)).Msg("Connexion réussie")

	if err := csmiddleware.Login(c); err != nil {
		log.Error().Err(err).Msg("Erreur session")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erro de sessão."})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (ah *AdminHandler) Logout(c *gin.Context) {
	if err := csmiddleware.Logout(c); err != nil {
		log.Error().Err(err).Msg("Erreur session")
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (ah *AdminHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := ah.pinger.Ping(ctx); err != nil {
		log.Error().Err(err).Msg("healthcheck failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": ah.version})
}
