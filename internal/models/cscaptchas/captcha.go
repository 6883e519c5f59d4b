package cscaptchas

import (
	"net/http"
	"strings"

	"cantostudio/internal/models/cserrors"
	"cantostudio/internal/models/csredis"

	"github.com/gin-gonic/gin"
	"github.com/mojocn/base64Captcha"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Captchas protège le formulaire LGPD public contre les envois automatisés
type Captchas struct {
	store      base64Captcha.Store
	driver     base64Captcha.Driver
	production bool
}

// New store redis si un client est fourni, sinon store mémoire
func New(client *redis.Client, production bool) *Captchas {
	var store base64Captcha.Store
	if client != nil {
		store = csredis.NewCaptchaStore(client)
	} else {
		store = base64Captcha.NewMemoryStore(base64Captcha.GCLimitNumber, base64Captcha.Expiration)
	}

	driver := base64Captcha.NewDriverMath(
		80,  // hauteur
		240, // largeur
		6,   // nombre d'opérations à afficher
		base64Captcha.OptionShowHollowLine,
		nil, // couleur de fond
		nil, // police
		nil, // couleurs
	)

	return &Captchas{
		store:      store,
		driver:     driver,
		production: production,
	}
}

func (cap *Captchas) Generate() (gin.H, error) {
	captcha := base64Captcha.NewCaptcha(cap.driver, cap.store)

	id, b64s, answer, err := captcha.Generate()
	if err != nil {
		return nil, err
	}

	data := gin.H{
		"captchaId": id,
		"image":     b64s,
	}

	if !cap.production {
		log.Debug().Str("captcha_id", id).Str("answer", answer).Msg("CAPTCHA généré")
		data["answer"] = answer
	}

	return data, nil
}

// Verify la réponse est consommée, un captcha ne sert qu'une fois
func (cap *Captchas) Verify(captchaID string, captchaAnswer string) error {
	captchaID = strings.TrimSpace(captchaID)
	captchaAnswer = strings.TrimSpace(captchaAnswer)

	if captchaID == "" || captchaAnswer == "" {
		return cserrors.Validation("CAPTCHA obrigatório.")
	}

	if !cap.store.Verify(captchaID, captchaAnswer, true) {
		return cserrors.Validation("CAPTCHA incorreto.")
	}
	return nil
}

func (cap *Captchas) Handler(c *gin.Context) {
	data, err := cap.Generate()
	if err != nil {
		log.Error().Err(err).Msg("erreur génération CAPTCHA")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Erro ao gerar CAPTCHA.",
		})
		return
	}
	c.JSON(http.StatusOK, data)
}
