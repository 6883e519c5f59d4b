package cserrors

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Kind classe une erreur métier et détermine le code HTTP renvoyé
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindRateLimit
	KindNotFound
	KindPersistence
)

// Message générique pour les erreurs de stockage, le détail part dans les logs
const persistenceMessage = "Erro interno. Tente novamente mais tarde."

// Error porte le type d'erreur, un message visible par l'utilisateur et la cause
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is compare uniquement le Kind, ce qui permet errors.Is(err, cserrors.ErrNotFound)
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Err == nil
}

// Sentinelles utilisables avec errors.Is
var (
	ErrValidation  = &Error{Kind: KindValidation}
	ErrRateLimit   = &Error{Kind: KindRateLimit}
	ErrNotFound    = &Error{Kind: KindNotFound}
	ErrPersistence = &Error{Kind: KindPersistence}
)

func Validation(message string) error {
	return &Error{Kind: KindValidation, Message: message}
}

func NotFound(message string) error {
	return &Error{Kind: KindNotFound, Message: message}
}

func RateLimited() error {
	return &Error{Kind: KindRateLimit, Message: "Muitas solicitações. Tente novamente em 1 minuto."}
}

// Persistence enveloppe une erreur de la base, nil reste nil
func Persistence(err error, message string) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Kind: KindPersistence, Message: message, Err: err}
}

// KindOf retourne KindUnknown pour une erreur qui ne vient pas de ce paquet
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func Status(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindRateLimit:
		return http.StatusTooManyRequests
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Respond écrit la réponse JSON {"error": ...} correspondant à err
func Respond(c *gin.Context, err error) {
	var e *Error
	if !errors.As(err, &e) || e.Kind == KindPersistence || e.Kind == KindUnknown {
		log.Error().
			Err(err).
			Str("path", c.Request.URL.Path).
			Str("method", c.Request.Method).
			Msg("request failed")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": persistenceMessage})
		return
	}

	c.AbortWithStatusJSON(Status(e.Kind), gin.H{"error": e.Message})
}
