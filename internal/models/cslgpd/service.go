package cslgpd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cantostudio/internal/models/cserrors"
	"cantostudio/internal/models/csevents"
	"cantostudio/internal/models/csnotify"
	"cantostudio/internal/models/csschedules"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const (
	maxNameLength   = 120
	maxReasonLength = 2000
)

type SubmitRequest struct {
	Email  string `json:"email"`
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// Erasure bilan d'une demande traitée
type Erasure struct {
	Email            string `json:"deletedEmail"`
	UserDeleted      bool   `json:"userDeleted"`
	LeadsDeleted     int64  `json:"leadsDeleted"`
	SchedulesDeleted int64  `json:"schedulesDeleted"`
	EventsDeleted    int64  `json:"eventsDeleted"`
}

type Service struct {
	db       *gorm.DB
	notifier csnotify.Notifier
	validate *validator.Validate
}

func NewService(db *gorm.DB, notifier csnotify.Notifier) *Service {
	if notifier == nil {
		notifier = csnotify.Noop{}
	}
	return &Service{
		db:       db,
		notifier: notifier,
		validate: validator.New(),
	}
}

// Submit enregistre une demande en attente, l'email est normalisé
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*DataDeletionRequest, error) {
	email := csschedules.NormalizeEmail(req.Email)
	if email == "" {
		return nil, cserrors.Validation("E-mail é obrigatório.")
	}
	if err := s.validate.Var(email, "email,max=255"); err != nil {
		return nil, cserrors.Validation("E-mail inválido.")
	}

	request := &DataDeletionRequest{
		Email:  email,
		Name:   optional(req.Name, maxNameLength),
		Reason: optional(req.Reason, maxReasonLength),
		Status: RequestPending,
	}
	if err := s.db.WithContext(ctx).Create(request).Error; err != nil {
		return nil, cserrors.Persistence(err, "erreur enregistrement demande")
	}

	body := fmt.Sprintf("Nova solicitação de exclusão de dados para **%s**.", email)
	if request.Reason != nil {
		body += "\n\nMotivo: " + *request.Reason
	}
	csnotify.Deliver(ctx, s.notifier, csnotify.Message{
		Subject:  "Solicitação LGPD recebida",
		Markdown: body,
	})

	return request, nil
}

// List toutes les demandes, les plus récentes en premier, et le nombre en attente
func (s *Service) List(ctx context.Context) ([]DataDeletionRequest, int, error) {
	requests := []DataDeletionRequest{}
	if err := s.db.WithContext(ctx).Order("created_at desc").Find(&requests).Error; err != nil {
		return nil, 0, cserrors.Persistence(err, "erreur liste demandes")
	}

	pending := 0
	for _, r := range requests {
		if r.Status == RequestPending {
			pending++
		}
	}
	return requests, pending, nil
}

// Process efface toutes les données liées à l'email de la demande puis la marque COMPLETED,
// dans une seule transaction. Une demande déjà traitée renvoie NotFound.
func (s *Service) Process(ctx context.Context, requestID string) (*Erasure, error) {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return nil, cserrors.Validation("requestId é obrigatório.")
	}

	var result *Erasure
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var request DataDeletionRequest
		err := tx.Where("id = ?", requestID).Take(&request).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return cserrors.NotFound("Solicitação não encontrada.")
		}
		if err != nil {
			return cserrors.Persistence(err, "erreur lecture demande")
		}
		if request.Status == RequestCompleted {
			return cserrors.NotFound("Solicitação já processada.")
		}

		erasure, err := erase(tx, request.Email)
		if err != nil {
			return err
		}

		res := tx.Model(&DataDeletionRequest{}).
			Where("id = ? AND status = ?", request.ID, RequestPending).
			Update("status", RequestCompleted)
		if res.Error != nil {
			return cserrors.Persistence(res.Error, "erreur mise à jour demande")
		}
		if res.RowsAffected == 0 {
			return cserrors.NotFound("Solicitação já processada.")
		}

		result = erasure
		return nil
	})
	if err != nil {
		return nil, cserrors.Persistence(err, "erreur transaction effacement")
	}

	log.Info().
		Str("request_id", requestID).
		Bool("user", result.UserDeleted).
		Int64("leads", result.LeadsDeleted).
		Int64("schedules", result.SchedulesDeleted).
		Int64("events", result.EventsDeleted).
		Msg("LGPD erasure completed")

	return result, nil
}

// erase suppression explicite, aucune cascade n'est supposée côté base
func erase(tx *gorm.DB, email string) (*Erasure, error) {
	result := &Erasure{Email: email}

	// 1. Leads et utilisateur rattachés à l'email
	var leadIDs []string
	if err := tx.Model(&csschedules.Lead{}).Where("email = ?", email).Pluck("id", &leadIDs).Error; err != nil {
		return nil, cserrors.Persistence(err, "erreur lecture leads")
	}

	var user csschedules.User
	hasUser := true
	err := tx.Where("email = ?", email).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		hasUser = false
	} else if err != nil {
		return nil, cserrors.Persistence(err, "erreur lecture utilisateur")
	}

	// 2. Réservations de l'utilisateur ou liées à ses leads, avec leur questionnaire
	var scheduleIDs []string
	if hasUser || len(leadIDs) > 0 {
		q := tx.Model(&csschedules.Schedule{}).Where("1 = 0")
		if hasUser {
			q = q.Or("user_id = ?", user.ID)
		}
		if len(leadIDs) > 0 {
			q = q.Or("lead_id IN ?", leadIDs)
		}
		if err := q.Pluck("id", &scheduleIDs).Error; err != nil {
			return nil, cserrors.Persistence(err, "erreur lecture réservations")
		}
	}
	if len(scheduleIDs) > 0 {
		if err := tx.Where("schedule_id IN ?", scheduleIDs).Delete(&csschedules.ScheduleDetails{}).Error; err != nil {
			return nil, cserrors.Persistence(err, "erreur suppression questionnaires")
		}
		res := tx.Where("id IN ?", scheduleIDs).Delete(&csschedules.Schedule{})
		if res.Error != nil {
			return nil, cserrors.Persistence(res.Error, "erreur suppression réservations")
		}
		result.SchedulesDeleted = res.RowsAffected
	}

	// 3. Journal d'événements de l'utilisateur
	if hasUser {
		res := tx.Where("user_id = ?", user.ID).Delete(&csevents.EventLog{})
		if res.Error != nil {
			return nil, cserrors.Persistence(res.Error, "erreur suppression événements")
		}
		result.EventsDeleted = res.RowsAffected
	}

	// 4. Leads puis utilisateur
	if len(leadIDs) > 0 {
		res := tx.Where("id IN ?", leadIDs).Delete(&csschedules.Lead{})
		if res.Error != nil {
			return nil, cserrors.Persistence(res.Error, "erreur suppression leads")
		}
		result.LeadsDeleted = res.RowsAffected
	}
	if hasUser {
		if err := tx.Delete(&user).Error; err != nil {
			return nil, cserrors.Persistence(err, "erreur suppression utilisateur")
		}
		result.UserDeleted = true
	}

	return result, nil
}

func optional(value string, max int) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	if r := []rune(value); len(r) > max {
		value = string(r[:max])
	}
	return &value
}
