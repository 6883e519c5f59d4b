package csschedules

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cantostudio/internal/models/cserrors"
	"cantostudio/internal/models/csevents"
	"cantostudio/internal/models/csnotify"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BookingRequest données du formulaire de réservation
type BookingRequest struct {
	Email       string `json:"email" validate:"required,email,max=255"`
	Name        string `json:"name" validate:"required,max=120"`
	Phone       string `json:"phone" validate:"max=40"`
	Date        string `json:"date" validate:"required"`
	IsBeginner  bool   `json:"isBeginner"`
	Goal        string `json:"goal" validate:"max=2000"`
	Improvement string `json:"improvement" validate:"max=2000"`
	SessionID   string `json:"sessionId" validate:"max=128"`
}

// formats acceptés pour la date du cours, du plus précis au moins précis
var lessonDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	time.DateOnly,
}

type Service struct {
	db       *gorm.DB
	events   *csevents.Service
	notifier csnotify.Notifier
	validate *validator.Validate
	loc      *time.Location
}

func NewService(db *gorm.DB, events *csevents.Service, notifier csnotify.Notifier, loc *time.Location) *Service {
	if notifier == nil {
		notifier = csnotify.Noop{}
	}
	if loc == nil {
		loc = time.Local
	}
	return &Service{
		db:       db,
		events:   events,
		notifier: notifier,
		validate: validator.New(),
		loc:      loc,
	}
}

// NormalizeEmail l'email est la clé naturelle entre User, Lead et les demandes LGPD
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ParseLessonDate les dates sans fuseau sont lues dans loc
func ParseLessonDate(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range lessonDateLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, cserrors.Validation("Data inválida.")
}

func (s *Service) validateBooking(req *BookingRequest) error {
	req.Email = NormalizeEmail(req.Email)
	req.Name = strings.TrimSpace(req.Name)
	req.Phone = strings.TrimSpace(req.Phone)
	req.Date = strings.TrimSpace(req.Date)
	req.SessionID = strings.TrimSpace(req.SessionID)

	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return cserrors.Validation("Dados de agendamento inválidos.")
	}
	fe := verrs[0]
	switch {
	case fe.Tag() == "required":
		return cserrors.Validation("Nome, e-mail e data são obrigatórios.")
	case fe.Field() == "Email":
		return cserrors.Validation("E-mail inválido.")
	default:
		return cserrors.Validation(fmt.Sprintf("Campo %s inválido.", strings.ToLower(fe.Field())))
	}
}

// CreateBooking crée ou réutilise User et Lead (le premier enregistrement gagne),
// journalise COMPLETED_SCHEDULING puis crée la réservation, le tout dans une transaction
func (s *Service) CreateBooking(ctx context.Context, req BookingRequest) (*Schedule, error) {
	if err := s.validateBooking(&req); err != nil {
		return nil, err
	}
	date, err := ParseLessonDate(req.Date, s.loc)
	if err != nil {
		return nil, err
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	var schedule *Schedule
	var completed *csevents.EventLog
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user User
		if err := tx.Where(User{Email: req.Email}).
			Attrs(User{Name: req.Name, Role: RoleStudent}).
			FirstOrCreate(&user).Error; err != nil {
			return cserrors.Persistence(err, "erreur création utilisateur")
		}

		var lead Lead
		if err := tx.Where(Lead{Email: req.Email}).
			Attrs(Lead{Name: req.Name, Phone: req.Phone, Source: LeadSourceSchedulingForm}).
			FirstOrCreate(&lead).Error; err != nil {
			return cserrors.Persistence(err, "erreur création lead")
		}

		entry, err := s.events.WithTx(tx).Record(ctx, csevents.Event{
			Type:      csevents.CompletedScheduling,
			SessionID: req.SessionID,
			UserID:    &user.ID,
			Payload:   csevents.CompletedPayload{LeadID: lead.ID},
		})
		if err != nil {
			return err
		}
		completed = entry

		schedule = &Schedule{
			Date:   date.UTC(),
			UserID: user.ID,
			LeadID: &lead.ID,
			Status: StatusPending,
			Details: &ScheduleDetails{
				IsBeginner:  req.IsBeginner,
				Goal:        req.Goal,
				Improvement: req.Improvement,
			},
		}
		if err := tx.Create(schedule).Error; err != nil {
			return cserrors.Persistence(err, "erreur création réservation")
		}
		return nil
	})
	if err != nil {
		return nil, cserrors.Persistence(err, "erreur transaction réservation")
	}
	s.events.Count(ctx, completed)

	csnotify.Deliver(ctx, s.notifier, csnotify.Message{
		Subject: "Nova aula agendada",
		Markdown: fmt.Sprintf("**%s** (%s) agendou uma aula para **%s**.\n\nIniciante: %s\n\nObjetivo: %s",
			req.Name, req.Email, date.In(s.loc).Format("02/01/2006 15:04"), yesNo(req.IsBeginner), req.Goal),
	})

	return schedule, nil
}

// UpdateStatus seules les transitions PENDING -> CONFIRMED | REJECTED sont permises,
// remettre le même statut ne change rien
func (s *Service) UpdateStatus(ctx context.Context, id string, status Status) (*Schedule, error) {
	id = strings.TrimSpace(id)
	if id == "" || status == "" {
		return nil, cserrors.Validation("Missing id or status")
	}
	if !status.Valid() {
		return nil, cserrors.Validation("Status inválido.")
	}

	db := s.db.WithContext(ctx)
	current, err := s.find(db, id)
	if err != nil {
		return nil, err
	}
	if current.Status == status {
		return current, nil
	}
	if current.Status != StatusPending || (status != StatusConfirmed && status != StatusRejected) {
		return nil, cserrors.Validation(fmt.Sprintf("Transição de status inválida: %s -> %s.", current.Status, status))
	}

	res := db.Model(&Schedule{}).
		Where("id = ? AND status = ?", id, StatusPending).
		Update("status", status)
	if res.Error != nil {
		return nil, cserrors.Persistence(res.Error, "erreur mise à jour statut")
	}
	if res.RowsAffected == 0 {
		// modifié entre-temps par une autre requête
		return nil, cserrors.Validation("Transição de status inválida.")
	}

	return s.find(db, id)
}

func (s *Service) find(db *gorm.DB, id string) (*Schedule, error) {
	var schedule Schedule
	err := db.Preload("Details").Where("id = ?", id).Take(&schedule).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, cserrors.NotFound("Agendamento não encontrado.")
	}
	if err != nil {
		return nil, cserrors.Persistence(err, "erreur lecture réservation")
	}
	return &schedule, nil
}

// ListAll toutes les réservations avec élève et questionnaire, par date de cours croissante
func (s *Service) ListAll(ctx context.Context) ([]Schedule, error) {
	schedules := []Schedule{}
	err := s.db.WithContext(ctx).
		Preload("User").
		Preload("Details").
		Order("date asc").
		Find(&schedules).Error
	if err != nil {
		return nil, cserrors.Persistence(err, "erreur liste réservations")
	}
	return schedules, nil
}

// FindByEmail réservations d'un élève, date de cours décroissante. Sans User on
// cherche les réservations rattachées au Lead, sinon liste vide.
func (s *Service) FindByEmail(ctx context.Context, email string) ([]Schedule, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, cserrors.Validation("E-mail é obrigatório")
	}

	db := s.db.WithContext(ctx)
	schedules := []Schedule{}

	var user User
	err := db.Where("email = ?", email).Take(&user).Error
	if err == nil {
		if err := db.Preload("Details").Where("user_id = ?", user.ID).Order("date desc").Find(&schedules).Error; err != nil {
			return nil, cserrors.Persistence(err, "erreur lecture réservations")
		}
		return schedules, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, cserrors.Persistence(err, "erreur lecture utilisateur")
	}

	var lead Lead
	err = db.Where("email = ?", email).Take(&lead).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return schedules, nil
	}
	if err != nil {
		return nil, cserrors.Persistence(err, "erreur lecture lead")
	}
	if err := db.Preload("Details").Where("lead_id = ?", lead.ID).Order("date desc").Find(&schedules).Error; err != nil {
		return nil, cserrors.Persistence(err, "erreur lecture réservations")
	}
	return schedules, nil
}

func yesNo(b bool) string {
	if b {
		return "sim"
	}
	return "não"
}
