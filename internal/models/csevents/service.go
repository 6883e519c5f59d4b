package csevents

import (
	"context"
	"errors"
	"strings"
	"time"

	"cantostudio/internal/models/cserrors"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const (
	maxEventTypeLength = 64
	maxSessionIDLength = 128
)

// Counter compteurs journaliers temps réel (redis), optionnels
type Counter interface {
	Incr(ctx context.Context, day string, eventType string) error
}

type Service struct {
	db      *gorm.DB
	loc     *time.Location
	now     func() time.Time
	counter Counter
	inTx    bool
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLocation fuseau utilisé pour la borne "aujourd'hui" du dédoublonnage
func WithLocation(loc *time.Location) Option {
	return func(s *Service) { s.loc = loc }
}

func WithCounter(counter Counter) Option {
	return func(s *Service) { s.counter = counter }
}

func NewService(db *gorm.DB, opts ...Option) *Service {
	s := &Service{
		db:  db,
		loc: time.Local,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WithTx retourne une copie du service qui écrit dans la transaction tx.
// Les compteurs temps réel ne sont pas touchés, l'appelant doit appeler
// Count une fois la transaction validée.
func (s *Service) WithTx(tx *gorm.DB) *Service {
	clone := *s
	clone.db = tx
	clone.inTx = true
	return &clone
}

// Event événement à enregistrer
type Event struct {
	Type      EventType
	SessionID string
	UserID    *string
	Payload   Payload
}

// Record valide et insère l'événement. Un SITE_VIEW déjà vu aujourd'hui pour la même
// session est ignoré et Record retourne (nil, nil).
func (s *Service) Record(ctx context.Context, ev Event) (*EventLog, error) {
	ev.Type = EventType(strings.TrimSpace(string(ev.Type)))
	ev.SessionID = strings.TrimSpace(ev.SessionID)

	if ev.Type == "" || ev.SessionID == "" {
		return nil, cserrors.Validation("Missing required fields")
	}
	if len(ev.Type) > maxEventTypeLength || len(ev.SessionID) > maxSessionIDLength {
		return nil, cserrors.Validation("Invalid event")
	}

	db := s.db.WithContext(ctx)
	now := s.now()

	switch ev.Type {
	case SiteView:
		seen, err := s.seenToday(db, ev.SessionID, now)
		if err != nil {
			return nil, err
		}
		if seen {
			return nil, nil
		}
		ev.Payload = nil
	case SessionDuration:
		if _, ok := ev.Payload.(SessionDurationPayload); !ok {
			ev.Payload = SessionDurationPayload{Valid: true}
		}
	}

	metadata := map[string]any{}
	if ev.Payload != nil {
		metadata = ev.Payload.Metadata()
	}

	entry := &EventLog{
		EventType: ev.Type,
		SessionID: ev.SessionID,
		UserID:    ev.UserID,
		Metadata:  metadata,
		CreatedAt: now.UTC(),
	}
	if err := db.Create(entry).Error; err != nil {
		return nil, cserrors.Persistence(err, "erreur enregistrement événement")
	}

	if !s.inTx {
		s.Count(ctx, entry)
	}
	return entry, nil
}

// seenToday vrai si un SITE_VIEW existe déjà pour la session depuis minuit
func (s *Service) seenToday(db *gorm.DB, sessionID string, now time.Time) (bool, error) {
	var existing EventLog
	err := db.
		Select("id").
		Where("session_id = ? AND event_type = ? AND created_at >= ?", sessionID, SiteView, StartOfDay(now, s.loc).UTC()).
		Take(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, cserrors.Persistence(err, "erreur lecture événements")
	}
	return true, nil
}

// Count incrémente le compteur du jour pour un événement enregistré
func (s *Service) Count(ctx context.Context, entry *EventLog) {
	if s.counter == nil || entry == nil {
		return
	}
	day := entry.CreatedAt.In(s.loc).Format(time.DateOnly)
	if err := s.counter.Incr(ctx, day, string(entry.EventType)); err != nil {
		log.Warn().Err(err).Str("event_type", string(entry.EventType)).Msg("realtime counter update failed")
	}
}

// StartOfDay minuit du jour de t dans loc
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
