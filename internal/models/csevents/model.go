package csevents

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type EventType string

const (
	SiteView            EventType = "SITE_VIEW"
	StartedScheduling   EventType = "STARTED_SCHEDULING"
	AbandonedScheduling EventType = "ABANDONED_SCHEDULING"
	CompletedScheduling EventType = "COMPLETED_SCHEDULING"
	SessionDuration     EventType = "SESSION_DURATION"

	ClickAgendar     EventType = "CLICK_AGENDAR"
	ClickSobre       EventType = "CLICK_SOBRE"
	ClickMetodologia EventType = "CLICK_METODOLOGIA"
	ClickDepoimentos EventType = "CLICK_DEPOIMENTOS"
)

const clickPrefix = "CLICK_"

func (t EventType) IsClick() bool {
	return strings.HasPrefix(string(t), clickPrefix)
}

// EventLog journal d'événements en ajout seul, supprimé uniquement par une demande LGPD
type EventLog struct {
	ID        string            `json:"id" gorm:"primaryKey;type:varchar(36)"`
	EventType EventType         `json:"eventType" gorm:"type:varchar(64);not null;index:idx_event_type_created"`
	SessionID string            `json:"sessionId" gorm:"type:varchar(128);not null;index:idx_session_type"`
	UserID    *string           `json:"userId,omitempty" gorm:"type:varchar(36);index"`
	Metadata  datatypes.JSONMap `json:"metadata"`
	CreatedAt time.Time         `json:"createdAt" gorm:"index:idx_event_type_created"`
}

func (EventLog) TableName() string {
	return "event_logs"
}

func (e *EventLog) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}

// Payload décodé selon le type de l'événement
func (e *EventLog) Payload() Payload {
	return DecodePayload(e.EventType, e.Metadata)
}
