package csschedules

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusRejected  Status = "REJECTED"
	// StatusCompleted existe dans le schéma mais aucune transition n'y mène
	StatusCompleted Status = "COMPLETED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusRejected, StatusCompleted:
		return true
	}
	return false
}

type Role string

const (
	RoleStudent Role = "STUDENT"
	RoleAdmin   Role = "ADMIN"
)

// Source des leads créés par le formulaire de réservation
const LeadSourceSchedulingForm = "scheduling_form"

// Models avec tags GORM
type User struct {
	ID        string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Email     string     `json:"email" gorm:"type:varchar(255);uniqueIndex;not null"`
	Name      string     `json:"name"`
	Role      Role       `json:"role" gorm:"type:varchar(16);default:STUDENT"`
	Schedules []Schedule `json:"schedules,omitempty" gorm:"foreignKey:UserID"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// Lead contact marketing, indépendant de l'état des réservations
type Lead struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Email     string    `json:"email" gorm:"type:varchar(255);uniqueIndex;not null"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"createdAt" gorm:"index"`
}

type Schedule struct {
	ID        string           `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Date      time.Time        `json:"date" gorm:"index"`
	UserID    string           `json:"userId" gorm:"type:varchar(36);not null;index"`
	User      *User            `json:"user,omitempty" gorm:"foreignKey:UserID"`
	LeadID    *string          `json:"leadId,omitempty" gorm:"type:varchar(36);index"`
	Status    Status           `json:"status" gorm:"type:varchar(16);not null;default:PENDING;index:idx_status_created"`
	Details   *ScheduleDetails `json:"details,omitempty" gorm:"foreignKey:ScheduleID"`
	CreatedAt time.Time        `json:"createdAt" gorm:"index:idx_status_created"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

// ScheduleDetails questionnaire rempli avant le premier cours, 1:1 avec Schedule
type ScheduleDetails struct {
	ID          string `json:"id" gorm:"primaryKey;type:varchar(36)"`
	ScheduleID  string `json:"scheduleId" gorm:"type:varchar(36);uniqueIndex;not null"`
	IsBeginner  bool   `json:"isBeginner"`
	Goal        string `json:"goal" gorm:"type:text"`
	Improvement string `json:"improvement" gorm:"type:text"`
}

func (User) TableName() string            { return "users" }
func (Lead) TableName() string            { return "leads" }
func (Schedule) TableName() string        { return "schedules" }
func (ScheduleDetails) TableName() string { return "schedule_details" }

// Hooks GORM
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Role == "" {
		u.Role = RoleStudent
	}
	return nil
}

func (l *Lead) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	return nil
}

func (s *Schedule) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.Status == "" {
		s.Status = StatusPending
	}
	return nil
}

func (d *ScheduleDetails) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	return nil
}

// Models liste des tables gérées par ce paquet, pour AutoMigrate
func Models() []any {
	return []any{&User{}, &Lead{}, &Schedule{}, &ScheduleDetails{}}
}
