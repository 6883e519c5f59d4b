package cslgpd

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RequestStatus string

const (
	RequestPending   RequestStatus = "PENDING"
	RequestCompleted RequestStatus = "COMPLETED"
)

// DataDeletionRequest demande d'effacement (LGPD) déposée par une personne
type DataDeletionRequest struct {
	ID        string        `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Email     string        `json:"email" gorm:"type:varchar(255);not null;index"`
	Name      *string       `json:"name"`
	Reason    *string       `json:"reason" gorm:"type:text"`
	Status    RequestStatus `json:"status" gorm:"type:varchar(16);not null;default:PENDING;index"`
	CreatedAt time.Time     `json:"createdAt" gorm:"index"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

func (DataDeletionRequest) TableName() string {
	return "data_deletion_requests"
}

func (r *DataDeletionRequest) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Status == "" {
		r.Status = RequestPending
	}
	return nil
}
