package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ArchivedOrder is a point-in-time copy of an order. OrderID is a plain
// column so the archive holds no live foreign key into orders.
type ArchivedOrder struct {
	ID              uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	OrderID         uuid.UUID      `json:"orderId" gorm:"type:uuid;not null;index"`
	ReferenceNumber string         `json:"referenceNumber" gorm:"type:varchar(100);not null;index"`
	Type            OrderType      `json:"type" gorm:"not null"`
	DepartmentID    uuid.UUID      `json:"departmentId" gorm:"type:uuid;not null"`
	SubjectID       *uuid.UUID     `json:"subjectId,omitempty" gorm:"type:uuid"`
	Title           string         `json:"title" gorm:"type:varchar(255);not null"`
	Description     string         `json:"description" gorm:"type:text"`
	Priority        OrderPriority  `json:"priority" gorm:"not null"`
	StatusAtArchive OrderStatus    `json:"statusAtArchive" gorm:"not null"`
	OwnerID         uuid.UUID      `json:"ownerId" gorm:"type:uuid;not null;index"`
	ExpirationDate  *time.Time     `json:"expirationDate,omitempty"`
	IsPublic        bool           `json:"isPublic"`
	OrderCreatedAt  time.Time      `json:"orderCreatedAt"`
	OrderCreatedBy  uuid.UUID      `json:"orderCreatedBy" gorm:"type:uuid;not null"`
	Snapshot        datatypes.JSON `json:"snapshot" gorm:"type:jsonb"`
	Reason          string         `json:"reason" gorm:"type:text;not null"`
	ArchivedBy      uuid.UUID      `json:"archivedBy" gorm:"type:uuid;not null"`
	ArchivedAt      time.Time      `json:"archivedAt" gorm:"not null;index"`
	CanBeRestored   bool           `json:"canBeRestored" gorm:"not null;default:true"`
	RestoredAt      *time.Time     `json:"restoredAt,omitempty"`
	RestoredBy      *uuid.UUID     `json:"restoredBy,omitempty" gorm:"type:uuid"`
}

// TableName returns the table name for ArchivedOrder
func (ArchivedOrder) TableName() string {
	return "archived_orders"
}

// BeforeCreate assigns the primary key
func (a *ArchivedOrder) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// ArchiveSnapshot is the denormalized payload stored in ArchivedOrder.Snapshot
type ArchiveSnapshot struct {
	Grants      OrderGrants       `json:"grants"`
	Attachments []OrderAttachment `json:"attachments"`
	UpdatedAt   time.Time         `json:"updatedAt"`
	UpdatedBy   *uuid.UUID        `json:"updatedBy,omitempty"`
}

// Archive reasons used by the system
const (
	ArchiveReasonExpiration = "automatic expiration"
)
