package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OrderStatus is persisted as a stable integer. Never renumber, only append.
type OrderStatus int

const (
	OrderStatusPending    OrderStatus = 1
	OrderStatusInProgress OrderStatus = 2
	OrderStatusCompleted  OrderStatus = 3
	OrderStatusCancelled  OrderStatus = 4
	OrderStatusArchived   OrderStatus = 5
)

// OrderType distinguishes incoming and outgoing correspondence
type OrderType int

const (
	OrderTypeIncoming OrderType = 1
	OrderTypeOutgoing OrderType = 2
)

// OrderPriority is persisted as a stable integer
type OrderPriority int

const (
	PriorityLow    OrderPriority = 1
	PriorityNormal OrderPriority = 2
	PriorityHigh   OrderPriority = 3
	PriorityUrgent OrderPriority = 4
)

// Order is the workflow unit that grants, history and archives hang off.
// ReferenceNumber is unique among non-archived orders only, so an archived
// order's number can be reused and a restore can detect the collision.
type Order struct {
	ID              uuid.UUID     `json:"id" gorm:"type:uuid;primaryKey"`
	ReferenceNumber string        `json:"referenceNumber" gorm:"type:varchar(100);not null;uniqueIndex:idx_orders_active_reference,where:is_archived = false"`
	Type            OrderType     `json:"type" gorm:"not null;default:1"`
	DepartmentID    uuid.UUID     `json:"departmentId" gorm:"type:uuid;not null;index"`
	SubjectID       *uuid.UUID    `json:"subjectId,omitempty" gorm:"type:uuid"`
	Title           string        `json:"title" gorm:"type:varchar(255);not null"`
	Description     string        `json:"description" gorm:"type:text"`
	Status          OrderStatus   `json:"status" gorm:"not null;default:1;index"`
	Priority        OrderPriority `json:"priority" gorm:"not null;default:2"`
	OwnerID         uuid.UUID     `json:"ownerId" gorm:"type:uuid;not null;index"`
	ExpirationDate  *time.Time    `json:"expirationDate,omitempty" gorm:"index:idx_orders_expiration"`
	IsPublic        bool          `json:"isPublic" gorm:"not null;default:false"`
	IsArchived      bool          `json:"isArchived" gorm:"not null;default:false;index:idx_orders_expiration"`
	ArchivedAt      *time.Time    `json:"archivedAt,omitempty"`
	ArchivedBy      *uuid.UUID    `json:"archivedBy,omitempty" gorm:"type:uuid"`
	ArchiveReason   string        `json:"archiveReason,omitempty" gorm:"type:text"`
	GrantVersion    int64         `json:"-" gorm:"not null;default:0"`
	CreatedAt       time.Time     `json:"createdAt"`
	CreatedBy       uuid.UUID     `json:"createdBy" gorm:"type:uuid;not null"`
	UpdatedAt       time.Time     `json:"updatedAt"`
	UpdatedBy       *uuid.UUID    `json:"updatedBy,omitempty" gorm:"type:uuid"`
}

// TableName returns the table name for Order
func (Order) TableName() string {
	return "orders"
}

// BeforeCreate assigns the primary key
func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// IsOwnedBy reports whether userID created the order
func (o *Order) IsOwnedBy(userID uuid.UUID) bool {
	return o.OwnerID == userID
}

// OrderAttachment holds metadata for a file stored elsewhere. Only these
// references are carried into archive snapshots.
type OrderAttachment struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	OrderID     uuid.UUID `json:"orderId" gorm:"type:uuid;not null;index"`
	FileName    string    `json:"fileName" gorm:"type:varchar(255);not null"`
	ContentType string    `json:"contentType" gorm:"type:varchar(100)"`
	SizeBytes   int64     `json:"sizeBytes"`
	StorageKey  string    `json:"storageKey" gorm:"type:varchar(500);not null"`
	UploadedBy  uuid.UUID `json:"uploadedBy" gorm:"type:uuid;not null"`
	UploadedAt  time.Time `json:"uploadedAt"`
}

// TableName returns the table name for OrderAttachment
func (OrderAttachment) TableName() string {
	return "order_attachments"
}

// BeforeCreate assigns the primary key
func (a *OrderAttachment) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
