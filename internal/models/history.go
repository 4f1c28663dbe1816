package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// OrderAction is the audit action code. History and report consumers read
// these integers back verbatim: never renumber, only append.
type OrderAction int

const (
	ActionCreated                 OrderAction = 1
	ActionUpdated                 OrderAction = 2
	ActionStatusChanged           OrderAction = 3
	ActionPriorityChanged         OrderAction = 4
	ActionGranted                 OrderAction = 5
	ActionRevoked                 OrderAction = 6
	ActionUserExceptionAdded      OrderAction = 7
	ActionUserExceptionRemoved    OrderAction = 8
	ActionDepartmentAccessGranted OrderAction = 9
	ActionDepartmentAccessRevoked OrderAction = 10
	ActionExpirationSet           OrderAction = 11
	ActionExpirationRemoved       OrderAction = 12
	ActionVisibilityChanged       OrderAction = 13
	ActionArchived                OrderAction = 14
	ActionRestored                OrderAction = 15
	ActionDeleted                 OrderAction = 16
)

var orderActionNames = map[OrderAction]string{
	ActionCreated:                 "created",
	ActionUpdated:                 "updated",
	ActionStatusChanged:           "status_changed",
	ActionPriorityChanged:         "priority_changed",
	ActionGranted:                 "granted",
	ActionRevoked:                 "revoked",
	ActionUserExceptionAdded:      "user_exception_added",
	ActionUserExceptionRemoved:    "user_exception_removed",
	ActionDepartmentAccessGranted: "department_access_granted",
	ActionDepartmentAccessRevoked: "department_access_revoked",
	ActionExpirationSet:           "expiration_set",
	ActionExpirationRemoved:       "expiration_removed",
	ActionVisibilityChanged:       "visibility_changed",
	ActionArchived:                "archived",
	ActionRestored:                "restored",
	ActionDeleted:                 "deleted",
}

func (a OrderAction) String() string {
	if name, ok := orderActionNames[a]; ok {
		return name
	}
	return fmt.Sprintf("OrderAction(%d)", int(a))
}

// IsValid reports whether a is part of the taxonomy
func (a OrderAction) IsValid() bool {
	_, ok := orderActionNames[a]
	return ok
}

// OrderHistory is one append-only audit entry. ID increases with insertion
// and breaks ties between entries sharing PerformedAt.
type OrderHistory struct {
	ID          uint64      `json:"id" gorm:"primaryKey;autoIncrement"`
	OrderID     uuid.UUID   `json:"orderId" gorm:"type:uuid;not null;index:idx_history_order_time"`
	Action      OrderAction `json:"action" gorm:"not null;index"`
	Description string      `json:"description" gorm:"type:text"`
	OldValue    *string     `json:"oldValue,omitempty" gorm:"type:text"`
	NewValue    *string     `json:"newValue,omitempty" gorm:"type:text"`
	PerformedBy uuid.UUID   `json:"performedBy" gorm:"type:uuid;not null"`
	PerformedAt time.Time   `json:"performedAt" gorm:"not null;index:idx_history_order_time"`
	IPAddress   string      `json:"ipAddress,omitempty" gorm:"type:varchar(64)"`
	UserAgent   string      `json:"userAgent,omitempty" gorm:"type:varchar(512)"`
}

// TableName returns the table name for OrderHistory
func (OrderHistory) TableName() string {
	return "order_history"
}

// ActionName exposes the readable action alongside the integer code
func (h OrderHistory) ActionName() string {
	return h.Action.String()
}
