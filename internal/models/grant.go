package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AccessLevel is the ordinal tier of a department grant. The integers are
// read back verbatim by report consumers and must stay stable.
type AccessLevel int

const (
	AccessLevelViewOnly AccessLevel = 1
	AccessLevelEdit     AccessLevel = 2
	AccessLevelFull     AccessLevel = 3
)

// IsValid reports whether l is one of the three ordinals
func (l AccessLevel) IsValid() bool {
	return l >= AccessLevelViewOnly && l <= AccessLevelFull
}

func (l AccessLevel) String() string {
	switch l {
	case AccessLevelViewOnly:
		return "VIEW_ONLY"
	case AccessLevelEdit:
		return "EDIT"
	case AccessLevelFull:
		return "FULL"
	default:
		return fmt.Sprintf("AccessLevel(%d)", int(l))
	}
}

// DirectPermission grants one user a specific capability set on one order.
// Re-granting adds a new row; the newest unexpired, unrevoked row wins.
type DirectPermission struct {
	ID          uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	OrderID     uuid.UUID  `json:"orderId" gorm:"type:uuid;not null;index:idx_direct_order_user"`
	UserID      uuid.UUID  `json:"userId" gorm:"type:uuid;not null;index:idx_direct_order_user"`
	CanView     bool       `json:"canView"`
	CanEdit     bool       `json:"canEdit"`
	CanDelete   bool       `json:"canDelete"`
	CanShare    bool       `json:"canShare"`
	CanDownload bool       `json:"canDownload"`
	CanPrint    bool       `json:"canPrint"`
	CanComment  bool       `json:"canComment"`
	CanApprove  bool       `json:"canApprove"`
	GrantedBy   uuid.UUID  `json:"grantedBy" gorm:"type:uuid;not null"`
	GrantedAt   time.Time  `json:"grantedAt" gorm:"not null"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
	RevokedAt   *time.Time `json:"revokedAt,omitempty"`
	RevokedBy   *uuid.UUID `json:"revokedBy,omitempty" gorm:"type:uuid"`
}

// TableName returns the table name for DirectPermission
func (DirectPermission) TableName() string {
	return "order_direct_permissions"
}

// BeforeCreate assigns the primary key
func (p *DirectPermission) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// IsEffectiveAt checks if the grant counts at the given instant
func (p *DirectPermission) IsEffectiveAt(now time.Time) bool {
	return p.RevokedAt == nil && notExpired(p.ExpiresAt, now)
}

// DepartmentAccess grants every member of a department an access tier.
type DepartmentAccess struct {
	ID           uuid.UUID   `json:"id" gorm:"type:uuid;primaryKey"`
	OrderID      uuid.UUID   `json:"orderId" gorm:"type:uuid;not null;index:idx_dept_access_order_dept"`
	DepartmentID uuid.UUID   `json:"departmentId" gorm:"type:uuid;not null;index:idx_dept_access_order_dept"`
	AccessLevel  AccessLevel `json:"accessLevel" gorm:"not null"`
	GrantedBy    uuid.UUID   `json:"grantedBy" gorm:"type:uuid;not null"`
	GrantedAt    time.Time   `json:"grantedAt" gorm:"not null"`
	ExpiresAt    *time.Time  `json:"expiresAt,omitempty"`
	RevokedAt    *time.Time  `json:"revokedAt,omitempty"`
	RevokedBy    *uuid.UUID  `json:"revokedBy,omitempty" gorm:"type:uuid"`
}

// TableName returns the table name for DepartmentAccess
func (DepartmentAccess) TableName() string {
	return "order_department_access"
}

// BeforeCreate assigns the primary key
func (a *DepartmentAccess) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// IsEffectiveAt checks if the grant counts at the given instant
func (a *DepartmentAccess) IsEffectiveAt(now time.Time) bool {
	return a.RevokedAt == nil && notExpired(a.ExpiresAt, now)
}

// UserException blocks one user from an order regardless of their grants.
// It never applies to the owner.
type UserException struct {
	ID        uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	OrderID   uuid.UUID  `json:"orderId" gorm:"type:uuid;not null;index:idx_exception_order_user"`
	UserID    uuid.UUID  `json:"userId" gorm:"type:uuid;not null;index:idx_exception_order_user"`
	Reason    string     `json:"reason" gorm:"type:text;not null"`
	CreatedBy uuid.UUID  `json:"createdBy" gorm:"type:uuid;not null"`
	CreatedAt time.Time  `json:"createdAt" gorm:"not null"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	IsActive  bool       `json:"isActive" gorm:"not null;default:true"`
	RemovedAt *time.Time `json:"removedAt,omitempty"`
	RemovedBy *uuid.UUID `json:"removedBy,omitempty" gorm:"type:uuid"`
}

// TableName returns the table name for UserException
func (UserException) TableName() string {
	return "order_user_exceptions"
}

// BeforeCreate assigns the primary key
func (e *UserException) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// IsActiveAt checks if the exclusion applies at the given instant
func (e *UserException) IsActiveAt(now time.Time) bool {
	return e.IsActive && notExpired(e.ExpiresAt, now)
}

// OrderGrants is every grant row recorded for one order
type OrderGrants struct {
	Direct      []DirectPermission `json:"direct"`
	Departments []DepartmentAccess `json:"departments"`
	Exceptions  []UserException    `json:"exceptions"`
}

func notExpired(expiresAt *time.Time, now time.Time) bool {
	return expiresAt == nil || expiresAt.After(now)
}
