package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ============================================================================
// DIRECTORY (reference data owned by the identity / admin side)
// ============================================================================

// AppUser is the local projection of an identity-provider user
type AppUser struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	Username    string    `json:"username" gorm:"type:varchar(150);not null;uniqueIndex"`
	DisplayName string    `json:"displayName" gorm:"type:varchar(255)"`
	Email       string    `json:"email" gorm:"type:varchar(255)"`
	IsActive    bool      `json:"isActive" gorm:"not null;default:true"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (AppUser) TableName() string {
	return "app_users"
}

func (u *AppUser) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// Department represents an organizational department
type Department struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	Name        string    `json:"name" gorm:"type:varchar(255);not null"`
	Code        *string   `json:"code,omitempty" gorm:"type:varchar(50)"`
	Description *string   `json:"description,omitempty" gorm:"type:text"`
	IsActive    bool      `json:"isActive" gorm:"not null;default:true"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (Department) TableName() string {
	return "departments"
}

func (d *Department) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

// DepartmentUser is a membership row. Relationships are resolved by id
// lookups, never by embedded back-references.
type DepartmentUser struct {
	DepartmentID uuid.UUID `json:"departmentId" gorm:"type:uuid;primaryKey"`
	UserID       uuid.UUID `json:"userId" gorm:"type:uuid;primaryKey;index"`
	JoinedAt     time.Time `json:"joinedAt"`
}

func (DepartmentUser) TableName() string {
	return "department_users"
}
