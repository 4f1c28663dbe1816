package repository

import (
	"context"

	"order-access-service/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserLookup is the narrow view the grant store needs of the directory
type UserLookup interface {
	UserExists(ctx context.Context, id uuid.UUID) (bool, error)
	DepartmentExists(ctx context.Context, id uuid.UUID) (bool, error)
}

// MembershipLookup is the narrow view permission resolution needs of the directory
type MembershipLookup interface {
	DepartmentIDsForUser(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
}

// DirectoryRepository reads users, departments and memberships. It serves
// both UserLookup and MembershipLookup.
type DirectoryRepository struct {
	db *gorm.DB
}

var (
	_ UserLookup       = (*DirectoryRepository)(nil)
	_ MembershipLookup = (*DirectoryRepository)(nil)
)

// NewDirectoryRepository creates a new DirectoryRepository
func NewDirectoryRepository(db *gorm.DB) *DirectoryRepository {
	return &DirectoryRepository{db: db}
}

// UserExists checks for an active user
func (r *DirectoryRepository) UserExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.AppUser{}).
		Where("id = ? AND is_active = ?", id, true).
		Count(&count).Error
	return count > 0, err
}

// DepartmentExists checks for an active department
func (r *DirectoryRepository) DepartmentExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Department{}).
		Where("id = ? AND is_active = ?", id, true).
		Count(&count).Error
	return count > 0, err
}

// DepartmentIDsForUser returns the departments the user belongs to
func (r *DirectoryRepository) DepartmentIDsForUser(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).Model(&models.DepartmentUser{}).
		Where("user_id = ?", userID).
		Order("department_id").
		Pluck("department_id", &ids).Error
	return ids, err
}

// ListDepartments returns active departments by name
func (r *DirectoryRepository) ListDepartments(ctx context.Context) ([]models.Department, error) {
	var departments []models.Department
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("name ASC").
		Find(&departments).Error
	return departments, err
}

// CreateUser inserts a user
func (r *DirectoryRepository) CreateUser(ctx context.Context, user *models.AppUser) error {
	return r.db.WithContext(ctx).Create(user).Error
}

// CreateDepartment inserts a department
func (r *DirectoryRepository) CreateDepartment(ctx context.Context, department *models.Department) error {
	return r.db.WithContext(ctx).Create(department).Error
}

// FindDepartmentByCode retrieves a department by its code
func (r *DirectoryRepository) FindDepartmentByCode(ctx context.Context, code string) (*models.Department, error) {
	var department models.Department
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&department).Error; err != nil {
		return nil, translate(err)
	}
	return &department, nil
}

// AddMember adds a user to a department; existing memberships are left as is
func (r *DirectoryRepository) AddMember(ctx context.Context, membership *models.DepartmentUser) error {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.DepartmentUser{}).
		Where("department_id = ? AND user_id = ?", membership.DepartmentID, membership.UserID).
		Count(&count).Error
	if err != nil || count > 0 {
		return err
	}
	return r.db.WithContext(ctx).Create(membership).Error
}
