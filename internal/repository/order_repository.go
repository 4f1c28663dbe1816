package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"order-access-service/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OrderRepository handles database operations for orders
type OrderRepository struct {
	db *gorm.DB
}

// NewOrderRepository creates a new OrderRepository
func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// OrderFilter narrows active order listings
type OrderFilter struct {
	Status       *models.OrderStatus
	Priority     *models.OrderPriority
	Type         *models.OrderType
	DepartmentID *uuid.UUID
	OwnerID      *uuid.UUID
	Search       string

	// VisibleTo restricts rows to those the user could possibly see: owned,
	// public, or carrying a direct or department grant for the user. The
	// final decision is still made by the resolver.
	VisibleTo     *uuid.UUID
	DepartmentIDs []uuid.UUID

	// Limit caps the rows returned; zero means no cap
	Limit int
}

// Create inserts a new order
func (r *OrderRepository) Create(ctx context.Context, order *models.Order) error {
	err := r.db.WithContext(ctx).Create(order).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateReference
	}
	return err
}

// GetByID retrieves an order by ID, archived or not
func (r *OrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&order).Error
	if err != nil {
		return nil, translate(err)
	}
	return &order, nil
}

// ActiveReferenceExists checks whether a non-archived order other than
// excludeID already carries the reference number
func (r *OrderRepository) ActiveReferenceExists(ctx context.Context, reference string, excludeID *uuid.UUID) (bool, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("reference_number = ? AND is_archived = ?", reference, false)
	if excludeID != nil {
		query = query.Where("id <> ?", *excludeID)
	}
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListActive returns non-archived orders matching the filter, newest first
func (r *OrderRepository) ListActive(ctx context.Context, filter OrderFilter) ([]models.Order, error) {
	var orders []models.Order

	query := r.db.WithContext(ctx).Model(&models.Order{}).Where("is_archived = ?", false)

	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Priority != nil {
		query = query.Where("priority = ?", *filter.Priority)
	}
	if filter.Type != nil {
		query = query.Where("type = ?", *filter.Type)
	}
	if filter.DepartmentID != nil {
		query = query.Where("department_id = ?", *filter.DepartmentID)
	}
	if filter.OwnerID != nil {
		query = query.Where("owner_id = ?", *filter.OwnerID)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(title) LIKE ? OR LOWER(reference_number) LIKE ?", pattern, pattern)
	}

	if filter.VisibleTo != nil {
		userID := *filter.VisibleTo
		direct := r.db.Model(&models.DirectPermission{}).
			Select("order_id").
			Where("user_id = ? AND revoked_at IS NULL", userID)

		visible := r.db.Where("owner_id = ?", userID).
			Or("is_public = ?", true).
			Or("id IN (?)", direct)

		if len(filter.DepartmentIDs) > 0 {
			dept := r.db.Model(&models.DepartmentAccess{}).
				Select("order_id").
				Where("department_id IN ? AND revoked_at IS NULL", filter.DepartmentIDs)
			visible = visible.Or("id IN (?)", dept)
		}
		query = query.Where(visible)
	}

	query = query.Order("created_at DESC").Order("id")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	err := query.Find(&orders).Error
	return orders, err
}

// UpdateActive applies updates to a non-archived order. ErrNotFound means the
// order is gone or was archived concurrently.
func (r *OrderRepository) UpdateActive(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error {
	result := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND is_archived = ?", id, false).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ArchiveClaim carries the fields written when an order is archived
type ArchiveClaim struct {
	ArchivedBy uuid.UUID
	Reason     string
	At         time.Time
}

// ClaimForArchive flips is_archived from false to true. Exactly one caller
// can win the claim; the others get false without error.
func (r *OrderRepository) ClaimForArchive(ctx context.Context, id uuid.UUID, claim ArchiveClaim) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND is_archived = ?", id, false).
		Updates(map[string]interface{}{
			"is_archived":    true,
			"status":         models.OrderStatusArchived,
			"archived_at":    claim.At,
			"archived_by":    claim.ArchivedBy,
			"archive_reason": claim.Reason,
			"updated_at":     claim.At,
			"updated_by":     claim.ArchivedBy,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// Reactivate writes restored fields back onto an archived order and clears
// the archive flags
func (r *OrderRepository) Reactivate(ctx context.Context, order *models.Order, restoredBy uuid.UUID, at time.Time) error {
	result := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND is_archived = ?", order.ID, true).
		Updates(map[string]interface{}{
			"reference_number": order.ReferenceNumber,
			"type":             order.Type,
			"department_id":    order.DepartmentID,
			"subject_id":       order.SubjectID,
			"title":            order.Title,
			"description":      order.Description,
			"priority":         order.Priority,
			"owner_id":         order.OwnerID,
			"expiration_date":  order.ExpirationDate,
			"is_public":        order.IsPublic,
			"created_at":       order.CreatedAt,
			"created_by":       order.CreatedBy,
			"status":           models.OrderStatusPending,
			"is_archived":      false,
			"archived_at":      nil,
			"archived_by":      nil,
			"archive_reason":   "",
			"updated_at":       at,
			"updated_by":       restoredBy,
		})
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return ErrDuplicateReference
		}
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// FindExpired returns active orders whose expiration date is before now
func (r *OrderRepository) FindExpired(ctx context.Context, now time.Time, limit int) ([]models.Order, error) {
	var orders []models.Order
	query := r.db.WithContext(ctx).
		Where("expiration_date IS NOT NULL AND expiration_date < ? AND is_archived = ?", now, false).
		Order("expiration_date ASC").
		Order("id")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&orders).Error
	return orders, err
}

// BumpGrantVersion increments the order's grant version and returns the new value
func (r *OrderRepository) BumpGrantVersion(ctx context.Context, id uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ?", id).
		Update("grant_version", gorm.Expr("grant_version + ?", 1))
	if result.Error != nil {
		return 0, fmt.Errorf("bump grant version: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return 0, ErrNotFound
	}

	var versions []int64
	err := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ?", id).
		Pluck("grant_version", &versions).Error
	if err != nil {
		return 0, err
	}
	if len(versions) == 0 {
		return 0, ErrNotFound
	}
	return versions[0], nil
}

// Delete removes the order row
func (r *OrderRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Order{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListAttachments returns attachment metadata for an order
func (r *OrderRepository) ListAttachments(ctx context.Context, orderID uuid.UUID) ([]models.OrderAttachment, error) {
	var attachments []models.OrderAttachment
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("uploaded_at ASC").
		Find(&attachments).Error
	return attachments, err
}

// AddAttachment records attachment metadata
func (r *OrderRepository) AddAttachment(ctx context.Context, attachment *models.OrderAttachment) error {
	return r.db.WithContext(ctx).Create(attachment).Error
}

// DeleteAttachments removes all attachment metadata for an order
func (r *OrderRepository) DeleteAttachments(ctx context.Context, orderID uuid.UUID) error {
	return r.db.WithContext(ctx).Where("order_id = ?", orderID).Delete(&models.OrderAttachment{}).Error
}
