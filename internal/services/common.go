package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"order-access-service/internal/apperrors"
	"order-access-service/internal/models"
	"order-access-service/internal/repository"

	"github.com/google/uuid"
)

// Clock returns the current instant. Services take one so tests can pin time.
type Clock func() time.Time

// UTCNow is the production clock
func UTCNow() time.Time {
	return time.Now().UTC()
}

// Pagination defaults shared by list endpoints
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// normalizePage clamps limit and offset to sane values
func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// loadOrder reads an order through store, mapping a missing row to NotFound
func loadOrder(ctx context.Context, store *repository.Store, id uuid.UUID) (*models.Order, error) {
	order, err := store.Orders.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("order").WithDetail("orderId", id.String())
		}
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	return order, nil
}

// validateExpiry rejects expiry instants that are not in the future
func validateExpiry(field string, expiresAt *time.Time, now time.Time) error {
	if expiresAt != nil && !expiresAt.After(now) {
		return apperrors.Validation("%s must be in the future", field).WithDetail("field", field)
	}
	return nil
}

func strPtr(s string) *string {
	return &s
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
