package services

import (
	"context"
	"fmt"
	"time"

	"order-access-service/internal/apperrors"
	"order-access-service/internal/models"
	"order-access-service/internal/repository"

	"github.com/google/uuid"
)

// AuditEntry is one history record to append
type AuditEntry struct {
	OrderID     uuid.UUID
	Action      models.OrderAction
	Description string
	OldValue    *string
	NewValue    *string
	Actor       models.Actor
	At          time.Time
}

// HistoryQuery selects a page of history
type HistoryQuery struct {
	Direction repository.SortDirection
	Limit     int
	Offset    int
}

// HistoryPage is a page of history with the total entry count
type HistoryPage struct {
	Entries []models.OrderHistory `json:"entries"`
	Total   int64                 `json:"total"`
	Limit   int                   `json:"limit"`
	Offset  int                   `json:"offset"`
}

// AuditRecorder appends and reads order history
type AuditRecorder struct {
	store *repository.Store
	perms *PermissionService
}

// NewAuditRecorder creates a new AuditRecorder
func NewAuditRecorder(store *repository.Store, perms *PermissionService) *AuditRecorder {
	return &AuditRecorder{store: store, perms: perms}
}

// Append writes one entry through tx, which must be the transaction that
// carries the matching state change. A failure here must abort that
// transaction, so callers return the error from their transaction func.
func (a *AuditRecorder) Append(ctx context.Context, tx *repository.Store, entry AuditEntry) error {
	if !entry.Action.IsValid() {
		return fmt.Errorf("unknown history action %d", int(entry.Action))
	}

	record := &models.OrderHistory{
		OrderID:     entry.OrderID,
		Action:      entry.Action,
		Description: entry.Description,
		OldValue:    entry.OldValue,
		NewValue:    entry.NewValue,
		PerformedBy: entry.Actor.ID,
		PerformedAt: entry.At,
		IPAddress:   entry.Actor.IPAddress,
		UserAgent:   entry.Actor.UserAgent,
	}
	if record.PerformedAt.IsZero() {
		record.PerformedAt = UTCNow()
	}

	if err := tx.History.Append(ctx, record); err != nil {
		return fmt.Errorf("failed to append %s history entry: %w", entry.Action, err)
	}
	return nil
}

// History returns a page of an order's history. Readers need view access,
// or for archived orders must be the owner or an admin.
func (a *AuditRecorder) History(ctx context.Context, actor models.Actor, orderID uuid.UUID, query HistoryQuery) (*HistoryPage, error) {
	if err := a.authorize(ctx, actor, orderID); err != nil {
		return nil, err
	}

	direction := query.Direction
	if direction != repository.SortDesc {
		direction = repository.SortAsc
	}
	limit, offset := normalizePage(query.Limit, query.Offset)

	entries, err := a.store.History.List(ctx, orderID, direction, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	total, err := a.store.History.Count(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to count history: %w", err)
	}

	return &HistoryPage{Entries: entries, Total: total, Limit: limit, Offset: offset}, nil
}

// Count returns the number of history entries of an order
func (a *AuditRecorder) Count(ctx context.Context, actor models.Actor, orderID uuid.UUID) (int64, error) {
	if err := a.authorize(ctx, actor, orderID); err != nil {
		return 0, err
	}
	total, err := a.store.History.Count(ctx, orderID)
	if err != nil {
		return 0, fmt.Errorf("failed to count history: %w", err)
	}
	return total, nil
}

func (a *AuditRecorder) authorize(ctx context.Context, actor models.Actor, orderID uuid.UUID) error {
	order, err := loadOrder(ctx, a.store, orderID)
	if err != nil {
		// History outlives deleted orders; administrators can still read it.
		if apperrors.Is(err, apperrors.KindNotFound) && actor.IsAdmin {
			count, countErr := a.store.History.Count(ctx, orderID)
			if countErr == nil && count > 0 {
				return nil
			}
		}
		return err
	}
	if order.IsArchived {
		if actor.IsAdmin || order.IsOwnedBy(actor.ID) {
			return nil
		}
		return apperrors.Forbidden("only the owner or an administrator can read the history of an archived order")
	}
	if actor.IsAdmin {
		return nil
	}
	_, err = a.perms.Require(ctx, a.store, actor, order, models.CapabilityView)
	return err
}
