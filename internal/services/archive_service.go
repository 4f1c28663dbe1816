package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"order-access-service/internal/apperrors"
	"order-access-service/internal/events"
	"order-access-service/internal/metrics"
	"order-access-service/internal/models"
	"order-access-service/internal/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

// ArchiveListInput selects a page of archives
type ArchiveListInput struct {
	DepartmentID *uuid.UUID
	OnlyPending  bool
	Limit        int
	Offset       int
}

// ArchiveService snapshots archived orders and brings them back
type ArchiveService struct {
	store    *repository.Store
	audit    *AuditRecorder
	notifier events.Notifier
	metrics  *metrics.Metrics
	logger   *logrus.Entry
	now      Clock
}

// NewArchiveService creates a new ArchiveService
func NewArchiveService(store *repository.Store, audit *AuditRecorder, notifier events.Notifier, m *metrics.Metrics, logger *logrus.Logger) *ArchiveService {
	if notifier == nil {
		notifier = events.NoopNotifier{}
	}
	return &ArchiveService{
		store:    store,
		audit:    audit,
		notifier: notifier,
		metrics:  m,
		logger:   logger.WithField("component", "archive-service"),
		now:      UTCNow,
	}
}

// WithClock replaces the clock
func (s *ArchiveService) WithClock(clock Clock) *ArchiveService {
	s.now = clock
	return s
}

// Snapshot copies order, its live grants and attachment metadata into a new
// restorable archive row. It runs inside the caller's archive transaction.
func (s *ArchiveService) Snapshot(ctx context.Context, tx *repository.Store, order *models.Order, reason string, archivedBy uuid.UUID, at time.Time) (*models.ArchivedOrder, error) {
	grants, err := tx.Grants.ListForOrder(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load grants for snapshot: %w", err)
	}
	attachments, err := tx.Orders.ListAttachments(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load attachments for snapshot: %w", err)
	}

	payload, err := json.Marshal(models.ArchiveSnapshot{
		Grants:      *grants,
		Attachments: attachments,
		UpdatedAt:   order.UpdatedAt,
		UpdatedBy:   order.UpdatedBy,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}

	archived := &models.ArchivedOrder{
		OrderID:         order.ID,
		ReferenceNumber: order.ReferenceNumber,
		Type:            order.Type,
		DepartmentID:    order.DepartmentID,
		SubjectID:       order.SubjectID,
		Title:           order.Title,
		Description:     order.Description,
		Priority:        order.Priority,
		StatusAtArchive: order.Status,
		OwnerID:         order.OwnerID,
		ExpirationDate:  order.ExpirationDate,
		IsPublic:        order.IsPublic,
		OrderCreatedAt:  order.CreatedAt,
		OrderCreatedBy:  order.CreatedBy,
		Snapshot:        datatypes.JSON(payload),
		Reason:          reason,
		ArchivedBy:      archivedBy,
		ArchivedAt:      at,
		CanBeRestored:   true,
	}
	if err := tx.Archives.Create(ctx, archived); err != nil {
		return nil, fmt.Errorf("failed to create archive: %w", err)
	}
	return archived, nil
}

// DecodeSnapshot returns the grants and attachments stored in an archive
func DecodeSnapshot(archived *models.ArchivedOrder) (*models.ArchiveSnapshot, error) {
	var snapshot models.ArchiveSnapshot
	if len(archived.Snapshot) == 0 {
		return &snapshot, nil
	}
	if err := json.Unmarshal(archived.Snapshot, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &snapshot, nil
}

// Restore reactivates the archived order under its original identity and
// reference number, back in Pending. An expiration date that has already
// passed is cleared. The archive row stays as evidence and is marked consumed.
func (s *ArchiveService) Restore(ctx context.Context, actor models.Actor, archiveID uuid.UUID) (*models.Order, error) {
	var restored *models.Order
	var archived *models.ArchivedOrder

	err := s.store.WithTransaction(ctx, func(tx *repository.Store) error {
		var err error
		archived, err = s.loadArchive(ctx, tx, archiveID)
		if err != nil {
			return err
		}
		if !actor.IsAdmin && archived.OwnerID != actor.ID {
			return apperrors.Forbidden("only the owner or an administrator can restore this order")
		}
		if archived.RestoredAt != nil {
			return apperrors.Conflict("archive %s was already restored", archiveID)
		}
		if !archived.CanBeRestored {
			return apperrors.Conflict("archive %s cannot be restored", archiveID)
		}

		order, err := tx.Orders.GetByID(ctx, archived.OrderID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperrors.Conflict("order %s no longer exists", archived.ReferenceNumber)
			}
			return fmt.Errorf("failed to load archived order: %w", err)
		}
		if !order.IsArchived {
			return apperrors.Conflict("order %s is already active", archived.ReferenceNumber)
		}

		taken, err := tx.Orders.ActiveReferenceExists(ctx, archived.ReferenceNumber, &order.ID)
		if err != nil {
			return fmt.Errorf("failed to check reference number: %w", err)
		}
		if taken {
			return apperrors.Conflict("reference number %s is used by an active order", archived.ReferenceNumber).
				WithDetail("referenceNumber", archived.ReferenceNumber)
		}

		now := s.now()
		order.ReferenceNumber = archived.ReferenceNumber
		order.Type = archived.Type
		order.DepartmentID = archived.DepartmentID
		order.SubjectID = archived.SubjectID
		order.Title = archived.Title
		order.Description = archived.Description
		order.Priority = archived.Priority
		order.OwnerID = archived.OwnerID
		order.ExpirationDate = archived.ExpirationDate
		// A lapsed expiration would send the order straight back to the
		// sweep, so it is dropped and recorded below.
		var lapsed *time.Time
		if archived.ExpirationDate != nil && !archived.ExpirationDate.After(now) {
			lapsed = archived.ExpirationDate
			order.ExpirationDate = nil
		}
		order.IsPublic = archived.IsPublic
		order.CreatedAt = archived.OrderCreatedAt
		order.CreatedBy = archived.OrderCreatedBy

		if err := tx.Orders.Reactivate(ctx, order, actor.ID, now); err != nil {
			switch {
			case errors.Is(err, repository.ErrDuplicateReference):
				return apperrors.Conflict("reference number %s is used by an active order", archived.ReferenceNumber)
			case errors.Is(err, repository.ErrNotFound):
				return apperrors.Conflict("order %s is already active", archived.ReferenceNumber)
			}
			return fmt.Errorf("failed to reactivate order: %w", err)
		}

		consumed, err := tx.Archives.MarkRestored(ctx, archiveID, actor.ID, now)
		if err != nil {
			return fmt.Errorf("failed to mark archive restored: %w", err)
		}
		if !consumed {
			return apperrors.Conflict("archive %s was already restored", archiveID)
		}

		if err := s.audit.Append(ctx, tx, AuditEntry{
			OrderID:     order.ID,
			Action:      models.ActionRestored,
			Description: fmt.Sprintf("Restored from archive %s", archiveID),
			OldValue:    strPtr(models.OrderStatusArchived.String()),
			NewValue:    strPtr(models.OrderStatusPending.String()),
			Actor:       actor,
			At:          now,
		}); err != nil {
			return err
		}
		if lapsed != nil {
			if err := s.audit.Append(ctx, tx, AuditEntry{
				OrderID:     order.ID,
				Action:      models.ActionExpirationRemoved,
				Description: fmt.Sprintf("Lapsed expiration %s cleared on restore", formatTime(lapsed)),
				OldValue:    strPtr(formatTime(lapsed)),
				Actor:       actor,
				At:          now,
			}); err != nil {
				return err
			}
		}

		restored, err = tx.Orders.GetByID(ctx, order.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ObserveLifecycle(models.ActionRestored)
	event := events.NewOrderEvent(events.SubjectOrderRestored, restored, actor.ID)
	event.ArchiveID = &archived.ID
	event.PreviousStatus = models.OrderStatusArchived.String()
	event.NewStatus = restored.Status.String()
	s.notifier.Notify(ctx, event)

	s.logger.WithFields(logrus.Fields{
		"order_id":   restored.ID,
		"archive_id": archiveID,
		"actor_id":   actor.ID,
	}).Info("Order restored")
	return restored, nil
}

// PermanentlyDelete removes an archive for good. Only administrators may
// call it, and only for archives that can no longer be restored unless
// override is set. When the order is still archived it is purged together
// with its grants, attachments, history and every archive taken of it.
func (s *ArchiveService) PermanentlyDelete(ctx context.Context, actor models.Actor, archiveID uuid.UUID, override bool) error {
	if !actor.IsAdmin {
		return apperrors.Forbidden("only administrators can permanently delete archives")
	}

	var archived *models.ArchivedOrder
	purgedOrder := false

	err := s.store.WithTransaction(ctx, func(tx *repository.Store) error {
		var err error
		archived, err = s.loadArchive(ctx, tx, archiveID)
		if err != nil {
			return err
		}
		if archived.CanBeRestored && !override {
			return apperrors.Conflict("archive %s is still restorable; pass override to delete it", archiveID)
		}

		if err := tx.Archives.Delete(ctx, archiveID); err != nil {
			return fmt.Errorf("failed to delete archive: %w", err)
		}

		order, err := tx.Orders.GetByID(ctx, archived.OrderID)
		if errors.Is(err, repository.ErrNotFound) || (err == nil && !order.IsArchived) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to load archived order: %w", err)
		}

		others, err := tx.Archives.ListByOrder(ctx, order.ID)
		if err != nil {
			return fmt.Errorf("failed to list archives of order: %w", err)
		}
		for _, other := range others {
			if err := tx.Archives.Delete(ctx, other.ID); err != nil {
				return fmt.Errorf("failed to delete archive %s: %w", other.ID, err)
			}
		}
		if err := tx.Grants.DeleteForOrder(ctx, order.ID); err != nil {
			return fmt.Errorf("failed to delete grants: %w", err)
		}
		if err := tx.Orders.DeleteAttachments(ctx, order.ID); err != nil {
			return fmt.Errorf("failed to delete attachments: %w", err)
		}
		if err := tx.History.DeleteForOrder(ctx, order.ID); err != nil {
			return fmt.Errorf("failed to delete history: %w", err)
		}
		if err := tx.Orders.Delete(ctx, order.ID); err != nil {
			return fmt.Errorf("failed to delete order: %w", err)
		}
		purgedOrder = true
		return nil
	})
	if err != nil {
		return err
	}

	// The history is gone with the order, so this log line is the record.
	s.logger.WithFields(logrus.Fields{
		"archive_id":       archiveID,
		"order_id":         archived.OrderID,
		"reference_number": archived.ReferenceNumber,
		"owner_id":         archived.OwnerID,
		"actor_id":         actor.ID,
		"override":         override,
		"order_purged":     purgedOrder,
	}).Warn("Archive permanently deleted")

	if purgedOrder {
		s.metrics.ObserveLifecycle(models.ActionDeleted)
		event := events.OrderEvent{
			EventID:         uuid.New().String(),
			EventType:       events.SubjectOrderDeleted,
			OrderID:         archived.OrderID,
			ReferenceNumber: archived.ReferenceNumber,
			OwnerID:         archived.OwnerID,
			ActorID:         actor.ID,
			ArchiveID:       &archiveID,
			Reason:          "permanent deletion",
			Timestamp:       s.now(),
		}
		s.notifier.Notify(ctx, event)
	}
	return nil
}

// Get returns one archive to its owner or an administrator
func (s *ArchiveService) Get(ctx context.Context, actor models.Actor, archiveID uuid.UUID) (*models.ArchivedOrder, error) {
	archived, err := s.loadArchive(ctx, s.store, archiveID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin && archived.OwnerID != actor.ID {
		return nil, apperrors.Forbidden("only the owner or an administrator can view this archive")
	}
	return archived, nil
}

// List returns archives visible to the actor: all for administrators, the
// actor's own otherwise
func (s *ArchiveService) List(ctx context.Context, actor models.Actor, input ArchiveListInput) ([]models.ArchivedOrder, int64, error) {
	limit, offset := normalizePage(input.Limit, input.Offset)
	filter := repository.ArchiveFilter{
		DepartmentID: input.DepartmentID,
		OnlyPending:  input.OnlyPending,
	}
	if !actor.IsAdmin {
		filter.OwnerID = &actor.ID
	}
	archives, total, err := s.store.Archives.List(ctx, filter, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list archives: %w", err)
	}
	return archives, total, nil
}

func (s *ArchiveService) loadArchive(ctx context.Context, store *repository.Store, id uuid.UUID) (*models.ArchivedOrder, error) {
	archived, err := store.Archives.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("archived order").WithDetail("archiveId", id.String())
		}
		return nil, fmt.Errorf("failed to load archive: %w", err)
	}
	return archived, nil
}
