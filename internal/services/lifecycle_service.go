package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"order-access-service/internal/apperrors"
	"order-access-service/internal/events"
	"order-access-service/internal/metrics"
	"order-access-service/internal/models"
	"order-access-service/internal/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// CreateOrderInput is the body of a new order
type CreateOrderInput struct {
	ReferenceNumber string               `json:"referenceNumber" binding:"required"`
	Type            models.OrderType     `json:"type"`
	DepartmentID    uuid.UUID            `json:"departmentId" binding:"required"`
	SubjectID       *uuid.UUID           `json:"subjectId,omitempty"`
	Title           string               `json:"title" binding:"required"`
	Description     string               `json:"description"`
	Priority        models.OrderPriority `json:"priority"`
	ExpirationDate  *time.Time           `json:"expirationDate,omitempty"`
	IsPublic        bool                 `json:"isPublic"`
}

// UpdateOrderInput changes descriptive fields; nil fields are left alone
type UpdateOrderInput struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
}

// AttachmentInput records metadata of a stored file
type AttachmentInput struct {
	FileName    string `json:"fileName" binding:"required"`
	ContentType string `json:"contentType"`
	SizeBytes   int64  `json:"sizeBytes"`
	StorageKey  string `json:"storageKey" binding:"required"`
}

// ListOrdersInput filters and pages the order list
type ListOrdersInput struct {
	Status       *models.OrderStatus
	Priority     *models.OrderPriority
	Type         *models.OrderType
	DepartmentID *uuid.UUID
	OwnedOnly    bool
	Search       string
	Limit        int
	Offset       int
}

// OrderView is an order with the caller's effective permission on it
type OrderView struct {
	Order      *models.Order              `json:"order"`
	Permission models.EffectivePermission `json:"permission"`
}

// SweepResult summarizes one expiration sweep
type SweepResult struct {
	Candidates int           `json:"candidates"`
	Archived   int           `json:"archived"`
	Skipped    int           `json:"skipped"`
	Failed     int           `json:"failed"`
	StartedAt  time.Time     `json:"startedAt"`
	Duration   time.Duration `json:"duration"`
}

// LifecycleConfig tunes the expiration sweep
type LifecycleConfig struct {
	SweepBatchSize int
	// SweepRate bounds archives per second; zero means unlimited
	SweepRate  float64
	SweepBurst int
	// ListCandidateLimit caps how many newest orders List resolves
	// permissions for. Older orders past the cap are not listed.
	ListCandidateLimit int
}

// LifecycleService owns order status, expiration, visibility and archival
type LifecycleService struct {
	store    *repository.Store
	perms    *PermissionService
	audit    *AuditRecorder
	archives *ArchiveService
	notifier events.Notifier
	metrics  *metrics.Metrics
	logger   *logrus.Entry
	limiter  *rate.Limiter
	batch    int
	listCap  int
	now      Clock
}

// NewLifecycleService creates a new LifecycleService
func NewLifecycleService(
	store *repository.Store,
	perms *PermissionService,
	audit *AuditRecorder,
	archives *ArchiveService,
	notifier events.Notifier,
	m *metrics.Metrics,
	logger *logrus.Logger,
	cfg LifecycleConfig,
) *LifecycleService {
	if notifier == nil {
		notifier = events.NoopNotifier{}
	}
	batch := cfg.SweepBatchSize
	if batch <= 0 {
		batch = 500
	}
	listCap := cfg.ListCandidateLimit
	if listCap <= 0 {
		listCap = 1000
	}
	var limiter *rate.Limiter
	if cfg.SweepRate > 0 {
		burst := cfg.SweepBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.SweepRate), burst)
	}

	return &LifecycleService{
		store:    store,
		perms:    perms,
		audit:    audit,
		archives: archives,
		notifier: notifier,
		metrics:  m,
		logger:   logger.WithField("component", "lifecycle-service"),
		limiter:  limiter,
		batch:    batch,
		listCap:  listCap,
		now:      UTCNow,
	}
}

// WithClock replaces the clock
func (s *LifecycleService) WithClock(clock Clock) *LifecycleService {
	s.now = clock
	return s
}

// Create opens a new Pending order owned by the actor
func (s *LifecycleService) Create(ctx context.Context, actor models.Actor, input CreateOrderInput) (*models.Order, error) {
	now := s.now()

	reference := strings.TrimSpace(input.ReferenceNumber)
	title := strings.TrimSpace(input.Title)
	if reference == "" {
		return nil, apperrors.Validation("referenceNumber is required").WithDetail("field", "referenceNumber")
	}
	if title == "" {
		return nil, apperrors.Validation("title is required").WithDetail("field", "title")
	}
	if input.Type == 0 {
		input.Type = models.OrderTypeIncoming
	}
	if !input.Type.IsValid() {
		return nil, apperrors.Validation("type must be 1 (incoming) or 2 (outgoing)").WithDetail("field", "type")
	}
	if input.Priority == 0 {
		input.Priority = models.PriorityNormal
	}
	if !input.Priority.IsValid() {
		return nil, apperrors.Validation("priority must be between 1 and 4").WithDetail("field", "priority")
	}
	if err := validateExpiry("expirationDate", input.ExpirationDate, now); err != nil {
		return nil, err
	}

	order := &models.Order{
		ReferenceNumber: reference,
		Type:            input.Type,
		DepartmentID:    input.DepartmentID,
		SubjectID:       input.SubjectID,
		Title:           title,
		Description:     input.Description,
		Status:          models.OrderStatusPending,
		Priority:        input.Priority,
		OwnerID:         actor.ID,
		ExpirationDate:  input.ExpirationDate,
		IsPublic:        input.IsPublic,
		CreatedAt:       now,
		CreatedBy:       actor.ID,
		UpdatedAt:       now,
	}

	err := s.store.WithTransaction(ctx, func(tx *repository.Store) error {
		var lookup repository.UserLookup = tx.Directory
		exists, err := lookup.DepartmentExists(ctx, input.DepartmentID)
		if err != nil {
			return fmt.Errorf("failed to look up department: %w", err)
		}
		if !exists {
			return apperrors.NotFound("department").WithDetail("departmentId", input.DepartmentID.String())
		}

		taken, err := tx.Orders.ActiveReferenceExists(ctx, reference, nil)
		if err != nil {
			return fmt.Errorf("failed to check reference number: %w", err)
		}
		if taken {
			return duplicateReference(reference)
		}

		if err := tx.Orders.Create(ctx, order); err != nil {
			if errors.Is(err, repository.ErrDuplicateReference) {
				return duplicateReference(reference)
			}
			return fmt.Errorf("failed to create order: %w", err)
		}

		return s.audit.Append(ctx, tx, AuditEntry{
			OrderID:     order.ID,
			Action:      models.ActionCreated,
			Description: fmt.Sprintf("Order %s created", reference),
			NewValue:    strPtr(models.OrderStatusPending.String()),
			Actor:       actor,
			At:          now,
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ObserveLifecycle(models.ActionCreated)
	return order, nil
}

// Get returns an order the actor can view. Owners and administrators can
// also see their archived orders here.
func (s *LifecycleService) Get(ctx context.Context, actor models.Actor, id uuid.UUID) (*OrderView, error) {
	order, err := loadOrder(ctx, s.store, id)
	if err != nil {
		return nil, err
	}

	if order.IsArchived {
		if !actor.IsAdmin && !order.IsOwnedBy(actor.ID) {
			return nil, apperrors.Forbidden("order %s is archived", order.ReferenceNumber)
		}
		perm, err := s.perms.EffectiveFor(ctx, s.store, actor, order)
		if err != nil {
			return nil, err
		}
		return &OrderView{Order: order, Permission: perm}, nil
	}

	perm, err := s.perms.Require(ctx, s.store, actor, order, models.CapabilityView)
	if err != nil {
		return nil, err
	}
	return &OrderView{Order: order, Permission: perm}, nil
}

// List returns the active orders the actor can view, newest first. Only the
// newest candidates up to the configured cap are resolved, so total counts
// visible orders within that window.
func (s *LifecycleService) List(ctx context.Context, actor models.Actor, input ListOrdersInput) ([]OrderView, int, error) {
	limit, offset := normalizePage(input.Limit, input.Offset)

	actor, err := s.perms.WithDepartments(ctx, s.store, actor)
	if err != nil {
		return nil, 0, err
	}

	filter := repository.OrderFilter{
		Status:        input.Status,
		Priority:      input.Priority,
		Type:          input.Type,
		DepartmentID:  input.DepartmentID,
		Search:        input.Search,
		VisibleTo:     &actor.ID,
		DepartmentIDs: actor.DepartmentIDs,
		Limit:         s.listCap,
	}
	if input.OwnedOnly {
		filter.OwnerID = &actor.ID
	}

	candidates, err := s.store.Orders.ListActive(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list orders: %w", err)
	}
	if len(candidates) == s.listCap {
		s.logger.WithFields(logrus.Fields{
			"actor_id": actor.ID,
			"cap":      s.listCap,
		}).Warn("Order listing hit the candidate cap; older orders are omitted")
	}

	visible := make([]OrderView, 0, len(candidates))
	for i := range candidates {
		order := &candidates[i]
		perm, err := s.perms.EffectiveFor(ctx, s.store, actor, order)
		if err != nil {
			return nil, 0, err
		}
		if perm.CanView {
			visible = append(visible, OrderView{Order: order, Permission: perm})
		}
	}

	total := len(visible)
	if offset >= total {
		return []OrderView{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return visible[offset:end], total, nil
}

// UpdateDetails changes title and description
func (s *LifecycleService) UpdateDetails(ctx context.Context, actor models.Actor, id uuid.UUID, input UpdateOrderInput) (*models.Order, error) {
	if input.Title == nil && input.Description == nil {
		return nil, apperrors.Validation("nothing to update")
	}
	if input.Title != nil && strings.TrimSpace(*input.Title) == "" {
		return nil, apperrors.Validation("title cannot be empty").WithDetail("field", "title")
	}

	return s.mutate(ctx, actor, id, models.CapabilityEdit, func(tx *repository.Store, order *models.Order) (map[string]interface{}, AuditEntry, error) {
		updates := map[string]interface{}{}
		var changed []string
		if input.Title != nil && strings.TrimSpace(*input.Title) != order.Title {
			updates["title"] = strings.TrimSpace(*input.Title)
			changed = append(changed, "title")
		}
		if input.Description != nil && *input.Description != order.Description {
			updates["description"] = *input.Description
			changed = append(changed, "description")
		}
		if len(changed) == 0 {
			return nil, AuditEntry{}, apperrors.Validation("nothing to update")
		}

		entry := AuditEntry{
			Action:      models.ActionUpdated,
			Description: "Updated " + strings.Join(changed, ", "),
		}
		if _, ok := updates["title"]; ok {
			entry.OldValue = strPtr(order.Title)
			entry.NewValue = strPtr(updates["title"].(string))
		}
		return updates, entry, nil
	})
}

// AddAttachment records attachment metadata on an order
func (s *LifecycleService) AddAttachment(ctx context.Context, actor models.Actor, id uuid.UUID, input AttachmentInput) (*models.OrderAttachment, error) {
	attachment := &models.OrderAttachment{
		OrderID:     id,
		FileName:    strings.TrimSpace(input.FileName),
		ContentType: input.ContentType,
		SizeBytes:   input.SizeBytes,
		StorageKey:  input.StorageKey,
		UploadedBy:  actor.ID,
	}
	if attachment.FileName == "" {
		return nil, apperrors.Validation("fileName is required").WithDetail("field", "fileName")
	}

	_, err := s.mutate(ctx, actor, id, models.CapabilityEdit, func(tx *repository.Store, order *models.Order) (map[string]interface{}, AuditEntry, error) {
		attachment.UploadedAt = s.now()
		if err := tx.Orders.AddAttachment(ctx, attachment); err != nil {
			return nil, AuditEntry{}, fmt.Errorf("failed to add attachment: %w", err)
		}
		return map[string]interface{}{}, AuditEntry{
			Action:      models.ActionUpdated,
			Description: fmt.Sprintf("Attached %s", attachment.FileName),
			NewValue:    strPtr(attachment.FileName),
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return attachment, nil
}

// ChangeStatus moves the order along Pending, InProgress, Completed, or to
// Cancelled from a non-terminal state
func (s *LifecycleService) ChangeStatus(ctx context.Context, actor models.Actor, id uuid.UUID, status models.OrderStatus) (*models.Order, error) {
	if !status.IsValid() {
		return nil, apperrors.Validation("unknown status %d", int(status)).WithDetail("field", "status")
	}
	if status == models.OrderStatusArchived {
		return nil, apperrors.Validation("use the archive operation to archive an order")
	}

	var previous models.OrderStatus
	order, err := s.mutate(ctx, actor, id, models.CapabilityEdit, func(tx *repository.Store, order *models.Order) (map[string]interface{}, AuditEntry, error) {
		if err := models.ValidateOrderStatusTransition(order.Status, status); err != nil {
			return nil, AuditEntry{}, apperrors.Validation("%s", err.Error()).
				WithDetail("allowed", GetAllowedStatuses(order.Status))
		}
		previous = order.Status
		return map[string]interface{}{"status": status}, AuditEntry{
			Action:      models.ActionStatusChanged,
			Description: fmt.Sprintf("Status changed from %s to %s", order.Status.DisplayName(), status.DisplayName()),
			OldValue:    strPtr(order.Status.String()),
			NewValue:    strPtr(status.String()),
		}, nil
	})
	if err != nil {
		return nil, err
	}

	event := events.NewOrderEvent(events.SubjectOrderStatusChanged, order, actor.ID)
	event.PreviousStatus = previous.String()
	event.NewStatus = order.Status.String()
	s.notifier.Notify(ctx, event)
	return order, nil
}

// GetAllowedStatuses lists the statuses reachable from current by name
func GetAllowedStatuses(current models.OrderStatus) []string {
	next := models.GetNextValidOrderStatuses(current)
	names := make([]string, 0, len(next))
	for _, status := range next {
		names = append(names, status.String())
	}
	sort.Strings(names)
	return names
}

// ChangePriority sets the order priority
func (s *LifecycleService) ChangePriority(ctx context.Context, actor models.Actor, id uuid.UUID, priority models.OrderPriority) (*models.Order, error) {
	if !priority.IsValid() {
		return nil, apperrors.Validation("priority must be between 1 and 4").WithDetail("field", "priority")
	}

	return s.mutate(ctx, actor, id, models.CapabilityEdit, func(tx *repository.Store, order *models.Order) (map[string]interface{}, AuditEntry, error) {
		if order.Priority == priority {
			return nil, AuditEntry{}, apperrors.Validation("priority is already %s", priority)
		}
		return map[string]interface{}{"priority": priority}, AuditEntry{
			Action:      models.ActionPriorityChanged,
			Description: fmt.Sprintf("Priority changed from %s to %s", order.Priority, priority),
			OldValue:    strPtr(order.Priority.String()),
			NewValue:    strPtr(priority.String()),
		}, nil
	})
}

// SetExpiration schedules the order for automatic archival at expiresAt
func (s *LifecycleService) SetExpiration(ctx context.Context, actor models.Actor, id uuid.UUID, expiresAt time.Time) (*models.Order, error) {
	expiresAt = expiresAt.UTC()
	if err := validateExpiry("expirationDate", &expiresAt, s.now()); err != nil {
		return nil, err
	}

	return s.mutate(ctx, actor, id, models.CapabilityEdit, func(tx *repository.Store, order *models.Order) (map[string]interface{}, AuditEntry, error) {
		var old *string
		if order.ExpirationDate != nil {
			old = strPtr(formatTime(order.ExpirationDate))
		}
		return map[string]interface{}{"expiration_date": expiresAt}, AuditEntry{
			Action:      models.ActionExpirationSet,
			Description: fmt.Sprintf("Expiration set to %s", formatTime(&expiresAt)),
			OldValue:    old,
			NewValue:    strPtr(formatTime(&expiresAt)),
		}, nil
	})
}

// RemoveExpiration clears the expiration date
func (s *LifecycleService) RemoveExpiration(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.Order, error) {
	return s.mutate(ctx, actor, id, models.CapabilityEdit, func(tx *repository.Store, order *models.Order) (map[string]interface{}, AuditEntry, error) {
		if order.ExpirationDate == nil {
			return nil, AuditEntry{}, apperrors.NotFound("expiration date")
		}
		return map[string]interface{}{"expiration_date": nil}, AuditEntry{
			Action:      models.ActionExpirationRemoved,
			Description: "Expiration removed",
			OldValue:    strPtr(formatTime(order.ExpirationDate)),
		}, nil
	})
}

// SetVisibility makes the order public or private
func (s *LifecycleService) SetVisibility(ctx context.Context, actor models.Actor, id uuid.UUID, isPublic bool) (*models.Order, error) {
	return s.mutate(ctx, actor, id, models.CapabilityShare, func(tx *repository.Store, order *models.Order) (map[string]interface{}, AuditEntry, error) {
		if order.IsPublic == isPublic {
			return nil, AuditEntry{}, apperrors.Validation("visibility is already %s", visibilityName(isPublic))
		}
		return map[string]interface{}{"is_public": isPublic}, AuditEntry{
			Action:      models.ActionVisibilityChanged,
			Description: fmt.Sprintf("Visibility changed to %s", visibilityName(isPublic)),
			OldValue:    strPtr(visibilityName(order.IsPublic)),
			NewValue:    strPtr(visibilityName(isPublic)),
		}, nil
	})
}

// Archive archives the order on its owner's request
func (s *LifecycleService) Archive(ctx context.Context, actor models.Actor, id uuid.UUID, reason string) (*models.ArchivedOrder, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "archived by owner"
	}

	var archived *models.ArchivedOrder
	var order *models.Order

	err := s.store.WithTransaction(ctx, func(tx *repository.Store) error {
		var err error
		order, err = loadOrder(ctx, tx, id)
		if err != nil {
			return err
		}
		if !order.IsOwnedBy(actor.ID) {
			return apperrors.Forbidden("only the owner can archive order %s", order.ReferenceNumber)
		}
		if order.IsArchived {
			return apperrors.Conflict("order %s is already archived", order.ReferenceNumber)
		}

		archived, err = s.archiveInTx(ctx, tx, order, actor, reason, s.now())
		if err != nil {
			return err
		}
		if archived == nil {
			return apperrors.Conflict("order %s is already archived", order.ReferenceNumber)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterArchive(ctx, order, archived, actor)
	return archived, nil
}

// Delete removes an active order. A terminal history entry is written first
// and the history itself is kept.
func (s *LifecycleService) Delete(ctx context.Context, actor models.Actor, id uuid.UUID) error {
	var order *models.Order

	err := s.store.WithTransaction(ctx, func(tx *repository.Store) error {
		var err error
		order, err = loadOrder(ctx, tx, id)
		if err != nil {
			return err
		}
		if !order.IsOwnedBy(actor.ID) {
			return apperrors.Forbidden("only the owner can delete order %s", order.ReferenceNumber)
		}
		if order.IsArchived {
			return apperrors.Conflict("order %s is archived; delete the archive instead", order.ReferenceNumber)
		}

		if err := s.audit.Append(ctx, tx, AuditEntry{
			OrderID:     order.ID,
			Action:      models.ActionDeleted,
			Description: fmt.Sprintf("Order %s deleted", order.ReferenceNumber),
			OldValue:    strPtr(order.Status.String()),
			Actor:       actor,
			At:          s.now(),
		}); err != nil {
			return err
		}
		if err := tx.Grants.DeleteForOrder(ctx, order.ID); err != nil {
			return fmt.Errorf("failed to delete grants: %w", err)
		}
		if err := tx.Orders.DeleteAttachments(ctx, order.ID); err != nil {
			return fmt.Errorf("failed to delete attachments: %w", err)
		}
		if err := tx.Orders.Delete(ctx, order.ID); err != nil {
			return fmt.Errorf("failed to delete order: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.perms.Purge(ctx, order.ID)
	s.metrics.ObserveLifecycle(models.ActionDeleted)
	s.notifier.Notify(ctx, events.NewOrderEvent(events.SubjectOrderDeleted, order, actor.ID))
	s.logger.WithFields(logrus.Fields{
		"order_id": order.ID,
		"actor_id": actor.ID,
	}).Info("Order deleted")
	return nil
}

// SweepExpired archives every active order whose expiration date has passed.
// Orders archived by someone else in the meantime are skipped silently, so
// overlapping runs archive each order once.
func (s *LifecycleService) SweepExpired(ctx context.Context) (*SweepResult, error) {
	start := time.Now()
	now := s.now()
	result := &SweepResult{StartedAt: now}

	candidates, err := s.store.Orders.FindExpired(ctx, now, s.batch)
	if err != nil {
		s.metrics.ObserveSweep(0, true, time.Since(start))
		return nil, fmt.Errorf("failed to find expired orders: %w", err)
	}
	result.Candidates = len(candidates)

	system := models.SystemActor()
	for i := range candidates {
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				result.Duration = time.Since(start)
				s.metrics.ObserveSweep(result.Archived, true, result.Duration)
				return result, err
			}
		}

		order, archived, err := s.archiveExpired(ctx, candidates[i].ID, now, system)
		if err != nil {
			result.Failed++
			s.logger.WithError(err).WithField("order_id", candidates[i].ID).Error("Failed to archive expired order")
			continue
		}
		if archived == nil {
			result.Skipped++
			continue
		}
		result.Archived++
		s.afterArchive(ctx, order, archived, system)
	}

	result.Duration = time.Since(start)
	s.metrics.ObserveSweep(result.Archived, result.Failed > 0, result.Duration)
	return result, nil
}

func (s *LifecycleService) archiveExpired(ctx context.Context, id uuid.UUID, now time.Time, system models.Actor) (*models.Order, *models.ArchivedOrder, error) {
	var order *models.Order
	var archived *models.ArchivedOrder

	err := s.store.WithTransaction(ctx, func(tx *repository.Store) error {
		current, err := tx.Orders.GetByID(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		// Re-check under the transaction: the order may have been archived
		// or had its expiration moved since selection.
		if current.IsArchived || current.ExpirationDate == nil || !current.ExpirationDate.Before(now) {
			return nil
		}
		order = current
		archived, err = s.archiveInTx(ctx, tx, current, system, models.ArchiveReasonExpiration, now)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return order, archived, nil
}

// archiveInTx claims the order and writes the snapshot and history entry, all
// stamped with now. It returns nil without error when another writer claimed
// the order first.
func (s *LifecycleService) archiveInTx(ctx context.Context, tx *repository.Store, order *models.Order, actor models.Actor, reason string, now time.Time) (*models.ArchivedOrder, error) {
	won, err := tx.Orders.ClaimForArchive(ctx, order.ID, repository.ArchiveClaim{
		ArchivedBy: actor.ID,
		Reason:     reason,
		At:         now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to claim order for archive: %w", err)
	}
	if !won {
		return nil, nil
	}

	archived, err := s.archives.Snapshot(ctx, tx, order, reason, actor.ID, now)
	if err != nil {
		return nil, err
	}

	if err := s.audit.Append(ctx, tx, AuditEntry{
		OrderID:     order.ID,
		Action:      models.ActionArchived,
		Description: fmt.Sprintf("Archived: %s", reason),
		OldValue:    strPtr(order.Status.String()),
		NewValue:    strPtr(models.OrderStatusArchived.String()),
		Actor:       actor,
		At:          now,
	}); err != nil {
		return nil, err
	}
	return archived, nil
}

func (s *LifecycleService) afterArchive(ctx context.Context, order *models.Order, archived *models.ArchivedOrder, actor models.Actor) {
	s.metrics.ObserveLifecycle(models.ActionArchived)

	event := events.NewOrderEvent(events.SubjectOrderArchived, order, actor.ID)
	event.ArchiveID = &archived.ID
	event.PreviousStatus = archived.StatusAtArchive.String()
	event.NewStatus = models.OrderStatusArchived.String()
	event.Reason = archived.Reason
	s.notifier.Notify(ctx, event)

	s.logger.WithFields(logrus.Fields{
		"order_id":   order.ID,
		"archive_id": archived.ID,
		"actor_id":   actor.ID,
		"reason":     archived.Reason,
	}).Info("Order archived")
}

// mutate applies fn's updates to a live order the actor holds capability on,
// together with fn's history entry, and returns the reloaded order
func (s *LifecycleService) mutate(
	ctx context.Context,
	actor models.Actor,
	id uuid.UUID,
	capability models.Capability,
	fn func(tx *repository.Store, order *models.Order) (map[string]interface{}, AuditEntry, error),
) (*models.Order, error) {
	var updated *models.Order
	var action models.OrderAction

	err := s.store.WithTransaction(ctx, func(tx *repository.Store) error {
		order, err := loadOrder(ctx, tx, id)
		if err != nil {
			return err
		}
		if order.IsArchived {
			return apperrors.Conflict("order %s is archived", order.ReferenceNumber)
		}
		if _, err := s.perms.Require(ctx, tx, actor, order, capability); err != nil {
			return err
		}

		updates, entry, err := fn(tx, order)
		if err != nil {
			return err
		}

		now := s.now()
		updates["updated_at"] = now
		updates["updated_by"] = actor.ID
		if err := tx.Orders.UpdateActive(ctx, id, updates); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperrors.Conflict("order %s was archived concurrently", order.ReferenceNumber)
			}
			return fmt.Errorf("failed to update order: %w", err)
		}

		entry.OrderID = id
		entry.Actor = actor
		entry.At = now
		action = entry.Action
		if err := s.audit.Append(ctx, tx, entry); err != nil {
			return err
		}

		updated, err = tx.Orders.GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ObserveLifecycle(action)
	return updated, nil
}

func duplicateReference(reference string) error {
	return apperrors.Conflict("reference number %s is used by an active order", reference).
		WithDetail("referenceNumber", reference)
}

func visibilityName(isPublic bool) string {
	if isPublic {
		return "public"
	}
	return "private"
}
