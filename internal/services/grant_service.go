package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"order-access-service/internal/apperrors"
	"order-access-service/internal/metrics"
	"order-access-service/internal/models"
	"order-access-service/internal/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// DirectPermissionInput is the body of a direct grant
type DirectPermissionInput struct {
	UserID      uuid.UUID  `json:"userId" binding:"required"`
	CanView     bool       `json:"canView"`
	CanEdit     bool       `json:"canEdit"`
	CanDelete   bool       `json:"canDelete"`
	CanShare    bool       `json:"canShare"`
	CanDownload bool       `json:"canDownload"`
	CanPrint    bool       `json:"canPrint"`
	CanComment  bool       `json:"canComment"`
	CanApprove  bool       `json:"canApprove"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
}

// DepartmentAccessInput is the body of a department grant
type DepartmentAccessInput struct {
	DepartmentID uuid.UUID          `json:"departmentId" binding:"required"`
	AccessLevel  models.AccessLevel `json:"accessLevel" binding:"required"`
	ExpiresAt    *time.Time         `json:"expiresAt,omitempty"`
}

// UserExceptionInput is the body of a user exception
type UserExceptionInput struct {
	UserID    uuid.UUID  `json:"userId" binding:"required"`
	Reason    string     `json:"reason"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// GrantService validates and records grant changes. Every mutation needs
// share permission on a live order and commits with exactly one history entry.
type GrantService struct {
	store   *repository.Store
	perms   *PermissionService
	audit   *AuditRecorder
	metrics *metrics.Metrics
	logger  *logrus.Entry
	now     Clock
}

// NewGrantService creates a new GrantService
func NewGrantService(store *repository.Store, perms *PermissionService, audit *AuditRecorder, m *metrics.Metrics, logger *logrus.Logger) *GrantService {
	return &GrantService{
		store:   store,
		perms:   perms,
		audit:   audit,
		metrics: m,
		logger:  logger.WithField("component", "grant-service"),
		now:     UTCNow,
	}
}

// WithClock replaces the clock
func (s *GrantService) WithClock(clock Clock) *GrantService {
	s.now = clock
	return s
}

// GrantDirectPermission records a direct grant. An existing grant for the
// same user stays stored but is shadowed by this newer one.
func (s *GrantService) GrantDirectPermission(ctx context.Context, actor models.Actor, orderID uuid.UUID, input DirectPermissionInput) (*models.DirectPermission, error) {
	now := s.now()
	if err := validateExpiry("expiresAt", input.ExpiresAt, now); err != nil {
		return nil, err
	}

	grant := &models.DirectPermission{
		OrderID:     orderID,
		UserID:      input.UserID,
		CanView:     input.CanView,
		CanEdit:     input.CanEdit,
		CanDelete:   input.CanDelete,
		CanShare:    input.CanShare,
		CanDownload: input.CanDownload,
		CanPrint:    input.CanPrint,
		CanComment:  input.CanComment,
		CanApprove:  input.CanApprove,
		GrantedBy:   actor.ID,
		GrantedAt:   now,
		ExpiresAt:   input.ExpiresAt,
	}

	err := s.mutate(ctx, actor, orderID, models.ActionGranted, func(tx *repository.Store, order *models.Order) (AuditEntry, error) {
		if err := s.requireUser(ctx, tx, input.UserID); err != nil {
			return AuditEntry{}, err
		}
		if err := tx.Grants.CreateDirect(ctx, grant); err != nil {
			return AuditEntry{}, fmt.Errorf("failed to create direct permission: %w", err)
		}
		summary := directSummary(grant)
		return AuditEntry{
			Description: fmt.Sprintf("Granted [%s] to user %s%s", summary, input.UserID, expirySuffix(input.ExpiresAt)),
			NewValue:    strPtr(summary),
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return grant, nil
}

// RevokeDirectPermission revokes the user's direct grants on the order
func (s *GrantService) RevokeDirectPermission(ctx context.Context, actor models.Actor, orderID, userID uuid.UUID) error {
	return s.mutate(ctx, actor, orderID, models.ActionRevoked, func(tx *repository.Store, order *models.Order) (AuditEntry, error) {
		count, err := tx.Grants.RevokeDirect(ctx, orderID, userID, actor.ID, s.now())
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return AuditEntry{}, apperrors.NotFound("direct permission").WithDetail("userId", userID.String())
			}
			return AuditEntry{}, fmt.Errorf("failed to revoke direct permission: %w", err)
		}
		return AuditEntry{
			Description: fmt.Sprintf("Revoked direct permissions of user %s (%d grant(s))", userID, count),
			OldValue:    strPtr(userID.String()),
		}, nil
	})
}

// GrantDepartmentAccess records a department grant
func (s *GrantService) GrantDepartmentAccess(ctx context.Context, actor models.Actor, orderID uuid.UUID, input DepartmentAccessInput) (*models.DepartmentAccess, error) {
	now := s.now()
	if !input.AccessLevel.IsValid() {
		return nil, apperrors.Validation("accessLevel must be 1 (view only), 2 (edit) or 3 (full)").
			WithDetail("field", "accessLevel")
	}
	if err := validateExpiry("expiresAt", input.ExpiresAt, now); err != nil {
		return nil, err
	}

	access := &models.DepartmentAccess{
		OrderID:      orderID,
		DepartmentID: input.DepartmentID,
		AccessLevel:  input.AccessLevel,
		GrantedBy:    actor.ID,
		GrantedAt:    now,
		ExpiresAt:    input.ExpiresAt,
	}

	err := s.mutate(ctx, actor, orderID, models.ActionDepartmentAccessGranted, func(tx *repository.Store, order *models.Order) (AuditEntry, error) {
		var lookup repository.UserLookup = tx.Directory
		exists, err := lookup.DepartmentExists(ctx, input.DepartmentID)
		if err != nil {
			return AuditEntry{}, fmt.Errorf("failed to look up department: %w", err)
		}
		if !exists {
			return AuditEntry{}, apperrors.NotFound("department").WithDetail("departmentId", input.DepartmentID.String())
		}
		// A department holds one live grant per order; a new level replaces
		// the old one instead of stacking beside it.
		previous, err := liveDepartmentGrant(ctx, tx, orderID, input.DepartmentID)
		if err != nil {
			return AuditEntry{}, err
		}
		if previous != nil {
			if _, err := tx.Grants.RevokeDepartmentAccess(ctx, orderID, input.DepartmentID, actor.ID, now); err != nil && !errors.Is(err, repository.ErrNotFound) {
				return AuditEntry{}, fmt.Errorf("failed to replace department access: %w", err)
			}
		}
		if err := tx.Grants.CreateDepartmentAccess(ctx, access); err != nil {
			return AuditEntry{}, fmt.Errorf("failed to create department access: %w", err)
		}
		entry := AuditEntry{
			Description: fmt.Sprintf("Granted %s access to department %s%s", input.AccessLevel, input.DepartmentID, expirySuffix(input.ExpiresAt)),
			NewValue:    strPtr(input.AccessLevel.String()),
		}
		if previous != nil {
			entry.Description = fmt.Sprintf("Changed access of department %s from %s to %s%s", input.DepartmentID, previous.AccessLevel, input.AccessLevel, expirySuffix(input.ExpiresAt))
			entry.OldValue = strPtr(previous.AccessLevel.String())
		}
		return entry, nil
	})
	if err != nil {
		return nil, err
	}
	return access, nil
}

// liveDepartmentGrant returns the department's most recent un-revoked grant
// on the order, or nil
func liveDepartmentGrant(ctx context.Context, tx *repository.Store, orderID, departmentID uuid.UUID) (*models.DepartmentAccess, error) {
	grants, err := tx.Grants.ListForOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load department access: %w", err)
	}
	var latest *models.DepartmentAccess
	for i := range grants.Departments {
		// rows arrive oldest first
		if grants.Departments[i].DepartmentID == departmentID {
			latest = &grants.Departments[i]
		}
	}
	return latest, nil
}

// RevokeDepartmentAccess revokes the department's grants on the order
func (s *GrantService) RevokeDepartmentAccess(ctx context.Context, actor models.Actor, orderID, departmentID uuid.UUID) error {
	return s.mutate(ctx, actor, orderID, models.ActionDepartmentAccessRevoked, func(tx *repository.Store, order *models.Order) (AuditEntry, error) {
		count, err := tx.Grants.RevokeDepartmentAccess(ctx, orderID, departmentID, actor.ID, s.now())
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return AuditEntry{}, apperrors.NotFound("department access").WithDetail("departmentId", departmentID.String())
			}
			return AuditEntry{}, fmt.Errorf("failed to revoke department access: %w", err)
		}
		return AuditEntry{
			Description: fmt.Sprintf("Revoked access of department %s (%d grant(s))", departmentID, count),
			OldValue:    strPtr(departmentID.String()),
		}, nil
	})
}

// AddUserException blocks a user from the order. Owners are never blocked
// by it; the resolver checks ownership first.
func (s *GrantService) AddUserException(ctx context.Context, actor models.Actor, orderID uuid.UUID, input UserExceptionInput) (*models.UserException, error) {
	now := s.now()
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		return nil, apperrors.Validation("reason is required").WithDetail("field", "reason")
	}
	if err := validateExpiry("expiresAt", input.ExpiresAt, now); err != nil {
		return nil, err
	}

	exception := &models.UserException{
		OrderID:   orderID,
		UserID:    input.UserID,
		Reason:    reason,
		CreatedBy: actor.ID,
		CreatedAt: now,
		ExpiresAt: input.ExpiresAt,
		IsActive:  true,
	}

	err := s.mutate(ctx, actor, orderID, models.ActionUserExceptionAdded, func(tx *repository.Store, order *models.Order) (AuditEntry, error) {
		if err := s.requireUser(ctx, tx, input.UserID); err != nil {
			return AuditEntry{}, err
		}
		if err := tx.Grants.CreateException(ctx, exception); err != nil {
			return AuditEntry{}, fmt.Errorf("failed to create user exception: %w", err)
		}
		return AuditEntry{
			Description: fmt.Sprintf("Excluded user %s: %s%s", input.UserID, reason, expirySuffix(input.ExpiresAt)),
			NewValue:    strPtr(reason),
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return exception, nil
}

// RemoveUserException lifts every active exception of the user
func (s *GrantService) RemoveUserException(ctx context.Context, actor models.Actor, orderID, userID uuid.UUID) error {
	return s.mutate(ctx, actor, orderID, models.ActionUserExceptionRemoved, func(tx *repository.Store, order *models.Order) (AuditEntry, error) {
		count, err := tx.Grants.RemoveExceptions(ctx, orderID, userID, actor.ID, s.now())
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return AuditEntry{}, apperrors.NotFound("user exception").WithDetail("userId", userID.String())
			}
			return AuditEntry{}, fmt.Errorf("failed to remove user exception: %w", err)
		}
		return AuditEntry{
			Description: fmt.Sprintf("Lifted exclusion of user %s (%d exception(s))", userID, count),
			OldValue:    strPtr(userID.String()),
		}, nil
	})
}

// ListGrants returns the live grants of an order to someone who may share it
func (s *GrantService) ListGrants(ctx context.Context, actor models.Actor, orderID uuid.UUID) (*models.OrderGrants, error) {
	order, err := loadOrder(ctx, s.store, orderID)
	if err != nil {
		return nil, err
	}
	if order.IsArchived {
		return nil, apperrors.Conflict("order %s is archived", order.ReferenceNumber)
	}
	if _, err := s.perms.Require(ctx, s.store, actor, order, models.CapabilityShare); err != nil {
		return nil, err
	}
	return s.perms.Grants(ctx, s.store, order, true)
}

// mutate runs fn inside a transaction after the common checks, bumps the
// grant version and appends the history entry fn describes
func (s *GrantService) mutate(ctx context.Context, actor models.Actor, orderID uuid.UUID, action models.OrderAction, fn func(tx *repository.Store, order *models.Order) (AuditEntry, error)) error {
	var version int64

	err := s.store.WithTransaction(ctx, func(tx *repository.Store) error {
		order, err := loadOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if order.IsArchived {
			return apperrors.Conflict("order %s is archived", order.ReferenceNumber)
		}
		if _, err := s.perms.Require(ctx, tx, actor, order, models.CapabilityShare); err != nil {
			return err
		}

		entry, err := fn(tx, order)
		if err != nil {
			return err
		}

		version, err = tx.Orders.BumpGrantVersion(ctx, orderID)
		if err != nil {
			return fmt.Errorf("failed to bump grant version: %w", err)
		}

		entry.OrderID = orderID
		entry.Action = action
		entry.Actor = actor
		entry.At = s.now()
		return s.audit.Append(ctx, tx, entry)
	})
	if err != nil {
		return err
	}

	s.perms.Invalidate(ctx, orderID, version)
	s.metrics.ObserveGrantMutation(action)
	s.logger.WithFields(logrus.Fields{
		"order_id": orderID,
		"action":   action.String(),
		"actor_id": actor.ID,
	}).Info("Grant changed")
	return nil
}

func (s *GrantService) requireUser(ctx context.Context, tx *repository.Store, userID uuid.UUID) error {
	var lookup repository.UserLookup = tx.Directory
	exists, err := lookup.UserExists(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to look up user: %w", err)
	}
	if !exists {
		return apperrors.NotFound("user").WithDetail("userId", userID.String())
	}
	return nil
}

func directSummary(g *models.DirectPermission) string {
	var caps []string
	for _, c := range []struct {
		on   bool
		name models.Capability
	}{
		{g.CanView, models.CapabilityView},
		{g.CanEdit, models.CapabilityEdit},
		{g.CanDelete, models.CapabilityDelete},
		{g.CanShare, models.CapabilityShare},
		{g.CanDownload, models.CapabilityDownload},
		{g.CanPrint, models.CapabilityPrint},
		{g.CanComment, models.CapabilityComment},
		{g.CanApprove, models.CapabilityApprove},
	} {
		if c.on {
			caps = append(caps, string(c.name))
		}
	}
	if len(caps) == 0 {
		return "none"
	}
	return strings.Join(caps, ",")
}

func expirySuffix(expiresAt *time.Time) string {
	if expiresAt == nil {
		return ""
	}
	return " until " + formatTime(expiresAt)
}
