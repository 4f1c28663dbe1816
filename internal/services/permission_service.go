package services

import (
	"context"
	"fmt"

	"order-access-service/internal/apperrors"
	"order-access-service/internal/cache"
	"order-access-service/internal/metrics"
	"order-access-service/internal/models"
	"order-access-service/internal/permissions"
	"order-access-service/internal/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// PermissionService loads what the resolver needs and runs it
type PermissionService struct {
	store   *repository.Store
	cache   *cache.GrantCache
	metrics *metrics.Metrics
	logger  *logrus.Entry
	now     Clock
}

// NewPermissionService creates a new PermissionService. cache and m may be nil.
func NewPermissionService(store *repository.Store, grantCache *cache.GrantCache, m *metrics.Metrics, logger *logrus.Logger) *PermissionService {
	return &PermissionService{
		store:   store,
		cache:   grantCache,
		metrics: m,
		logger:  logger.WithField("component", "permission-service"),
		now:     UTCNow,
	}
}

// WithClock replaces the clock
func (s *PermissionService) WithClock(clock Clock) *PermissionService {
	s.now = clock
	return s
}

// Effective resolves the actor's permission on an order from committed data
func (s *PermissionService) Effective(ctx context.Context, actor models.Actor, orderID uuid.UUID) (*models.EffectivePermission, error) {
	order, err := loadOrder(ctx, s.store, orderID)
	if err != nil {
		return nil, err
	}
	perm, err := s.resolve(ctx, s.store, actor, order, true)
	if err != nil {
		return nil, err
	}
	return &perm, nil
}

// EffectiveFor resolves against an already loaded order. Inside a transaction
// pass the transactional store; the cache is bypassed there so uncommitted
// grants never reach it.
func (s *PermissionService) EffectiveFor(ctx context.Context, store *repository.Store, actor models.Actor, order *models.Order) (models.EffectivePermission, error) {
	return s.resolve(ctx, store, actor, order, store == s.store)
}

// Require fails with Forbidden unless the actor holds capability on order
func (s *PermissionService) Require(ctx context.Context, store *repository.Store, actor models.Actor, order *models.Order, capability models.Capability) (models.EffectivePermission, error) {
	perm, err := s.EffectiveFor(ctx, store, actor, order)
	if err != nil {
		return perm, err
	}
	if !perm.Has(capability) {
		return perm, apperrors.Forbidden("missing %s permission on order %s", capability, order.ReferenceNumber).
			WithDetail("capability", string(capability)).
			WithDetail("excluded", perm.IsExcluded)
	}
	return perm, nil
}

// WithDepartments fills the actor's memberships from the directory when the
// identity layer did not supply them
func (s *PermissionService) WithDepartments(ctx context.Context, store *repository.Store, actor models.Actor) (models.Actor, error) {
	if actor.DepartmentsKnown {
		return actor, nil
	}
	var lookup repository.MembershipLookup = store.Directory
	ids, err := lookup.DepartmentIDsForUser(ctx, actor.ID)
	if err != nil {
		return actor, fmt.Errorf("failed to load department memberships: %w", err)
	}
	actor.DepartmentIDs = ids
	actor.DepartmentsKnown = true
	return actor, nil
}

// Grants returns the live grant rows of an order, through the cache when allowed
func (s *PermissionService) Grants(ctx context.Context, store *repository.Store, order *models.Order, cacheable bool) (*models.OrderGrants, error) {
	if cacheable && s.cache.IsAvailable() {
		cached, err := s.cache.Get(ctx, order.ID, order.GrantVersion)
		if err != nil {
			s.logger.WithError(err).WithField("order_id", order.ID).Warn("Grant cache read failed")
		} else if cached != nil {
			return cached, nil
		}
	}

	grants, err := store.Grants.ListForOrder(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load grants: %w", err)
	}

	if cacheable && s.cache.IsAvailable() {
		if err := s.cache.Set(ctx, order.ID, order.GrantVersion, grants); err != nil {
			s.logger.WithError(err).WithField("order_id", order.ID).Warn("Grant cache write failed")
		}
	}
	return grants, nil
}

// Invalidate drops the cache entry superseded by newVersion. Call after commit.
func (s *PermissionService) Invalidate(ctx context.Context, orderID uuid.UUID, newVersion int64) {
	if err := s.cache.Invalidate(ctx, orderID, newVersion); err != nil {
		s.logger.WithError(err).WithField("order_id", orderID).Warn("Grant cache invalidation failed")
	}
}

// Purge drops every cache entry of an order
func (s *PermissionService) Purge(ctx context.Context, orderID uuid.UUID) {
	if err := s.cache.Purge(ctx, orderID); err != nil {
		s.logger.WithError(err).WithField("order_id", orderID).Warn("Grant cache purge failed")
	}
}

func (s *PermissionService) resolve(ctx context.Context, store *repository.Store, actor models.Actor, order *models.Order, cacheable bool) (models.EffectivePermission, error) {
	actor, err := s.WithDepartments(ctx, store, actor)
	if err != nil {
		return models.EffectivePermission{}, err
	}

	// The owner short-circuits the chain, and archived orders resolve to
	// nothing, so neither needs grant rows.
	var grants *models.OrderGrants
	if !order.IsArchived && !order.IsOwnedBy(actor.ID) {
		grants, err = s.Grants(ctx, store, order, cacheable)
		if err != nil {
			return models.EffectivePermission{}, err
		}
	}

	perm := permissions.Resolve(order, grants, actor, s.now())
	s.metrics.ObserveResolution(perm.Source)
	return perm, nil
}
