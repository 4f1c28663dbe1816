package permissions

import (
	"encoding/json"
	"testing"
	"time"

	"order-access-service/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func newOrder(owner uuid.UUID) *models.Order {
	return &models.Order{
		ID:              uuid.New(),
		ReferenceNumber: "ORD-1",
		OwnerID:         owner,
		Status:          models.OrderStatusPending,
	}
}

func ptr(t time.Time) *time.Time { return &t }

func directGrant(order *models.Order, user uuid.UUID, grantedAt time.Time, caps func(*models.DirectPermission)) models.DirectPermission {
	g := models.DirectPermission{
		ID:        uuid.New(),
		OrderID:   order.ID,
		UserID:    user,
		GrantedBy: order.OwnerID,
		GrantedAt: grantedAt,
	}
	if caps != nil {
		caps(&g)
	}
	return g
}

func deptGrant(order *models.Order, dept uuid.UUID, level models.AccessLevel) models.DepartmentAccess {
	return models.DepartmentAccess{
		ID:           uuid.New(),
		OrderID:      order.ID,
		DepartmentID: dept,
		AccessLevel:  level,
		GrantedBy:    order.OwnerID,
		GrantedAt:    now.Add(-time.Hour),
	}
}

func exception(order *models.Order, user uuid.UUID) models.UserException {
	return models.UserException{
		ID:        uuid.New(),
		OrderID:   order.ID,
		UserID:    user,
		Reason:    "conflict of interest",
		CreatedBy: order.OwnerID,
		CreatedAt: now.Add(-time.Hour),
		IsActive:  true,
	}
}

func assertNoCapabilities(t *testing.T, p models.EffectivePermission) {
	t.Helper()
	for _, c := range []models.Capability{
		models.CapabilityView, models.CapabilityEdit, models.CapabilityDelete, models.CapabilityShare,
		models.CapabilityDownload, models.CapabilityPrint, models.CapabilityComment, models.CapabilityApprove,
	} {
		assert.False(t, p.Has(c), "capability %s should be false", c)
	}
}

func TestResolve_Deterministic(t *testing.T) {
	owner, user, dept := uuid.New(), uuid.New(), uuid.New()
	order := newOrder(owner)
	grants := &models.OrderGrants{
		Direct:      []models.DirectPermission{directGrant(order, user, now.Add(-time.Minute), func(g *models.DirectPermission) { g.CanView = true })},
		Departments: []models.DepartmentAccess{deptGrant(order, dept, models.AccessLevelFull)},
	}
	actor := models.Actor{ID: user, DepartmentIDs: []uuid.UUID{dept}}

	first, err := json.Marshal(Resolve(order, grants, actor, now))
	require.NoError(t, err)
	second, err := json.Marshal(Resolve(order, grants, actor, now))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestResolve_OwnerSupremacy(t *testing.T) {
	owner, dept := uuid.New(), uuid.New()
	order := newOrder(owner)
	// Every kind of record that could restrict the owner, all active.
	grants := &models.OrderGrants{
		Direct:      []models.DirectPermission{directGrant(order, owner, now, nil)},
		Departments: []models.DepartmentAccess{deptGrant(order, dept, models.AccessLevelViewOnly)},
		Exceptions:  []models.UserException{exception(order, owner)},
	}

	p := Resolve(order, grants, models.Actor{ID: owner, DepartmentIDs: []uuid.UUID{dept}}, now)

	assert.Equal(t, models.SourceOwner, p.Source)
	assert.True(t, p.IsOwner)
	assert.False(t, p.IsExcluded)
	assert.True(t, p.CanView && p.CanEdit && p.CanDelete && p.CanShare && p.CanDownload && p.CanPrint && p.CanComment && p.CanApprove)
}

func TestResolve_ExclusionOverridesGrants(t *testing.T) {
	owner, user, dept := uuid.New(), uuid.New(), uuid.New()
	order := newOrder(owner)
	order.IsPublic = true
	grants := &models.OrderGrants{
		Direct: []models.DirectPermission{directGrant(order, user, now.Add(-time.Minute), func(g *models.DirectPermission) {
			g.CanView, g.CanEdit = true, true
		})},
		Departments: []models.DepartmentAccess{deptGrant(order, dept, models.AccessLevelFull)},
		Exceptions:  []models.UserException{exception(order, user)},
	}

	p := Resolve(order, grants, models.Actor{ID: user, DepartmentIDs: []uuid.UUID{dept}}, now)

	assert.Equal(t, models.SourceNone, p.Source)
	assert.True(t, p.IsExcluded)
	assert.False(t, p.IsOwner)
	assertNoCapabilities(t, p)
}

func TestResolve_ExceptionExpiryAndRemoval(t *testing.T) {
	owner, user := uuid.New(), uuid.New()
	order := newOrder(owner)

	t.Run("expired exception no longer applies", func(t *testing.T) {
		e := exception(order, user)
		e.ExpiresAt = ptr(now.Add(-time.Second))
		grants := &models.OrderGrants{
			Direct:     []models.DirectPermission{directGrant(order, user, now.Add(-time.Hour), func(g *models.DirectPermission) { g.CanView = true })},
			Exceptions: []models.UserException{e},
		}
		p := Resolve(order, grants, models.Actor{ID: user}, now)
		assert.Equal(t, models.SourceDirect, p.Source)
		assert.False(t, p.IsExcluded)
	})

	t.Run("inactive exception no longer applies", func(t *testing.T) {
		e := exception(order, user)
		e.IsActive = false
		order.IsPublic = true
		defer func() { order.IsPublic = false }()
		p := Resolve(order, &models.OrderGrants{Exceptions: []models.UserException{e}}, models.Actor{ID: user}, now)
		assert.Equal(t, models.SourcePublic, p.Source)
	})

	t.Run("expiry exactly at now counts as expired", func(t *testing.T) {
		e := exception(order, user)
		e.ExpiresAt = ptr(now)
		p := Resolve(order, &models.OrderGrants{Exceptions: []models.UserException{e}}, models.Actor{ID: user}, now)
		assert.False(t, p.IsExcluded)
	})
}

func TestResolve_ExpiredDirectFallsThrough(t *testing.T) {
	owner, user, dept := uuid.New(), uuid.New(), uuid.New()
	order := newOrder(owner)
	expired := directGrant(order, user, now.Add(-2*time.Hour), func(g *models.DirectPermission) {
		g.CanView, g.CanEdit, g.CanDelete = true, true, true
		g.ExpiresAt = ptr(now.Add(-time.Minute))
	})

	t.Run("to department", func(t *testing.T) {
		grants := &models.OrderGrants{
			Direct:      []models.DirectPermission{expired},
			Departments: []models.DepartmentAccess{deptGrant(order, dept, models.AccessLevelViewOnly)},
		}
		p := Resolve(order, grants, models.Actor{ID: user, DepartmentIDs: []uuid.UUID{dept}}, now)
		assert.Equal(t, models.SourceDepartment, p.Source)
		assert.True(t, p.CanView)
		assert.False(t, p.CanEdit)
		assert.False(t, p.CanDelete)
	})

	t.Run("to none", func(t *testing.T) {
		p := Resolve(order, &models.OrderGrants{Direct: []models.DirectPermission{expired}}, models.Actor{ID: user}, now)
		assert.Equal(t, models.SourceNone, p.Source)
		assert.False(t, p.IsExcluded)
		assertNoCapabilities(t, p)
	})
}

func TestResolve_LatestDirectWins(t *testing.T) {
	owner, user := uuid.New(), uuid.New()
	order := newOrder(owner)

	older := directGrant(order, user, now.Add(-2*time.Hour), func(g *models.DirectPermission) {
		g.CanView, g.CanEdit, g.CanApprove = true, true, true
	})
	newer := directGrant(order, user, now.Add(-time.Hour), func(g *models.DirectPermission) { g.CanView = true })

	p := Resolve(order, &models.OrderGrants{Direct: []models.DirectPermission{newer, older}}, models.Actor{ID: user}, now)
	assert.Equal(t, models.SourceDirect, p.Source)
	assert.True(t, p.CanView)
	assert.False(t, p.CanEdit, "the older broader grant is shadowed")
	assert.False(t, p.CanApprove)

	t.Run("older grant applies once the newer one expires", func(t *testing.T) {
		expiring := newer
		expiring.ExpiresAt = ptr(now.Add(-time.Second))
		p := Resolve(order, &models.OrderGrants{Direct: []models.DirectPermission{older, expiring}}, models.Actor{ID: user}, now)
		assert.True(t, p.CanEdit)
	})

	t.Run("revoked grants are ignored", func(t *testing.T) {
		revoked := newer
		revoked.RevokedAt = ptr(now.Add(-time.Minute))
		p := Resolve(order, &models.OrderGrants{Direct: []models.DirectPermission{revoked}}, models.Actor{ID: user}, now)
		assert.Equal(t, models.SourceNone, p.Source)
	})
}

func TestResolve_DirectCopiesCapabilitiesVerbatim(t *testing.T) {
	owner, user, dept := uuid.New(), uuid.New(), uuid.New()
	order := newOrder(owner)
	// A narrow direct grant still beats a broad department grant.
	grants := &models.OrderGrants{
		Direct: []models.DirectPermission{directGrant(order, user, now.Add(-time.Minute), func(g *models.DirectPermission) {
			g.CanComment, g.CanPrint = true, true
		})},
		Departments: []models.DepartmentAccess{deptGrant(order, dept, models.AccessLevelFull)},
	}

	p := Resolve(order, grants, models.Actor{ID: user, DepartmentIDs: []uuid.UUID{dept}}, now)

	assert.Equal(t, models.SourceDirect, p.Source)
	assert.False(t, p.CanView)
	assert.True(t, p.CanComment)
	assert.True(t, p.CanPrint)
	assert.False(t, p.CanShare)
}

func TestResolve_DepartmentLevels(t *testing.T) {
	owner, user := uuid.New(), uuid.New()
	order := newOrder(owner)

	tests := []struct {
		name  string
		level models.AccessLevel
		want  map[models.Capability]bool
	}{
		{
			name:  "view only",
			level: models.AccessLevelViewOnly,
			want: map[models.Capability]bool{
				models.CapabilityView: true, models.CapabilityDownload: true, models.CapabilityPrint: true,
			},
		},
		{
			name:  "edit",
			level: models.AccessLevelEdit,
			want: map[models.Capability]bool{
				models.CapabilityView: true, models.CapabilityDownload: true, models.CapabilityPrint: true,
				models.CapabilityEdit: true, models.CapabilityComment: true,
			},
		},
		{
			name:  "full",
			level: models.AccessLevelFull,
			want: map[models.Capability]bool{
				models.CapabilityView: true, models.CapabilityDownload: true, models.CapabilityPrint: true,
				models.CapabilityEdit: true, models.CapabilityComment: true,
				models.CapabilityDelete: true, models.CapabilityShare: true, models.CapabilityApprove: true,
			},
		},
	}

	all := []models.Capability{
		models.CapabilityView, models.CapabilityEdit, models.CapabilityDelete, models.CapabilityShare,
		models.CapabilityDownload, models.CapabilityPrint, models.CapabilityComment, models.CapabilityApprove,
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dept := uuid.New()
			grants := &models.OrderGrants{Departments: []models.DepartmentAccess{deptGrant(order, dept, tt.level)}}
			p := Resolve(order, grants, models.Actor{ID: user, DepartmentIDs: []uuid.UUID{dept}}, now)

			assert.Equal(t, models.SourceDepartment, p.Source)
			for _, c := range all {
				assert.Equal(t, tt.want[c], p.Has(c), "capability %s", c)
			}
		})
	}
}

func TestResolve_DepartmentOrdinalDominance(t *testing.T) {
	owner, user := uuid.New(), uuid.New()
	viewDept, fullDept, otherDept := uuid.New(), uuid.New(), uuid.New()
	order := newOrder(owner)
	grants := &models.OrderGrants{Departments: []models.DepartmentAccess{
		deptGrant(order, viewDept, models.AccessLevelViewOnly),
		deptGrant(order, fullDept, models.AccessLevelFull),
		deptGrant(order, otherDept, models.AccessLevelEdit),
	}}

	got := Resolve(order, grants, models.Actor{ID: user, DepartmentIDs: []uuid.UUID{viewDept, fullDept}}, now)
	onlyFull := Resolve(order, &models.OrderGrants{Departments: grants.Departments[1:2]}, models.Actor{ID: user, DepartmentIDs: []uuid.UUID{fullDept}}, now)

	assert.Equal(t, onlyFull, got)
	assert.True(t, got.CanApprove)

	t.Run("expired full grant leaves view only", func(t *testing.T) {
		expired := grants.Departments[1]
		expired.ExpiresAt = ptr(now.Add(-time.Hour))
		g := &models.OrderGrants{Departments: []models.DepartmentAccess{grants.Departments[0], expired}}
		p := Resolve(order, g, models.Actor{ID: user, DepartmentIDs: []uuid.UUID{viewDept, fullDept}}, now)
		assert.True(t, p.CanView)
		assert.False(t, p.CanEdit)
	})

	t.Run("non-member departments are ignored", func(t *testing.T) {
		p := Resolve(order, grants, models.Actor{ID: user, DepartmentIDs: []uuid.UUID{uuid.New()}}, now)
		assert.Equal(t, models.SourceNone, p.Source)
	})
}

func TestResolve_Public(t *testing.T) {
	owner, user := uuid.New(), uuid.New()
	order := newOrder(owner)
	order.IsPublic = true

	p := Resolve(order, nil, models.Actor{ID: user}, now)

	assert.Equal(t, models.SourcePublic, p.Source)
	assert.True(t, p.CanView)
	assert.False(t, p.CanDownload)
	assert.False(t, p.CanEdit)
}

func TestResolve_ArchivedOrderGrantsNothing(t *testing.T) {
	owner, user := uuid.New(), uuid.New()
	order := newOrder(owner)
	order.IsArchived = true
	order.IsPublic = true
	grants := &models.OrderGrants{Direct: []models.DirectPermission{directGrant(order, user, now, func(g *models.DirectPermission) { g.CanView = true })}}

	ownerView := Resolve(order, grants, models.Actor{ID: owner}, now)
	assert.Equal(t, models.SourceNone, ownerView.Source)
	assert.True(t, ownerView.IsOwner)
	assertNoCapabilities(t, ownerView)

	userView := Resolve(order, grants, models.Actor{ID: user}, now)
	assert.Equal(t, models.SourceNone, userView.Source)
	assertNoCapabilities(t, userView)
}

func TestResolve_GrantsForOtherOrdersIgnored(t *testing.T) {
	owner, user := uuid.New(), uuid.New()
	order := newOrder(owner)
	other := newOrder(owner)
	grants := &models.OrderGrants{
		Direct:     []models.DirectPermission{directGrant(other, user, now, func(g *models.DirectPermission) { g.CanView = true })},
		Exceptions: []models.UserException{exception(other, user)},
	}

	p := Resolve(order, grants, models.Actor{ID: user}, now)
	assert.Equal(t, models.SourceNone, p.Source)
	assert.False(t, p.IsExcluded)
}

// Owner U1 shares a private order with U2, excludes U2, then lifts the exclusion.
func TestResolve_ShareExcludeRestoreScenario(t *testing.T) {
	u1, u2 := uuid.New(), uuid.New()
	order := newOrder(u1)
	grants := &models.OrderGrants{}
	actor := models.Actor{ID: u2}

	p := Resolve(order, grants, actor, now)
	assert.False(t, p.CanView)
	assert.Equal(t, models.SourceNone, p.Source)

	grants.Direct = append(grants.Direct, directGrant(order, u2, now.Add(-time.Minute), func(g *models.DirectPermission) {
		g.CanView, g.CanEdit = true, true
	}))
	granted := Resolve(order, grants, actor, now)
	assert.Equal(t, models.SourceDirect, granted.Source)
	assert.True(t, granted.CanView)
	assert.True(t, granted.CanEdit)
	assert.False(t, granted.CanDelete)

	grants.Exceptions = append(grants.Exceptions, exception(order, u2))
	excluded := Resolve(order, grants, actor, now)
	assert.Equal(t, models.SourceNone, excluded.Source)
	assert.True(t, excluded.IsExcluded)
	assertNoCapabilities(t, excluded)

	grants.Exceptions[0].IsActive = false
	assert.Equal(t, granted, Resolve(order, grants, actor, now))
}
