package services

import (
	"context"
	"testing"
	"time"

	"order-access-service/internal/apperrors"
	"order-access-service/internal/events"
	"order-access-service/internal/metrics"
	"order-access-service/internal/models"
	"order-access-service/internal/repository"
	"order-access-service/internal/testutil"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockNotifier is a mock implementation of events.Notifier
type MockNotifier struct {
	mock.Mock
}

// Ensure MockNotifier implements the interface
var _ events.Notifier = (*MockNotifier)(nil)

func (m *MockNotifier) Notify(ctx context.Context, event events.OrderEvent) {
	m.Called(ctx, event)
}

// published returns the events sent on subject, in call order
func (m *MockNotifier) published(subject string) []events.OrderEvent {
	var out []events.OrderEvent
	for _, call := range m.Calls {
		if call.Method != "Notify" {
			continue
		}
		event := call.Arguments.Get(1).(events.OrderEvent)
		if event.EventType == subject {
			out = append(out, event)
		}
	}
	return out
}

// harness wires every service over one in-memory database and a shared,
// manually advanced clock
type harness struct {
	store     *repository.Store
	f         testutil.Fixture
	notifier  *MockNotifier
	logHook   *logtest.Hook
	metrics   *metrics.Metrics
	perms     *PermissionService
	audit     *AuditRecorder
	grants    *GrantService
	archives  *ArchiveService
	lifecycle *LifecycleService
	now       time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	store := testutil.NewStore(t)
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	notifier := new(MockNotifier)
	notifier.On("Notify", mock.Anything, mock.Anything).Return()

	h := &harness{
		store:    store,
		f:        testutil.Seed(t, store),
		notifier: notifier,
		logHook:  hook,
		metrics:  metrics.New(),
		now:      time.Now().UTC().Truncate(time.Second),
	}
	clock := func() time.Time { return h.now }

	h.perms = NewPermissionService(store, nil, h.metrics, logger).WithClock(clock)
	h.audit = NewAuditRecorder(store, h.perms)
	h.grants = NewGrantService(store, h.perms, h.audit, h.metrics, logger).WithClock(clock)
	h.archives = NewArchiveService(store, h.audit, notifier, h.metrics, logger).WithClock(clock)
	h.lifecycle = NewLifecycleService(store, h.perms, h.audit, h.archives, notifier, h.metrics, logger, LifecycleConfig{
		SweepBatchSize: 50,
	}).WithClock(clock)
	return h
}

// advance moves the shared clock forward
func (h *harness) advance(d time.Duration) {
	h.now = h.now.Add(d)
}

func (h *harness) owner() models.Actor { return models.Actor{ID: h.f.Owner.ID} }
func (h *harness) other() models.Actor { return models.Actor{ID: h.f.Other.ID} }
func (h *harness) third() models.Actor { return models.Actor{ID: h.f.Third.ID} }
func (h *harness) admin() models.Actor {
	return models.Actor{ID: uuid.New(), IsAdmin: true, DepartmentsKnown: true}
}

// createOrder opens an order owned by the fixture owner through the lifecycle service
func (h *harness) createOrder(t *testing.T, reference string) *models.Order {
	t.Helper()
	order, err := h.lifecycle.Create(t.Context(), h.owner(), CreateOrderInput{
		ReferenceNumber: reference,
		DepartmentID:    h.f.Sales.ID,
		Title:           "Order " + reference,
	})
	require.NoError(t, err)
	h.advance(time.Second)
	return order
}

// historyActions returns the order's history actions in ascending order
func (h *harness) historyActions(t *testing.T, orderID uuid.UUID) []models.OrderAction {
	t.Helper()
	entries, err := h.store.History.List(t.Context(), orderID, repository.SortAsc, 0, 0)
	require.NoError(t, err)
	actions := make([]models.OrderAction, 0, len(entries))
	for _, e := range entries {
		actions = append(actions, e.Action)
	}
	return actions
}

func (h *harness) effective(t *testing.T, actor models.Actor, orderID uuid.UUID) models.EffectivePermission {
	t.Helper()
	perm, err := h.perms.Effective(t.Context(), actor, orderID)
	require.NoError(t, err)
	return *perm
}

func assertKind(t *testing.T, err error, kind apperrors.Kind) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, kind, apperrors.KindOf(err), "unexpected error: %v", err)
}
