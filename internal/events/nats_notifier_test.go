package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"order-access-service/internal/models"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	mu       sync.Mutex
	subjects []string
	payloads [][]byte
	err      error
}

func (f *fakePublisher) Publish(_ context.Context, subject string, data []byte, _ ...jetstream.PublishOpt) (*jetstream.PubAck, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subjects = append(f.subjects, subject)
	f.payloads = append(f.payloads, data)
	if f.err != nil {
		return nil, f.err
	}
	return &jetstream.PubAck{Stream: StreamName}, nil
}

func TestNATSNotifier_PublishesInBackground(t *testing.T) {
	logger, _ := test.NewNullLogger()
	fake := &fakePublisher{}
	n := newNATSNotifier(nil, fake, logrus.NewEntry(logger))

	order := &models.Order{ID: uuid.New(), ReferenceNumber: "ORD-9", OwnerID: uuid.New()}
	event := NewOrderEvent(SubjectOrderArchived, order, order.OwnerID)
	event.Reason = "automatic expiration"

	ctx, cancel := context.WithCancel(context.Background())
	n.Notify(ctx, event)
	cancel() // request cancellation must not stop delivery
	n.Close()

	require.Equal(t, []string{SubjectOrderArchived}, fake.subjects)

	var decoded OrderEvent
	require.NoError(t, json.Unmarshal(fake.payloads[0], &decoded))
	assert.Equal(t, order.ID, decoded.OrderID)
	assert.Equal(t, "ORD-9", decoded.ReferenceNumber)
	assert.Equal(t, "automatic expiration", decoded.Reason)
}

func TestNATSNotifier_FailureIsLoggedOnly(t *testing.T) {
	logger, hook := test.NewNullLogger()
	fake := &fakePublisher{err: errors.New("no responders")}
	n := newNATSNotifier(nil, fake, logrus.NewEntry(logger))

	order := &models.Order{ID: uuid.New(), ReferenceNumber: "ORD-10"}
	n.Notify(context.Background(), NewOrderEvent(SubjectOrderRestored, order, uuid.New()))
	n.Close()

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Equal(t, SubjectOrderRestored, hook.LastEntry().Data["event_type"])
}

func TestNoopNotifier(t *testing.T) {
	var n Notifier = NoopNotifier{}
	assert.NotPanics(t, func() {
		n.Notify(context.Background(), OrderEvent{EventType: SubjectOrderDeleted})
	})
}
