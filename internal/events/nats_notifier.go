package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/sirupsen/logrus"
)

// publisher is the part of jetstream.JetStream the notifier uses
type publisher interface {
	Publish(ctx context.Context, subject string, data []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// NATSNotifier publishes lifecycle events to JetStream in the background
type NATSNotifier struct {
	nc      *nats.Conn
	js      publisher
	logger  *logrus.Entry
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewNATSNotifier connects to NATS and ensures the lifecycle stream exists
func NewNATSNotifier(url string, logger *logrus.Logger) (*NATSNotifier, error) {
	log := logger.WithField("component", "order-events")

	nc, err := nats.Connect(url,
		nats.Name("order-access-service"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.WithField("url", nc.ConnectedUrl()).Info("Reconnected to NATS")
		}),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.WithError(err).Warn("Disconnected from NATS")
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			log.Info("NATS connection closed")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      StreamName,
		Subjects:  []string{SubjectOrderArchived, SubjectOrderRestored, SubjectOrderStatusChanged, SubjectOrderDeleted},
		Retention: jetstream.LimitsPolicy,
		MaxAge:    7 * 24 * time.Hour,
		Storage:   jetstream.FileStorage,
		Replicas:  1,
	})
	if err != nil {
		log.WithError(err).Warn("Failed to ensure lifecycle stream (may already exist)")
	}

	return newNATSNotifier(nc, js, log), nil
}

func newNATSNotifier(nc *nats.Conn, js publisher, logger *logrus.Entry) *NATSNotifier {
	return &NATSNotifier{
		nc:      nc,
		js:      js,
		logger:  logger,
		timeout: 5 * time.Second,
	}
}

// Notify publishes the event asynchronously. The caller's context only
// contributes values; cancellation of the request does not cancel delivery.
func (n *NATSNotifier) Notify(ctx context.Context, event OrderEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		n.logger.WithError(err).WithField("event_type", event.EventType).Error("Failed to encode event")
		return
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()

		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
		defer cancel()

		if _, err := n.js.Publish(pubCtx, event.EventType, data, jetstream.WithMsgID(event.EventID)); err != nil {
			n.logger.WithError(err).WithFields(logrus.Fields{
				"event_type": event.EventType,
				"order_id":   event.OrderID,
			}).Warn("Failed to publish order event")
			return
		}
		n.logger.WithFields(logrus.Fields{
			"event_type": event.EventType,
			"order_id":   event.OrderID,
		}).Debug("Published order event")
	}()
}

// Close waits for in-flight publishes and drains the connection
func (n *NATSNotifier) Close() {
	n.wg.Wait()
	if n.nc != nil {
		if err := n.nc.Drain(); err != nil {
			n.nc.Close()
		}
	}
}
