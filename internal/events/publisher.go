// Tastedeck - Taste Deck Inventory Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastedeck

// Package events publishes inventory events through Watermill.
//
// With events.nats_url set, messages go to NATS JetStream (the stream is
// auto-provisioned). Otherwise an in-process gochannel pub/sub is used and
// the same topics can be subscribed to locally. Publishing never blocks a
// caller on a missing subscriber, and a disabled publisher drops everything.
package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	natsgo "github.com/nats-io/nats.go"

	"github.com/tomtom215/tastedeck/internal/config"
	"github.com/tomtom215/tastedeck/internal/logging"
	"github.com/tomtom215/tastedeck/internal/metrics"
)

// ErrNoLocalSubscriber is returned by Subscribe when events leave the process.
var ErrNoLocalSubscriber = errors.New("local subscriptions require the in-process transport")

// Publisher sends inventory events. The zero value is not usable; a nil
// *Publisher drops events, which keeps optional wiring simple.
type Publisher struct {
	publisher  message.Publisher
	subscriber message.Subscriber // Only for the gochannel transport
	prefix     string
	transport  string

	mu     sync.RWMutex
	closed bool
}

// New builds a publisher for cfg. It returns nil without error when events
// are disabled.
func New(cfg *config.EventsConfig) (*Publisher, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	logger := watermill.NewSlogLogger(logging.NewSlogLogger())
	p := &Publisher{prefix: cfg.TopicPrefix}

	if cfg.NATSURL == "" {
		ch := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, logger)
		p.publisher = ch
		p.subscriber = ch
		p.transport = "gochannel"
		return p, nil
	}

	pub, err := newNATSPublisher(cfg.NATSURL, logger)
	if err != nil {
		return nil, err
	}
	p.publisher = pub
	p.transport = "nats"
	return p, nil
}

func newNATSPublisher(url string, logger watermill.LoggerAdapter) (message.Publisher, error) {
	natsOpts := []natsgo.Option{
		natsgo.Name("tastedeck"),
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(2 * time.Second),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{"url": nc.ConnectedUrl()})
		}),
	}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         url,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			AutoProvision: true,
			TrackMsgId:    true,
			PublishOptions: []natsgo.PubOpt{
				natsgo.RetryAttempts(3),
				natsgo.RetryWait(100 * time.Millisecond),
			},
		},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill publisher: %w", err)
	}
	return pub, nil
}

// Transport names the active backend: gochannel or nats.
func (p *Publisher) Transport() string {
	if p == nil {
		return "disabled"
	}
	return p.transport
}

// Topic returns the full topic name for suffix.
func (p *Publisher) Topic(suffix string) string {
	if p == nil || p.prefix == "" {
		return suffix
	}
	return p.prefix + "." + suffix
}

// PublishDishStored emits a dish.stored event.
func (p *Publisher) PublishDishStored(ctx context.Context, e *DishStored) error {
	if p == nil {
		return nil
	}
	e.prepare()
	return p.publishJSON(ctx, TopicDishStored, e.EventID, e)
}

// PublishRefillFinished emits a refill.finished event.
func (p *Publisher) PublishRefillFinished(ctx context.Context, e *RefillFinished) error {
	if p == nil {
		return nil
	}
	e.prepare()
	return p.publishJSON(ctx, TopicRefillFinished, e.EventID, e)
}

func (p *Publisher) publishJSON(ctx context.Context, suffix, id string, v any) error {
	topic := p.Topic(suffix)

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return fmt.Errorf("publisher is closed")
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("serialize %s event: %w", suffix, err)
	}

	msg := message.NewMessage(id, data)
	msg.SetContext(ctx)
	msg.Metadata.Set("schema_version", fmt.Sprint(SchemaVersion))
	if reqID := logging.RequestIDFromContext(ctx); reqID != "" {
		msg.Metadata.Set("request_id", reqID)
	}
	if p.transport == "nats" {
		msg.Metadata.Set(natsgo.MsgIdHdr, id)
	}

	err = p.publisher.Publish(topic, msg)
	metrics.RecordEventPublish(suffix, err)
	if err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Subscribe returns a channel of messages for suffix on the in-process
// transport. Messages must be acked.
func (p *Publisher) Subscribe(ctx context.Context, suffix string) (<-chan *message.Message, error) {
	if p == nil || p.subscriber == nil {
		return nil, ErrNoLocalSubscriber
	}
	return p.subscriber.Subscribe(ctx, p.Topic(suffix))
}

// Close shuts down the transport. It is safe to call more than once.
func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.publisher.Close()
}
