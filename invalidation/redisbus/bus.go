// Package redisbus fans entitlement cache invalidations out to every engine
// instance through Redis pub/sub.
//
// Each process registers a Bus as a plugin. Local invalidations are
// published on a shared channel; messages from other instances are applied
// with Engine.ApplyRemoteInvalidation, which the bus itself ignores so a
// message is never echoed back.
package redisbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"

	"github.com/xraph/entitle/plugin"
)

// DefaultChannel is the pub/sub channel used when none is configured.
const DefaultChannel = "entitle:invalidations"

// Compile-time interface checks.
var (
	_ plugin.Plugin                    = (*Bus)(nil)
	_ plugin.OnInit                    = (*Bus)(nil)
	_ plugin.OnShutdown                = (*Bus)(nil)
	_ plugin.OnEntitlementsInvalidated = (*Bus)(nil)
)

// Invalidator applies invalidations received from other instances.
// *entitle.Engine implements it.
type Invalidator interface {
	ApplyRemoteInvalidation(ctx context.Context, tenantIDs ...string)
}

// Message is the payload published for one invalidation. An empty Tenants
// list flushes every tenant.
type Message struct {
	Origin  string   `json:"origin"`
	Tenants []string `json:"tenants,omitempty"`
	SentAt  int64    `json:"sent_at"`
}

// Encode serializes m for publishing.
func (m Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// Decode parses a published payload.
func Decode(payload []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(payload, &m); err != nil {
		return Message{}, fmt.Errorf("redisbus: decode message: %w", err)
	}
	if m.Origin == "" {
		return Message{}, errors.New("redisbus: message without origin")
	}
	return m, nil
}

// Bus publishes local invalidations and applies remote ones.
type Bus struct {
	client  *redis.Client
	channel string
	origin  string
	logger  *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures a Bus.
type Option func(*Bus)

// WithChannel sets the pub/sub channel.
func WithChannel(channel string) Option {
	return func(b *Bus) {
		if channel != "" {
			b.channel = channel
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bus) { b.logger = logger }
}

// WithOrigin overrides the random instance id stamped on published messages.
func WithOrigin(origin string) Option {
	return func(b *Bus) {
		if origin != "" {
			b.origin = origin
		}
	}
}

// New creates a Bus on client.
func New(client *redis.Client, opts ...Option) *Bus {
	b := &Bus{
		client:  client,
		channel: DefaultChannel,
		origin:  uuid.NewString(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name implements plugin.Plugin.
func (b *Bus) Name() string { return "redis-invalidation-bus" }

// Origin returns the instance id stamped on published messages.
func (b *Bus) Origin() string { return b.origin }

// Channel returns the pub/sub channel.
func (b *Bus) Channel() string { return b.channel }

// OnInit implements plugin.OnInit. It starts the subscriber when engine can
// apply remote invalidations.
func (b *Bus) OnInit(_ context.Context, engine any) error {
	inv, ok := engine.(Invalidator)
	if !ok {
		return fmt.Errorf("redisbus: %T cannot apply remote invalidations", engine)
	}
	return b.Start(inv)
}

// OnShutdown implements plugin.OnShutdown.
func (b *Bus) OnShutdown(ctx context.Context) error {
	return b.Stop(ctx)
}

// Start runs the subscriber in the background until Stop is called.
// The hook context is not used: it is bounded by the plugin timeout.
func (b *Bus) Start(inv Invalidator) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.cancel != nil {
		return errors.New("redisbus: already started")
	}

	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	b.done = make(chan struct{})

	go func() {
		defer close(b.done)
		if err := b.Run(ctx, inv); err != nil && !errors.Is(err, context.Canceled) {
			b.logger.Error("redisbus: subscriber stopped", "channel", b.channel, "error", err)
		}
	}()
	return nil
}

// Stop cancels the subscriber and waits for it to exit or ctx to end.
func (b *Bus) Stop(ctx context.Context) error {
	b.mu.Lock()
	cancel, done := b.cancel, b.done
	b.cancel, b.done = nil, nil
	b.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// OnEntitlementsInvalidated implements plugin.OnEntitlementsInvalidated.
// Remote invalidations are not republished.
func (b *Bus) OnEntitlementsInvalidated(ctx context.Context, tenantIDs []string, remote bool) error {
	if remote {
		return nil
	}
	return b.Publish(ctx, tenantIDs...)
}

// Publish announces an invalidation to the other instances. No tenants
// means every tenant.
func (b *Bus) Publish(ctx context.Context, tenantIDs ...string) error {
	payload, err := Message{
		Origin:  b.origin,
		Tenants: tenantIDs,
		SentAt:  time.Now().UnixMilli(),
	}.Encode()
	if err != nil {
		return err
	}

	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("redisbus: publish: %w", err)
	}
	return nil
}

// Run subscribes to the channel and applies remote invalidations until ctx
// is canceled. Messages published by this instance are skipped.
func (b *Bus) Run(ctx context.Context, inv Invalidator) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	// Wait for the subscription to be confirmed before consuming.
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("redisbus: subscribe %s: %w", b.channel, err)
	}

	b.logger.Info("redisbus: subscribed", "channel", b.channel, "origin", b.origin)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			b.handle(ctx, inv, msg.Payload)
		}
	}
}

func (b *Bus) handle(ctx context.Context, inv Invalidator, payload string) {
	m, err := Decode([]byte(payload))
	if err != nil {
		b.logger.Warn("redisbus: dropping message", "error", err)
		return
	}
	if m.Origin == b.origin {
		return
	}

	inv.ApplyRemoteInvalidation(ctx, m.Tenants...)

	b.logger.Debug("redisbus: applied remote invalidation",
		"origin", m.Origin,
		"tenants", m.Tenants,
	)
}
