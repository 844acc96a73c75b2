package bus

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/reflex/internal/value"
)

// DefaultHistoryCapacity bounds the in-memory event log. Eviction is
// oldest-first and global across tenants: a high-volume tenant can starve
// a low-volume tenant's retention. Hosts that need per-tenant fairness
// should shard buses per tenant.
const DefaultHistoryCapacity = 500

// Handler processes one event. Errors are logged by the bus and never
// propagate to the emitter or to sibling handlers.
type Handler func(ctx context.Context, ev Event) error

// Unsubscribe deregisters a previously registered handler.
// Safe to call more than once.
type Unsubscribe func()

type registration struct {
	id      int64
	handler Handler
}

// Bus is a typed publish/subscribe channel keyed by event kind, with a
// bounded global history and wildcard observers.
//
// Concurrency model: within a single Emit, handlers run sequentially
// (typed handlers in registration order, then wildcard handlers), so side
// effects triggered by one event are deterministically ordered. Emit
// itself takes no global lock around handler invocation, so independent
// Emit calls may run concurrently; handlers that mutate shared host state
// must serialize themselves.
type Bus struct {
	mu       sync.Mutex
	nextID   int64
	byKind   map[string][]registration
	wildcard []registration
	history  []Event
	capacity int
	idGen    IDGenerator
	now      func() time.Time
	logger   *slog.Logger
}

// Option configures a Bus.
type Option func(*Bus)

// WithCapacity sets the history capacity. Values below 1 are ignored.
func WithCapacity(n int) Option {
	return func(b *Bus) {
		if n >= 1 {
			b.capacity = n
		}
	}
}

// WithIDGenerator sets the event ID generator. Tests use FixedGenerator
// for deterministic IDs.
func WithIDGenerator(g IDGenerator) Option {
	return func(b *Bus) { b.idGen = g }
}

// WithNow sets the timestamp source. Tests use a fixed clock.
func WithNow(now func() time.Time) Option {
	return func(b *Bus) { b.now = now }
}

// WithLogger sets the structured logger for handler failures.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bus) { b.logger = l }
}

// New creates a Bus with bounded history. State is instance-scoped:
// there is no process-wide bus.
func New(opts ...Option) *Bus {
	b := &Bus{
		byKind:   make(map[string][]registration),
		capacity: DefaultHistoryCapacity,
		idGen:    UUIDv7Generator{},
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Emit constructs an Event, appends it to the bounded history, then invokes
// every handler registered for kind followed by every wildcard handler, in
// registration order. Each handler invocation is isolated: a failing
// handler is logged and subsequent handlers still run. Emit never fails
// due to handler errors.
//
// Returns the constructed Event after all handlers have completed.
func (b *Bus) Emit(ctx context.Context, tenantID, kind string, payload value.Map) Event {
	ev := Event{
		ID:        b.idGen.Generate(),
		TenantID:  tenantID,
		Kind:      kind,
		Payload:   payload,
		Timestamp: b.now(),
	}

	b.mu.Lock()
	b.history = append(b.history, ev)
	if len(b.history) > b.capacity {
		// Oldest-first eviction, global across tenants.
		b.history = b.history[len(b.history)-b.capacity:]
	}
	// Snapshot handler sets so registration during dispatch cannot
	// mutate the fan-out of an in-flight event.
	typed := make([]registration, len(b.byKind[kind]))
	copy(typed, b.byKind[kind])
	wild := make([]registration, len(b.wildcard))
	copy(wild, b.wildcard)
	b.mu.Unlock()

	for _, reg := range typed {
		b.invoke(ctx, reg, ev)
	}
	for _, reg := range wild {
		b.invoke(ctx, reg, ev)
	}

	return ev
}

// invoke runs one handler with error containment. Panics are treated the
// same as returned errors: logged, not propagated.
func (b *Bus) invoke(ctx context.Context, reg registration, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				"event_id", ev.ID,
				"tenant_id", ev.TenantID,
				"kind", ev.Kind,
				"panic", r,
			)
		}
	}()

	if err := reg.handler(ctx, ev); err != nil {
		b.logger.Error("event handler failed",
			"error", err,
			"event_id", ev.ID,
			"tenant_id", ev.TenantID,
			"kind", ev.Kind,
		)
	}
}

// On registers a typed handler for one event kind.
// Returns the capability to deregister it.
func (b *Bus) On(kind string, h Handler) Unsubscribe {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.byKind[kind] = append(b.byKind[kind], registration{id: id, handler: h})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.byKind[kind] = remove(b.byKind[kind], id)
	}
}

// OnAny registers a wildcard handler invoked for every event, after all
// typed handlers. Returns the capability to deregister it.
func (b *Bus) OnAny(h Handler) Unsubscribe {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.wildcard = append(b.wildcard, registration{id: id, handler: h})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.wildcard = remove(b.wildcard, id)
	}
}

func remove(regs []registration, id int64) []registration {
	out := regs[:0]
	for _, reg := range regs {
		if reg.id != id {
			out = append(out, reg)
		}
	}
	return out
}

// History returns the retained events for a tenant in emission order.
// A non-empty kind filters further.
func (b *Bus) History(tenantID, kind string) []Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []Event
	for _, ev := range b.history {
		if ev.TenantID != tenantID {
			continue
		}
		if kind != "" && ev.Kind != kind {
			continue
		}
		out = append(out, ev)
	}
	return out
}

// Len returns the number of retained events across all tenants.
// Useful for monitoring and testing.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.history)
}
