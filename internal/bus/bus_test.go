package bus

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/reflex/internal/value"
)

func testBus(opts ...Option) *Bus {
	ids := make([]string, 64)
	for i := range ids {
		ids[i] = fmt.Sprintf("ev-%03d", i+1)
	}
	base := []Option{
		WithIDGenerator(NewFixedGenerator(ids...)),
		WithNow(func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }),
	}
	return New(append(base, opts...)...)
}

func TestEmit_TypedBeforeWildcard_RegistrationOrder(t *testing.T) {
	b := testBus()
	var order []string

	b.On("engagement.collected", func(ctx context.Context, ev Event) error {
		order = append(order, "typed-1")
		return nil
	})
	b.On("engagement.collected", func(ctx context.Context, ev Event) error {
		order = append(order, "typed-2")
		return nil
	})
	b.OnAny(func(ctx context.Context, ev Event) error {
		order = append(order, "wild-1")
		return nil
	})
	b.On("other.kind", func(ctx context.Context, ev Event) error {
		order = append(order, "other")
		return nil
	})

	b.Emit(context.Background(), "t1", "engagement.collected", value.Map{})

	assert.Equal(t, []string{"typed-1", "typed-2", "wild-1"}, order)
}

func TestEmit_HandlerErrorIsContained(t *testing.T) {
	b := testBus()
	var ran []string

	b.On("k", func(ctx context.Context, ev Event) error {
		ran = append(ran, "first")
		return fmt.Errorf("boom")
	})
	b.On("k", func(ctx context.Context, ev Event) error {
		ran = append(ran, "second")
		return nil
	})

	// Must not panic and must run the second handler.
	ev := b.Emit(context.Background(), "t1", "k", value.Map{})
	assert.Equal(t, []string{"first", "second"}, ran)
	assert.Equal(t, "ev-001", ev.ID)
}

func TestEmit_HandlerPanicIsContained(t *testing.T) {
	b := testBus()
	ran := false

	b.On("k", func(ctx context.Context, ev Event) error {
		panic("handler bug")
	})
	b.On("k", func(ctx context.Context, ev Event) error {
		ran = true
		return nil
	})

	b.Emit(context.Background(), "t1", "k", value.Map{})
	assert.True(t, ran)
}

func TestUnsubscribe(t *testing.T) {
	b := testBus()
	count := 0

	off := b.On("k", func(ctx context.Context, ev Event) error {
		count++
		return nil
	})

	b.Emit(context.Background(), "t1", "k", value.Map{})
	off()
	off() // idempotent
	b.Emit(context.Background(), "t1", "k", value.Map{})

	assert.Equal(t, 1, count)
}

func TestHistory_FilterAndOrder(t *testing.T) {
	b := testBus()
	ctx := context.Background()

	b.Emit(ctx, "t1", "a", value.Map{"n": value.Num(1)})
	b.Emit(ctx, "t2", "a", value.Map{"n": value.Num(2)})
	b.Emit(ctx, "t1", "b", value.Map{"n": value.Num(3)})

	all := b.History("t1", "")
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].Kind)
	assert.Equal(t, "b", all[1].Kind)

	onlyB := b.History("t1", "b")
	require.Len(t, onlyB, 1)
	assert.Equal(t, value.Num(3), onlyB[0].Payload["n"])

	assert.Empty(t, b.History("t3", ""))
}

func TestHistory_EvictionIsGlobalOldestFirst(t *testing.T) {
	b := testBus(WithCapacity(3))
	ctx := context.Background()

	b.Emit(ctx, "low", "k", value.Map{})
	b.Emit(ctx, "high", "k", value.Map{})
	b.Emit(ctx, "high", "k", value.Map{})
	b.Emit(ctx, "high", "k", value.Map{})

	// The low-volume tenant's single event was the oldest and is gone.
	assert.Empty(t, b.History("low", ""))
	assert.Len(t, b.History("high", ""), 3)
	assert.Equal(t, 3, b.Len())
}

func TestEmit_RegistrationDuringDispatchDoesNotAffectInFlightEvent(t *testing.T) {
	b := testBus()
	var order []string

	b.On("k", func(ctx context.Context, ev Event) error {
		order = append(order, "outer")
		b.On("k", func(ctx context.Context, ev Event) error {
			order = append(order, "inner")
			return nil
		})
		return nil
	})

	b.Emit(context.Background(), "t1", "k", value.Map{})
	assert.Equal(t, []string{"outer"}, order)

	b.Emit(context.Background(), "t1", "k", value.Map{})
	assert.Equal(t, []string{"outer", "outer", "inner"}, order)
}
