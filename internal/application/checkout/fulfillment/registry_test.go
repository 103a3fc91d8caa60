package fulfillment

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Dispatch(t *testing.T) {
	r := NewRegistry()
	var got map[string]interface{}
	require.NoError(t, r.Register("orders.complete", func(ctx context.Context, args map[string]interface{}) error {
		got = args
		return nil
	}))

	err := r.Dispatch(context.Background(), "orders.complete", map[string]interface{}{"order_id": float64(42)})
	require.NoError(t, err)
	assert.Equal(t, float64(42), got["order_id"])
}

func TestRegistry_DispatchUnknownOperation(t *testing.T) {
	r := NewRegistry()
	err := r.Dispatch(context.Background(), "orders.complete", nil)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown fulfillment operation")
}

func TestRegistry_DispatchPropagatesHandlerError(t *testing.T) {
	r := NewRegistry()
	handlerErr := errors.New("downstream unavailable")
	require.NoError(t, r.Register("orders.complete", func(ctx context.Context, args map[string]interface{}) error {
		return handlerErr
	}))

	err := r.Dispatch(context.Background(), "orders.complete", nil)
	assert.ErrorIs(t, err, handlerErr)
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()
	noop := func(ctx context.Context, args map[string]interface{}) error { return nil }

	assert.Error(t, r.Register("", noop))
	assert.Error(t, r.Register("orders.complete", nil))

	require.NoError(t, r.Register("orders.complete", noop))
	assert.Error(t, r.Register("orders.complete", noop), "duplicate registration must fail")
	assert.True(t, r.Has("orders.complete"))
	assert.False(t, r.Has("orders.refund"))
}
