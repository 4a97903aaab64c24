package meta

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataRoundTripThroughContext(t *testing.T) {
	md := New()
	ctx := md.WithContext(context.Background())

	md.Set(KeyRequestID, "req-1")
	md.Set(KeyClientID, "1.2.3.4")

	assert.Equal(t, "req-1", RequestID(ctx))
	assert.Equal(t, "1.2.3.4", ClientID(ctx))
	assert.Same(t, md, FromContext(ctx))
}

func TestGetTypeMismatch(t *testing.T) {
	md := New()
	md.Set(KeyClientID, 42)
	ctx := md.WithContext(context.Background())

	_, err := Get[string](ctx, KeyClientID)
	require.Error(t, err)

	n, err := Get[int](ctx, KeyClientID)
	require.NoError(t, err)
	assert.Equal(t, 42, n)
}

func TestFromContextWithoutMetadata(t *testing.T) {
	ctx := context.Background()

	md := FromContext(ctx)
	require.NotNil(t, md)
	md.Set(KeyRequestID, "lost")

	assert.Empty(t, RequestID(ctx))
	_, err := Get[string](ctx, KeyRequestID)
	assert.Error(t, err)
}

func TestNilMetadataIsSafe(t *testing.T) {
	var md *Metadata
	md.Set("k", "v")
	_, ok := md.Lookup("k")
	assert.False(t, ok)
}
