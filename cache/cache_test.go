package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyCanonicalizesTimes(t *testing.T) {
	utc := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	est := utc.In(time.FixedZone("EST", -5*60*60))

	k1, err := Key("chart", "critical", utc)
	require.NoError(t, err)
	k2, err := Key("chart", "critical", est)
	require.NoError(t, err)

	// Same instant, different zone: identical key.
	assert.Equal(t, k1, k2)
	assert.Equal(t, `chart|"critical"|"2026-03-01T12:00:00Z"`, k1)
}

func TestKeyDistinguishesArguments(t *testing.T) {
	k1, err := Key("chart", "critical")
	require.NoError(t, err)
	k2, err := Key("chart", "high")
	require.NoError(t, err)
	assert.NotEqual(t, k1, k2)
}

func TestKeyUnserializableArgument(t *testing.T) {
	_, err := Key("chart", func() {})
	assert.Error(t, err)
}

func TestDoMemoizes(t *testing.T) {
	m := New(time.Minute)
	defer m.Close()

	calls := 0
	compute := func(ctx context.Context) ([]byte, error) {
		calls++
		return []byte(`{"x":[]}`), nil
	}

	first, err := m.Do(context.Background(), "chart", compute)
	require.NoError(t, err)
	second, err := m.Do(context.Background(), "chart", compute)
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	// Cached hits return the identical bytes, not a recomputed copy.
	assert.Same(t, &first[0], &second[0])
}

func TestDoDoesNotCacheErrors(t *testing.T) {
	m := New(time.Minute)
	defer m.Close()

	boom := errors.New("aggregation failed")
	calls := 0
	_, err := m.Do(context.Background(), "chart", func(ctx context.Context) ([]byte, error) {
		calls++
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)

	payload, err := m.Do(context.Background(), "chart", func(ctx context.Context) ([]byte, error) {
		calls++
		return []byte("ok"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("ok"), payload)
	assert.Equal(t, 2, calls)
}

func TestDoTTLExpires(t *testing.T) {
	m := New(time.Minute)
	defer m.Close()

	calls := 0
	compute := func(ctx context.Context) ([]byte, error) {
		calls++
		return []byte("payload"), nil
	}

	_, err := m.DoTTL(context.Background(), "chart", 20*time.Millisecond, compute)
	require.NoError(t, err)

	time.Sleep(60 * time.Millisecond)

	_, err = m.DoTTL(context.Background(), "chart", 20*time.Millisecond, compute)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}
