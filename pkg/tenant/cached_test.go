package tenant

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingDir struct {
	mu    sync.Mutex
	calls int
	next  func(key string) (*Identity, error)
}

func (d *countingDir) Resolve(_ context.Context, key string) (*Identity, error) {
	d.mu.Lock()
	d.calls++
	d.mu.Unlock()
	return d.next(key)
}

func (d *countingDir) ListAll(context.Context) ([]Summary, error) {
	return []Summary{{ID: "1", Name: "Dra. Camila"}}, nil
}

func (d *countingDir) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

func TestCached_CachesHits(t *testing.T) {
	inner := &countingDir{next: func(string) (*Identity, error) {
		return &Identity{ID: "1", DisplayName: "Dra. Camila", Status: StatusActive}, nil
	}}
	c := NewCached(inner, time.Minute)

	for i := 0; i < 3; i++ {
		id, err := c.Resolve(context.Background(), "camila123")
		require.NoError(t, err)
		require.NotNil(t, id)
		assert.Equal(t, "1", id.ID)
	}
	assert.Equal(t, 1, inner.count())
}

func TestCached_CachesMisses(t *testing.T) {
	inner := &countingDir{next: func(string) (*Identity, error) { return nil, nil }}
	c := NewCached(inner, time.Minute)

	for i := 0; i < 2; i++ {
		id, err := c.Resolve(context.Background(), "nope")
		require.NoError(t, err)
		assert.Nil(t, id)
	}
	assert.Equal(t, 1, inner.count())
}

func TestCached_NeverCachesUnavailable(t *testing.T) {
	fail := true
	inner := &countingDir{next: func(string) (*Identity, error) {
		if fail {
			return nil, fmt.Errorf("dial: %w", ErrUnavailable)
		}
		return &Identity{ID: "1", Status: StatusActive}, nil
	}}
	c := NewCached(inner, time.Minute)

	_, err := c.Resolve(context.Background(), "camila123")
	assert.True(t, errors.Is(err, ErrUnavailable))

	fail = false
	id, err := c.Resolve(context.Background(), "camila123")
	require.NoError(t, err)
	assert.Equal(t, "1", id.ID)
	assert.Equal(t, 2, inner.count())
}

func TestCached_Flush(t *testing.T) {
	inner := &countingDir{next: func(string) (*Identity, error) { return nil, nil }}
	c := NewCached(inner, time.Minute)

	_, _ = c.Resolve(context.Background(), "k")
	c.Flush()
	_, _ = c.Resolve(context.Background(), "k")
	assert.Equal(t, 2, inner.count())
}

func TestCached_NegativeTTLBounds(t *testing.T) {
	c := NewCached(&countingDir{}, 30*time.Second)
	assert.Equal(t, 3*time.Second, c.negTTL)

	short := NewCached(&countingDir{}, 500*time.Millisecond)
	assert.Equal(t, 500*time.Millisecond, short.negTTL)
}

func TestCached_PingWithoutStore(t *testing.T) {
	c := NewCached(NewStatic(DefaultFallback()), time.Minute)
	assert.NoError(t, c.Ping(context.Background()))

	all, err := c.ListAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
