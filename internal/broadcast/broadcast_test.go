package broadcast

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recvOne[T any](t *testing.T, r *Receiver[T]) T {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	v, err := r.Recv(ctx)
	require.NoError(t, err)
	return v
}

func TestChannel_AllReceiversSeeAllValues(t *testing.T) {
	c := New[int](10)
	r1 := c.Subscribe()
	r2 := c.Subscribe()

	require.NoError(t, c.Send(1))
	require.NoError(t, c.Send(2))

	assert.Equal(t, 1, recvOne(t, r1))
	assert.Equal(t, 2, recvOne(t, r1))
	assert.Equal(t, 1, recvOne(t, r2))
	assert.Equal(t, 2, recvOne(t, r2))
}

func TestChannel_OverflowReportsLag(t *testing.T) {
	c := New[int](3)
	r := c.Subscribe()

	for i := 0; i < 5; i++ {
		require.NoError(t, c.Send(i))
	}

	ctx := context.Background()
	_, err := r.Recv(ctx)
	var lag *LagError
	require.ErrorAs(t, err, &lag)
	assert.EqualValues(t, 2, lag.Missed)

	// The receiver continues from the oldest retained value.
	assert.Equal(t, 2, recvOne(t, r))
	assert.Equal(t, 3, recvOne(t, r))
	assert.Equal(t, 4, recvOne(t, r))
}

func TestChannel_RecvBlocksUntilSend(t *testing.T) {
	c := New[string](4)
	r := c.Subscribe()

	go func() {
		time.Sleep(10 * time.Millisecond)
		_ = c.Send("hello")
	}()

	assert.Equal(t, "hello", recvOne(t, r))
}

func TestChannel_CloseDrainsThenFails(t *testing.T) {
	c := New[int](4)
	r := c.Subscribe()
	require.NoError(t, c.Send(7))
	c.Close()

	assert.Equal(t, 7, recvOne(t, r))
	_, err := r.Recv(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, c.Send(8), ErrClosed)
}

func TestChannel_RecvHonorsContext(t *testing.T) {
	c := New[int](4)
	r := c.Subscribe()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := r.Recv(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
