package chanutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnbounded_FIFOOrder(t *testing.T) {
	u := NewUnbounded[int]()
	defer u.Close()

	for i := 0; i < 100; i++ {
		require.NoError(t, u.Send(i))
	}

	for i := 0; i < 100; i++ {
		select {
		case v := <-u.Out():
			assert.Equal(t, i, v)
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for value %d", i)
		}
	}
}

func TestUnbounded_SendNeverBlocksWithoutReceiver(t *testing.T) {
	u := NewUnbounded[int]()
	defer u.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			_ = u.Send(i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("sends blocked with no receiver")
	}
}

func TestUnbounded_CloseDrainsBufferedValues(t *testing.T) {
	u := NewUnbounded[string]()
	require.NoError(t, u.Send("a"))
	require.NoError(t, u.Send("b"))
	u.Close()

	var got []string
	for v := range u.Out() {
		got = append(got, v)
	}
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestUnbounded_SendAfterClose(t *testing.T) {
	u := NewUnbounded[int]()
	u.Close()
	assert.ErrorIs(t, u.Send(1), ErrClosed)

	// Close is idempotent.
	u.Close()
}
