package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnboundedPushNeverBlocks(t *testing.T) {
	u := NewUnbounded[int]()
	defer u.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10000; i++ {
			require.NoError(t, u.Push(i))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Push blocked without a consumer")
	}

	for i := 0; i < 10000; i++ {
		select {
		case v := <-u.Out():
			require.Equal(t, i, v)
		case <-time.After(time.Second):
			t.Fatalf("item %d not delivered", i)
		}
	}
}

func TestUnboundedFinishDrains(t *testing.T) {
	u := NewUnbounded[string]()
	require.NoError(t, u.Push("a"))
	require.NoError(t, u.Push("b"))
	u.Finish()

	assert.ErrorIs(t, u.Push("c"), ErrChannelClosed)

	var got []string
	for v := range u.Out() {
		got = append(got, v)
	}
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestUnboundedCloseByConsumer(t *testing.T) {
	u := NewUnbounded[int]()
	require.NoError(t, u.Push(1))
	u.Close()

	assert.ErrorIs(t, u.Push(2), ErrChannelClosed)
	assert.Equal(t, 0, u.Len())

	select {
	case _, ok := <-u.Out():
		if ok {
			// The forwarder may have handed out the first item before
			// observing the close; the channel must still close.
			_, ok = <-u.Out()
		}
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("Out not closed after Close")
	}

	u.Close()
}

func TestUnboundedCloseAfterFinishReleasesForwarder(t *testing.T) {
	u := NewUnbounded[int]()
	for i := 0; i < 5; i++ {
		require.NoError(t, u.Push(i))
	}
	u.Finish()

	require.Equal(t, 0, <-u.Out())
	u.Close()

	extra := 0
	timeout := time.After(time.Second)
	for {
		select {
		case _, ok := <-u.Out():
			if !ok {
				assert.LessOrEqual(t, extra, 1)
				return
			}
			extra++
		case <-timeout:
			t.Fatal("forwarder still blocked after Close")
		}
	}
}
