package pending

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

func TestAwaitResolved(t *testing.T) {
	reg := NewRegistry()

	go func() {
		time.Sleep(10 * time.Millisecond)
		ok := reg.Resolve("call_1", map[string]interface{}{"answer": 42})
		assert.True(t, ok)
	}()

	value, err := reg.Await(context.Background(), "call_1", time.Second)
	require.NoError(t, err)

	data, ok := value.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 42, data["answer"])
}

func TestAwaitRejected(t *testing.T) {
	reg := NewRegistry()
	callErr := errors.New("storage: key not found")

	go func() {
		time.Sleep(10 * time.Millisecond)
		reg.Reject("call_2", callErr)
	}()

	_, err := reg.Await(context.Background(), "call_2", time.Second)
	assert.Equal(t, callErr, err)
}

func TestAwaitTimeout(t *testing.T) {
	reg := NewRegistry()

	start := time.Now()
	_, err := reg.Await(context.Background(), "call_3", 20*time.Millisecond)
	assert.Equal(t, ErrTimeout, err)
	assert.Less(t, time.Since(start), 500*time.Millisecond)

	// Slot is released, so a late reply is dropped
	assert.False(t, reg.Resolve("call_3", "late"))
	assert.Equal(t, 0, reg.Len())
}

func TestAwaitContextCancelled(t *testing.T) {
	reg := NewRegistry()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := reg.Await(ctx, "call_4", time.Second)
	assert.Equal(t, context.Canceled, err)
	assert.Equal(t, 0, reg.Len())
}

func TestCallRegistersBeforeSend(t *testing.T) {
	reg := NewRegistry()

	// Resolving from inside send proves the slot exists before the
	// request ever leaves, so a fast reply cannot be dropped.
	value, err := reg.Call(context.Background(), "call_fast", time.Second, func() error {
		require.True(t, reg.Resolve("call_fast", "pong"))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "pong", value)
	assert.Equal(t, 0, reg.Len())
}

func TestCallSendFailureReleasesSlot(t *testing.T) {
	reg := NewRegistry()
	sendErr := errors.New("bus is not attached")

	_, err := reg.Call(context.Background(), "call_6", time.Second, func() error {
		return sendErr
	})
	assert.Equal(t, sendErr, err)
	assert.Equal(t, 0, reg.Len())
	assert.False(t, reg.Resolve("call_6", "late"))
}

func TestDuplicateRegistration(t *testing.T) {
	reg := NewRegistry()

	_, err := reg.Register("call_5")
	require.NoError(t, err)

	_, err = reg.Register("call_5")
	assert.Equal(t, ErrDuplicate, err)
}

func TestResolveUnknown(t *testing.T) {
	reg := NewRegistry()
	assert.False(t, reg.Resolve("missing", nil))
	assert.False(t, reg.Reject("missing", errors.New("nope")))
}

func TestFlush(t *testing.T) {
	reg := NewRegistry()
	flushErr := errors.New("host crashed")

	var wg sync.WaitGroup
	errs := make([]error, 3)
	for i, id := range []string{"call_a", "call_b", "call_c"} {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, errs[i] = reg.Await(context.Background(), id, time.Second)
		}(i, id)
	}

	// Wait until all three are registered
	require.Eventually(t, func() bool { return reg.Len() == 3 }, time.Second, 5*time.Millisecond)

	flushed := reg.Flush(flushErr)
	assert.Equal(t, 3, flushed)

	wg.Wait()
	for _, err := range errs {
		assert.Equal(t, flushErr, err)
	}
	assert.Equal(t, 0, reg.Len())
}

func TestConcurrentCalls(t *testing.T) {
	reg := NewRegistry()

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("call_%d", i)
			ch, err := reg.Register(id)
			require.NoError(t, err)
			go reg.Resolve(id, i)
			out := <-ch
			assert.NoError(t, out.Err)
			assert.Equal(t, i, out.Value)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 0, reg.Len())
}
