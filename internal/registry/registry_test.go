package registry

import (
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

type countingHandle struct{ n atomic.Int32 }

func (h *countingHandle) Cancel() { h.n.Add(1) }

func TestAddRemove(t *testing.T) {
	r := New()
	h := &countingHandle{}
	r.Add("t1", h)
	require.True(t, r.Has("t1"))
	require.Equal(t, 1, r.Len())

	r.Remove("t1")
	r.Remove("t1")
	r.Remove("never")
	require.False(t, r.Has("t1"))
	require.Equal(t, 0, r.Len())
}

func TestCancel(t *testing.T) {
	r := New()
	h := &countingHandle{}
	r.Add("t1", h)

	require.True(t, r.Cancel("t1"))
	require.False(t, r.Cancel("t2"))
	require.EqualValues(t, 1, h.n.Load())
	require.True(t, r.Has("t1"))
}

func TestCancelAll(t *testing.T) {
	r := New()
	a, b := &countingHandle{}, &countingHandle{}
	r.Add("a", a)
	r.Add("b", b)
	require.Equal(t, 2, r.CancelAll())
	require.EqualValues(t, 1, a.n.Load())
	require.EqualValues(t, 1, b.n.Load())
}

func TestConcurrentAccess(t *testing.T) {
	r := New()
	var wg sync.WaitGroup
	for i := range 64 {
		wg.Add(1)
		go func(tok string) {
			defer wg.Done()
			r.Add(tok, &countingHandle{})
			r.Cancel(tok)
			r.Remove(tok)
		}(strconv.Itoa(i))
	}
	wg.Wait()
	require.Equal(t, 0, r.Len())
}
