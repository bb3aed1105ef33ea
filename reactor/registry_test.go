package reactor

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistryTracksClientsByDescriptor(t *testing.T) {
	r := NewRegistry()
	require.Zero(t, r.Len())

	a := newClient(7, "10.0.0.1")
	b := newClient(9, "10.0.0.2")
	defer a.release()
	defer b.release()

	r.Add(a)
	r.Add(b)
	require.Equal(t, 2, r.Len())

	got, ok := r.Get(7)
	require.True(t, ok)
	require.Same(t, a, got)

	r.Remove(7)
	require.Equal(t, 1, r.Len())
	_, ok = r.Get(7)
	require.False(t, ok)

	// Unknown descriptors are ignored.
	r.Remove(7)
	require.Equal(t, 1, r.Len())
}

func TestRegistryDrainEmptiesAndReturnsAll(t *testing.T) {
	r := NewRegistry()
	fds := []int{3, 4, 5, 6}
	for _, fd := range fds {
		r.Add(newClient(fd, "192.168.0.1"))
	}

	drained := r.Drain()
	require.Len(t, drained, len(fds))
	require.Zero(t, r.Len())

	seen := make(map[int]bool)
	for _, c := range drained {
		seen[c.FD()] = true
		c.release()
	}
	for _, fd := range fds {
		require.True(t, seen[fd], "descriptor %d missing from drain", fd)
	}

	require.Empty(t, r.Drain())
}

func TestClientIdentity(t *testing.T) {
	a := newClient(11, "172.16.0.1")
	b := newClient(12, "172.16.0.1")
	defer a.release()
	defer b.release()

	require.Equal(t, 11, a.FD())
	require.Equal(t, "172.16.0.1", a.Addr())
	require.NotEmpty(t, a.ID())
	require.NotEqual(t, a.ID(), b.ID())
	require.Len(t, a.buf, ReceiveBufferSize)
}

func TestClientPendingQueuePreservesOrderAcrossPartialWrites(t *testing.T) {
	c := newClient(13, "172.16.0.2")
	defer c.release()

	require.False(t, c.hasPending())
	c.enqueue([]byte("abcdef"))
	c.enqueue([]byte("ghi"))
	require.True(t, c.hasPending())

	require.Equal(t, "abcdef", string(c.peekPending()))
	c.advancePending(2)
	require.Equal(t, "cdef", string(c.peekPending()))
	c.advancePending(4)
	require.Equal(t, "ghi", string(c.peekPending()))
	c.advancePending(3)
	require.False(t, c.hasPending())
}

func TestClientEnqueueCopiesOutOfSharedBuffer(t *testing.T) {
	c := newClient(14, "172.16.0.3")
	defer c.release()

	scratch := []byte("original")
	c.enqueue(scratch)
	copy(scratch, "clobber!")

	require.Equal(t, "original", string(c.peekPending()))
}

func TestClientReleaseIsIdempotent(t *testing.T) {
	c := newClient(15, "172.16.0.4")
	c.enqueue([]byte("tail"))
	c.release()
	require.Nil(t, c.buf)
	require.False(t, c.hasPending())
	c.release()
}
