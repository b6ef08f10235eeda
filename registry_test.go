package selector

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mionet/selector/channel"
)

// fakeChannel is a minimal channel.Channel stub for registry bookkeeping
// tests that don't need a real socket.
type fakeChannel struct {
	id string
	fd int
}

func (f *fakeChannel) ID() string                      { return f.id }
func (f *fakeChannel) FD() int                         { return f.fd }
func (f *fakeChannel) FinishConnect() (bool, error)    { return true, nil }
func (f *fakeChannel) Prepare() error                  { return nil }
func (f *fakeChannel) Ready() bool                     { return true }
func (f *fakeChannel) Read() (channel.Receive, error)  { return nil, nil }
func (f *fakeChannel) Write() (channel.Send, error)    { return nil, nil }
func (f *fakeChannel) SetSend(send channel.Send) error { return nil }
func (f *fakeChannel) Mute()                           {}
func (f *fakeChannel) Unmute()                         {}
func (f *fakeChannel) IsMute() bool                    { return false }
func (f *fakeChannel) SocketDescription() string       { return f.id }
func (f *fakeChannel) Close() error                    { return nil }

func TestRegistry_InsertLookupRemove(t *testing.T) {
	r := newRegistry()
	ch := &fakeChannel{id: "conn-1", fd: 7}

	require.False(t, r.has("conn-1"))

	r.insert(ch, true)
	require.True(t, r.has("conn-1"))

	byID, ok := r.byIDLookup("conn-1")
	require.True(t, ok)
	require.Same(t, ch, byID.ch)
	require.True(t, byID.connectPending)

	byFD, ok := r.byFDLookup(7)
	require.True(t, ok)
	require.Same(t, byID, byFD)

	removed, ok := r.remove("conn-1")
	require.True(t, ok)
	require.Same(t, byID, removed)
	require.False(t, r.has("conn-1"))
	_, ok = r.byFDLookup(7)
	require.False(t, ok)
}

func TestRegistry_RemoveUnknown(t *testing.T) {
	r := newRegistry()
	_, ok := r.remove("nope")
	require.False(t, ok)
}

func TestRegistry_Ids(t *testing.T) {
	r := newRegistry()
	r.insert(&fakeChannel{id: "a", fd: 1}, false)
	r.insert(&fakeChannel{id: "b", fd: 2}, false)

	ids := r.ids()
	require.ElementsMatch(t, []string{"a", "b"}, ids)
}

func TestRegistry_StageReceive(t *testing.T) {
	r := newRegistry()
	ch := &fakeChannel{id: "a", fd: 1}
	r.insert(ch, false)
	e, _ := r.byIDLookup("a")

	recv := channel.NewNetworkReceive("a")
	r.stageReceive(e, recv)
	require.Len(t, e.staged, 1)
	require.Same(t, recv, e.staged[0])
}

func TestResults_Clear(t *testing.T) {
	var r results
	r.completedSends = []channel.Send{channel.NewNetworkSend("a", []byte("x"))}
	r.completedReceives = []channel.Receive{channel.NewNetworkReceive("a")}
	r.connected = []string{"a"}
	r.disconnected = []string{"stale"}
	r.failedSends = []string{"b", "c"}

	r.clear()

	require.Nil(t, r.completedSends)
	require.Nil(t, r.completedReceives)
	require.Nil(t, r.connected)
	require.Nil(t, r.failedSends)
	require.Equal(t, []string{"b", "c"}, r.disconnected)
}

func TestResults_ClearWithNoFailedSends(t *testing.T) {
	var r results
	r.disconnected = []string{"stale"}

	r.clear()

	require.Nil(t, r.disconnected)
}
