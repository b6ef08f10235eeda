package selector

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mionet/selector/channel"
)

func newTestSelector(t *testing.T) *Selector {
	t.Helper()
	sel, err := New(WithChannelBuilder(channel.NewPlaintextChannelBuilder()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sel.CloseAll() })
	return sel
}

func pollUntil(t *testing.T, sel *Selector, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		require.NoError(t, sel.Poll(20*time.Millisecond))
		if cond() {
			return
		}
	}
	t.Fatal("condition not met before deadline")
}

func TestSelector_ConnectRegisterSendReceive(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	acceptCh := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err == nil {
			acceptCh <- c
		}
	}()

	sel := newTestSelector(t)

	require.NoError(t, sel.Connect("client", ln.Addr().String(), UseDefaultBufferSize, UseDefaultBufferSize))

	var serverConn net.Conn
	select {
	case serverConn = <-acceptCh:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for accept")
	}
	require.NoError(t, sel.Register("server", serverConn))

	pollUntil(t, sel, 2*time.Second, func() bool {
		for _, id := range sel.Connected() {
			if id == "client" {
				return true
			}
		}
		return false
	})
	require.True(t, sel.IsChannelReady("client"))
	require.True(t, sel.IsChannelReady("server"))

	// A frame sent out the "server" channel lands on the peer socket,
	// which this same selector owns as "client"; the receive therefore
	// surfaces with the client id as its source.
	require.NoError(t, sel.Send(channel.NewNetworkSend("server", []byte("hello"))))

	pollUntil(t, sel, 2*time.Second, func() bool {
		for _, send := range sel.CompletedSends() {
			require.Equal(t, "server", send.Destination())
		}
		for _, recv := range sel.CompletedReceives() {
			if recv.Source() == "client" {
				require.Equal(t, "hello", string(recv.Payload()))
				return true
			}
		}
		return false
	})
}

func TestSelector_ConnectDuplicateID(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			_ = c
		}
	}()

	sel := newTestSelector(t)
	require.NoError(t, sel.Connect("dup", ln.Addr().String(), UseDefaultBufferSize, UseDefaultBufferSize))
	err = sel.Connect("dup", ln.Addr().String(), UseDefaultBufferSize, UseDefaultBufferSize)
	require.ErrorIs(t, err, ErrDuplicateID)
}

func TestSelector_SendUnknownDestination(t *testing.T) {
	sel := newTestSelector(t)
	err := sel.Send(channel.NewNetworkSend("ghost", []byte("x")))
	require.ErrorIs(t, err, ErrNoSuchConnection)
}

func TestSelector_SendInProgressRejectsSecond(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	acceptCh := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err == nil {
			acceptCh <- c
		}
	}()

	sel := newTestSelector(t)
	require.NoError(t, sel.Connect("client", ln.Addr().String(), UseDefaultBufferSize, UseDefaultBufferSize))
	var serverConn net.Conn
	select {
	case serverConn = <-acceptCh:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for accept")
	}
	require.NoError(t, sel.Register("server", serverConn))

	pollUntil(t, sel, 2*time.Second, func() bool { return sel.IsChannelReady("client") })

	require.NoError(t, sel.Send(channel.NewNetworkSend("server", []byte("a"))))
	err = sel.Send(channel.NewNetworkSend("server", []byte("b")))
	require.Error(t, err)
}

func TestSelector_MuteSuppressesReceive(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	acceptCh := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err == nil {
			acceptCh <- c
		}
	}()

	sel := newTestSelector(t)
	require.NoError(t, sel.Connect("client", ln.Addr().String(), UseDefaultBufferSize, UseDefaultBufferSize))
	var serverConn net.Conn
	select {
	case serverConn = <-acceptCh:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for accept")
	}
	require.NoError(t, sel.Register("server", serverConn))
	pollUntil(t, sel, 2*time.Second, func() bool { return sel.IsChannelReady("client") })

	// Mute the receiving side: the frame goes out the "server" channel and
	// arrives on the "client" channel's socket, so muting "client" is what
	// suppresses its delivery.
	require.NoError(t, sel.Mute("client"))
	require.NoError(t, sel.Send(channel.NewNetworkSend("server", []byte("muted-payload"))))

	for i := 0; i < 5; i++ {
		require.NoError(t, sel.Poll(20*time.Millisecond))
		for _, recv := range sel.CompletedReceives() {
			require.NotEqual(t, "client", recv.Source(), "receive should be suppressed while muted")
		}
	}

	require.NoError(t, sel.Unmute("client"))
	pollUntil(t, sel, 2*time.Second, func() bool {
		for _, recv := range sel.CompletedReceives() {
			if recv.Source() == "client" {
				return true
			}
		}
		return false
	})
}

func TestSelector_SendQueuedBeforeConnectCompletes(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	acceptCh := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err == nil {
			acceptCh <- c
		}
	}()

	sel := newTestSelector(t)
	require.NoError(t, sel.Connect("client", ln.Addr().String(), UseDefaultBufferSize, UseDefaultBufferSize))

	// Queue the send before any poll has run, i.e. while the connect may
	// still be pending; write interest must survive the connect phase's
	// interest switch to read-ready.
	require.NoError(t, sel.Send(channel.NewNetworkSend("client", []byte("early"))))

	select {
	case c := <-acceptCh:
		defer c.Close()
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for accept")
	}

	pollUntil(t, sel, 2*time.Second, func() bool {
		for _, send := range sel.CompletedSends() {
			if send.Destination() == "client" {
				return true
			}
		}
		return false
	})
}

func TestSelector_OneReceivePerChannelPerPoll(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	acceptCh := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err == nil {
			acceptCh <- c
		}
	}()

	sel := newTestSelector(t)
	require.NoError(t, sel.Connect("client", ln.Addr().String(), UseDefaultBufferSize, UseDefaultBufferSize))

	var serverConn net.Conn
	select {
	case serverConn = <-acceptCh:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for accept")
	}
	defer serverConn.Close()

	pollUntil(t, sel, 2*time.Second, func() bool { return sel.IsChannelReady("client") })

	// Deliver two complete frames in one burst so a single readiness
	// notification stages both; the drain step must still surface them
	// one per poll, in arrival order.
	for _, payload := range []string{"first", "second"} {
		done := false
		send := channel.NewNetworkSend("client", []byte(payload))
		writeDeadline := time.Now().Add(2 * time.Second)
		for !done {
			done, err = send.Write(serverConn)
			require.NoError(t, err)
			if time.Now().After(writeDeadline) {
				t.Fatal("timed out writing frame")
			}
		}
	}

	var got []string
	deadline := time.Now().Add(2 * time.Second)
	for len(got) < 2 && time.Now().Before(deadline) {
		require.NoError(t, sel.Poll(20*time.Millisecond))
		var thisPoll int
		for _, recv := range sel.CompletedReceives() {
			if recv.Source() == "client" {
				thisPoll++
				got = append(got, string(recv.Payload()))
			}
		}
		require.LessOrEqual(t, thisPoll, 1, "at most one receive per channel per poll")
	}
	require.Equal(t, []string{"first", "second"}, got)
}

func TestSelector_CloseRemovesChannel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			_ = c
		}
	}()

	sel := newTestSelector(t)
	require.NoError(t, sel.Connect("client", ln.Addr().String(), UseDefaultBufferSize, UseDefaultBufferSize))
	pollUntil(t, sel, 2*time.Second, func() bool { return sel.IsChannelReady("client") })

	sel.Close("client")
	_, ok := sel.Channel("client")
	require.False(t, ok)

	found := false
	for _, id := range sel.Disconnected() {
		if id == "client" {
			found = true
		}
	}
	require.True(t, found)
}

func TestSelector_PollRejectsNegativeTimeout(t *testing.T) {
	sel := newTestSelector(t)
	err := sel.Poll(-1 * time.Second)
	require.ErrorIs(t, err, ErrInvalidTimeout)
}

func TestSelector_OperationsAfterCloseAllFail(t *testing.T) {
	sel, err := New(WithChannelBuilder(channel.NewPlaintextChannelBuilder()))
	require.NoError(t, err)
	require.NoError(t, sel.CloseAll())

	err = sel.Connect("x", "127.0.0.1:1", UseDefaultBufferSize, UseDefaultBufferSize)
	require.ErrorIs(t, err, ErrSelectorClosed)

	err = sel.Poll(0)
	require.ErrorIs(t, err, ErrSelectorClosed)
}

func TestSelector_NewRequiresChannelBuilder(t *testing.T) {
	_, err := New()
	require.ErrorIs(t, err, errNoChannelBuilder)
}

func TestSelector_IdleReapEvictsStaleConnection(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	acceptCh := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err == nil {
			acceptCh <- c
		}
	}()

	now := time.Now()
	clock := func() time.Time { return now }

	sel, err := New(
		WithChannelBuilder(channel.NewPlaintextChannelBuilder()),
		WithClock(clock),
		WithConnectionMaxIdle(time.Minute),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sel.CloseAll() })

	require.NoError(t, sel.Connect("client", ln.Addr().String(), UseDefaultBufferSize, UseDefaultBufferSize))
	select {
	case <-acceptCh:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for accept")
	}

	pollUntil(t, sel, 2*time.Second, func() bool { return sel.IsChannelReady("client") })

	// Advance the fake clock well past the idle deadline and poll again;
	// the connection should be reaped even with no new readiness events.
	now = now.Add(2 * time.Minute)
	require.NoError(t, sel.Poll(0))

	_, ok := sel.Channel("client")
	require.False(t, ok)
}
