package channel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPlaintextChannel_RoundTrip(t *testing.T) {
	client, server := tcpLoopback(t)
	defer client.Close()
	defer server.Close()

	clientCh, err := newPlaintextChannel("client", client, -1, false)
	require.NoError(t, err)
	require.True(t, clientCh.Ready())

	serverCh, err := newPlaintextChannel("server", server, -1, false)
	require.NoError(t, err)

	require.NoError(t, clientCh.SetSend(NewNetworkSend("server", []byte("ping"))))

	deadline := time.Now().Add(2 * time.Second)
	var completed Send
	for completed == nil {
		completed, err = clientCh.Write()
		require.NoError(t, err)
		if time.Now().After(deadline) {
			t.Fatal("timed out writing frame")
		}
	}
	require.Equal(t, "server", completed.Destination())

	var recv Receive
	for recv == nil {
		recv, err = serverCh.Read()
		require.NoError(t, err)
		if time.Now().After(deadline) {
			t.Fatal("timed out reading frame")
		}
	}
	require.Equal(t, "ping", string(recv.Payload()))
}

func TestPlaintextChannel_SetSendRejectsSecond(t *testing.T) {
	client, server := tcpLoopback(t)
	defer client.Close()
	defer server.Close()

	clientCh, err := newPlaintextChannel("client", client, -1, false)
	require.NoError(t, err)

	require.NoError(t, clientCh.SetSend(NewNetworkSend("server", []byte("a"))))
	err = clientCh.SetSend(NewNetworkSend("server", []byte("b")))
	require.ErrorIs(t, err, ErrSendInProgress)
}

func TestPlaintextChannel_MuteUnmute(t *testing.T) {
	client, server := tcpLoopback(t)
	defer client.Close()
	defer server.Close()

	ch, err := newPlaintextChannel("client", client, -1, false)
	require.NoError(t, err)

	require.False(t, ch.IsMute())
	ch.Mute()
	require.True(t, ch.IsMute())
	ch.Unmute()
	require.False(t, ch.IsMute())
}

func TestPlaintextChannel_FinishConnectAlreadyConnected(t *testing.T) {
	client, server := tcpLoopback(t)
	defer client.Close()
	defer server.Close()

	ch, err := newPlaintextChannel("client", client, -1, false)
	require.NoError(t, err)

	ok, err := ch.FinishConnect()
	require.NoError(t, err)
	require.True(t, ok)
}

func TestPlaintextChannel_FinishConnectInProgress(t *testing.T) {
	client, server := tcpLoopback(t)
	defer client.Close()
	defer server.Close()

	ch, err := newPlaintextChannel("client", client, -1, true)
	require.NoError(t, err)
	require.False(t, ch.Ready())

	ok, err := ch.FinishConnect()
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, ch.Ready())
}

func TestPlaintextChannel_SocketDescription(t *testing.T) {
	client, server := tcpLoopback(t)
	defer client.Close()
	defer server.Close()

	ch, err := newPlaintextChannel("client", client, -1, false)
	require.NoError(t, err)
	desc := ch.SocketDescription()
	require.Contains(t, desc, "->")
}
