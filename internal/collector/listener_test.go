package collector

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thierrydecker/myason/internal/pipeline"
)

func startListener(t *testing.T, peers map[string]struct{}) (*Listener, *pipeline.Queue[Datagram], int) {
	t.Helper()
	records := pipeline.NewQueue[Datagram](16)
	messages := pipeline.NewQueue[pipeline.Message](1024)
	l := NewListener(1, records, messages, "127.0.0.1", 0, peers)
	require.NoError(t, l.Start())
	t.Cleanup(l.Stop)
	port := l.conn.LocalAddr().(*net.UDPAddr).Port
	return l, records, port
}

func sendTo(t *testing.T, port int, payload []byte) {
	t.Helper()
	conn, err := net.DialUDP("udp", nil, &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: port})
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write(payload)
	require.NoError(t, err)
}

func waitForDatagram(records *pipeline.Queue[Datagram]) (Datagram, bool) {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if d, ok := records.TryGet(); ok {
			return d, true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return Datagram{}, false
}

func TestListenerForwardsWhitelistedPeer(t *testing.T) {
	_, records, port := startListener(t, map[string]struct{}{"127.0.0.1": {}})

	sendTo(t, port, []byte("payload"))

	d, ok := waitForDatagram(records)
	require.True(t, ok)
	assert.Equal(t, []byte("payload"), d.Payload)
	assert.Equal(t, "127.0.0.1", d.Peer.IP.String())
}

func TestListenerDropsUnknownPeer(t *testing.T) {
	// Empty whitelist rejects everything
	_, records, port := startListener(t, map[string]struct{}{})

	sendTo(t, port, []byte("payload"))

	// Give the listener time to have read and discarded it
	time.Sleep(300 * time.Millisecond)
	_, ok := records.TryGet()
	assert.False(t, ok)
}
