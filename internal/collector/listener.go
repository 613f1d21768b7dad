package collector

import (
	"fmt"
	"net"
	"time"

	"github.com/pkg/errors"

	"github.com/thierrydecker/myason/internal/pipeline"
	"github.com/thierrydecker/myason/internal/wire"
)

// Datagram is one received payload annotated with its sender
type Datagram struct {
	Payload []byte
	Peer    *net.UDPAddr
}

// Listener binds the collector socket and feeds whitelisted datagrams
// to the records queue. Datagrams from unknown peers never enter the
// pipeline.
type Listener struct {
	pipeline.Worker
	records  *pipeline.Queue[Datagram]
	address  string
	port     int
	peers    map[string]struct{}
	conn     *net.UDPConn
	received uint64
}

// NewListener creates the listener. peers is the set of whitelisted
// agent addresses.
func NewListener(number int, records *pipeline.Queue[Datagram], messages *pipeline.MessageQueue, address string, port int, peers map[string]struct{}) *Listener {
	return &Listener{
		Worker:  pipeline.NewWorker("listener", number, messages),
		records: records,
		address: address,
		port:    port,
		peers:   peers,
	}
}

// Start binds the socket and launches the receive loop. A socket that
// cannot bind is fatal for the collector.
func (l *Listener) Start() error {
	addr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", l.address, l.port))
	if err != nil {
		return errors.Wrap(err, "resolving bind address")
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return errors.Wrapf(err, "binding %s:%d", l.address, l.port)
	}
	l.conn = conn
	go l.run()
	return nil
}

func (l *Listener) run() {
	defer l.Finished()
	l.Say("INFO", "up and running...")
	buf := make([]byte, wire.MaxDatagramSize)
	for !l.Stopping() {
		// Bounded read so shutdown is prompt
		l.conn.SetReadDeadline(time.Now().Add(time.Second))
		n, peer, err := l.conn.ReadFromUDP(buf)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			l.Say("WARNING", "read error: %v", err)
			continue
		}
		l.received++
		l.Say("DEBUG", "from %s received %d bytes", peer, n)
		if _, ok := l.peers[peer.IP.String()]; !ok {
			l.Say("WARNING", "data from %s was ignored. Not in the agents white list!", peer)
			continue
		}
		payload := make([]byte, n)
		copy(payload, buf[:n])
		l.records.Put(Datagram{Payload: payload, Peer: peer})
	}
	l.Say("INFO", "stopping...")
	l.conn.Close()
	l.Say("INFO", "stopped...")
}
