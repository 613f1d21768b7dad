package agent

import (
	"fmt"
	"net"
	"time"

	"github.com/fernet/fernet-go"
	"github.com/pkg/errors"

	"github.com/thierrydecker/myason/internal/pipeline"
	"github.com/thierrydecker/myason/internal/wire"
)

// Exporter seals each aged flow entry and sends it to the collector,
// one datagram per entry. Delivery is at most once: send failures are
// logged and the entry is discarded.
type Exporter struct {
	pipeline.Worker
	entries *pipeline.Queue[wire.Record]
	conn    *net.UDPConn
	key     *fernet.Key
	target  string
}

// NewExporter creates an exporter for the configured collector endpoint
func NewExporter(number int, entries *pipeline.Queue[wire.Record], messages *pipeline.MessageQueue, address string, port int, key *fernet.Key) (*Exporter, error) {
	target := fmt.Sprintf("%s:%d", address, port)
	addr, err := net.ResolveUDPAddr("udp", target)
	if err != nil {
		return nil, errors.Wrapf(err, "resolving collector address %s", target)
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, errors.Wrapf(err, "connecting to collector %s", target)
	}
	return &Exporter{
		Worker:  pipeline.NewWorker("exporter", number, messages),
		entries: entries,
		conn:    conn,
		key:     key,
		target:  target,
	}, nil
}

// Start launches the export loop
func (e *Exporter) Start() {
	go e.run()
}

func (e *Exporter) run() {
	defer e.Finished()
	e.Say("INFO", "up and running...")
	for !e.Stopping() {
		entry, ok := e.entries.TryGet()
		if !ok {
			time.Sleep(pipeline.PollInterval)
			continue
		}
		e.export(entry)
	}
	e.Say("INFO", "stopping...")
	e.Say("INFO", "cleaning up the entries queue...")
	e.entries.Drain(e.export)
	e.Say("INFO", "entries queue has been cleaned...")
	e.conn.Close()
	e.Say("INFO", "stopped...")
}

func (e *Exporter) export(rec wire.Record) {
	e.Say("DEBUG", "processing flow entry %v", rec)
	token, err := wire.Seal(rec, e.key)
	if err != nil {
		e.Say("WARNING", "could not seal flow entry: %v", err)
		return
	}
	if len(token) > wire.MaxDatagramSize {
		e.Say("WARNING", "flow entry of %d bytes exceeds datagram ceiling, dropped", len(token))
		return
	}
	e.Say("DEBUG", "sending flow entry to (%s)...", e.target)
	if _, err := e.conn.Write(token); err != nil {
		e.Say("WARNING", "sending flow entry to (%s): %v", e.target, err)
	}
}
