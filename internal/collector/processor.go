package collector

import (
	"encoding/json"
	"time"

	"github.com/fernet/fernet-go"
	"github.com/pkg/errors"

	"github.com/thierrydecker/myason/internal/flow"
	"github.com/thierrydecker/myason/internal/pipeline"
	"github.com/thierrydecker/myason/internal/wire"
)

// Entry is one validated flow on its way to the writers, still keyed
// by its serialized flow key and annotated with the agent that sent
// it.
type Entry struct {
	Peer  string
	Flows wire.Record
}

// Processor validates, decrypts, decodes and normalizes each record.
// Every failure mode drops the offending item only; the worker never
// aborts on record content.
type Processor struct {
	pipeline.Worker
	records  *pipeline.Queue[Datagram]
	entries  *pipeline.Queue[Entry]
	keys     map[string]*fernet.Key
	tokenTTL time.Duration
}

// NewProcessor creates a processor. keys maps each whitelisted agent
// address to its parsed shared key; the mapping is per-processor
// configuration, not shared mutable state.
func NewProcessor(number int, records *pipeline.Queue[Datagram], entries *pipeline.Queue[Entry], messages *pipeline.MessageQueue, keys map[string]*fernet.Key, tokenTTL time.Duration) *Processor {
	return &Processor{
		Worker:   pipeline.NewWorker("processor", number, messages),
		records:  records,
		entries:  entries,
		keys:     keys,
		tokenTTL: tokenTTL,
	}
}

// Start launches the processing loop
func (p *Processor) Start() {
	go p.run()
}

func (p *Processor) run() {
	defer p.Finished()
	p.Say("INFO", "up and running...")
	for !p.Stopping() {
		rec, ok := p.records.TryGet()
		if !ok {
			time.Sleep(pipeline.PollInterval)
			continue
		}
		p.processRecord(rec)
	}
	p.Say("INFO", "stopping...")
	p.Say("INFO", "processing remaining records...")
	p.records.Drain(p.processRecord)
	p.Say("INFO", "stopped...")
}

func (p *Processor) processRecord(rec Datagram) {
	peer := rec.Peer.IP.String()
	p.Say("DEBUG", "processing record received from %s", rec.Peer)

	key, ok := p.keys[peer]
	if !ok {
		p.Say("WARNING", "no key for %s. Record was ignored!", rec.Peer)
		return
	}

	plain, err := wire.Open(rec.Payload, key, p.tokenTTL)
	if err != nil {
		if errors.Is(err, wire.ErrInvalidToken) {
			p.Say("WARNING", "invalid token. Record received from %s was ignored!", rec.Peer)
		} else {
			p.Say("WARNING", "%v. Record received from %s was ignored!", err, rec.Peer)
		}
		return
	}

	var raw map[string]map[string]interface{}
	if err := json.Unmarshal(plain, &raw); err != nil {
		p.Say("WARNING", "%v. Record received from %s was ignored!", err, rec.Peer)
		return
	}

	// One malformed flow skips that flow only; its siblings proceed
	for flowID, fields := range raw {
		entry, err := normalize(fields)
		if err != nil {
			p.Say("WARNING", "%v. Flow %s received from %s was ignored!", err, flowID, rec.Peer)
			continue
		}
		p.entries.Put(Entry{Peer: peer, Flows: wire.Record{flowID: entry}})
	}
}

// normalize coerces the decoded JSON fields into a flow entry
func normalize(fields map[string]interface{}) (flow.Entry, error) {
	length, err := toInt64(fields["bytes"])
	if err != nil {
		return flow.Entry{}, errors.Wrap(err, "bytes")
	}
	packets, err := toInt64(fields["packets"])
	if err != nil {
		return flow.Entry{}, errors.Wrap(err, "packets")
	}
	startTime, err := toFloat64(fields["start_time"])
	if err != nil {
		return flow.Entry{}, errors.Wrap(err, "start_time")
	}
	endTime, err := toFloat64(fields["end_time"])
	if err != nil {
		return flow.Entry{}, errors.Wrap(err, "end_time")
	}
	flags, ok := fields["flags"].(string)
	if !ok {
		return flow.Entry{}, errors.New("flags is not a string")
	}
	return flow.Entry{
		Bytes:     length,
		Packets:   packets,
		StartTime: startTime,
		EndTime:   endTime,
		Flags:     flags,
	}, nil
}

func toInt64(v interface{}) (int64, error) {
	switch n := v.(type) {
	case float64:
		return int64(n), nil
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, err
		}
		return int64(f), nil
	case nil:
		return 0, errors.New("field is missing")
	default:
		return 0, errors.Errorf("field has type %T", v)
	}
}

func toFloat64(v interface{}) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case json.Number:
		return n.Float64()
	case nil:
		return 0, errors.New("field is missing")
	default:
		return 0, errors.Errorf("field has type %T", v)
	}
}
