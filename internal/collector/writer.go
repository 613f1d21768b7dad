package collector

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/thierrydecker/myason/internal/flow"
	"github.com/thierrydecker/myason/internal/pipeline"
	"github.com/thierrydecker/myason/internal/store"
)

// Writer persists each normalized entry to the configured stores.
// Either store may be absent; backend failures are logged and the
// entry skipped without stopping the worker.
type Writer struct {
	pipeline.Worker
	entries *pipeline.Queue[Entry]
	db      *store.SQLite
	ts      *store.Influx
}

// NewWriter creates a writer over its long-lived store handles
func NewWriter(number int, entries *pipeline.Queue[Entry], messages *pipeline.MessageQueue, db *store.SQLite, ts *store.Influx) *Writer {
	return &Writer{
		Worker:  pipeline.NewWorker("writer", number, messages),
		entries: entries,
		db:      db,
		ts:      ts,
	}
}

// Start launches the writer loop
func (w *Writer) Start() {
	go w.run()
}

func (w *Writer) run() {
	defer w.Finished()
	w.Say("INFO", "up and running...")
	for !w.Stopping() {
		ent, ok := w.entries.TryGet()
		if !ok {
			time.Sleep(pipeline.PollInterval)
			continue
		}
		w.processEntry(ent)
	}
	w.Say("INFO", "stopping...")
	w.Say("INFO", "processing remaining entries...")
	w.entries.Drain(w.processEntry)
	w.Say("INFO", "stopped...")
}

func (w *Writer) processEntry(ent Entry) {
	for flowID, fields := range ent.Flows {
		key, err := flow.ParseKey(flowID)
		if err != nil {
			w.Say("WARNING", "malformed flow record: %v...", err)
			continue
		}

		raw, _ := json.Marshal(map[string]flow.Entry{flowID: fields})
		row := &store.FlowRow{
			UUID:         uuid.New().String(),
			Raw:          string(raw),
			AgentAddress: ent.Peer,
			Key:          key,
			Entry:        fields,
		}

		if w.db != nil {
			if err := w.db.InsertFlow(row); err != nil {
				w.Say("WARNING", "sqlite exception: %v...", err)
			} else {
				w.Say("DEBUG", "inserted %s into flows...", row.UUID)
			}
		}

		if w.ts != nil {
			if err := w.ts.WriteActivity(context.Background(), row); err != nil {
				w.Say("WARNING", "influx exception: %v...", err)
			} else {
				w.Say("DEBUG", "inserted %s into activities...", row.UUID)
			}
		}
	}
}
