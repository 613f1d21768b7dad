// Package collector implements the receiving side of the pipeline:
// one listener feeding N processors and M writers through bounded
// queues, with a single messenger owning the log backend.
package collector

import (
	"time"

	"github.com/fernet/fernet-go"
	"github.com/pkg/errors"

	"github.com/thierrydecker/myason/internal/config"
	"github.com/thierrydecker/myason/internal/logger"
	"github.com/thierrydecker/myason/internal/pipeline"
	"github.com/thierrydecker/myason/internal/store"
	"github.com/thierrydecker/myason/internal/wire"
)

const (
	recordQueueDepth  = 4096
	entryQueueDepth   = 4096
	messageQueueDepth = 8192
)

// Collector runs the ingress pipeline
type Collector struct {
	messages   *pipeline.MessageQueue
	messenger  *pipeline.Messenger
	listener   *Listener
	processors []*Processor
	writers    []*Writer
	db         *store.SQLite
	ts         *store.Influx
}

// New assembles the collector pipeline from a validated configuration
func New(cfg *config.CollectorConfig, log *logger.Logger) (*Collector, error) {
	keys := make(map[string]*fernet.Key, len(cfg.Agents))
	peers := make(map[string]struct{}, len(cfg.Agents))
	for peer, keyText := range cfg.Agents {
		key, err := wire.ParseKey(keyText)
		if err != nil {
			return nil, errors.Wrapf(err, "shared key for agent %s", peer)
		}
		keys[peer] = key
		peers[peer] = struct{}{}
	}

	messages := pipeline.NewQueue[pipeline.Message](messageQueueDepth)
	records := pipeline.NewQueue[Datagram](recordQueueDepth)
	entries := pipeline.NewQueue[Entry](entryQueueDepth)

	c := &Collector{
		messages:  messages,
		messenger: pipeline.NewMessenger(1, messages, log),
	}

	if cfg.DBName != "" {
		db, err := store.OpenSQLite(cfg.DBName)
		if err != nil {
			return nil, err
		}
		c.db = db
	}
	if cfg.Influx != nil {
		c.ts = store.OpenInflux(store.InfluxParams{
			Host:     cfg.Influx.Host,
			Port:     cfg.Influx.Port,
			User:     cfg.Influx.User,
			Password: cfg.Influx.Password,
			DBName:   cfg.Influx.DBName,
		})
	}

	for n := 0; n < cfg.WritersNumber; n++ {
		c.writers = append(c.writers, NewWriter(n+1, entries, messages, c.db, c.ts))
	}
	ttl := time.Duration(cfg.TokenTTL) * time.Second
	for n := 0; n < cfg.ProcessorsNumber; n++ {
		c.processors = append(c.processors, NewProcessor(n+1, records, entries, messages, keys, ttl))
	}
	c.listener = NewListener(1, records, messages, cfg.BindAddress, cfg.BindPort, peers)

	return c, nil
}

// Start brings the pipeline up, messenger first, listener last so no
// datagram arrives before its consumers exist. A socket that cannot
// bind fails the whole collector.
func (c *Collector) Start() error {
	c.messenger.Start()
	for _, w := range c.writers {
		w.Start()
	}
	for _, p := range c.processors {
		p.Start()
	}
	return c.listener.Start()
}

// Stop drains the pipeline upstream-first: listener, processors,
// writers, then the messenger. In-flight records reach the stores
// before the handles close.
func (c *Collector) Stop() {
	c.messages.Put(pipeline.Message{Level: "DEBUG", Text: "stop requested. Stopping collector..."})
	c.listener.Stop()
	for _, p := range c.processors {
		p.Stop()
	}
	for _, w := range c.writers {
		w.Stop()
	}
	c.messenger.Stop()
	if c.db != nil {
		c.db.Close()
	}
	if c.ts != nil {
		c.ts.Close()
	}
}
