// Package agent implements the capture side of the pipeline: one
// sniffer/processor/exporter stack per configured interface, all
// publishing to a single messenger.
package agent

import (
	"time"

	"github.com/pkg/errors"

	"github.com/thierrydecker/myason/internal/config"
	"github.com/thierrydecker/myason/internal/logger"
	"github.com/thierrydecker/myason/internal/pipeline"
	"github.com/thierrydecker/myason/internal/wire"
)

// Queue depths. Bounded so sustained overload turns into kernel-side
// packet drop instead of unbounded memory growth.
const (
	packetQueueDepth  = 4096
	entryQueueDepth   = 2048
	messageQueueDepth = 8192
)

// stack is the per-interface worker chain
type stack struct {
	sniffer   *Sniffer
	processor *Processor
	exporter  *Exporter
}

// Agent runs one capture stack per interface
type Agent struct {
	cfg       *config.AgentConfig
	messages  *pipeline.MessageQueue
	messenger *pipeline.Messenger
	stacks    []stack
}

// New assembles the agent pipeline from a validated configuration
func New(cfg *config.AgentConfig, log *logger.Logger) (*Agent, error) {
	key, err := wire.ParseKey(cfg.Key)
	if err != nil {
		return nil, err
	}

	messages := pipeline.NewQueue[pipeline.Message](messageQueueDepth)
	a := &Agent{
		cfg:       cfg,
		messages:  messages,
		messenger: pipeline.NewMessenger(1, messages, log),
	}

	for i, ifname := range cfg.Interfaces {
		packets := pipeline.NewQueue[Frame](packetQueueDepth)
		entries := pipeline.NewQueue[wire.Record](entryQueueDepth)

		exporter, err := NewExporter(i+1, entries, messages, cfg.CollectorAddress, cfg.CollectorPort, key)
		if err != nil {
			return nil, errors.Wrapf(err, "building exporter for %s", ifname)
		}

		a.stacks = append(a.stacks, stack{
			sniffer: NewSniffer(i+1, ifname, packets, messages),
			processor: NewProcessor(
				i+1,
				packets,
				entries,
				messages,
				cfg.CacheLimit,
				time.Duration(cfg.CacheActiveTimeout)*time.Second,
				time.Duration(cfg.CacheInactiveTimeout)*time.Second,
			),
			exporter: exporter,
		})
	}

	return a, nil
}

// Start brings the pipeline up, messenger first so no early message
// is lost, then each interface stack. A sniffer that cannot open its
// capture handle fails the whole agent.
func (a *Agent) Start() error {
	a.messenger.Start()
	for _, s := range a.stacks {
		s.processor.Start()
		s.exporter.Start()
		if err := s.sniffer.Start(); err != nil {
			return err
		}
	}
	return nil
}

// Stop drains the pipeline upstream-first: sniffer, processor,
// exporter, then the messenger. The processor drain runs the
// shutdown-aging rule, so every live cache entry reaches the exporter
// before the exporter itself drains.
func (a *Agent) Stop() {
	a.messages.Put(pipeline.Message{Level: "DEBUG", Text: "stop requested. Stopping agent..."})
	for _, s := range a.stacks {
		s.sniffer.Stop()
		s.processor.Stop()
		s.exporter.Stop()
	}
	a.messenger.Stop()
}
