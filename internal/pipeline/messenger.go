package pipeline

import (
	"time"

	"github.com/thierrydecker/myason/internal/logger"
)

// Messenger is the single consumer of the shared message queue. Every
// other worker publishes (level, text) pairs; the messenger alone
// touches the logging backend, so log ordering is preserved per
// producer.
type Messenger struct {
	Worker
	log *logger.Logger
}

// NewMessenger creates a messenger dispatching to log
func NewMessenger(number int, messages *MessageQueue, log *logger.Logger) *Messenger {
	return &Messenger{
		Worker: NewWorker("messenger", number, messages),
		log:    log,
	}
}

// Start launches the messenger loop
func (m *Messenger) Start() {
	go m.run()
}

func (m *Messenger) run() {
	defer m.Finished()
	m.log.Info(m.Name() + ": up and running...")
	for !m.Stopping() {
		msg, ok := m.messages.TryGet()
		if !ok {
			time.Sleep(PollInterval)
			continue
		}
		m.process(msg)
	}
	m.log.Info(m.Name() + ": stopping...")
	m.log.Info(m.Name() + ": processing remaining messages...")
	m.messages.Drain(m.process)
	m.log.Info(m.Name() + ": stopped...")
}

func (m *Messenger) process(msg Message) {
	m.log.Log(msg.Level, msg.Text)
}
