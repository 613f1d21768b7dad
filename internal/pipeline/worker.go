package pipeline

import (
	"fmt"
)

// Message is a log line emitted by a worker onto the shared message
// queue, consumed by the Messenger.
type Message struct {
	Level string
	Text  string
}

// MessageQueue is the shared queue every worker publishes log lines to
type MessageQueue = Queue[Message]

// Worker is the common lifecycle of a pipeline stage: a named run loop
// with a stop flag and a drain pass on shutdown.
type Worker struct {
	name     string
	messages *MessageQueue

	stop chan struct{}
	done chan struct{}
}

// NewWorker creates the lifecycle state for a stage. The worker id is
// injected by the caller so names stay stable per pipeline instead of
// depending on process-global counters.
func NewWorker(group string, number int, messages *MessageQueue) Worker {
	return Worker{
		name:     fmt.Sprintf("%s_%03d", group, number),
		messages: messages,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Name returns the worker name, e.g. "processor_001"
func (w *Worker) Name() string {
	return w.name
}

// Stopping reports whether Stop has been requested
func (w *Worker) Stopping() bool {
	select {
	case <-w.stop:
		return true
	default:
		return false
	}
}

// StopRequested exposes the stop flag for select loops
func (w *Worker) StopRequested() <-chan struct{} {
	return w.stop
}

// Stop requests shutdown and waits for the run loop to finish its
// drain pass and exit. Each worker is stopped exactly once, by its
// pipeline's shutdown sequence.
func (w *Worker) Stop() {
	select {
	case <-w.stop:
	default:
		close(w.stop)
	}
	<-w.done
}

// Finished marks the run loop as exited. Must be deferred by every
// worker's run goroutine.
func (w *Worker) Finished() {
	close(w.done)
}

// Say publishes a log line at the given level
func (w *Worker) Say(level, format string, args ...interface{}) {
	w.messages.Put(Message{Level: level, Text: w.name + ": " + fmt.Sprintf(format, args...)})
}
