// Package store holds the persistence sinks fed by the collector's
// writers: a relational flows table and a time-series activities
// measurement.
package store

import (
	"github.com/thierrydecker/myason/internal/flow"
)

// FlowRow is one decoded flow record ready for persistence
type FlowRow struct {
	UUID         string
	Raw          string
	AgentAddress string
	Key          flow.Key
	Entry        flow.Entry
}
