package agent

import (
	"time"

	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
	"github.com/pkg/errors"

	"github.com/thierrydecker/myason/internal/pipeline"
)

// snapLen is the capture snapshot length; full frames are wanted
// since the processor reads L3 lengths, not payloads.
const snapLen = 65535

// captureTimeout bounds each read so the stop flag is re-checked at
// least once per second.
const captureTimeout = time.Second

// Frame is one captured frame annotated with its capture interface
type Frame struct {
	Data   []byte
	Ifname string
}

// Sniffer owns a layer-2 capture handle on one interface and feeds
// every Ethernet frame to the packet queue.
type Sniffer struct {
	pipeline.Worker
	ifname  string
	handle  *pcap.Handle
	packets *pipeline.Queue[Frame]
}

// NewSniffer creates a sniffer for one interface
func NewSniffer(number int, ifname string, packets *pipeline.Queue[Frame], messages *pipeline.MessageQueue) *Sniffer {
	return &Sniffer{
		Worker:  pipeline.NewWorker("sniffer", number, messages),
		ifname:  ifname,
		packets: packets,
	}
}

// Start opens the capture handle and launches the capture loop. A
// handle that cannot open is fatal for the agent.
func (s *Sniffer) Start() error {
	handle, err := pcap.OpenLive(s.ifname, snapLen, true, captureTimeout)
	if err != nil {
		return errors.Wrapf(err, "opening capture handle on %s", s.ifname)
	}
	s.handle = handle
	go s.run()
	return nil
}

func (s *Sniffer) run() {
	defer s.Finished()
	s.Say("INFO", "up and running...")
	ethernet := s.handle.LinkType() == layers.LinkTypeEthernet
	for !s.Stopping() {
		data, _, err := s.handle.ReadPacketData()
		if err != nil {
			if err == pcap.NextErrorTimeoutExpired {
				continue
			}
			// Transient read errors do not stop the capture
			s.Say("WARNING", "capture read error on '%s': %v", s.ifname, err)
			continue
		}
		if !ethernet {
			s.Say("DEBUG", "frame is NOT Ethernet. Ignoring it...")
			continue
		}
		s.Say("DEBUG", "received a frame on '%s'", s.ifname)
		s.packets.Put(Frame{Data: data, Ifname: s.ifname})
	}
	s.Say("INFO", "stopping...")
	s.handle.Close()
	s.Say("INFO", "stopped...")
}
