package agent

import (
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"github.com/thierrydecker/myason/internal/flow"
	"github.com/thierrydecker/myason/internal/pipeline"
	"github.com/thierrydecker/myason/internal/wire"
)

// observation is one packet reduced to the fields the cache needs
type observation struct {
	key    flow.Key
	length int64
	flags  string
}

// Processor dissects captured frames, maintains the flow cache and
// ages entries into the entries queue.
type Processor struct {
	pipeline.Worker
	packets *pipeline.Queue[Frame]
	entries *pipeline.Queue[wire.Record]
	cache   *flow.Cache
}

// NewProcessor creates a processor over its own flow cache
func NewProcessor(
	number int,
	packets *pipeline.Queue[Frame],
	entries *pipeline.Queue[wire.Record],
	messages *pipeline.MessageQueue,
	cacheLimit int,
	activeTimeout, inactiveTimeout time.Duration,
) *Processor {
	return &Processor{
		Worker:  pipeline.NewWorker("processor", number, messages),
		packets: packets,
		entries: entries,
		cache:   flow.NewCache(cacheLimit, activeTimeout, inactiveTimeout),
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
		frame, ok := p.packets.TryGet()
		if !ok {
			time.Sleep(pipeline.PollInterval)
			continue
		}
		p.processFrame(frame)
	}
	p.Say("INFO", "stopping...")
	p.Say("INFO", "cleaning up the packets queue...")
	p.packets.Drain(p.processFrame)
	p.Say("INFO", "packets queue has been cleaned...")
	// Remaining entries are exported as the agent exits
	p.emit(p.cache.Age(true))
	p.Say("INFO", "stopped...")
}

func (p *Processor) processFrame(frame Frame) {
	obs, ok := p.dissect(frame)
	if ok {
		p.cache.Update(obs.key.String(), obs.length, obs.flags)
	}
	p.emit(p.cache.Age(p.Stopping()))
}

// dissect extracts the flow key fields from one frame. Non-IP frames
// are dropped; IP traffic that is neither TCP nor UDP is aggregated
// with zero ports. The worker never aborts on packet content.
func (p *Processor) dissect(frame Frame) (observation, bool) {
	pkt := gopacket.NewPacket(frame.Data, layers.LayerTypeEthernet, gopacket.Default)

	obs := observation{flags: flow.NoFlags}
	obs.key.Ifname = frame.Ifname

	if ipLayer := pkt.Layer(layers.LayerTypeIPv4); ipLayer != nil {
		ip, _ := ipLayer.(*layers.IPv4)
		p.Say("DEBUG", "packet is IPv4...")
		obs.key.SrcIP = ip.SrcIP.String()
		obs.key.DstIP = ip.DstIP.String()
		obs.key.Proto = uint8(ip.Protocol)
		obs.key.TOS = ip.TOS
		obs.length = int64(ip.Length)
	} else if ipLayer := pkt.Layer(layers.LayerTypeIPv6); ipLayer != nil {
		ip, _ := ipLayer.(*layers.IPv6)
		p.Say("DEBUG", "packet is IPv6...")
		obs.key.SrcIP = ip.SrcIP.String()
		obs.key.DstIP = ip.DstIP.String()
		obs.key.Proto = uint8(ip.NextHeader)
		obs.key.TOS = ip.TrafficClass
		obs.length = int64(ip.Length)
	} else {
		return observation{}, false
	}

	if tcpLayer := pkt.Layer(layers.LayerTypeTCP); tcpLayer != nil {
		tcp, _ := tcpLayer.(*layers.TCP)
		p.Say("DEBUG", "datagram is TCP...")
		obs.key.SrcPort = uint16(tcp.SrcPort)
		obs.key.DstPort = uint16(tcp.DstPort)
		obs.flags = formatTCPFlags(tcp)
	} else if udpLayer := pkt.Layer(layers.LayerTypeUDP); udpLayer != nil {
		udp, _ := udpLayer.(*layers.UDP)
		p.Say("DEBUG", "datagram is UDP...")
		obs.key.SrcPort = uint16(udp.SrcPort)
		obs.key.DstPort = uint16(udp.DstPort)
	} else {
		p.Say("DEBUG", "datagram is not TCP or UDP...")
	}

	return obs, true
}

func (p *Processor) emit(evicted []flow.Eviction) {
	for _, ev := range evicted {
		switch ev.Reason {
		case flow.ReasonOverflow:
			p.Say("WARNING", "cache size exceeded. Verify settings...")
		case flow.ReasonShutdown:
			p.Say("DEBUG", "deleting entry from cache. Agent ending...")
		case flow.ReasonTCPEnd:
			p.Say("DEBUG", "deleting entry from cache. TCP session ended...")
		case flow.ReasonActive:
			p.Say("DEBUG", "deleting entry from cache. Flow max active timeout...")
		case flow.ReasonInactive:
			p.Say("DEBUG", "deleting entry from cache. Flow max inactive timeout...")
		}
		p.Say("DEBUG", "sending entry to exporter...")
		p.entries.Put(wire.Record{ev.Key: ev.Entry})
	}
}

// formatTCPFlags renders the set of TCP flags as letters in the
// cache's canonical order.
func formatTCPFlags(tcp *layers.TCP) string {
	flags := ""
	if tcp.FIN {
		flags += "F"
	}
	if tcp.SYN {
		flags += "S"
	}
	if tcp.RST {
		flags += "R"
	}
	if tcp.PSH {
		flags += "P"
	}
	if tcp.ACK {
		flags += "A"
	}
	if tcp.URG {
		flags += "U"
	}
	if tcp.ECE {
		flags += "E"
	}
	if tcp.CWR {
		flags += "C"
	}
	if tcp.NS {
		flags += "N"
	}
	if flags == "" {
		return flow.NoFlags
	}
	return flags
}
