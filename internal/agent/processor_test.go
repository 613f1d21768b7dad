package agent

import (
	"net"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thierrydecker/myason/internal/pipeline"
	"github.com/thierrydecker/myason/internal/wire"
)

type processorHarness struct {
	proc    *Processor
	entries *pipeline.Queue[wire.Record]
}

func newProcessorHarness(t *testing.T) *processorHarness {
	t.Helper()
	packets := pipeline.NewQueue[Frame](64)
	entries := pipeline.NewQueue[wire.Record](64)
	messages := pipeline.NewQueue[pipeline.Message](4096)
	return &processorHarness{
		proc:    NewProcessor(1, packets, entries, messages, 1024, 1800*time.Second, 15*time.Second),
		entries: entries,
	}
}

func serialize(t *testing.T, ls ...gopacket.SerializableLayer) []byte {
	t.Helper()
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, ls...))
	return buf.Bytes()
}

func udpv4Frame(t *testing.T, payloadLen int) []byte {
	t.Helper()
	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01},
		DstMAC:       net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x02},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    net.ParseIP("10.0.0.1"),
		DstIP:    net.ParseIP("10.0.0.2"),
	}
	udp := &layers.UDP{SrcPort: 1000, DstPort: 53}
	require.NoError(t, udp.SetNetworkLayerForChecksum(ip))
	return serialize(t, eth, ip, udp, gopacket.Payload(make([]byte, payloadLen)))
}

func tcpv4Frame(t *testing.T, payloadLen int, syn, ack, fin bool) []byte {
	t.Helper()
	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01},
		DstMAC:       net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x02},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      64,
		Protocol: layers.IPProtocolTCP,
		SrcIP:    net.ParseIP("1.1.1.1"),
		DstIP:    net.ParseIP("2.2.2.2"),
	}
	tcp := &layers.TCP{
		SrcPort:    5000,
		DstPort:    80,
		SYN:        syn,
		ACK:        ack,
		FIN:        fin,
		DataOffset: 5,
	}
	require.NoError(t, tcp.SetNetworkLayerForChecksum(ip))
	return serialize(t, eth, ip, tcp, gopacket.Payload(make([]byte, payloadLen)))
}

func TestDissectUDPv4(t *testing.T) {
	h := newProcessorHarness(t)

	// 20 IP + 8 UDP + 100 payload = 128 bytes of L3 length
	obs, ok := h.proc.dissect(Frame{Data: udpv4Frame(t, 100), Ifname: "eth0"})
	require.True(t, ok)

	assert.Equal(t, "eth0,10.0.0.1,10.0.0.2,17,1000,53,0", obs.key.String())
	assert.Equal(t, int64(128), obs.length)
	assert.Equal(t, "None", obs.flags)
}

func TestDissectTCPv4Flags(t *testing.T) {
	h := newProcessorHarness(t)

	obs, ok := h.proc.dissect(Frame{Data: tcpv4Frame(t, 0, true, false, false), Ifname: "eth0"})
	require.True(t, ok)
	assert.Equal(t, uint8(6), obs.key.Proto)
	assert.Equal(t, uint16(5000), obs.key.SrcPort)
	assert.Equal(t, uint16(80), obs.key.DstPort)
	assert.Equal(t, "S", obs.flags)

	obs, ok = h.proc.dissect(Frame{Data: tcpv4Frame(t, 0, false, true, true), Ifname: "eth0"})
	require.True(t, ok)
	assert.Equal(t, "FA", obs.flags)
}

func TestDissectIPv6(t *testing.T) {
	h := newProcessorHarness(t)

	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01},
		DstMAC:       net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x02},
		EthernetType: layers.EthernetTypeIPv6,
	}
	ip := &layers.IPv6{
		Version:      6,
		NextHeader:   layers.IPProtocolUDP,
		HopLimit:     64,
		TrafficClass: 32,
		SrcIP:        net.ParseIP("2001:db8::1"),
		DstIP:        net.ParseIP("2001:db8::2"),
	}
	udp := &layers.UDP{SrcPort: 4000, DstPort: 4001}
	require.NoError(t, udp.SetNetworkLayerForChecksum(ip))
	frame := serialize(t, eth, ip, udp, gopacket.Payload(make([]byte, 50)))

	obs, ok := h.proc.dissect(Frame{Data: frame, Ifname: "wlan0"})
	require.True(t, ok)
	assert.Equal(t, "wlan0", obs.key.Ifname)
	assert.Equal(t, "2001:db8::1", obs.key.SrcIP)
	assert.Equal(t, uint8(17), obs.key.Proto)
	assert.Equal(t, uint8(32), obs.key.TOS)
	// IPv6 length is the payload length: 8 UDP + 50
	assert.Equal(t, int64(58), obs.length)
}

func TestDissectDropsNonIP(t *testing.T) {
	h := newProcessorHarness(t)

	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01},
		DstMAC:       net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff},
		EthernetType: layers.EthernetTypeARP,
	}
	arp := &layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     6,
		ProtAddressSize:   4,
		Operation:         layers.ARPRequest,
		SourceHwAddress:   []byte{0x02, 0x00, 0x00, 0x00, 0x00, 0x01},
		SourceProtAddress: []byte{10, 0, 0, 1},
		DstHwAddress:      []byte{0, 0, 0, 0, 0, 0},
		DstProtAddress:    []byte{10, 0, 0, 2},
	}
	frame := serialize(t, eth, arp)

	_, ok := h.proc.dissect(Frame{Data: frame, Ifname: "eth0"})
	assert.False(t, ok)
}

func TestDissectICMPAggregatesWithZeroPorts(t *testing.T) {
	h := newProcessorHarness(t)

	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01},
		DstMAC:       net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x02},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      64,
		Protocol: layers.IPProtocolICMPv4,
		SrcIP:    net.ParseIP("10.0.0.1"),
		DstIP:    net.ParseIP("10.0.0.2"),
	}
	icmp := &layers.ICMPv4{TypeCode: layers.CreateICMPv4TypeCode(8, 0)}
	frame := serialize(t, eth, ip, icmp, gopacket.Payload(make([]byte, 32)))

	obs, ok := h.proc.dissect(Frame{Data: frame, Ifname: "eth0"})
	require.True(t, ok)
	assert.Equal(t, uint8(1), obs.key.Proto)
	assert.Equal(t, uint16(0), obs.key.SrcPort)
	assert.Equal(t, uint16(0), obs.key.DstPort)
	assert.Equal(t, "None", obs.flags)
}

func TestTCPFINEmitsEntryImmediately(t *testing.T) {
	h := newProcessorHarness(t)

	// IP lengths 60, 500 and 40: 40 bytes of headers plus payload
	h.proc.processFrame(Frame{Data: tcpv4Frame(t, 20, true, false, false), Ifname: "eth0"})
	_, ok := h.entries.TryGet()
	assert.False(t, ok)

	h.proc.processFrame(Frame{Data: tcpv4Frame(t, 460, false, true, false), Ifname: "eth0"})
	_, ok = h.entries.TryGet()
	assert.False(t, ok)

	h.proc.processFrame(Frame{Data: tcpv4Frame(t, 0, false, true, true), Ifname: "eth0"})
	rec, ok := h.entries.TryGet()
	require.True(t, ok)

	ent, present := rec["eth0,1.1.1.1,2.2.2.2,6,5000,80,0"]
	require.True(t, present)
	assert.Equal(t, int64(600), ent.Bytes)
	assert.Equal(t, int64(3), ent.Packets)
	assert.Contains(t, ent.Flags, "F")
}
