package flow

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Key identifies a flow: every packet sharing these seven fields is
// aggregated into the same cache entry.
type Key struct {
	Ifname  string
	SrcIP   string
	DstIP   string
	Proto   uint8
	SrcPort uint16
	DstPort uint16
	TOS     uint8
}

// String serializes the key in its wire and storage form, comma-joined
// with the interface name leading.
func (k Key) String() string {
	return fmt.Sprintf("%s,%s,%s,%d,%d,%d,%d",
		k.Ifname, k.SrcIP, k.DstIP, k.Proto, k.SrcPort, k.DstPort, k.TOS)
}

// ParseKey parses the serialized form back into a Key. The collector
// relies on the field count being exactly seven.
func ParseKey(s string) (Key, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 7 {
		return Key{}, errors.Errorf("flow key has %d fields, want 7: %q", len(parts), s)
	}

	proto, err := strconv.ParseUint(parts[3], 10, 8)
	if err != nil {
		return Key{}, errors.Wrapf(err, "flow key proto %q", parts[3])
	}
	srcPort, err := strconv.ParseUint(parts[4], 10, 16)
	if err != nil {
		return Key{}, errors.Wrapf(err, "flow key src port %q", parts[4])
	}
	dstPort, err := strconv.ParseUint(parts[5], 10, 16)
	if err != nil {
		return Key{}, errors.Wrapf(err, "flow key dst port %q", parts[5])
	}
	tos, err := strconv.ParseUint(parts[6], 10, 8)
	if err != nil {
		return Key{}, errors.Wrapf(err, "flow key tos %q", parts[6])
	}

	return Key{
		Ifname:  parts[0],
		SrcIP:   parts[1],
		DstIP:   parts[2],
		Proto:   uint8(proto),
		SrcPort: uint16(srcPort),
		DstPort: uint16(dstPort),
		TOS:     uint8(tos),
	}, nil
}

// NoFlags is the flags value of a flow that never carried TCP
const NoFlags = "None"

// flagOrder fixes the rendering order of accumulated TCP flag letters
const flagOrder = "FSRPAUECN"

// MergeFlags unions two textual TCP flag sets, keeping a canonical
// letter order so equal sets render identically.
func MergeFlags(old, new string) string {
	if new == "" || new == NoFlags {
		return old
	}
	if old == "" || old == NoFlags {
		old = ""
	}
	var b strings.Builder
	for _, c := range flagOrder {
		if strings.ContainsRune(old, c) || strings.ContainsRune(new, c) {
			b.WriteRune(c)
		}
	}
	if b.Len() == 0 {
		return NoFlags
	}
	return b.String()
}
