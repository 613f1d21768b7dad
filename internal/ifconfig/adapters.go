// Package ifconfig enumerates the host's capture-capable adapters.
package ifconfig

import (
	"github.com/google/gopacket/pcap"
	"github.com/pkg/errors"
)

// Adapters returns the names of all capture-capable adapters
func Adapters() ([]string, error) {
	devs, err := pcap.FindAllDevs()
	if err != nil {
		return nil, errors.Wrap(err, "enumerating adapters")
	}
	names := make([]string, 0, len(devs))
	for _, dev := range devs {
		names = append(names, dev.Name)
	}
	return names, nil
}

// Exists reports whether an adapter with the given name is present
func Exists(name string) bool {
	names, err := Adapters()
	if err != nil {
		return false
	}
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
