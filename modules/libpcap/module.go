// Package libpcap registers the descriptor of the libpcap library.
package libpcap

import (
	_ "embed"

	"github.com/vk/seedgrid/internal/registry"
)

//go:embed libpcap.hcl
var descriptor []byte

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the libpcap descriptor with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterDescriptor(&registry.Descriptor{
		Library:  "libpcap",
		Filename: "libpcap.hcl",
		Source:   descriptor,
		Critical: []string{"pcap_close", "pcap_compile", "pcap_freecode", "pcap_open_dead"},
	})
}
