package capture

import (
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/netprobe/wirewatch/pkg/packet"
)

// Parse flattens a decoded frame into the layers the classifier cares about.
// Absent layers are left nil.
func Parse(pkt gopacket.Packet) packet.Parsed {
	data := pkt.Data()
	parsed := packet.Parsed{
		Length: len(data),
		Data:   data,
	}

	if ipv4Layer := pkt.Layer(layers.LayerTypeIPv4); ipv4Layer != nil {
		ipv4, _ := ipv4Layer.(*layers.IPv4)
		parsed.IP = &packet.IPLayer{
			SrcIP:    ipv4.SrcIP.String(),
			DstIP:    ipv4.DstIP.String(),
			Protocol: int(ipv4.Protocol),
		}
	} else if ipv6Layer := pkt.Layer(layers.LayerTypeIPv6); ipv6Layer != nil {
		ipv6, _ := ipv6Layer.(*layers.IPv6)
		parsed.IP = &packet.IPLayer{
			SrcIP:    ipv6.SrcIP.String(),
			DstIP:    ipv6.DstIP.String(),
			Protocol: int(ipv6.NextHeader),
		}
	}

	if tcpLayer := pkt.Layer(layers.LayerTypeTCP); tcpLayer != nil {
		tcp, _ := tcpLayer.(*layers.TCP)
		parsed.TCP = &packet.TCPLayer{
			SrcPort: int(tcp.SrcPort),
			DstPort: int(tcp.DstPort),
		}
		if len(tcp.Payload) > 0 {
			parsed.Payload = tcp.Payload
		}
	}

	return parsed
}
