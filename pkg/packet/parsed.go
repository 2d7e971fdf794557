package packet

type (
	// Parsed is the decoded form of a single captured frame. Layers which
	// were not present in the frame are nil.
	Parsed struct {
		Length  int       // number of captured bytes
		Data    []byte    // captured bytes, link layer included
		IP      *IPLayer  // nil when the frame carries no IPv4/IPv6 layer
		TCP     *TCPLayer // nil when the frame carries no TCP layer
		Payload []byte    // TCP payload, empty when absent
	}

	// IPLayer holds the network layer fields that are retained
	IPLayer struct {
		SrcIP    string
		DstIP    string
		Protocol int
	}

	// TCPLayer holds the transport layer fields that are retained
	TCPLayer struct {
		SrcPort int
		DstPort int
	}
)
