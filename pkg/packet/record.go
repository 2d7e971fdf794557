package packet

// ProtocolTCP is the label given to packets with a recognized TCP layer
const ProtocolTCP = "TCP"

// MethodPOST is the only HTTP method the payload heuristic detects
const MethodPOST = "POST"

type (
	// Record describes one observed IP packet
	Record struct {
		ID           string  `bson:"_id" json:"_id"`
		Timestamp    float64 `bson:"timestamp" json:"timestamp"`
		SrcIP        string  `bson:"src_ip" json:"src_ip"`
		DstIP        string  `bson:"dst_ip" json:"dst_ip"`
		Protocol     int     `bson:"protocol" json:"protocol"`
		Length       int     `bson:"length" json:"length"`
		RawData      string  `bson:"raw_data" json:"raw_data"`
		SrcPort      *int    `bson:"src_port,omitempty" json:"src_port,omitempty"`
		DstPort      *int    `bson:"dst_port,omitempty" json:"dst_port,omitempty"`
		ProtocolName string  `bson:"protocol_name,omitempty" json:"protocol_name,omitempty"`
	}

	// HTTPRequest describes a TCP packet whose payload looked like an HTTP POST
	HTTPRequest struct {
		ID        string  `bson:"_id" json:"_id"`
		Timestamp float64 `bson:"timestamp" json:"timestamp"`
		SrcIP     string  `bson:"src_ip" json:"src_ip"`
		DstIP     string  `bson:"dst_ip" json:"dst_ip"`
		SrcPort   int     `bson:"src_port" json:"src_port"`
		DstPort   int     `bson:"dst_port" json:"dst_port"`
		Method    string  `bson:"method" json:"method"`
		Payload   string  `bson:"payload" json:"payload"`
	}
)

// SetID assigns the store identity of the record
func (r *Record) SetID(id string) { r.ID = id }

// SetID assigns the store identity of the request
func (h *HTTPRequest) SetID(id string) { h.ID = id }
