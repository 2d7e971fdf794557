package capture

import (
	"io"
	"io/ioutil"
	"net"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

var (
	clientMAC = net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01}
	serverMAC = net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x02}
	clientIP  = net.IP{192, 168, 1, 10}
	serverIP  = net.IP{93, 184, 216, 34}
)

func testLogger() *log.Logger {
	logger := log.New()
	logger.Out = ioutil.Discard
	return logger
}

func serialize(t *testing.T, serializable ...gopacket.SerializableLayer) []byte {
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, serializable...))
	return buf.Bytes()
}

func ethernet(ethType layers.EthernetType) *layers.Ethernet {
	return &layers.Ethernet{
		SrcMAC:       clientMAC,
		DstMAC:       serverMAC,
		EthernetType: ethType,
	}
}

func ipv4(proto layers.IPProtocol) *layers.IPv4 {
	return &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: proto,
		SrcIP:    clientIP,
		DstIP:    serverIP,
	}
}

func tcpFrame(t *testing.T, payload string) []byte {
	ip := ipv4(layers.IPProtocolTCP)
	tcp := &layers.TCP{
		SrcPort: 51000,
		DstPort: 80,
		Seq:     1000,
		PSH:     true,
		ACK:     true,
		Window:  65535,
	}
	require.NoError(t, tcp.SetNetworkLayerForChecksum(ip))
	return serialize(t, ethernet(layers.EthernetTypeIPv4), ip, tcp, gopacket.Payload(payload))
}

func udpFrame(t *testing.T) []byte {
	ip := ipv4(layers.IPProtocolUDP)
	udp := &layers.UDP{SrcPort: 5353, DstPort: 53}
	require.NoError(t, udp.SetNetworkLayerForChecksum(ip))
	return serialize(t, ethernet(layers.EthernetTypeIPv4), ip, udp, gopacket.Payload("query"))
}

func tcp6Frame(t *testing.T, payload string) []byte {
	ip := &layers.IPv6{
		Version:    6,
		HopLimit:   64,
		NextHeader: layers.IPProtocolTCP,
		SrcIP:      net.ParseIP("2001:db8::1"),
		DstIP:      net.ParseIP("2001:db8::2"),
	}
	tcp := &layers.TCP{SrcPort: 40000, DstPort: 8080, ACK: true, Window: 1024}
	require.NoError(t, tcp.SetNetworkLayerForChecksum(ip))
	return serialize(t, ethernet(layers.EthernetTypeIPv6), ip, tcp, gopacket.Payload(payload))
}

func arpFrame(t *testing.T) []byte {
	arp := &layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     6,
		ProtAddressSize:   4,
		Operation:         layers.ARPRequest,
		SourceHwAddress:   clientMAC,
		SourceProtAddress: clientIP.To4(),
		DstHwAddress:      net.HardwareAddr{0, 0, 0, 0, 0, 0},
		DstProtAddress:    serverIP.To4(),
	}
	return serialize(t, ethernet(layers.EthernetTypeARP), arp)
}

func decode(data []byte) gopacket.Packet {
	return gopacket.NewPacket(data, layers.LayerTypeEthernet, gopacket.Default)
}

type (
	// readStep is one result of scriptedData.ReadPacketData
	readStep struct {
		data []byte
		err  error
	}

	// scriptedData replays readSteps then reports io.EOF
	scriptedData struct {
		steps []readStep
		reads int
	}
)

func (s *scriptedData) ReadPacketData() ([]byte, gopacket.CaptureInfo, error) {
	if s.reads >= len(s.steps) {
		return nil, gopacket.CaptureInfo{}, io.EOF
	}
	step := s.steps[s.reads]
	s.reads++
	if step.err != nil {
		return nil, gopacket.CaptureInfo{}, step.err
	}
	return step.data, gopacket.CaptureInfo{CaptureLength: len(step.data), Length: len(step.data)}, nil
}

func frames(data ...[]byte) *scriptedData {
	steps := make([]readStep, len(data))
	for i := range data {
		steps[i] = readStep{data: data[i]}
	}
	return &scriptedData{steps: steps}
}
