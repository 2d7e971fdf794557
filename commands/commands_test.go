package commands

import (
	"bytes"
	"context"
	"io/ioutil"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/netprobe/wirewatch/pkg/packet"
	"github.com/netprobe/wirewatch/pkg/query"
	"github.com/netprobe/wirewatch/pkg/sysinfo"
	"github.com/netprobe/wirewatch/resources"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandsRegistered(t *testing.T) {
	names := make(map[string]bool)
	for _, command := range Commands() {
		assert.False(t, names[command.Name], "duplicate command %s", command.Name)
		names[command.Name] = true
	}

	for _, name := range []string{
		"sniff", "capture", "serve", "import", "purge", "test-config",
		"show-packets", "show-http", "show-top-ips", "show-stats", "show-system-info",
	} {
		assert.True(t, names[name], "missing command %s", name)
	}
}

func writeCapture(t *testing.T, dir string) string {
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolTCP,
		SrcIP:    net.IP{10, 0, 0, 1},
		DstIP:    net.IP{10, 0, 0, 2},
	}
	tcp := &layers.TCP{SrcPort: 40000, DstPort: 80, PSH: true, ACK: true, Window: 512}
	require.NoError(t, tcp.SetNetworkLayerForChecksum(ip))
	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{2, 0, 0, 0, 0, 1},
		DstMAC:       net.HardwareAddr{2, 0, 0, 0, 0, 2},
		EthernetType: layers.EthernetTypeIPv4,
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, eth, ip, tcp,
		gopacket.Payload("POST /submit HTTP/1.1\r\nHost: example\r\n\r\n")))
	frame := buf.Bytes()

	path := filepath.Join(dir, "capture.pcap")
	file, err := os.Create(path)
	require.NoError(t, err)
	defer file.Close()

	writer := pcapgo.NewWriter(file)
	require.NoError(t, writer.WriteFileHeader(65536, layers.LinkTypeEthernet))
	for n := 0; n < 3; n++ {
		require.NoError(t, writer.WritePacket(gopacket.CaptureInfo{
			Timestamp:     time.Unix(1600000000+int64(n), 0),
			CaptureLength: len(frame),
			Length:        len(frame),
		}, frame))
	}
	return path
}

func TestImportFile(t *testing.T) {
	dir, err := ioutil.TempDir("", "wirewatch-import")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	res := resources.InitTestingResources(t)
	defer res.Close()

	counters, err := importFile(context.Background(), res, writeCapture(t, dir), false)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), counters.Captured)
	assert.Equal(t, uint64(3), counters.Stored)
	assert.Equal(t, uint64(3), counters.HTTPRequests)

	var requests []packet.HTTPRequest
	require.NoError(t, res.Store.Recent(res.Config.T.Structure.HTTPRequestTable, 10, &requests))
	require.Len(t, requests, 3)
	assert.Equal(t, 40000, requests[0].SrcPort)
}

func TestImportFileErrors(t *testing.T) {
	res := resources.InitTestingResources(t)
	defer res.Close()

	_, err := importFile(context.Background(), res, "/nonexistent/capture.pcap", false)
	assert.Error(t, err)

	dir, err := ioutil.TempDir("", "wirewatch-import")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	bogus := filepath.Join(dir, "bogus.pcap")
	require.NoError(t, ioutil.WriteFile(bogus, []byte("this is not a packet capture at all"), 0644))
	_, err = importFile(context.Background(), res, bogus, false)
	assert.Error(t, err)
}

func TestShowPackets(t *testing.T) {
	port := 443
	records := []packet.Record{
		{Timestamp: 5, SrcIP: "8.8.8.8", DstIP: "10.0.0.1", Protocol: 6, Length: 60, SrcPort: &port, DstPort: &port, ProtocolName: "TCP"},
		{Timestamp: 4, SrcIP: "10.0.0.1", DstIP: "10.0.0.255", Protocol: 17, Length: 90},
	}

	var out bytes.Buffer
	showPackets(&out, records, ",")
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Timestamp,Source IP,Source Port,Destination IP,Destination Port,Protocol,Protocol Name,Length", lines[0])
	assert.Equal(t, "1970-01-01T00:00:05Z,8.8.8.8,443,10.0.0.1,443,6,TCP,60", lines[1])
	assert.Equal(t, "1970-01-01T00:00:04Z,10.0.0.1,,10.0.0.255,,17,,90", lines[2])

	out.Reset()
	showPacketsHuman(&out, records)
	assert.Contains(t, out.String(), "SOURCE IP")
	assert.Contains(t, out.String(), "8.8.8.8")
}

func TestShowHTTP(t *testing.T) {
	requests := []packet.HTTPRequest{{
		Timestamp: 1,
		SrcIP:     "10.0.0.1",
		SrcPort:   40000,
		DstIP:     "10.0.0.2",
		DstPort:   80,
		Method:    "POST",
		Payload:   "POST /submit HTTP/1.1\r\nHost: example\r\n\r\n",
	}}

	var out bytes.Buffer
	showHTTP(&out, requests, "\t")
	assert.Contains(t, out.String(), "10.0.0.1:40000\t10.0.0.2:80\tPOST\t\"POST /submit HTTP/1.1\\r\\nHost: example\\r\\n\\r\\n\"")

	out.Reset()
	showHTTPHuman(&out, requests)
	assert.Contains(t, out.String(), "POST /submit HTTP/1.1")
	assert.NotContains(t, out.String(), "Host: example")
}

func TestPreviewPayload(t *testing.T) {
	assert.Equal(t, "POST / HTTP/1.1", previewPayload("POST / HTTP/1.1\r\nHost: x"))
	long := strings.Repeat("a", 100)
	assert.Equal(t, strings.Repeat("a", payloadPreviewLength)+"...", previewPayload(long))
}

func TestShowTopIPsAndStats(t *testing.T) {
	var out bytes.Buffer
	showTopIPs(&out, []query.TopIP{
		{IP: "10.0.0.1", Count: 3, City: "N/A", Region: "N/A", Country: "N/A", ISP: "N/A"},
	}, ",")
	assert.Equal(t, "IP,Packets,City,Region,Country,ISP\n10.0.0.1,3,N/A,N/A,N/A,N/A\n", out.String())

	tcp := "TCP"
	out.Reset()
	showStats(&out, []query.ProtocolStat{
		{Protocol: &tcp, Count: 7},
		{Count: 2},
	}, ",")
	assert.Equal(t, "Protocol,Packets\nTCP,7\n(unlabeled),2\n", out.String())
}

func TestShowSystemInfo(t *testing.T) {
	info := &sysinfo.Record{Hostname: "sensor-01", InternalIP: "10.0.0.5", TotalMemory: 2048}

	var out bytes.Buffer
	showSystemInfo(&out, info, ",")
	assert.Equal(t, "Hostname,Internal IP,Total Memory\nsensor-01,10.0.0.5,2048\n", out.String())

	out.Reset()
	showSystemInfoHuman(&out, info)
	assert.Contains(t, out.String(), "2.0 KiB")
}
