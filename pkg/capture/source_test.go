package capture

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/netprobe/wirewatch/pkg/packet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, src *Source) ([]packet.Parsed, error) {
	var got []packet.Parsed
	err := src.Run(context.Background(), func(p packet.Parsed) {
		got = append(got, p)
	})
	return got, err
}

func TestSourceRunInOrder(t *testing.T) {
	first, second, third := tcpFrame(t, "a"), udpFrame(t), arpFrame(t)
	src := NewSource(frames(first, second, third), layers.LinkTypeEthernet, testLogger())

	got, err := collect(t, src)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, first, got[0].Data)
	assert.Equal(t, second, got[1].Data)
	assert.Equal(t, third, got[2].Data)
}

func TestSourceRunSkipsTimeoutsAndTransientErrors(t *testing.T) {
	frame := tcpFrame(t, "a")
	data := &scriptedData{steps: []readStep{
		{err: ErrReadTimeout},
		{err: errors.New("resource temporarily unavailable")},
		{data: frame},
		{err: ErrReadTimeout},
	}}
	src := NewSource(data, layers.LinkTypeEthernet, testLogger())

	got, err := collect(t, src)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, frame, got[0].Data)
}

func TestSourceRunUnrecoverable(t *testing.T) {
	data := &scriptedData{steps: []readStep{
		{data: udpFrame(t)},
		{err: io.ErrUnexpectedEOF},
		{data: udpFrame(t)},
	}}
	src := NewSource(data, layers.LinkTypeEthernet, testLogger())

	got, err := collect(t, src)
	assert.Equal(t, io.ErrUnexpectedEOF, err)
	assert.Len(t, got, 1)
}

func TestSourceRunCancelled(t *testing.T) {
	data := frames(udpFrame(t), udpFrame(t))
	src := NewSource(data, layers.LinkTypeEthernet, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := src.Run(ctx, func(packet.Parsed) {
		calls++
		cancel()
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, data.reads)
}

func TestSourceStatsAndClose(t *testing.T) {
	plain := NewSource(frames(), layers.LinkTypeEthernet, testLogger())
	_, ok := plain.Stats()
	assert.False(t, ok)
	plain.Close()

	closed := false
	live := NewSource(frames(), layers.LinkTypeEthernet, testLogger(),
		WithStats(func() (Stats, error) {
			return Stats{Received: 10, Dropped: 2, IfDropped: 1}, nil
		}),
		WithCloser(func() { closed = true }),
	)
	stats, ok := live.Stats()
	assert.True(t, ok)
	assert.Equal(t, Stats{Received: 10, Dropped: 2, IfDropped: 1}, stats)

	failing := NewSource(frames(), layers.LinkTypeEthernet, testLogger(),
		WithStats(func() (Stats, error) { return Stats{}, errors.New("handle closed") }),
	)
	_, ok = failing.Stats()
	assert.False(t, ok)

	live.Close()
	assert.True(t, closed)
}

func TestOfflineSourcePcap(t *testing.T) {
	frame := tcpFrame(t, "POST /upload HTTP/1.1")
	var buf bytes.Buffer
	writer := pcapgo.NewWriter(&buf)
	require.NoError(t, writer.WriteFileHeader(65536, layers.LinkTypeEthernet))
	for i := 0; i < 3; i++ {
		ci := gopacket.CaptureInfo{
			Timestamp:     time.Unix(1600000000+int64(i), 0),
			CaptureLength: len(frame),
			Length:        len(frame),
		}
		require.NoError(t, writer.WritePacket(ci, frame))
	}

	src, err := NewOfflineSource(bytes.NewReader(buf.Bytes()), testLogger())
	require.NoError(t, err)

	got, err := collect(t, src)
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.NotNil(t, got[2].TCP)
	assert.Equal(t, []byte("POST /upload HTTP/1.1"), got[2].Payload)
}

func TestOfflineSourcePcapng(t *testing.T) {
	frame := udpFrame(t)
	var buf bytes.Buffer
	writer, err := pcapgo.NewNgWriter(&buf, layers.LinkTypeEthernet)
	require.NoError(t, err)
	ci := gopacket.CaptureInfo{
		Timestamp:     time.Unix(1600000000, 0),
		CaptureLength: len(frame),
		Length:        len(frame),
	}
	require.NoError(t, writer.WritePacket(ci, frame))
	require.NoError(t, writer.Flush())

	src, err := NewOfflineSource(bytes.NewReader(buf.Bytes()), testLogger())
	require.NoError(t, err)

	got, err := collect(t, src)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, frame, got[0].Data)
}

func TestOfflineSourceGarbage(t *testing.T) {
	_, err := NewOfflineSource(bytes.NewReader([]byte("definitely not a capture file")), testLogger())
	assert.Error(t, err)
}

func TestOpenOfflineMissingFile(t *testing.T) {
	_, err := OpenOffline("/nonexistent/capture.pcap", testLogger())
	assert.Error(t, err)
}
