package capture

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/pcapgo"
	"github.com/netprobe/wirewatch/pkg/packet"
	log "github.com/sirupsen/logrus"
)

// ErrReadTimeout is returned by live data sources when no frame arrived within
// the read timeout. It is not a failure.
var ErrReadTimeout = errors.New("capture read timeout")

// readRetryDelay is the pause after a transient read error
const readRetryDelay = 5 * time.Millisecond

type (
	// Stats holds the kernel counters of a live capture
	Stats struct {
		Received  int
		Dropped   int
		IfDropped int
	}

	// Handler receives each parsed frame in arrival order
	Handler func(packet.Parsed)

	// Option customizes a Source
	Option func(*Source)

	// Source pulls frames one at a time from a gopacket data source
	Source struct {
		packets *gopacket.PacketSource
		stats   func() (Stats, error)
		closer  func()
		log     *log.Logger
	}
)

// WithStats attaches a kernel statistics reader to the source
func WithStats(stats func() (Stats, error)) Option {
	return func(s *Source) {
		s.stats = stats
	}
}

// WithCloser registers a function releasing the underlying handle
func WithCloser(closer func()) Option {
	return func(s *Source) {
		s.closer = closer
	}
}

// NewSource builds a Source over any gopacket.PacketDataSource
func NewSource(data gopacket.PacketDataSource, decoder gopacket.Decoder, logger *log.Logger, opts ...Option) *Source {
	packets := gopacket.NewPacketSource(data, decoder)
	packets.DecodeOptions = gopacket.DecodeOptions{Lazy: true, NoCopy: true}

	s := &Source{
		packets: packets,
		log:     logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OpenOffline replays a pcap or pcapng file
func OpenOffline(path string, logger *log.Logger) (*Source, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	src, err := NewOfflineSource(file, logger)
	if err != nil {
		file.Close()
		return nil, err
	}
	src.closer = func() { file.Close() }
	return src, nil
}

// NewOfflineSource reads a capture file from r. Classic pcap is tried first,
// then pcapng. r must be seekable for the pcapng fallback.
func NewOfflineSource(r io.Reader, logger *log.Logger) (*Source, error) {
	reader, err := pcapgo.NewReader(r)
	if err == nil {
		return NewSource(reader, reader.LinkType(), logger), nil
	}

	seeker, ok := r.(io.Seeker)
	if !ok {
		return nil, err
	}
	if _, serr := seeker.Seek(0, io.SeekStart); serr != nil {
		return nil, serr
	}

	ngReader, ngErr := pcapgo.NewNgReader(r, pcapgo.DefaultNgReaderOptions)
	if ngErr != nil {
		return nil, ngErr
	}
	return NewSource(ngReader, ngReader.LinkType(), logger), nil
}

// Run delivers frames to handler until ctx is cancelled or the source is
// exhausted. The handler runs on the calling goroutine and the next frame is
// not read until it returns.
func (s *Source) Run(ctx context.Context, handler Handler) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		pkt, err := s.packets.NextPacket()
		switch {
		case err == nil:
			handler(Parse(pkt))
		case errors.Is(err, ErrReadTimeout):
			continue
		case err == io.EOF:
			return nil
		case isUnrecoverable(err):
			return err
		default:
			s.log.WithFields(log.Fields{
				"error": err.Error(),
			}).Warn("Failed to read packet")
			time.Sleep(readRetryDelay)
		}
	}
}

// Stats reports kernel counters. ok is false for sources without them.
func (s *Source) Stats() (Stats, bool) {
	if s.stats == nil {
		return Stats{}, false
	}
	stats, err := s.stats()
	if err != nil {
		s.log.WithFields(log.Fields{
			"error": err.Error(),
		}).Debug("Could not read capture statistics")
		return Stats{}, false
	}
	return stats, true
}

// Close releases the underlying handle
func (s *Source) Close() {
	if s.closer != nil {
		s.closer()
	}
}

func isUnrecoverable(err error) bool {
	if errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.ErrNoProgress) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, io.ErrShortBuffer) ||
		errors.Is(err, syscall.EBADF) {
		return true
	}
	return strings.Contains(err.Error(), "use of closed file")
}
