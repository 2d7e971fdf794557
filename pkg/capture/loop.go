package capture

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/netprobe/wirewatch/config"
	"github.com/netprobe/wirewatch/pkg/packet"
	"github.com/netprobe/wirewatch/pkg/store"
	log "github.com/sirupsen/logrus"
)

type (
	// Counters summarizes the work done by a Loop
	Counters struct {
		Captured     uint64
		Skipped      uint64
		Stored       uint64
		HTTPRequests uint64
		WriteErrors  uint64
	}

	// Loop classifies every frame of a Source and writes the results to the
	// store. Writes are synchronous, a failed write is logged and dropped.
	Loop struct {
		source        *Source
		store         store.Repository
		packetTable   string
		httpTable     string
		statsInterval time.Duration
		log           *log.Logger
		now           func() time.Time

		captured     uint64
		skipped      uint64
		stored       uint64
		httpRequests uint64
		writeErrors  uint64

		lastStats time.Time
	}
)

// NewLoop wires a capture source to the store using the configured collections
func NewLoop(source *Source, repo store.Repository, conf *config.Config, logger *log.Logger) *Loop {
	return &Loop{
		source:        source,
		store:         repo,
		packetTable:   conf.T.Structure.PacketTable,
		httpTable:     conf.T.Structure.HTTPRequestTable,
		statsInterval: conf.S.Capture.StatsInterval,
		log:           logger,
		now:           time.Now,
	}
}

// Run processes frames until ctx is cancelled or the source is exhausted
func (l *Loop) Run(ctx context.Context) error {
	l.lastStats = l.now()
	err := l.source.Run(ctx, l.handle)
	l.logStats()
	return err
}

// Counters returns a snapshot of the loop counters. It is safe to call while
// the loop runs.
func (l *Loop) Counters() Counters {
	return Counters{
		Captured:     atomic.LoadUint64(&l.captured),
		Skipped:      atomic.LoadUint64(&l.skipped),
		Stored:       atomic.LoadUint64(&l.stored),
		HTTPRequests: atomic.LoadUint64(&l.httpRequests),
		WriteErrors:  atomic.LoadUint64(&l.writeErrors),
	}
}

func (l *Loop) handle(parsed packet.Parsed) {
	atomic.AddUint64(&l.captured, 1)
	now := l.now()

	record, request := packet.Classify(parsed, now)
	if record == nil {
		atomic.AddUint64(&l.skipped, 1)
	} else {
		if request != nil && l.write(l.httpTable, request) {
			atomic.AddUint64(&l.httpRequests, 1)
			l.log.WithFields(log.Fields{
				"src_ip":   request.SrcIP,
				"dst_ip":   request.DstIP,
				"src_port": request.SrcPort,
				"dst_port": request.DstPort,
				"method":   request.Method,
			}).Debug("Stored HTTP request")
		}

		if l.write(l.packetTable, record) {
			atomic.AddUint64(&l.stored, 1)
			l.log.WithFields(log.Fields{
				"src_ip":        record.SrcIP,
				"dst_ip":        record.DstIP,
				"protocol":      record.Protocol,
				"protocol_name": record.ProtocolName,
				"length":        record.Length,
			}).Debug("Stored packet")
		}
	}

	if l.statsInterval > 0 && now.Sub(l.lastStats) >= l.statsInterval {
		l.lastStats = now
		l.logStats()
	}
}

// write stores doc and reports whether it succeeded
func (l *Loop) write(collection string, doc store.Document) bool {
	if err := l.store.Insert(collection, doc); err != nil {
		atomic.AddUint64(&l.writeErrors, 1)
		l.log.WithFields(log.Fields{
			"collection": collection,
			"error":      err.Error(),
		}).Error("Failed to store document")
		return false
	}
	return true
}

func (l *Loop) logStats() {
	counters := l.Counters()
	fields := log.Fields{
		"captured":      counters.Captured,
		"skipped":       counters.Skipped,
		"stored":        counters.Stored,
		"http_requests": counters.HTTPRequests,
		"write_errors":  counters.WriteErrors,
	}
	if stats, ok := l.source.Stats(); ok {
		fields["kernel_received"] = stats.Received
		fields["kernel_dropped"] = stats.Dropped
		fields["interface_dropped"] = stats.IfDropped
	}
	l.log.WithFields(fields).Info("Capture statistics")
}
