package retention

import (
	"errors"
	"time"

	"github.com/netprobe/wirewatch/config"
	"github.com/netprobe/wirewatch/pkg/packet"
	"github.com/netprobe/wirewatch/pkg/store"
	"github.com/robfig/cron"
	log "github.com/sirupsen/logrus"
)

// ErrDisabled is returned by Start when no retention window is configured
var ErrDisabled = errors.New("retention is disabled")

// Purger removes captured packets and HTTP requests that fell out of the
// retention window. System info is a singleton and is never purged.
type Purger struct {
	store       store.Repository
	collections []string
	retention   time.Duration
	schedule    string
	log         *log.Logger
	now         func() time.Time
}

// NewPurger creates a purger for the packet and HTTP request collections
func NewPurger(repo store.Repository, conf *config.Config, logger *log.Logger) *Purger {
	return &Purger{
		store: repo,
		collections: []string{
			conf.T.Structure.PacketTable,
			conf.T.Structure.HTTPRequestTable,
		},
		retention: conf.S.Storage.Retention,
		schedule:  conf.S.Storage.PurgeSchedule,
		log:       logger,
		now:       time.Now,
	}
}

// Purge deletes every document older than the retention window relative to
// now and returns the number removed
func (p *Purger) Purge(retention time.Duration) (int, error) {
	cutoff := packet.Timestamp(p.now().Add(-retention))

	total := 0
	for _, collection := range p.collections {
		removed, err := p.store.DeleteBefore(collection, cutoff)
		if err != nil {
			return total, err
		}
		total += removed

		p.log.WithFields(log.Fields{
			"collection": collection,
			"removed":    removed,
		}).Debug("Purged expired documents")
	}
	return total, nil
}

func (p *Purger) runScheduled() {
	removed, err := p.Purge(p.retention)
	if err != nil {
		p.log.WithFields(log.Fields{
			"error": err.Error(),
		}).Error("Scheduled purge failed")
		return
	}
	p.log.WithFields(log.Fields{
		"removed":   removed,
		"retention": p.retention.String(),
	}).Info("Scheduled purge finished")
}

// Start schedules the purge on the configured cron spec. The caller stops
// the returned scheduler.
func (p *Purger) Start() (*cron.Cron, error) {
	if p.retention <= 0 {
		return nil, ErrDisabled
	}

	scheduler := cron.New()
	if err := scheduler.AddFunc(p.schedule, p.runScheduled); err != nil {
		return nil, err
	}
	scheduler.Start()

	p.log.WithFields(log.Fields{
		"schedule":  p.schedule,
		"retention": p.retention.String(),
	}).Info("Retention purge scheduled")
	return scheduler, nil
}
