// Package query serves read-only views over the captured records.
package query

import (
	"context"
	"sync"

	"github.com/netprobe/wirewatch/config"
	"github.com/netprobe/wirewatch/pkg/geoip"
	"github.com/netprobe/wirewatch/pkg/packet"
	"github.com/netprobe/wirewatch/pkg/store"
	"github.com/netprobe/wirewatch/pkg/sysinfo"
	log "github.com/sirupsen/logrus"
)

type (
	// TopIP is a source address with its packet count and location
	TopIP struct {
		IP      string `json:"ip"`
		Count   int    `json:"count"`
		City    string `json:"city"`
		Region  string `json:"region"`
		Country string `json:"country"`
		ISP     string `json:"isp"`
	}

	// ProtocolStat is the number of packets carrying a protocol label.
	// Protocol is nil for packets without a label.
	ProtocolStat struct {
		Protocol *string `json:"protocol_name"`
		Count    int     `json:"count"`
	}

	// Service answers the read queries
	Service struct {
		store  store.Repository
		geo    geoip.Locator
		tables config.StructureTableCfg
		api    config.APIStaticCfg
		geoCfg config.GeoIPStaticCfg
		log    *log.Logger
	}
)

// NewService builds a Service over the shared repository
func NewService(repo store.Repository, geo geoip.Locator, conf *config.Config, logger *log.Logger) *Service {
	return &Service{
		store:  repo,
		geo:    geo,
		tables: conf.T.Structure,
		api:    conf.S.API,
		geoCfg: conf.S.GeoIP,
		log:    logger,
	}
}

// RecentPackets returns the newest packet records
func (s *Service) RecentPackets() ([]packet.Record, error) {
	return s.RecentPacketsN(s.api.RecentLimit)
}

// RecentPacketsN returns up to limit packet records, newest first
func (s *Service) RecentPacketsN(limit int) ([]packet.Record, error) {
	records := []packet.Record{}
	if err := s.store.Recent(s.tables.PacketTable, limit, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// RecentHTTPRequests returns the newest HTTP requests
func (s *Service) RecentHTTPRequests() ([]packet.HTTPRequest, error) {
	return s.RecentHTTPRequestsN(s.api.RecentLimit)
}

// RecentHTTPRequestsN returns up to limit HTTP requests, newest first
func (s *Service) RecentHTTPRequestsN(limit int) ([]packet.HTTPRequest, error) {
	requests := []packet.HTTPRequest{}
	if err := s.store.Recent(s.tables.HTTPRequestTable, limit, &requests); err != nil {
		return nil, err
	}
	return requests, nil
}

// SystemInfo returns the recorded host, or nil when none was reported
func (s *Service) SystemInfo() (*sysinfo.Record, error) {
	var record sysinfo.Record
	err := s.store.FindOne(s.tables.SystemInfoTable, &record)
	if err == store.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// TopSourceIPs returns the busiest source addresses
func (s *Service) TopSourceIPs(ctx context.Context) ([]TopIP, error) {
	return s.TopSourceIPsN(ctx, s.api.TopIPLimit)
}

// TopSourceIPsN returns up to limit source addresses by packet count, each
// with its location. A failed lookup leaves the location fields N/A.
func (s *Service) TopSourceIPsN(ctx context.Context, limit int) ([]TopIP, error) {
	groups, err := s.store.GroupCount(s.tables.PacketTable, "src_ip", limit)
	if err != nil {
		return nil, err
	}

	top := make([]TopIP, len(groups))
	var wg sync.WaitGroup
	for i, group := range groups {
		top[i] = TopIP{IP: group.Value, Count: group.Count}

		wg.Add(1)
		go func(entry *TopIP) {
			defer wg.Done()
			loc := s.locate(ctx, entry.IP)
			entry.City = loc.City
			entry.Region = loc.Region
			entry.Country = loc.Country
			entry.ISP = loc.ISP
		}(&top[i])
	}
	wg.Wait()

	return top, nil
}

func (s *Service) locate(ctx context.Context, ip string) geoip.Location {
	lookupCtx, cancel := geoip.WithTimeout(ctx, s.geoCfg.Timeout)
	defer cancel()

	loc, err := s.geo.Lookup(lookupCtx, ip)
	if err != nil {
		if err != geoip.ErrNotRoutable {
			s.log.WithFields(log.Fields{
				"ip":    ip,
				"error": err.Error(),
			}).Warn("Geolocation lookup failed")
		}
		return geoip.NotAvailable()
	}
	return loc
}

// ProtocolStats counts packets per protocol label
func (s *Service) ProtocolStats() ([]ProtocolStat, error) {
	groups, err := s.store.GroupCount(s.tables.PacketTable, "protocol_name", 0)
	if err != nil {
		return nil, err
	}

	stats := make([]ProtocolStat, len(groups))
	for i, group := range groups {
		stats[i].Count = group.Count
		if group.Value != "" {
			name := group.Value
			stats[i].Protocol = &name
		}
	}
	return stats, nil
}
