package query

import (
	"context"
	"errors"
	"io/ioutil"
	"sync"
	"testing"

	"github.com/netprobe/wirewatch/config"
	"github.com/netprobe/wirewatch/pkg/geoip"
	"github.com/netprobe/wirewatch/pkg/packet"
	"github.com/netprobe/wirewatch/pkg/store"
	"github.com/netprobe/wirewatch/pkg/sysinfo"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLocator answers from a fixed table, any other address is unreachable
type fakeLocator struct {
	mu        sync.Mutex
	locations map[string]geoip.Location
	lookups   []string
}

func (f *fakeLocator) Lookup(ctx context.Context, ip string) (geoip.Location, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups = append(f.lookups, ip)
	if loc, ok := f.locations[ip]; ok {
		return loc, nil
	}
	return geoip.NotAvailable(), errors.New("dial tcp: connect: network is unreachable")
}

// brokenStore fails every read
type brokenStore struct {
	store.Repository
}

func (brokenStore) Recent(string, int, interface{}) error { return errors.New("socket timeout") }
func (brokenStore) FindOne(string, interface{}) error     { return errors.New("socket timeout") }
func (brokenStore) GroupCount(string, string, int) ([]store.GroupCount, error) {
	return nil, errors.New("socket timeout")
}

func testLogger() *log.Logger {
	logger := log.New()
	logger.Out = ioutil.Discard
	return logger
}

func testConfig(t *testing.T) *config.Config {
	conf, err := config.LoadTestingConfig("")
	require.NoError(t, err)
	return conf
}

func intPtr(i int) *int { return &i }

func insertPacket(t *testing.T, repo store.Repository, ts float64, src string, proto string) {
	record := &packet.Record{
		Timestamp:    ts,
		SrcIP:        src,
		DstIP:        "192.168.1.10",
		Protocol:     17,
		Length:       60,
		ProtocolName: proto,
	}
	if proto == packet.ProtocolTCP {
		record.Protocol = 6
		record.SrcPort = intPtr(443)
		record.DstPort = intPtr(51000)
	}
	require.NoError(t, repo.Insert("packets", record))
}

func TestRecentPackets(t *testing.T) {
	repo := store.NewMemoryRepository()
	for ts := 1; ts <= 5; ts++ {
		insertPacket(t, repo, float64(ts), "8.8.8.8", packet.ProtocolTCP)
	}
	service := NewService(repo, &fakeLocator{}, testConfig(t), testLogger())

	records, err := service.RecentPacketsN(2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 5.0, records[0].Timestamp)
	assert.Equal(t, 4.0, records[1].Timestamp)

	records, err = service.RecentPackets()
	require.NoError(t, err)
	assert.Len(t, records, 5)
}

func TestRecentPacketsEmpty(t *testing.T) {
	service := NewService(store.NewMemoryRepository(), &fakeLocator{}, testConfig(t), testLogger())

	records, err := service.RecentPackets()
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)

	requests, err := service.RecentHTTPRequests()
	require.NoError(t, err)
	assert.NotNil(t, requests)
	assert.Empty(t, requests)
}

func TestRecentPacketsRespectsLimit(t *testing.T) {
	repo := store.NewMemoryRepository()
	for ts := 0; ts < 150; ts++ {
		insertPacket(t, repo, float64(ts), "8.8.8.8", "")
	}
	service := NewService(repo, &fakeLocator{}, testConfig(t), testLogger())

	records, err := service.RecentPackets()
	require.NoError(t, err)
	assert.Len(t, records, 100)
	assert.Equal(t, 149.0, records[0].Timestamp)
}

func TestRecentHTTPRequests(t *testing.T) {
	repo := store.NewMemoryRepository()
	require.NoError(t, repo.Insert("http_requests", &packet.HTTPRequest{
		Timestamp: 1,
		SrcIP:     "192.168.1.10",
		DstIP:     "93.184.216.34",
		SrcPort:   51000,
		DstPort:   80,
		Method:    "POST",
		Payload:   "POST /login HTTP/1.1",
	}))
	service := NewService(repo, &fakeLocator{}, testConfig(t), testLogger())

	requests, err := service.RecentHTTPRequests()
	require.NoError(t, err)
	require.Len(t, requests, 1)
	assert.Equal(t, "POST /login HTTP/1.1", requests[0].Payload)
	assert.NotEmpty(t, requests[0].ID)
}

func TestSystemInfo(t *testing.T) {
	repo := store.NewMemoryRepository()
	service := NewService(repo, &fakeLocator{}, testConfig(t), testLogger())

	info, err := service.SystemInfo()
	require.NoError(t, err)
	assert.Nil(t, info)

	require.NoError(t, repo.ReplaceSingleton("system_info", &sysinfo.Record{
		Hostname:    "sensor-01",
		InternalIP:  "10.0.0.5",
		TotalMemory: 1024,
	}))

	info, err = service.SystemInfo()
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, "sensor-01", info.Hostname)
}

func TestTopSourceIPsUnreachableLocator(t *testing.T) {
	repo := store.NewMemoryRepository()
	for i := 0; i < 3; i++ {
		insertPacket(t, repo, float64(i), "10.0.0.1", "")
	}
	insertPacket(t, repo, 10, "8.8.8.8", packet.ProtocolTCP)

	locator := &fakeLocator{locations: map[string]geoip.Location{
		"8.8.8.8": {City: "Mountain View", Region: "California", Country: "United States", ISP: "Google LLC"},
	}}
	service := NewService(repo, locator, testConfig(t), testLogger())

	top, err := service.TopSourceIPs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []TopIP{
		{IP: "10.0.0.1", Count: 3, City: geoip.NA, Region: geoip.NA, Country: geoip.NA, ISP: geoip.NA},
		{IP: "8.8.8.8", Count: 1, City: "Mountain View", Region: "California", Country: "United States", ISP: "Google LLC"},
	}, top)
	assert.ElementsMatch(t, []string{"10.0.0.1", "8.8.8.8"}, locator.lookups)
}

func TestTopSourceIPsLimit(t *testing.T) {
	repo := store.NewMemoryRepository()
	for i := 0; i < 15; i++ {
		for n := 0; n <= i; n++ {
			insertPacket(t, repo, float64(n), "203.0.113."+string(rune('a'+i)), "")
		}
	}
	service := NewService(repo, &fakeLocator{}, testConfig(t), testLogger())

	top, err := service.TopSourceIPs(context.Background())
	require.NoError(t, err)
	require.Len(t, top, 10)
	assert.Equal(t, 15, top[0].Count)
	for i := 1; i < len(top); i++ {
		assert.True(t, top[i-1].Count >= top[i].Count)
	}
}

func TestProtocolStats(t *testing.T) {
	repo := store.NewMemoryRepository()
	insertPacket(t, repo, 1, "8.8.8.8", packet.ProtocolTCP)
	insertPacket(t, repo, 2, "8.8.8.8", packet.ProtocolTCP)
	insertPacket(t, repo, 3, "8.8.8.8", "")
	service := NewService(repo, &fakeLocator{}, testConfig(t), testLogger())

	stats, err := service.ProtocolStats()
	require.NoError(t, err)
	require.Len(t, stats, 2)
	require.NotNil(t, stats[0].Protocol)
	assert.Equal(t, "TCP", *stats[0].Protocol)
	assert.Equal(t, 2, stats[0].Count)
	assert.Nil(t, stats[1].Protocol)
	assert.Equal(t, 1, stats[1].Count)
}

func TestServiceStoreErrors(t *testing.T) {
	service := NewService(brokenStore{}, &fakeLocator{}, testConfig(t), testLogger())

	_, err := service.RecentPackets()
	assert.Error(t, err)
	_, err = service.RecentHTTPRequests()
	assert.Error(t, err)
	_, err = service.SystemInfo()
	assert.Error(t, err)
	_, err = service.TopSourceIPs(context.Background())
	assert.Error(t, err)
	_, err = service.ProtocolStats()
	assert.Error(t, err)
}
