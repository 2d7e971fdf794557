// Package sysinfo records the identity of the capturing host.
package sysinfo

import (
	"fmt"
	"net"
	"os"

	"github.com/netprobe/wirewatch/pkg/store"
	"github.com/netprobe/wirewatch/util"
	"github.com/pbnjay/memory"
	log "github.com/sirupsen/logrus"
)

// probeAddress is only used to pick a route, nothing is sent to it
const probeAddress = "8.8.8.8:80"

type (
	// Record describes the host running the capture
	Record struct {
		ID          string `bson:"_id" json:"_id"`
		Hostname    string `bson:"hostname" json:"hostname"`
		InternalIP  string `bson:"internal_ip" json:"internal_ip"`
		TotalMemory uint64 `bson:"total_memory" json:"total_memory"`
	}

	// Resolver gathers host facts from the operating system
	Resolver interface {
		Hostname() (string, error)
		LookupHost(host string) ([]string, error)
		OutboundIP() (string, error)
		TotalMemory() uint64
	}

	// Reporter writes the host Record to the store
	Reporter struct {
		store      store.Repository
		collection string
		resolve    Resolver
		log        *log.Logger
	}

	// systemResolver queries the running host
	systemResolver struct{}
)

// SetID assigns the store identity of the record
func (r *Record) SetID(id string) { r.ID = id }

// NewReporter builds a Reporter backed by the running host
func NewReporter(repo store.Repository, collection string, logger *log.Logger) *Reporter {
	return NewReporterWithResolver(repo, collection, systemResolver{}, logger)
}

// NewReporterWithResolver builds a Reporter with custom host facts
func NewReporterWithResolver(repo store.Repository, collection string, resolve Resolver, logger *log.Logger) *Reporter {
	return &Reporter{
		store:      repo,
		collection: collection,
		resolve:    resolve,
		log:        logger,
	}
}

// Report gathers the host facts and replaces the stored Record
func (r *Reporter) Report() (*Record, error) {
	record, err := r.Collect()
	if err != nil {
		return nil, err
	}

	if err := r.store.ReplaceSingleton(r.collection, record); err != nil {
		return nil, fmt.Errorf("could not store system info: %w", err)
	}

	r.log.WithFields(log.Fields{
		"hostname":     record.Hostname,
		"internal_ip":  record.InternalIP,
		"total_memory": record.TotalMemory,
	}).Info("System info recorded")
	return record, nil
}

// Collect gathers the host facts without storing them
func (r *Reporter) Collect() (*Record, error) {
	hostname, err := r.resolve.Hostname()
	if err != nil {
		return nil, fmt.Errorf("could not determine hostname: %w", err)
	}

	internalIP, err := r.primaryIPv4(hostname)
	if err != nil {
		return nil, err
	}

	return &Record{
		Hostname:    hostname,
		InternalIP:  internalIP,
		TotalMemory: r.resolve.TotalMemory(),
	}, nil
}

// primaryIPv4 prefers the addresses the hostname resolves to. Hosts that
// resolve only to loopback fall back to the address of the outbound route.
func (r *Reporter) primaryIPv4(hostname string) (string, error) {
	addrs, err := r.resolve.LookupHost(hostname)
	if err != nil {
		r.log.WithFields(log.Fields{
			"hostname": hostname,
			"error":    err.Error(),
		}).Warn("Could not resolve hostname")
	}
	if ip, ok := util.FirstIPv4(addrs); ok {
		return ip, nil
	}

	ip, err := r.resolve.OutboundIP()
	if err != nil {
		return "", fmt.Errorf("could not determine internal ip: %w", err)
	}
	return ip, nil
}

func (systemResolver) Hostname() (string, error) {
	return os.Hostname()
}

func (systemResolver) LookupHost(host string) ([]string, error) {
	return net.LookupHost(host)
}

// OutboundIP reads the local address of a UDP socket connected toward a
// public address. Connecting a UDP socket sends no packets.
func (systemResolver) OutboundIP() (string, error) {
	conn, err := net.Dial("udp4", probeAddress)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return "", fmt.Errorf("unexpected local address %s", conn.LocalAddr())
	}
	return addr.IP.String(), nil
}

func (systemResolver) TotalMemory() uint64 {
	return memory.TotalMemory()
}
