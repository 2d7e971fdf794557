// Package live opens libpcap capture handles for the capture package.
package live

import (
	"fmt"

	"github.com/google/gopacket"
	"github.com/google/gopacket/pcap"
	"github.com/netprobe/wirewatch/config"
	"github.com/netprobe/wirewatch/pkg/capture"
	log "github.com/sirupsen/logrus"
)

// handle adapts a pcap handle so read timeouts surface as capture.ErrReadTimeout
type handle struct {
	*pcap.Handle
}

func (h handle) ReadPacketData() ([]byte, gopacket.CaptureInfo, error) {
	data, ci, err := h.Handle.ReadPacketData()
	if err == pcap.NextErrorTimeoutExpired {
		return nil, ci, capture.ErrReadTimeout
	}
	return data, ci, err
}

func (h handle) stats() (capture.Stats, error) {
	stats, err := h.Handle.Stats()
	if err != nil {
		return capture.Stats{}, err
	}
	return capture.Stats{
		Received:  stats.PacketsReceived,
		Dropped:   stats.PacketsDropped,
		IfDropped: stats.PacketsIfDropped,
	}, nil
}

// Open starts a live capture on the configured interface
func Open(cfg config.CaptureStaticCfg, logger *log.Logger) (*capture.Source, error) {
	pcapHandle, err := pcap.OpenLive(cfg.Interface, cfg.SnapshotLength, cfg.Promiscuous, cfg.ReadTimeout)
	if err != nil {
		return nil, fmt.Errorf("could not open interface %s: %w", cfg.Interface, err)
	}

	if cfg.BPFFilter != "" {
		if err := pcapHandle.SetBPFFilter(cfg.BPFFilter); err != nil {
			pcapHandle.Close()
			return nil, fmt.Errorf("invalid bpf filter %q: %w", cfg.BPFFilter, err)
		}
	}

	logger.WithFields(log.Fields{
		"interface":   cfg.Interface,
		"snaplen":     cfg.SnapshotLength,
		"promiscuous": cfg.Promiscuous,
		"filter":      cfg.BPFFilter,
		"link_type":   pcapHandle.LinkType().String(),
	}).Info("Capture started")

	h := handle{pcapHandle}
	return capture.NewSource(h, pcapHandle.LinkType(), logger,
		capture.WithStats(h.stats),
		capture.WithCloser(pcapHandle.Close),
	), nil
}
