package packet

import (
	"bytes"
	"encoding/hex"
	"time"

	"golang.org/x/text/encoding/unicode"
)

var postMarker = []byte(MethodPOST)

// Classify maps a parsed frame to the records worth keeping. Frames without
// an IP layer produce nothing. A TCP frame whose payload contains the bytes
// "POST" anywhere additionally produces an HTTPRequest. This is a substring
// heuristic, binary payloads containing those bytes are reported as well.
func Classify(p Parsed, now time.Time) (*Record, *HTTPRequest) {
	if p.IP == nil {
		return nil, nil
	}

	ts := Timestamp(now)
	rec := &Record{
		Timestamp: ts,
		SrcIP:     p.IP.SrcIP,
		DstIP:     p.IP.DstIP,
		Protocol:  p.IP.Protocol,
		Length:    p.Length,
		RawData:   hex.EncodeToString(p.Data),
	}

	if p.TCP == nil {
		return rec, nil
	}

	srcPort, dstPort := p.TCP.SrcPort, p.TCP.DstPort
	rec.SrcPort = &srcPort
	rec.DstPort = &dstPort
	rec.ProtocolName = ProtocolTCP

	if len(p.Payload) == 0 || !bytes.Contains(p.Payload, postMarker) {
		return rec, nil
	}

	req := &HTTPRequest{
		Timestamp: ts,
		SrcIP:     p.IP.SrcIP,
		DstIP:     p.IP.DstIP,
		SrcPort:   srcPort,
		DstPort:   dstPort,
		Method:    MethodPOST,
		Payload:   DecodePayload(p.Payload),
	}
	return rec, req
}

// DecodePayload decodes payload as UTF-8 text, replacing invalid byte
// sequences with U+FFFD. It never fails.
func DecodePayload(payload []byte) string {
	decoded, err := unicode.UTF8.NewDecoder().Bytes(payload)
	if err != nil {
		return string(bytes.ToValidUTF8(payload, []byte("\uFFFD")))
	}
	return string(decoded)
}

// Timestamp converts t into floating point seconds since the epoch
func Timestamp(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
