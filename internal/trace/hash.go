package trace

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/roach88/clocksync/internal/engine"
)

// Domain prefixes for content-addressed digests.
// The version suffix allows a future change of the canonical layout.
const (
	DomainTick    = "clocksync/tick/v1"
	DomainSession = "clocksync/session/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data) as lowercase hex.
// The null separator keeps the domain/data boundary unambiguous.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// TickDigest returns the content hash of a single tick report.
func TickDigest(report engine.TickReport) (string, error) {
	canonical, err := MarshalCanonical(ReportValue(report))
	if err != nil {
		return "", fmt.Errorf("TickDigest: %w", err)
	}
	return hashWithDomain(DomainTick, canonical), nil
}

// SessionDigest returns the content hash of an ordered sequence of tick
// reports. Two runs that made the same decisions in the same order share a
// digest regardless of sequence numbering.
func SessionDigest(reports []engine.TickReport) (string, error) {
	canonical, err := MarshalCanonical(ReportsValue(reports, false))
	if err != nil {
		return "", fmt.Errorf("SessionDigest: %w", err)
	}
	return hashWithDomain(DomainSession, canonical), nil
}
