// Package backup holds the artifact and metadata model shared by the
// producers, the verification engine, the retention enforcer, monitoring
// and the disaster-recovery orchestrator, plus the producers themselves.
package backup

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Type classifies a backup artifact.
type Type string

const (
	TypeFull         Type = "FULL"
	TypeIncremental  Type = "INCREMENTAL"
	TypeDifferential Type = "DIFFERENTIAL"
	TypeSnapshot     Type = "SNAPSHOT"
)

// Status is the lifecycle state of a backup record.
//
// IN_PROGRESS -> COMPLETED -> VERIFIED -> ARCHIVED, or IN_PROGRESS -> FAILED.
// A record's status never regresses; FAILED and ARCHIVED are terminal.
type Status string

const (
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusVerified   Status = "VERIFIED"
	StatusArchived   Status = "ARCHIVED"
	StatusFailed     Status = "FAILED"
)

// rank orders statuses along the forward-only state machine. FAILED sits
// outside the main chain and is only reachable from IN_PROGRESS.
func (s Status) rank() int {
	switch s {
	case StatusInProgress:
		return 0
	case StatusCompleted:
		return 1
	case StatusVerified:
		return 2
	case StatusArchived:
		return 3
	default:
		return -1
	}
}

// CanTransition reports whether moving from s to next is a legal forward
// step of the state machine.
func (s Status) CanTransition(next Status) bool {
	if s == next {
		return true
	}
	if next == StatusFailed {
		return s == StatusInProgress
	}
	if s == StatusFailed {
		return false
	}
	return next.rank() > s.rank()
}

// ID kind prefixes.
const (
	KindFull        = "full"
	KindIncremental = "incr"
	KindDocuments   = "docs"
)

// LocationLocal is the storage location every artifact is written to first.
const LocationLocal = "LOCAL"

// NewID generates a backup identifier of the form
// <kind>_<epoch-ms>_<random-hex>. Uniqueness comes from the timestamp plus
// 8 hex characters of fresh UUID entropy.
func NewID(kind string) string {
	u := uuid.New()
	return fmt.Sprintf("%s_%d_%s", kind, time.Now().UnixMilli(), hex.EncodeToString(u[:4]))
}

// VerificationDetails summarizes what a backup contains, for verification
// statistics. Units are physical artifacts; Records are logical rows or
// documents covered.
type VerificationDetails struct {
	Units   int    `json:"units"`
	Records int64  `json:"records"`
	Notes   string `json:"notes,omitempty"`
}

// Record is the persisted metadata for one backup artifact. One JSON file
// per record, filename <id>.json.
type Record struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Type      Type      `json:"type"`
	Status    Status    `json:"status"`

	// Size of the primary artifact in bytes.
	Size int64 `json:"size"`

	// Duration of production in milliseconds, wall-clock from invocation
	// to terminal state.
	Duration int64 `json:"duration"`

	// Checksum is the SHA-256 hex digest of the primary artifact.
	Checksum string `json:"checksum"`

	// Locations the artifact was successfully replicated to. LOCAL is
	// always first.
	Locations []string `json:"locations"`

	// RetentionUntil is when the record becomes eligible for lifecycle
	// action.
	RetentionUntil time.Time `json:"retentionUntil"`

	// Verification fields are set by the verification engine only.
	Verified              bool                 `json:"verified"`
	VerificationTimestamp *time.Time           `json:"verificationTimestamp,omitempty"`
	VerificationDetails   *VerificationDetails `json:"verificationDetails,omitempty"`

	// Error is present only when Status is FAILED.
	Error string `json:"error,omitempty"`

	// Tags carry free-form provenance (manual vs scheduled, operator).
	Tags map[string]string `json:"tags,omitempty"`
}

// Kind returns the id prefix for the record's type.
func (r *Record) Kind() string {
	switch r.Type {
	case TypeIncremental:
		return KindIncremental
	case TypeSnapshot:
		return KindDocuments
	default:
		return KindFull
	}
}

// Age returns how long ago the record was created.
func (r *Record) Age(now time.Time) time.Duration {
	return now.Sub(r.Timestamp)
}

// Stats is the aggregate read model behind GET database/statistics.
type Stats struct {
	Total           int            `json:"total"`
	ByStatus        map[Status]int `json:"byStatus"`
	ByType          map[Type]int   `json:"byType"`
	TotalSize       int64          `json:"totalSize"`
	LastFull        *time.Time     `json:"lastFull,omitempty"`
	LastIncremental *time.Time     `json:"lastIncremental,omitempty"`
	SuccessRate     float64        `json:"successRate"`
}

// ComputeStats aggregates statistics over a set of records.
func ComputeStats(records []*Record) Stats {
	stats := Stats{
		ByStatus: make(map[Status]int),
		ByType:   make(map[Type]int),
	}
	var succeeded int
	for _, r := range records {
		stats.Total++
		stats.ByStatus[r.Status]++
		stats.ByType[r.Type]++
		stats.TotalSize += r.Size

		if r.Status != StatusFailed && r.Status != StatusInProgress {
			succeeded++
			switch r.Type {
			case TypeFull:
				if stats.LastFull == nil || r.Timestamp.After(*stats.LastFull) {
					ts := r.Timestamp
					stats.LastFull = &ts
				}
			case TypeIncremental:
				if stats.LastIncremental == nil || r.Timestamp.After(*stats.LastIncremental) {
					ts := r.Timestamp
					stats.LastIncremental = &ts
				}
			}
		}
	}
	if stats.Total > 0 {
		stats.SuccessRate = float64(succeeded) / float64(stats.Total)
	}
	return stats
}
