// Package monitor periodically inspects backup metadata and storage state
// for anomalies and raises deduplicated, severity-tagged alerts through
// notification channels.
package monitor

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/bastionproject/bastion/internal/errors"
	"github.com/bastionproject/bastion/internal/logging"
	"github.com/bastionproject/bastion/internal/metrics"
)

// Severity tags an alert's urgency.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
)

// AlertType identifies which check raised an alert. Deduplication keys on
// this type.
type AlertType string

const (
	AlertBackupFailed          AlertType = "backup_failed"
	AlertBackupStuck           AlertType = "backup_stuck"
	AlertSizeAnomaly           AlertType = "size_anomaly"
	AlertCapacityPressure      AlertType = "capacity_pressure"
	AlertIncompleteReplication AlertType = "incomplete_replication"
	AlertBackupStale           AlertType = "backup_stale"
)

// dedupWindow is how long an unresolved alert suppresses new alerts of the
// same type.
const dedupWindow = time.Hour

// Alert is one raised anomaly. Mutated in place for acknowledge/resolve
// and re-persisted.
type Alert struct {
	ID             string     `json:"id"`
	Type           AlertType  `json:"type"`
	Severity       Severity   `json:"severity"`
	Message        string     `json:"message"`
	Timestamp      time.Time  `json:"timestamp"`
	Resolved       bool       `json:"resolved"`
	ResolvedAt     *time.Time `json:"resolvedAt,omitempty"`
	Acknowledged   bool       `json:"acknowledged"`
	AcknowledgedBy string     `json:"acknowledgedBy,omitempty"`
	AcknowledgedAt *time.Time `json:"acknowledgedAt,omitempty"`
}

// AlertStore persists alerts one JSON file per alert under alerts/,
// keyed by alert id, with deduplicated creation.
type AlertStore struct {
	dir string

	mu     sync.RWMutex
	alerts map[string]*Alert
}

// NewAlertStore opens the alert store, loading existing alerts.
func NewAlertStore(dir string) (*AlertStore, error) {
	s := &AlertStore{dir: dir, alerts: make(map[string]*Alert)}

	entries, err := os.ReadDir(dir)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read alerts dir: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read alert %s: %w", entry.Name(), err)
		}
		var alert Alert
		if err := json.Unmarshal(data, &alert); err != nil {
			return nil, fmt.Errorf("parse alert %s: %w", entry.Name(), err)
		}
		s.alerts[alert.ID] = &alert
	}
	return s, nil
}

// Raise creates a new alert unless an unresolved alert of the same type
// was created within the dedup window, in which case it returns nil and
// the new alert is silently discarded.
func (s *AlertStore) Raise(typ AlertType, severity Severity, message string) *Alert {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for _, existing := range s.alerts {
		if existing.Type == typ && !existing.Resolved && now.Sub(existing.Timestamp) < dedupWindow {
			return nil
		}
	}

	u := uuid.New()
	alert := &Alert{
		ID:        fmt.Sprintf("alert_%d_%s", now.UnixMilli(), hex.EncodeToString(u[:4])),
		Type:      typ,
		Severity:  severity,
		Message:   message,
		Timestamp: now,
	}
	s.alerts[alert.ID] = alert

	if err := s.persist(alert); err != nil {
		logging.Error("persist alert", logging.String("id", alert.ID), logging.Err(err))
	}

	metrics.AlertsRaised.WithLabelValues(string(typ), string(severity)).Inc()
	logging.Warn("alert raised",
		logging.String("id", alert.ID),
		logging.String("type", string(typ)),
		logging.String("severity", string(severity)),
		logging.String("message", message))
	return alert
}

// Acknowledge marks an alert as seen by an operator.
func (s *AlertStore) Acknowledge(id, by string) (*Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	alert, ok := s.alerts[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrAlertNotFound, id)
	}
	now := time.Now()
	alert.Acknowledged = true
	alert.AcknowledgedBy = by
	alert.AcknowledgedAt = &now

	if err := s.persist(alert); err != nil {
		return nil, err
	}
	cp := *alert
	return &cp, nil
}

// Resolve closes an alert; a new alert of the same type may be raised
// immediately afterwards.
func (s *AlertStore) Resolve(id string) (*Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	alert, ok := s.alerts[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrAlertNotFound, id)
	}
	now := time.Now()
	alert.Resolved = true
	alert.ResolvedAt = &now

	if err := s.persist(alert); err != nil {
		return nil, err
	}
	cp := *alert
	return &cp, nil
}

// Get returns a copy of one alert.
func (s *AlertStore) Get(id string) (*Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	alert, ok := s.alerts[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrAlertNotFound, id)
	}
	cp := *alert
	return &cp, nil
}

// List returns copies of alerts, newest first. When unresolvedOnly is set,
// resolved alerts are skipped.
func (s *AlertStore) List(unresolvedOnly bool) []*Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()

	alerts := make([]*Alert, 0, len(s.alerts))
	for _, alert := range s.alerts {
		if unresolvedOnly && alert.Resolved {
			continue
		}
		cp := *alert
		alerts = append(alerts, &cp)
	}
	sort.Slice(alerts, func(i, j int) bool {
		return alerts[i].Timestamp.After(alerts[j].Timestamp)
	})
	return alerts
}

func (s *AlertStore) persist(alert *Alert) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create alerts dir: %w", err)
	}
	data, err := json.MarshalIndent(alert, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal alert %s: %w", alert.ID, err)
	}
	final := filepath.Join(s.dir, alert.ID+".json")
	tmp := final + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write alert %s: %w", alert.ID, err)
	}
	return os.Rename(tmp, final)
}
