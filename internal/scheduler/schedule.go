// Package scheduler runs the recurring maintenance jobs: backups,
// verification sweeps, retention enforcement and health checks.
package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Schedule is a parsed schedule expression.
type Schedule struct {
	// Expression is the original expression (cron or simple).
	Expression string

	// Parsed cron fields (-1 means "any")
	minute int // 0-59
	hour   int // 0-23
	dom    int // 1-31
	month  int // 1-12
	dow    int // 0-6, Sunday=0

	// For interval-based schedules
	interval time.Duration
}

// ParseSchedule parses a schedule expression.
// Supports:
// - Simple: "hourly", "daily", "weekly"
// - Intervals: "every 6h", "every 30m"
// - Cron: "0 2 * * *" (minute hour dom month dow)
func ParseSchedule(expr string) (*Schedule, error) {
	expr = strings.TrimSpace(strings.ToLower(expr))
	s := &Schedule{Expression: expr}

	switch expr {
	case "hourly":
		s.interval = time.Hour
		return s, nil
	case "daily":
		s.hour = 2 // 2 AM
		s.minute = 0
		s.dom = -1
		s.month = -1
		s.dow = -1
		return s, nil
	case "weekly":
		s.hour = 2
		s.minute = 0
		s.dom = -1
		s.month = -1
		s.dow = 0 // Sunday
		return s, nil
	}

	// Interval format: "every Xh", "every Xm"
	if strings.HasPrefix(expr, "every ") {
		intervalStr := strings.TrimPrefix(expr, "every ")
		dur, err := time.ParseDuration(intervalStr)
		if err != nil {
			return nil, fmt.Errorf("invalid interval: %s", intervalStr)
		}
		if dur < time.Minute {
			return nil, fmt.Errorf("interval must be at least 1 minute")
		}
		s.interval = dur
		return s, nil
	}

	// Cron format: "minute hour dom month dow"
	parts := strings.Fields(expr)
	if len(parts) == 5 {
		var err error
		s.minute, err = parseCronField(parts[0], 0, 59)
		if err != nil {
			return nil, fmt.Errorf("invalid minute: %w", err)
		}
		s.hour, err = parseCronField(parts[1], 0, 23)
		if err != nil {
			return nil, fmt.Errorf("invalid hour: %w", err)
		}
		s.dom, err = parseCronField(parts[2], 1, 31)
		if err != nil {
			return nil, fmt.Errorf("invalid day of month: %w", err)
		}
		s.month, err = parseCronField(parts[3], 1, 12)
		if err != nil {
			return nil, fmt.Errorf("invalid month: %w", err)
		}
		s.dow, err = parseCronField(parts[4], 0, 6)
		if err != nil {
			return nil, fmt.Errorf("invalid day of week: %w", err)
		}
		return s, nil
	}

	return nil, fmt.Errorf("unrecognized schedule format: %s", expr)
}

func parseCronField(field string, min, max int) (int, error) {
	if field == "*" {
		return -1, nil
	}
	val, err := strconv.Atoi(field)
	if err != nil {
		return 0, err
	}
	if val < min || val > max {
		return 0, fmt.Errorf("value %d out of range [%d, %d]", val, min, max)
	}
	return val, nil
}

// IsInterval reports whether this is an interval-based schedule.
func (s *Schedule) IsInterval() bool {
	return s.interval > 0
}

// String returns the schedule expression.
func (s *Schedule) String() string {
	return s.Expression
}

// NextRun calculates the next run time after 'after'.
func (s *Schedule) NextRun(after time.Time) time.Time {
	// Interval-based: simple addition
	if s.interval > 0 {
		return after.Add(s.interval)
	}

	// Cron-based - find next matching time
	next := after.Add(time.Minute).Truncate(time.Minute)

	// Search up to 1 year ahead
	maxSearch := after.Add(365 * 24 * time.Hour)
	for next.Before(maxSearch) {
		if s.matches(next) {
			return next
		}
		next = next.Add(time.Minute)
	}

	// Fallback to 24h if no match found
	return after.Add(24 * time.Hour)
}

func (s *Schedule) matches(t time.Time) bool {
	if s.minute != -1 && t.Minute() != s.minute {
		return false
	}
	if s.hour != -1 && t.Hour() != s.hour {
		return false
	}
	if s.dom != -1 && t.Day() != s.dom {
		return false
	}
	if s.month != -1 && int(t.Month()) != s.month {
		return false
	}
	if s.dow != -1 && int(t.Weekday()) != s.dow {
		return false
	}
	return true
}
