package usecase

import (
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// ParsePublished reads a feed timestamp in any common layout. Values without a
// zone are taken as UTC. The bool is false when the text is empty or unreadable.
func ParsePublished(raw string) (*time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, false
	}
	ts, err := dateparse.ParseIn(raw, time.UTC)
	if err != nil {
		return nil, false
	}
	return &ts, true
}
