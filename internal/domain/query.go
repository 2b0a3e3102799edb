package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Query describes one date-bounded feed search for an entity.
type Query struct {
	entity    string
	startDate *time.Time
	endDate   *time.Time
	language  string
	region    string
}

// InvalidRangeError is returned when a query's start date falls after its end date.
type InvalidRangeError struct {
	Start time.Time
	End   time.Time
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("invalid date range: start %s is after end %s",
		e.Start.Format(DateLayout), e.End.Format(DateLayout))
}

// ErrEmptyEntity is returned when a query names no entity.
var ErrEmptyEntity = errors.New("entity cannot be blank")

// IsInvalidRange reports whether err carries an InvalidRangeError.
func IsInvalidRange(err error) bool {
	var rangeErr *InvalidRangeError
	return errors.As(err, &rangeErr)
}

// NewQuery validates the entity and range and builds an immutable query.
// The entity is kept exactly as given.
func NewQuery(entity, language, region string, start, end *time.Time) (Query, error) {
	if strings.TrimSpace(entity) == "" {
		return Query{}, ErrEmptyEntity
	}
	if start != nil && end != nil && truncateDay(*start).After(truncateDay(*end)) {
		return Query{}, &InvalidRangeError{Start: *start, End: *end}
	}

	return Query{
		entity:    entity,
		startDate: copyTime(start),
		endDate:   copyTime(end),
		language:  language,
		region:    region,
	}, nil
}

func (q Query) Entity() string   { return q.entity }
func (q Query) Language() string { return q.language }
func (q Query) Region() string   { return q.region }

// StartDate returns the lower bound, if any.
func (q Query) StartDate() (time.Time, bool) {
	if q.startDate == nil {
		return time.Time{}, false
	}
	return *q.startDate, true
}

// EndDate returns the upper bound, if any.
func (q Query) EndDate() (time.Time, bool) {
	if q.endDate == nil {
		return time.Time{}, false
	}
	return *q.endDate, true
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
