package domain

// DailyIntentCounts is a date-by-intent count matrix.
// Rows are ascending YYYY-MM-DD dates; columns are the intents that occur at
// least once. Pairs absent from the data read as zero.
type DailyIntentCounts struct {
	dates   []string
	intents []Intent
	counts  map[string]map[Intent]int
}

// NewDailyIntentCounts takes ownership of already-ordered rows, columns and cells.
func NewDailyIntentCounts(dates []string, intents []Intent, counts map[string]map[Intent]int) DailyIntentCounts {
	if counts == nil {
		counts = map[string]map[Intent]int{}
	}
	return DailyIntentCounts{dates: dates, intents: intents, counts: counts}
}

// Dates returns a copy of the row keys.
func (t DailyIntentCounts) Dates() []string {
	return append([]string(nil), t.dates...)
}

// Intents returns a copy of the column keys.
func (t DailyIntentCounts) Intents() []Intent {
	return append([]Intent(nil), t.intents...)
}

// Count returns the number of articles for a (date, intent) pair.
func (t DailyIntentCounts) Count(date string, intent Intent) int {
	return t.counts[date][intent]
}

// Total sums every cell of the table.
func (t DailyIntentCounts) Total() int {
	total := 0
	for _, row := range t.counts {
		for _, n := range row {
			total += n
		}
	}
	return total
}

// Empty reports whether the table has no rows.
func (t DailyIntentCounts) Empty() bool {
	return len(t.dates) == 0
}

// Equal compares two tables cell by cell, including row and column order.
func (t DailyIntentCounts) Equal(other DailyIntentCounts) bool {
	if len(t.dates) != len(other.dates) || len(t.intents) != len(other.intents) {
		return false
	}
	for i := range t.dates {
		if t.dates[i] != other.dates[i] {
			return false
		}
	}
	for i := range t.intents {
		if t.intents[i] != other.intents[i] {
			return false
		}
	}
	for _, date := range t.dates {
		for _, intent := range t.intents {
			if t.Count(date, intent) != other.Count(date, intent) {
				return false
			}
		}
	}
	return true
}
