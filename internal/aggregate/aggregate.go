// Package aggregate turns classified articles into a date-by-intent count table.
package aggregate

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"NewsIntent/internal/domain"
)

// Aggregate counts articles per publication date and intent. Articles without a
// publication timestamp are dropped. Columns are the intents that occur, sorted by name.
func Aggregate(articles []domain.ClassifiedArticle) domain.DailyIntentCounts {
	counts := map[string]map[domain.Intent]int{}
	for _, item := range articles {
		day, ok := item.Article.Day()
		if !ok {
			continue
		}
		intent := item.Intent
		if intent == "" {
			intent = domain.IntentUnknown
		}
		row, ok := counts[day]
		if !ok {
			row = map[domain.Intent]int{}
			counts[day] = row
		}
		row[intent]++
	}
	return FromCounts(counts)
}

// FromCounts builds an ordered table from raw cells. Intents listed with a zero
// count still become columns.
func FromCounts(counts map[string]map[domain.Intent]int) domain.DailyIntentCounts {
	dates := make([]string, 0, len(counts))
	seen := map[domain.Intent]struct{}{}
	cells := make(map[string]map[domain.Intent]int, len(counts))

	for day, row := range counts {
		dates = append(dates, day)
		copied := make(map[domain.Intent]int, len(row))
		for intent, n := range row {
			seen[intent] = struct{}{}
			copied[intent] = n
		}
		cells[day] = copied
	}

	intents := make([]domain.Intent, 0, len(seen))
	for intent := range seen {
		intents = append(intents, intent)
	}

	sort.Strings(dates)
	sort.Slice(intents, func(i, j int) bool { return intents[i] < intents[j] })

	return domain.NewDailyIntentCounts(dates, intents, cells)
}

// Expand rebuilds one classified article per counted item, dated at midnight UTC.
// Aggregating the result yields an equal table.
func Expand(table domain.DailyIntentCounts) []domain.ClassifiedArticle {
	var out []domain.ClassifiedArticle
	for _, day := range table.Dates() {
		published, err := time.Parse(domain.DateLayout, day)
		if err != nil {
			continue
		}
		for _, intent := range table.Intents() {
			for i := 0; i < table.Count(day, intent); i++ {
				ts := published
				out = append(out, domain.ClassifiedArticle{
					Article: domain.Article{Published: &ts},
					Intent:  intent,
				})
			}
		}
	}
	return out
}

// WriteCSV writes the table with a "date" header followed by one column per intent.
func WriteCSV(w io.Writer, table domain.DailyIntentCounts) error {
	intents := table.Intents()

	writer := csv.NewWriter(w)
	header := make([]string, 0, len(intents)+1)
	header = append(header, "date")
	for _, intent := range intents {
		header = append(header, string(intent))
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, day := range table.Dates() {
		record := make([]string, 0, len(intents)+1)
		record = append(record, day)
		for _, intent := range intents {
			record = append(record, strconv.Itoa(table.Count(day, intent)))
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write csv row %s: %w", day, err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// Summary renders a short text digest: totals per intent followed by the busiest day.
func Summary(entity string, table domain.DailyIntentCounts) string {
	if table.Empty() {
		return fmt.Sprintf("%s: no dated articles found", entity)
	}

	dates := table.Dates()
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d articles from %s to %s\n", entity, table.Total(), dates[0], dates[len(dates)-1])

	for _, intent := range table.Intents() {
		total := 0
		for _, day := range dates {
			total += table.Count(day, intent)
		}
		fmt.Fprintf(&b, "- %s: %d\n", intent, total)
	}

	busiest, busiestTotal := "", -1
	for _, day := range dates {
		dayTotal := 0
		for _, intent := range table.Intents() {
			dayTotal += table.Count(day, intent)
		}
		if dayTotal > busiestTotal {
			busiest, busiestTotal = day, dayTotal
		}
	}
	fmt.Fprintf(&b, "Busiest day: %s (%d)", busiest, busiestTotal)

	return b.String()
}
