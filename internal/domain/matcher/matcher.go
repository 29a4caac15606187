// Package matcher proposes and ranks business records for a transaction.
//
// Candidates come from three stages, in priority order:
//   - hint: a business key parsed from the memo or external reference
//   - exact_amount_date: amount within the epsilon and date within a few days
//   - amount_date_tolerance: amount within the tolerance over a wider window
//
// Example usage:
//
//	m := matcher.NewMatcher(matcher.DefaultConfig(), nil)
//	from, to, ok := m.SearchWindow(tx)
//	// load records dated between from and to, plus records for m.Hints(tx)
//	scored := matcher.Score(m.Generate(tx, records), m.Config())
package matcher

import (
	"sort"
	"time"

	"github.com/eshaffer321/charter-reconciler/internal/domain/hint"
	"github.com/eshaffer321/charter-reconciler/internal/domain/ledger"
	"github.com/shopspring/decimal"
)

// Matcher generates candidates for transactions
type Matcher struct {
	config Config
	hints  hint.Parser
}

// NewMatcher creates a new matcher with the given config. A nil parser uses
// the tagged-token parser.
func NewMatcher(config Config, parser hint.Parser) *Matcher {
	if parser == nil {
		parser = hint.NewTaggedTokenParser()
	}
	return &Matcher{
		config: config,
		hints:  parser,
	}
}

// Config returns the matcher configuration.
func (m *Matcher) Config() Config {
	return m.config
}

// Hints returns the business keys referenced by the transaction text.
func (m *Matcher) Hints(tx *ledger.Transaction) []ledger.BusinessKey {
	keys := m.hints.Parse(tx.Memo)
	for _, key := range m.hints.Parse(tx.ExternalReference) {
		if !containsKey(keys, key) {
			keys = append(keys, key)
		}
	}
	return keys
}

// SearchWindow returns the inclusive date range a caller must load records
// from so Generate sees every amount/date candidate. ok is false when the
// transaction has no date.
func (m *Matcher) SearchWindow(tx *ledger.Transaction) (from, to time.Time, ok bool) {
	if tx.Date == nil {
		return time.Time{}, time.Time{}, false
	}
	days := m.config.DateWindowDays
	if m.config.ToleranceWindowDays > days {
		days = m.config.ToleranceWindowDays
	}
	day := ledger.DateOnly(*tx.Date)
	return day.AddDate(0, 0, -days), day.AddDate(0, 0, days), true
}

// Generate returns the unscored candidates for tx drawn from records. A
// record appears at most once, attributed to the highest-priority stage that
// found it. Amount/date stages are skipped when the transaction has no date
// or amount.
func (m *Matcher) Generate(tx *ledger.Transaction, records []ledger.BusinessRecord) []Candidate {
	ordered := make([]ledger.BusinessRecord, len(records))
	copy(ordered, records)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].Date.Equal(ordered[j].Date) {
			return ordered[i].Date.Before(ordered[j].Date)
		}
		return ordered[i].ID < ordered[j].ID
	})

	seen := make(map[string]bool)
	var candidates []Candidate

	// Stage 1: explicit references
	for _, key := range m.Hints(tx) {
		for _, rec := range ordered {
			if rec.BusinessKey != key || seen[rec.ID] {
				continue
			}
			seen[rec.ID] = true
			candidates = append(candidates, m.candidate(tx, rec, MatchTypeHint))
		}
	}

	if tx.Date == nil || tx.Amount == nil {
		return candidates
	}

	// Stage 2: exact amount, tight window
	for _, rec := range ordered {
		if rec.Placeholder || seen[rec.ID] {
			continue
		}
		c := m.candidate(tx, rec, MatchTypeExact)
		if c.AmountDiff.LessThan(m.config.AmountEpsilon) && c.DateOffsetDays <= m.config.DateWindowDays {
			seen[rec.ID] = true
			candidates = append(candidates, c)
		}
	}

	// Stage 3: amount within tolerance, wide window
	var loose []Candidate
	for _, rec := range ordered {
		if rec.Placeholder || seen[rec.ID] {
			continue
		}
		c := m.candidate(tx, rec, MatchTypeTolerance)
		if c.AmountDiff.LessThanOrEqual(m.config.AmountTolerance) && c.DateOffsetDays <= m.config.ToleranceWindowDays {
			loose = append(loose, c)
		}
	}
	sort.SliceStable(loose, func(i, j int) bool {
		a, b := loose[i], loose[j]
		if cmp := a.AmountDiff.Cmp(b.AmountDiff); cmp != 0 {
			return cmp < 0
		}
		if a.DateOffsetDays != b.DateOffsetDays {
			return a.DateOffsetDays < b.DateOffsetDays
		}
		if !a.Record.Date.Equal(b.Record.Date) {
			return a.Record.Date.Before(b.Record.Date)
		}
		return a.Record.ID < b.Record.ID
	})
	if len(loose) > m.config.MaxCandidates {
		loose = loose[:m.config.MaxCandidates]
	}

	return append(candidates, loose...)
}

func (m *Matcher) candidate(tx *ledger.Transaction, rec ledger.BusinessRecord, matchType MatchType) Candidate {
	c := Candidate{
		TransactionID: tx.ID,
		Record:        rec,
		MatchType:     matchType,
		AmountDiff:    decimal.Zero,
	}
	if tx.Amount != nil {
		c.AmountDiff = rec.AmountDue.Sub(*tx.Amount).Abs()
	}
	if tx.Date != nil {
		c.DateOffsetDays = ledger.DaysBetween(*tx.Date, rec.Date)
	}
	return c
}

func containsKey(keys []ledger.BusinessKey, key ledger.BusinessKey) bool {
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}
