// Package report writes run outcomes to files an operator can review.
package report

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/eshaffer321/charter-reconciler/internal/application/reconcile"
)

var header = []string{
	"run_id",
	"transaction_id",
	"status",
	"reason",
	"business_keys",
	"match_type",
	"score",
	"candidate_count",
	"allocations",
	"needs_review",
	"dry_run",
	"error",
}

// CSVSink writes one line per outcome. It is safe for concurrent use.
type CSVSink struct {
	mu      sync.Mutex
	w       *csv.Writer
	closer  io.Closer
	started bool
}

var _ reconcile.Sink = (*CSVSink)(nil)

// NewCSVSink writes to w. The header is written with the first outcome.
func NewCSVSink(w io.Writer) *CSVSink {
	s := &CSVSink{w: csv.NewWriter(w)}
	if c, ok := w.(io.Closer); ok {
		s.closer = c
	}
	return s
}

// CreateCSVSink creates (or truncates) the file at path.
func CreateCSVSink(path string) (*CSVSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create report: %w", err)
	}
	return NewCSVSink(f), nil
}

// Record implements reconcile.Sink.
func (s *CSVSink) Record(_ context.Context, runID string, o reconcile.Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		if err := s.w.Write(header); err != nil {
			return err
		}
		s.started = true
	}

	if err := s.w.Write(row(runID, o)); err != nil {
		return err
	}
	s.w.Flush()
	return s.w.Error()
}

// Close flushes buffered lines and closes the underlying file, if any.
func (s *CSVSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.w.Flush()
	if err := s.w.Error(); err != nil {
		return err
	}
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

func row(runID string, o reconcile.Outcome) []string {
	keys := string(o.BusinessKey)
	if keys == "" {
		parts := make([]string, len(o.BusinessKeys))
		for i, k := range o.BusinessKeys {
			parts[i] = string(k)
		}
		keys = strings.Join(parts, ";")
	}

	score := ""
	if o.Score != nil {
		score = strconv.FormatFloat(*o.Score, 'f', 4, 64)
	}

	allocations := make([]string, 0, len(o.Allocations))
	for _, a := range o.Allocations {
		target := a.TargetBusinessRecordID
		if a.IsRemainder {
			target = "remainder"
		}
		allocations = append(allocations, target+"="+a.Amount.StringFixed(2))
	}

	return []string{
		runID,
		o.TransactionID,
		string(o.Status),
		o.ReasonText(),
		keys,
		string(o.MatchType),
		score,
		strconv.Itoa(o.CandidateCount),
		strings.Join(allocations, ";"),
		strconv.FormatBool(o.NeedsReview),
		strconv.FormatBool(o.DryRun),
		o.ErrorText(),
	}
}
