// Package reconcile links incoming transactions to business records and
// spreads aggregated deposits across the records they pay.
//
// A linking run loads unmatched transactions and, for each one, generates
// and scores candidates, decides whether a single safe link exists, and
// applies it with a compare-and-set write. An allocation run splits deposits
// proportionally across open records. Both runs produce exactly one Outcome
// per transaction and record it to the store and any configured Sink.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/eshaffer321/charter-reconciler/internal/domain/hint"
	"github.com/eshaffer321/charter-reconciler/internal/domain/ledger"
	"github.com/eshaffer321/charter-reconciler/internal/domain/matcher"
	"github.com/eshaffer321/charter-reconciler/internal/infrastructure/storage"
)

// Engine runs linking and allocation batches
type Engine struct {
	store   Store
	matcher *matcher.Matcher
	config  Config
	sink    Sink
	logger  *slog.Logger
}

// Option configures an Engine.
type Option func(*engineOptions)

type engineOptions struct {
	sink   Sink
	parser hint.Parser
}

// WithSink adds a sink that receives every outcome.
func WithSink(s Sink) Option {
	return func(o *engineOptions) { o.sink = s }
}

// WithHintParser replaces the reference hint parser.
func WithHintParser(p hint.Parser) Option {
	return func(o *engineOptions) { o.parser = p }
}

// NewEngine creates an engine. Invalid configuration is rejected before any
// processing can start.
func NewEngine(store Store, config Config, logger *slog.Logger, opts ...Option) (*Engine, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if store == nil {
		return nil, fmt.Errorf("%w: store is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = slog.Default()
	}

	var o engineOptions
	for _, opt := range opts {
		opt(&o)
	}

	return &Engine{
		store:   store,
		matcher: matcher.NewMatcher(config.Matcher, o.parser),
		config:  config,
		sink:    o.sink,
		logger:  logger,
	}, nil
}

// LinkTransactions processes unmatched transactions in date order. When ctx
// is cancelled the run stops between transactions and the partial result is
// returned together with the context error.
func (e *Engine) LinkTransactions(ctx context.Context, opts LinkOptions) (*Result, error) {
	txs, err := e.store.ListUnmatchedTransactions(ctx, storage.TransactionFilter{
		IDs:     opts.TransactionIDs,
		Methods: opts.Methods,
		Limit:   opts.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}

	run, err := e.store.StartRun(ctx, storage.RunKindMatch, opts.DryRun)
	if err != nil {
		return nil, err
	}

	e.logger.Info("Starting match run",
		"run_id", run.ID,
		"transactions", len(txs),
		"dry_run", opts.DryRun)

	applier := NewApplier(e.store, e.config, e.logger)
	result := newResult(run.ID)

	for _, tx := range txs {
		if err := ctx.Err(); err != nil {
			e.finishRun(ctx, run, result, storage.RunStatusCancelled)
			return result, err
		}

		outcome := e.linkOne(ctx, applier, tx, opts.DryRun)
		e.record(ctx, run.ID, outcome)
		result.add(outcome)
	}

	e.finishRun(ctx, run, result, "")
	return result, nil
}

func (e *Engine) linkOne(ctx context.Context, applier *Applier, tx *ledger.Transaction, dryRun bool) Outcome {
	if !tx.HasRequiredFields() {
		return skipped(tx, ReasonMissingFields, dryRun)
	}

	records, err := e.loadRecords(ctx, tx)
	if err != nil {
		o := skipped(tx, ReasonError, dryRun)
		o.Err = err
		return o
	}

	scored := matcher.Score(e.matcher.Generate(tx, records), e.config.Matcher)
	decision := applier.Decide(tx, scored)

	e.logger.Debug("Decided",
		"transaction_id", tx.ID,
		"candidates", len(scored),
		"action", decision.Action,
		"reason", decision.Reason)

	return applier.Apply(ctx, tx, decision, dryRun)
}

// loadRecords fetches, fresh for each transaction, the records its hints
// name and the records inside the generator's search window.
func (e *Engine) loadRecords(ctx context.Context, tx *ledger.Transaction) ([]ledger.BusinessRecord, error) {
	hinted, err := e.store.FindRecordsByKeys(ctx, e.matcher.Hints(tx))
	if err != nil {
		return nil, fmt.Errorf("failed to load hinted records: %w", err)
	}

	from, to, ok := e.matcher.SearchWindow(tx)
	if !ok {
		return hinted, nil
	}
	windowed, err := e.store.ListRecordsInWindow(ctx, from, to, false)
	if err != nil {
		return nil, fmt.Errorf("failed to load records in window: %w", err)
	}

	seen := make(map[string]bool, len(hinted))
	records := make([]ledger.BusinessRecord, 0, len(hinted)+len(windowed))
	for _, r := range append(hinted, windowed...) {
		if seen[r.ID] {
			continue
		}
		seen[r.ID] = true
		records = append(records, r)
	}
	return records, nil
}
