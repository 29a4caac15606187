package reconcile

import (
	"context"
	"testing"

	"github.com/eshaffer321/charter-reconciler/internal/domain/ledger"
	"github.com/eshaffer321/charter-reconciler/internal/domain/matcher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeTx(amount, date string) *ledger.Transaction {
	a := money(amount)
	d := day(date)
	return &ledger.Transaction{ID: "T1", Amount: &a, Date: &d}
}

func cand(id string, t matcher.MatchType, due, date string, score float64, tier matcher.Tier) matcher.Candidate {
	return matcher.Candidate{
		TransactionID: "T1",
		Record: ledger.BusinessRecord{
			ID:          id,
			BusinessKey: ledger.BusinessKey("k" + id),
			Date:        day(date),
			AmountDue:   money(due),
			OpenAmount:  money(due),
		},
		MatchType: t,
		Score:     score,
		Tier:      tier,
	}
}

func TestDecide(t *testing.T) {
	a := NewApplier(nil, DefaultConfig(), nil)
	tx := makeTx("500.00", "2024-03-10")

	tests := []struct {
		name      string
		tx        *ledger.Transaction
		cands     []matcher.Candidate
		action    Action
		reason    Reason
		ambiguous int
	}{
		{
			name:   "no candidates",
			tx:     tx,
			action: ActionSkip,
			reason: ReasonNoStrongCandidates,
		},
		{
			name:   "single hint links",
			tx:     tx,
			cands:  []matcher.Candidate{cand("R1", matcher.MatchTypeHint, "500.00", "2024-03-09", 1, matcher.TierStrong)},
			action: ActionLink,
		},
		{
			name: "equal exact candidates are ambiguous",
			tx:   tx,
			cands: []matcher.Candidate{
				cand("R1", matcher.MatchTypeExact, "500.00", "2024-03-10", 1, matcher.TierStrong),
				cand("R2", matcher.MatchTypeExact, "500.00", "2024-03-10", 1, matcher.TierStrong),
			},
			action:    ActionSkip,
			reason:    ReasonAmbiguousCandidates,
			ambiguous: 2,
		},
		{
			name:   "tolerance not in default allow-list",
			tx:     tx,
			cands:  []matcher.Candidate{cand("R1", matcher.MatchTypeTolerance, "500.05", "2024-03-10", 0.95, matcher.TierStrong)},
			action: ActionSkip,
			reason: ReasonNoStrongCandidates,
		},
		{
			name: "exact candidate failing re-check is dropped",
			tx:   tx,
			cands: []matcher.Candidate{
				cand("R1", matcher.MatchTypeExact, "500.00", "2024-03-20", 0.8, matcher.TierStrong),
			},
			action: ActionSkip,
			reason: ReasonNoStrongCandidates,
		},
		{
			name: "duplicate record counted once",
			tx:   tx,
			cands: []matcher.Candidate{
				cand("R1", matcher.MatchTypeHint, "500.00", "2024-03-10", 1, matcher.TierStrong),
				cand("R1", matcher.MatchTypeExact, "500.00", "2024-03-10", 1, matcher.TierStrong),
			},
			action: ActionLink,
		},
		{
			name: "several hints allocate",
			tx:   tx,
			cands: []matcher.Candidate{
				cand("R1", matcher.MatchTypeHint, "300.00", "2024-01-01", 1, matcher.TierStrong),
				cand("R2", matcher.MatchTypeHint, "200.00", "2024-01-02", 1, matcher.TierStrong),
			},
			action: ActionAllocate,
		},
		{
			name: "hint plus exact is ambiguous",
			tx:   tx,
			cands: []matcher.Candidate{
				cand("R1", matcher.MatchTypeHint, "300.00", "2024-01-01", 1, matcher.TierStrong),
				cand("R2", matcher.MatchTypeExact, "500.00", "2024-03-10", 1, matcher.TierStrong),
			},
			action:    ActionSkip,
			reason:    ReasonAmbiguousCandidates,
			ambiguous: 2,
		},
		{
			name:   "missing amount",
			tx:     &ledger.Transaction{ID: "T1", Date: tx.Date},
			cands:  []matcher.Candidate{cand("R1", matcher.MatchTypeHint, "500.00", "2024-03-10", 1, matcher.TierStrong)},
			action: ActionSkip,
			reason: ReasonMissingFields,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := a.Decide(tt.tx, tt.cands)
			assert.Equal(t, tt.action, d.Action)
			assert.Equal(t, tt.reason, d.Reason)
			assert.Equal(t, tt.ambiguous, d.AmbiguousCount)
			assert.Equal(t, len(tt.cands), d.CandidateCount)
		})
	}
}

func TestDecide_WeakToleranceNeverApplied(t *testing.T) {
	config := DefaultConfig()
	config.AllowedMatchTypes = append(config.AllowedMatchTypes, matcher.MatchTypeTolerance)
	a := NewApplier(nil, config, nil)

	d := a.Decide(makeTx("500.00", "2024-03-10"), []matcher.Candidate{
		cand("R1", matcher.MatchTypeTolerance, "500.50", "2024-03-10", 0.5, matcher.TierWeak),
	})
	assert.Equal(t, ReasonNoStrongCandidates, d.Reason)

	d = a.Decide(makeTx("500.00", "2024-03-10"), []matcher.Candidate{
		cand("R1", matcher.MatchTypeTolerance, "500.05", "2024-03-10", 0.95, matcher.TierStrong),
	})
	assert.Equal(t, ActionLink, d.Action)
}

func TestApply_ReapplyIsNoop(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	seedTx(t, store, "T1", "500.00", "2024-03-10", "deposit", "dep #012345")
	seedRecord(t, store, "R1", "012345", "500.00", "2024-03-09")

	engine := newTestEngine(t, store)
	first, err := engine.LinkTransactions(ctx, LinkOptions{})
	require.NoError(t, err)
	require.Equal(t, 1, first.Applied)

	linked, err := store.GetTransaction(ctx, "T1")
	require.NoError(t, err)
	rec, err := store.GetBusinessRecord(ctx, "R1")
	require.NoError(t, err)

	a := NewApplier(store, DefaultConfig(), nil)
	c := matcher.Candidate{Record: *rec, MatchType: matcher.MatchTypeHint, Score: 1, Tier: matcher.TierStrong}
	o := a.Apply(ctx, linked, a.Decide(linked, []matcher.Candidate{c}), false)

	assert.Equal(t, StatusApplied, o.Status)
	assert.Equal(t, first.Outcomes[0].BusinessKey, o.BusinessKey)

	after, err := store.GetTransaction(ctx, "T1")
	require.NoError(t, err)
	assert.Equal(t, linked, after, "no writes on re-apply")
}

func TestApply_DryRunClaimsRecords(t *testing.T) {
	ctx := context.Background()
	a := NewApplier(nil, DefaultConfig(), nil)
	c := cand("R1", matcher.MatchTypeExact, "500.00", "2024-03-10", 1, matcher.TierStrong)

	first := makeTx("500.00", "2024-03-10")
	o := a.Apply(ctx, first, a.Decide(first, []matcher.Candidate{c}), true)
	assert.Equal(t, StatusApplied, o.Status)
	assert.True(t, o.DryRun)

	second := makeTx("500.00", "2024-03-10")
	second.ID = "T2"
	o = a.Apply(ctx, second, a.Decide(second, []matcher.Candidate{c}), true)
	assert.Equal(t, StatusSkipped, o.Status)
	assert.Equal(t, ReasonConflict, o.Reason)
}

func TestApply_DryRunSeesExistingHolder(t *testing.T) {
	a := NewApplier(nil, DefaultConfig(), nil)
	c := cand("R1", matcher.MatchTypeExact, "500.00", "2024-03-10", 1, matcher.TierStrong)
	c.Record.LinkedTransactionID = "T0"

	tx := makeTx("500.00", "2024-03-10")
	o := a.Apply(context.Background(), tx, a.Decide(tx, []matcher.Candidate{c}), true)
	assert.Equal(t, ReasonConflict, o.Reason)
}

func TestOutcome_ReasonText(t *testing.T) {
	o := Outcome{Status: StatusSkipped, Reason: ReasonAmbiguousCandidates, AmbiguousCount: 3}
	assert.Equal(t, "ambiguous_candidates=3", o.ReasonText())

	o = Outcome{Status: StatusSkipped, Reason: ReasonConflict}
	assert.Equal(t, "conflict", o.ReasonText())
}
