package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/eshaffer321/charter-reconciler/internal/application/reconcile"
)

// PrintHeader prints the command header
func PrintHeader(w io.Writer, command string, dryRun bool) {
	mode := "PRODUCTION"
	if dryRun {
		mode = "DRY-RUN"
	}
	fmt.Fprintf(w, "reconciler: %s (%s mode)\n", command, mode)
}

// PrintSummary prints the counts of a run and the reasons transactions
// were skipped.
func PrintSummary(w io.Writer, result *reconcile.Result) {
	fmt.Fprintln(w, strings.Repeat("-", 60))
	fmt.Fprintf(w, "Run %s: Processed=%d Applied=%d Allocated=%d Skipped=%d\n",
		result.RunID,
		result.Processed,
		result.Applied,
		result.Allocated,
		result.SkippedTotal())

	if len(result.Skipped) > 0 {
		reasons := make([]string, 0, len(result.Skipped))
		for reason := range result.Skipped {
			reasons = append(reasons, string(reason))
		}
		sort.Strings(reasons)

		fmt.Fprintln(w, "\nSkipped by reason:")
		for _, reason := range reasons {
			fmt.Fprintf(w, "  %-24s %d\n", reason, result.Skipped[reconcile.Reason(reason)])
		}
	}

	var review []string
	for _, o := range result.Outcomes {
		if o.NeedsReview {
			review = append(review, o.TransactionID)
		}
		if o.Err != nil {
			fmt.Fprintf(w, "  error %s: %v\n", o.TransactionID, o.Err)
		}
	}
	if len(review) > 0 {
		fmt.Fprintf(w, "\nNeeds review (remainder rows): %s\n", strings.Join(review, ", "))
	}
}
