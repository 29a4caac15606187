package cli

import (
	"github.com/spf13/cobra"

	"github.com/eshaffer321/charter-reconciler/internal/application/reconcile"
)

// RunFlags are common flags for match and allocate
type RunFlags struct {
	DryRun    bool
	IDs       []string
	Methods   []string
	Limit     int
	ReportCSV string
	Recompute bool
}

func addRunFlags(cmd *cobra.Command, f *RunFlags) {
	cmd.Flags().BoolVar(&f.DryRun, "dry-run", false, "compute outcomes without writing links or allocations")
	cmd.Flags().StringSliceVar(&f.IDs, "ids", nil, "only process these transaction ids")
	cmd.Flags().StringSliceVar(&f.Methods, "methods", nil, "only process transactions with these payment methods")
	cmd.Flags().StringVar(&f.ReportCSV, "report-csv", "", "also write every outcome to this CSV file")
}

// ToLinkOptions converts RunFlags to reconcile.LinkOptions
func (f RunFlags) ToLinkOptions() reconcile.LinkOptions {
	return reconcile.LinkOptions{
		DryRun:         f.DryRun,
		TransactionIDs: f.IDs,
		Methods:        f.Methods,
		Limit:          f.Limit,
	}
}

// ToAllocateOptions converts RunFlags to reconcile.AllocateOptions
func (f RunFlags) ToAllocateOptions() reconcile.AllocateOptions {
	return reconcile.AllocateOptions{
		DryRun:         f.DryRun,
		Recompute:      f.Recompute,
		TransactionIDs: f.IDs,
		Methods:        f.Methods,
	}
}
