package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/sagarc03/dams"
	"github.com/sagarc03/dams/blobstore"
	"github.com/sagarc03/dams/config"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Compare asset rows with stored blobs",
	Long: `Scan every asset row and check that its blob exists, then scan every
blob and check that a row references it.

Rows whose blob is missing (dangling) are only reported. Blobs that no row
references (orphans) are reported and, with --delete-orphans, removed once
they are older than reconcile.grace_period.

The report is printed as JSON.`,
	RunE: runReconcile,
}

func init() {
	reconcileCmd.Flags().Bool("delete-orphans", false, "delete unreferenced blobs older than the grace period")
	rootCmd.AddCommand(reconcileCmd)
}

func runReconcile(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	db, err := openDatabase(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	blobs, _, err := blobstore.Open(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer func() { _ = blobs.Close() }()

	report, err := sweep(ctx, dams.NewReconciler(db.GetRepo(), blobs), cfg.ReconcileOptions())
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

func sweep(ctx context.Context, r *dams.Reconciler, opts dams.ReconcileOptions) (dams.ReconcileReport, error) {
	slog.Info("starting reconcile", "delete_orphans", opts.DeleteOrphans, "grace_period", opts.GracePeriod)

	report, err := r.Sweep(ctx, opts)
	if err != nil {
		slog.Error("reconcile failed", "checked", report.Checked, "err", err)
		return report, fmt.Errorf("reconcile: %w", err)
	}

	slog.Info("reconcile complete",
		"checked", report.Checked,
		"blobs", report.Blobs,
		"dangling", len(report.Dangling),
		"orphans", len(report.Orphans),
		"deleted", report.Deleted,
	)
	return report, nil
}
