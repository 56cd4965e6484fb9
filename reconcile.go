package dams

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ReconcileOptions controls a reconciliation sweep.
type ReconcileOptions struct {
	// DeleteOrphans removes blobs that no asset row references.
	DeleteOrphans bool
	// GracePeriod protects blobs modified more recently than this from
	// deletion, so uploads whose row insert is still in flight survive.
	GracePeriod time.Duration
}

// ReconcileReport summarizes one sweep.
type ReconcileReport struct {
	Checked  int      `json:"checked"`
	Blobs    int      `json:"blobs"`
	Dangling []Asset  `json:"dangling"`
	Orphans  []string `json:"orphans"`
	Deleted  int      `json:"deleted"`
}

// Reconciler compares the metadata repository with the blob store and
// reports the inconsistencies left behind by partial failures.
type Reconciler struct {
	repo  AssetRepo
	blobs BlobBackend
	now   func() time.Time
}

func NewReconciler(repo AssetRepo, blobs BlobBackend) *Reconciler {
	return &Reconciler{repo: repo, blobs: blobs, now: time.Now}
}

// Sweep checks every asset row for a backing blob (dangling rows) and every
// blob for a referencing row (orphans). Dangling rows are only reported.
// Orphans are deleted when opts.DeleteOrphans is set and they are older than
// opts.GracePeriod.
//
// The sweep stops at the first repository or storage error and returns the
// partial report alongside it.
func (r *Reconciler) Sweep(ctx context.Context, opts ReconcileOptions) (ReconcileReport, error) {
	report := ReconcileReport{Dangling: []Asset{}, Orphans: []string{}}

	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("reconcile: %w", err)
	}

	assets, err := r.repo.ListAssets(ctx, "")
	if err != nil {
		return report, fmt.Errorf("reconcile: list assets: %w", repositoryFailure(err))
	}

	referenced := make(map[string]struct{}, len(assets))
	for _, a := range assets {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("reconcile: %w", err)
		}

		referenced[a.StorageKey] = struct{}{}
		report.Checked++

		ok, existsErr := r.blobs.Exists(ctx, a.StorageKey)
		if existsErr != nil {
			return report, fmt.Errorf("reconcile asset %s: %w", a.ID, storageFailure(existsErr))
		}
		if !ok {
			slog.Warn("dangling asset: blob missing", "asset_id", a.ID, "key", a.StorageKey)
			report.Dangling = append(report.Dangling, a)
		}
	}

	blobs, err := r.blobs.List(ctx)
	if err != nil {
		return report, fmt.Errorf("reconcile: list blobs: %w", storageFailure(err))
	}
	report.Blobs = len(blobs)

	cutoff := r.now().Add(-opts.GracePeriod)
	for _, b := range blobs {
		if _, ok := referenced[b.Key]; ok {
			continue
		}

		slog.Warn("orphaned blob: no asset references it", "key", b.Key, "size", b.Size)
		report.Orphans = append(report.Orphans, b.Key)

		if !opts.DeleteOrphans || b.ModifiedAt.After(cutoff) {
			continue
		}

		delErr := r.blobs.Delete(ctx, b.Key)
		if delErr != nil && !errors.Is(delErr, ErrNotFound) {
			return report, fmt.Errorf("reconcile: delete orphan %s: %w", b.Key, storageFailure(delErr))
		}
		report.Deleted++
	}

	return report, nil
}
