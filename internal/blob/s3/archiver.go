package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/perpdash/internal/domain"
)

const (
	contentTypeJSONL = "application/x-ndjson"
	// batches above this size go through the multipart uploader
	multipartThreshold = 8 << 20
	defaultBatchSize   = 5000
)

// SnapshotSource is the slice of domain.SnapshotStore the archiver needs.
type SnapshotSource interface {
	ListBefore(ctx context.Context, before time.Time, limit int) ([]domain.PortfolioSnapshot, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// OrderSetSource is the slice of domain.OrderSetStore the archiver needs.
type OrderSetSource interface {
	ListBefore(ctx context.Context, before time.Time, limit int) ([]domain.OrderSet, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// ArchiverConfig tunes the archiver.
type ArchiverConfig struct {
	BatchSize int  // rows per object
	Prune     bool // delete rows from postgres after a successful upload
}

// Archiver implements domain.Archiver: rows older than the cutoff are
// written to the bucket as JSON lines, audited, and optionally pruned.
type Archiver struct {
	writer    domain.BlobWriter
	snapshots SnapshotSource
	sets      OrderSetSource
	audit     domain.AuditStore
	cfg       ArchiverConfig
	logger    *slog.Logger
}

// NewArchiver creates an Archiver.
func NewArchiver(
	writer domain.BlobWriter,
	snapshots SnapshotSource,
	sets OrderSetSource,
	audit domain.AuditStore,
	cfg ArchiverConfig,
	logger *slog.Logger,
) *Archiver {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	return &Archiver{
		writer:    writer,
		snapshots: snapshots,
		sets:      sets,
		audit:     audit,
		cfg:       cfg,
		logger:    logger.With(slog.String("component", "archiver")),
	}
}

// ArchiveSnapshots uploads portfolio snapshots taken before the cutoff.
func (a *Archiver) ArchiveSnapshots(ctx context.Context, before time.Time) (int64, error) {
	rows, err := a.snapshots.ListBefore(ctx, before, a.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive snapshots: %w", err)
	}
	return archive(ctx, a, "portfolio_snapshots", before, rows, a.snapshots.DeleteBefore)
}

// ArchiveOrderSets uploads finished order sets created before the cutoff.
func (a *Archiver) ArchiveOrderSets(ctx context.Context, before time.Time) (int64, error) {
	rows, err := a.sets.ListBefore(ctx, before, a.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive order sets: %w", err)
	}
	return archive(ctx, a, "order_sets", before, rows, a.sets.DeleteBefore)
}

func archive[T any](
	ctx context.Context,
	a *Archiver,
	kind string,
	before time.Time,
	rows []T,
	prune func(context.Context, time.Time) (int64, error),
) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	body, err := marshalJSONL(rows)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive %s: %w", kind, err)
	}

	path := archivePath(kind, before)
	if len(body) > multipartThreshold {
		err = a.writer.PutMultipart(ctx, path, bytes.NewReader(body), minPartSize)
	} else {
		err = a.writer.Put(ctx, path, bytes.NewReader(body), contentTypeJSONL)
	}
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive %s: %w", kind, err)
	}
	count := int64(len(rows))

	// A partial batch means every row before the cutoff is now in the bucket.
	var pruned int64
	if a.cfg.Prune && len(rows) < a.cfg.BatchSize {
		if pruned, err = prune(ctx, before); err != nil {
			return count, fmt.Errorf("s3blob: prune %s: %w", kind, err)
		}
	}

	if a.audit != nil {
		if err := a.audit.Log(ctx, "archive."+kind, map[string]any{
			"path":   path,
			"count":  count,
			"pruned": pruned,
			"before": before.UTC().Format(time.RFC3339),
		}); err != nil {
			return count, fmt.Errorf("s3blob: audit %s: %w", kind, err)
		}
	}
	a.logger.InfoContext(ctx, "archiver: batch uploaded",
		slog.String("kind", kind),
		slog.String("path", path),
		slog.Int64("count", count),
		slog.Int64("pruned", pruned),
	)
	return count, nil
}

// archivePath partitions objects by cutoff month and stamps the cutoff so
// repeated runs in the same month do not overwrite each other:
//
//	archive/order_sets/2026-01/20260115T000000Z.jsonl
func archivePath(kind string, before time.Time) string {
	b := before.UTC()
	return fmt.Sprintf("archive/%s/%s/%s.jsonl", kind, b.Format("2006-01"), b.Format("20060102T150405Z"))
}

func marshalJSONL[T any](rows []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for i, r := range rows {
		if err := enc.Encode(r); err != nil {
			return nil, fmt.Errorf("encode row %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

var _ domain.Archiver = (*Archiver)(nil)
