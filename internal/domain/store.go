package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// OrderSetStore persists generated order sets and the status of each leg.
type OrderSetStore interface {
	Create(ctx context.Context, set OrderSet) error
	UpdateStatus(ctx context.Context, id string, status SetStatus) error
	UpdateOrder(ctx context.Context, order SubmittedOrder) error
	GetByID(ctx context.Context, id string) (OrderSet, error)
	ListByWallet(ctx context.Context, wallet string, opts ListOpts) ([]OrderSet, error)
	ListBefore(ctx context.Context, before time.Time, limit int) ([]OrderSet, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// SnapshotStore persists portfolio snapshots for history charts.
type SnapshotStore interface {
	Insert(ctx context.Context, snap PortfolioSnapshot) error
	ListByWallet(ctx context.Context, wallet string, opts ListOpts) ([]PortfolioSnapshot, error)
	ListBefore(ctx context.Context, before time.Time, limit int) ([]PortfolioSnapshot, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
