package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/perpdash/internal/domain"
)

// OrderSetStore implements domain.OrderSetStore on order_sets and set_orders.
type OrderSetStore struct {
	pool *pgxpool.Pool
}

// NewOrderSetStore creates an OrderSetStore.
func NewOrderSetStore(pool *pgxpool.Pool) *OrderSetStore {
	return &OrderSetStore{pool: pool}
}

const setSelectCols = `id, wallet, subaccount, status, created_at, updated_at`

const orderSelectCols = `id, set_id, seq, market_index, direction, kind, size,
	price, trigger_price, trigger_condition, oracle_price_offset, reduce_only,
	tag, venue_id, status, message, updated_at`

const insertOrder = `INSERT INTO set_orders (
		id, set_id, seq, market_index, direction, kind, size,
		price, trigger_price, trigger_condition, oracle_price_offset, reduce_only,
		tag, venue_id, status, message, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

// Create inserts the set and every leg in one transaction. A duplicate set ID
// yields domain.ErrAlreadyExists.
func (s *OrderSetStore) Create(ctx context.Context, set domain.OrderSet) error {
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`INSERT INTO order_sets (`+setSelectCols+`) VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (id) DO NOTHING`,
			set.ID, set.Wallet, set.Subaccount, string(set.Status), set.CreatedAt, set.UpdatedAt,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrAlreadyExists
		}

		batch := &pgx.Batch{}
		for _, o := range set.Orders {
			batch.Queue(insertOrder, orderArgs(o)...)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return fmt.Errorf("postgres: create order set %s: %w", set.ID, err)
	}
	return nil
}

func orderArgs(o domain.SubmittedOrder) []any {
	var cond *string
	if o.Order.TriggerCondition != nil {
		c := string(*o.Order.TriggerCondition)
		cond = &c
	}
	return []any{
		o.ID, o.SetID, o.Seq, o.Order.MarketIndex,
		string(o.Order.Direction), string(o.Order.Kind), o.Order.Size,
		o.Order.Price, o.Order.TriggerPrice, cond, o.Order.OraclePriceOffset,
		o.Order.ReduceOnly, string(o.Order.Tag),
		o.VenueID, string(o.Status), o.Message, o.Updated,
	}
}

// UpdateStatus sets the status of a whole set.
func (s *OrderSetStore) UpdateStatus(ctx context.Context, id string, status domain.SetStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE order_sets SET status = $1, updated_at = NOW() WHERE id = $2`, string(status), id)
	if err != nil {
		return fmt.Errorf("postgres: update order set %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// UpdateOrder records the venue outcome of one leg.
func (s *OrderSetStore) UpdateOrder(ctx context.Context, o domain.SubmittedOrder) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE set_orders SET venue_id = $1, status = $2, message = $3, updated_at = $4 WHERE id = $5`,
		o.VenueID, string(o.Status), o.Message, o.Updated, o.ID)
	if err != nil {
		return fmt.Errorf("postgres: update order %s: %w", o.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// GetByID returns the set with its legs in submission order.
func (s *OrderSetStore) GetByID(ctx context.Context, id string) (domain.OrderSet, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+setSelectCols+` FROM order_sets WHERE id = $1`, id)
	set, err := scanSet(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.OrderSet{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.OrderSet{}, fmt.Errorf("postgres: get order set %s: %w", id, err)
	}
	sets := []domain.OrderSet{set}
	if err := s.loadOrders(ctx, sets); err != nil {
		return domain.OrderSet{}, err
	}
	return sets[0], nil
}

// ListByWallet returns a wallet's sets newest first.
func (s *OrderSetStore) ListByWallet(ctx context.Context, wallet string, opts domain.ListOpts) ([]domain.OrderSet, error) {
	q := newListQuery(`SELECT `+setSelectCols+` FROM order_sets WHERE wallet = $1`, wallet).
		window("created_at", opts).
		page("created_at", opts)
	return s.querySets(ctx, q.String(), q.args...)
}

// ListBefore returns up to limit finished sets created before the cutoff,
// oldest first.
func (s *OrderSetStore) ListBefore(ctx context.Context, before time.Time, limit int) ([]domain.OrderSet, error) {
	return s.querySets(ctx,
		`SELECT `+setSelectCols+` FROM order_sets
		 WHERE created_at < $1 AND status <> $2
		 ORDER BY created_at ASC LIMIT $3`,
		before, string(domain.SetStatusPending), limit)
}

// DeleteBefore removes finished sets created before the cutoff. Legs go with
// them through the foreign-key cascade.
func (s *OrderSetStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM order_sets WHERE created_at < $1 AND status <> $2`,
		before, string(domain.SetStatusPending))
	if err != nil {
		return 0, fmt.Errorf("postgres: delete order sets: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *OrderSetStore) querySets(ctx context.Context, query string, args ...any) ([]domain.OrderSet, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list order sets: %w", err)
	}
	sets, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.OrderSet, error) {
		return scanSet(r)
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: scan order sets: %w", err)
	}
	if err := s.loadOrders(ctx, sets); err != nil {
		return nil, err
	}
	return sets, nil
}

// loadOrders fills Orders of every set with a single query.
func (s *OrderSetStore) loadOrders(ctx context.Context, sets []domain.OrderSet) error {
	if len(sets) == 0 {
		return nil
	}
	ids := make([]string, len(sets))
	index := make(map[string]int, len(sets))
	for i, set := range sets {
		ids[i] = set.ID
		index[set.ID] = i
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+orderSelectCols+` FROM set_orders WHERE set_id = ANY($1) ORDER BY set_id, seq`, ids)
	if err != nil {
		return fmt.Errorf("postgres: load orders: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return fmt.Errorf("postgres: scan order: %w", err)
		}
		if i, ok := index[o.SetID]; ok {
			sets[i].Orders = append(sets[i].Orders, o)
		}
	}
	return rows.Err()
}

func scanSet(row pgx.Row) (domain.OrderSet, error) {
	var (
		set    domain.OrderSet
		status string
	)
	if err := row.Scan(&set.ID, &set.Wallet, &set.Subaccount, &status, &set.CreatedAt, &set.UpdatedAt); err != nil {
		return domain.OrderSet{}, err
	}
	set.Status = domain.SetStatus(status)
	return set, nil
}

func scanOrder(row pgx.Row) (domain.SubmittedOrder, error) {
	var (
		o                        domain.SubmittedOrder
		direction, kind, tag, st string
		cond                     *string
	)
	err := row.Scan(
		&o.ID, &o.SetID, &o.Seq, &o.Order.MarketIndex, &direction, &kind, &o.Order.Size,
		&o.Order.Price, &o.Order.TriggerPrice, &cond, &o.Order.OraclePriceOffset, &o.Order.ReduceOnly,
		&tag, &o.VenueID, &st, &o.Message, &o.Updated,
	)
	if err != nil {
		return domain.SubmittedOrder{}, err
	}
	o.Order.Direction = domain.Direction(direction)
	o.Order.Kind = domain.OrderKind(kind)
	o.Order.Tag = domain.LegTag(tag)
	o.Status = domain.OrderStatus(st)
	if cond != nil {
		c := domain.TriggerCondition(*cond)
		o.Order.TriggerCondition = &c
	}
	return o, nil
}

var _ domain.OrderSetStore = (*OrderSetStore)(nil)
