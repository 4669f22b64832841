package pool

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/labpool/labpool/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type itemRepoPG struct{ pool *pgxpool.Pool }

// NewItemRepoPG returns the Postgres-backed item repository.
func NewItemRepoPG(pool *pgxpool.Pool) ItemRepository {
	return &itemRepoPG{pool: pool}
}

func (r *itemRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const itemCols = `id, kind, status, owner_id, version, urgency, payload, results,
	cancellation_reason, completed_by, cancelled_by,
	created_at, claimed_at, started_at, completed_at, cancelled_at, updated_at`

func (r *itemRepoPG) scanItem(row pgx.Row) (*PoolItem, error) {
	var i PoolItem
	err := row.Scan(&i.ID, &i.Kind, &i.Status, &i.OwnerID, &i.Version, &i.Urgency,
		&i.Payload, &i.Results,
		&i.CancellationReason, &i.CompletedBy, &i.CancelledBy,
		&i.CreatedAt, &i.ClaimedAt, &i.StartedAt, &i.CompletedAt, &i.CancelledAt, &i.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan pool item: %w", err)
	}
	return &i, nil
}

func (r *itemRepoPG) Create(ctx context.Context, item *PoolItem) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	row := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO pool_item (id, kind, status, owner_id, version, urgency, payload)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at, updated_at`,
		item.ID, item.Kind, item.Status, item.OwnerID, item.Version, item.Urgency, item.Payload)
	if err := row.Scan(&item.CreatedAt, &item.UpdatedAt); err != nil {
		return fmt.Errorf("insert pool item: %w", err)
	}
	return nil
}

func (r *itemRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*PoolItem, error) {
	return r.scanItem(r.conn(ctx).QueryRow(ctx,
		`SELECT `+itemCols+` FROM pool_item WHERE id = $1`, id))
}

// UpdateVersioned is the conditional write: the WHERE clause compares the
// stored version against the caller's snapshot, so under concurrent calls
// at most one UPDATE against a given version reports a row affected.
func (r *itemRepoPG) UpdateVersioned(ctx context.Context, item *PoolItem, expected int) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE pool_item SET
			status = $2, owner_id = $3, version = $4, results = $5,
			cancellation_reason = $6, completed_by = $7, cancelled_by = $8,
			claimed_at = $9, started_at = $10, completed_at = $11, cancelled_at = $12,
			updated_at = NOW()
		WHERE id = $1 AND version = $13`,
		item.ID, item.Status, item.OwnerID, item.Version, item.Results,
		item.CancellationReason, item.CompletedBy, item.CancelledBy,
		item.ClaimedAt, item.StartedAt, item.CompletedAt, item.CancelledAt,
		expected)
	if err != nil {
		return fmt.Errorf("update pool item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: expected version %d", ErrConflict, expected)
	}
	return nil
}

func (r *itemRepoPG) List(ctx context.Context, f ListFilter, limit, offset int) ([]*PoolItem, int, error) {
	where, args := buildListWhere(f)

	var total int
	countSQL := `SELECT COUNT(*) FROM pool_item` + where
	if err := r.conn(ctx).QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count pool items: %w", err)
	}

	dataSQL := `SELECT ` + itemCols + ` FROM pool_item` + where + `
		ORDER BY CASE urgency WHEN 'STAT' THEN 2 WHEN 'URGENT' THEN 1 ELSE 0 END DESC,
			created_at ASC
		LIMIT $` + fmt.Sprint(len(args)+1) + ` OFFSET $` + fmt.Sprint(len(args)+2)
	rows, err := r.conn(ctx).Query(ctx, dataSQL, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list pool items: %w", err)
	}
	defer rows.Close()

	var items []*PoolItem
	for rows.Next() {
		i, err := r.scanItem(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate pool items: %w", err)
	}
	return items, total, nil
}

func buildListWhere(f ListFilter) (string, []interface{}) {
	var clauses []string
	var args []interface{}

	next := func() string { return fmt.Sprintf("$%d", len(args)) }

	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = string(s)
		}
		args = append(args, statuses)
		clauses = append(clauses, "status = ANY("+next()+")")
	}
	if f.Urgency != "" {
		args = append(args, f.Urgency)
		clauses = append(clauses, "urgency = "+next())
	}
	if f.Kind != "" {
		args = append(args, f.Kind)
		clauses = append(clauses, "kind = "+next())
	}
	if f.OwnerID != nil {
		args = append(args, *f.OwnerID)
		clauses = append(clauses, "owner_id = "+next())
	}
	if f.ActorID != nil {
		args = append(args, *f.ActorID)
		p := next()
		clauses = append(clauses, "(owner_id = "+p+" OR completed_by = "+p+" OR cancelled_by = "+p+")")
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}
