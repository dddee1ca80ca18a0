package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"giftflow/internal/types"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS gifts (
	id TEXT PRIMARY KEY,
	position INTEGER NOT NULL,
	name TEXT NOT NULL,
	gift_idea TEXT NOT NULL,
	budget REAL NOT NULL,
	product TEXT,
	approval TEXT NOT NULL DEFAULT '',
	order_status TEXT NOT NULL DEFAULT '',
	riddle TEXT NOT NULL DEFAULT '',
	card_url TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_gifts_position ON gifts(position);
`

const selectColumns = `id, name, gift_idea, budget, product, approval, order_status, riddle, card_url`

// SQLiteStore persists work items in a SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// OpenSQLite opens (and migrates) the database at dsn.
func OpenSQLite(ctx context.Context, dsn string, logger *zap.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: an in-memory database lives exactly as long as it.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		logger.Debug("failed to set sqlite busy_timeout", zap.Error(err))
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	logger.Debug("sqlite store ready", zap.String("dsn", dsn))
	return &SQLiteStore{db: db, logger: logger}, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(r rowScanner) (*types.WorkItem, error) {
	var (
		it       types.WorkItem
		product  sql.NullString
		approval string
		order    string
	)
	if err := r.Scan(&it.ID, &it.Name, &it.GiftIdea, &it.Budget, &product, &approval, &order, &it.Riddle, &it.CardURL); err != nil {
		return nil, err
	}
	it.Approval = types.ApprovalState(approval)
	it.Order = types.OrderState(order)
	if product.Valid && product.String != "" {
		var ref types.ProductRef
		if err := json.Unmarshal([]byte(product.String), &ref); err != nil {
			return nil, fmt.Errorf("decode product for %s: %w", it.ID, err)
		}
		it.Product = &ref
	}
	return &it, nil
}

func encodeProduct(p *types.ProductRef) (sql.NullString, error) {
	if p == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*types.WorkItem, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM gifts WHERE id = ?`, id)
	it, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get gift %s: %w", id, err)
	}
	return it, nil
}

func (s *SQLiteStore) List(ctx context.Context, pred Predicate) ([]*types.WorkItem, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM gifts ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("list gifts: %w", err)
	}
	defer rows.Close()

	out := make([]*types.WorkItem, 0)
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan gift: %w", err)
		}
		if pred == nil || pred(it) {
			out = append(out, it)
		}
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Update(ctx context.Context, id string, patch types.Patch) (*types.WorkItem, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin update: %w", err)
	}
	defer tx.Rollback()

	it, err := scanItem(tx.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM gifts WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load gift %s: %w", id, err)
	}

	patch.Apply(it)
	product, err := encodeProduct(it.Product)
	if err != nil {
		return nil, fmt.Errorf("encode product: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE gifts SET product = ?, approval = ?, order_status = ?, riddle = ?, card_url = ? WHERE id = ?`,
		product, string(it.Approval), string(it.Order), it.Riddle, it.CardURL, id)
	if err != nil {
		return nil, fmt.Errorf("update gift %s: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit update: %w", err)
	}
	return it, nil
}

func (s *SQLiteStore) ReplaceAll(ctx context.Context, items []*types.WorkItem) error {
	if err := validateAll(items); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM gifts`); err != nil {
		return fmt.Errorf("clear gifts: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO gifts
		(id, position, name, gift_idea, budget, product, approval, order_status, riddle, card_url)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, it := range items {
		product, err := encodeProduct(it.Product)
		if err != nil {
			return fmt.Errorf("encode product: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, it.ID, i, it.Name, it.GiftIdea, it.Budget, product,
			string(it.Approval), string(it.Order), it.Riddle, it.CardURL); err != nil {
			return fmt.Errorf("insert gift %s: %w", it.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace: %w", err)
	}
	s.logger.Info("replaced work items", zap.Int("count", len(items)))
	return nil
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM gifts`); err != nil {
		return fmt.Errorf("clear gifts: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
