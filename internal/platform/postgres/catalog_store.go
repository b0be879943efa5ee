package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/lexis-api/internal/domain"
	"github.com/phrazzld/lexis-api/internal/store"
)

// PostgresCatalog implements the read-only store.Catalog interface over
// the vocabulary_items table.
type PostgresCatalog struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresCatalog creates a new PostgreSQL implementation of the Catalog interface.
func NewPostgresCatalog(db store.DBTX, logger *slog.Logger) *PostgresCatalog {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresCatalog{
		db:     db,
		logger: logger.With(slog.String("component", "catalog")),
	}
}

var _ store.Catalog = (*PostgresCatalog)(nil)

// difficultyOrder sorts catalog difficulties easiest first.
const difficultyOrder = `array_position(
	ARRAY['BEGINNER', 'ELEMENTARY', 'INTERMEDIATE', 'ADVANCED', 'EXPERT'], v.difficulty)`

// GetItem implements store.Catalog.GetItem
func (c *PostgresCatalog) GetItem(ctx context.Context, id uuid.UUID) (*domain.Item, error) {
	var item domain.Item
	var difficulty string
	err := c.db.QueryRowContext(ctx,
		`SELECT id, headword, difficulty, item_type FROM vocabulary_items WHERE id = $1`, id,
	).Scan(&item.ID, &item.Headword, &difficulty, &item.ItemType)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrItemNotFound
	}
	if err != nil {
		return nil, MapError(err)
	}
	item.Difficulty = domain.Difficulty(difficulty)
	return &item, nil
}

// ListUnseen implements store.Catalog.ListUnseen
func (c *PostgresCatalog) ListUnseen(ctx context.Context, userID uuid.UUID, limit int) ([]domain.Item, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT v.id, v.headword, v.difficulty, v.item_type
		FROM vocabulary_items v
		WHERE NOT EXISTS (
			SELECT 1 FROM mastery_records m WHERE m.user_id = $1 AND m.item_id = v.id
		)
		ORDER BY `+difficultyOrder+`, v.headword ASC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var items []domain.Item
	for rows.Next() {
		var item domain.Item
		var difficulty string
		if err := rows.Scan(&item.ID, &item.Headword, &difficulty, &item.ItemType); err != nil {
			return nil, MapError(err)
		}
		item.Difficulty = domain.Difficulty(difficulty)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return items, nil
}
