package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/odysseia-chat/worldbook/internal/domain"
)

// GeneralKnowledgeRepository persists committed world-book entries and their
// alias/reference sub-collections.
type GeneralKnowledgeRepository struct {
	db dbtx
}

func NewGeneralKnowledgeRepository(pool *pgxpool.Pool) *GeneralKnowledgeRepository {
	return &GeneralKnowledgeRepository{db: pool}
}

func NewGeneralKnowledgeRepositoryWithTx(tx pgx.Tx) *GeneralKnowledgeRepository {
	return &GeneralKnowledgeRepository{db: tx}
}

// Create inserts the entry row and all alias/reference rows. Run inside a
// transaction so the entry and its sub-collections commit together.
func (r *GeneralKnowledgeRepository) Create(ctx context.Context, k *domain.GeneralKnowledge) error {
	if err := domain.ValidateGeneralKnowledge(k); err != nil {
		return err
	}

	content, err := json.Marshal(k.Content)
	if err != nil {
		return fmt.Errorf("failed to encode entry content: %w", err)
	}

	_, err = r.db.Exec(ctx,
		`INSERT INTO general_knowledge (id, title, name, content, category_id, contributor_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		k.ID, k.Title, k.Name, content, k.CategoryID, nullableString(k.ContributorID), k.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrEntryIDConflict
		}
		return err
	}

	for _, alias := range k.Aliases {
		if _, err := r.db.Exec(ctx,
			`INSERT INTO knowledge_aliases (entry_id, alias) VALUES ($1, $2)`,
			k.ID, alias,
		); err != nil {
			return err
		}
	}

	for _, ref := range k.RefersTo {
		if _, err := r.db.Exec(ctx,
			`INSERT INTO knowledge_refers_to (entry_id, reference) VALUES ($1, $2)`,
			k.ID, ref,
		); err != nil {
			return err
		}
	}

	return nil
}

// GetByID loads an entry with its category name, aliases, and references
func (r *GeneralKnowledgeRepository) GetByID(ctx context.Context, id string) (*domain.GeneralKnowledge, error) {
	var k domain.GeneralKnowledge
	var content []byte
	var contributor *string
	err := r.db.QueryRow(ctx,
		`SELECT gk.id, gk.title, gk.name, gk.content, gk.category_id, c.name, gk.contributor_id, gk.created_at
		 FROM general_knowledge gk
		 JOIN categories c ON gk.category_id = c.id
		 WHERE gk.id = $1`,
		id,
	).Scan(&k.ID, &k.Title, &k.Name, &content, &k.CategoryID, &k.CategoryName, &contributor, &k.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrKnowledgeEntryNotFound
		}
		return nil, err
	}
	if contributor != nil {
		k.ContributorID = *contributor
	}
	if len(content) > 0 {
		if err := json.Unmarshal(content, &k.Content); err != nil {
			return nil, fmt.Errorf("failed to decode entry content: %w", err)
		}
	}

	if k.Aliases, err = r.stringColumn(ctx,
		`SELECT alias FROM knowledge_aliases WHERE entry_id = $1 ORDER BY id`, id); err != nil {
		return nil, err
	}
	if k.RefersTo, err = r.stringColumn(ctx,
		`SELECT reference FROM knowledge_refers_to WHERE entry_id = $1 ORDER BY id`, id); err != nil {
		return nil, err
	}

	return &k, nil
}

// ListIDs returns the ids of every committed entry, used by the full-rebuild
// pass over the vector index
func (r *GeneralKnowledgeRepository) ListIDs(ctx context.Context) ([]string, error) {
	return r.stringColumn(ctx, `SELECT id FROM general_knowledge ORDER BY created_at`)
}

func (r *GeneralKnowledgeRepository) stringColumn(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// CategoryRepository resolves category names to ids, creating them lazily
type CategoryRepository struct {
	db dbtx
}

func NewCategoryRepository(pool *pgxpool.Pool) *CategoryRepository {
	return &CategoryRepository{db: pool}
}

func NewCategoryRepositoryWithTx(tx pgx.Tx) *CategoryRepository {
	return &CategoryRepository{db: tx}
}

// GetOrCreate returns the id for a category name, inserting the row the
// first time the name is seen. The upsert makes concurrent first references
// to the same name converge on one row.
func (r *CategoryRepository) GetOrCreate(ctx context.Context, name string) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx,
		`INSERT INTO categories (name) VALUES ($1)
		 ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		 RETURNING id`,
		name,
	).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}
