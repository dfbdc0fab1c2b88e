package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rubiojr/resdir/pkg/core"
	"github.com/rubiojr/resdir/pkg/db"
)

// ResolveCategories maps category display names to ids. Names with no
// matching category are skipped, so the result may be shorter than names
// or empty.
func (s *Store) ResolveCategories(ctx context.Context, names []string) ([]int64, error) {
	if len(names) == 0 {
		return nil, nil
	}

	args := make([]any, len(names))
	for i, n := range names {
		args[i] = n
	}
	query := s.dialect.Rebind("SELECT id FROM categories WHERE name IN (" + placeholders(len(names)) + ") ORDER BY id")

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying categories: %w", err)
	}
	defer s.closeRows(rows)

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning category id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating categories: %w", err)
	}
	return ids, nil
}

// ListCategories returns every category ordered by name.
func (s *Store) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name, description FROM categories ORDER BY name, id")
	if err != nil {
		return nil, fmt.Errorf("querying categories: %w", err)
	}
	defer s.closeRows(rows)

	categories := []core.Category{}
	for rows.Next() {
		var c core.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description); err != nil {
			return nil, fmt.Errorf("scanning category: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating categories: %w", err)
	}
	return categories, nil
}

// GetResource returns an approved resource by id, or ErrNotFound.
func (s *Store) GetResource(ctx context.Context, id int64) (*core.Resource, error) {
	query := s.dialect.Rebind(fmt.Sprintf("SELECT %s FROM resources r WHERE r.id = ? AND r.approved = ?", s.columns()))

	r, err := scanResource(s.db.QueryRowContext(ctx, query, id, true))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting resource %d: %w", id, err)
	}
	return r, nil
}

// ImportResource is a resource whose category is given by name.
type ImportResource struct {
	core.Resource
	Category string
}

// ImportBatch is a set of categories and resources written together.
type ImportBatch struct {
	Categories []core.Category
	Resources  []ImportResource
}

// ImportResult counts what an import wrote.
type ImportResult struct {
	Categories int
	Resources  int
}

// Import upserts a batch by name inside a single transaction. Resources
// may refer to categories created earlier in the same batch. Existing
// resources keep their original creation time.
func (s *Store) Import(ctx context.Context, batch ImportBatch) (*ImportResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			if err := tx.Rollback(); err != nil {
				s.logger.Warnf("failed to rollback import transaction: %v", err)
			}
		}
	}()

	categoryIDs := make(map[string]int64)
	for _, c := range batch.Categories {
		id, err := s.upsertCategory(ctx, tx, c)
		if err != nil {
			return nil, err
		}
		categoryIDs[c.Name] = id
	}

	for _, r := range batch.Resources {
		var categoryID sql.NullInt64
		if r.Category != "" {
			id, ok := categoryIDs[r.Category]
			if !ok {
				id, err = s.lookupCategory(ctx, tx, r.Category)
				if err != nil {
					return nil, fmt.Errorf("resource %q: %w", r.Name, err)
				}
				categoryIDs[r.Category] = id
			}
			categoryID = sql.NullInt64{Int64: id, Valid: true}
		}
		if err := s.upsertResource(ctx, tx, r.Resource, categoryID); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing import: %w", err)
	}
	committed = true

	return &ImportResult{Categories: len(batch.Categories), Resources: len(batch.Resources)}, nil
}

func (s *Store) upsertCategory(ctx context.Context, tx *sql.Tx, c core.Category) (int64, error) {
	query := s.dialect.Rebind(`
		INSERT INTO categories (name, description) VALUES (?, ?)
		ON CONFLICT (name) DO UPDATE SET description = excluded.description
		RETURNING id`)

	var id int64
	if err := tx.QueryRowContext(ctx, query, c.Name, c.Description).Scan(&id); err != nil {
		return 0, fmt.Errorf("upserting category %q: %w", c.Name, err)
	}
	return id, nil
}

func (s *Store) lookupCategory(ctx context.Context, tx *sql.Tx, name string) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx, s.dialect.Rebind("SELECT id FROM categories WHERE name = ?"), name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("unknown category %q", name)
	}
	if err != nil {
		return 0, fmt.Errorf("looking up category %q: %w", name, err)
	}
	return id, nil
}

func (s *Store) upsertResource(ctx context.Context, tx *sql.Tx, r core.Resource, categoryID sql.NullInt64) error {
	services, err := s.listArg(r.ServicesOffered)
	if err != nil {
		return fmt.Errorf("encoding services for %q: %w", r.Name, err)
	}
	population, err := s.listArg(r.PopulationServed)
	if err != nil {
		return fmt.Errorf("encoding population for %q: %w", r.Name, err)
	}

	createdAt := r.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	query := s.dialect.Rebind(`
		INSERT INTO resources (name, description, address, category_id, services_offered,
			population_served, approved, phone, website, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET
			description = excluded.description,
			address = excluded.address,
			category_id = excluded.category_id,
			services_offered = excluded.services_offered,
			population_served = excluded.population_served,
			approved = excluded.approved,
			phone = excluded.phone,
			website = excluded.website`)

	_, err = tx.ExecContext(ctx, query, r.Name, r.Description, r.Address, categoryID, services,
		population, r.Approved, r.Phone, r.Website, s.dialect.TimeArg(createdAt))
	if err != nil {
		return fmt.Errorf("upserting resource %q: %w", r.Name, err)
	}
	return nil
}

// listArg encodes a string list for the dialect's array column.
func (s *Store) listArg(values []string) (any, error) {
	if s.dialect == db.Postgres {
		if values == nil {
			values = []string{}
		}
		return values, nil
	}
	return encodeList(values)
}
