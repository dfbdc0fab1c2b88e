package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rubiojr/resdir/pkg/core"
	"github.com/rubiojr/resdir/pkg/db"
	"github.com/rubiojr/resdir/pkg/intent"
)

// Query is a fully resolved search against the resources table. Category
// filtering works on ids; resolving names is the caller's job.
type Query struct {
	Text string

	// ByCategory enables the category predicate. With an empty
	// CategoryIDs it matches nothing.
	ByCategory  bool
	CategoryIDs []int64

	Services   []string
	Population []string
	Location   string

	SortBy    intent.SortBy
	SortOrder intent.SortOrder

	Limit  int
	Offset int
}

const resourceColumns = `r.id, r.name, r.description, r.address, COALESCE(r.category_id, 0),
	%s, %s, r.approved, r.phone, r.website, r.created_at`

// Find returns one page of approved resources matching q and the total
// number of matches. Both are read inside one transaction so the count
// and the page agree.
func (s *Store) Find(ctx context.Context, q Query) ([]core.Resource, int, error) {
	where, args := s.where(q)

	tx, err := s.db.BeginTx(ctx, s.readTxOptions())
	if err != nil {
		return nil, 0, fmt.Errorf("beginning read transaction: %w", err)
	}
	defer func() {
		// Read-only; rollback just releases the snapshot.
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			s.logger.Warnf("failed to rollback read transaction: %v", err)
		}
	}()

	var total int
	countSQL := s.dialect.Rebind("SELECT COUNT(*) FROM resources r WHERE " + where)
	if err := tx.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting resources: %w", err)
	}

	if total == 0 || q.Offset >= total {
		return []core.Resource{}, total, tx.Commit()
	}

	pageSQL := s.dialect.Rebind(fmt.Sprintf(
		"SELECT %s FROM resources r WHERE %s ORDER BY %s LIMIT ? OFFSET ?",
		s.columns(), where, orderBy(q)))
	pageArgs := append(append([]any{}, args...), q.Limit, q.Offset)

	rows, err := tx.QueryContext(ctx, pageSQL, pageArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("querying resources: %w", err)
	}
	items, err := s.scanResources(rows)
	if err != nil {
		return nil, 0, err
	}

	if err := tx.Commit(); err != nil {
		return nil, 0, fmt.Errorf("committing read transaction: %w", err)
	}
	return items, total, nil
}

// readTxOptions marks search transactions read-only on postgres. The
// sqlite driver implements ReadOnly by toggling query_only around the
// transaction, which makes Commit fail.
func (s *Store) readTxOptions() *sql.TxOptions {
	if s.dialect == db.Postgres {
		return &sql.TxOptions{ReadOnly: true}
	}
	return nil
}

// where builds the predicate shared by the count and page queries.
func (s *Store) where(q Query) (string, []any) {
	conds := []string{"r.approved = ?"}
	args := []any{true}

	if q.Text != "" {
		pattern := containsPattern(q.Text)
		conds = append(conds, "("+s.contains("r.name")+" OR "+s.contains("r.description")+" OR "+s.contains("r.address")+")")
		args = append(args, pattern, pattern, pattern)
	}

	if q.ByCategory {
		if len(q.CategoryIDs) == 0 {
			conds = append(conds, "1 = 0")
		} else {
			conds = append(conds, "r.category_id IN ("+placeholders(len(q.CategoryIDs))+")")
			for _, id := range q.CategoryIDs {
				args = append(args, id)
			}
		}
	}

	if len(q.Services) > 0 {
		cond, a := s.overlaps("r.services_offered", q.Services)
		conds = append(conds, cond)
		args = append(args, a...)
	}

	if len(q.Population) > 0 {
		cond, a := s.overlaps("r.population_served", q.Population)
		conds = append(conds, cond)
		args = append(args, a...)
	}

	if q.Location != "" {
		conds = append(conds, s.contains("r.address"))
		args = append(args, containsPattern(q.Location))
	}

	return strings.Join(conds, " AND "), args
}

// contains is a case-insensitive substring match against a LIKE pattern.
func (s *Store) contains(col string) string {
	if s.dialect == db.Postgres {
		return col + " ILIKE ?"
	}
	return "lower(" + col + ") LIKE lower(?) ESCAPE '\\'"
}

// overlaps matches rows whose array column shares at least one value with values.
func (s *Store) overlaps(col string, values []string) (string, []any) {
	if s.dialect == db.Postgres {
		return col + " && ?::text[]", []any{values}
	}
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return "EXISTS (SELECT 1 FROM json_each(" + col + ") WHERE json_each.value IN (" + placeholders(len(values)) + "))", args
}

func (s *Store) columns() string {
	if s.dialect == db.Postgres {
		return fmt.Sprintf(resourceColumns, "array_to_json(r.services_offered)::text", "array_to_json(r.population_served)::text")
	}
	return fmt.Sprintf(resourceColumns, "r.services_offered", "r.population_served")
}

// orderBy maps the requested sort onto columns. Relevance has no ranking
// signal: with query text it sorts by name, otherwise by creation time,
// and its default desc direction means best first (A to Z, newest first).
// Ties are broken by id in the same direction.
func orderBy(q Query) string {
	col := "r.created_at"
	desc := q.SortOrder != intent.Asc

	switch q.SortBy {
	case intent.SortName:
		col = "lower(r.name)"
	case intent.SortCreatedAt:
	default:
		if q.Text != "" {
			col = "lower(r.name)"
			desc = !desc
		}
	}

	dir := "ASC"
	if desc {
		dir = "DESC"
	}
	return col + " " + dir + ", r.id " + dir
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern escapes LIKE wildcards in s and wraps it in %.
func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

func (s *Store) scanResources(rows *sql.Rows) ([]core.Resource, error) {
	defer s.closeRows(rows)

	items := []core.Resource{}
	for rows.Next() {
		r, err := scanResource(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating resources: %w", err)
	}
	return items, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanResource(row scanner) (*core.Resource, error) {
	var (
		r                    core.Resource
		services, population sql.NullString
		createdAt            db.Time
	)
	err := row.Scan(&r.ID, &r.Name, &r.Description, &r.Address, &r.CategoryID,
		&services, &population, &r.Approved, &r.Phone, &r.Website, &createdAt)
	if err != nil {
		return nil, fmt.Errorf("scanning resource: %w", err)
	}

	if r.ServicesOffered, err = decodeList(services); err != nil {
		return nil, fmt.Errorf("decoding services for resource %d: %w", r.ID, err)
	}
	if r.PopulationServed, err = decodeList(population); err != nil {
		return nil, fmt.Errorf("decoding population for resource %d: %w", r.ID, err)
	}
	r.CreatedAt = createdAt.Time
	return &r, nil
}

func decodeList(s sql.NullString) ([]string, error) {
	out := []string{}
	if !s.Valid || s.String == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(s.String), &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []string{}
	}
	return out, nil
}

func encodeList(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	data, err := json.Marshal(values)
	return string(data), err
}
