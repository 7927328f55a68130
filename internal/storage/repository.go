package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/hyrelay/hyrelay/internal/domain"
	"github.com/hyrelay/hyrelay/internal/tenant"
	"github.com/jackc/pgx/v5"
)

// Filters are structural equality predicates keyed by column name.
type Filters map[string]any

// Repo is the generic CRUD base over one table. Concrete repositories supply
// the mapping pair: toRow flattens an entity into column values (aligned with
// columns), fromRow scans a row back into an entity. The base never exposes
// raw rows upward.
//
// Tenant-scoped repositories refuse to execute unless the owning unit of work
// has tenant isolation applied (or carries the cross-tenant admin role); the
// WHERE clause is never the sole defense, but a repository running without
// isolation on a scoped table is a programming defect and fails loudly.
type Repo[E any] struct {
	uow          *UnitOfWork
	table        string
	columns      []string
	tenantScoped bool
	toRow        func(E) []any
	fromRow      func(pgx.Row) (E, error)
}

// NewRepo builds a repository bound to a unit of work.
func NewRepo[E any](uow *UnitOfWork, table string, columns []string, tenantScoped bool, toRow func(E) []any, fromRow func(pgx.Row) (E, error)) *Repo[E] {
	return &Repo[E]{
		uow:          uow,
		table:        table,
		columns:      columns,
		tenantScoped: tenantScoped,
		toRow:        toRow,
		fromRow:      fromRow,
	}
}

func (r *Repo[E]) guard(ctx context.Context) error {
	if !r.tenantScoped {
		return nil
	}
	if _, ok := r.uow.TenantContext(); ok {
		return nil
	}
	// Only an admin-scoped session may run against a tenant-scoped table
	// without isolation applied.
	if tc, ok := tenant.From(ctx); ok && tc.IsAdmin() {
		return nil
	}
	return domain.E(domain.CodeTenantContextMissing,
		fmt.Sprintf("tenant-scoped query on %s without tenant context", r.table))
}

func (r *Repo[E]) columnList() string { return strings.Join(r.columns, ", ") }

func (r *Repo[E]) placeholders(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("$%d", i+1)
	}
	return strings.Join(parts, ", ")
}

// whereClause renders filters deterministically (sorted keys) starting at
// placeholder $start.
func (r *Repo[E]) whereClause(filters Filters, start int) (string, []any) {
	if len(filters) == 0 {
		return "", nil
	}
	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	// Deterministic SQL keeps prepared-statement caches warm.
	sort.Strings(keys)

	var sb strings.Builder
	args := make([]any, 0, len(keys))
	for i, k := range keys {
		if i > 0 {
			sb.WriteString(" AND ")
		}
		if filters[k] == nil {
			sb.WriteString(k + " IS NULL")
			continue
		}
		sb.WriteString(fmt.Sprintf("%s = $%d", k, start+len(args)))
		args = append(args, filters[k])
	}
	return sb.String(), args
}

// Add inserts the entity.
func (r *Repo[E]) Add(ctx context.Context, entity E) error {
	if err := r.guard(ctx); err != nil {
		return err
	}
	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", r.table, r.columnList(), r.placeholders(len(r.columns)))
	if _, err := r.uow.Tx().Exec(ctx, sql, r.toRow(entity)...); err != nil {
		return mapError(err)
	}
	return nil
}

// GetByID fetches one entity or fails with not_found.
func (r *Repo[E]) GetByID(ctx context.Context, id uuid.UUID) (E, error) {
	var zero E
	if err := r.guard(ctx); err != nil {
		return zero, err
	}
	sql := fmt.Sprintf("SELECT %s FROM %s WHERE id = $1", r.columnList(), r.table)
	entity, err := r.fromRow(r.uow.Tx().QueryRow(ctx, sql, id))
	if err != nil {
		return zero, mapError(err)
	}
	return entity, nil
}

// GetByIDs fetches all entities matching the given ids; missing ids are
// silently absent from the result.
func (r *Repo[E]) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]E, error) {
	if err := r.guard(ctx); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	sql := fmt.Sprintf("SELECT %s FROM %s WHERE id = ANY($1)", r.columnList(), r.table)
	return r.queryMany(ctx, sql, ids)
}

// FindOne returns the first entity matching filters, or not_found.
func (r *Repo[E]) FindOne(ctx context.Context, filters Filters) (E, error) {
	var zero E
	if err := r.guard(ctx); err != nil {
		return zero, err
	}
	where, args := r.whereClause(filters, 1)
	sql := fmt.Sprintf("SELECT %s FROM %s", r.columnList(), r.table)
	if where != "" {
		sql += " WHERE " + where
	}
	sql += " LIMIT 1"
	entity, err := r.fromRow(r.uow.Tx().QueryRow(ctx, sql, args...))
	if err != nil {
		return zero, mapError(err)
	}
	return entity, nil
}

// FindAll returns entities matching filters with pagination and ordering.
// orderBy must be a known column expression, never user input.
func (r *Repo[E]) FindAll(ctx context.Context, filters Filters, skip, limit int, orderBy string) ([]E, error) {
	if err := r.guard(ctx); err != nil {
		return nil, err
	}
	where, args := r.whereClause(filters, 1)
	sql := fmt.Sprintf("SELECT %s FROM %s", r.columnList(), r.table)
	if where != "" {
		sql += " WHERE " + where
	}
	if orderBy != "" {
		sql += " ORDER BY " + orderBy
	}
	if limit > 0 {
		sql += fmt.Sprintf(" LIMIT %d", limit)
	}
	if skip > 0 {
		sql += fmt.Sprintf(" OFFSET %d", skip)
	}
	return r.queryMany(ctx, sql, args...)
}

// Update rewrites all mapped columns for the entity's id.
func (r *Repo[E]) Update(ctx context.Context, id uuid.UUID, entity E) error {
	if err := r.guard(ctx); err != nil {
		return err
	}
	sets := make([]string, 0, len(r.columns))
	for i, col := range r.columns {
		sets = append(sets, fmt.Sprintf("%s = $%d", col, i+1))
	}
	sql := fmt.Sprintf("UPDATE %s SET %s WHERE id = $%d", r.table, strings.Join(sets, ", "), len(r.columns)+1)
	args := append(r.toRow(entity), id)

	tag, err := r.uow.Tx().Exec(ctx, sql, args...)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.E(domain.CodeNotFound, "row not found")
	}
	return nil
}

// Delete removes one row by id.
func (r *Repo[E]) Delete(ctx context.Context, id uuid.UUID) error {
	if err := r.guard(ctx); err != nil {
		return err
	}
	tag, err := r.uow.Tx().Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = $1", r.table), id)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.E(domain.CodeNotFound, "row not found")
	}
	return nil
}

// DeleteMany removes all rows matching filters and returns the count.
func (r *Repo[E]) DeleteMany(ctx context.Context, filters Filters) (int64, error) {
	if err := r.guard(ctx); err != nil {
		return 0, err
	}
	where, args := r.whereClause(filters, 1)
	sql := fmt.Sprintf("DELETE FROM %s", r.table)
	if where != "" {
		sql += " WHERE " + where
	}
	tag, err := r.uow.Tx().Exec(ctx, sql, args...)
	if err != nil {
		return 0, mapError(err)
	}
	return tag.RowsAffected(), nil
}

// Count returns the number of rows matching filters.
func (r *Repo[E]) Count(ctx context.Context, filters Filters) (int64, error) {
	if err := r.guard(ctx); err != nil {
		return 0, err
	}
	where, args := r.whereClause(filters, 1)
	sql := fmt.Sprintf("SELECT COUNT(*) FROM %s", r.table)
	if where != "" {
		sql += " WHERE " + where
	}
	var count int64
	if err := r.uow.Tx().QueryRow(ctx, sql, args...).Scan(&count); err != nil {
		return 0, mapError(err)
	}
	return count, nil
}

// Exists reports whether any row matches filters.
func (r *Repo[E]) Exists(ctx context.Context, filters Filters) (bool, error) {
	count, err := r.Count(ctx, filters)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Query runs parameterized raw SQL for shapes the structural operations
// cannot express (partition-aware scans, FOR UPDATE SKIP LOCKED).
func (r *Repo[E]) Query(ctx context.Context, sql string, args ...any) ([]E, error) {
	if err := r.guard(ctx); err != nil {
		return nil, err
	}
	return r.queryMany(ctx, sql, args...)
}

// QueryOne is the single-row variant of Query; missing rows are not_found.
func (r *Repo[E]) QueryOne(ctx context.Context, sql string, args ...any) (E, error) {
	var zero E
	if err := r.guard(ctx); err != nil {
		return zero, err
	}
	entity, err := r.fromRow(r.uow.Tx().QueryRow(ctx, sql, args...))
	if err != nil {
		return zero, mapError(err)
	}
	return entity, nil
}

func (r *Repo[E]) queryMany(ctx context.Context, sql string, args ...any) ([]E, error) {
	rows, err := r.uow.Tx().Query(ctx, sql, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var out []E
	for rows.Next() {
		entity, err := r.fromRow(rows)
		if err != nil {
			return nil, mapError(err)
		}
		out = append(out, entity)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return out, nil
}

// IsNotFound is a convenience for callers that treat missing rows as absence.
func IsNotFound(err error) bool {
	return domain.IsCode(err, domain.CodeNotFound) || errors.Is(err, pgx.ErrNoRows)
}
