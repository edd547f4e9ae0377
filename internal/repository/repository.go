// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/opensource-finance/downpay/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	db, err := openDB(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveRuleTable stores a rule table version with tenant isolation.
// Saving the same id and version again replaces it.
func (r *SQLRepository) SaveRuleTable(ctx context.Context, tenantID string, table *domain.RuleTable) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}
	if table.ID == "" {
		return fmt.Errorf("%w: table id is required", ErrInvalidInput)
	}

	rules, err := json.Marshal(table.Rules)
	if err != nil {
		return fmt.Errorf("failed to encode rules: %w", err)
	}

	enabled := 0
	if table.Enabled {
		enabled = 1
	}

	now := time.Now().UTC()
	if table.CreatedAt.IsZero() {
		table.CreatedAt = now
	}
	table.UpdatedAt = now

	query := `
		INSERT INTO rule_tables (
			id, tenant_id, name, description, version, rules, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, tenant_id, version) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			rules = excluded.rules,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		table.ID, tenantID, table.Name, table.Description,
		table.Version, string(rules), enabled,
		table.CreatedAt, table.UpdatedAt,
	)
	return err
}

// GetRuleTable retrieves the most recently updated enabled version of a table.
func (r *SQLRepository) GetRuleTable(ctx context.Context, tenantID string, tableID string) (*domain.RuleTable, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, description, version, rules, enabled, created_at, updated_at
		FROM rule_tables
		WHERE tenant_id = ? AND id = ? AND enabled = 1
		ORDER BY updated_at DESC
		LIMIT 1
	`

	t, err := scanRuleTable(r.db.QueryRowContext(ctx, r.rebind(query), tenantID, tableID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// ListRuleTables retrieves the latest enabled version of every table for a tenant.
func (r *SQLRepository) ListRuleTables(ctx context.Context, tenantID string) ([]*domain.RuleTable, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, description, version, rules, enabled, created_at, updated_at
		FROM rule_tables
		WHERE tenant_id = ? AND enabled = 1
		ORDER BY id, updated_at DESC
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []*domain.RuleTable
	for rows.Next() {
		t, err := scanRuleTable(rows)
		if err != nil {
			return nil, err
		}
		// Rows arrive newest first per id.
		if n := len(tables); n > 0 && tables[n-1].ID == t.ID {
			continue
		}
		tables = append(tables, t)
	}

	return tables, rows.Err()
}

// DeleteRuleTable soft-deletes every version of a table by setting enabled = 0.
func (r *SQLRepository) DeleteRuleTable(ctx context.Context, tenantID string, tableID string) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		UPDATE rule_tables
		SET enabled = 0, updated_at = ?
		WHERE tenant_id = ? AND id = ? AND enabled = 1
	`

	result, err := r.db.ExecContext(ctx, r.rebind(query), time.Now().UTC(), tenantID, tableID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRuleTable(row rowScanner) (*domain.RuleTable, error) {
	var t domain.RuleTable
	var description sql.NullString
	var rules string
	var enabled int

	if err := row.Scan(
		&t.ID, &t.TenantID, &t.Name, &description,
		&t.Version, &rules, &enabled,
		&t.CreatedAt, &t.UpdatedAt,
	); err != nil {
		return nil, err
	}

	t.Description = description.String
	t.Enabled = enabled == 1
	if err := json.Unmarshal([]byte(rules), &t.Rules); err != nil {
		return nil, fmt.Errorf("failed to parse rules for table %s: %w", t.ID, err)
	}
	return &t, nil
}

// SaveEvaluation stores an evaluation result with tenant isolation.
func (r *SQLRepository) SaveEvaluation(ctx context.Context, tenantID string, eval *domain.Evaluation) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}
	if eval.Result == nil {
		return fmt.Errorf("%w: evaluation result is required", ErrInvalidInput)
	}

	quote, err := json.Marshal(eval.Quote)
	if err != nil {
		return fmt.Errorf("failed to encode quote: %w", err)
	}
	result, err := json.Marshal(eval.Result)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	metadata, _ := json.Marshal(eval.Metadata)

	query := `
		INSERT INTO evaluations (
			id, tenant_id, quote_id, table_id, table_version,
			down_payment, min_down_payment, timestamp, quote, result, metadata
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		eval.ID, tenantID, eval.QuoteID, eval.TableID, eval.TableVersion,
		eval.Result.DownPayment, eval.Result.MinDownPayment, eval.Timestamp,
		string(quote), string(result), string(metadata),
	)
	return err
}

const evaluationColumns = `
	id, tenant_id, quote_id, table_id, table_version, timestamp, quote, result, metadata
`

// GetEvaluation retrieves an evaluation by ID with tenant isolation.
func (r *SQLRepository) GetEvaluation(ctx context.Context, tenantID string, evalID string) (*domain.Evaluation, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `SELECT ` + evaluationColumns + ` FROM evaluations WHERE tenant_id = ? AND id = ?`

	eval, err := scanEvaluation(r.db.QueryRowContext(ctx, r.rebind(query), tenantID, evalID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return eval, nil
}

// ListEvaluationsByQuote retrieves a quote's evaluations, newest first.
func (r *SQLRepository) ListEvaluationsByQuote(ctx context.Context, tenantID string, quoteID string) ([]*domain.Evaluation, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `SELECT ` + evaluationColumns + ` FROM evaluations
		WHERE tenant_id = ? AND quote_id = ?
		ORDER BY timestamp DESC`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID, quoteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var evals []*domain.Evaluation
	for rows.Next() {
		eval, err := scanEvaluation(rows)
		if err != nil {
			return nil, err
		}
		evals = append(evals, eval)
	}

	return evals, rows.Err()
}

func scanEvaluation(row rowScanner) (*domain.Evaluation, error) {
	var eval domain.Evaluation
	var quote sql.NullString
	var result, metadata string

	if err := row.Scan(
		&eval.ID, &eval.TenantID, &eval.QuoteID, &eval.TableID, &eval.TableVersion,
		&eval.Timestamp, &quote, &result, &metadata,
	); err != nil {
		return nil, err
	}

	if quote.Valid && quote.String != "" && quote.String != "null" {
		if err := json.Unmarshal([]byte(quote.String), &eval.Quote); err != nil {
			return nil, fmt.Errorf("failed to parse quote for evaluation %s: %w", eval.ID, err)
		}
	}
	if err := json.Unmarshal([]byte(result), &eval.Result); err != nil {
		return nil, fmt.Errorf("failed to parse result for evaluation %s: %w", eval.ID, err)
	}
	json.Unmarshal([]byte(metadata), &eval.Metadata)

	return &eval, nil
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	var b strings.Builder
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			n++
		} else {
			b.WriteByte(query[i])
		}
	}
	return b.String()
}
