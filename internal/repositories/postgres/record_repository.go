package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/eelco2k/tenancy/internal/entities"
	"github.com/eelco2k/tenancy/internal/repositories"
	"github.com/lib/pq"
)

// uniqueViolation is the PostgreSQL error code for unique constraint
// violations.
const uniqueViolation = "23505"

// RecordRepository implements repositories.RecordRepository using
// PostgreSQL. One instance is bound to one database; the engine selects the
// database by selecting the instance.
type RecordRepository struct {
	db *sql.DB
}

// NewRecordRepository creates a record repository over the given connection
func NewRecordRepository(db *sql.DB) repositories.RecordRepository {
	return &RecordRepository{db: db}
}

// FindByGlobalID returns the row whose global identifier column equals
// globalID, or nil when no such row exists.
func (r *RecordRepository) FindByGlobalID(ctx context.Context, table string, globalIDColumn string, globalID string) (*entities.Record, error) {
	query := fmt.Sprintf(
		"SELECT * FROM %s WHERE %s = $1",
		pq.QuoteIdentifier(table),
		pq.QuoteIdentifier(globalIDColumn),
	)

	rows, err := r.db.QueryContext(ctx, query, globalID)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", table, err)
		}
		return nil, nil
	}

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns of %s: %w", table, err)
	}

	values := make([]interface{}, len(columns))
	scanArgs := make([]interface{}, len(columns))
	for i := range values {
		scanArgs[i] = &values[i]
	}
	if err := rows.Scan(scanArgs...); err != nil {
		return nil, fmt.Errorf("failed to scan %s row: %w", table, err)
	}

	attrs := make(map[string]interface{}, len(columns))
	for i, column := range columns {
		// Text columns scan as []byte; store strings so attribute values
		// compare equal across databases.
		if b, ok := values[i].([]byte); ok {
			attrs[column] = string(b)
			continue
		}
		attrs[column] = values[i]
	}

	return entities.NewRecord(table, attrs), nil
}

// Insert creates a new row from the attribute map. A unique violation on
// the global identifier surfaces as entities.ErrIdentityConflict.
func (r *RecordRepository) Insert(ctx context.Context, table string, attrs map[string]interface{}) error {
	if len(attrs) == 0 {
		return fmt.Errorf("no attributes to insert into %s", table)
	}

	columns := sortedKeys(attrs)
	quoted := make([]string, len(columns))
	placeholders := make([]string, len(columns))
	args := make([]interface{}, len(columns))
	for i, column := range columns {
		quoted[i] = pq.QuoteIdentifier(column)
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = attrs[column]
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		pq.QuoteIdentifier(table),
		strings.Join(quoted, ", "),
		strings.Join(placeholders, ", "),
	)

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("%w: %v", entities.ErrIdentityConflict, err)
		}
		return fmt.Errorf("failed to insert into %s: %w", table, err)
	}
	return nil
}

// Update writes the attribute map to the row identified by globalID.
func (r *RecordRepository) Update(ctx context.Context, table string, globalIDColumn string, globalID string, attrs map[string]interface{}) error {
	if len(attrs) == 0 {
		return nil
	}

	columns := sortedKeys(attrs)
	assignments := make([]string, len(columns))
	args := make([]interface{}, 0, len(columns)+1)
	for i, column := range columns {
		assignments[i] = fmt.Sprintf("%s = $%d", pq.QuoteIdentifier(column), i+1)
		args = append(args, attrs[column])
	}
	args = append(args, globalID)

	query := fmt.Sprintf(
		"UPDATE %s SET %s WHERE %s = $%d",
		pq.QuoteIdentifier(table),
		strings.Join(assignments, ", "),
		pq.QuoteIdentifier(globalIDColumn),
		len(columns)+1,
	)

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", table, err)
	}
	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return fmt.Errorf("no row in %s with %s = %q", table, globalIDColumn, globalID)
	}
	return nil
}

func sortedKeys(attrs map[string]interface{}) []string {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
