package records

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/verdalabs/wellspring/internal/common"
	"github.com/verdalabs/wellspring/internal/dbx"
)

// identRe limits table and column names interpolated into SQL. Table names
// only ever come from the registry; column names come from client payloads,
// so anything outside this shape is rejected before it reaches the query.
var identRe = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func checkIdent(name string) error {
	if !identRe.MatchString(name) {
		return fmt.Errorf("%w: bad identifier %q", common.ErrorValidation, name)
	}
	return nil
}

// sortedColumns returns the row's column names in a deterministic order.
func sortedColumns(row map[string]any) ([]string, error) {
	cols := make([]string, 0, len(row))
	for c := range row {
		if err := checkIdent(c); err != nil {
			return nil, err
		}
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols, nil
}

func (r *PostgresRepository) Upsert(ctx context.Context, table string, row map[string]any) (string, error) {
	if err := checkIdent(table); err != nil {
		return "", err
	}
	cols, err := sortedColumns(row)
	if err != nil {
		return "", err
	}

	placeholders := make([]string, len(cols))
	args := make([]any, len(cols))
	var sets []string
	for i, c := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = row[c]
		// identity columns never move on conflict
		if c != "id" && c != "user_id" && c != "client_ref" {
			sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", c, c))
		}
	}
	if len(sets) == 0 {
		sets = append(sets, "client_ref = EXCLUDED.client_ref")
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (%s)
		VALUES (%s)
		ON CONFLICT (user_id, client_ref)
		DO UPDATE SET %s
		RETURNING id`,
		table,
		strings.Join(cols, ", "),
		strings.Join(placeholders, ", "),
		strings.Join(sets, ", "),
	)

	var id string
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return "", fmt.Errorf("db error: %w", err)
	}
	return id, nil
}

func (r *PostgresRepository) Update(ctx context.Context, table, id, userID string, row map[string]any) error {
	if err := checkIdent(table); err != nil {
		return err
	}
	cols, err := sortedColumns(row)
	if err != nil {
		return err
	}

	sets := make([]string, 0, len(cols))
	args := []any{id, userID}
	n := 3
	for _, c := range cols {
		if c == "id" || c == "user_id" {
			continue
		}
		sets = append(sets, fmt.Sprintf("%s = $%d", c, n))
		args = append(args, row[c])
		n++
	}
	if len(sets) == 0 {
		return fmt.Errorf("%w: no columns to update", common.ErrorValidation)
	}

	query := fmt.Sprintf(`UPDATE %s SET %s WHERE id = $1 AND user_id = $2`,
		table, strings.Join(sets, ", "))

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if affected == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, table, id, userID string) error {
	if err := checkIdent(table); err != nil {
		return err
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1 AND user_id = $2`, table)

	// rows affected deliberately ignored: deleting an absent row is a no-op
	if _, err := r.db.ExecContext(ctx, query, id, userID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, table, id, userID string) (map[string]any, error) {
	if err := checkIdent(table); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT * FROM %s WHERE id = $1 AND user_id = $2`, table)

	rows, err := r.db.QueryContext(ctx, query, id, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result, err := scanRows(rows)
	if err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return nil, common.ErrorNotFound
	}
	return result[0], nil
}

func (r *PostgresRepository) SelectSince(ctx context.Context, table, userID string, since time.Time, orderField string, limit int) ([]map[string]any, error) {
	if err := checkIdent(table); err != nil {
		return nil, err
	}
	if err := checkIdent(orderField); err != nil {
		return nil, err
	}

	// updated_at leads the ordering so a LIMIT cut always truncates at a
	// checkpointable boundary; orderField only breaks ties.
	query := fmt.Sprintf(
		`SELECT * FROM %s WHERE user_id = $1 AND updated_at >= $2 ORDER BY updated_at, %s LIMIT $3`,
		table, orderField)

	rows, err := r.db.QueryContext(ctx, query, userID, since, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	return scanRows(rows)
}

// scanRows reads every row into a column-keyed map. Byte slices become
// strings so the maps serialize as JSON text rather than base64.
func scanRows(rows *sql.Rows) ([]map[string]any, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns error: %w", err)
	}

	var result []map[string]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}

		row := make(map[string]any, len(cols))
		for i, c := range cols {
			if b, ok := vals[i].([]byte); ok {
				row[c] = string(b)
				continue
			}
			row[c] = vals[i]
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
