package datasource

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/vanderheijden86/eavview/pkg/debug"
	"github.com/vanderheijden86/eavview/pkg/loader"
	"github.com/vanderheijden86/eavview/pkg/model"
)

// TriplesTable is the table SQLite datasets must carry.
const TriplesTable = "triples"

// SQLiteReader provides read access to a triples SQLite database
type SQLiteReader struct {
	db   *sql.DB
	path string
}

// NewSQLiteReader opens a SQLite database for reading
func NewSQLiteReader(source DataSource) (*SQLiteReader, error) {
	if source.Type != SourceTypeSQLite {
		return nil, fmt.Errorf("source is not SQLite: %s", source.Type)
	}

	dsn := fmt.Sprintf("file:%s?mode=ro&_pragma=busy_timeout(5000)", source.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA cache_size = -64000",
		"PRAGMA temp_store = MEMORY",
	} {
		if _, err := db.Exec(pragma); err != nil {
			debug.Log("sqlite: %s failed: %v", pragma, err)
		}
	}

	return &SQLiteReader{db: db, path: source.Path}, nil
}

// Close closes the database connection
func (r *SQLiteReader) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// checkSchema verifies the triples table has exactly the ID, node and value
// columns (case-insensitive, as SQLite itself is).
func (r *SQLiteReader) checkSchema(ctx context.Context) error {
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", TriplesTable))
	if err != nil {
		return model.NewLoadError(r.path, model.PhaseOpen, err)
	}
	defer rows.Close()

	seen := map[string]bool{}
	n := 0
	for rows.Next() {
		var (
			cid       int
			name      string
			ctype     string
			notnull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			return model.NewLoadError(r.path, model.PhaseSchema, err)
		}
		seen[strings.ToLower(name)] = true
		n++
	}
	if err := rows.Err(); err != nil {
		return model.NewLoadError(r.path, model.PhaseSchema, err)
	}
	if n == 0 {
		return &model.LoadError{Source: r.path, Phase: model.PhaseSchema,
			Cause: fmt.Errorf("%w: no %s table", model.ErrSchemaMismatch, TriplesTable)}
	}
	for _, col := range []string{model.ColumnID, model.ColumnNode, model.ColumnValue} {
		if !seen[strings.ToLower(col)] {
			return &model.LoadError{Source: r.path, Phase: model.PhaseSchema,
				Cause: fmt.Errorf("%w: %s table has no %s column", model.ErrSchemaMismatch, TriplesTable, col)}
		}
	}
	if n != 3 {
		return &model.LoadError{Source: r.path, Phase: model.PhaseSchema,
			Cause: fmt.Errorf("%w: %s table has %d columns, want 3", model.ErrSchemaMismatch, TriplesTable, n)}
	}
	return nil
}

// LoadTriples reads every row of the triples table in rowid order. Column
// affinity decides the value kind: INTEGER and REAL become numbers, NULL
// becomes null and TEXT goes through model.InferValue.
func (r *SQLiteReader) LoadTriples(ctx context.Context, opts loader.ParseOptions) ([]model.Triple, error) {
	if err := r.checkSchema(ctx); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT %s, %s, %s FROM %s ORDER BY rowid`,
		model.ColumnID, model.ColumnNode, model.ColumnValue, TriplesTable)
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, model.NewLoadError(r.path, model.PhaseParse, fmt.Errorf("failed to query triples: %w", err))
	}
	defer rows.Close()

	warn := opts.WarningHandler
	if warn == nil {
		warn = func(string) {}
	}

	var triples []model.Triple
	line := 0
	for rows.Next() {
		line++
		var id, node, value any
		if err := rows.Scan(&id, &node, &value); err != nil {
			warn(fmt.Sprintf("skipping row %d: %v", line, err))
			continue
		}
		t := model.Triple{
			ID:    keyFromColumn(id),
			Node:  keyFromColumn(node),
			Value: valueFromColumn(value),
		}
		if err := t.Validate(); err != nil && opts.MissingKeys != model.MissingKeysRetain {
			warn(fmt.Sprintf("skipping row %d: %v", line, err))
			continue
		}
		if opts.TripleFilter != nil && !opts.TripleFilter(&t) {
			continue
		}
		triples = append(triples, t)
	}
	if err := rows.Err(); err != nil {
		return nil, model.NewLoadError(r.path, model.PhaseParse, err)
	}
	debug.Log("sqlite: loaded %d triples from %s", len(triples), r.path)
	return triples, nil
}

// CountTriples returns the number of rows in the triples table.
func (r *SQLiteReader) CountTriples(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", TriplesTable)).Scan(&n)
	return n, err
}

func keyFromColumn(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

func valueFromColumn(v any) model.Value {
	switch x := v.(type) {
	case nil:
		return model.Null()
	case int64:
		return model.NumberValue(float64(x))
	case float64:
		return model.NumberValue(x)
	case bool:
		return model.BoolValue(x)
	case []byte:
		return model.InferValue(string(x))
	case string:
		return model.InferValue(x)
	default:
		return model.InferValue(fmt.Sprint(x))
	}
}
