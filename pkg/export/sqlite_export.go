package export

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/vanderheijden86/eavview/internal/datasource"
	"github.com/vanderheijden86/eavview/pkg/debug"
	"github.com/vanderheijden86/eavview/pkg/model"

	_ "modernc.org/sqlite"
)

// ExportSQLite writes triples to a fresh database at path, in a single
// "triples" table the SQLite dataset reader accepts. Numbers are stored as
// REAL and nulls as NULL; strings and booleans are stored as TEXT, so a
// numeric-looking string reads back as a number.
func ExportSQLite(ctx context.Context, path string, triples []model.Triple) error {
	if err := ensureParent(path); err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing database: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	schema := fmt.Sprintf(`CREATE TABLE %s (%s TEXT NOT NULL, %s TEXT NOT NULL, %s)`,
		datasource.TriplesTable, model.ColumnID, model.ColumnNode, model.ColumnValue)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if err := insertTriples(ctx, db, triples); err != nil {
		return fmt.Errorf("insert triples: %w", err)
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf(`CREATE INDEX idx_triples_node ON %s (%s)`,
		datasource.TriplesTable, model.ColumnNode)); err != nil {
		debug.Log("sqlite export: node index skipped: %v", err)
	}
	return db.Close()
}

func insertTriples(ctx context.Context, db *sql.DB, triples []model.Triple) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`INSERT INTO %s (%s, %s, %s) VALUES (?, ?, ?)`,
		datasource.TriplesTable, model.ColumnID, model.ColumnNode, model.ColumnValue))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, t := range triples {
		if _, err := stmt.ExecContext(ctx, t.ID, t.Node, sqliteValue(t.Value)); err != nil {
			return fmt.Errorf("%s: %w", t, err)
		}
	}
	return tx.Commit()
}

func sqliteValue(v model.Value) any {
	switch v.Kind() {
	case model.KindNull:
		return nil
	case model.KindNumber:
		f, _ := v.Float()
		return f
	default:
		return v.String()
	}
}
