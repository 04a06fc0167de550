package postgres

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"text/template"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"scalable-rag-engine/internal/domain/ports/repository"
)

//go:embed schema/init.sql
var schemaFS embed.FS

// RenderSchema returns the DDL for an index of the given embedding dimension.
func RenderSchema(dimension int) (string, error) {
	if dimension <= 0 {
		return "", fmt.Errorf("embedding dimension must be positive, got %d", dimension)
	}
	raw, err := schemaFS.ReadFile("schema/init.sql")
	if err != nil {
		return "", fmt.Errorf("read init.sql: %w", err)
	}
	tpl, err := template.New("init").Parse(string(raw))
	if err != nil {
		return "", fmt.Errorf("parse init.sql: %w", err)
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, struct{ Dimension int }{dimension}); err != nil {
		return "", fmt.Errorf("render init.sql: %w", err)
	}
	return buf.String(), nil
}

// Migrate applies the idempotent schema in one transaction.
func Migrate(ctx context.Context, pool *pgxpool.Pool, dimension int) error {
	ddl, err := RenderSchema(dimension)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Minute)
	defer cancel()

	return NewTxManager(pool).WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if _, err := execSQL(ctx, pool, tx, ddl); err != nil {
			return fmt.Errorf("exec schema: %w", err)
		}
		return nil
	})
}
