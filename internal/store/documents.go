package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// timeLayout sorts lexicographically in creation order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// docs implements Docs over a SQLite connection or transaction.
type docs struct {
	q querier
}

func now() string {
	return time.Now().UTC().Format(timeLayout)
}

func (d docs) Get(ctx context.Context, key string) (Document, error) {
	var t string
	var body string
	var version int64
	err := d.q.QueryRowContext(ctx,
		`SELECT type, body, version FROM documents WHERE key = ?`, key,
	).Scan(&t, &body, &version)
	if err != nil {
		return nil, classify("get "+key, err)
	}
	return Decode(DocType(t), []byte(body), version)
}

func (d docs) Put(ctx context.Context, doc Document) error {
	key, t, body, err := Encode(doc)
	if err != nil {
		return err
	}
	ts := now()
	_, err = d.q.ExecContext(ctx,
		`INSERT INTO documents (key, type, body, version, created_at, updated_at)
		 VALUES (?, ?, json(?), 1, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
			type = excluded.type,
			body = excluded.body,
			version = CASE WHEN documents.body = excluded.body AND documents.type = excluded.type
				THEN documents.version ELSE documents.version + 1 END,
			updated_at = CASE WHEN documents.body = excluded.body AND documents.type = excluded.type
				THEN documents.updated_at ELSE excluded.updated_at END`,
		key, string(t), string(body), ts, ts,
	)
	if err != nil {
		return classify("put "+key, err)
	}
	return nil
}

func (d docs) Insert(ctx context.Context, doc Document) error {
	key, t, body, err := Encode(doc)
	if err != nil {
		return err
	}
	ts := now()
	_, err = d.q.ExecContext(ctx,
		`INSERT INTO documents (key, type, body, version, created_at, updated_at) VALUES (?, ?, json(?), 1, ?, ?)`,
		key, string(t), string(body), ts, ts,
	)
	if err != nil {
		return classify("insert "+key, err)
	}
	return nil
}

func (d docs) Replace(ctx context.Context, doc Document, version int64) error {
	key, t, body, err := Encode(doc)
	if err != nil {
		return err
	}
	res, err := d.q.ExecContext(ctx,
		`UPDATE documents SET body = json(?), version = version + 1, updated_at = ?
		 WHERE key = ? AND type = ? AND version = ?`,
		string(body), now(), key, string(t), version,
	)
	if err != nil {
		return classify("replace "+key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return classify("replace "+key, err)
	}
	if n == 1 {
		return nil
	}
	// Distinguish a missing document from a stale version.
	var exists int
	err = d.q.QueryRowContext(ctx, `SELECT 1 FROM documents WHERE key = ?`, key).Scan(&exists)
	if err != nil {
		return classify("replace "+key, err)
	}
	return fmt.Errorf("replace %s: %w", key, ErrConflict)
}

func (d docs) Delete(ctx context.Context, key string) error {
	res, err := d.q.ExecContext(ctx, `DELETE FROM documents WHERE key = ?`, key)
	if err != nil {
		return classify("delete "+key, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("delete %s: %w", key, ErrNotFound)
	}
	return nil
}

func (d docs) Query(ctx context.Context, q Query) ([]Document, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	query := `SELECT type, body, version FROM documents WHERE type = ?`
	args := []any{string(q.Type)}
	for _, f := range q.Filters {
		query += ` AND json_extract(body, ?) = ?`
		args = append(args, "$."+f.Field, f.Value)
	}
	query += ` ORDER BY created_at, key`

	rows, err := d.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify("query "+string(q.Type), err)
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		var t, body string
		var version int64
		if err := rows.Scan(&t, &body, &version); err != nil {
			return nil, classify("scan "+string(q.Type), err)
		}
		doc, err := Decode(DocType(t), []byte(body), version)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("query "+string(q.Type), err)
	}
	return out, nil
}
