package postgres

import (
	"context"
	"fmt"
	"strconv"

	"github.com/sadopc/sitelog/internal/store"
)

type docs struct {
	q querier
}

func (d docs) Get(ctx context.Context, key string) (store.Document, error) {
	var t string
	var body []byte
	var version int64
	err := d.q.QueryRow(ctx,
		`SELECT type, body, version FROM documents WHERE key = $1`, key,
	).Scan(&t, &body, &version)
	if err != nil {
		return nil, classify("get "+key, err)
	}
	return store.Decode(store.DocType(t), body, version)
}

func (d docs) Put(ctx context.Context, doc store.Document) error {
	key, t, body, err := store.Encode(doc)
	if err != nil {
		return err
	}
	_, err = d.q.Exec(ctx,
		`INSERT INTO documents (key, type, body) VALUES ($1, $2, $3::jsonb)
		 ON CONFLICT (key) DO UPDATE SET
			type = EXCLUDED.type,
			body = EXCLUDED.body,
			version = CASE WHEN documents.body = EXCLUDED.body AND documents.type = EXCLUDED.type
				THEN documents.version ELSE documents.version + 1 END,
			updated_at = CASE WHEN documents.body = EXCLUDED.body AND documents.type = EXCLUDED.type
				THEN documents.updated_at ELSE now() END`,
		key, string(t), string(body),
	)
	if err != nil {
		return classify("put "+key, err)
	}
	return nil
}

func (d docs) Insert(ctx context.Context, doc store.Document) error {
	key, t, body, err := store.Encode(doc)
	if err != nil {
		return err
	}
	_, err = d.q.Exec(ctx,
		`INSERT INTO documents (key, type, body) VALUES ($1, $2, $3::jsonb)`,
		key, string(t), string(body),
	)
	if err != nil {
		return classify("insert "+key, err)
	}
	return nil
}

func (d docs) Replace(ctx context.Context, doc store.Document, version int64) error {
	key, t, body, err := store.Encode(doc)
	if err != nil {
		return err
	}
	tag, err := d.q.Exec(ctx,
		`UPDATE documents SET body = $1::jsonb, version = version + 1, updated_at = now()
		 WHERE key = $2 AND type = $3 AND version = $4`,
		string(body), key, string(t), version,
	)
	if err != nil {
		return classify("replace "+key, err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	var one int
	if err := d.q.QueryRow(ctx, `SELECT 1 FROM documents WHERE key = $1`, key).Scan(&one); err != nil {
		return classify("replace "+key, err)
	}
	return fmt.Errorf("replace %s: %w", key, store.ErrConflict)
}

func (d docs) Delete(ctx context.Context, key string) error {
	tag, err := d.q.Exec(ctx, `DELETE FROM documents WHERE key = $1`, key)
	if err != nil {
		return classify("delete "+key, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete %s: %w", key, store.ErrNotFound)
	}
	return nil
}

func (d docs) Query(ctx context.Context, q store.Query) ([]store.Document, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	sql := `SELECT type, body, version FROM documents WHERE type = $1`
	args := []any{string(q.Type)}
	for _, f := range q.Filters {
		n := len(args)
		sql += fmt.Sprintf(` AND body->>$%d = $%d`, n+1, n+2)
		args = append(args, f.Field, filterText(f.Value))
	}
	sql += ` ORDER BY created_at, key`

	rows, err := d.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, classify("query "+string(q.Type), err)
	}
	defer rows.Close()

	var out []store.Document
	for rows.Next() {
		var t string
		var body []byte
		var version int64
		if err := rows.Scan(&t, &body, &version); err != nil {
			return nil, classify("scan "+string(q.Type), err)
		}
		doc, err := store.Decode(store.DocType(t), body, version)
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

// filterText renders a filter value the way ->> renders JSON scalars.
func filterText(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}
