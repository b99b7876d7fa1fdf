package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

var (
	ErrNotFound     = errors.New("document not found")
	ErrDuplicateKey = errors.New("duplicate document key")
	ErrConflict     = errors.New("document version conflict")
	ErrUnavailable  = errors.New("store unavailable")
)

// DocType is the discriminator stored next to every document body.
type DocType string

const (
	TypeUser     DocType = "user"
	TypeProject  DocType = "project"
	TypeProgress DocType = "progress_update"
	TypePayment  DocType = "payment_request"
	TypeVehicle  DocType = "vehicle"
	TypeDriver   DocType = "driver"
)

// Document is implemented by every stored kind.
type Document interface {
	DocType() DocType
	DocKey() string
}

// versioned documents receive the store version on read.
type versioned interface {
	setVersion(int64)
}

func UserKey(email string) string  { return "user::" + email }
func ProjectKey(id string) string  { return "project::" + id }
func ProgressKey(id string) string { return "progress::" + id }
func PaymentKey(id string) string  { return "payment::" + id }
func VehicleKey(id string) string  { return "vehicle::" + id }
func DriverKey(id string) string   { return "driver::" + id }

// Filter matches a top-level JSON field of the document body by equality.
type Filter struct {
	Field string
	Value any
}

// Query selects all documents of one type, optionally filtered.
type Query struct {
	Type    DocType
	Filters []Filter
}

// Where returns a copy of q with an extra equality filter.
func (q Query) Where(field string, value any) Query {
	q.Filters = append(append([]Filter(nil), q.Filters...), Filter{Field: field, Value: value})
	return q
}

var fieldPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// Validate rejects unknown types and field names that are not plain identifiers.
func (q Query) Validate() error {
	if _, ok := registry[q.Type]; !ok {
		return fmt.Errorf("query: unknown document type %q", q.Type)
	}
	for _, f := range q.Filters {
		if !fieldPattern.MatchString(f.Field) {
			return fmt.Errorf("query: invalid field %q", f.Field)
		}
	}
	return nil
}

// Docs is the document API shared by a backend and its transactions.
type Docs interface {
	// Get returns the document at key or ErrNotFound.
	Get(ctx context.Context, key string) (Document, error)
	// Put creates or replaces the document. Writing an identical body is a no-op.
	Put(ctx context.Context, doc Document) error
	// Insert creates the document or fails with ErrDuplicateKey.
	Insert(ctx context.Context, doc Document) error
	// Replace overwrites the document only if its version still matches.
	Replace(ctx context.Context, doc Document, version int64) error
	// Delete removes the document or fails with ErrNotFound.
	Delete(ctx context.Context, key string) error
	// Query lists matching documents in creation order.
	Query(ctx context.Context, q Query) ([]Document, error)
}

// Tx is a Docs scoped to one transaction.
type Tx interface {
	Docs
	// Lock takes a write lock on key until the transaction ends.
	Lock(ctx context.Context, key string) error
}

// Backend is a durable document store.
type Backend interface {
	Docs
	// WithTx runs fn in a transaction, committing when it returns nil.
	// fn must only use the Tx it is given.
	WithTx(ctx context.Context, fn func(Tx) error) error
	Close() error
}

// Load fetches key and asserts its concrete type.
func Load[T Document](ctx context.Context, d Docs, key string) (T, error) {
	var zero T
	doc, err := d.Get(ctx, key)
	if err != nil {
		return zero, err
	}
	t, ok := doc.(T)
	if !ok {
		return zero, fmt.Errorf("load %s: unexpected document type %s", key, doc.DocType())
	}
	return t, nil
}

// List runs q and asserts every result's concrete type.
func List[T Document](ctx context.Context, d Docs, q Query) ([]T, error) {
	docs, err := d.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		t, ok := doc.(T)
		if !ok {
			return nil, fmt.Errorf("list %s: unexpected document type %s", q.Type, doc.DocType())
		}
		out = append(out, t)
	}
	return out, nil
}
