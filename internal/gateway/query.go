package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/supabase-community/postgrest-go"
)

// CountMode selects how row counts are computed by the remote store
type CountMode string

const (
	CountExact     CountMode = "exact"
	CountEstimated CountMode = "estimated"
	CountPlanned   CountMode = "planned"
)

type filterTerm struct {
	column, op, value string
}

type orderTerm struct {
	column    string
	ascending bool
}

// Query builds a request against one table. Filter and modifier methods
// return the receiver for chaining; a Query must not be shared between
// goroutines.
type Query struct {
	client  *Client
	table   string
	columns string
	filters []filterTerm
	order   []orderTerm
	limit   int
	offset  int
}

// From starts a query against table
func (c *Client) From(table string) *Query {
	return &Query{client: c, table: table}
}

// Select sets the returned columns ("*" when never called)
func (q *Query) Select(columns string) *Query {
	q.columns = columns
	return q
}

func (q *Query) filter(column, op string, value any) *Query {
	q.filters = append(q.filters, filterTerm{column: column, op: op, value: formatValue(value)})
	return q
}

func (q *Query) Eq(column string, value any) *Query  { return q.filter(column, "eq", value) }
func (q *Query) Neq(column string, value any) *Query { return q.filter(column, "neq", value) }
func (q *Query) Gt(column string, value any) *Query  { return q.filter(column, "gt", value) }
func (q *Query) Gte(column string, value any) *Query { return q.filter(column, "gte", value) }
func (q *Query) Lt(column string, value any) *Query  { return q.filter(column, "lt", value) }
func (q *Query) Lte(column string, value any) *Query { return q.filter(column, "lte", value) }

// Like matches column against a pattern using * or % as wildcard
func (q *Query) Like(column, pattern string) *Query {
	return q.filter(column, "like", pattern)
}

// Is matches null, true or false
func (q *Query) Is(column string, value any) *Query {
	return q.filter(column, "is", value)
}

// In matches any of values
func (q *Query) In(column string, values ...any) *Query {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = quoteListItem(formatValue(v))
	}
	return q.filter(column, "in", "("+strings.Join(parts, ",")+")")
}

// Order appends an ordering term; calls accumulate in priority order. Nulls
// sort last in both directions.
func (q *Query) Order(column string, ascending bool) *Query {
	q.order = append(q.order, orderTerm{column: column, ascending: ascending})
	return q
}

// Limit caps the number of returned rows
func (q *Query) Limit(n int) *Query {
	q.limit = n
	return q
}

// Range returns rows from..to inclusive (zero based)
func (q *Query) Range(from, to int) *Query {
	q.offset = from
	q.limit = to - from + 1
	return q
}

// apply copies the filters, and optionally the modifiers, onto b.
// Repeated filters on one column are combined with and.
func (q *Query) apply(b *postgrest.FilterBuilder, withModifiers bool) *postgrest.FilterBuilder {
	for _, f := range q.filters {
		b = b.Filter(f.column, f.op, f.value)
	}
	if !withModifiers {
		return b
	}
	for _, o := range q.order {
		b = b.Order(o.column, &postgrest.OrderOpts{Ascending: o.ascending})
	}
	switch {
	case q.offset > 0:
		b = b.Range(q.offset, q.offset+q.limit-1, "")
	case q.limit > 0:
		b = b.Limit(q.limit, "")
	}
	return b
}

// Execute fetches the matching rows into dest, which must point to a slice
func (q *Query) Execute(ctx context.Context, dest any) error {
	ctx, cl := withCall(ctx, "select")
	b := q.apply(q.client.rest.From(q.table).Select(q.columns, "", false), true)

	body, _, err := b.ExecuteWithContext(ctx)
	if err == nil {
		err = decodeRows(cl, body, dest)
	}
	if err != nil {
		return fmt.Errorf("select %s: %w", q.table, restError(cl.op, err))
	}
	return nil
}

// Single fetches exactly one row into dest. Zero or several matching rows
// yield an error for which IsNotFound reports true in the zero case.
func (q *Query) Single(ctx context.Context, dest any) error {
	ctx, cl := withCall(ctx, "single")
	b := q.apply(q.client.rest.From(q.table).Select(q.columns, "", false), true).Single()

	body, _, err := b.ExecuteWithContext(ctx)
	if err == nil {
		err = decodeRows(cl, body, dest)
	}
	if err != nil {
		return fmt.Errorf("select single %s: %w", q.table, restError(cl.op, err))
	}
	return nil
}

// Count returns the number of matching rows without fetching them
func (q *Query) Count(ctx context.Context, mode CountMode) (int64, error) {
	if mode == "" {
		mode = CountExact
	}
	ctx, cl := withCall(ctx, "count")
	b := q.apply(q.client.rest.From(q.table).Select(q.columns, string(mode), true), false)

	if _, _, err := b.ExecuteWithContext(ctx); err != nil {
		return 0, fmt.Errorf("count %s: %w", q.table, restError(cl.op, err))
	}

	// the SDK reads "0-24/*" as zero; an unknown total is an error here
	n, err := parseContentRange(cl.header.Get("Content-Range"))
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", q.table, err)
	}
	return n, nil
}

// Insert creates rows (a struct, map or slice of them). When dest is non-nil
// the created rows are decoded into it.
func (q *Query) Insert(ctx context.Context, rows any, dest any) error {
	payload, err := rawJSON(rows)
	if err != nil {
		return fmt.Errorf("insert %s: %w", q.table, err)
	}
	b := q.client.rest.From(q.table).Insert(payload, false, "", returning(dest), "")
	return q.write(ctx, "insert", b, dest)
}

// Upsert inserts rows, merging with existing ones that collide on onConflict
func (q *Query) Upsert(ctx context.Context, rows any, onConflict string, dest any) error {
	payload, err := rawJSON(rows)
	if err != nil {
		return fmt.Errorf("upsert %s: %w", q.table, err)
	}
	b := q.client.rest.From(q.table).Upsert(payload, onConflict, returning(dest), "")
	return q.write(ctx, "upsert", b, dest)
}

// Update patches every row matching the filters
func (q *Query) Update(ctx context.Context, patch any, dest any) error {
	if len(q.filters) == 0 {
		return ErrMissingFilter
	}
	payload, err := rawJSON(patch)
	if err != nil {
		return fmt.Errorf("update %s: %w", q.table, err)
	}
	b := q.apply(q.client.rest.From(q.table).Update(payload, returning(dest), ""), false)
	return q.write(ctx, "update", b, dest)
}

// Delete removes every row matching the filters
func (q *Query) Delete(ctx context.Context) error {
	if len(q.filters) == 0 {
		return ErrMissingFilter
	}
	b := q.apply(q.client.rest.From(q.table).Delete("minimal", ""), false)
	return q.write(ctx, "delete", b, nil)
}

func (q *Query) write(ctx context.Context, op string, b *postgrest.FilterBuilder, dest any) error {
	ctx, cl := withCall(ctx, op)
	body, _, err := b.ExecuteWithContext(ctx)
	if err == nil {
		err = decodeRows(cl, body, dest)
	}
	if err != nil {
		return fmt.Errorf("%s %s: %w", op, q.table, restError(op, err))
	}
	return nil
}

func returning(dest any) string {
	if dest == nil {
		return "minimal"
	}
	return "representation"
}

// rawJSON marshals up front so encoding failures surface as *Error rather
// than as a builder without a client
func rawJSON(v any) (json.RawMessage, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, &Error{Code: CodeDecode, Message: fmt.Sprintf("failed to marshal request: %v", err), err: err}
	}
	return data, nil
}

func decodeRows(cl *call, body []byte, dest any) error {
	if dest == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return &Error{
			Status:  cl.status,
			Code:    CodeDecode,
			Message: fmt.Sprintf("failed to decode response: %v", err),
			err:     err,
		}
	}
	return nil
}

// restError recovers the *Error raised by the interceptor from the SDK's
// wrapping
func restError(op string, err error) error {
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr
	}
	return networkError(op, err)
}

// parseContentRange reads the total from "0-24/3573" or "*/0"
func parseContentRange(v string) (int64, error) {
	_, total, ok := strings.Cut(v, "/")
	if !ok || total == "" || total == "*" {
		return 0, &Error{Code: CodeDecode, Message: fmt.Sprintf("missing row count in Content-Range %q", v)}
	}
	n, err := strconv.ParseInt(total, 10, 64)
	if err != nil {
		return 0, &Error{Code: CodeDecode, Message: fmt.Sprintf("invalid Content-Range %q", v), err: err}
	}
	return n, nil
}

func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

// quoteListItem quotes values containing list delimiters
func quoteListItem(s string) string {
	if strings.ContainsAny(s, `,()" `) {
		return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
	}
	return s
}
