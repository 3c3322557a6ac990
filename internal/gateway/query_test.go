package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuery_Execute(t *testing.T) {
	var got url.Values
	var gotPath string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		got = r.URL.Query()
		writeJSON(w, http.StatusOK, []map[string]any{{"id": "w1", "title": "Santorini"}})
	})

	var rows []map[string]any
	err := c.From("weddings").
		Select("id,title").
		Eq("status", "upcoming").
		Gte("budget", 1000).
		Is("client_id", nil).
		Order("date", true).
		Order("created_at", false).
		Limit(5).
		Execute(context.Background(), &rows)
	require.NoError(t, err)

	assert.Equal(t, "/rest/v1/weddings", gotPath)
	assert.Equal(t, "id,title", got.Get("select"))
	assert.Equal(t, "eq.upcoming", got.Get("status"))
	assert.Equal(t, "gte.1000", got.Get("budget"))
	assert.Equal(t, "is.null", got.Get("client_id"))
	assert.Equal(t, "date.asc.nullslast,created_at.desc.nullslast", got.Get("order"))
	assert.Equal(t, "5", got.Get("limit"))
	require.Len(t, rows, 1)
	assert.Equal(t, "Santorini", rows[0]["title"])
}

func TestQuery_DefaultsAndRange(t *testing.T) {
	var got url.Values
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.Query()
		writeJSON(w, http.StatusOK, []any{})
	})

	err := c.From("guests").In("id", "a", "b,c").Range(10, 19).Execute(context.Background(), &[]map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "*", got.Get("select"))
	assert.Equal(t, `in.(a,"b,c")`, got.Get("id"))
	assert.Equal(t, "10", got.Get("offset"))
	assert.Equal(t, "10", got.Get("limit"))
}

func TestQuery_SingleNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, []string{"application/vnd.pgrst.object+json"}, r.Header.Values("Accept"))
		writeJSON(w, http.StatusNotAcceptable, map[string]string{
			"code":    "PGRST116",
			"message": "JSON object requested, multiple (or no) rows returned",
			"details": "The result contains 0 rows",
		})
	})

	var row map[string]any
	err := c.From("vendors").Eq("id", "missing").Single(context.Background(), &row)
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.True(t, IsStatus(err, http.StatusNotAcceptable))
}

func TestQuery_Count(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		mode    CountMode
		want    int64
		wantErr bool
	}{
		{name: "exact", header: "0-24/3573", mode: CountExact, want: 3573},
		{name: "empty table", header: "*/0", mode: CountEstimated, want: 0},
		{name: "missing total", header: "0-24/*", mode: CountExact, wantErr: true},
		{name: "no header", header: "", mode: CountExact, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var prefer, method string
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				prefer = r.Header.Get("Prefer")
				method = r.Method
				if tt.header != "" {
					w.Header().Set("Content-Range", tt.header)
				}
				w.WriteHeader(http.StatusOK)
			})

			n, err := c.From("blog_posts").Eq("published", true).Count(context.Background(), tt.mode)
			assert.Equal(t, http.MethodHead, method)
			assert.Equal(t, "count="+string(tt.mode), prefer)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, n)
		})
	}
}

func TestQuery_InsertReturnsRepresentation(t *testing.T) {
	var body []map[string]any
	var prefer string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		prefer = r.Header.Get("Prefer")
		data, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(data, &body))
		writeJSON(w, http.StatusCreated, []map[string]any{{"id": "c1", "name": "Ana"}})
	})

	var created []map[string]any
	err := c.From("clients").Insert(context.Background(), []map[string]any{{"name": "Ana"}}, &created)
	require.NoError(t, err)
	assert.Equal(t, "return=representation", prefer)
	assert.Equal(t, "Ana", body[0]["name"])
	assert.Equal(t, "c1", created[0]["id"])
}

func TestQuery_Upsert(t *testing.T) {
	var prefer string
	var got url.Values
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		prefer = r.Header.Get("Prefer")
		got = r.URL.Query()
		w.WriteHeader(http.StatusCreated)
	})

	err := c.From("settings").Upsert(context.Background(), map[string]any{"id": "s1"}, "id", nil)
	require.NoError(t, err)
	assert.Equal(t, "resolution=merge-duplicates,return=minimal", prefer)
	assert.Equal(t, "id", got.Get("on_conflict"))
}

func TestQuery_MutationsRequireFilter(t *testing.T) {
	called := false
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	err := c.From("weddings").Update(context.Background(), map[string]any{"title": "x"}, nil)
	assert.ErrorIs(t, err, ErrMissingFilter)
	err = c.From("weddings").Delete(context.Background())
	assert.ErrorIs(t, err, ErrMissingFilter)
	assert.False(t, called)
}

func TestQuery_UpdateAndDelete(t *testing.T) {
	var methods []string
	var filters []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		methods = append(methods, r.Method)
		filters = append(filters, r.URL.Query().Get("id"))
		w.WriteHeader(http.StatusNoContent)
	})

	ctx := context.Background()
	require.NoError(t, c.From("vendors").Eq("id", "v1").Update(ctx, map[string]any{"status": "inactive"}, nil))
	require.NoError(t, c.From("vendors").Eq("id", "v1").Delete(ctx))
	assert.Equal(t, []string{http.MethodPatch, http.MethodDelete}, methods)
	assert.Equal(t, []string{"eq.v1", "eq.v1"}, filters)
}

func TestQuery_ConstraintViolation(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusConflict, map[string]string{
			"code":    "23505",
			"message": `duplicate key value violates unique constraint "pages_slug_key"`,
			"details": "Key (slug)=(about) already exists.",
		})
	})

	err := c.From("pages").Insert(context.Background(), map[string]any{"slug": "about"}, nil)
	var gwErr *Error
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, "23505", gwErr.Code)
	assert.Equal(t, http.StatusConflict, gwErr.Status)
	assert.Equal(t, "Key (slug)=(about) already exists.", gwErr.ErrorDetails())
	assert.False(t, IsNotFound(err))
}

func TestQuery_RepeatedColumnFilters(t *testing.T) {
	var got url.Values
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.Query()
		writeJSON(w, http.StatusOK, []any{})
	})

	err := c.From("weddings").
		Gte("budget", 1000).
		Lte("budget", 5000).
		Execute(context.Background(), &[]map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "(budget.gte.1000,budget.lte.5000)", got.Get("and"))
	assert.False(t, got.Has("budget"))
}

func TestQuery_DecodeFailure(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"not":"a list"}`)) //nolint:errcheck
	})

	var rows []map[string]any
	err := c.From("weddings").Execute(context.Background(), &rows)
	var gwErr *Error
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, CodeDecode, gwErr.Code)
	assert.Equal(t, http.StatusOK, gwErr.Status)
}

func TestQuery_UnencodableRow(t *testing.T) {
	called := false
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	err := c.From("clients").Insert(context.Background(), map[string]any{"bad": make(chan int)}, nil)
	var gwErr *Error
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, CodeDecode, gwErr.Code)
	assert.False(t, called)
}
