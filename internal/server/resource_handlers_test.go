package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const weddingID = "7d9f3b8e-2f1a-4c55-9a43-3d1c2b7e8f10"

// echoInsert answers inserts with the submitted row plus an id
func echoInsert(id string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var row map[string]any
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &row) //nolint:errcheck
		row["id"] = id
		writeJSON(w, http.StatusCreated, []map[string]any{row})
	}
}

func TestListRows(t *testing.T) {
	b := newBackend(t)
	b.on("GET /rest/v1/weddings", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []map[string]any{{"id": weddingID, "title": "Sunset vows"}})
	})
	s := newTestServer(t, b)

	rec := serve(s, http.MethodGet, "/admin/weddings?status=upcoming&limit=10&offset=20", nil, withSession)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data := decodeBody(t, rec)["data"].([]any)
	assert.Len(t, data, 1)

	calls := b.callsTo(http.MethodGet, "/rest/v1/weddings")
	require.Len(t, calls, 1)
	q := calls[0].Query
	assert.Equal(t, "eq.upcoming", q.Get("status"))
	assert.Equal(t, "date.asc.nullslast", q.Get("order"))
	assert.Equal(t, "10", q.Get("limit"))
	assert.Equal(t, "20", q.Get("offset"))
	assert.Equal(t, "Bearer "+testToken, calls[0].Header.Get("Authorization"), "queries run as the signed-in user")
	assert.Equal(t, "anon-key", calls[0].Header.Get("apikey"))
}

func TestListRows_UnknownFilter(t *testing.T) {
	b := newBackend(t)
	s := newTestServer(t, b)

	rec := serve(s, http.MethodGet, "/admin/weddings?password=x", nil, withSession)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, b.restCalls())
}

func TestListRows_Nested(t *testing.T) {
	b := newBackend(t)
	b.on("GET /rest/v1/guests", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []map[string]any{})
	})
	s := newTestServer(t, b)

	rec := serve(s, http.MethodGet, "/admin/weddings/"+weddingID+"/guests", nil, withSession)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{}, decodeBody(t, rec)["data"])

	calls := b.callsTo(http.MethodGet, "/rest/v1/guests")
	require.Len(t, calls, 1)
	assert.Equal(t, "eq."+weddingID, calls[0].Query.Get("wedding_id"))
	assert.Equal(t, "last_name.asc.nullslast", calls[0].Query.Get("order"))
}

func TestGetRow(t *testing.T) {
	b := newBackend(t)
	b.on("GET /rest/v1/pages", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("slug") != "eq.about" {
			writeJSON(w, http.StatusNotAcceptable, map[string]any{
				"code":    "PGRST116",
				"message": "JSON object requested, multiple (or no) rows returned",
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"id": "p1", "slug": "about", "title": "About us"})
	})
	s := newTestServer(t, b)

	rec := serve(s, http.MethodGet, "/admin/pages/about", nil, withSession)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "About us", decodeBody(t, rec)["title"])

	rec = serve(s, http.MethodGet, "/admin/pages/missing", nil, withSession)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	body := decodeBody(t, rec)["error"].(map[string]any)
	assert.Equal(t, "PGRST116", body["code"])
}

func TestCreateRow_JSON(t *testing.T) {
	b := newBackend(t)
	b.on("POST /rest/v1/clients", echoInsert("c1"))
	s := newTestServer(t, b)

	rec := serve(s, http.MethodPost, "/admin/clients",
		strings.NewReader(`{"name":"Ana Reyes","email":"ana@example.com","package":"Gold","id":"client-chosen"}`),
		withSession, asJSON)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "c1", decodeBody(t, rec)["id"])

	calls := b.callsTo(http.MethodPost, "/rest/v1/clients")
	require.Len(t, calls, 1)
	assert.JSONEq(t, `{"name":"Ana Reyes","email":"ana@example.com","package":"Gold"}`, calls[0].Body)
	assert.Equal(t, "return=representation", calls[0].Header.Get("Prefer"))
}

func TestCreateRow_Form(t *testing.T) {
	b := newBackend(t)
	b.on("POST /rest/v1/tables", echoInsert("t1"))
	s := newTestServer(t, b)

	form := url.Values{"name": {"Table 1"}, "capacity": {"8"}, "location": {""}}
	rec := serve(s, http.MethodPost, "/admin/weddings/"+weddingID+"/tables",
		strings.NewReader(form.Encode()), withSession, asForm)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	calls := b.callsTo(http.MethodPost, "/rest/v1/tables")
	require.Len(t, calls, 1)
	assert.JSONEq(t, `{"name":"Table 1","capacity":8,"location":null,"wedding_id":"`+weddingID+`"}`, calls[0].Body)
}

func TestCreateRow_ValidationFails(t *testing.T) {
	b := newBackend(t)
	s := newTestServer(t, b)

	rec := serve(s, http.MethodPost, "/admin/vendors",
		strings.NewReader(`{"name":"Glow","category":"Astrology","email":"nope"}`), withSession, asJSON)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	e := decodeBody(t, rec)["error"].(map[string]any)
	assert.Equal(t, "Validation failed", e["message"])
	assert.Equal(t, "validation", e["code"])
	assert.Contains(t, e["details"], "category: must be one of")
	assert.Contains(t, e["details"], "email: must be a valid email address")
	assert.Zero(t, b.restCalls())
}

func TestCreateRow_BackendConflict(t *testing.T) {
	b := newBackend(t)
	b.on("POST /rest/v1/blog_posts", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusConflict, map[string]any{
			"code":    "23505",
			"message": `duplicate key value violates unique constraint "blog_posts_slug_key"`,
			"details": "Key (slug)=(hello) already exists.",
		})
	})
	s := newTestServer(t, b)

	rec := serve(s, http.MethodPost, "/admin/blog",
		strings.NewReader(`{"title":"Hello","slug":"hello"}`), withSession, asJSON)

	assert.Equal(t, http.StatusConflict, rec.Code)
	e := decodeBody(t, rec)["error"].(map[string]any)
	assert.Equal(t, "23505", e["code"])
	assert.Equal(t, "Key (slug)=(hello) already exists.", e["details"])
}

func TestUpdateRow(t *testing.T) {
	b := newBackend(t)
	b.on("PATCH /rest/v1/weddings", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("id") != "eq."+weddingID {
			writeJSON(w, http.StatusOK, []map[string]any{})
			return
		}
		writeJSON(w, http.StatusOK, []map[string]any{{"id": weddingID, "status": "completed"}})
	})
	s := newTestServer(t, b)

	rec := serve(s, http.MethodPut, "/admin/weddings/"+weddingID,
		strings.NewReader(`{"status":"completed"}`), withSession, asJSON)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "completed", decodeBody(t, rec)["status"])

	calls := b.callsTo(http.MethodPatch, "/rest/v1/weddings")
	require.Len(t, calls, 1)
	assert.JSONEq(t, `{"status":"completed"}`, calls[0].Body)

	rec = serve(s, http.MethodPut, "/admin/weddings/other",
		strings.NewReader(`{"status":"completed"}`), withSession, asJSON)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(s, http.MethodPut, "/admin/weddings/"+weddingID,
		strings.NewReader(`{}`), withSession, asJSON)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteRow(t *testing.T) {
	b := newBackend(t)
	b.on("DELETE /rest/v1/vendors", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	s := newTestServer(t, b)

	rec := serve(s, http.MethodDelete, "/admin/vendors/v1", nil, withSession)
	require.Equal(t, http.StatusOK, rec.Code)

	calls := b.callsTo(http.MethodDelete, "/rest/v1/vendors")
	require.Len(t, calls, 1)
	assert.Equal(t, "eq.v1", calls[0].Query.Get("id"))
}

func TestSettingsSingleton(t *testing.T) {
	b := newBackend(t)
	settingsRows := func(rows []map[string]any) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, rows)
		}
	}
	b.on("GET /rest/v1/settings", settingsRows([]map[string]any{}))
	b.on("POST /rest/v1/settings", echoInsert("s1"))
	s := newTestServer(t, b)

	rec := serve(s, http.MethodGet, "/admin/settings", nil, withSession)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeBody(t, rec))

	// first save inserts
	rec = serve(s, http.MethodPut, "/admin/settings",
		strings.NewReader(`{"site_name":"Island Vows"}`), withSession, asJSON)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	calls := b.callsTo(http.MethodPost, "/rest/v1/settings")
	require.Len(t, calls, 1)
	assert.Empty(t, calls[0].Query.Get("on_conflict"))

	// later saves merge into the existing row
	b.on("GET /rest/v1/settings", settingsRows([]map[string]any{{"id": "s1"}}))
	rec = serve(s, http.MethodPut, "/admin/settings",
		strings.NewReader(`{"contact_email":"hello@islandvows.test"}`), withSession, asJSON)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	calls = b.callsTo(http.MethodPost, "/rest/v1/settings")
	require.Len(t, calls, 2)
	assert.Equal(t, "id", calls[1].Query.Get("on_conflict"))
	assert.Contains(t, calls[1].Header.Get("Prefer"), "resolution=merge-duplicates")
	assert.JSONEq(t, `{"id":"s1","contact_email":"hello@islandvows.test"}`, calls[1].Body)
}

func TestSingletonHasNoItemRoutes(t *testing.T) {
	s := newTestServer(t, newBackend(t))

	rec := serve(s, http.MethodDelete, "/admin/settings/s1", nil, withSession)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
