package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/tablegate/internal/database"
	"github.com/koustreak/tablegate/internal/database/dialect"
	"github.com/koustreak/tablegate/internal/database/sqlite"
	"github.com/koustreak/tablegate/internal/errs"
	"github.com/koustreak/tablegate/internal/logger"
	"github.com/koustreak/tablegate/internal/registry"
	"github.com/koustreak/tablegate/internal/schema"
	"github.com/koustreak/tablegate/internal/service"
)

const shopDDL = `
CREATE TABLE customers (id INTEGER PRIMARY KEY, name TEXT NOT NULL);
CREATE TABLE orders (
	id          INTEGER PRIMARY KEY,
	customer_id INTEGER NOT NULL REFERENCES customers(id),
	status      TEXT NOT NULL DEFAULT 'new'
);
CREATE TABLE audit (line TEXT);
INSERT INTO customers (name) VALUES ('Ann'), ('Bob');
INSERT INTO orders (customer_id, status) VALUES (1, 'new'), (1, 'paid'), (2, 'new');`

func newTestServer(t *testing.T, logBuf *bytes.Buffer) http.Handler {
	t.Helper()
	ctx := context.Background()

	db, err := sqlite.New(ctx, database.DefaultConfig(database.DriverSQLite, ":memory:"))
	require.NoError(t, err)
	_, err = db.Exec(ctx, shopDDL)
	require.NoError(t, err)

	reg := registry.New()
	require.NoError(t, reg.Register(&registry.Conn{ID: "shop", Dialect: dialect.SQLite, DB: db}))
	t.Cleanup(reg.Close)

	log := logger.Nop()
	if logBuf != nil {
		log = logger.New(&logger.Config{Level: "info", Format: "json", Output: logBuf})
	}
	svc := service.New(reg, schema.NewCache(), service.Config{MaxLimit: 100}, log)
	return New(svc, nil, log).Handler()
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, target, nil)
	} else {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func decodeJSON[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestServer_Healthz(t *testing.T) {
	h := newTestServer(t, nil)
	w := do(t, h, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeJSON[healthStatus](t, w)
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "ok", body.Connections["shop"])
	assert.NotEmpty(t, w.Header().Get(headerRequestID))
}

func TestServer_RequestIDIsPropagated(t *testing.T) {
	h := newTestServer(t, nil)
	r := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	r.Header.Set(headerRequestID, "req-123")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, "req-123", w.Header().Get(headerRequestID))
}

func TestServer_SchemaRoutes(t *testing.T) {
	h := newTestServer(t, nil)

	w := do(t, h, http.MethodGet, "/api/shop/tables", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"audit", "customers", "orders"}, decodeJSON[[]string](t, w))

	w = do(t, h, http.MethodGet, "/api/shop/schema", "")
	require.Equal(t, http.StatusOK, w.Code)
	m := decodeJSON[map[string]schema.TableSchema](t, w)
	assert.Equal(t, []string{"id"}, m["orders"].PrimaryKeys)

	w = do(t, h, http.MethodPost, "/api/shop/schema/refresh", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, h, http.MethodDelete, "/api/shop/schema", "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, h, http.MethodGet, "/api/nope/tables", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_ListAndGet(t *testing.T) {
	h := newTestServer(t, nil)

	w := do(t, h, http.MethodGet, "/api/shop/tables/orders?status=new&orderBy=id&orderDir=desc", "")
	require.Equal(t, http.StatusOK, w.Code)
	rows := decodeJSON[[]map[string]any](t, w)
	require.Len(t, rows, 2)
	assert.Equal(t, float64(3), rows[0]["id"])

	w = do(t, h, http.MethodGet, "/api/shop/tables/customers/1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Ann", decodeJSON[map[string]any](t, w)["name"])

	w = do(t, h, http.MethodGet, "/api/shop/tables/customers/42", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", decodeJSON[errorBody](t, w).Error.Kind)
}

func TestServer_WriteLifecycle(t *testing.T) {
	h := newTestServer(t, nil)

	w := do(t, h, http.MethodPost, "/api/shop/tables/customers", `{"name":"Cy","unknown":true}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decodeJSON[service.WriteResult](t, w)
	assert.Equal(t, "sqlite", created.Dialect)
	assert.True(t, created.Returning)
	require.Len(t, created.Rows, 1)
	assert.Equal(t, float64(3), created.Rows[0]["id"])

	w = do(t, h, http.MethodPatch, "/api/shop/tables/customers/3", `{"name":"Cyd"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Cyd", decodeJSON[service.WriteResult](t, w).Rows[0]["name"])

	w = do(t, h, http.MethodPut, "/api/shop/tables/customers/3", `{"name":"Cy"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, h, http.MethodDelete, "/api/shop/tables/customers/3", "")
	require.Equal(t, http.StatusOK, w.Code)
	deleted := decodeJSON[service.WriteResult](t, w)
	require.NotNil(t, deleted.RowsAffected)
	assert.Equal(t, int64(1), *deleted.RowsAffected)

	w = do(t, h, http.MethodDelete, "/api/shop/tables/customers/3", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_DeleteByFilter(t *testing.T) {
	h := newTestServer(t, nil)

	w := do(t, h, http.MethodDelete, "/api/shop/tables/orders", "")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "unsafe_delete", decodeJSON[errorBody](t, w).Error.Kind)

	w = do(t, h, http.MethodDelete, "/api/shop/tables/orders?status=new", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(2), *decodeJSON[service.WriteResult](t, w).RowsAffected)
}

func TestServer_Related(t *testing.T) {
	h := newTestServer(t, nil)

	w := do(t, h, http.MethodGet, "/api/shop/tables/customers/1/orders", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeJSON[[]map[string]any](t, w), 2)

	w = do(t, h, http.MethodGet, "/api/shop/tables/orders/2/customers?fk=customer_id", "")
	require.Equal(t, http.StatusOK, w.Code)
	rows := decodeJSON[[]map[string]any](t, w)
	require.Len(t, rows, 1)
	assert.Equal(t, "Bob", rows[0]["name"])

	w = do(t, h, http.MethodGet, "/api/shop/tables/orders/3/customers?fk=customer_id", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decodeJSON[[]map[string]any](t, w))

	w = do(t, h, http.MethodGet, "/api/shop/tables/customers/1/audit", "")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestServer_RejectsBadInput(t *testing.T) {
	h := newTestServer(t, nil)

	tests := []struct {
		name   string
		method string
		target string
		body   string
		status int
		kind   string
	}{
		{"invalid table name", http.MethodGet, "/api/shop/tables/bad%20name", "", http.StatusBadRequest, "invalid_identifier"},
		{"system catalog", http.MethodGet, "/api/shop/tables/pg_class", "", http.StatusForbidden, "forbidden_identifier"},
		{"body not an object", http.MethodPost, "/api/shop/tables/customers", `[1,2]`, http.StatusBadRequest, "invalid_input"},
		{"body not json", http.MethodPost, "/api/shop/tables/customers", `name=x`, http.StatusBadRequest, "invalid_input"},
		{"no known columns", http.MethodPost, "/api/shop/tables/customers", `{"nope":1}`, http.StatusUnprocessableEntity, "no_valid_columns"},
		{"no primary key", http.MethodGet, "/api/shop/tables/audit/1", "", http.StatusUnprocessableEntity, "no_primary_key"},
		{"duplicate key", http.MethodPost, "/api/shop/tables/customers", `{"id":1,"name":"dup"}`, http.StatusConflict, "conflict"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, tt.method, tt.target, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Equal(t, tt.kind, decodeJSON[errorBody](t, w).Error.Kind)
		})
	}
}

func TestServer_LogsEachRequest(t *testing.T) {
	buf := &bytes.Buffer{}
	h := newTestServer(t, buf)

	do(t, h, http.MethodGet, "/api/shop/tables", "")

	var entry map[string]any
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.NoError(t, json.Unmarshal(lines[len(lines)-1], &entry))
	assert.Equal(t, "request", entry["message"])
	assert.Equal(t, "GET", entry["method"])
	assert.Equal(t, float64(http.StatusOK), entry["status"])
	assert.NotEmpty(t, entry["request_id"])
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusConflict, statusFor(errs.ErrKindAmbiguousRelationship))
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(errs.ErrKindConnectionFailed))
	assert.Equal(t, http.StatusGatewayTimeout, statusFor(errs.ErrKindTimeout))
	assert.Equal(t, http.StatusInternalServerError, statusFor(errs.ErrKindQueryFailed))
}
