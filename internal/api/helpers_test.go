package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/roach88/appframe/internal/ir"
	"github.com/roach88/appframe/internal/revisionable"
	"github.com/roach88/appframe/internal/store"
	"github.com/roach88/appframe/internal/testutil"
)

func pageType(name string) ir.RecordType {
	return ir.RecordType{
		Name: name,
		DataKeys: []ir.DataKeyDef{
			{Name: "title", Type: "string", Default: ir.IRString("")},
			{Name: "views", Type: "int", Default: ir.IRInt(0)},
		},
		Parts:        []string{"blocks"},
		States:       []string{"draft", "published"},
		InitialState: "draft",
	}
}

type testAPI struct {
	server  *Server
	handler http.Handler
	manager *revisionable.Manager
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	reg, err := revisionable.NewRegistry(pageType("page"), pageType("news"))
	require.NoError(t, err)

	m, err := revisionable.NewManager(context.Background(), st, reg,
		revisionable.WithClock(testutil.NewDeterministicClock()),
		revisionable.WithTokenGenerator(testutil.NewSequentialTokenGenerator("txn")),
		revisionable.WithNow(testutil.SteppingNow(testutil.FixedTime, time.Second)),
	)
	require.NoError(t, err)

	records, err := NewRecordsCollection(sqlx.NewDb(st.DB(), store.DriverName), zap.NewNop())
	require.NoError(t, err)

	s := NewServer(zap.NewNop())
	require.NoError(t, NewBuiltins(m, records).Register(s))
	return &testAPI{server: s, handler: s.Handler(), manager: m}
}

func (a *testAPI) create(t *testing.T, typeName, label string) *revisionable.Revisionable {
	t.Helper()
	r, err := a.manager.Create(context.Background(), typeName, label, "alice")
	require.NoError(t, err)
	return r
}

// envelope is Response with undecoded data.
type envelope struct {
	State   string          `json:"state"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (a *testAPI) get(t *testing.T, target string) (int, envelope) {
	t.Helper()
	return a.do(t, httptest.NewRequest(http.MethodGet, target, nil))
}

func (a *testAPI) postJSON(t *testing.T, target, body string, header map[string]string) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	return a.do(t, req)
}

func (a *testAPI) do(t *testing.T, req *http.Request) (int, envelope) {
	t.Helper()
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return rec.Code, env
}

func decodeData[T any](t *testing.T, env envelope) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

func validationCodes(t *testing.T, env envelope) []string {
	t.Helper()
	errs := decodeData[[]struct {
		Code string `json:"code"`
	}](t, env)
	codes := make([]string, len(errs))
	for i, e := range errs {
		codes[i] = e.Code
	}
	return codes
}
