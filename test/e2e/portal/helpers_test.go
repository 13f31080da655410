package portal_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nexusbq/portal/internal/portal/domain"
	"github.com/nexusbq/portal/internal/portal/event"
	portalhttp "github.com/nexusbq/portal/internal/portal/http"
	"github.com/nexusbq/portal/internal/portal/service"
	"github.com/nexusbq/portal/internal/portal/store"
	"github.com/nexusbq/portal/internal/portal/store/drivers/sqlite"
	"github.com/nexusbq/portal/pkg/idx"
	"github.com/nexusbq/portal/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

const (
	testSecret = "e2e-test-secret"
	testIssuer = "portal"
)

type testServer struct {
	URL    string
	Store  store.Store
	Signer jwtx.Signer

	adminID string
}

// setupServer boots the full HTTP surface over an in-memory database with
// one bootstrapped admin account.
func setupServer(t *testing.T) *testServer {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	adminID := idx.New().String()
	now := time.Now()
	require.NoError(t, st.Accounts().CreateAccount(context.Background(), domain.Account{
		ID:          adminID,
		DisplayName: "Root Admin",
		IsAdmin:     true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}))

	horizon := time.Now().Add(30 * 24 * time.Hour)
	bus := event.NewBus()
	logger := slog.New(slog.DiscardHandler)

	verifier := jwtx.Verifier{Secret: []byte(testSecret), Issuer: testIssuer}
	router := portalhttp.NewRouter(verifier, "e2e", st, logger)
	router.InviteService = &service.InviteService{Store: st, Bus: bus, Horizon: horizon}
	router.FocusService = &service.FocusService{Store: st, Bus: bus}
	router.AccountService = &service.AccountService{Store: st}
	router.Bus = bus
	router.ApplyRoutes()

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &testServer{
		URL:     srv.URL,
		Store:   st,
		Signer:  jwtx.Signer{Secret: []byte(testSecret), Issuer: testIssuer, TTL: time.Hour},
		adminID: adminID,
	}
}

func (s *testServer) token(t *testing.T, accountID string) string {
	t.Helper()

	token, err := s.Signer.Sign(accountID)
	require.NoError(t, err)
	return token
}

// doJSON issues a request with an optional bearer token and JSON body, and
// decodes the JSON response into out when out is non-nil.
func (s *testServer) doJSON(t *testing.T, method, path, token string, body, out any) int {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req, err := http.NewRequest(method, s.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if out != nil && len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, out), "body: %s", raw)
	}
	return resp.StatusCode
}
