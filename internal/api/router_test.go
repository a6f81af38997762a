package api

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/dmjr-ledger/internal/auth"
	"github.com/example/dmjr-ledger/internal/ledger"
	"github.com/example/dmjr-ledger/internal/security"
	"github.com/example/dmjr-ledger/pkg/audit"
)

const (
	testAPIKey    = "test-api-key"
	testJWTSecret = "0123456789abcdef0123456789abcdef"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(t *testing.T, ids ...string) *ledger.Engine {
	t.Helper()
	var accounts []ledger.Account
	for _, id := range ids {
		accounts = append(accounts, ledger.Account{ID: id})
	}
	e, err := ledger.Open(context.Background(), ledger.NewMemoryStore(&ledger.State{Accounts: accounts}),
		ledger.WithLogger(discardLogger()))
	require.NoError(t, err)
	return e
}

func newTestDeps(t *testing.T) Dependencies {
	return Dependencies{
		Logger:       discardLogger(),
		Ledger:       newTestEngine(t, "A", "B", "C"),
		Auth:         auth.NewAuthenticator(testAPIKey, testJWTSecret),
		Auditor:      audit.NewChainLogger(),
		MaxBodyBytes: 1 << 20,
	}
}

func newTestRouter(t *testing.T, deps Dependencies) http.Handler {
	t.Helper()
	return NewRouter(deps)
}

type call struct {
	method string
	path   string
	body   string
	header map[string]string
}

func do(t *testing.T, h http.Handler, c call) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if c.body != "" {
		body = strings.NewReader(c.body)
	}
	req := httptest.NewRequest(c.method, c.path, body)
	req.Header.Set("Content-Type", "application/json")
	if c.header == nil {
		req.Header.Set(auth.APIKeyHeader, testAPIKey)
	}
	for k, v := range c.header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body security.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body.Error
}

func decodeTx(t *testing.T, rec *httptest.ResponseRecorder) ledger.Transaction {
	t.Helper()
	var tx ledger.Transaction
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tx), rec.Body.String())
	return tx
}

func TestHealth(t *testing.T) {
	h := newTestRouter(t, newTestDeps(t))

	rec := do(t, h, call{method: http.MethodGet, path: "/api/health"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true,"service":"dmjr-ledger-api"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(security.CorrelationIDHeader))

	// the shared secret gates every /api route
	rec = do(t, h, call{method: http.MethodGet, path: "/api/health", header: map[string]string{}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", errorCode(t, rec))

	rec = do(t, h, call{method: http.MethodGet, path: "/healthz", header: map[string]string{}})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestIssueAndTransferFlow(t *testing.T) {
	deps := newTestDeps(t)
	h := newTestRouter(t, deps)

	rec := do(t, h, call{method: http.MethodPost, path: "/api/issue", body: `{"to":"A","amount_mg":1000,"memo":"mint"}`})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	issued := decodeTx(t, rec)
	assert.Equal(t, ledger.TxIssuance, issued.Type)
	assert.Equal(t, "A", issued.To)
	assert.Equal(t, int64(1000), issued.AmountMg)
	assert.Equal(t, "mint", issued.Memo)
	assert.Contains(t, rec.Body.String(), `"from":null`)

	rec = do(t, h, call{method: http.MethodPost, path: "/api/transfer", body: `{"from":"A","to":"B","amount_mg":250}`})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	moved := decodeTx(t, rec)
	assert.Equal(t, ledger.TxTransfer, moved.Type)
	assert.Equal(t, "A", moved.From)
	assert.Equal(t, "", moved.Memo)
	assert.False(t, moved.Timestamp.Before(issued.Timestamp))

	rec = do(t, h, call{method: http.MethodGet, path: "/api/balance/A"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"accountId":"A","balance_mg":750}`, rec.Body.String())

	rec = do(t, h, call{method: http.MethodGet, path: "/api/balance/B"})
	assert.JSONEq(t, `{"accountId":"B","balance_mg":250}`, rec.Body.String())

	rec = do(t, h, call{method: http.MethodGet, path: "/api/accounts"})
	require.Equal(t, http.StatusOK, rec.Code)
	var accounts []ledger.Account
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &accounts))
	assert.Equal(t, []ledger.Account{{ID: "A", BalanceMg: 750}, {ID: "B", BalanceMg: 250}, {ID: "C"}}, accounts)

	rec = do(t, h, call{method: http.MethodGet, path: "/api/transactions"})
	var txs []ledger.Transaction
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &txs))
	require.Len(t, txs, 2)
	assert.Equal(t, issued.TxID, txs[0].TxID)
	assert.Equal(t, moved.TxID, txs[1].TxID)

	rec = do(t, h, call{method: http.MethodGet, path: "/api/transactions?limit=1"})
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &txs))
	require.Len(t, txs, 1)
	assert.Equal(t, moved.TxID, txs[0].TxID)

	rec = do(t, h, call{method: http.MethodGet, path: "/api/transactions/" + issued.TxID})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, issued.TxID, decodeTx(t, rec).TxID)

	rec = do(t, h, call{method: http.MethodGet, path: "/api/consistency"})
	require.Equal(t, http.StatusOK, rec.Code)
	var report consistencyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.True(t, report.Valid)
	assert.Zero(t, report.Failures)
	assert.Equal(t, int64(1000), report.SupplyMg)
}

func TestErrors(t *testing.T) {
	h := newTestRouter(t, newTestDeps(t))
	require.Equal(t, http.StatusOK, do(t, h, call{method: http.MethodPost, path: "/api/issue", body: `{"to":"A","amount_mg":100}`}).Code)

	tests := []struct {
		name   string
		c      call
		status int
		code   string
	}{
		{"unknown balance", call{method: http.MethodGet, path: "/api/balance/Z"}, http.StatusNotFound, "account_not_found"},
		{"issue to unknown", call{method: http.MethodPost, path: "/api/issue", body: `{"to":"Z","amount_mg":1}`}, http.StatusNotFound, "dest_not_found"},
		{"issue zero", call{method: http.MethodPost, path: "/api/issue", body: `{"to":"A","amount_mg":0}`}, http.StatusBadRequest, "invalid_params"},
		{"issue fraction", call{method: http.MethodPost, path: "/api/issue", body: `{"to":"A","amount_mg":1.5}`}, http.StatusBadRequest, "invalid_params"},
		{"issue string amount", call{method: http.MethodPost, path: "/api/issue", body: `{"to":"A","amount_mg":"5"}`}, http.StatusBadRequest, "invalid_params"},
		{"issue too large", call{method: http.MethodPost, path: "/api/issue", body: `{"to":"A","amount_mg":9223372036854775808}`}, http.StatusBadRequest, "invalid_params"},
		{"issue missing to", call{method: http.MethodPost, path: "/api/issue", body: `{"amount_mg":5}`}, http.StatusBadRequest, "invalid_params"},
		{"issue overflow", call{method: http.MethodPost, path: "/api/issue", body: `{"to":"B","amount_mg":9223372036854775807}`}, http.StatusBadRequest, "invalid_params"},
		{"malformed json", call{method: http.MethodPost, path: "/api/issue", body: `{"to":`}, http.StatusBadRequest, "invalid_params"},
		{"transfer unknown source", call{method: http.MethodPost, path: "/api/transfer", body: `{"from":"Z","to":"A","amount_mg":1}`}, http.StatusNotFound, "account_not_found"},
		{"transfer unknown dest", call{method: http.MethodPost, path: "/api/transfer", body: `{"from":"A","to":"Z","amount_mg":1}`}, http.StatusNotFound, "account_not_found"},
		{"transfer overdraw", call{method: http.MethodPost, path: "/api/transfer", body: `{"from":"A","to":"B","amount_mg":101}`}, http.StatusBadRequest, "insufficient_funds"},
		{"transfer to self", call{method: http.MethodPost, path: "/api/transfer", body: `{"from":"A","to":"A","amount_mg":1}`}, http.StatusBadRequest, "invalid_params"},
		{"transfer negative", call{method: http.MethodPost, path: "/api/transfer", body: `{"from":"A","to":"B","amount_mg":-1}`}, http.StatusBadRequest, "invalid_params"},
		{"bad limit", call{method: http.MethodGet, path: "/api/transactions?limit=ten"}, http.StatusBadRequest, "invalid_params"},
		{"zero limit", call{method: http.MethodGet, path: "/api/transactions?limit=0"}, http.StatusBadRequest, "invalid_params"},
		{"negative limit", call{method: http.MethodGet, path: "/api/transactions?limit=-5"}, http.StatusBadRequest, "invalid_params"},
		{"unknown txid", call{method: http.MethodGet, path: "/api/transactions/nope"}, http.StatusNotFound, "transaction_not_found"},
		{"unknown route", call{method: http.MethodGet, path: "/api/nope"}, http.StatusNotFound, "not_found"},
		{"wrong method", call{method: http.MethodGet, path: "/api/issue"}, http.StatusMethodNotAllowed, "method_not_allowed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, tt.c)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.code, errorCode(t, rec))
		})
	}

	// nothing above moved value
	rec := do(t, h, call{method: http.MethodGet, path: "/api/balance/A"})
	assert.JSONEq(t, `{"accountId":"A","balance_mg":100}`, rec.Body.String())
}

func TestIssue_IntegralFloatAndNullMemo(t *testing.T) {
	h := newTestRouter(t, newTestDeps(t))

	rec := do(t, h, call{method: http.MethodPost, path: "/api/issue", body: `{"to":"A","amount_mg":5.0,"memo":null}`})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	tx := decodeTx(t, rec)
	assert.Equal(t, int64(5), tx.AmountMg)
	assert.Equal(t, "", tx.Memo)
	assert.Contains(t, rec.Body.String(), `"memo":""`)
}

type brokenLedger struct {
	Ledger
}

func (brokenLedger) Issue(ctx context.Context, req ledger.IssueRequest) (ledger.Transaction, error) {
	return ledger.Transaction{}, fmt.Errorf("%w: disk full", ledger.ErrStorage)
}

func TestStorageError(t *testing.T) {
	deps := newTestDeps(t)
	deps.Ledger = brokenLedger{Ledger: deps.Ledger}
	h := newTestRouter(t, deps)

	rec := do(t, h, call{method: http.MethodPost, path: "/api/issue", body: `{"to":"A","amount_mg":1}`})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "storage_error", errorCode(t, rec))
}

// driftedLedger reports an issued total that disagrees with the balances.
type driftedLedger struct {
	Ledger
	supply int64
}

func (d driftedLedger) Supply() int64 { return d.supply }

func TestConsistency_ReportsIssuedSupply(t *testing.T) {
	deps := newTestDeps(t)
	_, err := deps.Ledger.Issue(context.Background(), ledger.IssueRequest{To: "A", AmountMg: 40})
	require.NoError(t, err)
	deps.Ledger = driftedLedger{Ledger: deps.Ledger, supply: 99}
	h := newTestRouter(t, deps)

	rec := do(t, h, call{method: http.MethodGet, path: "/api/consistency"})
	require.Equal(t, http.StatusOK, rec.Code)
	var report consistencyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, int64(99), report.SupplyMg)
}

func TestProvision(t *testing.T) {
	deps := newTestDeps(t)
	h := newTestRouter(t, deps)

	rec := do(t, h, call{method: http.MethodPost, path: "/api/accounts", body: `{"ids":["D","A","D"]}`})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"created":["D"]}`, rec.Body.String())

	rec = do(t, h, call{method: http.MethodPost, path: "/api/accounts", body: `{"ids":["A"]}`})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"created":[]}`, rec.Body.String())

	rec = do(t, h, call{method: http.MethodGet, path: "/api/balance/D"})
	assert.JSONEq(t, `{"accountId":"D","balance_mg":0}`, rec.Body.String())

	for _, body := range []string{`{"ids":[]}`, `{"ids":["has space"]}`, `{"ids":"A"}`, `{"ids":["A"],"extra":1}`} {
		rec = do(t, h, call{method: http.MethodPost, path: "/api/accounts", body: body})
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Equal(t, "invalid_params", errorCode(t, rec), body)
	}
}

func TestScopes(t *testing.T) {
	deps := newTestDeps(t)
	h := newTestRouter(t, deps)

	readTok, err := deps.Auth.IssueToken("dashboard", []string{auth.ScopeRead}, time.Minute)
	require.NoError(t, err)
	writeTok, err := deps.Auth.IssueToken("payments", []string{auth.ScopeRead, auth.ScopeWrite}, time.Minute)
	require.NoError(t, err)
	bearer := func(tok string) map[string]string { return map[string]string{"Authorization": "Bearer " + tok} }

	rec := do(t, h, call{method: http.MethodGet, path: "/api/balance/A", header: bearer(readTok)})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, call{method: http.MethodPost, path: "/api/issue", body: `{"to":"A","amount_mg":1}`, header: bearer(readTok)})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "forbidden", errorCode(t, rec))

	rec = do(t, h, call{method: http.MethodPost, path: "/api/issue", body: `{"to":"A","amount_mg":1}`, header: bearer(writeTok)})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, call{method: http.MethodPost, path: "/api/accounts", body: `{"ids":["X"]}`, header: bearer(writeTok)})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, h, call{method: http.MethodGet, path: "/api/balance/A", header: bearer("not-a-token")})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTokenEndpoint(t *testing.T) {
	h := newTestRouter(t, newTestDeps(t))

	req := httptest.NewRequest(http.MethodPost, "/api/token", strings.NewReader("grant_type=client_credentials&subject=ops&scope=ledger:read"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set(auth.APIKeyHeader, testAPIKey)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var tr auth.TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tr))

	rec = do(t, h, call{method: http.MethodGet, path: "/api/accounts", header: map[string]string{"Authorization": "Bearer " + tr.AccessToken}})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestOpenLedgerWithoutSecrets(t *testing.T) {
	deps := newTestDeps(t)
	deps.Auth = nil
	h := newTestRouter(t, deps)

	rec := do(t, h, call{method: http.MethodPost, path: "/api/issue", body: `{"to":"C","amount_mg":3}`, header: map[string]string{}})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuditTrail(t *testing.T) {
	deps := newTestDeps(t)
	chain := audit.NewChainLogger()
	deps.Auditor = chain
	h := newTestRouter(t, deps)

	do(t, h, call{method: http.MethodPost, path: "/api/issue", body: `{"to":"A","amount_mg":10}`, header: map[string]string{
		auth.APIKeyHeader:            testAPIKey,
		security.CorrelationIDHeader: "cid-42",
	}})
	do(t, h, call{method: http.MethodGet, path: "/api/balance/Z"})

	entries := chain.Recent(0)
	require.Len(t, entries, 2)
	require.NoError(t, audit.Verify(entries))

	var ev audit.Event
	require.NoError(t, json.Unmarshal([]byte(entries[0].Payload), &ev))
	assert.Equal(t, "api_key:api-key", ev.Actor)
	assert.Equal(t, "POST /api/issue", ev.Action)
	assert.Equal(t, "200", ev.Outcome)
	assert.Equal(t, "cid-42", ev.CorrelationID)

	require.NoError(t, json.Unmarshal([]byte(entries[1].Payload), &ev))
	assert.Equal(t, "GET /api/balance/{id}", ev.Action)
	assert.Equal(t, "/api/balance/Z", ev.Resource)
	assert.Equal(t, "404", ev.Outcome)
}

func TestRateLimitTrips(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	deps := newTestDeps(t)
	deps.RateLimiter = &security.RedisTokenBucket{Redis: rdb, Prefix: "test", Capacity: 1, RefillRate: 0.0000001}
	h := newTestRouter(t, deps)

	rec := do(t, h, call{method: http.MethodGet, path: "/api/health"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, call{method: http.MethodGet, path: "/api/health"})
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "rate_limited", errorCode(t, rec))
}

func TestBodySizeLimit(t *testing.T) {
	deps := newTestDeps(t)
	deps.MaxBodyBytes = 32
	h := newTestRouter(t, deps)

	rec := do(t, h, call{method: http.MethodPost, path: "/api/issue", body: `{"to":"A","amount_mg":1,"memo":"this memo is far too long"}`})
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "payload_too_large", errorCode(t, rec))
}

func TestIPAllowlist(t *testing.T) {
	deps := newTestDeps(t)
	allow, err := security.ParseCIDRAllowlist([]string{"10.0.0.0/8"})
	require.NoError(t, err)
	deps.IPAllowlist = allow
	h := newTestRouter(t, deps)

	// httptest requests come from 192.0.2.1
	rec := do(t, h, call{method: http.MethodGet, path: "/api/health"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestClientCertificateScopes(t *testing.T) {
	deps := newTestDeps(t)
	h := newTestRouter(t, deps)
	certs := generateMTLSCerts(t)

	ts := httptest.NewUnstartedServer(h)
	ts.TLS = certs.serverTLS
	ts.StartTLS()
	defer ts.Close()

	client := &http.Client{Transport: &http.Transport{TLSClientConfig: certs.clientTLS}}

	resp, err := client.Get(ts.URL + "/api/balance/A")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = client.Post(ts.URL+"/api/issue", "application/json", bytes.NewReader([]byte(`{"to":"A","amount_mg":1}`)))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// without a certificate the shared secret still applies
	anon := &http.Client{Transport: &http.Transport{TLSClientConfig: certs.noClientTLS}}
	resp, err = anon.Get(ts.URL + "/api/balance/A")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

type testCerts struct {
	serverTLS   *tls.Config
	clientTLS   *tls.Config
	noClientTLS *tls.Config
}

func generateMTLSCerts(t *testing.T) *testCerts {
	caKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	caTmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "test-ca"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		IsCA:                  true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		BasicConstraintsValid: true,
	}
	caDER, err := x509.CreateCertificate(rand.Reader, caTmpl, caTmpl, &caKey.PublicKey, caKey)
	require.NoError(t, err)
	caCert, err := x509.ParseCertificate(caDER)
	require.NoError(t, err)

	caPool := x509.NewCertPool()
	caPool.AddCert(caCert)

	serverCert := signCert(t, caCert, caKey, pkix.Name{CommonName: "server"}, []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth}, []net.IP{net.ParseIP("127.0.0.1")})
	clientCert := signCert(t, caCert, caKey, pkix.Name{CommonName: "reporting", OrganizationalUnit: []string{"scope:" + auth.ScopeRead}}, []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth}, nil)

	return &testCerts{
		serverTLS: &tls.Config{
			Certificates: []tls.Certificate{serverCert},
			ClientAuth:   tls.VerifyClientCertIfGiven,
			ClientCAs:    caPool,
			MinVersion:   tls.VersionTLS13,
		},
		clientTLS: &tls.Config{
			Certificates: []tls.Certificate{clientCert},
			RootCAs:      caPool,
			MinVersion:   tls.VersionTLS13,
		},
		noClientTLS: &tls.Config{
			RootCAs:    caPool,
			MinVersion: tls.VersionTLS13,
		},
	}
}

func signCert(t *testing.T, ca *x509.Certificate, caKey *rsa.PrivateKey, subject pkix.Name, eku []x509.ExtKeyUsage, ips []net.IP) tls.Certificate {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(time.Now().UnixNano()),
		Subject:      subject,
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:  eku,
		IPAddresses:  ips,
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, ca, &key.PublicKey, caKey)
	require.NoError(t, err)

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyDER, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER})

	c, err := tls.X509KeyPair(certPEM, keyPEM)
	require.NoError(t, err)
	return c
}
