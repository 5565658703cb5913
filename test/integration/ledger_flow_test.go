package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/grachmannico95/bank-ledger/internal/app"
	"github.com/grachmannico95/bank-ledger/internal/config"
	"github.com/grachmannico95/bank-ledger/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testdata = "../../internal/service/testdata"

func setupTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	cfg := &config.Config{
		Server: config.ServerConfig{
			Port:            "8080",
			Host:            "0.0.0.0",
			ShutdownTimeout: 5 * time.Second,
		},
		Worker:   config.WorkerConfig{PoolSize: 2, MaxRetries: 3},
		EventBus: config.EventBusConfig{ChannelBufferSize: 100},
		Ledger: config.LedgerConfig{
			Store:        "memory",
			HomeCurrency: "USD",
			RateStrategy: "ratio",
			AccountType:  "Debit",
		},
	}

	a, err := app.Open(context.Background(), cfg, logger.NewNop())
	require.NoError(t, err)

	testServer := httptest.NewServer(a.Server().Handler())
	t.Cleanup(func() {
		testServer.Close()
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		assert.NoError(t, a.Close(ctx))
	})

	return testServer
}

func TestHealthCheck(t *testing.T) {
	srv := setupTestServer(t)

	result := getJSON(t, srv.URL+"/health", http.StatusOK)
	assert.Equal(t, "ok", result["status"])
	assert.Equal(t, "memory", result["store"])
	assert.NotEmpty(t, result["timestamp"])
}

func TestImportFlow(t *testing.T) {
	srv := setupTestServer(t)

	result := importFiles(t, srv.URL, "transactions.csv", nil)
	assert.Equal(t, "committed", result["status"])
	assert.Equal(t, "Import successful. New balance: 525.00 USD", result["message"])

	balance := getJSON(t, srv.URL+"/balance", http.StatusOK)
	assert.InDelta(t, 525.0, balance["balance"], 1e-6)
	assert.Equal(t, "USD", balance["currency"])

	balance = getJSON(t, srv.URL+"/balance?date=2023-07-03", http.StatusOK)
	assert.InDelta(t, 500.0, balance["balance"], 1e-6)

	txs := getJSON(t, srv.URL+"/transactions?start=2023-07-02&end=2023-07-03", http.StatusOK)
	assert.Equal(t, float64(2), txs["total"])

	// importing the same batch again adds nothing
	result = importFiles(t, srv.URL, "transactions.csv", nil)
	assert.Equal(t, "committed", result["status"])
	assert.Len(t, result["committed"], 0)
	assert.Len(t, result["skipped"], 5)

	balance = getJSON(t, srv.URL+"/balance", http.StatusOK)
	assert.InDelta(t, 525.0, balance["balance"], 1e-6)
}

func TestImportRollbackFlow(t *testing.T) {
	srv := setupTestServer(t)

	result := importFiles(t, srv.URL, "transactions_debit.csv", nil)
	assert.Equal(t, "rolled_back", result["status"])
	assert.Equal(t, float64(4), result["abort_line"])

	txs := getJSON(t, srv.URL+"/transactions", http.StatusOK)
	assert.Equal(t, float64(0), txs["total"])

	// the same batch fits a Credit account
	result = importFiles(t, srv.URL, "transactions_debit.csv", map[string]string{
		"account_type": "Credit",
		"credit_limit": "100",
	})
	assert.Equal(t, "committed", result["status"])
	assert.InDelta(t, 470.0, result["final_balance"], 1e-6)
}

func TestAccountFlow(t *testing.T) {
	srv := setupTestServer(t)

	account := getJSON(t, srv.URL+"/account", http.StatusOK)
	assert.Equal(t, "Debit", account["account_type"])

	body := strings.NewReader(`{"account_type":"Credit","credit_limit":20000}`)
	req, err := http.NewRequest(http.MethodPut, srv.URL+"/account", body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	result := importFiles(t, srv.URL, "transactions_credit.csv", nil)
	assert.Equal(t, "committed", result["status"])
	assert.InDelta(t, -5000.0, result["final_balance"], 1e-6)

	result = importFiles(t, srv.URL, "transactions_credit_over_limit.csv", nil)
	assert.Equal(t, "rolled_back", result["status"])
	assert.InDelta(t, -5000.0, result["final_balance"], 1e-6)
}

func TestImportAuditFlow(t *testing.T) {
	srv := setupTestServer(t)

	first := importFiles(t, srv.URL, "transactions.csv", nil)
	importFiles(t, srv.URL, "transactions_debit.csv", nil)

	// audit records are written by the event bus workers
	require.Eventually(t, func() bool {
		runs := getJSON(t, srv.URL+"/imports", http.StatusOK)
		return runs["total"] == float64(2)
	}, 2*time.Second, 20*time.Millisecond)

	run := getJSON(t, srv.URL+"/imports/"+first["run_id"].(string), http.StatusOK)
	assert.Equal(t, "committed", run["status"])
	assert.Equal(t, "transactions.csv", run["batch_name"])
	assert.Equal(t, float64(5), run["rows_committed"])

	getJSON(t, srv.URL+"/imports/does-not-exist", http.StatusNotFound)
}

func importFiles(t *testing.T, baseURL, batch string, fields map[string]string) map[string]interface{} {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for field, name := range map[string]string{"file": batch, "rates": "currency_rates.csv"} {
		content, err := os.ReadFile(filepath.Join(testdata, name))
		require.NoError(t, err)
		part, err := writer.CreateFormFile(field, name)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	require.NoError(t, writer.Close())

	resp, err := http.Post(baseURL+"/imports", writer.FormDataContentType(), body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	return result
}

func getJSON(t *testing.T, url string, wantStatus int) map[string]interface{} {
	t.Helper()

	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, wantStatus, resp.StatusCode)

	var result map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	return result
}
