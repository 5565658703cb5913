package handler

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/grachmannico95/bank-ledger/internal/domain"
	"github.com/grachmannico95/bank-ledger/internal/ledger"
	"github.com/grachmannico95/bank-ledger/internal/service"
	"github.com/grachmannico95/bank-ledger/internal/storage"
	"github.com/grachmannico95/bank-ledger/pkg/logger"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rateCSV = "currency,rate,base_currency,date\nUSD,1.0,USD,2023-07-01\nEUR,0.9,USD,2023-07-01\n"

func newHandler() (*LedgerHandler, *echo.Echo) {
	log := logger.NewNop()
	store := storage.NewMemoryStore()
	l := ledger.New(store, log)
	h := NewLedgerHandler(
		service.NewImportService(l, nil, log),
		service.NewLedgerService(store, l, domain.DefaultAccountConfig(), log),
		log,
	)
	return h, echo.New()
}

func multipartBody(t *testing.T, files map[string]string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for name, content := range files {
		part, err := writer.CreateFormFile(name, name+".csv")
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	for name, value := range fields {
		require.NoError(t, writer.WriteField(name, value))
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestLedgerHandler_Import(t *testing.T) {
	h, e := newHandler()

	body, contentType := multipartBody(t, map[string]string{
		"file":  "transaction_reference,date,description,amount,currency\nAAAAAAAAAAAAAAA1,2023-07-01,Invoice,90,EUR\n",
		"rates": rateCSV,
	}, nil)
	req := httptest.NewRequest(http.MethodPost, "/imports", body)
	req.Header.Set(echo.HeaderContentType, contentType)
	rec := httptest.NewRecorder()

	require.NoError(t, h.Import(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusOK, rec.Code)

	out := decode(t, rec)
	assert.Equal(t, "committed", out["status"])
	assert.InDelta(t, 100.0, out["final_balance"], 1e-9)
	assert.Equal(t, "Import successful. New balance: 100.00 USD", out["message"])
}

func TestLedgerHandler_ImportCreditOverride(t *testing.T) {
	h, e := newHandler()

	body, contentType := multipartBody(t, map[string]string{
		"file":  "h\nAAAAAAAAAAAAAAA1,2023-07-01,Loan,-500,USD\n",
		"rates": rateCSV,
	}, map[string]string{"account_type": "credit", "credit_limit": "1000"})
	req := httptest.NewRequest(http.MethodPost, "/imports", body)
	req.Header.Set(echo.HeaderContentType, contentType)
	rec := httptest.NewRecorder()

	require.NoError(t, h.Import(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "committed", decode(t, rec)["status"])
}

func TestLedgerHandler_ImportRolledBack(t *testing.T) {
	h, e := newHandler()

	body, contentType := multipartBody(t, map[string]string{
		"file":  "h\nAAAAAAAAAAAAAAA1,2023-07-01,Overdraw,-90,EUR\n",
		"rates": rateCSV,
	}, nil)
	req := httptest.NewRequest(http.MethodPost, "/imports", body)
	req.Header.Set(echo.HeaderContentType, contentType)
	rec := httptest.NewRecorder()

	require.NoError(t, h.Import(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusOK, rec.Code)

	out := decode(t, rec)
	assert.Equal(t, "rolled_back", out["status"])
	assert.Equal(t, 2.0, out["abort_line"])
}

func TestLedgerHandler_ImportValidation(t *testing.T) {
	h, e := newHandler()

	tests := []struct {
		name   string
		files  map[string]string
		fields map[string]string
	}{
		{"missing file", map[string]string{"rates": rateCSV}, nil},
		{"missing rates", map[string]string{"file": "h\n"}, nil},
		{"bad account type", map[string]string{"file": "h\n", "rates": rateCSV}, map[string]string{"account_type": "savings"}},
		{"bad credit limit", map[string]string{"file": "h\n", "rates": rateCSV}, map[string]string{"credit_limit": "lots"}},
		{"negative credit limit", map[string]string{"file": "h\n", "rates": rateCSV}, map[string]string{"account_type": "Credit", "credit_limit": "-1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, contentType := multipartBody(t, tt.files, tt.fields)
			req := httptest.NewRequest(http.MethodPost, "/imports", body)
			req.Header.Set(echo.HeaderContentType, contentType)
			rec := httptest.NewRecorder()

			require.NoError(t, h.Import(e.NewContext(req, rec)))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestLedgerHandler_GetBalance(t *testing.T) {
	h, e := newHandler()

	req := httptest.NewRequest(http.MethodGet, "/balance?date=2023-07-01", nil)
	rec := httptest.NewRecorder()
	require.NoError(t, h.GetBalance(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusOK, rec.Code)

	out := decode(t, rec)
	assert.Equal(t, 0.0, out["balance"])
	assert.Equal(t, "USD", out["currency"])
	assert.Equal(t, "2023-07-01", out["as_of"])

	req = httptest.NewRequest(http.MethodGet, "/balance?date=July", nil)
	rec = httptest.NewRecorder()
	require.NoError(t, h.GetBalance(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLedgerHandler_GetTransactionsBadRange(t *testing.T) {
	h, e := newHandler()

	req := httptest.NewRequest(http.MethodGet, "/transactions?start=2023-07-01&end=nope", nil)
	rec := httptest.NewRecorder()
	require.NoError(t, h.GetTransactions(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLedgerHandler_Account(t *testing.T) {
	h, e := newHandler()

	req := httptest.NewRequest(http.MethodPut, "/account", strings.NewReader(`{"account_type":"Credit","credit_limit":20000}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	require.NoError(t, h.PutAccount(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/account", nil)
	rec = httptest.NewRecorder()
	require.NoError(t, h.GetAccount(e.NewContext(req, rec)))

	out := decode(t, rec)
	assert.Equal(t, "Credit", out["account_type"])
	assert.Equal(t, 20000.0, out["credit_limit"])
	assert.Equal(t, "USD", out["home_currency"])

	req = httptest.NewRequest(http.MethodPut, "/account", strings.NewReader(`{"account_type":"Savings"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec = httptest.NewRecorder()
	require.NoError(t, h.PutAccount(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLedgerHandler_GetImportNotFound(t *testing.T) {
	h, e := newHandler()

	req := httptest.NewRequest(http.MethodGet, "/imports/missing", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("missing")

	require.NoError(t, h.GetImport(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLedgerHandler_PutAccountCurrencyConflict(t *testing.T) {
	h, e := newHandler()

	body, contentType := multipartBody(t, map[string]string{
		"file":  "transaction_reference,date,description,amount,currency\nAAAAAAAAAAAAAAA1,2023-07-01,Deposit,100,USD\n",
		"rates": rateCSV,
	}, nil)
	req := httptest.NewRequest(http.MethodPost, "/imports", body)
	req.Header.Set(echo.HeaderContentType, contentType)
	rec := httptest.NewRecorder()
	require.NoError(t, h.Import(e.NewContext(req, rec)))
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodPut, "/account", strings.NewReader(`{"account_type":"Debit","home_currency":"EUR"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec = httptest.NewRecorder()
	require.NoError(t, h.PutAccount(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusConflict, rec.Code)
}
