package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/grachmannico95/bank-ledger/internal/domain"
	"github.com/grachmannico95/bank-ledger/internal/report"
	"github.com/grachmannico95/bank-ledger/internal/service"
	"github.com/grachmannico95/bank-ledger/pkg/logger"
	"github.com/labstack/echo/v4"
)

type LedgerHandler struct {
	imports service.ImportService
	ledger  service.LedgerService
	logger  *logger.Logger
}

func NewLedgerHandler(imports service.ImportService, ledger service.LedgerService, log *logger.Logger) *LedgerHandler {
	return &LedgerHandler{
		imports: imports,
		ledger:  ledger,
		logger:  log,
	}
}

// Import runs a batch upload. A rolled back batch is still a 200: the
// outcome is in the body.
func (h *LedgerHandler) Import(c echo.Context) error {
	ctx := c.Request().Context()

	h.logger.Info(ctx, "Handling import request")

	batchFile, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "file is required",
		})
	}
	ratesFile, err := c.FormFile("rates")
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "rates is required",
		})
	}

	account, err := h.ledger.Account(ctx)
	if err != nil {
		return h.internalError(c, "failed to read account", err)
	}
	if accountType := c.FormValue("account_type"); accountType != "" {
		account.Type, err = domain.ParseAccountType(accountType)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{
				"error": err.Error(),
			})
		}
	}
	if limit := c.FormValue("credit_limit"); limit != "" {
		account.CreditLimit, err = strconv.ParseFloat(limit, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{
				"error": "credit_limit must be a number",
			})
		}
	}

	batch, err := batchFile.Open()
	if err != nil {
		return h.internalError(c, "failed to open file", err)
	}
	defer batch.Close()

	rateSrc, err := ratesFile.Open()
	if err != nil {
		return h.internalError(c, "failed to open rates", err)
	}
	defer rateSrc.Close()

	result, err := h.imports.Import(ctx, service.ImportRequest{
		Batch:     batch,
		Rates:     rateSrc,
		BatchName: batchFile.Filename,
		RatesName: ratesFile.Filename,
		Account:   account,
	})
	if err != nil {
		if isConfigError(err) {
			return c.JSON(http.StatusBadRequest, map[string]string{
				"error": err.Error(),
			})
		}
		return h.internalError(c, "import failed", err)
	}

	h.logger.Info(ctx, "Import finished",
		"run_id", result.RunID,
		"status", result.Status,
	)

	return c.JSON(http.StatusOK, map[string]interface{}{
		"run_id":          result.RunID,
		"status":          result.Status,
		"message":         report.ImportMessage(result),
		"initial_balance": result.InitialBalance,
		"final_balance":   result.FinalBalance,
		"rows_read":       result.RowsRead,
		"committed":       result.Committed,
		"transactions":    result.Transactions,
		"skipped":         issues(result.Skipped),
		"abort_line":      result.AbortLine,
		"abort_reason":    result.AbortReason,
	})
}

func (h *LedgerHandler) GetBalance(c echo.Context) error {
	ctx := c.Request().Context()

	asOf, err := optionalDate(c.QueryParam("date"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "date must be YYYY-MM-DD",
		})
	}

	balance, err := h.ledger.Balance(ctx, asOf)
	if err != nil {
		return h.internalError(c, "failed to get balance", err)
	}

	account, err := h.ledger.Account(ctx)
	if err != nil {
		return h.internalError(c, "failed to read account", err)
	}

	body := map[string]interface{}{
		"balance":  balance,
		"currency": account.HomeCurrency,
	}
	if asOf != nil {
		body["as_of"] = asOf
	}
	return c.JSON(http.StatusOK, body)
}

func (h *LedgerHandler) GetTransactions(c echo.Context) error {
	ctx := c.Request().Context()

	start, err := optionalDate(c.QueryParam("start"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "start must be YYYY-MM-DD",
		})
	}
	end, err := optionalDate(c.QueryParam("end"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "end must be YYYY-MM-DD",
		})
	}

	txs, err := h.ledger.Transactions(ctx, start, end)
	if err != nil {
		return h.internalError(c, "failed to list transactions", err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"items": txs,
		"total": len(txs),
	})
}

func (h *LedgerHandler) GetAccount(c echo.Context) error {
	account, err := h.ledger.Account(c.Request().Context())
	if err != nil {
		return h.internalError(c, "failed to read account", err)
	}
	return c.JSON(http.StatusOK, account)
}

type accountRequest struct {
	AccountType  string  `json:"account_type"`
	CreditLimit  float64 `json:"credit_limit"`
	HomeCurrency string  `json:"home_currency"`
}

func (h *LedgerHandler) PutAccount(c echo.Context) error {
	ctx := c.Request().Context()

	var req accountRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "invalid request body",
		})
	}

	accountType, err := domain.ParseAccountType(req.AccountType)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
	}

	cfg := domain.AccountConfig{
		Type:         accountType,
		CreditLimit:  req.CreditLimit,
		HomeCurrency: req.HomeCurrency,
	}
	if err := h.ledger.SetAccount(ctx, cfg); err != nil {
		if errors.Is(err, domain.ErrHomeCurrencyInUse) {
			return c.JSON(http.StatusConflict, map[string]string{
				"error": err.Error(),
			})
		}
		if isConfigError(err) {
			return c.JSON(http.StatusBadRequest, map[string]string{
				"error": err.Error(),
			})
		}
		return h.internalError(c, "failed to save account", err)
	}

	saved, err := h.ledger.Account(ctx)
	if err != nil {
		return h.internalError(c, "failed to read account", err)
	}
	return c.JSON(http.StatusOK, saved)
}

func (h *LedgerHandler) GetImports(c echo.Context) error {
	runs, err := h.ledger.ImportRuns(c.Request().Context())
	if err != nil {
		return h.internalError(c, "failed to list imports", err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"items": runs,
		"total": len(runs),
	})
}

func (h *LedgerHandler) GetImport(c echo.Context) error {
	run, err := h.ledger.ImportRun(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, domain.ErrImportRunNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{
				"error": "import not found",
			})
		}
		return h.internalError(c, "failed to get import", err)
	}
	return c.JSON(http.StatusOK, run)
}

func (h *LedgerHandler) internalError(c echo.Context, msg string, err error) error {
	h.logger.Error(c.Request().Context(), msg,
		"error", err,
	)
	return c.JSON(http.StatusInternalServerError, map[string]string{
		"error": msg,
	})
}

func optionalDate(s string) (*domain.Date, error) {
	if s == "" {
		return nil, nil
	}
	d, err := domain.ParseDate(s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func isConfigError(err error) bool {
	return errors.Is(err, domain.ErrUnknownAccountType) ||
		errors.Is(err, domain.ErrInvalidCreditLimit) ||
		errors.Is(err, domain.ErrInvalidCurrency)
}

type issueResponse struct {
	Line      int    `json:"line"`
	Reference string `json:"transaction_reference,omitempty"`
	Reason    string `json:"reason"`
}

func issues(skipped []service.RowIssue) []issueResponse {
	out := make([]issueResponse, 0, len(skipped))
	for _, issue := range skipped {
		out = append(out, issueResponse{Line: issue.Line, Reference: issue.Reference, Reason: issue.Err.Error()})
	}
	return out
}
