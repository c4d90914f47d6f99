package handler

import (
	"mime"
	"time"

	"github.com/gin-gonic/gin"
	ledgerapp "github.com/haven/ledger/internal/application/ledger"
	"github.com/haven/ledger/internal/domain/shared"
)

// SourceCSVUpload labels runs started from an uploaded CSV export
const SourceCSVUpload = "csv-upload"

// ReconciliationHandler handles reconciliation endpoints
type ReconciliationHandler struct {
	BaseHandler
	reconciliationService *ledgerapp.ReconciliationService
}

// NewReconciliationHandler creates a new ReconciliationHandler
func NewReconciliationHandler(reconciliationService *ledgerapp.ReconciliationService) *ReconciliationHandler {
	return &ReconciliationHandler{reconciliationService: reconciliationService}
}

// Reconcile godoc
// @Summary      Reconcile ledgers against an accounting export
// @Description  Accepts the export as JSON rows or as a text/csv body. For CSV
// @Description  the as_of and funding_source query parameters apply.
// @Tags         reconciliation
// @Accept       json,text/csv
// @Produce      json
// @Param        request        body  ledgerapp.ReconcileRequest false "Export rows"
// @Param        as_of          query string false "YYYY-MM-DD (CSV only)"
// @Param        funding_source query string false "Funding source code (CSV only)"
// @Success      201 {object} dto.Response{data=ledgerapp.ReconciliationRunResponse}
// @Failure      400 {object} dto.Response
// @Router       /reconciliations [post]
func (h *ReconciliationHandler) Reconcile(c *gin.Context) {
	user, ok := h.recordedBy(c)
	if !ok {
		return
	}

	if mediaType, _, _ := mime.ParseMediaType(c.ContentType()); mediaType == "text/csv" {
		h.reconcileCSV(c, user)
		return
	}

	var req ledgerapp.ReconcileRequest
	if !h.BindJSON(c, &req) {
		return
	}
	req.TriggeredBy = user

	run, err := h.reconciliationService.ReconcileRequestRows(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, run)
}

func (h *ReconciliationHandler) reconcileCSV(c *gin.Context, user string) {
	asOf, ok := h.QueryDate(c, "as_of")
	if !ok {
		return
	}
	export, err := ledgerapp.ParseExportCSV(c.Request.Body)
	if err != nil {
		h.HandleError(c, shared.NewDomainError("INVALID_EXPORT", err.Error()))
		return
	}

	run, err := h.reconciliationService.Reconcile(c.Request.Context(), export, asOf, ledgerapp.ReconcileOptions{
		FundingSourceCode: c.Query("funding_source"),
		TriggeredBy:       user,
		Source:            SourceCSVUpload,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, run)
}

// ListRuns godoc
// @Summary      List reconciliation runs, newest first
// @Tags         reconciliation
// @Produce      json
// @Param        page      query int false "Page" default(1)
// @Param        page_size query int false "Page size" default(20)
// @Success      200 {object} dto.Response{data=[]ledgerapp.ReconciliationRunResponse}
// @Router       /reconciliations [get]
func (h *ReconciliationHandler) ListRuns(c *gin.Context) {
	var filter ledgerapp.ReconciliationRunListFilter
	if !h.BindQuery(c, &filter) {
		return
	}
	filter.Page, filter.PageSize = pageParams(filter.Page, filter.PageSize)

	runs, total, err := h.reconciliationService.ListRuns(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Page(c, runs, total, filter.Page, filter.PageSize)
}

// GetRun returns one stored reconciliation run
// @Tags         reconciliation
// @Router       /reconciliations/{id} [get]
func (h *ReconciliationHandler) GetRun(c *gin.Context) {
	id, ok := h.PathUUID(c, "id")
	if !ok {
		return
	}
	run, err := h.reconciliationService.GetRun(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, run)
}

// DailySummary godoc
// @Summary      Daily reconciliation summary
// @Tags         reconciliation
// @Produce      json
// @Param        date query string false "YYYY-MM-DD, defaults to today"
// @Success      200 {object} dto.Response{data=ledger.DailyReconciliationSummary}
// @Router       /reconciliations/daily [get]
func (h *ReconciliationHandler) DailySummary(c *gin.Context) {
	date, ok := h.QueryDate(c, "date")
	if !ok {
		return
	}
	summary, err := h.reconciliationService.DailySummary(c.Request.Context(), date)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, summary)
}

// FundingSource godoc
// @Summary      Totals of one funding source over a date range
// @Tags         reconciliation
// @Produce      json
// @Param        code path  string true "Funding source code"
// @Param        from query string true "YYYY-MM-DD"
// @Param        to   query string true "YYYY-MM-DD, inclusive"
// @Success      200 {object} dto.Response{data=ledger.FundingSourceReconciliation}
// @Failure      400 {object} dto.Response
// @Router       /reconciliations/funding-sources/{code} [get]
func (h *ReconciliationHandler) FundingSource(c *gin.Context) {
	from, ok := h.QueryDate(c, "from")
	if !ok {
		return
	}
	to, ok := h.QueryDate(c, "to")
	if !ok {
		return
	}
	if !to.IsZero() {
		to = to.Add(24*time.Hour - time.Nanosecond)
	}

	result, err := h.reconciliationService.ReconcileFundingSource(c.Request.Context(), c.Param("code"), from, to)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}
