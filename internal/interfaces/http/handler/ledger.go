package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	ledgerapp "github.com/haven/ledger/internal/application/ledger"
)

// LedgerHandler handles ledger API endpoints
type LedgerHandler struct {
	BaseHandler
	ledgerService *ledgerapp.LedgerService
}

// NewLedgerHandler creates a new LedgerHandler
func NewLedgerHandler(ledgerService *ledgerapp.LedgerService) *LedgerHandler {
	return &LedgerHandler{ledgerService: ledgerService}
}

// CreateLedger godoc
// @Summary      Open a ledger for a client
// @Tags         ledgers
// @Accept       json
// @Produce      json
// @Param        request body ledgerapp.CreateLedgerRequest true "Ledger"
// @Success      201 {object} dto.Response{data=ledgerapp.LedgerResponse}
// @Failure      400 {object} dto.Response
// @Failure      409 {object} dto.Response
// @Router       /ledgers [post]
func (h *LedgerHandler) CreateLedger(c *gin.Context) {
	user, ok := h.recordedBy(c)
	if !ok {
		return
	}
	var req ledgerapp.CreateLedgerRequest
	if !h.BindJSON(c, &req) {
		return
	}
	req.CreatedBy = user

	resp, err := h.ledgerService.CreateLedger(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// GetOrCreateActiveLedger returns the client's active ledger, opening one if
// none exists
// @Summary      Get or open the active ledger
// @Tags         ledgers
// @Router       /ledgers/active [post]
func (h *LedgerHandler) GetOrCreateActiveLedger(c *gin.Context) {
	user, ok := h.recordedBy(c)
	if !ok {
		return
	}
	var req ledgerapp.CreateLedgerRequest
	if !h.BindJSON(c, &req) {
		return
	}
	req.CreatedBy = user

	resp, err := h.ledgerService.GetOrCreateActiveLedger(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// GetLedger godoc
// @Summary      Get a ledger
// @Tags         ledgers
// @Produce      json
// @Param        id path string true "Ledger ID" format(uuid)
// @Success      200 {object} dto.Response{data=ledgerapp.LedgerResponse}
// @Failure      404 {object} dto.Response
// @Router       /ledgers/{id} [get]
func (h *LedgerHandler) GetLedger(c *gin.Context) {
	id, ok := h.PathUUID(c, "id")
	if !ok {
		return
	}
	resp, err := h.ledgerService.GetLedger(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// ListLedgers godoc
// @Summary      List ledgers
// @Tags         ledgers
// @Produce      json
// @Param        client_id      query string false "Client ID" format(uuid)
// @Param        household_id   query string false "Household ID" format(uuid)
// @Param        enrollment_id  query string false "Enrollment ID" format(uuid)
// @Param        funding_source query string false "Funding source code"
// @Param        status         query string false "Ledger status"
// @Param        page           query int    false "Page" default(1)
// @Param        page_size      query int    false "Page size" default(20)
// @Success      200 {object} dto.Response{data=[]ledgerapp.LedgerResponse}
// @Router       /ledgers [get]
func (h *LedgerHandler) ListLedgers(c *gin.Context) {
	var filter ledgerapp.LedgerListFilter
	if !h.BindQuery(c, &filter) {
		return
	}
	var ok bool
	if filter.ClientID, ok = h.QueryUUID(c, "client_id"); !ok {
		return
	}
	if filter.HouseholdID, ok = h.QueryUUID(c, "household_id"); !ok {
		return
	}
	if filter.EnrollmentID, ok = h.QueryUUID(c, "enrollment_id"); !ok {
		return
	}
	filter.Page, filter.PageSize = pageParams(filter.Page, filter.PageSize)

	ledgers, total, err := h.ledgerService.ListLedgers(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Page(c, ledgers, total, filter.Page, filter.PageSize)
}

// GetClientLedgers lists every ledger of a client
// @Tags         ledgers
// @Router       /clients/{clientId}/ledgers [get]
func (h *LedgerHandler) GetClientLedgers(c *gin.Context) {
	clientID, ok := h.PathUUID(c, "clientId")
	if !ok {
		return
	}
	ledgers, err := h.ledgerService.GetClientLedgers(c.Request.Context(), clientID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, ledgers)
}

// GetActiveClientLedger returns the client's most recent active ledger
// @Tags         ledgers
// @Router       /clients/{clientId}/ledgers/active [get]
func (h *LedgerHandler) GetActiveClientLedger(c *gin.Context) {
	clientID, ok := h.PathUUID(c, "clientId")
	if !ok {
		return
	}
	resp, err := h.ledgerService.GetActiveClientLedger(c.Request.Context(), clientID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// ListEntries godoc
// @Summary      List ledger entries in recording order
// @Tags         ledgers
// @Produce      json
// @Param        id        path  string true  "Ledger ID" format(uuid)
// @Param        type      query string false "DEBIT or CREDIT"
// @Param        account   query string false "Account classification or code"
// @Param        from_date query string false "RFC3339 lower bound"
// @Param        to_date   query string false "RFC3339 upper bound"
// @Success      200 {object} dto.Response{data=[]ledgerapp.EntryResponse}
// @Router       /ledgers/{id}/entries [get]
func (h *LedgerHandler) ListEntries(c *gin.Context) {
	id, ok := h.PathUUID(c, "id")
	if !ok {
		return
	}
	var filter ledgerapp.EntryListFilter
	if !h.BindQuery(c, &filter) {
		return
	}
	filter.Page, filter.PageSize = pageParams(filter.Page, filter.PageSize)

	entries, total, err := h.ledgerService.ListEntries(c.Request.Context(), id, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Page(c, entries, total, filter.Page, filter.PageSize)
}

// GetLandlordView godoc
// @Summary      Get the redacted landlord view of a ledger
// @Tags         ledgers
// @Produce      json
// @Param        id          path  string true "Ledger ID" format(uuid)
// @Param        landlord_id query string true "Landlord ID"
// @Success      200 {object} dto.Response{data=ledgerapp.LandlordViewResponse}
// @Router       /ledgers/{id}/landlord-view [get]
func (h *LedgerHandler) GetLandlordView(c *gin.Context) {
	id, ok := h.PathUUID(c, "id")
	if !ok {
		return
	}
	view, err := h.ledgerService.GetLandlordView(c.Request.Context(), id, c.Query("landlord_id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, view)
}

// RecordPayment godoc
// @Summary      Record an assistance payment
// @Tags         transactions
// @Accept       json
// @Produce      json
// @Param        id      path string true "Ledger ID" format(uuid)
// @Param        request body ledgerapp.RecordPaymentRequest true "Payment"
// @Success      201 {object} dto.Response{data=ledgerapp.TransactionResponse}
// @Failure      409 {object} dto.Response
// @Failure      422 {object} dto.Response
// @Router       /ledgers/{id}/payments [post]
func (h *LedgerHandler) RecordPayment(c *gin.Context) {
	id, user, ok := h.writeTarget(c)
	if !ok {
		return
	}
	var req ledgerapp.RecordPaymentRequest
	if !h.BindJSON(c, &req) {
		return
	}
	req.RecordedBy = user

	resp, err := h.ledgerService.RecordPaymentTransaction(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// RecordDeposit records incoming program funds
// @Tags         transactions
// @Router       /ledgers/{id}/deposits [post]
func (h *LedgerHandler) RecordDeposit(c *gin.Context) {
	id, user, ok := h.writeTarget(c)
	if !ok {
		return
	}
	var req ledgerapp.RecordDepositRequest
	if !h.BindJSON(c, &req) {
		return
	}
	req.RecordedBy = user

	resp, err := h.ledgerService.RecordFundingDeposit(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// RecordArrears records an arrears obligation
// @Tags         transactions
// @Router       /ledgers/{id}/arrears [post]
func (h *LedgerHandler) RecordArrears(c *gin.Context) {
	id, user, ok := h.writeTarget(c)
	if !ok {
		return
	}
	var req ledgerapp.RecordArrearsRequest
	if !h.BindJSON(c, &req) {
		return
	}
	req.RecordedBy = user

	resp, err := h.ledgerService.RecordArrears(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// RecordCommunication records contact with a landlord
// @Tags         provenance
// @Router       /ledgers/{id}/communications [post]
func (h *LedgerHandler) RecordCommunication(c *gin.Context) {
	id, user, ok := h.writeTarget(c)
	if !ok {
		return
	}
	var req ledgerapp.RecordCommunicationRequest
	if !h.BindJSON(c, &req) {
		return
	}
	req.RecordedBy = user

	resp, err := h.ledgerService.RecordLandlordCommunication(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// AttachDocument attaches a supporting document. Content is base64 in JSON.
// @Tags         provenance
// @Router       /ledgers/{id}/documents [post]
func (h *LedgerHandler) AttachDocument(c *gin.Context) {
	id, user, ok := h.writeTarget(c)
	if !ok {
		return
	}
	var req ledgerapp.AttachDocumentRequest
	if !h.BindJSON(c, &req) {
		return
	}
	req.UploadedBy = user

	resp, err := h.ledgerService.AttachDocument(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// DocumentLink returns a short-lived download URL for stored document content
// @Tags         provenance
// @Router       /ledgers/{id}/documents/{documentId}/link [get]
func (h *LedgerHandler) DocumentLink(c *gin.Context) {
	id, ok := h.PathUUID(c, "id")
	if !ok {
		return
	}
	documentID, ok := h.PathUUID(c, "documentId")
	if !ok {
		return
	}
	link, err := h.ledgerService.DocumentDownloadLink(c.Request.Context(), id, documentID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, link)
}

// CloseLedger godoc
// @Summary      Close a ledger
// @Tags         lifecycle
// @Accept       json
// @Produce      json
// @Param        id      path string true "Ledger ID" format(uuid)
// @Param        request body ledgerapp.StatusChangeRequest false "Reason"
// @Success      200 {object} dto.Response{data=ledgerapp.LedgerResponse}
// @Failure      422 {object} dto.Response
// @Router       /ledgers/{id}/close [post]
func (h *LedgerHandler) CloseLedger(c *gin.Context) {
	h.changeStatus(c, h.ledgerService.CloseLedger)
}

// SuspendLedger suspends a ledger
// @Tags         lifecycle
// @Router       /ledgers/{id}/suspend [post]
func (h *LedgerHandler) SuspendLedger(c *gin.Context) {
	h.changeStatus(c, h.ledgerService.SuspendLedger)
}

// PlaceUnderReview places a ledger under review
// @Tags         lifecycle
// @Router       /ledgers/{id}/review [post]
func (h *LedgerHandler) PlaceUnderReview(c *gin.Context) {
	h.changeStatus(c, h.ledgerService.PlaceUnderReview)
}

// ReactivateLedger returns a suspended or reviewed ledger to active
// @Tags         lifecycle
// @Router       /ledgers/{id}/reactivate [post]
func (h *LedgerHandler) ReactivateLedger(c *gin.Context) {
	h.changeStatus(c, h.ledgerService.ReactivateLedger)
}

type statusChange func(ctx context.Context, id uuid.UUID, req ledgerapp.StatusChangeRequest) (*ledgerapp.LedgerResponse, error)

func (h *LedgerHandler) changeStatus(c *gin.Context, fn statusChange) {
	id, user, ok := h.writeTarget(c)
	if !ok {
		return
	}
	var req ledgerapp.StatusChangeRequest
	// The body is optional
	if c.Request.ContentLength != 0 && !h.BindJSON(c, &req) {
		return
	}
	req.Actor = user

	resp, err := fn(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// DeleteLedger godoc
// @Summary      Delete a ledger
// @Tags         ledgers
// @Param        id path string true "Ledger ID" format(uuid)
// @Success      204
// @Failure      404 {object} dto.Response
// @Failure      422 {object} dto.Response
// @Router       /ledgers/{id} [delete]
func (h *LedgerHandler) DeleteLedger(c *gin.Context) {
	id, _, ok := h.writeTarget(c)
	if !ok {
		return
	}
	if err := h.ledgerService.DeleteLedger(c.Request.Context(), id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// FindUnbalanced lists ledgers whose debits and credits disagree
// @Tags         audit
// @Router       /ledgers/audit/unbalanced [get]
func (h *LedgerHandler) FindUnbalanced(c *gin.Context) {
	h.audit(c, h.ledgerService.FindUnbalancedLedgers)
}

// FindOverdueArrears lists ledgers with arrears older than the alert threshold
// @Tags         audit
// @Router       /ledgers/audit/overdue-arrears [get]
func (h *LedgerHandler) FindOverdueArrears(c *gin.Context) {
	h.audit(c, h.ledgerService.FindLedgersWithOverdueArrears)
}

// FindUnmatchedDeposits lists ledgers holding deposits no payment has drawn on
// @Tags         audit
// @Router       /ledgers/audit/unmatched-deposits [get]
func (h *LedgerHandler) FindUnmatchedDeposits(c *gin.Context) {
	h.audit(c, h.ledgerService.FindLedgersWithUnmatchedDeposits)
}

func (h *LedgerHandler) audit(c *gin.Context, fn func(ctx context.Context) ([]ledgerapp.LedgerResponse, error)) {
	ledgers, err := fn(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, ledgers)
}

// writeTarget resolves the ledger ID and the recording identity of a write
func (h *LedgerHandler) writeTarget(c *gin.Context) (uuid.UUID, string, bool) {
	id, ok := h.PathUUID(c, "id")
	if !ok {
		return uuid.Nil, "", false
	}
	user, ok := h.recordedBy(c)
	if !ok {
		return uuid.Nil, "", false
	}
	return id, user, true
}
