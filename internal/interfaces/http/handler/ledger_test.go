package handler

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	ledgerapp "github.com/haven/ledger/internal/application/ledger"
	"github.com/haven/ledger/internal/interfaces/http/dto"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rentPayment(id, amount string) gin.H {
	return gin.H{
		"payment_id":          id,
		"subtype":             "RENT_CURRENT",
		"amount":              amount,
		"funding_source_code": "ESG",
		"payee_id":            "landlord-1",
		"payee_name":          "Oak Street Apartments",
	}
}

func TestLedgerHandler_CreateLedger(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name         string
		user         string
		body         any
		expectedCode int
		expectedErr  string
	}{
		{
			name:         "valid",
			user:         testUser,
			body:         gin.H{"client_id": uuid.NewString(), "name": "Rapid Rehousing"},
			expectedCode: http.StatusCreated,
		},
		{
			name:         "missing client",
			user:         testUser,
			body:         gin.H{"name": "Rapid Rehousing"},
			expectedCode: http.StatusBadRequest,
			expectedErr:  dto.ErrCodeValidation,
		},
		{
			name:         "malformed body",
			user:         testUser,
			body:         `{"client_id":`,
			expectedCode: http.StatusBadRequest,
			expectedErr:  dto.ErrCodeValidation,
		},
		{
			name:         "anonymous",
			body:         gin.H{"client_id": uuid.NewString()},
			expectedCode: http.StatusUnauthorized,
			expectedErr:  dto.ErrCodeUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(http.MethodPost, "/api/v1/ledgers", tt.user, tt.body)
			assert.Equal(t, tt.expectedCode, w.Code, w.Body.String())
			if tt.expectedErr != "" {
				assert.Equal(t, tt.expectedErr, errorCode(t, w))
				return
			}
			resp := decode[ledgerapp.LedgerResponse](t, w)
			assert.Equal(t, "ACTIVE", resp.Data.Status)
			assert.Equal(t, testUser, resp.Data.CreatedBy)
			assert.True(t, resp.Data.IsBalanced)
		})
	}

	t.Run("second active ledger conflicts", func(t *testing.T) {
		clientID := uuid.NewString()
		env.createLedger(t, gin.H{"client_id": clientID})
		w := env.do(http.MethodPost, "/api/v1/ledgers", testUser, gin.H{"client_id": clientID})
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "ACTIVE_LEDGER_EXISTS", errorCode(t, w))
	})
}

func TestLedgerHandler_GetOrCreateActiveLedger(t *testing.T) {
	env := newTestEnv(t)
	body := gin.H{"client_id": uuid.NewString()}

	first := env.do(http.MethodPost, "/api/v1/ledgers/active", testUser, body)
	require.Equal(t, http.StatusOK, first.Code, first.Body.String())
	second := env.do(http.MethodPost, "/api/v1/ledgers/active", testUser, body)
	require.Equal(t, http.StatusOK, second.Code)

	assert.Equal(t, decode[ledgerapp.LedgerResponse](t, first).Data.ID, decode[ledgerapp.LedgerResponse](t, second).Data.ID)
}

func TestLedgerHandler_GetLedger(t *testing.T) {
	env := newTestEnv(t)
	created := env.createLedger(t, gin.H{"client_id": uuid.NewString()})

	tests := []struct {
		name         string
		id           string
		expectedCode int
		expectedErr  string
	}{
		{"found", created.ID.String(), http.StatusOK, ""},
		{"malformed id", "ledger-1", http.StatusBadRequest, dto.ErrCodeInvalidID},
		{"unknown", uuid.NewString(), http.StatusNotFound, "LEDGER_NOT_FOUND"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(http.MethodGet, "/api/v1/ledgers/"+tt.id, "", nil)
			assert.Equal(t, tt.expectedCode, w.Code)
			if tt.expectedErr != "" {
				assert.Equal(t, tt.expectedErr, errorCode(t, w))
			}
		})
	}
}

func TestLedgerHandler_RecordTransactions(t *testing.T) {
	env := newTestEnv(t)
	created := env.createLedger(t, gin.H{"client_id": uuid.NewString()})
	base := "/api/v1/ledgers/" + created.ID.String()

	t.Run("payment posts a balanced pair", func(t *testing.T) {
		w := env.do(http.MethodPost, base+"/payments", testUser, rentPayment("pay-1", "950.00"))
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		resp := decode[ledgerapp.TransactionResponse](t, w)
		assert.Equal(t, "pay-1", resp.Data.TransactionID)
		require.Len(t, resp.Data.Entries, 2)
		assert.True(t, resp.Data.TotalDebits.Equal(resp.Data.TotalCredits))
		for _, e := range resp.Data.Entries {
			assert.Equal(t, testUser, e.RecordedBy)
			assert.True(t, e.Amount.Equal(decimal.RequireFromString("950")))
		}
	})

	t.Run("duplicate payment id", func(t *testing.T) {
		w := env.do(http.MethodPost, base+"/payments", testUser, rentPayment("pay-1", "950.00"))
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "DUPLICATE_TRANSACTION", errorCode(t, w))
	})

	t.Run("amount must be positive", func(t *testing.T) {
		for _, amount := range []string{"-5", "0"} {
			w := env.do(http.MethodPost, base+"/payments", testUser, rentPayment("pay-neg", amount))
			assert.Equal(t, http.StatusBadRequest, w.Code, amount)
			assert.Equal(t, dto.ErrCodeValidation, errorCode(t, w))
		}
	})

	t.Run("unknown subtype", func(t *testing.T) {
		body := rentPayment("pay-2", "10")
		body["subtype"] = "GROCERIES"
		w := env.do(http.MethodPost, base+"/payments", testUser, body)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "INVALID_PAYMENT_SUBTYPE", errorCode(t, w))
	})

	t.Run("deposit", func(t *testing.T) {
		w := env.do(http.MethodPost, base+"/deposits", testUser, gin.H{
			"deposit_id": "dep-1", "amount": "2000", "funding_source_code": "ESG",
		})
		assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	})

	t.Run("arrears", func(t *testing.T) {
		w := env.do(http.MethodPost, base+"/arrears", testUser, gin.H{
			"arrears_id":   "arr-1",
			"amount":       "400",
			"arrears_type": "RENT",
			"period_start": "2024-04-01T00:00:00Z",
			"period_end":   "2024-04-30T00:00:00Z",
		})
		assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	})

	t.Run("anonymous writes are rejected", func(t *testing.T) {
		w := env.do(http.MethodPost, base+"/payments", "", rentPayment("pay-3", "10"))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("entries are listed in recording order", func(t *testing.T) {
		w := env.do(http.MethodGet, base+"/entries?page_size=2", "", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		resp := decode[[]ledgerapp.EntryResponse](t, w)
		require.Len(t, resp.Data, 2)
		assert.Equal(t, int64(6), resp.Meta.Total)
		assert.Less(t, resp.Data[0].Sequence, resp.Data[1].Sequence)

		w = env.do(http.MethodGet, base+"/entries?transaction_id=dep-1", "", nil)
		assert.Len(t, decode[[]ledgerapp.EntryResponse](t, w).Data, 2)
	})
}

func TestLedgerHandler_Provenance(t *testing.T) {
	env := newTestEnv(t)
	created := env.createLedger(t, gin.H{"client_id": uuid.NewString()})
	base := "/api/v1/ledgers/" + created.ID.String()

	w := env.do(http.MethodPost, base+"/communications", testUser, gin.H{
		"landlord_id": "landlord-1",
		"type":        "EMAIL",
		"subject":     "May rent",
		"content":     "Payment sent",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, testUser, decode[ledgerapp.CommunicationResponse](t, w).Data.RecordedBy)

	w = env.do(http.MethodPost, base+"/documents", testUser, gin.H{"name": "lease.pdf", "content": []byte("%PDF")})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	doc := decode[ledgerapp.DocumentResponse](t, w).Data
	assert.False(t, doc.ContentStored)

	t.Run("no link without stored content", func(t *testing.T) {
		w := env.do(http.MethodGet, base+"/documents/"+doc.ID.String()+"/link", "", nil)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, "DOCUMENT_CONTENT_UNAVAILABLE", errorCode(t, w))
	})

	t.Run("unknown document", func(t *testing.T) {
		w := env.do(http.MethodGet, base+"/documents/"+uuid.NewString()+"/link", "", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("landlord view requires a landlord", func(t *testing.T) {
		w := env.do(http.MethodGet, base+"/landlord-view", "", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "INVALID_LANDLORD", errorCode(t, w))

		w = env.do(http.MethodGet, base+"/landlord-view?landlord_id=landlord-1", "", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, created.ID, decode[ledgerapp.LandlordViewResponse](t, w).Data.LedgerID)
	})
}

func TestLedgerHandler_Lifecycle(t *testing.T) {
	env := newTestEnv(t)
	created := env.createLedger(t, gin.H{"client_id": uuid.NewString()})
	base := "/api/v1/ledgers/" + created.ID.String()

	steps := []struct {
		name         string
		path         string
		body         any
		expectedCode int
		expectedStat string
		expectedErr  string
	}{
		{"suspend without body", "/suspend", nil, http.StatusOK, "SUSPENDED", ""},
		{"payments blocked while suspended", "/payments", rentPayment("pay-1", "10"), http.StatusUnprocessableEntity, "", "LEDGER_NOT_ACTIVE"},
		{"reactivate", "/reactivate", gin.H{"reason": "review done"}, http.StatusOK, "ACTIVE", ""},
		{"review", "/review", gin.H{"reason": "audit sample"}, http.StatusOK, "UNDER_REVIEW", ""},
		{"reactivate again", "/reactivate", nil, http.StatusOK, "ACTIVE", ""},
		{"close needs a reason", "/close", gin.H{}, http.StatusBadRequest, "", "INVALID_REASON"},
		{"close", "/close", gin.H{"reason": "household stabilized"}, http.StatusOK, "CLOSED", ""},
		{"close twice", "/close", gin.H{"reason": "again"}, http.StatusUnprocessableEntity, "", "LEDGER_CLOSED"},
	}

	for _, step := range steps {
		w := env.do(http.MethodPost, base+step.path, testUser, step.body)
		require.Equal(t, step.expectedCode, w.Code, "%s: %s", step.name, w.Body.String())
		if step.expectedErr != "" {
			assert.Equal(t, step.expectedErr, errorCode(t, w), step.name)
			continue
		}
		if step.expectedStat != "" {
			assert.Equal(t, step.expectedStat, decode[ledgerapp.LedgerResponse](t, w).Data.Status, step.name)
		}
	}

	w := env.do(http.MethodGet, base, "", nil)
	resp := decode[ledgerapp.LedgerResponse](t, w)
	assert.Equal(t, testUser, resp.Data.ClosedBy)
	assert.Equal(t, "household stabilized", resp.Data.CloseReason)
}

func TestLedgerHandler_ListLedgers(t *testing.T) {
	env := newTestEnv(t)
	clientID := uuid.New()
	env.createLedger(t, gin.H{"client_id": clientID.String()})
	env.createLedger(t, gin.H{"client_id": uuid.NewString()})

	t.Run("filter by client", func(t *testing.T) {
		w := env.do(http.MethodGet, "/api/v1/ledgers?client_id="+clientID.String(), "", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		resp := decode[[]ledgerapp.LedgerResponse](t, w)
		require.Len(t, resp.Data, 1)
		assert.Equal(t, clientID, resp.Data[0].ClientID)
		assert.Equal(t, int64(1), resp.Meta.Total)
	})

	t.Run("all with default paging", func(t *testing.T) {
		w := env.do(http.MethodGet, "/api/v1/ledgers", "", nil)
		resp := decode[[]ledgerapp.LedgerResponse](t, w)
		assert.Len(t, resp.Data, 2)
		assert.Equal(t, dto.DefaultPageSize, resp.Meta.PageSize)
	})

	t.Run("bad filters", func(t *testing.T) {
		w := env.do(http.MethodGet, "/api/v1/ledgers?client_id=abc", "", nil)
		assert.Equal(t, dto.ErrCodeInvalidID, errorCode(t, w))

		w = env.do(http.MethodGet, "/api/v1/ledgers?status=ARCHIVED", "", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "INVALID_STATUS", errorCode(t, w))
	})

	t.Run("client ledgers", func(t *testing.T) {
		w := env.do(http.MethodGet, "/api/v1/clients/"+clientID.String()+"/ledgers", "", nil)
		assert.Len(t, decode[[]ledgerapp.LedgerResponse](t, w).Data, 1)

		w = env.do(http.MethodGet, "/api/v1/clients/"+clientID.String()+"/ledgers/active", "", nil)
		assert.Equal(t, http.StatusOK, w.Code)

		w = env.do(http.MethodGet, "/api/v1/clients/"+uuid.NewString()+"/ledgers/active", "", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestLedgerHandler_DeleteAndAudit(t *testing.T) {
	env := newTestEnv(t)
	created := env.createLedger(t, gin.H{"client_id": uuid.NewString()})

	for _, path := range []string{"unbalanced", "overdue-arrears", "unmatched-deposits"} {
		w := env.do(http.MethodGet, "/api/v1/ledgers/audit/"+path, "", nil)
		require.Equal(t, http.StatusOK, w.Code, path)
		assert.Empty(t, decode[[]ledgerapp.LedgerResponse](t, w).Data, path)
	}

	w := env.do(http.MethodDelete, "/api/v1/ledgers/"+created.ID.String(), testUser, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = env.do(http.MethodGet, "/api/v1/ledgers/"+created.ID.String(), "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(http.MethodDelete, "/api/v1/ledgers/"+created.ID.String(), testUser, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
