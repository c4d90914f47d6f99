package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/haven/ledger/internal/interfaces/http/dto"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type paymentBody struct {
	Subtype string          `json:"subtype" binding:"required"`
	Amount  decimal.Decimal `json:"amount" binding:"required,decimal_gt0"`
	Fee     decimal.Decimal `json:"fee" binding:"decimal_gte0"`
}

func TestRegisterValidations(t *testing.T) {
	v := validator.New()
	v.SetTagName("binding")
	require.NoError(t, RegisterValidations(v))

	tests := []struct {
		name      string
		body      paymentBody
		wantField string
		wantTag   string
	}{
		{"valid", paymentBody{Subtype: "RENT_CURRENT", Amount: decimal.NewFromInt(1200)}, "", ""},
		{"zero amount is missing", paymentBody{Subtype: "RENT_CURRENT"}, "amount", "required"},
		{"negative amount", paymentBody{Subtype: "RENT_CURRENT", Amount: decimal.NewFromInt(-5)}, "amount", "decimal_gt0"},
		{"negative fee", paymentBody{Subtype: "RENT_CURRENT", Amount: decimal.NewFromInt(5), Fee: decimal.NewFromInt(-1)}, "fee", "decimal_gte0"},
		{"missing subtype", paymentBody{Amount: decimal.NewFromInt(5)}, "subtype", "required"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := v.Struct(tc.body)
			if tc.wantField == "" {
				assert.NoError(t, err)
				return
			}
			var verrs validator.ValidationErrors
			require.ErrorAs(t, err, &verrs)
			require.Len(t, verrs, 1)
			assert.Equal(t, tc.wantField, verrs[0].Field())
			assert.Equal(t, tc.wantTag, verrs[0].Tag())
		})
	}
}

func TestHandleValidationError(t *testing.T) {
	require.NoError(t, SetupValidator())

	router := gin.New()
	router.Use(RequestID())
	router.POST("/payments", func(c *gin.Context) {
		var body paymentBody
		if err := c.ShouldBindJSON(&body); err != nil {
			HandleValidationError(c, err)
			return
		}
		c.Status(http.StatusCreated)
	})

	post := func(body string) (*httptest.ResponseRecorder, dto.Response) {
		req := httptest.NewRequest(http.MethodPost, "/payments", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		var resp dto.Response
		_ = json.Unmarshal(w.Body.Bytes(), &resp)
		return w, resp
	}

	t.Run("accepts a positive amount", func(t *testing.T) {
		w, _ := post(`{"subtype":"RENT_CURRENT","amount":"1200.50"}`)
		assert.Equal(t, http.StatusCreated, w.Code)
	})

	t.Run("reports field details", func(t *testing.T) {
		w, resp := post(`{"amount":"-10"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		require.NotNil(t, resp.Error)
		assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
		assert.NotEmpty(t, resp.Error.RequestID)

		fields := map[string]string{}
		for _, d := range resp.Error.Details {
			fields[d.Field] = d.Tag
		}
		assert.Equal(t, "required", fields["subtype"])
		assert.Equal(t, "decimal_gt0", fields["amount"])
	})

	t.Run("malformed json has no details", func(t *testing.T) {
		w, resp := post(`{"amount":`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		require.NotNil(t, resp.Error)
		assert.Equal(t, "Malformed request body", resp.Error.Message)
		assert.Empty(t, resp.Error.Details)
	})
}

func TestFieldMessages(t *testing.T) {
	type body struct {
		Status string `form:"status" binding:"oneof=ACTIVE CLOSED"`
		Name   string `json:"name" binding:"max=3"`
		Count  int    `json:"count" binding:"max=2"`
		Hidden string `json:"-" binding:"required"`
		Note   string `binding:"required"`
	}
	v := validator.New()
	v.SetTagName("binding")
	require.NoError(t, RegisterValidations(v))

	var verrs validator.ValidationErrors
	require.ErrorAs(t, v.Struct(body{Status: "OPEN", Name: "Maple", Count: 9}), &verrs)

	got := map[string]string{}
	for _, fe := range verrs {
		got[fe.Field()] = fieldMessage(fe)
	}
	assert.Equal(t, "Must be one of: ACTIVE CLOSED", got["status"])
	assert.Equal(t, "Must be at most 3 characters", got["name"])
	assert.Equal(t, "Must be at most 2", got["count"])
	assert.Equal(t, "This field is required", got["Hidden"])
	assert.Equal(t, "This field is required", got["Note"])
	assert.NotContains(t, got, "")
}
