package handler

import (
	"github.com/gin-gonic/gin"
	ledgerapp "github.com/haven/ledger/internal/application/ledger"
)

// AlertHandler handles financial alert endpoints
type AlertHandler struct {
	BaseHandler
	alertsService *ledgerapp.AlertsService
}

// NewAlertHandler creates a new AlertHandler
func NewAlertHandler(alertsService *ledgerapp.AlertsService) *AlertHandler {
	return &AlertHandler{alertsService: alertsService}
}

// RunSweep godoc
// @Summary      Run the alert sweep now
// @Description  Runs every sweep once and delivers the resulting alerts
// @Tags         alerts
// @Produce      json
// @Success      200 {object} dto.Response{data=ledgerapp.SweepResult}
// @Router       /alerts/sweep [post]
func (h *AlertHandler) RunSweep(c *gin.Context) {
	result, err := h.alertsService.RunSweep(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// GenerateCustomAlert godoc
// @Summary      Raise a manual alert
// @Tags         alerts
// @Accept       json
// @Produce      json
// @Param        request body ledgerapp.CustomAlertRequest true "Alert"
// @Success      201 {object} dto.Response{data=ledger.Alert}
// @Failure      400 {object} dto.Response
// @Router       /alerts/custom [post]
func (h *AlertHandler) GenerateCustomAlert(c *gin.Context) {
	if _, ok := h.recordedBy(c); !ok {
		return
	}
	var req ledgerapp.CustomAlertRequest
	if !h.BindJSON(c, &req) {
		return
	}
	alert, err := h.alertsService.GenerateCustomAlert(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, alert)
}
