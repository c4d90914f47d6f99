package router

import (
	"github.com/haven/ledger/internal/infrastructure/auth"
	"github.com/haven/ledger/internal/interfaces/http/handler"
	"github.com/haven/ledger/internal/interfaces/http/middleware"
)

// SystemRoutes mounts /system
func SystemRoutes(h *handler.SystemHandler) *Module {
	return NewModule("system", "/system").
		GET("/ping", h.Ping).
		GET("/info", h.Info)
}

// AuthRoutes mounts /auth
func AuthRoutes(h *handler.AuthHandler) *Module {
	return NewModule("auth", "/auth").
		GET("/me", h.GetCurrentUser).
		POST("/logout", h.Logout)
}

// LedgerRoutes mounts /ledgers. Deleting a ledger is reserved for
// supervisors and the audit queries for auditors and supervisors.
func LedgerRoutes(h *handler.LedgerHandler) *Module {
	g := NewModule("ledgers", "/ledgers").
		POST("", h.CreateLedger).
		GET("", h.ListLedgers).
		POST("/active", h.GetOrCreateActiveLedger).
		GET("/:id", h.GetLedger).
		DELETE("/:id", middleware.RequireRole(auth.RoleSupervisor), h.DeleteLedger).
		GET("/:id/entries", h.ListEntries).
		GET("/:id/landlord-view", h.GetLandlordView).
		POST("/:id/payments", h.RecordPayment).
		POST("/:id/deposits", h.RecordDeposit).
		POST("/:id/arrears", h.RecordArrears).
		POST("/:id/communications", h.RecordCommunication).
		POST("/:id/documents", h.AttachDocument).
		GET("/:id/documents/:documentId/link", h.DocumentLink).
		POST("/:id/close", h.CloseLedger).
		POST("/:id/suspend", h.SuspendLedger).
		POST("/:id/review", h.PlaceUnderReview).
		POST("/:id/reactivate", h.ReactivateLedger)

	g.Sub("audit", "/audit").
		Guard(middleware.RequireRole(auth.RoleAuditor, auth.RoleSupervisor)).
		GET("/unbalanced", h.FindUnbalanced).
		GET("/overdue-arrears", h.FindOverdueArrears).
		GET("/unmatched-deposits", h.FindUnmatchedDeposits)
	return g
}

// ClientRoutes mounts the per-client ledger lookups
func ClientRoutes(h *handler.LedgerHandler) *Module {
	return NewModule("clients", "/clients/:clientId").
		GET("/ledgers", h.GetClientLedgers).
		GET("/ledgers/active", h.GetActiveClientLedger)
}

// AlertRoutes mounts /alerts
func AlertRoutes(h *handler.AlertHandler) *Module {
	return NewModule("alerts", "/alerts").
		Guard(middleware.RequireRole(auth.RoleSupervisor, auth.RoleAuditor)).
		POST("/sweep", h.RunSweep).
		POST("/custom", h.GenerateCustomAlert)
}

// ReconciliationRoutes mounts /reconciliations
func ReconciliationRoutes(h *handler.ReconciliationHandler) *Module {
	return NewModule("reconciliations", "/reconciliations").
		Guard(middleware.RequireRole(auth.RoleAuditor, auth.RoleSupervisor)).
		POST("", h.Reconcile).
		GET("", h.ListRuns).
		GET("/daily", h.DailySummary).
		GET("/funding-sources/:code", h.FundingSource).
		GET("/:id", h.GetRun)
}
