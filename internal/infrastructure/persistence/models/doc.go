// Package models contains the GORM persistence models of the ledger tables.
// They are kept apart from the domain types: repositories convert with the
// ToDomain and FromDomain mappers, and the domain carries no GORM tags.
//
// The tables match the versioned migrations under migrations/; sqlite
// deployments create them from LedgerModels instead.
package models
