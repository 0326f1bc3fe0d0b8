package persistence

import (
	"strings"
)

// ValidateSortOrder validates and normalizes the sort order to ASC or DESC.
// Returns "DESC" as the default if the input is invalid or empty.
func ValidateSortOrder(orderDir string) string {
	normalized := strings.ToUpper(strings.TrimSpace(orderDir))
	if normalized == "ASC" {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortField validates the sort field against a whitelist of allowed fields.
// Returns the defaultField if the input is invalid, empty, or not in the whitelist.
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	trimmed := strings.TrimSpace(sortField)
	if trimmed == "" {
		return defaultField
	}
	if allowedFields[trimmed] {
		return trimmed
	}
	return defaultField
}

// StockLineSortFields contains allowed sort fields for stock lines
var StockLineSortFields = map[string]bool{
	"id":                true,
	"created_at":        true,
	"updated_at":        true,
	"product_id":        true,
	"warehouse_id":      true,
	"lot_number":        true,
	"current_quantity":  true,
	"reserved_quantity": true,
	"unit_cost":         true,
}

// StockMovementSortFields contains allowed sort fields for stock movements
var StockMovementSortFields = map[string]bool{
	"id":              true,
	"created_at":      true,
	"occurred_at":     true,
	"movement_number": true,
	"movement_type":   true,
	"product_id":      true,
	"warehouse_id":    true,
	"lot_number":      true,
	"quantity":        true,
	"unit_cost":       true,
	"total_cost":      true,
}

// StockReservationSortFields contains allowed sort fields for reservations
var StockReservationSortFields = map[string]bool{
	"id":                 true,
	"created_at":         true,
	"updated_at":         true,
	"reservation_number": true,
	"status":             true,
	"product_id":         true,
	"warehouse_id":       true,
	"requested_quantity": true,
	"fulfilled_quantity": true,
	"expiration_date":    true,
}

// LotBatchSortFields contains allowed sort fields for lot batches
var LotBatchSortFields = map[string]bool{
	"id":               true,
	"created_at":       true,
	"updated_at":       true,
	"lot_number":       true,
	"product_id":       true,
	"status":           true,
	"expiry_date":      true,
	"current_quantity": true,
}

// SerialNumberSortFields contains allowed sort fields for serial numbers
var SerialNumberSortFields = map[string]bool{
	"id":                true,
	"created_at":        true,
	"updated_at":        true,
	"serial":            true,
	"product_id":        true,
	"status":            true,
	"warranty_end_date": true,
}

// ConsignmentSortFields contains allowed sort fields for consignment stocks
var ConsignmentSortFields = map[string]bool{
	"id":                       true,
	"created_at":               true,
	"updated_at":               true,
	"agreement_number":         true,
	"supplier_id":              true,
	"status":                   true,
	"next_reconciliation_date": true,
	"current_quantity":         true,
}
