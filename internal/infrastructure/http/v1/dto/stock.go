package dto

import (
	"millstock/internal/core/types"
)

// AdjustStockRequest is a manual correction of one batch.
type AdjustStockRequest struct {
	Delta  types.Quantity `json:"delta"`
	Reason string         `json:"reason" binding:"required"`
}

// CheckStockResponse answers whether a batch can cover a quantity.
type CheckStockResponse struct {
	BatchID   string         `json:"batchId"`
	Quantity  types.Quantity `json:"quantity"`
	Available types.Quantity `json:"available"`
	Enough    bool           `json:"enough"`
}
