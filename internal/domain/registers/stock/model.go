// Package stock owns batches (缸号), the finest-grained stock unit, and the
// journal of every change to their quantity.
package stock

import (
	"strings"
	"time"

	"millstock/internal/core/apperror"
	"millstock/internal/core/entity"
	"millstock/internal/core/id"
	"millstock/internal/core/types"
)

// Batch is one production lot of one color.
// StockQuantity never drops below zero.
type Batch struct {
	entity.BaseEntity

	ColorID id.ID `db:"color_id" json:"colorId"`

	// ProductID is copied from the color for product-level aggregation
	ProductID id.ID `db:"product_id" json:"productId"`

	// Code is the batch number, unique per color
	Code string `db:"code" json:"code"`

	StockQuantity   types.Quantity `db:"stock_quantity" json:"stockQuantity"`
	InitialQuantity types.Quantity `db:"initial_quantity" json:"initialQuantity"`

	PurchasePrice  types.Money `db:"purchase_price" json:"purchasePrice"`
	SupplierID     *id.ID      `db:"supplier_id" json:"supplierId,omitempty"`
	ProductionDate *time.Time  `db:"production_date" json:"productionDate,omitempty"`
	StockLocation  string      `db:"stock_location" json:"stockLocation,omitempty"`
}

// BatchSpec describes a batch to create.
type BatchSpec struct {
	Code            string
	InitialQuantity types.Quantity
	PurchasePrice   types.Money
	SupplierID      *id.ID
	ProductionDate  *time.Time
	StockLocation   string
}

// Validate checks the spec before any lookup.
func (s BatchSpec) Validate() error {
	if strings.TrimSpace(s.Code) == "" {
		return apperror.NewValidation("batch code is required").
			WithDetail("field", "code")
	}
	if s.InitialQuantity.IsNegative() {
		return apperror.NewValidation("initial quantity must not be negative").
			WithDetail("field", "initialQuantity").
			WithDetail("value", s.InitialQuantity.String())
	}
	if s.PurchasePrice.IsNegative() {
		return apperror.NewValidation("purchase price must not be negative").
			WithDetail("field", "purchasePrice")
	}
	return nil
}

// RecorderType names the kind of action a movement is attributed to.
type RecorderType string

const (
	RecorderPurchase   RecorderType = "purchase"
	RecorderSales      RecorderType = "sales"
	RecorderDyeing     RecorderType = "dyeing"
	RecorderAdjustment RecorderType = "adjustment"
	RecorderCycleCount RecorderType = "cycle_count"

	// RecorderManual is a direct correction outside any order; Reason is required.
	RecorderManual RecorderType = "manual"
)

// Recorder attributes a stock change to exactly one order or reconciliation.
type Recorder struct {
	Type   RecorderType
	ID     id.ID
	Number string
	Reason string
}

func (r Recorder) validate() error {
	if r.Type == "" || id.IsNil(r.ID) {
		return apperror.NewValidation("stock change must be attributed to an order").
			WithDetail("field", "recorder")
	}
	if r.Type == RecorderManual && strings.TrimSpace(r.Reason) == "" {
		return apperror.NewValidation("reason is required for a manual stock change").
			WithDetail("field", "reason")
	}
	return nil
}

// Movement is one journal entry: a signed change and the balance it left.
type Movement struct {
	ID             id.ID          `db:"id" json:"id"`
	BatchID        id.ID          `db:"batch_id" json:"batchId"`
	Delta          types.Quantity `db:"delta" json:"delta"`
	BalanceAfter   types.Quantity `db:"balance_after" json:"balanceAfter"`
	RecorderType   RecorderType   `db:"recorder_type" json:"recorderType"`
	RecorderID     id.ID          `db:"recorder_id" json:"recorderId"`
	RecorderNumber string         `db:"recorder_number" json:"recorderNumber"`
	Reason         string         `db:"reason" json:"reason,omitempty"`
	Operator       string         `db:"operator" json:"operator"`
	RecordedAt     time.Time      `db:"recorded_at" json:"recordedAt"`
}

// ColorInventory is one color with its batches and their stock sum.
type ColorInventory struct {
	ColorID    id.ID          `json:"colorId"`
	ColorCode  string         `json:"colorCode"`
	ColorName  string         `json:"colorName"`
	Batches    []*Batch       `json:"batches"`
	TotalStock types.Quantity `json:"totalStock"`
}

// ProductInventory is the full stock tree of one product.
type ProductInventory struct {
	ProductID   id.ID            `json:"productId"`
	ProductCode string           `json:"productCode"`
	ProductName string           `json:"productName"`
	Unit        string           `json:"unit"`
	Colors      []ColorInventory `json:"colors"`
	TotalStock  types.Quantity   `json:"totalStock"`
}
