package dto

import (
	"time"

	"millstock/internal/core/entity"
	"millstock/internal/core/id"
	"millstock/internal/core/types"
	"millstock/internal/domain/documents/adjustment"
	"millstock/internal/domain/documents/cyclecount"
	"millstock/internal/domain/documents/dyeing"
	"millstock/internal/domain/documents/purchase"
	"millstock/internal/domain/documents/sales"
)

// OrderHeader holds the header fields every order family shares.
type OrderHeader struct {
	Date    *time.Time `json:"date"`
	Comment string     `json:"comment"`
}

func (h OrderHeader) applyTo(d *entity.Document) {
	if h.Date != nil {
		d.Date = *h.Date
	}
	d.Comment = h.Comment
}

// --- Purchase ---

// PurchaseLine is one line of a purchase order.
type PurchaseLine struct {
	ProductID id.ID          `json:"productId" binding:"required"`
	ColorID   id.ID          `json:"colorId" binding:"required"`
	BatchCode string         `json:"batchCode" binding:"required"`
	Quantity  types.Quantity `json:"quantity"`
	UnitPrice types.Money    `json:"unitPrice"`
}

// PurchaseOrderRequest creates or replaces a draft purchase order.
type PurchaseOrderRequest struct {
	OrderHeader
	SupplierID    id.ID          `json:"supplierId" binding:"required"`
	PaidAmount    types.Money    `json:"paidAmount"`
	StockLocation string         `json:"stockLocation"`
	Lines         []PurchaseLine `json:"lines" binding:"dive"`
}

// ToEntity maps the request to a new draft.
func (r PurchaseOrderRequest) ToEntity() *purchase.Order {
	return r.ApplyTo(purchase.NewOrder("", r.SupplierID))
}

// ApplyTo replaces the editable fields of o.
func (r PurchaseOrderRequest) ApplyTo(o *purchase.Order) *purchase.Order {
	r.OrderHeader.applyTo(&o.Document)
	o.SupplierID = r.SupplierID
	o.PaidAmount = r.PaidAmount
	o.StockLocation = r.StockLocation
	o.Lines = o.Lines[:0]
	for _, l := range r.Lines {
		o.AddLine(l.ProductID, l.ColorID, l.BatchCode, l.Quantity, l.UnitPrice)
	}
	o.Recalculate()
	return o
}

// UpdatePurchaseOrderRequest for PUT /purchase-orders/:id.
type UpdatePurchaseOrderRequest struct {
	Versioned
	PurchaseOrderRequest
}

// --- Sales ---

// SalesLine is one line of a sales order.
type SalesLine struct {
	BatchID   id.ID          `json:"batchId" binding:"required"`
	Quantity  types.Quantity `json:"quantity"`
	UnitPrice types.Money    `json:"unitPrice"`
}

// SalesOrderRequest creates or replaces a draft sales order.
type SalesOrderRequest struct {
	OrderHeader
	CustomerID     id.ID       `json:"customerId" binding:"required"`
	ReceivedAmount types.Money `json:"receivedAmount"`
	Lines          []SalesLine `json:"lines" binding:"dive"`
}

// ToEntity maps the request to a new draft.
func (r SalesOrderRequest) ToEntity() *sales.Order {
	return r.ApplyTo(sales.NewOrder("", r.CustomerID))
}

// ApplyTo replaces the editable fields of o.
func (r SalesOrderRequest) ApplyTo(o *sales.Order) *sales.Order {
	r.OrderHeader.applyTo(&o.Document)
	o.CustomerID = r.CustomerID
	o.ReceivedAmount = r.ReceivedAmount
	o.Lines = o.Lines[:0]
	for _, l := range r.Lines {
		o.AddLine(l.BatchID, l.Quantity, l.UnitPrice)
	}
	o.Recalculate()
	return o
}

// UpdateSalesOrderRequest for PUT /sales-orders/:id.
type UpdateSalesOrderRequest struct {
	Versioned
	SalesOrderRequest
}

// --- Dyeing ---

// DyeingLine is one target color of a dyeing order.
type DyeingLine struct {
	TargetColorID id.ID          `json:"targetColorId" binding:"required"`
	BatchCode     string         `json:"batchCode" binding:"required"`
	Quantity      types.Quantity `json:"quantity"`
}

// DyeingOrderRequest creates or replaces a planned dyeing order.
type DyeingOrderRequest struct {
	OrderHeader
	SourceBatchID   id.ID        `json:"sourceBatchId" binding:"required"`
	DyeFactoryID    id.ID        `json:"dyeFactoryId" binding:"required"`
	ProcessingPrice types.Money  `json:"processingPrice"`
	StockLocation   string       `json:"stockLocation"`
	Lines           []DyeingLine `json:"lines" binding:"dive"`
}

// ToEntity maps the request to a new planned order.
func (r DyeingOrderRequest) ToEntity() *dyeing.Order {
	return r.ApplyTo(dyeing.NewOrder("", r.SourceBatchID, r.DyeFactoryID, r.ProcessingPrice))
}

// ApplyTo replaces the editable fields of o.
func (r DyeingOrderRequest) ApplyTo(o *dyeing.Order) *dyeing.Order {
	r.OrderHeader.applyTo(&o.Document)
	o.SourceBatchID = r.SourceBatchID
	o.DyeFactoryID = r.DyeFactoryID
	o.ProcessingPrice = r.ProcessingPrice
	o.StockLocation = r.StockLocation
	o.Lines = o.Lines[:0]
	for _, l := range r.Lines {
		o.AddLine(l.TargetColorID, l.BatchCode, l.Quantity)
	}
	o.Recalculate()
	return o
}

// UpdateDyeingOrderRequest for PUT /dyeing-orders/:id.
type UpdateDyeingOrderRequest struct {
	Versioned
	DyeingOrderRequest
}

// StockInRequest receives the dyed goods of a completed order.
type StockInRequest struct {
	Location string `json:"location"`
}

// --- Adjustment ---

// AdjustmentLine is one batch correction.
type AdjustmentLine struct {
	BatchID   id.ID                `json:"batchId" binding:"required"`
	Type      adjustment.LineType  `json:"type" binding:"required"`
	Direction adjustment.Direction `json:"direction"`
	Quantity  types.Quantity       `json:"quantity"`
	Reason    string               `json:"reason"`
}

// AdjustmentOrderRequest creates or replaces a draft adjustment.
type AdjustmentOrderRequest struct {
	OrderHeader
	Lines []AdjustmentLine `json:"lines" binding:"dive"`
}

// ToEntity maps the request to a new draft.
func (r AdjustmentOrderRequest) ToEntity() *adjustment.Order {
	return r.ApplyTo(adjustment.NewOrder(""))
}

// ApplyTo replaces the editable fields of o.
func (r AdjustmentOrderRequest) ApplyTo(o *adjustment.Order) *adjustment.Order {
	r.OrderHeader.applyTo(&o.Document)
	o.Lines = o.Lines[:0]
	for _, l := range r.Lines {
		o.AddLine(l.BatchID, l.Type, l.Direction, l.Quantity, l.Reason)
	}
	o.Recalculate()
	return o
}

// UpdateAdjustmentOrderRequest for PUT /adjustments/:id.
type UpdateAdjustmentOrderRequest struct {
	Versioned
	AdjustmentOrderRequest
}

// --- Cycle count ---

// CycleCountRequest creates or replaces a planned cycle count.
type CycleCountRequest struct {
	OrderHeader
	BatchIDs []id.ID `json:"batchIds"`
}

// ToEntity maps the request to a new planned count.
func (r CycleCountRequest) ToEntity() *cyclecount.Order {
	return r.ApplyTo(cyclecount.NewOrder(""))
}

// ApplyTo replaces the editable fields of o.
func (r CycleCountRequest) ApplyTo(o *cyclecount.Order) *cyclecount.Order {
	r.OrderHeader.applyTo(&o.Document)
	o.Lines = o.Lines[:0]
	for _, b := range r.BatchIDs {
		o.AddBatch(b)
	}
	o.Recalculate()
	return o
}

// UpdateCycleCountRequest for PUT /cycle-counts/:id.
type UpdateCycleCountRequest struct {
	Versioned
	CycleCountRequest
}

// RecordCountRequest records the counted quantity of one batch.
type RecordCountRequest struct {
	BatchID id.ID          `json:"batchId" binding:"required"`
	Counted types.Quantity `json:"counted"`
	Remark  string         `json:"remark"`
}
