package document_repo

import (
	"millstock/internal/domain/documents/adjustment"
	"millstock/internal/domain/documents/cyclecount"
	"millstock/internal/domain/documents/dyeing"
	"millstock/internal/domain/documents/purchase"
	"millstock/internal/domain/documents/sales"
	"millstock/internal/infrastructure/storage/postgres"
)

const (
	purchaseTable   = "doc_purchase_orders"
	salesTable      = "doc_sales_orders"
	dyeingTable     = "doc_dyeing_orders"
	adjustmentTable = "doc_adjustment_orders"
	cycleCountTable = "doc_cycle_counts"
)

var (
	_ purchase.Repository   = (*BaseDocumentRepo[*purchase.Order])(nil)
	_ sales.Repository      = (*BaseDocumentRepo[*sales.Order])(nil)
	_ dyeing.Repository     = (*BaseDocumentRepo[*dyeing.Order])(nil)
	_ adjustment.Repository = (*BaseDocumentRepo[*adjustment.Order])(nil)
	_ cyclecount.Repository = (*BaseDocumentRepo[*cyclecount.Order])(nil)
)

// NewPurchaseRepo stores purchase orders (采购单).
func NewPurchaseRepo(txm *postgres.TxManager) *BaseDocumentRepo[*purchase.Order] {
	return NewBaseDocumentRepo(txm, purchaseTable, purchase.EntityName,
		postgres.ExtractDBColumns[purchase.Order](), "supplier_id",
		func() *purchase.Order { return &purchase.Order{} })
}

// NewSalesRepo stores sales orders (销售单).
func NewSalesRepo(txm *postgres.TxManager) *BaseDocumentRepo[*sales.Order] {
	return NewBaseDocumentRepo(txm, salesTable, sales.EntityName,
		postgres.ExtractDBColumns[sales.Order](), "customer_id",
		func() *sales.Order { return &sales.Order{} })
}

// NewDyeingRepo stores dyeing orders (染色加工单).
func NewDyeingRepo(txm *postgres.TxManager) *BaseDocumentRepo[*dyeing.Order] {
	return NewBaseDocumentRepo(txm, dyeingTable, dyeing.EntityName,
		postgres.ExtractDBColumns[dyeing.Order](), "dye_factory_id",
		func() *dyeing.Order { return &dyeing.Order{} })
}

// NewAdjustmentRepo stores adjustment orders (库存调整单).
func NewAdjustmentRepo(txm *postgres.TxManager) *BaseDocumentRepo[*adjustment.Order] {
	return NewBaseDocumentRepo(txm, adjustmentTable, adjustment.EntityName,
		postgres.ExtractDBColumns[adjustment.Order](), "",
		func() *adjustment.Order { return &adjustment.Order{} })
}

// NewCycleCountRepo stores cycle counts (盘点单).
func NewCycleCountRepo(txm *postgres.TxManager) *BaseDocumentRepo[*cyclecount.Order] {
	return NewBaseDocumentRepo(txm, cycleCountTable, cyclecount.EntityName,
		postgres.ExtractDBColumns[cyclecount.Order](), "",
		func() *cyclecount.Order { return &cyclecount.Order{} })
}
