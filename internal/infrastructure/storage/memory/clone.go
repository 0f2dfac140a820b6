package memory

import (
	"time"

	"millstock/internal/core/id"
	"millstock/internal/domain/catalogs/color"
	"millstock/internal/domain/catalogs/counterparty"
	"millstock/internal/domain/catalogs/product"
	"millstock/internal/domain/ledger"
	"millstock/internal/domain/registers/stock"
)

func cloneProduct(p *product.Product) *product.Product {
	c := *p
	return &c
}

func cloneColor(v *color.Color) *color.Color {
	c := *v
	return &c
}

func cloneCounterparty(v *counterparty.Counterparty) *counterparty.Counterparty {
	c := *v
	if v.Comment != nil {
		s := *v.Comment
		c.Comment = &s
	}
	return &c
}

func cloneBatch(b *stock.Batch) *stock.Batch {
	c := *b
	c.SupplierID = cloneID(b.SupplierID)
	c.ProductionDate = cloneTime(b.ProductionDate)
	return &c
}

func cloneAccount(a *ledger.Account) *ledger.Account {
	c := *a
	return &c
}

func cloneID(v *id.ID) *id.ID {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
