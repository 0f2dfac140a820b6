package sales

import "millstock/internal/domain/documents"

// Repository defines persistence of sales orders.
type Repository interface {
	documents.Repository[*Order]
}
