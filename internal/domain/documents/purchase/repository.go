package purchase

import "millstock/internal/domain/documents"

// Repository defines persistence of purchase orders.
type Repository interface {
	documents.Repository[*Order]
}
