package adjustment

import "millstock/internal/domain/documents"

// Repository defines persistence of adjustment orders.
type Repository interface {
	documents.Repository[*Order]
}
