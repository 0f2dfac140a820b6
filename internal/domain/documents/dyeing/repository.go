package dyeing

import "millstock/internal/domain/documents"

// Repository defines persistence of dyeing orders.
type Repository interface {
	documents.Repository[*Order]
}
