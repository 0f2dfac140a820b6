package cyclecount

import "millstock/internal/domain/documents"

// Repository defines persistence of cycle counts.
type Repository interface {
	documents.Repository[*Order]
}
