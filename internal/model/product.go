package model

import (
	"time"

	"github.com/lib/pq"
)

// Product is a catalog row, including the stored embedding used for
// nearest-neighbor ranking.
type Product struct {
	ID          string          `db:"id"`
	Name        string          `db:"name"`
	Description string          `db:"description"`
	Price       float64         `db:"price"`
	Embedding   pq.Float64Array `db:"embedding"`
	UpdatedAt   time.Time       `db:"updated_at"`
}

type UpsertProductParams struct {
	ID          string
	Name        string
	Description string
	Price       float64
	Embedding   []float64
}

// RetrievedRecord is the best catalog match for a query, surfaced to the
// pipeline only when its score clears the acceptance threshold.
type RetrievedRecord struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Score       float64 `json:"score"`
}
