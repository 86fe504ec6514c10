package model

import "time"

// CorpusRecord is an anonymized community entry. The merchant is known only
// by its hash and the category only by its lowercased name.
type CorpusRecord struct {
	LastUpdated  time.Time
	ID           string
	MerchantHash string
	CategoryName string
	Embedding    []float32
	Confidence   float64
	UsageCount   int
}

// Neighbor is a corpus record returned by a similarity search.
type Neighbor struct {
	Record     CorpusRecord
	Similarity float64
}
