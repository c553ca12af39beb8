package domain

// ============================================================
// Catalog: structured data returned by the retriever
// ============================================================

// StoreRef is the storefront a product belongs to.
type StoreRef struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	LogoURL string `json:"logoUrl,omitempty"`
}

// Candidate is a catalog hit. It is owned by the catalog and treated as
// read-only by the product pipeline.
type Candidate struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Brand        string    `json:"brand,omitempty"`
	Category     string    `json:"category,omitempty"`
	SubCategory  string    `json:"subCategory,omitempty"`
	Price        float64   `json:"price"`
	SalePrice    *float64  `json:"salePrice,omitempty"`
	Rating       float64   `json:"rating"`
	ReviewsCount int       `json:"reviewsCount"`
	SoldCount    int       `json:"soldCount"`
	Quantity     int       `json:"quantity"`
	Description  string    `json:"description,omitempty"`
	Images       []string  `json:"images,omitempty"`
	Tags         []string  `json:"tags,omitempty"`
	Store        *StoreRef `json:"store,omitempty"`
}

// EffectivePrice returns the sale price when one is set, the list price otherwise.
func (c *Candidate) EffectivePrice() float64 {
	if c.SalePrice != nil && *c.SalePrice > 0 {
		return *c.SalePrice
	}
	return c.Price
}

// BrandCount is one row of the count-by-brand aggregation.
type BrandCount struct {
	Brand string `json:"brand"`
	Count int    `json:"count"`
}

// ============================================================
// Generation: options passed to the generative text service
// ============================================================

// ReplyOptions carries the count summary for count-intent questions.
type ReplyOptions struct {
	IsCountQuestion   bool         `json:"isCountQuestion"`
	TotalCount        int          `json:"totalCount"`
	BrandCounts       []BrandCount `json:"brandCounts,omitempty"`
	TopProductsLength int          `json:"topProductsLength"`
}

// ============================================================
// Pipeline output
// ============================================================

// SummaryStore is the storefront projection shown to the user.
type SummaryStore struct {
	Name    string  `json:"name"`
	LogoURL *string `json:"logoUrl"`
}

// ProductSummary is the product shape returned to callers.
type ProductSummary struct {
	ID           string        `json:"_id"`
	Name         string        `json:"name"`
	Price        float64       `json:"price"`
	SalePrice    *float64      `json:"salePrice"`
	Images       []string      `json:"images"`
	Rating       float64       `json:"rating"`
	ReviewsCount int           `json:"reviewsCount"`
	SoldCount    int           `json:"soldCount"`
	Brand        *string       `json:"brand"`
	Category     *string       `json:"category"`
	Description  *string       `json:"description"`
	Store        *SummaryStore `json:"store"`
}

// PipelineResult is the immutable outcome of one product-discovery request.
type PipelineResult struct {
	Reply    string           `json:"reply"`
	Products []ProductSummary `json:"products"`
}
