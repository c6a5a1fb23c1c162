package domain

// Category is a row of the categories table
type Category struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Store    string `json:"store"`
	ParentID *int64 `json:"parent_id"` // nil for tree roots
}

// Product is a row of the products table
type Product struct {
	Name       string `json:"name"`
	CategoryID int64  `json:"category_id"`
	URL        string `json:"url"`
	Store      string `json:"store"`
	Stocked    *bool  `json:"stocked"` // Reserved, never set by ingestion
}
