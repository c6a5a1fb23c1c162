package domain

type PageKind string

func (k PageKind) String() string {
	return string(k)
}

const (
	PageKindLanding       PageKind = "landing"       // Special landing page without a category layout
	PageKindProducts      PageKind = "products"      // Product list
	PageKindSubcategories PageKind = "subcategories" // Grid of subcategory links
	PageKindUnrecognized  PageKind = "unrecognized"
)

// CategoryLink is a named category with every URL it is reachable at
type CategoryLink struct {
	Name string   `json:"name"`
	URLs []string `json:"urls"`
}

type ProductLink struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// CategoryPage is a rendered category page as classified by the catalog parser
type CategoryPage struct {
	URL           string         `json:"url"`
	Kind          PageKind       `json:"kind"`
	Products      []ProductLink  `json:"products,omitempty"`
	Subcategories []CategoryLink `json:"subcategories,omitempty"`
	HasNext       bool           `json:"has_next"`
	PageSizeValue string         `json:"page_size_value,omitempty"` // Option value of the largest page size
}
