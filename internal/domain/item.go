package domain

// Item is one product record of an inventory snapshot
type Item struct {
	Name       string     `json:"name"`
	Categories [][]string `json:"categories"`      // Candidate category paths, root first
	URL        string     `json:"url"`             // Product page URL
	Price      []string   `json:"price,omitempty"` // [price] or [min, max]
}

// Inventory is the persisted snapshot document
type Inventory struct {
	Items []Item `json:"inventory"`
}

func NewInventory() *Inventory {
	return &Inventory{
		Items: make([]Item, 0),
	}
}
