package client

import (
	"bytes"
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"bjs/parser/internal/domain"
)

const availabilityNavigation = "visualVariant.nonvisualVariant.availability"

type searchRequest struct {
	Skip                int          `json:"skip"`
	PageSize            int          `json:"pageSize"`
	Fields              []string     `json:"fields"`
	Refinements         []refinement `json:"refinements"`
	Area                string       `json:"area"`
	Collection          string       `json:"collection"`
	Sort                sortOrder    `json:"sort"`
	ExcludedNavigations []string     `json:"excludedNavigations"`
	Biasing             biasing      `json:"biasing"`
	Query               *string      `json:"query"`
}

type refinement struct {
	NavigationName string `json:"navigationName"`
	Type           string `json:"type"`
	Value          string `json:"value"`
}

type sortOrder struct {
	Field string `json:"field"`
	Order string `json:"order"`
}

type biasing struct {
	Biases []interface{} `json:"biases"`
}

type searchResponse struct {
	Records []struct {
		AllMeta recordMeta `json:"allMeta"`
	} `json:"records"`
	PageInfo struct {
		RecordStart int `json:"recordStart"`
		RecordEnd   int `json:"recordEnd"`
	} `json:"pageInfo"`
	TotalRecordCount int `json:"totalRecordCount"`
}

type recordMeta struct {
	Title         string               `json:"title"`
	GBICategories []map[string]*string `json:"gbi_categories"` // Ordinal -> name; maps and names may be null
	VisualVariant []visualVariant      `json:"visualVariant"`
}

type visualVariant struct {
	NonvisualVariant []nonvisualVariant `json:"nonvisualVariant"`
}

type nonvisualVariant struct {
	ProductURL   string     `json:"product_url"`
	ClubIDPrice  flexString `json:"clubid_price"` // "<price>_<club>;<price>_<club>"
	DisplayPrice flexString `json:"displayPrice"`
}

// flexString accepts a JSON string or number
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = flexString(v)
		return nil
	}
	*s = flexString(data)
	return nil
}

func (m recordMeta) toItem(clubID string) domain.Item {
	item := domain.Item{
		Name:       m.Title,
		Categories: m.categories(),
		Price:      m.price(clubID),
	}
	if first := m.firstVariant(); first != nil {
		item.URL = first.ProductURL
	}
	return item
}

func (m recordMeta) categories() [][]string {
	categories := make([][]string, 0, len(m.GBICategories))
	for _, ordinals := range m.GBICategories {
		if len(ordinals) == 0 {
			continue
		}

		keys := make([]string, 0, len(ordinals))
		for key := range ordinals {
			keys = append(keys, key)
		}
		sortOrdinals(keys)

		path := make([]string, 0, len(keys))
		for _, key := range keys {
			if name := ordinals[key]; name != nil && *name != "" {
				path = append(path, *name)
			}
		}
		categories = append(categories, path)
	}
	return categories
}

// sortOrdinals orders numeric keys by value so "10" follows "9"
func sortOrdinals(keys []string) {
	sort.SliceStable(keys, func(i, j int) bool {
		a, errA := strconv.Atoi(keys[i])
		b, errB := strconv.Atoi(keys[j])
		if errA == nil && errB == nil {
			return a < b
		}
		return keys[i] < keys[j]
	})
}

func (m recordMeta) firstVariant() *nonvisualVariant {
	if len(m.VisualVariant) == 0 || len(m.VisualVariant[0].NonvisualVariant) == 0 {
		return nil
	}
	return &m.VisualVariant[0].NonvisualVariant[0]
}

// price returns [p] when every variant costs the same, otherwise [min, max]
func (m recordMeta) price(clubID string) []string {
	seen := make(map[string]struct{})
	var prices []string
	for _, visual := range m.VisualVariant {
		if len(visual.NonvisualVariant) == 0 {
			continue
		}
		variant := visual.NonvisualVariant[0]

		price, ok := clubPrice(string(variant.ClubIDPrice), clubID)
		if !ok {
			price = string(variant.DisplayPrice)
		}
		if price == "" {
			continue
		}
		if _, dup := seen[price]; !dup {
			seen[price] = struct{}{}
			prices = append(prices, price)
		}
	}

	if len(prices) == 0 {
		return nil
	}

	sort.SliceStable(prices, func(i, j int) bool {
		return lessPrice(prices[i], prices[j])
	})
	low, high := prices[0], prices[len(prices)-1]
	if low == high {
		return []string{low}
	}
	return []string{low, high}
}

func clubPrice(raw, clubID string) (string, bool) {
	if raw == "" {
		return "", false
	}
	for _, entry := range strings.Split(raw, ";") {
		price, club, found := strings.Cut(entry, "_")
		if found && club == clubID {
			return price, true
		}
	}
	return "", false
}

func lessPrice(a, b string) bool {
	x, errA := strconv.ParseFloat(strings.TrimPrefix(a, "$"), 64)
	y, errB := strconv.ParseFloat(strings.TrimPrefix(b, "$"), 64)
	if errA == nil && errB == nil {
		return x < y
	}
	return a < b
}
