package domain

// SearchPage is one page of the paged search API
type SearchPage struct {
	Skip             int    `json:"skip"`               // Offset the page was requested with
	RecordEnd        int    `json:"record_end"`         // Offset just past the last record
	TotalRecordCount int    `json:"total_record_count"` // Records across all pages
	Items            []Item `json:"items"`
}

// Done reports whether the page is the last one
func (p *SearchPage) Done() bool {
	return p.RecordEnd >= p.TotalRecordCount
}
