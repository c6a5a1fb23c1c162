package service

import "errors"

var (
	// ErrUnrecognizedPage is returned for a category page that is neither a product list,
	// a subcategory grid nor a landing page
	ErrUnrecognizedPage = errors.New("unrecognized category page layout")
	// ErrNoProgress is returned when a search page does not move the offset forward
	ErrNoProgress = errors.New("search page did not advance the offset")
)
