package client

import "errors"

var (
	ErrPageNotLoaded   = errors.New("page failed to load")
	ErrElementMissing  = errors.New("expected page element missing")
	ErrClubNotSelected = errors.New("club does not seem to be set")
)
