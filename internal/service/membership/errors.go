package membership

import "errors"

// Sentinel errors for the membership service layer.
var (
	ErrMissingOrganization = errors.New("organization id is required")
	ErrMissingProfile      = errors.New("profile id is required")
)
