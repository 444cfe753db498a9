package catalog

import "errors"

// Sentinel errors returned by stores and loaders. Match with errors.Is.
var (
	ErrEntryNotFound   = errors.New("catalog entry not found")
	ErrEntryExists     = errors.New("catalog entry already exists")
	ErrCatalogNotFound = errors.New("catalog source not found")
	ErrInvalidEntry    = errors.New("invalid catalog entry")
)
