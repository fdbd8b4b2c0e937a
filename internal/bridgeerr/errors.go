package bridgeerr

import "errors"

var (
	ErrCatalogFetch    = errors.New("catalog fetch failed")
	ErrOutboundCommand = errors.New("outbound command failed")
	ErrAccessDenied    = errors.New("access denied")
	ErrNotFound        = errors.New("not found")
	ErrMissingConfig   = errors.New("missing required configuration")
)
