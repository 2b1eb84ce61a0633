package remote

import "errors"

var (
	ErrEndpointRequired = errors.New("search service endpoint is required")
	ErrIndexRequired    = errors.New("search index name is required")
)
