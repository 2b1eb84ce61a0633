package index

import "errors"

var ErrStoreRequired = errors.New("at least one index store is required")
