package checkout

import "errors"

var (
	ErrCheckoutNotFound = errors.New("checkout not found")
)
