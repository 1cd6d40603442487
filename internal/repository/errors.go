package repository

import "errors"

var (
	// ErrNotFound indicates the requested row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateCardNumber indicates another card already stores the same
	// encrypted number. The registry retries generation on this error.
	ErrDuplicateCardNumber = errors.New("card number already exists")
)
