package service

import "errors"

var (
	// ErrSKUNotFound signals that the requested (store, product) pair has no
	// rows in the loaded dataset.
	ErrSKUNotFound = errors.New("sku not found")

	// ErrUnknownPolicy signals a request for a policy preset that is not
	// loaded from the policy directory.
	ErrUnknownPolicy = errors.New("unknown policy")

	// ErrPersistenceUnavailable signals that a run-history operation was
	// requested but the server is running without a database.
	ErrPersistenceUnavailable = errors.New("persistence unavailable")
)
