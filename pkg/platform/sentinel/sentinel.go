// Package sentinel names infrastructure facts that stores and outbound
// adapters report. Services translate them into domain error codes; input
// validation belongs in pkg/domain-errors.
package sentinel

import "errors"

var (
	// ErrNotFound means no entry exists for the key.
	ErrNotFound = errors.New("not found")
	// ErrUnavailable means a backing service or collaborator cannot be reached
	// right now and the call was not attempted.
	ErrUnavailable = errors.New("unavailable")
)
