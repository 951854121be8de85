// Package store defines the key/value persistence contract used for notes and its backends.
package store

import (
	"context"
	"errors"
	"strings"
)

// DefaultListLimit bounds a List page when the caller does not specify a limit.
const DefaultListLimit = 1000

var (
	// ErrEmptyKey indicates that an operation was attempted with a blank key.
	ErrEmptyKey = errors.New("store: key required")
	// ErrInvalidCursor indicates that a List cursor was not produced by the same backend.
	ErrInvalidCursor = errors.New("store: invalid cursor")
)

// NoteStore is an opaque key/value store without transactions or compare-and-swap.
// Get reports absence through the boolean result; Delete of an absent key is not an error.
type NoteStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, options ListOptions) (ListPage, error)
}

// ListOptions selects one page of keys sharing a prefix.
type ListOptions struct {
	Prefix string
	Cursor string
	Limit  int
}

// ListPage is a single page of keys. Cursor resumes the listing when Complete is false.
type ListPage struct {
	Keys     []string
	Cursor   string
	Complete bool
}

func (options ListOptions) limit() int {
	if options.Limit <= 0 {
		return DefaultListLimit
	}
	return options.Limit
}

func validateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return ErrEmptyKey
	}
	return nil
}
