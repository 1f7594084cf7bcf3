package store

import (
	"errors"
	"fmt"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// IStore is the interface of the key-value store backing the service
// profile. Keys are plain strings, values opaque bytes.
type IStore interface {
	// Set inserts or updates a key-value pair.
	Set(key string, value []byte) (err error)
	// Delete deletes a key-value pair. Deleting a missing key is not an error.
	Delete(key string) (err error)
	// Get returns the value for a key. The boolean return value indicates whether a value for the key was found.
	Get(key string) (value []byte, loaded bool, err error)
	// Has returns whether a key exists in the store.
	Has(key string) (loaded bool, err error)
	// Keys returns all keys starting with prefix in ascending order.
	Keys(prefix string) (keys []string, err error)
	// GetDBInfo returns metadata about the database underlying the store.
	// It is not guaranteed that all fields are filled in or that the information is up-to-date!
	GetDBInfo() (info DatabaseInfo, err error)
	// Close releases the store. All further calls fail with ErrClosed.
	Close() (err error)
}

// DatabaseInfo describes the database underlying a store
type DatabaseInfo struct {
	Engine   string
	InMemory bool
	Keys     uint64
	LSMSize  int64
	VLogSize int64
}

// --------------------------------------------------------------------------
// Errors
// --------------------------------------------------------------------------

var (
	ErrNotFound     = errors.New("key not found")
	ErrTypeMismatch = errors.New("value has a different type")
	ErrInvalidKey   = errors.New("invalid key")
	ErrClosed       = errors.New("store is closed")
)

// Error wraps a failure of the storage backend with a return code
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message.
	Err  error   // The backend error, may be nil
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("StoreError (code %s): %s: %v", e.Code, e.Msg, e.Err)
	}
	return fmt.Sprintf("StoreError (code %s): %s", e.Code, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a new Error with the given code, message and cause.
func NewError(code RetCode, msg string, err error) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
		Err:  err,
	}
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess          RetCode = iota // 0: Command executed successfully.
	RetCInternalError                   // 1: Command failed due to an internal error.
	RetCInvalidOperation                // 2: Invalid operation.
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInternalError:
		return "InternalError"
	case RetCInvalidOperation:
		return "InvalidOperation"
	default:
		return "Unknown"
	}
}
