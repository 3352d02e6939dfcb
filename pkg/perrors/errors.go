// Package perrors collects the error kinds the poller distinguishes:
// persistence failures, transport failures, and RPC protocol failures.
package perrors

import (
	"errors"
	"fmt"
)

// Persistence error kinds. Matched with errors.Is; this is the Go idiom
// for the Rust PersistenceError enum.
var (
	ErrNotFound      = errors.New("item not found")
	ErrAlreadyExists = errors.New("item already exists")
	ErrStoreClosed   = errors.New("storage is closed")
	ErrInvalidChain  = errors.New("invalid chain id")
)

// HTTPError is a transport-layer failure: the RPC endpoint responded
// with a status other than 200 OK.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http error %d: %s", e.StatusCode, e.Message)
}

// RPCError is a JSON-RPC protocol-level failure: the endpoint responded
// 200 OK but the envelope carried an "error" object.
type RPCError struct {
	Code    int
	Message string
	Data    any
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}
