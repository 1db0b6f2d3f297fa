// Package errkind is the shared error taxonomy the pipeline's components
// tag their failures with, so the orchestrator can decide what's retryable,
// what's fatal, and what needs a reorg repair rather than a retry.
package errkind

import "fmt"

// Kind classifies a pipeline failure.
type Kind int

const (
	// Config covers malformed or inconsistent configuration, caught at
	// startup before any component runs.
	Config Kind = iota
	// RpcUnavailable is a transport-level RPC failure that exhausted retries.
	RpcUnavailable
	// RpcApplication is a server-returned application error (e.g. "range too
	// large"), never retried as-is.
	RpcApplication
	// CacheWrite is a failure writing to the cache store.
	CacheWrite
	// HandlerError is a failure inside a user-supplied handler function.
	HandlerError
	// Reorg is a shallow reorg, within the configured finality depth.
	Reorg
	// DeepReorg is a reorg whose common ancestor lies beyond the configured
	// finality depth; the pipeline cannot safely repair this on its own.
	DeepReorg
)

func (k Kind) String() string {
	switch k {
	case Config:
		return "config"
	case RpcUnavailable:
		return "rpc_unavailable"
	case RpcApplication:
		return "rpc_application"
	case CacheWrite:
		return "cache_write"
	case HandlerError:
		return "handler_error"
	case Reorg:
		return "reorg"
	case DeepReorg:
		return "deep_reorg"
	default:
		return "unknown"
	}
}

// Error is a pipeline failure tagged with a Kind, so callers can branch on
// classification (errors.As) instead of string matching.
type Error struct {
	Kind Kind
	Err  error

	// SuggestedFromBlock/SuggestedToBlock are populated when Kind ==
	// RpcApplication and the provider's error message embedded a narrower
	// block range to retry with.
	SuggestedFromBlock uint64
	SuggestedToBlock   uint64
	HasSuggestedRange  bool
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New wraps err with the given kind.
func New(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// NewApplicationError wraps err as RpcApplication, optionally carrying a
// suggested narrower range extracted from the provider's message.
func NewApplicationError(err error, suggestedFrom, suggestedTo uint64, hasSuggestion bool) *Error {
	return &Error{
		Kind:               RpcApplication,
		Err:                err,
		SuggestedFromBlock: suggestedFrom,
		SuggestedToBlock:   suggestedTo,
		HasSuggestedRange:  hasSuggestion,
	}
}
