// Package errors provides the structured error taxonomy shared across the
// module: every failure that crosses a package boundary is represented as a
// *DocError* carrying one of the Kind values below, so callers can branch on
// Kind instead of parsing messages.
package errors

// Kind classifies a DocError for programmatic handling. Kinds are stable
// strings, not Go types, so they round-trip cleanly through logs, MCP error
// data, and telemetry rows.
type Kind string

const (
	// IoFailed covers filesystem and process I/O failures: a file could not
	// be read or written, a subprocess could not be started.
	IoFailed Kind = "IoFailed"

	// RenderFailed means the documentation renderer driver ran but did not
	// produce usable output (non-zero exit, no doc directory).
	RenderFailed Kind = "RenderFailed"

	// RenderOutputAmbiguous means the renderer produced zero or more than
	// one candidate output directory and the driver cannot pick one.
	RenderOutputAmbiguous Kind = "RenderOutputAmbiguous"

	// SelectorFailed means a page could not be parsed as HTML or the
	// extractor's content selector could not be set up. A page the selector
	// simply matches nothing in is skipped, not reported with this kind.
	SelectorFailed Kind = "SelectorFailed"

	// TokenizerFailed means the token-count estimator could not process a
	// document.
	TokenizerFailed Kind = "TokenizerFailed"

	// ProviderContract means an embedding or chat provider responded, but
	// its response violated the expected contract (wrong shape, missing
	// field, unexpected dimension count).
	ProviderContract Kind = "ProviderContract"

	// ProviderUnavailable means a provider could not be reached at all, or
	// its circuit breaker is open.
	ProviderUnavailable Kind = "ProviderUnavailable"

	// CodecFailed means a cached embedding could not be decoded (bad
	// version tag, truncated record, length mismatch).
	CodecFailed Kind = "CodecFailed"

	// MissingEnv means a required environment variable was not set.
	MissingEnv Kind = "MissingEnv"

	// UnknownPackage means a requested package could not be resolved
	// against the registry, even fuzzily.
	UnknownPackage Kind = "UnknownPackage"

	// ContextMissing means a query resolved a package but found nothing to
	// ground an answer in: the package has no embedded chunk, or the winning
	// chunk's document is not among the package's documents.
	ContextMissing Kind = "ContextMissing"

	// DimensionMismatch means two embeddings that should share a dimension
	// (query vs. stored) did not.
	DimensionMismatch Kind = "DimensionMismatch"

	// ProtocolError means an RPC request violated the MCP state machine or
	// request shape (e.g. a tool call before initialization).
	ProtocolError Kind = "ProtocolError"
)

// Category groups kinds for coarse-grained handling (logging level, retry
// eligibility, telemetry bucketing).
type Category string

const (
	CategoryIO       Category = "IO"
	CategoryRender   Category = "RENDER"
	CategoryExtract  Category = "EXTRACT"
	CategoryProvider Category = "PROVIDER"
	CategoryCache    Category = "CACHE"
	CategoryConfig   Category = "CONFIG"
	CategoryRegistry Category = "REGISTRY"
	CategoryQuery    Category = "QUERY"
	CategoryProtocol Category = "PROTOCOL"
	CategoryInternal Category = "INTERNAL"
)

// categoryForKind derives the Category a Kind belongs to.
func categoryForKind(k Kind) Category {
	switch k {
	case IoFailed:
		return CategoryIO
	case RenderFailed, RenderOutputAmbiguous:
		return CategoryRender
	case SelectorFailed, TokenizerFailed:
		return CategoryExtract
	case ProviderContract, ProviderUnavailable:
		return CategoryProvider
	case CodecFailed:
		return CategoryCache
	case MissingEnv:
		return CategoryConfig
	case UnknownPackage:
		return CategoryRegistry
	case ContextMissing, DimensionMismatch:
		return CategoryQuery
	case ProtocolError:
		return CategoryProtocol
	default:
		return CategoryInternal
	}
}

// retryableKind reports whether a Kind represents a transient condition
// worth retrying, as opposed to a structural one (SelectorFailed,
// UnknownPackage) that will not resolve itself on a second attempt.
func retryableKind(k Kind) bool {
	switch k {
	case ProviderUnavailable, IoFailed:
		return true
	default:
		return false
	}
}
