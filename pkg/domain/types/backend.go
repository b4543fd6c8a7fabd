package types

// BackendKind selects the semantic memory backend implementation
type BackendKind string

const (
	// BackendRemote talks to the hosted semantic memory service over HTTP
	BackendRemote BackendKind = "remote"
	// BackendLocal keeps memories in an embedded vector database (development mode)
	BackendLocal BackendKind = "local"
)

// IsValid checks if the backend kind is valid
func (k BackendKind) IsValid() bool {
	switch k {
	case BackendRemote, BackendLocal:
		return true
	default:
		return false
	}
}

// String returns the string representation of the backend kind
func (k BackendKind) String() string {
	return string(k)
}
