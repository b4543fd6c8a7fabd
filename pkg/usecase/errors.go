package usecase

import "github.com/m-mizutani/goerr/v2"

// Sentinel errors for use case layer
var (
	ErrOwnerRequired = goerr.New("owner ID is required")
)

// Context keys for error values
const (
	OwnerIDKey  = "owner_id"
	IntentKey   = "intent"
	RuleKey     = "rule"
	CategoryKey = "category"
)
