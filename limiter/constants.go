package limiter

import "time"

// Endpoint categories
const (
	CategoryContact = "contact"
	CategoryGitHub  = "github"
	CategoryChatbot = "chatbot"
	CategoryGeneral = "general"
)

// Storage types
const (
	StorageMemory = "memory"
	StorageRedis  = "redis"
)

const (
	// DefaultCapacity bounds the number of identifiers a memory store tracks.
	DefaultCapacity = 10000
	// DefaultCleanupInterval is the minimum time between expiry sweeps.
	DefaultCleanupInterval = time.Minute
)

// DefaultPolicies are the per-category limits used when no override is configured.
var DefaultPolicies = map[string]Policy{
	CategoryContact: {Limit: 5, Window: time.Minute},
	CategoryGitHub:  {Limit: 10, Window: time.Minute},
	CategoryChatbot: {Limit: 20, Window: time.Minute},
	CategoryGeneral: {Limit: 30, Window: time.Minute},
}
