package model

// API key tiers.
const (
	TierFree       = "free"
	TierPro        = "pro"
	TierEnterprise = "enterprise"
)

// APIKeyInfo is the value stored per key in the api_keys Redis hash.
type APIKeyInfo struct {
	Tier    string `json:"tier"`
	Active  bool   `json:"active"`
	Created int64  `json:"created"`
}

// RateLimit is the request budget of a tier within one window. Max 0 means unlimited.
type RateLimit struct {
	WindowSeconds int
	Max           int
}

// TierLimits maps each tier to its budget.
var TierLimits = map[string]RateLimit{
	TierFree:       {WindowSeconds: 900, Max: 500},
	TierPro:        {WindowSeconds: 900, Max: 5000},
	TierEnterprise: {WindowSeconds: 900, Max: 0},
}

// LimitFor returns the tier's budget, defaulting to the free tier.
func LimitFor(tier string) RateLimit {
	if l, ok := TierLimits[tier]; ok {
		return l
	}
	return TierLimits[TierFree]
}
