package domain

// LegPolicy defines how the legs of an order set are submitted.
type LegPolicy string

const (
	LegPolicyAllOrNone  LegPolicy = "all_or_none" // cancel accepted legs if any leg fails
	LegPolicyBestEffort LegPolicy = "best_effort" // place all, accept partials
)
