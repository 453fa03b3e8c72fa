//go:build !unix

package resource

// PriorityTier is one of the four scheduling tiers the monitor moves
// the process between.
type PriorityTier string

const (
	PriorityNormal      PriorityTier = "normal"
	PriorityBelowNormal PriorityTier = "below_normal"
	PriorityLow         PriorityTier = "low"
	PriorityIdle        PriorityTier = "idle"
)

// Priority adjustment is a no-op on platforms without setpriority.
func setProcessPriority(PriorityTier) error { return nil }
