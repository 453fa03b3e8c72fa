//go:build unix

package resource

import "golang.org/x/sys/unix"

// PriorityTier is one of the four scheduling tiers the monitor moves
// the process between.
type PriorityTier string

const (
	PriorityNormal      PriorityTier = "normal"
	PriorityBelowNormal PriorityTier = "below_normal"
	PriorityLow         PriorityTier = "low"
	PriorityIdle        PriorityTier = "idle"
)

// niceFor maps tiers onto nice values. Raising nice never requires
// privileges; lowering it back toward 0 may fail for unprivileged
// processes and is reported as an error to the caller.
func niceFor(tier PriorityTier) int {
	switch tier {
	case PriorityIdle:
		return 19
	case PriorityLow:
		return 15
	case PriorityBelowNormal:
		return 10
	default:
		return 0
	}
}

func setProcessPriority(tier PriorityTier) error {
	return unix.Setpriority(unix.PRIO_PROCESS, 0, niceFor(tier))
}
