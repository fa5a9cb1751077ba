package shared

// ExitReason represents the reason a long position was exited.
type ExitReason int

const (
	NoExit ExitReason = iota
	ForceExit
	StopLoss
	Target
	TrendReversal
	DataGap
)

// String stringifies the provided exit reason.
func (r ExitReason) String() string {
	switch r {
	case NoExit:
		return "none"
	case ForceExit:
		return "force-exit"
	case StopLoss:
		return "stop-loss"
	case Target:
		return "target"
	case TrendReversal:
		return "trend-reversal"
	case DataGap:
		return "data-gap"
	default:
		return "unknown"
	}
}

// HaltReason represents the reason trading was halted for the day.
type HaltReason int

const (
	NotHalted HaltReason = iota
	ProfitTargetReached
	MaxLossReached
)

// String stringifies the provided halt reason.
func (r HaltReason) String() string {
	switch r {
	case NotHalted:
		return "none"
	case ProfitTargetReached:
		return "profit target reached"
	case MaxLossReached:
		return "max loss reached"
	default:
		return "unknown"
	}
}

// ParseHaltReason returns the halt reason for the provided string.
func ParseHaltReason(s string) HaltReason {
	switch s {
	case "profit target reached":
		return ProfitTargetReached
	case "max loss reached":
		return MaxLossReached
	default:
		return NotHalted
	}
}
