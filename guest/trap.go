package guest

import "fmt"

// TrapReason enumerates the defined causes of a host trap. A trap aborts
// instance creation during init, or ends the session during update/render.
type TrapReason int

const (
	TrapUnknownAsset TrapReason = iota
	TrapMissingAssetPack
	TrapBadDestination
	TrapUnreadableID
	TrapInitOnlyAfterInit
	TrapUnknownImport
	TrapSignatureMismatch
	TrapMemoryGrowLimit
	TrapIllegalInstruction
)

func (r TrapReason) String() string {
	switch r {
	case TrapUnknownAsset:
		return "unknown asset id"
	case TrapMissingAssetPack:
		return "asset pack absent"
	case TrapBadDestination:
		return "destination buffer too small"
	case TrapUnreadableID:
		return "asset id unreadable from guest memory"
	case TrapInitOnlyAfterInit:
		return "init-only call outside init"
	case TrapUnknownImport:
		return "unknown host import"
	case TrapSignatureMismatch:
		return "host import signature mismatch"
	case TrapMemoryGrowLimit:
		return "linear memory grow past limit"
	case TrapIllegalInstruction:
		return "illegal instruction"
	default:
		return "unknown trap"
	}
}

// Trap is a GuestTrap error: a defined, recoverable-by-the-driver failure
// that never leaves GuestState or guest memory partially mutated.
type Trap struct {
	Reason TrapReason
	Call   string
}

func (t *Trap) Error() string {
	if t.Call == "" {
		return fmt.Sprintf("guest trap: %s", t.Reason)
	}
	return fmt.Sprintf("guest trap in %s: %s", t.Call, t.Reason)
}

func newTrap(call string, reason TrapReason) error {
	return &Trap{Call: call, Reason: reason}
}
