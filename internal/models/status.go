package models

// ItemStatus is the lifecycle state of an item.
type ItemStatus string

const (
	StatusAvailable ItemStatus = "available"
	StatusPending   ItemStatus = "pending"
	StatusPickedUp  ItemStatus = "picked_up"
	StatusExpired   ItemStatus = "expired"
)

// AllStatuses lists every valid ItemStatus value.
var AllStatuses = []ItemStatus{StatusAvailable, StatusPending, StatusPickedUp, StatusExpired}

// IsValid reports whether s is one of the known status values.
func (s ItemStatus) IsValid() bool {
	switch s {
	case StatusAvailable, StatusPending, StatusPickedUp, StatusExpired:
		return true
	}
	return false
}

// IsTerminal reports whether no further transitions are permitted out of s.
// Only picked_up is hard-terminal: expired items may still be re-listed by
// their owner.
func (s ItemStatus) IsTerminal() bool {
	return s == StatusPickedUp
}

// StatusPolicy decides which status transitions are legal for which actor.
// AllowOwnerExpire controls whether an owner may move their own item directly
// into expired without going through the sweep.
type StatusPolicy struct {
	AllowOwnerExpire bool
}

// CanTransition reports whether the actor may move an item from current to next.
//
// Owners may move freely between states as long as the item is not already
// picked_up. Non-owners may only request a pickup, i.e. available -> pending.
// Nothing transitions out of picked_up for any actor.
func (p StatusPolicy) CanTransition(current, next ItemStatus, isOwner bool) bool {
	if !current.IsValid() || !next.IsValid() {
		return false
	}
	if current == StatusPickedUp {
		return false
	}
	if isOwner {
		if next == StatusExpired && !p.AllowOwnerExpire {
			return false
		}
		return true
	}
	return current == StatusAvailable && next == StatusPending
}

// StatusInfo is presentation metadata for a status value.
type StatusInfo struct {
	Label       string `json:"label"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
}

var statusInfoTable = map[ItemStatus]StatusInfo{
	StatusAvailable: {
		Label:       "Available",
		Severity:    "success",
		Description: "This item is available for pickup.",
	},
	StatusPending: {
		Label:       "Pickup pending",
		Severity:    "warning",
		Description: "Someone has arranged to pick this item up.",
	},
	StatusPickedUp: {
		Label:       "Picked up",
		Severity:    "neutral",
		Description: "This item has been picked up and is no longer available.",
	},
	StatusExpired: {
		Label:       "Expired",
		Severity:    "danger",
		Description: "The pickup deadline for this item has passed.",
	},
}

// Info returns the presentation metadata for s. It is total: an unknown
// status falls back to the available entry rather than panicking.
func (s ItemStatus) Info() StatusInfo {
	if info, ok := statusInfoTable[s]; ok {
		return info
	}
	return statusInfoTable[StatusAvailable]
}
