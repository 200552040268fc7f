package visit

import "time"

// AllowedActions is the server's decision of what the viewer may do with a
// visit. Nothing is offered on an invalid visit or once the visit has started.
func AllowedActions(v *Visit, now time.Time) []ActionCode {
	if !v.IsValidVisit || !v.StartDate.After(now) {
		return []ActionCode{}
	}

	switch v.Status {
	case StatusPending:
		if v.Role.OwnerSide() {
			return []ActionCode{ActionApprove, ActionReject}
		}
		return []ActionCode{ActionCancel}
	case StatusAccepted:
		return []ActionCode{ActionCancel}
	default:
		return []ActionCode{}
	}
}
