package dams

// Action is an operation subject to access control.
type Action string

const (
	ActionReplace Action = "replace"
	ActionDelete  Action = "delete"
	ActionShare   Action = "share"
	ActionView    Action = "view"
)

// CanPerform reports whether actor may perform action on asset. granted is
// true when a share grant for (asset, actor) exists; it is only consulted
// for ActionView.
//
// Admins may do anything. Owners may replace, delete, share and view their
// own assets. Grantees may only view. Actors with an empty ID or an unknown
// role are denied everything.
func CanPerform(actor Actor, asset Asset, action Action, granted bool) bool {
	if !actor.IsValid() {
		return false
	}

	if actor.IsAdmin() {
		return true
	}

	owner := asset.OwnerID == actor.ID

	switch action {
	case ActionReplace, ActionDelete, ActionShare:
		return owner
	case ActionView:
		return owner || granted
	default:
		return false
	}
}
