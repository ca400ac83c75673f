package enums

// InvitationStatus tracks the lifecycle of a pairing invitation.
type InvitationStatus string

const (
	InvitationStatusPending   InvitationStatus = "pending"
	InvitationStatusAccepted  InvitationStatus = "accepted"
	InvitationStatusRejected  InvitationStatus = "rejected"
	InvitationStatusCancelled InvitationStatus = "cancelled"
)

// IsValid reports whether the status is a known lifecycle state.
func (s InvitationStatus) IsValid() bool {
	switch s {
	case InvitationStatusPending, InvitationStatusAccepted, InvitationStatusRejected, InvitationStatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether the status can no longer transition.
func (s InvitationStatus) IsTerminal() bool {
	return s.IsValid() && s != InvitationStatusPending
}
