package domain

import "time"

// Party is a marketplace participant: a renter, a car owner, or a driver.
type Party struct {
	ID        string
	Name      string
	Phone     string
	Email     string
	Role      PartyRole
	CreatedAt time.Time
}

// ValidPartyRole reports whether r is a known role.
func ValidPartyRole(r PartyRole) bool {
	switch r {
	case PartyRoleRenter, PartyRoleOwner, PartyRoleDriver:
		return true
	default:
		return false
	}
}
