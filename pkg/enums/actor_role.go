package enums

// ActorRole is the coarse role carried in the access token.
type ActorRole string

const (
	RoleBuyer      ActorRole = "buyer"
	RoleRestaurant ActorRole = "restaurant"
	RoleAdmin      ActorRole = "admin"
)

// String implements fmt.Stringer.
func (r ActorRole) String() string {
	return string(r)
}

// IsValid reports whether the value is a known ActorRole.
func (r ActorRole) IsValid() bool {
	switch r {
	case RoleBuyer, RoleRestaurant, RoleAdmin:
		return true
	default:
		return false
	}
}
