package enums

// Role is the platform-wide role carried in access tokens.
type Role string

const (
	RoleUser            Role = "USER"
	RoleRestaurantOwner Role = "RESTAURANT_OWNER"
	RoleAdmin           Role = "ADMIN"
	RoleSubAdmin        Role = "SUB_ADMIN"
)

var validRoles = []Role{
	RoleUser,
	RoleRestaurantOwner,
	RoleAdmin,
	RoleSubAdmin,
}

func (v Role) String() string {
	return string(v)
}

func (v Role) IsValid() bool {
	return member(validRoles, v)
}

func ParseRole(value string) (Role, error) {
	return parse(validRoles, value, "role")
}

// IsStaff reports whether the role belongs to the platform back office.
func (v Role) IsStaff() bool {
	return v == RoleAdmin || v == RoleSubAdmin
}
