package auth

import "github.com/angelmondragon/tablestars-backend/pkg/enums"

// Capability names a permission checked by route middleware.
type Capability string

const (
	CapClientBalance       Capability = "client:balance"
	CapClientProfile       Capability = "client:profile"
	CapRestaurantManage    Capability = "restaurant:manage"
	CapRestaurantTopUp     Capability = "restaurant:topup"
	CapRestaurantSubscribe Capability = "restaurant:subscribe"
	CapAdminRead           Capability = "admin:read"
	CapAdminSubscriptions  Capability = "admin:subscriptions"
	CapAdminPlans          Capability = "admin:plans"
	CapAdminUsers          Capability = "admin:users"
)

var allCapabilities = []Capability{
	CapClientBalance,
	CapClientProfile,
	CapRestaurantManage,
	CapRestaurantTopUp,
	CapRestaurantSubscribe,
	CapAdminRead,
	CapAdminSubscriptions,
	CapAdminPlans,
	CapAdminUsers,
}

// Capabilities is the set granted to a role.
type Capabilities map[Capability]struct{}

var subAdminCaps = []Capability{CapAdminRead, CapAdminSubscriptions}

var capsByRole = map[enums.Role][]Capability{
	enums.RoleUser:            {CapClientBalance, CapClientProfile},
	enums.RoleRestaurantOwner: {CapRestaurantManage, CapRestaurantTopUp, CapRestaurantSubscribe},
	enums.RoleSubAdmin:        subAdminCaps,
	enums.RoleAdmin:           append(append([]Capability{}, subAdminCaps...), CapAdminPlans, CapAdminUsers),
}

// CapabilitiesFor resolves the capability set of role. Unknown roles get none.
func CapabilitiesFor(role enums.Role) Capabilities {
	caps := make(Capabilities, len(capsByRole[role]))
	for _, c := range capsByRole[role] {
		caps[c] = struct{}{}
	}
	return caps
}

func (c Capabilities) Has(want Capability) bool {
	_, ok := c[want]
	return ok
}

// List returns the granted capabilities in a stable order.
func (c Capabilities) List() []Capability {
	out := make([]Capability, 0, len(c))
	for _, candidate := range allCapabilities {
		if c.Has(candidate) {
			out = append(out, candidate)
		}
	}
	return out
}
