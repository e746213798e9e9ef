package enums

// SubscriptionStatus tracks a restaurant plan subscription.
type SubscriptionStatus string

const (
	SubscriptionStatusActive    SubscriptionStatus = "ACTIVE"
	SubscriptionStatusExpired   SubscriptionStatus = "EXPIRED"
	SubscriptionStatusCancelled SubscriptionStatus = "CANCELLED"
	SubscriptionStatusPending   SubscriptionStatus = "PENDING"
)

var validSubscriptionStatuses = []SubscriptionStatus{
	SubscriptionStatusActive,
	SubscriptionStatusExpired,
	SubscriptionStatusCancelled,
	SubscriptionStatusPending,
}

func (v SubscriptionStatus) String() string {
	return string(v)
}

func (v SubscriptionStatus) IsValid() bool {
	return member(validSubscriptionStatuses, v)
}

func ParseSubscriptionStatus(value string) (SubscriptionStatus, error) {
	return parse(validSubscriptionStatuses, value, "subscription status")
}
