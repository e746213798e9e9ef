package enums

// NotificationType maps to notifications.type.
type NotificationType string

const (
	NotificationTypeStarsEarned     NotificationType = "stars_earned"
	NotificationTypePaymentSent     NotificationType = "payment_sent"
	NotificationTypePaymentReceived NotificationType = "payment_received"
	NotificationTypeGiftSent        NotificationType = "gift_sent"
	NotificationTypeGiftReceived    NotificationType = "gift_received"
	NotificationTypeTopUp           NotificationType = "top_up"
	NotificationTypeSubscription    NotificationType = "subscription"
)

var validNotificationTypes = []NotificationType{
	NotificationTypeStarsEarned,
	NotificationTypePaymentSent,
	NotificationTypePaymentReceived,
	NotificationTypeGiftSent,
	NotificationTypeGiftReceived,
	NotificationTypeTopUp,
	NotificationTypeSubscription,
}

func (v NotificationType) String() string {
	return string(v)
}

func (v NotificationType) IsValid() bool {
	return member(validNotificationTypes, v)
}

func ParseNotificationType(value string) (NotificationType, error) {
	return parse(validNotificationTypes, value, "notification type")
}
