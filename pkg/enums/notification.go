package enums

// NotificationType labels an in-app notification row and its realtime event.
type NotificationType string

const (
	NotificationTypeOrderPlaced         NotificationType = "order_placed"
	NotificationTypeOrderStatus         NotificationType = "order_status"
	NotificationTypeRiderAssigned       NotificationType = "rider_assigned"
	NotificationTypePaymentConfirmation NotificationType = "payment_confirmation"
	NotificationTypeWalletCredited      NotificationType = "wallet_credited"
	NotificationTypeWalletCreated       NotificationType = "wallet_created"
	NotificationTypeTopupFailed         NotificationType = "topup_failed"
)

var notificationTypes = []NotificationType{
	NotificationTypeOrderPlaced,
	NotificationTypeOrderStatus,
	NotificationTypeRiderAssigned,
	NotificationTypePaymentConfirmation,
	NotificationTypeWalletCredited,
	NotificationTypeWalletCreated,
	NotificationTypeTopupFailed,
}

func (n NotificationType) String() string { return string(n) }

func (n NotificationType) IsValid() bool { return isMember(notificationTypes, n) }

func ParseNotificationType(value string) (NotificationType, error) {
	return parseMember(notificationTypes, value, "notification type")
}
