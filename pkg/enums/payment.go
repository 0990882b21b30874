package enums

// PaymentMethod describes how a customer settles an order.
type PaymentMethod string

const (
	PaymentMethodWallet PaymentMethod = "wallet"
	PaymentMethodCash   PaymentMethod = "cash"
)

var paymentMethods = []PaymentMethod{PaymentMethodWallet, PaymentMethodCash}

func (p PaymentMethod) String() string { return string(p) }

func (p PaymentMethod) IsValid() bool { return isMember(paymentMethods, p) }

func ParsePaymentMethod(value string) (PaymentMethod, error) {
	return parseMember(paymentMethods, value, "payment method")
}

// PaymentStatus tracks whether an order has been charged. Cash orders stay
// not_required for their whole life.
type PaymentStatus string

const (
	PaymentStatusPending     PaymentStatus = "pending"
	PaymentStatusPaid        PaymentStatus = "paid"
	PaymentStatusRefunded    PaymentStatus = "refunded"
	PaymentStatusNotRequired PaymentStatus = "not_required"
)

var paymentStatuses = []PaymentStatus{
	PaymentStatusPending,
	PaymentStatusPaid,
	PaymentStatusRefunded,
	PaymentStatusNotRequired,
}

func (p PaymentStatus) String() string { return string(p) }

func (p PaymentStatus) IsValid() bool { return isMember(paymentStatuses, p) }

func ParsePaymentStatus(value string) (PaymentStatus, error) {
	return parseMember(paymentStatuses, value, "payment status")
}
