package enums

type TopupGateway string

const (
	TopupGatewayMidtrans TopupGateway = "midtrans"
	TopupGatewayDemo     TopupGateway = "demo"
)

var topupGateways = []TopupGateway{TopupGatewayMidtrans, TopupGatewayDemo}

func (t TopupGateway) String() string { return string(t) }

func (t TopupGateway) IsValid() bool { return isMember(topupGateways, t) }

func ParseTopupGateway(value string) (TopupGateway, error) {
	return parseMember(topupGateways, value, "topup gateway")
}

// TopupStatus moves pending -> completed or pending -> failed, never back.
type TopupStatus string

const (
	TopupStatusPending   TopupStatus = "pending"
	TopupStatusCompleted TopupStatus = "completed"
	TopupStatusFailed    TopupStatus = "failed"
)

var topupStatuses = []TopupStatus{TopupStatusPending, TopupStatusCompleted, TopupStatusFailed}

func (t TopupStatus) String() string { return string(t) }

func (t TopupStatus) IsValid() bool { return isMember(topupStatuses, t) }

func ParseTopupStatus(value string) (TopupStatus, error) {
	return parseMember(topupStatuses, value, "topup status")
}
