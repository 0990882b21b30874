package enums

type WalletStatus string

const (
	WalletStatusActive    WalletStatus = "active"
	WalletStatusSuspended WalletStatus = "suspended"
	WalletStatusClosed    WalletStatus = "closed"
)

var walletStatuses = []WalletStatus{WalletStatusActive, WalletStatusSuspended, WalletStatusClosed}

func (w WalletStatus) String() string { return string(w) }

func (w WalletStatus) IsValid() bool { return isMember(walletStatuses, w) }

func ParseWalletStatus(value string) (WalletStatus, error) {
	return parseMember(walletStatuses, value, "wallet status")
}

// WalletTransactionType is the direction of a ledger entry. Amounts are
// always stored positive.
type WalletTransactionType string

const (
	WalletTransactionTypeCredit WalletTransactionType = "credit"
	WalletTransactionTypeDebit  WalletTransactionType = "debit"
)

var walletTransactionTypes = []WalletTransactionType{WalletTransactionTypeCredit, WalletTransactionTypeDebit}

func (w WalletTransactionType) String() string { return string(w) }

func (w WalletTransactionType) IsValid() bool { return isMember(walletTransactionTypes, w) }

func ParseWalletTransactionType(value string) (WalletTransactionType, error) {
	return parseMember(walletTransactionTypes, value, "wallet transaction type")
}
