package orders

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const deliveryCodeDigits = 6

var deliveryCodeSpace = big.NewInt(1_000_000)

// NewDeliveryCode returns a uniformly random zero-padded 6-digit code.
func NewDeliveryCode() (string, error) {
	n, err := rand.Int(rand.Reader, deliveryCodeSpace)
	if err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return fmt.Sprintf("%0*d", deliveryCodeDigits, n.Int64()), nil
}
