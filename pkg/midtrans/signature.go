package midtrans

import (
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

// Signature computes the notification signature Midtrans attaches to every
// HTTP notification: hex(SHA512(order_id + status_code + gross_amount + server_key)).
func Signature(serverKey, orderID, statusCode, grossAmount string) string {
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(sum[:])
}

func VerifySignature(serverKey, orderID, statusCode, grossAmount, signature string) bool {
	if serverKey == "" || signature == "" {
		return false
	}
	expected := Signature(serverKey, orderID, statusCode, grossAmount)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(strings.ToLower(signature))) == 1
}
