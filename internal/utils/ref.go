package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/google/uuid"
)

// ShortRef returns "<prefix>-<n lowercase hex chars>" taken from a random
// UUID.  n is clamped to [1,32].
func ShortRef(prefix string, n int) string {
	if n < 1 {
		n = 1
	}
	if n > 32 {
		n = 32
	}
	u := uuid.New()
	return prefix + "-" + hex.EncodeToString(u[:])[:n]
}

// DevPaymentRef returns a development payment token such as DEV-4821.
func DevPaymentRef() string {
	return fmt.Sprintf("DEV-%d", 1000+randIntN(9000))
}

// NumericCode returns a random code of n decimal digits.
func NumericCode(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte('0' + randIntN(10))
	}
	return string(b)
}

// randIntN returns a uniform value in [0, n) from crypto/rand.
func randIntN(n int) int {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		// crypto/rand.Reader does not fail on supported platforms
		panic(err)
	}
	return int(v.Int64())
}
