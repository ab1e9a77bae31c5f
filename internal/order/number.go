package order

import (
	"crypto/rand"
	"math/big"
	"strconv"
	"time"
)

const base36 = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

var base36Len = big.NewInt(int64(len(base36)))

// NewOrderNumber returns NEFOL- followed by six upper-case base36 characters.
func NewOrderNumber() (string, error) {
	suffix, err := randomBase36(6)
	if err != nil {
		return "", err
	}
	return "NEFOL-" + suffix, nil
}

// NewInvoiceNumber returns INV-<unix millis>-<four base36 characters>.
func NewInvoiceNumber(now time.Time) (string, error) {
	suffix, err := randomBase36(4)
	if err != nil {
		return "", err
	}
	return "INV-" + strconv.FormatInt(now.UnixMilli(), 10) + "-" + suffix, nil
}

func randomBase36(n int) (string, error) {
	buf := make([]byte, n)
	for i := range buf {
		idx, err := rand.Int(rand.Reader, base36Len)
		if err != nil {
			return "", err
		}
		buf[i] = base36[idx.Int64()]
	}
	return string(buf), nil
}
