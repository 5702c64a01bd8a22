package referralDataService

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// Ambiguous glyphs (0/O, 1/I/L) are left out so codes survive being read aloud.
const referralCodeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

type CodeGenerator func(length int) (string, error)

func RandomReferralCode(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("invalid referral code length %d", length)
	}
	alphabetSize := big.NewInt(int64(len(referralCodeAlphabet)))
	code := make([]byte, length)
	for i := range code {
		n, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return "", err
		}
		code[i] = referralCodeAlphabet[n.Int64()]
	}
	return string(code), nil
}
