package security

import (
	"crypto/rand"
	"errors"
	"math/big"
)

const secretAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%&*"

// GenerateRandomSecret returns a random string with a length chosen uniformly in [minLen, maxLen].
func GenerateRandomSecret(minLen, maxLen int) (string, error) {
	if minLen < 1 || maxLen < minLen {
		return "", errors.New("invalid secret length range")
	}

	span, err := randomInt(maxLen - minLen + 1)
	if err != nil {
		return "", err
	}

	out := make([]byte, minLen+span)
	for i := range out {
		idx, err := randomInt(len(secretAlphabet))
		if err != nil {
			return "", err
		}
		out[i] = secretAlphabet[idx]
	}

	return string(out), nil
}

// GenerateNumericCode returns a code of the given number of digits without a leading zero.
func GenerateNumericCode(digits int) (string, error) {
	if digits < 1 || digits > 18 {
		return "", errors.New("invalid code length")
	}

	low := int64(1)
	for i := 1; i < digits; i++ {
		low *= 10
	}
	n, err := rand.Int(rand.Reader, big.NewInt(low*9))
	if err != nil {
		return "", err
	}

	return big.NewInt(0).Add(n, big.NewInt(low)).String(), nil
}

func randomInt(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, err
	}
	return int(v.Int64()), nil
}
