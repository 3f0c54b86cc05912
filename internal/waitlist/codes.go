package waitlist

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
)

const (
	codeLength   = 6
	codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	codeAttempts = 10
)

var errCodeSpaceExhausted = errors.New("could not allocate a unique confirmation code")

// CodeGenerator produces candidate confirmation codes.
type CodeGenerator func() (string, error)

// RandomCode draws a code from an alphabet without the easily confused
// characters 0, O, 1 and I.
func RandomCode() (string, error) {
	out := make([]byte, codeLength)
	max := big.NewInt(int64(len(codeAlphabet)))
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = codeAlphabet[n.Int64()]
	}
	return string(out), nil
}

// uniqueCode draws codes until one is not held by an active entry of the
// restaurant. The caller holds the restaurant lock.
func (s *Service) uniqueCode(ctx context.Context, restaurantID string) (string, error) {
	for attempt := 0; attempt < codeAttempts; attempt++ {
		code, err := s.codes()
		if err != nil {
			return "", err
		}
		inUse, err := s.store.ConfirmationCodeInUse(ctx, restaurantID, code)
		if err != nil {
			return "", err
		}
		if !inUse {
			return code, nil
		}
	}
	return "", errCodeSpaceExhausted
}
