package services

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"

	"github.com/google/uuid"
)

const (
	pollIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	pollIDLength   = 6
)

var pollIDAlphabetSize = big.NewInt(int64(len(pollIDAlphabet)))

// newPollID returns a short code participants can type to join a poll.
// Every character is drawn uniformly from the alphabet.
func newPollID() (string, error) {
	return pollIDFrom(rand.Reader)
}

func pollIDFrom(r io.Reader) (string, error) {
	b := make([]byte, pollIDLength)
	for i := range b {
		n, err := rand.Int(r, pollIDAlphabetSize)
		if err != nil {
			return "", fmt.Errorf("failed to generate poll id: %w", err)
		}
		b[i] = pollIDAlphabet[n.Int64()]
	}
	return string(b), nil
}

func newUserID() string {
	return uuid.NewString()
}

// newNominationID returns a time ordered id so that nominations sort in
// the order they were made.
func newNominationID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("failed to generate nomination id: %w", err)
	}
	return id.String(), nil
}
