package utils

import (
	"crypto/rand"

	"github.com/oklog/ulid/v2"
)

var entropy = rand.Reader

// NewULID returns a fresh identifier used to tag the log lines of a transfer
func NewULID() (ulid.ULID, error) {
	id, err := ulid.New(ulid.Now(), entropy)
	if err != nil {
		return ulid.ULID{}, err
	}
	return id, nil
}

