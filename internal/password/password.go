package password

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost is used when no cost is configured.
const DefaultCost = bcrypt.DefaultCost

var ErrMismatch = errors.New("password does not match")

// Hash bcrypt-hashes plain with the given cost.
func Hash(plain string, cost int) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

// Compare returns ErrMismatch when plain does not match hash.
func Compare(hash, plain string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrMismatch
		}
		return fmt.Errorf("compare password: %w", err)
	}
	return nil
}

// Decoy compares passwords against a throwaway hash, so a lookup that found
// no account costs as much as a failed comparison.
type Decoy struct {
	cost int
	once sync.Once
	hash []byte
}

func NewDecoy(cost int) *Decoy {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	return &Decoy{cost: cost}
}

// Compare always fails. The hash is built on first use.
func (d *Decoy) Compare(plain string) {
	d.once.Do(func() {
		d.hash, _ = bcrypt.GenerateFromPassword([]byte("decoy-password"), d.cost)
	})
	_ = bcrypt.CompareHashAndPassword(d.hash, []byte(plain))
}

// Cost reports the bcrypt cost of the decoy hash once it has been built.
func (d *Decoy) Cost() (int, error) {
	return bcrypt.Cost(d.hash)
}
