package password_test

import (
	"testing"

	"github.com/ErlanBelekov/authflow/internal/password"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashAndCompare(t *testing.T) {
	h, err := password.Hash("123456", bcrypt.MinCost)
	require.NoError(t, err)
	assert.NotEqual(t, "123456", h)

	assert.NoError(t, password.Compare(h, "123456"))
	assert.ErrorIs(t, password.Compare(h, "654321"), password.ErrMismatch)
}

func TestCompare_GarbageHash(t *testing.T) {
	err := password.Compare("not-a-bcrypt-hash", "123456")
	require.Error(t, err)
	assert.NotErrorIs(t, err, password.ErrMismatch)
}

func TestDecoy_MatchesConfiguredCost(t *testing.T) {
	d := password.NewDecoy(bcrypt.MinCost)
	d.Compare("123456")
	d.Compare("decoy-password")

	cost, err := d.Cost()
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost, cost)
}

func TestNewDecoy_OutOfRangeCostFallsBack(t *testing.T) {
	d := password.NewDecoy(0)
	d.Compare("123456")

	cost, err := d.Cost()
	require.NoError(t, err)
	assert.Equal(t, password.DefaultCost, cost)
}
