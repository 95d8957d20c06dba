package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateUser(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	user, err := env.users.CreateUser(ctx, "jenny", "pass1234", "pass1234")
	require.NoError(t, err)
	assert.Equal(t, "jenny", user.Username)
	assert.NotEqual(t, "pass1234", user.PasswordHash)

	cart, err := env.carts.GetCart(ctx, "jenny")
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
}

func TestCreateUserValidation(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	t.Run("empty username -> invalid", func(t *testing.T) {
		_, err := env.users.CreateUser(ctx, "  ", "pass1234", "pass1234")
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("short password -> invalid", func(t *testing.T) {
		_, err := env.users.CreateUser(ctx, "jenny", "pass", "pass")
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("mismatched confirmation -> invalid", func(t *testing.T) {
		_, err := env.users.CreateUser(ctx, "jenny", "pass1234", "pass12345")
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("taken username -> exists", func(t *testing.T) {
		env.signup("taken")
		_, err := env.users.CreateUser(ctx, "taken", "pass1234", "pass1234")
		assert.ErrorIs(t, err, ErrUserExists)
	})
}

func TestAuthenticate(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	_, err := env.users.CreateUser(ctx, "jenny", "pass1234", "pass1234")
	require.NoError(t, err)

	user, err := env.users.Authenticate(ctx, "jenny", "pass1234")
	require.NoError(t, err)
	assert.Equal(t, "jenny", user.Username)

	_, err = env.users.Authenticate(ctx, "jenny", "passsssswwwwwwww")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = env.users.Authenticate(ctx, "jock", "passsssswwwwwwww")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestFindUser(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	created := env.signup("jack")

	byName, err := env.users.FindByUsername(ctx, "jack")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byName.ID)

	byID, err := env.users.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "jack", byID.Username)

	_, err = env.users.FindByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = env.users.FindByID(ctx, 404)
	assert.ErrorIs(t, err, ErrNotFound)
}
