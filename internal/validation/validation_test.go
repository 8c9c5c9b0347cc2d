package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stellar-social/stellar/internal/apperr"
)

type signupForm struct {
	Email    string `json:"email" validate:"required,mailbox"`
	Password string `json:"password" validate:"required,min=6"`
	FullName string `json:"fullName" validate:"required"`
}

func TestIsMailbox(t *testing.T) {
	assert.True(t, IsMailbox("a@x.com"))
	assert.True(t, IsMailbox("first.last+tag@sub.example.org"))
	assert.False(t, IsMailbox("a@x"))
	assert.False(t, IsMailbox("a x@y.com"))
	assert.False(t, IsMailbox("ax.com"))
	assert.False(t, IsMailbox(""))
}

func TestStruct(t *testing.T) {
	require.NoError(t, Struct(signupForm{Email: "a@x.com", Password: "secret1", FullName: "Ann"}))

	err := Struct(signupForm{Email: "a@x.com", Password: "secret1"})
	require.ErrorIs(t, err, apperr.ErrValidation)
	assert.Equal(t, "All fields are required", err.(*apperr.Error).Message)

	err = Struct(signupForm{Email: "a@x", Password: "secret1", FullName: "Ann"})
	require.ErrorIs(t, err, apperr.ErrValidation)
	assert.Equal(t, "Invalid email format", err.(*apperr.Error).Message)

	err = Struct(signupForm{Email: "a@x.com", Password: "12345", FullName: "Ann"})
	require.ErrorIs(t, err, apperr.ErrValidation)
	assert.Equal(t, "password must be at least 6 characters", err.(*apperr.Error).Message)
}
