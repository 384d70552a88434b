package services

import (
	"context"
	"errors"
	"testing"

	"github.com/adampresley/fotofacil/pkg/models"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignUpRequiresConfirmationBeforeSignIn(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	identity, err := env.identities.SignUp(ctx, SignUpInput{
		Email:    "  Ana@Example.com ",
		Password: "segredo123",
		Role:     "photographer",
		FullName: "Ana Souza",
	})

	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", identity.Email)
	assert.Equal(t, models.RolePhotographer, identity.Role)
	assert.False(t, identity.IsConfirmed())
	assert.Equal(t, 1, env.mailer.count("confirmation"))

	_, err = env.identities.SignIn(ctx, SignInInput{Email: "ana@example.com", Password: "segredo123"})
	assert.ErrorIs(t, err, models.ErrEmailNotConfirmed)

	confirmed, err := env.identities.ExchangeCode(ctx, env.mailer.codeFor("ana@example.com"))
	require.NoError(t, err)
	assert.True(t, confirmed.IsConfirmed())

	signedIn, err := env.identities.SignIn(ctx, SignInInput{Email: "ANA@example.com", Password: "segredo123"})
	require.NoError(t, err)
	assert.Equal(t, identity.ID, signedIn.ID)
}

func TestExchangeCodeCannotBeReused(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.signUpConfirmed(t, "bia@example.com", models.RoleClient)

	_, err := env.identities.ExchangeCode(ctx, env.mailer.codeFor("bia@example.com"))
	assert.ErrorIs(t, err, models.ErrInvalidCode)

	_, err = env.identities.ExchangeCode(ctx, "")
	assert.ErrorIs(t, err, models.ErrInvalidCode)
}

func TestSignInFailures(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.signUpConfirmed(t, "caio@example.com", models.RoleClient)

	_, err := env.identities.SignIn(ctx, SignInInput{Email: "caio@example.com", Password: "errada123"})
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)

	_, err = env.identities.SignIn(ctx, SignInInput{Email: "ninguem@example.com", Password: "segredo123"})
	assert.ErrorIs(t, err, models.ErrIdentityNotFound)

	_, err = env.identities.SignIn(ctx, SignInInput{Email: "nao-e-email", Password: ""})
	var validationErrors validation.Errors
	require.True(t, errors.As(err, &validationErrors))
	assert.Contains(t, validationErrors, "Email")
	assert.Contains(t, validationErrors, "Password")
}

func TestSignUpRejectsUnknownRoleAndDuplicates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.identities.SignUp(ctx, SignUpInput{
		Email:    "dani@example.com",
		Password: "segredo123",
		Role:     "admin",
		FullName: "Dani",
	})

	var validationErrors validation.Errors
	require.True(t, errors.As(err, &validationErrors))
	assert.Contains(t, validationErrors, "Role")

	env.signUpConfirmed(t, "dani@example.com", models.RoleClient)

	_, err = env.identities.SignUp(ctx, SignUpInput{
		Email:    "DANI@example.com",
		Password: "segredo123",
		Role:     "client",
		FullName: "Dani",
	})
	assert.ErrorIs(t, err, models.ErrEmailTaken)
}

func TestSignUpReportsMailFailureButKeepsIdentity(t *testing.T) {
	env := newTestEnv(t)
	env.mailer.err = errors.New("provider down")

	identity, err := env.identities.SignUp(context.Background(), SignUpInput{
		Email:    "edu@example.com",
		Password: "segredo123",
		Role:     "client",
		FullName: "Edu",
	})

	assert.ErrorIs(t, err, ErrEmailNotSent)
	require.NotNil(t, identity)

	stored, err := env.identities.GetByID(context.Background(), identity.ID)
	require.NoError(t, err)
	assert.Equal(t, "edu@example.com", stored.Email)
}
