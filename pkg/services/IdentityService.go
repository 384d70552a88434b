package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/adampresley/fotofacil/pkg/models"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/google/uuid"
	"github.com/rfberaldo/sqlz"
	"golang.org/x/crypto/bcrypt"
)

type IdentityServicer interface {
	ExchangeCode(ctx context.Context, code string) (*models.Identity, error)
	GetByEmail(ctx context.Context, email string) (*models.Identity, error)
	GetByID(ctx context.Context, id uint) (*models.Identity, error)
	SignIn(ctx context.Context, input SignInInput) (*models.Identity, error)
	SignUp(ctx context.Context, input SignUpInput) (*models.Identity, error)
}

type SignUpInput struct {
	Email    string
	Password string
	Role     string
	FullName string
	Company  string
	Phone    string
}

func (i SignUpInput) Validate() error {
	return validation.ValidateStruct(&i,
		validation.Field(&i.Email,
			validation.Required.Error("informe o e-mail"),
			is.EmailFormat.Error("e-mail inválido"),
			validation.Length(5, 255).Error("e-mail inválido"),
		),
		validation.Field(&i.Password,
			validation.Required.Error("informe a senha"),
			validation.Length(8, 128).Error("a senha deve ter entre 8 e 128 caracteres"),
			validation.Match(regexp.MustCompile(`[0-9]`)).Error("a senha deve conter ao menos um número"),
		),
		validation.Field(&i.Role,
			validation.Required.Error("escolha um perfil"),
			validation.In(string(models.RolePhotographer), string(models.RoleClient)).Error("perfil inválido"),
		),
		validation.Field(&i.FullName,
			validation.Required.Error("informe o nome completo"),
			validation.Length(2, 100).Error("o nome deve ter entre 2 e 100 caracteres"),
		),
		validation.Field(&i.Phone,
			validation.When(i.Phone != "",
				validation.Match(regexp.MustCompile(`^\+?[0-9 ()-]{8,20}$`)).Error("telefone inválido"),
			),
		),
	)
}

type SignInInput struct {
	Email    string
	Password string
}

func (i SignInInput) Validate() error {
	return validation.ValidateStruct(&i,
		validation.Field(&i.Email,
			validation.Required.Error("informe o e-mail"),
			is.EmailFormat.Error("e-mail inválido"),
		),
		validation.Field(&i.Password,
			validation.Required.Error("informe a senha"),
		),
	)
}

type IdentityServiceConfig struct {
	BaseURL    string
	BcryptCost int
	DB         *sqlz.DB
	Mailer     Mailer
}

type IdentityService struct {
	baseURL    string
	bcryptCost int
	db         *sqlz.DB
	mailer     Mailer
}

func NewIdentityService(config IdentityServiceConfig) IdentityService {
	if config.BcryptCost == 0 {
		config.BcryptCost = bcrypt.DefaultCost
	}

	return IdentityService{
		baseURL:    strings.TrimSuffix(config.BaseURL, "/"),
		bcryptCost: config.BcryptCost,
		db:         config.DB,
		mailer:     config.Mailer,
	}
}

const identityColumns = `
   i.id
   , i.created_at
   , i.updated_at
   , i.deleted_at
   , i.email
   , i.password_hash
   , i.role
   , i.full_name
   , i.company
   , i.phone
   , i.email_confirmed_at
   , i.confirmation_code
`

func (s IdentityService) GetByID(ctx context.Context, id uint) (*models.Identity, error) {
	result := &models.Identity{}

	sql := `
SELECT` + identityColumns + `
FROM identities AS i
WHERE 1=1
   AND i.deleted_at IS NULL
   AND i.id=?
`

	if err := s.db.QueryRow(ctx, result, sql, id); err != nil {
		if sqlz.IsNotFound(err) {
			return nil, models.ErrIdentityNotFound
		}

		return nil, fmt.Errorf("error querying for identity %d: %w", id, err)
	}

	return result, nil
}

func (s IdentityService) GetByEmail(ctx context.Context, email string) (*models.Identity, error) {
	result := &models.Identity{}

	sql := `
SELECT` + identityColumns + `
FROM identities AS i
WHERE 1=1
   AND i.deleted_at IS NULL
   AND i.email=?
`

	if err := s.db.QueryRow(ctx, result, sql, normalizeEmail(email)); err != nil {
		if sqlz.IsNotFound(err) {
			return nil, models.ErrIdentityNotFound
		}

		return nil, fmt.Errorf("error querying for identity by email: %w", err)
	}

	return result, nil
}

/*
SignUp creates an identity with one of the two known roles and emails a
confirmation code. The account cannot sign in until the code is exchanged.
*/
func (s IdentityService) SignUp(ctx context.Context, input SignUpInput) (*models.Identity, error) {
	var (
		err  error
		role models.Role
		hash []byte
	)

	input.Email = normalizeEmail(input.Email)
	input.FullName = strings.TrimSpace(input.FullName)

	if err = input.Validate(); err != nil {
		return nil, err
	}

	if role, err = models.ParseRole(input.Role); err != nil {
		return nil, err
	}

	if _, err = s.GetByEmail(ctx, input.Email); err == nil {
		return nil, models.ErrEmailTaken
	}

	if hash, err = bcrypt.GenerateFromPassword([]byte(input.Password), s.bcryptCost); err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	now := time.Now().UTC()
	code := uuid.NewString()

	sql := `
INSERT INTO identities (
   created_at
   , updated_at
   , email
   , password_hash
   , role
   , full_name
   , company
   , phone
   , confirmation_code
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`

	params := []any{
		now,
		now,
		input.Email,
		string(hash),
		string(role),
		input.FullName,
		strings.TrimSpace(input.Company),
		strings.TrimSpace(input.Phone),
		code,
	}

	if _, err = s.db.Exec(ctx, sql, params...); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unique") {
			return nil, models.ErrEmailTaken
		}

		return nil, fmt.Errorf("error inserting identity: %w", err)
	}

	identity, err := s.GetByEmail(ctx, input.Email)
	if err != nil {
		return nil, err
	}

	if s.mailer != nil {
		confirmURL := fmt.Sprintf("%s/auth/callback?code=%s", s.baseURL, code)

		if err = s.mailer.SendConfirmation(ctx, identity, confirmURL); err != nil {
			return identity, fmt.Errorf("%w: %w", ErrEmailNotSent, err)
		}
	}

	return identity, nil
}

/*
SignIn checks credentials. It distinguishes an unknown email, a wrong
password, and an unconfirmed email so the login API can answer with
different status codes.
*/
func (s IdentityService) SignIn(ctx context.Context, input SignInInput) (*models.Identity, error) {
	var (
		err      error
		identity *models.Identity
	)

	input.Email = normalizeEmail(input.Email)

	if err = input.Validate(); err != nil {
		return nil, err
	}

	if identity, err = s.GetByEmail(ctx, input.Email); err != nil {
		return nil, err
	}

	if err = bcrypt.CompareHashAndPassword([]byte(identity.PasswordHash), []byte(input.Password)); err != nil {
		return nil, models.ErrInvalidCredentials
	}

	if !identity.IsConfirmed() {
		return nil, models.ErrEmailNotConfirmed
	}

	return identity, nil
}

// ExchangeCode confirms the email belonging to a confirmation code and returns the identity.
func (s IdentityService) ExchangeCode(ctx context.Context, code string) (*models.Identity, error) {
	var (
		err error
	)

	code = strings.TrimSpace(code)

	if code == "" {
		return nil, models.ErrInvalidCode
	}

	result := &models.Identity{}

	sql := `
SELECT` + identityColumns + `
FROM identities AS i
WHERE 1=1
   AND i.deleted_at IS NULL
   AND i.confirmation_code=?
`

	if err = s.db.QueryRow(ctx, result, sql, code); err != nil {
		if sqlz.IsNotFound(err) {
			return nil, models.ErrInvalidCode
		}

		return nil, fmt.Errorf("error querying for confirmation code: %w", err)
	}

	now := time.Now().UTC()

	sql = `
UPDATE identities SET
   email_confirmed_at=COALESCE(email_confirmed_at, ?)
   , confirmation_code=''
   , updated_at=?
WHERE id=?
`

	if _, err = s.db.Exec(ctx, sql, now, now, result.ID); err != nil {
		return nil, fmt.Errorf("error confirming identity %d: %w", result.ID, err)
	}

	return s.GetByID(ctx, result.ID)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
