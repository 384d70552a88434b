package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/adampresley/adamgokit/httphelpers"
	"github.com/adampresley/adamgokit/rendering"
	"github.com/adampresley/fotofacil/cmd/website/internal/viewmodels"
	"github.com/adampresley/fotofacil/pkg/access"
	"github.com/adampresley/fotofacil/pkg/models"
	"github.com/adampresley/fotofacil/pkg/services"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const (
	MessageUnexpected      = "Ocorreu um erro inesperado. Tente novamente ou fale com o suporte."
	MessageWrongPassword   = "E-mail ou senha incorretos."
	MessageUnknownAccount  = "Não encontramos uma conta com este e-mail."
	MessageNotConfirmed    = "Confirme seu e-mail antes de entrar. Verifique sua caixa de entrada."
	MessageInvalidCode     = "Este link de confirmação é inválido ou já foi usado."
	MessageEmailTaken      = "Já existe uma conta com este e-mail."
	MessageCheckEmail      = "Conta criada! Enviamos um link de confirmação para o seu e-mail."
	MessageEmailNotSent    = "Conta criada, mas não conseguimos enviar o e-mail de confirmação. Fale com o suporte."
	MessageInvalidFormData = "Verifique os dados informados."
)

type SessionManager interface {
	SignIn(w http.ResponseWriter, r *http.Request, identity *models.Identity) error
	SignOut(w http.ResponseWriter, r *http.Request)
}

type AuthHandlers interface {
	ApiLogin(w http.ResponseWriter, r *http.Request)
	Callback(w http.ResponseWriter, r *http.Request)
	LoginAction(w http.ResponseWriter, r *http.Request)
	LoginPage(w http.ResponseWriter, r *http.Request)
	Logout(w http.ResponseWriter, r *http.Request)
	RegisterAction(w http.ResponseWriter, r *http.Request)
	RegisterPage(w http.ResponseWriter, r *http.Request)
}

type AuthControllerConfig struct {
	IdentityService services.IdentityServicer
	Renderer        rendering.TemplateRenderer
	Sessions        SessionManager
}

type AuthController struct {
	identityService services.IdentityServicer
	renderer        rendering.TemplateRenderer
	sessions        SessionManager
}

func NewAuthController(config AuthControllerConfig) AuthController {
	return AuthController{
		identityService: config.IdentityService,
		renderer:        config.Renderer,
		sessions:        config.Sessions,
	}
}

/*
GET /login
*/
func (c AuthController) LoginPage(w http.ResponseWriter, r *http.Request) {
	viewData := viewmodels.Login{
		BaseViewModel: viewmodels.BaseViewModel{
			IsHtmx: httphelpers.IsHtmx(r),
		},
	}

	if message := r.URL.Query().Get("error"); message != "" {
		viewData.IsWarning = true
		viewData.Message = message
	}

	c.renderer.Render("pages/auth/login", viewData, w)
}

/*
POST /login
*/
func (c AuthController) LoginAction(w http.ResponseWriter, r *http.Request) {
	pageName := "pages/auth/login"

	viewData := viewmodels.Login{
		BaseViewModel: viewmodels.BaseViewModel{
			IsHtmx: httphelpers.IsHtmx(r),
		},
		Email: httphelpers.GetFromRequest[string](r, "email"),
	}

	identity, status, message := c.signIn(r.Context(), services.SignInInput{
		Email:    viewData.Email,
		Password: httphelpers.GetFromRequest[string](r, "password"),
	})

	if identity == nil {
		viewData.IsError = status >= http.StatusInternalServerError
		viewData.IsWarning = !viewData.IsError
		viewData.Message = message

		c.renderer.Render(pageName, viewData, w)
		return
	}

	if err := c.sessions.SignIn(w, r, identity); err != nil {
		slog.Error("error saving session", "error", err, "identityID", identity.ID)
		viewData.IsError = true
		viewData.Message = MessageUnexpected

		c.renderer.Render(pageName, viewData, w)
		return
	}

	http.Redirect(w, r, access.HomeFor(access.ClassifyRole(identity)), http.StatusSeeOther)
}

type apiLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type apiLoginResponse struct {
	Success  bool   `json:"success,omitempty"`
	Redirect string `json:"redirect,omitempty"`
	Error    string `json:"error,omitempty"`
}

/*
POST /api/login
*/
func (c AuthController) ApiLogin(w http.ResponseWriter, r *http.Request) {
	var (
		err     error
		request apiLoginRequest
	)

	if err = json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&request); err != nil {
		writeJSON(w, http.StatusBadRequest, apiLoginResponse{Error: MessageInvalidFormData})
		return
	}

	identity, status, message := c.signIn(r.Context(), services.SignInInput{
		Email:    request.Email,
		Password: request.Password,
	})

	if identity == nil {
		writeJSON(w, status, apiLoginResponse{Error: message})
		return
	}

	if err = c.sessions.SignIn(w, r, identity); err != nil {
		slog.Error("error saving session", "error", err, "identityID", identity.ID)
		writeJSON(w, http.StatusInternalServerError, apiLoginResponse{Error: MessageUnexpected})
		return
	}

	writeJSON(w, http.StatusOK, apiLoginResponse{
		Success:  true,
		Redirect: access.HomeFor(access.ClassifyRole(identity)),
	})
}

/*
signIn checks credentials and the identity's role. On failure it returns a
nil identity, the HTTP status for the API, and the message for the user.
*/
func (c AuthController) signIn(ctx context.Context, input services.SignInInput) (*models.Identity, int, string) {
	identity, err := c.identityService.SignIn(ctx, input)

	if err == nil && access.ClassifyRole(identity) == access.Unclassified {
		slog.Warn("sign in refused for identity without a valid role", "identityID", identity.ID)
		return nil, http.StatusForbidden, access.MessageInvalidRole
	}

	if err == nil {
		return identity, http.StatusOK, ""
	}

	status, message := SignInFailure(err)

	if status >= http.StatusInternalServerError {
		slog.Error("error signing in", "error", err)
	}

	return nil, status, message
}

// SignInFailure maps a sign in error to an HTTP status and a message for the user.
func SignInFailure(err error) (int, string) {
	var validationErrors validation.Errors

	switch {
	case errors.As(err, &validationErrors):
		return http.StatusBadRequest, MessageInvalidFormData

	case errors.Is(err, models.ErrInvalidCredentials):
		return http.StatusUnauthorized, MessageWrongPassword

	case errors.Is(err, models.ErrEmailNotConfirmed):
		return http.StatusForbidden, MessageNotConfirmed

	case errors.Is(err, models.ErrIdentityNotFound):
		return http.StatusNotFound, MessageUnknownAccount
	}

	return http.StatusInternalServerError, MessageUnexpected
}

/*
GET /register
*/
func (c AuthController) RegisterPage(w http.ResponseWriter, r *http.Request) {
	viewData := viewmodels.Register{
		BaseViewModel: viewmodels.BaseViewModel{
			IsHtmx: httphelpers.IsHtmx(r),
		},
		Role: string(models.RolePhotographer),
	}

	c.renderer.Render("pages/auth/register", viewData, w)
}

/*
POST /register
*/
func (c AuthController) RegisterAction(w http.ResponseWriter, r *http.Request) {
	pageName := "pages/auth/register"

	viewData := viewmodels.Register{
		BaseViewModel: viewmodels.BaseViewModel{
			IsHtmx: httphelpers.IsHtmx(r),
		},
		Email:    httphelpers.GetFromRequest[string](r, "email"),
		FullName: httphelpers.GetFromRequest[string](r, "fullName"),
		Company:  httphelpers.GetFromRequest[string](r, "company"),
		Phone:    httphelpers.GetFromRequest[string](r, "phone"),
		Role:     httphelpers.GetFromRequest[string](r, "role"),
	}

	_, err := c.identityService.SignUp(r.Context(), services.SignUpInput{
		Email:    viewData.Email,
		Password: httphelpers.GetFromRequest[string](r, "password"),
		Role:     viewData.Role,
		FullName: viewData.FullName,
		Company:  viewData.Company,
		Phone:    viewData.Phone,
	})

	switch {
	case err == nil:
		c.renderer.Render("pages/auth/login", viewmodels.Login{
			BaseViewModel: viewmodels.BaseViewModel{
				IsHtmx:    viewData.IsHtmx,
				IsSuccess: true,
				Message:   MessageCheckEmail,
			},
			Email: viewData.Email,
		}, w)
		return

	case errors.Is(err, services.ErrEmailNotSent):
		c.renderer.Render("pages/auth/login", viewmodels.Login{
			BaseViewModel: viewmodels.BaseViewModel{
				IsHtmx:    viewData.IsHtmx,
				IsWarning: true,
				Message:   MessageEmailNotSent,
			},
			Email: viewData.Email,
		}, w)
		return

	case viewData.SetFieldErrors(err):

	case errors.Is(err, models.ErrEmailTaken):
		viewData.IsWarning = true
		viewData.Message = MessageEmailTaken

	default:
		slog.Error("error signing up", "error", err)
		viewData.IsError = true
		viewData.Message = MessageUnexpected
	}

	c.renderer.Render(pageName, viewData, w)
}

/*
GET /auth/callback?code=...
*/
func (c AuthController) Callback(w http.ResponseWriter, r *http.Request) {
	var (
		err      error
		identity *models.Identity
	)

	ctx, cancel := context.WithTimeout(r.Context(), time.Second*10)
	defer cancel()

	if identity, err = c.identityService.ExchangeCode(ctx, r.URL.Query().Get("code")); err != nil {
		if !errors.Is(err, models.ErrInvalidCode) {
			slog.Error("error exchanging confirmation code", "error", err)
			http.Redirect(w, r, access.LoginURL(MessageUnexpected), http.StatusSeeOther)
			return
		}

		http.Redirect(w, r, access.LoginURL(MessageInvalidCode), http.StatusSeeOther)
		return
	}

	role := access.ClassifyRole(identity)

	if role == access.Unclassified {
		http.Redirect(w, r, access.LoginURL(access.MessageInvalidRole), http.StatusSeeOther)
		return
	}

	if err = c.sessions.SignIn(w, r, identity); err != nil {
		slog.Error("error saving session", "error", err, "identityID", identity.ID)
		http.Redirect(w, r, access.LoginURL(MessageUnexpected), http.StatusSeeOther)
		return
	}

	http.Redirect(w, r, access.HomeFor(role), http.StatusSeeOther)
}

/*
GET /logout
*/
func (c AuthController) Logout(w http.ResponseWriter, r *http.Request) {
	c.sessions.SignOut(w, r)
	http.Redirect(w, r, access.PublicHome, http.StatusSeeOther)
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}
