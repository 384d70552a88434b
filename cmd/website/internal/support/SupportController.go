package support

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/adampresley/adamgokit/httphelpers"
	"github.com/adampresley/adamgokit/rendering"
	"github.com/adampresley/fotofacil/cmd/website/internal/viewmodels"
	"github.com/adampresley/fotofacil/pkg/services"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

const (
	MessageSent     = "Recebemos sua mensagem. Responderemos em breve."
	MessageNotSent  = "Não foi possível enviar sua mensagem agora. Tente novamente mais tarde."
	supportPageName = "pages/support"
)

type SupportHandlers interface {
	SupportAction(w http.ResponseWriter, r *http.Request)
	SupportPage(w http.ResponseWriter, r *http.Request)
}

type SupportControllerConfig struct {
	Mailer   services.Mailer
	Renderer rendering.TemplateRenderer
}

type SupportController struct {
	mailer   services.Mailer
	renderer rendering.TemplateRenderer
}

func NewSupportController(config SupportControllerConfig) SupportController {
	return SupportController{
		mailer:   config.Mailer,
		renderer: config.Renderer,
	}
}

/*
GET /support
*/
func (c SupportController) SupportPage(w http.ResponseWriter, r *http.Request) {
	identity := viewmodels.GetIdentityFromContext(r)

	viewData := viewmodels.Support{
		BaseViewModel: viewmodels.BaseViewModel{
			IsHtmx:   httphelpers.IsHtmx(r),
			Identity: identity,
		},
		Name:  identity.FullName,
		Email: identity.Email,
	}

	c.renderer.Render(supportPageName, viewData, w)
}

/*
POST /support
*/
func (c SupportController) SupportAction(w http.ResponseWriter, r *http.Request) {
	var (
		err error
	)

	request := supportRequestFromForm(r)

	viewData := viewmodels.Support{
		BaseViewModel: viewmodels.BaseViewModel{
			IsHtmx:   httphelpers.IsHtmx(r),
			Identity: viewmodels.GetIdentityFromContext(r),
		},
		Name:    request.Name,
		Email:   request.Email,
		Subject: request.Subject,
		Body:    request.Message,
	}

	if err = validateSupportRequest(request); err != nil {
		viewData.SetFieldErrors(err)
		c.renderer.Render(supportPageName, viewData, w)
		return
	}

	if err = c.mailer.SendSupportRequest(r.Context(), request); err != nil {
		slog.Error("error sending support request", "error", err, "from", request.Email)
		viewData.IsError = true
		viewData.Message = MessageNotSent

		c.renderer.Render(supportPageName, viewData, w)
		return
	}

	viewData = viewmodels.Support{
		BaseViewModel: viewmodels.BaseViewModel{
			IsHtmx:    viewData.IsHtmx,
			Identity:  viewData.Identity,
			IsSuccess: true,
			Message:   MessageSent,
		},
		Sent: true,
	}

	c.renderer.Render(supportPageName, viewData, w)
}

func supportRequestFromForm(r *http.Request) services.SupportRequest {
	return services.SupportRequest{
		Name:    strings.TrimSpace(httphelpers.GetFromRequest[string](r, "name")),
		Email:   strings.ToLower(strings.TrimSpace(httphelpers.GetFromRequest[string](r, "email"))),
		Subject: strings.TrimSpace(httphelpers.GetFromRequest[string](r, "subject")),
		Message: strings.TrimSpace(httphelpers.GetFromRequest[string](r, "message")),
	}
}

func validateSupportRequest(request services.SupportRequest) error {
	return validation.ValidateStruct(&request,
		validation.Field(&request.Name,
			validation.Required.Error("informe seu nome"),
			validation.Length(2, 100).Error("o nome deve ter entre 2 e 100 caracteres"),
		),
		validation.Field(&request.Email,
			validation.Required.Error("informe o e-mail"),
			is.EmailFormat.Error("e-mail inválido"),
		),
		validation.Field(&request.Subject,
			validation.Required.Error("informe o assunto"),
			validation.Length(3, 150).Error("o assunto deve ter entre 3 e 150 caracteres"),
		),
		validation.Field(&request.Message,
			validation.Required.Error("escreva sua mensagem"),
			validation.Length(10, 5000).Error("a mensagem deve ter entre 10 e 5000 caracteres"),
		),
	)
}
