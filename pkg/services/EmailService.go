package services

import (
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"strings"

	"github.com/adampresley/adamgokit/email"
	"github.com/adampresley/fotofacil/pkg/metrics"
	"github.com/adampresley/fotofacil/pkg/models"
)

var (
	ErrEmailNotSent = fmt.Errorf("email could not be sent")
)

type Mailer interface {
	SendAlbumReady(ctx context.Context, client *models.Identity, album *models.Album, albumURL string) error
	SendConfirmation(ctx context.Context, identity *models.Identity, confirmURL string) error
	SendDownloadReady(ctx context.Context, client *models.Identity, album *models.Album, downloadURL string, expirationDays int) error
	SendSelectionSubmitted(ctx context.Context, photographer *models.Identity, album *models.Album, summary models.SelectionSummary) error
	SendSupportRequest(ctx context.Context, request SupportRequest) error
}

type SupportRequest struct {
	Name    string
	Email   string
	Subject string
	Message string
}

type EmailServiceConfig struct {
	ApiKey       string
	FromEmail    string
	FromName     string
	SupportEmail string
}

type EmailService struct {
	apiKey       string
	fromEmail    string
	fromName     string
	supportEmail string
}

func NewEmailService(config EmailServiceConfig) EmailService {
	return EmailService{
		apiKey:       config.ApiKey,
		fromEmail:    config.FromEmail,
		fromName:     config.FromName,
		supportEmail: config.SupportEmail,
	}
}

var (
	confirmationTemplate = template.Must(template.New("confirmation").Parse(`
<h1>Bem-vindo ao FotoFácil!</h1>
<p>Olá {{.toName}}! Confirme seu e-mail para ativar sua conta.</p>
<a href="{{.confirmURL}}">Confirmar e-mail</a>
`))

	albumReadyTemplate = template.Must(template.New("albumReady").Parse(`
<h1>Suas fotos estão prontas para seleção!</h1>
<p>Olá {{.toName}}! O álbum '{{.albumName}}' já está disponível.
Você pode escolher até {{.selectionLimit}} fotos.</p>
{{if .expiresAt}}<p>O álbum expira em {{.expiresAt}}.</p>{{end}}
<a href="{{.albumURL}}">Ver álbum</a>
`))

	selectionSubmittedTemplate = template.Must(template.New("selectionSubmitted").Parse(`
<h1>Seleção concluída</h1>
<p>Olá {{.toName}}! {{.clientName}} concluiu a seleção do álbum '{{.albumName}}'.</p>
<p>Fotos selecionadas: {{.selected}} (cortesia: {{.courtesy}}, extras: {{.extra}}).</p>
{{if .hasCharge}}<p>Valor das fotos extras: R$ {{.extraCharge}}</p>{{end}}
`))

	supportTemplate = template.Must(template.New("support").Parse(`
<h1>Novo pedido de suporte</h1>
<p><strong>De:</strong> {{.name}} &lt;{{.email}}&gt;</p>
<p><strong>Assunto:</strong> {{.subject}}</p>
<p>{{.message}}</p>
`))

	downloadReadyTemplate = template.Must(template.New("downloadReady").Parse(`
<h1>Seu download está pronto!</h1>
<p>Olá {{.toName}}! O arquivo com as fotos do álbum '{{.albumName}}' está pronto.
Este link expira em {{.expirationDays}} dias.</p>
<a href="{{.downloadURL}}">Baixar álbum</a>
`))
)

func (s EmailService) SendConfirmation(ctx context.Context, identity *models.Identity, confirmURL string) error {
	return s.send(ctx, "confirmation", identity.DisplayName(), identity.Email, "Confirme seu e-mail", confirmationTemplate, map[string]any{
		"confirmURL": confirmURL,
	})
}

func (s EmailService) SendAlbumReady(ctx context.Context, client *models.Identity, album *models.Album, albumURL string) error {
	expiresAt := ""

	if album.ExpiresAt != nil {
		expiresAt = album.ExpiresAt.Format("02/01/2006 15:04")
	}

	return s.send(ctx, "album_ready", client.DisplayName(), client.Email, "Seu álbum está pronto para seleção", albumReadyTemplate, map[string]any{
		"albumName":      album.Name,
		"albumURL":       albumURL,
		"expiresAt":      expiresAt,
		"selectionLimit": album.SelectionLimit,
	})
}

func (s EmailService) SendSelectionSubmitted(ctx context.Context, photographer *models.Identity, album *models.Album, summary models.SelectionSummary) error {
	return s.send(ctx, "selection_submitted", photographer.DisplayName(), photographer.Email, fmt.Sprintf("Seleção concluída: %s", album.Name), selectionSubmittedTemplate, map[string]any{
		"albumName":   album.Name,
		"clientName":  album.Client.FullName,
		"courtesy":    summary.Courtesy,
		"extra":       summary.Extra,
		"extraCharge": summary.ExtraCharge.StringFixed(2),
		"hasCharge":   summary.ExtraCharge.IsPositive(),
		"selected":    summary.Selected,
	})
}

func (s EmailService) SendSupportRequest(ctx context.Context, request SupportRequest) error {
	return s.send(ctx, "support", "Suporte FotoFácil", s.supportEmail, fmt.Sprintf("[Suporte] %s", request.Subject), supportTemplate, map[string]any{
		"email":   request.Email,
		"message": request.Message,
		"name":    request.Name,
		"subject": request.Subject,
	})
}

func (s EmailService) SendDownloadReady(ctx context.Context, client *models.Identity, album *models.Album, downloadURL string, expirationDays int) error {
	return s.send(ctx, "download_ready", client.DisplayName(), client.Email, "Seu download está pronto!", downloadReadyTemplate, map[string]any{
		"albumName":      album.Name,
		"downloadURL":    downloadURL,
		"expirationDays": expirationDays,
	})
}

func (s EmailService) send(ctx context.Context, kind, toName, toEmail, subject string, tmpl *template.Template, data map[string]any) error {
	var (
		err error
	)

	if err = ctx.Err(); err != nil {
		return err
	}

	parsedTemplate := strings.Builder{}
	data["toName"] = toName

	if err = tmpl.Execute(&parsedTemplate, data); err != nil {
		return fmt.Errorf("error rendering %s email: %w", kind, err)
	}

	service := email.NewResendService(&email.Config{
		ApiKey: s.apiKey,
	})

	err = service.Send(email.Mail{
		Body:       parsedTemplate.String(),
		BodyIsHtml: true,
		From: email.EmailAddress{
			Email: s.fromEmail,
			Name:  s.fromName,
		},
		Subject: subject,
		To: []email.EmailAddress{
			{Name: toName, Email: toEmail},
		},
	})

	if err != nil {
		metrics.EmailsSentTotal.WithLabelValues(kind, "error").Inc()
		slog.Error("failed to send email", "kind", kind, "to", toEmail, "error", err)
		return fmt.Errorf("error sending %s email: %w", kind, err)
	}

	metrics.EmailsSentTotal.WithLabelValues(kind, "ok").Inc()
	return nil
}
