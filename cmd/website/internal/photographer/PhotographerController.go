package photographer

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/adampresley/adamgokit/httphelpers"
	"github.com/adampresley/adamgokit/rendering"
	internalmodels "github.com/adampresley/fotofacil/cmd/website/internal/models"
	"github.com/adampresley/fotofacil/cmd/website/internal/viewmodels"
	"github.com/adampresley/fotofacil/pkg/models"
	"github.com/adampresley/fotofacil/pkg/services"
)

const (
	MessageUnexpected       = "Ocorreu um erro inesperado. Tente novamente ou fale com o suporte."
	MessageAlbumNotFound    = "Álbum não encontrado."
	MessageClientNotFound   = "Não há cliente cadastrado com este e-mail. Peça para o cliente criar uma conta."
	MessageNoClient         = "Vincule um cliente ao álbum antes de enviá-lo."
	MessageAlbumExpired     = "Este álbum expirou."
	MessageInvalidStatus    = "Esta ação não é permitida no status atual do álbum."
	MessageAlbumSaved       = "Álbum salvo."
	MessageAlbumDeleted     = "Álbum excluído."
	MessageClientNotified   = "Álbum liberado para seleção e cliente avisado por e-mail."
	MessageNotifyEmailError = "Álbum liberado para seleção, mas não conseguimos enviar o e-mail ao cliente."
	MessageDelivered        = "Álbum marcado como entregue."
	MessageUploadDone       = "%d foto(s) enviada(s)."
	MessageUploadInvalid    = "Envie apenas imagens JPG ou PNG."
	MessageUploadClosed     = "Este álbum não aceita mais fotos."
	MessageUploadEmpty      = "Selecione ao menos uma foto."
)

type PhotographerHandlers interface {
	AlbumPage(w http.ResponseWriter, r *http.Request)
	CreateAlbumAction(w http.ResponseWriter, r *http.Request)
	DashboardPage(w http.ResponseWriter, r *http.Request)
	DeleteAlbumAction(w http.ResponseWriter, r *http.Request)
	DeliverAction(w http.ResponseWriter, r *http.Request)
	EditAlbumPage(w http.ResponseWriter, r *http.Request)
	NewAlbumPage(w http.ResponseWriter, r *http.Request)
	NotifyClientAction(w http.ResponseWriter, r *http.Request)
	UpdateAlbumAction(w http.ResponseWriter, r *http.Request)
	UploadPhotosAction(w http.ResponseWriter, r *http.Request)
}

type PhotographerControllerConfig struct {
	AlbumService     services.AlbumServicer
	BaseURL          string
	IdentityService  services.IdentityServicer
	Keys             services.PhotoKeys
	Mailer           services.Mailer
	MaxUploadBytes   int64
	PhotoService     services.PhotoServicer
	Renderer         rendering.TemplateRenderer
	SelectionService services.SelectionServicer
	Storage          services.PhotoStorage
}

type PhotographerController struct {
	albumService     services.AlbumServicer
	baseURL          string
	identityService  services.IdentityServicer
	keys             services.PhotoKeys
	mailer           services.Mailer
	maxUploadBytes   int64
	photoService     services.PhotoServicer
	renderer         rendering.TemplateRenderer
	selectionService services.SelectionServicer
	storage          services.PhotoStorage
}

func NewPhotographerController(config PhotographerControllerConfig) PhotographerController {
	if config.MaxUploadBytes <= 0 {
		config.MaxUploadBytes = 64 << 20
	}

	return PhotographerController{
		albumService:     config.AlbumService,
		baseURL:          strings.TrimSuffix(config.BaseURL, "/"),
		identityService:  config.IdentityService,
		keys:             config.Keys,
		mailer:           config.Mailer,
		maxUploadBytes:   config.MaxUploadBytes,
		photoService:     config.PhotoService,
		renderer:         config.Renderer,
		selectionService: config.SelectionService,
		storage:          config.Storage,
	}
}

/*
GET /dashboard
*/
func (c PhotographerController) DashboardPage(w http.ResponseWriter, r *http.Request) {
	c.renderDashboard(w, r, viewmodels.BaseViewModel{})
}

func (c PhotographerController) renderDashboard(w http.ResponseWriter, r *http.Request, base viewmodels.BaseViewModel) {
	base.IsHtmx = httphelpers.IsHtmx(r)
	base.Identity = viewmodels.GetIdentityFromContext(r)

	viewData := viewmodels.PhotographerDashboard{
		BaseViewModel: base,
		Albums:        []internalmodels.AlbumCard{},
	}

	albums, err := c.albumService.ListForPhotographer(r.Context(), viewData.Identity.ID)
	if err != nil {
		slog.Error("error getting album list", "error", err, "photographerID", viewData.Identity.ID)
		viewData.IsError = true
		viewData.Message = MessageUnexpected

		c.renderer.Render("pages/photographer/dashboard", viewData, w)
		return
	}

	now := time.Now()

	for _, album := range albums {
		viewData.Albums = append(viewData.Albums, internalmodels.NewAlbumCard(album, now))
	}

	c.renderer.Render("pages/photographer/dashboard", viewData, w)
}

/*
GET /dashboard/albums/new
*/
func (c PhotographerController) NewAlbumPage(w http.ResponseWriter, r *http.Request) {
	viewData := viewmodels.AlbumForm{
		BaseViewModel: viewmodels.BaseViewModel{
			IsHtmx:   httphelpers.IsHtmx(r),
			Identity: viewmodels.GetIdentityFromContext(r),
		},
		IsNew: true,
		Form: internalmodels.AlbumFormValues{
			SelectionLimit:     "10",
			CourtesyPhotoCount: "0",
		},
	}

	c.renderer.Render("pages/photographer/album-form", viewData, w)
}

/*
POST /dashboard/albums
*/
func (c PhotographerController) CreateAlbumAction(w http.ResponseWriter, r *http.Request) {
	identity := viewmodels.GetIdentityFromContext(r)
	form := albumFormFromRequest(r)

	viewData := viewmodels.AlbumForm{
		BaseViewModel: viewmodels.BaseViewModel{
			IsHtmx:   httphelpers.IsHtmx(r),
			Identity: identity,
		},
		IsNew: true,
		Form:  form,
	}

	input, err := albumInputFromForm(form)
	if err == nil {
		var album *models.Album

		if album, err = c.albumService.Create(r.Context(), identity.ID, input); err == nil {
			http.Redirect(w, r, albumPath(album.ID), http.StatusSeeOther)
			return
		}
	}

	c.setFormError(&viewData.BaseViewModel, err)
	c.renderer.Render("pages/photographer/album-form", viewData, w)
}

/*
GET /dashboard/albums/{id}/edit
*/
func (c PhotographerController) EditAlbumPage(w http.ResponseWriter, r *http.Request) {
	identity := viewmodels.GetIdentityFromContext(r)
	albumID := httphelpers.GetFromRequest[uint](r, "id")

	album, err := c.albumService.GetForPhotographer(r.Context(), identity.ID, albumID)
	if err != nil {
		c.renderDashboard(w, r, c.errorBase(err))
		return
	}

	viewData := viewmodels.AlbumForm{
		BaseViewModel: viewmodels.BaseViewModel{
			IsHtmx:   httphelpers.IsHtmx(r),
			Identity: identity,
		},
		Form: internalmodels.NewAlbumFormValues(album),
	}

	c.renderer.Render("pages/photographer/album-form", viewData, w)
}

/*
POST /dashboard/albums/{id}
*/
func (c PhotographerController) UpdateAlbumAction(w http.ResponseWriter, r *http.Request) {
	identity := viewmodels.GetIdentityFromContext(r)
	albumID := httphelpers.GetFromRequest[uint](r, "id")

	form := albumFormFromRequest(r)
	form.ID = albumID

	viewData := viewmodels.AlbumForm{
		BaseViewModel: viewmodels.BaseViewModel{
			IsHtmx:   httphelpers.IsHtmx(r),
			Identity: identity,
		},
		Form: form,
	}

	input, err := albumInputFromForm(form)
	if err == nil {
		if _, err = c.albumService.Update(r.Context(), identity.ID, albumID, input); err == nil {
			c.renderAlbum(w, r, albumID, viewmodels.BaseViewModel{IsSuccess: true, Message: MessageAlbumSaved})
			return
		}
	}

	c.setFormError(&viewData.BaseViewModel, err)
	c.renderer.Render("pages/photographer/album-form", viewData, w)
}

/*
POST /dashboard/albums/{id}/delete
*/
func (c PhotographerController) DeleteAlbumAction(w http.ResponseWriter, r *http.Request) {
	identity := viewmodels.GetIdentityFromContext(r)
	albumID := httphelpers.GetFromRequest[uint](r, "id")

	if err := c.albumService.Delete(r.Context(), identity.ID, albumID); err != nil {
		c.renderDashboard(w, r, c.errorBase(err))
		return
	}

	slog.Info("album deleted", "albumID", albumID, "photographerID", identity.ID)
	c.renderDashboard(w, r, viewmodels.BaseViewModel{IsSuccess: true, Message: MessageAlbumDeleted})
}

/*
GET /dashboard/albums/{id}
*/
func (c PhotographerController) AlbumPage(w http.ResponseWriter, r *http.Request) {
	c.renderAlbum(w, r, httphelpers.GetFromRequest[uint](r, "id"), viewmodels.BaseViewModel{})
}

func (c PhotographerController) renderAlbum(w http.ResponseWriter, r *http.Request, albumID uint, base viewmodels.BaseViewModel) {
	var (
		err         error
		album       *models.Album
		photos      []*models.Photo
		selectedIDs []uint
	)

	base.IsHtmx = httphelpers.IsHtmx(r)
	base.Identity = viewmodels.GetIdentityFromContext(r)

	if album, err = c.albumService.GetForPhotographer(r.Context(), base.Identity.ID, albumID); err != nil {
		c.renderDashboard(w, r, c.errorBase(err))
		return
	}

	viewData := viewmodels.PhotographerAlbum{
		BaseViewModel: base,
		Album:         internalmodels.NewAlbumCard(album, time.Now()),
		Photos:        []internalmodels.AlbumPhoto{},
		Summary:       models.SummarizeSelection(album, 0),
	}

	viewData.JavascriptIncludes = []rendering.JavascriptInclude{
		{Type: "module", Src: "/static/js/pages/photographer-album.js"},
	}

	if photos, err = c.photoService.ListByAlbum(r.Context(), album.ID); err != nil {
		slog.Error("error listing album photos", "error", err, "albumID", album.ID)
		viewData.IsError = true
		viewData.Message = MessageUnexpected
	}

	if album.ClientID != 0 {
		if selectedIDs, err = c.selectionService.SelectedPhotoIDs(r.Context(), album.ClientID, album.ID); err != nil {
			slog.Error("error listing selected photos", "error", err, "albumID", album.ID)
		}

		viewData.Summary = models.SummarizeSelection(album, len(selectedIDs))
	}

	viewData.Photos = internalmodels.NewAlbumPhotos(photos, c.storage, c.keys, selectedIDs)
	c.renderer.Render("pages/photographer/album", viewData, w)
}

/*
POST /dashboard/albums/{id}/photos
*/
func (c PhotographerController) UploadPhotosAction(w http.ResponseWriter, r *http.Request) {
	identity := viewmodels.GetIdentityFromContext(r)
	albumID := httphelpers.GetFromRequest[uint](r, "id")

	r.Body = http.MaxBytesReader(w, r.Body, c.maxUploadBytes)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		slog.Warn("error parsing photo upload", "error", err, "albumID", albumID)
		c.renderAlbum(w, r, albumID, viewmodels.BaseViewModel{IsWarning: true, Message: MessageUploadInvalid})
		return
	}

	files := []services.UploadFile{}

	for _, header := range r.MultipartForm.File["photos"] {
		f, err := header.Open()
		if err != nil {
			slog.Error("error opening uploaded file", "error", err, "fileName", header.Filename)
			continue
		}

		data, err := io.ReadAll(f)
		_ = f.Close()

		if err != nil {
			slog.Error("error reading uploaded file", "error", err, "fileName", header.Filename)
			continue
		}

		files = append(files, services.UploadFile{
			Name:        header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Data:        data,
		})
	}

	if len(files) == 0 {
		c.renderAlbum(w, r, albumID, viewmodels.BaseViewModel{IsWarning: true, Message: MessageUploadEmpty})
		return
	}

	uploaded, err := c.photoService.Upload(r.Context(), identity.ID, albumID, files)

	switch {
	case err == nil:
		c.renderAlbum(w, r, albumID, viewmodels.BaseViewModel{IsSuccess: true, Message: fmt.Sprintf(MessageUploadDone, len(uploaded))})

	case errors.Is(err, services.ErrUnsupportedImage):
		c.renderAlbum(w, r, albumID, viewmodels.BaseViewModel{IsWarning: true, Message: MessageUploadInvalid})

	case errors.Is(err, services.ErrAlbumClosed):
		c.renderAlbum(w, r, albumID, viewmodels.BaseViewModel{IsWarning: true, Message: MessageUploadClosed})

	default:
		c.renderAlbum(w, r, albumID, c.errorBase(err))
	}
}

/*
POST /dashboard/albums/{id}/notify
*/
func (c PhotographerController) NotifyClientAction(w http.ResponseWriter, r *http.Request) {
	var (
		err    error
		album  *models.Album
		client *models.Identity
	)

	identity := viewmodels.GetIdentityFromContext(r)
	albumID := httphelpers.GetFromRequest[uint](r, "id")

	if album, err = c.albumService.OpenForSelection(r.Context(), identity.ID, albumID); err != nil {
		c.renderAlbum(w, r, albumID, c.errorBase(err))
		return
	}

	if client, err = c.identityService.GetByID(r.Context(), album.ClientID); err == nil {
		err = c.mailer.SendAlbumReady(r.Context(), client, album, fmt.Sprintf("%s/client/albums/%d", c.baseURL, album.ID))
	}

	if err != nil {
		slog.Error("error notifying client", "error", err, "albumID", album.ID, "clientID", album.ClientID)
		c.renderAlbum(w, r, albumID, viewmodels.BaseViewModel{IsWarning: true, Message: MessageNotifyEmailError})
		return
	}

	c.renderAlbum(w, r, albumID, viewmodels.BaseViewModel{IsSuccess: true, Message: MessageClientNotified})
}

/*
POST /dashboard/albums/{id}/deliver
*/
func (c PhotographerController) DeliverAction(w http.ResponseWriter, r *http.Request) {
	identity := viewmodels.GetIdentityFromContext(r)
	albumID := httphelpers.GetFromRequest[uint](r, "id")

	if _, err := c.albumService.Deliver(r.Context(), identity.ID, albumID); err != nil {
		c.renderAlbum(w, r, albumID, c.errorBase(err))
		return
	}

	c.renderAlbum(w, r, albumID, viewmodels.BaseViewModel{IsSuccess: true, Message: MessageDelivered})
}

func (c PhotographerController) setFormError(base *viewmodels.BaseViewModel, err error) {
	if base.SetFieldErrors(err) {
		return
	}

	errBase := c.errorBase(err)

	base.Message = errBase.Message
	base.IsWarning = errBase.IsWarning
	base.IsError = errBase.IsError
}

// errorBase turns a service error into the banner shown to the photographer.
func (c PhotographerController) errorBase(err error) viewmodels.BaseViewModel {
	result := viewmodels.BaseViewModel{IsWarning: true}

	switch {
	case errors.Is(err, models.ErrAlbumNotFound):
		result.Message = MessageAlbumNotFound

	case errors.Is(err, models.ErrClientNotFound):
		result.Message = MessageClientNotFound

	case errors.Is(err, models.ErrAlbumExpired):
		result.Message = MessageAlbumExpired

	case errors.Is(err, models.ErrInvalidStatusTransition):
		result.Message = MessageInvalidStatus

	default:
		slog.Error("unexpected error in photographer area", "error", err)
		result.IsWarning = false
		result.IsError = true
		result.Message = MessageUnexpected
	}

	return result
}

func albumPath(albumID uint) string {
	return fmt.Sprintf("/dashboard/albums/%d", albumID)
}

func albumFormFromRequest(r *http.Request) internalmodels.AlbumFormValues {
	return internalmodels.AlbumFormValues{
		Name:               httphelpers.GetFromRequest[string](r, "name"),
		ClientEmail:        httphelpers.GetFromRequest[string](r, "clientEmail"),
		SelectionLimit:     httphelpers.GetFromRequest[string](r, "selectionLimit"),
		AccessPassword:     httphelpers.GetFromRequest[string](r, "accessPassword"),
		ExpiresAt:          httphelpers.GetFromRequest[string](r, "expiresAt"),
		ExtraPhotoCost:     httphelpers.GetFromRequest[string](r, "extraPhotoCost"),
		CourtesyPhotoCount: httphelpers.GetFromRequest[string](r, "courtesyPhotoCount"),
	}
}
