package clientaccess

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"time"

	"github.com/adampresley/adamgokit/httphelpers"
	"github.com/adampresley/adamgokit/rendering"
	"github.com/adampresley/adamgokit/sessions"
	internalmodels "github.com/adampresley/fotofacil/cmd/website/internal/models"
	"github.com/adampresley/fotofacil/cmd/website/internal/viewmodels"
	"github.com/adampresley/fotofacil/pkg/access"
	"github.com/adampresley/fotofacil/pkg/metrics"
	"github.com/adampresley/fotofacil/pkg/models"
	"github.com/adampresley/fotofacil/pkg/services"
)

const (
	MessageUnexpected       = "Ocorreu um erro inesperado. Tente novamente ou fale com o fotógrafo."
	MessageAlbumNotFound    = "Álbum não encontrado."
	MessageAlbumExpired     = "Este álbum expirou. Fale com o fotógrafo para reabri-lo."
	MessageWrongPassword    = "Senha incorreta. Tente novamente."
	MessageLimitReached     = "Você já escolheu o máximo de %d fotos."
	MessageSelectionClosed  = "Este álbum não está mais aceitando seleções."
	MessageSubmitted        = "Seleção enviada ao fotógrafo!"
	MessageAlreadySubmitted = "Sua seleção já havia sido enviada."
	MessageNotDelivered     = "As fotos ficam disponíveis para download depois da entrega."
)

type ClientAccessHandlers interface {
	AlbumListPage(w http.ResponseWriter, r *http.Request)
	DownloadAllImagesInAlbum(w http.ResponseWriter, r *http.Request)
	DownloadImage(w http.ResponseWriter, r *http.Request)
	DownloadZip(w http.ResponseWriter, r *http.Request)
	SubmitSelectionAction(w http.ResponseWriter, r *http.Request)
	ToggleSelection(w http.ResponseWriter, r *http.Request)
	UnlockAlbumAction(w http.ResponseWriter, r *http.Request)
	ViewAlbumPage(w http.ResponseWriter, r *http.Request)
}

type ClientAccessControllerConfig struct {
	AlbumService     services.AlbumServicer
	Keys             services.PhotoKeys
	PhotoService     services.PhotoServicer
	Renderer         rendering.TemplateRenderer
	SelectionService services.SelectionServicer
	Storage          services.PhotoStorage
	UnlockedSessions sessions.Session[*models.UnlockedAlbums]
	ZipService       services.ZipServicer
}

type ClientAccessController struct {
	albumService     services.AlbumServicer
	keys             services.PhotoKeys
	photoService     services.PhotoServicer
	renderer         rendering.TemplateRenderer
	selectionService services.SelectionServicer
	storage          services.PhotoStorage
	unlockedSessions sessions.Session[*models.UnlockedAlbums]
	zipService       services.ZipServicer
}

func NewClientAccessController(config ClientAccessControllerConfig) ClientAccessController {
	return ClientAccessController{
		albumService:     config.AlbumService,
		keys:             config.Keys,
		photoService:     config.PhotoService,
		renderer:         config.Renderer,
		selectionService: config.SelectionService,
		storage:          config.Storage,
		unlockedSessions: config.UnlockedSessions,
		zipService:       config.ZipService,
	}
}

/*
GET /client
*/
func (c ClientAccessController) AlbumListPage(w http.ResponseWriter, r *http.Request) {
	c.renderAlbumList(w, r, viewmodels.BaseViewModel{})
}

func (c ClientAccessController) renderAlbumList(w http.ResponseWriter, r *http.Request, base viewmodels.BaseViewModel) {
	base.IsHtmx = httphelpers.IsHtmx(r)
	base.Identity = viewmodels.GetIdentityFromContext(r)

	viewData := viewmodels.ClientAlbumList{
		BaseViewModel: base,
		Albums:        []internalmodels.AlbumCard{},
	}

	albums, err := c.albumService.ListForClient(r.Context(), viewData.Identity.ID)
	if err != nil {
		slog.Error("error getting album list", "error", err, "clientID", viewData.Identity.ID)
		viewData.IsError = true
		viewData.Message = MessageUnexpected

		c.renderer.Render("pages/clientaccess/album-list", viewData, w)
		return
	}

	now := time.Now()

	for _, album := range albums {
		viewData.Albums = append(viewData.Albums, internalmodels.NewAlbumCard(album, now))
	}

	c.renderer.Render("pages/clientaccess/album-list", viewData, w)
}

/*
GET /client/albums/{id}
*/
func (c ClientAccessController) ViewAlbumPage(w http.ResponseWriter, r *http.Request) {
	c.renderAlbum(w, r, httphelpers.GetFromRequest[uint](r, "id"), viewmodels.BaseViewModel{})
}

func (c ClientAccessController) renderAlbum(w http.ResponseWriter, r *http.Request, albumID uint, base viewmodels.BaseViewModel) {
	var (
		err         error
		album       *models.Album
		photos      []*models.Photo
		selectedIDs []uint
	)

	identity := viewmodels.GetIdentityFromContext(r)

	if album, err = c.unlockedAlbum(r, identity.ID, albumID); err != nil {
		c.renderGateFailure(w, r, album, err)
		return
	}

	base.IsHtmx = httphelpers.IsHtmx(r)
	base.Identity = identity
	base.JavascriptIncludes = []rendering.JavascriptInclude{
		{Type: "module", Src: "/static/js/pages/view-album.js"},
	}

	viewData := viewmodels.ClientViewAlbum{
		BaseViewModel: base,
		Album:         internalmodels.NewAlbumCard(album, time.Now()),
		Photos:        []internalmodels.AlbumPhoto{},
		CanSelect:     album.EffectiveStatus(time.Now()) == models.AlbumStatusAwaitingSelection,
	}

	if photos, err = c.photoService.ListByAlbum(r.Context(), album.ID); err != nil {
		slog.Error("an error occurred listing photos in ViewAlbumPage", "error", err, "albumID", album.ID)
		viewData.IsError = true
		viewData.Message = MessageUnexpected
	}

	if selectedIDs, err = c.selectionService.SelectedPhotoIDs(r.Context(), identity.ID, album.ID); err != nil {
		slog.Error("an error occurred listing selections in ViewAlbumPage", "error", err, "albumID", album.ID)
	}

	viewData.Summary = models.SummarizeSelection(album, len(selectedIDs))
	viewData.Photos = internalmodels.NewAlbumPhotos(photos, c.storage, c.keys, selectedIDs)

	c.renderer.Render("pages/clientaccess/view-album", viewData, w)
}

/*
POST /client/albums/{id}/unlock
*/
func (c ClientAccessController) UnlockAlbumAction(w http.ResponseWriter, r *http.Request) {
	var (
		err      error
		album    *models.Album
		unlocked *models.UnlockedAlbums
	)

	identity := viewmodels.GetIdentityFromContext(r)
	albumID := httphelpers.GetFromRequest[uint](r, "id")

	if album, err = c.clientAlbum(r.Context(), identity.ID, albumID); err != nil {
		c.renderGateFailure(w, r, nil, err)
		return
	}

	if err = access.CheckAlbumAccess(album, httphelpers.GetFromRequest[string](r, "password"), time.Now()); err != nil {
		c.renderGateFailure(w, r, album, err)
		return
	}

	if unlocked, err = c.unlockedSessions.Get(r); err != nil || unlocked == nil {
		unlocked = &models.UnlockedAlbums{}
	}

	unlocked.Add(album.ID)

	if err = c.unlockedSessions.Set(r, unlocked); err != nil {
		slog.Error("error setting unlocked albums session", "error", err)
	}

	if err = c.unlockedSessions.Save(w, r); err != nil {
		slog.Error("error saving unlocked albums session", "error", err)
	}

	http.Redirect(w, r, fmt.Sprintf("/client/albums/%d", album.ID), http.StatusSeeOther)
}

/*
POST /client/albums/{id}/photos/{photoid}/toggle
*/
func (c ClientAccessController) ToggleSelection(w http.ResponseWriter, r *http.Request) {
	var (
		err      error
		album    *models.Album
		selected bool
		summary  models.SelectionSummary
	)

	identity := viewmodels.GetIdentityFromContext(r)
	albumID := httphelpers.GetFromRequest[uint](r, "id")
	photoID := httphelpers.GetFromRequest[uint](r, "photoid")

	if album, err = c.unlockedAlbum(r, identity.ID, albumID); err != nil {
		httphelpers.WriteText(w, http.StatusForbidden, gateMessage(err))
		return
	}

	if selected, err = c.selectionService.Toggle(r.Context(), identity.ID, album.ID, photoID); err != nil {
		switch {
		case errors.Is(err, models.ErrSelectionLimitReached):
			httphelpers.WriteText(w, http.StatusConflict, fmt.Sprintf(MessageLimitReached, album.SelectionLimit))

		case errors.Is(err, models.ErrSelectionClosed), errors.Is(err, models.ErrAlbumExpired):
			httphelpers.WriteText(w, http.StatusConflict, MessageSelectionClosed)

		case errors.Is(err, models.ErrPhotoNotFound), errors.Is(err, models.ErrAlbumNotFound):
			httphelpers.WriteText(w, http.StatusNotFound, MessageAlbumNotFound)

		default:
			slog.Error("error toggling selection", "error", err, "albumID", album.ID, "photoID", photoID)
			httphelpers.TextInternalServerError(w, MessageUnexpected)
		}

		return
	}

	if summary, err = c.selectionService.Summary(r.Context(), album); err != nil {
		slog.Error("error summarizing selection", "error", err, "albumID", album.ID)
	}

	httphelpers.WriteHtml(w, http.StatusOK, toggleMarkup(album.ID, photoID, selected, summary))
}

/*
POST /client/albums/{id}/submit
*/
func (c ClientAccessController) SubmitSelectionAction(w http.ResponseWriter, r *http.Request) {
	var (
		err    error
		album  *models.Album
		result services.SubmitResult
	)

	identity := viewmodels.GetIdentityFromContext(r)
	albumID := httphelpers.GetFromRequest[uint](r, "id")

	if album, err = c.unlockedAlbum(r, identity.ID, albumID); err != nil {
		c.renderGateFailure(w, r, album, err)
		return
	}

	if result, err = c.selectionService.Submit(r.Context(), identity.ID, album.ID); err != nil {
		switch {
		case errors.Is(err, models.ErrAlbumExpired):
			c.renderAlbumList(w, r, viewmodels.BaseViewModel{IsWarning: true, Message: MessageAlbumExpired})

		case errors.Is(err, models.ErrSelectionClosed), errors.Is(err, models.ErrInvalidStatusTransition):
			c.renderAlbum(w, r, album.ID, viewmodels.BaseViewModel{IsWarning: true, Message: MessageSelectionClosed})

		default:
			slog.Error("error submitting selection", "error", err, "albumID", album.ID)
			c.renderAlbum(w, r, album.ID, viewmodels.BaseViewModel{IsError: true, Message: MessageUnexpected})
		}

		return
	}

	message := MessageSubmitted

	if result.AlreadySubmitted {
		message = MessageAlreadySubmitted
	}

	c.renderAlbum(w, r, album.ID, viewmodels.BaseViewModel{IsSuccess: true, Message: message})
}

/*
GET /client/albums/{id}/photos/{photoid}/download
*/
func (c ClientAccessController) DownloadImage(w http.ResponseWriter, r *http.Request) {
	var (
		err         error
		album       *models.Album
		photo       *models.Photo
		body        io.ReadCloser
		contentType string
	)

	identity := viewmodels.GetIdentityFromContext(r)
	albumID := httphelpers.GetFromRequest[uint](r, "id")
	photoID := httphelpers.GetFromRequest[uint](r, "photoid")

	if album, err = c.deliveredAlbum(r, identity.ID, albumID); err != nil {
		httphelpers.WriteText(w, http.StatusForbidden, gateMessage(err))
		return
	}

	if photo, err = c.photoService.Get(r.Context(), album.ID, photoID); err != nil {
		httphelpers.WriteText(w, http.StatusNotFound, MessageAlbumNotFound)
		return
	}

	if body, contentType, err = c.storage.Get(photo.StorageKey); err != nil {
		slog.Error("error getting image object from storage", "error", err, "key", photo.StorageKey)
		httphelpers.WriteText(w, http.StatusInternalServerError, MessageUnexpected)
		return
	}

	defer body.Close()

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", path.Base(photo.Name)))

	_, _ = io.Copy(w, body)
}

/*
GET /client/albums/{id}/download-all
*/
func (c ClientAccessController) DownloadAllImagesInAlbum(w http.ResponseWriter, r *http.Request) {
	var (
		err   error
		album *models.Album
	)

	identity := viewmodels.GetIdentityFromContext(r)
	albumID := httphelpers.GetFromRequest[uint](r, "id")

	if album, err = c.deliveredAlbum(r, identity.ID, albumID); err != nil {
		c.renderGateFailure(w, r, album, err)
		return
	}

	// Start the async zip creation process
	if _, err = c.zipService.CreateZipAsync(album, identity); err != nil {
		slog.Error("failed to start zip creation", "error", err, "albumID", albumID)
		c.renderAlbum(w, r, album.ID, viewmodels.BaseViewModel{IsError: true, Message: MessageUnexpected})
		return
	}

	viewData := viewmodels.ClientDownloadStarted{
		BaseViewModel: viewmodels.BaseViewModel{
			IsHtmx:   httphelpers.IsHtmx(r),
			Identity: identity,
		},
		Album: internalmodels.NewAlbumCard(album, time.Now()),
	}

	c.renderer.Render("pages/clientaccess/download-started", viewData, w)
}

/*
GET /client/downloads/{id}/{filename}
*/
func (c ClientAccessController) DownloadZip(w http.ResponseWriter, r *http.Request) {
	var (
		err   error
		album *models.Album
		body  io.ReadCloser
	)

	identity := viewmodels.GetIdentityFromContext(r)
	albumID := httphelpers.GetFromRequest[uint](r, "id")

	// Sanitize the filename to prevent directory traversal
	filename := path.Base(httphelpers.GetFromRequest[string](r, "filename"))

	if album, err = c.deliveredAlbum(r, identity.ID, albumID); err != nil {
		httphelpers.WriteText(w, http.StatusNotFound, "Download file not found")
		return
	}

	zipKey := c.zipService.DownloadKey(album, filename)
	slog.Info("serving zip download", "filename", filename, "key", zipKey, "clientID", identity.ID)

	if body, _, err = c.storage.Get(zipKey); err != nil {
		slog.Error("error getting zip object from storage", "error", err, "key", zipKey)
		httphelpers.WriteText(w, http.StatusNotFound, "Download file not found")
		return
	}

	defer body.Close()

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	if _, err = io.Copy(w, body); err != nil {
		slog.Error("error streaming zip file", "error", err, "key", zipKey)
		return
	}

	slog.Info("zip file download completed", "filename", filename, "clientID", identity.ID)
}

/*
clientAlbum loads an album linked to the client. Albums the photographer has
not released yet are reported as not found.
*/
func (c ClientAccessController) clientAlbum(ctx context.Context, clientID, albumID uint) (*models.Album, error) {
	album, err := c.albumService.GetForClient(ctx, clientID, albumID)
	if err != nil {
		return nil, err
	}

	if album.Status == models.AlbumStatusPending {
		return nil, models.ErrAlbumNotFound
	}

	return album, nil
}

// unlockedAlbum loads the album and applies the album gate using the unlocked albums session.
func (c ClientAccessController) unlockedAlbum(r *http.Request, clientID, albumID uint) (*models.Album, error) {
	album, err := c.clientAlbum(r.Context(), clientID, albumID)
	if err != nil {
		return nil, err
	}

	unlocked, err := c.unlockedSessions.Get(r)
	if err != nil {
		unlocked = nil
	}

	if err = access.CheckUnlockedAlbum(album, unlocked, time.Now()); err != nil {
		return album, err
	}

	return album, nil
}

var errNotDelivered = errors.New("album not delivered")

func (c ClientAccessController) deliveredAlbum(r *http.Request, clientID, albumID uint) (*models.Album, error) {
	album, err := c.unlockedAlbum(r, clientID, albumID)
	if err != nil {
		return album, err
	}

	if album.Status != models.AlbumStatusDelivered {
		return album, errNotDelivered
	}

	return album, nil
}

/*
renderGateFailure shows the password prompt for a locked album and sends
everything else back to the album list with a message.
*/
func (c ClientAccessController) renderGateFailure(w http.ResponseWriter, r *http.Request, album *models.Album, err error) {
	switch {
	case errors.Is(err, models.ErrInvalidPassword) && album != nil:
		metrics.AlbumGateDenialsTotal.WithLabelValues("password").Inc()

		viewData := viewmodels.ClientAlbumPassword{
			BaseViewModel: viewmodels.BaseViewModel{
				IsHtmx:   httphelpers.IsHtmx(r),
				Identity: viewmodels.GetIdentityFromContext(r),
			},
			Album: internalmodels.NewAlbumCard(album, time.Now()),
		}

		if r.Method == http.MethodPost {
			viewData.IsWarning = true
			viewData.Message = MessageWrongPassword
		}

		c.renderer.Render("pages/clientaccess/album-password", viewData, w)

	case errors.Is(err, models.ErrAlbumExpired):
		metrics.AlbumGateDenialsTotal.WithLabelValues("expired").Inc()
		c.renderAlbumList(w, r, viewmodels.BaseViewModel{IsWarning: true, Message: MessageAlbumExpired})

	case errors.Is(err, errNotDelivered) && album != nil:
		c.renderAlbum(w, r, album.ID, viewmodels.BaseViewModel{IsWarning: true, Message: MessageNotDelivered})

	case errors.Is(err, models.ErrAlbumNotFound):
		c.renderAlbumList(w, r, viewmodels.BaseViewModel{IsWarning: true, Message: MessageAlbumNotFound})

	default:
		slog.Error("error loading album for client", "error", err)
		c.renderAlbumList(w, r, viewmodels.BaseViewModel{IsError: true, Message: MessageUnexpected})
	}
}

func gateMessage(err error) string {
	switch {
	case errors.Is(err, models.ErrAlbumExpired):
		return MessageAlbumExpired
	case errors.Is(err, models.ErrInvalidPassword):
		return MessageWrongPassword
	case errors.Is(err, errNotDelivered):
		return MessageNotDelivered
	case errors.Is(err, models.ErrAlbumNotFound):
		return MessageAlbumNotFound
	}

	return MessageUnexpected
}

/*
toggleMarkup renders the replacement button for a photo plus an out-of-band
update of the selection counter.
*/
func toggleMarkup(albumID, photoID uint, selected bool, summary models.SelectionSummary) string {
	class := "select-toggle"
	label := "Selecionar"

	if selected {
		class += " is-selected"
		label = "Selecionada"
	}

	return fmt.Sprintf(
		`<button class="%s" hx-post="/client/albums/%d/photos/%d/toggle" hx-swap="outerHTML">%s</button>`+
			`<span id="selection-count" hx-swap-oob="true">%d / %d</span>`,
		class, albumID, photoID, label, summary.Selected, summary.Limit,
	)
}
