package photographer

import (
	"context"
	"embed"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/adampresley/adamgokit/rendering"
	"github.com/adampresley/fotofacil/pkg/access"
	"github.com/adampresley/fotofacil/pkg/models"
	"github.com/adampresley/fotofacil/pkg/services"
	"github.com/stretchr/testify/require"
)

//go:embed testdata
var testTemplates embed.FS

const testPhotographerID uint = 1

type stubAlbums struct {
	services.AlbumServicer
	albums    map[uint]*models.Album
	created   []services.AlbumInput
	createErr error
	updateErr error
	openErr   error
	deliver   error
}

func (s *stubAlbums) Create(ctx context.Context, photographerID uint, input services.AlbumInput) (*models.Album, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}

	s.created = append(s.created, input)

	album := &models.Album{
		BaseModel:      models.BaseModel{ID: uint(len(s.albums) + 10)},
		PhotographerID: photographerID,
		Name:           input.Name,
		Status:         models.AlbumStatusPending,
		SelectionLimit: input.SelectionLimit,
	}

	s.albums[album.ID] = album
	return album, nil
}

func (s *stubAlbums) Deliver(ctx context.Context, photographerID, albumID uint) (*models.Album, error) {
	if s.deliver != nil {
		return nil, s.deliver
	}

	album, err := s.GetForPhotographer(ctx, photographerID, albumID)
	if err != nil {
		return nil, err
	}

	s.albums[albumID].Status = models.AlbumStatusDelivered
	return album, nil
}

func (s *stubAlbums) GetForPhotographer(ctx context.Context, photographerID, albumID uint) (*models.Album, error) {
	album, ok := s.albums[albumID]
	if !ok || album.PhotographerID != photographerID {
		return nil, models.ErrAlbumNotFound
	}

	result := *album
	return &result, nil
}

func (s *stubAlbums) ListForPhotographer(ctx context.Context, photographerID uint) ([]*models.Album, error) {
	result := []*models.Album{}

	for _, album := range s.albums {
		if album.PhotographerID == photographerID {
			result = append(result, album)
		}
	}

	return result, nil
}

func (s *stubAlbums) OpenForSelection(ctx context.Context, photographerID, albumID uint) (*models.Album, error) {
	if s.openErr != nil {
		return nil, s.openErr
	}

	album, err := s.GetForPhotographer(ctx, photographerID, albumID)
	if err != nil {
		return nil, err
	}

	s.albums[albumID].Status = models.AlbumStatusAwaitingSelection
	album.Status = models.AlbumStatusAwaitingSelection

	return album, nil
}

func (s *stubAlbums) Update(ctx context.Context, photographerID, albumID uint, input services.AlbumInput) (*models.Album, error) {
	if s.updateErr != nil {
		return nil, s.updateErr
	}

	album, err := s.GetForPhotographer(ctx, photographerID, albumID)
	if err != nil {
		return nil, err
	}

	s.albums[albumID].Name = input.Name
	return album, nil
}

type stubIdentities struct {
	services.IdentityServicer
}

func (s stubIdentities) GetByID(ctx context.Context, id uint) (*models.Identity, error) {
	return &models.Identity{BaseModel: models.BaseModel{ID: id}, Email: "cliente@example.com", Role: models.RoleClient}, nil
}

type stubMailer struct {
	services.Mailer
	albumURLs []string
	err       error
}

func (m *stubMailer) SendAlbumReady(ctx context.Context, client *models.Identity, album *models.Album, albumURL string) error {
	m.albumURLs = append(m.albumURLs, albumURL)
	return m.err
}

type stubPhotos struct {
	services.PhotoServicer
}

func (s stubPhotos) ListByAlbum(ctx context.Context, albumID uint) ([]*models.Photo, error) {
	return []*models.Photo{}, nil
}

type stubSelections struct {
	services.SelectionServicer
	selected []uint
}

func (s stubSelections) SelectedPhotoIDs(ctx context.Context, clientID, albumID uint) ([]uint, error) {
	return s.selected, nil
}

type photographerEnv struct {
	albums     *stubAlbums
	mailer     *stubMailer
	controller PhotographerController
}

func newPhotographerEnv(t *testing.T, albums ...*models.Album) *photographerEnv {
	t.Helper()

	renderer, err := rendering.NewGoTemplateRenderer(rendering.GoTemplateRendererConfig{
		TemplateDir:       "testdata",
		TemplateExtension: ".html",
		TemplateFS:        testTemplates,
		PagesDir:          "pages",
	})
	require.NoError(t, err)

	env := &photographerEnv{
		albums: &stubAlbums{albums: map[uint]*models.Album{}},
		mailer: &stubMailer{},
	}

	for _, album := range albums {
		env.albums.albums[album.ID] = album
	}

	env.controller = NewPhotographerController(PhotographerControllerConfig{
		AlbumService:     env.albums,
		BaseURL:          "http://localhost:8080/",
		IdentityService:  stubIdentities{},
		Keys:             services.PhotoKeys{Folder: "albums"},
		Mailer:           env.mailer,
		PhotoService:     stubPhotos{},
		Renderer:         renderer,
		SelectionService: stubSelections{selected: []uint{4, 5}},
	})

	return env
}

// serve runs one handler as the signed-in photographer.
func serve(handler http.HandlerFunc, form url.Values, albumID string, headers map[string]string) *httptest.ResponseRecorder {
	var body io.Reader

	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	r := httptest.NewRequest(http.MethodPost, "/dashboard/albums/"+albumID, body)

	if form != nil {
		r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	for key, value := range headers {
		r.Header.Set(key, value)
	}

	if albumID != "" {
		r.SetPathValue("id", albumID)
	}

	identity := &models.Identity{BaseModel: models.BaseModel{ID: testPhotographerID}, Role: models.RolePhotographer}
	r = r.WithContext(access.ContextWithIdentity(r.Context(), identity))

	w := httptest.NewRecorder()
	handler(w, r)

	return w
}

func firstLine(body string) string {
	line, _, _ := strings.Cut(body, "\n")
	return strings.TrimSpace(line)
}

func photographerAlbum(id uint, status models.AlbumStatus) *models.Album {
	return &models.Album{
		BaseModel:      models.BaseModel{ID: id},
		PhotographerID: testPhotographerID,
		ClientID:       2,
		Name:           "Casamento",
		Status:         status,
		SelectionLimit: 5,
	}
}
