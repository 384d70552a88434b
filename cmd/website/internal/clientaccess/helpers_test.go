package clientaccess

import (
	"bytes"
	"context"
	"embed"
	"encoding/gob"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/adampresley/adamgokit/rendering"
	"github.com/adampresley/adamgokit/sessions"
	"github.com/adampresley/fotofacil/pkg/access"
	"github.com/adampresley/fotofacil/pkg/models"
	"github.com/adampresley/fotofacil/pkg/services"
	"github.com/stretchr/testify/require"
)

//go:embed testdata
var testTemplates embed.FS

var registerGob sync.Once

const testCookieSecret = "0123456789abcdef0123456789abcdef"

type stubAlbums struct {
	services.AlbumServicer
	albums map[uint]*models.Album
}

func (s *stubAlbums) GetForClient(ctx context.Context, clientID, albumID uint) (*models.Album, error) {
	album, ok := s.albums[albumID]
	if !ok || album.ClientID != clientID {
		return nil, models.ErrAlbumNotFound
	}

	result := *album
	return &result, nil
}

func (s *stubAlbums) ListForClient(ctx context.Context, clientID uint) ([]*models.Album, error) {
	result := []*models.Album{}

	for _, album := range s.albums {
		if album.ClientID == clientID && album.Status != models.AlbumStatusPending {
			result = append(result, album)
		}
	}

	return result, nil
}

type stubSelections struct {
	services.SelectionServicer
	selected     []uint
	submitResult services.SubmitResult
	submitErr    error
	toggleErr    error
}

func (s *stubSelections) SelectedPhotoIDs(ctx context.Context, clientID, albumID uint) ([]uint, error) {
	return s.selected, nil
}

func (s *stubSelections) Submit(ctx context.Context, clientID, albumID uint) (services.SubmitResult, error) {
	return s.submitResult, s.submitErr
}

func (s *stubSelections) Summary(ctx context.Context, album *models.Album) (models.SelectionSummary, error) {
	return models.SummarizeSelection(album, len(s.selected)), nil
}

func (s *stubSelections) Toggle(ctx context.Context, clientID, albumID, photoID uint) (bool, error) {
	if s.toggleErr != nil {
		return false, s.toggleErr
	}

	s.selected = append(s.selected, photoID)
	return true, nil
}

type stubPhotos struct {
	services.PhotoServicer
	photos []*models.Photo
}

func (s *stubPhotos) Get(ctx context.Context, albumID, photoID uint) (*models.Photo, error) {
	for _, photo := range s.photos {
		if photo.AlbumID == albumID && photo.ID == photoID {
			return photo, nil
		}
	}

	return nil, models.ErrPhotoNotFound
}

func (s *stubPhotos) ListByAlbum(ctx context.Context, albumID uint) ([]*models.Photo, error) {
	return s.photos, nil
}

type stubStorage struct {
	services.PhotoStorage
	objects map[string][]byte
}

func (s *stubStorage) Get(key string) (io.ReadCloser, string, error) {
	data, ok := s.objects[key]
	if !ok {
		return nil, "", models.ErrPhotoNotFound
	}

	return io.NopCloser(bytes.NewReader(data)), "image/jpeg", nil
}

func (s *stubStorage) URL(key string) (string, error) {
	return "memory://" + key, nil
}

type stubZips struct {
	services.ZipServicer
	started []uint
}

func (s *stubZips) CreateZipAsync(album *models.Album, client *models.Identity) (string, error) {
	s.started = append(s.started, album.ID)
	return services.ZipFileName(album), nil
}

type clientAccessEnv struct {
	albums     *stubAlbums
	selections *stubSelections
	photos     *stubPhotos
	storage    *stubStorage
	zips       *stubZips
	controller ClientAccessController
}

func newClientAccessEnv(t *testing.T, albums ...*models.Album) *clientAccessEnv {
	t.Helper()

	registerGob.Do(func() {
		gob.Register(&models.UnlockedAlbums{})
	})

	renderer, err := rendering.NewGoTemplateRenderer(rendering.GoTemplateRendererConfig{
		TemplateDir:       "testdata",
		TemplateExtension: ".html",
		TemplateFS:        testTemplates,
		PagesDir:          "pages",
	})
	require.NoError(t, err)

	cookieStore := sessions.NewCookieStore(testCookieSecret)

	env := &clientAccessEnv{
		albums:     &stubAlbums{albums: map[uint]*models.Album{}},
		selections: &stubSelections{},
		photos:     &stubPhotos{},
		storage:    &stubStorage{objects: map[string][]byte{}},
		zips:       &stubZips{},
	}

	for _, album := range albums {
		env.albums.albums[album.ID] = album
	}

	env.controller = NewClientAccessController(ClientAccessControllerConfig{
		AlbumService:     env.albums,
		Keys:             services.PhotoKeys{Folder: "albums"},
		PhotoService:     env.photos,
		Renderer:         renderer,
		SelectionService: env.selections,
		Storage:          env.storage,
		UnlockedSessions: sessions.NewSessionWrapper[*models.UnlockedAlbums](cookieStore, "fotofacilalbums", "unlocked"),
		ZipService:       env.zips,
	})

	return env
}

/*
serve runs one handler as the signed-in client. Path values are set the way
the router would set them.
*/
func serve(handler http.HandlerFunc, method string, form url.Values, pathValues map[string]string, cookies []*http.Cookie) *httptest.ResponseRecorder {
	var body io.Reader

	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	r := httptest.NewRequest(method, "/client/albums/"+pathValues["id"], body)

	if form != nil {
		r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	for name, value := range pathValues {
		r.SetPathValue(name, value)
	}

	for _, cookie := range cookies {
		r.AddCookie(cookie)
	}

	identity := &models.Identity{BaseModel: models.BaseModel{ID: testClientID}, Role: models.RoleClient}
	r = r.WithContext(access.ContextWithIdentity(r.Context(), identity))

	w := httptest.NewRecorder()
	handler(w, r)

	return w
}

const testClientID uint = 2

func clientAlbumWithStatus(id uint, status models.AlbumStatus) *models.Album {
	return &models.Album{
		BaseModel:      models.BaseModel{ID: id},
		PhotographerID: 1,
		ClientID:       testClientID,
		Name:           "Ensaio",
		Status:         status,
		SelectionLimit: 5,
	}
}
