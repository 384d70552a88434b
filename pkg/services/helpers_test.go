package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/adampresley/fotofacil/pkg/migrations"
	"github.com/adampresley/fotofacil/pkg/models"
	_ "github.com/glebarez/sqlite"
	"github.com/rfberaldo/sqlz"
	"github.com/rfberaldo/sqlz/binds"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var registerBinds sync.Once

func newTestDB(t *testing.T) *sqlz.DB {
	t.Helper()

	registerBinds.Do(func() {
		binds.Register("sqlite", binds.BindByDriver("sqlite3"))
	})

	dsn := "file:" + filepath.Join(t.TempDir(), "test.db") + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"

	db, err := sqlz.Connect("sqlite", dsn)
	require.NoError(t, err)
	require.NoError(t, migrations.Migrate(db))

	return db
}

type testEnv struct {
	db         *sqlz.DB
	mailer     *stubMailer
	identities IdentityService
	albums     AlbumService
	selections SelectionService
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()

	db := newTestDB(t)
	mailer := &stubMailer{}

	identities := NewIdentityService(IdentityServiceConfig{
		BaseURL:    "http://localhost:8080",
		BcryptCost: bcrypt.MinCost,
		DB:         db,
		Mailer:     mailer,
	})

	albums := NewAlbumService(AlbumServiceConfig{
		DB:         db,
		Identities: identities,
	})

	selections := NewSelectionService(SelectionServiceConfig{
		Albums:     albums,
		DB:         db,
		Identities: identities,
		Mailer:     mailer,
	})

	return testEnv{
		db:         db,
		mailer:     mailer,
		identities: identities,
		albums:     albums,
		selections: selections,
	}
}

// signUpConfirmed creates an identity and exchanges its confirmation code.
func (e testEnv) signUpConfirmed(t *testing.T, email string, role models.Role) *models.Identity {
	t.Helper()
	ctx := context.Background()

	_, err := e.identities.SignUp(ctx, SignUpInput{
		Email:    email,
		Password: "segredo123",
		Role:     string(role),
		FullName: "Fulano de Tal",
	})
	require.NoError(t, err)

	identity, err := e.identities.ExchangeCode(ctx, e.mailer.codeFor(email))
	require.NoError(t, err)

	return identity
}

func (e testEnv) insertPhotos(t *testing.T, albumID uint, count int) []uint {
	t.Helper()

	result := make([]uint, 0, count)

	for i := 0; i < count; i++ {
		res, err := e.db.Exec(context.Background(),
			"INSERT INTO photos (album_id, storage_key, name, tags, created_at) VALUES (?, ?, ?, ?, ?)",
			albumID, fmt.Sprintf("albums/%d/originals/%d.jpg", albumID, i), fmt.Sprintf("foto-%d.jpg", i), "[]", time.Now().UTC(),
		)
		require.NoError(t, err)

		id, err := res.LastInsertId()
		require.NoError(t, err)

		result = append(result, uint(id))
	}

	return result
}

/*
openAlbum creates an album for the photographer linked to the client and
moves it to AwaitingSelection.
*/
func (e testEnv) openAlbum(t *testing.T, photographer, client *models.Identity, input AlbumInput) *models.Album {
	t.Helper()
	ctx := context.Background()

	input.ClientEmail = client.Email

	album, err := e.albums.Create(ctx, photographer.ID, input)
	require.NoError(t, err)

	album, err = e.albums.OpenForSelection(ctx, photographer.ID, album.ID)
	require.NoError(t, err)

	return album
}

type sentMail struct {
	Kind string
	To   string
	URL  string
}

type stubMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *stubMailer) record(kind, to, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sent = append(m.sent, sentMail{Kind: kind, To: to, URL: url})
	return m.err
}

func (m *stubMailer) count(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := 0

	for _, mail := range m.sent {
		if mail.Kind == kind {
			result++
		}
	}

	return result
}

func (m *stubMailer) codeFor(email string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := len(m.sent) - 1; i >= 0; i-- {
		if m.sent[i].Kind == "confirmation" && m.sent[i].To == email {
			_, code, _ := strings.Cut(m.sent[i].URL, "code=")
			return code
		}
	}

	return ""
}

func (m *stubMailer) SendAlbumReady(ctx context.Context, client *models.Identity, album *models.Album, albumURL string) error {
	return m.record("album_ready", client.Email, albumURL)
}

func (m *stubMailer) SendConfirmation(ctx context.Context, identity *models.Identity, confirmURL string) error {
	return m.record("confirmation", identity.Email, confirmURL)
}

func (m *stubMailer) SendDownloadReady(ctx context.Context, client *models.Identity, album *models.Album, downloadURL string, expirationDays int) error {
	return m.record("download_ready", client.Email, downloadURL)
}

func (m *stubMailer) SendSelectionSubmitted(ctx context.Context, photographer *models.Identity, album *models.Album, summary models.SelectionSummary) error {
	return m.record("selection_submitted", photographer.Email, "")
}

func (m *stubMailer) SendSupportRequest(ctx context.Context, request SupportRequest) error {
	return m.record("support", request.Email, "")
}

type memoryObject struct {
	data         []byte
	lastModified time.Time
}

type memoryStorage struct {
	mu            sync.Mutex
	objects       map[string]memoryObject
	putErr        error
	writeErr      error
	closedWriters int
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{objects: map[string]memoryObject{}}
}

func (s *memoryStorage) Delete(keys []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range keys {
		delete(s.objects, key)
	}

	return nil
}

func (s *memoryStorage) EnsureBucket() error {
	return nil
}

func (s *memoryStorage) Exists(key string) (bool, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	obj, ok := s.objects[key]
	return ok, obj.lastModified, nil
}

func (s *memoryStorage) Get(key string) (io.ReadCloser, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	obj, ok := s.objects[key]
	if !ok {
		return nil, "", fmt.Errorf("no such key %s", key)
	}

	return io.NopCloser(bytes.NewReader(obj.data)), "image/jpeg", nil
}

func (s *memoryStorage) List(prefix string, imagesOnly bool) ([]StoredObject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := []StoredObject{}

	for key, obj := range s.objects {
		if strings.HasPrefix(key, prefix) {
			result = append(result, StoredObject{Key: key, URL: "memory://" + key, LastModified: obj.lastModified})
		}
	}

	return result, nil
}

func (s *memoryStorage) OpenWriter(key, contentType string) (io.WriteCloser, error) {
	return &memoryWriter{storage: s, key: key}, nil
}

func (s *memoryStorage) Put(key string, r io.Reader) error {
	if s.putErr != nil {
		return s.putErr
	}

	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.objects[key] = memoryObject{data: b, lastModified: time.Now()}
	return nil
}

func (s *memoryStorage) URL(key string) (string, error) {
	return "memory://" + key, nil
}

func (s *memoryStorage) setModified(key string, t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	obj := s.objects[key]
	obj.lastModified = t
	s.objects[key] = obj
}

type memoryWriter struct {
	bytes.Buffer
	storage *memoryStorage
	key     string
}

func (w *memoryWriter) Write(p []byte) (int, error) {
	if w.storage.writeErr != nil {
		return 0, w.storage.writeErr
	}

	return w.Buffer.Write(p)
}

func (w *memoryWriter) Close() error {
	w.storage.mu.Lock()
	w.storage.closedWriters++
	w.storage.mu.Unlock()

	return w.storage.Put(w.key, &w.Buffer)
}

type stubTagger struct {
	tags []string
	err  error
}

func (s stubTagger) Tag(ctx context.Context, photoDataURI string) ([]string, error) {
	return s.tags, s.err
}

type recordingQueue struct {
	mu   sync.Mutex
	keys []string
}

func (q *recordingQueue) Enqueue(originalKey string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.keys = append(q.keys, originalKey)
}
