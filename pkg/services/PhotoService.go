package services

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/adampresley/adamgokit/slices"
	"github.com/adampresley/fotofacil/pkg/metrics"
	"github.com/adampresley/fotofacil/pkg/models"
	"github.com/rfberaldo/sqlz"
)

var (
	ErrUnsupportedImage = fmt.Errorf("unsupported image type")
	ErrAlbumClosed      = fmt.Errorf("album no longer accepts uploads")
)

type PhotoServicer interface {
	Get(ctx context.Context, albumID, photoID uint) (*models.Photo, error)
	ListByAlbum(ctx context.Context, albumID uint) ([]*models.Photo, error)
	Upload(ctx context.Context, photographerID, albumID uint, files []UploadFile) ([]*models.Photo, error)
}

type UploadFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// ThumbnailQueue receives original keys that need a thumbnail.
type ThumbnailQueue interface {
	Enqueue(originalKey string)
}

type PhotoServiceConfig struct {
	Albums     AlbumServicer
	DB         *sqlz.DB
	Keys       PhotoKeys
	Storage    PhotoStorage
	Tagger     Tagger
	Thumbnails ThumbnailQueue
}

type PhotoService struct {
	albums     AlbumServicer
	db         *sqlz.DB
	keys       PhotoKeys
	storage    PhotoStorage
	tagger     Tagger
	thumbnails ThumbnailQueue
}

func NewPhotoService(config PhotoServiceConfig) PhotoService {
	return PhotoService{
		albums:     config.Albums,
		db:         config.DB,
		keys:       config.Keys,
		storage:    config.Storage,
		tagger:     config.Tagger,
		thumbnails: config.Thumbnails,
	}
}

func (s PhotoService) Get(ctx context.Context, albumID, photoID uint) (*models.Photo, error) {
	sql := `
SELECT
   id
   , album_id
   , storage_key
   , name
   , tags
   , created_at
FROM photos
WHERE 1=1
   AND id=?
   AND album_id=?
`

	result := &models.Photo{}

	if err := s.db.QueryRow(ctx, result, sql, photoID, albumID); err != nil {
		if sqlz.IsNotFound(err) {
			return nil, models.ErrPhotoNotFound
		}

		return nil, fmt.Errorf("error querying for photo %d: %w", photoID, err)
	}

	return result, nil
}

func (s PhotoService) ListByAlbum(ctx context.Context, albumID uint) ([]*models.Photo, error) {
	sql := `
SELECT
   id
   , album_id
   , storage_key
   , name
   , tags
   , created_at
FROM photos
WHERE 1=1
   AND album_id=?
ORDER BY created_at, id
`

	result := []*models.Photo{}

	if err := s.db.Query(ctx, &result, sql, albumID); err != nil && !sqlz.IsNotFound(err) {
		return result, fmt.Errorf("error querying for photos in album %d: %w", albumID, err)
	}

	return result, nil
}

/*
Upload stores each file, asks the tagger to describe it, and records the
photo. Tagging is best-effort: when it fails the photo is still saved with
an empty tag list.
*/
func (s PhotoService) Upload(ctx context.Context, photographerID, albumID uint, files []UploadFile) ([]*models.Photo, error) {
	var (
		err   error
		album *models.Album
	)

	result := []*models.Photo{}

	if album, err = s.albums.GetForPhotographer(ctx, photographerID, albumID); err != nil {
		return result, err
	}

	if album.EffectiveStatus(time.Now()).IsTerminal() {
		return result, ErrAlbumClosed
	}

	for _, file := range files {
		photo, err := s.uploadOne(ctx, album, file)
		if err != nil {
			return result, err
		}

		result = append(result, photo)
	}

	return result, nil
}

func (s PhotoService) uploadOne(ctx context.Context, album *models.Album, file UploadFile) (*models.Photo, error) {
	var (
		err  error
		tags []string
	)

	l := slog.With("albumID", album.ID, "fileName", file.Name)

	contentType := file.ContentType
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(file.Data)
	}

	if !strings.HasPrefix(contentType, "image/") || !slices.IsInSlice(strings.ToLower(filepath.Ext(file.Name)), imageExtensions) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedImage, file.Name)
	}

	key := s.keys.NewOriginal(album.PhotographerID, album.ID, file.Name)

	if err = s.storage.Put(key, bytes.NewReader(file.Data)); err != nil {
		return nil, fmt.Errorf("error storing photo '%s': %w", file.Name, err)
	}

	if tags, err = s.tagger.Tag(ctx, DataURI(contentType, file.Data)); err != nil {
		l.Warn("photo tagging failed, saving without tags", "error", err)
		metrics.TaggingFailuresTotal.Inc()
		tags = []string{}
	}

	sql := `
INSERT INTO photos (
   album_id
   , storage_key
   , name
   , tags
   , created_at
) VALUES (?, ?, ?, ?, ?)
`

	res, err := s.db.Exec(ctx, sql, album.ID, key, file.Name, models.EncodeTags(tags), time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("error inserting photo '%s': %w", file.Name, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("error reading new photo id: %w", err)
	}

	metrics.PhotosUploadedTotal.Inc()

	if s.thumbnails != nil {
		s.thumbnails.Enqueue(key)
	}

	l.Info("photo uploaded", "photoID", id, "key", key, "numTags", len(tags))
	return s.Get(ctx, album.ID, uint(id))
}
