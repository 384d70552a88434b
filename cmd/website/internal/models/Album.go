package models

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/adampresley/adamgokit/slices"
	"github.com/adampresley/fotofacil/pkg/models"
	"github.com/adampresley/fotofacil/pkg/services"
)

/*
AlbumCard is an album prepared for display. Status is the effective status,
so an album past its expiration shows as expired before the sweep persists it.
*/
type AlbumCard struct {
	ID                 uint
	Name               string
	Status             models.AlbumStatus
	StatusLabel        string
	ClientName         string
	ClientEmail        string
	SelectionLimit     int
	CourtesyPhotoCount int
	ExtraPhotoCost     string
	HasPassword        bool
	ExpiresAt          string
	CreatedAt          string
}

type AlbumPhoto struct {
	ID           uint
	Name         string
	ThumbnailURL string
	OriginalURL  string
	Tags         []string
	IsSelected   bool
}

// AlbumFormValues mirrors the album form so invalid submissions can be re-rendered as typed.
type AlbumFormValues struct {
	ID                 uint
	Name               string
	ClientEmail        string
	SelectionLimit     string
	AccessPassword     string
	ExpiresAt          string
	ExtraPhotoCost     string
	CourtesyPhotoCount string
}

const (
	DisplayDateFormat = "02/01/2006 15:04"
	FormDateFormat    = "2006-01-02T15:04"
)

func NewAlbumCard(album *models.Album, now time.Time) AlbumCard {
	status := album.EffectiveStatus(now)

	result := AlbumCard{
		ID:                 album.ID,
		Name:               album.Name,
		Status:             status,
		StatusLabel:        status.Label(),
		ClientName:         album.Client.FullName,
		ClientEmail:        album.Client.Email,
		SelectionLimit:     album.SelectionLimit,
		CourtesyPhotoCount: album.CourtesyPhotoCount,
		HasPassword:        album.HasPassword(),
		CreatedAt:          album.CreatedAt.Local().Format(DisplayDateFormat),
	}

	if cost, ok := album.ExtraCost(); ok {
		result.ExtraPhotoCost = cost.StringFixed(2)
	}

	if album.ExpiresAt != nil {
		result.ExpiresAt = album.ExpiresAt.Local().Format(DisplayDateFormat)
	}

	return result
}

func NewAlbumFormValues(album *models.Album) AlbumFormValues {
	result := AlbumFormValues{
		ID:                 album.ID,
		Name:               album.Name,
		ClientEmail:        album.Client.Email,
		AccessPassword:     album.AccessPassword,
		ExtraPhotoCost:     album.ExtraPhotoCost,
		SelectionLimit:     strconv.Itoa(album.SelectionLimit),
		CourtesyPhotoCount: strconv.Itoa(album.CourtesyPhotoCount),
	}

	if album.ExpiresAt != nil {
		result.ExpiresAt = album.ExpiresAt.Local().Format(FormDateFormat)
	}

	return result
}

/*
NewAlbumPhotos converts stored photos to their display form with signed
URLs. The thumbnail may not exist yet right after upload; pages fall back to
the original in that case.
*/
func NewAlbumPhotos(photos []*models.Photo, storage services.PhotoStorage, keys services.PhotoKeys, selectedIDs []uint) []AlbumPhoto {
	result := make([]AlbumPhoto, 0, len(photos))

	for _, photo := range photos {
		originalURL, err := storage.URL(photo.StorageKey)
		if err != nil {
			slog.Error("error getting photo URL", "error", err, "photoID", photo.ID, "key", photo.StorageKey)
			continue
		}

		thumbnailURL, err := storage.URL(keys.ThumbnailFor(photo.StorageKey))
		if err != nil {
			thumbnailURL = originalURL
		}

		result = append(result, AlbumPhoto{
			ID:           photo.ID,
			Name:         photo.Name,
			ThumbnailURL: thumbnailURL,
			OriginalURL:  originalURL,
			Tags:         photo.Tags(),
			IsSelected:   slices.IsInSlice(photo.ID, selectedIDs),
		})
	}

	return result
}
