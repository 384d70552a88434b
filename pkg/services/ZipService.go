package services

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/adampresley/fotofacil/pkg/models"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

type ZipServiceConfig struct {
	BaseDownloadURL string
	ExpirationDays  int
	Keys            PhotoKeys
	Mailer          Mailer
	Photos          PhotoServicer
	Selections      SelectionServicer
	Storage         PhotoStorage
}

type ZipServicer interface {
	CreateZipAsync(album *models.Album, client *models.Identity) (string, error)
	DownloadKey(album *models.Album, fileName string) string
	StartCleanupRoutine(interval time.Duration)
	StopCleanupRoutine()
}

type ZipService struct {
	config        ZipServiceConfig
	cleanupTicker *time.Ticker
	stopCleanup   chan struct{}
	wg            *sync.WaitGroup
}

func NewZipService(config ZipServiceConfig) *ZipService {
	// Default expiration to 7 days if not specified
	if config.ExpirationDays <= 0 {
		config.ExpirationDays = 7
	}

	config.BaseDownloadURL = strings.TrimSuffix(config.BaseDownloadURL, "/")

	return &ZipService{
		config:      config,
		stopCleanup: make(chan struct{}),
		wg:          &sync.WaitGroup{},
	}
}

/*
ZipFileName derives the download file name from the album. The name is
reduced to lowercase ASCII letters, digits and dashes so it is safe both as
a storage key segment and as a URL path segment.
*/
func ZipFileName(album *models.Album) string {
	slug := slugify(album.Name)

	if slug == "" {
		slug = "album"
	}

	return fmt.Sprintf("%s-%d.zip", slug, album.ID)
}

func slugify(name string) string {
	stripMarks := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

	plain, _, err := transform.String(stripMarks, name)
	if err != nil {
		plain = name
	}

	b := strings.Builder{}
	pendingDash := false

	for _, r := range strings.ToLower(plain) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}

			b.WriteRune(r)
			pendingDash = false
			continue
		}

		pendingDash = true
	}

	return b.String()
}

func (s *ZipService) DownloadKey(album *models.Album, fileName string) string {
	return path.Join(s.config.Keys.Downloads(album.PhotographerID, album.ID), path.Base(fileName))
}

func (s *ZipService) downloadURL(album *models.Album, fileName string) string {
	return fmt.Sprintf("%s/client/downloads/%d/%s", s.config.BaseDownloadURL, album.ID, url.PathEscape(fileName))
}

/*
CreateZipAsync packs the client's selected photos into a zip in the
background and emails the client a link when it is ready. If the zip was
already built, only the email is sent.
*/
func (s *ZipService) CreateZipAsync(album *models.Album, client *models.Identity) (string, error) {
	var (
		err    error
		exists bool
	)

	zipFilename := ZipFileName(album)
	jobID := strings.TrimSuffix(zipFilename, ".zip")
	zipKey := s.DownloadKey(album, zipFilename)

	if exists, _, err = s.config.Storage.Exists(zipKey); err == nil && exists {
		slog.Info("zip file already exists, sending email only", "zipKey", zipKey, "albumID", album.ID)

		ctx, cancel := context.WithTimeout(context.Background(), time.Second*30)
		defer cancel()

		if err = s.config.Mailer.SendDownloadReady(ctx, client, album, s.downloadURL(album, zipFilename), s.config.ExpirationDays); err != nil {
			slog.Error("failed to send email notification", "error", err, "email", client.Email, "albumID", album.ID)
			return jobID, err
		}

		return jobID, nil
	}

	s.wg.Add(1)

	go func() {
		defer s.wg.Done()
		s.processZip(zipKey, zipFilename, album, client)
	}()

	return jobID, nil
}

func (s *ZipService) processZip(zipKey, zipFilename string, album *models.Album, client *models.Identity) {
	var (
		err       error
		photos    []*models.Photo
		photoIDs  []uint
		zipStream io.WriteCloser
	)

	l := slog.With("albumID", album.ID, "zipKey", zipKey)
	l.Info("starting zip creation process")

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute*30)
	defer cancel()

	if photoIDs, err = s.config.Selections.SelectedPhotoIDs(ctx, client.ID, album.ID); err != nil {
		l.Error("error retrieving selected photos", "error", err)
		return
	}

	if photos, err = s.config.Photos.ListByAlbum(ctx, album.ID); err != nil {
		l.Error("error listing album photos", "error", err)
		return
	}

	photos = selectedOnly(photos, photoIDs)

	addFile := func(zipWriter *zip.Writer, photo *models.Photo) error {
		l.Info("adding image to zip", "image", photo.Name)

		src, _, err := s.config.Storage.Get(photo.StorageKey)
		if err != nil {
			return fmt.Errorf("failed to get source file '%s': %w", photo.StorageKey, err)
		}

		defer src.Close()

		dest, err := zipWriter.Create(zipEntryName(photo))
		if err != nil {
			return fmt.Errorf("failed to create file '%s' in zip: %w", photo.Name, err)
		}

		if _, err := io.Copy(dest, src); err != nil {
			return fmt.Errorf("failed to copy file '%s' to zip: %w", photo.Name, err)
		}

		return nil
	}

	if zipStream, err = s.config.Storage.OpenWriter(zipKey, "application/zip"); err != nil {
		l.Error("failed to setup zip upload stream", "error", err)
		return
	}

	zipWriter := zip.NewWriter(zipStream)

	for _, photo := range photos {
		if err = addFile(zipWriter, photo); err != nil {
			l.Error("failed to add image to zip", "error", err, "image", photo.StorageKey)
			continue
		}
	}

	if err = zipWriter.Close(); err != nil {
		l.Error("failed to close zip writer", "error", err)
		s.discardUpload(zipKey, zipStream, l)
		return
	}

	if err = zipStream.Close(); err != nil {
		l.Error("failed to finish zip upload", "error", err)
		s.deleteZip(zipKey, l)
		return
	}

	l.Info("finished uploading zip file", "numPhotos", len(photos))

	downloadURL := s.downloadURL(album, zipFilename)

	if err = s.config.Mailer.SendDownloadReady(ctx, client, album, downloadURL, s.config.ExpirationDays); err != nil {
		l.Error("failed to send email notification", "error", err, "email", client.Email)
		return
	}

	l.Info("zip creation completed successfully", "downloadURL", downloadURL)
}

// discardUpload finishes a broken upload and removes whatever it stored.
func (s *ZipService) discardUpload(zipKey string, zipStream io.WriteCloser, l *slog.Logger) {
	if err := zipStream.Close(); err != nil {
		l.Error("failed to close abandoned zip upload", "error", err)
	}

	s.deleteZip(zipKey, l)
}

func (s *ZipService) deleteZip(zipKey string, l *slog.Logger) {
	if err := s.config.Storage.Delete([]string{zipKey}); err != nil {
		l.Error("failed to delete incomplete zip", "error", err)
	}
}

func selectedOnly(photos []*models.Photo, photoIDs []uint) []*models.Photo {
	wanted := make(map[uint]struct{}, len(photoIDs))

	for _, id := range photoIDs {
		wanted[id] = struct{}{}
	}

	result := make([]*models.Photo, 0, len(photoIDs))

	for _, photo := range photos {
		if _, ok := wanted[photo.ID]; ok {
			result = append(result, photo)
		}
	}

	return result
}

// zipEntryName keeps the uploaded file name but prefixes the id so duplicates don't collide.
func zipEntryName(photo *models.Photo) string {
	return fmt.Sprintf("%d-%s", photo.ID, path.Base(strings.ReplaceAll(photo.Name, "\\", "/")))
}

// StartCleanupRoutine starts a periodic routine to clean up expired zip files
func (s *ZipService) StartCleanupRoutine(interval time.Duration) {
	s.stopCleanup = make(chan struct{})
	s.cleanupTicker = time.NewTicker(interval)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		for {
			select {
			case <-s.cleanupTicker.C:
				s.cleanupExpiredZips(time.Now())
			case <-s.stopCleanup:
				s.cleanupTicker.Stop()
				return
			}
		}
	}()

	slog.Info("zip cleanup routine started", "interval", interval)
}

// StopCleanupRoutine stops the cleanup routine and waits for running zip jobs.
func (s *ZipService) StopCleanupRoutine() {
	if s.cleanupTicker != nil {
		close(s.stopCleanup)
		s.cleanupTicker = nil
	}

	s.wg.Wait()
	slog.Info("zip cleanup routine stopped")
}

// cleanupExpiredZips removes zip files older than the expiration period
func (s *ZipService) cleanupExpiredZips(now time.Time) int {
	l := slog.With("function", "cleanupExpiredZips")
	l.Info("starting cleanup of expired zip files")

	cutoffTime := now.AddDate(0, 0, -s.config.ExpirationDays)
	removedCount := 0

	objects, err := s.config.Storage.List(s.config.Keys.Folder, false)
	if err != nil {
		l.Error("failed to list stored objects", "error", err, "path", s.config.Keys.Folder)
		return 0
	}

	for _, file := range objects {
		if !strings.Contains(file.Key, "/downloads/") || !strings.HasSuffix(strings.ToLower(file.Key), ".zip") {
			continue
		}

		if file.LastModified.Before(cutoffTime) {
			l.Info("removing expired zip file", "path", file.Key, "modTime", file.LastModified)

			if err := s.config.Storage.Delete([]string{file.Key}); err != nil {
				l.Error("failed to remove expired zip file", "error", err, "path", file.Key)
			} else {
				removedCount++
			}
		}
	}

	l.Info("completed cleanup of expired zip files", "removed", removedCount)
	return removedCount
}
