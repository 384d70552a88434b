package services

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/adampresley/fotofacil/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateZipPacksSelectedPhotos(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	photographer := env.signUpConfirmed(t, "foto@example.com", models.RolePhotographer)
	client := env.signUpConfirmed(t, "cliente@example.com", models.RoleClient)
	album := env.openAlbum(t, photographer, client, AlbumInput{Name: "Festa Junina", SelectionLimit: 5})

	storage := newMemoryStorage()
	keys := PhotoKeys{Folder: "albums"}
	photos := newPhotoService(env, storage, stubTagger{}, nil)

	uploaded, err := photos.Upload(ctx, photographer.ID, album.ID, []UploadFile{
		{Name: "a.jpg", Data: jpegHeader},
		{Name: "b.jpg", Data: jpegHeader},
	})
	require.NoError(t, err)

	require.NoError(t, env.selections.Select(ctx, client.ID, album.ID, uploaded[1].ID))

	zips := NewZipService(ZipServiceConfig{
		BaseDownloadURL: "http://localhost:8080/",
		Keys:            keys,
		Mailer:          env.mailer,
		Photos:          photos,
		Selections:      env.selections,
		Storage:         storage,
	})

	jobID, err := zips.CreateZipAsync(album, client)
	require.NoError(t, err)
	assert.Equal(t, "festa-junina-"+fmt.Sprint(album.ID), jobID)

	zips.StopCleanupRoutine()

	zipKey := zips.DownloadKey(album, ZipFileName(album))
	body, _, err := storage.Get(zipKey)
	require.NoError(t, err)

	b, err := io.ReadAll(body)
	require.NoError(t, err)

	reader, err := zip.NewReader(bytes.NewReader(b), int64(len(b)))
	require.NoError(t, err)
	require.Len(t, reader.File, 1)
	assert.Equal(t, fmt.Sprint(uploaded[1].ID)+"-b.jpg", reader.File[0].Name)

	assert.Equal(t, 1, env.mailer.count("download_ready"))

	_, err = zips.CreateZipAsync(album, client)
	require.NoError(t, err)
	assert.Equal(t, 2, env.mailer.count("download_ready"), "existing zips are only re-sent")
}

func TestCleanupRemovesOnlyExpiredZips(t *testing.T) {
	storage := newMemoryStorage()
	now := time.Now()

	require.NoError(t, storage.Put("albums/1/2/downloads/old.zip", bytes.NewReader(nil)))
	require.NoError(t, storage.Put("albums/1/2/downloads/new.zip", bytes.NewReader(nil)))
	require.NoError(t, storage.Put("albums/1/2/originals/old.jpg", bytes.NewReader(nil)))

	storage.setModified("albums/1/2/downloads/old.zip", now.AddDate(0, 0, -10))
	storage.setModified("albums/1/2/originals/old.jpg", now.AddDate(0, 0, -10))

	zips := NewZipService(ZipServiceConfig{
		ExpirationDays: 7,
		Keys:           PhotoKeys{Folder: "albums"},
		Storage:        storage,
	})

	assert.Equal(t, 1, zips.cleanupExpiredZips(now))

	exists, _, _ := storage.Exists("albums/1/2/downloads/old.zip")
	assert.False(t, exists)

	exists, _, _ = storage.Exists("albums/1/2/downloads/new.zip")
	assert.True(t, exists)

	exists, _, _ = storage.Exists("albums/1/2/originals/old.jpg")
	assert.True(t, exists)
}

func TestZipFileNameIsSafeForKeysAndURLs(t *testing.T) {
	zips := NewZipService(ZipServiceConfig{
		BaseDownloadURL: "http://x",
		Keys:            PhotoKeys{Folder: "albums"},
	})

	album := &models.Album{BaseModel: models.BaseModel{ID: 5}, PhotographerID: 1, Name: "Casamento 10/12 #1? Ação"}

	fileName := ZipFileName(album)
	assert.Equal(t, "casamento-10-12-1-acao-5.zip", fileName)
	assert.Equal(t, "albums/1/5/downloads/casamento-10-12-1-acao-5.zip", zips.DownloadKey(album, fileName))
	assert.Equal(t, "http://x/client/downloads/5/casamento-10-12-1-acao-5.zip", zips.downloadURL(album, fileName))

	assert.Equal(t, "album-7.zip", ZipFileName(&models.Album{BaseModel: models.BaseModel{ID: 7}, Name: "###"}))
}

func TestFailedZipUploadIsClosedAndDiscarded(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	photographer := env.signUpConfirmed(t, "foto@example.com", models.RolePhotographer)
	client := env.signUpConfirmed(t, "cliente@example.com", models.RoleClient)
	album := env.openAlbum(t, photographer, client, AlbumInput{Name: "Festa", SelectionLimit: 5})

	storage := newMemoryStorage()
	photos := newPhotoService(env, storage, stubTagger{}, nil)

	uploaded, err := photos.Upload(ctx, photographer.ID, album.ID, []UploadFile{{Name: "a.jpg", Data: jpegHeader}})
	require.NoError(t, err)
	require.NoError(t, env.selections.Select(ctx, client.ID, album.ID, uploaded[0].ID))

	storage.writeErr = errors.New("connection reset")

	zips := NewZipService(ZipServiceConfig{
		Keys:       PhotoKeys{Folder: "albums"},
		Mailer:     env.mailer,
		Photos:     photos,
		Selections: env.selections,
		Storage:    storage,
	})

	_, err = zips.CreateZipAsync(album, client)
	require.NoError(t, err)

	zips.StopCleanupRoutine()

	assert.Equal(t, 1, storage.closedWriters)

	exists, _, _ := storage.Exists(zips.DownloadKey(album, ZipFileName(album)))
	assert.False(t, exists)
	assert.Equal(t, 0, env.mailer.count("download_ready"))
}
