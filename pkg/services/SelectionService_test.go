package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/adampresley/fotofacil/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectRespectsLimit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	photographer := env.signUpConfirmed(t, "foto@example.com", models.RolePhotographer)
	client := env.signUpConfirmed(t, "cliente@example.com", models.RoleClient)
	album := env.openAlbum(t, photographer, client, AlbumInput{Name: "Ensaio", SelectionLimit: 2})
	photoIDs := env.insertPhotos(t, album.ID, 3)

	require.NoError(t, env.selections.Select(ctx, client.ID, album.ID, photoIDs[0]))
	require.NoError(t, env.selections.Select(ctx, client.ID, album.ID, photoIDs[1]))
	require.NoError(t, env.selections.Select(ctx, client.ID, album.ID, photoIDs[1]), "selecting twice is a no-op")

	err := env.selections.Select(ctx, client.ID, album.ID, photoIDs[2])
	assert.ErrorIs(t, err, models.ErrSelectionLimitReached)

	require.NoError(t, env.selections.Deselect(ctx, client.ID, album.ID, photoIDs[0]))
	require.NoError(t, env.selections.Select(ctx, client.ID, album.ID, photoIDs[2]))

	selected, err := env.selections.SelectedPhotoIDs(ctx, client.ID, album.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint{photoIDs[1], photoIDs[2]}, selected)
}

func TestConcurrentSelectionsNeverExceedLimit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	const limit = 5
	const attempts = 20

	photographer := env.signUpConfirmed(t, "foto@example.com", models.RolePhotographer)
	client := env.signUpConfirmed(t, "cliente@example.com", models.RoleClient)
	album := env.openAlbum(t, photographer, client, AlbumInput{Name: "Concorrência", SelectionLimit: limit})
	photoIDs := env.insertPhotos(t, album.ID, attempts)

	var (
		wg           sync.WaitGroup
		mu           sync.Mutex
		succeeded    int
		limitReached int
		otherErrors  []error
	)

	for _, photoID := range photoIDs {
		wg.Add(1)

		go func(photoID uint) {
			defer wg.Done()

			err := env.selections.Select(ctx, client.ID, album.ID, photoID)

			mu.Lock()
			defer mu.Unlock()

			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, models.ErrSelectionLimitReached):
				limitReached++
			default:
				otherErrors = append(otherErrors, err)
			}
		}(photoID)
	}

	wg.Wait()

	require.Empty(t, otherErrors)
	assert.Equal(t, limit, succeeded)
	assert.Equal(t, attempts-limit, limitReached)

	selected, err := env.selections.SelectedPhotoIDs(ctx, client.ID, album.ID)
	require.NoError(t, err)
	assert.Len(t, selected, limit)
}

func TestConcurrentSelectionsForLastSlot(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	const limit = 3
	const attempts = 10

	photographer := env.signUpConfirmed(t, "foto@example.com", models.RolePhotographer)
	client := env.signUpConfirmed(t, "cliente@example.com", models.RoleClient)
	album := env.openAlbum(t, photographer, client, AlbumInput{Name: "Última vaga", SelectionLimit: limit})
	photoIDs := env.insertPhotos(t, album.ID, limit-1+attempts)

	for _, photoID := range photoIDs[:limit-1] {
		require.NoError(t, env.selections.Select(ctx, client.ID, album.ID, photoID))
	}

	var (
		wg           sync.WaitGroup
		mu           sync.Mutex
		succeeded    int
		limitReached int
	)

	for _, photoID := range photoIDs[limit-1:] {
		wg.Add(1)

		go func(photoID uint) {
			defer wg.Done()

			err := env.selections.Select(ctx, client.ID, album.ID, photoID)

			mu.Lock()
			defer mu.Unlock()

			if err == nil {
				succeeded++
			} else if errors.Is(err, models.ErrSelectionLimitReached) {
				limitReached++
			}
		}(photoID)
	}

	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, attempts-1, limitReached)
}

func TestToggle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	photographer := env.signUpConfirmed(t, "foto@example.com", models.RolePhotographer)
	client := env.signUpConfirmed(t, "cliente@example.com", models.RoleClient)
	album := env.openAlbum(t, photographer, client, AlbumInput{Name: "Ensaio", SelectionLimit: 1})
	photoIDs := env.insertPhotos(t, album.ID, 2)

	selected, err := env.selections.Toggle(ctx, client.ID, album.ID, photoIDs[0])
	require.NoError(t, err)
	assert.True(t, selected)

	_, err = env.selections.Toggle(ctx, client.ID, album.ID, photoIDs[1])
	assert.ErrorIs(t, err, models.ErrSelectionLimitReached)

	selected, err = env.selections.Toggle(ctx, client.ID, album.ID, photoIDs[0])
	require.NoError(t, err)
	assert.False(t, selected)
}

func TestSelectionWritesRequireOpenAlbum(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	photographer := env.signUpConfirmed(t, "foto@example.com", models.RolePhotographer)
	client := env.signUpConfirmed(t, "cliente@example.com", models.RoleClient)
	stranger := env.signUpConfirmed(t, "estranho@example.com", models.RoleClient)

	pending, err := env.albums.Create(ctx, photographer.ID, AlbumInput{Name: "Pendente", ClientEmail: client.Email, SelectionLimit: 3})
	require.NoError(t, err)
	pendingPhotos := env.insertPhotos(t, pending.ID, 1)

	err = env.selections.Select(ctx, client.ID, pending.ID, pendingPhotos[0])
	assert.ErrorIs(t, err, models.ErrSelectionClosed)

	album := env.openAlbum(t, photographer, client, AlbumInput{Name: "Aberto", SelectionLimit: 3})
	photoIDs := env.insertPhotos(t, album.ID, 1)

	err = env.selections.Select(ctx, stranger.ID, album.ID, photoIDs[0])
	assert.ErrorIs(t, err, models.ErrAlbumNotFound)

	err = env.selections.Select(ctx, client.ID, album.ID, pendingPhotos[0])
	assert.ErrorIs(t, err, models.ErrPhotoNotFound)

	_, err = env.selections.Submit(ctx, client.ID, album.ID)
	require.NoError(t, err)

	err = env.selections.Select(ctx, client.ID, album.ID, photoIDs[0])
	assert.ErrorIs(t, err, models.ErrSelectionClosed)

	err = env.selections.Deselect(ctx, client.ID, album.ID, photoIDs[0])
	assert.ErrorIs(t, err, models.ErrSelectionClosed)
}

func TestSelectOnExpiredAlbum(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	photographer := env.signUpConfirmed(t, "foto@example.com", models.RolePhotographer)
	client := env.signUpConfirmed(t, "cliente@example.com", models.RoleClient)

	soon := time.Now().Add(time.Hour)
	album := env.openAlbum(t, photographer, client, AlbumInput{Name: "Vence", SelectionLimit: 3, ExpiresAt: &soon})
	photoIDs := env.insertPhotos(t, album.ID, 1)

	_, err := env.db.Exec(ctx, "UPDATE albums SET expires_at=? WHERE id=?", time.Now().Add(-time.Minute).UTC(), album.ID)
	require.NoError(t, err)

	err = env.selections.Select(ctx, client.ID, album.ID, photoIDs[0])
	assert.ErrorIs(t, err, models.ErrAlbumExpired)

	_, err = env.selections.Submit(ctx, client.ID, album.ID)
	assert.ErrorIs(t, err, models.ErrAlbumExpired)
}

func TestInsertSelectionChecksExpiryAtWriteTime(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	photographer := env.signUpConfirmed(t, "foto@example.com", models.RolePhotographer)
	client := env.signUpConfirmed(t, "cliente@example.com", models.RoleClient)

	expiresAt := time.Now().Add(time.Hour)
	album := env.openAlbum(t, photographer, client, AlbumInput{Name: "Vence", SelectionLimit: 3, ExpiresAt: &expiresAt})
	photoIDs := env.insertPhotos(t, album.ID, 2)

	inserted, err := env.selections.insertSelection(ctx, client.ID, album.ID, photoIDs[0], expiresAt.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, inserted)

	inserted, err = env.selections.insertSelection(ctx, client.ID, album.ID, photoIDs[1], expiresAt.Add(-time.Minute))
	require.NoError(t, err)
	assert.True(t, inserted)

	selected, err := env.selections.SelectedPhotoIDs(ctx, client.ID, album.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{photoIDs[1]}, selected)
}

func TestSubmitTwiceIsNoOp(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	photographer := env.signUpConfirmed(t, "foto@example.com", models.RolePhotographer)
	client := env.signUpConfirmed(t, "cliente@example.com", models.RoleClient)
	album := env.openAlbum(t, photographer, client, AlbumInput{
		Name:               "Formatura",
		SelectionLimit:     10,
		ExtraPhotoCost:     "12.50",
		CourtesyPhotoCount: 1,
	})
	photoIDs := env.insertPhotos(t, album.ID, 3)

	for _, photoID := range photoIDs {
		require.NoError(t, env.selections.Select(ctx, client.ID, album.ID, photoID))
	}

	first, err := env.selections.Submit(ctx, client.ID, album.ID)
	require.NoError(t, err)
	assert.False(t, first.AlreadySubmitted)
	assert.Equal(t, models.AlbumStatusSelectionComplete, first.Album.Status)
	assert.Equal(t, 3, first.Summary.Selected)
	assert.Equal(t, 2, first.Summary.Extra)
	assert.Equal(t, "25", first.Summary.ExtraCharge.String())
	assert.Equal(t, 1, env.mailer.count("selection_submitted"))

	second, err := env.selections.Submit(ctx, client.ID, album.ID)
	require.NoError(t, err)
	assert.True(t, second.AlreadySubmitted)
	assert.Equal(t, models.AlbumStatusSelectionComplete, second.Album.Status)
	assert.Equal(t, 1, env.mailer.count("selection_submitted"), "resubmitting does not notify again")

	selected, err := env.selections.SelectedPhotoIDs(ctx, client.ID, album.ID)
	require.NoError(t, err)
	assert.Len(t, selected, 3)
}

func TestSubmitSucceedsWhenNotificationFails(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	photographer := env.signUpConfirmed(t, "foto@example.com", models.RolePhotographer)
	client := env.signUpConfirmed(t, "cliente@example.com", models.RoleClient)
	album := env.openAlbum(t, photographer, client, AlbumInput{Name: "Ensaio", SelectionLimit: 1})

	env.mailer.err = errors.New("provider down")

	result, err := env.selections.Submit(ctx, client.ID, album.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AlbumStatusSelectionComplete, result.Album.Status)
}

func TestIsLockedError(t *testing.T) {
	assert.True(t, isLockedError(errors.New("database is locked (5) (SQLITE_BUSY)")))
	assert.True(t, isLockedError(errors.New("sqlite_busy")))
	assert.False(t, isLockedError(errors.New("UNIQUE constraint failed")))
	assert.False(t, isLockedError(context.Canceled))
}
