package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/adampresley/fotofacil/pkg/metrics"
	"github.com/adampresley/fotofacil/pkg/models"
	"github.com/cenkalti/backoff/v4"
	"github.com/rfberaldo/sqlz"
)

type SelectionServicer interface {
	Deselect(ctx context.Context, clientID, albumID, photoID uint) error
	Select(ctx context.Context, clientID, albumID, photoID uint) error
	SelectedPhotoIDs(ctx context.Context, clientID, albumID uint) ([]uint, error)
	Submit(ctx context.Context, clientID, albumID uint) (SubmitResult, error)
	Summary(ctx context.Context, album *models.Album) (models.SelectionSummary, error)
	Toggle(ctx context.Context, clientID, albumID, photoID uint) (bool, error)
}

type SubmitResult struct {
	AlreadySubmitted bool
	Album            *models.Album
	Summary          models.SelectionSummary
}

type SelectionServiceConfig struct {
	Albums     AlbumServicer
	DB         *sqlz.DB
	Identities IdentityServicer
	Mailer     Mailer

	// MaxLockWait bounds how long a selection write keeps retrying while the
	// database is locked by another writer.
	MaxLockWait time.Duration
}

type SelectionService struct {
	albums      AlbumServicer
	db          *sqlz.DB
	identities  IdentityServicer
	mailer      Mailer
	maxLockWait time.Duration
}

func NewSelectionService(config SelectionServiceConfig) SelectionService {
	if config.MaxLockWait <= 0 {
		config.MaxLockWait = time.Second * 10
	}

	return SelectionService{
		albums:      config.Albums,
		db:          config.DB,
		identities:  config.Identities,
		mailer:      config.Mailer,
		maxLockWait: config.MaxLockWait,
	}
}

/*
Select records a photo as chosen by the client. The count check and the
insert happen in one statement, so concurrent requests can never push the
selection past the album's limit. Selecting an already selected photo is a
no-op.
*/
func (s SelectionService) Select(ctx context.Context, clientID, albumID, photoID uint) error {
	var (
		err      error
		inserted bool
		exists   bool
	)

	if _, err = s.openAlbum(ctx, clientID, albumID, photoID); err != nil {
		return err
	}

	if inserted, err = s.insertSelection(ctx, clientID, albumID, photoID, time.Now()); err != nil {
		metrics.SelectionsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("error selecting photo %d in album %d: %w", photoID, albumID, err)
	}

	if inserted {
		metrics.SelectionsTotal.WithLabelValues("selected").Inc()
		return nil
	}

	if exists, err = s.isSelected(ctx, clientID, albumID, photoID); err != nil {
		return err
	}

	if exists {
		return nil
	}

	/*
	 * Nothing was inserted and the photo is not selected. Either the limit
	 * was reached or the album stopped accepting selections in between.
	 */
	album, err := s.albums.GetForClient(ctx, clientID, albumID)
	if err != nil {
		return err
	}

	if album.IsExpired(time.Now()) {
		metrics.SelectionsTotal.WithLabelValues("closed").Inc()
		return models.ErrAlbumExpired
	}

	if album.EffectiveStatus(time.Now()) != models.AlbumStatusAwaitingSelection {
		metrics.SelectionsTotal.WithLabelValues("closed").Inc()
		return models.ErrSelectionClosed
	}

	metrics.SelectionsTotal.WithLabelValues("limit_reached").Inc()
	return models.ErrSelectionLimitReached
}

/*
insertSelection adds the selection only if, at the moment of the insert, the
album is awaiting selection, has not expired, belongs to the client and is
below its limit. It reports whether a row was inserted.
*/
func (s SelectionService) insertSelection(ctx context.Context, clientID, albumID, photoID uint, now time.Time) (bool, error) {
	var (
		inserted bool
	)

	sql := `
INSERT INTO selections (album_id, photo_id, client_id, created_at)
SELECT ?, ?, ?, ?
FROM albums AS a
WHERE 1=1
   AND a.id=?
   AND a.deleted_at IS NULL
   AND a.client_id=?
   AND a.status='AwaitingSelection'
   AND (a.expires_at IS NULL OR julianday(a.expires_at) > julianday(?))
   AND (SELECT COUNT(*) FROM selections WHERE album_id=a.id AND client_id=?) < a.selection_limit
ON CONFLICT (album_id, photo_id) DO NOTHING
`

	params := []any{
		albumID, photoID, clientID, now.UTC(),
		albumID,
		clientID,
		now.UTC(),
		clientID,
	}

	err := s.withLockRetry(ctx, func() error {
		res, err := s.db.Exec(ctx, sql, params...)
		if err != nil {
			return err
		}

		n, err := res.RowsAffected()
		if err != nil {
			return err
		}

		inserted = n > 0
		return nil
	})

	return inserted, err
}

// Deselect removes a photo from the client's selection. It is never limited.
func (s SelectionService) Deselect(ctx context.Context, clientID, albumID, photoID uint) error {
	var (
		err error
	)

	if _, err = s.openAlbum(ctx, clientID, albumID, photoID); err != nil {
		return err
	}

	sql := `
DELETE FROM selections
WHERE 1=1
   AND album_id=?
   AND photo_id=?
   AND client_id=?
`

	err = s.withLockRetry(ctx, func() error {
		_, err := s.db.Exec(ctx, sql, albumID, photoID, clientID)
		return err
	})

	if err != nil {
		metrics.SelectionsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("error deselecting photo %d in album %d: %w", photoID, albumID, err)
	}

	metrics.SelectionsTotal.WithLabelValues("deselected").Inc()
	return nil
}

// Toggle flips the selection state of a photo and returns whether it is now selected.
func (s SelectionService) Toggle(ctx context.Context, clientID, albumID, photoID uint) (bool, error) {
	selected, err := s.isSelected(ctx, clientID, albumID, photoID)
	if err != nil {
		return false, err
	}

	if selected {
		return false, s.Deselect(ctx, clientID, albumID, photoID)
	}

	if err = s.Select(ctx, clientID, albumID, photoID); err != nil {
		return false, err
	}

	return true, nil
}

func (s SelectionService) SelectedPhotoIDs(ctx context.Context, clientID, albumID uint) ([]uint, error) {
	var (
		rows []models.Selection
	)

	sql := `
SELECT
   album_id
   , photo_id
   , client_id
   , created_at
FROM selections
WHERE 1=1
   AND album_id=?
   AND client_id=?
ORDER BY created_at
`

	if err := s.db.Query(ctx, &rows, sql, albumID, clientID); err != nil && !sqlz.IsNotFound(err) {
		return nil, fmt.Errorf("error querying for selections in album %d: %w", albumID, err)
	}

	result := make([]uint, 0, len(rows))

	for _, row := range rows {
		result = append(result, row.PhotoID)
	}

	return result, nil
}

func (s SelectionService) Summary(ctx context.Context, album *models.Album) (models.SelectionSummary, error) {
	ids, err := s.SelectedPhotoIDs(ctx, album.ClientID, album.ID)
	if err != nil {
		return models.SelectionSummary{}, err
	}

	return models.SummarizeSelection(album, len(ids)), nil
}

/*
Submit freezes the client's selection by moving the album from
AwaitingSelection to SelectionComplete. Submitting again once the selection
is complete (or the album was delivered) reports AlreadySubmitted instead of
failing.
*/
func (s SelectionService) Submit(ctx context.Context, clientID, albumID uint) (SubmitResult, error) {
	var (
		err   error
		album *models.Album
	)

	result := SubmitResult{}

	if album, err = s.albums.GetForClient(ctx, clientID, albumID); err != nil {
		return result, err
	}

	switch album.EffectiveStatus(time.Now()) {
	case models.AlbumStatusSelectionComplete, models.AlbumStatusDelivered:
		result.AlreadySubmitted = true
		result.Album = album
		result.Summary, err = s.Summary(ctx, album)
		return result, err

	case models.AlbumStatusExpired:
		return result, models.ErrAlbumExpired

	case models.AlbumStatusPending:
		return result, models.ErrSelectionClosed
	}

	sql := `
UPDATE albums SET
   status=?
   , updated_at=?
WHERE 1=1
   AND id=?
   AND client_id=?
   AND status=?
   AND deleted_at IS NULL
`

	var affected int64

	err = s.withLockRetry(ctx, func() error {
		res, err := s.db.Exec(ctx, sql,
			string(models.AlbumStatusSelectionComplete),
			time.Now().UTC(),
			albumID,
			clientID,
			string(models.AlbumStatusAwaitingSelection),
		)

		if err != nil {
			return err
		}

		affected, err = res.RowsAffected()
		return err
	})

	if err != nil {
		return result, fmt.Errorf("error submitting selection for album %d: %w", albumID, err)
	}

	if album, err = s.albums.GetForClient(ctx, clientID, albumID); err != nil {
		return result, err
	}

	result.Album = album

	if result.Summary, err = s.Summary(ctx, album); err != nil {
		return result, err
	}

	if affected == 0 {
		// Another request completed the submission first.
		if album.Status == models.AlbumStatusSelectionComplete || album.Status == models.AlbumStatusDelivered {
			result.AlreadySubmitted = true
			return result, nil
		}

		return result, fmt.Errorf("%w: album %d is %s", models.ErrInvalidStatusTransition, albumID, album.Status)
	}

	s.notifyPhotographer(ctx, album, result.Summary)
	return result, nil
}

func (s SelectionService) notifyPhotographer(ctx context.Context, album *models.Album, summary models.SelectionSummary) {
	if s.mailer == nil || s.identities == nil {
		return
	}

	photographer, err := s.identities.GetByID(ctx, album.PhotographerID)
	if err != nil {
		return
	}

	// Delivery failures are logged by the mailer and do not undo the submission.
	_ = s.mailer.SendSelectionSubmitted(ctx, photographer, album, summary)
}

/*
openAlbum loads the album for the client and checks that it accepts
selection changes and that the photo belongs to it.
*/
func (s SelectionService) openAlbum(ctx context.Context, clientID, albumID, photoID uint) (*models.Album, error) {
	album, err := s.albums.GetForClient(ctx, clientID, albumID)
	if err != nil {
		return nil, err
	}

	switch album.EffectiveStatus(time.Now()) {
	case models.AlbumStatusAwaitingSelection:
	case models.AlbumStatusExpired:
		return nil, models.ErrAlbumExpired
	default:
		metrics.SelectionsTotal.WithLabelValues("closed").Inc()
		return nil, models.ErrSelectionClosed
	}

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

	photo := &models.Photo{}

	if err = s.db.QueryRow(ctx, photo, sql, photoID, albumID); err != nil {
		if sqlz.IsNotFound(err) {
			return nil, models.ErrPhotoNotFound
		}

		return nil, fmt.Errorf("error querying for photo %d: %w", photoID, err)
	}

	return album, nil
}

func (s SelectionService) isSelected(ctx context.Context, clientID, albumID, photoID uint) (bool, error) {
	sql := `
SELECT
   album_id
   , photo_id
   , client_id
   , created_at
FROM selections
WHERE 1=1
   AND album_id=?
   AND photo_id=?
   AND client_id=?
`

	row := &models.Selection{}

	if err := s.db.QueryRow(ctx, row, sql, albumID, photoID, clientID); err != nil {
		if sqlz.IsNotFound(err) {
			return false, nil
		}

		return false, fmt.Errorf("error querying for selection of photo %d: %w", photoID, err)
	}

	return true, nil
}

/*
withLockRetry re-runs op while SQLite reports the database as locked by
another writer. Any other error stops the retries immediately.
*/
func (s SelectionService) withLockRetry(ctx context.Context, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Millisecond * 5
	b.MaxInterval = time.Millisecond * 200
	b.MaxElapsedTime = s.maxLockWait

	return backoff.Retry(func() error {
		err := op()

		if err == nil || isLockedError(err) {
			return err
		}

		return backoff.Permanent(err)
	}, backoff.WithContext(b, ctx))
}

func isLockedError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "sqlite_busy") ||
		strings.Contains(msg, "database table is locked")
}
