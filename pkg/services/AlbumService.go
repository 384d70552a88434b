package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/adampresley/fotofacil/pkg/models"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/rfberaldo/sqlz"
	"github.com/shopspring/decimal"
)

type AlbumServicer interface {
	Create(ctx context.Context, photographerID uint, input AlbumInput) (*models.Album, error)
	Delete(ctx context.Context, photographerID, albumID uint) error
	Deliver(ctx context.Context, photographerID, albumID uint) (*models.Album, error)
	ExpireDue(ctx context.Context, now time.Time) (int, error)
	GetAlbum(ctx context.Context, albumID uint) (*models.Album, error)
	GetForClient(ctx context.Context, clientID, albumID uint) (*models.Album, error)
	GetForPhotographer(ctx context.Context, photographerID, albumID uint) (*models.Album, error)
	ListForClient(ctx context.Context, clientID uint) ([]*models.Album, error)
	ListForPhotographer(ctx context.Context, photographerID uint) ([]*models.Album, error)
	OpenForSelection(ctx context.Context, photographerID, albumID uint) (*models.Album, error)
	Update(ctx context.Context, photographerID, albumID uint, input AlbumInput) (*models.Album, error)
}

/*
AlbumInput is the photographer-editable part of an album. ClientEmail links
the album to an existing client identity and may be left empty while the
album is still being prepared.
*/
type AlbumInput struct {
	Name               string
	ClientEmail        string
	SelectionLimit     int
	AccessPassword     string
	ExpiresAt          *time.Time
	ExtraPhotoCost     string
	CourtesyPhotoCount int
}

func (i AlbumInput) Validate() error {
	return validation.ValidateStruct(&i,
		validation.Field(&i.Name,
			validation.Required.Error("informe o nome do álbum"),
			validation.Length(1, 120).Error("o nome deve ter no máximo 120 caracteres"),
		),
		validation.Field(&i.ClientEmail,
			validation.When(i.ClientEmail != "", is.EmailFormat.Error("e-mail do cliente inválido")),
		),
		validation.Field(&i.SelectionLimit,
			validation.Required.Error("informe o limite de seleção"),
			validation.Min(1).Error("o limite de seleção deve ser maior que zero"),
		),
		validation.Field(&i.AccessPassword,
			validation.Length(0, 64).Error("a senha deve ter no máximo 64 caracteres"),
		),
		validation.Field(&i.ExtraPhotoCost,
			validation.When(i.ExtraPhotoCost != "", validation.By(validDecimal)),
		),
		validation.Field(&i.CourtesyPhotoCount,
			validation.Min(0).Error("a quantidade de cortesia não pode ser negativa"),
		),
	)
}

func validDecimal(value any) error {
	s, _ := value.(string)

	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("valor inválido")
	}

	if d.IsNegative() {
		return fmt.Errorf("o valor não pode ser negativo")
	}

	return nil
}

type AlbumServiceConfig struct {
	DB         *sqlz.DB
	Identities IdentityServicer
}

type AlbumService struct {
	db         *sqlz.DB
	identities IdentityServicer
}

func NewAlbumService(config AlbumServiceConfig) AlbumService {
	return AlbumService{
		db:         config.DB,
		identities: config.Identities,
	}
}

const albumSelect = `
SELECT
   a.id
   , a.created_at
   , a.updated_at
   , a.deleted_at
   , a.photographer_id
   , COALESCE(a.client_id, 0) AS client_id
   , a.name
   , a.status
   , a.selection_limit
   , COALESCE(a.access_password, '') AS access_password
   , a.expires_at
   , COALESCE(a.extra_photo_cost, '') AS extra_photo_cost
   , a.courtesy_photo_count
   , COALESCE(c.id, 0) AS "client.id"
   , COALESCE(c.full_name, '') AS "client.full_name"
   , COALESCE(c.email, '') AS "client.email"
FROM albums AS a
   LEFT JOIN identities AS c ON c.id=a.client_id
WHERE 1=1
   AND a.deleted_at IS NULL
`

func (s AlbumService) GetAlbum(ctx context.Context, albumID uint) (*models.Album, error) {
	return s.getOne(ctx, albumSelect+"   AND a.id=?\n", albumID)
}

func (s AlbumService) GetForPhotographer(ctx context.Context, photographerID, albumID uint) (*models.Album, error) {
	return s.getOne(ctx, albumSelect+"   AND a.id=?\n   AND a.photographer_id=?\n", albumID, photographerID)
}

func (s AlbumService) GetForClient(ctx context.Context, clientID, albumID uint) (*models.Album, error) {
	return s.getOne(ctx, albumSelect+"   AND a.id=?\n   AND a.client_id=?\n", albumID, clientID)
}

func (s AlbumService) getOne(ctx context.Context, sql string, params ...any) (*models.Album, error) {
	result := &models.Album{}

	if err := s.db.QueryRow(ctx, result, sql, params...); err != nil {
		if sqlz.IsNotFound(err) {
			return nil, models.ErrAlbumNotFound
		}

		return nil, fmt.Errorf("error querying for album: %w", err)
	}

	return result, nil
}

func (s AlbumService) ListForPhotographer(ctx context.Context, photographerID uint) ([]*models.Album, error) {
	result := []*models.Album{}
	sql := albumSelect + "   AND a.photographer_id=?\nORDER BY a.created_at DESC\n"

	if err := s.db.Query(ctx, &result, sql, photographerID); err != nil && !sqlz.IsNotFound(err) {
		return result, fmt.Errorf("error querying for albums by photographer %d: %w", photographerID, err)
	}

	return result, nil
}

func (s AlbumService) ListForClient(ctx context.Context, clientID uint) ([]*models.Album, error) {
	result := []*models.Album{}
	sql := albumSelect + "   AND a.client_id=?\n   AND a.status <> 'Pending'\nORDER BY a.created_at DESC\n"

	if err := s.db.Query(ctx, &result, sql, clientID); err != nil && !sqlz.IsNotFound(err) {
		return result, fmt.Errorf("error querying for albums by client %d: %w", clientID, err)
	}

	return result, nil
}

func (s AlbumService) Create(ctx context.Context, photographerID uint, input AlbumInput) (*models.Album, error) {
	var (
		err      error
		clientID any
	)

	input = normalizeAlbumInput(input)

	if err = input.Validate(); err != nil {
		return nil, err
	}

	if clientID, err = s.resolveClient(ctx, input.ClientEmail); err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	sql := `
INSERT INTO albums (
   created_at
   , updated_at
   , photographer_id
   , client_id
   , name
   , status
   , selection_limit
   , access_password
   , expires_at
   , extra_photo_cost
   , courtesy_photo_count
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

	params := []any{
		now,
		now,
		photographerID,
		clientID,
		input.Name,
		string(models.AlbumStatusPending),
		input.SelectionLimit,
		nullIfEmpty(input.AccessPassword),
		utcOrNil(input.ExpiresAt),
		nullIfEmpty(input.ExtraPhotoCost),
		input.CourtesyPhotoCount,
	}

	res, err := s.db.Exec(ctx, sql, params...)
	if err != nil {
		return nil, fmt.Errorf("error inserting album for photographer %d: %w", photographerID, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("error reading new album id: %w", err)
	}

	return s.GetForPhotographer(ctx, photographerID, uint(id))
}

func (s AlbumService) Update(ctx context.Context, photographerID, albumID uint, input AlbumInput) (*models.Album, error) {
	var (
		err      error
		album    *models.Album
		clientID any
	)

	input = normalizeAlbumInput(input)

	if err = input.Validate(); err != nil {
		return nil, err
	}

	if album, err = s.GetForPhotographer(ctx, photographerID, albumID); err != nil {
		return nil, err
	}

	if album.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: album %d is %s", models.ErrInvalidStatusTransition, albumID, album.Status)
	}

	if clientID, err = s.resolveClient(ctx, input.ClientEmail); err != nil {
		return nil, err
	}

	newClientID, _ := clientID.(uint)

	if album.Status != models.AlbumStatusPending && newClientID != album.ClientID {
		return nil, validation.Errors{
			"ClientEmail": errors.New("o cliente não pode ser trocado depois que o álbum foi liberado"),
		}
	}

	/*
	 * The status and selection count guards repeat the checks above inside
	 * the statement, so a selection made in between cannot end up above the
	 * new limit and the client cannot change once selections are possible.
	 */
	sql := `
UPDATE albums SET
   updated_at=?
   , client_id=?
   , name=?
   , selection_limit=?
   , access_password=?
   , expires_at=?
   , extra_photo_cost=?
   , courtesy_photo_count=?
WHERE 1=1
   AND id=?
   AND photographer_id=?
   AND deleted_at IS NULL
   AND (status=? OR COALESCE(client_id, 0)=?)
   AND (SELECT COUNT(*) FROM selections AS s WHERE s.album_id=albums.id) <= ?
`

	params := []any{
		time.Now().UTC(),
		clientID,
		input.Name,
		input.SelectionLimit,
		nullIfEmpty(input.AccessPassword),
		utcOrNil(input.ExpiresAt),
		nullIfEmpty(input.ExtraPhotoCost),
		input.CourtesyPhotoCount,
		albumID,
		photographerID,
		string(models.AlbumStatusPending),
		newClientID,
		input.SelectionLimit,
	}

	res, err := s.db.Exec(ctx, sql, params...)
	if err != nil {
		return nil, fmt.Errorf("error updating album %d: %w", albumID, err)
	}

	if n, _ := res.RowsAffected(); n == 0 {
		return nil, s.updateRejection(ctx, photographerID, albumID, newClientID, input.SelectionLimit)
	}

	return s.GetForPhotographer(ctx, photographerID, albumID)
}

// updateRejection explains why the conditional update in Update changed nothing.
func (s AlbumService) updateRejection(ctx context.Context, photographerID, albumID, newClientID uint, selectionLimit int) error {
	album, err := s.GetForPhotographer(ctx, photographerID, albumID)
	if err != nil {
		return err
	}

	if album.Status != models.AlbumStatusPending && newClientID != album.ClientID {
		return validation.Errors{
			"ClientEmail": errors.New("o cliente não pode ser trocado depois que o álbum foi liberado"),
		}
	}

	selected, err := s.selectionCount(ctx, albumID)
	if err != nil {
		return err
	}

	if selected > selectionLimit {
		return validation.Errors{
			"SelectionLimit": fmt.Errorf("o cliente já selecionou %d fotos; o limite não pode ser menor que isso", selected),
		}
	}

	return fmt.Errorf("%w: album %d changed while updating", models.ErrInvalidStatusTransition, albumID)
}

func (s AlbumService) selectionCount(ctx context.Context, albumID uint) (int, error) {
	row := struct {
		Total int `db:"total"`
	}{}

	sql := `
SELECT COUNT(*) AS total
FROM selections
WHERE album_id=?
`

	if err := s.db.QueryRow(ctx, &row, sql, albumID); err != nil {
		return 0, fmt.Errorf("error counting selections for album %d: %w", albumID, err)
	}

	return row.Total, nil
}

func (s AlbumService) Delete(ctx context.Context, photographerID, albumID uint) error {
	sql := `
UPDATE albums SET
   deleted_at=?
WHERE 1=1
   AND id=?
   AND photographer_id=?
   AND deleted_at IS NULL
`

	res, err := s.db.Exec(ctx, sql, time.Now().UTC(), albumID, photographerID)
	if err != nil {
		return fmt.Errorf("error deleting album %d: %w", albumID, err)
	}

	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrAlbumNotFound
	}

	return nil
}

/*
OpenForSelection moves a Pending album to AwaitingSelection so the linked
client can start choosing photos. Calling it again while the album is already
awaiting selection is allowed so the photographer can re-send the notice.
*/
func (s AlbumService) OpenForSelection(ctx context.Context, photographerID, albumID uint) (*models.Album, error) {
	var (
		err   error
		album *models.Album
	)

	if album, err = s.GetForPhotographer(ctx, photographerID, albumID); err != nil {
		return nil, err
	}

	if album.ClientID == 0 {
		return nil, models.ErrClientNotFound
	}

	now := time.Now()

	switch album.EffectiveStatus(now) {
	case models.AlbumStatusAwaitingSelection:
		return album, nil

	case models.AlbumStatusExpired:
		return nil, models.ErrAlbumExpired
	}

	if err = s.transition(ctx, albumID, album.Status, models.AlbumStatusAwaitingSelection); err != nil {
		return nil, err
	}

	return s.GetForPhotographer(ctx, photographerID, albumID)
}

// Deliver marks an album whose selection is complete as delivered.
func (s AlbumService) Deliver(ctx context.Context, photographerID, albumID uint) (*models.Album, error) {
	var (
		err   error
		album *models.Album
	)

	if album, err = s.GetForPhotographer(ctx, photographerID, albumID); err != nil {
		return nil, err
	}

	if err = s.transition(ctx, albumID, album.Status, models.AlbumStatusDelivered); err != nil {
		return nil, err
	}

	return s.GetForPhotographer(ctx, photographerID, albumID)
}

/*
ExpireDue persists the Expired status for every non-terminal album whose
expiration has passed. It returns how many albums were expired.
*/
func (s AlbumService) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	var (
		err    error
		albums []*models.Album
	)

	sql := albumSelect + "   AND a.expires_at IS NOT NULL\n   AND a.status IN ('Pending', 'AwaitingSelection', 'SelectionComplete')\n"

	if err = s.db.Query(ctx, &albums, sql); err != nil && !sqlz.IsNotFound(err) {
		return 0, fmt.Errorf("error querying for expirable albums: %w", err)
	}

	expired := 0

	for _, album := range albums {
		if !album.IsExpired(now) {
			continue
		}

		if err = s.transition(ctx, album.ID, album.Status, models.AlbumStatusExpired); err != nil {
			if errors.Is(err, models.ErrInvalidStatusTransition) {
				continue
			}

			return expired, err
		}

		slog.Info("album expired", "albumID", album.ID, "previousStatus", album.Status)
		expired++
	}

	return expired, nil
}

/*
transition moves an album from one status to the next with a conditional
update, so a concurrent change to the status makes this call fail rather
than overwrite it.
*/
func (s AlbumService) transition(ctx context.Context, albumID uint, from, to models.AlbumStatus) error {
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("%w: %s to %s", models.ErrInvalidStatusTransition, from, to)
	}

	sql := `
UPDATE albums SET
   status=?
   , updated_at=?
WHERE 1=1
   AND id=?
   AND status=?
   AND deleted_at IS NULL
`

	res, err := s.db.Exec(ctx, sql, string(to), time.Now().UTC(), albumID, string(from))
	if err != nil {
		return fmt.Errorf("error updating status of album %d: %w", albumID, err)
	}

	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: album %d is no longer %s", models.ErrInvalidStatusTransition, albumID, from)
	}

	return nil
}

func (s AlbumService) resolveClient(ctx context.Context, clientEmail string) (any, error) {
	if clientEmail == "" {
		return nil, nil
	}

	client, err := s.identities.GetByEmail(ctx, clientEmail)
	if err != nil {
		if errors.Is(err, models.ErrIdentityNotFound) {
			return nil, models.ErrClientNotFound
		}

		return nil, err
	}

	if client.Role != models.RoleClient {
		return nil, models.ErrClientNotFound
	}

	return client.ID, nil
}

func normalizeAlbumInput(input AlbumInput) AlbumInput {
	input.Name = strings.TrimSpace(input.Name)
	input.ClientEmail = normalizeEmail(input.ClientEmail)
	input.ExtraPhotoCost = strings.ReplaceAll(strings.TrimSpace(input.ExtraPhotoCost), ",", ".")
	return input
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}

	return value
}

func utcOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}

	return t.UTC()
}
