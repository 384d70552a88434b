package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrAlbumNotFound           = fmt.Errorf("album not found")
	ErrAlbumExpired            = fmt.Errorf("album has expired")
	ErrInvalidPassword         = fmt.Errorf("invalid album password")
	ErrInvalidStatusTransition = fmt.Errorf("invalid album status transition")
)

type AlbumStatus string

const (
	AlbumStatusPending           AlbumStatus = "Pending"
	AlbumStatusAwaitingSelection AlbumStatus = "AwaitingSelection"
	AlbumStatusSelectionComplete AlbumStatus = "SelectionComplete"
	AlbumStatusDelivered         AlbumStatus = "Delivered"
	AlbumStatusExpired           AlbumStatus = "Expired"
)

var albumStatusOrder = map[AlbumStatus]int{
	AlbumStatusPending:           0,
	AlbumStatusAwaitingSelection: 1,
	AlbumStatusSelectionComplete: 2,
	AlbumStatusDelivered:         3,
}

func (s AlbumStatus) IsTerminal() bool {
	return s == AlbumStatusDelivered || s == AlbumStatusExpired
}

/*
CanTransitionTo reports whether moving from s to next is allowed. Statuses only
move forward one step along Pending → AwaitingSelection → SelectionComplete →
Delivered. Expired can be reached from any non-terminal status.
*/
func (s AlbumStatus) CanTransitionTo(next AlbumStatus) bool {
	if s.IsTerminal() {
		return false
	}

	if next == AlbumStatusExpired {
		return true
	}

	current, ok := albumStatusOrder[s]
	if !ok {
		return false
	}

	target, ok := albumStatusOrder[next]
	if !ok {
		return false
	}

	return target == current+1
}

// Label is the pt-BR name shown to users.
func (s AlbumStatus) Label() string {
	switch s {
	case AlbumStatusPending:
		return "Pendente"
	case AlbumStatusAwaitingSelection:
		return "Aguardando seleção"
	case AlbumStatusSelectionComplete:
		return "Seleção concluída"
	case AlbumStatusDelivered:
		return "Entregue"
	case AlbumStatusExpired:
		return "Expirado"
	}

	return string(s)
}

type AlbumClient struct {
	ID       uint   `db:"id"`
	FullName string `db:"full_name"`
	Email    string `db:"email"`
}

type Album struct {
	BaseModel

	PhotographerID     uint        `db:"photographer_id"`
	ClientID           uint        `db:"client_id"`
	Client             AlbumClient `db:"client"`
	Name               string      `db:"name"`
	Status             AlbumStatus `db:"status"`
	SelectionLimit     int         `db:"selection_limit"`
	AccessPassword     string      `db:"access_password"`
	ExpiresAt          *time.Time  `db:"expires_at"`
	ExtraPhotoCost     string      `db:"extra_photo_cost"`
	CourtesyPhotoCount int         `db:"courtesy_photo_count"`
}

func (a *Album) HasPassword() bool {
	return a.AccessPassword != ""
}

func (a *Album) IsExpired(now time.Time) bool {
	return a.ExpiresAt != nil && a.ExpiresAt.Before(now)
}

/*
EffectiveStatus is the status as of now. An album whose expiration has passed
reads as Expired even before the expiration sweep persists it.
*/
func (a *Album) EffectiveStatus(now time.Time) AlbumStatus {
	if !a.Status.IsTerminal() && a.IsExpired(now) {
		return AlbumStatusExpired
	}

	return a.Status
}

// ExtraCost returns the per-photo cost beyond the courtesy count, if one is set.
func (a *Album) ExtraCost() (decimal.Decimal, bool) {
	if a.ExtraPhotoCost == "" {
		return decimal.Zero, false
	}

	cost, err := decimal.NewFromString(a.ExtraPhotoCost)
	if err != nil {
		return decimal.Zero, false
	}

	return cost, true
}
