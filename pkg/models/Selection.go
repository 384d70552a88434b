package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrSelectionLimitReached = fmt.Errorf("selection limit reached")
	ErrSelectionClosed       = fmt.Errorf("album is not accepting selections")
)

type Selection struct {
	AlbumID   uint      `db:"album_id"`
	PhotoID   uint      `db:"photo_id"`
	ClientID  uint      `db:"client_id"`
	CreatedAt time.Time `db:"created_at"`
}

type SelectionSummary struct {
	Selected    int
	Limit       int
	Courtesy    int
	Extra       int
	ExtraCost   decimal.Decimal
	ExtraCharge decimal.Decimal
}

/*
SummarizeSelection computes how many selected photos fall beyond the album's
courtesy count and what they cost.
*/
func SummarizeSelection(album *Album, selected int) SelectionSummary {
	result := SelectionSummary{
		Selected:    selected,
		Limit:       album.SelectionLimit,
		Courtesy:    album.CourtesyPhotoCount,
		ExtraCost:   decimal.Zero,
		ExtraCharge: decimal.Zero,
	}

	if selected > album.CourtesyPhotoCount {
		result.Extra = selected - album.CourtesyPhotoCount
	}

	if cost, ok := album.ExtraCost(); ok {
		result.ExtraCost = cost
		result.ExtraCharge = cost.Mul(decimal.NewFromInt(int64(result.Extra)))
	}

	return result
}
