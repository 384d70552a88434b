package access

import (
	"crypto/subtle"
	"time"

	"github.com/adampresley/fotofacil/pkg/models"
)

/*
CheckAlbumAccess enforces an album's expiration and password. Expiration is
checked first so an expired album is denied whatever password is submitted.
An album without a password admits any submission, including an empty one.
*/
func CheckAlbumAccess(album *models.Album, submittedPassword string, now time.Time) error {
	if album.IsExpired(now) {
		return models.ErrAlbumExpired
	}

	if !album.HasPassword() {
		return nil
	}

	if subtle.ConstantTimeCompare([]byte(album.AccessPassword), []byte(submittedPassword)) != 1 {
		return models.ErrInvalidPassword
	}

	return nil
}

/*
CheckUnlockedAlbum is used for requests after the password was accepted once
in this session. Expiration is still enforced.
*/
func CheckUnlockedAlbum(album *models.Album, unlocked *models.UnlockedAlbums, now time.Time) error {
	if album.IsExpired(now) {
		return models.ErrAlbumExpired
	}

	if !album.HasPassword() {
		return nil
	}

	if unlocked != nil && unlocked.Contains(album.ID) {
		return nil
	}

	return models.ErrInvalidPassword
}
