package models

/*
UnlockedAlbums records the albums a client has passed the password gate
for during the current browser session.
*/
type UnlockedAlbums struct {
	AlbumIDs []uint
}

func (u *UnlockedAlbums) Contains(albumID uint) bool {
	for _, id := range u.AlbumIDs {
		if id == albumID {
			return true
		}
	}

	return false
}

func (u *UnlockedAlbums) Add(albumID uint) {
	if !u.Contains(albumID) {
		u.AlbumIDs = append(u.AlbumIDs, albumID)
	}
}
