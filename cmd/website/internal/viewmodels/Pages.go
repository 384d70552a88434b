package viewmodels

import (
	"github.com/adampresley/fotofacil/cmd/website/internal/models"
	pkgmodels "github.com/adampresley/fotofacil/pkg/models"
)

type HomePage struct {
	BaseViewModel
	HomeURL string
}

type Login struct {
	BaseViewModel
	Email string
}

type Register struct {
	BaseViewModel
	Email    string
	FullName string
	Company  string
	Phone    string
	Role     string
}

type Support struct {
	BaseViewModel
	Name    string
	Email   string
	Subject string
	Body    string
	Sent    bool
}

type PhotographerDashboard struct {
	BaseViewModel
	Albums []models.AlbumCard
}

type AlbumForm struct {
	BaseViewModel
	IsNew bool
	Form  models.AlbumFormValues
}

type PhotographerAlbum struct {
	BaseViewModel
	Album   models.AlbumCard
	Photos  []models.AlbumPhoto
	Summary pkgmodels.SelectionSummary
}

type ClientAlbumList struct {
	BaseViewModel
	Albums []models.AlbumCard
}

type ClientAlbumPassword struct {
	BaseViewModel
	Album models.AlbumCard
}

type ClientViewAlbum struct {
	BaseViewModel
	Album     models.AlbumCard
	Photos    []models.AlbumPhoto
	Summary   pkgmodels.SelectionSummary
	CanSelect bool
}

type ClientDownloadStarted struct {
	BaseViewModel
	Album models.AlbumCard
}
