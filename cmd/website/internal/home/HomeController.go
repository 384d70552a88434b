package home

import (
	"net/http"

	"github.com/adampresley/adamgokit/httphelpers"
	"github.com/adampresley/adamgokit/rendering"
	"github.com/adampresley/fotofacil/cmd/website/internal/viewmodels"
	"github.com/adampresley/fotofacil/pkg/access"
)

type HomeHandlers interface {
	HomePage(w http.ResponseWriter, r *http.Request)
}

type HomeControllerConfig struct {
	Renderer rendering.TemplateRenderer
}

type HomeController struct {
	renderer rendering.TemplateRenderer
}

func NewHomeController(config HomeControllerConfig) HomeController {
	return HomeController{
		renderer: config.Renderer,
	}
}

/*
GET /
*/
func (c HomeController) HomePage(w http.ResponseWriter, r *http.Request) {
	pageName := "pages/home"

	if r.URL.Path != "/" {
		httphelpers.WriteText(w, http.StatusNotFound, "Página não encontrada.")
		return
	}

	identity := access.IdentityFromContext(r.Context())

	viewData := viewmodels.HomePage{
		BaseViewModel: viewmodels.BaseViewModel{
			Message:            "",
			IsHtmx:             httphelpers.IsHtmx(r),
			JavascriptIncludes: []rendering.JavascriptInclude{},
			Identity:           identity,
		},
		HomeURL: homeURLFor(r),
	}

	c.renderer.Render(pageName, viewData, w)
}

// homeURLFor is the area a signed in visitor is sent to from the landing page. Guests get nothing.
func homeURLFor(r *http.Request) string {
	role := access.ClassifyRole(access.IdentityFromContext(r.Context()))

	if role == access.Photographer || role == access.Client {
		return access.HomeFor(role)
	}

	return ""
}
