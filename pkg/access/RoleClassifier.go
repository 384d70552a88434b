package access

import "github.com/adampresley/fotofacil/pkg/models"

type RoleClass int

const (
	Anonymous RoleClass = iota
	Unclassified
	Photographer
	Client
)

func (r RoleClass) String() string {
	switch r {
	case Anonymous:
		return "anonymous"
	case Unclassified:
		return "unclassified"
	case Photographer:
		return "photographer"
	case Client:
		return "client"
	}

	return "unknown"
}

/*
ClassifyRole maps an identity to the role used for routing. An identity whose
stored role is not one of the known values is Unclassified and must be treated
as signed out.
*/
func ClassifyRole(identity *models.Identity) RoleClass {
	if identity == nil {
		return Anonymous
	}

	switch identity.Role {
	case models.RolePhotographer:
		return Photographer
	case models.RoleClient:
		return Client
	}

	return Unclassified
}
