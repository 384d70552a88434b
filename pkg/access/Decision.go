package access

import (
	"net/url"
)

type Outcome int

const (
	Allow Outcome = iota
	Redirect
)

func (o Outcome) String() string {
	if o == Allow {
		return "allow"
	}

	return "redirect"
}

const (
	MessageLoginRequired = "Faça login para continuar."
	MessageInvalidRole   = "Sua conta não possui um perfil válido. Entre novamente ou fale com o suporte."
)

/*
Decision is the outcome of routing a request. When Outcome is Redirect,
Location holds the target. ForceSignOut is set when the session must be
destroyed before redirecting.
*/
type Decision struct {
	Outcome      Outcome
	Location     string
	ForceSignOut bool
}

func allow() Decision {
	return Decision{Outcome: Allow}
}

func redirectTo(location string) Decision {
	return Decision{Outcome: Redirect, Location: location}
}

func redirectToLogin(message string, signOut bool) Decision {
	return Decision{
		Outcome:      Redirect,
		Location:     LoginURL(message),
		ForceSignOut: signOut,
	}
}

// LoginURL builds the login path carrying a human-readable error message.
func LoginURL(message string) string {
	if message == "" {
		return LoginPath
	}

	return LoginPath + "?error=" + url.QueryEscape(message)
}

// HomeFor returns the landing page for a role.
func HomeFor(role RoleClass) string {
	switch role {
	case Photographer:
		return PhotographerHome
	case Client:
		return ClientHome
	}

	return PublicHome
}

/*
Decide combines the route category and the caller's role into an allow or
redirect decision. Unknown routes fail closed: only a classified identity
may pass.
*/
func Decide(category RouteCategory, role RoleClass) Decision {
	switch category {
	case Public:
		return allow()

	case GuestOnly:
		switch role {
		case Anonymous:
			return allow()
		case Unclassified:
			return redirectTo(PublicHome)
		default:
			return redirectTo(HomeFor(role))
		}

	case PhotographerArea:
		switch role {
		case Photographer:
			return allow()
		case Client:
			return redirectTo(ClientHome)
		case Unclassified:
			return redirectToLogin(MessageInvalidRole, true)
		default:
			return redirectToLogin(MessageLoginRequired, false)
		}

	case ClientArea:
		switch role {
		case Client:
			return allow()
		case Photographer:
			return redirectTo(PhotographerHome)
		case Unclassified:
			return redirectToLogin(MessageInvalidRole, true)
		default:
			return redirectToLogin(MessageLoginRequired, false)
		}
	}

	switch role {
	case Photographer, Client:
		return allow()
	case Unclassified:
		return redirectToLogin(MessageInvalidRole, true)
	}

	return redirectToLogin(MessageLoginRequired, false)
}
