package access

import (
	"path"
	"strings"
)

type RouteCategory int

const (
	Unknown RouteCategory = iota
	Public
	GuestOnly
	PhotographerArea
	ClientArea
)

func (c RouteCategory) String() string {
	switch c {
	case Public:
		return "public"
	case GuestOnly:
		return "guest-only"
	case PhotographerArea:
		return "photographer"
	case ClientArea:
		return "client"
	}

	return "unknown"
}

const (
	PublicHome       = "/"
	LoginPath        = "/login"
	PhotographerHome = "/dashboard"
	ClientHome       = "/client"
)

var (
	publicPaths = []string{
		"/",
		"/heartbeat",
		"/metrics",
		"/support",
		"/api/login",
		"/auth/callback",
		"/logout",
	}

	publicPrefixes = []string{
		"/static",
	}

	guestPaths = []string{
		"/login",
		"/register",
	}
)

// NormalizePath cleans p and strips any trailing slash except for the root.
func NormalizePath(p string) string {
	if p == "" {
		return "/"
	}

	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}

	return path.Clean(p)
}

// ClassifyRoute places a request path into its static route category.
func ClassifyRoute(requestPath string) RouteCategory {
	p := NormalizePath(requestPath)

	for _, prefix := range publicPrefixes {
		if isUnder(p, prefix) {
			return Public
		}
	}

	for _, publicPath := range publicPaths {
		if p == publicPath {
			return Public
		}
	}

	for _, guestPath := range guestPaths {
		if p == guestPath {
			return GuestOnly
		}
	}

	if isUnder(p, PhotographerHome) {
		return PhotographerArea
	}

	if isUnder(p, ClientHome) {
		return ClientArea
	}

	return Unknown
}

func isUnder(p, root string) bool {
	return p == root || strings.HasPrefix(p, root+"/")
}
