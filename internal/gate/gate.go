// Package gate decides, for every inbound request, whether it proceeds or is
// redirected based on the path and the presence of a valid session.
package gate

import (
	"net/url"
	"path"
	"strings"
)

// Outcome is the gate's verdict for one request
type Outcome int

const (
	Allow Outcome = iota
	RedirectToLogin
	RedirectToAdminHome
)

func (o Outcome) String() string {
	switch o {
	case Allow:
		return "allow"
	case RedirectToLogin:
		return "redirect_login"
	case RedirectToAdminHome:
		return "redirect_admin"
	default:
		return "unknown"
	}
}

// Class is the static classification of a request path
type Class int

const (
	Public Class = iota
	Protected
)

// RedirectParam carries the originally requested path to the login page
const RedirectParam = "redirectedFrom"

// Decision is the gate's verdict and, for redirects, where to send the client
type Decision struct {
	Outcome  Outcome
	Location string
}

// Policy holds the fixed route classification. Paths are compared after
// cleaning, segment by segment ("/adminx" is not under "/admin").
type Policy struct {
	LoginPath   string
	AdminPrefix string
	AdminHome   string
	// PublicPaths are matched exactly, PublicPrefixes by segment
	PublicPaths    []string
	PublicPrefixes []string
	// Excluded paths skip the gate entirely. Protected paths are never
	// excluded, whatever this list says.
	Excluded []string
}

// DefaultPolicy is the site's route table
func DefaultPolicy() Policy {
	return Policy{
		LoginPath:      "/login",
		AdminPrefix:    "/admin",
		AdminHome:      "/admin",
		PublicPaths:    []string{"/"},
		PublicPrefixes: []string{"/login", "/reset-password", "/api"},
		Excluded:       []string{"/assets", "/_image", "/favicon.ico", "/public"},
	}
}

// CleanPath normalizes a request path before classification
func CleanPath(p string) string {
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}

// underPrefix reports whether p equals prefix or lies below it
func underPrefix(p, prefix string) bool {
	if prefix == "/" {
		return true
	}
	return p == prefix || strings.HasPrefix(p, prefix+"/")
}

// Classify returns Protected for the admin area and Public for everything
// else, including paths on no list.
func (p Policy) Classify(reqPath string) Class {
	reqPath = CleanPath(reqPath)
	if underPrefix(reqPath, p.AdminPrefix) {
		return Protected
	}
	return Public
}

// IsAllowListed reports whether reqPath is explicitly public
func (p Policy) IsAllowListed(reqPath string) bool {
	reqPath = CleanPath(reqPath)
	for _, exact := range p.PublicPaths {
		if reqPath == exact {
			return true
		}
	}
	for _, prefix := range p.PublicPrefixes {
		if underPrefix(reqPath, prefix) {
			return true
		}
	}
	return false
}

// Excludes reports whether the gate should not run for reqPath
func (p Policy) Excludes(reqPath string) bool {
	reqPath = CleanPath(reqPath)
	if p.Classify(reqPath) == Protected {
		return false
	}
	for _, prefix := range p.Excluded {
		if underPrefix(reqPath, prefix) {
			return true
		}
	}
	return false
}

// NeedsSession reports whether Decide can depend on the session for reqPath
func (p Policy) NeedsSession(reqPath string) bool {
	reqPath = CleanPath(reqPath)
	return reqPath == p.LoginPath || p.Classify(reqPath) == Protected
}

// Decide is the gate's decision procedure. It is pure: the caller resolves
// the session and passes false when resolution failed. Classification uses
// the cleaned path; the login redirect carries reqPath as requested.
func (p Policy) Decide(reqPath string, hasSession bool) Decision {
	cleaned := CleanPath(reqPath)

	if cleaned == p.LoginPath && hasSession {
		return Decision{Outcome: RedirectToAdminHome, Location: p.AdminHome}
	}

	if p.Classify(cleaned) == Protected && !hasSession {
		from := reqPath
		if !strings.HasPrefix(from, "/") {
			from = cleaned
		}
		q := url.Values{}
		q.Set(RedirectParam, from)
		return Decision{Outcome: RedirectToLogin, Location: p.LoginPath + "?" + q.Encode()}
	}

	return Decision{Outcome: Allow}
}
