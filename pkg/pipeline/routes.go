package pipeline

import (
	"net/http"
	"strings"
)

// Class is the outcome of route classification.
type Class string

const (
	// ClassPublic routes skip every tenant stage.
	ClassPublic Class = "public"
	// ClassProtected routes require a resolved tenant.
	ClassProtected Class = "protected"
	// ClassOpen routes live outside the versioned namespace (admin, unknown
	// paths) and are not tenant-scoped.
	ClassOpen Class = "open"
)

// Routes describes which paths are public and which namespace is protected.
type Routes struct {
	PublicPaths     []string
	PublicPrefixes  []string
	ProtectedPrefix string
}

// DefaultRoutes: root, probes, docs and the schema are public; /v1/ is
// protected.
func DefaultRoutes() Routes {
	return Routes{
		PublicPaths:     []string{"/", "/health", "/readiness", "/openapi.json"},
		PublicPrefixes:  []string{"/docs", "/redoc"},
		ProtectedPrefix: "/v1/",
	}
}

// Classify places a request in exactly one class. OPTIONS is always public.
func (rt Routes) Classify(method, path string) Class {
	if method == http.MethodOptions {
		return ClassPublic
	}
	for _, p := range rt.PublicPaths {
		if path == p {
			return ClassPublic
		}
	}
	for _, p := range rt.PublicPrefixes {
		if path == p || strings.HasPrefix(path, p+"/") {
			return ClassPublic
		}
	}
	if rt.ProtectedPrefix != "" && strings.HasPrefix(path, rt.ProtectedPrefix) {
		return ClassProtected
	}
	return ClassOpen
}
