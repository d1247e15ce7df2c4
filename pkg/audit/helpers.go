package audit

import (
	"strings"
)

// routeTypes maps API route segments to document type names. Segments not in
// this map (auditoria, reparaciones, maestros) are not document aggregates.
var routeTypes = map[string]string{
	"ats":          "ATS",
	"petar":        "PETAR",
	"pets":         "PETS",
	"iperc":        "IPERC",
	"evaluaciones": "EVAL",
	"entregas":     "CERT",
}

// splitAPIPath returns the path segments after the /api/v1 prefix, or nil
// when the path is outside the API.
func splitAPIPath(path string) []string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 3 || parts[0] != "api" || parts[1] != "v1" {
		return nil
	}
	return parts[2:]
}

// extractDocumentType returns the document type a path targets, or "" for
// non-document routes.
func extractDocumentType(path string) string {
	parts := splitAPIPath(path)
	if len(parts) == 0 {
		return ""
	}
	return routeTypes[parts[0]]
}

// extractDocumentID returns the document ID segment of a path like
// /api/v1/ats/{id} or /api/v1/ats/{id}/transiciones.
func extractDocumentID(path string) string {
	parts := splitAPIPath(path)
	if len(parts) < 2 {
		return ""
	}
	if _, ok := routeTypes[parts[0]]; !ok {
		return ""
	}
	return parts[1]
}

// extractAction returns a verb for the audited request. Sub-resource routes
// name the action directly; everything else falls back to the HTTP method.
func extractAction(method, path string) string {
	parts := splitAPIPath(path)
	if len(parts) >= 3 {
		switch parts[2] {
		case "transiciones":
			return "transicion"
		case "versiones":
			return "nueva_version"
		case "entregar":
			return "entregar"
		case "confirmar":
			return "confirmar"
		case "cancelar":
			return "cancelar"
		}
	}

	switch method {
	case "POST":
		return "crear"
	case "PUT", "PATCH":
		return "actualizar"
	case "DELETE":
		return "eliminar"
	default:
		return strings.ToLower(method)
	}
}

// isAuditedEndpoint returns true if the request should be audited. Mutating
// methods are audited; browsing is not, and health endpoints never are.
func isAuditedEndpoint(method, path string) bool {
	if isHealthEndpoint(path) {
		return false
	}
	switch method {
	case "POST", "PUT", "PATCH", "DELETE":
		return true
	}
	return false
}

// isHealthEndpoint returns true for health-check paths.
func isHealthEndpoint(path string) bool {
	switch path {
	case "/livez", "/readyz", "/healthz":
		return true
	}
	return false
}
