package httpx

import (
	"html/template"
	"net/http"

	"github.com/academiq/academiq-api/internal/domain/routing"
	"github.com/academiq/academiq-api/internal/service"
)

// accessDeniedTemplate renders the explicit denial panel for routes whose
// mismatch policy is deny. It names the visitor's resolved role so the state
// is diagnosable, and offers a way home.
var accessDeniedTemplate = template.Must(template.New("access-denied").Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>Access Denied</title></head>
<body>
<main class="access-denied">
  <h1>Access Denied</h1>
  <p>You don&#39;t have permission to view this page.</p>
  <p class="role-line">Your role: <strong>{{.Actual}}</strong></p>
  <p><a href="{{.HomePath}}">Go Home</a></p>
</main>
</body>
</html>
`))

type accessDeniedData struct {
	Actual   string
	HomePath string
}

// renderAccessDenied writes the denial panel for a deny decision.
func renderAccessDenied(w http.ResponseWriter, decision service.Decision) {
	actual := "none"
	if decision.Actual != nil {
		actual = string(*decision.Actual)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusForbidden)
	if err := accessDeniedTemplate.Execute(w, accessDeniedData{Actual: actual, HomePath: routing.PathHome}); err != nil {
		// The header is already written; nothing useful left to do.
		return
	}
}
