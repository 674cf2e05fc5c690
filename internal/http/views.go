package httpx

import (
	"html/template"
	"log/slog"
	"net/http"

	"github.com/academiq/academiq-api/internal/domain/routing"
	domainsession "github.com/academiq/academiq-api/internal/domain/session"
)

// pageTemplate is the shared shell for the server-rendered views. The views
// are deliberately thin: the gate decides who sees them, the pages only
// confirm where the visitor landed.
var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body>
<main class="{{.Class}}">
  <h1>{{.Title}}</h1>
  {{- if .Body}}
  <p>{{.Body}}</p>
  {{- end}}
  {{- if .Roles}}
  <ul class="roles">
    {{- range .Roles}}
    <li>{{.}}</li>
    {{- end}}
  </ul>
  {{- end}}
  {{- if .Authenticated}}
  <form method="post" action="/auth/logout"><button type="submit">Sign out</button></form>
  {{- else}}
  <p><a href="/auth/login">Sign in</a></p>
  {{- end}}
</main>
</body>
</html>
`))

type pageData struct {
	Title         string
	Class         string
	Body          string
	Roles         []string
	Authenticated bool
}

// ViewHandlers serves the navigable pages of the portal. Guarded pages expect
// the gate middleware to have run; they read the snapshot from context.
type ViewHandlers struct {
	Roles  *SessionHandlers
	Logger *slog.Logger
}

func (h *ViewHandlers) render(w http.ResponseWriter, r *http.Request, data pageData) {
	snap, _ := GetSnapshotFromContext(r.Context())
	data.Authenticated = snap.Authenticated()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTemplate.Execute(w, data); err != nil {
		logger := h.Logger
		if logger == nil {
			logger = slog.Default()
		}
		logger.ErrorContext(r.Context(), "rendering page failed", "error", err)
	}
}

// Home serves the landing page.
func (h *ViewHandlers) Home(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, pageData{Title: "AcademIQ", Class: "home", Body: "School management, simplified."})
}

// RolesPage lists the roles available at registration.
func (h *ViewHandlers) RolesPage(w http.ResponseWriter, r *http.Request) {
	var roles []string
	if h.Roles != nil {
		roles = h.Roles.distinctRoles(r)
	} else {
		roles = roleCatalog()
	}
	h.render(w, r, pageData{Title: "Choose your role", Class: "roles", Roles: roles})
}

// AuthPage serves the combined sign-in/sign-up entry page.
func (h *ViewHandlers) AuthPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, pageData{Title: "Welcome back", Class: "auth", Body: "Sign in or create an account to continue."})
}

// LoginPage serves the dedicated login page.
func (h *ViewHandlers) LoginPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, pageData{Title: "Sign in", Class: "login", Body: "Sign in to reach your dashboard."})
}

// RegisterPage serves the registration page.
func (h *ViewHandlers) RegisterPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, pageData{Title: "Create account", Class: "register", Body: "Pick a role and create your account."})
}

// dashboard builds a handler for one role's dashboard view.
func (h *ViewHandlers) dashboard(title, class string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.render(w, r, pageData{Title: title, Class: class, Body: "You are signed in as " + contextRole(r) + "."})
	}
}

func contextRole(r *http.Request) string {
	snap, ok := GetSnapshotFromContext(r.Context())
	if !ok || snap.Role == nil {
		return string(domainsession.RoleStudent)
	}
	return string(*snap.Role)
}

// StudentPortal serves the student dashboard.
func (h *ViewHandlers) StudentPortal(w http.ResponseWriter, r *http.Request) {
	h.dashboard("Student Portal", "studentportal")(w, r)
}

// ParentDashboard serves the parent dashboard.
func (h *ViewHandlers) ParentDashboard(w http.ResponseWriter, r *http.Request) {
	h.dashboard("Parent Dashboard", "parentdashboard")(w, r)
}

// TeacherDashboard serves the teacher dashboard.
func (h *ViewHandlers) TeacherDashboard(w http.ResponseWriter, r *http.Request) {
	h.dashboard("Teacher Dashboard", "teacherdash")(w, r)
}

// AdminDashboard serves the admin dashboard.
func (h *ViewHandlers) AdminDashboard(w http.ResponseWriter, r *http.Request) {
	h.dashboard("Admin Dashboard", "admindash")(w, r)
}

// handlerFor maps a guard table path to its view handler. Unknown paths get
// no handler; the router treats that as a wiring error.
func (h *ViewHandlers) handlerFor(path string) http.HandlerFunc {
	switch path {
	case routing.PathHome:
		return h.Home
	case routing.PathRoles:
		return h.RolesPage
	case routing.PathAuth:
		return h.AuthPage
	case routing.PathLogin:
		return h.LoginPage
	case routing.PathRegister:
		return h.RegisterPage
	case routing.PathStudentPortal:
		return h.StudentPortal
	case routing.PathParentDashboard:
		return h.ParentDashboard
	case routing.PathTeacherDash:
		return h.TeacherDashboard
	case routing.PathAdminDashboard:
		return h.AdminDashboard
	default:
		return nil
	}
}
