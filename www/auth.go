package www

import (
	"context"
	"net/http"

	"github.com/gorilla/sessions"
	"golang.org/x/crypto/bcrypt"

	"boxworks/store"
)

const sessionName = "boxworks-session"

const (
	roleAdmin = "admin"
	roleStaff = "staff"
)

func newSessionStore(secret string) *sessions.CookieStore {
	if secret == "" {
		secret = "boxworks-default-secret-change-me"
	}
	s := sessions.NewCookieStore([]byte(secret))
	s.Options.HttpOnly = true
	s.Options.Secure = false // TLS terminates at the reverse proxy
	s.Options.SameSite = http.SameSiteLaxMode
	return s
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(hash), err
}

func checkPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func (h *Handlers) isAuthenticated(r *http.Request) bool {
	session, err := h.sessions.Get(r, sessionName)
	if err != nil {
		return false
	}
	auth, ok := session.Values["authenticated"].(bool)
	return ok && auth
}

func (h *Handlers) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.isAuthenticated(r) {
			h.jsonError(w, "authentication required", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireRole rejects sessions whose role is not role.
func (h *Handlers) requireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if h.getRole(r) != role {
				h.jsonError(w, role+" role required", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (h *Handlers) getUsername(r *http.Request) string {
	session, err := h.sessions.Get(r, sessionName)
	if err != nil {
		return ""
	}
	username, _ := session.Values["username"].(string)
	return username
}

func (h *Handlers) getRole(r *http.Request) string {
	session, err := h.sessions.Get(r, sessionName)
	if err != nil {
		return ""
	}
	role, _ := session.Values["role"].(string)
	return role
}

func (h *Handlers) ensureDefaultAdmin(ctx context.Context) {
	db := h.engine.DB()
	exists, err := db.AdminUserExists(ctx)
	if err != nil || exists {
		return
	}
	hash, err := hashPassword(h.engine.AppConfig().Web.AdminPassword)
	if err != nil {
		return
	}
	if err := db.CreateAdminUser(ctx, "admin", hash, roleAdmin); err != nil {
		h.logger.WithError(err).Warn("seed admin user")
		return
	}
	h.logger.Info("created default admin user")
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (h *Handlers) apiLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decode(w, r, &req) {
		return
	}

	user, err := h.engine.DB().GetAdminUser(r.Context(), req.Username)
	if err != nil && !store.IsNotFound(err) {
		h.writeError(w, r, err)
		return
	}
	if err != nil || !checkPassword(user.PasswordHash, req.Password) {
		h.jsonError(w, "invalid username or password", http.StatusUnauthorized)
		return
	}

	session, _ := h.sessions.Get(r, sessionName)
	session.Values["authenticated"] = true
	session.Values["username"] = user.Username
	session.Values["role"] = user.Role
	if err := session.Save(r, w); err != nil {
		h.logger.WithError(err).Warn("auth: session save")
	}
	h.jsonOK(w, map[string]string{"username": user.Username, "role": user.Role})
}

func (h *Handlers) apiLogout(w http.ResponseWriter, r *http.Request) {
	session, _ := h.sessions.Get(r, sessionName)
	session.Values["authenticated"] = false
	session.Values["username"] = ""
	session.Values["role"] = ""
	session.Save(r, w)
	h.jsonOK(w, map[string]string{"status": "logged out"})
}
