package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/echoes/internal/shared"
)

const stateTTL = 10 * time.Minute

// SessionHandler runs the browser authorization-code flow for the long-running server.
//
// States are single use and expire after ten minutes. A successful callback installs the session through the
// [Authenticator], so every later API call uses it.
type SessionHandler struct {
	auth   Authenticator
	logger *log.Logger
	now    func() time.Time

	// redirect is where a completed login lands. Empty renders a confirmation page.
	redirect string

	mu     sync.Mutex
	states map[string]time.Time
}

// NewSessionHandler creates the login/callback handler.
func NewSessionHandler(auth Authenticator, redirect string, logger *log.Logger) *SessionHandler {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &SessionHandler{
		auth:     auth,
		logger:   shared.WithLogger(logger, "component", "session"),
		now:      time.Now,
		redirect: redirect,
		states:   make(map[string]time.Time),
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *SessionHandler) Routes() []string {
	return []string{"/auth/login", "/callback"}
}

func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "Method not allowed", Kind: "method_not_allowed"})
		return
	}

	switch r.URL.Path {
	case "/auth/login":
		h.login(w, r)
	case "/callback":
		h.callback(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (h *SessionHandler) login(w http.ResponseWriter, r *http.Request) {
	state, err := shared.GenerateState()
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.mu.Lock()
	h.sweep()
	h.states[state] = h.now().Add(stateTTL)
	h.mu.Unlock()

	http.Redirect(w, r, h.auth.AuthURL(state), http.StatusFound)
}

func (h *SessionHandler) callback(w http.ResponseWriter, r *http.Request) {
	_, status, err := completeCallback(r, h.auth, h.consume)
	if err != nil {
		h.logger.Warn("authorization failed", "error", err)
		writeJSON(w, status, errorResponse{Error: err.Error(), Kind: string(shared.KindUnauthorized)})
		return
	}

	h.logger.Info("spotify session installed")
	if h.redirect != "" {
		http.Redirect(w, r, h.redirect, http.StatusFound)
		return
	}
	writeSuccessPage(w)
}

// consume reports whether state was issued and unexpired, removing it either way.
func (h *SessionHandler) consume(state string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	expires, ok := h.states[state]
	delete(h.states, state)
	return ok && h.now().Before(expires)
}

// sweep drops expired states. Callers hold mu.
func (h *SessionHandler) sweep() {
	now := h.now()
	for s, exp := range h.states {
		if !now.Before(exp) {
			delete(h.states, s)
		}
	}
}
