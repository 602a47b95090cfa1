package http

import (
	"net/http"
	"strings"
)

// RouterConfig collects the handlers and middleware the router mounts.
// Nil handlers leave their routes unregistered.
type RouterConfig struct {
	Rules       *RuleHandler
	Sessions    *SessionHandler
	Activations *ActivationHandler
	Access      *AccessHandler
	Middleware  []func(http.Handler) http.Handler
}

// NewRouter builds the HTTP surface on the stdlib mux. Path parameters are
// resolved here and passed to handlers through the request context.
func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	if cfg.Rules != nil {
		mux.HandleFunc("/rules", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.Rules.Create(w, r)
		})
		mux.HandleFunc("/rules/", func(w http.ResponseWriter, r *http.Request) {
			id, action := splitResourcePath(r.URL.Path, "/rules/")
			if id == "" {
				http.NotFound(w, r)
				return
			}
			r = r.WithContext(ContextWithResourceID(r.Context(), id))

			switch action {
			case "":
				switch r.Method {
				case http.MethodGet:
					cfg.Rules.Get(w, r)
				case http.MethodDelete:
					cfg.Rules.Delete(w, r)
				default:
					methodNotAllowed(w, http.MethodGet, http.MethodDelete)
				}
			case "generate":
				requirePost(w, r, cfg.Rules.Generate)
			case "pause":
				requirePost(w, r, cfg.Rules.Pause)
			case "resume":
				requirePost(w, r, cfg.Rules.Resume)
			case "end":
				requirePost(w, r, cfg.Rules.End)
			default:
				http.NotFound(w, r)
			}
		})
	}

	if cfg.Sessions != nil {
		mux.HandleFunc("/sessions", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				cfg.Sessions.List(w, r)
			case http.MethodPost:
				cfg.Sessions.Create(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPost)
			}
		})
		mux.HandleFunc("/sessions/", func(w http.ResponseWriter, r *http.Request) {
			id, action := splitResourcePath(r.URL.Path, "/sessions/")
			if id == "" {
				http.NotFound(w, r)
				return
			}
			r = r.WithContext(ContextWithResourceID(r.Context(), id))

			switch action {
			case "":
				if r.Method != http.MethodGet {
					methodNotAllowed(w, http.MethodGet)
					return
				}
				cfg.Sessions.Get(w, r)
			case "start":
				requirePost(w, r, cfg.Sessions.Start)
			case "end":
				requirePost(w, r, cfg.Sessions.End)
			case "cancel":
				requirePost(w, r, cfg.Sessions.Cancel)
			default:
				http.NotFound(w, r)
			}
		})
	}

	if cfg.Activations != nil {
		mux.HandleFunc("/activations", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.Activations.Create(w, r)
		})
		mux.HandleFunc("/activations/sweep", func(w http.ResponseWriter, r *http.Request) {
			requirePost(w, r, cfg.Activations.Sweep)
		})
		mux.HandleFunc("/activations/", func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimPrefix(r.URL.Path, "/activations/")
			if id == "" || strings.Contains(id, "/") {
				http.NotFound(w, r)
				return
			}
			if r.Method != http.MethodDelete {
				methodNotAllowed(w, http.MethodDelete)
				return
			}
			r = r.WithContext(ContextWithResourceID(r.Context(), id))
			cfg.Activations.Cancel(w, r)
		})
	}

	if cfg.Access != nil {
		mux.HandleFunc("/access/decision", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				methodNotAllowed(w, http.MethodGet)
				return
			}
			cfg.Access.Decision(w, r)
		})
		mux.HandleFunc("/access/tokens", func(w http.ResponseWriter, r *http.Request) {
			requirePost(w, r, cfg.Access.IssueToken)
		})
	}

	var handler http.Handler = mux
	for i := len(cfg.Middleware) - 1; i >= 0; i-- {
		if cfg.Middleware[i] != nil {
			handler = cfg.Middleware[i](handler)
		}
	}
	return handler
}

func requirePost(w http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	next(w, r)
}

// splitResourcePath separates "{id}" and "{id}/{action}" forms. Deeper
// paths yield an empty id so callers can 404 them.
func splitResourcePath(path, prefix string) (id, action string) {
	rest := strings.TrimPrefix(path, prefix)
	parts := strings.SplitN(rest, "/", 3)
	switch len(parts) {
	case 1:
		return parts[0], ""
	case 2:
		return parts[0], parts[1]
	default:
		return "", ""
	}
}
