// Package debugserver exposes profiling and in-memory state snapshots on a
// separate listener. Loopback clients are trusted; everyone else needs
// basic auth, and with no credentials configured they are refused.
package debugserver

import (
	"encoding/json"
	"net"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const realm = "debug"

// Config stores debug server credentials.
type Config struct {
	User string
	Pass string
}

// Snapshot returns a JSON-encodable view of one subsystem.
type Snapshot func() any

// Handler mounts pprof under /debug/pprof/ and snapshots under /debug/state.
func Handler(cfg Config, snapshots map[string]Snapshot) http.Handler {
	r := chi.NewRouter()
	r.Use(loopbackOrAuth(cfg))
	r.Mount("/debug", middleware.Profiler())
	r.Get("/debug/state", stateIndex(snapshots))
	r.Get("/debug/state/{name}", stateOne(snapshots))
	return r
}

func loopbackOrAuth(cfg Config) func(http.Handler) http.Handler {
	creds := map[string]string{}
	if cfg.User != "" && cfg.Pass != "" {
		creds[cfg.User] = cfg.Pass
	}
	auth := middleware.BasicAuth(realm, creds)
	return func(next http.Handler) http.Handler {
		authed := auth(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isLoopback(r.RemoteAddr) {
				next.ServeHTTP(w, r)
				return
			}
			authed.ServeHTTP(w, r)
		})
	}
}

func stateIndex(snapshots map[string]Snapshot) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		out := make(map[string]any, len(snapshots))
		for name, fn := range snapshots {
			out[name] = fn()
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func stateOne(snapshots map[string]Snapshot) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		fn, ok := snapshots[name]
		if !ok {
			names := make([]string, 0, len(snapshots))
			for n := range snapshots {
				names = append(names, n)
			}
			sort.Strings(names)
			writeJSON(w, http.StatusNotFound, map[string]any{"error": "unknown snapshot", "available": names})
			return
		}
		writeJSON(w, http.StatusOK, fn())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func isLoopback(remoteAddr string) bool {
	host := strings.TrimSpace(remoteAddr)
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
