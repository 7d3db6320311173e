// Package api exposes the notification service over HTTP JSON.
package api

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strconv"
	"strings"
	"time"

	"calnotify/internal/reminders"
	"calnotify/internal/service"
	"calnotify/internal/upload"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

const (
	userIDHeader = "X-User-ID"
	apiKeyHeader = "x-api-key"

	maxJSONBody = 1 << 20
)

type ctxKey int

const userIDKey ctxKey = iota

// Deps are the components the HTTP layer delegates to.
type Deps struct {
	Notifications *service.NotificationService
	Preferences   *service.PreferenceService
	Sounds        *service.SoundService
	Gateway       *upload.Gateway
	Reminders     *reminders.Processor
}

// Options configure request handling.
type Options struct {
	APIKey       string
	MaxFileSize  int64
	PublicPrefix string

	// Per-user upload rate in requests per second.
	UploadRate  float64
	UploadBurst int
}

type HTTPServer struct {
	notifications *service.NotificationService
	prefs         *service.PreferenceService
	sounds        *service.SoundService
	gateway       *upload.Gateway
	reminders     *reminders.Processor
	opts          Options
	limiter       *userLimiter
	logger        zerolog.Logger
	router        *mux.Router
}

func NewHTTPServer(deps Deps, opts Options, logger *zerolog.Logger) *HTTPServer {
	if opts.PublicPrefix == "" {
		opts.PublicPrefix = "/uploads"
	}
	s := &HTTPServer{
		notifications: deps.Notifications,
		prefs:         deps.Preferences,
		sounds:        deps.Sounds,
		gateway:       deps.Gateway,
		reminders:     deps.Reminders,
		opts:          opts,
		limiter:       newUserLimiter(opts.UploadRate, opts.UploadBurst),
		logger:        logger.With().Str("component", "http").Logger(),
		router:        mux.NewRouter(),
	}
	s.routes()
	return s
}

func (s *HTTPServer) Handler() http.Handler {
	return s.recoverer(s.accessLog(s.router))
}

func (s *HTTPServer) routes() {
	internal := s.router.PathPrefix("/api/internal").Subrouter()
	internal.Use(s.requireAPIKey)
	internal.HandleFunc("/notifications", s.handleCreateNotification).Methods(http.MethodPost)
	internal.HandleFunc("/reminders/process", s.handleProcessReminders).Methods(http.MethodPost)

	user := s.router.PathPrefix("/api").Subrouter()
	user.Use(s.requireUser)

	user.HandleFunc("/notifications", s.handleListNotifications).Methods(http.MethodGet)
	user.HandleFunc("/notifications", s.handleClearNotifications).Methods(http.MethodDelete)
	user.HandleFunc("/notifications/unread-count", s.handleUnreadCount).Methods(http.MethodGet)
	user.HandleFunc("/notifications/read-all", s.handleMarkAllRead).Methods(http.MethodPatch)
	user.HandleFunc("/notifications/export", s.handleExport).Methods(http.MethodGet)
	user.HandleFunc("/notifications/preferences", s.handleGetPreferences).Methods(http.MethodGet)
	user.HandleFunc("/notifications/preferences", s.handleUpdatePreferences).Methods(http.MethodPut)
	user.HandleFunc("/notifications/sounds", s.handleListSounds).Methods(http.MethodGet)
	user.Handle("/notifications/sounds", s.rateLimited(http.HandlerFunc(s.handleUploadSound))).Methods(http.MethodPost)
	user.HandleFunc("/notifications/sounds/{id}", s.handleDeleteSound).Methods(http.MethodDelete)
	user.HandleFunc("/notifications/{id:[0-9]+}/read", s.handleMarkRead).Methods(http.MethodPatch)
	user.HandleFunc("/notifications/{id:[0-9]+}", s.handleDeleteNotification).Methods(http.MethodDelete)
	user.Handle("/uploads", s.rateLimited(http.HandlerFunc(s.handleUpload))).Methods(http.MethodPost)
	user.Handle("/uploads/batch", s.rateLimited(http.HandlerFunc(s.handleUploadBatch))).Methods(http.MethodPost)

	prefix := strings.TrimRight(s.opts.PublicPrefix, "/") + "/"
	s.router.PathPrefix(prefix).Handler(http.StripPrefix(prefix, staticFiles(s.gateway.Root()))).Methods(http.MethodGet, http.MethodHead)
}

// requireUser reads the user id injected by the upstream auth proxy.
func (s *HTTPServer) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(r.Header.Get(userIDHeader), 10, 64)
		if err != nil || id <= 0 {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userIDKey, id)))
	})
}

func userID(r *http.Request) int64 {
	id, _ := r.Context().Value(userIDKey).(int64)
	return id
}

func (s *HTTPServer) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(apiKeyHeader)
		if s.opts.APIKey == "" || subtle.ConstantTimeCompare([]byte(key), []byte(s.opts.APIKey)) != 1 {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *HTTPServer) rateLimited(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := userID(r)
		if !s.limiter.allow(id) {
			s.logger.Warn().Int64("user_id", id).Msg("Upload rate limit exceeded")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded, try again later")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *HTTPServer) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}

func (s *HTTPServer) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error().Interface("panic", rec).Str("path", r.URL.Path).Msg("Handler panicked")
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// staticFiles serves stored uploads without directory listings.
func staticFiles(root string) http.Handler {
	fs := http.FileServer(http.Dir(root))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("X-Content-Type-Options", "nosniff")
		fs.ServeHTTP(w, r)
	})
}
