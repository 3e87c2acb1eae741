package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"

	"coursehub/internal/app"
	"coursehub/internal/session"
	"coursehub/internal/util"
	"coursehub/pkg/domain"
	"coursehub/pkg/store"
)

const sessionCookieName = "session_token"

// Config wires required dependencies for the HTTP server.
type Config struct {
	App            *app.App
	Sessions       session.Store
	AllowedOrigins []string
	CookieSecure   bool
	MaxUploadBytes int64
}

// Server exposes the HTTP surface: sessions, per-kind media operations,
// courses with cascade deletion, progress tracking, and byte retrieval.
type Server struct {
	app            *app.App
	sessions       session.Store
	mux            *http.ServeMux
	allowedOrigins []string
	cookieSecure   bool
	maxUploadBytes int64
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("app is required")
	}
	if cfg.Sessions == nil {
		return nil, errors.New("session store is required")
	}
	s := &Server{
		app:            cfg.App,
		sessions:       cfg.Sessions,
		mux:            http.NewServeMux(),
		allowedOrigins: cfg.AllowedOrigins,
		cookieSecure:   cfg.CookieSecure,
		maxUploadBytes: normalizeMaxBytes(cfg.MaxUploadBytes),
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler wrapped in the middleware chain.
func (s *Server) Router() http.Handler {
	var h http.Handler = s.mux
	h = util.WithCORS(s.allowedOrigins, h)
	h = util.WithSecurityHeaders(h)
	h = util.WithRequestLog(h)
	h = util.WithRequestID(h)
	return h
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	// sessions
	s.mux.HandleFunc("/api/login", s.handleLogin)
	s.mux.HandleFunc("/api/logout", s.handleLogout)
	s.mux.HandleFunc("/api/get_session_info", s.handleSessionInfo)

	// uploads (the video path is the historic irregular one)
	s.mux.HandleFunc("/api/upload", s.uploadHandler(domain.KindVideo))
	s.mux.HandleFunc("/api/upload_pdf", s.uploadHandler(domain.KindPDF))
	s.mux.HandleFunc("/api/upload_docx", s.uploadHandler(domain.KindDocx))
	s.mux.HandleFunc("/api/upload_audio", s.uploadHandler(domain.KindAudio))

	// listings
	s.mux.HandleFunc("/api/videos", s.listHandler(domain.KindVideo))
	s.mux.HandleFunc("/api/pdfs", s.listHandler(domain.KindPDF))
	s.mux.HandleFunc("/api/docx_files", s.listHandler(domain.KindDocx))
	s.mux.HandleFunc("/api/audio_files", s.listHandler(domain.KindAudio))

	// single-record deletion
	s.mux.HandleFunc("/api/video/", s.deleteHandler(domain.KindVideo, "/api/video/"))
	s.mux.HandleFunc("/api/pdf/", s.deleteHandler(domain.KindPDF, "/api/pdf/"))
	s.mux.HandleFunc("/api/docx/", s.deleteHandler(domain.KindDocx, "/api/docx/"))
	s.mux.HandleFunc("/api/audio/", s.deleteHandler(domain.KindAudio, "/api/audio/"))

	// progress
	s.mux.HandleFunc("/api/progress_video/", s.progressHandler(domain.KindVideo, "/api/progress_video/"))
	s.mux.HandleFunc("/api/progress_pdf/", s.progressHandler(domain.KindPDF, "/api/progress_pdf/"))
	s.mux.HandleFunc("/api/progress_docx/", s.progressHandler(domain.KindDocx, "/api/progress_docx/"))
	s.mux.HandleFunc("/api/progress_audio/", s.progressHandler(domain.KindAudio, "/api/progress_audio/"))

	// courses
	s.mux.HandleFunc("/api/courses", s.handleCourses)
	s.mux.HandleFunc("/api/courses/", s.handleCourseByID)

	// byte retrieval (local serve or blob redirect)
	s.mux.HandleFunc("/uploads/", s.handleDownload)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// session handling

func (s *Server) sessionFrom(r *http.Request) (domain.Session, bool) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		return domain.Session{}, false
	}
	sess, ok, err := s.sessions.Get(r.Context(), cookie.Value)
	if err != nil {
		slog.Error("session lookup failed", "err", err)
		return domain.Session{}, false
	}
	return sess, ok
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req loginRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	role, ok := domain.ParseRole(req.Role)
	if strings.TrimSpace(req.Name) == "" || !ok {
		s.audit(r, "login", "fail", "reason", "invalid_name_or_role")
		writeError(w, http.StatusBadRequest, "Invalid login")
		return
	}
	token, err := s.sessions.Create(r.Context(), domain.Session{Name: req.Name, Role: role})
	if err != nil {
		slog.Error("create session failed", "err", err)
		writeError(w, http.StatusInternalServerError, "could not create session")
		return
	}
	http.SetCookie(w, s.sessionCookie(token, 0))
	s.audit(r, "login", "success", "name", req.Name, "role", role)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "role": role})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if cookie, err := r.Cookie(sessionCookieName); err == nil && cookie.Value != "" {
		if err := s.sessions.Delete(r.Context(), cookie.Value); err != nil {
			slog.Warn("session delete failed", "err", err)
		}
	}
	http.SetCookie(w, s.sessionCookie("", -1))
	s.audit(r, "logout", "success")
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Logged out successfully"})
}

func (s *Server) handleSessionInfo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	sess, ok := s.sessionFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "No active session")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "name": sess.Name, "role": sess.Role})
}

func (s *Server) sessionCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     sessionCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}

// media handlers

func (s *Server) uploadHandler(kind domain.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		sess, ok := s.sessionFrom(r)
		if !ok {
			s.audit(r, "upload", "fail", "reason", "no_session")
			writeError(w, http.StatusForbidden, "Unauthorized")
			return
		}
		if s.maxUploadBytes > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
		}
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			writeError(w, http.StatusBadRequest, "invalid form data")
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid or no file selected")
			return
		}
		defer file.Close()
		courseID := r.FormValue("courseId")

		rec, err := s.app.UploadMedia(r.Context(), sess, kind, courseID, header.Filename, file, header.Size)
		if err != nil {
			s.audit(r, "upload", "fail", "kind", kind, "reason", err.Error())
			s.writeAppError(w, err)
			return
		}
		s.audit(r, "upload", "success", "kind", kind, "filename", rec.Filename, "course_id", rec.CourseID)
		writeJSON(w, http.StatusOK, map[string]any{
			"success":  true,
			"filename": rec.Filename,
			"filetype": rec.Filetype,
			"url":      rec.URL,
		})
	}
}

func (s *Server) listHandler(kind domain.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		records, skipped, err := s.app.ListMedia(r.Context(), kind, r.URL.Query().Get("courseId"))
		if err != nil {
			s.writeAppError(w, err)
			return
		}
		if skipped > 0 {
			w.Header().Set("X-Skipped-Records", strconv.Itoa(skipped))
		}
		writeJSON(w, http.StatusOK, records)
	}
}

func (s *Server) deleteHandler(kind domain.Kind, prefix string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			methodNotAllowed(w)
			return
		}
		filename := strings.TrimPrefix(r.URL.Path, prefix)
		if filename == "" || strings.Contains(filename, "/") {
			http.NotFound(w, r)
			return
		}
		sess, ok := s.sessionFrom(r)
		if !ok {
			s.audit(r, "delete", "fail", "reason", "no_session")
			writeError(w, http.StatusForbidden, "Unauthorized")
			return
		}
		if err := s.app.DeleteMedia(r.Context(), sess, kind, filename); err != nil {
			s.audit(r, "delete", "fail", "kind", kind, "filename", filename, "reason", err.Error())
			s.writeAppError(w, err)
			return
		}
		s.audit(r, "delete", "success", "kind", kind, "filename", filename)
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "File deleted"})
	}
}

// progress handlers

func (s *Server) progressHandler(kind domain.Kind, prefix string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, prefix)
		parts := strings.SplitN(rest, "/", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			http.NotFound(w, r)
			return
		}
		student, filename := parts[0], parts[1]
		switch r.Method {
		case http.MethodGet:
			value, err := s.app.GetProgress(r.Context(), kind, student, filename)
			if err != nil {
				s.writeAppError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, progressPayload(kind, value))
		case http.MethodPost:
			var value domain.Progress
			if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&value); err != nil {
				writeError(w, http.StatusBadRequest, "invalid JSON body")
				return
			}
			if err := s.app.PutProgress(r.Context(), kind, student, filename, value); err != nil {
				s.writeAppError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"success": true})
		default:
			methodNotAllowed(w)
		}
	}
}

// progressPayload shapes the response by kind: a bare percentage for
// video/audio, page-oriented fields for pdf, percentage-only for docx.
func progressPayload(kind domain.Kind, value domain.Progress) any {
	switch kind {
	case domain.KindPDF:
		return map[string]any{
			"currentPage":        value.CurrentPage,
			"maxProgressPercent": value.MaxProgressPercent,
		}
	case domain.KindDocx:
		return map[string]any{"maxProgressPercent": value.MaxProgressPercent}
	default:
		return map[string]any{"percent": value.Percent}
	}
}

// course handlers

func (s *Server) handleCourses(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		courses, err := s.app.Courses(r.Context())
		if err != nil {
			s.writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, courses)
	case http.MethodPost:
		sess, ok := s.sessionFrom(r)
		if !ok {
			writeError(w, http.StatusForbidden, "Unauthorized")
			return
		}
		var req createCourseRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		course, err := s.app.CreateCourse(r.Context(), sess, req.Name)
		if err != nil {
			s.audit(r, "course.create", "fail", "reason", err.Error())
			s.writeAppError(w, err)
			return
		}
		s.audit(r, "course.create", "success", "course_id", course.ID, "name", course.Name)
		writeJSON(w, http.StatusCreated, course)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleCourseByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/courses/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodGet:
		course, err := s.app.GetCourse(r.Context(), id)
		if err != nil {
			s.writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, course)
	case http.MethodDelete:
		sess, ok := s.sessionFrom(r)
		if !ok {
			writeError(w, http.StatusForbidden, "Unauthorized")
			return
		}
		result, err := s.app.DeleteCourse(r.Context(), sess, id)
		if err != nil {
			s.audit(r, "course.delete", "fail", "course_id", id, "reason", err.Error())
			s.writeAppError(w, err)
			return
		}
		s.audit(r, "course.delete", "success", "course_id", id,
			"deleted_files", result.DeletedFilesCount, "deleted_progress", result.DeletedProgressCount)
		writeJSON(w, http.StatusOK, map[string]any{
			"success":                true,
			"deleted_files_count":    result.DeletedFilesCount,
			"deleted_progress_count": result.DeletedProgressCount,
		})
	default:
		methodNotAllowed(w)
	}
}

// handleDownload serves local bytes directly or redirects to the blob URL,
// depending on which relay is active.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	key := strings.TrimPrefix(r.URL.Path, "/uploads/")
	if key == "" {
		http.NotFound(w, r)
		return
	}
	target, err := s.app.ResolveDownload(r.Context(), key)
	if err != nil {
		slog.Error("resolve download failed", "key", key, "err", err)
		writeError(w, http.StatusInternalServerError, "could not resolve file")
		return
	}
	if target.RedirectURL != "" {
		http.Redirect(w, r, target.RedirectURL, http.StatusFound)
		return
	}
	http.ServeFile(w, r, target.LocalPath)
}

// helpers

type loginRequest struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

type createCourseRequest struct {
	Name string `json:"name"`
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "message": msg})
}

// writeAppError maps the application error taxonomy onto HTTP statuses.
// Unknown errors become a generic 500; detail stays in server logs only.
func (s *Server) writeAppError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, app.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrUnauthorized):
		writeError(w, http.StatusForbidden, "Unauthorized")
	case errors.Is(err, app.ErrNotFound):
		writeError(w, http.StatusNotFound, "File not found")
	case errors.Is(err, store.ErrCourseNotFound):
		writeError(w, http.StatusNotFound, "Course not found")
	case errors.Is(err, store.ErrDuplicateCourseName):
		writeError(w, http.StatusConflict, "A course with this name already exists")
	default:
		slog.Error("request failed", "err", err)
		writeError(w, http.StatusInternalServerError, "An error occurred while processing the request")
	}
}

func (s *Server) audit(r *http.Request, event, outcome string, attrs ...any) {
	logAttrs := []any{
		"event", event,
		"outcome", outcome,
		"path", r.URL.Path,
		"method", r.Method,
		"ip", clientIP(r),
		"request_id", util.RequestIDFromRequest(r),
	}
	logAttrs = append(logAttrs, attrs...)
	if outcome == "success" {
		slog.Info("security_event", logAttrs...)
		return
	}
	slog.Warn("security_event", logAttrs...)
}

func clientIP(r *http.Request) string {
	if xfwd := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); xfwd != "" {
		parts := strings.Split(xfwd, ",")
		if len(parts) > 0 {
			ip := strings.TrimSpace(parts[0])
			if ip != "" {
				return ip
			}
		}
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	return strings.TrimSpace(r.RemoteAddr)
}

func normalizeMaxBytes(value int64) int64 {
	if value <= 0 {
		return 200 * 1024 * 1024
	}
	return value
}
