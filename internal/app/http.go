package app

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/cors"
	log "github.com/sirupsen/logrus"

	"milesofsmiles/api/internal/auth"
	"milesofsmiles/api/internal/content"
	"milesofsmiles/api/internal/rbac"
	"milesofsmiles/api/internal/search"
	"milesofsmiles/api/internal/util"
)

type HTTPServer struct {
	service    *Service
	stream     *Stream
	limiter    *rateLimiter
	corsOrigin string
	unwatch    func()
}

// NewHTTPServer builds the API and subscribes its live stream to document
// changes. Close undoes the subscription.
func NewHTTPServer(service *Service, corsOrigin string, streamRate float64) *HTTPServer {
	stream := NewStream(corsOrigin)
	return &HTTPServer{
		service:    service,
		stream:     stream,
		limiter:    newRateLimiter(streamRate, 2),
		corsOrigin: corsOrigin,
		unwatch:    service.Watch(stream.Broadcast),
	}
}

func (s *HTTPServer) Close() {
	s.unwatch()
	s.stream.Close()
}

func (s *HTTPServer) Handler() http.Handler {
	router := httprouter.New()
	router.NotFound = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	})
	router.MethodNotAllowed = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	})

	router.GET("/api/health", s.handleHealth)
	router.HEAD("/api/health", s.handleHealth)
	router.GET("/api/ready", s.handleReady)
	router.HEAD("/api/ready", s.handleReady)

	router.GET("/api/content", s.handleGetContent)
	router.GET("/api/content/:section", s.handleGetSection)
	router.PATCH("/api/content/:section", s.requireAdmin(s.handlePatchSection))

	router.GET("/api/destinations/search", s.handleSearchDestinations)
	router.POST("/api/destinations", s.requireAdmin(s.handleAddDestination))
	router.DELETE("/api/destinations/:index", s.requireAdmin(s.handleRemoveDestination))
	router.POST("/api/destinations/:index/itinerary", s.requireAdmin(s.handleAppendItineraryDay))
	router.DELETE("/api/destinations/:index/itinerary/:day", s.requireAdmin(s.handleRemoveItineraryDay))

	router.GET("/api/session", s.handleSession)
	router.POST("/api/session/login", s.handleLogin)
	router.POST("/api/session/logout", s.requireAdmin(s.handleLogout))
	router.POST("/api/session/password", s.requireAdmin(s.handleChangePassword))

	router.GET("/api/stream", s.handleStream)

	c := cors.New(cors.Options{
		AllowedOrigins: []string{s.corsOrigin},
		AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
	})
	return s.withMiddleware(c.Handler(router))
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	statusCode := http.StatusOK
	checks := map[string]any{}
	for name, err := range s.service.Checks(ctx) {
		if err != nil {
			checks[name] = map[string]any{"status": "error", "error": err.Error()}
			// The local store is the durability of record; the others degrade.
			if name == "local" {
				status = "not_ready"
				statusCode = http.StatusServiceUnavailable
			}
			continue
		}
		checks[name] = map[string]any{"status": "ok"}
	}

	synced := false
	select {
	case <-s.service.Ready():
		synced = true
	default:
	}
	if synced {
		checks["initialSync"] = map[string]any{"status": "ok"}
	} else {
		checks["initialSync"] = map[string]any{"status": "pending"}
	}

	writeJSON(w, statusCode, map[string]any{
		"ok":     status == "ready",
		"status": status,
		"checks": checks,
	})
}

func (s *HTTPServer) handleGetContent(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	doc := s.service.Content()
	if r.URL.Query().Get("resolveIcons") == "true" {
		doc = doc.WithResolvedIcons()
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *HTTPServer) handleGetSection(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	section, err := content.ParseSection(ps.ByName("section"))
	if err != nil {
		s.fail(w, err)
		return
	}
	value, err := s.service.Section(section)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, value)
}

func (s *HTTPServer) handlePatchSection(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	section, err := content.ParseSection(ps.ByName("section"))
	if err != nil {
		s.fail(w, err)
		return
	}
	var body struct {
		Op    string          `json:"op"`
		Value json.RawMessage `json:"value"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}

	var patch content.Patch
	switch content.PatchKind(body.Op) {
	case content.PatchMerge:
		patch, err = content.MergeJSON(section, body.Value)
	case content.PatchReplace:
		patch, err = content.ReplaceJSON(section, body.Value)
	default:
		err = domainError(http.StatusBadRequest, "VALIDATION_ERROR", `op must be "merge" or "replace"`, nil)
	}
	if err != nil {
		s.fail(w, err)
		return
	}

	doc, err := s.service.UpdateContent(r.Context(), patch)
	if err != nil {
		s.fail(w, err)
		return
	}
	value, _ := content.SectionValue(doc, section)
	writeJSON(w, http.StatusOK, map[string]any{"section": section, "value": value})
}

func (s *HTTPServer) handleSearchDestinations(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	query := r.URL.Query()
	limit, _ := strconv.Atoi(query.Get("limit"))
	writeJSON(w, http.StatusOK, s.service.Search(search.Query{
		Text:  strings.TrimSpace(query.Get("q")),
		Tag:   strings.TrimSpace(query.Get("tag")),
		Limit: limit,
	}))
}

func (s *HTTPServer) handleAddDestination(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	doc, err := s.service.UpdateContent(r.Context(), content.AddDestination())
	if err != nil {
		s.fail(w, err)
		return
	}
	index := len(doc.Destinations) - 1
	writeJSON(w, http.StatusCreated, map[string]any{"index": index, "destination": doc.Destinations[index]})
}

func (s *HTTPServer) handleRemoveDestination(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	index, err := pathIndex(ps, "index")
	if err != nil {
		s.fail(w, err)
		return
	}
	doc, err := s.service.UpdateContent(r.Context(), content.RemoveDestination(index))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "count": len(doc.Destinations)})
}

func (s *HTTPServer) handleAppendItineraryDay(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	index, err := pathIndex(ps, "index")
	if err != nil {
		s.fail(w, err)
		return
	}
	doc, err := s.service.UpdateContent(r.Context(), content.AppendItineraryDay(index))
	if err != nil {
		s.fail(w, err)
		return
	}
	itinerary := doc.Destinations[index].Itinerary
	writeJSON(w, http.StatusCreated, map[string]any{"day": itinerary[len(itinerary)-1], "itinerary": itinerary})
}

func (s *HTTPServer) handleRemoveItineraryDay(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	index, err := pathIndex(ps, "index")
	if err != nil {
		s.fail(w, err)
		return
	}
	day, err := pathIndex(ps, "day")
	if err != nil {
		s.fail(w, err)
		return
	}
	doc, err := s.service.UpdateContent(r.Context(), content.RemoveItineraryDay(index, day))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "itinerary": doc.Destinations[index].Itinerary})
}

func (s *HTTPServer) handleSession(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	token := bearerToken(r)
	if token == "" {
		writeJSON(w, http.StatusOK, map[string]any{"authenticated": false, "isAdmin": false})
		return
	}
	session, err := s.service.SessionFromToken(token)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"authenticated": false, "isAdmin": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"authenticated": true,
		"isAdmin":       true,
		"role":          session.Role,
		"expiresAt":     session.ExpiresAt.Unix(),
	})
}

func (s *HTTPServer) handleLogin(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var body struct {
		Password string `json:"password"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	if !s.service.Login(r.Context(), body.Password) {
		writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Incorrect password. Please try again.", nil)
		return
	}
	s.writeSession(w)
}

func (s *HTTPServer) handleLogout(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	s.service.Logout(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleChangePassword(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var body struct {
		Current string `json:"current"`
		Next    string `json:"next"`
		Confirm string `json:"confirm"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	if body.Current == "" || body.Next == "" {
		s.fail(w, validationError("Please complete all fields."))
		return
	}
	if body.Next != body.Confirm {
		s.fail(w, validationError("New passwords do not match."))
		return
	}
	if !s.service.ChangePassword(r.Context(), body.Current, body.Next) {
		writeError(w, http.StatusForbidden, "INVALID_CREDENTIALS", "Current password is incorrect.", nil)
		return
	}
	// The old token was signed with the old secret.
	s.writeSession(w)
}

func (s *HTTPServer) writeSession(w http.ResponseWriter) {
	session, err := s.service.IssueSession()
	if err != nil {
		log.WithError(err).Error("issue session token")
		writeError(w, http.StatusInternalServerError, "LOGIN_FAILED", "Login failed", nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token":     session.Token,
		"role":      session.Role,
		"expiresAt": session.ExpiresAt.Unix(),
	})
}

func (s *HTTPServer) handleStream(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if !s.limiter.Allow(r) {
		writeError(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests", nil)
		return
	}
	s.stream.Serve(w, r, s.service.Content)
}

// forbid writes a 403 Forbidden response and logs the denial
func (s *HTTPServer) forbid(w http.ResponseWriter, r *http.Request, session Session, action rbac.Action) {
	log.WithFields(log.Fields{
		"request_id": requestID(r.Context()),
		"role":       session.Role,
		"action":     action,
	}).Warn("forbidden")
	writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
}

func (s *HTTPServer) requireSession(w http.ResponseWriter, r *http.Request) (Session, bool) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return Session{}, false
	}
	session, err := s.service.SessionFromToken(token)
	if err != nil {
		s.fail(w, err)
		return Session{}, false
	}
	return session, true
}

func (s *HTTPServer) requireAdmin(next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		session, ok := s.requireSession(w, r)
		if !ok {
			return
		}
		if !s.service.Can(session.Role, rbac.ActionWrite) {
			s.forbid(w, r, session, rbac.ActionWrite)
			return
		}
		next(w, r, ps)
	}
}

func (s *HTTPServer) fail(w http.ResponseWriter, err error) {
	status, code, message, details := mapError(err)
	if status >= http.StatusInternalServerError {
		log.WithError(err).Error("request failed")
	}
	writeError(w, status, code, message, details)
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = util.NewID("req")
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		writer.Header().Set("X-Request-ID", requestID)
		writer.Header().Set("Cache-Control", "no-store")

		next.ServeHTTP(writer, r)

		log.WithFields(log.Fields{
			"request_id":  requestID,
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      writer.status,
			"duration_ms": time.Since(started).Milliseconds(),
		}).Info("request")
	})
}

type requestIDKey struct{}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Hijack lets the stream endpoint upgrade through the recorder.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return hijacker.Hijack()
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func pathIndex(ps httprouter.Params, name string) (int, error) {
	value, err := strconv.Atoi(ps.ByName(name))
	if err != nil || value < 0 {
		return 0, domainError(http.StatusBadRequest, "VALIDATION_ERROR", name+" must be a non-negative integer", nil)
	}
	return value, nil
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	switch {
	case errors.Is(err, content.ErrUnknownSection):
		return http.StatusNotFound, "UNKNOWN_SECTION", "Unknown section", map[string]any{"sections": content.Sections}
	case errors.Is(err, content.ErrIndexOutOfRange):
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	case errors.Is(err, content.ErrListSection):
		return http.StatusUnprocessableEntity, "LIST_SECTION", "List sections can only be replaced", nil
	case errors.Is(err, content.ErrInvalidPatch), errors.Is(err, content.ErrPatchType):
		return http.StatusUnprocessableEntity, "INVALID_PATCH", err.Error(), nil
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrExpiredToken):
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
