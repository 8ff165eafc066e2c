package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/roach88/appframe/internal/apiparam"
	"github.com/roach88/appframe/internal/revisionable"
)

// UserHeader names the request header carrying the acting user. It is
// stored in the request context for current-user transactions.
const UserHeader = "X-Appframe-User"

// ErrUnknownMethod is returned by Call for a method that is not registered.
var ErrUnknownMethod = errors.New("unknown method")

type entry struct {
	method   Method
	resolver *apiparam.Resolver
}

// Server dispatches API methods. Register methods before serving;
// Register is safe to call concurrently with requests.
type Server struct {
	mu      sync.RWMutex
	methods map[string]entry

	logger  *zap.Logger
	metrics *Metrics
}

// NewServer creates a server with no methods. A nil logger disables
// logging.
func NewServer(logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		methods: make(map[string]entry),
		logger:  logger.Named("api"),
		metrics: NewMetrics(),
	}
}

// Metrics returns the server's collectors.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Register adds a method. The method's definition is checked here, so a
// broken definition fails at startup instead of on the first request.
func (s *Server) Register(m Method) error {
	name := m.Name()
	if name == "" {
		return fmt.Errorf("register method: name is required")
	}
	resolver, err := apiparam.NewResolver(m.Definition())
	if err != nil {
		return fmt.Errorf("register method %s: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.methods[name]; exists {
		return fmt.Errorf("register method %s: already registered", name)
	}
	s.methods[name] = entry{method: m, resolver: resolver}
	return nil
}

// MethodNames returns the registered method names, sorted.
func (s *Server) MethodNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.methods))
	for name := range s.methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Server) lookup(name string) (entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.methods[name]
	return e, ok
}

// Handler returns the HTTP handler serving the API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/api", s.handleIndex)
	r.Get("/api/{method}", s.handleMethod)
	r.Post("/api/{method}", s.handleMethod)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	return r
}

func (s *Server) handleMethod(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	name := chi.URLParam(r, "method")

	e, ok := s.lookup(name)
	if !ok {
		s.finish(w, r, unknownMethodLabel, start, http.StatusNotFound,
			failure(CodeUnknownMethod, fmt.Sprintf("unknown method %q", name), nil))
		return
	}

	src, err := apiparam.FromRequest(r)
	if err != nil {
		s.finish(w, r, name, start, http.StatusBadRequest, failure(CodeMalformedInput, err.Error(), nil))
		return
	}

	ctx := r.Context()
	if user := r.Header.Get(UserHeader); user != "" {
		ctx = revisionable.WithUser(ctx, user)
	}

	data, err := s.call(ctx, e, src)
	if err != nil {
		status, resp := Classify(err)
		if status == http.StatusInternalServerError {
			s.logger.Error("method failed",
				zap.String("method", name),
				zap.String("request_id", middleware.GetReqID(ctx)),
				zap.Error(err))
		}
		s.finish(w, r, name, start, status, resp)
		return
	}
	s.finish(w, r, name, start, http.StatusOK, success(data))
}

// Call resolves src against the named method's definition and processes
// it, without going through HTTP.
func (s *Server) Call(ctx context.Context, name string, src apiparam.Source) (any, error) {
	e, ok := s.lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownMethod, name)
	}
	return s.call(ctx, e, src)
}

func (s *Server) call(ctx context.Context, e entry, src apiparam.Source) (any, error) {
	params, err := e.resolver.Resolve(ctx, src)
	if err != nil {
		return nil, err
	}
	return e.method.Process(ctx, params)
}

func (s *Server) finish(w http.ResponseWriter, r *http.Request, method string, start time.Time, status int, resp Response) {
	elapsed := time.Since(start)
	s.metrics.observe(method, resp.State, elapsed)
	s.logger.Debug("api call",
		zap.String("method", method),
		zap.String("state", resp.State),
		zap.String("code", resp.Code),
		zap.Int("status", status),
		zap.Duration("elapsed", elapsed),
		zap.String("request_id", middleware.GetReqID(r.Context())))
	writeJSON(w, status, resp)
}

// MethodInfo describes a method in the index.
type MethodInfo struct {
	Name   string      `json:"name"`
	Params []ParamInfo `json:"params"`
	Rules  []string    `json:"rules,omitempty"`
}

// ParamInfo describes a param in the index.
type ParamInfo struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Required    bool     `json:"required,omitempty"`
	Default     any      `json:"default,omitempty"`
	Values      []string `json:"values,omitempty"`
	Description string   `json:"description,omitempty"`
}

// Describe returns the index of registered methods, sorted by name.
func (s *Server) Describe() []MethodInfo {
	names := s.MethodNames()
	out := make([]MethodInfo, 0, len(names))
	for _, name := range names {
		e, ok := s.lookup(name)
		if !ok {
			continue
		}
		def := e.resolver.Definition()
		info := MethodInfo{Name: name, Params: make([]ParamInfo, 0, len(def.Params))}
		for _, p := range def.Params {
			info.Params = append(info.Params, ParamInfo{
				Name:        p.Name,
				Type:        string(p.Type),
				Required:    p.Required,
				Default:     p.Default,
				Values:      p.Values,
				Description: p.Description,
			})
		}
		for _, rule := range def.Rules {
			info.Rules = append(info.Rules, rule.Name())
		}
		out = append(out, info)
	}
	return out
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, success(s.Describe()))
}
