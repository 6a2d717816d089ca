// Package stubserver implements an in-memory stand-in for the shop GraphQL API.
//
// It understands the subset of the schema the smoke scenarios use and rejects
// requests whose bearer token was not minted with its secret, the same way
// the real API's auth middleware does. Catalogue mutations require the admin role.
package stubserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/lodthe/graphql-smoketest/internal/authtoken"
	"github.com/lodthe/graphql-smoketest/internal/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
)

const DefaultTimeout = 30 * time.Second

type Config struct {
	Timeout time.Duration

	// SeedProducts is the number of products available right after start.
	SeedProducts int
}

type Server struct {
	logger zerolog.Logger
	config Config
	issuer *authtoken.Issuer

	mu          sync.RWMutex
	products    map[string]*Product
	productList []*Product
	skus        map[string]struct{}
	users       map[string]*User
	lastUserID  uint
}

func New(logger zerolog.Logger, config Config, issuer *authtoken.Issuer) *Server {
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}

	s := &Server{
		logger:   logger.With().Str("component", "stubserver").Logger(),
		config:   config,
		issuer:   issuer,
		products: make(map[string]*Product),
		skus:     make(map[string]struct{}),
		users:    make(map[string]*User),
	}

	for i := 0; i < config.SeedProducts; i++ {
		s.addProduct(&Product{
			ID:             uuid.NewString(),
			Name:           fmt.Sprintf("Classic Tee #%d", i+1),
			Description:    "Seeded product",
			DesignImageURL: "https://example.com/classic.jpg",
			BasePrice:      14.99 + float64(i),
			IsActive:       true,
		})
	}

	return s
}

func (s *Server) addProduct(p *Product) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.products[p.ID] = p
	s.productList = append(s.productList, p)
}

// Handler returns the HTTP handler serving POST /query.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(metricsMiddleware)

	r.Use(middleware.RequestID)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Use(middleware.Timeout(s.config.Timeout))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Post("/query", s.handleQuery)

	return r
}

type graphQLRequest struct {
	Query         string                 `json:"query"`
	OperationName string                 `json:"operationName"`
	Variables     map[string]interface{} `json:"variables"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var claims *authtoken.Claims
	if header := r.Header.Get("Authorization"); header != "" {
		var err error
		claims, err = s.issuer.Validate(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			s.logger.Debug().Err(err).Msg("request with an invalid token")
			writeRejection(w, "Unauthorized (invalid token)", http.StatusUnauthorized)

			return
		}
	}

	var req graphQLRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		writeErrors(w, http.StatusBadRequest, gqlError{Message: "invalid request body: " + err.Error()})
		return
	}

	doc, err := parser.ParseQuery(&ast.Source{Input: req.Query})
	if err != nil {
		writeErrors(w, http.StatusUnprocessableEntity, gqlError{Message: err.Error()})
		return
	}

	op := doc.Operations.ForName(req.OperationName)
	if op == nil {
		writeErrors(w, http.StatusUnprocessableEntity, gqlError{Message: "operation not found"})
		return
	}

	resolvers := s.resolvers()[op.Operation]

	data := make(map[string]interface{}, len(op.SelectionSet))
	var errs []gqlError
	for _, sel := range op.SelectionSet {
		field, ok := sel.(*ast.Field)
		if !ok {
			errs = append(errs, gqlError{Message: "fragments are not supported on the root type"})
			continue
		}

		resolve, found := resolvers[field.Name]
		if !found {
			data[field.Alias] = nil
			errs = append(errs, gqlError{
				Message: fmt.Sprintf("Cannot query field %q on type %q.", field.Name, rootTypeName(op.Operation)),
				Path:    []interface{}{field.Alias},
			})

			continue
		}

		value, err := resolve(r.Context(), resolveParams{field: field, vars: req.Variables, claims: claims})
		if err != nil {
			data[field.Alias] = nil
			errs = append(errs, gqlError{Message: err.Error(), Path: []interface{}{field.Alias}})

			continue
		}

		data[field.Alias] = project(value, field.SelectionSet)
	}

	writeResult(w, data, errs)
}

func rootTypeName(op ast.Operation) string {
	switch op {
	case ast.Mutation:
		return "Mutation"
	case ast.Subscription:
		return "Subscription"
	default:
		return "Query"
	}
}

// project keeps only the fields requested by the selection set.
func project(value interface{}, set ast.SelectionSet) interface{} {
	if len(set) == 0 || value == nil {
		return value
	}

	switch v := value.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(set))
		for _, sel := range set {
			field, ok := sel.(*ast.Field)
			if !ok {
				continue
			}

			out[field.Alias] = project(v[field.Name], field.SelectionSet)
		}

		return out

	case []interface{}:
		out := make([]interface{}, 0, len(v))
		for _, item := range v {
			out = append(out, project(item, set))
		}

		return out

	default:
		return value
	}
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Debug().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request handled")
	})
}

func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		routePattern := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && len(rctx.RoutePatterns) > 0 {
			routePattern = strings.Join(rctx.RoutePatterns, "")
		}

		status := fmt.Sprintf("%d %s", ww.Status(), http.StatusText(ww.Status()))
		metrics.StubAPI.NewRequest(r.Method, routePattern, status, time.Since(start))
	})
}

type gqlError struct {
	Message string        `json:"message"`
	Path    []interface{} `json:"path,omitempty"`
}

type gqlResponse struct {
	Data   map[string]interface{} `json:"data"`
	Errors []gqlError             `json:"errors,omitempty"`
}

func writeResult(w http.ResponseWriter, data map[string]interface{}, errs []gqlError) {
	writeResponse(w, http.StatusOK, &gqlResponse{
		Data:   data,
		Errors: errs,
	})
}

func writeErrors(w http.ResponseWriter, status int, errs ...gqlError) {
	writeResponse(w, status, &gqlResponse{
		Errors: errs,
	})
}

func writeRejection(w http.ResponseWriter, msg string, status int) {
	writeResponse(w, status, map[string]string{"error": msg})
}

func writeResponse(w http.ResponseWriter, status int, resp interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(resp)
	if err != nil {
		zlog.Error().Err(err).Interface("response", resp).Msg("response encoding failed")
	}
}
