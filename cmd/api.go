package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/reputexa/reputexa/internal/classify"
	"github.com/reputexa/reputexa/internal/metrics"
	"github.com/reputexa/reputexa/internal/model"
	"github.com/reputexa/reputexa/internal/monitoring"
	"github.com/reputexa/reputexa/internal/resilience"
	"github.com/reputexa/reputexa/internal/review"
	"github.com/reputexa/reputexa/internal/store"
)

// reviewService is the part of review.Pipeline the API calls.
type reviewService interface {
	Ingest(ctx context.Context, req review.IngestRequest) (*review.Result, error)
	ClassifyExisting(ctx context.Context, id string) (*review.Result, error)
}

type apiDeps struct {
	Store store.Store
	// Reviews is nil when the classifier is not configured; ReviewsErr then
	// explains why.
	Reviews     reviewService
	ReviewsErr  error
	Collector   *monitoring.Collector
	Registry    *prometheus.Registry
	// Breakers is the registry shared with scheduled sweeps; /health
	// reports its states.
	Breakers    *resilience.Breakers
	CORSOrigins []string
}

// maxReviewBody caps the review ingest request body.
const maxReviewBody = 64 << 10

func buildRouter(d apiDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(requestLogger)

	origins := d.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", d.health)
	if d.Registry != nil {
		r.Handle("/metrics", metrics.Handler(d.Registry))
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/reviews/process", d.processReview)
		r.Post("/reviews/{id}/generate", d.generateReply)
		r.Get("/stats", d.stats)
		r.Get("/prospects", d.listProspects)
		r.Get("/prospects/{placeID}", d.getProspect)
	})
	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", chimw.GetReqID(r.Context())),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

type healthResponse struct {
	Status   string                   `json:"status"`
	Breakers map[string]breakerHealth `json:"breakers,omitempty"`
}

type breakerHealth struct {
	State    string `json:"state"`
	Failures int    `json:"consecutiveFailures"`
}

func (d apiDeps) health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok"}
	if d.Breakers != nil {
		states := d.Breakers.States()
		if len(states) > 0 {
			resp.Breakers = make(map[string]breakerHealth, len(states))
			for name := range states {
				failures, state := d.Breakers.Get(name).Counters()
				resp.Breakers[name] = breakerHealth{State: state.String(), Failures: failures}
			}
		}
	}
	if d.Store == nil {
		writeJSON(w, http.StatusOK, resp)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := d.Store.Ping(ctx); err != nil {
		zap.L().Warn("health: store ping failed", zap.Error(err))
		resp.Status = "unavailable"
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (d apiDeps) processReview(w http.ResponseWriter, r *http.Request) {
	if d.Reviews == nil {
		writeReviewError(w, "reviews/process", d.ReviewsErr)
		return
	}
	req, err := review.DecodeIngestRequest(http.MaxBytesReader(w, r.Body, maxReviewBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeReviewError(w, "reviews/process", err)
		return
	}
	res, err := d.Reviews.Ingest(r.Context(), req)
	if err != nil {
		writeReviewError(w, "reviews/process", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (d apiDeps) generateReply(w http.ResponseWriter, r *http.Request) {
	if d.Reviews == nil {
		writeReviewError(w, "reviews/generate", d.ReviewsErr)
		return
	}
	res, err := d.Reviews.ClassifyExisting(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeReviewError(w, "reviews/generate", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// reviewErrorStatus maps pipeline errors onto HTTP status codes.
func reviewErrorStatus(err error) int {
	var (
		ve *review.ValidationError
		me *classify.MalformedResponseError
	)
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.Is(err, review.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, review.ErrAlreadyResolved):
		return http.StatusBadRequest
	case errors.As(err, &me):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeReviewError(w http.ResponseWriter, route string, err error) {
	if err == nil {
		err = errors.New("reviews unavailable")
	}
	status := reviewErrorStatus(err)
	if status >= http.StatusInternalServerError {
		zap.L().Error("api: "+route+" failed", zap.Error(err))
	}
	writeError(w, status, err.Error())
}

func (d apiDeps) stats(w http.ResponseWriter, r *http.Request) {
	snap, err := d.Collector.Collect(r.Context())
	if err != nil {
		zap.L().Error("api: stats failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "stats unavailable")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (d apiDeps) listProspects(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.ProspectFilter{
		City:   q.Get("city"),
		Status: model.ProspectStatus(q.Get("status")),
	}
	for name, dst := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid "+name)
			return
		}
		*dst = n
	}

	list, err := d.Store.ListProspects(r.Context(), filter)
	if err != nil {
		zap.L().Error("api: list prospects failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "prospects unavailable")
		return
	}
	if list == nil {
		list = []model.Prospect{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (d apiDeps) getProspect(w http.ResponseWriter, r *http.Request) {
	p, err := d.Store.GetProspect(r.Context(), chi.URLParam(r, "placeID"))
	if err != nil {
		zap.L().Error("api: get prospect failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "prospect unavailable")
		return
	}
	if p == nil {
		writeError(w, http.StatusNotFound, "prospect not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}
