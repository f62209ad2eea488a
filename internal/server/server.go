// Package server exposes the meal log over HTTP.
package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/edanos/mealscan/internal/meal"
	"github.com/edanos/mealscan/internal/pipeline"
	"github.com/edanos/mealscan/internal/progress"
	"github.com/edanos/mealscan/internal/store"
)

// Analyzer is the subset of the analysis pipeline the server needs.
type Analyzer interface {
	AnalyzeImage(ctx context.Context, imageData []byte, loggedAt time.Time) (*meal.Meal, error)
	AnalyzeDescription(ctx context.Context, description string, loggedAt time.Time) (*meal.Meal, error)
	Lookup(ctx context.Context, query string, loggedAt time.Time) (*meal.Meal, error)
	Recalculate(ctx context.Context, mealID, ingredientID string, amount float64) (*meal.Meal, error)
}

// Reporter is the subset of the progress reporter the server needs.
type Reporter interface {
	Snapshot(ctx context.Context, now time.Time) (*progress.Snapshot, error)
	Evaluate(ctx context.Context, now time.Time) (string, error)
}

// Server holds the HTTP handler and its dependencies.
type Server struct {
	analyzer Analyzer
	reporter Reporter
	store    store.Store
	now      func() time.Time
}

// New builds a Server. nowFunc defaults to time.Now.
func New(analyzer Analyzer, reporter Reporter, st store.Store) *Server {
	return &Server{analyzer: analyzer, reporter: reporter, store: st, now: time.Now}
}

// Router assembles the chi route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Route("/meals", func(r chi.Router) {
		r.Post("/analyze", s.handleAnalyze)
		r.Post("/lookup", s.handleLookup)
		r.Get("/", s.handleListMeals)
		r.Get("/{mealID}", s.handleGetMeal)
		r.Delete("/{mealID}", s.handleDeleteMeal)
		r.Patch("/{mealID}/ingredients/{ingredientID}", s.handleAdjustIngredient)
	})
	r.Route("/progress", func(r chi.Router) {
		r.Get("/", s.handleProgress)
		r.Post("/evaluate", s.handleEvaluate)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleAnalyze accepts either a free-text description or a base64 image.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Description string `json:"description"`
		ImageBase64 string `json:"image_base64"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var (
		m   *meal.Meal
		err error
	)
	switch {
	case req.ImageBase64 != "":
		var data []byte
		data, err = base64.StdEncoding.DecodeString(req.ImageBase64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "image_base64 is not valid base64")
			return
		}
		m, err = s.analyzer.AnalyzeImage(r.Context(), data, s.now())
	case req.Description != "":
		m, err = s.analyzer.AnalyzeDescription(r.Context(), req.Description, s.now())
	default:
		writeError(w, http.StatusBadRequest, "description or image_base64 is required")
		return
	}

	if errors.Is(err, pipeline.ErrRejected) {
		writeRejection(w, err)
		return
	}
	if err != nil {
		zap.L().Error("server: analyze failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "analysis failed")
		return
	}
	writeJSON(w, http.StatusCreated, mealPayload(m))
}

// writeRejection renders a 422 for a no-food rejection, including the
// model's classification when the error carries the analysis result.
func writeRejection(w http.ResponseWriter, err error) {
	body := map[string]any{"error": "no food detected in input"}
	var rej *pipeline.RejectionError
	if errors.As(err, &rej) {
		body["classification"] = rej.Result.Classification
	}
	writeJSON(w, http.StatusUnprocessableEntity, body)
}

func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query string `json:"query"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	m, err := s.analyzer.Lookup(r.Context(), req.Query, s.now())
	if errors.Is(err, pipeline.ErrRejected) {
		writeRejection(w, err)
		return
	}
	if err != nil {
		zap.L().Error("server: lookup failed", zap.String("query", req.Query), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	writeJSON(w, http.StatusCreated, mealPayload(m))
}

func (s *Server) handleListMeals(w http.ResponseWriter, r *http.Request) {
	filter := store.MealFilter{}
	if from := r.URL.Query().Get("from"); from != "" {
		t, err := time.Parse("2006-01-02", from)
		if err != nil {
			writeError(w, http.StatusBadRequest, "from must be YYYY-MM-DD")
			return
		}
		filter.From = t
	}
	if to := r.URL.Query().Get("to"); to != "" {
		t, err := time.Parse("2006-01-02", to)
		if err != nil {
			writeError(w, http.StatusBadRequest, "to must be YYYY-MM-DD")
			return
		}
		filter.To = t
	}

	meals, err := s.store.ListMeals(r.Context(), filter)
	if err != nil {
		zap.L().Error("server: list meals failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list failed")
		return
	}

	payloads := make([]map[string]any, len(meals))
	for i, m := range meals {
		payloads[i] = mealPayload(m)
	}
	writeJSON(w, http.StatusOK, map[string]any{"meals": payloads})
}

func (s *Server) handleGetMeal(w http.ResponseWriter, r *http.Request) {
	m, err := s.store.GetMeal(r.Context(), chi.URLParam(r, "mealID"))
	if err != nil {
		writeError(w, http.StatusNotFound, "meal not found")
		return
	}
	writeJSON(w, http.StatusOK, mealPayload(m))
}

func (s *Server) handleDeleteMeal(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteMeal(r.Context(), chi.URLParam(r, "mealID")); err != nil {
		writeError(w, http.StatusNotFound, "meal not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAdjustIngredient(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount *float64 `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Amount == nil {
		writeError(w, http.StatusBadRequest, "amount is required")
		return
	}

	m, err := s.analyzer.Recalculate(r.Context(),
		chi.URLParam(r, "mealID"), chi.URLParam(r, "ingredientID"), *req.Amount)
	if err != nil {
		writeError(w, http.StatusNotFound, "meal or ingredient not found")
		return
	}
	writeJSON(w, http.StatusOK, mealPayload(m))
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	snap, err := s.reporter.Snapshot(r.Context(), s.now())
	if err != nil {
		zap.L().Error("server: progress snapshot failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "snapshot failed")
		return
	}
	if snap == nil {
		writeJSON(w, http.StatusOK, map[string]any{"started": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"started":     true,
		"start_date":  progress.DayKey(snap.StartDate),
		"day_flags":   snap.DayFlags,
		"active_days": snap.ActiveDays,
		"total_days":  snap.TotalDays,
		"eligible":    snap.Eligible,
		"evaluated":   snap.Evaluated,
	})
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	text, err := s.reporter.Evaluate(r.Context(), s.now())
	switch {
	case errors.Is(err, pipeline.ErrNotEligible):
		writeError(w, http.StatusConflict, "cycle not yet eligible for evaluation")
	case errors.Is(err, pipeline.ErrAlreadyEvaluated):
		writeError(w, http.StatusConflict, "cycle already evaluated")
	case err != nil:
		zap.L().Error("server: evaluate failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "evaluation failed")
	default:
		writeJSON(w, http.StatusOK, map[string]string{"evaluation": text})
	}
}

// mealPayload renders a meal with its recomputed totals. Stored totals are
// never trusted for display.
func mealPayload(m *meal.Meal) map[string]any {
	return map[string]any{
		"id":             m.ID,
		"name":           m.Name,
		"logged_at":      m.LoggedAt,
		"image_url":      m.ImageURL,
		"classification": m.Classification,
		"confidence":     m.Confidence,
		"processed":      m.Processed,
		"ingredients":    m.Ingredients,
		"totals":         m.Totals(),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("server: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
