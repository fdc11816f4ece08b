package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/medlit-tools/semsearch/internal/answer"
	"github.com/medlit-tools/semsearch/internal/config"
	"github.com/medlit-tools/semsearch/internal/embed"
	"github.com/medlit-tools/semsearch/internal/guard"
	"github.com/medlit-tools/semsearch/internal/logger"
	"github.com/medlit-tools/semsearch/internal/models"
	"github.com/medlit-tools/semsearch/internal/search"
	"github.com/medlit-tools/semsearch/internal/vectorstore"
)

func main() {
	_ = godotenv.Load()

	log := logger.New("api")
	cfg, err := config.LoadAPI()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	store, err := vectorstore.New(cfg.Common, log)
	if err != nil {
		log.Error("init vector store", slog.Any("err", err))
		os.Exit(1)
	}
	defer store.Close()

	embedder, err := embed.NewOllama(cfg.OllamaAddr, cfg.EmbedModel, cfg.EmbedDim)
	if err != nil {
		log.Error("init embedder", slog.Any("err", err))
		os.Exit(1)
	}

	generator, err := answer.NewGenerator(cfg.OllamaAddr, cfg.ChatModel)
	if err != nil {
		log.Error("init answer generator", slog.Any("err", err))
		os.Exit(1)
	}

	srv := &server{log: log, cfg: cfg, store: store, embedder: embedder, generator: generator}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", srv.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(guard.AllowIPs(cfg.IPAllowlist))
		r.Use(guard.RequireAPIKey(cfg.APIKey))

		r.Get("/search", srv.handleSearch)
		r.Post("/ask", srv.handleAsk)
		r.Get("/stats", srv.handleStats)
	})

	httpServer := &http.Server{
		Addr:              cfg.BindAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      2 * time.Minute,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	go func() {
		log.Info("api server starting", slog.String("addr", cfg.BindAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", slog.Any("err", err))
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", slog.Any("err", err))
	}
}

type queryEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type searchStore interface {
	Search(ctx context.Context, vector []float32, limit int, threshold float32) ([]vectorstore.Hit, error)
	Stats(ctx context.Context) (vectorstore.Stats, error)
	Health(ctx context.Context) error
}

type answerer interface {
	Answer(ctx context.Context, question string, hits []vectorstore.Hit) (string, error)
}

type server struct {
	log       *slog.Logger
	cfg       *config.API
	store     searchStore
	embedder  queryEmbedder
	generator answerer
}

type errorResponse struct {
	Error string `json:"error"`
}

type searchResponse struct {
	Query   string                `json:"query"`
	Total   int                   `json:"total"`
	Results []models.ArticleMatch `json:"results"`
}

type askRequest struct {
	Question string `json:"question"`
}

type askResponse struct {
	Answer       string                `json:"answer"`
	Sources      []models.ArticleMatch `json:"sources"`
	ProcessingMs int64                 `json:"processing_ms"`
}

type statsResponse struct {
	vectorstore.Stats
	EmbedModel string `json:"embed_model"`
	ChatModel  string `json:"chat_model"`
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.store.Health(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleSearch(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "query parameter q is required"})
		return
	}

	limit := clampInt(r.URL.Query().Get("limit"), s.cfg.DefaultLimit, s.cfg.MaxLimit)
	threshold := parseThreshold(r.URL.Query().Get("threshold"), s.cfg.SearchThreshold)

	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		s.log.Error("embed query", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "embedding service unavailable"})
		return
	}

	hits, err := s.store.Search(ctx, vector, limit*search.Oversample, threshold)
	if err != nil {
		s.log.Error("vector search", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	results := search.GroupByArticle(hits, limit)
	writeJSON(w, http.StatusOK, searchResponse{
		Query:   query,
		Total:   len(results),
		Results: results,
	})
}

func (s *server) handleAsk(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	question := strings.TrimSpace(req.Question)
	if question == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "question is required"})
		return
	}

	start := time.Now()

	vector, err := s.embedder.Embed(ctx, question)
	if err != nil {
		s.log.Error("embed question", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "embedding service unavailable"})
		return
	}

	hits, err := s.store.Search(ctx, vector, s.cfg.AskChunks, s.cfg.AskThreshold)
	if err != nil {
		s.log.Error("vector search", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	if len(hits) == 0 {
		writeJSON(w, http.StatusOK, askResponse{
			Answer:       "No relevant articles were found for this question.",
			Sources:      []models.ArticleMatch{},
			ProcessingMs: time.Since(start).Milliseconds(),
		})
		return
	}

	text, err := s.generator.Answer(ctx, question, hits)
	if err != nil {
		s.log.Error("generate answer", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "answer generation failed"})
		return
	}

	writeJSON(w, http.StatusOK, askResponse{
		Answer:       text,
		Sources:      search.GroupByArticle(hits, 0),
		ProcessingMs: time.Since(start).Milliseconds(),
	})
}

func (s *server) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	stats, err := s.store.Stats(ctx)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, statsResponse{
		Stats:      stats,
		EmbedModel: s.cfg.EmbedModel,
		ChatModel:  s.cfg.ChatModel,
	})
}

func parseThreshold(raw string, fallback float32) float32 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseFloat(raw, 32)
	if err != nil || value < 0 || value > 1 {
		return fallback
	}
	return float32(value)
}

func clampInt(raw string, fallback, max int) int {
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	if value <= 0 {
		return fallback
	}
	if value > max {
		return max
	}
	return value
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		// nothing better to do
	}
}
