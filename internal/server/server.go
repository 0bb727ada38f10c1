package server

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/linkboard/linkboard/internal/auth"
	"github.com/linkboard/linkboard/internal/config"
	"github.com/linkboard/linkboard/internal/graphql"
)

type Server struct {
	cfg      *config.Config
	resolver *graphql.Resolver
	executor *graphql.Executor
	tokens   *auth.TokenManager
	logger   *zap.SugaredLogger
	handler  http.Handler
}

func New(cfg *config.Config, resolver *graphql.Resolver, tokens *auth.TokenManager, logger *zap.SugaredLogger) *Server {
	s := &Server{
		cfg:      cfg,
		resolver: resolver,
		executor: graphql.NewExecutor(resolver, logger),
		tokens:   tokens,
		logger:   logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/query", s.queryHandler)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	s.handler = requestIDMiddleware(logMiddleware(logger, recoverMiddleware(logger, authMiddleware(tokens, mux))))
	return s
}

func (s *Server) Run() error {
	return http.ListenAndServe(":"+s.cfg.Server.Port, s.handler)
}

// queryHandler принимает операцию API. Набор загрузчиков создаётся
// заново на каждый запрос: кэш загрузчика живёт ровно один запрос и
// между запросами не протекает.
func (s *Server) queryHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req graphql.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	viewerID, hasViewer := graphql.ViewerFrom(ctx)
	ctx = graphql.WithLoaders(ctx, graphql.NewLoaders(s.resolver.Storage, viewerID, hasViewer))

	resp := s.executor.Execute(ctx, req)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Errorw("не удалось записать ответ", "error", err)
	}
}
