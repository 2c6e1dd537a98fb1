package main

import (
	"fmt"
	"os"

	"github.com/nurpe/jobshare/internal/auth"
	"github.com/nurpe/jobshare/internal/config"
	"github.com/nurpe/jobshare/internal/db"
	"github.com/nurpe/jobshare/internal/excel"
	httphandler "github.com/nurpe/jobshare/internal/http"
	"github.com/nurpe/jobshare/internal/http/middleware"
	"github.com/nurpe/jobshare/internal/logger"
	"github.com/nurpe/jobshare/internal/model"
	"github.com/nurpe/jobshare/internal/pdf"
	"github.com/nurpe/jobshare/internal/repository"
	"github.com/nurpe/jobshare/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Environment)

	database, err := db.New(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect database")
	}

	store := repository.NewStore(database)
	notifier := service.NewLogNotifier(log)
	chains := service.NewChainBuilder(model.ChainEncoding(cfg.JobShare.ChainEncoding), cfg.JobShare.SyncEnabled)
	matcher := service.NewMatcher(cfg.JobShare.MaxCascadeDepth)
	propagator := service.NewPropagator(store, cfg.JobShare.SyncRetryAttempts, cfg.JobShare.SyncRetryBackoff, log)

	partnershipService := service.NewPartnershipService(store, notifier, cfg.JobShare, log, nil)
	shareService := service.NewShareService(store, chains, matcher, notifier, cfg.JobShare, log, nil)
	jobService := service.NewJobService(store, shareService, propagator, notifier, log, nil)
	chainService := service.NewChainService(store, chains, excel.NewGenerator(), pdf.NewGenerator(), log, nil)

	tokenParser := auth.NewParser(cfg.Auth.AccessSecret)
	handler := httphandler.NewHandler(partnershipService, shareService, jobService, chainService, log)
	authMiddleware := middleware.Auth(tokenParser)
	router := httphandler.NewRouter(handler, authMiddleware, cfg.Environment, cfg.HTTP.CORSAllowedOrigins, log)

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	log.Info().
		Str("addr", addr).
		Str("chain_encoding", cfg.JobShare.ChainEncoding).
		Int("max_cascade_depth", cfg.JobShare.MaxCascadeDepth).
		Msg("starting jobshare service")

	if err := router.Run(addr); err != nil {
		log.Error().Err(err).Msg("server stopped")
		os.Exit(1)
	}
}
