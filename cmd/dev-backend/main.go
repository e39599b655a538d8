package main

import (
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"spadetable/internal/config"
	"spadetable/internal/devserver"
	"spadetable/internal/logging"
)

func main() {
	logCfg, err := config.LoadLog()
	if err != nil {
		panic(err)
	}
	logging.Init(logCfg)

	cfg, err := config.LoadDevBackend()
	if err != nil {
		log.Fatal().Err(err).Msg("load dev backend config failed")
	}

	srv := devserver.New(cfg)
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	log.Info().
		Str("addr", cfg.HTTPAddr).
		Int64("table", cfg.TableID).
		Dur("stage_interval", cfg.StageInterval).
		Msg("dev backend listening")
	log.Fatal().Err(server.ListenAndServe()).Msg("server stopped")
}
