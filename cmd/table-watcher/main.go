// table-watcher attaches to one table and logs every accepted view state.
// It is the reference consumer of the sync stack: REST login, realtime
// channel with long-poll fallback, and the 2s polling safety net.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"spadetable/internal/api"
	"spadetable/internal/auth"
	"spadetable/internal/channel"
	"spadetable/internal/config"
	"spadetable/internal/logging"
	"spadetable/internal/poller"
	"spadetable/internal/session"
	"spadetable/internal/transport"
)

func main() {
	logCfg, err := config.LoadLog()
	if err != nil {
		panic(err)
	}
	logging.Init(logCfg)

	clientCfg, err := config.LoadClient()
	if err != nil {
		log.Fatal().Err(err).Msg("load client config failed")
	}
	watcherCfg, err := config.LoadWatcher()
	if err != nil {
		log.Fatal().Err(err).Msg("load watcher config failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cred := auth.NewCredential(watcherCfg.Token)
	client := api.NewClient(clientCfg.APIBaseURL, cred, clientCfg.RequestTimeout)

	if !cred.Present() {
		if watcherCfg.Username == "" || watcherCfg.Password == "" {
			log.Fatal().Msg("either API_TOKEN or USERNAME/PASSWORD is required")
		}
		if err := client.Login(ctx, watcherCfg.Username, watcherCfg.Password); err != nil {
			log.Fatal().Err(err).Msg("login failed")
		}
		log.Info().Str("username", watcherCfg.Username).Msg("logged in")
	}

	tableID, err := resolveTable(ctx, client, watcherCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("resolve table failed")
	}

	me, err := client.CurrentPlayer(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("fetch current player failed")
	}

	adapter := transport.NewAdapter(
		clientCfg.WSBaseURL, cred, clientCfg.ConnectTimeout,
		transport.NewWebSocketStrategy(),
		transport.NewLongPollStrategy(),
	)
	if err := adapter.Connect(ctx); err != nil {
		log.Warn().Err(err).Msg("realtime channel unavailable, relying on polling")
	}
	defer adapter.Disconnect()

	tbl := session.NewTable(adapter, channel.New(adapter), poller.New(client), session.Options{
		TableID:      tableID,
		MyPlayerID:   me.PlayerID,
		PollInterval: clientCfg.PollInterval,
		OnAuthRequired: func() {
			log.Error().Msg("session credentials rejected, shutting down")
			stop()
		},
	})
	if err := tbl.Join(ctx); err != nil {
		log.Fatal().Err(err).Msg("join session failed")
	}
	defer tbl.Close()

	log.Info().Int64("table", tableID).Int64("player", me.PlayerID).Msg("watching table")
	watch(ctx, tbl)
}

// resolveTable prefers an explicit TABLE_ID, joining if necessary; without
// one it requires the player to already be seated somewhere.
func resolveTable(ctx context.Context, client *api.Client, cfg config.WatcherConfig) (int64, error) {
	current, err := client.GetCurrentTable(ctx)
	if err != nil {
		return 0, err
	}
	if cfg.TableID == 0 {
		if !current.IsAtTable {
			log.Fatal().Msg("not seated anywhere and no TABLE_ID given")
		}
		return current.TableID, nil
	}
	if current.IsAtTable && current.TableID == cfg.TableID {
		return cfg.TableID, nil
	}
	if err := client.JoinTable(ctx, cfg.TableID, cfg.BuyIn); err != nil {
		return 0, err
	}
	log.Info().Int64("table", cfg.TableID).Int("buy_in", cfg.BuyIn).Msg("joined table")
	return cfg.TableID, nil
}

func watch(ctx context.Context, tbl *session.Table) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	lastStage := ""
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("watcher stopping")
			return
		case <-ticker.C:
			view := tbl.View()
			if view.CurrentStage == lastStage && tbl.Phase() != session.PhaseInHand {
				continue
			}
			lastStage = view.CurrentStage
			evt := log.Info().
				Str("phase", tbl.Phase().String()).
				Str("health", tbl.Health().String()).
				Str("stage", view.CurrentStage).
				Int("pot", view.Pot).
				Int("players", len(view.Players))
			if tbl.IsMyTurn() {
				evt = evt.Int("to_call", tbl.ToCallAmount()).Bool("can_check", tbl.CanCheck())
			}
			evt.Msg("table state")
		}
	}
}
