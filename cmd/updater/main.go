// updater runs one ingestion pass over every favorite and exits. Useful from
// cron when the API server runs without MANGASHELF_UPDATE_INTERVAL.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"mangashelf/internal/bookstore"
	"mangashelf/internal/favorites"
	"mangashelf/internal/ingest"
	"mangashelf/internal/volumes"
	"mangashelf/pkg/database"
	"mangashelf/pkg/logging"
	"mangashelf/pkg/utils"
)

func main() {
	jsonOut := flag.Bool("json", false, "print the run as JSON on stdout")
	flag.Parse()

	utils.LoadDotEnv()
	srvCfg := utils.LoadServerConfig()
	logging.Init(logging.Config{Level: srvCfg.LogLevel, Format: "console", Output: os.Stderr})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db := database.MustOpen(database.DefaultConfig())
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		logging.Fatal().Err(err).Msg("db migrate failed")
	}

	bsCfg := utils.LoadBookstoreConfig()
	catalog := bookstore.NewClient(bookstore.Config{AppID: bsCfg.AppID, BaseURL: bsCfg.BaseURL})

	svc := ingest.NewService(catalog, favorites.NewRepo(db), volumes.NewRepo(db), nil)
	run, err := svc.Run(ctx)
	if err != nil && run == nil {
		logging.Fatal().Err(err).Msg("update failed")
	}

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(run)
	} else {
		for _, res := range run.Results {
			ev := logging.Info()
			if !res.Success {
				ev = logging.Warn().Str("error", res.Error)
			}
			ev.Str("series", res.SeriesName).Int("new_volumes", len(res.NewVolumes)).Msg("series")
		}
	}

	if err != nil {
		logging.Fatal().Err(err).Msg("update interrupted")
	}
	logging.Info().Str("run_id", run.ID).Int("new_volumes", run.NewVolumes()).Int("failures", run.Failures()).Msg("update finished")
}
