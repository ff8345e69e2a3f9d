package main

import (
	"context"
	"flag"
	"os"
	"path/filepath"
	"time"

	"mangashelf/internal/backup"
	"mangashelf/internal/favorites"
	"mangashelf/internal/volumes"
	"mangashelf/pkg/database"
	"mangashelf/pkg/logging"
)

func main() {
	var (
		favOut = flag.String("favorites", "data/favorites.csv", "output CSV path for favorites")
		volOut = flag.String("volumes", "data/volumes.csv", "output CSV path for volumes")
	)
	flag.Parse()

	logging.Init(logging.Config{Level: "info", Format: "console", Output: os.Stderr})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db := database.MustOpen(database.DefaultConfig())
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		logging.Fatal().Err(err).Msg("db migrate failed")
	}

	favs, err := favorites.NewRepo(db).List(ctx)
	if err != nil {
		logging.Fatal().Err(err).Msg("list favorites failed")
	}
	vols, err := volumes.NewRepo(db).ListAll(ctx)
	if err != nil {
		logging.Fatal().Err(err).Msg("list volumes failed")
	}

	series := make(map[int64]string, len(favs))
	for _, f := range favs {
		series[f.ID] = f.SeriesName
	}

	if err := writeFile(*favOut, func(f *os.File) error { return backup.WriteFavorites(f, favs) }); err != nil {
		logging.Fatal().Err(err).Msg("export favorites failed")
	}
	if err := writeFile(*volOut, func(f *os.File) error { return backup.WriteVolumes(f, vols, series) }); err != nil {
		logging.Fatal().Err(err).Msg("export volumes failed")
	}

	logging.Info().Int("favorites", len(favs)).Int("volumes", len(vols)).Msg("export finished")
}

func writeFile(path string, write func(*os.File) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
