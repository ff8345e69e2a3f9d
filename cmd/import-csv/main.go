package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"os"
	"time"

	"mangashelf/internal/backup"
	"mangashelf/internal/favorites"
	"mangashelf/internal/volumes"
	"mangashelf/pkg/database"
	"mangashelf/pkg/logging"
	"mangashelf/pkg/models"
)

func main() {
	var (
		favIn = flag.String("favorites", "data/favorites.csv", "input CSV path for favorites")
		volIn = flag.String("volumes", "data/volumes.csv", "input CSV path for volumes (skipped when missing)")
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

	favs, err := readFavorites(*favIn)
	if err != nil {
		logging.Fatal().Err(err).Str("path", *favIn).Msg("read favorites failed")
	}
	vols, err := readVolumes(*volIn)
	if err != nil {
		logging.Fatal().Err(err).Str("path", *volIn).Msg("read volumes failed")
	}

	rep, err := backup.Restore(ctx, favs, vols, favorites.NewRepo(db), volumes.NewRepo(db))
	if err != nil {
		logging.Fatal().Err(err).Msg("restore failed")
	}

	logging.Info().
		Int("favorites_added", rep.FavoritesAdded).
		Int("favorites_existed", rep.FavoritesExisted).
		Int("volumes_added", rep.VolumesAdded).
		Int("volumes_existed", rep.VolumesExisted).
		Int("volumes_orphaned", rep.VolumesOrphaned).
		Msg("import finished")
}

func readFavorites(path string) ([]models.Favorite, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return backup.ReadFavorites(f)
}

func readVolumes(path string) ([]backup.VolumeRow, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		logging.Warn().Str("path", path).Msg("no volumes file, importing favorites only")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return backup.ReadVolumes(f)
}
