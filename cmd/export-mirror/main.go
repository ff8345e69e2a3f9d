// export-mirror snapshots stored volumes into a catalog mirror file that
// mirror-server can answer searches from.
package main

import (
	"context"
	"flag"
	"os"
	"path/filepath"
	"time"

	"mangashelf/internal/bookstore"
	"mangashelf/internal/favorites"
	"mangashelf/internal/volumes"
	"mangashelf/pkg/database"
	"mangashelf/pkg/logging"
)

func main() {
	outPath := flag.String("out", "data/mirror.json", "output JSON path")
	flag.Parse()

	logging.Init(logging.Config{Level: "info", Format: "console", Output: os.Stderr})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
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
	authors := make(map[int64]string, len(favs))
	for _, f := range favs {
		if f.AuthorName != nil {
			authors[f.ID] = *f.AuthorName
		}
	}

	vols, err := volumes.NewRepo(db).ListAll(ctx)
	if err != nil {
		logging.Fatal().Err(err).Msg("list volumes failed")
	}

	m := &bookstore.MirrorFile{
		GeneratedAt: time.Now().UTC(),
		Items:       make([]bookstore.SearchEntry, 0, len(vols)),
	}
	for _, v := range vols {
		m.Items = append(m.Items, bookstore.SearchEntry{Item: bookstore.ItemFromVolume(v, authors[v.FavoriteID])})
	}

	if err := os.MkdirAll(filepath.Dir(*outPath), 0o755); err != nil {
		logging.Fatal().Err(err).Msg("mkdir failed")
	}
	if err := bookstore.WriteMirror(*outPath, m); err != nil {
		logging.Fatal().Err(err).Msg("write mirror failed")
	}

	logging.Info().Int("items", len(m.Items)).Str("path", *outPath).Msg("mirror exported")
}
