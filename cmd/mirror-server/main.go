// mirror-server answers catalog title searches from a mirror file, so the
// API server can run against it by pointing MANGASHELF_BOOKSTORE_URL at /search.
package main

import (
	"flag"
	"os"

	"github.com/gin-gonic/gin"

	"mangashelf/internal/bookstore"
	"mangashelf/pkg/logging"
)

func main() {
	var (
		addr     = flag.String("addr", ":9000", "listen address")
		dataPath = flag.String("data", "data/mirror.json", "mirror file")
	)
	flag.Parse()

	logging.Init(logging.Config{Level: "info", Format: "console", Output: os.Stderr})
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery(), logging.RequestID(), logging.GinLogger())
	r.GET("/search", bookstore.MirrorHandler(*dataPath))

	logging.Info().Str("addr", *addr).Str("data", *dataPath).Msg("mirror-server listening")
	if err := r.Run(*addr); err != nil {
		logging.Fatal().Err(err).Msg("mirror-server stopped")
	}
}
