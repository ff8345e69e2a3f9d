package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"mangashelf/pkg/logging"
	"mangashelf/pkg/models"
)

const defaultBaseURL = "http://localhost:8080"

type cli struct {
	ctx       context.Context
	client    *http.Client
	baseURL   string
	tokenPath string
}

func main() {
	logging.Init(logging.Config{Level: "info", Format: "console", Output: os.Stderr})

	global := flag.NewFlagSet("mangashelf", flag.ExitOnError)
	baseURL := global.String("api", defaultBaseURL, "API base URL")
	tokenPath := global.String("token", defaultTokenPath(), "token file path")
	if err := global.Parse(os.Args[1:]); err != nil {
		die("parse flags: %v", err)
	}
	args := global.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	c := &cli{
		ctx:       context.Background(),
		client:    &http.Client{Timeout: 3 * time.Minute},
		baseURL:   *baseURL,
		tokenPath: *tokenPath,
	}
	rest := args[1:]

	switch args[0] {
	case "login":
		c.login(rest)
	case "logout":
		if err := clearToken(c.tokenPath); err != nil {
			die("logout failed: %v", err)
		}
		fmt.Println("✅ logged out")
	case "favorites":
		c.favorites(rest)
	case "volumes":
		c.volumes(rest)
	case "update":
		c.update()
	case "recommend":
		c.recommend(rest)
	case "usage":
		c.usage(rest)
	case "events":
		c.events(rest)
	default:
		printUsage()
		os.Exit(1)
	}
}

func die(format string, args ...any) {
	logging.Fatal().Msgf(format, args...)
}

func (c *cli) token() string {
	token, err := readToken(c.tokenPath)
	if err != nil {
		die("read token: %v", err)
	}
	return token
}

func (c *cli) login(args []string) {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	key := fs.String("key", os.Getenv("MANGASHELF_ADMIN_KEY"), "admin key")
	_ = fs.Parse(args)
	if *key == "" {
		die("admin key is required (-key or MANGASHELF_ADMIN_KEY)")
	}

	var resp struct {
		Token     string `json:"token"`
		ExpiresAt string `json:"expires_at"`
	}
	if err := doJSON(c.ctx, c.client, http.MethodPost, c.baseURL+"/auth/token", "", map[string]string{"key": *key}, &resp); err != nil {
		die("login failed: %v", err)
	}
	if err := saveToken(c.tokenPath, resp.Token); err != nil {
		die("save token: %v", err)
	}
	fmt.Printf("✅ logged in until %s\n", resp.ExpiresAt)
}

func (c *cli) favorites(args []string) {
	sub := "list"
	if len(args) > 0 {
		sub, args = args[0], args[1:]
	}
	switch sub {
	case "list":
		var favs []models.Favorite
		if err := doJSON(c.ctx, c.client, http.MethodGet, c.baseURL+"/favorites", "", nil, &favs); err != nil {
			die("list failed: %v", err)
		}
		for _, f := range favs {
			stars := "-"
			if f.Rating != nil {
				stars = strconv.Itoa(*f.Rating) + "★"
			}
			fmt.Printf("%5d  %-4s %s\n", f.ID, stars, f.DisplayName())
		}
	case "add":
		fs := flag.NewFlagSet("favorites add", flag.ExitOnError)
		name := fs.String("name", "", "series name")
		_ = fs.Parse(args)
		if *name == "" && fs.NArg() > 0 {
			*name = fs.Arg(0)
		}
		if *name == "" {
			die("series name is required")
		}
		var fav models.Favorite
		if err := doJSON(c.ctx, c.client, http.MethodPost, c.baseURL+"/favorites", c.token(), map[string]string{"series_name": *name}, &fav); err != nil {
			die("add failed: %v", err)
		}
		fmt.Printf("✅ added #%d %s\n", fav.ID, fav.SeriesName)
	case "rm":
		fs := flag.NewFlagSet("favorites rm", flag.ExitOnError)
		id := fs.Int64("id", 0, "favorite id")
		_ = fs.Parse(args)
		if *id <= 0 {
			die("favorite id is required")
		}
		if err := doJSON(c.ctx, c.client, http.MethodDelete, fmt.Sprintf("%s/favorites/%d", c.baseURL, *id), c.token(), nil, nil); err != nil {
			die("remove failed: %v", err)
		}
		fmt.Println("✅ removed")
	case "rate":
		fs := flag.NewFlagSet("favorites rate", flag.ExitOnError)
		id := fs.Int64("id", 0, "favorite id")
		rating := fs.Int("rating", 0, "0 clears, 1-5 sets")
		_ = fs.Parse(args)
		if *id <= 0 {
			die("favorite id is required")
		}
		payload := map[string]any{"mangaId": *id, "rating": *rating}
		if err := doJSON(c.ctx, c.client, http.MethodPut, c.baseURL+"/favorites/rating", c.token(), payload, nil); err != nil {
			die("rate failed: %v", err)
		}
		fmt.Println("✅ rated")
	default:
		die("usage: mangashelf favorites <list|add|rm|rate>")
	}
}

func (c *cli) volumes(args []string) {
	fs := flag.NewFlagSet("volumes", flag.ExitOnError)
	id := fs.Int64("id", 0, "favorite id (omit for recent releases)")
	limit := fs.Int("limit", 20, "recent releases to show")
	_ = fs.Parse(args)

	var vols []models.Volume
	if *id > 0 {
		if err := doJSON(c.ctx, c.client, http.MethodGet, fmt.Sprintf("%s/favorites/%d/volumes", c.baseURL, *id), "", nil, &vols); err != nil {
			die("volumes failed: %v", err)
		}
	} else {
		var resp struct {
			Items []models.Volume `json:"items"`
		}
		if err := doJSON(c.ctx, c.client, http.MethodGet, fmt.Sprintf("%s/volumes/recent?limit=%d", c.baseURL, *limit), "", nil, &resp); err != nil {
			die("volumes failed: %v", err)
		}
		vols = resp.Items
	}
	for _, v := range vols {
		date := "----------"
		if v.ReleaseDate != nil {
			date = *v.ReleaseDate
		}
		fmt.Printf("%s  %s\n", date, v.Title)
	}
}

func (c *cli) update() {
	var resp struct {
		RunID   string                `json:"run_id"`
		Results []models.SeriesResult `json:"results"`
	}
	if err := doJSON(c.ctx, c.client, http.MethodPost, c.baseURL+"/update", c.token(), nil, &resp); err != nil {
		die("update failed: %v", err)
	}
	for _, r := range resp.Results {
		if !r.Success {
			fmt.Printf("❌ %s: %s\n", r.SeriesName, r.Error)
			continue
		}
		fmt.Printf("✅ %s: %d new\n", r.SeriesName, len(r.NewVolumes))
		for _, v := range r.NewVolumes {
			fmt.Printf("     %s\n", v.Title)
		}
	}
	fmt.Printf("run %s\n", resp.RunID)
}

func (c *cli) recommend(args []string) {
	fs := flag.NewFlagSet("recommend", flag.ExitOnError)
	recent := fs.Bool("recent", false, "only series started this year")
	exclude := fs.String("exclude", "", "comma-separated favorites to leave out")
	genres := fs.String("genre", "", "comma-separated genre hints")
	_ = fs.Parse(args)

	endpoint, err := recommendationsURL(c.baseURL, *recent, splitList(*exclude), splitList(*genres))
	if err != nil {
		die("invalid base url: %v", err)
	}
	var resp struct {
		Recommendations []models.Candidate `json:"recommendations"`
		BasedOn         []string           `json:"basedOn"`
	}
	if err := doJSON(c.ctx, c.client, http.MethodGet, endpoint, "", nil, &resp); err != nil {
		die("recommend failed: %v", err)
	}
	for i, r := range resp.Recommendations {
		mark := "?"
		if r.Verified {
			mark = "✓"
		}
		fmt.Printf("%d. %s %s（%s） [%s]\n   %s\n", i+1, mark, r.Title, r.Author, r.Genre, r.Reason)
	}
}

func (c *cli) usage(args []string) {
	fs := flag.NewFlagSet("usage", flag.ExitOnError)
	service := fs.String("service", "recommendations", "recommendations or recent-manga")
	_ = fs.Parse(args)

	var st models.UsageStatus
	if err := doJSON(c.ctx, c.client, http.MethodGet, c.baseURL+"/usage?service="+*service, "", nil, &st); err != nil {
		die("usage failed: %v", err)
	}
	fmt.Printf("%s: today %d/%d, this month %d/%d\n", st.ServiceType, st.Daily, st.DailyLimit, st.Monthly, st.MonthlyLimit)
}

func (c *cli) events(args []string) {
	fs := flag.NewFlagSet("events", flag.ExitOnError)
	tcpAddr := fs.String("tcp", "", "read the TCP stream at addr instead of the WebSocket")
	_ = fs.Parse(args)

	var err error
	if *tcpAddr != "" {
		err = tailTCP(*tcpAddr)
	} else {
		var endpoint string
		endpoint, err = websocketURL(c.baseURL, "/ws")
		if err == nil {
			err = tailWebSocket(endpoint)
		}
	}
	if err != nil {
		die("events: %v", err)
	}
}

func tailTCP(addr string) error {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	logging.Info().Str("addr", addr).Msg("connected")
	reader := bufio.NewScanner(conn)
	for reader.Scan() {
		printEvent(reader.Bytes())
	}
	return reader.Err()
}

func tailWebSocket(wsURL string) error {
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	logging.Info().Str("url", wsURL).Msg("connected")
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		printEvent(msg)
	}
}

func printEvent(line []byte) {
	var obj map[string]any
	if err := json.Unmarshal(line, &obj); err != nil {
		fmt.Println(string(line))
		return
	}
	b, _ := json.MarshalIndent(obj, "", "  ")
	fmt.Println(string(b))
}

func printUsage() {
	fmt.Println("mangashelf [-api URL] [-token PATH] <command> [flags]")
	fmt.Println("commands:")
	fmt.Println("  login -key KEY | logout")
	fmt.Println("  favorites list|add|rm|rate")
	fmt.Println("  volumes [-id N] [-limit N]")
	fmt.Println("  update")
	fmt.Println("  recommend [-recent] [-exclude a,b] [-genre g,h]")
	fmt.Println("  usage [-service recommendations|recent-manga]")
	fmt.Println("  events [-tcp addr]")
}
