// Package backup writes favorites and volumes to CSV and restores them.
// Volumes are keyed by series name so a restore into a fresh database
// re-links them to newly assigned favorite ids.
package backup

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"mangashelf/pkg/models"
)

const timeLayout = "2006-01-02 15:04:05"

var (
	FavoriteHeader = []string{"series_name", "author_name", "rating", "created_at"}
	VolumeHeader   = []string{"series_name", "title", "volume_number", "release_date", "price", "url"}
)

func WriteFavorites(w io.Writer, favs []models.Favorite) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(FavoriteHeader); err != nil {
		return err
	}
	for _, f := range favs {
		if err := cw.Write([]string{
			f.SeriesName,
			deref(f.AuthorName),
			itoa(f.Rating),
			f.CreatedAt.UTC().Format(timeLayout),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteVolumes writes vols, naming each by its favorite's series. Volumes
// whose favorite is unknown are skipped.
func WriteVolumes(w io.Writer, vols []models.Volume, seriesByID map[int64]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(VolumeHeader); err != nil {
		return err
	}
	for _, v := range vols {
		name, ok := seriesByID[v.FavoriteID]
		if !ok {
			continue
		}
		if err := cw.Write([]string{
			name,
			v.Title,
			itoa(v.VolumeNumber),
			deref(v.ReleaseDate),
			itoa(v.Price),
			deref(v.URL),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// VolumeRow is a volume read back from CSV, not yet linked to a favorite.
type VolumeRow struct {
	SeriesName string
	Volume     models.Volume
}

func ReadFavorites(r io.Reader) ([]models.Favorite, error) {
	var out []models.Favorite
	err := readRows(r, func(line int, get func(string) string) error {
		name := get("series_name")
		if name == "" {
			return nil
		}
		f := models.Favorite{SeriesName: name, AuthorName: optString(get("author_name"))}
		rating, err := optInt(get("rating"))
		if err != nil {
			return fmt.Errorf("line %d: rating: %w", line, err)
		}
		if rating != nil && (*rating < 1 || *rating > 5) {
			return fmt.Errorf("line %d: rating %d out of range", line, *rating)
		}
		f.Rating = rating
		if ts := get("created_at"); ts != "" {
			t, err := time.Parse(timeLayout, ts)
			if err != nil {
				return fmt.Errorf("line %d: created_at: %w", line, err)
			}
			f.CreatedAt = t
		}
		out = append(out, f)
		return nil
	})
	return out, err
}

func ReadVolumes(r io.Reader) ([]VolumeRow, error) {
	var out []VolumeRow
	err := readRows(r, func(line int, get func(string) string) error {
		name, title := get("series_name"), get("title")
		if name == "" || title == "" {
			return nil
		}
		v := models.Volume{Title: title, ReleaseDate: optString(get("release_date")), URL: optString(get("url"))}
		var err error
		if v.VolumeNumber, err = optInt(get("volume_number")); err != nil {
			return fmt.Errorf("line %d: volume_number: %w", line, err)
		}
		if v.Price, err = optInt(get("price")); err != nil {
			return fmt.Errorf("line %d: price: %w", line, err)
		}
		out = append(out, VolumeRow{SeriesName: name, Volume: v})
		return nil
	})
	return out, err
}

type FavoriteImporter interface {
	Import(ctx context.Context, f models.Favorite) (int64, bool, error)
}

type VolumeInserter interface {
	Insert(ctx context.Context, v models.Volume) (*models.Volume, bool, error)
}

// Report counts what a restore changed.
type Report struct {
	FavoritesAdded   int
	FavoritesExisted int
	VolumesAdded     int
	VolumesExisted   int
	VolumesOrphaned  int
}

// Restore imports favorites first, then links volumes by series name.
// Existing rows are left untouched.
func Restore(ctx context.Context, favs []models.Favorite, vols []VolumeRow, fi FavoriteImporter, vi VolumeInserter) (Report, error) {
	var rep Report
	ids := make(map[string]int64, len(favs))
	for _, f := range favs {
		id, created, err := fi.Import(ctx, f)
		if err != nil {
			return rep, err
		}
		ids[f.SeriesName] = id
		if created {
			rep.FavoritesAdded++
		} else {
			rep.FavoritesExisted++
		}
	}
	for _, row := range vols {
		id, ok := ids[row.SeriesName]
		if !ok {
			rep.VolumesOrphaned++
			continue
		}
		v := row.Volume
		v.FavoriteID = id
		_, inserted, err := vi.Insert(ctx, v)
		if err != nil {
			return rep, err
		}
		if inserted {
			rep.VolumesAdded++
		} else {
			rep.VolumesExisted++
		}
	}
	return rep, nil
}

func readRows(r io.Reader, fn func(line int, get func(string) string) error) error {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}

	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		get := func(key string) string {
			i, ok := idx[key]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}
		if err := fn(line, get); err != nil {
			return err
		}
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func itoa(n *int) string {
	if n == nil {
		return ""
	}
	return strconv.Itoa(*n)
}

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func optInt(s string) (*int, error) {
	if s == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil, err
	}
	return &n, nil
}
