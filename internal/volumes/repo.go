package volumes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"mangashelf/pkg/models"
)

type Repo struct {
	DB *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

const volumeColumns = `id, favorite_id, title, volume_number, release_date, price, url, created_at`

func scanVolume(sc interface{ Scan(...any) error }) (models.Volume, error) {
	var (
		v       models.Volume
		number  sql.NullInt64
		date    sql.NullString
		price   sql.NullInt64
		link    sql.NullString
		created time.Time
	)
	if err := sc.Scan(&v.ID, &v.FavoriteID, &v.Title, &number, &date, &price, &link, &created); err != nil {
		return v, err
	}
	if number.Valid {
		n := int(number.Int64)
		v.VolumeNumber = &n
	}
	if date.Valid {
		s := date.String
		v.ReleaseDate = &s
	}
	if price.Valid {
		p := int(price.Int64)
		v.Price = &p
	}
	if link.Valid {
		s := link.String
		v.URL = &s
	}
	v.CreatedAt = created
	return v, nil
}

func (r *Repo) query(ctx context.Context, q string, args ...any) ([]models.Volume, error) {
	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.Volume, 0)
	for rows.Next() {
		v, err := scanVolume(rows)
		if err != nil {
			return nil, fmt.Errorf("scan volume: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// FindByTitle returns the volume with exactly this title under a favorite, or nil.
func (r *Repo) FindByTitle(ctx context.Context, favoriteID int64, title string) (*models.Volume, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT `+volumeColumns+`
		FROM volumes
		WHERE favorite_id = ? AND title = ?
	`, favoriteID, title)
	v, err := scanVolume(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find volume: %w", err)
	}
	return &v, nil
}

// Insert stores v. If a concurrent run already stored the same title it
// returns inserted=false and the existing row.
func (r *Repo) Insert(ctx context.Context, v models.Volume) (*models.Volume, bool, error) {
	res, err := r.DB.ExecContext(ctx, `
		INSERT INTO volumes (favorite_id, title, volume_number, release_date, price, url)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(favorite_id, title) DO NOTHING
	`, v.FavoriteID, v.Title, nullable(v.VolumeNumber), nullable(v.ReleaseDate), nullable(v.Price), nullable(v.URL))
	if err != nil {
		return nil, false, fmt.Errorf("insert volume: %w", err)
	}
	n, _ := res.RowsAffected()
	saved, err := r.FindByTitle(ctx, v.FavoriteID, v.Title)
	if err != nil {
		return nil, false, err
	}
	return saved, n > 0, nil
}

// BackfillNumber sets the volume number only where none is stored.
func (r *Repo) BackfillNumber(ctx context.Context, id int64, number int) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE volumes SET volume_number = ?
		WHERE id = ? AND volume_number IS NULL
	`, number, id)
	if err != nil {
		return false, fmt.Errorf("backfill volume number: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// ListByFavorite orders by volume number, then release date, both newest first.
func (r *Repo) ListByFavorite(ctx context.Context, favoriteID int64) ([]models.Volume, error) {
	out, err := r.query(ctx, `
		SELECT `+volumeColumns+`
		FROM volumes
		WHERE favorite_id = ?
		ORDER BY volume_number IS NULL, volume_number DESC, release_date IS NULL, release_date DESC, id DESC
	`, favoriteID)
	if err != nil {
		return nil, fmt.Errorf("list volumes: %w", err)
	}
	return out, nil
}

// ListRecent returns the newest releases across all favorites.
func (r *Repo) ListRecent(ctx context.Context, limit int) ([]models.Volume, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	out, err := r.query(ctx, `
		SELECT `+volumeColumns+`
		FROM volumes
		WHERE release_date IS NOT NULL
		ORDER BY release_date DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent volumes: %w", err)
	}
	return out, nil
}

// ListAll is used by exports.
func (r *Repo) ListAll(ctx context.Context) ([]models.Volume, error) {
	out, err := r.query(ctx, `SELECT `+volumeColumns+` FROM volumes ORDER BY favorite_id, id`)
	if err != nil {
		return nil, fmt.Errorf("list all volumes: %w", err)
	}
	return out, nil
}

func nullable[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}
