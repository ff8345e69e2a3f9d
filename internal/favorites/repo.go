package favorites

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"mangashelf/pkg/models"
)

// ErrDuplicate is returned when a series name is already tracked.
var ErrDuplicate = errors.New("favorite already exists")

type Repo struct {
	DB *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

const favoriteColumns = `id, series_name, author_name, rating, created_at`

func scanFavorite(sc interface{ Scan(...any) error }) (models.Favorite, error) {
	var (
		f       models.Favorite
		author  sql.NullString
		rating  sql.NullInt64
		created time.Time
	)
	if err := sc.Scan(&f.ID, &f.SeriesName, &author, &rating, &created); err != nil {
		return f, err
	}
	if author.Valid && author.String != "" {
		s := author.String
		f.AuthorName = &s
	}
	if rating.Valid {
		n := int(rating.Int64)
		f.Rating = &n
	}
	f.CreatedAt = created
	return f, nil
}

// List returns every favorite, newest first.
func (r *Repo) List(ctx context.Context) ([]models.Favorite, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT `+favoriteColumns+`
		FROM favorites
		ORDER BY created_at DESC, id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list favorites: %w", err)
	}
	defer rows.Close()

	out := make([]models.Favorite, 0)
	for rows.Next() {
		f, err := scanFavorite(rows)
		if err != nil {
			return nil, fmt.Errorf("scan favorite: %w", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}

func (r *Repo) Get(ctx context.Context, id int64) (*models.Favorite, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT `+favoriteColumns+`
		FROM favorites
		WHERE id = ?
	`, id)
	f, err := scanFavorite(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get favorite: %w", err)
	}
	return &f, nil
}

func (r *Repo) Create(ctx context.Context, seriesName string) (*models.Favorite, error) {
	res, err := r.DB.ExecContext(ctx, `
		INSERT INTO favorites (series_name) VALUES (?)
	`, seriesName)
	if err != nil {
		var se sqlite3.Error
		if errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("insert favorite: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return r.Get(ctx, id)
}

// Delete removes a favorite; its volumes go with it.
func (r *Repo) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM favorites WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete favorite: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// SetRating stores 1..5, or clears the rating when rating is 0.
func (r *Repo) SetRating(ctx context.Context, id int64, rating int) (bool, error) {
	if rating < 0 || rating > 5 {
		return false, fmt.Errorf("rating %d out of range", rating)
	}
	var value any
	if rating > 0 {
		value = rating
	}
	res, err := r.DB.ExecContext(ctx, `UPDATE favorites SET rating = ? WHERE id = ?`, value, id)
	if err != nil {
		return false, fmt.Errorf("update rating: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// BackfillAuthor sets the author only when none is stored yet.
func (r *Repo) BackfillAuthor(ctx context.Context, id int64, author string) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE favorites SET author_name = ?
		WHERE id = ? AND (author_name IS NULL OR author_name = '')
	`, author, id)
	if err != nil {
		return false, fmt.Errorf("backfill author: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// Import inserts a favorite with all fields, skipping names already present.
// Used by CSV restore.
func (r *Repo) Import(ctx context.Context, f models.Favorite) (int64, bool, error) {
	var author, rating any
	if f.AuthorName != nil {
		author = *f.AuthorName
	}
	if f.Rating != nil && *f.Rating > 0 {
		rating = *f.Rating
	}
	created := f.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	res, err := r.DB.ExecContext(ctx, `
		INSERT INTO favorites (series_name, author_name, rating, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(series_name) DO NOTHING
	`, f.SeriesName, author, rating, created.UTC().Format("2006-01-02 15:04:05"))
	if err != nil {
		return 0, false, fmt.Errorf("import favorite: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var id int64
		if err := r.DB.QueryRowContext(ctx, `SELECT id FROM favorites WHERE series_name = ?`, f.SeriesName).Scan(&id); err != nil {
			return 0, false, fmt.Errorf("lookup favorite: %w", err)
		}
		return id, false, nil
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, false, fmt.Errorf("last insert id: %w", err)
	}
	return id, true, nil
}
