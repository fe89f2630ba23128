package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/Cheertaboi/coupon-form-service/internal/models"
)

var ErrCouponNotFound = errors.New("coupon not found")

// Dialect selects placeholder style and schema.
type Dialect int

const (
	Postgres Dialect = iota
	SQLite
)

var placeholder = regexp.MustCompile(`\$\d+`)

func (d Dialect) rebind(query string) string {
	if d == SQLite {
		return placeholder.ReplaceAllString(query, "?")
	}
	return query
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS coupons (
	id           BIGSERIAL PRIMARY KEY,
	title        TEXT NOT NULL,
	code         TEXT NOT NULL DEFAULT '',
	catalog_type TEXT NOT NULL,
	coupon_type  TEXT NOT NULL,
	attributes   JSONB NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS coupons_code_idx ON coupons (code) WHERE code <> '';
CREATE INDEX IF NOT EXISTS coupons_title_idx ON coupons (title);
`

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS coupons (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	title        TEXT NOT NULL,
	code         TEXT NOT NULL DEFAULT '',
	catalog_type TEXT NOT NULL,
	coupon_type  TEXT NOT NULL,
	attributes   TEXT NOT NULL,
	created_at   TIMESTAMP NOT NULL,
	updated_at   TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS coupons_code_idx ON coupons (code);
CREATE INDEX IF NOT EXISTS coupons_title_idx ON coupons (title);
`

type CouponRepo struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

func NewCouponRepo(db *sql.DB, dialect Dialect) *CouponRepo {
	return &CouponRepo{db: db, dialect: dialect, now: time.Now}
}

// Migrate creates the coupons table when it does not exist.
func (r *CouponRepo) Migrate(ctx context.Context) error {
	schema := postgresSchema
	if r.dialect == SQLite {
		schema = sqliteSchema
	}
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate coupons: %w", err)
	}
	return nil
}

// Insert stores c and fills in its id and timestamps.
func (r *CouponRepo) Insert(ctx context.Context, c *models.Coupon) error {
	attrs, err := json.Marshal(c.Attributes)
	if err != nil {
		return fmt.Errorf("encode attributes: %w", err)
	}
	now := r.now().UTC()

	query := r.dialect.rebind(`
		INSERT INTO coupons (title, code, catalog_type, coupon_type, attributes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`)
	err = r.db.QueryRowContext(ctx, query,
		c.Title,
		c.Code,
		c.CatalogType,
		c.CouponType,
		string(attrs),
		now,
		now,
	).Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("insert coupon: %w", err)
	}
	c.CreatedAt, c.UpdatedAt = now, now
	return nil
}

// Update overwrites the stored coupon with id c.ID.
func (r *CouponRepo) Update(ctx context.Context, c *models.Coupon) error {
	attrs, err := json.Marshal(c.Attributes)
	if err != nil {
		return fmt.Errorf("encode attributes: %w", err)
	}
	now := r.now().UTC()

	query := r.dialect.rebind(`
		UPDATE coupons
		SET title = $1, code = $2, catalog_type = $3, coupon_type = $4, attributes = $5, updated_at = $6
		WHERE id = $7
	`)
	res, err := r.db.ExecContext(ctx, query,
		c.Title,
		c.Code,
		c.CatalogType,
		c.CouponType,
		string(attrs),
		now,
		c.ID,
	)
	if err != nil {
		return fmt.Errorf("update coupon %d: %w", c.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update coupon %d: %w", c.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %d", ErrCouponNotFound, c.ID)
	}
	c.UpdatedAt = now
	return nil
}

func (r *CouponRepo) Get(ctx context.Context, id int64) (*models.Coupon, error) {
	var (
		c     models.Coupon
		attrs []byte
	)

	query := r.dialect.rebind(`
		SELECT id, title, code, catalog_type, coupon_type, attributes, created_at, updated_at
		FROM coupons
		WHERE id = $1
	`)
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&c.ID,
		&c.Title,
		&c.Code,
		&c.CatalogType,
		&c.CouponType,
		&attrs,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %d", ErrCouponNotFound, id)
		}
		return nil, fmt.Errorf("get coupon %d: %w", id, err)
	}
	if err := json.Unmarshal(attrs, &c.Attributes); err != nil {
		return nil, fmt.Errorf("decode coupon %d attributes: %w", id, err)
	}
	return &c, nil
}

// CodeExists reports whether a coupon other than exceptID uses code.
func (r *CouponRepo) CodeExists(ctx context.Context, code string, exceptID int64) (bool, error) {
	query := r.dialect.rebind(`SELECT COUNT(*) FROM coupons WHERE code = $1 AND id <> $2`)
	var n int
	if err := r.db.QueryRowContext(ctx, query, code, exceptID).Scan(&n); err != nil {
		return false, fmt.Errorf("check coupon code: %w", err)
	}
	return n > 0, nil
}

// DefaultListLimit caps a listing that does not ask for a page size.
const DefaultListLimit = 100

// List returns the coupons matching f ordered by id. Title matches are
// case-insensitive substrings, the other filters are exact.
func (r *CouponRepo) List(ctx context.Context, f models.CouponFilter) ([]*models.Coupon, error) {
	var (
		where []string
		args  []any
	)
	arg := func(clause string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if f.Title != "" {
		arg("LOWER(title) LIKE $%d", "%"+strings.ToLower(f.Title)+"%")
	}
	if f.Code != "" {
		arg("code = $%d", f.Code)
	}
	if f.CatalogType != "" {
		arg("catalog_type = $%d", f.CatalogType)
	}
	if f.CouponType != "" {
		arg("coupon_type = $%d", f.CouponType)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	query := `SELECT id, title, code, catalog_type, coupon_type, attributes, created_at, updated_at FROM coupons`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, limit, max(f.Offset, 0))
	query += fmt.Sprintf(" ORDER BY id LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, r.dialect.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list coupons: %w", err)
	}
	defer rows.Close()

	out := []*models.Coupon{}
	for rows.Next() {
		var (
			c     models.Coupon
			attrs []byte
		)
		if err := rows.Scan(
			&c.ID,
			&c.Title,
			&c.Code,
			&c.CatalogType,
			&c.CouponType,
			&attrs,
			&c.CreatedAt,
			&c.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("list coupons: %w", err)
		}
		if err := json.Unmarshal(attrs, &c.Attributes); err != nil {
			return nil, fmt.Errorf("decode coupon %d attributes: %w", c.ID, err)
		}
		out = append(out, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list coupons: %w", err)
	}
	return out, nil
}

// Delete removes coupon id.
func (r *CouponRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, r.dialect.rebind(`DELETE FROM coupons WHERE id = $1`), id)
	if err != nil {
		return fmt.Errorf("delete coupon %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete coupon %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %d", ErrCouponNotFound, id)
	}
	return nil
}
