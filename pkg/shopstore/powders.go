package shopstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Powder is an inventory row. OnHandKg, LastWeighedKg and LastWeighedAt
// together form the "last scale reading": batch close overwrites all three
// from the measured end weight rather than subtracting usage.
type Powder struct {
	ID            int64
	Color         string
	Manufacturer  string
	ProductCode   string
	OnHandKg      float64
	LastWeighedKg *float64
	LastWeighedAt *time.Time
	CreatedAt     time.Time
}

// NewPowderParams carries the caller-supplied fields for CreatePowder.
type NewPowderParams struct {
	Color        string
	Manufacturer string
	ProductCode  string
	OnHandKg     float64
}

const powderColumns = `id, powder_color, manufacturer, product_code, on_hand_kg,
       last_weighed_kg, last_weighed_at, created_at`

// CreatePowder inserts a powder and returns it with its assigned id.
func CreatePowder(ctx context.Context, q DBTX, params NewPowderParams, now time.Time) (*Powder, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	res, err := q.ExecContext(ctx,
		`INSERT INTO powders (powder_color, manufacturer, product_code, on_hand_kg, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		params.Color, params.Manufacturer, params.ProductCode, params.OnHandKg, fmtTime(now))
	if err != nil {
		return nil, fmt.Errorf("create powder: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("powder insert id: %w", err)
	}

	return &Powder{
		ID:           id,
		Color:        params.Color,
		Manufacturer: params.Manufacturer,
		ProductCode:  params.ProductCode,
		OnHandKg:     params.OnHandKg,
		CreatedAt:    now.UTC(),
	}, nil
}

// GetPowder retrieves a powder by id. Returns ErrNotFound if absent.
func GetPowder(ctx context.Context, q DBTX, powderID int64) (*Powder, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	row := q.QueryRowContext(ctx,
		`SELECT `+powderColumns+` FROM powders WHERE id = ?`, powderID)

	p, err := scanPowder(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("powder %d: %w", powderID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get powder: %w", err)
	}
	return p, nil
}

// ListPowders lists every powder ordered by color.
func ListPowders(ctx context.Context, q DBTX) ([]Powder, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	rows, err := q.QueryContext(ctx,
		`SELECT `+powderColumns+` FROM powders ORDER BY LOWER(powder_color), id`)
	if err != nil {
		return nil, fmt.Errorf("list powders: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Powder
	for rows.Next() {
		p, err := scanPowder(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan powder: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// RecordScaleReading overwrites the powder's on-hand quantity and
// last-weighed fields with a fresh scale reading.
//
// This is the re-weigh model: the stored quantity is replaced, never
// decremented, so cumulative subtraction drift cannot accumulate.
func RecordScaleReading(ctx context.Context, q DBTX, powderID int64, weighedKg float64, at time.Time) error {
	if ctx == nil {
		ctx = context.Background()
	}

	res, err := q.ExecContext(ctx,
		`UPDATE powders
		 SET on_hand_kg = ?, last_weighed_kg = ?, last_weighed_at = ?
		 WHERE id = ?`,
		weighedKg, weighedKg, fmtTime(at), powderID)
	if err != nil {
		return fmt.Errorf("record scale reading: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("powder %d: %w", powderID, ErrNotFound)
	}
	return nil
}

// SetOnHand sets the on-hand quantity without touching the last-weighed
// fields. Used by manual inventory adjustments; a batch close racing with
// this write wins last, which is accepted.
func SetOnHand(ctx context.Context, q DBTX, powderID int64, onHandKg float64) error {
	if ctx == nil {
		ctx = context.Background()
	}

	res, err := q.ExecContext(ctx,
		`UPDATE powders SET on_hand_kg = ? WHERE id = ?`, onHandKg, powderID)
	if err != nil {
		return fmt.Errorf("set on hand: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("powder %d: %w", powderID, ErrNotFound)
	}
	return nil
}

func scanPowder(scan func(dest ...any) error) (*Powder, error) {
	var p Powder
	var manufacturer, productCode sql.NullString
	var lastWeighedKg sql.NullFloat64
	var lastWeighedAtRaw, createdAtRaw any

	err := scan(
		&p.ID, &p.Color, &manufacturer, &productCode, &p.OnHandKg,
		&lastWeighedKg, &lastWeighedAtRaw, &createdAtRaw)
	if err != nil {
		return nil, err
	}

	p.Manufacturer = manufacturer.String
	p.ProductCode = productCode.String
	if lastWeighedKg.Valid {
		p.LastWeighedKg = &lastWeighedKg.Float64
	}

	lastWeighedAt, err := parseOptionalDBTime(lastWeighedAtRaw)
	if err != nil {
		return nil, fmt.Errorf("parse last_weighed_at: %w", err)
	}
	p.LastWeighedAt = lastWeighedAt

	createdAt, err := parseDBTime(createdAtRaw)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	p.CreatedAt = createdAt

	return &p, nil
}
