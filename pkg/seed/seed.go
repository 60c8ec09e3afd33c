// Package seed loads powder and job fixtures from a YAML file into the
// store, for bootstrapping a fresh shop database.
package seed

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/coatworks/sprayshop/pkg/shopstore"
)

// Fixture is the root document of a seed file.
type Fixture struct {
	Powders []PowderSeed `yaml:"powders"`
	Jobs    []JobSeed    `yaml:"jobs"`
}

type PowderSeed struct {
	Color        string  `yaml:"color"`
	Manufacturer string  `yaml:"manufacturer"`
	ProductCode  string  `yaml:"product_code"`
	OnHandKg     float64 `yaml:"on_hand_kg"`
}

type JobSeed struct {
	Company     string `yaml:"company"`
	Color       string `yaml:"color"`
	Description string `yaml:"description"`
	Priority    string `yaml:"priority"`
	DueBy       string `yaml:"due_by"`
	Status      string `yaml:"status"`
	OnScreen    *bool  `yaml:"on_screen"`
}

// Load parses a fixture file and validates each entry.
func Load(path string) (*Fixture, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}

	var fixture Fixture
	if err := yaml.Unmarshal(raw, &fixture); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}

	for i, p := range fixture.Powders {
		if p.Color == "" {
			return nil, fmt.Errorf("powder %d: color is required", i)
		}
		if p.OnHandKg < 0 {
			return nil, fmt.Errorf("powder %d (%s): on_hand_kg must not be negative", i, p.Color)
		}
	}
	for i, j := range fixture.Jobs {
		if j.Company == "" {
			return nil, fmt.Errorf("job %d: company is required", i)
		}
		if j.DueBy != "" {
			if _, err := parseDueBy(j.DueBy); err != nil {
				return nil, fmt.Errorf("job %d (%s): %w", i, j.Company, err)
			}
		}
	}

	return &fixture, nil
}

// Apply inserts the fixture's rows in one transaction and reports how many
// of each were created.
func Apply(ctx context.Context, db *sql.DB, fixture *Fixture, now time.Time) (powders, jobs int, err error) {
	err = shopstore.WithTx(ctx, db, func(tx *sql.Tx) error {
		for _, p := range fixture.Powders {
			_, err := shopstore.CreatePowder(ctx, tx, shopstore.NewPowderParams{
				Color:        p.Color,
				Manufacturer: p.Manufacturer,
				ProductCode:  p.ProductCode,
				OnHandKg:     p.OnHandKg,
			}, now)
			if err != nil {
				return fmt.Errorf("seed powder %q: %w", p.Color, err)
			}
			powders++
		}

		for _, j := range fixture.Jobs {
			params := shopstore.NewJobParams{
				Company:     j.Company,
				Color:       j.Color,
				Description: j.Description,
				Priority:    j.Priority,
				Status:      j.Status,
				OnScreen:    true,
			}
			if j.OnScreen != nil {
				params.OnScreen = *j.OnScreen
			}
			if j.DueBy != "" {
				due, err := parseDueBy(j.DueBy)
				if err != nil {
					return err
				}
				params.DueBy = &due
			}
			if _, err := shopstore.CreateJob(ctx, tx, params, now); err != nil {
				return fmt.Errorf("seed job %q: %w", j.Company, err)
			}
			jobs++
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return powders, jobs, nil
}

func parseDueBy(raw string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid due_by %q", raw)
}
