package selector

import (
	"context"
	"fmt"
	"log/slog"

	sq "github.com/Masterminds/squirrel"

	"github.com/foxzi/mailtarget/internal/web/db"
	"github.com/foxzi/mailtarget/internal/web/i18n"
	"github.com/foxzi/mailtarget/internal/web/models"
)

// Dashboard aggregates the statistics of every enabled selector
type Dashboard struct {
	db       *db.DB
	registry *Registry
	logger   *slog.Logger
}

func NewDashboard(database *db.DB, registry *Registry, logger *slog.Logger) *Dashboard {
	return &Dashboard{
		db:       database,
		registry: registry,
		logger:   logger.With("component", "dashboard"),
	}
}

// Localize returns a dashboard whose labels are translated with tr
func (d *Dashboard) Localize(tr *i18n.Translator) *Dashboard {
	c := *d
	c.registry = d.registry.Localize(tr)
	return &c
}

// Stats runs the statistics queries of all selectors
func (d *Dashboard) Stats(ctx context.Context) ([]models.Stat, error) {
	stats := []models.Stat{}

	for _, s := range d.registry.All() {
		for _, q := range s.StatsQueries() {
			rows, err := d.query(ctx, q)
			if err != nil {
				d.logger.Error("statistics query failed", "selector", s.Name(), "error", err)
				return nil, fmt.Errorf("failed to compute statistics of %s: %w", s.Name(), err)
			}
			stats = append(stats, rows...)
		}
	}

	return stats, nil
}

func (d *Dashboard) query(ctx context.Context, q sq.Sqlizer) ([]models.Stat, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []models.Stat
	for rows.Next() {
		var s models.Stat
		if err := rows.Scan(&s.Label, &s.Nb); err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}
