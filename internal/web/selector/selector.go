// Package selector builds the recipient lists of mailings.
//
// Each Selector reads one source of contacts, applies the filters chosen
// by the user and hands the resulting recipients to the mailing module
// through the Targets interface.
package selector

import (
	"context"
	"errors"
	"fmt"
	"html/template"

	sq "github.com/Masterminds/squirrel"

	"github.com/foxzi/mailtarget/internal/web/i18n"
	"github.com/foxzi/mailtarget/internal/web/models"
)

var ErrUnknownSelector = errors.New("unknown selector")

// Targets is the part of the mailing module used by selectors
type Targets interface {
	// AddTargets inserts recipients into a mailing and returns how many were actually added
	AddTargets(ctx context.Context, mailingID int64, targets []models.Target) (int, error)
	// CountRecipients runs a query returning a single "nb" column
	CountRecipients(ctx context.Context, query sq.Sqlizer) (int, error)
}

// Selector is a source of mailing recipients
type Selector interface {
	Name() string
	Description() string
	Enabled() bool

	// AddToTarget appends the recipients matching filter to a mailing
	AddToTarget(ctx context.Context, mailingID int64, filter Filter) (int, error)
	// FormFilter renders the filter controls shown on the recipients page
	FormFilter(ctx context.Context) (template.HTML, error)
	// NbOfRecipients counts the distinct emails the selector can provide
	NbOfRecipients(ctx context.Context, includeUnsubscribed bool) (int, error)
	// StatsQueries returns queries producing (label, nb) rows for the dashboard
	StatsQueries() []sq.Sqlizer
	// URL links a recipient back to its source record
	URL(id int64) string
	// Localize returns the selector rendering its labels with tr
	Localize(tr *i18n.Translator) Selector
}

// Registry keeps the selectors available to the application
type Registry struct {
	selectors []Selector
}

func NewRegistry(selectors ...Selector) *Registry {
	return &Registry{selectors: selectors}
}

// Get returns an enabled selector by name
func (r *Registry) Get(name string) (Selector, error) {
	for _, s := range r.selectors {
		if s.Name() == name && s.Enabled() {
			return s, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownSelector, name)
}

// Localize returns a registry whose selectors render their labels with tr
func (r *Registry) Localize(tr *i18n.Translator) *Registry {
	if tr == nil {
		return r
	}
	localized := make([]Selector, 0, len(r.selectors))
	for _, s := range r.selectors {
		localized = append(localized, s.Localize(tr))
	}
	return &Registry{selectors: localized}
}

// All returns the enabled selectors in registration order
func (r *Registry) All() []Selector {
	var enabled []Selector
	for _, s := range r.selectors {
		if s.Enabled() {
			enabled = append(enabled, s)
		}
	}
	return enabled
}
