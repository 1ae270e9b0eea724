package selector

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"

	"github.com/foxzi/mailtarget/internal/web/i18n"
	"github.com/foxzi/mailtarget/internal/web/models"
)

// labelMaxLen is the longest type or category label shown in a select
const labelMaxLen = 38

//go:embed templates/*.html
var templatesFS embed.FS

var formTemplates = template.Must(template.New("").
	Funcs(template.FuncMap{
		"truncate": func(s string) string { return truncateMiddle(s, labelMaxLen) },
	}).
	ParseFS(templatesFS, "templates/*.html"))

type datePicker struct {
	Prefix  string
	Caption string
	tr      *i18n.Translator
}

func (d datePicker) T(key string) string {
	return d.tr.T(key)
}

type memberForm struct {
	Types      []models.MemberType
	Categories []models.Category
	After      datePicker
	Before     datePicker
	tr         *i18n.Translator
}

func (f memberForm) T(key string) string {
	return f.tr.T(key)
}

// FormFilter renders the status, type and category selects and the
// subscription end date pickers
func (s *MemberSelector) FormFilter(ctx context.Context) (template.HTML, error) {
	types, err := s.members.ListTypes(ctx, s.opts.Entities)
	if err != nil {
		return "", fmt.Errorf("failed to list member types: %w", err)
	}

	categories, err := s.members.ListCategories(ctx, s.opts.Entity, models.CategoryTypeMember)
	if err != nil {
		return "", fmt.Errorf("failed to list member categories: %w", err)
	}

	data := memberForm{
		Types:      types,
		Categories: categories,
		After:      datePicker{Prefix: "subscriptionafter", Caption: s.tr.T("After") + " >", tr: s.tr},
		Before:     datePicker{Prefix: "subscriptionbefore", Caption: s.tr.T("Before") + " <", tr: s.tr},
		tr:         s.tr,
	}

	var buf bytes.Buffer
	if err := formTemplates.ExecuteTemplate(&buf, "members_form", data); err != nil {
		return "", fmt.Errorf("failed to render member filter: %w", err)
	}
	return template.HTML(buf.String()), nil
}

// truncateMiddle shortens s to size runes by cutting its middle
func truncateMiddle(s string, size int) string {
	runes := []rune(s)
	if len(runes) <= 2 || len(runes) <= size+1 {
		return s
	}

	half := (size + 1) / 2
	return string(runes[:half]) + "…" + string(runes[len(runes)-half:])
}
