// Package i18n loads the translation catalogs used for labels, form captions
// and the "other" field of mailing targets.
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
	"gopkg.in/yaml.v3"
)

// BaseLocale is used when no catalog matches the requested language
const BaseLocale = "en-US"

//go:embed locales/*.yaml
var localesFS embed.FS

type catalogFile struct {
	Locale    string            `yaml:"locale"`
	DayLayout string            `yaml:"day_layout"`
	Messages  map[string]string `yaml:"messages"`
}

// Bundle holds every loaded locale
type Bundle struct {
	builder    *catalog.Builder
	tags       []language.Tag
	matcher    language.Matcher
	dayLayouts map[language.Tag]string
	keys       map[string]bool
}

// Load reads the embedded catalogs
func Load() (*Bundle, error) {
	return LoadFromFS(localesFS)
}

// LoadFromFS reads locales/*.yaml from fsys
func LoadFromFS(fsys fs.FS) (*Bundle, error) {
	paths, err := fs.Glob(fsys, "locales/*.yaml")
	if err != nil {
		return nil, fmt.Errorf("failed to list catalogs: %w", err)
	}
	sort.Strings(paths)

	b := &Bundle{
		builder:    catalog.NewBuilder(catalog.Fallback(language.MustParse(BaseLocale))),
		dayLayouts: make(map[language.Tag]string),
		keys:       make(map[string]bool),
	}

	var base *language.Tag
	for _, path := range paths {
		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
		}

		var file catalogFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("failed to parse catalog %s: %w", path, err)
		}

		tag, err := language.Parse(strings.TrimSpace(file.Locale))
		if err != nil {
			return nil, fmt.Errorf("catalog %s: invalid locale %q: %w", path, file.Locale, err)
		}

		for key, msg := range file.Messages {
			if err := b.builder.SetString(tag, key, msg); err != nil {
				return nil, fmt.Errorf("catalog %s: key %q: %w", path, key, err)
			}
			b.keys[key] = true
		}

		if file.DayLayout == "" {
			file.DayLayout = time.DateOnly
		}
		b.dayLayouts[tag] = file.DayLayout

		if file.Locale == BaseLocale {
			base = &tag
		}
		b.tags = append(b.tags, tag)
	}

	if base == nil {
		return nil, fmt.Errorf("base locale %s is not defined in catalogs", BaseLocale)
	}

	// The matcher prefers its first tag when nothing matches
	tags := []language.Tag{*base}
	for _, t := range b.tags {
		if t != *base {
			tags = append(tags, t)
		}
	}
	b.tags = tags
	b.matcher = language.NewMatcher(tags)

	return b, nil
}

// Translator returns a translator for the best catalog matching lang.
// lang may be a single tag or an Accept-Language header value.
func (b *Bundle) Translator(lang string) *Translator {
	desired, _, _ := language.ParseAcceptLanguage(lang)
	_, idx, _ := b.matcher.Match(desired...)
	tag := b.tags[idx]

	return &Translator{
		tag:       tag,
		printer:   message.NewPrinter(tag, message.Catalog(b.builder)),
		dayLayout: b.dayLayouts[tag],
		keys:      b.keys,
	}
}

// Translator renders messages for one locale
type Translator struct {
	tag       language.Tag
	printer   *message.Printer
	dayLayout string
	keys      map[string]bool
}

// Tag returns the locale of the translator
func (t *Translator) Tag() language.Tag {
	return t.tag
}

// T translates key. Unknown keys are returned as is.
func (t *Translator) T(key string, args ...any) string {
	if len(args) == 0 && !t.keys[key] {
		return key
	}
	return t.printer.Sprintf(key, args...)
}

// Day formats a date with the day layout of the locale
func (t *Translator) Day(tm time.Time) string {
	if tm.IsZero() {
		return ""
	}
	return tm.Format(t.dayLayout)
}
