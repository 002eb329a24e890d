// Package i18n renders user-facing error messages by locale.
package i18n

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"sync"
	"text/template"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// BaseLocale is the locale used when nothing better matches.
const BaseLocale = "en-US"

// Code is a machine-readable error code (duplicated from errors package to avoid cycle).
type Code = string

// Catalog maps error codes to message templates for a specific locale.
type Catalog struct {
	locale   string
	messages map[Code]string
}

type catalogFile struct {
	Locale   string            `yaml:"locale"`
	Messages map[string]string `yaml:"messages"`
}

//go:embed locales/*.yaml
var localesFS embed.FS

var (
	catalogsMu sync.RWMutex
	catalogs   = map[string]*Catalog{}
	matcher    language.Matcher
	tags       []language.Tag
)

func init() {
	if err := loadFS(localesFS); err != nil {
		panic(err)
	}
}

func loadFS(fsys fs.FS) error {
	paths, err := fs.Glob(fsys, "locales/*.yaml")
	if err != nil {
		return fmt.Errorf("glob locale catalogs: %w", err)
	}
	sort.Strings(paths)
	loaded := map[string]*Catalog{}
	var base *Catalog
	var others []language.Tag
	for _, path := range paths {
		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return fmt.Errorf("read catalog %s: %w", path, err)
		}
		var file catalogFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return fmt.Errorf("parse catalog %s: %w", path, err)
		}
		tag, err := language.Parse(strings.TrimSpace(file.Locale))
		if err != nil {
			return fmt.Errorf("catalog %s: %w", path, err)
		}
		cat := NewCatalog(tag.String(), file.Messages)
		loaded[cat.locale] = cat
		if cat.locale == BaseLocale {
			base = cat
			continue
		}
		others = append(others, tag)
	}
	if base == nil {
		return fmt.Errorf("base locale %s is not defined in catalogs", BaseLocale)
	}

	catalogsMu.Lock()
	defer catalogsMu.Unlock()
	for locale, cat := range loaded {
		catalogs[locale] = cat
	}
	tags = append([]language.Tag{language.MustParse(BaseLocale)}, others...)
	matcher = language.NewMatcher(tags)
	return nil
}

// GetCatalog returns the catalog that best matches locale, which may be an
// Accept-Language style list. Falls back to en-US.
func GetCatalog(locale string) *Catalog {
	requested := strings.TrimSpace(locale)
	if requested == "" {
		requested = BaseLocale
	}
	if c, ok := lookupCatalog(requested); ok {
		return c
	}
	catalogsMu.RLock()
	m := matcher
	catalogsMu.RUnlock()
	desired, _, err := language.ParseAcceptLanguage(requested)
	if err != nil || len(desired) == 0 {
		c, _ := lookupCatalog(BaseLocale)
		return c
	}
	_, index, _ := m.Match(desired...)
	c, ok := lookupCatalog(tags[index].String())
	if !ok {
		c, _ = lookupCatalog(BaseLocale)
	}
	return c
}

// Locale returns the locale of this catalog.
func (c *Catalog) Locale() string {
	return c.locale
}

// Format renders the message template with the given metadata.
// Falls back to the error code itself if no template is found.
func (c *Catalog) Format(code Code, metadata map[string]string) string {
	tmpl, ok := c.messages[code]
	if !ok {
		return code
	}
	if metadata == nil {
		metadata = map[string]string{}
	}
	t, err := template.New("msg").Parse(tmpl)
	if err != nil {
		return tmpl
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, metadata); err != nil {
		return tmpl
	}
	return buf.String()
}

// Has reports whether the catalog defines code.
func (c *Catalog) Has(code Code) bool {
	_, ok := c.messages[code]
	return ok
}

// RegisterCatalog registers a catalog for the given locale. It replaces any
// catalog with the same locale.
func RegisterCatalog(locale string, cat *Catalog) {
	catalogsMu.Lock()
	defer catalogsMu.Unlock()
	catalogs[locale] = cat
}

// NewCatalog creates a new catalog with the given locale and messages.
func NewCatalog(locale string, messages map[Code]string) *Catalog {
	cloned := make(map[Code]string, len(messages))
	for key, value := range messages {
		cloned[strings.TrimSpace(key)] = value
	}
	return &Catalog{locale: locale, messages: cloned}
}

func lookupCatalog(locale string) (*Catalog, bool) {
	catalogsMu.RLock()
	defer catalogsMu.RUnlock()
	cat, ok := catalogs[locale]
	return cat, ok
}
