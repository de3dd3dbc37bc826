// Package messages loads the assistant's canned message catalog from a
// YAML file. Each key maps languages to a template with {placeholder}
// substitution; English is the fallback language.
package messages

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const fallbackLanguage = "en"

type Catalog struct {
	entries map[string]map[string]string
}

// Load reads the catalog from path. A missing or unreadable file yields
// an empty catalog so message lookups degrade to their keys instead of
// failing the caller.
func Load(path string) *Catalog {
	c := &Catalog{entries: map[string]map[string]string{}}

	data, err := os.ReadFile(path)
	if err != nil {
		zap.L().Warn("message catalog not loaded", zap.String("path", path), zap.Error(err))
		return c
	}
	if err := yaml.Unmarshal(data, &c.entries); err != nil {
		zap.L().Error("message catalog is not valid yaml", zap.String("path", path), zap.Error(err))
		c.entries = map[string]map[string]string{}
	}
	return c
}

// Get resolves key in lang, falling back to English, then to the key
// itself. Vars replace {name} placeholders.
func (c *Catalog) Get(key, lang string, vars map[string]string) string {
	byLang, ok := c.entries[key]
	if !ok {
		zap.L().Warn("message key not found", zap.String("key", key))
		return key
	}
	template, ok := byLang[lang]
	if !ok {
		template, ok = byLang[fallbackLanguage]
		if !ok {
			return key
		}
	}
	for name, value := range vars {
		template = strings.ReplaceAll(template, fmt.Sprintf("{%s}", name), value)
	}
	return template
}
