// Package i18n localizes the strings uishell prints itself: TUI chrome,
// status lines and CLI output. Page content comes from the server and is
// never translated here.
//
//	i18n.Init(i18n.ResolveLocale(cfg.Language))
//	i18n.T("tui.state.closed", "closed")
//	i18n.Tf("tui.status.initFailed", "Connection failed: %s", err)
//	i18n.Tn("cmd.instances.count", "{{.Count}} instance", "{{.Count}} instances", n)
package i18n

import (
	"embed"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

//go:embed locales/*.toml
var localeFS embed.FS

// catalog is the active bundle with a localizer for one matched tag.
type catalog struct {
	tag       language.Tag
	localizer *i18n.Localizer
}

var (
	mu     sync.RWMutex
	active *catalog
)

// Init loads the embedded locales and selects the best match for lang.
// Unknown tags fall back to English. It returns the selected tag and may
// be called again to switch languages.
func Init(lang string) string {
	bundle := i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)

	entries, _ := localeFS.ReadDir("locales")
	for _, e := range entries {
		_, _ = bundle.LoadMessageFileFS(localeFS, "locales/"+e.Name())
	}

	tag := language.English
	if want, err := language.Parse(lang); err == nil {
		matcher := language.NewMatcher(bundle.LanguageTags())
		_, idx, conf := matcher.Match(want)
		if conf != language.No {
			tag = bundle.LanguageTags()[idx]
		}
	}

	c := &catalog{tag: tag, localizer: i18n.NewLocalizer(bundle, tag.String(), "en")}
	mu.Lock()
	active = c
	mu.Unlock()
	return tag.String()
}

// Current returns the selected language tag, or "en" before Init.
func Current() string {
	c := current()
	if c == nil {
		return "en"
	}
	return c.tag.String()
}

func current() *catalog {
	mu.RLock()
	defer mu.RUnlock()
	return active
}

// T returns the message for id, or defaultMsg when no locale has it.
func T(id string, defaultMsg string) string {
	c := current()
	if c == nil {
		return defaultMsg
	}
	s, err := c.localizer.Localize(&i18n.LocalizeConfig{
		DefaultMessage: &i18n.Message{ID: id, Other: defaultMsg},
	})
	if err != nil {
		return defaultMsg
	}
	return s
}

// Tf is T followed by fmt.Sprintf.
func Tf(id string, defaultMsg string, args ...any) string {
	return fmt.Sprintf(T(id, defaultMsg), args...)
}

// Tn selects the plural form for count. one and other are templates
// that may reference {{.Count}}.
func Tn(id string, one string, other string, count int) string {
	fallback := other
	if count == 1 {
		fallback = one
	}
	fallback = strings.ReplaceAll(fallback, "{{.Count}}", strconv.Itoa(count))

	c := current()
	if c == nil {
		return fallback
	}
	s, err := c.localizer.Localize(&i18n.LocalizeConfig{
		DefaultMessage: &i18n.Message{ID: id, One: one, Other: other},
		PluralCount:    count,
		TemplateData:   map[string]int{"Count": count},
	})
	if err != nil {
		return fallback
	}
	return s
}

// ResolveLocale picks the language tag to use.
// Order: UISHELL_LANG, configLang, LC_ALL, LANG, then "en".
func ResolveLocale(configLang string) string {
	if v := os.Getenv("UISHELL_LANG"); v != "" {
		return v
	}
	if configLang != "" {
		return configLang
	}
	for _, env := range []string{"LC_ALL", "LANG"} {
		if v := os.Getenv(env); v != "" {
			return posixToBCP47(v)
		}
	}
	return "en"
}

// posixToBCP47 turns "zh_CN.UTF-8" into "zh-CN".
func posixToBCP47(posix string) string {
	posix, _, _ = strings.Cut(posix, ".")
	posix, _, _ = strings.Cut(posix, "@")
	return strings.ReplaceAll(posix, "_", "-")
}
