// Package i18n translates the messages vaultkit shows to the user.
package i18n

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

var supported = []language.Tag{
	language.English,
	language.German,
	language.Dutch,
}

var matcher = language.NewMatcher(supported)

// Translator looks up messages in the language it was created for.
type Translator struct {
	tag     language.Tag
	printer *message.Printer
}

// New returns a Translator for the best match of lang, which may be a BCP 47
// tag, an Accept-Language list or a POSIX locale such as de_DE.UTF-8.
// Unsupported languages fall back to English.
func New(lang string) *Translator {
	tag := match(lang)
	return &Translator{
		tag:     tag,
		printer: message.NewPrinter(tag, message.Catalog(messages)),
	}
}

// FromEnv returns a Translator for the locale in LC_ALL, LC_MESSAGES or LANG.
func FromEnv() *Translator {
	for _, name := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		if value := os.Getenv(name); value != "" {
			return New(value)
		}
	}
	return New("")
}

// Language returns the language messages are translated to.
func (t *Translator) Language() language.Tag {
	return t.tag
}

// T returns the message for key, formatted with args. Unknown keys are
// returned as is.
func (t *Translator) T(key string, args ...interface{}) string {
	return t.printer.Sprintf(key, args...)
}

func match(lang string) language.Tag {
	lang = posixToBCP47(lang)
	if lang == "" || lang == "C" || lang == "POSIX" {
		return language.English
	}

	tags, _, err := language.ParseAcceptLanguage(lang)
	if err != nil || len(tags) == 0 {
		return language.English
	}
	_, index, confidence := matcher.Match(tags...)
	if confidence == language.No {
		return language.English
	}
	return supported[index]
}

// posixToBCP47 turns de_DE.UTF-8@euro into de-DE.
func posixToBCP47(lang string) string {
	if i := strings.IndexAny(lang, ".@"); i >= 0 {
		lang = lang[:i]
	}
	return strings.Replace(lang, "_", "-", -1)
}

var messages = mustCatalog(translations)

func mustCatalog(tables map[language.Tag]map[string]string) catalog.Catalog {
	c, err := newCatalog(tables)
	if err != nil {
		panic(err)
	}
	return c
}

func newCatalog(tables map[language.Tag]map[string]string) (catalog.Catalog, error) {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for tag, msgs := range tables {
		for key, msg := range msgs {
			err := b.SetString(tag, key, msg)
			if err != nil {
				return nil, fmt.Errorf("message %q for %s: %v", key, tag, err)
			}
		}
	}
	return b, nil
}
