// Package langtable holds the ordered table of target locales and resolves
// locale codes to the English display names used in translation prompts.
package langtable

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Locale is a target locale: the catalog code and its English name.
type Locale struct {
	Code string
	Name string
}

func (l Locale) String() string {
	return fmt.Sprintf("%s (%s)", l.Name, l.Code)
}

// defaultTable is the built-in set of target locales, in run order.
var defaultTable = []Locale{
	{"ar", "Arabic"},
	{"bn", "Bangla"},
	{"bg", "Bulgarian"},
	{"ca", "Catalan"},
	{"zh-HK", "Chinese (Hong Kong)"},
	{"zh-Hans", "Chinese, Simplified"},
	{"zh-Hant", "Chinese, Traditional"},
	{"hr", "Croatian"},
	{"cs", "Czech"},
	{"da", "Danish"},
	{"nl", "Dutch"},
	{"en-AU", "English (Australia)"},
	{"en-IN", "English (India)"},
	{"en-GB", "English (United Kingdom)"},
	{"fi", "Finnish"},
	{"fr", "French"},
	{"fr-CA", "French (Canada)"},
	{"de", "German"},
	{"el", "Greek"},
	{"gu", "Gujarati"},
	{"he", "Hebrew"},
	{"hi", "Hindi"},
	{"hu", "Hungarian"},
	{"id", "Indonesian"},
	{"it", "Italian"},
	{"ja", "Japanese"},
	{"kn", "Kannada"},
	{"kk", "Kazakh"},
	{"ko", "Korean"},
	{"lt", "Lithuanian"},
	{"ms", "Malay"},
	{"ml", "Malayalam"},
	{"mr", "Marathi"},
	{"nb", "Norwegian Bokmål"},
	{"or", "Odia"},
	{"pl", "Polish"},
	{"pt-BR", "Portuguese (Brazil)"},
	{"pt-PT", "Portuguese (Portugal)"},
	{"pa", "Punjabi"},
	{"ro", "Romanian"},
	{"ru", "Russian"},
	{"sk", "Slovak"},
	{"sl", "Slovenian"},
	{"es", "Spanish"},
	{"sv", "Swedish"},
	{"ta", "Tamil"},
	{"te", "Telugu"},
	{"th", "Thai"},
	{"tr", "Turkish"},
	{"uk", "Ukrainian"},
	{"ur", "Urdu"},
	{"vi", "Vietnamese"},
}

// Default returns a copy of the built-in locale table.
func Default() []Locale {
	return append([]Locale(nil), defaultTable...)
}

// Lookup returns the built-in entry for code, matching case-insensitively
// and treating "_" like "-".
func Lookup(code string) (Locale, bool) {
	code = strings.ReplaceAll(strings.TrimSpace(code), "_", "-")
	for _, l := range defaultTable {
		if strings.EqualFold(l.Code, code) {
			return l, true
		}
	}
	return Locale{}, false
}

// Resolve validates a locale code and returns it with its English name.
// Codes in the built-in table keep the table's spelling and name; any other
// well-formed BCP 47 tag is canonicalized and named from CLDR data.
func Resolve(code string) (Locale, error) {
	if l, ok := Lookup(code); ok {
		return l, nil
	}

	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return Locale{}, fmt.Errorf("empty locale code")
	}
	tag, err := language.Parse(trimmed)
	if err != nil {
		return Locale{}, fmt.Errorf("invalid locale code %q: %w", code, err)
	}
	canonical := tag.String()
	if l, ok := Lookup(canonical); ok {
		return l, nil
	}

	name := display.English.Tags().Name(tag)
	if name == "" {
		return Locale{}, fmt.Errorf("unknown locale code %q", code)
	}
	return Locale{Code: canonical, Name: name}, nil
}

// WithName returns code resolved as by Resolve but labelled with name,
// for tables supplied as a code-to-name mapping.
func WithName(code, name string) (Locale, error) {
	l, err := Resolve(code)
	if err != nil {
		return Locale{}, err
	}
	if name = strings.TrimSpace(name); name != "" {
		l.Name = name
	}
	return l, nil
}

// Parse resolves a comma- or space-separated list of codes ("fr,de pt-BR").
// Duplicates are dropped; the first occurrence keeps its position.
func Parse(list string) ([]Locale, error) {
	fields := strings.FieldsFunc(list, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
	return ResolveAll(fields)
}

// ResolveAll resolves each code in order, dropping duplicates.
func ResolveAll(codes []string) ([]Locale, error) {
	var out []Locale
	seen := make(map[string]bool)
	for _, c := range codes {
		l, err := Resolve(c)
		if err != nil {
			return nil, err
		}
		if seen[l.Code] {
			continue
		}
		seen[l.Code] = true
		out = append(out, l)
	}
	return out, nil
}

// Codes returns the codes of locales, in order.
func Codes(locales []Locale) []string {
	codes := make([]string, len(locales))
	for i, l := range locales {
		codes[i] = l.Code
	}
	return codes
}
