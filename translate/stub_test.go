package translate

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/minios-linux/xcloc/xcstrings"
)

// langOf extracts the language name from the default system prompt.
func langOf(systemPrompt string) string {
	s := strings.TrimPrefix(systemPrompt, "Translate to ")
	s, _, _ = strings.Cut(s, ".")
	return s
}

// fakeTranslator answers every numbered prompt line with "<Language> <text>".
func fakeTranslator() CompleterFunc {
	return func(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
		lang := langOf(systemPrompt)
		var sb strings.Builder
		for _, line := range strings.Split(userPrompt, "\n") {
			idx, text, ok := strings.Cut(line, "|")
			if !ok {
				continue
			}
			if _, err := strconv.Atoi(idx); err != nil {
				continue
			}
			fmt.Fprintf(&sb, "%s|%s %s\n", idx, lang, text)
		}
		return sb.String(), nil
	}
}

// catalogWith builds a catalog whose keys are "String 000", "String 001", ...
func catalogWith(t *testing.T, n int) *xcstrings.Catalog {
	t.Helper()
	var sb strings.Builder
	sb.WriteString(`{"sourceLanguage":"en","strings":{`)
	for i := 0; i < n; i++ {
		if i > 0 {
			sb.WriteByte(',')
		}
		fmt.Fprintf(&sb, `"String %03d":{}`, i)
	}
	sb.WriteString(`},"version":"1.0"}`)
	return mustCatalog(t, sb.String())
}

func mustCatalog(t *testing.T, data string) *xcstrings.Catalog {
	t.Helper()
	cat, err := xcstrings.Parse([]byte(data))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return cat
}

func mustMarshal(t *testing.T, cat *xcstrings.Catalog) string {
	t.Helper()
	data, err := cat.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	return string(data)
}

func value(t *testing.T, cat *xcstrings.Catalog, key, locale string) (string, bool) {
	t.Helper()
	e, ok := cat.Entry(key)
	if !ok {
		t.Fatalf("key %q missing", key)
	}
	l, ok := e.Localization(locale)
	return l.Value, ok
}
