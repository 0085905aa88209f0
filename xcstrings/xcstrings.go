// Package xcstrings implements reading and writing of Xcode String Catalog
// (.xcstrings) files.
//
// The file is a JSON object of the form:
//
//	{
//	  "sourceLanguage" : "en",
//	  "strings" : {
//	    "Hello" : {
//	      "localizations" : {
//	        "fr" : { "stringUnit" : { "state" : "translated", "value" : "Bonjour" } }
//	      }
//	    }
//	  },
//	  "version" : "1.0"
//	}
//
// Keys are the source-language text. Round-trip fidelity: the order of
// top-level fields and of "strings" keys is preserved, and every field this
// package does not interpret (comments, extraction state, variations,
// substitutions, other states) is written back unchanged. Localization keys
// are emitted sorted, which is the order Xcode itself writes.
package xcstrings

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// StateTranslated is the only localization state this package writes.
const StateTranslated = "translated"

// ErrNoStrings is returned when a catalog lacks the top-level "strings" object.
var ErrNoStrings = errors.New(`catalog has no "strings" object`)

// ---------------------------------------------------------------------------
// Ordered JSON object
// ---------------------------------------------------------------------------

// object is a JSON object that remembers key order and keeps values raw.
type object struct {
	keys   []string
	values map[string]json.RawMessage
}

func newObject() *object {
	return &object{values: make(map[string]json.RawMessage)}
}

// parseObject decodes a JSON object with token streaming to preserve key order.
func parseObject(data []byte) (*object, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected '{', got %v", tok)
	}

	o := newObject()
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("expected string key, got %T", keyTok)
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("value for %q: %w", key, err)
		}
		if _, dup := o.values[key]; !dup {
			o.keys = append(o.keys, key)
		}
		o.values[key] = raw
	}

	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return o, nil
}

func (o *object) get(key string) (json.RawMessage, bool) {
	v, ok := o.values[key]
	return v, ok
}

// set stores a value; new keys are appended after the existing ones.
func (o *object) set(key string, raw json.RawMessage) {
	if _, ok := o.values[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.values[key] = raw
}

// writeTo appends the compact JSON form of o to buf.
func (o *object) writeTo(buf *bytes.Buffer, sorted bool) error {
	keys := o.keys
	if sorted {
		keys = append([]string(nil), o.keys...)
		sort.Strings(keys)
	}

	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeString(buf, k); err != nil {
			return err
		}
		buf.WriteByte(':')
		if err := json.Compact(buf, o.values[k]); err != nil {
			return fmt.Errorf("value for %q: %w", k, err)
		}
	}
	buf.WriteByte('}')
	return nil
}

// writeString writes s as a JSON string without HTML escaping.
func writeString(buf *bytes.Buffer, s string) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	// Encode always terminates with a newline.
	buf.Truncate(buf.Len() - 1)
	return nil
}

// ---------------------------------------------------------------------------
// Model
// ---------------------------------------------------------------------------

// Localization is the decoded stringUnit of one locale of an entry.
type Localization struct {
	State string `json:"state"`
	Value string `json:"value"`
}

// Entry is one catalog record for a single source key.
type Entry struct {
	// fields holds every entry field in document order; the raw
	// "localizations" value in it is stale once localizations is parsed.
	fields *object
	// localizations is nil when the entry has no "localizations" field.
	localizations *object
}

// Catalog is a parsed String Catalog.
type Catalog struct {
	// top holds the top-level fields; "strings" is regenerated on Marshal.
	top     *object
	keys    []string
	entries map[string]*Entry
}

// ValidKey reports whether k can be translated. Empty and whitespace-only
// keys are never valid.
func ValidKey(k string) bool {
	return strings.TrimSpace(k) != ""
}

// ParseFile reads and parses a String Catalog file.
func ParseFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	cat, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cat, nil
}

// Parse parses String Catalog JSON.
func Parse(data []byte) (*Catalog, error) {
	top, err := parseObject(data)
	if err != nil {
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}

	rawStrings, ok := top.get("strings")
	if !ok {
		return nil, ErrNoStrings
	}
	strs, err := parseObject(rawStrings)
	if err != nil {
		return nil, fmt.Errorf("parsing strings: %w", err)
	}

	c := &Catalog{
		top:     top,
		keys:    strs.keys,
		entries: make(map[string]*Entry, len(strs.keys)),
	}
	for _, key := range strs.keys {
		e, err := parseEntry(strs.values[key])
		if err != nil {
			return nil, fmt.Errorf("parsing entry %q: %w", key, err)
		}
		c.entries[key] = e
	}
	return c, nil
}

func parseEntry(raw json.RawMessage) (*Entry, error) {
	fields, err := parseObject(raw)
	if err != nil {
		return nil, err
	}
	e := &Entry{fields: fields}

	if rawLoc, ok := fields.get("localizations"); ok && string(bytes.TrimSpace(rawLoc)) != "null" {
		loc, err := parseObject(rawLoc)
		if err != nil {
			return nil, fmt.Errorf("localizations: %w", err)
		}
		e.localizations = loc
	}
	return e, nil
}

// ---------------------------------------------------------------------------
// Accessors
// ---------------------------------------------------------------------------

// SourceLanguage returns the catalog's "sourceLanguage" field, or "" if unset.
func (c *Catalog) SourceLanguage() string {
	raw, ok := c.top.get("sourceLanguage")
	if !ok {
		return ""
	}
	var s string
	_ = json.Unmarshal(raw, &s)
	return s
}

// Keys returns all keys in document order, including invalid ones.
func (c *Catalog) Keys() []string {
	return c.keys
}

// ValidKeys returns the translatable keys in document order.
func (c *Catalog) ValidKeys() []string {
	var keys []string
	for _, k := range c.keys {
		if ValidKey(k) {
			keys = append(keys, k)
		}
	}
	return keys
}

// Entry returns the entry for key.
func (c *Catalog) Entry(key string) (*Entry, bool) {
	e, ok := c.entries[key]
	return e, ok
}

// PendingKeys returns, in catalog order, the valid keys whose entry has no
// localization for locale. It does not modify the catalog.
func (c *Catalog) PendingKeys(locale string) []string {
	var pending []string
	for _, k := range c.keys {
		if !ValidKey(k) {
			continue
		}
		if c.entries[k].HasLocalization(locale) {
			continue
		}
		pending = append(pending, k)
	}
	return pending
}

// Coverage returns the number of valid keys, how many of them have any
// localization for locale, and how many of those are in the translated state.
func (c *Catalog) Coverage(locale string) (total, localized, translated int) {
	for _, k := range c.keys {
		if !ValidKey(k) {
			continue
		}
		total++
		e := c.entries[k]
		if !e.HasLocalization(locale) {
			continue
		}
		localized++
		if l, ok := e.Localization(locale); ok && l.State == StateTranslated {
			translated++
		}
	}
	return
}

// Locales returns every locale code that appears in any entry, sorted.
func (c *Catalog) Locales() []string {
	seen := make(map[string]bool)
	for _, e := range c.entries {
		for _, l := range e.Locales() {
			seen[l] = true
		}
	}
	out := make([]string, 0, len(seen))
	for l := range seen {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// HasLocalization reports whether the entry has any localization for locale,
// whatever its shape or state.
func (e *Entry) HasLocalization(locale string) bool {
	if e.localizations == nil {
		return false
	}
	_, ok := e.localizations.get(locale)
	return ok
}

// Localization returns the decoded stringUnit for locale. The second result
// is false when the locale is missing or has no stringUnit (for example a
// plural "variations" localization).
func (e *Entry) Localization(locale string) (Localization, bool) {
	if e.localizations == nil {
		return Localization{}, false
	}
	raw, ok := e.localizations.get(locale)
	if !ok {
		return Localization{}, false
	}
	var l struct {
		StringUnit *Localization `json:"stringUnit"`
	}
	if err := json.Unmarshal(raw, &l); err != nil || l.StringUnit == nil {
		return Localization{}, false
	}
	return *l.StringUnit, true
}

// Locales returns the entry's localization codes in document order.
func (e *Entry) Locales() []string {
	if e.localizations == nil {
		return nil
	}
	return e.localizations.keys
}

// ---------------------------------------------------------------------------
// Mutation
// ---------------------------------------------------------------------------

// SetTranslation sets key's localization for locale to a translated
// stringUnit holding value, replacing whatever that locale held before.
// Other locales and entry fields are left untouched.
func (c *Catalog) SetTranslation(key, locale, value string) error {
	e, ok := c.entries[key]
	if !ok {
		return fmt.Errorf("key %q not in catalog", key)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	unit := struct {
		StringUnit Localization `json:"stringUnit"`
	}{Localization{State: StateTranslated, Value: value}}
	if err := enc.Encode(unit); err != nil {
		return fmt.Errorf("encoding %q/%s: %w", key, locale, err)
	}

	if e.localizations == nil {
		e.localizations = newObject()
	}
	e.localizations.set(locale, bytes.TrimSpace(buf.Bytes()))
	return nil
}

// ---------------------------------------------------------------------------
// Serialization
// ---------------------------------------------------------------------------

// Marshal produces the catalog as 2-space indented JSON with a trailing
// newline.
func (c *Catalog) Marshal() ([]byte, error) {
	var strs bytes.Buffer
	strs.WriteByte('{')
	for i, k := range c.keys {
		if i > 0 {
			strs.WriteByte(',')
		}
		if err := writeString(&strs, k); err != nil {
			return nil, err
		}
		strs.WriteByte(':')
		if err := c.entries[k].writeTo(&strs); err != nil {
			return nil, fmt.Errorf("entry %q: %w", k, err)
		}
	}
	strs.WriteByte('}')

	top := &object{keys: c.top.keys, values: make(map[string]json.RawMessage, len(c.top.values))}
	for k, v := range c.top.values {
		top.values[k] = v
	}
	top.values["strings"] = strs.Bytes()

	var compact bytes.Buffer
	if err := top.writeTo(&compact, false); err != nil {
		return nil, err
	}

	var out bytes.Buffer
	if err := json.Indent(&out, compact.Bytes(), "", "  "); err != nil {
		return nil, err
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}

func (e *Entry) writeTo(buf *bytes.Buffer) error {
	if e.localizations == nil {
		return e.fields.writeTo(buf, false)
	}

	var loc bytes.Buffer
	if err := e.localizations.writeTo(&loc, true); err != nil {
		return err
	}

	out := &object{keys: append([]string(nil), e.fields.keys...), values: make(map[string]json.RawMessage, len(e.fields.values)+1)}
	for k, v := range e.fields.values {
		out.values[k] = v
	}
	out.set("localizations", loc.Bytes())
	return out.writeTo(buf, false)
}

// WriteFile writes the catalog to path, replacing it atomically.
func (c *Catalog) WriteFile(path string) error {
	data, err := c.Marshal()
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
