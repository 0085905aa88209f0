// Package lockfile implements xcloc.lock, a journal of what xcloc wrote
// into a catalog. For every locale it keeps the MD5 of each value the tool
// wrote and the keys that were left as source text, so later runs and
// `xcloc status` can tell machine output from human edits.
//
// The journal is stored next to the output catalog as xcloc.lock.
package lockfile

import (
	"crypto/md5"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/minios-linux/xcloc/merge"
	"github.com/minios-linux/xcloc/xcstrings"
)

// LockFileName is the default journal file name.
const LockFileName = "xcloc.lock"

// Version is the journal format version.
const Version = 1

// ---------------------------------------------------------------------------
// Types
// ---------------------------------------------------------------------------

// LockFile represents the xcloc.lock file structure.
type LockFile struct {
	Version int `yaml:"version"`
	// RunID identifies the run that last wrote the journal.
	RunID string `yaml:"run_id,omitempty"`
	// Updated is when the journal was last written.
	Updated time.Time `yaml:"updated,omitempty"`
	// Locales holds one record per locale code.
	Locales map[string]*Record `yaml:"locales"`

	mu   sync.Mutex `yaml:"-"`
	path string     `yaml:"-"`
}

// Record is what the journal knows about one locale.
type Record struct {
	// RunID is the run that last wrote this locale.
	RunID string `yaml:"run_id"`
	// Checksums maps each key to the MD5 of the value written for it.
	Checksums map[string]string `yaml:"checksums"`
	// Fallbacks lists the keys whose written value is the source text.
	Fallbacks []string `yaml:"fallbacks,omitempty"`
}

func (r *Record) isFallback(key string) bool {
	i := sort.SearchStrings(r.Fallbacks, key)
	return i < len(r.Fallbacks) && r.Fallbacks[i] == key
}

// ---------------------------------------------------------------------------
// Loading and saving
// ---------------------------------------------------------------------------

// Load reads the journal from the given directory.
// Returns an empty journal if the file doesn't exist.
func Load(dir string) (*LockFile, error) {
	path := filepath.Join(dir, LockFileName)
	lf := &LockFile{
		Version: Version,
		Locales: make(map[string]*Record),
		path:    path,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return lf, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, lf); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	lf.path = path

	if lf.Locales == nil {
		lf.Locales = make(map[string]*Record)
	}
	for _, r := range lf.Locales {
		if r.Checksums == nil {
			r.Checksums = make(map[string]string)
		}
		sort.Strings(r.Fallbacks)
	}
	return lf, nil
}

// Save writes the journal to disk.
func (lf *LockFile) Save() error {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	if lf.path == "" {
		return fmt.Errorf("lock file path not set")
	}

	data, err := yaml.Marshal(lf)
	if err != nil {
		return fmt.Errorf("marshaling lock file: %w", err)
	}

	if err := os.WriteFile(lf.path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", lf.path, err)
	}
	return nil
}

// Path returns the journal path.
func (lf *LockFile) Path() string {
	return lf.path
}

// ---------------------------------------------------------------------------
// Recording
// ---------------------------------------------------------------------------

// Hash computes the MD5 hex digest of a string.
func Hash(s string) string {
	return fmt.Sprintf("%x", md5.Sum([]byte(s)))
}

// Record journals the values res wrote for its locale under runID. Keys
// recorded by earlier runs and not touched by res are kept.
func (lf *LockFile) Record(res *merge.Result, runID string) {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	rec := lf.Locales[res.Locale]
	if rec == nil {
		rec = &Record{Checksums: make(map[string]string)}
		lf.Locales[res.Locale] = rec
	}
	rec.RunID = runID
	lf.RunID = runID

	fallback := make(map[string]bool, len(res.FallbackKeys))
	for _, k := range res.FallbackKeys {
		fallback[k] = true
	}
	for _, k := range rec.Fallbacks {
		if _, touched := res.Translations[k]; !touched {
			fallback[k] = true
		}
	}

	for _, key := range res.Keys {
		rec.Checksums[key] = Hash(res.Translations[key])
	}

	rec.Fallbacks = rec.Fallbacks[:0]
	for k := range fallback {
		rec.Fallbacks = append(rec.Fallbacks, k)
	}
	sort.Strings(rec.Fallbacks)
	if len(rec.Fallbacks) == 0 {
		rec.Fallbacks = nil
	}
}

// Touch stamps the journal with the current time.
func (lf *LockFile) Touch(now time.Time) {
	lf.mu.Lock()
	defer lf.mu.Unlock()
	lf.Updated = now.UTC().Truncate(time.Second)
}

// Clean drops entries for keys that are no longer in the catalog.
func (lf *LockFile) Clean(currentKeys []string) {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	valid := make(map[string]bool, len(currentKeys))
	for _, k := range currentKeys {
		valid[k] = true
	}

	for _, rec := range lf.Locales {
		for k := range rec.Checksums {
			if !valid[k] {
				delete(rec.Checksums, k)
			}
		}
		kept := rec.Fallbacks[:0]
		for _, k := range rec.Fallbacks {
			if valid[k] {
				kept = append(kept, k)
			}
		}
		rec.Fallbacks = kept
		if len(rec.Fallbacks) == 0 {
			rec.Fallbacks = nil
		}
	}
}

// ---------------------------------------------------------------------------
// Status
// ---------------------------------------------------------------------------

// Status classifies the journaled keys of one locale against a catalog.
type Status struct {
	// Machine counts values still exactly as xcloc translated them.
	Machine int
	// Fallback counts values still holding the source text xcloc wrote.
	Fallback int
	// Edited counts values changed since xcloc wrote them.
	Edited int
	// EditedKeys lists those keys, sorted.
	EditedKeys []string
}

// Check compares what was journaled for locale with the catalog. Keys
// whose localization is gone are not counted.
func (lf *LockFile) Check(locale string, cat *xcstrings.Catalog) Status {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	var st Status
	rec := lf.Locales[locale]
	if rec == nil {
		return st
	}

	for key, sum := range rec.Checksums {
		e, ok := cat.Entry(key)
		if !ok {
			continue
		}
		loc, ok := e.Localization(locale)
		if !ok {
			continue
		}
		switch {
		case Hash(loc.Value) != sum:
			st.Edited++
			st.EditedKeys = append(st.EditedKeys, key)
		case rec.isFallback(key):
			st.Fallback++
		default:
			st.Machine++
		}
	}
	sort.Strings(st.EditedKeys)
	return st
}

// ---------------------------------------------------------------------------
// Stats
// ---------------------------------------------------------------------------

// Stats returns the number of locales and total keys in the journal.
func (lf *LockFile) Stats() (locales, keys int) {
	lf.mu.Lock()
	defer lf.mu.Unlock()
	return lf.stats()
}

func (lf *LockFile) stats() (locales, keys int) {
	locales = len(lf.Locales)
	for _, r := range lf.Locales {
		keys += len(r.Checksums)
	}
	return
}

// LocaleCodes returns the sorted locale codes in the journal.
func (lf *LockFile) LocaleCodes() []string {
	lf.mu.Lock()
	defer lf.mu.Unlock()
	return lf.localeCodes()
}

func (lf *LockFile) localeCodes() []string {
	codes := make([]string, 0, len(lf.Locales))
	for c := range lf.Locales {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}

// Summary returns a human-readable summary string.
func (lf *LockFile) Summary() string {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	locales, keys := lf.stats()
	if locales == 0 {
		return "empty"
	}

	var parts []string
	for _, c := range lf.localeCodes() {
		parts = append(parts, fmt.Sprintf("%s: %d", c, len(lf.Locales[c].Checksums)))
	}
	return fmt.Sprintf("%d locales, %d keys (%s)", locales, keys, strings.Join(parts, ", "))
}
