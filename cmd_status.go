package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/minios-linux/xcloc/config"
	"github.com/minios-linux/xcloc/i18n"
	"github.com/minios-linux/xcloc/langtable"
	"github.com/minios-linux/xcloc/lockfile"
	"github.com/minios-linux/xcloc/xcstrings"
)

// ---------------------------------------------------------------------------
// status (read-only: catalog info + per-language coverage)
// ---------------------------------------------------------------------------

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status [catalog]",
		Short: "Show per-language coverage of a catalog",
		Long: `Show the strings of a catalog and, for every target language and every
language already present in it, how many strings are localized.

When an xcloc.lock journal sits next to the catalog, also show how many
values are still as xcloc wrote them, how many hold the source text because
translation failed, and how many were edited since. Does not modify any files.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var input string
			if len(args) > 0 {
				input = args[0]
			}
			return runStatus(input)
		},
	}
}

// statusRow is one line of the coverage table.
type statusRow struct {
	locale           langtable.Locale
	total, localized int
}

func runStatus(inputArg string) error {
	proj, err := config.Detect(rootDir)
	if err != nil {
		return err
	}
	input, err := proj.Input(inputArg)
	if err != nil {
		return err
	}
	cat, err := xcstrings.ParseFile(input)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "\n%s\n", blue(i18n.T("Catalog")))
	fmt.Fprintln(os.Stderr, strings.Repeat("─", 60))
	fmt.Fprintf(os.Stderr, "  File:       %s\n", input)
	fmt.Fprintf(os.Stderr, "  Source:     %s\n", cat.SourceLanguage())
	fmt.Fprintf(os.Stderr, "  Strings:    %d\n", len(cat.ValidKeys()))
	if len(proj.Catalogs) > 1 {
		fmt.Fprintf(os.Stderr, "  Catalogs:   %d found below %s\n", len(proj.Catalogs), proj.Root)
	}
	fmt.Fprintln(os.Stderr)

	rows := statusRows(cat, proj.File.Locales())
	if len(rows) == 0 {
		logInfo(i18n.T("No target languages"))
		return nil
	}

	lf, err := lockfile.Load(filepath.Dir(input))
	if err != nil {
		logWarning("%v", err)
		lf = nil
	}
	journal := lf != nil && len(lf.Locales) > 0

	codes := make([]string, len(rows))
	for i, r := range rows {
		codes[i] = r.locale.Code
	}
	width := max(langColumnWidth(codes), len("Lang"))

	fmt.Fprintf(os.Stderr, "%s\n", blue(i18n.T("Translation Statistics")))
	fmt.Fprintln(os.Stderr, strings.Repeat("─", 60))
	header := fmt.Sprintf("   %-*s %-10s %-8s %-16s", width, "Lang", "Localized", "Pending", "Coverage")
	if journal {
		header += fmt.Sprintf(" %-8s %-9s %-7s", "Machine", "Fallback", "Edited")
	}
	fmt.Fprintf(os.Stderr, "\n%s\n", header)
	fmt.Fprintln(os.Stderr, strings.Repeat("─", len(header)))

	pendingTotal, incomplete := 0, 0
	var edited []string
	for _, r := range rows {
		pending := r.total - r.localized
		pendingTotal += pending
		if pending > 0 {
			incomplete++
		}
		percent := 100
		if r.total > 0 {
			percent = r.localized * 100 / r.total
		}
		line := fmt.Sprintf("%s %-10d %-8d %s", langCell(r.locale.Code, width), r.localized, pending, progressBar(percent, 10))
		if journal {
			st := lf.Check(r.locale.Code, cat)
			line += fmt.Sprintf(" %-8d %-9d %-7d", st.Machine, st.Fallback, st.Edited)
			for _, k := range st.EditedKeys {
				edited = append(edited, r.locale.Code+": "+k)
			}
		}
		fmt.Fprintln(os.Stderr, line)
	}
	fmt.Fprintln(os.Stderr, strings.Repeat("─", len(header)))
	fmt.Fprintf(os.Stderr, "Total strings: %d\n\n", len(cat.ValidKeys()))

	if journal {
		logInfo("Journal: %s (%s, last run %s)", lf.Path(), lf.Summary(), lf.RunID)
		if len(edited) > 0 {
			logInfo(i18n.T("Edited since translated:"))
			for _, e := range edited {
				fmt.Fprintf(os.Stderr, "  %s\n", e)
			}
		}
	}

	if pendingTotal == 0 {
		logSuccess(i18n.T("All translations are complete!"))
		return nil
	}
	logInfo(i18n.T("%d strings pending in %d languages"), pendingTotal, incomplete)
	fmt.Fprintf(os.Stderr, "\n  xcloc translate %s\n\n", proj.Rel(input))
	return nil
}

// statusRows lists the table locales followed by any other locale the
// catalog already holds, except the source language.
func statusRows(cat *xcstrings.Catalog, table []langtable.Locale) []statusRow {
	src := cat.SourceLanguage()
	seen := make(map[string]bool)
	var locales []langtable.Locale
	for _, l := range table {
		if strings.EqualFold(l.Code, src) {
			continue
		}
		seen[l.Code] = true
		locales = append(locales, l)
	}
	for _, code := range cat.Locales() {
		if seen[code] || strings.EqualFold(code, src) {
			continue
		}
		l, err := langtable.Resolve(code)
		if err != nil {
			l = langtable.Locale{Code: code, Name: code}
		}
		l.Code = code
		seen[code] = true
		locales = append(locales, l)
	}

	rows := make([]statusRow, len(locales))
	for i, l := range locales {
		total, localized, _ := cat.Coverage(l.Code)
		rows[i] = statusRow{l, total, localized}
	}
	return rows
}
