// Package commands adds the export subcommands to the PocketBase CLI.
package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"quotationdesk/services"
)

// NewExportCommand returns `export <id>`, which writes one quotation to a
// file. --out defaults to the generated filename in the current directory.
func NewExportCommand(exporter *services.Exporter) *cobra.Command {
	var format, out string
	var sets []string

	cmd := &cobra.Command{
		Use:   "export <quotation-id>",
		Short: "Export one quotation to pdf, xlsx, png, jpg or webp",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := parseSets(sets)
			if err != nil {
				return err
			}
			res, err := exporter.Export(cmd.Context(), services.ExportRequest{
				QuotationID: args[0],
				Format:      format,
				Settings:    raw,
			})
			if err != nil {
				return err
			}

			path := out
			if path == "" {
				path = res.Artifact.Filename
			}
			if err := os.WriteFile(path, res.Artifact.Data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", path, err)
			}

			w := cmd.OutOrStdout()
			for _, warning := range res.Warnings {
				color.New(color.FgYellow).Fprintf(w, "warning: %s\n", warning)
			}
			color.New(color.FgGreen).Fprintf(w, "%s ", "✓")
			fmt.Fprintf(w, "%s (%s)\n", path, humanize.Bytes(uint64(res.Artifact.Size())))
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", services.FormatPDF, "output format")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default: generated name)")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "export setting as key=value, repeatable")
	return cmd
}

// NewExportBatchCommand returns `export-batch <id>...`, which writes a zip
// archive with one entry per quotation and prints progress as it goes.
func NewExportBatchCommand(batch *services.BatchExporter) *cobra.Command {
	var format, out string
	var sets []string

	cmd := &cobra.Command{
		Use:   "export-batch <quotation-id>...",
		Short: "Export several quotations into one zip archive",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := parseSets(sets)
			if err != nil {
				return err
			}
			if out == "" {
				out = "quotations-" + strings.ToLower(format) + ".zip"
			}

			f, err := createTemp(out)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			report, err := batch.Run(cmd.Context(), f, services.BatchRequest{
				IDs:      args,
				Format:   format,
				Settings: raw,
			}, func(p services.BatchProgress) {
				fmt.Fprintf(w, "[%d/%d] %s\n", p.Completed, p.Total, p.Current)
			})
			size, err := commitTemp(f, out, err)
			if err != nil {
				return err
			}

			for _, it := range report.Items {
				if !it.OK {
					color.New(color.FgRed).Fprintf(w, "failed %s: %s\n", it.QuotationID, it.Error)
				}
			}
			c := color.New(color.FgGreen)
			if report.Failed() > 0 {
				c = color.New(color.FgYellow)
			}
			c.Fprintf(w, "%d succeeded, %d failed", report.Succeeded(), report.Failed())
			fmt.Fprintf(w, " -> %s (%s)\n", out, humanize.Bytes(uint64(size)))
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", services.FormatPDF, "output format")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output archive (default: quotations-<format>.zip)")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "export setting as key=value, repeatable")
	return cmd
}

// parseSets turns repeated key=value flags into a raw settings map. Values
// stay strings; the settings resolver coerces them.
func parseSets(sets []string) (map[string]any, error) {
	raw := make(map[string]any, len(sets))
	for _, s := range sets {
		k, v, ok := strings.Cut(s, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("--set %q: want key=value", s)
		}
		raw[k] = v
	}
	return raw, nil
}

// createTemp opens a hidden temp file next to path, so the archive can be
// streamed to disk and renamed into place once complete.
func createTemp(path string) (*os.File, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", dir, err)
	}
	f, err := os.CreateTemp(dir, ".quotations-*.zip")
	if err != nil {
		return nil, fmt.Errorf("create temp archive in %s: %w", dir, err)
	}
	return f, nil
}

// commitTemp closes f and renames it to path when runErr is nil. On any
// failure the temp file is removed and nothing is left at path.
func commitTemp(f *os.File, path string, runErr error) (int64, error) {
	tmp := f.Name()
	var size int64
	err := runErr
	if err == nil {
		var info os.FileInfo
		if info, err = f.Stat(); err == nil {
			size = info.Size()
		}
	}
	if cerr := f.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("write %s: %w", path, cerr)
	}
	if err == nil {
		if err = os.Chmod(tmp, 0o644); err == nil {
			err = os.Rename(tmp, path)
		}
	}
	if err != nil {
		os.Remove(tmp)
		return 0, err
	}
	return size, nil
}
