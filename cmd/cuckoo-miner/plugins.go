package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"cuckoominer/pkg/mining/discovery"
	"cuckoominer/pkg/mining/factory"
)

func newPluginsCommand(opts *rootOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:     "plugins",
		Short:   "list installed engines and which one the current sizeshift selects",
		Example: "cuckoo-miner plugins --sizeshift 30",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer logger.Sync()

			params, err := cfg.Params()
			if err != nil {
				return err
			}
			baseDir, err := resolveBaseDir(cfg)
			if err != nil {
				return err
			}

			f := factory.NewEngineFactory(cfg.Selection(), discovery.NewDirHost(logger), factory.WithLogger(logger))
			dir := filepath.Join(baseDir, cfg.PluginSubdir)
			if err := f.Registry().Scan(dir); err != nil {
				logger.Warn("plugin scan failed", zap.String("dir", dir), zap.Error(err))
			}
			report := f.GetDetectionReport(params)

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}

			fmt.Fprintln(out, titleStyle.Render("Plugins in "+dir))
			if len(report.Plugins) == 0 {
				fmt.Fprintln(out, dimStyle.Render("no engines installed"))
			} else {
				fmt.Fprintln(out, renderTable([]string{"", "Tag", "Name", "Version", "Path"}, pluginRows(report)))
			}

			fmt.Fprintln(out, titleStyle.Render("Engines for "+report.Tag))
			fmt.Fprintln(out, renderTable([]string{"Priority", "Kind", "Available", "Description", "Reason"}, engineRows(report)))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the detection report as JSON")
	return cmd
}

// pluginRows lists discovered plugins, marking the one selection would pick
func pluginRows(report *factory.DetectionReport) [][]string {
	rows := make([][]string, 0, len(report.Plugins))
	marked := false
	for _, p := range report.Plugins {
		mark := ""
		if !marked && p.Tag == report.Tag {
			mark = okStyle.Render("*")
			marked = true
		}
		rows = append(rows, []string{mark, p.Tag, p.Name, p.Version, p.Path})
	}
	return rows
}

func engineRows(report *factory.DetectionReport) [][]string {
	rows := make([][]string, 0, len(report.Engines))
	for _, e := range report.Engines {
		priority := "-"
		if e.Priority != factory.UnrankedPriority {
			priority = strconv.Itoa(e.Priority + 1)
		}
		available := errorStyle.Render("no")
		if e.Available {
			available = okStyle.Render("yes")
		}
		rows = append(rows, []string{priority, e.Kind, available, e.Description, e.Reason})
	}
	return rows
}
