package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"spool/internal/config"
	"spool/internal/deps"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "doctor",
		Short:       "Verify binaries, configuration, and directories",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			healthy := true

			for _, line := range renderSectionHeader("Configuration", colorize) {
				fmt.Fprintln(out, line)
			}
			var path string
			if ctx.configFlag != nil {
				path = strings.TrimSpace(*ctx.configFlag)
			}
			cfg, cfgPath, exists, err := config.Load(path)
			if err != nil {
				fmt.Fprintln(out, renderStatusLine("Config", statusError, err.Error(), colorize))
				healthy = false
			} else {
				msg := cfgPath
				if !exists {
					msg = "using defaults (no config file found)"
				}
				fmt.Fprintln(out, renderStatusLine("Config", statusOK, msg, colorize))
				fmt.Fprintln(out, renderStatusLine("Playlist URL", statusOK, cfg.Playlist.URL, colorize))
			}
			fmt.Fprintln(out)

			if cfg != nil {
				for _, line := range renderSectionHeader("Directories", colorize) {
					fmt.Fprintln(out, line)
				}
				if !checkDirectories(out, cfg, colorize) {
					healthy = false
				}
				fmt.Fprintln(out)

				for _, line := range renderSectionHeader("Binaries", colorize) {
					fmt.Fprintln(out, line)
				}
				statuses := deps.CheckBinaries(cmd.Context(), deps.Requirements(cfg))
				for _, status := range statuses {
					if !renderDependency(out, status, colorize) {
						healthy = false
					}
				}
				fmt.Fprintln(out)
			}

			if !healthy {
				return errors.New("setup problems found")
			}
			fmt.Fprintln(out, "All checks passed")
			return nil
		},
	}
}

func checkDirectories(out io.Writer, cfg *config.Config, colorize bool) bool {
	ok := true
	if err := cfg.EnsureDirectories(); err != nil {
		fmt.Fprintln(out, renderStatusLine("Create", statusError, err.Error(), colorize))
		return false
	}
	for label, dir := range map[string]string{
		"Downloads": cfg.Paths.DownloadDir,
		"State":     cfg.Paths.StateDir,
		"Logs":      cfg.Paths.LogDir,
	} {
		if err := checkWritable(dir); err != nil {
			fmt.Fprintln(out, renderStatusLine(label, statusError, err.Error(), colorize))
			ok = false
			continue
		}
		fmt.Fprintln(out, renderStatusLine(label, statusOK, dir, colorize))
	}
	return ok
}

func checkWritable(dir string) error {
	probe, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		return fmt.Errorf("directory %s is not writable", dir)
	}
	name := probe.Name()
	_ = probe.Close()
	_ = os.Remove(filepath.Clean(name))
	return nil
}

func renderDependency(out io.Writer, status deps.Status, colorize bool) bool {
	switch {
	case status.Available:
		msg := status.Command
		if status.Version != "" {
			msg = fmt.Sprintf("%s (%s)", status.Command, status.Version)
		}
		fmt.Fprintln(out, renderStatusLine(status.Name, statusOK, msg, colorize))
		return true
	case status.Optional:
		fmt.Fprintln(out, renderStatusLine(status.Name, statusWarn, status.Detail+" (optional)", colorize))
		return true
	default:
		fmt.Fprintln(out, renderStatusLine(status.Name, statusError, status.Detail, colorize))
		return false
	}
}
