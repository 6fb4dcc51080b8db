package cmd

import (
	"github.com/spf13/cobra"
)

var (
	// Version is set during build
	Version = "0.1.0-dev"

	configPath string

	rootCmd = &cobra.Command{
		Use:   "waylink",
		Short: "Waylink - mpv to remote Wayland session bridge",
		Long: `Waylink mirrors pointer position, clipboard contents and window-title
metadata between an mpv host session and a remote Wayland compositor.
It forwards the host's pointer through the wlr virtual pointer protocol,
keeps both selections in sync over ext-data-control, and derives the
media title from the remote session's fullscreen window.`,
		SilenceUsage: true,
	}
)

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.Version = Version
	rootCmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s\n" .Version}}`)

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file")

	rootCmd.AddCommand(runCmd)
}
