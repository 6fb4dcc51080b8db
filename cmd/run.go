package cmd

import (
	"fmt"

	"github.com/bnema/waylink/internal/bridge"
	"github.com/bnema/waylink/internal/config"
	"github.com/bnema/waylink/internal/logger"
	"github.com/bnema/waylink/internal/mpv"
	"github.com/bnema/waylink/internal/sway"
	"github.com/bnema/waylink/internal/wayland"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var mpvSocket string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the bridge against an mpv instance",
	Long: `Run the bridge. The mpv instance must expose its JSON IPC socket and
carry the remote session parameters in its wayland-remote-* properties;
the remote compositor socket is connected from those.`,
	RunE: runBridge,
}

func init() {
	runCmd.Flags().StringVarP(&mpvSocket, "socket", "s", "", "Path to mpv's JSON IPC socket")

	// Bind flags to viper
	if err := viper.BindPFlag("mpv.socket_path", runCmd.Flags().Lookup("socket")); err != nil {
		panic(err)
	}
}

func runBridge(cmd *cobra.Command, args []string) error {
	if configPath != "" {
		config.SetConfigPath(configPath)
	}
	if err := config.Init(); err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}
	cfg := config.Get()

	if cfg.Logging.LogLevel != "" {
		logger.SetLevel(cfg.Logging.LogLevel)
	}

	socketPath := cfg.Mpv.SocketPath
	if mpvSocket != "" {
		socketPath = mpvSocket
	}

	host, err := mpv.Connect(socketPath)
	if err != nil {
		return err
	}
	defer host.Close()

	// The remote session parameters come from the host, not the
	// config file: they belong to the playing stream.
	displayName, err := host.GetString(mpv.PropRemoteDisplayName)
	if err != nil || displayName == "" {
		return fmt.Errorf("no remote display name set")
	}
	outputName, err := host.GetString(mpv.PropRemoteOutputName)
	if err != nil || outputName == "" {
		return fmt.Errorf("no remote output name set")
	}
	seatName, err := host.GetString(mpv.PropRemoteSeatName)
	if err != nil || seatName == "" {
		return fmt.Errorf("no remote seat name set")
	}
	swaySock, err := host.GetString(mpv.PropRemoteSwaysock)
	if err != nil || swaySock == "" {
		logger.Warn("No remote swaysock set, will not relay application pointer warps to the host")
		swaySock = ""
	}

	session, err := wayland.Connect(displayName)
	if err != nil {
		return err
	}

	var swayClient *sway.Client
	if swaySock != "" {
		swayClient, err = sway.Dial(swaySock)
		if err != nil {
			logger.Warnf("Compositor IPC connection failed, pointer warps won't be relayed: %v", err)
		}
	}

	b := bridge.New(host, session, swayClient, displayName, outputName, seatName)
	defer b.Shutdown()

	if err := b.Setup(); err != nil {
		return err
	}

	logger.Infof("Bridging mpv at %s to remote display %s (output %s, seat %s)",
		socketPath, displayName, outputName, seatName)

	return b.Run()
}
