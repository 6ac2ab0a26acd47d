package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mcpd/mcpd-bridge/internal/bridge"
	"github.com/mcpd/mcpd-bridge/internal/config"
	"github.com/mcpd/mcpd-bridge/internal/discover"
	"github.com/mcpd/mcpd-bridge/internal/logx"
)

var appVersion = "dev"

func SetVersion(v string) {
	appVersion = v
}

var (
	flagHost      string
	flagPort      int
	flagPath      string
	flagDiscover  bool
	flagAuthToken string
	flagTimeout   int
	flagConfig    string
	flagLogLevel  string
)

var rootCmd = &cobra.Command{
	Use:   "mcpd-bridge",
	Short: "stdio to Streamable HTTP bridge for mcpd devices",
	Long: `mcpd-bridge translates the MCP stdio transport (used by Claude Desktop
and similar clients) to the Streamable HTTP transport served by mcpd on a
microcontroller. It reads one JSON-RPC message per stdin line, forwards it
to the device over HTTP, and writes each reply back as one stdout line.

Examples:
  # Bridge to a device by hostname
  mcpd-bridge --host my-device.local

  # Bridge to the first device found via mDNS
  mcpd-bridge --discover

  # Authenticated device on a non-default port and path
  mcpd-bridge --host 192.168.1.40 --port 8080 --path /mcp --auth-token $TOKEN

Claude Desktop config (claude_desktop_config.json):
  {
      "mcpServers": {
          "my-device": {
              "command": "mcpd-bridge",
              "args": ["--host", "my-device.local"]
          }
      }
  }`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runBridge,
}

func init() {
	f := rootCmd.Flags()
	f.StringVar(&flagHost, "host", "", "device hostname or IP (e.g. my-device.local)")
	f.IntVar(&flagPort, "port", 80, "HTTP port")
	f.StringVar(&flagPath, "path", "/mcp", "MCP endpoint path")
	f.BoolVar(&flagDiscover, "discover", false, "find the device via mDNS instead of --host")
	f.StringVar(&flagAuthToken, "auth-token", "", "bearer token for devices with auth enabled")
	f.IntVar(&flagTimeout, "timeout", 30, "per-request timeout in seconds")
	f.StringVar(&flagConfig, "config", "", "YAML config file (default ~/"+config.DefaultFileName+")")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn, error, none")

	rootCmd.AddCommand(discoverCmd)
	rootCmd.SetVersionTemplate(fmt.Sprintf("mcpd-bridge v%s\n", appVersion))
}

func Execute() error {
	rootCmd.Version = appVersion
	return rootCmd.Execute()
}

func runBridge(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	logx.Configure(cfg.LogLevel)

	ep, err := resolveEndpoint(cmd, cfg)
	if err != nil {
		return err
	}

	session := bridge.NewSession()
	fwd := bridge.NewForwarder(ep, cfg.AuthToken, time.Duration(cfg.TimeoutSeconds)*time.Second, session)
	b := bridge.New(fwd)

	logx.Log.Info().Str("url", ep.URL()).Msg("bridge started")
	if err := b.Run(cmd.Context(), os.Stdin, os.Stdout); err != nil {
		return err
	}
	logx.Log.Info().Msg("stdin closed, bridge exiting")
	return nil
}

// resolveConfig layers defaults, the optional config file, and any flags the
// operator actually set.
func resolveConfig(cmd *cobra.Command) (config.Config, error) {
	path := flagConfig
	explicit := path != ""
	if !explicit {
		path = config.DefaultPath()
	}

	cfg := config.Default()
	if path != "" {
		fileCfg, err := config.Load(path, explicit)
		if err != nil {
			return cfg, err
		}
		cfg = cfg.Merge(fileCfg)
	}

	f := cmd.Flags()
	if f.Changed("host") {
		cfg.Host = flagHost
	}
	if f.Changed("port") {
		cfg.Port = flagPort
	}
	if f.Changed("path") {
		cfg.Path = flagPath
	}
	if f.Changed("auth-token") {
		cfg.AuthToken = flagAuthToken
	}
	if f.Changed("timeout") {
		cfg.TimeoutSeconds = flagTimeout
	}
	if f.Changed("log-level") {
		cfg.LogLevel = flagLogLevel
	}
	return cfg, nil
}

// resolveEndpoint fixes the target address for the lifetime of the process,
// either from configuration or from a single bounded mDNS probe. The bridge
// must not enter the main loop without one.
func resolveEndpoint(cmd *cobra.Command, cfg config.Config) (bridge.Endpoint, error) {
	if !flagDiscover {
		if cfg.Host == "" {
			return bridge.Endpoint{}, fmt.Errorf("either --host or --discover is required")
		}
		return bridge.Endpoint{Host: cfg.Host, Port: cfg.Port, Path: cfg.Path}, nil
	}

	svc, err := discover.First(cmd.Context(), 5*time.Second, 100*time.Millisecond)
	if err != nil {
		return bridge.Endpoint{}, fmt.Errorf("mDNS discovery failed: %w", err)
	}
	if svc.Version != "" {
		logx.Log.Info().Str("version", svc.Version).Msg("device protocol version")
	}
	return endpointFromService(svc, cfg, cmd.Flags().Changed("path")), nil
}

// endpointFromService combines a discovered advertisement with the
// configured settings. Devices advertise their endpoint path in a TXT
// record; honor it unless the operator pinned one.
func endpointFromService(svc *discover.Service, cfg config.Config, pathPinned bool) bridge.Endpoint {
	ep := bridge.Endpoint{Host: svc.Host, Port: svc.Port, Path: cfg.Path}
	if svc.Path != "" && !pathPinned {
		ep.Path = svc.Path
	}
	return ep
}
