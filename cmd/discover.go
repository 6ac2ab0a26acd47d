package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/mcpd/mcpd-bridge/internal/discover"
	"github.com/mcpd/mcpd-bridge/internal/logx"
)

var flagDiscoverWindow int

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "List mcpd devices advertising on the local network",
	Long: `Browse mDNS for _mcp._tcp advertisements and print every device seen
within the window, one per line: instance, address, port, endpoint path and
protocol version.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runDiscover,
}

func init() {
	discoverCmd.Flags().IntVar(&flagDiscoverWindow, "timeout", 5, "browse window in seconds")
}

func runDiscover(cmd *cobra.Command, args []string) error {
	logx.Configure(flagLogLevel)

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Duration(flagDiscoverWindow)*time.Second)
	defer cancel()

	p := &printListener{w: cmd.OutOrStdout()}
	if err := discover.Browse(ctx, p); err != nil {
		return err
	}
	if p.count == 0 {
		return fmt.Errorf("no %s services found within %ds", discover.ServiceType, flagDiscoverWindow)
	}
	return nil
}

// printListener writes one line per advertisement as it arrives.
type printListener struct {
	w     io.Writer
	count int
}

func (p *printListener) AddService(s discover.Service) {
	p.count++
	p.print(s)
}

func (p *printListener) UpdateService(s discover.Service) {
	p.print(s)
}

func (p *printListener) RemoveService(discover.Service) {}

func (p *printListener) print(s discover.Service) {
	path := s.Path
	if path == "" {
		path = "/mcp"
	}
	version := s.Version
	if version == "" {
		version = "-"
	}
	fmt.Fprintf(p.w, "%s\t%s:%d\t%s\t%s\n", s.Instance, s.Host, s.Port, path, version)
}
