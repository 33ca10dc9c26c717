package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/kaigraph/devgraph/internal/effect"
	"github.com/kaigraph/devgraph/orchestrator"
	"github.com/kaigraph/devgraph/remotefetch"
	"github.com/kaigraph/devgraph/router"
	"github.com/kaigraph/devgraph/subgraph"
	"github.com/kaigraph/devgraph/supergraphconfig"
)

var devFlags struct {
	graphRef         string
	supergraphConfig string
	name             string
	url              string
	sdl              string
	fedVersion       string
	supergraphVer    string
	routerVer        string
	routerConfig     string
	listenAddr       string
	tracing          bool
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the devgraph version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("devgraph %s\n", orchestrator.Version)
	},
}

var devCmd = &cobra.Command{
	Use:   "dev",
	Short: "Run a local supergraph against your subgraphs, recomposing on every change",
	RunE:  runDev,
}

func init() {
	devCmd.Flags().StringVar(&devFlags.graphRef, "graph-ref", "", "registry graph ref (name@variant) to seed remote subgraphs from")
	devCmd.Flags().StringVar(&devFlags.supergraphConfig, "supergraph-config", "", "path to the local supergraph YAML config; empty reads from stdin")
	devCmd.Flags().StringVar(&devFlags.name, "name", "", "name of the default subgraph, if the merged set is empty")
	devCmd.Flags().StringVar(&devFlags.url, "url", "", "routing URL of the default subgraph, if the merged set is empty")
	devCmd.Flags().StringVar(&devFlags.sdl, "sdl", "", "inline SDL for the default subgraph, instead of introspecting --url")
	devCmd.Flags().StringVar(&devFlags.fedVersion, "federation-version", "", "explicit federation version, e.g. 2 or =2.7.1")
	devCmd.Flags().StringVar(&devFlags.supergraphVer, "supergraph-version", "latest-2", "supergraph composition binary version to install")
	devCmd.Flags().StringVar(&devFlags.routerVer, "router-version", "latest", "router binary version to install")
	devCmd.Flags().StringVar(&devFlags.routerConfig, "router-config", "", "path to a local router YAML config to layer overrides onto")
	devCmd.Flags().StringVar(&devFlags.listenAddr, "supergraph-port", "", "router listen address override, host:port")
	devCmd.Flags().BoolVar(&devFlags.tracing, "tracing", false, "enable OpenTelemetry tracing")
}

func runDev(cmd *cobra.Command, args []string) error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	var graphRef *effect.GraphRef
	if devFlags.graphRef != "" {
		parsed, err := subgraph.ParseGraphRef(devFlags.graphRef)
		if err != nil {
			return fmt.Errorf("invalid --graph-ref: %w", err)
		}
		graphRef = &parsed
	}

	var targetFedVersion *supergraphconfig.FederationVersion
	if devFlags.fedVersion != "" {
		parsed, err := supergraphconfig.ParseFederationVersion(devFlags.fedVersion)
		if err != nil {
			return fmt.Errorf("invalid --federation-version: %w", err)
		}
		targetFedVersion = &parsed
	}

	defaultSubgraph := supergraphconfig.DefaultSubgraphOptions{
		IsTTY: isTerminal(os.Stdin),
	}
	if devFlags.name != "" || devFlags.url != "" {
		defaultSubgraph.CLI = &supergraphconfig.DefaultSubgraph{
			Name: devFlags.name,
			URL:  devFlags.url,
			SDL:  devFlags.sdl,
		}
	}

	var addr *router.Address
	if devFlags.listenAddr != "" {
		host, portText, err := net.SplitHostPort(devFlags.listenAddr)
		if err != nil {
			return fmt.Errorf("invalid --supergraph-port %q: %w", devFlags.listenAddr, err)
		}
		port, err := strconv.Atoi(portText)
		if err != nil {
			return fmt.Errorf("invalid --supergraph-port %q: %w", devFlags.listenAddr, err)
		}
		addr = &router.Address{Host: host, Port: port}
	}

	opts := orchestrator.Options{
		GraphRef:                graphRef,
		ConfigPath:              devFlags.supergraphConfig,
		Stdin:                   os.Stdin,
		TargetFederationVersion: targetFedVersion,
		DefaultSubgraph:         defaultSubgraph,

		// An empty in-process registry stands in for a real registry client,
		// which stays outside this tool's scope entirely; --graph-ref only
		// resolves remote subgraphs once something else has called
		// Fetcher.(*remotefetch.Registry).Register, e.g. via RunRegistryServer.
		Fetcher:      remotefetch.NewRegistry(),
		Introspector: remotefetch.NewHTTPIntrospector(),
		Installer:    notImplementedInstaller{},
		APIKeys:      nil,

		SupergraphBinaryVersion: devFlags.supergraphVer,
		RouterBinaryVersion:     devFlags.routerVer,
		RouterConfigPath:        devFlags.routerConfig,
		RouterAddr:              addr,

		TracingEnabled: devFlags.tracing,
		Logger:         logger,
	}

	return orchestrator.Run(cmd.Context(), opts)
}

// notImplementedInstaller is the CLI's placeholder effect.BinaryInstaller:
// the actual download/checksum/cache machinery stays the caller's
// responsibility. A real devgraph distribution would wire this to its own
// release-channel downloader.
type notImplementedInstaller struct{}

func (notImplementedInstaller) Install(ctx context.Context, binary, version string) (string, error) {
	return "", fmt.Errorf("no binary installer configured for %s@%s", binary, version)
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

func main() {
	rootCmd := &cobra.Command{Use: "devgraph"}
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(devCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
