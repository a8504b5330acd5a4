package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/muurk/incidentdesk/internal/config"
	"github.com/muurk/incidentdesk/internal/discovery"
	"github.com/muurk/incidentdesk/internal/hashstate"
	"github.com/muurk/incidentdesk/internal/logging"
	"github.com/muurk/incidentdesk/internal/modal"
	"github.com/muurk/incidentdesk/internal/server"
	"github.com/muurk/incidentdesk/internal/service"
	"github.com/muurk/incidentdesk/internal/session"
	"github.com/muurk/incidentdesk/internal/tui"
	"github.com/muurk/incidentdesk/internal/ui"
)

// Command flags
var (
	scanTimeout int
	advertise   bool
	forceInit   bool
	routeSettle time.Duration
)

func init() {
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(routeCmd)
	rootCmd.AddCommand(bridgeCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(listCmd)

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}

// runtimeEnv is everything the commands share once settings are resolved.
type runtimeEnv struct {
	registry *config.Registry
	settings config.Settings
	hash     *hashstate.State
	router   *modal.Router
}

func loadEnv() (*runtimeEnv, error) {
	reg, err := config.LoadRegistry()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	overrides, err := config.ParseEnv()
	if err != nil {
		return nil, err
	}
	settings := config.Resolve(reg, overrides)
	if apiURL != "" {
		settings.APIBaseURL = apiURL
	}
	if bridgeAddr != "" {
		settings.BridgeAddr = bridgeAddr
	}

	initial := ""
	if settings.RestoreFragment {
		initial = reg.LastFragment
	}

	router := modal.New(
		modal.WithCloseGrace(settings.CloseGrace),
		modal.WithReplaceGrace(settings.ReplaceGrace),
		modal.WithKnown(tui.KnownModals...),
	)

	return &runtimeEnv{
		registry: reg,
		settings: settings,
		hash:     hashstate.New(initial),
		router:   router,
	}, nil
}

// resolveBackend picks the backend URL: configured first, then mDNS when
// enabled, then the most recently seen backend.
func (e *runtimeEnv) resolveBackend(ctx context.Context) string {
	if e.settings.APIBaseURL != "" {
		return e.settings.APIBaseURL
	}

	if discover || e.settings.AutoDiscover {
		scanner := discovery.NewScanner()
		scanner.Timeout = e.settings.DiscoverTimeout
		backend, err := scanner.FindFirst(ctx)
		if err == nil {
			url := backend.BaseURL()
			if err := service.NewClient(url).Ping(ctx); err != nil {
				logging.Warn("Discovered backend is not answering", zap.String("url", url), zap.Error(err))
			} else {
				e.registry.RecordBackend(backend.Instance, url, backend.Version())
				logging.Info("Discovered backend", zap.String("instance", backend.Instance), zap.String("url", url))
				return url
			}
		} else {
			logging.Debug("Backend discovery found nothing", zap.Error(err))
		}
	}

	if b := e.registry.MostRecentBackend(); b != nil {
		return b.URL
	}
	return ""
}

// saveOnExit records the current fragment so the next start can restore it.
func (e *runtimeEnv) saveOnExit() {
	e.router.Shutdown()
	e.registry.LastFragment = e.hash.Get()
	if err := e.registry.Save(); err != nil {
		logging.Warn("Failed to save config", zap.Error(err))
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runInteractive(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	env, err := loadEnv()
	if err != nil {
		return err
	}
	defer env.saveOnExit()

	baseURL := env.resolveBackend(ctx)
	client := service.NewClient(baseURL)
	store := session.NewRegistryStore(env.registry, nil)
	client.SetToken(store.Token())

	env.router.Bind(env.hash)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer cancel()
		return tui.Run(gctx, tui.Deps{
			Router:  env.router,
			Hash:    env.hash,
			Client:  client,
			Session: store,
			Backend: baseURL,
		})
	})

	if env.settings.BridgeAddr != "" {
		srv := server.New(&server.Config{Addr: env.settings.BridgeAddr}, env.hash, env.router)
		g.Go(func() error {
			return srv.Start(gctx)
		})
	}

	return g.Wait()
}

// scanCmd discovers backends on the network
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for incident backends on the network",
	Long: `Scan for incident backends using mDNS/DNS-SD discovery.

Backends advertise themselves as _incidentdesk._tcp. Every backend found is
remembered in the config file and used as a fallback when no --api is given.`,
	Example: `  # Scan for 5 seconds (default)
  incidentdesk scan

  # Longer scan for busy networks
  incidentdesk scan --timeout 15`,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().IntVar(&scanTimeout, "timeout", config.DefaultDiscoverTimeout, "Scan timeout in seconds")
}

func runScan(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	p := ui.NewPrinter(cmd.OutOrStdout())
	p.PrintHeader("Backend scan", "incidentdesk scan", map[string]string{
		"Service": discovery.ServiceType,
		"Timeout": fmt.Sprintf("%ds", scanTimeout),
	})

	scanner := discovery.NewScanner()
	scanner.Timeout = time.Duration(scanTimeout) * time.Second
	backends, err := scanner.Scan(ctx)
	if err != nil {
		p.PrintError("Scan failed", err, []string{
			"Check that multicast traffic is allowed on this network",
			"Pass --api to use a backend directly",
		})
		return fmt.Errorf("scan failed: %w", err)
	}

	if len(backends) == 0 {
		p.PrintWarning("No backends found", map[string]string{
			"Hint": "try a longer --timeout or pass --api",
		})
		return nil
	}

	reg, regErr := config.LoadRegistry()
	rows := make([][]string, 0, len(backends))
	for _, b := range backends {
		rows = append(rows, []string{b.Instance, b.BaseURL(), b.Version()})
		if regErr == nil {
			reg.RecordBackend(b.Instance, b.BaseURL(), b.Version())
		}
	}
	p.PrintTable([]string{"INSTANCE", "URL", "VERSION"}, rows)

	if regErr == nil {
		if err := reg.Save(); err != nil {
			logging.Warn("Failed to record backends", zap.Error(err))
		}
	}
	return nil
}

// routeCmd replays fragment changes through the router headlessly
var routeCmd = &cobra.Command{
	Use:   "route <fragment>...",
	Short: "Replay fragment changes and print the router transitions",
	Long: `Feed fragments to the modal router, one after another, and print every
{current, mounted} state it publishes.

Use "-" for an empty fragment, "@back" and "@forward" for history steps.
Fragments are applied as fast as possible; the router serialises them.`,
	Example: `  # Open signup, then replace it with signin, then close
  incidentdesk route signup signin -

  # Step back in history
  incidentdesk route signup settings:account @back`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRoute,
}

func init() {
	routeCmd.Flags().DurationVar(&routeSettle, "timeout", 10*time.Second, "Maximum time to wait for transitions to finish")
}

// transition is one published router state.
type transition struct {
	at    time.Duration
	state modal.State
}

// replay applies steps to a freshly bound router and returns every state it
// published, in order.
func replay(ctx context.Context, router *modal.Router, hash *hashstate.State, steps []string) ([]transition, error) {
	var (
		mu    sync.Mutex
		trace []transition
	)
	start := time.Now()
	unsubscribe := router.Subscribe(func(s modal.State) {
		mu.Lock()
		trace = append(trace, transition{at: time.Since(start), state: s})
		mu.Unlock()
	})
	defer unsubscribe()

	router.Bind(hash)
	for _, step := range steps {
		switch step {
		case "@back":
			hash.Back()
		case "@forward":
			hash.Forward()
		case "-":
			hash.Set("")
		default:
			hash.Set(step)
		}
	}

	if err := router.Settle(ctx); err != nil {
		return nil, fmt.Errorf("router did not settle: %w", err)
	}

	mu.Lock()
	defer mu.Unlock()
	return append([]transition(nil), trace...), nil
}

func runRoute(cmd *cobra.Command, args []string) error {
	env, err := loadEnv()
	if err != nil {
		return err
	}
	defer env.router.Shutdown()

	// replays start from a clean slate, not the restored fragment
	env.hash = hashstate.New("")

	ctx, cancel := context.WithTimeout(context.Background(), routeSettle)
	defer cancel()

	trace, err := replay(ctx, env.router, env.hash, args)
	if err != nil {
		return err
	}

	p := ui.NewPrinter(cmd.OutOrStdout())
	rows := make([][]string, 0, len(trace))
	for _, t := range trace {
		rows = append(rows, []string{
			t.at.Round(time.Millisecond).String(),
			orDash(t.state.Current.String()),
			orDash(t.state.Mounted.String()),
		})
	}
	p.PrintTable([]string{"AT", "CURRENT", "MOUNTED"}, rows)
	p.Newline()
	p.Printf("final fragment: #%s\n", env.hash.Get())
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// bridgeCmd runs the hash bridge without the interactive interface
var bridgeCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Serve the hash bridge without the interactive interface",
	Long: `Start the hash bridge on its own. Browser tabs that load the bridge page
share one fragment: changing location.hash in one tab changes it in all of
them, and the modal router follows along.

GET /state shows the router's current and mounted modal.`,
	Example: `  # Serve on the default address
  incidentdesk bridge

  # Serve on all interfaces and advertise over mDNS
  incidentdesk bridge --bridge 0.0.0.0:7420 --advertise`,
	RunE: runBridge,
}

func init() {
	bridgeCmd.Flags().BoolVar(&advertise, "advertise", false, "Advertise the bridge over mDNS")
}

func runBridge(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	env, err := loadEnv()
	if err != nil {
		return err
	}
	defer env.saveOnExit()

	addr := env.settings.BridgeAddr
	if addr == "" {
		addr = config.DefaultBridgeAddr
	}

	env.router.Bind(env.hash)
	hostname, _ := os.Hostname()
	srv := server.New(&server.Config{
		Addr:      addr,
		Advertise: advertise,
		Instance:  hostname,
	}, env.hash, env.router)

	p := ui.NewPrinter(cmd.OutOrStdout())
	p.PrintHeader("Hash bridge", "incidentdesk bridge", map[string]string{
		"Address":  addr,
		"Fragment": "#" + env.hash.Get(),
	})
	p.Println("Open http://" + addr + "/ in a browser. Press Ctrl+C to stop.")

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("bridge: %w", err)
	}
	return nil
}

// configCmd groups config file commands
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or create the config file",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := loadEnv()
		if err != nil {
			return err
		}
		defer env.router.Shutdown()

		path, _ := config.GetConfigPath()
		out := struct {
			Path     string          `yaml:"path"`
			Settings config.Settings `yaml:"settings"`
			Fragment string          `yaml:"last_fragment"`
			Account  string          `yaml:"account,omitempty"`
		}{
			Path:     path,
			Settings: env.settings,
			Fragment: env.registry.LastFragment,
		}
		if account, ok := session.NewRegistryStore(env.registry, nil).Current(); ok {
			out.Account = account.Username
		}

		data, err := yaml.Marshal(out)
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		fmt.Fprint(cmd.OutOrStdout(), string(data))
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.CreateDefaultConfig(forceInit)
		p := ui.NewPrinter(cmd.OutOrStdout())
		if err != nil {
			if errors.Is(err, os.ErrExist) || strings.Contains(err.Error(), "already exists") {
				p.PrintWarning("Config already exists", map[string]string{"Path": path, "Hint": "use --force to overwrite"})
				return nil
			}
			return err
		}
		p.PrintSuccess("Config written", map[string]string{"Path": path})
		return nil
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&forceInit, "force", false, "Overwrite an existing config file")
}

// listCmd prints backend resources
var listCmd = &cobra.Command{
	Use:       "list <categories|roles>",
	Short:     "List incident categories or roles on the backend",
	Example:   "  incidentdesk list categories --api http://localhost:8080",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"categories", "roles"},
	RunE:      runList,
}

func runList(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	env, err := loadEnv()
	if err != nil {
		return err
	}
	defer env.router.Shutdown()

	client := service.NewClient(env.resolveBackend(ctx))
	client.SetToken(session.NewRegistryStore(env.registry, nil).Token())

	headers, rows, err := listResource(ctx, client, args[0])
	if err != nil {
		return err
	}

	p := ui.NewPrinter(cmd.OutOrStdout())
	if len(rows) == 0 {
		p.PrintWarning("Nothing to list", map[string]string{"Resource": args[0]})
		return nil
	}
	p.PrintTable(headers, rows)
	return nil
}

// listResource fetches one resource kind and lays it out as table rows.
func listResource(ctx context.Context, client *service.Client, kind string) ([]string, [][]string, error) {
	switch kind {
	case "categories":
		res := client.Categories(ctx)
		if !res.IsOK() {
			return nil, nil, fmt.Errorf("list categories: %s", res.Message())
		}
		rows := make([][]string, 0, len(res.Value()))
		for _, c := range res.Value() {
			rows = append(rows, []string{c.ID, c.Name, c.Description})
		}
		return []string{"ID", "NAME", "DESCRIPTION"}, rows, nil

	case "roles":
		res := client.Roles(ctx)
		if !res.IsOK() {
			return nil, nil, fmt.Errorf("list roles: %s", res.Message())
		}
		rows := make([][]string, 0, len(res.Value()))
		for _, r := range res.Value() {
			rows = append(rows, []string{r.ID, r.Name, strings.Join(r.Permissions, ", ")})
		}
		return []string{"ID", "NAME", "PERMISSIONS"}, rows, nil

	default:
		return nil, nil, fmt.Errorf("unknown resource %q (want categories or roles)", kind)
	}
}
