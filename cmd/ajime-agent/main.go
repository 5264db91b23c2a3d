package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ajime-dev/ajime-agent/internal/alog"
	"github.com/ajime-dev/ajime-agent/internal/backend"
	"github.com/ajime-dev/ajime-agent/internal/config"
	"github.com/ajime-dev/ajime-agent/internal/diagserver"
	"github.com/ajime-dev/ajime-agent/internal/storage"
	"github.com/ajime-dev/ajime-agent/internal/supervisor"
	"github.com/ajime-dev/ajime-agent/internal/telemetry"
)

// Version information, set via ldflags during build.
var (
	Version   = "dev"
	GitHash   = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "ajime-agent",
	Short: "Ajime device agent",
	Long: `ajime-agent runs on edge devices, syncing workflows from the Ajime
backend, executing deployments, and relaying remote terminal/file/network
commands over a persistent WebSocket connection.`,
	Version: Version,
	RunE:    runAgent,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"ajime-agent version %s\nGit: %s\nBuilt: %s\n",
		Version, GitHash, BuildTime,
	))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().String("base-dir", storage.DefaultBaseDir, "Agent state directory")

	cobra.OnInitialize(initLogging)

	installCmd.Flags().String("token", "", "Activation token issued by the backend")
	installCmd.Flags().String("name", "", "Device name")
	installCmd.Flags().String("type", "generic", "Device type")
	installCmd.Flags().String("backend", "https://api.ajime.dev", "Backend base URL")
	_ = installCmd.MarkFlagRequired("token")
	_ = installCmd.MarkFlagRequired("name")

	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(diagnosticCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	alog.Init(alog.Config{
		Level:      alog.Level(logLevel),
		JSONOutput: logJSON,
	})
}

func layoutFromFlags(cmd *cobra.Command) storage.Layout {
	base, _ := cmd.Flags().GetString("base-dir")
	return storage.NewLayout(base)
}

// runAgent is the bare-run behavior: load settings, start every worker, and
// block until shutdown is requested or the non-persistent lifecycle expires.
func runAgent(cmd *cobra.Command, args []string) error {
	log := alog.WithComponent("main")
	layout := layoutFromFlags(cmd)

	opts, err := config.Load(layout)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	telemetry.SetVersion(Version)

	sup := supervisor.New(Version, opts, layout.Base)

	var diagServer supervisor.Stopper
	if opts.Settings.EnableSocketServer {
		addr := fmt.Sprintf("%s:%d", opts.Server.Host, opts.Server.Port)
		diagServer = diagserver.New(addr, layout, sup.State().Syncer, sup.State().Workflows, sup.State().Activity,
			diagserver.BuildInfo{Version: Version, GitHash: GitHash, BuildTime: BuildTime})
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sup.Start(ctx, diagServer)
	log.Info().Str("backend", opts.Settings.Backend.BaseURL).Msg("agent started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	shutdownSignal := make(chan struct{})
	go func() {
		<-sigCh
		log.Info().Msg("interrupt received")
		close(shutdownSignal)
	}()

	sup.AwaitLifecycle(ctx, shutdownSignal)
	cancel()
	sup.Shutdown()

	return nil
}

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Activate this device against the backend and persist its credentials",
	RunE: func(cmd *cobra.Command, args []string) error {
		layout := layoutFromFlags(cmd)
		if err := layout.EnsureDirs(); err != nil {
			return fmt.Errorf("create agent directories: %w", err)
		}

		token, _ := cmd.Flags().GetString("token")
		name, _ := cmd.Flags().GetString("name")
		deviceType, _ := cmd.Flags().GetString("type")
		backendURL, _ := cmd.Flags().GetString("backend")

		client := backend.New(backendURL)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		resp, err := client.ActivateDevice(ctx, token, name, deviceType)
		if err != nil {
			return fmt.Errorf("activate device: %w", err)
		}

		device := &storage.Device{
			ID:          resp.DeviceID,
			Name:        resp.DeviceName,
			OwnerID:     resp.OwnerID,
			Token:       resp.Token,
			DeviceType:  deviceType,
			ActivatedAt: time.Now(),
		}
		if err := device.Save(layout); err != nil {
			return fmt.Errorf("save device credentials: %w", err)
		}

		settings := storage.DefaultSettings()
		settings.Backend.BaseURL = backendURL
		if err := settings.Save(layout); err != nil {
			return fmt.Errorf("save settings: %w", err)
		}

		fmt.Printf("Device activated: %s (%s)\n", device.Name, device.ID)
		return nil
	},
}

var diagnosticCmd = &cobra.Command{
	Use:   "diagnostic",
	Short: "Check device credentials, settings, and backend connectivity",
	RunE: func(cmd *cobra.Command, args []string) error {
		layout := layoutFromFlags(cmd)
		runDiagnostic(layout)
		return nil
	},
}

func runDiagnostic(layout storage.Layout) {
	bold := color.New(color.Bold, color.FgCyan)
	ok := color.New(color.FgGreen).SprintFunc()
	warn := color.New(color.FgYellow).SprintFunc()
	failed := color.New(color.FgRed).SprintFunc()

	bold.Println("=== Ajime Agent Diagnostic ===")

	fmt.Print("Checking device credentials (device.json)... ")
	device, err := storage.LoadDevice(layout)
	if err != nil {
		fmt.Printf("%s (%v)\n", failed("FAILED"), err)
	} else {
		fmt.Println(ok("OK"))
	}

	fmt.Print("Checking agent settings (settings.json)... ")
	settings, err := storage.LoadSettings(layout)
	if err != nil {
		fmt.Printf("%s (%v)\n", failed("FAILED"), err)
		fmt.Println(warn("Cannot proceed with connectivity tests due to missing configuration."))
		bold.Println("==============================")
		return
	}
	fmt.Println(ok("OK"))

	if device == nil {
		fmt.Println(warn("Cannot proceed with connectivity tests due to missing configuration."))
		bold.Println("==============================")
		return
	}

	fmt.Printf("Backend URL: %s\n", settings.Backend.BaseURL)

	fmt.Print("Testing backend reachability... ")
	httpClient := &http.Client{Timeout: 10 * time.Second}
	resp, err := httpClient.Get(settings.Backend.BaseURL)
	switch {
	case err != nil:
		fmt.Printf("%s (%v)\n", failed("FAILED"), err)
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		fmt.Println(ok("OK"))
		resp.Body.Close()
	default:
		fmt.Printf("%s (HTTP %d)\n", warn("WARNING"), resp.StatusCode)
		resp.Body.Close()
	}

	fmt.Print("Testing credential authentication... ")
	client := backend.New(settings.Backend.BaseURL)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := client.RefreshDeviceToken(ctx, device.ID, device.Token); err != nil {
		fmt.Printf("%s (%v)\n", failed("FAILED"), err)
	} else {
		fmt.Println(ok("AUTHENTICATED"))
	}

	bold.Println("==============================")
}
