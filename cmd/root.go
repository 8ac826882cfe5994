package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/liamg/portprobe/config"
	"github.com/liamg/portprobe/scan"
	"github.com/liamg/portprobe/version"
	"github.com/mattn/go-isatty"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const (
	exitUsage   = 1
	exitNoPorts = 2
	exitResolve = 3
)

var debug bool
var timeoutMS int = int(config.DefaultConnectTimeout / time.Millisecond)
var bannerTimeoutMS int = int(config.DefaultBannerTimeout / time.Millisecond)
var parallelism int = config.DefaultWorkers
var portSelection string
var configPath string
var noBanner bool
var showAll bool
var jsonOutput bool
var liveOutput bool = isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
var versionRequested bool

func init() {
	rootCmd.PersistentFlags().BoolVarP(&versionRequested, "version", "", versionRequested, "Output version information and exit")
	rootCmd.PersistentFlags().BoolVarP(&debug, "verbose", "v", debug, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", configPath, "YAML config file")
	rootCmd.PersistentFlags().IntVarP(&timeoutMS, "timeout-ms", "t", timeoutMS, "Connect timeout in MS")
	rootCmd.PersistentFlags().IntVarP(&bannerTimeoutMS, "banner-timeout-ms", "b", bannerTimeoutMS, "Banner read timeout in MS")
	rootCmd.PersistentFlags().BoolVarP(&noBanner, "no-banner", "", noBanner, "Skip banner grabbing on open ports")
	rootCmd.PersistentFlags().IntVarP(&parallelism, "workers", "w", parallelism, "Parallel routines to scan on")
	rootCmd.PersistentFlags().StringVarP(&portSelection, "ports", "p", portSelection, "Ports to scan. Comma separated, can use hyphens e.g. 22,80,443,8080-8090")
	rootCmd.PersistentFlags().BoolVarP(&showAll, "all", "a", showAll, "Also list closed and filtered ports")
	rootCmd.PersistentFlags().BoolVarP(&jsonOutput, "json", "", jsonOutput, "Output results as JSON")
	rootCmd.PersistentFlags().BoolVarP(&liveOutput, "live", "", liveOutput, "Print open ports as they are found")
}

// loadSettings merges defaults, config file, environment and any flags set on
// the command line, in that order.
func loadSettings(cmd *cobra.Command) (config.Config, error) {
	if err := config.LoadEnvFile(".env"); err != nil {
		return config.Config{}, err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, err
	}

	flags := cmd.Flags()
	if flags.Changed("ports") {
		cfg.Ports = portSelection
	}
	if flags.Changed("workers") {
		cfg.Workers = parallelism
	}
	if flags.Changed("timeout-ms") {
		cfg.ConnectTimeout.Duration = time.Millisecond * time.Duration(timeoutMS)
	}
	if flags.Changed("banner-timeout-ms") {
		cfg.BannerTimeout.Duration = time.Millisecond * time.Duration(bannerTimeoutMS)
	}
	if flags.Changed("no-banner") {
		cfg.NoBanner = noBanner
	}

	return cfg.Normalize(), nil
}

func printOpen(o scan.Outcome) {
	if len(o.Banner) > 0 {
		fmt.Printf("[OPEN] %d  banner: %s\n", o.Port, scan.BannerLine(o.Banner, 100))
		return
	}
	fmt.Printf("[OPEN] %d\n", o.Port)
}

var rootCmd = &cobra.Command{
	Use:   "portprobe [flags] <target>",
	Short: "Portprobe is a TCP connect scanner with banner grabbing",
	Long:  `A TCP port prober for classifying the ports of a single host as open, closed or filtered and grabbing service banners.`,
	Run: func(cmd *cobra.Command, args []string) {

		if versionRequested {
			v := version.Version
			if v == "" {
				v = "development version"
			}
			fmt.Printf("portprobe %s\n", v)
			return
		}

		if debug {
			log.SetLevel(log.DebugLevel)
		}

		if len(args) != 1 {
			fmt.Println("Please specify a single target")
			os.Exit(exitUsage)
		}
		target := args[0]

		settings, err := loadSettings(cmd)
		if err != nil {
			fmt.Println(err)
			os.Exit(exitUsage)
		}

		ports, err := scan.ParsePorts(settings.Ports)
		if err != nil {
			fmt.Println(err)
			os.Exit(exitNoPorts)
		}

		ip, err := scan.ResolveTarget(target)
		if err != nil {
			fmt.Println(err)
			os.Exit(exitResolve)
		}

		scanner, err := scan.NewConnectScanner(scan.Config{
			Target:         ip,
			Workers:        settings.Workers,
			ConnectTimeout: settings.ConnectTimeout.Duration,
			BannerTimeout:  settings.EffectiveBannerTimeout(),
			BannerProbe:    settings.Probe(),
		})
		if err != nil {
			fmt.Println(err)
			os.Exit(exitUsage)
		}

		if liveOutput && !jsonOutput {
			scanner.OnOpen(printOpen)
		}

		startTime := time.Now()

		if !jsonOutput {
			fmt.Printf("\nStarting scan at %s\n", startTime.String())
			fmt.Printf("Target: %s -> %s\n", target, ip)
			fmt.Printf("Ports: %d, Workers: %d, Timeout: %s\n\n", len(ports), settings.Workers, settings.ConnectTimeout.Duration)
		}

		result, err := scanner.Scan(ports)
		if err != nil {
			fmt.Println(err)
			os.Exit(exitUsage)
		}

		result.Host = scan.NewHost(target, ip)
		result.Host.Identify()

		if jsonOutput {
			data, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				fmt.Println(err)
				os.Exit(exitUsage)
			}
			fmt.Println(string(data))
			return
		}

		fmt.Println(result.Format(showAll))
		fmt.Printf("Scan complete in %s.\n", time.Since(startTime).String())
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
