package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/hostprobe/hostprobe/internal/collectors"
	"github.com/hostprobe/hostprobe/internal/config"
	"github.com/hostprobe/hostprobe/internal/executor"
	"github.com/hostprobe/hostprobe/internal/logging"
	"github.com/hostprobe/hostprobe/internal/metadata"
	"github.com/hostprobe/hostprobe/internal/output"
)

var (
	version = "1.0.0"

	cfgFile      string
	compact      bool
	outputFormat string
	protocolFlag string
)

var rootCmd = &cobra.Command{
	Use:   "hostprobe",
	Short: "Host metadata collector",
	Long: `Hostprobe collects metadata about a process, file, or network port
and prints a single structured record to stdout.`,
	SilenceUsage: true,
}

var processCmd = &cobra.Command{
	Use:   "process <pid>",
	Short: "Collect metadata for a process by PID",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runQuery(cmd, metadata.QueryProcess, args[0])
	},
}

var fileCmd = &cobra.Command{
	Use:   "file <path>",
	Short: "Collect metadata for a filesystem path",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runQuery(cmd, metadata.QueryFile, args[0])
	},
}

var portCmd = &cobra.Command{
	Use:   "port <number>",
	Short: "Collect connections touching a port",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runQuery(cmd, metadata.QueryPort, args[0])
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("hostprobe v%s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is /etc/hostprobe/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&compact, "compact", false, "emit compact output (no pretty printing)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "json", "output format: json or yaml")

	portCmd.Flags().StringVar(&protocolFlag, "protocol", "", "protocol filter: tcp, udp, or both")

	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(fileCmd)
	rootCmd.AddCommand(portCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runQuery performs one collection and prints the record. Exit code 0
// means the query itself succeeded; lookup and validation failures
// still print a well-formed record and exit 1.
func runQuery(cmd *cobra.Command, qt metadata.QueryType, identifier string) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	cfg.Validate()

	initLogging(cfg)
	log := logging.L("main")

	if protocolFlag != "" {
		if _, ok := metadata.ParseProtocol(protocolFlag); !ok {
			fmt.Fprintln(os.Stderr, "Invalid protocol. Use: tcp, udp, or both")
			os.Exit(1)
		}
		cfg.Protocol = protocolFlag
	}

	runner := executor.NewCommandRunner(time.Duration(cfg.CommandTimeoutSeconds) * time.Second)
	col, err := collectors.New(qt, cfg, runner)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log.Debug("collecting", logging.KeyQueryType, string(qt), "identifier", identifier)
	res := col.Collect(cmd.Context(), identifier)

	formatter, err := newFormatter()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	data, err := formatter.Format(res)
	if err != nil {
		log.Error("formatting failed", logging.KeyError, err)
		os.Exit(1)
	}

	fmt.Println(string(data))
	if !res.Success {
		os.Exit(1)
	}
}

func newFormatter() (output.Formatter, error) {
	switch outputFormat {
	case "json", "":
		return &output.JSONFormatter{Pretty: !compact}, nil
	case "yaml":
		return &output.YAMLFormatter{}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q (use json or yaml)", outputFormat)
	}
}

func initLogging(cfg *config.Config) {
	out := os.Stderr
	if cfg.LogFile != "" {
		w, err := logging.NewRotatingWriter(cfg.LogFile, 0, 3)
		if err == nil {
			logging.Init(cfg.LogFormat, cfg.LogLevel, w)
			return
		}
		fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
	}
	logging.Init(cfg.LogFormat, cfg.LogLevel, out)
}
