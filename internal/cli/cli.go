package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/relabs-tech/gesture_lock/internal/app"
	"github.com/relabs-tech/gesture_lock/internal/config"
)

// loadConfig reads --config into the global config. A missing default file
// falls back to defaults and GESTURE_* variables.
func loadConfig(cmd *cobra.Command, _ []string) error {
	path, _ := cmd.Flags().GetString("config")
	if !cmd.Flags().Changed("config") {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			log.Warnf("config: %s not found, using defaults", path)
			path = ""
		}
	}
	if err := config.InitGlobal(path); err != nil {
		return err
	}

	debug, _ := cmd.Flags().GetBool("debug")
	if debug || config.Get().Debug {
		log.SetLevel(log.DebugLevel)
	}
	return nil
}

// withSignals runs fn until SIGINT or SIGTERM.
func withSignals(fn func(ctx context.Context, cfg *config.Config) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return fn(ctx, config.Get())
	}
}

var RootCmd = &cobra.Command{
	Use:           "gesture_lock",
	Short:         "motion gesture lock",
	Long:          "gesture_lock records a motion gesture as a template and unlocks when a later attempt correlates with it.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var RunCmd = &cobra.Command{
	Use:        "run",
	SuggestFor: []string{"ru", "serve"},
	Short:      "run the lock against the configured sensor, store and indicators",
	Long: `run polls the record and attempt triggers every tick interval.
Holding record enrolls a new template, holding attempt compares the motion
with the stored template and reports matched or not matched.
Triggers can also be pressed through the MQTT command topic.`,
	Example:           `  gesture_lock run --config=/path/to/gesture_config.txt`,
	PersistentPreRunE: loadConfig,
	RunE:              withSignals(app.RunLock),
}

var ConsoleCmd = &cobra.Command{
	Use:               "console",
	Short:             "print lock events received over MQTT",
	PersistentPreRunE: loadConfig,
	RunE:              withSignals(app.RunConsole),
}

var WebCmd = &cobra.Command{
	Use:               "web",
	Short:             "serve lock state, the template and remote triggers over HTTP",
	PersistentPreRunE: loadConfig,
	RunE:              withSignals(app.RunWeb),
}

var SimulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "enroll and attempt a mock gesture without hardware",
	Long: `simulate records mock motion, enrolls it in an in-memory store,
replays it as an attempt and then attempts the live motion.`,
	PersistentPreRunE: loadConfig,
	RunE: withSignals(func(ctx context.Context, cfg *config.Config) error {
		return app.RunSimulate(ctx, cfg, os.Stdout)
	}),
}

var DumpCmd = &cobra.Command{
	Use:               "dump",
	Short:             "print the stored template",
	PersistentPreRunE: loadConfig,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return app.RunDump(config.Get(), cmd.OutOrStdout())
	},
}

var InitCmd = &cobra.Command{
	Use:        "init",
	SuggestFor: []string{"ini", "in"},
	Short:      "init create a configuration template",
	Long: `init writes a configuration file holding every default.
If --print flag is present, the configuration is printed to stdout.
Otherwise it is saved to --output, which is never overwritten unless --yes is given.`,
	Example: `  gesture_lock init --print
  gesture_lock init -o /path/to/gesture_config.txt -y`,
	RunE: initConfig,
}

func initConfig(cmd *cobra.Command, _ []string) error {
	if toStdout, _ := cmd.Flags().GetBool("print"); toStdout {
		return config.WriteDefault(cmd.OutOrStdout())
	}
	out, _ := cmd.Flags().GetString("output")
	force, _ := cmd.Flags().GetBool("yes")
	if err := config.WriteDefaultFile(out, force); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "configuration written to %s\n", out)
	return nil
}

func configFlags(cmd *cobra.Command) {
	cmd.Flags().String("config", config.DefaultPath, "configuration file path")
	cmd.Flags().Bool("debug", false, "toggle debug logging")
}

func initFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("print", false, "print config to stdout")
	cmd.Flags().BoolP("yes", "y", false, "overwrite")
	cmd.Flags().StringP("output", "o", config.DefaultPath, "output file")
}

// NewRootCmd wires every subcommand onto RootCmd.
func NewRootCmd() *cobra.Command {
	for _, c := range []*cobra.Command{RunCmd, ConsoleCmd, WebCmd, SimulateCmd, DumpCmd} {
		configFlags(c)
		RootCmd.AddCommand(c)
	}
	initFlags(InitCmd)
	RootCmd.AddCommand(InitCmd)
	return RootCmd
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
