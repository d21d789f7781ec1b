package cli

import (
	"fmt"
	"io"

	"github.com/beyondboy/shennong/internal/config"
	"github.com/beyondboy/shennong/logging"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// app carries the state shared by the commands of one invocation
type app struct {
	v          *viper.Viper
	configFile string
	cfg        *config.Config
	logger     logging.Logger
	stdout     io.Writer
	stderr     io.Writer
}

// NewRootCommand returns the shennong command tree writing results to
// stdout and logs to stderr.
func NewRootCommand(stdout, stderr io.Writer) *cobra.Command {
	a := &app{v: viper.New(), stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:   "shennong",
		Short: "Bottleneck features extraction from speech",
		Long: `Extracts 80 dimensional bottleneck features from speech recordings using
pretrained two-stage neural networks, one frame every 15 ms.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.initialize(cmd)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	flags := root.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "YAML config file")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("log-format", "text", "log format (text, json)")
	flags.String("weights-dir", "weights", "directory holding the weights .npz files")
	a.bind(flags, map[string]string{
		"log-level":   "log_level",
		"log-format":  "log_format",
		"weights-dir": "extract.weights_dir",
	})

	root.AddCommand(newExtractCommand(a), newWeightsCommand(a))
	return root
}

// bind maps each flag name to its configuration key
func (a *app) bind(flags *pflag.FlagSet, keys map[string]string) {
	flags.VisitAll(func(f *pflag.Flag) {
		if key, ok := keys[f.Name]; ok {
			// only fails on a nil flag
			_ = a.v.BindPFlag(key, f)
		}
	})
}

func (a *app) initialize(cmd *cobra.Command) error {
	cfg, err := config.Load(a.v, a.configFile)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = newLogger(cfg, a.stderr)
	a.logger.Debug("configuration loaded", logging.Fields{"command": cmd.Name(), "config": a.configFile})
	return nil
}

func newLogger(cfg *config.Config, w io.Writer) logging.Logger {
	var logger logging.Logger
	switch cfg.LogFormat {
	case "json":
		l := logrus.New()
		l.SetOutput(w)
		l.SetFormatter(&logrus.JSONFormatter{})
		logger = logging.NewLogrusLogger(l)
	default:
		logger = logging.NewDefaultLoggerWithWriters(w, w, false)
	}
	logger.SetLevel(cfg.Level())
	return logger
}

func (a *app) printf(format string, args ...any) {
	fmt.Fprintf(a.stdout, format, args...)
}
