package main

import (
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/ankit-chaubey/docsurgery/core"
	"github.com/ankit-chaubey/docsurgery/core/extract"
)

var version = "dev"

// app holds state shared by every command, set up before any command runs.
type app struct {
	configPath string
	logLevel   string
	logJSON    bool

	cfg    *core.Config
	logger hclog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "surgery",
		Short: "Strip identifying metadata from documents",
		Long: `surgery removes author, title and similar metadata from PDF, OOXML,
OpenDocument and ZIP files, leaving the content untouched.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "path to an HCL configuration file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level (trace, debug, info, warn, error, off)")
	root.PersistentFlags().BoolVar(&a.logJSON, "log-json", false, "write logs as JSON")

	root.AddCommand(
		newSanitizeCmd(a),
		newInspectCmd(a),
		newServeCmd(a),
		newFormatsCmd(),
		newAPICmd(a),
		newVersionCmd(),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := core.LoadConfig(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	a.cfg = cfg
	a.logger = hclog.New(&hclog.LoggerOptions{
		Name:       "surgery",
		Level:      hclog.LevelFromString(cfg.LogLevel),
		Output:     cmd.ErrOrStderr(),
		JSONFormat: a.logJSON,
	})
	a.logger.Debug("configuration loaded", "path", a.configPath, "max_depth", cfg.Extract.MaxDepth,
		"ooxml_strategy", cfg.Extract.OOXMLStrategy)
	return nil
}

func (a *app) extractor() *extract.Extractor {
	return extract.FromConfig(a.cfg.Extract, a.logger.Named("extract"))
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		core.Fail(os.Stderr, err)
		os.Exit(1)
	}
}
