package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ankit-chaubey/docsurgery/core"
)

func newInspectCmd(a *app) *cobra.Command {
	var (
		asJSON      bool
		contentType string
	)
	cmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Show the metadata a file carries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			ct := contentTypeFor(args[0], contentType, data)
			m, err := a.extractor().Inspect(data, ct)
			if err != nil {
				return err
			}
			m.Name = filepath.Base(args[0])
			if m.Format == "" {
				m.Format = ct
			}

			p := core.NewPrinter(asJSON)
			p.Writer = cmd.OutOrStdout()
			p.PrintMetadata(m)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	cmd.Flags().StringVar(&contentType, "type", "", "content type (guessed when empty)")
	return cmd
}

func newFormatsCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "formats",
		Short: "List supported formats",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p := core.NewPrinter(asJSON)
			p.Writer = cmd.OutOrStdout()
			p.PrintFormats(core.Formats())
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "surgery version %s\n", version)
		},
	}
}
