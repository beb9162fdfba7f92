package main

import (
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/ankit-chaubey/docsurgery/core"
	"github.com/ankit-chaubey/docsurgery/core/upload"
)

func newSanitizeCmd(a *app) *cobra.Command {
	var (
		out         string
		contentType string
	)
	cmd := &cobra.Command{
		Use:   "sanitize <file>",
		Short: "Write a copy of a file with its metadata removed",
		Long: `Sanitizes a file the same way uploads are sanitized. The result is written
to <name>.clean<ext> unless -o is given. Unsupported files are left alone.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runSanitize(cmd, args[0], out, contentType)
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "output path")
	cmd.Flags().StringVar(&contentType, "type", "", "content type (guessed from the name and contents when empty)")
	return cmd
}

func contentTypeFor(path, declared string, head []byte) string {
	if declared != "" {
		return declared
	}
	if ct := core.GuessContentType(path); ct != core.TypeOctetStream {
		return ct
	}
	return core.SniffContentType(head)
}

func (a *app) runSanitize(cmd *cobra.Command, src, dst, declared string) error {
	p := core.NewPrinter(false)
	p.Writer = cmd.OutOrStdout()

	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()

	head := make([]byte, 512)
	n, _ := f.Read(head)
	if _, err := f.Seek(0, 0); err != nil {
		return err
	}
	ct := contentTypeFor(src, declared, head[:n])

	hook, err := upload.NewHook(*a.cfg.Upload, a.extractor(), a.logger.Named("upload"))
	if err != nil {
		return err
	}
	res, err := hook.Process(filepath.Base(src), ct, f)
	if err != nil {
		return err
	}
	if !res.Sanitized {
		p.Line("%s: no sanitizer for %s, nothing written", src, ct)
		return nil
	}

	dst = core.ResolveOutPath(src, dst)
	if err := os.WriteFile(dst, res.Data, 0o644); err != nil {
		return err
	}
	p.Line("%s -> %s (%s, sha256 %s)", src, dst, humanize.IBytes(uint64(res.Size)), res.SHA256[:12])
	return nil
}
