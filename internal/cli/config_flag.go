package cli

import (
	"io"

	"github.com/spf13/pflag"
)

const configFlag = "config"

// ConfigPathFromArgs extracts --config from the raw arguments so the
// configuration can be loaded before the command tree is built. Every other
// flag is ignored here and parsed later by cobra.
func ConfigPathFromArgs(args []string) string {
	fs := pflag.NewFlagSet("sortir", pflag.ContinueOnError)
	fs.ParseErrorsWhitelist.UnknownFlags = true
	fs.SetOutput(io.Discard)
	fs.Usage = func() {}
	path := fs.String(configFlag, "", "")
	_ = fs.Parse(args)
	return *path
}
