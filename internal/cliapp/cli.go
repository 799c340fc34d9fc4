package cliapp

import (
	stderrors "errors"
	"flag"
	"fmt"
	"io"
)

const versionString = "1.0.0"

type cliOptions struct {
	configPath string
	verbose    bool
	version    bool
	command    string
	args       []string
}

const usage = `usage: mappings [flags] <command> [command flags] [args]

commands:
  versions [version]                       list software versions, or one version's mapping releases
  resolve -version V [-from S] [-kind K] [-mcp R] [-systems S,..] <class> [member [descriptor]]
  search -version V [-system S] [-mcp R] [-limit N] <glob>
  export -version V [-mcp R] [-o file] <target>
  delete-version <version>
`

func parseOptions(args []string, stderr io.Writer) (cliOptions, error) {
	var opts cliOptions
	fs := flag.NewFlagSet("mappings", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}

	fs.StringVar(&opts.configPath, "config", "", "Path to config file (default "+defaultConfigPathHint+")")
	fs.BoolVar(&opts.verbose, "verbose", false, "Enable verbose logging")
	fs.BoolVar(&opts.version, "version", false, "Print version and exit")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, err
	}

	rest := fs.Args()
	if len(rest) > 0 {
		opts.command = rest[0]
		opts.args = rest[1:]
	}
	return opts, nil
}

const defaultConfigPathHint = "./mappings.toml"

// commandFlags builds the flag set of one subcommand.
func commandFlags(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

// parseFlags parses a subcommand's flags. Errors other than -h are usage
// errors; the flag package has already printed them.
func parseFlags(fs *flag.FlagSet, args []string) error {
	err := fs.Parse(args)
	if err == nil || stderrors.Is(err, flag.ErrHelp) {
		return err
	}
	return fmt.Errorf("%w: %s", errUsage, err.Error())
}
