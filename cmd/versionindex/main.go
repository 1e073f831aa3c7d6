package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"
)

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdin, os.Stdout); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "versionindex: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	if len(args) == 0 {
		usage(stdout)
		return errors.New("missing command")
	}

	cmd, args := args[0], args[1:]
	fs := pflag.NewFlagSet(cmd, pflag.ContinueOnError)
	g := bindGlobalFlags(fs)

	switch cmd {
	case "upload":
		rev := fs.String("revision", "", "Use this key instead of the repository HEAD")
		if err := fs.Parse(args); err != nil {
			return err
		}
		return runUpload(ctx, g, fs, *rev, stdin, stdout)
	case "activate":
		if err := fs.Parse(args); err != nil {
			return err
		}
		return runActivate(ctx, g, fs, stdout)
	case "list":
		count := fs.IntP("count", "n", 0, "Number of versions to show (default: version count)")
		if err := fs.Parse(args); err != nil {
			return err
		}
		return runList(ctx, g, fs, *count, stdout)
	case "current":
		if err := fs.Parse(args); err != nil {
			return err
		}
		return runCurrent(ctx, g, fs, stdout)
	case "serve":
		if err := fs.Parse(args); err != nil {
			return err
		}
		return runServe(ctx, g, fs)
	case "help", "-h", "--help":
		usage(stdout)
		return nil
	default:
		usage(stdout)
		return fmt.Errorf("unknown command: %s", cmd)
	}
}

func usage(w io.Writer) {
	fmt.Fprintf(w, "versionindex - bounded version index for deployed builds\n\n")
	fmt.Fprintf(w, "Usage:\n")
	fmt.Fprintf(w, "  versionindex <command> [flags]\n\n")
	fmt.Fprintf(w, "Commands:\n")
	fmt.Fprintf(w, "  upload FILE|-     Store FILE under the current git revision\n")
	fmt.Fprintf(w, "  activate KEY      Mark a retained version as current\n")
	fmt.Fprintf(w, "  list              List retained versions, most recent first\n")
	fmt.Fprintf(w, "  current           Print the current version\n")
	fmt.Fprintf(w, "  serve             Run the HTTP API\n\n")
	fmt.Fprintf(w, "Examples:\n")
	fmt.Fprintf(w, "  versionindex upload dist/index.html --app-id blog\n")
	fmt.Fprintf(w, "  versionindex activate 3f2c9a1b7e --app-id blog\n")
	fmt.Fprintf(w, "  versionindex serve --driver badger --data-dir ./data\n")
}
