package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/lherron/eotdiff/internal/cli"
)

func main() {
	addr := flag.String("addr", os.Getenv("EOTDIFF_ADDR"), "Listen address (default 127.0.0.1:7272)")
	unixPath := flag.String("unix", os.Getenv("EOTDIFF_UNIX"), "Listen on unix socket path")
	token := flag.String("token", os.Getenv("EOTDIFF_TOKEN"), "Shared token for local auth")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn, error (defaults to config, then info)")
	flag.Parse()

	opts := cli.DaemonOptions{
		Addr:     *addr,
		Unix:     *unixPath,
		Token:    *token,
		LogLevel: *logLevel,
	}

	if err := cli.ServeDaemon(opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
