package main

import (
	"context"
	"net/http"
	_ "net/http/pprof" //nolint:gosec
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	mangokong "github.com/alecthomas/mango-kong"
)

var CLI struct {
	Globals

	Collect     CollectCommand    `cmd:"" help:"Collect whole bodies and print them."`
	Stream      StreamCommand     `cmd:"" help:"Stream one body to stdout with bounded demand."`
	Man         mangokong.ManFlag `help:"Write man page." hidden:""`
	DebugServer string            `help:"Serve pprof on this address." placeholder:":8081"`
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	kongCtx := kong.Parse(
		&CLI,
		kong.BindTo(ctx, (*context.Context)(nil)),
		kong.Bind(&CLI.Globals),
		kong.Groups(map[string]string{
			"flow": `Flow control flags:`,
		}),
		kong.ConfigureHelp(kong.HelpOptions{
			Tree:    true,
			Compact: true,
		}),
		kong.Description(`collects and streams http bodies through a backpressured chunk pipeline

Bodies are read in chunks only as fast as the consumer asks for them.
collect aggregates each body in memory, stream writes it out with a bounded prefetch window.
		`),
	)

	if CLI.DebugServer != "" {
		go func() {
			http.ListenAndServe(CLI.DebugServer, nil) //nolint:errcheck,gosec
		}()
	}

	err := kongCtx.Run()
	kongCtx.FatalIfErrorf(err)
}
