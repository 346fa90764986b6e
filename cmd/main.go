// Command fpgarelay relays integers from TCP, WebSocket or KCP clients to a
// remote FPGA host over ssh.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"meep/fpgarelay/cmd/send"
	"meep/fpgarelay/cmd/serve"
	"meep/fpgarelay/cmd/version"
)

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "fpgarelay",
		Usage: "TCP relay between clients and a remote FPGA",
		Commands: []*cli.Command{
			serve.GetCommand(),
			send.GetCommand(),
			version.GetCommand(),
		},
	}
}

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "[!] Error: %s\n", err)
		os.Exit(1)
	}
}
