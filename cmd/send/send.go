// Package send provides the send command, a one-shot client for the relay.
package send

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/big"
	"os"
	"strings"

	"github.com/muesli/cancelreader"
	"github.com/urfave/cli/v3"

	"meep/fpgarelay/cmd/shared"
	"meep/fpgarelay/pkg/client"
	"meep/fpgarelay/pkg/config"
	"meep/fpgarelay/pkg/entrypoint"
)

// stdinArg reads the payload from standard input.
const stdinArg = "-"

type sender interface {
	Send(ctx context.Context, payload string) (string, error)
}

type senderFunc func(ctx context.Context, payload string) (string, error)

func (f senderFunc) Send(ctx context.Context, payload string) (string, error) {
	return f(ctx, payload)
}

// GetCommand ...
func GetCommand() *cli.Command {
	return &cli.Command{
		Name:        "send",
		Usage:       "Send the integer in a file to the relay and check the result",
		Description: shared.GetBaseDescription(),
		ArgsUsage:   "<input_file|->",
		Flags:       getFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 1 {
				return cli.Exit("Usage: fpgarelay send <input_file.txt>", 1)
			}

			cfg, err := shared.SharedConfig(cmd, "", false)
			if err != nil {
				return err
			}
			cCfg := &config.Client{
				InputFile:   cmd.Args().First(),
				ReadTimeout: cmd.Duration(shared.ReadTimeoutFlag),
			}

			if err := shared.ReportValidation(cfg.Logger, config.Validate(cfg, cCfg)); err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(ctx)
			defer cancel()
			shared.SetupSignalHandling(cancel, cfg.Logger)

			s := senderFunc(func(ctx context.Context, payload string) (string, error) {
				return entrypoint.Send(ctx, cfg, cCfg, payload)
			})
			return run(ctx, stdout(cmd), os.Stdin, cCfg.InputFile, s)
		},
	}
}

// run reads one integer, sends it and compares the answer with twice the
// input. Only a missing file or a non-integer input is an error; relay
// failures are reported on out.
func run(ctx context.Context, out io.Writer, in io.Reader, path string, s sender) error {
	data, err := readInput(ctx, in, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(out, "Error: File %s not found\n", path)
			return cli.Exit("", 1)
		}
		return err
	}

	fmt.Fprintf(out, "Sending data to FPGA: %s\n", data)

	value, ok := new(big.Int).SetString(data, 10)
	if !ok {
		fmt.Fprintln(out, "Error: Input must be a valid integer")
		return cli.Exit("", 1)
	}
	fmt.Fprintf(out, "Processing value: %s\n", value)

	result, err := s.Send(ctx, data)
	if err != nil {
		if !errors.Is(err, client.ErrNoResponse) {
			fmt.Fprintf(out, "Error communicating with relay: %s\n", err)
		}
		fmt.Fprintln(out, "Failed to get response from FPGA")
		return nil
	}

	resultValue, ok := new(big.Int).SetString(result, 10)
	if !ok {
		fmt.Fprintf(out, "Received: %s\n", result)
		return nil
	}

	expected := new(big.Int).Lsh(value, 1)
	fmt.Fprintf(out, "FPGA Result: %s\n", resultValue)
	fmt.Fprintf(out, "Expected (input * 2): %s\n", expected)

	if resultValue.Cmp(expected) == 0 {
		fmt.Fprintln(out, "✓ Processing successful!")
	} else {
		fmt.Fprintln(out, "⚠ Unexpected result")
	}
	return nil
}

// readInput returns the trimmed contents of path, or of in when path is "-".
// Reading in stops when ctx is cancelled.
func readInput(ctx context.Context, in io.Reader, path string) (string, error) {
	if path != stdinArg {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(data)), nil
	}

	cr, err := cancelreader.NewReader(in)
	if err != nil {
		return "", fmt.Errorf("cancelreader.NewReader(stdin): %w", err)
	}
	defer cr.Close()

	stop := context.AfterFunc(ctx, func() { cr.Cancel() })
	defer stop()

	data, err := io.ReadAll(cr)
	if err != nil {
		if errors.Is(err, cancelreader.ErrCanceled) {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func stdout(cmd *cli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}

func getFlags() []cli.Flag {
	flags := []cli.Flag{}

	flags = append(flags, shared.GetCommonFlags(shared.DefaultDialTransport)...)
	flags = append(flags, shared.GetSendFlags()...)

	return flags
}
