// Package shared provides the CLI flags and helpers used by fpgarelay's
// subcommands.
package shared

import (
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"meep/fpgarelay/pkg/config"
	"meep/fpgarelay/pkg/log"
)

const categoryCommon = "common"

// VerboseFlag is the name of the flag to enable verbose logging.
const VerboseFlag = "verbose"

// TimeoutFlag is the name of the flag to specify the network timeout in milliseconds.
const TimeoutFlag = "timeout"

const defaultTimeoutMs = 10000

// TransportFlag is the name of the flag to specify protocol, host and port.
const TransportFlag = "transport"

// DefaultDialTransport is where send connects unless told otherwise.
const DefaultDialTransport = "tcp://127.0.0.1:9999"

// GetBaseDescription returns the description of the transport syntax.
func GetBaseDescription() string {
	return strings.Join([]string{
		"Specify transport like this: tcp://127.0.0.1:9999 (supports tcp|ws|udp)",
		"You can omit the host or use * when serving to bind to all interfaces.",
	}, "\n")
}

// GetCommonFlags returns the flags shared by serve and send. defaultTransport
// differs between the two.
func GetCommonFlags(defaultTransport string) []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:     VerboseFlag,
			Aliases:  []string{"v"},
			Usage:    "Verbose logging",
			Category: categoryCommon,
		},
		&cli.IntFlag{
			Name:     TimeoutFlag,
			Aliases:  []string{"t"},
			Usage:    "Network timeout in milliseconds (connect, waiting for the request line, writing)",
			Category: categoryCommon,
			Value:    defaultTimeoutMs,
		},
		&cli.StringFlag{
			Name:     TransportFlag,
			Aliases:  []string{"T"},
			Usage:    "Transport as protocol://host:port",
			Category: categoryCommon,
			Value:    defaultTransport,
		},
	}
}

const categoryServe = "serve"

// ConfigFlag is the name of the flag to specify a config file.
const ConfigFlag = "config"

// BackendTimeoutFlag is the name of the flag to specify the backend timeout.
const BackendTimeoutFlag = "backend-timeout"

// MaxConnsFlag is the name of the flag to cap concurrent connections.
const MaxConnsFlag = "max-conns"

// MaxLineFlag is the name of the flag to specify the request size ceiling.
const MaxLineFlag = "max-line"

// LogFileFlag is the name of the flag to specify a transcript file.
const LogFileFlag = "log"

// DirFlag is the name of the flag to specify the backend working directory.
const DirFlag = "dir"

// GetServeFlags returns the flags specific to serve.
func GetServeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     ConfigFlag,
			Aliases:  []string{"c"},
			Usage:    "Config file (yaml, toml or json); FPGARELAY_* environment variables apply too",
			Category: categoryServe,
		},
		&cli.DurationFlag{
			Name:     BackendTimeoutFlag,
			Usage:    "Wall-clock limit for one backend run",
			Category: categoryServe,
			Value:    config.DefaultBackendTimeout,
		},
		&cli.IntFlag{
			Name:     MaxConnsFlag,
			Usage:    "Maximum connections handled at once, 0 for no limit",
			Category: categoryServe,
		},
		&cli.IntFlag{
			Name:     MaxLineFlag,
			Usage:    "Maximum request line length in bytes",
			Category: categoryServe,
			Value:    config.DefaultMaxLineBytes,
		},
		&cli.StringFlag{
			Name:     LogFileFlag,
			Aliases:  []string{"l"},
			Usage:    "Append a transcript of every connection to this file",
			Category: categoryServe,
		},
		&cli.StringFlag{
			Name:     DirFlag,
			Usage:    "Working directory of the backend command",
			Category: categoryServe,
		},
	}
}

const categorySend = "send"

// ReadTimeoutFlag is the name of the flag to specify how long send waits for a response.
const ReadTimeoutFlag = "read-timeout"

// GetSendFlags returns the flags specific to send.
func GetSendFlags() []cli.Flag {
	return []cli.Flag{
		&cli.DurationFlag{
			Name:     ReadTimeoutFlag,
			Usage:    "How long to wait for the relay's response",
			Category: categorySend,
			Value:    config.DefaultReadTimeout,
		},
	}
}

// SharedConfig builds the common config from cmd's flags. transport
// overrides the transport flag when non-empty; verbose is ORed with the flag.
func SharedConfig(cmd *cli.Command, transport string, verbose bool) (*config.Shared, error) {
	if transport == "" {
		transport = cmd.String(TransportFlag)
	}

	proto, host, port, err := ParseTransport(transport)
	if err != nil {
		return nil, err
	}

	verbose = verbose || cmd.Bool(VerboseFlag)
	return &config.Shared{
		Protocol: proto,
		Host:     host,
		Port:     port,
		Timeout:  time.Duration(cmd.Int(TimeoutFlag)) * time.Millisecond,
		Verbose:  verbose,
		Logger:   log.NewLogger(verbose),
	}, nil
}

// ReportValidation logs every validation error and returns a single error
// if there were any.
func ReportValidation(logger *log.Logger, errs []error) error {
	if len(errs) == 0 {
		return nil
	}

	logger.ErrorMsg("Argument validation errors:")
	for _, err := range errs {
		logger.ErrorMsg(" - %s", err)
	}
	return fmt.Errorf("exiting")
}
