// Package serve provides the serve command, which runs the relay.
package serve

import (
	"context"

	"github.com/urfave/cli/v3"

	"meep/fpgarelay/cmd/shared"
	"meep/fpgarelay/pkg/config"
	"meep/fpgarelay/pkg/entrypoint"
)

// GetCommand ...
func GetCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the relay",
		Description: shared.GetBaseDescription() + "\n\n" +
			"Trailing arguments replace the backend command, e.g.\n" +
			"  fpgarelay serve -- ssh -o BatchMode=yes fpga-host ./process_data.sh\n" +
			"The payload goes to the command's stdin unless one argument is exactly " + config.PayloadPlaceholder + ".",
		ArgsUsage: "[-- program [args...]]",
		Flags:     getFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, srvCfg, bCfg, err := buildConfig(cmd)
			if err != nil {
				return err
			}

			if err := shared.ReportValidation(cfg.Logger, config.Validate(cfg, srvCfg, bCfg)); err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(ctx)
			defer cancel()
			shared.SetupSignalHandling(cancel, cfg.Logger)

			return entrypoint.Serve(ctx, cfg, srvCfg, bCfg)
		},
	}
}

// buildConfig layers defaults, the config file, FPGARELAY_* variables and
// explicitly set flags, in that order.
func buildConfig(cmd *cli.Command) (*config.Shared, *config.Server, *config.Backend, error) {
	file, err := config.LoadFile(cmd.String(shared.ConfigFlag))
	if err != nil {
		return nil, nil, nil, err
	}

	transport := file.Listen
	if cmd.IsSet(shared.TransportFlag) {
		transport = cmd.String(shared.TransportFlag)
	}

	cfg, err := shared.SharedConfig(cmd, transport, file.Verbose && !cmd.IsSet(shared.VerboseFlag))
	if err != nil {
		return nil, nil, nil, err
	}
	if !cmd.IsSet(shared.TimeoutFlag) && file.Timeout > 0 {
		cfg.Timeout = file.Timeout
	}

	srvCfg := file.ServerConfig()
	if cmd.IsSet(shared.MaxConnsFlag) {
		srvCfg.MaxConns = int(cmd.Int(shared.MaxConnsFlag))
	}
	if cmd.IsSet(shared.MaxLineFlag) {
		srvCfg.MaxLineBytes = int(cmd.Int(shared.MaxLineFlag))
	}
	if cmd.IsSet(shared.LogFileFlag) {
		srvCfg.LogFile = cmd.String(shared.LogFileFlag)
	}

	bCfg := file.BackendConfig()
	if args := cmd.Args().Slice(); len(args) > 0 {
		bCfg.Program = args[0]
		bCfg.Args = append([]string(nil), args[1:]...)
	}
	if cmd.IsSet(shared.BackendTimeoutFlag) {
		bCfg.Timeout = cmd.Duration(shared.BackendTimeoutFlag)
	}
	if cmd.IsSet(shared.DirFlag) {
		bCfg.Dir = cmd.String(shared.DirFlag)
	}

	return cfg, srvCfg, bCfg, nil
}

func getFlags() []cli.Flag {
	flags := []cli.Flag{}

	flags = append(flags, shared.GetCommonFlags(config.DefaultListen)...)
	flags = append(flags, shared.GetServeFlags()...)

	return flags
}
