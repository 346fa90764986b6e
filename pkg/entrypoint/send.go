package entrypoint

import (
	"context"

	"meep/fpgarelay/pkg/config"
)

// Send delivers payload to the relay described by cfg and returns its
// trimmed answer.
func Send(ctx context.Context, cfg *config.Shared, cCfg *config.Client, payload string) (string, error) {
	return send(ctx, cfg, cCfg, payload, realSenderFactory())
}

func send(ctx context.Context, cfg *config.Shared, cCfg *config.Client, payload string, newSender senderFactory) (string, error) {
	cfg.Logger.VerboseMsg("Sending %q to %s://%s:%d", payload, cfg.Protocol, cfg.Host, cfg.Port)

	resp, err := newSender(cfg, cCfg).Send(ctx, payload)
	if err != nil {
		return "", err
	}

	cfg.Logger.VerboseMsg("Received %q", resp)
	return resp, nil
}
