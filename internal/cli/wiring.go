package cli

import (
	"context"
	"fmt"

	"github.com/rshade/finboard/internal/client"
	"github.com/rshade/finboard/internal/config"
	"github.com/rshade/finboard/internal/engine/cache"
	"github.com/rshade/finboard/internal/logging"
	"github.com/rshade/finboard/internal/session"
)

// globalConfig returns a validated copy of the resolved configuration.
// Commands may apply flag overrides to the copy.
func globalConfig() (*config.Config, error) {
	cfg := *config.GetGlobalConfig()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// endpointsFrom applies configured path overrides on top of the defaults.
func endpointsFrom(ec config.EndpointsConfig) client.Endpoints {
	e := client.DefaultEndpoints()
	override := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	override(&e.Valuation, ec.Valuation)
	override(&e.Evaluation, ec.Evaluation)
	override(&e.SessionTTL, ec.SessionTTL)
	override(&e.Login, ec.Login)
	override(&e.Refresh, ec.Refresh)
	override(&e.Version, ec.Version)
	return e
}

// newAPIClient builds a backend client for cfg. withCache enables the
// valuation response cache when the configuration allows it.
func newAPIClient(cfg *config.Config, bus *session.Bus, withCache bool) (*client.Client, error) {
	opts := []client.Option{
		client.WithBus(bus),
		client.WithLogger(logging.ComponentLogger(logger, "client")),
	}

	if withCache && cfg.Cache.Enabled {
		dir, err := cfg.Cache.CacheDir()
		if err != nil {
			return nil, fmt.Errorf("resolving cache directory: %w", err)
		}
		store, err := cache.Open(dir, cfg.Cache.TTLSeconds)
		if err != nil {
			return nil, fmt.Errorf("opening cache: %w", err)
		}
		opts = append(opts, client.WithCache(store))
	}

	return client.New(client.Config{
		BaseURL:   cfg.API.BaseURL,
		Token:     cfg.API.Token,
		Timeout:   cfg.API.Timeout,
		Endpoints: endpointsFrom(cfg.API.Endpoints),
	}, opts...)
}

// checkServer enforces the configured server version constraint, if any.
func checkServer(ctx context.Context, c *client.Client, constraint string) error {
	if constraint == "" {
		return nil
	}
	v, err := c.CheckCompatibility(ctx, constraint)
	if err != nil {
		return err
	}
	logger.Debug().Ctx(ctx).Str("server_version", v.String()).Msg("server version compatible")
	return nil
}
