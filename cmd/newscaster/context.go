package main

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"NewsCaster/internal/app"
	"NewsCaster/internal/config"
	"NewsCaster/internal/logging"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		c.config, c.configErr = config.Load(path)
	})
	return c.config, c.configErr
}

func (c *commandContext) logger() *slog.Logger {
	cfg, _ := c.ensureConfig()
	return logging.New(cfg.Logging.Level, cfg.Logging.Format)
}

// withApp builds the application, runs fn and closes it.
func (c *commandContext) withApp(ctx context.Context, fn func(*app.Application) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	application, err := app.New(ctx, cfg, c.logger())
	if err != nil {
		return err
	}
	defer application.Close()
	return fn(application)
}
