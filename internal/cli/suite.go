package cli

import (
	"fmt"
	"path/filepath"

	"github.com/nholik/probe-sentinel/internal/check"
	"github.com/nholik/probe-sentinel/internal/config"
	"github.com/nholik/probe-sentinel/internal/probe"
	"github.com/rs/zerolog"
)

// loadDefinitions returns the built-in checks merged with the suite file, if any.
func loadDefinitions(cfg config.Config) ([]check.Definition, error) {
	defs := check.Builtin(check.BuiltinOptions{
		TerraformBin: cfg.TerraformBin,
		PythonBin:    cfg.PythonBin,
		HTTPTimeout:  cfg.HTTPTimeout,
	})

	path := suitePath(cfg)
	extra, err := check.LoadFile(path)
	if err != nil {
		return nil, err
	}
	defs = check.Merge(defs, extra)

	if err := check.Validate(defs); err != nil {
		return nil, fmt.Errorf("suite: %w", err)
	}
	return defs, nil
}

func suitePath(cfg config.Config) string {
	if cfg.SuiteFile == "" || filepath.IsAbs(cfg.SuiteFile) {
		return cfg.SuiteFile
	}
	return filepath.Join(cfg.ProjectRoot, cfg.SuiteFile)
}

// buildSuite turns definitions into a runnable suite sharing one HTTP client.
func buildSuite(cfg config.Config, logger zerolog.Logger, defs []check.Definition) *check.Suite {
	checks := check.Build(defs, check.Options{
		Logger:         logger,
		Prober:         probe.NewClient(logger),
		Root:           cfg.ProjectRoot,
		CommandTimeout: cfg.CommandTimeout,
	})
	return check.NewSuite(logger, checks...)
}
