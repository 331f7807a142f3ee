// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package shared

import (
	"context"
	"io"
	"log/slog"

	"github.com/tombee/apmkit/internal/config"
	"github.com/tombee/apmkit/internal/log"
)

// LoadConfig loads configuration from the --config flag, APMKIT_CONFIG or
// the XDG config file, in that order, with environment overrides applied.
// Errors are returned as config exit errors.
func LoadConfig(ctx context.Context) (*config.Config, error) {
	cfg, err := config.Load(ctx, config.ResolvePath(GetConfigPath()))
	if err != nil {
		return nil, NewConfigError("failed to load configuration", err)
	}
	return cfg, nil
}

// NewLogger builds the command logger. --verbose lowers the level to
// debug and --quiet raises it to error.
func NewLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	logCfg := cfg.Log.LoggerConfig()
	logCfg.Output = w
	switch {
	case GetVerbose():
		logCfg.Level = "debug"
	case GetQuiet():
		logCfg.Level = "error"
	}
	return log.New(logCfg)
}
