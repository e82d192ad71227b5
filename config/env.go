package config

// --------------------------------------------------------------------------
//
//	Gurux Ltd
//
// Filename:        $HeadURL$
//
// Version:         $Revision$,
//
//	$Date$
//	$Author$
//
// # Copyright (c) Gurux Ltd
//
// ---------------------------------------------------------------------------
//
//	DESCRIPTION
//
// This file is a part of Gurux Device Framework.
//
// Gurux Device Framework is Open Source software; you can redistribute it
// and/or modify it under the terms of the GNU General Public License
// as published by the Free Software Foundation; version 2 of the License.
// Gurux Device Framework is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU General Public License for more details.
//
// More information of Gurux products: https://www.gurux.org
//
// This code is licensed under the GNU General Public License v2.
// Full text may be retrieved at http://www.gnu.org/licenses/gpl-2.0.txt
// ---------------------------------------------------------------------------

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment variable read by LoadEnv.
const EnvPrefix = "GXSERIAL2TCP_"

// Env holds the process settings that can come from the environment.
// Command line flags override them.
type Env struct {
	Config        string        `env:"CONFIG"`
	LogLevel      string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat     string        `env:"LOG_FORMAT" envDefault:"auto"`
	Language      string        `env:"LANGUAGE"`
	Trace         string        `env:"TRACE"`
	MetricsAddr   string        `env:"METRICS_ADDR"`
	ReadTimeout   time.Duration `env:"READ_TIMEOUT" envDefault:"2s"`
	RetryInterval time.Duration `env:"RETRY_INTERVAL" envDefault:"2s"`
	BufferSize    int           `env:"BUFFER_SIZE" envDefault:"1500"`
}

// LoadEnv reads Env from environ, a list of KEY=VALUE pairs as returned by
// os.Environ. When dotenv names an existing file its variables are used
// as well; environ wins on conflicts. A missing dotenv file is not an error.
func LoadEnv(environ []string, dotenv string) (Env, error) {
	vars := map[string]string{}
	if dotenv != "" {
		fileVars, err := godotenv.Read(dotenv)
		switch {
		case err == nil:
			for k, v := range fileVars {
				vars[k] = v
			}
		case errors.Is(err, fs.ErrNotExist):
		default:
			return Env{}, fmt.Errorf("reading %s: %w", dotenv, err)
		}
	}
	for _, kv := range environ {
		if k, v, ok := strings.Cut(kv, "="); ok {
			vars[k] = v
		}
	}

	var cfg Env
	if err := env.ParseWithOptions(&cfg, env.Options{
		Prefix:      EnvPrefix,
		Environment: vars,
	}); err != nil {
		return Env{}, fmt.Errorf("parsing environment: %w", err)
	}
	return cfg, nil
}

// LoadProcessEnv is LoadEnv for the current process.
func LoadProcessEnv(dotenv string) (Env, error) {
	return LoadEnv(os.Environ(), dotenv)
}

// ParseLogLevel maps debug, info, warn and error (any case) to a slog
// level. An empty string is info.
func ParseLogLevel(s string) (slog.Level, error) {
	if strings.TrimSpace(s) == "" {
		return slog.LevelInfo, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}
