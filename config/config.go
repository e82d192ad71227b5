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
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Gurux/gxcommon-go"
	"github.com/Gurux/gxserial2tcp-go"
)

// relay is one binding as written in a configuration file, before
// normalization. Numeric fields are kept loose so that invalid values
// can fall back to defaults instead of failing the whole file.
type relay struct {
	Com      string `yaml:"com" json:"com"`
	Baud     any    `yaml:"baud" json:"baud"`
	Host     string `yaml:"host" json:"host"`
	DataBits any    `yaml:"databits" json:"databits"`
	Parity   string `yaml:"parity" json:"parity"`
	StopBits any    `yaml:"stopbits" json:"stopbits"`
}

// Load reads the bindings of the configuration file at path. Unknown
// sections are reported through logger; a nil logger uses slog.Default().
func Load(path string, logger *slog.Logger) ([]gxserial2tcp.BindingConfig, error) {
	if logger == nil {
		logger = slog.Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return Parse(data, formatOf(path), logger.With("config", path))
}

// Format is a configuration file syntax.
type Format int

const (
	// FormatINI is the [relay] section format.
	FormatINI Format = iota
	// FormatYAML is a YAML document with a relays list.
	FormatYAML
	// FormatJSONC is JSON with comments and a relays list.
	FormatJSONC
)

func formatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".json", ".jsonc":
		return FormatJSONC
	}
	return FormatINI
}

// Parse reads the bindings of data in the given format.
func Parse(data []byte, format Format, logger *slog.Logger) ([]gxserial2tcp.BindingConfig, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var relays []relay
	var err error
	switch format {
	case FormatYAML:
		relays, err = parseYAML(data)
	case FormatJSONC:
		relays, err = parseJSONC(data)
	default:
		relays, err = parseINI(data, logger)
	}
	if err != nil {
		return nil, err
	}

	configs := make([]gxserial2tcp.BindingConfig, 0, len(relays))
	for i, r := range relays {
		cfg, err := r.bindingConfig()
		if err == nil {
			err = cfg.Validate()
		}
		if err != nil {
			return nil, fmt.Errorf("relay %d: %w", i+1, err)
		}
		configs = append(configs, cfg)
	}
	return configs, nil
}

func (r relay) bindingConfig() (gxserial2tcp.BindingConfig, error) {
	cfg := gxserial2tcp.BindingConfig{
		Port:     strings.TrimSpace(r.Com),
		BaudRate: ParseBaudRate(r.Baud),
		Host:     strings.TrimSpace(r.Host),
	}
	if r.DataBits != nil {
		bits, err := strconv.Atoi(strings.TrimSpace(fmt.Sprint(r.DataBits)))
		if err != nil {
			return cfg, fmt.Errorf("invalid databits %q", fmt.Sprint(r.DataBits))
		}
		cfg.DataBits = bits
	}
	if p := strings.TrimSpace(r.Parity); p != "" {
		parity, err := ParseParity(p)
		if err != nil {
			return cfg, err
		}
		cfg.Parity = parity
	}
	if r.StopBits != nil {
		stopBits, err := ParseStopBits(fmt.Sprint(r.StopBits))
		if err != nil {
			return cfg, err
		}
		cfg.StopBits = stopBits
	}
	return cfg.Normalize(), nil
}

// ParseBaudRate converts a configured baud rate. Zero, negative and
// non-numeric values become gxserial2tcp.DefaultBaudRate.
func ParseBaudRate(value any) gxcommon.BaudRate {
	var n uint64
	switch v := value.(type) {
	case nil:
	case string:
		parsed, err := strconv.ParseUint(strings.TrimSpace(v), 10, 32)
		if err == nil {
			n = parsed
		}
	case int:
		if v > 0 {
			n = uint64(v)
		}
	case int64:
		if v > 0 {
			n = uint64(v)
		}
	case uint64:
		n = v
	case float64:
		if v > 0 && v <= math.MaxUint32 && v == math.Trunc(v) {
			n = uint64(v)
		}
	}
	if n == 0 || n > math.MaxUint32 {
		return gxserial2tcp.DefaultBaudRate
	}
	return gxcommon.BaudRate(n)
}

// ParseParity accepts None, Odd, Even, Mark and Space in any case.
func ParseParity(value string) (gxcommon.Parity, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" {
		return gxcommon.ParityNone, nil
	}
	parity, err := gxcommon.ParityParse(strings.ToUpper(v[:1]) + v[1:])
	if err != nil {
		return gxcommon.ParityNone, fmt.Errorf("invalid parity %q: %w", value, err)
	}
	return parity, nil
}

// ParseStopBits accepts "1", "one", "2" and "two". An empty value selects
// one stop bit.
func ParseStopBits(value string) (gxcommon.StopBits, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "1", "one":
		return gxcommon.StopBitsOne, nil
	case "2", "two":
		return gxcommon.StopBitsTwo, nil
	}
	return 0, fmt.Errorf("invalid stopbits %q (use 1 or 2)", value)
}
