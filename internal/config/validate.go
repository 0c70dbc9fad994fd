package config

import (
	"fmt"
	"log/slog"
	"strings"
)

var validLogLevels = map[string]bool{
	"debug":   true,
	"info":    true,
	"warn":    true,
	"warning": true,
	"error":   true,
}

var validProtocols = map[string]bool{
	"tcp":  true,
	"udp":  true,
	"both": true,
}

// Validate checks the config for invalid values and returns all errors found.
// Dangerous zero-values are clamped to safe defaults; other validation
// errors are logged as warnings but do not prevent startup.
func (c *Config) Validate() []error {
	var errs []error

	if c.LogLevel != "" && !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Errorf("log_level %q is not valid (use debug, info, warn, error)", c.LogLevel))
	}

	if c.LogFormat != "" && c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("log_format %q is not valid (use text or json)", c.LogFormat))
	}

	if !validProtocols[strings.ToLower(c.Protocol)] {
		errs = append(errs, fmt.Errorf("protocol %q is not valid (use tcp, udp, or both), falling back to both", c.Protocol))
		c.Protocol = "both"
	}

	// Clamp the subprocess timeout to keep enumeration tools bounded
	if c.CommandTimeoutSeconds < 1 {
		errs = append(errs, fmt.Errorf("command_timeout_seconds %d is below minimum 1, clamping", c.CommandTimeoutSeconds))
		c.CommandTimeoutSeconds = 1
	} else if c.CommandTimeoutSeconds > 300 {
		errs = append(errs, fmt.Errorf("command_timeout_seconds %d exceeds maximum 300, clamping", c.CommandTimeoutSeconds))
		c.CommandTimeoutSeconds = 300
	}

	if c.NetstatPath == "" {
		errs = append(errs, fmt.Errorf("netstat_path is empty, using \"netstat\""))
		c.NetstatPath = "netstat"
	}
	if c.LsofPath == "" {
		errs = append(errs, fmt.Errorf("lsof_path is empty, using \"lsof\""))
		c.LsofPath = "lsof"
	}

	if c.MaxOpenFiles < 1 {
		errs = append(errs, fmt.Errorf("max_open_files %d is below minimum 1, clamping", c.MaxOpenFiles))
		c.MaxOpenFiles = 1
	} else if c.MaxOpenFiles > 65536 {
		errs = append(errs, fmt.Errorf("max_open_files %d exceeds maximum 65536, clamping", c.MaxOpenFiles))
		c.MaxOpenFiles = 65536
	}

	for _, err := range errs {
		slog.Warn("config validation", "error", err)
	}

	return errs
}
