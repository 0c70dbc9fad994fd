package config

import (
	"runtime"

	"github.com/spf13/viper"

	"github.com/hostprobe/hostprobe/internal/metadata"
)

// Config controls collection behavior and logging. All fields have working
// defaults; a config file is optional.
type Config struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
	LogFile   string `mapstructure:"log_file"`

	// Protocol is the default transport filter for port queries.
	Protocol string `mapstructure:"protocol"`

	// CommandTimeoutSeconds bounds each external tool invocation.
	CommandTimeoutSeconds int `mapstructure:"command_timeout_seconds"`

	// NetstatPath and LsofPath override the enumeration tool binaries.
	NetstatPath string `mapstructure:"netstat_path"`
	LsofPath    string `mapstructure:"lsof_path"`

	// PartitionIndexPath is the colon-delimited container index
	// (id:type:name:kernelId) used to resolve partition membership.
	PartitionIndexPath string `mapstructure:"partition_index_path"`

	// CollectEnvironment enables capture of the target process environment.
	// Off by default: environments commonly hold credentials.
	CollectEnvironment bool `mapstructure:"collect_environment"`

	// MaxOpenFiles caps how many file descriptors are enumerated per process.
	MaxOpenFiles int `mapstructure:"max_open_files"`
}

// ProtocolFilter returns the parsed transport filter, defaulting to
// both when the configured value is unrecognized.
func (c *Config) ProtocolFilter() metadata.Protocol {
	if p, ok := metadata.ParseProtocol(c.Protocol); ok {
		return p
	}
	return metadata.ProtocolBoth
}

func Default() *Config {
	return &Config{
		LogLevel:              "info",
		LogFormat:             "text",
		Protocol:              "both",
		CommandTimeoutSeconds: 30,
		NetstatPath:           "netstat",
		LsofPath:              "lsof",
		PartitionIndexPath:    "/etc/partitions/index",
		MaxOpenFiles:          1024,
	}
}

func Load(cfgFile string) (*Config, error) {
	cfg := Default()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(configDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("HOSTPROBE")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func configDir() string {
	if runtime.GOOS == "darwin" {
		return "/Library/Application Support/Hostprobe"
	}
	return "/etc/hostprobe"
}
