package cli

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/bulkdump/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	configFileExt  = "config.yaml"

	// envPrefix scopes environment overrides, e.g. BULKDUMP_EXPORT_PAGE_SIZE.
	envPrefix = "BULKDUMP"
)

// Config keys.
const (
	cfgKeySource      = "source"
	cfgKeyPageSize    = "export.page_size"
	cfgKeyPace        = "export.pace"
	cfgKeyDelimiter   = "export.delimiter"
	cfgKeyEnclosure   = "export.enclosure"
	cfgKeyNull        = "export.null_token"
	cfgKeyIndex       = "bulk.index"
	cfgKeyDir         = "bulk.dir"
	cfgKeyGlob        = "bulk.glob"
	cfgKeyTimezone    = "bulk.timezone"
	cfgKeyDateLayouts = "bulk.date_layouts"
	cfgKeyDateColumns = "bulk.columns.date"
	cfgKeyNumericCols = "bulk.columns.numeric"
	cfgKeyLogLevel    = "log.level"
	cfgKeyLogFormat   = "log.format"
)

// flagKeys binds command-line flags to config keys. A flag overrides the
// config file and environment only when set explicitly.
var flagKeys = map[string]string{
	"source":     cfgKeySource,
	"page-size":  cfgKeyPageSize,
	"pace":       cfgKeyPace,
	"delimiter":  cfgKeyDelimiter,
	"enclosure":  cfgKeyEnclosure,
	"null":       cfgKeyNull,
	"index":      cfgKeyIndex,
	"glob":       cfgKeyGlob,
	"timezone":   cfgKeyTimezone,
	"log-level":  cfgKeyLogLevel,
	"log-format": cfgKeyLogFormat,
}

// setDefaults seeds v with the built-in configuration.
func setDefaults(v *viper.Viper) {
	d := types.DefaultConfig()
	v.SetDefault(cfgKeySource, d.Source)
	v.SetDefault(cfgKeyPageSize, d.Export.PageSize)
	v.SetDefault(cfgKeyPace, d.Export.Pace)
	v.SetDefault(cfgKeyDelimiter, d.Export.Delimiter)
	v.SetDefault(cfgKeyEnclosure, d.Export.Enclosure)
	v.SetDefault(cfgKeyNull, d.Export.Null)
	v.SetDefault(cfgKeyIndex, d.Bulk.Index)
	v.SetDefault(cfgKeyDir, d.Bulk.Dir)
	v.SetDefault(cfgKeyGlob, d.Bulk.Glob)
	v.SetDefault(cfgKeyTimezone, d.Bulk.Timezone)
	v.SetDefault(cfgKeyDateLayouts, d.Bulk.DateLayouts)
	v.SetDefault(cfgKeyDateColumns, d.Bulk.Columns.Date)
	v.SetDefault(cfgKeyNumericCols, d.Bulk.Columns.Numeric)
	v.SetDefault(cfgKeyLogLevel, d.Log.Level)
	v.SetDefault(cfgKeyLogFormat, d.Log.Format)
}

// loadConfig reads config.yaml from configDir using Viper, layering
// defaults, the file, BULKDUMP_* environment variables, and the flags in
// fs. A missing config.yaml is not an error.
func loadConfig(configDir string, fs *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if fs != nil {
		var bindErr error
		fs.VisitAll(func(f *pflag.Flag) {
			key, ok := flagKeys[f.Name]
			if !ok || bindErr != nil {
				return
			}
			bindErr = v.BindPFlag(key, f)
		})
		if bindErr != nil {
			return nil, fmt.Errorf("bind flags: %w", bindErr)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return v, nil
		}
		return nil, fmt.Errorf("read config %s: %w", filepath.Join(configDir, configFileExt), err)
	}
	return v, nil
}

// decodeConfig unmarshals the layered settings into a types.Config.
func decodeConfig(v *viper.Viper) (types.Config, error) {
	var cfg types.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return types.Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

func newConfigCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if used := e.v.ConfigFileUsed(); used != "" {
				fmt.Fprintf(out, "# %s\n", used)
			}
			enc := yaml.NewEncoder(out)
			enc.SetIndent(2)
			if err := enc.Encode(e.cfg); err != nil {
				return fmt.Errorf("encode config: %w", err)
			}
			return enc.Close()
		},
	}
}
