// Package drivetable loads the drive table of a registry from a YAML, TOML
// or JSON file.
//
// Example file:
//
//	drives:
//	  - prefix: "SD:"
//	    type: fat
//	    options:
//	      capacity: 8388608
//	  - prefix: "SPI:"
//	    type: lfs
//	    fixed: true
//	    auto_format: true
//	    options:
//	      dir: /var/lib/vfs/spi
//	      block_size: 4096
//	      block_count: 512
package drivetable

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. VFS_DRIVES.
const EnvPrefix = "VFS"

// Table is the decoded drive table.
type Table struct {
	Drives []Drive `mapstructure:"drives" validate:"required,min=1,dive"`
}

// Drive is one row of the table. Options are passed to the backend
// factory registered under Type.
type Drive struct {
	Prefix     string         `mapstructure:"prefix" validate:"required,max=16"`
	Type       string         `mapstructure:"type" validate:"required"`
	Fixed      bool           `mapstructure:"fixed"`
	ReadOnly   bool           `mapstructure:"read_only"`
	Label      string         `mapstructure:"label" validate:"max=11"`
	AutoFormat bool           `mapstructure:"auto_format"`
	Options    map[string]any `mapstructure:"options"`
}

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Default returns the table used when no file is configured: one fixed,
// self-formatting flash drive kept in memory.
func Default() *Table {
	return &Table{
		Drives: []Drive{
			{Prefix: "SPI:", Type: "lfs", Fixed: true, AutoFormat: true},
		},
	}
}

// Load reads the table from path. The file format follows its extension.
func Load(path string) (*Table, error) {
	if path == "" {
		return nil, errors.New("drive table path is empty")
	}
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read drive table: %w", err)
	}

	var t Table
	if err := v.Unmarshal(&t); err != nil {
		return nil, fmt.Errorf("failed to unmarshal drive table: %w", err)
	}
	for i := range t.Drives {
		normalize(&t.Drives[i])
	}
	if err := Validate(&t); err != nil {
		return nil, fmt.Errorf("drive table validation failed: %w", err)
	}
	return &t, nil
}

// normalize trims the prefix and makes sure it ends in a colon.
func normalize(d *Drive) {
	d.Prefix = strings.TrimSpace(d.Prefix)
	if d.Prefix != "" && !strings.HasSuffix(d.Prefix, ":") {
		d.Prefix += ":"
	}
	d.Type = strings.ToLower(strings.TrimSpace(d.Type))
}

// Validate checks struct tags and the rules that tags cannot express.
func Validate(t *Table) error {
	if err := validate.Struct(t); err != nil {
		return formatValidationError(err)
	}
	return validateCustomRules(t)
}

func validateCustomRules(t *Table) error {
	seen := make(map[string]int)
	for i, d := range t.Drives {
		name := strings.TrimSuffix(d.Prefix, ":")
		if name == "" {
			return fmt.Errorf("drives[%d]: prefix %q has no name", i, d.Prefix)
		}
		if strings.ContainsAny(name, `/\:`) {
			return fmt.Errorf("drives[%d]: prefix %q contains a separator", i, d.Prefix)
		}
		key := strings.ToUpper(d.Prefix)
		if j, dup := seen[key]; dup {
			return fmt.Errorf("drives[%d]: duplicate prefix %q (also drives[%d])", i, d.Prefix, j)
		}
		seen[key] = i
		if d.AutoFormat && d.ReadOnly {
			return fmt.Errorf("drives[%d]: auto_format is set on read-only drive %q", i, d.Prefix)
		}
	}
	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		e := validationErrs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
			e.Namespace(), e.Tag(), e.Value())
	}
	return err
}
