// CUE schema validation code
package config

import (
	"errors"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueyaml "cuelang.org/go/encoding/yaml"
)

// ValidateWithCue validates a YAML configuration file using a CUE schema
// file that defines #Config.
func ValidateWithCue(configFile, cueFile string) error {
	yamlBytes, err := os.ReadFile(configFile)
	if err != nil {
		return fmt.Errorf("cannot read YAML config: %w", err)
	}
	schemaBytes, err := os.ReadFile(cueFile)
	if err != nil {
		return fmt.Errorf("cannot read CUE schema: %w", err)
	}
	return validateBytes(configFile, yamlBytes, schemaBytes)
}

func validateBytes(name string, yamlBytes, schemaBytes []byte) error {
	ctx := cuecontext.New()

	file, err := cueyaml.Extract(name, yamlBytes)
	if err != nil {
		return fmt.Errorf("cannot parse YAML config: %w", err)
	}
	configVal := ctx.BuildFile(file)
	if configVal.Err() != nil {
		return fmt.Errorf("cannot build YAML config: %w", configVal.Err())
	}

	schemaVal := ctx.CompileBytes(schemaBytes)
	if schemaVal.Err() != nil {
		return fmt.Errorf("cannot compile CUE schema: %w", schemaVal.Err())
	}
	def := schemaVal.LookupPath(cue.ParsePath("#Config"))
	if !def.Exists() {
		return errors.New("CUE schema does not define #Config")
	}

	final := def.Unify(configVal)
	if err := final.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}

// Validate checks values the schema cannot express.
func (c *Config) Validate() error {
	var errs []error
	if c.Buffer.Size < 1 {
		errs = append(errs, fmt.Errorf("buffer.size must be >= 1, got %d", c.Buffer.Size))
	}
	if c.RawTraffic.MaxLen < 1 {
		errs = append(errs, fmt.Errorf("raw_traffic.max_len must be >= 1, got %d", c.RawTraffic.MaxLen))
	}
	if c.Window != "raw" && c.Window != "protocol" {
		errs = append(errs, fmt.Errorf("window must be raw or protocol, got %q", c.Window))
	}
	if c.Serial.BaudRate < 1 {
		errs = append(errs, fmt.Errorf("serial.baud_rate must be positive, got %d", c.Serial.BaudRate))
	}
	if c.Serial.ReadTimeout < 0 || c.Serial.ReopenDelay < 0 || c.Input.Interval < 0 {
		errs = append(errs, errors.New("durations must not be negative"))
	}
	if c.Console.MaxEntries < 1 {
		errs = append(errs, fmt.Errorf("console.max_entries must be >= 1, got %d", c.Console.MaxEntries))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	return errors.Join(errs...)
}
