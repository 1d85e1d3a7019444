package tracecfg

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/ogulcanaydogan/tracejson/pkg/reassemble"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

//go:embed schema.json
var schemaDocument []byte

// Config mirrors config/tracejson.yaml.
type Config struct {
	APIVersion string          `yaml:"apiVersion"`
	Kind       string          `yaml:"kind"`
	Marker     string          `yaml:"marker"`
	Output     OutputConfig    `yaml:"output"`
	Telemetry  TelemetryConfig `yaml:"telemetry"`
	Metrics    MetricsConfig   `yaml:"metrics"`
}

// OutputConfig controls canonical serialization and the save prompt.
type OutputConfig struct {
	Separators       string `yaml:"separators"`
	EnsureASCII      bool   `yaml:"ensure_ascii"`
	DefaultExtension string `yaml:"default_extension"`
}

// TelemetryConfig selects span export.
type TelemetryConfig struct {
	ServiceName  string `yaml:"service_name"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	StdoutTrace  bool   `yaml:"stdout_trace"`
}

// MetricsConfig points at an optional node_exporter textfile.
type MetricsConfig struct {
	Textfile string `yaml:"textfile"`
}

// Default returns v1alpha1 defaults.
func Default() Config {
	return Config{
		APIVersion: "tracejson.dev/v1alpha1",
		Kind:       "TraceJSONConfig",
		Marker:     reassemble.Marker,
		Output: OutputConfig{
			Separators:       string(reassemble.SeparatorsSpaced),
			EnsureASCII:      true,
			DefaultExtension: ".json",
		},
		Telemetry: TelemetryConfig{
			ServiceName: "tracejson",
		},
	}
}

// Schema returns the JSON schema config documents are checked against.
func Schema() []byte {
	return schemaDocument
}

// Load parses, validates and normalizes a config file.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := Validate(data); err != nil {
		return cfg, fmt.Errorf("validate config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("unmarshal config %s: %w", path, err)
	}
	normalize(&cfg)
	return cfg, nil
}

// Validate checks a YAML config document against Schema.
func Validate(data []byte) error {
	var payload interface{}
	if err := yaml.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("parse config yaml: %w", err)
	}
	if payload == nil {
		payload = map[string]interface{}{}
	}

	payloadBytes, err := json.Marshal(normalizeYAML(payload))
	if err != nil {
		return fmt.Errorf("marshal config payload: %w", err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaDocument),
		gojsonschema.NewBytesLoader(payloadBytes),
	)
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}
	if result.Valid() {
		return nil
	}

	issues := make([]string, 0, len(result.Errors()))
	for _, issue := range result.Errors() {
		issues = append(issues, issue.String())
	}
	return fmt.Errorf("config failed schema validation: %s", strings.Join(issues, "; "))
}

// Format converts the output section to the serializer settings.
func (c Config) Format() reassemble.Format {
	return reassemble.Format{
		Separators:  reassemble.Separators(c.Output.Separators),
		EnsureASCII: c.Output.EnsureASCII,
	}
}

func normalize(cfg *Config) {
	if cfg.Marker == "" {
		cfg.Marker = Default().Marker
	}
	if cfg.Output.Separators == "" {
		cfg.Output.Separators = Default().Output.Separators
	}
	if cfg.Output.DefaultExtension == "" {
		cfg.Output.DefaultExtension = Default().Output.DefaultExtension
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = Default().Telemetry.ServiceName
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = Default().APIVersion
	}
	if cfg.Kind == "" {
		cfg.Kind = Default().Kind
	}
}

func normalizeYAML(v interface{}) interface{} {
	switch x := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(x))
		for k, value := range x {
			out[k] = normalizeYAML(value)
		}
		return out
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(x))
		for k, value := range x {
			out[fmt.Sprint(k)] = normalizeYAML(value)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(x))
		for i := range x {
			out[i] = normalizeYAML(x[i])
		}
		return out
	default:
		return x
	}
}
