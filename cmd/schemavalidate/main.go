package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/ogulcanaydogan/tracejson/pkg/tracecfg"
	"github.com/xeipuuv/gojsonschema"
)

type check struct {
	name string
	run  func(root string) error
}

var version = "dev"

func main() {
	if len(os.Args) == 2 && (os.Args[1] == "--version" || os.Args[1] == "version") {
		fmt.Println(version)
		return
	}

	root := projectRoot()
	checks := []check{
		{name: "config schema compile", run: validateSchemaDocument},
		{name: "sample config schema", run: validateSampleConfig},
		{name: "sample config loader", run: validateConfigLoader},
	}

	for _, c := range checks {
		if err := c.run(root); err != nil {
			fmt.Fprintf(os.Stderr, "schema validation failed (%s): %v\n", c.name, err)
			os.Exit(1)
		}
		fmt.Printf("ok: %s\n", c.name)
	}
}

func validateSchemaDocument(string) error {
	if _, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(tracecfg.Schema())); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}
	return nil
}

func validateSampleConfig(root string) error {
	configPath := sampleConfigPath(root)
	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("read config %s: %w", configPath, err)
	}
	return tracecfg.Validate(data)
}

func validateConfigLoader(root string) error {
	configPath := sampleConfigPath(root)
	if _, err := tracecfg.Load(configPath); err != nil {
		return fmt.Errorf("load config %s: %w", configPath, err)
	}
	return nil
}

func sampleConfigPath(root string) string {
	return filepath.Join(root, "config", "tracejson.yaml")
}

func projectRoot() string {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return "."
	}
	return filepath.Clean(filepath.Join(filepath.Dir(filename), "..", ".."))
}
