package platform

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Layer directory names inside a staged data product tree. The push order
// PDM, LDM, AM is a hard dependency: the LDM references the datasource the
// PDM describes, and the AM references LDM objects.
const (
	pdmDir = "pdm"
	ldmDir = "ldm"
	amDir  = "am"
)

// Bundle is a declarative data product loaded from a staged directory tree:
// physical, logical, and analytics model layers.
type Bundle struct {
	PDM map[string]any
	LDM map[string]any
	AM  map[string]any
}

// LoadBundle reads the three model layers from dir. Each layer directory is
// walked recursively and every YAML document's top-level keys are merged into
// the layer.
func LoadBundle(dir string) (*Bundle, error) {
	pdm, err := loadLayer(filepath.Join(dir, pdmDir))
	if err != nil {
		return nil, fmt.Errorf("load pdm: %w", err)
	}
	ldm, err := loadLayer(filepath.Join(dir, ldmDir))
	if err != nil {
		return nil, fmt.Errorf("load ldm: %w", err)
	}
	am, err := loadLayer(filepath.Join(dir, amDir))
	if err != nil {
		return nil, fmt.Errorf("load am: %w", err)
	}
	return &Bundle{PDM: pdm, LDM: ldm, AM: am}, nil
}

// loadLayer merges every YAML file under dir into one document.
func loadLayer(dir string) (map[string]any, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("layer directory %s: %w", dir, err)
	}

	layer := map[string]any{}
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isYAML(path) {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		var doc map[string]any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		for k, v := range doc {
			layer[k] = v
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return layer, nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// remapDatasourceReferences rewrites every dataset's dataSourceTableId to
// point at the live datasource. Staged models carry the identifier of the
// datasource they were exported from.
func remapDatasourceReferences(ldm map[string]any, datasourceID string) {
	datasets, ok := ldm["datasets"].([]any)
	if !ok {
		return
	}
	for _, item := range datasets {
		dataset, ok := item.(map[string]any)
		if !ok {
			continue
		}
		ref, ok := dataset["dataSourceTableId"].(map[string]any)
		if !ok {
			continue
		}
		if _, ok := ref["dataSourceId"]; ok {
			ref["dataSourceId"] = datasourceID
		}
	}
}
