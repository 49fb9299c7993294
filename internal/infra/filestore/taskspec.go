package filestore

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nimec77/deepseek-agents/internal/domain/task"
	jsonx "github.com/nimec77/deepseek-agents/internal/shared/json"
)

// LoadTaskSpec reads a TaskSpec from a .json, .yaml or .yml file and validates it.
func LoadTaskSpec(path string) (task.Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return task.Spec{}, fmt.Errorf("read task file: %w", err)
	}
	spec, err := ParseTaskSpec(data, filepath.Ext(path))
	if err != nil {
		return task.Spec{}, fmt.Errorf("%s: %w", path, err)
	}
	return spec, nil
}

// ParseTaskSpec decodes data as YAML when ext is .yaml/.yml and as a single
// JSON object otherwise. Unknown fields are rejected in both formats.
func ParseTaskSpec(data []byte, ext string) (task.Spec, error) {
	var spec task.Spec
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&spec); err != nil {
			return task.Spec{}, fmt.Errorf("parse yaml task: %w", err)
		}
	default:
		if err := jsonx.UnmarshalObject(data, &spec); err != nil {
			return task.Spec{}, fmt.Errorf("parse json task: %w", err)
		}
		dec := jsonx.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&task.Spec{}); err != nil {
			return task.Spec{}, fmt.Errorf("parse json task: %w", err)
		}
	}

	if dt, err := task.ParseDeliverableType(string(spec.DeliverableType)); err == nil {
		spec.DeliverableType = dt
	}
	if err := spec.Validate(); err != nil {
		return task.Spec{}, fmt.Errorf("invalid task: %w", err)
	}
	return spec, nil
}
