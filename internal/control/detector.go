package control

import (
	"context"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrNoControls is returned when a controls file holds no controls.
var ErrNoControls = errors.New("control: no controls defined")

// Detector yields the controls currently present in the home graph.
type Detector interface {
	DetectControls(ctx context.Context) ([]Control, error)
}

// controlsFile is the layout of a controls YAML file.
type controlsFile struct {
	Controls []Control `yaml:"controls"`
}

// FileDetector reads controls from a YAML file on every call, so edits are
// picked up by the next collection pass.
//
// Example:
//
//	controls:
//	  - type: dimmer
//	    object: hm-rpc.0.ABC123.1
//	    room: {id: enum.rooms.kitchen, name: {en: Kitchen, de: Küche}}
//	    function: {id: enum.functions.light, name: Light}
//	    states:
//	      - {name: SET, id: hm-rpc.0.ABC123.1.LEVEL, write: true, on_value: remember}
//	      - {name: ACTUAL, id: hm-rpc.0.ABC123.1.LEVEL_ACT, read: true}
type FileDetector struct {
	Path string
}

// NewFileDetector creates a detector for path.
func NewFileDetector(path string) *FileDetector {
	return &FileDetector{Path: path}
}

// DetectControls reads and parses the controls file.
func (d *FileDetector) DetectControls(ctx context.Context) ([]Control, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(d.Path)
	if err != nil {
		return nil, fmt.Errorf("reading controls file: %w", err)
	}
	return ParseControls(data)
}

// ParseControls decodes a controls YAML document.
func ParseControls(data []byte) ([]Control, error) {
	var file controlsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing controls file: %w", err)
	}
	if len(file.Controls) == 0 {
		return nil, ErrNoControls
	}
	return file.Controls, nil
}

// StaticDetector returns a fixed control list.
type StaticDetector []Control

// DetectControls returns a copy of the list.
func (s StaticDetector) DetectControls(context.Context) ([]Control, error) {
	out := make([]Control, len(s))
	copy(out, s)
	return out, nil
}
