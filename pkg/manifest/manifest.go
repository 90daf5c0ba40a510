// Package manifest reads the manifest that describes a deployable bundle of stage
// types.
//
//	plugin_id: acme-text
//	sdk_version: 1.0.0
//	base_package: github.com/acme/stages
//	plugin_version: 0.3.1
//	stages:
//	  - id: textcase
//	    description: Changes case
//	    config:
//	      field: title
//	      mode: upper
package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"

	"github.com/wehubfusion/Stagehand/pkg/schema"
	"github.com/wehubfusion/Stagehand/pkg/stage"
)

// SDKVersion is the version of the stage contract implemented by this module.
const SDKVersion = "1.0.0"

var pluginIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)

// canonical returns version with the "v" prefix semver expects, or "" when it is
// not a full MAJOR.MINOR.PATCH version. Build metadata is not accepted.
func canonical(version string) string {
	v := "v" + strings.TrimPrefix(version, "v")
	if !semver.IsValid(v) || semver.Canonical(v) != v {
		return ""
	}
	return v
}

// Manifest describes a deployable unit of stage types.
type Manifest struct {
	PluginID      string     `yaml:"plugin_id"`
	SDKVersion    string     `yaml:"sdk_version"`
	BasePackage   string     `yaml:"base_package"`
	PluginVersion string     `yaml:"plugin_version"`
	Stages        []StageRef `yaml:"stages"`
}

// StageRef names a stage type of the unit. Config, when present, is a sample
// configuration checked against the stage descriptor.
type StageRef struct {
	ID          string                 `yaml:"id"`
	Description string                 `yaml:"description,omitempty"`
	Config      map[string]interface{} `yaml:"config,omitempty"`
}

// Load reads and validates a manifest file.
func Load(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// Parse decodes and validates a manifest.
func Parse(data []byte) (*Manifest, error) {
	return Read(bytes.NewReader(data))
}

// Read decodes and validates a manifest. Unknown keys are rejected.
func Read(r io.Reader) (*Manifest, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var m Manifest
	if err := dec.Decode(&m); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("manifest is empty")
		}
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate reports every problem of the manifest at once.
func (m *Manifest) Validate() error {
	var errs []error
	if !pluginIDPattern.MatchString(m.PluginID) {
		errs = append(errs, fmt.Errorf("plugin_id %q must be lower case letters, digits, '.', '_' or '-'", m.PluginID))
	}
	if m.BasePackage == "" {
		errs = append(errs, errors.New("base_package is required"))
	}
	if canonical(m.PluginVersion) == "" {
		errs = append(errs, fmt.Errorf("plugin_version %q is not a semantic version", m.PluginVersion))
	}
	if canonical(m.SDKVersion) == "" {
		errs = append(errs, fmt.Errorf("sdk_version %q is not a semantic version", m.SDKVersion))
	} else if !Compatible(m.SDKVersion) {
		errs = append(errs, fmt.Errorf("sdk_version %s is not compatible with %s", m.SDKVersion, SDKVersion))
	}

	if len(m.Stages) == 0 {
		errs = append(errs, errors.New("at least one stage is required"))
	}
	seen := make(map[string]bool, len(m.Stages))
	for i, s := range m.Stages {
		switch {
		case strings.TrimSpace(s.ID) == "":
			errs = append(errs, fmt.Errorf("stages[%d]: id is required", i))
		case seen[s.ID]:
			errs = append(errs, fmt.Errorf("stages[%d]: duplicate stage %s", i, s.ID))
		}
		seen[s.ID] = true
	}
	return errors.Join(errs...)
}

// Compatible reports whether a manifest built against version can be hosted by this
// SDK: major versions must match and the minor version must not be newer.
func Compatible(version string) bool {
	want, have := canonical(version), canonical(SDKVersion)
	if want == "" || have == "" {
		return false
	}
	return semver.Major(want) == semver.Major(have) &&
		semver.Compare(semver.MajorMinor(want), semver.MajorMinor(have)) <= 0
}

// Check verifies that every stage of the manifest is registered and that sample
// configurations validate against their descriptors.
func (m *Manifest) Check(r *stage.Registry) error {
	var errs []error
	for _, s := range m.Stages {
		t, ok := r.Lookup(s.ID)
		if !ok {
			errs = append(errs, fmt.Errorf("stage %s: %w", s.ID, stage.ErrUnknownStage))
			continue
		}
		if s.Config == nil {
			continue
		}
		if _, err := schema.Validate(t.Descriptor, s.Config); err != nil {
			errs = append(errs, fmt.Errorf("stage %s: %w", s.ID, err))
		}
	}
	return errors.Join(errs...)
}

// Stage returns the entry for id.
func (m *Manifest) Stage(id string) (StageRef, bool) {
	for _, s := range m.Stages {
		if s.ID == id {
			return s, true
		}
	}
	return StageRef{}, false
}

// Marshal encodes the manifest as YAML.
func (m *Manifest) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(m); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
