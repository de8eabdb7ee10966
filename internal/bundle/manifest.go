package bundle

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/shinji-kodama/dllbundle/internal/model"
)

// ManifestFile is the manifest's file name inside the output directory.
const ManifestFile = ".dllbundle-manifest.yaml"

// Manifest records every file dllbundle has copied into an output
// directory, across runs. It is the explicit alternative to inferring
// completion from which files happen to exist.
type Manifest struct {
	// Executable is the path of the executable the files were bundled for.
	Executable string `yaml:"executable,omitempty"`

	// Updated is the time of the last run that changed the manifest.
	Updated time.Time `yaml:"updated"`

	// Files lists copied files in the order they were first copied.
	Files []ManifestEntry `yaml:"files"`
}

// ManifestEntry is one copied file.
type ManifestEntry struct {
	Name       string `yaml:"name"`
	Source     string `yaml:"source"`
	Compressed bool   `yaml:"compressed,omitempty"`
}

// ManifestPath returns the manifest location for an output directory.
func ManifestPath(outputDir string) string {
	return filepath.Join(outputDir, ManifestFile)
}

// LoadManifest reads the manifest of outputDir. A missing manifest is not an
// error; an empty one is returned instead.
func LoadManifest(outputDir string) (*Manifest, error) {
	data, err := os.ReadFile(ManifestPath(outputDir))
	if os.IsNotExist(err) {
		return &Manifest{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", ManifestPath(outputDir), err)
	}
	return &m, nil
}

// Has reports whether name was recorded by an earlier run.
func (m *Manifest) Has(name string) bool {
	return m.index(name) >= 0
}

func (m *Manifest) index(name string) int {
	for i, f := range m.Files {
		if model.SameName(f.Name, name) {
			return i
		}
	}
	return -1
}

// Record merges the files of one run into the manifest. Names already
// present are updated in place; new names are appended.
func (m *Manifest) Record(executable string, copied []Copied, now time.Time) {
	if executable != "" {
		m.Executable = executable
	}

	for _, c := range copied {
		entry := ManifestEntry{Name: c.Name, Source: c.Source, Compressed: c.Compressed}
		if i := m.index(c.Name); i >= 0 {
			m.Files[i] = entry
			continue
		}
		m.Files = append(m.Files, entry)
	}
	m.Updated = now.UTC()
}

// WriteManifest stores m in outputDir, replacing any previous manifest.
func WriteManifest(outputDir string, m *Manifest) error {
	var buf bytes.Buffer
	buf.WriteString("# Generated by dllbundle. Lists every file copied into this directory.\n")

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(m); err != nil {
		return fmt.Errorf("failed to serialize manifest: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to serialize manifest: %w", err)
	}

	err := writeAtomic(ManifestPath(outputDir), 0o644, func(w io.Writer) error {
		_, err := w.Write(buf.Bytes())
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}
