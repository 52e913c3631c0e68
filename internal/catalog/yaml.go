package catalog

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

type yamlFile struct {
	Entries []*Entry `yaml:"entries"`
}

// ParseYAMLFile reads a YAML catalog file from the given path.
func ParseYAMLFile(path string) ([]*Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	entries, err := ParseYAML(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return entries, nil
}

// ParseYAML decodes one or more YAML documents of the form
// "entries: [...]". Unknown fields are rejected.
func ParseYAML(r io.Reader) ([]*Entry, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var entries []*Entry
	for {
		var doc yamlFile
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to decode catalog yaml: %w", err)
		}
		entries = append(entries, doc.Entries...)
	}
	return entries, nil
}
