package repository

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"go-wsi-cohort/pkg/models"

	"gopkg.in/yaml.v3"
)

// Manifest is a cohort description listing one descriptor per image. JSON
// manifests decode too, JSON being a subset of YAML.
type Manifest struct {
	ProjectName string                    `yaml:"project_name"`
	Images      []models.SlideDescriptor `yaml:"images"`
}

// ParseManifest decodes a manifest from r
func ParseManifest(r io.Reader) (*Manifest, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}

	var m Manifest
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	if doc.Kind == 0 {
		return &m, nil
	}
	if untagTimestamps(&doc) {
		if data, err = yaml.Marshal(&doc); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
		}
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		if err == io.EOF {
			return &m, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	return &m, nil
}

// untagTimestamps turns plain date scalars into strings so metadata values
// such as "ScanDate: 2023-01-05" keep the text they were written with.
func untagTimestamps(n *yaml.Node) bool {
	changed := false
	if n.Kind == yaml.ScalarNode && n.ShortTag() == "!!timestamp" && n.Style&yaml.TaggedStyle == 0 {
		n.Tag = "!!str"
		changed = true
	}
	for _, c := range n.Content {
		if untagTimestamps(c) {
			changed = true
		}
	}
	return changed
}

// LoadManifest reads and decodes a manifest file
func LoadManifest(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRepositoryUnavailable, err)
	}
	defer f.Close()
	return ParseManifest(f)
}

// ManifestRepository opens images listed in a manifest file
type ManifestRepository struct {
	*MemoryRepository
	path string
}

// NewManifestRepository loads the manifest at path. projectName overrides the
// manifest's own project name when set.
func NewManifestRepository(path, projectName string) (*ManifestRepository, error) {
	m, err := LoadManifest(path)
	if err != nil {
		return nil, err
	}
	if projectName == "" {
		projectName = m.ProjectName
	}
	return &ManifestRepository{
		MemoryRepository: NewMemoryRepository(projectName, m.Images),
		path:             path,
	}, nil
}

// Open returns the descriptor of one manifest entry
func (r *ManifestRepository) Open(ctx context.Context, ref ImageRef) (models.Descriptor, error) {
	d, err := r.MemoryRepository.Open(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", r.path, err)
	}
	return d, nil
}
