package repository

import (
	"context"
	"fmt"
	"strconv"

	"go-wsi-cohort/pkg/models"
)

// MemoryRepository serves descriptors held in memory, such as descriptors
// posted to the HTTP API or decoded from a manifest
type MemoryRepository struct {
	project string
	slides  []models.SlideDescriptor
}

// NewMemoryRepository creates a repository over the given descriptors. The
// project name is applied to descriptors that carry none.
func NewMemoryRepository(project string, slides []models.SlideDescriptor) *MemoryRepository {
	return &MemoryRepository{project: project, slides: slides}
}

// List returns one ref per descriptor, IDs being the positions
func (r *MemoryRepository) List(ctx context.Context) ([]ImageRef, error) {
	refs := make([]ImageRef, len(r.slides))
	for i, s := range r.slides {
		refs[i] = ImageRef{ID: strconv.Itoa(i), Name: s.ImageName}
	}
	return refs, nil
}

// Open returns a copy of the descriptor at the ref's position
func (r *MemoryRepository) Open(ctx context.Context, ref ImageRef) (models.Descriptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	i, err := strconv.Atoi(ref.ID)
	if err != nil || i < 0 || i >= len(r.slides) {
		return nil, fmt.Errorf("%w: %q", ErrImageNotFound, ref.ID)
	}

	d := r.slides[i]
	if d.Project == "" {
		d.Project = r.project
	}
	if d.ImageName == "" {
		return nil, fmt.Errorf("descriptor %s has no image name", ref.ID)
	}
	return &d, nil
}

// Len returns the number of descriptors
func (r *MemoryRepository) Len() int {
	return len(r.slides)
}
