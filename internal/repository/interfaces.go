package repository

import (
	"context"

	"go-wsi-cohort/pkg/models"
)

// ImageRef identifies one image of a collection. ID is unique within the
// repository; Name is what the processing log reports.
type ImageRef struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// ImageRepository is the image-opening collaborator of a cohort run
type ImageRepository interface {
	// List returns the collection in traversal order
	List(ctx context.Context) ([]ImageRef, error)

	// Open returns the descriptor of one image. Each call returns an
	// independent descriptor, so parallel workers never share one.
	Open(ctx context.Context, ref ImageRef) (models.Descriptor, error)
}
