package repository

import "errors"

var (
	// ErrImageNotFound indicates the collection holds no image with the requested ID
	ErrImageNotFound = errors.New("image not found")

	// ErrInvalidManifest indicates a manifest that cannot be decoded
	ErrInvalidManifest = errors.New("invalid manifest")

	// ErrRepositoryUnavailable indicates the repository is unavailable
	ErrRepositoryUnavailable = errors.New("repository unavailable")
)
