package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go-wsi-cohort/internal/storage"
	"go-wsi-cohort/pkg/models"
)

// maxDescriptorBytes caps one descriptor document; slide metadata with
// embedded ICC profiles stays well below it
const maxDescriptorBytes = 32 << 20

// HTTPRepository reads descriptors from a slide server:
//
//	GET {base}/slides       -> [{"id": "...", "name": "..."}]
//	GET {base}/slides/{id}  -> descriptor document
type HTTPRepository struct {
	baseURL string
	client  *http.Client
	retries int
	backoff time.Duration
}

// NewHTTPRepository creates a repository for the slide server at baseURL
func NewHTTPRepository(baseURL string, client *http.Client) *HTTPRepository {
	if client == nil {
		client = storage.NewHTTPClient(30 * time.Second)
	}
	return &HTTPRepository{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		retries: 3,
		backoff: time.Second,
	}
}

// WithBackoff overrides the delay unit between retries
func (r *HTTPRepository) WithBackoff(d time.Duration) *HTTPRepository {
	r.backoff = d
	return r
}

// List fetches the slide index
func (r *HTTPRepository) List(ctx context.Context) ([]ImageRef, error) {
	var refs []ImageRef
	if err := r.getJSON(ctx, r.baseURL+"/slides", &refs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRepositoryUnavailable, err)
	}
	for i := range refs {
		if refs[i].Name == "" {
			refs[i].Name = refs[i].ID
		}
	}
	return refs, nil
}

// Open fetches one descriptor
func (r *HTTPRepository) Open(ctx context.Context, ref ImageRef) (models.Descriptor, error) {
	var d models.SlideDescriptor
	if err := r.getJSON(ctx, r.baseURL+"/slides/"+url.PathEscape(ref.ID), &d); err != nil {
		return nil, err
	}
	if d.ImageName == "" {
		d.ImageName = ref.Name
	}
	return &d, nil
}

func (r *HTTPRepository) getJSON(ctx context.Context, target string, v any) error {
	resp, err := storage.DoWithRetry(ctx, r.client, http.MethodGet, target, r.retries, r.backoff)
	if err != nil {
		if strings.Contains(err.Error(), "status code 404") {
			return fmt.Errorf("%w: %s", ErrImageNotFound, target)
		}
		return err
	}
	defer resp.Body.Close()

	dec := json.NewDecoder(io.LimitReader(resp.Body, maxDescriptorBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", target, err)
	}
	return nil
}
