package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
)

// IsAzureBlobHost reports whether a host is an Azure Blob Storage endpoint
func IsAzureBlobHost(host string) bool {
	return strings.HasSuffix(strings.ToLower(host), ".blob.core.windows.net")
}

type azureStatter struct {
	client *azblob.Client
}

// NewAzureStatter creates a statter reading blob properties with a shared key.
// An empty endpoint uses the account's public blob service URL.
func NewAzureStatter(endpoint, accountName, accountKey string) (FileStatter, error) {
	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, err
	}

	if endpoint == "" {
		endpoint = fmt.Sprintf("https://%s.blob.core.windows.net", accountName)
	}
	client, err := azblob.NewClientWithSharedKeyCredential(endpoint, credential, nil)
	if err != nil {
		return nil, err
	}

	return &azureStatter{client: client}, nil
}

// ParseBlobLocation splits a blob location into container and blob name.
// Accepted forms: https://<account>.blob.core.windows.net/<container>/<blob>
// and az://<container>/<blob>.
func ParseBlobLocation(location string) (string, string, error) {
	u, err := url.Parse(location)
	if err != nil {
		return "", "", fmt.Errorf("invalid blob URL: %w", err)
	}

	var parts []string
	switch strings.ToLower(u.Scheme) {
	case "az", "azure":
		parts = append([]string{u.Host}, strings.SplitN(strings.TrimPrefix(u.Path, "/"), "/", 2)...)
	default:
		parts = strings.SplitN(strings.TrimPrefix(u.Path, "/"), "/", 2)
	}
	if len(parts) < 2 || parts[0] == "" || parts[len(parts)-1] == "" {
		return "", "", fmt.Errorf("blob location %q must name a container and a blob", location)
	}
	if len(parts) > 2 {
		parts = []string{parts[0], strings.Join(parts[1:], "/")}
	}
	return parts[0], parts[1], nil
}

func (s *azureStatter) Stat(ctx context.Context, location string) (FileInfo, error) {
	containerName, blobName, err := ParseBlobLocation(location)
	if err != nil {
		return FileInfo{}, err
	}

	props, err := s.client.ServiceClient().
		NewContainerClient(containerName).
		NewBlobClient(blobName).
		GetProperties(ctx, nil)
	if err != nil {
		return FileInfo{}, fmt.Errorf("blob properties failed: %w", err)
	}

	info := FileInfo{Path: location}
	if props.ContentLength != nil {
		info.SizeBytes = *props.ContentLength
	}
	if props.LastModified != nil {
		info.LastModified = *props.LastModified
	}
	return info, nil
}
