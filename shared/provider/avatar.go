package provider

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
)

const maxAvatarBytes = 5 << 20

// AvatarFetcher downloads profile pictures and inlines them as data URIs.
type AvatarFetcher struct {
	httpClient *http.Client
}

// NewAvatarFetcher creates an AvatarFetcher. A nil client uses http.DefaultClient.
func NewAvatarFetcher(httpClient *http.Client) *AvatarFetcher {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &AvatarFetcher{httpClient: httpClient}
}

// Fetch returns url's content as a data:image/jpeg;base64 URI.
func (f *AvatarFetcher) Fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("avatar download: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAvatarBytes+1))
	if err != nil {
		return "", err
	}
	if len(data) > maxAvatarBytes {
		return "", fmt.Errorf("avatar larger than %d bytes", maxAvatarBytes)
	}

	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(data), nil
}
