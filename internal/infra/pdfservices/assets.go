package pdfservices

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Asset is a file stored by the service.
type Asset struct {
	ID          string `json:"assetID"`
	DownloadURI string `json:"downloadUri,omitempty"`
	UploadURI   string `json:"uploadUri,omitempty"`
}

type uploadRequest struct {
	MediaType string `json:"mediaType"`
}

// Upload registers a new asset and PUTs r to its pre-signed upload URI.
func (c *Client) Upload(ctx context.Context, r io.Reader, mediaType string) (Asset, error) {
	resp, err := c.doJSON(ctx, "upload", http.MethodPost, c.endpoint("/assets"), uploadRequest{MediaType: mediaType})
	if err != nil {
		return Asset{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return Asset{}, newAPIError("upload", resp)
	}

	var asset Asset
	if err := json.NewDecoder(resp.Body).Decode(&asset); err != nil {
		return Asset{}, fmt.Errorf("failed to decode upload response: %w", err)
	}
	if asset.UploadURI == "" || asset.ID == "" {
		return Asset{}, fmt.Errorf("upload response is missing uploadUri or assetID")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, asset.UploadURI, r)
	if err != nil {
		return Asset{}, fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Content-Type", mediaType)

	put, err := c.httpClient.Do(req)
	if err != nil {
		return Asset{}, fmt.Errorf("upload request failed: %w", err)
	}
	defer put.Body.Close()

	if put.StatusCode < 200 || put.StatusCode > 299 {
		return Asset{}, newAPIError("upload content", put)
	}
	_, _ = io.Copy(io.Discard, put.Body)

	return Asset{ID: asset.ID}, nil
}

// Content streams a result asset from its pre-signed download URI. The
// caller must close the returned reader.
func (c *Client) Content(ctx context.Context, asset Asset) (io.ReadCloser, error) {
	if asset.DownloadURI == "" {
		return nil, fmt.Errorf("asset %q has no download uri", asset.ID)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, asset.DownloadURI, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create download request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, newAPIError("content", resp)
	}
	return resp.Body, nil
}
