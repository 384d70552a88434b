package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Tagger asks the image tagging collaborator to describe a photo.
type Tagger interface {
	Tag(ctx context.Context, photoDataURI string) ([]string, error)
}

type TaggingServiceConfig struct {
	ApiKey     string
	Endpoint   string
	HttpClient *http.Client
}

type TaggingService struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
}

type tagRequest struct {
	PhotoDataURI string `json:"photoDataUri"`
}

type tagResponse struct {
	Tags []string `json:"tags"`
}

func NewTaggingService(config TaggingServiceConfig) TaggingService {
	if config.HttpClient == nil {
		config.HttpClient = &http.Client{
			Timeout: time.Second * 30,
		}
	}

	return TaggingService{
		apiKey:     config.ApiKey,
		endpoint:   config.Endpoint,
		httpClient: config.HttpClient,
	}
}

func (s TaggingService) Tag(ctx context.Context, photoDataURI string) ([]string, error) {
	var (
		err      error
		body     []byte
		req      *http.Request
		response *http.Response
	)

	if s.endpoint == "" {
		return nil, fmt.Errorf("tagging endpoint is not configured")
	}

	if body, err = json.Marshal(tagRequest{PhotoDataURI: photoDataURI}); err != nil {
		return nil, fmt.Errorf("error encoding tagging request: %w", err)
	}

	if req, err = http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body)); err != nil {
		return nil, fmt.Errorf("error creating tagging request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	if response, err = s.httpClient.Do(req); err != nil {
		return nil, fmt.Errorf("error calling tagging endpoint: %w", err)
	}

	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tagging endpoint returned status %s", response.Status)
	}

	result := tagResponse{}

	if err = json.NewDecoder(io.LimitReader(response.Body, 1<<20)).Decode(&result); err != nil {
		return nil, fmt.Errorf("error decoding tagging response: %w", err)
	}

	return cleanTags(result.Tags), nil
}

// cleanTags trims, lowercases, and de-duplicates tags. Order is not meaningful.
func cleanTags(tags []string) []string {
	result := []string{}
	seen := map[string]struct{}{}

	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))

		if tag == "" {
			continue
		}

		if _, ok := seen[tag]; ok {
			continue
		}

		seen[tag] = struct{}{}
		result = append(result, tag)
	}

	return result
}

// DataURI encodes image bytes the way the tagging endpoint expects them.
func DataURI(contentType string, b []byte) string {
	if contentType == "" {
		contentType = http.DetectContentType(b)
	}

	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(b)
}
