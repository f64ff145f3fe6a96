// Package pinata pins agreement documents to IPFS through the Pinata API.
package pinata

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"tuition-escrow/internal/domain/metadata"
)

const DefaultBaseURL = "https://api.pinata.cloud"

type Config struct {
	BaseURL    string
	APIKey     string
	APISecret  string
	HTTPClient *http.Client
}

var _ metadata.Publisher = (*Publisher)(nil)

type Publisher struct {
	baseURL string
	key     string
	secret  string
	http    *http.Client
}

func NewPublisher(cfg Config) (*Publisher, error) {
	if cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, errors.New("pinata: api key and secret are required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Publisher{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		key:     cfg.APIKey,
		secret:  cfg.APISecret,
		http:    cfg.HTTPClient,
	}, nil
}

type pinRequest struct {
	Content  metadata.Document `json:"pinataContent"`
	Metadata struct {
		Name string `json:"name"`
	} `json:"pinataMetadata"`
}

type pinResponse struct {
	IpfsHash string `json:"IpfsHash"`
}

// Publish pins doc and returns ipfs://<cid>.
func (p *Publisher) Publish(ctx context.Context, name string, doc metadata.Document) (string, error) {
	body := pinRequest{Content: doc}
	body.Metadata.Name = name
	encoded, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("pinata: encode document: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/pinning/pinJSONToIPFS", bytes.NewReader(encoded))
	if err != nil {
		return "", fmt.Errorf("pinata: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("pinata_api_key", p.key)
	req.Header.Set("pinata_secret_api_key", p.secret)

	resp, err := p.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("pinata: pin %s: %w", name, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("pinata: read response: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("pinata: pin %s: http %d: %s", name, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var out pinResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("pinata: decode response: %w", err)
	}
	if out.IpfsHash == "" {
		return "", errors.New("pinata: response has no IpfsHash")
	}
	return "ipfs://" + out.IpfsHash, nil
}
