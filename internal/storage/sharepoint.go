package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/fr0stylo/linevault/internal/app/ports"
)

const (
	defaultLoginBaseURL = "https://login.microsoftonline.com"
	defaultGraphBaseURL = "https://graph.microsoft.com"
	defaultFolder       = "LineVaultData"

	// Tokens are refreshed this long before their reported expiry.
	tokenExpirySkew = 5 * time.Minute
)

// SharePointConfig holds the Graph client-credential settings.
type SharePointConfig struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	DriveID      string
	Folder       string
	// LoginBaseURL and GraphBaseURL override the Microsoft endpoints in tests.
	LoginBaseURL string
	GraphBaseURL string
}

// SharePoint uploads media to a drive folder via the Microsoft Graph API.
// Uploads use conflictBehavior=replace, so re-sending the same object name
// overwrites instead of duplicating. Safe for concurrent use.
type SharePoint struct {
	cfg    SharePointConfig
	client *http.Client

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewSharePoint validates the config and returns the backend.
func NewSharePoint(cfg SharePointConfig) (*SharePoint, error) {
	if cfg.TenantID == "" || cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.DriveID == "" {
		return nil, fmt.Errorf("sharepoint storage requires tenant id, client id, client secret and drive id")
	}
	if cfg.Folder == "" {
		cfg.Folder = defaultFolder
	}
	if cfg.LoginBaseURL == "" {
		cfg.LoginBaseURL = defaultLoginBaseURL
	}
	if cfg.GraphBaseURL == "" {
		cfg.GraphBaseURL = defaultGraphBaseURL
	}
	return &SharePoint{
		cfg:    cfg,
		client: &http.Client{Timeout: 60 * time.Second},
	}, nil
}

// Upload puts content into the configured drive folder under name.
func (s *SharePoint) Upload(ctx context.Context, content []byte, name, contentType string) (ports.UploadedFile, error) {
	token, err := s.token(ctx)
	if err != nil {
		return ports.UploadedFile{}, err
	}

	uploadURL := fmt.Sprintf(
		"%s/v1.0/drives/%s/root:/%s/%s:/content?@microsoft.graph.conflictBehavior=replace",
		strings.TrimRight(s.cfg.GraphBaseURL, "/"),
		url.PathEscape(s.cfg.DriveID),
		url.PathEscape(s.cfg.Folder),
		url.PathEscape(name),
	)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, bytes.NewReader(content))
	if err != nil {
		return ports.UploadedFile{}, fmt.Errorf("%w: build request: %v", ports.ErrUpload, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", contentType)

	resp, err := s.client.Do(req)
	if err != nil {
		return ports.UploadedFile{}, fmt.Errorf("%w: %v", ports.ErrUpload, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return ports.UploadedFile{}, fmt.Errorf("%w: graph status %s: %s", ports.ErrUpload, resp.Status, strings.TrimSpace(string(detail)))
	}

	var item struct {
		ID     string `json:"id"`
		Name   string `json:"name"`
		WebURL string `json:"webUrl"`
		Size   int64  `json:"size"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&item); err != nil {
		return ports.UploadedFile{}, fmt.Errorf("%w: decode drive item: %v", ports.ErrUpload, err)
	}

	size := item.Size
	if size == 0 {
		size = int64(len(content))
	}
	return ports.UploadedFile{
		ID:          item.ID,
		Name:        item.Name,
		URL:         item.WebURL,
		ContentType: contentType,
		Size:        size,
		UploadedAt:  time.Now().UTC(),
	}, nil
}

// token returns a cached client-credential access token, fetching a fresh one
// when the cache is empty or about to expire.
func (s *SharePoint) token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.accessToken != "" && time.Now().Before(s.tokenExpiry) {
		return s.accessToken, nil
	}

	tokenURL := fmt.Sprintf("%s/%s/oauth2/v2.0/token", strings.TrimRight(s.cfg.LoginBaseURL, "/"), url.PathEscape(s.cfg.TenantID))
	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {s.cfg.ClientID},
		"client_secret": {s.cfg.ClientSecret},
		"scope":         {"https://graph.microsoft.com/.default"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("%w: build token request: %v", ports.ErrUpload, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: token request: %v", ports.ErrUpload, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("%w: token status %s: %s", ports.ErrUpload, resp.Status, strings.TrimSpace(string(detail)))
	}

	var token struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return "", fmt.Errorf("%w: decode token: %v", ports.ErrUpload, err)
	}
	if token.AccessToken == "" {
		return "", fmt.Errorf("%w: empty access token", ports.ErrUpload)
	}

	s.accessToken = token.AccessToken
	s.tokenExpiry = time.Now().Add(time.Duration(token.ExpiresIn)*time.Second - tokenExpirySkew)
	return s.accessToken, nil
}

var _ ports.BlobStore = (*SharePoint)(nil)
