package line

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/fr0stylo/linevault/internal/app/ports"
)

// DefaultContentAPIBaseURL is the LINE data endpoint for message content.
const DefaultContentAPIBaseURL = "https://api-data.line.me"

const maxMediaBytes = 100 << 20

// ContentClient downloads message media from the platform content API.
// Safe for concurrent use.
type ContentClient struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewContentClient constructs a content API client authenticated with the
// channel access token. An empty baseURL selects the production endpoint.
func NewContentClient(baseURL, channelAccessToken string) *ContentClient {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultContentAPIBaseURL
	}
	return &ContentClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   channelAccessToken,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// FetchMedia retrieves the binary content for a message id. One outbound call
// per invocation; failures wrap ports.ErrMediaFetch.
func (c *ContentClient) FetchMedia(ctx context.Context, mediaID string) (ports.MediaContent, error) {
	requestURL := fmt.Sprintf("%s/v2/bot/message/%s/content", c.baseURL, url.PathEscape(mediaID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return ports.MediaContent{}, fmt.Errorf("%w: build request: %v", ports.ErrMediaFetch, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return ports.MediaContent{}, fmt.Errorf("%w: %v", ports.ErrMediaFetch, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		return ports.MediaContent{}, fmt.Errorf("%w: content api status %s for media %s", ports.ErrMediaFetch, resp.Status, mediaID)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxMediaBytes))
	if err != nil {
		return ports.MediaContent{}, fmt.Errorf("%w: read body: %v", ports.ErrMediaFetch, err)
	}

	contentType := strings.TrimSpace(resp.Header.Get("Content-Type"))
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = mimetype.Detect(body).String()
	}
	return ports.MediaContent{Bytes: body, ContentType: contentType}, nil
}

var _ ports.MediaFetcher = (*ContentClient)(nil)
