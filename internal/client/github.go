package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github/backup/internal/config"
	"github/backup/internal/domain"

	log "github.com/sirupsen/logrus"
	"go.uber.org/ratelimit"
	"resty.dev/v3"
)

// Authenticated is the capability the client needs from a credential
// source. An empty token means anonymous access.
type Authenticated interface {
	Token() string
}

type GitHubClient interface {
	FetchViewer(ctx context.Context) (string, error)
	FetchCatalog(ctx context.Context, kind domain.ItemKind) (*domain.Catalog, error)
	Download(ctx context.Context, url, dest string) error
}

type githubClient struct {
	rl         ratelimit.Limiter
	config     config.GitHubConfig
	baseURL    string
	httpClient *resty.Client

	pageRetryDelay time.Duration
}

func NewGitHubClient(cfg config.GitHubConfig, creds Authenticated) GitHubClient {
	client := resty.New().
		SetTimeout(time.Duration(cfg.Timeout)*time.Second).
		SetHeader("User-Agent", "github-backup").
		SetHeader("Accept", "application/vnd.github+json")

	if creds != nil && creds.Token() != "" {
		client.SetAuthToken(creds.Token())
	}

	rl := ratelimit.NewUnlimited()
	if cfg.MaxRequestsPerSecond > 0 {
		rl = ratelimit.New(cfg.MaxRequestsPerSecond)
	}

	return &githubClient{
		rl:             rl,
		config:         cfg,
		baseURL:        cfg.BaseURL,
		httpClient:     client,
		pageRetryDelay: 2 * time.Second,
	}
}

// FetchViewer resolves the login of the authenticated user.
func (c *githubClient) FetchViewer(ctx context.Context) (string, error) {
	body, err := c.fetchJSON(ctx, c.baseURL+"/user")
	if err != nil {
		return "", fmt.Errorf("failed to fetch viewer: %w", err)
	}

	var viewer struct {
		Login string `json:"login"`
	}
	if err := json.Unmarshal(body, &viewer); err != nil {
		return "", fmt.Errorf("failed to decode viewer: %w", err)
	}

	log.Debugf("Authenticated as %s", viewer.Login)
	return viewer.Login, nil
}

// FetchCatalog walks the listing pages for one item kind until a page
// comes back empty. A page that exhausts its retries stops the walk and
// the catalog is returned with Truncated set; entries gathered from
// earlier pages are kept. An auth rejection aborts the whole fetch.
func (c *githubClient) FetchCatalog(ctx context.Context, kind domain.ItemKind) (*domain.Catalog, error) {
	catalog := domain.NewCatalog(kind)

	pageSize := c.config.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}

	for page := 1; ; page++ {
		entries, err := c.fetchPage(ctx, kind, page, pageSize)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("catalog fetch cancelled: %w", err)
			}
			if isAuthErr(err) {
				return nil, err
			}
			log.Warnf("⚠️ Page %d of %s listing failed, returning %d entries gathered so far: %v",
				page, kind, catalog.Len(), err)
			catalog.Truncated = true
			return catalog, nil
		}

		if len(entries) == 0 {
			return catalog, nil
		}

		for _, entry := range entries {
			catalog.Add(entry)
		}

		log.Debugf("Fetched page %d of %s listing with %d entries", page, kind, len(entries))
	}
}

func (c *githubClient) fetchPage(ctx context.Context, kind domain.ItemKind, page, pageSize int) ([]domain.CatalogEntry, error) {
	url := fmt.Sprintf("%s%s?page=%d&per_page=%d", c.baseURL, kind.ListingPath(), page, pageSize)

	maxRetries := c.config.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		if attempt > 1 {
			log.Debugf("🔄 Retrying page %d of %s listing (attempt %d/%d)", page, kind, attempt, maxRetries)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.pageRetryDelay):
			}
		}

		body, err := c.fetchJSON(ctx, url)
		if err != nil {
			if isAuthErr(err) || ctx.Err() != nil {
				return nil, err
			}
			lastErr = err
			continue
		}

		entries, err := decodeListing(kind, body)
		if err != nil {
			lastErr = err
			continue
		}

		return entries, nil
	}

	return nil, fmt.Errorf("page %d failed after %d attempts: %w", page, maxRetries, lastErr)
}

func (c *githubClient) fetchJSON(ctx context.Context, url string) ([]byte, error) {
	c.rl.Take()

	resp, err := c.httpClient.R().
		SetContext(ctx).
		Get(url)

	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("request cancelled: %w", ctx.Err())
		}
		return nil, fmt.Errorf("failed to fetch URL: %w", err)
	}

	if resp.StatusCode() == http.StatusUnauthorized {
		return nil, fmt.Errorf("%w: %s", ErrAuth, resp.Status())
	}

	if resp.IsError() {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode(), resp.Status())
	}

	return resp.Bytes(), nil
}

// Download streams the archive at url into dest. Any HTTP or transport
// failure is reported to the caller; dest may be left partially written
// and it is the caller's job to clean it up.
func (c *githubClient) Download(ctx context.Context, url, dest string) error {
	c.rl.Take()

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(url)

	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("download cancelled: %w", ctx.Err())
		}
		return fmt.Errorf("failed to fetch archive: %w", err)
	}
	defer resp.Body.Close()

	if resp.IsError() {
		return fmt.Errorf("HTTP error: %d %s", resp.StatusCode(), resp.Status())
	}

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dest, err)
	}

	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		return fmt.Errorf("failed to write %s: %w", dest, err)
	}

	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", dest, err)
	}

	return nil
}

func isAuthErr(err error) bool {
	return errors.Is(err, ErrAuth)
}

func decodeListing(kind domain.ItemKind, body []byte) ([]domain.CatalogEntry, error) {
	switch kind {
	case domain.ItemKindRepository:
		var listing []struct {
			FullName   string `json:"full_name"`
			SSHURL     string `json:"ssh_url"`
			ArchiveURL string `json:"archive_url"`
			UpdatedAt  string `json:"updated_at"`
		}
		if err := json.Unmarshal(body, &listing); err != nil {
			return nil, fmt.Errorf("failed to decode repository listing: %w", err)
		}

		entries := make([]domain.CatalogEntry, 0, len(listing))
		for _, item := range listing {
			entries = append(entries, domain.CatalogEntry{
				ID: item.FullName,
				Metadata: map[string]string{
					domain.MetaSSHURL:     item.SSHURL,
					domain.MetaArchiveURL: item.ArchiveURL,
					domain.MetaUpdatedAt:  item.UpdatedAt,
				},
			})
		}
		return entries, nil

	case domain.ItemKindGist:
		var listing []struct {
			ID         string `json:"id"`
			GitPullURL string `json:"git_pull_url"`
			UpdatedAt  string `json:"updated_at"`
		}
		if err := json.Unmarshal(body, &listing); err != nil {
			return nil, fmt.Errorf("failed to decode gist listing: %w", err)
		}

		entries := make([]domain.CatalogEntry, 0, len(listing))
		for _, item := range listing {
			entries = append(entries, domain.CatalogEntry{
				ID: item.ID,
				Metadata: map[string]string{
					domain.MetaGitPullURL: item.GitPullURL,
					domain.MetaUpdatedAt:  item.UpdatedAt,
				},
			})
		}
		return entries, nil

	default:
		return nil, fmt.Errorf("unknown item kind: %s", kind)
	}
}
