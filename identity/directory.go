package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/sync/errgroup"

	"iris-api/cache"
)

// ErrProfileNotFound is returned when the directory has no such user.
var ErrProfileNotFound = errors.New("profile not found")

// Profile is a member record held by the identity provider.
type Profile struct {
	UserID        string         `json:"user_id"`
	Email         string         `json:"email,omitempty"`
	EmailVerified bool           `json:"email_verified"`
	Name          string         `json:"name,omitempty"`
	Nickname      string         `json:"nickname,omitempty"`
	Picture       string         `json:"picture,omitempty"`
	UserMetadata  map[string]any `json:"user_metadata,omitempty"`
	AppMetadata   AppMetadata    `json:"app_metadata"`
}

type AppMetadata struct {
	Authorization struct {
		Permissions []string `json:"permissions,omitempty"`
	} `json:"authorization"`
}

// Username is the member's chosen name from user metadata.
func (p Profile) Username() string {
	s, _ := p.UserMetadata["username"].(string)
	return s
}

func (p Profile) Permissions() []string {
	return p.AppMetadata.Authorization.Permissions
}

// NormalizeUserID restores the provider separator in ids that travel in
// headers with "-" in its place.
func NormalizeUserID(id string) string {
	if strings.Contains(id, "|") {
		return id
	}
	return strings.Replace(id, "-", "|", 1)
}

// DirectoryConfig configures the management API client.
type DirectoryConfig struct {
	// Endpoint is the management API base, e.g. https://tenant/api/v2.
	Endpoint     string
	TokenURL     string
	ClientID     string
	ClientSecret string
	Pages        int
	PerPage      int
	CacheTTL     time.Duration
	Timeout      time.Duration
	// HTTPClient is the transport used for token and API calls.
	HTTPClient *http.Client
}

// Directory reads and updates member profiles.
type Directory struct {
	endpoint string
	pages    int
	perPage  int
	client   *http.Client
	profiles *cache.Cache[string, []Profile]
}

const allProfilesKey = "all"

// NewDirectory creates a Directory that authenticates with the client
// credentials grant.
func NewDirectory(cfg DirectoryConfig) (*Directory, error) {
	endpoint := strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	if endpoint == "" {
		return nil, errors.New("directory endpoint is required")
	}
	if cfg.Pages <= 0 {
		cfg.Pages = 2
	}
	if cfg.PerPage <= 0 {
		cfg.PerPage = 100
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	base := cfg.HTTPClient
	if base == nil {
		base = &http.Client{Timeout: cfg.Timeout}
	}
	client := base
	if cfg.TokenURL != "" {
		cc := clientcredentials.Config{
			ClientID:       cfg.ClientID,
			ClientSecret:   cfg.ClientSecret,
			TokenURL:       cfg.TokenURL,
			Scopes:         []string{"read:users", "update:users"},
			EndpointParams: url.Values{"audience": {endpoint + "/"}},
		}
		client = cc.Client(context.WithValue(context.Background(), oauth2.HTTPClient, base))
		client.Timeout = cfg.Timeout
	}

	return &Directory{
		endpoint: endpoint,
		pages:    cfg.Pages,
		perPage:  cfg.PerPage,
		client:   client,
		profiles: cache.New[string, []Profile](cfg.CacheTTL, nil),
	}, nil
}

// ListProfiles returns one page of users.
func (d *Directory) ListProfiles(ctx context.Context, page int) ([]Profile, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(d.perPage))

	profiles := []Profile{}
	if err := d.do(ctx, http.MethodGet, "/users?"+q.Encode(), nil, &profiles); err != nil {
		return nil, err
	}
	return profiles, nil
}

// AllProfiles fetches the configured number of pages concurrently and
// concatenates them in page order. Results are cached.
func (d *Directory) AllProfiles(ctx context.Context) ([]Profile, error) {
	if cached, ok := d.profiles.Get(allProfilesKey); ok {
		return cached, nil
	}

	pages := make([][]Profile, d.pages)
	g, gctx := errgroup.WithContext(ctx)
	for i := range pages {
		g.Go(func() error {
			p, err := d.ListProfiles(gctx, i)
			if err != nil {
				return fmt.Errorf("page %d: %w", i, err)
			}
			pages[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	all := []Profile{}
	for _, p := range pages {
		all = append(all, p...)
	}
	d.profiles.Put(allProfilesKey, all)
	return all, nil
}

func (d *Directory) GetProfile(ctx context.Context, id string) (Profile, error) {
	var p Profile
	if err := d.do(ctx, http.MethodGet, "/users/"+url.PathEscape(id), nil, &p); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// UpdateProfile replaces the user metadata of id.
func (d *Directory) UpdateProfile(ctx context.Context, id string, metadata map[string]any) (Profile, error) {
	body, err := json.Marshal(map[string]any{"user_metadata": metadata})
	if err != nil {
		return Profile{}, fmt.Errorf("encode profile patch: %w", err)
	}
	var p Profile
	if err := d.do(ctx, http.MethodPatch, "/users/"+url.PathEscape(id), body, &p); err != nil {
		return Profile{}, err
	}
	d.profiles.Delete(allProfilesKey)
	return p, nil
}

// PruneCache drops expired cached listings.
func (d *Directory) PruneCache() int {
	return d.profiles.Prune()
}

func (d *Directory) do(ctx context.Context, method, path string, body []byte, out any) error {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, d.endpoint+path, r)
	if err != nil {
		return fmt.Errorf("build directory request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("directory %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrProfileNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("directory %s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode directory response: %w", err)
	}
	return nil
}
