// Community web endpoints: status listing, content unlock and profile settings
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/badgeidle/internal/models"
	"github.com/desertthunder/badgeidle/internal/shared"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"
)

// UnlockCookieName is the cookie the site sets once the content lock is lifted.
const UnlockCookieName = "steamparental"

const (
	defaultCommunityURL = "https://steamcommunity.com"
	sessionCookieName   = "sessionid"
	obstacleMarker      = "parental_notice_instructions"
	userAgent           = "badgeidle/1.0"
)

// CommunityOptions tunes the HTTP client used by [CommunityClient].
type CommunityOptions struct {
	Timeout           time.Duration
	RequestsPerSecond float64
	Transport         http.RoundTripper
	Logger            *log.Logger
}

// CommunityClient issues requests against the community site with one shared cookie jar.
type CommunityClient struct {
	baseURL *url.URL
	http    *http.Client
	jar     http.CookieJar
	limiter *rate.Limiter
	logger  *log.Logger

	mu sync.Mutex
}

// UnlockResult is the outcome of a content unlock request.
type UnlockResult struct {
	Success bool
	Cookies []*http.Cookie
}

// HasCookie reports whether the unlock response set the named cookie.
func (u *UnlockResult) HasCookie(name string) bool {
	for _, c := range u.Cookies {
		if c.Name == name && c.Value != "" {
			return true
		}
	}
	return false
}

// successFlag accepts both `true` and `1` as success markers.
type successFlag bool

func (f *successFlag) UnmarshalJSON(data []byte) error {
	switch strings.TrimSpace(string(data)) {
	case "true", "1":
		*f = true
	default:
		*f = false
	}
	return nil
}

// NewCommunityClient creates a client rooted at baseURL.
func NewCommunityClient(baseURL string, opts CommunityOptions) (*CommunityClient, error) {
	if baseURL == "" {
		baseURL = defaultCommunityURL
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("%w: community base url: %v", shared.ErrInvalidConfig, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: community base url %q must be absolute", shared.ErrInvalidConfig, baseURL)
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	return &CommunityClient{
		baseURL: u,
		http:    &http.Client{Jar: jar, Timeout: opts.Timeout, Transport: opts.Transport},
		jar:     jar,
		limiter: rate.NewLimiter(limit, 1),
		logger:  opts.Logger,
	}, nil
}

// BaseURL returns a copy of the community root URL.
func (c *CommunityClient) BaseURL() *url.URL {
	u := *c.baseURL
	return &u
}

// MergeCookies adds cookies to the jar, replacing any existing cookie of the same name.
// Cookies are never removed.
func (c *CommunityClient) MergeCookies(cookies []*http.Cookie) {
	if len(cookies) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.jar.SetCookies(c.baseURL, cookies)
}

// Cookies returns the cookies the jar would send to the community root.
func (c *CommunityClient) Cookies() []*http.Cookie {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.jar.Cookies(c.baseURL)
}

// Cookie returns the value of the named cookie, or "" when absent.
func (c *CommunityClient) Cookie(name string) string {
	for _, ck := range c.Cookies() {
		if ck.Name == name {
			return ck.Value
		}
	}
	return ""
}

// SetSessionID stores the web session token as the sessionid cookie.
func (c *CommunityClient) SetSessionID(id string) {
	if id == "" {
		return
	}
	c.MergeCookies([]*http.Cookie{{Name: sessionCookieName, Value: id, Path: "/"}})
}

// BadgesPage fetches one page of the status listing for identity.
//
// Returns [shared.ErrAccessObstacle] when the content lock intercepts the page.
func (c *CommunityClient) BadgesPage(ctx context.Context, identity string, page int) ([]byte, error) {
	endpoint := c.resolve("/profiles/"+url.PathEscape(identity)+"/badges", url.Values{"p": {strconv.Itoa(page)}})

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, body, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}

	if isObstacle(resp, body) {
		c.logger.Debug("status page blocked", "page", page, "status", resp.StatusCode, "url", resp.Request.URL.Path)
		return nil, fmt.Errorf("%w: page %d", shared.ErrAccessObstacle, page)
	}
	if err := checkStatus(resp); err != nil {
		return nil, err
	}
	return body, nil
}

// Unlock submits pin with the session token to lift the content lock. The PIN is sent as given.
func (c *CommunityClient) Unlock(ctx context.Context, pin, sessionID string) (*UnlockResult, error) {
	form := url.Values{
		"pin":       {pin},
		"sessionid": {sessionID},
	}
	req, err := c.formRequest(ctx, "/parental/ajaxunlock", form)
	if err != nil {
		return nil, err
	}

	resp, body, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var payload struct {
		Success successFlag `json:"success"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		c.logger.Debug("unlock response was not JSON", "error", err)
	}

	return &UnlockResult{Success: bool(payload.Success), Cookies: resp.Cookies()}, nil
}

// SetPrivacy posts the profile privacy blob for v and reports whether the site accepted it.
func (c *CommunityClient) SetPrivacy(ctx context.Context, identity, sessionID string, v models.Visibility) (bool, error) {
	blob, err := json.Marshal(v.Settings())
	if err != nil {
		return false, fmt.Errorf("failed to encode privacy settings: %w", err)
	}

	form := url.Values{
		"sessionid":          {sessionID},
		"Privacy":            {string(blob)},
		"eCommentPermission": {strconv.Itoa(models.CommentPermission)},
	}
	req, err := c.formRequest(ctx, "/profiles/"+url.PathEscape(identity)+"/ajaxsetprivacy/", form)
	if err != nil {
		return false, err
	}

	resp, body, err := c.do(ctx, req)
	if err != nil {
		return false, err
	}
	if err := checkStatus(resp); err != nil {
		return false, err
	}

	var payload struct {
		Success successFlag `json:"success"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return false, nil
	}
	return bool(payload.Success), nil
}

func (c *CommunityClient) resolve(path string, query url.Values) string {
	u := c.BaseURL()
	u.Path = strings.TrimRight(u.Path, "/") + path
	if query != nil {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func (c *CommunityClient) formRequest(ctx context.Context, path string, form url.Values) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.resolve(path, nil), bytes.NewBufferString(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")
	return req, nil
}

// do waits on the rate limiter, sends req and reads the full body.
func (c *CommunityClient) do(ctx context.Context, req *http.Request) (*http.Response, []byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		return nil, nil, fmt.Errorf("%w: %s %s: %v", shared.ErrNetworkTransient, req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: failed to read response: %v", shared.ErrNetworkTransient, err)
	}
	return resp, body, nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return fmt.Errorf("%w: %s returned status %d", shared.ErrNetworkTransient, resp.Request.URL.Path, resp.StatusCode)
}

// isObstacle reports whether a response is the content lock rather than the requested page.
func isObstacle(resp *http.Response, body []byte) bool {
	if resp.StatusCode == http.StatusForbidden {
		return true
	}
	if resp.Request != nil && strings.HasPrefix(resp.Request.URL.Path, "/parental/") {
		return true
	}
	return bytes.Contains(body, []byte(obstacleMarker))
}
