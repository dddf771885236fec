package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/dataquill/quill/internal/logx"
)

// Client talks to the workspace backend. It carries the bearer token
// explicitly rather than through a process-global default header; only the
// auth session mutates it.
type Client struct {
	base string
	http *http.Client

	mu        sync.RWMutex
	token     string
	onExpired func()
}

// New builds a client for the given base URL.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: timeout},
	}
}

// SetToken installs the bearer token used on every subsequent request.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// ClearToken removes the bearer token.
func (c *Client) ClearToken() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}

// Token returns the currently installed bearer token, empty when anonymous.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// OnUnauthorized registers the hook fired whenever any response comes back
// 401. The auth session registers itself here; nothing else should.
func (c *Client) OnUnauthorized(fn func()) {
	c.mu.Lock()
	c.onExpired = fn
	c.mu.Unlock()
}

// Login exchanges form-encoded credentials for a bearer token. It does not
// install the token; the auth session owns that step.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	form := url.Values{}
	form.Set("username", email)
	form.Set("password", password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var out struct {
		AccessToken string `json:"access_token"`
	}
	if err := c.do(req, &out); err != nil {
		return "", err
	}
	return out.AccessToken, nil
}

// Register creates a new user account.
func (c *Client) Register(ctx context.Context, r RegisterRequest) (User, error) {
	var u User
	err := c.postJSON(ctx, "/register", r, &u)
	return u, err
}

// Projects returns the project list for the current session.
func (c *Client) Projects(ctx context.Context) ([]Project, error) {
	var out []Project
	err := c.getJSON(ctx, "/projects", &out)
	return out, err
}

// CreateProject posts a name/description pair and returns the created row.
func (c *Client) CreateProject(ctx context.Context, name, description string) (Project, error) {
	body := map[string]string{"name": name, "description": description}
	var p Project
	err := c.postJSON(ctx, "/projects", body, &p)
	return p, err
}

// Project returns the full graph for one project.
func (c *Client) Project(ctx context.Context, id int64) (Project, error) {
	var p Project
	err := c.getJSON(ctx, fmt.Sprintf("/projects/%d", id), &p)
	return p, err
}

// Upload bundles the parts of a data-source submission. File and Filename
// are empty for credential-backed kinds.
type Upload struct {
	SourceType string
	Config     map[string]any
	Filename   string
	File       io.Reader
}

// ConnectDataSource submits a data source as a single multipart request:
// optional file part, source_type tag, serialized config.
func (c *Client) ConnectDataSource(ctx context.Context, projectID int64, up Upload) (DataSource, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if up.File != nil {
		fw, err := w.CreateFormFile("file", up.Filename)
		if err != nil {
			return DataSource{}, err
		}
		if _, err := io.Copy(fw, up.File); err != nil {
			return DataSource{}, fmt.Errorf("read upload: %w", err)
		}
	}
	if err := w.WriteField("source_type", up.SourceType); err != nil {
		return DataSource{}, err
	}
	cfg, err := json.Marshal(up.Config)
	if err != nil {
		return DataSource{}, fmt.Errorf("marshal config: %w", err)
	}
	if err := w.WriteField("config", string(cfg)); err != nil {
		return DataSource{}, err
	}
	if err := w.Close(); err != nil {
		return DataSource{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/projects/%d/data-sources", c.base, projectID), &buf)
	if err != nil {
		return DataSource{}, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	var ds DataSource
	if err := c.do(req, &ds); err != nil {
		return DataSource{}, err
	}
	return ds, nil
}

// Analyze runs one analysis and blocks until the server returns the computed
// Analysis with its insights. There is no polling or streaming.
func (c *Client) Analyze(ctx context.Context, projectID int64, r AnalyzeRequest) (Analysis, error) {
	if r.Parameters == nil {
		r.Parameters = map[string]any{}
	}
	var a Analysis
	err := c.postJSON(ctx, fmt.Sprintf("/projects/%d/analyze", projectID), r, &a)
	return a, err
}

// Ask sends one question to the project assistant.
func (c *Client) Ask(ctx context.Context, projectID int64, question string) (Answer, error) {
	body := map[string]string{"question": question}
	var ans Answer
	err := c.postJSON(ctx, fmt.Sprintf("/projects/%d/ask", projectID), body, &ans)
	return ans, err
}

// CreateStory submits a new story with its component snapshot.
func (c *Client) CreateStory(ctx context.Context, projectID int64, r StoryRequest) (Story, error) {
	var s Story
	err := c.postJSON(ctx, fmt.Sprintf("/projects/%d/stories", projectID), r, &s)
	return s, err
}

// ExportStory requests the rendered export artifact in the given format.
// The client does no local rendering; the bytes are written out as-is.
func (c *Client) ExportStory(ctx context.Context, projectID, storyID int64, format string) ([]byte, error) {
	u := fmt.Sprintf("%s/projects/%d/stories/%d/export?format=%s", c.base, projectID, storyID, url.QueryEscape(format))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, nil)
	if err != nil {
		return nil, err
	}
	return c.doRaw(req)
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	data, err := c.doRaw(req)
	if err != nil {
		return err
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s: %w", req.URL.Path, err)
	}
	return nil
}

func (c *Client) doRaw(req *http.Request) ([]byte, error) {
	if tok := c.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		logx.Warn().Str("path", req.URL.Path).Msg("unauthorized response, expiring session")
		c.mu.RLock()
		hook := c.onExpired
		c.mu.RUnlock()
		if hook != nil {
			hook()
		}
		return nil, &Error{Status: resp.StatusCode, Detail: errDetail(data)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &Error{Status: resp.StatusCode, Detail: errDetail(data)}
	}
	return data, nil
}

// errDetail pulls the "detail" field out of an error body when present.
func errDetail(data []byte) string {
	var body struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return ""
	}
	return body.Detail
}
