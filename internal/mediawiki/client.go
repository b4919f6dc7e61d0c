package mediawiki

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dgallion1/mfdarchiver/internal/config"
	"github.com/dgallion1/mfdarchiver/internal/wikidoc"
	"golang.org/x/time/rate"
)

// ErrNotFound means the requested page does not exist.
var ErrNotFound = errors.New("page does not exist")

// AuthError means the wiki rejected the bot's credentials.
type AuthError struct {
	Username string
	Reason   string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("login as %s failed: %s", e.Username, e.Reason)
}

// APIError is an error reported in an Action API response body.
type APIError struct {
	Code string `json:"code"`
	Info string `json:"info"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %s: %s", e.Code, e.Info)
}

// Client talks to the MediaWiki Action API (login, edit) and the REST API
// (Parsoid HTML, wikitext, and transforms between them).
type Client struct {
	apiURL     string
	restURL    string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetry   time.Duration
	log        *slog.Logger

	loggedIn  bool
	csrfToken string
}

func NewClient(cfg config.Config, log *slog.Logger) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	limit := rate.Inf
	if cfg.EditDelay > 0 {
		limit = rate.Every(cfg.EditDelay)
	}
	return &Client{
		apiURL:    cfg.APIURL,
		restURL:   strings.TrimRight(cfg.RESTURL, "/"),
		userAgent: cfg.UserAgent,
		httpClient: &http.Client{
			Timeout:   cfg.HTTPTimeout,
			Jar:       jar,
			Transport: &loggingTransport{next: http.DefaultTransport, log: log},
		},
		limiter:  rate.NewLimiter(limit, 1),
		maxRetry: cfg.MaxRetryDelay,
		log:      log,
	}, nil
}

func (c *Client) newRequest(ctx context.Context, method, u string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	return req, nil
}

// do sends req and returns the body of a 200 response. 404 maps to
// ErrNotFound; other statuses to *StatusError.
func (c *Client) do(req *http.Request, op string) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &StatusError{Op: op, Status: resp.StatusCode, Body: string(respBody)}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: read body: %w", op, err)
	}
	return body, nil
}

// restTitle encodes a page title as a REST path segment.
func restTitle(title string) string {
	return url.PathEscape(strings.ReplaceAll(title, " ", "_"))
}

func (c *Client) getHTML(ctx context.Context, u, op string) (*wikidoc.Document, error) {
	var body []byte
	err := c.withRetry(ctx, func() error {
		req, err := c.newRequest(ctx, http.MethodGet, u, nil)
		if err != nil {
			return err
		}
		body, err = c.do(req, op)
		return err
	})
	if err != nil {
		return nil, err
	}
	return wikidoc.Parse(bytes.NewReader(body))
}

// Fetch returns the current Parsoid HTML of title.
func (c *Client) Fetch(ctx context.Context, title string) (*wikidoc.Document, error) {
	c.log.Debug("fetching page", "title", title)
	doc, err := c.getHTML(ctx, c.restURL+"/v1/page/"+restTitle(title)+"/html", "fetch "+title)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", title, err)
	}
	return doc, nil
}

// FetchRevision returns the Parsoid HTML of a specific revision.
func (c *Client) FetchRevision(ctx context.Context, title string, revID int64) (*wikidoc.Document, error) {
	u := c.restURL + "/v1/revision/" + strconv.FormatInt(revID, 10) + "/html"
	doc, err := c.getHTML(ctx, u, "fetch revision")
	if err != nil {
		return nil, fmt.Errorf("fetch %s revision %d: %w", title, revID, err)
	}
	return doc, nil
}

// FetchWikitext returns the current wikitext source of title.
func (c *Client) FetchWikitext(ctx context.Context, title string) (string, error) {
	var page struct {
		Source string `json:"source"`
	}
	err := c.withRetry(ctx, func() error {
		req, err := c.newRequest(ctx, http.MethodGet, c.restURL+"/v1/page/"+restTitle(title), nil)
		if err != nil {
			return err
		}
		body, err := c.do(req, "fetch wikitext "+title)
		if err != nil {
			return err
		}
		return json.Unmarshal(body, &page)
	})
	if err != nil {
		return "", fmt.Errorf("fetch wikitext %s: %w", title, err)
	}
	return page.Source, nil
}

func (c *Client) transform(ctx context.Context, path string, payload map[string]any) ([]byte, error) {
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal transform: %w", err)
	}
	var body []byte
	err = c.withRetry(ctx, func() error {
		req, err := c.newRequest(ctx, http.MethodPost, c.restURL+path, bytes.NewReader(reqBody))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		body, err = c.do(req, "transform")
		return err
	})
	return body, err
}

// ToWikitext converts a document to wikitext.
func (c *Client) ToWikitext(ctx context.Context, doc *wikidoc.Document) (string, error) {
	body, err := c.transform(ctx, "/v1/transform/html/to/wikitext", map[string]any{"html": doc.String()})
	if err != nil {
		return "", fmt.Errorf("html to wikitext: %w", err)
	}
	return string(body), nil
}

// ToDocument converts wikitext to a Parsoid document.
func (c *Client) ToDocument(ctx context.Context, wikitext string) (*wikidoc.Document, error) {
	body, err := c.transform(ctx, "/v1/transform/wikitext/to/html", map[string]any{"wikitext": wikitext})
	if err != nil {
		return nil, fmt.Errorf("wikitext to html: %w", err)
	}
	return wikidoc.Parse(bytes.NewReader(body))
}

// postAPI sends a form POST to the Action API and decodes the JSON reply.
func (c *Client) postAPI(ctx context.Context, form url.Values, out any) error {
	form.Set("format", "json")
	form.Set("formatversion", "2")
	req, err := c.newRequest(ctx, http.MethodPost, c.apiURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	body, err := c.do(req, "api "+form.Get("action"))
	if err != nil {
		return err
	}
	var envelope struct {
		Error *APIError `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("decode api response: %w", err)
	}
	if envelope.Error != nil {
		return envelope.Error
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode api response: %w", err)
	}
	return nil
}

func (c *Client) token(ctx context.Context, kind string) (string, error) {
	var resp struct {
		Query struct {
			Tokens map[string]string `json:"tokens"`
		} `json:"query"`
	}
	form := url.Values{"action": {"query"}, "meta": {"tokens"}, "type": {kind}}
	if err := c.postAPI(ctx, form, &resp); err != nil {
		return "", fmt.Errorf("fetch %s token: %w", kind, err)
	}
	tok := resp.Query.Tokens[kind+"token"]
	if tok == "" {
		return "", fmt.Errorf("fetch %s token: empty token", kind)
	}
	return tok, nil
}

// Login authenticates with a bot password. The session lives in the
// client's cookie jar.
func (c *Client) Login(ctx context.Context, auth config.Auth) error {
	loginToken, err := c.token(ctx, "login")
	if err != nil {
		return err
	}
	var resp struct {
		Login struct {
			Result string `json:"result"`
			Reason string `json:"reason"`
		} `json:"login"`
	}
	form := url.Values{
		"action":     {"login"},
		"lgname":     {auth.Username},
		"lgpassword": {auth.Password},
		"lgtoken":    {loginToken},
	}
	if err := c.postAPI(ctx, form, &resp); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if resp.Login.Result != "Success" {
		reason := resp.Login.Reason
		if reason == "" {
			reason = resp.Login.Result
		}
		return &AuthError{Username: auth.Username, Reason: reason}
	}
	c.loggedIn = true
	c.csrfToken = ""
	c.log.Info("logged in", "username", auth.Username)
	return nil
}

// Save converts doc to wikitext and writes it to title.
func (c *Client) Save(ctx context.Context, title string, doc *wikidoc.Document, summary string) error {
	wikitext, err := c.ToWikitext(ctx, doc)
	if err != nil {
		return fmt.Errorf("save %s: %w", title, err)
	}
	return c.SaveWikitext(ctx, title, wikitext, summary)
}

// SaveWikitext writes wikitext to title. Saves are throttled to one per
// configured edit delay.
func (c *Client) SaveWikitext(ctx context.Context, title, wikitext, summary string) error {
	if c.csrfToken == "" {
		tok, err := c.token(ctx, "csrf")
		if err != nil {
			return fmt.Errorf("save %s: %w", title, err)
		}
		c.csrfToken = tok
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("save %s: %w", title, err)
	}

	form := url.Values{
		"action":  {"edit"},
		"title":   {title},
		"text":    {wikitext},
		"summary": {summary},
		"bot":     {"1"},
		"token":   {c.csrfToken},
	}
	if c.loggedIn {
		form.Set("assert", "user")
	}
	var resp struct {
		Edit struct {
			Result   string `json:"result"`
			NewRevID int64  `json:"newrevid"`
			NoChange bool   `json:"nochange"`
		} `json:"edit"`
	}
	if err := c.postAPI(ctx, form, &resp); err != nil {
		return fmt.Errorf("save %s: %w", title, err)
	}
	if resp.Edit.Result != "Success" {
		return fmt.Errorf("save %s: edit result %q", title, resp.Edit.Result)
	}
	c.log.Info("saved page", "title", title, "revision", resp.Edit.NewRevID, "nochange", resp.Edit.NoChange)
	return nil
}

// Close releases idle connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}
