package tim

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"
)

const (
	xsrfCookie = "XSRF-TOKEN"
	xsrfHeader = "X-XSRF-TOKEN"

	maxErrorBody = 4 << 10
)

// Options tune the HTTP transport of a Client.
type Options struct {
	// RetryMax is the number of retries of a failed GET request.
	RetryMax int
	// RequestsPerSecond throttles outgoing requests; 0 disables throttling.
	RequestsPerSecond float64
	// Timeout bounds a single HTTP exchange; 0 means no timeout.
	Timeout time.Duration
}

// Client is a Store backed by the TIM HTTP API. It keeps the session cookie
// and the CSRF token of the host between calls and is safe for concurrent use.
type Client struct {
	host    *url.URL
	http    *retryablehttp.Client
	jar     http.CookieJar
	limiter *rate.Limiter
}

var _ Store = (*Client)(nil)

// NewClient validates host and fetches the CSRF token so the client is ready
// for use. Most operations additionally need Login.
func NewClient(ctx context.Context, host string, opts Options) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(host, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid host %q: must be a URL such as https://tim.jyu.fi", host)
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = opts.RetryMax
	rc.Logger = nil
	rc.HTTPClient.Jar = jar
	rc.HTTPClient.Timeout = opts.Timeout
	rc.CheckRetry = retryIdempotent
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	c := &Client{host: u, http: rc, jar: jar}
	if opts.RequestsPerSecond > 0 {
		burst := max(1, int(opts.RequestsPerSecond))
		c.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}

	if err := c.refreshXSRF(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// Host returns the base URL of the remote.
func (c *Client) Host() string { return c.host.String() }

// retryIdempotent retries only requests that are safe to repeat.
func retryIdempotent(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if resp != nil && resp.Request != nil && resp.Request.Method != http.MethodGet {
		return false, nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

func (c *Client) refreshXSRF(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "", nil, "")
	if err != nil {
		return fmt.Errorf("connect to %s: %w", c.host, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if c.xsrfToken() == "" {
		return ErrNoXSRFToken
	}
	return nil
}

func (c *Client) xsrfToken() string {
	for _, cookie := range c.jar.Cookies(c.host) {
		if cookie.Name == xsrfCookie {
			return cookie.Value
		}
	}
	return ""
}

func (c *Client) endpoint(parts ...string) string {
	escaped := make([]string, 0, len(parts))
	for _, p := range parts {
		for _, seg := range strings.Split(p, "/") {
			if seg != "" {
				escaped = append(escaped, url.PathEscape(seg))
			}
		}
	}
	return c.host.String() + "/" + strings.Join(escaped, "/")
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, contentType string) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	target := c.host.String() + "/"
	if endpoint != "" {
		target = endpoint
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token := c.xsrfToken(); token != "" {
		req.Header.Set(xsrfHeader, token)
	}
	req.Header.Set("Referer", c.host.String())
	return c.http.Do(req)
}

func (c *Client) call(ctx context.Context, op, path, method, endpoint string, body any, contentType string) ([]byte, error) {
	resp, err := c.do(ctx, method, endpoint, body, contentType)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", op, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{Op: op, Path: path, Status: resp.StatusCode}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: read response: %w", op, path, err)
	}
	return data, nil
}

func (c *Client) callJSON(ctx context.Context, op, path, method, endpoint string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%s %s: encode request: %w", op, path, err)
	}
	return c.call(ctx, op, path, method, endpoint, data, "application/json")
}

func (c *Client) callForm(ctx context.Context, op, path, endpoint string, form url.Values) ([]byte, error) {
	return c.call(ctx, op, path, http.MethodPost, endpoint, strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
}

// Login authenticates with an email/username and password.
func (c *Client) Login(ctx context.Context, username, password string) error {
	form := url.Values{
		"email":    {username},
		"password": {password},
		"add_user": {"false"},
	}
	_, err := c.callForm(ctx, "login", username, c.endpoint("emailLogin"), form)
	var status *StatusError
	if errors.As(err, &status) && status.Status < 500 {
		return fmt.Errorf("login as %s: %w", username, ErrInvalidLogin)
	}
	return err
}

// GetItemInfo returns information about the item at path.
func (c *Client) GetItemInfo(ctx context.Context, path string) (ItemInfo, error) {
	data, err := c.call(ctx, "get item info", path, http.MethodGet, c.endpoint("itemInfo", path), nil, "")
	if err != nil {
		return ItemInfo{}, err
	}
	var info ItemInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return ItemInfo{}, fmt.Errorf("get item info %s: decode response: %w", path, err)
	}
	return info, nil
}

// CreateItem creates a folder or a document at path.
func (c *Client) CreateItem(ctx context.Context, typ ItemType, path, title string) error {
	form := url.Values{
		"item_path":  {path},
		"item_title": {title},
		"item_type":  {string(typ)},
	}
	_, err := c.callForm(ctx, "create item", path, c.endpoint("createItem"), form)
	return err
}

// CreateOrUpdateItem implements the create-or-update rule of CreateOrUpdate.
func (c *Client) CreateOrUpdateItem(ctx context.Context, typ ItemType, path, title string) (ItemInfo, error) {
	return CreateOrUpdate(ctx, c, typ, path, title)
}

// SetItemTitle changes the title of the item at path.
func (c *Client) SetItemTitle(ctx context.Context, path, title string) error {
	info, err := c.GetItemInfo(ctx, path)
	if err != nil {
		return err
	}
	_, err = c.callJSON(ctx, "set title", path, http.MethodPut,
		c.endpoint("changeTitle", fmt.Sprint(info.ID)), map[string]string{"new_title": title})
	return err
}

func (c *Client) document(ctx context.Context, path string) (ItemInfo, error) {
	info, err := c.GetItemInfo(ctx, path)
	if err != nil {
		return ItemInfo{}, err
	}
	if info.Type != Document {
		return ItemInfo{}, &ItemTypeError{Path: path, Want: Document, Got: info.Type}
	}
	return info, nil
}

func (c *Client) download(ctx context.Context, path string, id int64) (string, error) {
	data, err := c.call(ctx, "download", path, http.MethodGet, c.endpoint("download", fmt.Sprint(id)), nil, "")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// DownloadMarkdown returns the current markup of the document at path.
func (c *Client) DownloadMarkdown(ctx context.Context, path string) (string, error) {
	info, err := c.document(ctx, path)
	if err != nil {
		return "", err
	}
	return c.download(ctx, path, info.ID)
}

// UploadMarkdown replaces the markup of the document at path.
func (c *Client) UploadMarkdown(ctx context.Context, path, markdown string) error {
	info, err := c.document(ctx, path)
	if err != nil {
		return err
	}
	current, err := c.download(ctx, path, info.ID)
	if err != nil {
		return err
	}
	_, err = c.callJSON(ctx, "upload", path, http.MethodPost, c.endpoint("update", fmt.Sprint(info.ID)),
		map[string]string{"fulltext": markdown, "original": current})
	return err
}

// UploadFile stores an asset named name in the file area of folder.
func (c *Client) UploadFile(ctx context.Context, folder, name string, data []byte) error {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if err := w.WriteField("folder", folder); err != nil {
		return fmt.Errorf("upload file %s/%s: %w", folder, name, err)
	}
	part, err := w.CreateFormFile("file", name)
	if err != nil {
		return fmt.Errorf("upload file %s/%s: %w", folder, name, err)
	}
	if _, err := part.Write(data); err != nil {
		return fmt.Errorf("upload file %s/%s: %w", folder, name, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("upload file %s/%s: %w", folder, name, err)
	}
	_, err = c.call(ctx, "upload file", folder+"/"+name, http.MethodPost, c.endpoint("upload")+"/", body.Bytes(), w.FormDataContentType())
	return err
}
