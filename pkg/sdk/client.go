package sdk

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
)

// Client talks to the cluster-dash server. It never retries and, unless
// WithTimeout is given, never times out on its own.
type Client struct {
	baseURL string
	rest    *resty.Client
}

type Option func(*Client)

// WithTimeout bounds every request made by the client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.rest.SetTimeout(d)
		}
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.rest.SetHeader("User-Agent", ua)
	}
}

// WithDebug enables resty request/response dumps.
func WithDebug(debug bool) Option {
	return func(c *Client) {
		c.rest.SetDebug(debug)
	}
}

func NewClient(baseURL string, opts ...Option) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	c := &Client{
		baseURL: baseURL,
		rest: resty.New().
			SetBaseURL(baseURL).
			SetRetryCount(0).
			SetHeader("Accept", "application/json"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// URL joins path onto the base URL. Used for links opened in a browser.
func (c *Client) URL(path string) string {
	return c.baseURL + path
}

func (c *Client) get(ctx context.Context, path string, query url.Values, target interface{}) error {
	req := c.rest.R().SetContext(ctx)
	if len(query) > 0 {
		req.SetQueryParamsFromValues(query)
	}

	resp, err := req.Get(path)
	if err != nil {
		return errors.Wrapf(err, "GET %s", path)
	}
	if err := checkResponse(resp); err != nil {
		return err
	}

	if target == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), target); err != nil {
		return errors.Wrapf(err, "decoding response from %s", path)
	}
	return nil
}

func (c *Client) getText(ctx context.Context, path string) (string, error) {
	resp, err := c.rest.R().
		SetContext(ctx).
		SetHeader("Accept", "text/plain").
		Get(path)
	if err != nil {
		return "", errors.Wrapf(err, "GET %s", path)
	}
	if err := checkResponse(resp); err != nil {
		return "", err
	}
	return resp.String(), nil
}

func (c *Client) post(ctx context.Context, path string, body interface{}, target interface{}) error {
	resp, err := c.rest.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(path)
	if err != nil {
		return errors.Wrapf(err, "POST %s", path)
	}
	if err := checkResponse(resp); err != nil {
		return err
	}

	if target == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), target); err != nil {
		return errors.Wrapf(err, "decoding response from %s", path)
	}
	return nil
}

func checkResponse(resp *resty.Response) error {
	if resp.IsSuccess() {
		return nil
	}

	code := resp.StatusCode()
	status := strings.TrimSpace(strings.TrimPrefix(resp.Status(), strconv.Itoa(code)))
	if status == "" {
		status = http.StatusText(code)
	}
	return &APIError{
		StatusCode: code,
		Status:     status,
		Body:       strings.TrimSpace(resp.String()),
	}
}
