package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/a-h/jsonapi"
	"github.com/mastermechanic/mmserver/models"
)

// DefaultSource identifies requests made by this client.
const DefaultSource = "client"

func New(baseURL string) Client {
	return Client{
		baseURL: baseURL,
		source:  DefaultSource,
	}
}

type Client struct {
	baseURL string
	source  string
}

// WithSource returns a client that identifies its requests with the given
// source, e.g. "cli".
func (c Client) WithSource(source string) Client {
	c.source = source
	return c
}

func (c Client) ContextPost(ctx context.Context, req models.ContextPostRequest) (resp models.ContextPostResponse, err error) {
	url, err := jsonapi.URL(c.baseURL).Path("context").String()
	if err != nil {
		return resp, err
	}
	return jsonapi.Post[models.ContextPostRequest, models.ContextPostResponse](ctx, url, req, jsonapi.WithRequestHeader("X-Source", c.source))
}

func (c Client) EnhancePost(ctx context.Context, req models.EnhancePostRequest) (resp models.EnhancePostResponse, err error) {
	url, err := jsonapi.URL(c.baseURL).Path("enhance").String()
	if err != nil {
		return resp, err
	}
	return jsonapi.Post[models.EnhancePostRequest, models.EnhancePostResponse](ctx, url, req, jsonapi.WithRequestHeader("X-Source", c.source))
}

func (c Client) FeedbackPost(ctx context.Context, req models.FeedbackPostRequest) (resp models.FeedbackPostResponse, err error) {
	url, err := jsonapi.URL(c.baseURL).Path("feedback").String()
	if err != nil {
		return resp, err
	}
	return jsonapi.Post[models.FeedbackPostRequest, models.FeedbackPostResponse](ctx, url, req, jsonapi.WithRequestHeader("X-Source", c.source))
}

// ChatPost streams the answer to f and returns the anchor to send with the
// next request.
func (c Client) ChatPost(ctx context.Context, request models.ChatPostRequest, f func(ctx context.Context, chunk []byte) error) (sinceIndex int, err error) {
	url, err := jsonapi.URL(c.baseURL).Path("chat").String()
	if err != nil {
		return request.SinceIndex, err
	}
	header, err := c.postStream(ctx, url, request, f)
	if err != nil {
		return request.SinceIndex, err
	}
	sinceIndex, err = strconv.Atoi(header.Get(models.HeaderSinceIndex))
	if err != nil {
		return request.SinceIndex, fmt.Errorf("invalid %s header: %w", models.HeaderSinceIndex, err)
	}
	return sinceIndex, nil
}

func (c Client) QueryPost(ctx context.Context, request models.QueryPostRequest, f func(ctx context.Context, chunk []byte) error) (err error) {
	url, err := jsonapi.URL(c.baseURL).Path("query").String()
	if err != nil {
		return err
	}
	_, err = c.postStream(ctx, url, request, f)
	return err
}

func (c Client) postStream(ctx context.Context, url string, req any, f func(ctx context.Context, chunk []byte) error) (header http.Header, err error) {
	buf, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	res, err := jsonapi.Raw(httpReq, jsonapi.WithRequestHeader("X-Source", c.source))
	if err != nil {
		return nil, fmt.Errorf("failed to perform HTTP request: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode > 299 {
		body, _ := io.ReadAll(res.Body)
		return nil, jsonapi.InvalidStatusError{
			Status: res.StatusCode,
			Body:   string(body),
		}
	}
	for {
		chunk := make([]byte, 1024)
		n, err := res.Body.Read(chunk)
		if n > 0 {
			if err := f(ctx, chunk[:n]); err != nil {
				return nil, fmt.Errorf("failed to process chunk: %w", err)
			}
		}
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("failed to read response body: %w", err)
		}
	}
	return res.Header, nil
}
