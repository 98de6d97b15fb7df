// Package client calls the penalty search JSON API.
package client

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/a-h/jsonapi"
	"github.com/a-h/penaltysearch/models"
)

func New(baseURL, apiKey string) Client {
	return Client{
		baseURL: baseURL,
		apiKey:  apiKey,
	}
}

type Client struct {
	baseURL string
	apiKey  string
}

func (c Client) QueryPost(ctx context.Context, req models.QueryPostRequest) (resp models.QueryPostResponse, err error) {
	url, err := jsonapi.URL(c.baseURL).Path("api", "query").String()
	if err != nil {
		return resp, err
	}
	return jsonapi.Post[models.QueryPostRequest, models.QueryPostResponse](ctx, url, req, jsonapi.WithRequestHeader("Authorization", c.apiKey))
}

// Health returns an error if the server is not ready to answer queries.
func (c Client) Health(ctx context.Context) (err error) {
	url, err := jsonapi.URL(c.baseURL).Path("healthz").String()
	if err != nil {
		return err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	res, err := jsonapi.Raw(httpReq)
	if err != nil {
		return fmt.Errorf("failed to perform HTTP request: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode > 299 {
		body, _ := io.ReadAll(res.Body)
		return jsonapi.InvalidStatusError{
			Status: res.StatusCode,
			Body:   string(body),
		}
	}
	return nil
}
