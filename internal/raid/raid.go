// Package raid talks to a RAiD (Research Activity Identifier) service and
// assigns handles to projects and experiments that do not have one yet.
package raid

import (
	"context"
	"net/url"

	"github.com/agentstation/foundry/internal/transport"
	"github.com/agentstation/foundry/pkg/constants"
)

// RAiD is a research activity identifier record.
type RAiD struct {
	Handle      string         `json:"handle"`
	Name        string         `json:"raidName,omitempty"`
	ContentPath string         `json:"contentPath,omitempty"`
	StartDate   string         `json:"startDate,omitempty"`
	Meta        map[string]any `json:"meta,omitempty"`
}

// MintRequest describes a new RAiD.
type MintRequest struct {
	Name        string
	Description string
	ContentPath string
	StartDate   string
	Metadata    map[string]any
}

// Client is a RAiD service client.
type Client struct {
	http *transport.Client
}

// New creates a client for the RAiD service at baseURL authenticated with a
// bearer token.
func New(baseURL, token string, opts ...transport.Option) (*Client, error) {
	opts = append([]transport.Option{
		transport.WithService("raid"),
		transport.WithTimeout(constants.RAiDHTTPTimeout),
	}, opts...)
	hc, err := transport.New(baseURL, &transport.BearerAuth{Token: token}, opts...)
	if err != nil {
		return nil, err
	}
	return &Client{http: hc}, nil
}

func handlePath(handle string) string {
	return "RAiD/" + url.PathEscape(handle)
}

// Get fetches the RAiD with the given handle.
func (c *Client) Get(ctx context.Context, handle string) (*RAiD, error) {
	resp, err := c.http.Get(ctx, handlePath(handle), nil)
	if err != nil {
		return nil, err
	}
	var r RAiD
	if err := c.http.Decode(resp, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// List returns every RAiD visible to the token.
func (c *Client) List(ctx context.Context) ([]RAiD, error) {
	resp, err := c.http.Get(ctx, "RAiD", nil)
	if err != nil {
		return nil, err
	}
	var page struct {
		Items []RAiD `json:"items"`
	}
	if err := c.http.Decode(resp, &page); err != nil {
		return nil, err
	}
	return page.Items, nil
}

// Mint creates a new RAiD.
func (c *Client) Mint(ctx context.Context, req MintRequest) (*RAiD, error) {
	meta := map[string]any{
		"name":        req.Name,
		"description": req.Description,
	}
	for k, v := range req.Metadata {
		meta[k] = v
	}
	body := map[string]any{
		"contentPath": req.ContentPath,
		"meta":        meta,
	}
	if req.StartDate != "" {
		body["startDate"] = req.StartDate
	}

	resp, err := c.http.Post(ctx, "RAiD", body)
	if err != nil {
		return nil, err
	}
	var r RAiD
	if err := c.http.Decode(resp, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Update changes the content path, name and description of a RAiD.
func (c *Client) Update(ctx context.Context, handle, contentPath, name, description string) (*RAiD, error) {
	resp, err := c.http.Put(ctx, handlePath(handle), map[string]any{
		"contentPath": contentPath,
		"name":        name,
		"description": description,
	})
	if err != nil {
		return nil, err
	}
	var r RAiD
	if err := c.http.Decode(resp, &r); err != nil {
		return nil, err
	}
	if r.Handle == "" {
		r.Handle = handle
	}
	return &r, nil
}
