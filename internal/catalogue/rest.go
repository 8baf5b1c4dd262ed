package catalogue

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/agentstation/foundry/internal/transport"
	"github.com/agentstation/foundry/pkg/constants"
	"github.com/agentstation/foundry/pkg/errors"
	"github.com/agentstation/foundry/pkg/logging"
	"github.com/agentstation/foundry/pkg/records"
	"github.com/agentstation/foundry/pkg/uri"
)

// REST talks to the catalogue over HTTP.
type REST struct {
	transport *transport.Client
	pageSize  int
}

// NewREST creates a catalogue client on top of an authenticated transport
// rooted at the API prefix (https://host/api/v1/).
func NewREST(t *transport.Client) *REST {
	return &REST{transport: t, pageSize: constants.PageSize}
}

// listResponse is the envelope of collection GETs.
type listResponse struct {
	Meta struct {
		Limit      int     `json:"limit"`
		Offset     int     `json:"offset"`
		TotalCount int     `json:"total_count"`
		Next       *string `json:"next"`
	} `json:"meta"`
	Objects []Object `json:"objects"`
}

// Get implements Client.
func (c *REST) Get(ctx context.Context, objectType records.ObjectType, query Query) ([]Object, error) {
	values := url.Values{}
	for k, v := range query {
		values.Set(k, v)
	}
	values.Set("limit", strconv.Itoa(c.pageSize))

	var objects []Object
	for offset := 0; ; {
		values.Set("offset", strconv.Itoa(offset))

		resp, err := c.transport.Get(ctx, collectionPath(objectType), values)
		if err != nil {
			return nil, err
		}
		var page listResponse
		if err := c.transport.Decode(resp, &page); err != nil {
			return nil, err
		}
		objects = append(objects, page.Objects...)

		logging.FromContext(ctx).Trace().
			Str("resource", objectType.String()).
			Int("offset", offset).
			Int("total_count", page.Meta.TotalCount).
			Msg("Fetched page")

		if page.Meta.Next == nil || *page.Meta.Next == "" || len(page.Objects) == 0 {
			break
		}
		offset += len(page.Objects)
		if page.Meta.TotalCount > 0 && offset >= page.Meta.TotalCount {
			break
		}
	}
	return objects, nil
}

// Create implements Client.
func (c *REST) Create(ctx context.Context, objectType records.ObjectType, payload any) (WriteResponse, error) {
	resp, err := c.transport.Post(ctx, collectionPath(objectType), payload)
	if err != nil {
		return WriteResponse{}, err
	}
	return c.writeResponse(resp)
}

// Update implements Client.
func (c *REST) Update(ctx context.Context, target uri.URI, payload any) (WriteResponse, error) {
	if target.IsZero() {
		return WriteResponse{}, errors.NewValidationError("uri", target, "update requires a resource URI")
	}
	resp, err := c.transport.Put(ctx, detailPath(target), payload)
	if err != nil {
		return WriteResponse{}, err
	}
	return c.writeResponse(resp)
}

// Introspect implements Client.
func (c *REST) Introspect(ctx context.Context) (Introspection, error) {
	resp, err := c.transport.Get(ctx, "introspection/", nil)
	if err != nil {
		return Introspection{}, err
	}
	var body struct {
		Objects []Introspection `json:"objects"`
	}
	if err := c.transport.Decode(resp, &body); err != nil {
		return Introspection{}, err
	}
	if len(body.Objects) != 1 {
		return Introspection{}, &errors.APIError{
			Service: c.transport.Service(),
			Message: fmt.Sprintf("introspection returned %d objects, expected 1", len(body.Objects)),
		}
	}
	return body.Objects[0], nil
}

func (c *REST) writeResponse(resp *http.Response) (WriteResponse, error) {
	out := WriteResponse{
		StatusCode: resp.StatusCode,
		Location:   resp.Header.Get("Location"),
	}
	var obj Object
	if err := c.transport.Decode(resp, &obj); err != nil {
		return WriteResponse{}, err
	}
	out.Object = obj
	return out, nil
}

func collectionPath(t records.ObjectType) string {
	return string(t) + "/"
}

func detailPath(u uri.URI) string {
	return u.Type + "/" + strconv.Itoa(u.ID) + "/"
}
