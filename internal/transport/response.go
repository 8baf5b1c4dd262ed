package transport

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/agentstation/foundry/pkg/errors"
)

// maxErrorBody bounds how much of an error response is kept for diagnostics.
const maxErrorBody = 4096

// Decode reads resp and unmarshals a JSON body into target. Any status of
// 300 or above becomes an APIError carrying the status and body; 401 and 403
// are further wrapped in an AuthenticationError. An empty body leaves target
// untouched.
func (c *Client) Decode(resp *http.Response, target any) error {
	return decode(c.service, authMethod(c.auth), resp, target)
}

// DecodeResponse is Decode for callers without a Client.
func DecodeResponse(resp *http.Response, target any) error {
	return decode("unknown", "unknown", resp, target)
}

func decode(service, method string, resp *http.Response, target any) error {
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.WrapIO("read", "response body", err)
	}

	if resp.StatusCode >= http.StatusMultipleChoices {
		endpoint := ""
		verb := ""
		if resp.Request != nil {
			endpoint = resp.Request.URL.String()
			verb = resp.Request.Method
		}
		apiErr := &errors.APIError{
			Service:    service,
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(verb + " " + http.StatusText(resp.StatusCode)),
			Endpoint:   endpoint,
			Body:       truncate(string(body), maxErrorBody),
		}
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return errors.NewAuthenticationError(service, method, "credentials rejected", apiErr)
		}
		return apiErr
	}

	if target == nil || len(strings.TrimSpace(string(body))) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, target); err != nil {
		return errors.WrapParse("json", "response", err)
	}
	return nil
}

// authMethod names the credential scheme for error reports.
func authMethod(a Authenticator) string {
	switch a.(type) {
	case *APIKeyAuth:
		return "api_key"
	case *BearerAuth:
		return "bearer"
	case *HeaderAuth:
		return "header"
	default:
		return "none"
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
