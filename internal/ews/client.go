package ews

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Azure/go-ntlmssp"
)

// DefaultServer is the Exchange Online host used when Config.Server is empty.
const DefaultServer = "outlook.office365.com"

// serverVersion is sent in every request header. Exchange Online accepts
// it and it covers every operation this client issues.
const serverVersion = "Exchange2013_SP1"

// ErrUnauthorized is returned when the server rejects the credentials
// (HTTP 401) or the caller lacks access to the mailbox (HTTP 403).
var ErrUnauthorized = errors.New("ews: unauthorized")

// Config holds the connection settings for an EWS endpoint.
type Config struct {
	// Server is the EWS host. Defaults to DefaultServer.
	Server string

	// Endpoint overrides the full service URL derived from Server.
	Endpoint string

	Username string
	Password string

	// HTTPClient is used as the base client. Its transport is wrapped
	// with an NTLM negotiator.
	HTTPClient *http.Client

	// Timeout bounds a single round trip. Zero means no timeout.
	Timeout time.Duration
}

// endpoint returns the service URL for the config.
func (c Config) endpoint() string {
	if c.Endpoint != "" {
		return c.Endpoint
	}
	server := c.Server
	if server == "" {
		server = DefaultServer
	}
	return "https://" + strings.TrimRight(server, "/") + "/EWS/Exchange.asmx"
}

// Client is a thin SOAP client for Exchange Web Services. It handles
// basic/NTLM authentication, envelope (de)serialization and maps
// transport, fault and response-class failures to Go errors.
type Client struct {
	url        string
	username   string
	password   string
	httpClient *http.Client
}

// NewClient creates a new EWS client from cfg. No request is made.
func NewClient(cfg Config) *Client {
	base := http.DefaultTransport
	if cfg.HTTPClient != nil && cfg.HTTPClient.Transport != nil {
		base = cfg.HTTPClient.Transport
	}

	httpClient := &http.Client{
		Transport: ntlmssp.Negotiator{RoundTripper: base},
		Timeout:   cfg.Timeout,
	}
	if cfg.HTTPClient != nil {
		httpClient.Jar = cfg.HTTPClient.Jar
		httpClient.CheckRedirect = cfg.HTTPClient.CheckRedirect
	}

	return &Client{
		url:        cfg.endpoint(),
		username:   cfg.Username,
		password:   cfg.Password,
		httpClient: httpClient,
	}
}

// Call wraps op in a SOAP envelope, posts it and unmarshals the first
// element of the response body into result.
func (c *Client) Call(
	ctx context.Context,
	op interface{},
	result interface{},
) error {
	payload, err := xml.Marshal(requestEnvelope{
		SoapNS:     nsSoap,
		TypesNS:    nsTypes,
		MessagesNS: nsMessages,
		Header: requestHeader{
			Version: requestServerVersion{Version: serverVersion},
		},
		Body: requestBody{Content: op},
	})
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, c.url,
		bytes.NewReader(append([]byte(xml.Header), payload...)),
	)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("Accept", "text/xml")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request %s: %w", operationName(op), err)
	}

	respBody, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()
	if readErr != nil {
		return fmt.Errorf("reading response body: %w", readErr)
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf(
			"%s as %s (%d): %w",
			operationName(op), c.username, resp.StatusCode, ErrUnauthorized,
		)
	}

	var env responseEnvelope
	if err := xml.Unmarshal(respBody, &env); err != nil {
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf(
				"unexpected status %d on %s: %s",
				resp.StatusCode, operationName(op), truncate(respBody, 512),
			)
		}
		return fmt.Errorf("decoding envelope for %s: %w", operationName(op), err)
	}

	// Exchange reports faults with HTTP 500 and a SOAP Fault body.
	if env.Body.Fault != nil {
		return env.Body.Fault
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf(
			"unexpected status %d on %s", resp.StatusCode, operationName(op),
		)
	}

	if result == nil {
		return nil
	}

	if err := xml.Unmarshal(env.Body.Content, result); err != nil {
		return fmt.Errorf(
			"unmarshaling response for %s: %w", operationName(op), err,
		)
	}

	return nil
}

// operationName returns the SOAP operation name for error messages.
func operationName(op interface{}) string {
	if n, ok := op.(interface{ operation() string }); ok {
		return n.operation()
	}
	return fmt.Sprintf("%T", op)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
