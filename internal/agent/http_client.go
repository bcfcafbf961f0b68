package agent

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aws/smithy-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	// SessionHeader carries the runtime session id on local invocations.
	SessionHeader = "X-Amzn-Bedrock-AgentCore-Runtime-Session-Id"

	maxErrorBody = 4 << 10
)

// HTTPBootstrapper targets an agent runtime served locally over plain HTTP
// (POST /invocations, GET /ping).
type HTTPBootstrapper struct {
	Endpoint string
	Client   *http.Client
}

// NewHTTPBootstrapper creates a bootstrapper whose requests are traced with otelhttp.
func NewHTTPBootstrapper(endpoint string) *HTTPBootstrapper {
	return &HTTPBootstrapper{
		Endpoint: strings.TrimRight(endpoint, "/"),
		Client: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// Bootstrap implements Bootstrapper by pinging the runtime.
func (b *HTTPBootstrapper) Bootstrap(ctx context.Context) (*Handle, error) {
	client := b.Client
	if client == nil {
		client = http.DefaultClient
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.Endpoint+"/ping", nil)
	if err != nil {
		return nil, fmt.Errorf("build ping request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ping agent runtime: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(resp)
	}

	return &Handle{
		Invoker: &HTTPInvoker{endpoint: b.Endpoint, client: client},
		Identity: Identity{
			ARN: b.Endpoint,
		},
	}, nil
}

// HTTPInvoker posts prompts to a locally served agent runtime.
type HTTPInvoker struct {
	endpoint string
	client   *http.Client
}

// Invoke implements Invoker.
func (i *HTTPInvoker) Invoke(ctx context.Context, in InvokeRequest) (*Invocation, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, i.endpoint+"/invocations", bytes.NewReader(in.Payload))
	if err != nil {
		return nil, fmt.Errorf("build invocation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if in.SessionID != "" {
		req.Header.Set(SessionHeader, in.SessionID)
	}

	resp, err := i.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read agent response: %w", err)
	}

	sessionID := resp.Header.Get(SessionHeader)
	if sessionID == "" {
		sessionID = in.SessionID
	}
	return &Invocation{
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
		RequestID:   resp.Header.Get("X-Request-Id"),
		HTTPStatus:  resp.StatusCode,
		SessionID:   sessionID,
	}, nil
}

// statusError turns a non-2xx reply into an API error carrying the code the
// hosted runtime would have returned for the same status.
func statusError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	msg := strings.TrimSpace(string(data))
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}

	fault := smithy.FaultClient
	if resp.StatusCode >= 500 {
		fault = smithy.FaultServer
	}
	return &smithy.GenericAPIError{
		Code:    codeForStatus(resp.StatusCode),
		Message: msg,
		Fault:   fault,
	}
}

func codeForStatus(status int) string {
	switch {
	case status == http.StatusUnauthorized:
		return "UnrecognizedClientException"
	case status == http.StatusForbidden:
		return "AccessDeniedException"
	case status == http.StatusNotFound:
		return "ResourceNotFoundException"
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		return "ValidationException"
	case status == http.StatusTooManyRequests:
		return "ThrottlingException"
	case status == http.StatusServiceUnavailable:
		return "ServiceUnavailableException"
	case status >= 500:
		return "InternalServerException"
	default:
		return fmt.Sprintf("HTTP_%d", status)
	}
}
