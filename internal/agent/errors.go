package agent

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/url"
	"slices"
	"syscall"

	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
)

// Error types carried in ErrorInfo.Type.
const (
	TypeConnection = "connection_error"
	TypeAWSClient  = "aws_client_error"
	TypeJSONDecode = "json_decode_error"
	TypeNetwork    = "network_error"
	TypeUnexpected = "unexpected_error"
)

// Error codes assigned by the client itself.
const (
	CodeClientNotInitialized = "CLIENT_NOT_INITIALIZED"
	CodeResponseParsing      = "RESPONSE_PARSING_FAILED"
	CodeConnectionFailed     = "CONNECTION_FAILED"
	CodeUnknown              = "UNKNOWN_ERROR"
)

// ErrMalformedResponse is returned when the agent reply cannot be decoded.
var ErrMalformedResponse = errors.New("malformed agent response")

// Bootstrap rejections with these codes are credential problems.
var bootstrapAuthCodes = []string{
	"InvalidUserID.NotFound", "AccessDenied", "UnauthorizedOperation",
	"InvalidClientTokenId", "ExpiredToken", "SignatureDoesNotMatch",
	"AccessDeniedException", "UnrecognizedClientException",
}

// bootstrapFailure maps a bootstrap error to a connection state and message.
func bootstrapFailure(err error) (ConnectionState, string) {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if slices.Contains(bootstrapAuthCodes, apiErr.ErrorCode()) {
			return StateAuthError, "AWS認證失敗: " + apiErr.ErrorMessage()
		}
		return StateAWSError, "AWS服務錯誤: " + apiErr.ErrorCode()
	}
	return StateError, "初始化失敗: " + err.Error()
}

// describeFailure converts an invoke or decode error into an ErrorInfo.
func describeFailure(err error) *ErrorInfo {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code, msg := apiErr.ErrorCode(), apiErr.ErrorMessage()
		// The code decides; the platform answered, so unlisted codes are service errors.
		cl := Classify(CategoryUnknown, code, msg)
		if cl.Category == CategoryUnknown {
			cl = Classify(CategoryService, "", msg)
		}
		return newErrorInfo(TypeAWSClient, code, cl, msg)
	}

	if isDecodeError(err) {
		return newErrorInfo(TypeJSONDecode, CodeResponseParsing,
			Classify(CategoryParsing, "JSONDecodeError", err.Error()), err.Error())
	}

	if isNetworkError(err) {
		return newErrorInfo(TypeNetwork, CodeConnectionFailed,
			Classify(CategoryNetwork, "", err.Error()), err.Error())
	}

	return newErrorInfo(TypeUnexpected, CodeUnknown, Classify(CategoryUnknown, "", err.Error()), err.Error())
}

func isDecodeError(err error) bool {
	if errors.Is(err, ErrMalformedResponse) {
		return true
	}
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return true
	}
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &typeErr)
}

func isNetworkError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ENETUNREACH) {
		return true
	}

	var sendErr *smithyhttp.RequestSendError
	if errors.As(err, &sendErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
