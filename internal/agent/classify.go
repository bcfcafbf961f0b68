package agent

import (
	"fmt"
	"slices"
)

// Category is the closed set of failure classes.
type Category uint8

const (
	CategoryUnknown Category = iota
	CategoryAuth
	CategoryNetwork
	CategoryService
	CategoryValidation
	CategoryParsing
)

var categoryNames = [...]string{
	CategoryUnknown:    "unknown",
	CategoryAuth:       "auth",
	CategoryNetwork:    "network",
	CategoryService:    "service",
	CategoryValidation: "validation",
	CategoryParsing:    "parsing",
}

func (c Category) String() string {
	if int(c) < len(categoryNames) {
		return categoryNames[c]
	}
	return categoryNames[CategoryUnknown]
}

// Taxonomy returns the wire name of the category, e.g. "auth_error".
func (c Category) Taxonomy() string {
	return c.String() + "_error"
}

// MarshalText implements encoding.TextMarshaler.
func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Category) UnmarshalText(text []byte) error {
	for i, name := range categoryNames {
		if name == string(text) {
			*c = Category(i)
			return nil
		}
	}
	return fmt.Errorf("unknown error category %q", text)
}

// Classification is the result of Classify.
type Classification struct {
	Category  Category
	Message   string
	Retryable bool
	Guidance  string
}

type classificationRule struct {
	category  Category
	codes     []string
	message   string
	retryable bool
	guidance  string
}

// Order is priority: the first rule whose codes contain the code, or whose
// category equals the kind, wins.
var classificationRules = []classificationRule{
	{
		category: CategoryAuth,
		codes: []string{
			"AccessDenied", "UnauthorizedOperation", "InvalidUserID.NotFound", "TokenRefreshRequired",
			"AccessDeniedException", "UnrecognizedClientException", "ExpiredTokenException",
		},
		message:   "❌ AWS 認證失敗\n\n請檢查：\n- workshop-profile 配置\n- IAM 權限設定\n- AWS 憑證有效性",
		retryable: false,
		guidance:  "請確認 AWS 憑證配置正確",
	},
	{
		category:  CategoryNetwork,
		codes:     []string{"NetworkingError", "EndpointConnectionError", "ConnectTimeoutError", "ReadTimeoutError"},
		message:   "❌ 網路連線問題\n\n建議：\n- 檢查網路連線\n- 確認 AWS 服務狀態\n- 稍後重試",
		retryable: true,
		guidance:  "請檢查網路連線並稍後重試",
	},
	{
		category: CategoryService,
		codes: []string{
			"ThrottlingException", "ServiceUnavailableException", "InternalServerError",
			"InternalServerException", "ServiceQuotaExceededException", "RuntimeClientError",
		},
		message:   "❌ 服務暫時不可用\n\n建議：\n- 稍後重試\n- 檢查 AWS 服務狀態",
		retryable: true,
		guidance:  "服務繁忙，請稍後重試",
	},
	{
		category:  CategoryValidation,
		codes:     []string{"ValidationException", "InvalidParameterException", "MalformedPolicyDocument", "ResourceNotFoundException"},
		message:   "❌ 請求格式錯誤\n\n可能原因：\n- 查詢格式不正確\n- 參數無效",
		retryable: false,
		guidance:  "請檢查查詢格式",
	},
	{
		category:  CategoryParsing,
		codes:     []string{"JSONDecodeError", "ResponseParsingError"},
		message:   "❌ 回應格式錯誤\n\n系統無法解析 Agent 回應，請重試或聯繫管理員",
		retryable: true,
		guidance:  "回應解析失敗，請重試",
	},
}

const noDetailPlaceholder = "無詳細資訊"

// Classify maps a raw failure to its category. kind is the caller's best guess
// at the failure class; code is the upstream error code, if any. Unknown
// failures embed message verbatim.
func Classify(kind Category, code, message string) Classification {
	for _, rule := range classificationRules {
		if (code != "" && slices.Contains(rule.codes, code)) || kind == rule.category {
			return Classification{
				Category:  rule.category,
				Message:   rule.message,
				Retryable: rule.retryable,
				Guidance:  rule.guidance,
			}
		}
	}

	if message == "" {
		message = noDetailPlaceholder
	}
	return Classification{
		Category:  CategoryUnknown,
		Message:   "❌ 未知錯誤\n\n錯誤訊息: " + message,
		Retryable: false,
		Guidance:  "發生未知錯誤，請聯繫管理員",
	}
}

// Codes returns the upstream error codes that map to c.
func Codes(c Category) []string {
	for _, rule := range classificationRules {
		if rule.category == c {
			return slices.Clone(rule.codes)
		}
	}
	return nil
}

func newErrorInfo(typ, code string, cl Classification, raw string) *ErrorInfo {
	return &ErrorInfo{
		Type:       typ,
		Code:       code,
		Message:    cl.Message,
		Category:   cl.Category,
		Retryable:  cl.Retryable,
		Guidance:   cl.Guidance,
		RawMessage: raw,
	}
}
