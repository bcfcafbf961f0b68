package chat

import (
	"strings"

	"github.com/ashureev/cityagent/internal/agent"
)

// FormatError renders a failure as the assistant's transcript entry.
func FormatError(info *agent.ErrorInfo) string {
	if info == nil {
		return ""
	}

	var b strings.Builder
	b.WriteString(info.Message)

	if info.Guidance != "" {
		b.WriteString("\n\n💡 **建議:** ")
		b.WriteString(info.Guidance)
	}

	if info.Retryable {
		b.WriteString("\n\n🔄 **此錯誤可重試**")
	} else {
		b.WriteString("\n\n⚠️ **此錯誤需要修正後才能重試**")
	}

	b.WriteString("\n\n<details><summary>技術詳情</summary>")
	b.WriteString("\n錯誤類別: ")
	b.WriteString(info.Category.String())
	if info.Code != "" {
		b.WriteString("\n錯誤代碼: ")
		b.WriteString(info.Code)
	}
	b.WriteString("\n</details>")

	return b.String()
}
