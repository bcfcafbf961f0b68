package chat

// Example is a quick-query button shown on the chat page.
type Example struct {
	Label  string `json:"label"`
	Prompt string `json:"prompt"`
	Hint   string `json:"hint"`
}

// Examples are the quick queries for popular cities.
var Examples = []Example{
	{Label: "🌤️ 台北天氣", Prompt: "台北今天天氣如何？", Hint: "獲取台北即時天氣資訊"},
	{Label: "🗼 東京天氣", Prompt: "東京現在天氣怎樣？", Hint: "獲取東京即時天氣資訊"},
	{Label: "🏛️ 倫敦天氣", Prompt: "倫敦今天天氣如何？", Hint: "獲取倫敦即時天氣資訊"},
	{Label: "🗽 紐約天氣", Prompt: "紐約現在天氣怎樣？", Hint: "獲取紐約即時天氣資訊"},
}

// SamplePrompts groups the longer example queries by topic.
var SamplePrompts = map[string][]string{
	"weather": {"台北今天天氣如何？", "東京現在的溫度是多少？"},
	"events":  {"東京最近有什麼展覽或演出？"},
	"sun":     {"東京的日落是幾點？"},
	"mixed":   {"台北今天的完整旅遊資訊", "我想了解東京今天的天氣和有什麼好玩的"},
}
