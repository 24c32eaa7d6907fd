// Package prompt holds the fixed instruction template that wraps the knowledge base.
package prompt

import "strings"

const (
	// NoInfoReply is what the model is told to answer when the knowledge base has nothing relevant.
	NoInfoReply = "不好意思，目前的資料庫中沒有相關資訊，建議您直接聯繫人工客服。"

	// BusyReply replaces the assistant turn when the model call fails.
	BusyReply = "系統忙碌中，請稍後再試。"
)

// DefaultKnowledge is the built-in Q&A block used by the inline source.
const DefaultKnowledge = `Q: 公司的營業時間是幾點？
A: 我們週一至週五早上 9:00 到下午 6:00 營業，國定假日休息。

Q: 商品可以退貨嗎？
A: 是的，購買後 7 天內保持包裝完整皆可退貨。請聯繫客服信箱 service@example.com。

Q: 你們有提供海外運送嗎？
A: 目前僅提供台灣本島與離島的運送服務，海外暫未開放。`

// KnowledgeHeader separates the instructions from the embedded knowledge text.
const KnowledgeHeader = "資料庫內容："

const instructions = `你是一個專業的問答助手。你的任務是「嚴格根據」以下的資料庫回答使用者的問題。

規則：
1. 只能使用資料庫內的資訊，不要自己編造或聯網搜尋。
2. 如果使用者的問題在資料庫中找不到答案，請直接回答：「{no_info}」
3. 回答要親切、簡潔。
`

// Build renders the system prompt with the knowledge text embedded verbatim.
func Build(knowledge string) string {
	var b strings.Builder
	b.WriteString(strings.Replace(instructions, "{no_info}", NoInfoReply, 1))
	b.WriteString("\n")
	b.WriteString(KnowledgeHeader)
	b.WriteString("\n")
	b.WriteString(knowledge)
	b.WriteString("\n")
	return b.String()
}

// Knowledge returns the text that Build embedded, or "" if system was not built by Build.
func Knowledge(system string) string {
	i := strings.Index(system, KnowledgeHeader+"\n")
	if i < 0 {
		return ""
	}
	return strings.TrimSuffix(system[i+len(KnowledgeHeader)+1:], "\n")
}
