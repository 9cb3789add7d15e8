package stub

import (
	"strings"

	"github.com/finlexvn/ragchat/pkg/rag"
)

// scriptMode selects the stub's behavior for a query.
type scriptMode string

const (
	modeAnswer scriptMode = "answer"
	// modeFail ends the stream with an error event. Triggered by the
	// "fail:" query prefix.
	modeFail scriptMode = "fail"
	// modeDrop closes the stream before any terminal event. Triggered
	// by the "drop:" query prefix.
	modeDrop scriptMode = "drop"
)

// script is one scripted pipeline run.
type script struct {
	mode        scriptMode
	answer      string
	citations   []rag.Citation
	failMessage string
}

// canned answers keyed by a keyword found in the query.
var cannedAnswers = []struct {
	keyword   string
	answer    string
	citations []rag.Citation
}{
	{
		keyword: "roe",
		answer: "**ROE** (Return on Equity) là tỷ suất lợi nhuận trên vốn chủ sở hữu, " +
			"đo lường khả năng sinh lời của doanh nghiệp trên mỗi đồng vốn cổ đông bỏ ra [1]. " +
			"Công thức: `ROE = Lợi nhuận sau thuế / Vốn chủ sở hữu bình quân`. " +
			"Một ROE bền vững trên 15% thường được coi là tốt với doanh nghiệp niêm yết tại Việt Nam [2].",
		citations: []rag.Citation{
			{Number: 1, Source: "Thuật ngữ tài chính", Preview: "ROE đo lường hiệu quả sử dụng vốn chủ sở hữu...", Similarity: 0.94},
			{Number: 2, Source: "Báo cáo phân tích VN-Index 2024", Preview: "Mức ROE trung bình của nhóm VN30...", Similarity: 0.81},
		},
	},
	{
		keyword: "trái phiếu",
		answer: "Trái phiếu doanh nghiệp là công cụ nợ do doanh nghiệp phát hành với kỳ hạn từ một năm trở lên [1]. " +
			"Theo Nghị định 153/2020/NĐ-CP, việc chào bán riêng lẻ chỉ dành cho nhà đầu tư chứng khoán chuyên nghiệp [2].",
		citations: []rag.Citation{
			{Number: 1, Source: "Luật Chứng khoán 2019", Preview: "Trái phiếu là loại chứng khoán xác nhận quyền và lợi ích...", Similarity: 0.9},
			{Number: 2, Source: "Nghị định 153/2020/NĐ-CP", Preview: "Đối tượng mua trái phiếu riêng lẻ...", Similarity: 0.87},
		},
	},
}

const defaultAnswer = "Xin lỗi, tôi chưa tìm thấy tài liệu nào đủ liên quan để trả lời chắc chắn. " +
	"Bạn có thể hỏi cụ thể hơn về một chỉ số tài chính hoặc một văn bản pháp luật."

// scriptFor maps a query onto a scripted run. "fail:" and "drop:"
// prefixes force the failure modes used in tests and demos.
func scriptFor(query string) script {
	lower := strings.ToLower(strings.TrimSpace(query))

	if rest, ok := strings.CutPrefix(lower, "fail:"); ok {
		msg := strings.TrimSpace(rest)
		if msg == "" {
			msg = "retrieval pipeline unavailable"
		}
		return script{mode: modeFail, failMessage: msg}
	}
	if strings.HasPrefix(lower, "drop:") {
		return script{mode: modeDrop, answer: "Câu trả lời bị cắt giữa chừng"}
	}

	for _, canned := range cannedAnswers {
		if strings.Contains(lower, canned.keyword) {
			return script{mode: modeAnswer, answer: canned.answer, citations: canned.citations}
		}
	}
	return script{mode: modeAnswer, answer: defaultAnswer}
}

// events expands the script into the wire event sequence.
func (s script) events() []rag.Event {
	events := []rag.Event{
		{Type: rag.EventThinking, Step: "route", Status: rag.StepRunning, Message: "Phân loại câu hỏi"},
		{Type: rag.EventThinking, Step: "route", Status: rag.StepDone, Message: "Đã phân loại", ElapsedMs: 42,
			Data: map[string]any{"routes": []string{"glossary", "legal"}}},
		{Type: rag.EventThinking, Step: "retrieve", Status: rag.StepRunning, Message: "Truy xuất tài liệu"},
	}

	if s.mode == modeFail {
		return append(events, rag.Event{Type: rag.EventError, Message: s.failMessage})
	}

	events = append(events,
		rag.Event{Type: rag.EventThinking, Step: "retrieve", Status: rag.StepDone, Message: "Đã truy xuất", ElapsedMs: 118,
			Data: map[string]any{"doc_count": len(s.citations)}},
		rag.Event{Type: rag.EventAnswerStart},
	)

	for _, chunk := range splitChunks(s.answer, 24) {
		events = append(events, rag.Event{Type: rag.EventAnswerChunk, Content: chunk})
	}

	if s.mode == modeDrop {
		// No terminal event: the transport just closes.
		return events
	}

	return append(events, rag.Event{
		Type:        rag.EventComplete,
		TotalTimeMs: 450,
		Citations:   s.citations,
	})
}

// splitChunks cuts the answer into rune-safe fragments so multi-byte
// Vietnamese characters are never split across chunks.
func splitChunks(answer string, size int) []string {
	runes := []rune(answer)
	chunks := make([]string, 0, len(runes)/size+1)
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}
