package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/x/ansi"

	"github.com/finlexvn/ragchat/pkg/rag"
	"github.com/finlexvn/ragchat/pkg/stream"
)

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "đang khởi động..."
	}

	var b strings.Builder
	b.WriteString(ansi.Truncate(m.styles.header.Render(" FinLex — trợ lý tài chính & pháp luật "), m.width, "…"))
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(ansi.Truncate(m.statusLine(), m.width, "…"))
	return b.String()
}

func (m Model) statusLine() string {
	switch {
	case m.err != nil:
		return m.styles.errText.Render("lỗi: " + m.err.Error())
	case m.streaming:
		return m.styles.statusBar.Render("đang trả lời... (esc để dừng)")
	default:
		return m.styles.statusBar.Render("enter để gửi · ctrl+c để thoát")
	}
}

// refreshViewport rebuilds the transcript content and keeps the view
// pinned to the newest output while streaming.
func (m *Model) refreshViewport() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.transcript())
	if m.streaming {
		m.viewport.GotoBottom()
	}
}

// transcript renders every finished exchange plus the in-flight one.
func (m Model) transcript() string {
	var b strings.Builder
	for _, ex := range m.exchanges {
		m.writeExchange(&b, ex)
	}
	if m.session != nil {
		m.writeLive(&b)
	}
	return b.String()
}

func (m Model) writeExchange(b *strings.Builder, ex exchange) {
	b.WriteString(m.styles.query.Render("❯ " + ex.query))
	b.WriteString("\n")
	m.writeSteps(b, ex.session.ThinkingSteps)

	if ex.rendered != "" {
		b.WriteString(ex.rendered)
	}
	if ex.session.Err != nil {
		b.WriteString(m.styles.errText.Render(ex.session.Err.Error()))
		b.WriteString("\n")
	} else if ex.session.Interrupted {
		b.WriteString(m.styles.partial.Render("(kết nối bị ngắt — câu trả lời có thể chưa đầy đủ)"))
		b.WriteString("\n")
	}

	m.writeCitations(b, ex.session)
	b.WriteString("\n")
}

// writeLive renders the current streaming session: spinner on running
// steps and raw (unrendered) answer text as it grows.
func (m Model) writeLive(b *strings.Builder) {
	b.WriteString(m.styles.query.Render("❯ " + m.query))
	b.WriteString("\n")
	m.writeSteps(b, m.session.ThinkingSteps)
	if m.session.Answer != "" {
		b.WriteString(m.styles.answer.Render(m.session.Answer))
		b.WriteString("\n")
	}
}

func (m Model) writeSteps(b *strings.Builder, steps []stream.ThinkingStep) {
	for _, step := range steps {
		if step.Status == rag.StepDone {
			line := m.styles.stepDone.Render("✓ " + step.Message)
			if step.ElapsedMs > 0 {
				line += m.styles.stepMeta.Render(fmt.Sprintf(" (%dms)", step.ElapsedMs))
			}
			if extra := stepExtra(step); extra != "" {
				line += m.styles.stepMeta.Render(" " + extra)
			}
			b.WriteString(line)
		} else {
			b.WriteString(m.spin.View() + m.styles.stepRun.Render(step.Message))
		}
		b.WriteString("\n")
	}
}

func (m Model) writeCitations(b *strings.Builder, s *stream.Session) {
	if len(s.Citations) == 0 {
		return
	}
	b.WriteString(m.styles.stepMeta.Render("nguồn:"))
	b.WriteString("\n")
	for _, cit := range s.Citations {
		line := fmt.Sprintf("  [%d] %s", cit.Number, cit.Source)
		if cit.Similarity > 0 {
			line += fmt.Sprintf(" (%.2f)", cit.Similarity)
		}
		if cit.Preview != "" {
			line += " — " + cit.Preview
		}
		b.WriteString(m.styles.citation.Render(ansi.Truncate(line, m.width-2, "…")))
		b.WriteString("\n")
	}
	if s.TotalTimeMs > 0 {
		b.WriteString(m.styles.stepMeta.Render(fmt.Sprintf("trả lời trong %dms", s.TotalTimeMs)))
		b.WriteString("\n")
	}
}

// stepExtra summarizes the open metadata a stage attached, if any.
func stepExtra(step stream.ThinkingStep) string {
	if len(step.Data) == 0 {
		return ""
	}
	if n, ok := step.Data["doc_count"]; ok {
		return fmt.Sprintf("[%v tài liệu]", n)
	}
	if routes, ok := step.Data["routes"]; ok {
		return fmt.Sprintf("[%v]", routes)
	}
	return ""
}
