package notifier

import (
	"fmt"
	"strings"
	"time"

	"hooktrader/internal/pkg/text"
)

const maxMessageLen = 3800

// MessageSection 是通知中的一个段落。
type MessageSection struct {
	Title string
	Lines []string
}

// Add 追加一行 "key: value"，value 为空时跳过。
func (s *MessageSection) Add(key string, value any) {
	v := strings.TrimSpace(fmt.Sprint(value))
	if v == "" || v == "<nil>" {
		return
	}
	s.Lines = append(s.Lines, key+": "+v)
}

// StructuredMessage 统一各通道的推送格式。
type StructuredMessage struct {
	Icon      string
	Title     string
	Sections  []MessageSection
	Footer    string
	Timestamp time.Time
}

// RenderMarkdown 生成 Telegram Markdown 文本，段落放在代码块内。
func (m StructuredMessage) RenderMarkdown() string {
	return m.render(true)
}

// RenderPlain 生成纯文本，飞书文本消息不解析 Markdown。
func (m StructuredMessage) RenderPlain() string {
	return m.render(false)
}

func (m StructuredMessage) render(fenced bool) string {
	var b strings.Builder
	if header := strings.TrimSpace(m.Icon + " " + m.Title); header != "" {
		b.WriteString(header + "\n\n")
	}
	if block := renderSections(m.Sections, fenced); block != "" {
		b.WriteString(block)
	}
	if footer := strings.TrimSpace(m.Footer); footer != "" {
		b.WriteString(sanitize(footer) + "\n")
	}
	if !m.Timestamp.IsZero() {
		b.WriteString("时间：" + m.Timestamp.Format("2006-01-02 15:04:05 MST"))
	}
	return text.Truncate(strings.TrimSpace(b.String()), maxMessageLen)
}

func renderSections(secs []MessageSection, fenced bool) string {
	var b strings.Builder
	written := 0
	for _, sec := range secs {
		lines := nonEmpty(sec.Lines)
		if len(lines) == 0 {
			continue
		}
		if written > 0 {
			b.WriteString("\n")
		}
		if title := strings.TrimSpace(sec.Title); title != "" {
			b.WriteString(sanitize(title) + "\n")
		}
		for _, line := range lines {
			b.WriteString("- " + sanitize(line) + "\n")
		}
		written++
	}
	if written == 0 {
		return ""
	}
	if fenced {
		return "```\n" + b.String() + "```\n\n"
	}
	return b.String() + "\n"
}

func nonEmpty(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func sanitize(s string) string {
	return strings.ReplaceAll(s, "```", "'''")
}
