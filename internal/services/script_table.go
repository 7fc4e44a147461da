// internal/services/script_table.go
package services

import (
	"fmt"
	"regexp"
	"strings"
)

// ScriptTableHeader 三列剧本表的标准表头
const ScriptTableHeader = "| Content Type | Detailed Content | Technical Notes |"

const scriptTableDivider = "|---|---|---|"

var scriptHeaderPattern = regexp.MustCompile(`(?i)^\|\s*Content Type\s*\|\s*Detailed Content\s*\|\s*Technical Notes\s*\|\s*$`)

// 按内容类型给出的CapCut音乐提示
var capcutBGMHints = []struct {
	keyword string
	hint    string
}{
	{"narration", "CapCut BGM: Calm Piano, Emotional Strings, Ambient Pad, Soft Wind …"},
	{"dialogue", "CapCut BGM: Soft Piano, Gentle Guitar, Light Ambient, Romantic Background …"},
	{"voice system", "CapCut BGM: Digital Drone, Synth Pad, Sci-Fi Ambient, Echo Pulse …"},
	{"bgm", "CapCut BGM: Epic Battle, Dark Ambient, Mystery Drone, Cinematic Rise …"},
}

const capcutFXFallback = "CapCut FX: Whoosh Short, Flash Transition, Riser Hit …"

var capcutFXHints = []struct {
	keyword string
	hint    string
}{
	{"sound effects", "CapCut FX: Whoosh Short, Impact Hit, Cloth Rustle, Sword Whoosh …"},
	{"transition", "CapCut FX: Flash Transition, Whip Pan, Glitch Cut, Swoosh …"},
}

// ScriptRow 剧本表的一行
type ScriptRow struct {
	ContentType string
	Content     string
	Notes       string
}

// ParseScriptTable 解析三列Markdown剧本表，忽略表头与分隔行
func ParseScriptTable(md string) []ScriptRow {
	var rows []ScriptRow
	for _, raw := range strings.Split(md, "\n") {
		line := strings.TrimSpace(raw)
		if !strings.HasPrefix(line, "|") || strings.Contains(line, "|---") {
			continue
		}
		cols := splitTableRow(line)
		if len(cols) < 3 {
			continue
		}
		if strings.Contains(strings.ToLower(cols[0]), "content type") {
			continue
		}
		rows = append(rows, ScriptRow{ContentType: cols[0], Content: cols[1], Notes: cols[2]})
	}
	return rows
}

func splitTableRow(line string) []string {
	trimmed := strings.Trim(line, "|")
	parts := strings.Split(trimmed, "|")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func capcutFXName(contentType string) string {
	lc := strings.ToLower(strings.TrimSpace(contentType))
	for _, h := range capcutFXHints {
		if strings.Contains(lc, h.keyword) {
			return h.hint
		}
	}
	return ""
}

func capcutBGMName(contentType string) string {
	lc := strings.ToLower(strings.TrimSpace(contentType))
	for _, h := range capcutBGMHints {
		if strings.Contains(lc, h.keyword) {
			return h.hint
		}
	}
	return ""
}

// 在Technical Notes缺少提示时补充CapCut FX/BGM建议，已有提示则原样保留
func augmentNotes(contentType, notes string) string {
	if strings.Contains(strings.ToLower(notes), "capcut") {
		return notes
	}

	lc := strings.ToLower(strings.TrimSpace(contentType))
	fxHint := capcutFXName(contentType)
	if strings.Contains(lc, "transition") && fxHint == "" {
		fxHint = capcutFXFallback
	}

	extra := ""
	if strings.Contains(lc, "sound effects") || strings.Contains(lc, "transition") {
		extra = fxHint
	} else {
		extra = capcutBGMName(contentType)
	}

	merged := notes
	if extra != "" {
		merged = strings.TrimSpace(notes + " " + extra)
	}
	return strings.TrimSpace(merged)
}

func escapeTableCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

// NormalizeScriptTable 将任意文本规整为三列剧本表，并为每行补充CapCut提示
// 输入已是表格时不增不删行，只在Technical Notes缺提示时补充
func NormalizeScriptTable(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}

	hasHeader := false
	for _, line := range strings.Split(text, "\n") {
		if scriptHeaderPattern.MatchString(strings.TrimSpace(line)) {
			hasHeader = true
			break
		}
	}

	out := []string{ScriptTableHeader, scriptTableDivider}

	if hasHeader {
		for _, raw := range strings.Split(text, "\n") {
			line := strings.TrimSpace(raw)
			if line == "" || strings.HasPrefix(line, "|---") {
				continue
			}
			if scriptHeaderPattern.MatchString(line) {
				continue
			}
			if !strings.HasPrefix(line, "|") {
				continue
			}
			cols := splitTableRow(line)
			if len(cols) < 3 {
				continue
			}
			notes := augmentNotes(cols[0], cols[2])
			out = append(out, fmt.Sprintf("| %s | %s | %s |", cols[0], escapeTableCell(cols[1]), escapeTableCell(notes)))
		}
		return strings.Join(out, "\n")
	}

	// 非表格输入：逐行识别前缀并转换
	for _, raw := range strings.Split(text, "\n") {
		s := strings.TrimSpace(raw)
		if s == "" {
			continue
		}
		ctype, content := classifyScriptLine(s)
		notes := augmentNotes(ctype, "")
		out = append(out, fmt.Sprintf("| %s | %s | %s |", ctype, escapeTableCell(content), escapeTableCell(notes)))
	}
	return strings.Join(out, "\n")
}

func classifyScriptLine(s string) (string, string) {
	low := strings.ToLower(s)
	after := func() string {
		if i := strings.Index(s, ":"); i != -1 {
			return strings.TrimSpace(s[i+1:])
		}
		return s
	}

	switch {
	case strings.HasPrefix(low, "narration:"):
		return "Narration", after()
	case strings.HasPrefix(low, "dialogue:"), strings.HasPrefix(low, "dialog:"):
		return "Dialogue", after()
	case strings.HasPrefix(low, "voice system:"), strings.HasPrefix(low, "system:"):
		return "Voice System", after()
	case strings.HasPrefix(s, "[SFX]"):
		if i := strings.Index(s, "]"); i != -1 {
			return "Sound Effects", strings.TrimSpace(s[i+1:])
		}
		return "Sound Effects", s
	case strings.HasPrefix(low, "sfx:"):
		return "Sound Effects", after()
	case strings.HasPrefix(low, "bgm:"):
		return "BGM", after()
	case strings.HasPrefix(low, "transition:"):
		return "Transition", after()
	}
	return "Narration", s
}
