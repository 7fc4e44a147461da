// internal/textutil/textutil.go
// 文本处理工具：文件名净化、TTS 文本清洗、台词/角色提取、集标题归一
package textutil

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// SafeNameMaxLen 净化后文件名的最大长度
const SafeNameMaxLen = 60

var (
	unsafeNameChars = regexp.MustCompile(`[^\p{L}\p{N}_\- ]+`)

	markupPat     = regexp.MustCompile("\\*\\*|\\*|__|`+")
	sceneLinePat  = regexp.MustCompile(`(?im)^\s*(SCN|Cảnh|Scene)\s*\d+\s*[:\-]?.*$`)
	bracketSFXPat = regexp.MustCompile(`(?i)\[(?:SFX|FX|Ambience|Âm nền|BGM|Nhạc nền|Transition|Chuyển cảnh)[^\]]*\]`)
	parenSFXPat   = regexp.MustCompile(`(?i)\((?:SFX|FX|Ambience|Âm nền|BGM|Nhạc nền|Transition|Chuyển cảnh)[^\)]*\)`)
	metaLinePat   = regexp.MustCompile(`(?m)^\s*(ASSETS|TTS|FULL_SCRIPT)\s*:.*$`)
	spacesPat     = regexp.MustCompile(`\s+`)

	speakerPat     = regexp.MustCompile(`^(?:\s*[-–—]\s*)?(?:\*\s*)?([\p{L}\p{N} _\[\]\(\)]+?)\s*[:：]\s*(.+)$`)
	bracketTrimPat = regexp.MustCompile(`^[\[\(]\s*|\s*[\]\)]$`)

	epNumberedPrefixPat = regexp.MustCompile(`(?i)^\s*(?:tập|tap|ep(?:isode)?)\s*\d+\s*[:：\-–—\.·•]\s*`)
	epBarePrefixPat     = regexp.MustCompile(`(?i)^\s*(?:tập|tap|ep(?:isode)?)\s*\d+\s*`)
)

// 旁白与系统音的保留说话人名称
const (
	NarratorName    = "Người Dẫn Chuyện"
	SystemVoiceName = "HỆ THỐNG"
)

// SpeakerLine 解析出的一条 TTS 台词
type SpeakerLine struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// SafeName 将展示名净化为可作文件名/归档目录名的确定性字符串：
// 去掉不安全字符，首尾去空白，空格换下划线，截断到 60
func SafeName(s string) string {
	s = unsafeNameChars.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, " ", "_")
	runes := []rune(s)
	if len(runes) > SafeNameMaxLen {
		runes = runes[:SafeNameMaxLen]
	}
	return string(runes)
}

// CleanTTSText 将剧本文本清洗为适合语音合成的纯文本：
// 去 Markdown 标记、场景行、SFX/BGM/转场标注与导出块标签
// 保留换行结构，后续说话人解析依赖逐行形态
func CleanTTSText(text string) string {
	if text == "" {
		return ""
	}
	s := markupPat.ReplaceAllString(text, "")
	s = sceneLinePat.ReplaceAllString(s, "")
	s = bracketSFXPat.ReplaceAllString(s, "")
	s = parenSFXPat.ReplaceAllString(s, "")
	s = metaLinePat.ReplaceAllString(s, "")

	var lines []string
	for _, ln := range strings.Split(s, "\n") {
		ln = strings.TrimSpace(spacesPat.ReplaceAllString(ln, " "))
		if ln != "" {
			lines = append(lines, ln)
		}
	}
	return strings.Join(lines, "\n")
}

// fold 去掉变音符并转小写，用于模糊比较说话人名称
func fold(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if base, ok := diacriticFold[r]; ok {
			b.WriteRune(base)
			continue
		}
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// 越南语常用带符字母到基础字母的映射（够用即可，不求全集）
var diacriticFold = map[rune]rune{
	'à': 'a', 'á': 'a', 'ả': 'a', 'ã': 'a', 'ạ': 'a',
	'ă': 'a', 'ằ': 'a', 'ắ': 'a', 'ẳ': 'a', 'ẵ': 'a', 'ặ': 'a',
	'â': 'a', 'ầ': 'a', 'ấ': 'a', 'ẩ': 'a', 'ẫ': 'a', 'ậ': 'a',
	'đ': 'd',
	'è': 'e', 'é': 'e', 'ẻ': 'e', 'ẽ': 'e', 'ẹ': 'e',
	'ê': 'e', 'ề': 'e', 'ế': 'e', 'ể': 'e', 'ễ': 'e', 'ệ': 'e',
	'ì': 'i', 'í': 'i', 'ỉ': 'i', 'ĩ': 'i', 'ị': 'i',
	'ò': 'o', 'ó': 'o', 'ỏ': 'o', 'õ': 'o', 'ọ': 'o',
	'ô': 'o', 'ồ': 'o', 'ố': 'o', 'ổ': 'o', 'ỗ': 'o', 'ộ': 'o',
	'ơ': 'o', 'ờ': 'o', 'ớ': 'o', 'ở': 'o', 'ỡ': 'o', 'ợ': 'o',
	'ù': 'u', 'ú': 'u', 'ủ': 'u', 'ũ': 'u', 'ụ': 'u',
	'ư': 'u', 'ừ': 'u', 'ứ': 'u', 'ử': 'u', 'ữ': 'u', 'ự': 'u',
	'ỳ': 'y', 'ý': 'y', 'ỷ': 'y', 'ỹ': 'y', 'ỵ': 'y',
}

// ParseTTSLines 将 TTS 文本拆成 说话人/台词 序列
// 没有说话人前缀的行归旁白；系统音的各种写法折叠为 HỆ THỐNG
func ParseTTSLines(text string) []SpeakerLine {
	var lines []SpeakerLine
	for _, raw := range strings.Split(text, "\n") {
		t := strings.TrimSpace(raw)
		if t == "" {
			continue
		}
		m := speakerPat.FindStringSubmatch(t)
		if m == nil {
			lines = append(lines, SpeakerLine{Speaker: NarratorName, Text: t})
			continue
		}
		name := strings.TrimSpace(m[1])
		name = strings.TrimSpace(bracketTrimPat.ReplaceAllString(name, ""))
		switch fold(name) {
		case "he thong", "system", "voice system":
			name = SystemVoiceName
		}
		lines = append(lines, SpeakerLine{Speaker: name, Text: strings.TrimSpace(m[2])})
	}
	return lines
}

// ExtractCharacters 从解析后的台词提取出场角色名（保序去重，旁白除外）
func ExtractCharacters(parsed []SpeakerLine) []string {
	var chars []string
	seen := make(map[string]bool)
	hasSystem := false
	for _, ln := range parsed {
		if ln.Speaker == SystemVoiceName {
			hasSystem = true
		}
		if ln.Speaker == NarratorName || seen[ln.Speaker] {
			continue
		}
		seen[ln.Speaker] = true
		chars = append(chars, ln.Speaker)
	}
	if hasSystem && !seen[SystemVoiceName] {
		chars = append(chars, SystemVoiceName)
	}
	return chars
}

// SeedNamesFromTTS 从 TTS/剧本文本收集可入 Character Bible 的角色名（至多10个）
// 按行解析原文，保留换行以免整段折叠成单条台词
func SeedNamesFromTTS(ttsText string) []string {
	parsed := ParseTTSLines(ttsText)
	var names []string
	seen := make(map[string]bool)
	for _, ln := range parsed {
		sp := ln.Speaker
		if sp == "" || sp == NarratorName || sp == SystemVoiceName || seen[sp] {
			continue
		}
		seen[sp] = true
		names = append(names, sp)
		if len(names) >= 10 {
			break
		}
	}
	return names
}

// SuggestVoiceStyles 按角色名粗排一个配音风格建议
func SuggestVoiceStyles(charNames []string) map[string]string {
	out := make(map[string]string, len(charNames))
	for _, n := range charNames {
		base := fold(n)
		switch {
		case n == SystemVoiceName:
			out[n] = "Trung tính, vang kim loại nhẹ, nhịp đều 0.9x"
		case containsAny(base, "nu", "tieu", "co"):
			out[n] = "Nữ dịu, ấm, hơi thì thầm khi nội tâm"
		case containsAny(base, "nam", "ca", "anh"):
			out[n] = "Nam trầm, chắc, dứt khoát khi đối đầu"
		default:
			out[n] = "Trung tính, giàu cảm xúc theo ngữ cảnh"
		}
	}
	return out
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// CleanEpisodeTitle 去掉集标题里的编号前缀（"Tập 1:", "Ep 03 -", "Episode 10." 等），
// 兼容 NBSP/零宽空格与全角冒号；清空后回退为 "Tập {index}"
func CleanEpisodeTitle(rawTitle string, epIndex int) string {
	t := strings.TrimSpace(rawTitle)
	if t == "" {
		return fmt.Sprintf("Tập %d", epIndex)
	}

	t = strings.ReplaceAll(t, "\u00a0", " ")
	t = strings.ReplaceAll(t, "\u200b", "")

	t = epNumberedPrefixPat.ReplaceAllString(t, "")
	t = epBarePrefixPat.ReplaceAllString(t, "")

	t = strings.Trim(t, " -:：·.•—–")
	t = strings.TrimSpace(t)
	if t == "" {
		return fmt.Sprintf("Tập %d", epIndex)
	}
	return t
}
