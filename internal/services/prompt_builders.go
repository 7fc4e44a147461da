// internal/services/prompt_builders.go
package services

import (
	"fmt"
	"strings"

	"github.com/StoryMosaic/StoryStudio/internal/models"
	"github.com/StoryMosaic/StoryStudio/internal/presets"
)

// BuildStorylinePrompt 从创意和预设生成5个故事线方案的提示词
func BuildStorylinePrompt(idea, presetName string) string {
	presetInfo := presets.Block(presetName)
	return strings.TrimSpace(fmt.Sprintf(`
Bạn là biên kịch audio-first. Dựa trên Ý Tưởng: "%s".
Preset: %s.

%s

Hãy đề xuất đúng 5 PHƯƠNG ÁN CỐT TRUYỆN. Mỗi phương án 120–180 từ, nêu:
- Bối cảnh & móc XUYÊN KHÔNG (nếu phù hợp thể loại)
- Mâu thuẫn chính & tuyến quan hệ nhân vật
- Cơ chế HỆ THỐNG / Quy tắc thế giới (nếu có)
- Hứa hẹn cao trào cuối mùa
Viết tiếng Việt.

Trả về JSON ARRAY gồm 5 object, mỗi object: {"title":"<10–16 từ mô tả ngắn>","summary":"<120–180 từ>"}
KHÔNG thêm lời dẫn, KHÔNG markdown, chỉ in JSON hợp lệ.`, idea, presetName, presetInfo))
}

// BuildOutlinePrompt 从选定的故事线生成整季大纲的提示词
// recap 用于多季项目：携带前几季的梗概以保持连续性
func BuildOutlinePrompt(chosen string, episodeCount int, recap, presetName string) string {
	presetInfo := ""
	if presetName != "" {
		presetInfo = presets.Block(presetName)
	}
	recapPart := ""
	if recap != "" {
		recapPart = fmt.Sprintf("\nRecap các mùa trước:\n%s\n", recap)
	}
	return strings.TrimSpace(fmt.Sprintf(`
Từ cốt truyện đã chọn:
---
%s
---%s
%s

Hãy tạo DÀN Ý MÙA gồm %d tập.
YÊU CẦU:
- Mỗi tập mô tả 1–2 câu: bối cảnh, mâu thuẫn, tiến độ xung đột, hook nối tập sau.
- Liên kết continuity (nhân vật, nợ cốt truyện, đồ vật/điểm mốc).
- Việt hoá hoàn toàn, mạch lạc, audio-first.

Trả về JSON list: [{"title":"...", "beat":"..."}].
KHÔNG thêm lời dẫn, KHÔNG markdown.`, chosen, recapPart, presetInfo, episodeCount))
}

// BuildEpisodePrompt 生成单集三段式产出（FULL_SCRIPT/ASSETS/TTS）的提示词
func BuildEpisodePrompt(chosen, epTitle, epBeat, presetName string) string {
	presetInfo := ""
	if presetName != "" {
		presetInfo = presets.Block(presetName)
	}
	return strings.TrimSpace(fmt.Sprintf(`
Viết kịch bản AUDIO-FIRST cho tập: "%s" dựa trên dàn ý: "%s" và tổng cốt truyện:
%s

%s

YÊU CẦU:
- Format bảng 3 cột (Markdown table): hàng tiêu đề CHÍNH XÁC là
  `+"`| Content Type | Detailed Content | Technical Notes |`"+`
  và ngay dưới là hàng gạch `+"`|---|---|---|`"+`.
- Mỗi hàng là một bước thuộc một cảnh (SCN): Narration / Dialogue / Sound Effects / Voice System / BGM / Transition.
- Không chèn bất kỳ văn bản ngoài bảng trong FULL_SCRIPT (không title, không chú thích).
- Diễn đạt Việt hoá hoàn toàn các thuật ngữ hệ thống: Cấp độ, Lớp, Nhân tính, Tha hoá, Nhiệm vụ, Mục tiêu, Phần thưởng, Kích hoạt, Hoàn tất.
- Phong cách audio-first: ưu tiên âm thanh dẫn hướng, hành động vật lý, nhịp đối thoại, cắt cảnh mượt.

Xuất theo 3 phần (JSON):
(A) FULL_SCRIPT: ~900–1400 từ, **chỉ** là Markdown table 3 cột như yêu cầu.
(B) ASSETS: danh sách scene [{
  "scene":"Tên cảnh",
  "image_prompt":"mô tả tranh minh hoạ (donghua/cel-shaded, nét Á Đông, màu chủ đạo)...",
  "sfx_prompt":"gợi ý ambience/Foley/BGM/transition...",
  "characters":["Tên 1","Tên 2", ...]
}]
(C) TTS: bản rút gọn ~6–9 phút (chỉ thoại + narration, không SFX)

Trả về JSON: {"FULL_SCRIPT":"...","ASSETS":[{"scene":"...","image_prompt":"...","sfx_prompt":"...","characters":["..."]}], "TTS":"..."}
KHÔNG thêm lời dẫn, KHÔNG markdown ngoài giá trị FULL_SCRIPT (vốn là bảng Markdown).`, epTitle, epBeat, chosen, presetInfo))
}

// BuildCharacterBiblePrompt 生成核心人物设定集的提示词，至多 maxChars 个人物
func BuildCharacterBiblePrompt(projectName, idea, chosen string, outline []models.OutlineBeat, maxChars int, presetName string) string {
	presetInfo := ""
	if presetName != "" {
		presetInfo = presets.Block(presetName)
	}

	var outlineLines []string
	for i, beat := range outline {
		outlineLines = append(outlineLines, fmt.Sprintf("- %d. %s — %s", i+1, beat.Title, beat.Beat))
	}
	outlineText := strings.Join(outlineLines, "\n")

	return strings.TrimSpace(fmt.Sprintf(`
Bạn là biên tập xây dựng 'Character Bible' cho dự án: "%s".
Ý tưởng gốc: %s
Cốt truyện đã chọn: %s

%s

Nhiệm vụ: Tạo danh sách tối đa %d nhân vật cốt lõi phục vụ dựng kịch bản audio-first.
YÊU CẦU mỗi nhân vật có các thuộc tính:
- name, role, age
- look (ưu tiên nét Á Đông; tránh siêu thực Tây phương), hair, outfit
- color_theme (2–3 màu chủ đạo), notes (đặc trưng khi render donghua/cel-shaded)

Nếu có dàn ý mùa, tham chiếu nhịp câu chuyện sau:
%s

Trả về JSON: {"characters":[{"name":"...","role":"...","age":"...","look":"...","hair":"...","outfit":"...","color_theme":"...","notes":"..."}]}.
KHÔNG kèm lời dẫn hay markdown, chỉ in JSON hợp lệ.`, projectName, idea, chosen, presetInfo, maxChars, outlineText))
}

// characterBibleText 渲染人物设定块；若给出场景内人物清单则按其过滤
func characterBibleText(bible models.CharacterBible, charactersInScene []string) string {
	chosen := bible.Characters
	if len(charactersInScene) > 0 {
		names := make(map[string]bool, len(charactersInScene))
		for _, n := range charactersInScene {
			names[n] = true
		}
		var filtered []models.Character
		for _, c := range chosen {
			if names[c.Name] {
				filtered = append(filtered, c)
			}
		}
		chosen = filtered
	}
	if len(chosen) == 0 {
		return "CHARACTER BIBLE: (none provided)"
	}

	lines := []string{"CHARACTER BIBLE (use consistently):"}
	for _, c := range chosen {
		lines = append(lines, fmt.Sprintf(
			"- %s: role=%s, age=%s, look=%s, hair=%s, outfit=%s, colors=%s, notes=%s",
			c.Name, c.Role, c.Age, c.Look, c.Hair, c.Outfit, c.ColorTheme, c.Notes))
	}
	return strings.Join(lines, "\n")
}

// SegmentPromptOptions 视频分镜提示词的可选项
type SegmentPromptOptions struct {
	MaxSegments       int
	AspectRatio       string
	DonghuaStyle      bool
	CharacterBible    models.CharacterBible
	CharactersInScene []string
}

// BuildSegmentsPrompt 按场景生成Veo 3.1分镜（8秒shot）提示词
func BuildSegmentsPrompt(epTitle, sceneName, sceneText string, opts SegmentPromptOptions) string {
	if opts.MaxSegments <= 0 {
		opts.MaxSegments = 3
	}
	if opts.AspectRatio == "" {
		opts.AspectRatio = models.AspectLandscape
	}

	styleHint := "cinematic stylized look, avoid hyper-realistic faces"
	if opts.DonghuaStyle {
		styleHint = "stylized animation, Chinese donghua look, cel-shaded, clean lineart, " +
			"Asian facial features, natural black/dark hair unless specified, " +
			"avoid photorealism, avoid western/European facial structure, " +
			"soft skin rendering, rich fabric texture"
	}

	cbText := characterBibleText(opts.CharacterBible, opts.CharactersInScene)
	arText := "target_aspect_ratio=" + opts.AspectRatio
	charsLine := ""
	if len(opts.CharactersInScene) > 0 {
		charsLine = "[Characters in scene] " + strings.Join(opts.CharactersInScene, ", ")
	}

	return strings.TrimSpace(fmt.Sprintf(`
Bạn là đạo diễn tiền-kỳ cho video AI Veo 3.1. Từ thông tin cảnh:

• TẬP: %s
• CẢNH: %s
• NỘI DUNG CẢNH:
---
%s
---
%s

%s

YÊU CẦU:
- Chia cảnh thành các đoạn video 8 GIÂY (duration_sec=8). Tổng số đoạn tối đa %d.
- Mỗi đoạn là MỘT SHOT LIỀN MẠCH, ưu tiên **HÀNH ĐỘNG NHÂN VẬT** (tay/chân/ánh mắt/nhịp thở/tương tác đạo cụ) và **CHUYỂN ĐỘNG CAMERA**.
- Mô tả rõ cho TỪNG SHOT:
  • Hành động nhân vật (động tác theo thời gian trong 8s, tương tác với ai/đạo cụ gì)
  • Biểu cảm & hướng nhìn (góc mắt, thay đổi nét mặt, chuyển trọng tâm cơ thể)
  • Camera: ống kính, khung (CU/MS/WS), chuyển động (dolly/pan/tilt/handheld/drone), góc/độ cao
  • Bố cục & continuity trong 8s (rack focus/whip pan/match cut…)
  • Ánh sáng/không khí (giờ, keylight, rimlight, volumetric, mưa/sương/bụi…)
  • Môi trường/đạo cụ (texture bề mặt, chi tiết nền)
  • Phong cách: %s
  • FPS & AR: 24fps, %s
  • Tông cảm xúc / nhịp dựng
- Mỗi segment phải nêu rõ "characters".
- Gợi ý SFX/ambience (ngắn gọn, khớp hành động).

TRẢ VỀ JSON DUY NHẤT:
{
  "scene": "%s",
  "segments": [
    {
      "title": "Ngắn gọn 3–7 từ",
      "duration_sec": 8,
      "characters": ["Tên A","Tên B"],
      "veo_prompt": "Character action beats (tay/chân/ánh mắt/đạo cụ) -> camera (lens/khung/chuyển động) -> ánh sáng/không khí -> môi trường/đạo cụ -> 24fps + %s; tránh siêu thực Tây phương.",
      "sfx": "ambience/SFX ngắn",
      "notes": "continuity (nếu cần)"
    }
  ]
}
KHÔNG thêm lời dẫn, KHÔNG markdown, chỉ in JSON hợp lệ.`,
		epTitle, sceneName, sceneText, charsLine, cbText,
		opts.MaxSegments, styleHint, arText, sceneName, opts.AspectRatio))
}
