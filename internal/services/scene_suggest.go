// internal/services/scene_suggest.go
package services

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/StoryMosaic/StoryStudio/internal/models"
)

// 越南语地点线索，用于判断Narration是否包含可成景的场所
var viLocationHints = []*regexp.Regexp{
	regexp.MustCompile(`(?i)Tông\b`),
	regexp.MustCompile(`(?i)Tộc\b`),
	regexp.MustCompile(`(?i)Môn phái\b`),
	regexp.MustCompile(`(?i)Trường\b`),
	regexp.MustCompile(`(?i)Diễn Võ Trường\b`),
	regexp.MustCompile(`(?i)Sảnh\b`),
	regexp.MustCompile(`(?i)Điện\b`),
	regexp.MustCompile(`(?i)Thành\b`),
	regexp.MustCompile(`(?i)Sơn\b`),
	regexp.MustCompile(`(?i)Cốc\b`),
	regexp.MustCompile(`(?i)Phủ\b`),
	regexp.MustCompile(`(?i)Luyện Công\b`),
	regexp.MustCompile(`(?i)Ánh trăng\b`),
	regexp.MustCompile(`(?i)Đêm\b`),
	regexp.MustCompile(`(?i)Rừng\b`),
	regexp.MustCompile(`(?i)Vách đá\b`),
}

// 动作线索
var viActionHints = []*regexp.Regexp{
	regexp.MustCompile(`(?i)luyện\b`),
	regexp.MustCompile(`(?i)luyện kiếm\b`),
	regexp.MustCompile(`(?i)chém\b`),
	regexp.MustCompile(`(?i)vung\b`),
	regexp.MustCompile(`(?i)xé gió\b`),
	regexp.MustCompile(`(?i)kiếm khí\b`),
	regexp.MustCompile(`(?i)gầm\b`),
	regexp.MustCompile(`(?i)nổ\b`),
	regexp.MustCompile(`(?i)lướt\b`),
	regexp.MustCompile(`(?i)khí tức\b`),
	regexp.MustCompile(`(?i)sát khí\b`),
}

// 连续大写词组（如 'Diệp Minh'、'Thái Hư Tông'）视为专名
var properNamePattern = regexp.MustCompile(`(?:[A-ZĐ][\p{L}\p{N}_]*(?:\s+[A-ZĐ][\p{L}\p{N}_]*)+)`)

var placeKeywords = []string{"Tông", "Trường", "Điện", "Thành", "Sơn", "Cốc", "Phủ"}

func extractProperNames(text string) []string {
	seen := make(map[string]bool)
	var names []string
	for _, m := range properNamePattern.FindAllString(text, -1) {
		m = strings.TrimSpace(m)
		if m != "" && !seen[m] {
			seen[m] = true
			names = append(names, m)
		}
	}
	return names
}

func matchAny(patterns []*regexp.Regexp, text string) bool {
	for _, p := range patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

func isPlaceName(name string) bool {
	for _, k := range placeKeywords {
		if strings.Contains(name, k) {
			return true
		}
	}
	return false
}

// expandNarration 从一句Narration提议2-3个场景：定场/人物介绍/动作
func expandNarration(nText string) []models.Scene {
	var scenes []models.Scene
	text := strings.TrimSpace(nText)
	names := extractProperNames(text)
	hasLocation := matchAny(viLocationHints, text)
	hasAction := matchAny(viActionHints, text)

	var placeName string
	for _, n := range names {
		if isPlaceName(n) {
			placeName = n
			break
		}
	}

	if hasLocation || placeName != "" {
		title := placeName
		if title == "" {
			title = "Thiết lập bối cảnh"
		}
		place := placeName
		if place == "" {
			place = "khu vực"
		}
		scenes = append(scenes, models.Scene{
			Name:        "Establishing — " + title,
			ImagePrompt: fmt.Sprintf("Toàn cảnh %s ban đêm; kiến trúc tu chân; sương mù mỏng; đèn lồng xa; ánh trăng lạnh; không khí huyền ảo.", place),
			SFXPrompt:   "Wind Whoosh nhẹ, đêm tĩnh; tiếng côn trùng xa.",
			Characters:  []string{},
		})
	}

	var charName string
	for _, n := range names {
		if len(strings.Fields(n)) == 2 && !isPlaceName(n) {
			charName = n
			break
		}
	}
	if charName != "" {
		scenes = append(scenes, models.Scene{
			Name:        "Giới thiệu " + charName,
			ImagePrompt: fmt.Sprintf("%s trong sân luyện; mồ hôi rịn; viền sáng ánh trăng; ánh mắt quyết liệt; medium/close shot; nền trường luyện mờ xa.", charName),
			SFXPrompt:   "Nhịp thở đều; vải khẽ động; bước chân xa.",
			Characters:  []string{charName},
		})
	}

	if hasAction {
		chars := []string{}
		if charName != "" {
			chars = []string{charName}
		}
		scenes = append(scenes, models.Scene{
			Name:        "Luyện kiếm — hành động",
			ImagePrompt: "vung kiếm mạnh, đường kiếm xé gió; kiếm khí lóe sáng rạch bóng đêm; motion blur nhẹ; bụi bay.",
			SFXPrompt:   "Sword Whoosh, Cloth Rustle; nhịp gấp dần.",
			Characters:  chars,
		})
	}

	if len(scenes) == 0 {
		scenes = append(scenes, models.Scene{
			Name:        "Narration — minh hoạ",
			ImagePrompt: text,
			Characters:  []string{},
		})
	}
	return scenes
}

// SuggestScenesFromScript 读取三列剧本表，从每个Narration行提议场景，不改动原有scenes
func SuggestScenesFromScript(ep *models.Episode) []models.Scene {
	rows := ParseScriptTable(ep.ScriptText)
	var suggestions []models.Scene
	for _, r := range rows {
		if strings.HasPrefix(strings.ToLower(r.ContentType), "narration") {
			suggestions = append(suggestions, expandNarration(r.Content)...)
		}
	}

	type key struct{ name, prompt string }
	seen := make(map[key]bool)
	var uniq []models.Scene
	for _, sc := range suggestions {
		k := key{sc.Name, sc.ImagePrompt}
		if !seen[k] {
			seen[k] = true
			uniq = append(uniq, sc)
		}
	}
	return uniq
}

// MergeSuggestedScenes 把提议场景合并进现有列表；重名时附加 #k 后缀
func MergeSuggestedScenes(existing, suggested []models.Scene) []models.Scene {
	merged := make([]models.Scene, len(existing))
	copy(merged, existing)

	existingNames := make(map[string]bool, len(merged))
	for _, sc := range merged {
		existingNames[sc.Name] = true
	}

	for _, sc := range suggested {
		name := sc.Name
		if existingNames[name] {
			k := 2
			candidate := fmt.Sprintf("%s #%d", name, k)
			for existingNames[candidate] {
				k++
				candidate = fmt.Sprintf("%s #%d", name, k)
			}
			sc.Name = candidate
		}
		existingNames[sc.Name] = true
		merged = append(merged, sc)
	}
	return merged
}
