// internal/migration/migrate.go
// 迁移/归一化层：接收任意形态（可能过期或被手工编辑过）的原始项目记录，
// 产出保证能通过实体模型构造契约的记录。自顶向下修复（Project → Season → Episode），
// 只修复可选字段，绝不替必填字段（name/idea/preset）编造数据。
// 归一化必须幂等：Normalize(Normalize(R)) == Normalize(R)。
package migration

import (
	"encoding/json"

	apperrors "github.com/StoryMosaic/StoryStudio/internal/errors"
	"github.com/StoryMosaic/StoryStudio/internal/models"
)

// Normalize 将原始记录修复为当前项目形态
// 输入为 JSON 反序列化得到的 map；nil 视为空记录
func Normalize(data map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(data)+8)
	for k, v := range data {
		out[k] = v
	}

	// 项目级可选字段默认值
	out["storyline_choices"] = asStringList(out["storyline_choices"])
	out["chosen_storyline"] = asString(out["chosen_storyline"])
	if s := asString(out["aspect_ratio"]); s != "" {
		out["aspect_ratio"] = s
	} else {
		out["aspect_ratio"] = models.AspectLandscape
	}
	if b, ok := out["donghua_style"].(bool); ok {
		out["donghua_style"] = b
	} else {
		out["donghua_style"] = true
	}
	out["character_bible"] = normalizeBible(out["character_bible"])

	// 旧版单季形态：顶层直接挂 episodes/outline/episode_count，没有 seasons
	seasons, hasSeasons := out["seasons"].([]interface{})
	if !hasSeasons {
		if hasLegacySingleSeason(out) {
			legacy := map[string]interface{}{
				"season_index": 1,
				"episodes":     out["episodes"],
				"outline":      out["outline"],
			}
			if v, ok := out["episode_count"]; ok {
				legacy["episode_count"] = v
			}
			seasons = []interface{}{legacy}
		} else {
			seasons = []interface{}{}
		}
	}
	delete(out, "episodes")
	delete(out, "outline")
	delete(out, "episode_count")

	normSeasons := make([]interface{}, 0, len(seasons))
	for si, raw := range seasons {
		normSeasons = append(normSeasons, normalizeSeason(raw, si+1))
	}
	out["seasons"] = normSeasons

	return out
}

// BuildProject 对归一化后的记录执行实体模型构造与校验
// 构造失败说明迁移存在缺口或必填字段缺失，以 ValidationError 上抛
func BuildProject(data map[string]interface{}) (*models.Project, error) {
	buf, err := json.Marshal(data)
	if err != nil {
		return nil, apperrors.NewValidationError("project record is not serializable", err)
	}

	var p models.Project
	if err := json.Unmarshal(buf, &p); err != nil {
		return nil, apperrors.NewValidationError("project record does not match the entity model", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// NormalizeAssets 归一化一集的 assets 字段，对任意输入都产出 {scenes: [...]}
//   - mapping：保留 scenes 键（须为序列，否则清空）
//   - 序列：整体包装为 scenes
//   - 其余形态（null/标量）：空 scenes
//
// 加载与导出前都要走同一条路径，两处调用方都假定已归一化
func NormalizeAssets(value interface{}) map[string]interface{} {
	var scenes []interface{}
	switch v := value.(type) {
	case map[string]interface{}:
		if raw, ok := v["scenes"].([]interface{}); ok {
			scenes = raw
		}
	case []interface{}:
		scenes = v
	}

	normScenes := make([]interface{}, 0, len(scenes))
	for _, raw := range scenes {
		if sc, ok := raw.(map[string]interface{}); ok {
			normScenes = append(normScenes, normalizeScene(sc))
		}
	}
	return map[string]interface{}{"scenes": normScenes}
}

func hasLegacySingleSeason(data map[string]interface{}) bool {
	for _, key := range []string{"episodes", "outline", "episode_count"} {
		if _, ok := data[key]; ok {
			return true
		}
	}
	return false
}

func normalizeSeason(raw interface{}, position int) map[string]interface{} {
	s, _ := raw.(map[string]interface{})
	out := make(map[string]interface{}, 4)

	if idx, ok := asInt(s["season_index"]); ok && idx > 0 {
		out["season_index"] = idx
	} else {
		out["season_index"] = position
	}
	if n, ok := asInt(s["episode_count"]); ok && n > 0 {
		out["episode_count"] = n
	} else {
		out["episode_count"] = models.DefaultEpisodeCount
	}

	outline := make([]interface{}, 0)
	if rawOutline, ok := s["outline"].([]interface{}); ok {
		for _, item := range rawOutline {
			if beat, ok := item.(map[string]interface{}); ok {
				outline = append(outline, map[string]interface{}{
					"title": asString(beat["title"]),
					"beat":  asString(beat["beat"]),
				})
			}
		}
	}
	out["outline"] = outline

	episodes := make([]interface{}, 0)
	if rawEpisodes, ok := s["episodes"].([]interface{}); ok {
		for ei, item := range rawEpisodes {
			episodes = append(episodes, normalizeEpisode(item, ei+1))
		}
	}
	out["episodes"] = episodes

	return out
}

func normalizeEpisode(raw interface{}, position int) map[string]interface{} {
	e, _ := raw.(map[string]interface{})
	out := make(map[string]interface{}, 6)

	index := position
	if idx, ok := asInt(e["index"]); ok && idx > 0 {
		index = idx
	}
	out["index"] = index

	title := asString(e["title"])
	if title == "" {
		title = models.DefaultEpisodeTitle(index)
	}
	out["title"] = title
	out["summary"] = asString(e["summary"])
	out["script_text"] = asString(e["script_text"])
	out["tts_text"] = asString(e["tts_text"])
	out["assets"] = NormalizeAssets(e["assets"])

	return out
}

func normalizeScene(sc map[string]interface{}) map[string]interface{} {
	out := map[string]interface{}{
		"scene": asString(sc["scene"]),
	}
	if s := asString(sc["image_prompt"]); s != "" {
		out["image_prompt"] = s
	}
	if s := asString(sc["sfx_prompt"]); s != "" {
		out["sfx_prompt"] = s
	}
	if chars := asStringList(sc["characters"]); len(chars) > 0 {
		out["characters"] = chars
	}
	if s := asString(sc["veo_prompt"]); s != "" {
		out["veo_prompt"] = s
	}
	if s := asString(sc["notes"]); s != "" {
		out["notes"] = s
	}

	// 旧记录里 segments 与 veo31_segments 两个键都出现过，统一为 veo31_segments
	rawSegs, ok := sc["veo31_segments"].([]interface{})
	if !ok {
		rawSegs, _ = sc["segments"].([]interface{})
	}
	segs := make([]interface{}, 0, len(rawSegs))
	for _, raw := range rawSegs {
		if seg, ok := raw.(map[string]interface{}); ok {
			segs = append(segs, normalizeSegment(seg))
		}
	}
	if len(segs) > 0 {
		out["veo31_segments"] = segs
	}

	return out
}

func normalizeSegment(seg map[string]interface{}) map[string]interface{} {
	out := map[string]interface{}{
		"title":      asString(seg["title"]),
		"veo_prompt": asString(seg["veo_prompt"]),
	}
	if n, ok := asInt(seg["duration_sec"]); ok && n > 0 {
		out["duration_sec"] = n
	} else {
		out["duration_sec"] = 8
	}
	if chars := asStringList(seg["characters"]); len(chars) > 0 {
		out["characters"] = chars
	}
	if s := asString(seg["sfx"]); s != "" {
		out["sfx"] = s
	}
	if s := asString(seg["notes"]); s != "" {
		out["notes"] = s
	}
	return out
}

func normalizeBible(value interface{}) map[string]interface{} {
	chars := make([]interface{}, 0)
	if m, ok := value.(map[string]interface{}); ok {
		if raw, ok := m["characters"].([]interface{}); ok {
			for _, item := range raw {
				c, ok := item.(map[string]interface{})
				if !ok {
					continue
				}
				name := asString(c["name"])
				if name == "" {
					continue
				}
				chars = append(chars, map[string]interface{}{
					"name":        name,
					"role":        asString(c["role"]),
					"age":         asString(c["age"]),
					"look":        asString(c["look"]),
					"hair":        asString(c["hair"]),
					"outfit":      asString(c["outfit"]),
					"color_theme": asString(c["color_theme"]),
					"notes":       asString(c["notes"]),
				})
			}
		}
	}
	return map[string]interface{}{"characters": chars}
}

// ---- 类型收敛辅助（JSON 反序列化后数字统一是 float64）----

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}

func asInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i), true
		}
	}
	return 0, false
}

func asStringList(v interface{}) []string {
	raw, ok := v.([]interface{})
	if !ok {
		if done, ok := v.([]string); ok {
			return done
		}
		return []string{}
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
