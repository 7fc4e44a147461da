// internal/models/episode.go
package models

import "fmt"

// Segment 表示场景派生出的一个短视频片段（单个镜头，约8秒）
type Segment struct {
	Title       string   `json:"title"`
	DurationSec int      `json:"duration_sec"`
	Characters  []string `json:"characters,omitempty"`
	VeoPrompt   string   `json:"veo_prompt"`
	SFX         string   `json:"sfx,omitempty"`
	Notes       string   `json:"notes,omitempty"`
}

// Scene 表示一集派生资产列表中的一个场景单元
// 注意：场景不是叙事章节，而是视觉/音频资产的组织单位
type Scene struct {
	Name        string    `json:"scene"`
	ImagePrompt string    `json:"image_prompt,omitempty"`
	SFXPrompt   string    `json:"sfx_prompt,omitempty"`
	Characters  []string  `json:"characters,omitempty"`
	Segments    []Segment `json:"veo31_segments,omitempty"`
	VeoPrompt   string    `json:"veo_prompt,omitempty"` // 最近一次生成segments所用的prompt
	Notes       string    `json:"notes,omitempty"`
}

// AssetBundle 一集的派生资产容器
// 约定：JSON 形态恒为 { "scenes": [...] }，消费方直接按该键索引
type AssetBundle struct {
	Scenes []Scene `json:"scenes"`
}

// Episode 表示一个季内的一集
type Episode struct {
	Index      int         `json:"index"`
	Title      string      `json:"title"`
	Summary    string      `json:"summary"`
	ScriptText string      `json:"script_text"`
	Assets     AssetBundle `json:"assets"`
	TTSText    string      `json:"tts_text"`
}

// DefaultEpisodeTitle 生成按序号编号的占位标题
func DefaultEpisodeTitle(index int) string {
	return fmt.Sprintf("Episode %02d", index)
}

// NewEpisode 创建一集，只需给出序号，其余字段按契约取默认值
func NewEpisode(index int) Episode {
	return Episode{
		Index:  index,
		Title:  DefaultEpisodeTitle(index),
		Assets: AssetBundle{Scenes: []Scene{}},
	}
}
