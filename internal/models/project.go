// internal/models/project.go
package models

import (
	"fmt"

	apperrors "github.com/StoryMosaic/StoryStudio/internal/errors"
)

// DefaultEpisodeCount 每季默认规划的集数
const DefaultEpisodeCount = 10

// 画幅比例枚举
const (
	AspectLandscape = "16:9"
	AspectPortrait  = "9:16"
)

// OutlineBeat 季度大纲中的一条：第 i 条对应 episodes[i]
type OutlineBeat struct {
	Title string `json:"title"`
	Beat  string `json:"beat"`
}

// Season 将若干集组织为一个发布单元
type Season struct {
	SeasonIndex  int           `json:"season_index"`
	EpisodeCount int           `json:"episode_count"` // 规划参数，大纲生成前不必等于 len(Episodes)
	Outline      []OutlineBeat `json:"outline"`
	Episodes     []Episode     `json:"episodes"`
}

// NewSeason 创建一季，只需给出季号
func NewSeason(index int) Season {
	return Season{
		SeasonIndex:  index,
		EpisodeCount: DefaultEpisodeCount,
		Outline:      []OutlineBeat{},
		Episodes:     []Episode{},
	}
}

// Project 根聚合，一个实例对应一部作品
type Project struct {
	Name             string         `json:"name"`
	Idea             string         `json:"idea"`
	Preset           string         `json:"preset"`
	StorylineChoices []string       `json:"storyline_choices"`
	ChosenStoryline  string         `json:"chosen_storyline"`
	Seasons          []Season       `json:"seasons"`
	AspectRatio      string         `json:"aspect_ratio"`
	DonghuaStyle     bool           `json:"donghua_style"`
	CharacterBible   CharacterBible `json:"character_bible"`
}

// NewProject 创建项目，name/idea/preset 为必填项，无默认值
func NewProject(name, idea, preset string) (*Project, error) {
	p := &Project{
		Name:             name,
		Idea:             idea,
		Preset:           preset,
		StorylineChoices: []string{},
		Seasons:          []Season{},
		AspectRatio:      AspectLandscape,
		DonghuaStyle:     true,
		CharacterBible:   CharacterBible{Characters: []Character{}},
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate 校验必填字段与结构约束
// 只做校验，不做修复；修复是迁移层的职责
func (p *Project) Validate() error {
	if p.Name == "" {
		return apperrors.NewValidationError("project name is required", nil)
	}
	if p.Idea == "" {
		return apperrors.NewValidationError("project idea is required", nil)
	}
	if p.Preset == "" {
		return apperrors.NewValidationError("project preset is required", nil)
	}
	for i, s := range p.Seasons {
		if s.SeasonIndex <= 0 {
			return apperrors.NewValidationError(
				fmt.Sprintf("season %d has non-positive season_index %d", i+1, s.SeasonIndex), nil)
		}
		for j, ep := range s.Episodes {
			if ep.Index <= 0 {
				return apperrors.NewValidationError(
					fmt.Sprintf("season %d episode %d has non-positive index %d", s.SeasonIndex, j+1, ep.Index), nil)
			}
			if ep.Assets.Scenes == nil {
				return apperrors.NewValidationError(
					fmt.Sprintf("season %d episode %d assets.scenes is nil", s.SeasonIndex, ep.Index), nil)
			}
		}
	}
	return nil
}

// AddSeason 追加新的一季并返回它（季号顺延）
func (p *Project) AddSeason() *Season {
	s := NewSeason(len(p.Seasons) + 1)
	p.Seasons = append(p.Seasons, s)
	return &p.Seasons[len(p.Seasons)-1]
}

// DeleteSeason 删除第 idx 季（0-based），其余季号重排为连续的 1..N
func (p *Project) DeleteSeason(idx int) error {
	if idx < 0 || idx >= len(p.Seasons) {
		return apperrors.NewValidationError(fmt.Sprintf("season index out of range: %d", idx), nil)
	}
	p.Seasons = append(p.Seasons[:idx], p.Seasons[idx+1:]...)
	for i := range p.Seasons {
		p.Seasons[i].SeasonIndex = i + 1
	}
	return nil
}
