// internal/services/project_service.go
package services

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	apperrors "github.com/StoryMosaic/StoryStudio/internal/errors"
	"github.com/StoryMosaic/StoryStudio/internal/models"
	"github.com/StoryMosaic/StoryStudio/internal/presets"
	"github.com/StoryMosaic/StoryStudio/internal/storage"
	"github.com/StoryMosaic/StoryStudio/internal/textutil"
)

// ProjectService 项目的增删改查与导出
type ProjectService struct {
	store     *storage.ProjectStore
	exportDir string
	logger    zerolog.Logger
}

// NewProjectService 创建项目服务
func NewProjectService(store *storage.ProjectStore, logger zerolog.Logger) *ProjectService {
	return &ProjectService{
		store:  store,
		logger: logger.With().Str("service", "project").Logger(),
	}
}

// SetExportDir 指定归档的落盘目录，空表示只走HTTP下载不落盘
func (s *ProjectService) SetExportDir(dir string) {
	s.exportDir = dir
}

// Create 新建项目并立即落盘
func (s *ProjectService) Create(name, idea, preset string) (*models.Project, error) {
	if _, ok := presets.Get(preset); !ok {
		return nil, apperrors.NewValidationError("unknown preset: "+preset, nil)
	}
	proj, err := models.NewProject(name, idea, preset)
	if err != nil {
		return nil, err
	}
	if s.store.Exists(name) {
		return nil, apperrors.NewValidationError(fmt.Sprintf("project %q already exists", name), nil)
	}
	if _, err := s.store.Save(proj); err != nil {
		return nil, err
	}
	s.logger.Info().Str("project", name).Msg("created project")
	return proj, nil
}

// Load 按落盘位置载入（相对路径按存储目录解析）
func (s *ProjectService) Load(location string) (*models.Project, error) {
	return s.store.Load(location)
}

// LoadByName 按项目名载入
func (s *ProjectService) LoadByName(name string) (*models.Project, error) {
	return s.store.LoadByName(name)
}

// Save 持久化当前项目状态
func (s *ProjectService) Save(proj *models.Project) error {
	_, err := s.store.Save(proj)
	return err
}

// List 列出存储目录里的全部项目文件名
func (s *ProjectService) List() ([]string, error) {
	return s.store.List()
}

// Export 打包项目为zip归档，返回归档内容与建议的文件名
// 配置了导出目录时同时留一份在磁盘上，写入失败不影响下载
func (s *ProjectService) Export(proj *models.Project) ([]byte, string, error) {
	data, err := s.store.Export(proj)
	if err != nil {
		return nil, "", err
	}
	filename := textutil.SafeName(proj.Name) + "_export.zip"
	if s.exportDir != "" {
		path := filepath.Join(s.exportDir, filename)
		if err := os.WriteFile(path, data, 0644); err != nil {
			s.logger.Warn().Err(err).Str("path", path).Msg("failed to keep export copy on disk")
		}
	}
	s.logger.Info().Str("project", proj.Name).Int("bytes", len(data)).Msg("exported project archive")
	return data, filename, nil
}

// AddSeason 追加新的一季并落盘
func (s *ProjectService) AddSeason(proj *models.Project) (*models.Season, error) {
	season := proj.AddSeason()
	if _, err := s.store.Save(proj); err != nil {
		return nil, err
	}
	s.logger.Info().Str("project", proj.Name).Int("season", season.SeasonIndex).Msg("added season")
	return season, nil
}

// DeleteSeason 删除一季并落盘，剩余季号重排为连续的 1..N
func (s *ProjectService) DeleteSeason(proj *models.Project, idx int) error {
	if len(proj.Seasons) <= 1 {
		return apperrors.NewValidationError("cannot delete the last remaining season", nil)
	}
	if err := proj.DeleteSeason(idx); err != nil {
		return err
	}
	if _, err := s.store.Save(proj); err != nil {
		return err
	}
	s.logger.Info().Str("project", proj.Name).Int("deleted", idx).Msg("deleted season")
	return nil
}

// EpisodeUpdate 单集手工编辑的字段集合，nil表示不改
type EpisodeUpdate struct {
	Title      *string
	Summary    *string
	ScriptText *string
	TTSText    *string
}

// UpdateEpisode 应用手工编辑并落盘
func (s *ProjectService) UpdateEpisode(proj *models.Project, seasonIdx, epIdx int, upd EpisodeUpdate) error {
	season, ep, err := locateEpisode(proj, seasonIdx, epIdx)
	if err != nil {
		return err
	}
	if upd.Title != nil {
		ep.Title = *upd.Title
	}
	if upd.Summary != nil {
		ep.Summary = *upd.Summary
	}
	if upd.ScriptText != nil {
		ep.ScriptText = *upd.ScriptText
	}
	if upd.TTSText != nil {
		ep.TTSText = *upd.TTSText
	}
	season.Episodes[epIdx] = *ep
	_, err = s.store.Save(proj)
	return err
}

// NormalizeEpisodeScript 把一集脚本规整为三列表并落盘
func (s *ProjectService) NormalizeEpisodeScript(proj *models.Project, seasonIdx, epIdx int) error {
	season, ep, err := locateEpisode(proj, seasonIdx, epIdx)
	if err != nil {
		return err
	}
	ep.ScriptText = NormalizeScriptTable(ep.ScriptText)
	season.Episodes[epIdx] = *ep
	_, err = s.store.Save(proj)
	return err
}

// UpdateScenes 整体替换一集的场景列表并落盘
func (s *ProjectService) UpdateScenes(proj *models.Project, seasonIdx, epIdx int, scenes []models.Scene) error {
	season, ep, err := locateEpisode(proj, seasonIdx, epIdx)
	if err != nil {
		return err
	}
	if scenes == nil {
		scenes = []models.Scene{}
	}
	ep.Assets = models.AssetBundle{Scenes: scenes}
	season.Episodes[epIdx] = *ep
	_, err = s.store.Save(proj)
	return err
}

// SeedCharacterBible 把一集脚本与TTS里的说话人补进设定集并落盘
// 已存在的人物原样保留
func (s *ProjectService) SeedCharacterBible(proj *models.Project, seasonIdx, epIdx int) (int, error) {
	_, ep, err := locateEpisode(proj, seasonIdx, epIdx)
	if err != nil {
		return 0, err
	}
	names := textutil.SeedNamesFromTTS(ep.ScriptText + "\n" + ep.TTSText)
	var chars []models.Character
	for _, n := range names {
		chars = append(chars, models.Character{
			Name:  n,
			Look:  "gương mặt Á Đông; tránh nét siêu thực Tây phương",
			Notes: "donghua/cel-shaded",
		})
	}
	added := proj.CharacterBible.Merge(chars)
	if added == 0 {
		return 0, nil
	}
	if _, err := s.store.Save(proj); err != nil {
		return 0, err
	}
	s.logger.Info().Str("project", proj.Name).Int("added", added).Msg("seeded character bible")
	return added, nil
}
