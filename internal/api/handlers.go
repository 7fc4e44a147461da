// internal/api/handlers.go
package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/StoryMosaic/StoryStudio/internal/config"
	apperrors "github.com/StoryMosaic/StoryStudio/internal/errors"
	"github.com/StoryMosaic/StoryStudio/internal/llm"
	"github.com/StoryMosaic/StoryStudio/internal/models"
	"github.com/StoryMosaic/StoryStudio/internal/presets"
	"github.com/StoryMosaic/StoryStudio/internal/services"
)

// Handler 聚合所有HTTP处理器依赖
type Handler struct {
	projects *services.ProjectService
	story    *services.StoryService
	llm      *services.LLMService
	hub      *ProgressHub
}

// NewHandler 创建API处理器
func NewHandler(projects *services.ProjectService, story *services.StoryService, llmSvc *services.LLMService, hub *ProgressHub) *Handler {
	return &Handler{
		projects: projects,
		story:    story,
		llm:      llmSvc,
		hub:      hub,
	}
}

// ===== 预设 =====

// GetPresets 返回可用预设名列表
func (h *Handler) GetPresets(c *gin.Context) {
	respondSuccess(c, presets.Names())
}

// ===== 项目 =====

// ListProjects 列出存储目录里的全部项目
func (h *Handler) ListProjects(c *gin.Context) {
	names, err := h.projects.List()
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, names)
}

// CreateProject 新建项目
func (h *Handler) CreateProject(c *gin.Context) {
	var req struct {
		Name   string `json:"name" binding:"required"`
		Idea   string `json:"idea" binding:"required"`
		Preset string `json:"preset" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.NewValidationError("invalid request body", err))
		return
	}

	proj, err := h.projects.Create(req.Name, req.Idea, req.Preset)
	if err != nil {
		respondError(c, err)
		return
	}
	respondCreated(c, proj, "Đã tạo project.")
}

// GetProject 按名称载入项目
func (h *Handler) GetProject(c *gin.Context) {
	proj, err := h.projects.LoadByName(c.Param("name"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, proj)
}

// SaveProject 全量覆盖保存项目
func (h *Handler) SaveProject(c *gin.Context) {
	var proj models.Project
	if err := c.ShouldBindJSON(&proj); err != nil {
		respondError(c, apperrors.NewValidationError("invalid project body", err))
		return
	}
	if proj.Name != c.Param("name") {
		respondError(c, apperrors.NewValidationError("project name mismatch", nil))
		return
	}
	if err := h.projects.Save(&proj); err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, proj, "Đã lưu.")
}

// ExportProject 导出zip归档并以附件返回
func (h *Handler) ExportProject(c *gin.Context) {
	proj, err := h.projects.LoadByName(c.Param("name"))
	if err != nil {
		respondError(c, err)
		return
	}
	data, filename, err := h.projects.Export(proj)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/zip", data)
}

// ===== 季 =====

// AddSeason 追加新的一季
func (h *Handler) AddSeason(c *gin.Context) {
	proj, err := h.projects.LoadByName(c.Param("name"))
	if err != nil {
		respondError(c, err)
		return
	}
	season, err := h.projects.AddSeason(proj)
	if err != nil {
		respondError(c, err)
		return
	}
	respondCreated(c, season, fmt.Sprintf("Đã tạo Mùa %d.", season.SeasonIndex))
}

// DeleteSeason 删除一季，季号重排
func (h *Handler) DeleteSeason(c *gin.Context) {
	proj, seasonIdx, ok := h.loadProjectSeason(c)
	if !ok {
		return
	}
	if err := h.projects.DeleteSeason(proj, seasonIdx); err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, proj, "Đã xoá Mùa.")
}

// ===== 集 =====

// UpdateEpisode 应用单集手工编辑
func (h *Handler) UpdateEpisode(c *gin.Context) {
	proj, seasonIdx, epIdx, ok := h.loadProjectEpisode(c)
	if !ok {
		return
	}

	var req struct {
		Title      *string `json:"title"`
		Summary    *string `json:"summary"`
		ScriptText *string `json:"script_text"`
		TTSText    *string `json:"tts_text"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.NewValidationError("invalid request body", err))
		return
	}

	err := h.projects.UpdateEpisode(proj, seasonIdx, epIdx, services.EpisodeUpdate{
		Title:      req.Title,
		Summary:    req.Summary,
		ScriptText: req.ScriptText,
		TTSText:    req.TTSText,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, proj.Seasons[seasonIdx].Episodes[epIdx], "Đã lưu.")
}

// NormalizeEpisodeScript 把脚本规整为三列表
func (h *Handler) NormalizeEpisodeScript(c *gin.Context) {
	proj, seasonIdx, epIdx, ok := h.loadProjectEpisode(c)
	if !ok {
		return
	}
	if err := h.projects.NormalizeEpisodeScript(proj, seasonIdx, epIdx); err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, proj.Seasons[seasonIdx].Episodes[epIdx], "Đã chuẩn hoá bảng 3 cột.")
}

// UpdateScenes 整体替换场景列表
func (h *Handler) UpdateScenes(c *gin.Context) {
	proj, seasonIdx, epIdx, ok := h.loadProjectEpisode(c)
	if !ok {
		return
	}
	var req struct {
		Scenes []models.Scene `json:"scenes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.NewValidationError("invalid request body", err))
		return
	}
	if err := h.projects.UpdateScenes(proj, seasonIdx, epIdx, req.Scenes); err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, proj.Seasons[seasonIdx].Episodes[epIdx].Assets, "Đã lưu Scenes.")
}

// SuggestScenes 从Narration行提议场景；apply=true时合并进现有列表
func (h *Handler) SuggestScenes(c *gin.Context) {
	proj, seasonIdx, epIdx, ok := h.loadProjectEpisode(c)
	if !ok {
		return
	}
	ep := proj.Seasons[seasonIdx].Episodes[epIdx]
	suggested := services.SuggestScenesFromScript(&ep)

	if c.Query("apply") == "true" && len(suggested) > 0 {
		merged := services.MergeSuggestedScenes(ep.Assets.Scenes, suggested)
		if err := h.projects.UpdateScenes(proj, seasonIdx, epIdx, merged); err != nil {
			respondError(c, err)
			return
		}
		respondSuccess(c, merged, fmt.Sprintf("Đã thêm %d cảnh vào Scenes.", len(suggested)))
		return
	}
	respondSuccess(c, suggested)
}

// GetKeyFrames 返回一集的锚定帧图像提示词清单
func (h *Handler) GetKeyFrames(c *gin.Context) {
	proj, seasonIdx, epIdx, ok := h.loadProjectEpisode(c)
	if !ok {
		return
	}
	ep := proj.Seasons[seasonIdx].Episodes[epIdx]
	text, frames := services.ComposeSceneImagePrompts(proj, &ep)
	respondSuccess(c, gin.H{"text": text, "frames": frames})
}

// SeedCharacterBible 从脚本与TTS补充人物设定
func (h *Handler) SeedCharacterBible(c *gin.Context) {
	proj, seasonIdx, epIdx, ok := h.loadProjectEpisode(c)
	if !ok {
		return
	}
	added, err := h.projects.SeedCharacterBible(proj, seasonIdx, epIdx)
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, proj.CharacterBible, fmt.Sprintf("Đã seed %d nhân vật.", added))
}

// ===== 生成 =====

// GenerateStorylines 从创意生成候选故事线
func (h *Handler) GenerateStorylines(c *gin.Context) {
	var req struct {
		Idea   string `json:"idea" binding:"required"`
		Preset string `json:"preset" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.NewValidationError("invalid request body", err))
		return
	}
	choices, err := h.story.GenerateStorylines(c.Request.Context(), req.Idea, req.Preset)
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, choices)
}

// CommitStoryline 选定方案，建立项目骨架
func (h *Handler) CommitStoryline(c *gin.Context) {
	var req struct {
		Name    string                     `json:"name" binding:"required"`
		Idea    string                     `json:"idea" binding:"required"`
		Preset  string                     `json:"preset" binding:"required"`
		Choices []services.StorylineChoice `json:"choices" binding:"required"`
		Pick    int                        `json:"pick"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.NewValidationError("invalid request body", err))
		return
	}

	var prev *models.Project
	if p, err := h.projects.LoadByName(req.Name); err == nil {
		prev = p
	}

	proj, err := h.story.CommitStoryline(prev, req.Name, req.Idea, req.Preset, req.Choices, req.Pick)
	if err != nil {
		respondError(c, err)
		return
	}
	respondCreated(c, proj, "Đã chọn cốt truyện.")
}

// GenerateOutline 为指定季生成大纲
func (h *Handler) GenerateOutline(c *gin.Context) {
	proj, seasonIdx, ok := h.loadProjectSeason(c)
	if !ok {
		return
	}
	var req struct {
		EpisodeCount int `json:"episode_count"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.NewValidationError("invalid request body", err))
		return
	}
	if req.EpisodeCount == 0 {
		req.EpisodeCount = proj.Seasons[seasonIdx].EpisodeCount
	}
	if err := h.story.GenerateOutline(c.Request.Context(), proj, seasonIdx, req.EpisodeCount); err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, proj.Seasons[seasonIdx], "Đã tạo dàn bài.")
}

// GenerateEpisode 生成一集的FULL/ASSETS/TTS
func (h *Handler) GenerateEpisode(c *gin.Context) {
	proj, seasonIdx, epIdx, ok := h.loadProjectEpisode(c)
	if !ok {
		return
	}
	if err := h.story.GenerateEpisode(c.Request.Context(), proj, seasonIdx, epIdx); err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, proj.Seasons[seasonIdx].Episodes[epIdx], "Đã sinh kịch bản & lưu vào project.")
}

// GenerateCharacterBible 生成整套人物设定
func (h *Handler) GenerateCharacterBible(c *gin.Context) {
	proj, seasonIdx, ok := h.loadProjectSeason(c)
	if !ok {
		return
	}
	var req struct {
		MaxChars int `json:"max_chars"`
	}
	c.ShouldBindJSON(&req)

	if err := h.story.GenerateCharacterBible(c.Request.Context(), proj, seasonIdx, req.MaxChars); err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, proj.CharacterBible, "Đã tạo Character Bible.")
}

// GenerateSegments 为场景生成Veo分镜
func (h *Handler) GenerateSegments(c *gin.Context) {
	proj, seasonIdx, epIdx, ok := h.loadProjectEpisode(c)
	if !ok {
		return
	}
	sceneIdx, err := strconv.Atoi(c.Param("scene"))
	if err != nil {
		respondError(c, apperrors.NewValidationError("invalid scene index", err))
		return
	}

	var req struct {
		MaxSegments int `json:"max_segments"`
	}
	c.ShouldBindJSON(&req)
	if req.MaxSegments <= 0 {
		req.MaxSegments = 3
	}

	if err := h.story.GenerateSegments(c.Request.Context(), proj, seasonIdx, epIdx, sceneIdx, req.MaxSegments); err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, proj.Seasons[seasonIdx].Episodes[epIdx].Assets.Scenes[sceneIdx], "Đã sinh Veo 3.1.")
}

// ===== LLM配置 =====

// GetLLMStatus 返回生成服务状态
func (h *Handler) GetLLMStatus(c *gin.Context) {
	respondSuccess(c, gin.H{
		"ready":    h.llm.IsReady(),
		"state":    h.llm.GetReadyState(),
		"provider": h.llm.GetProviderName(),
	})
}

// GetLLMModels 返回各提供者支持的模型
func (h *Handler) GetLLMModels(c *gin.Context) {
	out := make(map[string][]string)
	for _, name := range llm.ListProviders() {
		out[name] = llm.GetSupportedModelsForProvider(name)
	}
	respondSuccess(c, out)
}

// UpdateLLMConfig 更新提供者配置并持久化
func (h *Handler) UpdateLLMConfig(c *gin.Context) {
	var req struct {
		Provider string            `json:"provider" binding:"required"`
		Config   map[string]string `json:"config" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.NewValidationError("invalid request body", err))
		return
	}
	if err := h.llm.UpdateProvider(req.Provider, req.Config); err != nil {
		respondError(c, apperrors.NewValidationError("failed to apply llm config", err))
		return
	}
	if err := config.UpdateLLMConfig(req.Provider, req.Config); err != nil {
		respondError(c, apperrors.NewIOError("failed to persist llm config", err))
		return
	}
	respondSuccess(c, gin.H{"provider": req.Provider}, "Đã cập nhật cấu hình LLM.")
}

// ===== helpers =====

func (h *Handler) loadProjectSeason(c *gin.Context) (*models.Project, int, bool) {
	proj, err := h.projects.LoadByName(c.Param("name"))
	if err != nil {
		respondError(c, err)
		return nil, 0, false
	}
	seasonIdx, err := strconv.Atoi(c.Param("season"))
	if err != nil {
		respondError(c, apperrors.NewValidationError("invalid season index", err))
		return nil, 0, false
	}
	return proj, seasonIdx, true
}

func (h *Handler) loadProjectEpisode(c *gin.Context) (*models.Project, int, int, bool) {
	proj, seasonIdx, ok := h.loadProjectSeason(c)
	if !ok {
		return nil, 0, 0, false
	}
	epIdx, err := strconv.Atoi(c.Param("episode"))
	if err != nil {
		respondError(c, apperrors.NewValidationError("invalid episode index", err))
		return nil, 0, 0, false
	}
	return proj, seasonIdx, epIdx, true
}
