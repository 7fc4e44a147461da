// internal/app/app.go
package app

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/StoryMosaic/StoryStudio/internal/api"
	"github.com/StoryMosaic/StoryStudio/internal/config"
	"github.com/StoryMosaic/StoryStudio/internal/di"
	_ "github.com/StoryMosaic/StoryStudio/internal/llm/providers/google"
	"github.com/StoryMosaic/StoryStudio/internal/services"
	"github.com/StoryMosaic/StoryStudio/internal/storage"
)

// InitServices 按依赖顺序初始化所有服务并注册进容器
func InitServices(logger zerolog.Logger) error {
	cfg := config.GetCurrentConfig()
	container := di.GetContainer()

	// 1. 项目存储
	store, err := storage.NewProjectStore(cfg.ProjectsDir)
	if err != nil {
		return fmt.Errorf("初始化项目存储失败: %w", err)
	}
	container.Register("store", store)

	// 2. LLM服务（密钥未配置时保持未就绪，不阻止启动）
	llmService, err := services.NewLLMService(cfg.LLMProvider, cfg.LLMConfig)
	if err != nil {
		return fmt.Errorf("初始化LLM服务失败: %w", err)
	}
	container.Register("llm", llmService)

	// 3. 进度推送
	hub := api.NewProgressHub(logger)
	container.Register("progress", hub)

	// 4. 业务服务
	projectService := services.NewProjectService(store, logger)
	projectService.SetExportDir(cfg.ExportsDir)
	container.Register("project", projectService)

	storyService := services.NewStoryService(llmService, store, logger)
	storyService.SetNotifier(hub)
	container.Register("story", storyService)

	return nil
}
