// internal/api/router.go
package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/StoryMosaic/StoryStudio/internal/config"
	"github.com/StoryMosaic/StoryStudio/internal/di"
	"github.com/StoryMosaic/StoryStudio/internal/services"
)

// SetupRouter 配置HTTP路由
// 所有服务实例只从容器获取，不在这里创建
func SetupRouter(logger zerolog.Logger) (*gin.Engine, error) {
	cfg := config.GetCurrentConfig()
	container := di.GetContainer()

	projectService, ok := container.Get("project").(*services.ProjectService)
	if !ok {
		return nil, fmt.Errorf("项目服务未正确初始化")
	}

	storyService, ok := container.Get("story").(*services.StoryService)
	if !ok {
		return nil, fmt.Errorf("故事服务未正确初始化")
	}

	llmService, ok := container.Get("llm").(*services.LLMService)
	if !ok {
		return nil, fmt.Errorf("LLM服务未正确初始化")
	}

	hub, ok := container.Get("progress").(*ProgressHub)
	if !ok {
		return nil, fmt.Errorf("进度服务未正确初始化")
	}

	handler := NewHandler(projectService, storyService, llmService, hub)

	if !cfg.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(corsMiddleware())
	r.Use(requestIDMiddleware())
	r.Use(requestLogMiddleware(logger))

	// WebSocket 进度推送
	r.GET("/ws/progress", hub.HandleProgressSocket)

	api := r.Group("/api")
	{
		api.GET("/presets", handler.GetPresets)

		// ===============================
		// LLM配置相关路由
		// ===============================
		llmGroup := api.Group("/llm")
		{
			llmGroup.GET("/status", handler.GetLLMStatus)
			llmGroup.GET("/models", handler.GetLLMModels)
			llmGroup.PUT("/config", handler.UpdateLLMConfig)
		}

		// ===============================
		// 生成入口（不依赖已有项目）
		// ===============================
		api.POST("/generate/storylines", handler.GenerateStorylines)
		api.POST("/generate/commit", handler.CommitStoryline)

		// ===============================
		// 项目相关路由
		// ===============================
		projectsGroup := api.Group("/projects")
		{
			projectsGroup.GET("", handler.ListProjects)
			projectsGroup.POST("", handler.CreateProject)
			projectsGroup.GET("/:name", handler.GetProject)
			projectsGroup.PUT("/:name", handler.SaveProject)
			projectsGroup.GET("/:name/export", handler.ExportProject)
			projectsGroup.POST("/:name/seasons", handler.AddSeason)

			seasonGroup := projectsGroup.Group("/:name/seasons/:season")
			{
				seasonGroup.DELETE("", handler.DeleteSeason)
				seasonGroup.POST("/outline", handler.GenerateOutline)
				seasonGroup.POST("/bible", handler.GenerateCharacterBible)

				episodeGroup := seasonGroup.Group("/episodes/:episode")
				{
					episodeGroup.PUT("", handler.UpdateEpisode)
					episodeGroup.POST("/generate", handler.GenerateEpisode)
					episodeGroup.POST("/normalize", handler.NormalizeEpisodeScript)
					episodeGroup.PUT("/scenes", handler.UpdateScenes)
					episodeGroup.POST("/scenes/suggest", handler.SuggestScenes)
					episodeGroup.POST("/scenes/:scene/segments", handler.GenerateSegments)
					episodeGroup.GET("/keyframes", handler.GetKeyFrames)
					episodeGroup.POST("/bible/seed", handler.SeedCharacterBible)
				}
			}
		}
	}

	return r, nil
}
