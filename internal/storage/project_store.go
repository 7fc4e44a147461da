// internal/storage/project_store.go
package storage

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	apperrors "github.com/StoryMosaic/StoryStudio/internal/errors"
	"github.com/StoryMosaic/StoryStudio/internal/migration"
	"github.com/StoryMosaic/StoryStudio/internal/models"
	"github.com/StoryMosaic/StoryStudio/internal/textutil"
)

// ProjectStore 提供项目文档的文件存储服务
// 一个项目对应一个 JSON 文档，文件名由项目名净化得出；
// 假定单读单写，不做文件锁协商（多编辑者并发是已知限制，不在此层解决）
type ProjectStore struct {
	BaseDir string

	// 进程内文件级别锁 path -> *sync.RWMutex
	fileLocks sync.Map
}

// NewProjectStore 创建项目存储服务
func NewProjectStore(baseDir string) (*ProjectStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, apperrors.NewIOError("创建存储目录失败", err)
	}
	return &ProjectStore{BaseDir: baseDir}, nil
}

// 获取文件锁
func (ps *ProjectStore) getFileLock(fullPath string) *sync.RWMutex {
	value, _ := ps.fileLocks.LoadOrStore(fullPath, &sync.RWMutex{})
	return value.(*sync.RWMutex)
}

// PathFor 返回项目名对应的持久化文档路径（确定性映射）
func (ps *ProjectStore) PathFor(projectName string) string {
	return filepath.Join(ps.BaseDir, textutil.SafeName(projectName)+".json")
}

// Save 将项目完整序列化为 UTF-8 缩进 JSON 并原子写入
// 非 ASCII 文本按原样保存（不转义）；序列化失败时不触碰文件系统
func (ps *ProjectStore) Save(project *models.Project) (string, error) {
	if project == nil {
		return "", apperrors.NewValidationError("没有项目可保存", nil)
	}
	if err := project.Validate(); err != nil {
		return "", err
	}

	content, err := marshalIndentNoEscape(project)
	if err != nil {
		return "", apperrors.NewProcessingError("序列化项目失败", err)
	}

	fullPath := ps.PathFor(project.Name)

	lock := ps.getFileLock(fullPath)
	lock.Lock()
	defer lock.Unlock()

	if err := os.MkdirAll(ps.BaseDir, 0755); err != nil {
		return "", apperrors.NewIOError("创建存储目录失败", err)
	}

	// 原子性文件写入：先写临时文件再替换，避免留下半截文档
	tempPath := fullPath + ".tmp"
	if err := os.WriteFile(tempPath, content, 0644); err != nil {
		return "", apperrors.NewIOError("保存临时文件失败", err)
	}
	if err := os.Rename(tempPath, fullPath); err != nil {
		os.Remove(tempPath)
		return "", apperrors.NewIOError("保存项目文件失败", err)
	}

	return fullPath, nil
}

// Load 读取并迁移一个项目文档
// location 可以是绝对路径，也可以是相对存储根目录的文件名
func (ps *ProjectStore) Load(location string) (*models.Project, error) {
	fullPath := location
	if !filepath.IsAbs(fullPath) {
		fullPath = filepath.Join(ps.BaseDir, location)
	}

	lock := ps.getFileLock(fullPath)
	lock.RLock()
	defer lock.RUnlock()

	content, err := os.ReadFile(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.NewNotFoundError("项目文档不存在: "+location, err)
		}
		return nil, apperrors.NewIOError("读取项目文件失败", err)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(content, &raw); err != nil {
		// 文档存在但不是合法JSON：上抛，绝不悄悄替换为空项目
		return nil, apperrors.NewCorruptDataError("项目文档不是合法JSON: "+location, err)
	}

	return migration.BuildProject(migration.Normalize(raw))
}

// LoadByName 按项目名读取（内部走同一条 Load 路径）
func (ps *ProjectStore) LoadByName(projectName string) (*models.Project, error) {
	return ps.Load(textutil.SafeName(projectName) + ".json")
}

// Exists 检查项目文档是否已存在
func (ps *ProjectStore) Exists(projectName string) bool {
	_, err := os.Stat(ps.PathFor(projectName))
	return err == nil
}

// List 列出存储根目录下的全部项目文档名（按名称排序）
func (ps *ProjectStore) List() ([]string, error) {
	entries, err := os.ReadDir(ps.BaseDir)
	if err != nil {
		return nil, apperrors.NewIOError("读取存储目录失败", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

// marshalIndentNoEscape 缩进序列化且不转义HTML/非Latin字符
// 越南语等非 ASCII 文本必须按字面存储，保持文档可读
func marshalIndentNoEscape(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
