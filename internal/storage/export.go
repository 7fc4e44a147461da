// internal/storage/export.go
package storage

import (
	"archive/zip"
	"bytes"
	"fmt"
	"strings"

	apperrors "github.com/StoryMosaic/StoryStudio/internal/errors"
	"github.com/StoryMosaic/StoryStudio/internal/models"
	"github.com/StoryMosaic/StoryStudio/internal/textutil"
)

// Export 将项目打包为只读的 zip 归档，返回归档字节
// 结构：
//
//	project.json                                        完整项目文档
//	seasons/season_NN/outline.json                      该季大纲
//	seasons/season_NN/episode_NN_<safe-title>/script.md 剧本
//	.../assets.json                                     归一化后的场景资产
//	.../tts.txt                                         TTS 文本
//	.../veo31_segments.txt                              段落转写（仅当该集存在segment时）
func (ps *ProjectStore) Export(project *models.Project) ([]byte, error) {
	if project == nil {
		return nil, apperrors.NewValidationError("没有项目可导出", nil)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	projectJSON, err := marshalIndentNoEscape(project)
	if err != nil {
		return nil, apperrors.NewProcessingError("序列化项目失败", err)
	}
	if err := writeZipEntry(zw, "project.json", projectJSON); err != nil {
		return nil, err
	}

	for _, season := range project.Seasons {
		seasonPrefix := fmt.Sprintf("seasons/season_%02d", season.SeasonIndex)

		outline := season.Outline
		if outline == nil {
			outline = []models.OutlineBeat{}
		}
		outlineJSON, err := marshalIndentNoEscape(outline)
		if err != nil {
			return nil, apperrors.NewProcessingError("序列化季度大纲失败", err)
		}
		if err := writeZipEntry(zw, seasonPrefix+"/outline.json", outlineJSON); err != nil {
			return nil, err
		}

		for _, ep := range season.Episodes {
			base := fmt.Sprintf("%s/episode_%02d_%s", seasonPrefix, ep.Index, textutil.SafeName(ep.Title))

			if err := writeZipEntry(zw, base+"/script.md", []byte(ep.ScriptText)); err != nil {
				return nil, err
			}

			assets := ep.Assets
			if assets.Scenes == nil {
				assets.Scenes = []models.Scene{}
			}
			assetsJSON, err := marshalIndentNoEscape(assets)
			if err != nil {
				return nil, apperrors.NewProcessingError("序列化场景资产失败", err)
			}
			if err := writeZipEntry(zw, base+"/assets.json", assetsJSON); err != nil {
				return nil, err
			}

			if err := writeZipEntry(zw, base+"/tts.txt", []byte(ep.TTSText)); err != nil {
				return nil, err
			}

			// 派生转写是尽力而为的次级产物：单集失败不影响整个归档
			if transcript, ok := buildSegmentTranscript(ep); ok {
				if err := writeZipEntry(zw, base+"/veo31_segments.txt", []byte(transcript)); err != nil {
					return nil, err
				}
			}
		}
	}

	if err := zw.Close(); err != nil {
		return nil, apperrors.NewIOError("关闭归档失败", err)
	}
	return buf.Bytes(), nil
}

// buildSegmentTranscript 汇总一集全部场景的 segment 为人类可读的转写
// 该集没有任何 segment 时返回 false，不产出条目
func buildSegmentTranscript(ep models.Episode) (string, bool) {
	var lines []string
	for j, sc := range ep.Assets.Scenes {
		if len(sc.Segments) == 0 {
			continue
		}
		name := sc.Name
		if name == "" {
			name = fmt.Sprintf("Cảnh %d", j+1)
		}
		lines = append(lines, fmt.Sprintf("## %s", name))
		for si, seg := range sc.Segments {
			dur := seg.DurationSec
			if dur <= 0 {
				dur = 8
			}
			lines = append(lines, fmt.Sprintf(
				"\n# Clip %d — %ds: %s\n[Characters] %s\n%s\n[SFX] %s\n",
				si+1, dur, seg.Title,
				strings.Join(seg.Characters, ", "),
				seg.VeoPrompt, seg.SFX,
			))
		}
	}
	if len(lines) == 0 {
		return "", false
	}
	return strings.Join(lines, "\n"), true
}

func writeZipEntry(zw *zip.Writer, name string, content []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return apperrors.NewIOError("创建归档条目失败: "+name, err)
	}
	if _, err := w.Write(content); err != nil {
		return apperrors.NewIOError("写入归档条目失败: "+name, err)
	}
	return nil
}
