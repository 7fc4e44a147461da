// internal/services/image_prompts.go
package services

import (
	"fmt"
	"strings"

	"github.com/StoryMosaic/StoryStudio/internal/models"
)

const donghuaImageStyle = "cel-shaded, clean lineart, Chinese donghua stylization, Asian facial features, " +
	"natural black/dark hair unless specified, soft skin rendering, rich fabric texture, " +
	"avoid photorealism, avoid western/European facial structure"

const cinematicImageStyle = "cinematic stylized look, avoid hyper-realistic faces"

const imageNegativePrompt = "low quality, blurry, extra fingers, deformed hands, photorealistic, western/European facial structure"

// StyleizeImagePrompt 把基础描述、画风、人物设定合成为锚定帧的完整提示词
func StyleizeImagePrompt(base, aspectRatio string, donghuaStyle bool, characters []string, bible models.CharacterBible) string {
	base = strings.TrimSpace(base)

	byName := make(map[string]models.Character, len(bible.Characters))
	for _, c := range bible.Characters {
		if c.Name != "" {
			byName[c.Name] = c
		}
	}
	var descriptors []string
	for _, n := range characters {
		c, ok := byName[n]
		if !ok {
			continue
		}
		descriptors = append(descriptors, fmt.Sprintf(
			"%s: %s; hair %s; outfit %s; colors %s", c.Name, c.Look, c.Hair, c.Outfit, c.ColorTheme))
	}

	style := cinematicImageStyle
	if donghuaStyle {
		style = donghuaImageStyle
	}

	ar := aspectRatio
	if ar == "" {
		ar = models.AspectLandscape
	}

	charBlock := strings.TrimSpace(strings.Join(descriptors, " | "))
	if charBlock != "" {
		charBlock = fmt.Sprintf("Characters: %s. ", charBlock)
	}

	return fmt.Sprintf(
		"%s%s. Style: %s. Shot: keyframe still for video sync; aspect ratio %s; 24fps context. Negative: %s.",
		charBlock, base, style, ar, imageNegativePrompt)
}

// KeyFrame 单个锚定帧及其完整图像提示词
type KeyFrame struct {
	SceneIndex  int      `json:"scene_index"`
	Scene       string   `json:"scene"`
	Frame       int      `json:"frame"`
	FrameName   string   `json:"frame_name"`
	Characters  []string `json:"characters"`
	ImagePrompt string   `json:"image_prompt"`
}

// ComposeSceneImagePrompts 从一集的scenes生成锚定帧清单
// 每个与场景相关的Narration/Sound Effects表行拆出一帧，保持人物与画风一致
func ComposeSceneImagePrompts(proj *models.Project, ep *models.Episode) (string, []KeyFrame) {
	var outLines []string
	var frames []KeyFrame

	for i, sc := range ep.Assets.Scenes {
		name := sc.Name
		if name == "" {
			name = fmt.Sprintf("Cảnh %d", i+1)
		}
		baseText := sc.ImagePrompt
		if baseText == "" {
			baseText = sc.SFXPrompt
		}
		if baseText == "" {
			baseText = ep.Summary
		}

		sublines := sceneScriptLines(ep.ScriptText, name)
		if len(sublines) == 0 {
			sublines = []string{baseText}
		}

		for j, ln := range sublines {
			desc := ln
			if strings.Contains(ln, "|") {
				parts := splitTableRow(ln)
				if len(parts) >= 2 {
					desc = parts[1]
				}
			}
			fullPrompt := StyleizeImagePrompt(desc, proj.AspectRatio, proj.DonghuaStyle, sc.Characters, proj.CharacterBible)
			frameName := fmt.Sprintf("%s — Frame %d", name, j+1)

			charLabel := strings.Join(sc.Characters, ", ")
			if charLabel == "" {
				charLabel = "(none)"
			}
			outLines = append(outLines, fmt.Sprintf(
				"### Scene %d: %s\n- Characters: %s\n- Image Prompt:\n%s\n",
				i+1, frameName, charLabel, fullPrompt))

			frames = append(frames, KeyFrame{
				SceneIndex:  i + 1,
				Scene:       name,
				Frame:       j + 1,
				FrameName:   frameName,
				Characters:  sc.Characters,
				ImagePrompt: fullPrompt,
			})
		}
	}
	return strings.TrimSpace(strings.Join(outLines, "\n")), frames
}

// 找出与场景名首词相关、或承载画面信息的表行
func sceneScriptLines(script, sceneName string) []string {
	keywords := []string{"Narration", "Sound Effects"}
	if fields := strings.Fields(sceneName); len(fields) > 0 {
		keywords = append([]string{fields[0]}, keywords...)
	}

	var lines []string
	for _, ln := range strings.Split(script, "\n") {
		if !strings.HasPrefix(strings.TrimSpace(ln), "|") {
			continue
		}
		for _, k := range keywords {
			if strings.Contains(ln, k) {
				lines = append(lines, ln)
				break
			}
		}
	}
	return lines
}
