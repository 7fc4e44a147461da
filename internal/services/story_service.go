// internal/services/story_service.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	apperrors "github.com/StoryMosaic/StoryStudio/internal/errors"
	"github.com/StoryMosaic/StoryStudio/internal/models"
	"github.com/StoryMosaic/StoryStudio/internal/presets"
	"github.com/StoryMosaic/StoryStudio/internal/storage"
	"github.com/StoryMosaic/StoryStudio/internal/textutil"
)

// ProgressNotifier 生成过程的进度回调，由WebSocket层实现
type ProgressNotifier interface {
	Publish(stage, message string)
}

type noopNotifier struct{}

func (noopNotifier) Publish(string, string) {}

// StorylineChoice 一个候选故事线方案
type StorylineChoice struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
}

// StoryService 驱动故事线、大纲、单集、人物设定与分镜的生成流程
// 所有生成失败都不触碰已有项目状态
type StoryService struct {
	llm      *LLMService
	store    *storage.ProjectStore
	notifier ProgressNotifier
	logger   zerolog.Logger
}

// NewStoryService 创建故事生成服务
func NewStoryService(llm *LLMService, store *storage.ProjectStore, logger zerolog.Logger) *StoryService {
	return &StoryService{
		llm:      llm,
		store:    store,
		notifier: noopNotifier{},
		logger:   logger.With().Str("service", "story").Logger(),
	}
}

// SetNotifier 注入进度通知器
func (s *StoryService) SetNotifier(n ProgressNotifier) {
	if n != nil {
		s.notifier = n
	}
}

// ===== 故事线 =====

// GenerateStorylines 从创意生成5个候选故事线
// 模型返回干净JSON时直接取用；返回散文时按方案块切分兜底
func (s *StoryService) GenerateStorylines(ctx context.Context, idea, presetName string) ([]StorylineChoice, error) {
	if strings.TrimSpace(idea) == "" {
		return nil, apperrors.NewValidationError("idea is required", nil)
	}
	if _, err := s.presetOrError(presetName); err != nil {
		return nil, err
	}

	s.notifier.Publish("storyline", "Đang tạo gợi ý cốt truyện…")
	prompt := BuildStorylinePrompt(idea, presetName)
	value, err := s.llm.GenerateStructured(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var choices []StorylineChoice
	switch v := value.(type) {
	case []interface{}:
		choices = storylinesFromList(v)
	case RawResponse:
		choices = ParseStorylineBlocks(v.Raw)
	}

	if len(choices) == 0 {
		// 结构化与块切分都失败，直接要纯文本再切一次
		text, terr := s.llm.GenerateText(ctx, prompt)
		if terr != nil {
			return nil, terr
		}
		choices = ParseStorylineBlocks(text)
	}
	if len(choices) == 0 {
		return nil, apperrors.NewUpstreamError("không tách được phương án cốt truyện", nil)
	}
	if len(choices) > 5 {
		choices = choices[:5]
	}
	s.logger.Info().Int("choices", len(choices)).Msg("generated storyline choices")
	return choices, nil
}

func storylinesFromList(items []interface{}) []StorylineChoice {
	var out []StorylineChoice
	for _, it := range items {
		if len(out) >= 5 {
			break
		}
		m, ok := it.(map[string]interface{})
		if !ok {
			continue
		}
		title := strings.TrimSpace(stringField(m, "title"))
		summary := strings.TrimSpace(stringField(m, "summary", "content", "synopsis"))
		if summary == "" {
			continue
		}
		if title == "" {
			title = truncateRunes(strings.SplitN(summary, ".", 2)[0], 60)
		}
		out = append(out, StorylineChoice{Title: title, Summary: summary})
	}
	return out
}

func stringField(m map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

var storylineHeaderPattern = regexp.MustCompile(`(?i)^\s*(?:Phương\s*án|PA|Option|Method|Plan)?\s*(\d{1,2})\s*[:.)]?\s*(.*)$`)

var blankBlockSplit = regexp.MustCompile(`\n\s*\n+`)

// ParseStorylineBlocks 从散文回复里切出编号方案；没有编号时按空行分块
func ParseStorylineBlocks(rawText string) []StorylineChoice {
	if strings.TrimSpace(rawText) == "" {
		return nil
	}
	lines := strings.Split(rawText, "\n")

	type headerHit struct {
		line  int
		title string
	}
	var hits []headerHit
	for i, ln := range lines {
		m := storylineHeaderPattern.FindStringSubmatch(ln)
		if m == nil {
			continue
		}
		var num int
		fmt.Sscanf(m[1], "%d", &num)
		if num < 1 || num > 10 {
			continue
		}
		title := strings.TrimSpace(m[2])
		if title == "" {
			title = fmt.Sprintf("Phương án %d", num)
		}
		hits = append(hits, headerHit{line: i, title: title})
	}

	if len(hits) == 0 {
		var out []StorylineChoice
		for i, blk := range blankBlockSplit.Split(rawText, -1) {
			blk = strings.TrimSpace(blk)
			if blk == "" || len(out) >= 5 {
				continue
			}
			firstLine := strings.TrimSpace(strings.SplitN(blk, "\n", 2)[0])
			out = append(out, StorylineChoice{
				Title:   fmt.Sprintf("Phương án %d — %s", i+1, truncateRunes(firstLine, 60)),
				Summary: blk,
			})
		}
		return out
	}

	hits = append(hits, headerHit{line: len(lines)})
	var blocks []StorylineChoice
	for j := 0; j < len(hits)-1; j++ {
		body := strings.TrimSpace(strings.Join(lines[hits[j].line+1:hits[j+1].line], "\n"))
		if body == "" {
			continue
		}
		blocks = append(blocks, StorylineChoice{Title: hits[j].title, Summary: body})
	}
	if len(blocks) > 5 {
		blocks = blocks[:5]
	}
	return blocks
}

// CommitStoryline 选定一个方案并建立(或重建)项目骨架：空的第1季
// 保留旧项目的画幅、画风与人物设定
func (s *StoryService) CommitStoryline(prev *models.Project, name, idea, presetName string, choices []StorylineChoice, pick int) (*models.Project, error) {
	if pick < 0 || pick >= len(choices) {
		return nil, apperrors.NewValidationError(fmt.Sprintf("storyline pick %d out of range", pick), nil)
	}
	if _, err := s.presetOrError(presetName); err != nil {
		return nil, err
	}

	proj, err := models.NewProject(name, idea, presetName)
	if err != nil {
		return nil, err
	}

	choiceTexts := make([]string, 0, len(choices))
	for _, c := range choices {
		choiceTexts = append(choiceTexts, c.Title+"\n\n"+c.Summary)
	}
	proj.StorylineChoices = choiceTexts
	proj.ChosenStoryline = choices[pick].Title + "\n\n" + choices[pick].Summary
	proj.Seasons = []models.Season{models.NewSeason(1)}

	if prev != nil {
		proj.AspectRatio = prev.AspectRatio
		proj.DonghuaStyle = prev.DonghuaStyle
		proj.CharacterBible = prev.CharacterBible
	}

	if _, err := s.store.Save(proj); err != nil {
		return nil, err
	}
	s.logger.Info().Str("project", proj.Name).Msg("committed storyline")
	return proj, nil
}

// ===== 大纲 =====

// SeasonRecap 汇总当前季之前各季的前三个篇章标题
func SeasonRecap(proj *models.Project) string {
	if proj == nil || len(proj.Seasons) == 0 {
		return ""
	}
	var parts []string
	for _, season := range proj.Seasons[:len(proj.Seasons)-1] {
		var arcs []string
		for i, beat := range season.Outline {
			if i >= 3 {
				break
			}
			arcs = append(arcs, beat.Title)
		}
		parts = append(parts, fmt.Sprintf("Mùa %d: %s", season.SeasonIndex, strings.Join(arcs, "; ")))
	}
	return strings.Join(parts, "\n")
}

// GenerateOutline 为指定季生成整季大纲，并按大纲重建空白集列表
func (s *StoryService) GenerateOutline(ctx context.Context, proj *models.Project, seasonIdx, episodeCount int) error {
	if proj.ChosenStoryline == "" {
		return apperrors.NewValidationError("project has no chosen storyline", nil)
	}
	if seasonIdx < 0 || seasonIdx >= len(proj.Seasons) {
		return apperrors.NewNotFoundError(fmt.Sprintf("season index %d", seasonIdx), nil)
	}
	if episodeCount < 1 {
		return apperrors.NewValidationError("episode count must be positive", nil)
	}

	recap := ""
	if seasonIdx > 0 {
		recap = SeasonRecap(proj)
	}

	s.notifier.Publish("outline", fmt.Sprintf("Đang tạo dàn bài %d tập…", episodeCount))
	prompt := BuildOutlinePrompt(proj.ChosenStoryline, episodeCount, recap, proj.Preset)
	value, err := s.llm.GenerateStructured(ctx, prompt)
	if err != nil {
		return err
	}

	var outline []models.OutlineBeat
	switch v := value.(type) {
	case []interface{}:
		for i, it := range v {
			m, ok := it.(map[string]interface{})
			if !ok {
				continue
			}
			outline = append(outline, models.OutlineBeat{
				Title: textutil.CleanEpisodeTitle(stringField(m, "title"), i+1),
				Beat:  stringField(m, "beat"),
			})
		}
	case RawResponse:
		for i, ln := range strings.Split(strings.TrimSpace(v.Raw), "\n") {
			ln = strings.TrimSpace(ln)
			if ln == "" {
				continue
			}
			outline = append(outline, models.OutlineBeat{
				Title: fmt.Sprintf("Tập %d", i+1),
				Beat:  ln,
			})
		}
	}
	if len(outline) == 0 {
		return apperrors.NewUpstreamError("không tạo được dàn bài", nil)
	}

	season := &proj.Seasons[seasonIdx]
	season.EpisodeCount = len(outline)
	season.Outline = outline
	season.Episodes = make([]models.Episode, 0, len(outline))
	for i, beat := range outline {
		ep := models.NewEpisode(i + 1)
		ep.Title = textutil.CleanEpisodeTitle(beat.Title, i+1)
		ep.Summary = beat.Beat
		season.Episodes = append(season.Episodes, ep)
	}

	if _, err := s.store.Save(proj); err != nil {
		return err
	}
	s.logger.Info().
		Str("project", proj.Name).
		Int("season", season.SeasonIndex).
		Int("episodes", len(outline)).
		Msg("generated season outline")
	return nil
}

// ===== 单集 =====

// GenerateEpisode 生成一集的三段式产出并写回项目
// FULL_SCRIPT先规整为三列表，TTS清洗掉音效标注，人物名顺带补进设定集
func (s *StoryService) GenerateEpisode(ctx context.Context, proj *models.Project, seasonIdx, epIdx int) error {
	season, ep, err := locateEpisode(proj, seasonIdx, epIdx)
	if err != nil {
		return err
	}

	s.notifier.Publish("episode", fmt.Sprintf("Đang sinh kịch bản tập %d…", ep.Index))
	prompt := BuildEpisodePrompt(proj.ChosenStoryline, ep.Title, ep.Summary, proj.Preset)
	value, err := s.llm.GenerateStructured(ctx, prompt)
	if err != nil {
		return err
	}

	data, ok := value.(map[string]interface{})
	if !ok {
		return apperrors.NewUpstreamError("AI trả về dữ liệu không đúng định dạng JSON", nil)
	}

	fullScript := stringField(data, "FULL_SCRIPT", "full_script")
	ttsText := stringField(data, "TTS", "tts")
	scenes := scenesFromAssets(data)

	ep.ScriptText = NormalizeScriptTable(fullScript)
	ep.Assets = models.AssetBundle{Scenes: scenes}
	ep.TTSText = textutil.CleanTTSText(ttsText)

	s.seedBibleFromEpisode(proj, ep)

	season.Episodes[epIdx] = *ep
	if _, err := s.store.Save(proj); err != nil {
		return err
	}
	s.logger.Info().
		Str("project", proj.Name).
		Int("season", season.SeasonIndex).
		Int("episode", ep.Index).
		Int("scenes", len(scenes)).
		Msg("generated episode content")
	return nil
}

func scenesFromAssets(data map[string]interface{}) []models.Scene {
	raw, ok := data["ASSETS"].([]interface{})
	if !ok {
		raw, _ = data["assets"].([]interface{})
	}
	scenes := []models.Scene{}
	for _, it := range raw {
		if _, ok := it.(map[string]interface{}); !ok {
			continue
		}
		var sc models.Scene
		if err := DecodeInto(it, &sc); err != nil {
			continue
		}
		sc.Name = strings.TrimSpace(sc.Name)
		sc.ImagePrompt = strings.TrimSpace(sc.ImagePrompt)
		sc.SFXPrompt = strings.TrimSpace(sc.SFXPrompt)
		chars := sc.Characters[:0]
		for _, name := range sc.Characters {
			if name != "" {
				chars = append(chars, name)
			}
		}
		sc.Characters = chars
		scenes = append(scenes, sc)
	}
	return scenes
}

// 把脚本与TTS里出现的说话人补进人物设定集，已有的不动
func (s *StoryService) seedBibleFromEpisode(proj *models.Project, ep *models.Episode) {
	names := textutil.SeedNamesFromTTS(ep.ScriptText + "\n" + ep.TTSText)
	if len(names) == 0 {
		return
	}
	var newChars []models.Character
	for _, n := range names {
		newChars = append(newChars, models.Character{
			Name:  n,
			Look:  "gương mặt Á Đông; tránh nét siêu thực Tây phương",
			Notes: "donghua/cel-shaded",
		})
	}
	added := proj.CharacterBible.Merge(newChars)
	if added > 0 {
		s.logger.Debug().Int("added", added).Msg("seeded character bible from episode")
	}
}

// ===== 人物设定集 =====

// GenerateCharacterBible 用AI生成整套人物设定并整体替换
func (s *StoryService) GenerateCharacterBible(ctx context.Context, proj *models.Project, seasonIdx, maxChars int) error {
	if seasonIdx < 0 || seasonIdx >= len(proj.Seasons) {
		return apperrors.NewNotFoundError(fmt.Sprintf("season index %d", seasonIdx), nil)
	}
	if maxChars <= 0 {
		maxChars = 8
	}

	s.notifier.Publish("bible", "Đang tạo Character Bible…")
	prompt := BuildCharacterBiblePrompt(
		proj.Name, proj.Idea, proj.ChosenStoryline,
		proj.Seasons[seasonIdx].Outline, maxChars, proj.Preset)

	var bible models.CharacterBible
	if err := s.llm.CreateStructuredCompletion(ctx, prompt, "", &bible); err != nil {
		return err
	}
	if len(bible.Characters) == 0 {
		return apperrors.NewUpstreamError("AI không trả về nhân vật nào", nil)
	}

	proj.CharacterBible = bible
	if _, err := s.store.Save(proj); err != nil {
		return err
	}
	s.logger.Info().Str("project", proj.Name).Int("characters", len(bible.Characters)).Msg("generated character bible")
	return nil
}

// ===== Veo 分镜 =====

type segmentsResponse struct {
	Scene    string           `json:"scene"`
	Segments []models.Segment `json:"segments"`
}

// GenerateSegments 为一集中的某个场景生成8秒分镜，写入veo31_segments
// 解析失败时场景保持原样
func (s *StoryService) GenerateSegments(ctx context.Context, proj *models.Project, seasonIdx, epIdx, sceneIdx, maxSegments int) error {
	season, ep, err := locateEpisode(proj, seasonIdx, epIdx)
	if err != nil {
		return err
	}
	if sceneIdx < 0 || sceneIdx >= len(ep.Assets.Scenes) {
		return apperrors.NewNotFoundError(fmt.Sprintf("scene index %d", sceneIdx), nil)
	}

	sc := ep.Assets.Scenes[sceneIdx]
	sceneName := sc.Name
	if sceneName == "" {
		sceneName = fmt.Sprintf("Cảnh %d", sceneIdx+1)
	}
	sceneText := sc.ImagePrompt
	if sceneText == "" {
		sceneText = sc.SFXPrompt
	}
	if sceneText == "" {
		sceneText = ep.Summary
	}

	s.notifier.Publish("segments", fmt.Sprintf("Đang sinh Veo 3.1 cho cảnh: %s", sceneName))
	prompt := BuildSegmentsPrompt(ep.Title, sceneName, sceneText, SegmentPromptOptions{
		MaxSegments:       maxSegments,
		AspectRatio:       proj.AspectRatio,
		DonghuaStyle:      proj.DonghuaStyle,
		CharacterBible:    proj.CharacterBible,
		CharactersInScene: sc.Characters,
	})

	var resp segmentsResponse
	if err := s.llm.CreateStructuredCompletion(ctx, prompt, "", &resp); err != nil {
		return err
	}
	if len(resp.Segments) == 0 {
		return apperrors.NewUpstreamError("AI không trả về segment nào", nil)
	}
	for i := range resp.Segments {
		if resp.Segments[i].DurationSec <= 0 {
			resp.Segments[i].DurationSec = 8
		}
	}

	sc.Segments = resp.Segments
	sc.VeoPrompt = prompt
	ep.Assets.Scenes[sceneIdx] = sc
	season.Episodes[epIdx] = *ep

	if _, err := s.store.Save(proj); err != nil {
		return err
	}
	s.logger.Info().
		Str("project", proj.Name).
		Str("scene", sceneName).
		Int("segments", len(resp.Segments)).
		Msg("generated veo segments")
	return nil
}

// ===== helpers =====

func locateEpisode(proj *models.Project, seasonIdx, epIdx int) (*models.Season, *models.Episode, error) {
	if proj == nil {
		return nil, nil, apperrors.NewValidationError("project is required", nil)
	}
	if seasonIdx < 0 || seasonIdx >= len(proj.Seasons) {
		return nil, nil, apperrors.NewNotFoundError(fmt.Sprintf("season index %d", seasonIdx), nil)
	}
	season := &proj.Seasons[seasonIdx]
	if epIdx < 0 || epIdx >= len(season.Episodes) {
		return nil, nil, apperrors.NewNotFoundError(fmt.Sprintf("episode index %d in season %d", epIdx, season.SeasonIndex), nil)
	}
	ep := season.Episodes[epIdx]
	return season, &ep, nil
}

func (s *StoryService) presetOrError(name string) (string, error) {
	if name == "" {
		return "", apperrors.NewValidationError("preset is required", nil)
	}
	if _, ok := presets.Get(name); !ok {
		return "", apperrors.NewValidationError("unknown preset: "+name, nil)
	}
	return name, nil
}

// DecodeInto 辅助：把松散的interface{}重新编码到目标结构
func DecodeInto(value interface{}, out interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}
