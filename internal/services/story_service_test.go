package services

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	. "github.com/smartystreets/goconvey/convey"

	apperrors "github.com/StoryMosaic/StoryStudio/internal/errors"
	"github.com/StoryMosaic/StoryStudio/internal/llm"
	"github.com/StoryMosaic/StoryStudio/internal/models"
	"github.com/StoryMosaic/StoryStudio/internal/storage"
)

const testPreset = "Tu Tiên · Huyền Huyễn"

func newStoryService(t *testing.T, reply func(req llm.CompletionRequest) (string, error)) *StoryService {
	t.Helper()
	store, err := storage.NewProjectStore(t.TempDir())
	if err != nil {
		t.Fatalf("创建测试存储失败: %v", err)
	}
	return NewStoryService(newFakeLLM(t, reply), store, zerolog.Nop())
}

func committedProject(t *testing.T, svc *StoryService) *models.Project {
	t.Helper()
	choices := []StorylineChoice{
		{Title: "Phương án 1", Summary: "Thiếu niên bị phế linh căn, nghịch thiên cải mệnh."},
		{Title: "Phương án 2", Summary: "Tông môn suy tàn, đệ tử cuối cùng gánh vác."},
	}
	proj, err := svc.CommitStoryline(nil, "Kiếm Vực", "thiếu niên nghịch thiên", testPreset, choices, 0)
	if err != nil {
		t.Fatalf("创建测试项目失败: %v", err)
	}
	return proj
}

func TestParseStorylineBlocks(t *testing.T) {
	Convey("ParseStorylineBlocks 方案块切分", t, func() {
		Convey("识别编号的方案头", func() {
			raw := strings.Join([]string{
				"Phương án 1: Nghịch Thiên",
				"Thiếu niên bị phế linh căn.",
				"Hắn gặp được thần bí lão giả.",
				"Option 2: Trùng Sinh",
				"Kiếm tu mạnh nhất trở về năm 17 tuổi.",
			}, "\n")

			blocks := ParseStorylineBlocks(raw)
			So(blocks, ShouldHaveLength, 2)
			So(blocks[0].Title, ShouldEqual, "Nghịch Thiên")
			So(blocks[0].Summary, ShouldContainSubstring, "phế linh căn")
			So(blocks[1].Title, ShouldEqual, "Trùng Sinh")
		})

		Convey("方案头没有标题时使用编号占位", func() {
			raw := "1.\nNội dung phương án một.\n2.\nNội dung phương án hai."
			blocks := ParseStorylineBlocks(raw)
			So(blocks, ShouldHaveLength, 2)
			So(blocks[0].Title, ShouldEqual, "Phương án 1")
		})

		Convey("没有编号时按空行分块", func() {
			raw := "Khối một dòng đầu.\nThân khối một.\n\nKhối hai dòng đầu.\nThân khối hai."
			blocks := ParseStorylineBlocks(raw)
			So(blocks, ShouldHaveLength, 2)
			So(blocks[0].Title, ShouldStartWith, "Phương án 1 — Khối một dòng đầu.")
			So(blocks[1].Summary, ShouldContainSubstring, "Thân khối hai")
		})

		Convey("至多返回5个方案", func() {
			var sb strings.Builder
			for i := 1; i <= 8; i++ {
				fmt.Fprintf(&sb, "Phương án %d: Tiêu đề\nNội dung.\n", i)
			}
			blocks := ParseStorylineBlocks(sb.String())
			So(blocks, ShouldHaveLength, 5)
		})

		Convey("空输入返回空", func() {
			So(ParseStorylineBlocks("  \n "), ShouldBeEmpty)
		})
	})
}

func TestGenerateStorylines(t *testing.T) {
	Convey("GenerateStorylines 生成候选故事线", t, func() {
		Convey("JSON数组直接取用", func() {
			svc := newStoryService(t, func(llm.CompletionRequest) (string, error) {
				return `[
  {"title": "Nghịch Thiên", "summary": "Thiếu niên bị phế linh căn."},
  {"title": "", "summary": "Kiếm tu mạnh nhất trở về. Hắn thề báo thù."},
  {"title": "Thiếu summary", "summary": ""}
]`, nil
			})

			choices, err := svc.GenerateStorylines(context.Background(), "ý tưởng", testPreset)
			So(err, ShouldBeNil)
			So(choices, ShouldHaveLength, 2)
			So(choices[0].Title, ShouldEqual, "Nghịch Thiên")
			// 缺标题时取第一句
			So(choices[1].Title, ShouldEqual, "Kiếm tu mạnh nhất trở về")
		})

		Convey("散文回复走块切分兜底", func() {
			svc := newStoryService(t, func(llm.CompletionRequest) (string, error) {
				return "Phương án 1: Nghịch Thiên\nThiếu niên bị phế linh căn.", nil
			})
			choices, err := svc.GenerateStorylines(context.Background(), "ý tưởng", testPreset)
			So(err, ShouldBeNil)
			So(choices, ShouldHaveLength, 1)
			So(choices[0].Title, ShouldEqual, "Nghịch Thiên")
		})

		Convey("空创意被拒绝", func() {
			svc := newStoryService(t, func(llm.CompletionRequest) (string, error) { return "", nil })
			_, err := svc.GenerateStorylines(context.Background(), "  ", testPreset)
			So(apperrors.IsValidationError(err), ShouldBeTrue)
		})

		Convey("未知 preset 被拒绝", func() {
			svc := newStoryService(t, func(llm.CompletionRequest) (string, error) { return "", nil })
			_, err := svc.GenerateStorylines(context.Background(), "ý tưởng", "Không Tồn Tại")
			So(apperrors.IsValidationError(err), ShouldBeTrue)
		})
	})
}

func TestCommitStoryline(t *testing.T) {
	Convey("CommitStoryline 选定方案并建立项目骨架", t, func() {
		svc := newStoryService(t, func(llm.CompletionRequest) (string, error) { return "", nil })
		choices := []StorylineChoice{
			{Title: "PA1", Summary: "tóm tắt một"},
			{Title: "PA2", Summary: "tóm tắt hai"},
		}

		Convey("建立带空第1季的新项目并落盘", func() {
			proj, err := svc.CommitStoryline(nil, "Kiếm Vực", "ý tưởng", testPreset, choices, 1)
			So(err, ShouldBeNil)
			So(proj.ChosenStoryline, ShouldEqual, "PA2\n\ntóm tắt hai")
			So(proj.StorylineChoices, ShouldHaveLength, 2)
			So(proj.Seasons, ShouldHaveLength, 1)
			So(proj.Seasons[0].SeasonIndex, ShouldEqual, 1)
			So(proj.Seasons[0].Episodes, ShouldBeEmpty)

			loaded, err := svc.store.LoadByName("Kiếm Vực")
			So(err, ShouldBeNil)
			So(loaded.ChosenStoryline, ShouldEqual, proj.ChosenStoryline)
		})

		Convey("保留旧项目的画幅、画风与人物设定", func() {
			prev, err := models.NewProject("Kiếm Vực", "ý tưởng cũ", testPreset)
			So(err, ShouldBeNil)
			prev.AspectRatio = models.AspectPortrait
			prev.DonghuaStyle = false
			prev.CharacterBible.Merge([]models.Character{{Name: "Diệp Minh"}})

			proj, err := svc.CommitStoryline(prev, "Kiếm Vực", "ý tưởng mới", testPreset, choices, 0)
			So(err, ShouldBeNil)
			So(proj.AspectRatio, ShouldEqual, models.AspectPortrait)
			So(proj.DonghuaStyle, ShouldBeFalse)
			So(proj.CharacterBible.Has("Diệp Minh"), ShouldBeTrue)
		})

		Convey("选择越界被拒绝", func() {
			_, err := svc.CommitStoryline(nil, "P", "i", testPreset, choices, 2)
			So(apperrors.IsValidationError(err), ShouldBeTrue)
			_, err = svc.CommitStoryline(nil, "P", "i", testPreset, choices, -1)
			So(apperrors.IsValidationError(err), ShouldBeTrue)
		})
	})
}

func TestSeasonRecap(t *testing.T) {
	Convey("SeasonRecap 汇总已完成季的篇章", t, func() {
		svc := newStoryService(t, func(llm.CompletionRequest) (string, error) { return "", nil })
		proj := committedProject(t, svc)

		Convey("只有一季时没有前情", func() {
			So(SeasonRecap(proj), ShouldBeBlank)
		})

		Convey("汇总当前季之前各季的前三个篇章标题", func() {
			proj.Seasons[0].Outline = []models.OutlineBeat{
				{Title: "Khởi đầu"}, {Title: "Thử luyện"}, {Title: "Phản bội"}, {Title: "Không vào recap"},
			}
			proj.AddSeason()

			recap := SeasonRecap(proj)
			So(recap, ShouldContainSubstring, "Mùa 1: Khởi đầu; Thử luyện; Phản bội")
			So(recap, ShouldNotContainSubstring, "Không vào recap")
		})
	})
}

func TestGenerateOutline(t *testing.T) {
	Convey("GenerateOutline 生成整季大纲", t, func() {
		Convey("按大纲重建空白集列表", func() {
			svc := newStoryService(t, func(llm.CompletionRequest) (string, error) {
				return `[
  {"title": "Tập 1: Phế Linh Căn", "beat": "Diệp Minh bị phế linh căn."},
  {"title": "Tập 2: Thần Bí Lão Giả", "beat": "Gặp được truyền thừa."}
]`, nil
			})
			proj := committedProject(t, svc)

			So(svc.GenerateOutline(context.Background(), proj, 0, 2), ShouldBeNil)

			season := proj.Seasons[0]
			So(season.EpisodeCount, ShouldEqual, 2)
			So(season.Outline, ShouldHaveLength, 2)
			// 编号前缀被清掉
			So(season.Outline[0].Title, ShouldEqual, "Phế Linh Căn")
			So(season.Episodes, ShouldHaveLength, 2)
			So(season.Episodes[0].Title, ShouldEqual, "Phế Linh Căn")
			So(season.Episodes[1].Index, ShouldEqual, 2)
			So(season.Episodes[0].Summary, ShouldEqual, "Diệp Minh bị phế linh căn.")
		})

		Convey("散文回复逐行兜底为篇章", func() {
			svc := newStoryService(t, func(llm.CompletionRequest) (string, error) {
				return "dàn bài tự do dòng một\ndàn bài tự do dòng hai", nil
			})
			proj := committedProject(t, svc)

			So(svc.GenerateOutline(context.Background(), proj, 0, 2), ShouldBeNil)
			So(proj.Seasons[0].Outline[0].Title, ShouldEqual, "Tập 1")
			So(proj.Seasons[0].Outline[1].Beat, ShouldEqual, "dàn bài tự do dòng hai")
		})

		Convey("没有选定故事线时拒绝", func() {
			svc := newStoryService(t, func(llm.CompletionRequest) (string, error) { return "[]", nil })
			proj := committedProject(t, svc)
			proj.ChosenStoryline = ""
			err := svc.GenerateOutline(context.Background(), proj, 0, 2)
			So(apperrors.IsValidationError(err), ShouldBeTrue)
		})

		Convey("季号越界上抛 NotFoundError", func() {
			svc := newStoryService(t, func(llm.CompletionRequest) (string, error) { return "[]", nil })
			proj := committedProject(t, svc)
			err := svc.GenerateOutline(context.Background(), proj, 3, 2)
			So(apperrors.IsNotFoundError(err), ShouldBeTrue)
		})
	})
}

func TestGenerateEpisode(t *testing.T) {
	Convey("GenerateEpisode 生成一集的三段式产出", t, func() {
		episodeReply := `{
  "FULL_SCRIPT": "Narration: Đêm xuống, Thái Hư Tông chìm trong sương\nDialogue: Diệp Minh: Ta sẽ không lùi bước",
  "TTS": "**Đêm xuống.**\nDiệp Minh: Ta sẽ không lùi bước. [SFX: gió rít]",
  "ASSETS": [
    {"scene": "Sân luyện", "image_prompt": "sân luyện dưới trăng", "sfx_prompt": "gió đêm", "characters": ["Diệp Minh"]}
  ]
}`
		svc := newStoryService(t, func(llm.CompletionRequest) (string, error) {
			return episodeReply, nil
		})
		proj := committedProject(t, svc)
		season := &proj.Seasons[0]
		season.Episodes = append(season.Episodes, models.NewEpisode(1))

		Convey("剧本规整为三列表，TTS清洗，资产落位", func() {
			So(svc.GenerateEpisode(context.Background(), proj, 0, 0), ShouldBeNil)

			ep := proj.Seasons[0].Episodes[0]
			So(ep.ScriptText, ShouldStartWith, ScriptTableHeader)
			So(ep.ScriptText, ShouldContainSubstring, "| Narration | Đêm xuống")
			So(ep.TTSText, ShouldNotContainSubstring, "**")
			So(ep.TTSText, ShouldNotContainSubstring, "SFX")
			So(ep.Assets.Scenes, ShouldHaveLength, 1)
			So(ep.Assets.Scenes[0].Name, ShouldEqual, "Sân luyện")
			So(ep.Assets.Scenes[0].Characters, ShouldResemble, []string{"Diệp Minh"})
		})

		Convey("说话人顺带补进人物设定集", func() {
			So(svc.GenerateEpisode(context.Background(), proj, 0, 0), ShouldBeNil)
			c, ok := proj.CharacterBible.Get("Diệp Minh")
			So(ok, ShouldBeTrue)
			So(c.Look, ShouldContainSubstring, "Á Đông")
			So(c.Notes, ShouldContainSubstring, "donghua")
		})

		Convey("资产数组里的非对象项被跳过，空角色名被过滤", func() {
			mixed := newStoryService(t, func(llm.CompletionRequest) (string, error) {
				return `{"FULL_SCRIPT": "Narration: mở màn", "TTS": "Lời dẫn.", "ASSETS": ["rác", {"scene": " Rừng trúc ", "characters": ["Hàn Thư", ""]}]}`, nil
			})
			proj3 := committedProject(t, mixed)
			proj3.Seasons[0].Episodes = append(proj3.Seasons[0].Episodes, models.NewEpisode(1))

			So(mixed.GenerateEpisode(context.Background(), proj3, 0, 0), ShouldBeNil)
			scenes := proj3.Seasons[0].Episodes[0].Assets.Scenes
			So(scenes, ShouldHaveLength, 1)
			So(scenes[0].Name, ShouldEqual, "Rừng trúc")
			So(scenes[0].Characters, ShouldResemble, []string{"Hàn Thư"})
		})

		Convey("非JSON回复上抛且不触碰集内容", func() {
			bad := newStoryService(t, func(llm.CompletionRequest) (string, error) {
				return "văn xuôi không phải JSON", nil
			})
			proj2 := committedProject(t, bad)
			ep := models.NewEpisode(1)
			ep.ScriptText = "kịch bản cũ"
			proj2.Seasons[0].Episodes = append(proj2.Seasons[0].Episodes, ep)

			err := bad.GenerateEpisode(context.Background(), proj2, 0, 0)
			So(apperrors.IsUpstreamError(err), ShouldBeTrue)
			So(proj2.Seasons[0].Episodes[0].ScriptText, ShouldEqual, "kịch bản cũ")
		})
	})
}

func TestGenerateSegments(t *testing.T) {
	Convey("GenerateSegments 为场景生成8秒分镜", t, func() {
		segmentsReply := `{
  "scene": "Sân luyện",
  "segments": [
    {"title": "Khởi thế", "veo_prompt": "vung kiếm dưới trăng", "characters": ["Diệp Minh"], "sfx": "Sword Whoosh"},
    {"title": "Thu thế", "veo_prompt": "thu kiếm", "duration_sec": 6}
  ]
}`
		newProjWithScene := func(t *testing.T, svc *StoryService) *models.Project {
			proj := committedProject(t, svc)
			ep := models.NewEpisode(1)
			ep.Assets.Scenes = []models.Scene{{Name: "Sân luyện", ImagePrompt: "sân luyện dưới trăng"}}
			proj.Seasons[0].Episodes = append(proj.Seasons[0].Episodes, ep)
			return proj
		}

		Convey("分镜写入 veo31_segments，时长默认8秒", func() {
			svc := newStoryService(t, func(llm.CompletionRequest) (string, error) {
				return segmentsReply, nil
			})
			proj := newProjWithScene(t, svc)

			So(svc.GenerateSegments(context.Background(), proj, 0, 0, 0, 3), ShouldBeNil)

			sc := proj.Seasons[0].Episodes[0].Assets.Scenes[0]
			So(sc.Segments, ShouldHaveLength, 2)
			So(sc.Segments[0].DurationSec, ShouldEqual, 8)
			So(sc.Segments[1].DurationSec, ShouldEqual, 6)
			So(sc.VeoPrompt, ShouldContainSubstring, "Sân luyện")
		})

		Convey("解析失败时场景保持原样", func() {
			svc := newStoryService(t, func(llm.CompletionRequest) (string, error) {
				return "không phải JSON", nil
			})
			proj := newProjWithScene(t, svc)

			err := svc.GenerateSegments(context.Background(), proj, 0, 0, 0, 3)
			So(apperrors.IsUpstreamError(err), ShouldBeTrue)

			sc := proj.Seasons[0].Episodes[0].Assets.Scenes[0]
			So(sc.Segments, ShouldBeEmpty)
			So(sc.VeoPrompt, ShouldBeBlank)
		})

		Convey("场景索引越界上抛 NotFoundError", func() {
			svc := newStoryService(t, func(llm.CompletionRequest) (string, error) { return "{}", nil })
			proj := newProjWithScene(t, svc)
			err := svc.GenerateSegments(context.Background(), proj, 0, 0, 9, 3)
			So(apperrors.IsNotFoundError(err), ShouldBeTrue)
		})
	})
}
