package services

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	. "github.com/smartystreets/goconvey/convey"

	apperrors "github.com/StoryMosaic/StoryStudio/internal/errors"
	"github.com/StoryMosaic/StoryStudio/internal/models"
	"github.com/StoryMosaic/StoryStudio/internal/storage"
)

func newProjectService(t *testing.T) *ProjectService {
	t.Helper()
	store, err := storage.NewProjectStore(t.TempDir())
	if err != nil {
		t.Fatalf("创建测试存储失败: %v", err)
	}
	return NewProjectService(store, zerolog.Nop())
}

func TestProjectServiceCreate(t *testing.T) {
	Convey("Create 新建项目", t, func() {
		svc := newProjectService(t)

		Convey("合法输入创建并落盘", func() {
			proj, err := svc.Create("Kiếm Vực", "thiếu niên nghịch thiên", testPreset)
			So(err, ShouldBeNil)
			So(proj.Preset, ShouldEqual, testPreset)

			loaded, err := svc.LoadByName("Kiếm Vực")
			So(err, ShouldBeNil)
			So(loaded.Idea, ShouldEqual, "thiếu niên nghịch thiên")
		})

		Convey("未知 preset 被拒绝", func() {
			_, err := svc.Create("P", "i", "Không Tồn Tại")
			So(apperrors.IsValidationError(err), ShouldBeTrue)
		})

		Convey("重名项目被拒绝", func() {
			_, err := svc.Create("Kiếm Vực", "i", testPreset)
			So(err, ShouldBeNil)
			_, err = svc.Create("Kiếm Vực", "ý khác", testPreset)
			So(apperrors.IsValidationError(err), ShouldBeTrue)
		})
	})
}

func TestProjectServiceSeasons(t *testing.T) {
	Convey("季的增删", t, func() {
		svc := newProjectService(t)
		proj, err := svc.Create("P", "i", testPreset)
		So(err, ShouldBeNil)

		Convey("AddSeason 追加并落盘", func() {
			season, err := svc.AddSeason(proj)
			So(err, ShouldBeNil)
			So(season.SeasonIndex, ShouldEqual, 1)

			loaded, err := svc.LoadByName("P")
			So(err, ShouldBeNil)
			So(loaded.Seasons, ShouldHaveLength, 1)
		})

		Convey("拒绝删除最后一季", func() {
			_, err := svc.AddSeason(proj)
			So(err, ShouldBeNil)
			So(apperrors.IsValidationError(svc.DeleteSeason(proj, 0)), ShouldBeTrue)
		})

		Convey("删除后季号重排", func() {
			_, err := svc.AddSeason(proj)
			So(err, ShouldBeNil)
			_, err = svc.AddSeason(proj)
			So(err, ShouldBeNil)

			So(svc.DeleteSeason(proj, 0), ShouldBeNil)
			So(proj.Seasons, ShouldHaveLength, 1)
			So(proj.Seasons[0].SeasonIndex, ShouldEqual, 1)
		})
	})
}

func TestProjectServiceEpisodes(t *testing.T) {
	Convey("单集的手工编辑", t, func() {
		svc := newProjectService(t)
		proj, err := svc.Create("P", "i", testPreset)
		So(err, ShouldBeNil)
		season, err := svc.AddSeason(proj)
		So(err, ShouldBeNil)
		season.Episodes = append(season.Episodes, models.NewEpisode(1))

		Convey("UpdateEpisode 只改给出的字段", func() {
			title := "Phế Linh Căn"
			So(svc.UpdateEpisode(proj, 0, 0, EpisodeUpdate{Title: &title}), ShouldBeNil)

			ep := proj.Seasons[0].Episodes[0]
			So(ep.Title, ShouldEqual, "Phế Linh Căn")
			So(ep.Summary, ShouldBeBlank)
		})

		Convey("NormalizeEpisodeScript 规整为三列表", func() {
			script := "Narration: Đêm xuống\nDialogue: Diệp Minh: Ai đó?"
			So(svc.UpdateEpisode(proj, 0, 0, EpisodeUpdate{ScriptText: &script}), ShouldBeNil)
			So(svc.NormalizeEpisodeScript(proj, 0, 0), ShouldBeNil)

			So(proj.Seasons[0].Episodes[0].ScriptText, ShouldStartWith, ScriptTableHeader)
		})

		Convey("UpdateScenes nil 等价于清空", func() {
			So(svc.UpdateScenes(proj, 0, 0, nil), ShouldBeNil)
			So(proj.Seasons[0].Episodes[0].Assets.Scenes, ShouldNotBeNil)
			So(proj.Seasons[0].Episodes[0].Assets.Scenes, ShouldBeEmpty)
		})

		Convey("越界索引上抛 NotFoundError", func() {
			So(apperrors.IsNotFoundError(svc.UpdateEpisode(proj, 0, 5, EpisodeUpdate{})), ShouldBeTrue)
			So(apperrors.IsNotFoundError(svc.UpdateScenes(proj, 2, 0, nil)), ShouldBeTrue)
		})
	})
}

func TestProjectServiceSeedCharacterBible(t *testing.T) {
	Convey("SeedCharacterBible 从脚本/TTS补充人物", t, func() {
		svc := newProjectService(t)
		proj, err := svc.Create("P", "i", testPreset)
		So(err, ShouldBeNil)
		season, err := svc.AddSeason(proj)
		So(err, ShouldBeNil)

		ep := models.NewEpisode(1)
		ep.TTSText = "Diệp Minh: Ta sẽ không lùi bước.\nHàn Thư: Ta theo ngươi."
		season.Episodes = append(season.Episodes, ep)

		added, err := svc.SeedCharacterBible(proj, 0, 0)
		So(err, ShouldBeNil)
		So(added, ShouldEqual, 2)
		So(proj.CharacterBible.Has("Diệp Minh"), ShouldBeTrue)
		So(proj.CharacterBible.Has("Hàn Thư"), ShouldBeTrue)

		Convey("重复seed不新增", func() {
			added, err := svc.SeedCharacterBible(proj, 0, 0)
			So(err, ShouldBeNil)
			So(added, ShouldEqual, 0)
		})
	})
}

func TestProjectServiceExport(t *testing.T) {
	Convey("Export 返回归档内容与建议文件名", t, func() {
		svc := newProjectService(t)
		proj, err := svc.Create("Kiếm Vực", "i", testPreset)
		So(err, ShouldBeNil)

		data, filename, err := svc.Export(proj)
		So(err, ShouldBeNil)
		So(len(data), ShouldBeGreaterThan, 0)
		So(filename, ShouldEqual, "Kiếm_Vực_export.zip")

		Convey("配置导出目录后同时落盘一份", func() {
			dir := t.TempDir()
			svc.SetExportDir(dir)

			data2, filename2, err := svc.Export(proj)
			So(err, ShouldBeNil)

			onDisk, err := os.ReadFile(filepath.Join(dir, filename2))
			So(err, ShouldBeNil)
			So(onDisk, ShouldResemble, data2)
		})

		Convey("导出目录不可写时下载不受影响", func() {
			svc.SetExportDir(filepath.Join(t.TempDir(), "không", "tồn", "tại"))

			data2, _, err := svc.Export(proj)
			So(err, ShouldBeNil)
			So(len(data2), ShouldBeGreaterThan, 0)
		})
	})
}
