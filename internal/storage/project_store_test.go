package storage

import (
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	apperrors "github.com/StoryMosaic/StoryStudio/internal/errors"
	"github.com/StoryMosaic/StoryStudio/internal/models"
)

func newTestStore(t *testing.T) *ProjectStore {
	t.Helper()
	ps, err := NewProjectStore(t.TempDir())
	if err != nil {
		t.Fatalf("创建测试存储失败: %v", err)
	}
	return ps
}

func sampleProject(t *testing.T) *models.Project {
	t.Helper()
	p, err := models.NewProject("Kiếm Vực Phong Vân", "Thiếu niên bị phế linh căn, nghịch thiên cải mệnh", "Tu Tiên · Huyền Huyễn")
	if err != nil {
		t.Fatalf("创建测试项目失败: %v", err)
	}
	s := models.NewSeason(1)
	ep := models.NewEpisode(1)
	ep.Title = "Tập 1: Phế Linh Căn"
	ep.ScriptText = "| Narration | Đêm xuống, Thái Hư Tông chìm trong sương | CapCut BGM: Calm Piano |"
	ep.TTSText = "Đêm xuống, Thái Hư Tông chìm trong sương."
	s.Episodes = append(s.Episodes, ep)
	p.Seasons = append(p.Seasons, s)
	return p
}

func TestProjectStoreSaveLoad(t *testing.T) {
	Convey("项目文档的保存与读取", t, func() {
		ps := newTestStore(t)
		proj := sampleProject(t)

		Convey("保存后按名读取，领域内容逐字保真", func() {
			fullPath, err := ps.Save(proj)
			So(err, ShouldBeNil)
			So(fullPath, ShouldEqual, ps.PathFor(proj.Name))

			loaded, err := ps.LoadByName(proj.Name)
			So(err, ShouldBeNil)
			So(loaded.Name, ShouldEqual, proj.Name)
			So(loaded.Idea, ShouldEqual, proj.Idea)
			So(loaded.Seasons[0].Episodes[0].Title, ShouldEqual, "Tập 1: Phế Linh Căn")
			So(loaded.Seasons[0].Episodes[0].ScriptText, ShouldEqual, proj.Seasons[0].Episodes[0].ScriptText)
			So(loaded.Seasons[0].Episodes[0].TTSText, ShouldEqual, proj.Seasons[0].Episodes[0].TTSText)
		})

		Convey("越南语文本按字面存储，不做HTML/Unicode转义", func() {
			_, err := ps.Save(proj)
			So(err, ShouldBeNil)

			content, err := os.ReadFile(ps.PathFor(proj.Name))
			So(err, ShouldBeNil)
			So(string(content), ShouldContainSubstring, "Kiếm Vực Phong Vân")
			So(string(content), ShouldContainSubstring, "Phế Linh Căn")
			So(string(content), ShouldNotContainSubstring, `\u`)
		})

		Convey("保存-读取-保存 产出完全相同的字节", func() {
			_, err := ps.Save(proj)
			So(err, ShouldBeNil)
			first, err := os.ReadFile(ps.PathFor(proj.Name))
			So(err, ShouldBeNil)

			loaded, err := ps.LoadByName(proj.Name)
			So(err, ShouldBeNil)
			_, err = ps.Save(loaded)
			So(err, ShouldBeNil)

			second, err := os.ReadFile(ps.PathFor(proj.Name))
			So(err, ShouldBeNil)
			So(string(second), ShouldEqual, string(first))
		})

		Convey("nil 项目与校验失败的项目都不触碰文件系统", func() {
			_, err := ps.Save(nil)
			So(apperrors.IsValidationError(err), ShouldBeTrue)

			broken := sampleProject(t)
			broken.Seasons[0].SeasonIndex = 0
			_, err = ps.Save(broken)
			So(apperrors.IsValidationError(err), ShouldBeTrue)
			So(ps.Exists(broken.Name), ShouldBeFalse)
		})

		Convey("原子写入不留临时文件", func() {
			_, err := ps.Save(proj)
			So(err, ShouldBeNil)

			entries, err := os.ReadDir(ps.BaseDir)
			So(err, ShouldBeNil)
			for _, e := range entries {
				So(filepath.Ext(e.Name()), ShouldEqual, ".json")
			}
		})
	})
}

func TestProjectStoreLoadErrors(t *testing.T) {
	Convey("读取失败路径", t, func() {
		ps := newTestStore(t)

		Convey("文档不存在上抛 NotFoundError", func() {
			_, err := ps.LoadByName("không tồn tại")
			So(apperrors.IsNotFoundError(err), ShouldBeTrue)
		})

		Convey("非法JSON上抛 CorruptDataError，绝不替换为空项目", func() {
			bad := filepath.Join(ps.BaseDir, "hỏng.json")
			So(os.WriteFile(bad, []byte("{not json"), 0644), ShouldBeNil)

			_, err := ps.Load("hỏng.json")
			So(apperrors.IsCorruptDataError(err), ShouldBeTrue)
		})

		Convey("合法但过期形态的文档经迁移后可读", func() {
			legacy := `{
  "name": "Dự án cũ",
  "idea": "ý tưởng",
  "preset": "Võ Hiệp · Giang Hồ",
  "episode_count": 5,
  "episodes": [{"index": 1, "title": "Tập mở đầu"}],
  "outline": [{"title": "Arc 1", "beat": "khởi đầu"}]
}`
			path := filepath.Join(ps.BaseDir, "legacy.json")
			So(os.WriteFile(path, []byte(legacy), 0644), ShouldBeNil)

			p, err := ps.Load("legacy.json")
			So(err, ShouldBeNil)
			So(p.Seasons, ShouldHaveLength, 1)
			So(p.Seasons[0].SeasonIndex, ShouldEqual, 1)
			So(p.Seasons[0].EpisodeCount, ShouldEqual, 5)
			So(p.Seasons[0].Episodes[0].Assets.Scenes, ShouldNotBeNil)
		})
	})
}

func TestProjectStoreList(t *testing.T) {
	Convey("List 列出全部项目文档", t, func() {
		ps := newTestStore(t)

		names, err := ps.List()
		So(err, ShouldBeNil)
		So(names, ShouldBeEmpty)

		for _, n := range []string{"Bích Hải", "An Nhiên"} {
			p, err := models.NewProject(n, "i", "x")
			So(err, ShouldBeNil)
			_, err = ps.Save(p)
			So(err, ShouldBeNil)
		}
		// 非项目文件不应出现在列表里
		So(os.WriteFile(filepath.Join(ps.BaseDir, "ghi_chú.txt"), []byte("x"), 0644), ShouldBeNil)

		names, err = ps.List()
		So(err, ShouldBeNil)
		So(names, ShouldResemble, []string{"An_Nhiên.json", "Bích_Hải.json"})
	})
}
