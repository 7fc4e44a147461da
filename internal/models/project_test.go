package models

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	apperrors "github.com/StoryMosaic/StoryStudio/internal/errors"
)

func TestNewProject(t *testing.T) {
	Convey("NewProject 必填字段与默认值", t, func() {
		Convey("合法输入创建成功", func() {
			p, err := NewProject("Kiếm Vực", "thiếu niên nghịch thiên", "Tu Tiên · Huyền Huyễn")
			So(err, ShouldBeNil)
			So(p.AspectRatio, ShouldEqual, AspectLandscape)
			So(p.DonghuaStyle, ShouldBeTrue)
			So(p.Seasons, ShouldBeEmpty)
			So(p.StorylineChoices, ShouldNotBeNil)
			So(p.CharacterBible.Characters, ShouldNotBeNil)
		})

		Convey("任一必填字段为空都拒绝", func() {
			for _, tc := range []struct{ name, idea, preset string }{
				{"", "i", "p"},
				{"n", "", "p"},
				{"n", "i", ""},
			} {
				_, err := NewProject(tc.name, tc.idea, tc.preset)
				So(err, ShouldNotBeNil)
				So(apperrors.IsValidationError(err), ShouldBeTrue)
			}
		})
	})
}

func TestProjectValidate(t *testing.T) {
	Convey("Validate 结构约束", t, func() {
		p, err := NewProject("P", "i", "x")
		So(err, ShouldBeNil)

		Convey("季号必须为正", func() {
			p.Seasons = []Season{{SeasonIndex: 0}}
			So(apperrors.IsValidationError(p.Validate()), ShouldBeTrue)
		})

		Convey("集的 index 必须为正", func() {
			s := NewSeason(1)
			s.Episodes = []Episode{{Index: 0, Assets: AssetBundle{Scenes: []Scene{}}}}
			p.Seasons = []Season{s}
			So(apperrors.IsValidationError(p.Validate()), ShouldBeTrue)
		})

		Convey("assets.scenes 不允许为 nil", func() {
			s := NewSeason(1)
			s.Episodes = []Episode{{Index: 1}}
			p.Seasons = []Season{s}
			So(apperrors.IsValidationError(p.Validate()), ShouldBeTrue)
		})

		Convey("完整结构校验通过", func() {
			s := NewSeason(1)
			s.Episodes = []Episode{NewEpisode(1)}
			p.Seasons = []Season{s}
			So(p.Validate(), ShouldBeNil)
		})
	})
}

func TestSeasonLifecycle(t *testing.T) {
	Convey("季的增删与重排", t, func() {
		p, err := NewProject("P", "i", "x")
		So(err, ShouldBeNil)

		Convey("AddSeason 季号顺延", func() {
			s1 := p.AddSeason()
			s2 := p.AddSeason()
			So(s1.SeasonIndex, ShouldEqual, 1)
			So(s2.SeasonIndex, ShouldEqual, 2)
			So(s1.EpisodeCount, ShouldEqual, DefaultEpisodeCount)
		})

		Convey("DeleteSeason 后季号重排为连续的 1..N", func() {
			p.AddSeason()
			p.AddSeason()
			p.AddSeason()

			So(p.DeleteSeason(1), ShouldBeNil)
			So(p.Seasons, ShouldHaveLength, 2)
			So(p.Seasons[0].SeasonIndex, ShouldEqual, 1)
			So(p.Seasons[1].SeasonIndex, ShouldEqual, 2)
		})

		Convey("越界删除被拒绝", func() {
			p.AddSeason()
			So(apperrors.IsValidationError(p.DeleteSeason(-1)), ShouldBeTrue)
			So(apperrors.IsValidationError(p.DeleteSeason(1)), ShouldBeTrue)
		})
	})
}

func TestCharacterBible(t *testing.T) {
	Convey("CharacterBible 按名字合并", t, func() {
		cb := CharacterBible{Characters: []Character{
			{Name: "Diệp Minh", Look: "thủ công duy trì"},
		}}

		added := cb.Merge([]Character{
			{Name: "Diệp Minh", Look: "AI sinh ra"}, // 已存在，跳过
			{Name: "Hàn Thư"},
			{Name: ""}, // 无名，丢弃
		})

		So(added, ShouldEqual, 1)
		So(cb.Characters, ShouldHaveLength, 2)

		Convey("不覆盖人工维护的档案", func() {
			c, ok := cb.Get("Diệp Minh")
			So(ok, ShouldBeTrue)
			So(c.Look, ShouldEqual, "thủ công duy trì")
		})

		Convey("Has/Get 一致", func() {
			So(cb.Has("Hàn Thư"), ShouldBeTrue)
			So(cb.Has("Vô Danh"), ShouldBeFalse)
			_, ok := cb.Get("Vô Danh")
			So(ok, ShouldBeFalse)
		})
	})
}
