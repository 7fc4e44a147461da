// internal/presets/presets.go
// 集中管理音频剧的基调/风格/世界观 preset 登记表
// preset 内容会注入到各个 prompt builder 中；登记表独立演化，
// 项目里只保存解析后的名称字符串，加载时不回头校验
package presets

import "strings"

// Preset 一个基调/风格/世界观档案
type Preset struct {
	Tagline    string
	Tone       string
	Style      string
	World      string
	Tropes     []string
	Taboos     []string
	ImageStyle string
	SFXStyle   string
}

// 展示顺序固定的 preset 名称表
var presetNames = []string{
	"Trung Quốc · Xuyên Không · Ngôn Tình · Hệ Thống",
	"Tu Tiên · Huyền Huyễn",
	"Cyberpunk · Hậu Tận Thế",
	"Kinh Dị · Sinh Tồn",
	"Cổ Đại · Cung Đấu",
	"Hiện Đại · Trinh Thám",
	"Võ Hiệp · Giang Hồ",
}

var registry = map[string]Preset{
	"Trung Quốc · Xuyên Không · Ngôn Tình · Hệ Thống": {
		Tagline:    "Xuyên không – báo thù – cặp đôi định mệnh – giọng Trung Hoa audio-first.",
		Tone:       "kịch tính, giàu nội tâm, cao trào dồn dập; tiết tấu cảnh rõ ràng",
		Style:      "miêu tả âm thanh dày, đối thoại có nhịp nghỉ, từ vựng Á Đông (đừng tây hoá)",
		World:      "cổ đại giả tưởng với bang phái, gia tộc, bí cảnh, hệ thống nhiệm vụ",
		Tropes:     []string{"hôn ước", "phản bội", "nợ máu", "tu luyện cấp bậc", "bí kíp/linh căn"},
		Taboos:     []string{"siêu anh hùng kiểu Mỹ", "hài lố", "slang hiện đại quá mức"},
		ImageStyle: "donghua, nét Á Đông, ánh sáng filmic ấm, palette đỏ–vàng–đen",
		SFXStyle:   "chiêng trống, tì bà, tiếng áo lụa, kiếm khí, ambience cổ trấn",
	},
	"Tu Tiên · Huyền Huyễn": {
		Tagline:    "Tu đạo–nghịch thiên, đại giáo phái, bí cảnh sát phạt, thiên kiếp.",
		Tone:       "sử thi, trang nghiêm, huyền bí",
		Style:      "ngôn ngữ cổ phong, ẩn dụ thiên địa, pháp khí/linh lực",
		World:      "chư quốc, tiên môn, cảnh giới (Luyện khí→Trúc cơ→Kim đan→Nguyên anh→Hóa thần…)",
		Tropes:     []string{"đại hội tranh tài", "bí cảnh di tích", "linh thú", "đan dược", "đạo lữ"},
		Taboos:     []string{"hài lố hiện đại", "khoa học hiện đại giải thích phép"},
		ImageStyle: "núi non tiên cảnh, vân khí, y bào phiêu dật",
		SFXStyle:   "chuông đồng, tiếng pháp trận, gió mây, sấm thiên kiếp",
	},
	"Cyberpunk · Hậu Tận Thế": {
		Tagline:    "Đô thị neon, tập đoàn AI, sinh tồn sau sụp đổ.",
		Tone:       "lạnh, chắc nhịp, noir",
		Style:      "từ vựng công nghệ, xen thuật ngữ Việt hoá (không lạm dụng tiếng Anh)",
		World:      "megacity tầng lớp, mạng lưới thần kinh, implant, băng đảng",
		Tropes:     []string{"nhiệm vụ đột nhập", "truy vết dữ liệu", "ảo giác mạng"},
		Taboos:     []string{"steampunk lạc tông", "phép thuật Trung cổ"},
		ImageStyle: "neon rain, hạt mưa bokeh, góc máy thấp, hẻm ẩm ướt",
		SFXStyle:   "dòng điện, hum máy chủ, mưa, tàu trên cao, radio chatter",
	},
	"Kinh Dị · Sinh Tồn": {
		Tagline:    "Căn nhà cũ, nghi thức cấm, tín hiệu radio… sống còn.",
		Tone:       "rón rén, căng dây, bùng nổ ngắn",
		Style:      "miêu tả thính giác ưu tiên: tiếng thở, sàn gỗ, cửa kẽo kẹt",
		World:      "thị trấn heo hút, truyền thuyết địa phương, nghi thức cổ",
		Tropes:     []string{"điều tra manh mối", "vật hiến tế", "bản đồ viết tay"},
		Taboos:     []string{"máu me rẻ tiền", "giải thích tường tận phá sợ hãi"},
		ImageStyle: "low-key, hạt film, flare yếu, tông lạnh-xanh",
		SFXStyle:   "floor creak, wind howl, radio static, sub-bass hit",
	},
	"Cổ Đại · Cung Đấu": {
		Tagline:    "Tranh sủng – mưu quyền – thư phòng và ngọc tỷ.",
		Tone:       "tinh tế, ẩn nhẫn, đòn tâm lý",
		Style:      "điển cố, thơ phú, ẩn ý trong đối thoại",
		World:      "hoàng cung, lục bộ, phe phái, lễ nghi",
		Tropes:     []string{"thưởng hoa", "tiệc yến", "mật chỉ", "án oan"},
		Taboos:     []string{"đánh nhau lộ liễu, phản cung vô lý"},
		ImageStyle: "đèn lồng đỏ, lụa sa, bóng cửa hoa chạm",
		SFXStyle:   "tỳ bà, guốc gỗ, rèm hạt châu, mực mài",
	},
	"Hiện Đại · Trinh Thám": {
		Tagline:    "Án chuỗi, hiện trường lạnh, thủ pháp tâm lý.",
		Tone:       "điềm tĩnh, logic, twist cuối",
		Style:      "ngôn ngữ điều tra, thủ pháp pháp y vừa đủ",
		World:      "đội chuyên án, camera đô thị, dữ liệu viễn thông",
		Tropes:     []string{"đối chất", "dựng lại hiện trường", "giờ chết giả"},
		Taboos:     []string{"suy diễn siêu nhiên không căn cứ"},
		ImageStyle: "ánh đèn sodium, crime scene tape, bảng ghim ảnh chỉ đỏ",
		SFXStyle:   "máy ảnh bấm, còi hụ xa, bước chân hành lang, bút dạ quang",
	},
	"Võ Hiệp · Giang Hồ": {
		Tagline:    "Ân oán giang hồ, bí kíp thất truyền, tửu quán bão táp.",
		Tone:       "hiệp nghĩa, bi tráng, phong vân biến ảo",
		Style:      "chiêu thức có tên, thân pháp, nội lực",
		World:      "bang phái, lãnh địa, minh giáo – chính đạo",
		Tropes:     []string{"tỷ võ", "tranh đoạt bí kíp", "huynh đệ tương tàn"},
		Taboos:     []string{"siêu nhiên quá mức", "vũ khí tương lai"},
		ImageStyle: "cầu treo mù sương, áo choàng bay, chưởng lực gợn lá",
		SFXStyle:   "tiếng kiếm rút, tay áo quét gió, trống trận, tiếng hồ tiêu",
	},
}

// Names 返回全部 preset 名称（固定顺序）
func Names() []string {
	out := make([]string, len(presetNames))
	copy(out, presetNames)
	return out
}

// Get 按名称取 preset
func Get(name string) (Preset, bool) {
	p, ok := registry[name]
	return p, ok
}

// Block 渲染注入 prompt 的 preset 档案块；未知名称返回空串
func Block(name string) string {
	p, ok := registry[name]
	if !ok {
		return ""
	}
	lines := []string{"[HỒ SƠ PRESET]"}
	appendLine := func(key, value string) {
		if value != "" {
			lines = append(lines, "- "+key+": "+value)
		}
	}
	appendLine("tagline", p.Tagline)
	appendLine("tone", p.Tone)
	appendLine("style", p.Style)
	appendLine("world", p.World)
	appendLine("tropes", strings.Join(p.Tropes, ", "))
	appendLine("taboos", strings.Join(p.Taboos, ", "))
	appendLine("image_style", p.ImageStyle)
	appendLine("sfx_style", p.SFXStyle)
	return strings.Join(lines, "\n")
}
