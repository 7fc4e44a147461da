// internal/models/character.go
package models

// Character 表示 Character Bible 中的一个角色档案
// Name 在单个项目内是事实上的主键
type Character struct {
	Name       string `json:"name"`
	Role       string `json:"role"`
	Age        string `json:"age"`
	Look       string `json:"look"`
	Hair       string `json:"hair"`
	Outfit     string `json:"outfit"`
	ColorTheme string `json:"color_theme"`
	Notes      string `json:"notes"`
}

// CharacterBible 项目级角色登记表，保证生成的媒体在视觉/文本上一致
// JSON 形态恒为 { "characters": [...] }
type CharacterBible struct {
	Characters []Character `json:"characters"`
}

// Has 判断是否已存在同名角色
func (cb *CharacterBible) Has(name string) bool {
	for _, c := range cb.Characters {
		if c.Name == name {
			return true
		}
	}
	return false
}

// Merge 按名字合并角色，已存在则跳过（不覆盖人工维护的档案）
// 返回实际新增的数量
func (cb *CharacterBible) Merge(chars []Character) int {
	added := 0
	for _, c := range chars {
		if c.Name == "" || cb.Has(c.Name) {
			continue
		}
		cb.Characters = append(cb.Characters, c)
		added++
	}
	return added
}

// Get 按名字取角色档案
func (cb *CharacterBible) Get(name string) (Character, bool) {
	for _, c := range cb.Characters {
		if c.Name == name {
			return c, true
		}
	}
	return Character{}, false
}
