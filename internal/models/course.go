package models

// Course — корень структуры: упорядоченный список разделов.
type Course struct {
	ID       int    `json:"id"`
	FullName string `json:"fullname"`
	Format   string `json:"format"`
}

type Section struct {
	ID       int    `json:"id"`
	CourseID int    `json:"-"`
	Number   int    `json:"number"`
	Name     string `json:"name"`
	Summary  string `json:"summary"`
	Visible  bool   `json:"visible"`
}

// Module — элемент курса (cm). Position — порядок внутри раздела.
type Module struct {
	ID        int    `json:"id"`
	CourseID  int    `json:"-"`
	SectionID int    `json:"sectionid"`
	Name      string `json:"name"`
	ModName   string `json:"module"`
	Visible   bool   `json:"visible"`
	Position  int    `json:"-"`
}

// CourseStructure — полный снимок курса, как его читает репозиторий.
// Sections отсортированы по Number, Modules — по (раздел, Position).
type CourseStructure struct {
	Course   Course
	Sections []Section
	Modules  []Module
}

// ModulePlacement — новое положение cm после перемещения.
type ModulePlacement struct {
	ModuleID  int
	SectionID int
	Position  int
}

// SectionPlacement — новый порядковый номер раздела.
type SectionPlacement struct {
	SectionID int
	Number    int
}

// CourseState — ответ core_courseformat_get_state.
type CourseState struct {
	Course   Fields   `json:"course"`
	Sections []Fields `json:"section"`
	Modules  []Fields `json:"cm"`
}
