package services

import (
	"fmt"
	"strconv"

	"courseeditor/internal/models"
)

// courseTree — рабочая копия структуры курса, на которой считаются перемещения.
// Репозиторий получает только итоговые положения.
type courseTree struct {
	course   models.Course
	sections []*models.Section // по номеру
	section  map[int]*models.Section
	module   map[int]*models.Module
	cmlist   map[int][]int // id раздела → упорядоченные id модулей
}

func buildTree(st *models.CourseStructure) *courseTree {
	t := &courseTree{
		course:  st.Course,
		section: make(map[int]*models.Section, len(st.Sections)),
		module:  make(map[int]*models.Module, len(st.Modules)),
		cmlist:  make(map[int][]int, len(st.Sections)),
	}
	for i := range st.Sections {
		s := st.Sections[i]
		t.sections = append(t.sections, &s)
		t.section[s.ID] = &s
		t.cmlist[s.ID] = nil
	}
	for i := range st.Modules {
		m := st.Modules[i]
		if _, ok := t.section[m.SectionID]; !ok {
			// модуль в чужом/несуществующем разделе — в структуру не попадает
			continue
		}
		t.module[m.ID] = &m
		t.cmlist[m.SectionID] = append(t.cmlist[m.SectionID], m.ID)
	}
	return t
}

func uniqueIDs(ids []int) []int {
	seen := make(map[int]struct{}, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func removeIDs(list []int, drop map[int]struct{}) []int {
	out := make([]int, 0, len(list))
	for _, id := range list {
		if _, ok := drop[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

func indexOf(list []int, id int) int {
	for i, v := range list {
		if v == id {
			return i
		}
	}
	return -1
}

// moveModules переносит модули в раздел targetSectionID (в конец) или ставит их
// непосредственно перед targetCmID; в последнем случае раздел берётся у targetCmID.
// Возвращает изменённые положения и id затронутых разделов.
func (t *courseTree) moveModules(ids []int, targetSectionID, targetCmID int) ([]models.ModulePlacement, []int, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return nil, nil, fmt.Errorf("%w: не переданы модули", ErrInvalidArgument)
	}
	moving := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := t.module[id]; !ok {
			return nil, nil, fmt.Errorf("%w: модуль %d не найден в курсе", ErrInvalidArgument, id)
		}
		moving[id] = struct{}{}
	}

	switch {
	case targetCmID != 0:
		target, ok := t.module[targetCmID]
		if !ok {
			return nil, nil, fmt.Errorf("%w: целевой модуль %d не найден", ErrInvalidArgument, targetCmID)
		}
		if _, self := moving[targetCmID]; self {
			return nil, nil, fmt.Errorf("%w: модуль %d нельзя поставить перед самим собой", ErrInvalidArgument, targetCmID)
		}
		targetSectionID = target.SectionID
	case targetSectionID != 0:
		if _, ok := t.section[targetSectionID]; !ok {
			return nil, nil, fmt.Errorf("%w: целевой раздел %d не найден", ErrInvalidArgument, targetSectionID)
		}
	default:
		return nil, nil, fmt.Errorf("%w: нужен targetsectionid или targetcmid", ErrInvalidArgument)
	}

	changed := []int{}
	touched := map[int]bool{}
	for _, s := range t.sections {
		before := t.cmlist[s.ID]
		after := removeIDs(before, moving)
		if len(after) != len(before) || s.ID == targetSectionID {
			t.cmlist[s.ID] = after
			if !touched[s.ID] {
				touched[s.ID] = true
				changed = append(changed, s.ID)
			}
		}
	}

	list := t.cmlist[targetSectionID]
	at := len(list)
	if targetCmID != 0 {
		at = indexOf(list, targetCmID)
	}
	merged := make([]int, 0, len(list)+len(ids))
	merged = append(merged, list[:at]...)
	merged = append(merged, ids...)
	merged = append(merged, list[at:]...)
	t.cmlist[targetSectionID] = merged

	var placements []models.ModulePlacement
	for _, sid := range changed {
		for pos, cmid := range t.cmlist[sid] {
			m := t.module[cmid]
			if m.SectionID == sid && m.Position == pos {
				continue
			}
			m.SectionID, m.Position = sid, pos
			placements = append(placements, models.ModulePlacement{ModuleID: cmid, SectionID: sid, Position: pos})
		}
	}
	return placements, changed, nil
}

// moveSections ставит разделы (в текущем порядке курса) сразу после targetID и перенумеровывает курс.
// Раздел 0 неподвижен.
func (t *courseTree) moveSections(ids []int, targetID int) ([]models.SectionPlacement, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: не переданы разделы", ErrInvalidArgument)
	}
	target, ok := t.section[targetID]
	if !ok {
		return nil, fmt.Errorf("%w: целевой раздел %d не найден", ErrInvalidArgument, targetID)
	}
	moving := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		s, ok := t.section[id]
		if !ok {
			return nil, fmt.Errorf("%w: раздел %d не найден в курсе", ErrInvalidArgument, id)
		}
		if s.Number == 0 {
			return nil, fmt.Errorf("%w: общий раздел нельзя перемещать", ErrInvalidArgument)
		}
		if id == target.ID {
			return nil, fmt.Errorf("%w: раздел %d не может быть целью самого себя", ErrInvalidArgument, id)
		}
		moving[id] = struct{}{}
	}

	var moved, rest []*models.Section
	for _, s := range t.sections {
		if _, ok := moving[s.ID]; ok {
			moved = append(moved, s)
		} else {
			rest = append(rest, s)
		}
	}
	order := make([]*models.Section, 0, len(t.sections))
	for _, s := range rest {
		order = append(order, s)
		if s.ID == target.ID {
			order = append(order, moved...)
		}
	}
	t.sections = order

	var placements []models.SectionPlacement
	for num, s := range t.sections {
		if s.Number == num {
			continue
		}
		s.Number = num
		placements = append(placements, models.SectionPlacement{SectionID: s.ID, Number: num})
	}
	return placements, nil
}

func (t *courseTree) sectionList() []int {
	out := make([]int, 0, len(t.sections))
	for _, s := range t.sections {
		out = append(out, s.ID)
	}
	return out
}

func (t *courseTree) courseFields() models.Fields {
	return models.Fields{
		"id":          t.course.ID,
		"fullname":    t.course.FullName,
		"format":      t.course.Format,
		"sectionlist": t.sectionList(),
	}
}

func (t *courseTree) sectionFields(id int, sanitize func(string) string) models.Fields {
	s := t.section[id]
	name := s.Name
	if name == "" {
		name = "Раздел " + strconv.Itoa(s.Number)
	}
	cmlist := append([]int{}, t.cmlist[id]...)
	return models.Fields{
		"id":      s.ID,
		"number":  s.Number,
		"name":    name,
		"summary": sanitize(s.Summary),
		"visible": s.Visible,
		"cmlist":  cmlist,
	}
}

func (t *courseTree) cmFields(id int) models.Fields {
	m := t.module[id]
	s := t.section[m.SectionID]
	return models.Fields{
		"id":            m.ID,
		"name":          m.Name,
		"module":        m.ModName,
		"sectionid":     m.SectionID,
		"sectionnumber": s.Number,
		"visible":       m.Visible,
		"uservisible":   m.Visible && s.Visible,
	}
}
