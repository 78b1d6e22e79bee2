package handlers

import (
	"context"
	"testing"

	"courseeditor/internal/models"
	"courseeditor/internal/repository"
	"courseeditor/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memRepo — курс 5: раздел 1 (0) с модулями 10, 11; раздел 2 (1) с модулем 12; раздел 3 (2) пуст.
type memRepo struct {
	st    models.CourseStructure
	saved []models.ModulePlacement
}

func newMemRepo() *memRepo {
	return &memRepo{st: models.CourseStructure{
		Course: models.Course{ID: 5, FullName: "Курс", Format: "topics"},
		Sections: []models.Section{
			{ID: 1, CourseID: 5, Number: 0, Visible: true},
			{ID: 2, CourseID: 5, Number: 1, Visible: true},
			{ID: 3, CourseID: 5, Number: 2, Visible: true},
		},
		Modules: []models.Module{
			{ID: 10, CourseID: 5, SectionID: 1, Name: "a", ModName: "page", Visible: true, Position: 0},
			{ID: 11, CourseID: 5, SectionID: 1, Name: "b", ModName: "page", Visible: true, Position: 1},
			{ID: 12, CourseID: 5, SectionID: 2, Name: "c", ModName: "quiz", Visible: true, Position: 0},
		},
	}}
}

func (m *memRepo) LoadStructure(_ context.Context, courseID int) (*models.CourseStructure, error) {
	if courseID != m.st.Course.ID {
		return nil, repository.ErrCourseNotFound
	}
	cp := m.st
	cp.Sections = append([]models.Section(nil), m.st.Sections...)
	cp.Modules = append([]models.Module(nil), m.st.Modules...)
	return &cp, nil
}

func (m *memRepo) EditStructure(ctx context.Context, courseID int, fn func(*models.CourseStructure, repository.CourseWriter) error) error {
	st, err := m.LoadStructure(ctx, courseID)
	if err != nil {
		return err
	}
	return fn(st, m)
}

func (m *memRepo) SaveModulePlacements(_ context.Context, p []models.ModulePlacement) error {
	m.saved = append(m.saved, p...)
	return nil
}

func (m *memRepo) SaveSectionPlacements(context.Context, []models.SectionPlacement) error { return nil }

func (m *memRepo) SetModulesVisible(context.Context, []int, bool) error { return nil }

func (m *memRepo) SetSectionsVisible(context.Context, []int, bool) error { return nil }

func TestService_CmMoveBothTargets(t *testing.T) {
	repo := newMemRepo()
	h := NewCourseEditorHandler(services.NewCourseEditorService(repo))

	// targetcmid важнее targetsectionid: модуль 12 встаёт перед 11 в разделе 1, раздел 3 не трогается
	_, out := postService(t, h, `[{"index":0,"methodname":"core_courseformat_update_course",
		"args":{"action":"cm_move","courseid":5,"ids":[12],"targetsectionid":3,"targetcmid":11}}]`)
	require.Len(t, out, 1)
	require.False(t, out[0].Error, "%+v", out[0].Exception)

	updates, err := models.DecodeUpdates([]byte(out[0].Data))
	require.NoError(t, err)

	var cm models.Fields
	lists := map[int][]int{}
	for _, u := range updates {
		id, _ := u.Fields.ID()
		switch u.Name {
		case "cm":
			if id == 12 {
				cm = u.Fields
			}
		case "section":
			lists[id] = models.IntList(u.Fields["cmlist"])
		}
	}
	require.NotNil(t, cm)
	assert.Equal(t, int64(1), cm["sectionid"])
	assert.Equal(t, []int{10, 12, 11}, lists[1])
	assert.Empty(t, lists[2])
	assert.NotContains(t, lists, 3)

	assert.Contains(t, repo.saved, models.ModulePlacement{ModuleID: 12, SectionID: 1, Position: 1})
}
