package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"courseeditor/internal/logger"
	"courseeditor/internal/metrics"
	"courseeditor/internal/models"
	"courseeditor/internal/repository"

	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
)

var (
	ErrInvalidArgument = errors.New("некорректные параметры")
	ErrNotFound        = errors.New("не найдено")
)

// CourseEditorService выполняет действия редактора курса и возвращает записи обновления.
type CourseEditorService struct {
	repo   repository.CourseRepo
	policy *bluemonday.Policy
}

func NewCourseEditorService(repo repository.CourseRepo) *CourseEditorService {
	return &CourseEditorService{repo: repo, policy: bluemonday.UGCPolicy()}
}

func (s *CourseEditorService) sanitize(html string) string {
	return s.policy.Sanitize(html)
}

func (s *CourseEditorService) load(ctx context.Context, courseID int) (*courseTree, error) {
	st, err := s.repo.LoadStructure(ctx, courseID)
	if errors.Is(err, repository.ErrCourseNotFound) {
		return nil, fmt.Errorf("%w: курс %d", ErrNotFound, courseID)
	}
	if err != nil {
		return nil, err
	}
	return buildTree(st), nil
}

// Execute выполняет одно действие core_courseformat_update_course.
func (s *CourseEditorService) Execute(ctx context.Context, args models.UpdateCourseArgs) (updates []models.Update, err error) {
	log := logger.WithCtx(ctx).With(zap.String("action", args.Action), zap.Int("course_id", args.CourseID))
	start := time.Now()
	defer func() {
		metrics.ObserveAction(args.Action, err, time.Since(start))
		if err != nil {
			log.Warn("Действие редактора не выполнено", zap.Error(err))
			return
		}
		log.Info("Действие редактора выполнено", zap.Int("updates", len(updates)), zap.Duration("duration", time.Since(start)))
	}()

	switch args.Action {
	case models.ActionCmState, models.ActionSectionState, models.ActionCourseState:
		t, err := s.load(ctx, args.CourseID)
		if err != nil {
			return nil, err
		}
		switch args.Action {
		case models.ActionCmState:
			return s.cmState(t, args.IDs)
		case models.ActionSectionState:
			return s.sectionState(t, args.IDs)
		default:
			return s.courseState(t), nil
		}
	case models.ActionCmMove, models.ActionSectionMove,
		models.ActionCmHide, models.ActionCmShow, models.ActionSectionHide, models.ActionSectionShow:
		return s.edit(ctx, args)
	default:
		return nil, fmt.Errorf("%w: неизвестное действие %q", ErrInvalidArgument, args.Action)
	}
}

// edit выполняет изменяющее действие: чтение структуры и запись идут в одной транзакции
// под блокировкой курса, так что параллельные правки не теряют друг друга.
func (s *CourseEditorService) edit(ctx context.Context, args models.UpdateCourseArgs) ([]models.Update, error) {
	var updates []models.Update
	err := s.repo.EditStructure(ctx, args.CourseID, func(st *models.CourseStructure, w repository.CourseWriter) error {
		t := buildTree(st)
		var err error
		switch args.Action {
		case models.ActionCmMove:
			updates, err = s.cmMove(ctx, t, w, args)
		case models.ActionSectionMove:
			updates, err = s.sectionMove(ctx, t, w, args)
		case models.ActionCmHide, models.ActionCmShow:
			updates, err = s.cmVisibility(ctx, t, w, args.IDs, args.Action == models.ActionCmShow)
		default:
			updates, err = s.sectionVisibility(ctx, t, w, args.IDs, args.Action == models.ActionSectionShow)
		}
		return err
	})
	if errors.Is(err, repository.ErrCourseNotFound) {
		return nil, fmt.Errorf("%w: курс %d", ErrNotFound, args.CourseID)
	}
	if err != nil {
		return nil, err
	}
	return updates, nil
}

// GetState — полный снимок курса для первичной загрузки редактора.
func (s *CourseEditorService) GetState(ctx context.Context, courseID int) (*models.CourseState, error) {
	t, err := s.load(ctx, courseID)
	if err != nil {
		return nil, err
	}
	state := &models.CourseState{
		Course:   t.courseFields(),
		Sections: make([]models.Fields, 0, len(t.sections)),
		Modules:  make([]models.Fields, 0, len(t.module)),
	}
	for _, sec := range t.sections {
		state.Sections = append(state.Sections, t.sectionFields(sec.ID, s.sanitize))
		for _, cmid := range t.cmlist[sec.ID] {
			state.Modules = append(state.Modules, t.cmFields(cmid))
		}
	}
	return state, nil
}

func (s *CourseEditorService) cmMove(ctx context.Context, t *courseTree, w repository.CourseWriter, args models.UpdateCourseArgs) ([]models.Update, error) {
	var targetSection, targetCm int
	if args.TargetSectionID != nil {
		targetSection = *args.TargetSectionID
	}
	if args.TargetCmID != nil {
		targetCm = *args.TargetCmID
	}
	placements, changed, err := t.moveModules(args.IDs, targetSection, targetCm)
	if err != nil {
		return nil, err
	}
	if err := w.SaveModulePlacements(ctx, placements); err != nil {
		return nil, err
	}

	updates := make([]models.Update, 0, len(args.IDs)+len(changed))
	for _, id := range uniqueIDs(args.IDs) {
		updates = append(updates, models.Update{Action: models.ActionUpdate, Name: "cm", Fields: t.cmFields(id)})
	}
	for _, sid := range changed {
		updates = append(updates, models.Update{Action: models.ActionUpdate, Name: "section", Fields: t.sectionFields(sid, s.sanitize)})
	}
	return updates, nil
}

func (s *CourseEditorService) sectionMove(ctx context.Context, t *courseTree, w repository.CourseWriter, args models.UpdateCourseArgs) ([]models.Update, error) {
	if args.TargetSectionID == nil {
		return nil, fmt.Errorf("%w: нужен targetsectionid", ErrInvalidArgument)
	}
	placements, err := t.moveSections(args.IDs, *args.TargetSectionID)
	if err != nil {
		return nil, err
	}
	if err := w.SaveSectionPlacements(ctx, placements); err != nil {
		return nil, err
	}

	updates := make([]models.Update, 0, len(placements)+1)
	for _, p := range placements {
		updates = append(updates, models.Update{Action: models.ActionUpdate, Name: "section", Fields: t.sectionFields(p.SectionID, s.sanitize)})
		for _, cmid := range t.cmlist[p.SectionID] {
			updates = append(updates, models.Update{Action: models.ActionUpdate, Name: "cm", Fields: t.cmFields(cmid)})
		}
	}
	updates = append(updates, models.Update{Action: models.ActionUpdate, Name: "course", Fields: t.courseFields()})
	return updates, nil
}

// cmState: для неизвестных id отдаём delete, чтобы клиент убрал устаревшие модули.
func (s *CourseEditorService) cmState(t *courseTree, ids []int) ([]models.Update, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: не переданы модули", ErrInvalidArgument)
	}
	var updates []models.Update
	sections := map[int]bool{}
	var sectionOrder []int
	for _, id := range ids {
		m, ok := t.module[id]
		if !ok {
			updates = append(updates, models.Update{Action: models.ActionDelete, Name: "cm", Fields: models.Fields{"id": id}})
			continue
		}
		updates = append(updates, models.Update{Action: models.ActionUpdate, Name: "cm", Fields: t.cmFields(id)})
		if !sections[m.SectionID] {
			sections[m.SectionID] = true
			sectionOrder = append(sectionOrder, m.SectionID)
		}
	}
	for _, sid := range sectionOrder {
		updates = append(updates, models.Update{Action: models.ActionUpdate, Name: "section", Fields: t.sectionFields(sid, s.sanitize)})
	}
	return updates, nil
}

func (s *CourseEditorService) sectionState(t *courseTree, ids []int) ([]models.Update, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: не переданы разделы", ErrInvalidArgument)
	}
	var updates []models.Update
	for _, id := range ids {
		if _, ok := t.section[id]; !ok {
			updates = append(updates, models.Update{Action: models.ActionDelete, Name: "section", Fields: models.Fields{"id": id}})
			continue
		}
		updates = append(updates, models.Update{Action: models.ActionUpdate, Name: "section", Fields: t.sectionFields(id, s.sanitize)})
		for _, cmid := range t.cmlist[id] {
			updates = append(updates, models.Update{Action: models.ActionUpdate, Name: "cm", Fields: t.cmFields(cmid)})
		}
	}
	return updates, nil
}

func (s *CourseEditorService) courseState(t *courseTree) []models.Update {
	updates := []models.Update{{Action: models.ActionUpdate, Name: "course", Fields: t.courseFields()}}
	for _, sec := range t.sections {
		updates = append(updates, models.Update{Action: models.ActionUpdate, Name: "section", Fields: t.sectionFields(sec.ID, s.sanitize)})
	}
	for _, sec := range t.sections {
		for _, cmid := range t.cmlist[sec.ID] {
			updates = append(updates, models.Update{Action: models.ActionUpdate, Name: "cm", Fields: t.cmFields(cmid)})
		}
	}
	return updates
}

func (s *CourseEditorService) cmVisibility(ctx context.Context, t *courseTree, w repository.CourseWriter, ids []int, visible bool) ([]models.Update, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: не переданы модули", ErrInvalidArgument)
	}
	for _, id := range ids {
		if _, ok := t.module[id]; !ok {
			return nil, fmt.Errorf("%w: модуль %d не найден в курсе", ErrInvalidArgument, id)
		}
	}
	if err := w.SetModulesVisible(ctx, ids, visible); err != nil {
		return nil, err
	}
	updates := make([]models.Update, 0, len(ids))
	for _, id := range ids {
		t.module[id].Visible = visible
		updates = append(updates, models.Update{Action: models.ActionUpdate, Name: "cm", Fields: t.cmFields(id)})
	}
	return updates, nil
}

// sectionVisibility меняет видимость разделов; модули раздела тоже уходят в ответ,
// потому что от раздела зависит их uservisible.
func (s *CourseEditorService) sectionVisibility(ctx context.Context, t *courseTree, w repository.CourseWriter, ids []int, visible bool) ([]models.Update, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: не переданы разделы", ErrInvalidArgument)
	}
	for _, id := range ids {
		sec, ok := t.section[id]
		if !ok {
			return nil, fmt.Errorf("%w: раздел %d не найден в курсе", ErrInvalidArgument, id)
		}
		if sec.Number == 0 && !visible {
			return nil, fmt.Errorf("%w: общий раздел нельзя скрыть", ErrInvalidArgument)
		}
	}
	if err := w.SetSectionsVisible(ctx, ids, visible); err != nil {
		return nil, err
	}
	var updates []models.Update
	for _, id := range ids {
		t.section[id].Visible = visible
		updates = append(updates, models.Update{Action: models.ActionUpdate, Name: "section", Fields: t.sectionFields(id, s.sanitize)})
		for _, cmid := range t.cmlist[id] {
			updates = append(updates, models.Update{Action: models.ActionUpdate, Name: "cm", Fields: t.cmFields(cmid)})
		}
	}
	return updates, nil
}
