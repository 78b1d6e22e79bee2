// Package mutations переводит действия редактора в вызовы вебсервиса и
// применяет полученные записи к статусу курса.
package mutations

import (
	"context"
	"time"

	"courseeditor/internal/logger"
	"courseeditor/internal/models"
	"courseeditor/internal/statemanager"
	"courseeditor/internal/webservice"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var (
	// ErrInvalidArgument возвращается до любого обращения к вебсервису.
	ErrInvalidArgument = errors.New("некорректные аргументы")
	ErrExternalService = webservice.ErrExternalService
)

// StateManager — то, что диспетчеру нужно от зеркала курса.
type StateManager interface {
	ProcessUpdates(updates []models.Update, policy statemanager.Policy) statemanager.Stats
	Bulk() statemanager.BulkState
}

// MoveTarget — куда переносить модули. CmID важнее SectionID.
type MoveTarget struct {
	SectionID int
	CmID      int
}

type Dispatcher struct {
	caller   webservice.Caller
	courseID int
	seq      *Sequencer
}

type Option func(*Dispatcher)

// WithSequencer включает очередь: одна мутация курса в полёте, остальные ждут.
func WithSequencer(s *Sequencer) Option {
	return func(d *Dispatcher) { d.seq = s }
}

func NewDispatcher(caller webservice.Caller, courseID int, opts ...Option) *Dispatcher {
	d := &Dispatcher{caller: caller, courseID: courseID}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Dispatcher) CourseID() int { return d.courseID }

// MoveModules переносит модули в раздел (в конец) или ставит их перед модулем target.CmID.
func (d *Dispatcher) MoveModules(ctx context.Context, sm StateManager, cmIDs []int, target MoveTarget) error {
	if err := checkIDs(cmIDs); err != nil {
		return err
	}
	args := d.args(models.ActionCmMove, cmIDs)
	switch {
	case target.CmID > 0:
		args.TargetCmID = &target.CmID
	case target.SectionID > 0:
		args.TargetSectionID = &target.SectionID
	default:
		return errors.Wrap(ErrInvalidArgument, "нужен targetsectionid или targetcmid")
	}
	return d.mutate(ctx, sm, args, statemanager.PolicyDefault)
}

// MoveSections ставит разделы сразу после targetSectionID.
func (d *Dispatcher) MoveSections(ctx context.Context, sm StateManager, sectionIDs []int, targetSectionID int) error {
	if err := checkIDs(sectionIDs); err != nil {
		return err
	}
	if targetSectionID <= 0 {
		return errors.Wrap(ErrInvalidArgument, "нужен targetsectionid")
	}
	args := d.args(models.ActionSectionMove, sectionIDs)
	args.TargetSectionID = &targetSectionID
	return d.mutate(ctx, sm, args, statemanager.PolicyDefault)
}

// RefreshModules перечитывает модули; неизвестные локально будут добавлены.
func (d *Dispatcher) RefreshModules(ctx context.Context, sm StateManager, cmIDs []int) error {
	if err := checkIDs(cmIDs); err != nil {
		return err
	}
	return d.mutate(ctx, sm, d.args(models.ActionCmState, cmIDs), statemanager.PolicyForceUpdate)
}

func (d *Dispatcher) RefreshSections(ctx context.Context, sm StateManager, sectionIDs []int) error {
	if err := checkIDs(sectionIDs); err != nil {
		return err
	}
	return d.mutate(ctx, sm, d.args(models.ActionSectionState, sectionIDs), statemanager.PolicyForceUpdate)
}

func (d *Dispatcher) RefreshCourse(ctx context.Context, sm StateManager) error {
	return d.mutate(ctx, sm, d.args(models.ActionCourseState, nil), statemanager.PolicyForceUpdate)
}

func (d *Dispatcher) HideModules(ctx context.Context, sm StateManager, cmIDs []int) error {
	return d.visibility(ctx, sm, models.ActionCmHide, cmIDs)
}

func (d *Dispatcher) ShowModules(ctx context.Context, sm StateManager, cmIDs []int) error {
	return d.visibility(ctx, sm, models.ActionCmShow, cmIDs)
}

func (d *Dispatcher) HideSections(ctx context.Context, sm StateManager, sectionIDs []int) error {
	return d.visibility(ctx, sm, models.ActionSectionHide, sectionIDs)
}

func (d *Dispatcher) ShowSections(ctx context.Context, sm StateManager, sectionIDs []int) error {
	return d.visibility(ctx, sm, models.ActionSectionShow, sectionIDs)
}

// HideSelection скрывает всё, что выбрано в режиме массового редактирования.
func (d *Dispatcher) HideSelection(ctx context.Context, sm StateManager) error {
	return d.selection(ctx, sm, models.ActionCmHide, models.ActionSectionHide)
}

func (d *Dispatcher) ShowSelection(ctx context.Context, sm StateManager) error {
	return d.selection(ctx, sm, models.ActionCmShow, models.ActionSectionShow)
}

// LoadInitialState загружает полный снимок курса.
func (d *Dispatcher) LoadInitialState(ctx context.Context, sm StateManager) error {
	release, err := d.seq.acquire(ctx, d.courseID)
	if err != nil {
		return err
	}
	defer release()

	data, err := d.caller.Call(ctx, models.MethodGetState, models.GetStateArgs{CourseID: d.courseID})
	if err != nil {
		return err
	}
	updates, err := models.DecodeState(data)
	if err != nil {
		return errors.Wrapf(ErrExternalService, "снимок курса %d: %v", d.courseID, err)
	}
	stats := sm.ProcessUpdates(updates, statemanager.PolicyDefault)
	logger.WithCtx(ctx).Info("mutations: состояние курса загружено",
		zap.Int("course_id", d.courseID), zap.Int("entities", stats.Created))
	return nil
}

func (d *Dispatcher) visibility(ctx context.Context, sm StateManager, action string, ids []int) error {
	if err := checkIDs(ids); err != nil {
		return err
	}
	return d.mutate(ctx, sm, d.args(action, ids), statemanager.PolicyDefault)
}

func (d *Dispatcher) selection(ctx context.Context, sm StateManager, cmAction, sectionAction string) error {
	b := sm.Bulk()
	if !b.Enabled || len(b.Selection) == 0 {
		return errors.Wrap(ErrInvalidArgument, "ничего не выбрано")
	}
	action := cmAction
	if b.SelectedType == "section" {
		action = sectionAction
	}
	return d.visibility(ctx, sm, action, b.Selection)
}

func (d *Dispatcher) args(action string, ids []int) models.UpdateCourseArgs {
	return models.UpdateCourseArgs{Action: action, CourseID: d.courseID, IDs: ids}
}

// mutate выполняет вызов и применяет ответ. Ответ разбирается целиком до применения,
// поэтому при ошибке состояние не меняется.
func (d *Dispatcher) mutate(ctx context.Context, sm StateManager, args models.UpdateCourseArgs, policy statemanager.Policy) error {
	release, err := d.seq.acquire(ctx, d.courseID)
	if err != nil {
		return err
	}
	defer release()

	log := logger.WithCtx(ctx).With(zap.String("action", args.Action), zap.Int("course_id", d.courseID))
	start := time.Now()

	data, err := d.caller.Call(ctx, models.MethodUpdateCourse, args)
	if err != nil {
		log.Warn("mutations: вызов не удался", zap.Error(err))
		return err
	}
	updates, err := models.DecodeUpdates(data)
	if err != nil {
		log.Warn("mutations: некорректный ответ", zap.Error(err))
		return errors.Wrapf(ErrExternalService, "%s: %v", args.Action, err)
	}

	stats := sm.ProcessUpdates(updates, policy)
	log.Info("mutations: выполнено",
		zap.Int("created", stats.Created),
		zap.Int("updated", stats.Updated),
		zap.Int("deleted", stats.Deleted),
		zap.Int("missed", stats.Missed),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

func checkIDs(ids []int) error {
	if len(ids) == 0 {
		return errors.Wrap(ErrInvalidArgument, "пустой список id")
	}
	for _, id := range ids {
		if id <= 0 {
			return errors.Wrapf(ErrInvalidArgument, "некорректный id %d", id)
		}
	}
	return nil
}
