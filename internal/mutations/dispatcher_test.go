package mutations

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"courseeditor/internal/models"
	"courseeditor/internal/statemanager"
	"courseeditor/internal/webservice"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	method string
	args   any
}

type fakeCaller struct {
	mu    sync.Mutex
	calls []call
	data  string
	err   error
}

func (f *fakeCaller) Call(_ context.Context, method string, args any) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{method: method, args: args})
	if f.err != nil {
		return nil, f.err
	}
	return []byte(f.data), nil
}

func (f *fakeCaller) lastArgs(t *testing.T) models.UpdateCourseArgs {
	t.Helper()
	require.NotEmpty(t, f.calls)
	args, ok := f.calls[len(f.calls)-1].args.(models.UpdateCourseArgs)
	require.True(t, ok)
	return args
}

func seededState() *statemanager.StateManager {
	sm := statemanager.New()
	sm.ProcessUpdates([]models.Update{
		{Action: models.ActionCreate, Name: "section", Fields: models.Fields{"id": int64(2), "cmlist": []any{int64(12)}}},
		{Action: models.ActionCreate, Name: "section", Fields: models.Fields{"id": int64(3), "cmlist": []any{}}},
		{Action: models.ActionCreate, Name: "cm", Fields: models.Fields{"id": int64(12), "sectionid": int64(2), "visible": true}},
		{Action: models.ActionCreate, Name: "cm", Fields: models.Fields{"id": int64(13), "sectionid": int64(2), "visible": true}},
	}, statemanager.PolicyDefault)
	return sm
}

func TestMoveModules_ToSection(t *testing.T) {
	fake := &fakeCaller{data: `[{"action":"update","name":"cm","fields":{"id":12,"sectionid":3}}]`}
	sm := seededState()

	err := NewDispatcher(fake, 5).MoveModules(context.Background(), sm, []int{12}, MoveTarget{SectionID: 3})
	require.NoError(t, err)

	require.Len(t, fake.calls, 1)
	assert.Equal(t, models.MethodUpdateCourse, fake.calls[0].method)
	args := fake.lastArgs(t)
	assert.Equal(t, models.ActionCmMove, args.Action)
	assert.Equal(t, 5, args.CourseID)
	assert.Equal(t, []int{12}, args.IDs)
	require.NotNil(t, args.TargetSectionID)
	assert.Equal(t, 3, *args.TargetSectionID)
	assert.Nil(t, args.TargetCmID)

	cm, ok := sm.Get("cm", 12)
	require.True(t, ok)
	assert.Equal(t, int64(3), cm["sectionid"])
}

func TestMoveModules_CmTargetWins(t *testing.T) {
	fake := &fakeCaller{data: `[]`}
	err := NewDispatcher(fake, 5).MoveModules(context.Background(), seededState(), []int{12}, MoveTarget{SectionID: 3, CmID: 13})
	require.NoError(t, err)

	args := fake.lastArgs(t)
	require.NotNil(t, args.TargetCmID)
	assert.Equal(t, 13, *args.TargetCmID)
	assert.Nil(t, args.TargetSectionID)
}

func TestInvalidArgumentsMakeNoCalls(t *testing.T) {
	ctx := context.Background()
	cases := map[string]func(d *Dispatcher, sm StateManager) error{
		"перенос модуля без цели": func(d *Dispatcher, sm StateManager) error {
			return d.MoveModules(ctx, sm, []int{12}, MoveTarget{})
		},
		"перенос без модулей": func(d *Dispatcher, sm StateManager) error {
			return d.MoveModules(ctx, sm, nil, MoveTarget{SectionID: 3})
		},
		"перенос раздела без цели": func(d *Dispatcher, sm StateManager) error {
			return d.MoveSections(ctx, sm, []int{2}, 0)
		},
		"отрицательный id": func(d *Dispatcher, sm StateManager) error {
			return d.RefreshModules(ctx, sm, []int{-4})
		},
		"скрытие пустого списка": func(d *Dispatcher, sm StateManager) error {
			return d.HideSections(ctx, sm, nil)
		},
		"скрытие без выбора": func(d *Dispatcher, sm StateManager) error {
			return d.HideSelection(ctx, sm)
		},
	}
	for name, fn := range cases {
		t.Run(name, func(t *testing.T) {
			fake := &fakeCaller{data: `[]`}
			err := fn(NewDispatcher(fake, 5), seededState())
			assert.ErrorIs(t, err, ErrInvalidArgument)
			assert.Empty(t, fake.calls)
		})
	}
}

func TestMoveSections(t *testing.T) {
	fake := &fakeCaller{data: `[
		{"action":"update","name":"section","fields":{"id":2,"number":2}},
		{"action":"update","name":"section","fields":{"id":3,"number":1}}
	]`}
	sm := seededState()

	require.NoError(t, NewDispatcher(fake, 5).MoveSections(context.Background(), sm, []int{2}, 3))

	args := fake.lastArgs(t)
	assert.Equal(t, models.ActionSectionMove, args.Action)
	require.NotNil(t, args.TargetSectionID)
	assert.Equal(t, 3, *args.TargetSectionID)

	sec, _ := sm.Get("section", 2)
	assert.Equal(t, int64(2), sec["number"])
}

func TestRefreshSections_InsertsUnknown(t *testing.T) {
	fake := &fakeCaller{data: `[{"action":"update","name":"section","fields":{"id":7,"number":4,"cmlist":[]}}]`}
	sm := seededState()
	require.False(t, sm.Has("section", 7))

	require.NoError(t, NewDispatcher(fake, 5).RefreshSections(context.Background(), sm, []int{7}))

	assert.Equal(t, models.ActionSectionState, fake.lastArgs(t).Action)
	sec, ok := sm.Get("section", 7)
	require.True(t, ok)
	assert.Equal(t, int64(4), sec["number"])
}

func TestMove_UnknownEntityIsDropped(t *testing.T) {
	fake := &fakeCaller{data: `[{"action":"update","name":"cm","fields":{"id":99,"sectionid":3}}]`}
	sm := seededState()

	require.NoError(t, NewDispatcher(fake, 5).MoveModules(context.Background(), sm, []int{99}, MoveTarget{SectionID: 3}))
	assert.False(t, sm.Has("cm", 99))
}

func TestRefreshCourse(t *testing.T) {
	fake := &fakeCaller{data: `[
		{"action":"update","name":"course","fields":{"id":5,"sectionlist":[2,3]}},
		{"action":"update","name":"cm","fields":{"id":14,"sectionid":3}}
	]`}
	sm := seededState()

	require.NoError(t, NewDispatcher(fake, 5).RefreshCourse(context.Background(), sm))
	args := fake.lastArgs(t)
	assert.Equal(t, models.ActionCourseState, args.Action)
	assert.Empty(t, args.IDs)
	assert.True(t, sm.Has("course", 5))
	assert.True(t, sm.Has("cm", 14))
}

func TestFailuresLeaveStateUntouched(t *testing.T) {
	cases := map[string]*fakeCaller{
		"ошибка вызова":        {err: &webservice.ServiceError{Code: "servererror"}},
		"не JSON":              {data: `<html>`},
		"запись без id":        {data: `[{"action":"update","name":"cm","fields":{"id":12}},{"action":"update","name":"cm","fields":{}}]`},
		"неизвестное действие": {data: `[{"action":"upsert","name":"cm","fields":{"id":12}}]`},
	}
	for name, fake := range cases {
		t.Run(name, func(t *testing.T) {
			sm := seededState()
			before := sm.All("cm")

			err := NewDispatcher(fake, 5).MoveModules(context.Background(), sm, []int{12}, MoveTarget{SectionID: 3})
			assert.ErrorIs(t, err, ErrExternalService)
			assert.Equal(t, before, sm.All("cm"))
		})
	}
}

func TestVisibility(t *testing.T) {
	fake := &fakeCaller{data: `[{"action":"update","name":"cm","fields":{"id":13,"visible":false}}]`}
	sm := seededState()
	d := NewDispatcher(fake, 5)

	require.NoError(t, d.HideModules(context.Background(), sm, []int{13}))
	assert.Equal(t, models.ActionCmHide, fake.lastArgs(t).Action)
	cm, _ := sm.Get("cm", 13)
	assert.Equal(t, false, cm["visible"])

	require.NoError(t, d.ShowModules(context.Background(), sm, []int{13}))
	assert.Equal(t, models.ActionCmShow, fake.lastArgs(t).Action)
	require.NoError(t, d.ShowSections(context.Background(), sm, []int{2}))
	assert.Equal(t, models.ActionSectionShow, fake.lastArgs(t).Action)
}

func TestSelection(t *testing.T) {
	fake := &fakeCaller{data: `[]`}
	sm := seededState()
	d := NewDispatcher(fake, 5)

	sm.SetBulkEnabled(true)
	require.NoError(t, sm.SelectEntities("section", 3, 2))
	require.NoError(t, d.HideSelection(context.Background(), sm))
	args := fake.lastArgs(t)
	assert.Equal(t, models.ActionSectionHide, args.Action)
	assert.Equal(t, []int{3, 2}, args.IDs)

	require.NoError(t, sm.SelectEntities("cm", 12))
	require.NoError(t, d.ShowSelection(context.Background(), sm))
	args = fake.lastArgs(t)
	assert.Equal(t, models.ActionCmShow, args.Action)
	assert.Equal(t, []int{12}, args.IDs)
}

func TestLoadInitialState(t *testing.T) {
	fake := &fakeCaller{data: `{"course":{"id":5,"sectionlist":[2]},
		"section":[{"id":2,"number":1,"cmlist":[12]}],
		"cm":[{"id":12,"sectionid":2,"visible":true}]}`}
	sm := statemanager.New()

	require.NoError(t, NewDispatcher(fake, 5).LoadInitialState(context.Background(), sm))

	require.Len(t, fake.calls, 1)
	assert.Equal(t, models.MethodGetState, fake.calls[0].method)
	assert.Equal(t, models.GetStateArgs{CourseID: 5}, fake.calls[0].args)
	assert.True(t, sm.Has("course", 5))
	assert.True(t, sm.Has("section", 2))
	assert.True(t, sm.Has("cm", 12))
}

type blockingCaller struct {
	inflight atomic.Int32
	peak     atomic.Int32
	release  chan struct{}
}

func (b *blockingCaller) Call(ctx context.Context, _ string, _ any) ([]byte, error) {
	n := b.inflight.Add(1)
	defer b.inflight.Add(-1)
	for {
		p := b.peak.Load()
		if n <= p || b.peak.CompareAndSwap(p, n) {
			break
		}
	}
	select {
	case <-b.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return []byte(`[]`), nil
}

func TestSequencer_OneMutationPerCourse(t *testing.T) {
	bc := &blockingCaller{release: make(chan struct{})}
	seq := NewSequencer()
	sm := seededState()

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d := NewDispatcher(bc, 5, WithSequencer(seq))
			assert.NoError(t, d.RefreshModules(context.Background(), sm, []int{12}))
		}()
	}
	for i := 0; i < 3; i++ {
		bc.release <- struct{}{}
	}
	wg.Wait()
	assert.Equal(t, int32(1), bc.peak.Load())
}

func TestSequencer_WaitHonoursContext(t *testing.T) {
	bc := &blockingCaller{release: make(chan struct{})}
	seq := NewSequencer()
	sm := seededState()
	d := NewDispatcher(bc, 5, WithSequencer(seq))

	done := make(chan error, 1)
	go func() { done <- d.RefreshModules(context.Background(), sm, []int{12}) }()
	require.Eventually(t, func() bool { return bc.inflight.Load() == 1 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := d.RefreshModules(ctx, sm, []int{12})
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	// другой курс не ждёт
	other := NewDispatcher(&fakeCaller{data: `[]`}, 6, WithSequencer(seq))
	assert.NoError(t, other.RefreshCourse(context.Background(), sm))

	bc.release <- struct{}{}
	assert.NoError(t, <-done)
}
