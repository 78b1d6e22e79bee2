package statemanager

import (
	"errors"
	"fmt"
)

var (
	ErrBulkDisabled     = errors.New("массовое редактирование выключено")
	ErrInvalidSelection = errors.New("выбирать можно только section или cm")
	ErrUnknownEntity    = errors.New("сущность неизвестна")
)

// BulkState — состояние массового выбора. Не сохраняется на сервере.
type BulkState struct {
	Enabled      bool   `json:"enabled"`
	SelectedType string `json:"selectedtype,omitempty"`
	Selection    []int  `json:"selection"`
}

func (b *BulkState) has(id int) bool {
	for _, v := range b.Selection {
		if v == id {
			return true
		}
	}
	return false
}

func (b *BulkState) remove(id int) bool {
	for i, v := range b.Selection {
		if v == id {
			b.Selection = append(b.Selection[:i], b.Selection[i+1:]...)
			if len(b.Selection) == 0 {
				b.Selection = nil
				b.SelectedType = ""
			}
			return true
		}
	}
	return false
}

// clone сохраняет nil: пустой выбор всегда совпадает с нулевым BulkState.
func (b BulkState) clone() BulkState {
	if b.Selection != nil {
		b.Selection = append([]int(nil), b.Selection...)
	}
	return b
}

// Bulk возвращает копию состояния массового выбора.
func (sm *StateManager) Bulk() BulkState {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.bulk.clone()
}

func (sm *StateManager) bulkEventLocked() Event {
	b := sm.bulk.clone()
	return Event{Topic: TopicBulkUpdated, Bulk: &b}
}

// SetBulkEnabled включает/выключает массовое редактирование; выключение сбрасывает выбор.
func (sm *StateManager) SetBulkEnabled(enabled bool) {
	sm.mu.Lock()
	if sm.bulk.Enabled == enabled {
		sm.mu.Unlock()
		return
	}
	sm.bulk = BulkState{Enabled: enabled}
	ev := sm.bulkEventLocked()
	sm.mu.Unlock()

	sm.dispatch([]Event{ev})
}

// SelectEntities добавляет id к выбору. Выбор другого типа сбрасывает текущий.
// Неизвестный id отменяет всю операцию.
func (sm *StateManager) SelectEntities(name string, ids ...int) error {
	if name != "section" && name != "cm" {
		return fmt.Errorf("%w: %q", ErrInvalidSelection, name)
	}

	sm.mu.Lock()
	if !sm.bulk.Enabled {
		sm.mu.Unlock()
		return ErrBulkDisabled
	}
	for _, id := range ids {
		if _, ok := sm.entities[name][id]; !ok {
			sm.mu.Unlock()
			return fmt.Errorf("%w: %s %d", ErrUnknownEntity, name, id)
		}
	}
	if sm.bulk.SelectedType != name {
		sm.bulk.SelectedType = name
		sm.bulk.Selection = nil
	}
	for _, id := range ids {
		if !sm.bulk.has(id) {
			sm.bulk.Selection = append(sm.bulk.Selection, id)
		}
	}
	if len(sm.bulk.Selection) == 0 {
		sm.bulk.Selection = nil
		sm.bulk.SelectedType = ""
	}
	ev := sm.bulkEventLocked()
	sm.mu.Unlock()

	sm.dispatch([]Event{ev})
	return nil
}

// UnselectEntities убирает id из выбора; неизвестные id игнорируются.
func (sm *StateManager) UnselectEntities(ids ...int) {
	sm.mu.Lock()
	changed := false
	for _, id := range ids {
		if sm.bulk.remove(id) {
			changed = true
		}
	}
	if !changed {
		sm.mu.Unlock()
		return
	}
	ev := sm.bulkEventLocked()
	sm.mu.Unlock()

	sm.dispatch([]Event{ev})
}

func (sm *StateManager) ClearSelection() {
	sm.mu.Lock()
	if len(sm.bulk.Selection) == 0 {
		sm.mu.Unlock()
		return
	}
	sm.bulk.Selection = nil
	sm.bulk.SelectedType = ""
	ev := sm.bulkEventLocked()
	sm.mu.Unlock()

	sm.dispatch([]Event{ev})
}
