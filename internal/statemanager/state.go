// Package statemanager держит клиентское зеркало структуры курса.
//
// Состояние меняется только через ProcessUpdates: список записей применяется
// целиком и по порядку, и лишь после этого вызываются подписчики.
package statemanager

import (
	"reflect"
	"sort"
	"strconv"
	"sync"

	"courseeditor/internal/logger"
	"courseeditor/internal/metrics"
	"courseeditor/internal/models"

	"go.uber.org/zap"
)

// Policy — правило согласования записей update.
type Policy int

const (
	// PolicyDefault: update неизвестной сущности отбрасывается.
	PolicyDefault Policy = iota
	// PolicyForceUpdate: update неизвестной сущности вставляет её целиком.
	PolicyForceUpdate
)

// Stats — итог применения одного списка.
type Stats struct {
	Created int
	Updated int
	Deleted int
	Missed  int
}

type StateManager struct {
	mu       sync.RWMutex
	entities map[string]map[int]models.Fields
	bulk     BulkState

	registry
}

func New() *StateManager {
	return &StateManager{
		entities: make(map[string]map[int]models.Fields),
	}
}

// Get возвращает копию сущности name с указанным id.
func (sm *StateManager) Get(name string, id int) (models.Fields, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	f, ok := sm.entities[name][id]
	if !ok {
		return nil, false
	}
	return f.Clone(), true
}

// All возвращает копии всех сущностей name, отсортированные по id.
func (sm *StateManager) All(name string) []models.Fields {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	ids := sm.idsLocked(name)
	out := make([]models.Fields, 0, len(ids))
	for _, id := range ids {
		out = append(out, sm.entities[name][id].Clone())
	}
	return out
}

// Has сообщает, известна ли сущность.
func (sm *StateManager) Has(name string, id int) bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	_, ok := sm.entities[name][id]
	return ok
}

func (sm *StateManager) idsLocked(name string) []int {
	ids := make([]int, 0, len(sm.entities[name]))
	for id := range sm.entities[name] {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// ProcessUpdates применяет записи по порядку. Подписчики вызываются после
// применения всего списка, вне блокировки.
func (sm *StateManager) ProcessUpdates(updates []models.Update, policy Policy) Stats {
	var (
		stats  Stats
		events []Event
	)

	sm.mu.Lock()
	for _, u := range updates {
		id, ok := u.Fields.ID()
		if !ok {
			// DecodeUpdates такое не пропустит; сюда попадают только записи, собранные вручную
			logger.Log.Warn("statemanager: запись без id пропущена", zap.String("name", u.Name), zap.Stringer("action", u.Action))
			stats.Missed++
			continue
		}

		switch u.Action {
		case models.ActionCreate:
			events = append(events, sm.createLocked(u.Name, id, u.Fields)...)
			stats.Created++
		case models.ActionUpdate:
			current, exists := sm.entities[u.Name][id]
			switch {
			case exists:
				evs := sm.mergeLocked(u.Name, id, current, u.Fields)
				events = append(events, evs...)
				stats.Updated++
			case policy == PolicyForceUpdate:
				events = append(events, sm.createLocked(u.Name, id, u.Fields)...)
				stats.Created++
			default:
				logger.Log.Debug("statemanager: update для неизвестной сущности отброшен",
					zap.String("name", u.Name), zap.Int("id", id))
				metrics.ReconciliationMiss(u.Name)
				stats.Missed++
			}
		case models.ActionDelete:
			if evs, ok := sm.deleteLocked(u.Name, id); ok {
				events = append(events, evs...)
				stats.Deleted++
			}
		default:
			logger.Log.Warn("statemanager: неизвестное действие", zap.Stringer("action", u.Action))
			stats.Missed++
		}
	}
	if len(events) > 0 {
		events = append(events, Event{Topic: TopicStateUpdated})
	}
	sm.mu.Unlock()

	sm.dispatch(events)
	return stats
}

// createLocked: create для существующего id заменяет сущность целиком.
func (sm *StateManager) createLocked(name string, id int, fields models.Fields) []Event {
	bucket, ok := sm.entities[name]
	if !ok {
		bucket = make(map[int]models.Fields)
		sm.entities[name] = bucket
	}
	stored := fields.Clone()
	bucket[id] = stored
	snapshot := stored.Clone()
	return []Event{
		{Topic: name + ":created", Action: models.ActionCreate, Name: name, ID: id, Fields: snapshot},
		{Topic: entityTopic(name, id) + ":created", Action: models.ActionCreate, Name: name, ID: id, Fields: snapshot},
	}
}

func (sm *StateManager) mergeLocked(name string, id int, current, fields models.Fields) []Event {
	var changed []string
	for k, v := range fields {
		if old, ok := current[k]; ok && reflect.DeepEqual(old, v) {
			continue
		}
		changed = append(changed, k)
	}
	if len(changed) == 0 {
		return nil
	}
	sort.Strings(changed)

	for _, k := range changed {
		current[k] = models.CloneValue(fields[k])
	}
	snapshot := current.Clone()

	events := []Event{
		{Topic: name + ":updated", Action: models.ActionUpdate, Name: name, ID: id, Fields: snapshot},
		{Topic: entityTopic(name, id) + ":updated", Action: models.ActionUpdate, Name: name, ID: id, Fields: snapshot},
	}
	for _, k := range changed {
		events = append(events,
			Event{Topic: name + "." + k + ":updated", Action: models.ActionUpdate, Name: name, ID: id, Field: k, Fields: snapshot},
			Event{Topic: entityTopic(name, id) + "." + k + ":updated", Action: models.ActionUpdate, Name: name, ID: id, Field: k, Fields: snapshot},
		)
	}
	return events
}

func (sm *StateManager) deleteLocked(name string, id int) ([]Event, bool) {
	current, ok := sm.entities[name][id]
	if !ok {
		return nil, false
	}
	delete(sm.entities[name], id)

	events := []Event{
		{Topic: name + ":deleted", Action: models.ActionDelete, Name: name, ID: id, Fields: current},
		{Topic: entityTopic(name, id) + ":deleted", Action: models.ActionDelete, Name: name, ID: id, Fields: current},
	}
	if sm.bulk.SelectedType == name && sm.bulk.remove(id) {
		events = append(events, sm.bulkEventLocked())
	}
	return events, true
}

func entityTopic(name string, id int) string {
	return name + "[" + strconv.Itoa(id) + "]"
}
