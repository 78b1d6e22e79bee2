package statemanager

import (
	"sync"

	"courseeditor/internal/logger"
	"courseeditor/internal/models"

	"go.uber.org/zap"
)

const (
	// TopicStateUpdated — один раз после каждого непустого списка обновлений.
	TopicStateUpdated = "state:updated"
	// TopicBulkUpdated — изменилось состояние массового выбора.
	TopicBulkUpdated = "bulk:updated"
)

// Event передаётся подписчику. Fields — снимок сущности после применения
// (для delete — последнее известное состояние); подписчик не должен его менять.
type Event struct {
	Topic  string
	Action models.UpdateAction
	Name   string
	ID     int
	Field  string
	Fields models.Fields
	Bulk   *BulkState
}

type Handler func(Event)

type Subscription struct {
	r     *registry
	topic string
	id    uint64
}

// Unsubscribe можно вызывать повторно и из обработчика.
func (s *Subscription) Unsubscribe() {
	s.r.remove(s.topic, s.id)
}

type subscriber struct {
	id uint64
	fn Handler
}

type registry struct {
	subsMu sync.Mutex
	subs   map[string][]subscriber
	nextID uint64
}

// Subscribe регистрирует обработчик на тему вида "cm:updated", "section[7]:created",
// "cm.sectionid:updated", "cm[12].visible:updated", "state:updated" или "bulk:updated".
func (r *registry) Subscribe(topic string, fn Handler) *Subscription {
	r.subsMu.Lock()
	defer r.subsMu.Unlock()

	if r.subs == nil {
		r.subs = make(map[string][]subscriber)
	}
	r.nextID++
	r.subs[topic] = append(r.subs[topic], subscriber{id: r.nextID, fn: fn})
	return &Subscription{r: r, topic: topic, id: r.nextID}
}

func (r *registry) remove(topic string, id uint64) {
	r.subsMu.Lock()
	defer r.subsMu.Unlock()

	list := r.subs[topic]
	for i, s := range list {
		if s.id == id {
			r.subs[topic] = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if len(r.subs[topic]) == 0 {
		delete(r.subs, topic)
	}
}

func (r *registry) snapshot(topic string) []subscriber {
	r.subsMu.Lock()
	defer r.subsMu.Unlock()
	return append([]subscriber(nil), r.subs[topic]...)
}

// dispatch вызывает подписчиков синхронно, в порядке событий.
// Паника в обработчике не мешает остальным.
func (r *registry) dispatch(events []Event) {
	for _, ev := range events {
		for _, s := range r.snapshot(ev.Topic) {
			callSafely(s.fn, ev)
		}
	}
}

func callSafely(fn Handler, ev Event) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Log.Error("statemanager: паника в подписчике", zap.String("topic", ev.Topic), zap.Any("panic", rec))
		}
	}()
	fn(ev)
}
