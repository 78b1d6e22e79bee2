package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// UpdateAction — тип изменения в записи обновления.
type UpdateAction int

const (
	ActionCreate UpdateAction = iota + 1
	ActionUpdate
	ActionDelete
)

func (a UpdateAction) String() string {
	switch a {
	case ActionCreate:
		return "create"
	case ActionUpdate:
		return "update"
	case ActionDelete:
		return "delete"
	default:
		return fmt.Sprintf("UpdateAction(%d)", int(a))
	}
}

func ParseUpdateAction(s string) (UpdateAction, error) {
	switch s {
	case "create":
		return ActionCreate, nil
	case "update":
		return ActionUpdate, nil
	case "delete":
		return ActionDelete, nil
	default:
		return 0, fmt.Errorf("неизвестное действие %q", s)
	}
}

func (a UpdateAction) MarshalJSON() ([]byte, error) {
	switch a {
	case ActionCreate, ActionUpdate, ActionDelete:
		return json.Marshal(a.String())
	default:
		return nil, fmt.Errorf("неизвестное действие %d", int(a))
	}
}

func (a *UpdateAction) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, err := ParseUpdateAction(s)
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// Fields — поля сущности. Числа после декодирования приводятся к int64 (целые) или float64.
type Fields map[string]any

// ID возвращает fields.id, если он есть и целый.
func (f Fields) ID() (int, bool) {
	v, ok := f["id"]
	if !ok {
		return 0, false
	}
	return toInt(v)
}

// Clone — глубокая копия, чтобы подписчики не могли менять хранилище.
func (f Fields) Clone() Fields {
	if f == nil {
		return nil
	}
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = CloneValue(v)
	}
	return out
}

// CloneValue копирует вложенные Fields и срезы; скаляры возвращаются как есть.
func CloneValue(v any) any {
	switch t := v.(type) {
	case Fields:
		return t.Clone()
	case map[string]any:
		return Fields(t).Clone()
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = CloneValue(t[i])
		}
		return out
	case []int:
		return append([]int(nil), t...)
	default:
		return v
	}
}

// Update — одна запись обновления {action, name, fields}.
type Update struct {
	Action UpdateAction `json:"action"`
	Name   string       `json:"name"`
	Fields Fields       `json:"fields"`
}

func (u *Update) UnmarshalJSON(data []byte) error {
	var raw struct {
		Action UpdateAction               `json:"action"`
		Name   string                     `json:"name"`
		Fields map[string]json.RawMessage `json:"fields"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Action == 0 {
		return fmt.Errorf("в записи обновления нет action")
	}
	if raw.Name == "" {
		return fmt.Errorf("в записи обновления нет name")
	}
	fields := make(Fields, len(raw.Fields))
	for k, v := range raw.Fields {
		val, err := decodeValue(v)
		if err != nil {
			return fmt.Errorf("поле %q: %w", k, err)
		}
		fields[k] = val
	}
	if _, ok := fields.ID(); !ok {
		return fmt.Errorf("запись %s %s без числового id", raw.Action, raw.Name)
	}
	u.Action, u.Name, u.Fields = raw.Action, raw.Name, fields
	return nil
}

// DecodeUpdates разбирает JSON-список записей обновления.
func DecodeUpdates(data []byte) ([]Update, error) {
	var out []Update
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func decodeValue(raw json.RawMessage) (any, error) {
	var v any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return normalize(v), nil
}

func normalize(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		f, _ := t.Float64()
		return f
	case map[string]any:
		out := make(Fields, len(t))
		for k, vv := range t {
			out[k] = normalize(vv)
		}
		return out
	case []any:
		for i := range t {
			t[i] = normalize(t[i])
		}
		return t
	default:
		return v
	}
}

func toInt(v any) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case int64:
		return int(t), true
	case float64:
		if t != math.Trunc(t) {
			return 0, false
		}
		return int(t), true
	case json.Number:
		i, err := t.Int64()
		return int(i), err == nil
	default:
		return 0, false
	}
}

// IntList приводит значение поля (cmlist, sectionlist) к []int.
func IntList(v any) []int {
	switch t := v.(type) {
	case []int:
		return append([]int(nil), t...)
	case []any:
		out := make([]int, 0, len(t))
		for _, item := range t {
			if i, ok := toInt(item); ok {
				out = append(out, i)
			}
		}
		return out
	default:
		return nil
	}
}

// DecodeState превращает ответ core_courseformat_get_state в список create-записей:
// курс, затем разделы, затем модули.
func DecodeState(data []byte) ([]Update, error) {
	var raw struct {
		Course   json.RawMessage   `json:"course"`
		Sections []json.RawMessage `json:"section"`
		Modules  []json.RawMessage `json:"cm"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	if len(raw.Course) == 0 {
		return nil, fmt.Errorf("в состоянии нет курса")
	}

	out := make([]Update, 0, 1+len(raw.Sections)+len(raw.Modules))
	add := func(name string, msg json.RawMessage) error {
		v, err := decodeValue(msg)
		if err != nil {
			return err
		}
		fields, ok := v.(Fields)
		if !ok {
			return fmt.Errorf("%s: ожидался объект", name)
		}
		if _, ok := fields.ID(); !ok {
			return fmt.Errorf("%s без числового id", name)
		}
		out = append(out, Update{Action: ActionCreate, Name: name, Fields: fields})
		return nil
	}
	if err := add("course", raw.Course); err != nil {
		return nil, err
	}
	for _, s := range raw.Sections {
		if err := add("section", s); err != nil {
			return nil, err
		}
	}
	for _, m := range raw.Modules {
		if err := add("cm", m); err != nil {
			return nil, err
		}
	}
	return out, nil
}
