package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeUpdates(t *testing.T) {
	updates, err := DecodeUpdates([]byte(`[
		{"action":"update","name":"cm","fields":{"id":12,"sectionid":3,"visible":true}},
		{"action":"create","name":"section","fields":{"id":7,"cmlist":[12,13],"ratio":0.5}},
		{"action":"delete","name":"cm","fields":{"id":9}}
	]`))
	require.NoError(t, err)
	require.Len(t, updates, 3)

	assert.Equal(t, ActionUpdate, updates[0].Action)
	assert.Equal(t, int64(3), updates[0].Fields["sectionid"])
	assert.Equal(t, true, updates[0].Fields["visible"])

	assert.Equal(t, ActionCreate, updates[1].Action)
	assert.Equal(t, []int{12, 13}, IntList(updates[1].Fields["cmlist"]))
	assert.Equal(t, 0.5, updates[1].Fields["ratio"])

	id, ok := updates[2].Fields.ID()
	assert.True(t, ok)
	assert.Equal(t, 9, id)
}

func TestDecodeUpdates_Rejects(t *testing.T) {
	for name, payload := range map[string]string{
		"неизвестное действие": `[{"action":"put","name":"cm","fields":{"id":1}}]`,
		"без имени":            `[{"action":"update","fields":{"id":1}}]`,
		"без id":               `[{"action":"update","name":"cm","fields":{"name":"x"}}]`,
		"дробный id":           `[{"action":"update","name":"cm","fields":{"id":1.5}}]`,
		"не массив":            `{"action":"update"}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeUpdates([]byte(payload))
			assert.Error(t, err)
		})
	}
}

func TestUpdateAction_JSON(t *testing.T) {
	data, err := json.Marshal(Update{Action: ActionDelete, Name: "cm", Fields: Fields{"id": 1}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"action":"delete","name":"cm","fields":{"id":1}}`, string(data))

	_, err = json.Marshal(Update{Action: UpdateAction(42), Name: "cm"})
	assert.Error(t, err)
}

func TestFieldsClone_IsDeep(t *testing.T) {
	orig := Fields{"id": int64(1), "cmlist": []any{int64(1), int64(2)}, "nested": Fields{"a": int64(1)}}
	cp := orig.Clone()
	cp["cmlist"].([]any)[0] = int64(99)
	cp["nested"].(Fields)["a"] = int64(2)

	assert.Equal(t, int64(1), orig["cmlist"].([]any)[0])
	assert.Equal(t, int64(1), orig["nested"].(Fields)["a"])
}

func TestDecodeState(t *testing.T) {
	updates, err := DecodeState([]byte(`{
		"course":{"id":5,"sectionlist":[1,2]},
		"section":[{"id":1,"cmlist":[10]},{"id":2,"cmlist":[]}],
		"cm":[{"id":10,"sectionid":1}]
	}`))
	require.NoError(t, err)
	require.Len(t, updates, 4)
	assert.Equal(t, "course", updates[0].Name)
	assert.Equal(t, "cm", updates[3].Name)
	for _, u := range updates {
		assert.Equal(t, ActionCreate, u.Action)
	}

	_, err = DecodeState([]byte(`{"section":[]}`))
	assert.Error(t, err)
}
