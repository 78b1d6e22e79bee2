package webservice

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"courseeditor/internal/models"
	"courseeditor/internal/reqctx"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "tok", 2*time.Second)
}

func TestCall_Success(t *testing.T) {
	var got []models.ServiceCall
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, servicePath, r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "rid-1", r.Header.Get("X-Request-ID"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode([]models.ServiceResponse{
			{Data: `[{"action":"update","name":"cm","fields":{"id":12,"sectionid":3}}]`},
		})
	})

	ctx := reqctx.WithRequestID(context.Background(), "rid-1")
	target := 3
	data, err := c.Call(ctx, models.MethodUpdateCourse, models.UpdateCourseArgs{
		Action: models.ActionCmMove, CourseID: 5, IDs: []int{12}, TargetSectionID: &target,
	})
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, models.MethodUpdateCourse, got[0].MethodName)
	assert.JSONEq(t, `{"action":"cm_move","courseid":5,"ids":[12],"targetsectionid":3}`, string(got[0].Args))

	updates, err := models.DecodeUpdates(data)
	require.NoError(t, err)
	require.Len(t, updates, 1)
	assert.Equal(t, int64(3), updates[0].Fields["sectionid"])
}

func TestCall_ServiceError(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"error":true,"exception":{"errorcode":"notfound","message":"курс не найден"}}]`))
	})

	_, err := c.Call(context.Background(), models.MethodGetState, models.GetStateArgs{CourseID: 9})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrExternalService))

	var se *ServiceError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "notfound", se.Code)
}

func TestCall_Failures(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"статус 500": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		},
		"не JSON": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`<html>`))
		},
		"пустой пакет": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`[]`))
		},
		"ошибка без описания": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`[{"error":true}]`))
		},
	}
	for name, h := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := newServer(t, h).Call(context.Background(), models.MethodGetState, models.GetStateArgs{CourseID: 5})
			assert.ErrorIs(t, err, ErrExternalService)
		})
	}
}

func TestCall_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(url, "", time.Second).Call(context.Background(), models.MethodGetState, models.GetStateArgs{CourseID: 5})
	assert.ErrorIs(t, err, ErrExternalService)

	var te *TransportError
	assert.True(t, errors.As(err, &te))
}

func TestCall_ContextCanceled(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"error":false,"data":"[]"}]`))
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Call(ctx, models.MethodGetState, models.GetStateArgs{CourseID: 5})
	assert.ErrorIs(t, err, ErrExternalService)
	assert.ErrorIs(t, err, context.Canceled)
}
