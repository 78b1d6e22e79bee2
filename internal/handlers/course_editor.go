package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"courseeditor/internal/logger"
	"courseeditor/internal/models"
	"courseeditor/internal/services"
	helpers "courseeditor/internal/utils/helpers"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const maxBatchCalls = 50

type CourseEditor interface {
	Execute(ctx context.Context, args models.UpdateCourseArgs) ([]models.Update, error)
	GetState(ctx context.Context, courseID int) (*models.CourseState, error)
}

type CourseEditorHandler struct {
	svc      CourseEditor
	validate *validator.Validate
}

func NewCourseEditorHandler(svc CourseEditor) *CourseEditorHandler {
	return &CourseEditorHandler{svc: svc, validate: validator.New()}
}

// Service
// @Summary      Пакетный вызов вебсервиса редактора курса
// @Description  Принимает массив вызовов core_courseformat_update_course / core_courseformat_get_state.
// @Description  Для каждого вызова возвращает {error, data}, где data — JSON, закодированный в строку.
// @Description  После первой ошибки остальные вызовы пакета не выполняются.
// @Tags         courseeditor
// @Accept       json
// @Produce      json
// @Param        body  body  []models.ServiceCall  true  "Вызовы"
// @Success      200   {array}   models.ServiceResponse
// @Failure      400   {object}  map[string]string
// @Security     ApiKeyAuth
// @Router       /api/service [post]
func (h *CourseEditorHandler) Service(w http.ResponseWriter, r *http.Request) {
	log := logger.WithCtx(r.Context())

	var calls []models.ServiceCall
	if err := json.NewDecoder(r.Body).Decode(&calls); err != nil {
		log.Warn("service: невалидный JSON пакета", zap.Error(err))
		helpers.Error(w, http.StatusBadRequest, "bad json")
		return
	}
	if len(calls) == 0 || len(calls) > maxBatchCalls {
		log.Warn("service: неверный размер пакета", zap.Int("calls", len(calls)))
		helpers.Error(w, http.StatusBadRequest, "batch must contain 1.."+strconv.Itoa(maxBatchCalls)+" calls")
		return
	}

	responses := make([]models.ServiceResponse, len(calls))
	failed := false
	for i, call := range calls {
		if failed {
			responses[i] = failure("skipped", "предыдущий вызов пакета завершился ошибкой")
			continue
		}
		responses[i] = h.dispatch(r.Context(), call)
		failed = responses[i].Error
	}

	log.Info("service: пакет обработан", zap.Int("calls", len(calls)), zap.Bool("failed", failed))
	helpers.Raw(w, http.StatusOK, responses)
}

func (h *CourseEditorHandler) dispatch(ctx context.Context, call models.ServiceCall) models.ServiceResponse {
	log := logger.WithCtx(ctx).With(zap.String("method", call.MethodName), zap.Int("index", call.Index))

	if err := h.validate.Struct(call); err != nil {
		log.Warn("service: вызов не прошёл валидацию", zap.Error(err))
		return failure("invalidparameter", err.Error())
	}

	var payload any
	switch call.MethodName {
	case models.MethodUpdateCourse:
		var args models.UpdateCourseArgs
		if err := h.decodeArgs(call.Args, &args); err != nil {
			log.Warn("service: неверные аргументы", zap.Error(err))
			return failure("invalidparameter", err.Error())
		}
		updates, err := h.svc.Execute(ctx, args)
		if err != nil {
			return serviceFailure(ctx, err)
		}
		if updates == nil {
			updates = []models.Update{}
		}
		payload = updates
	case models.MethodGetState:
		var args models.GetStateArgs
		if err := h.decodeArgs(call.Args, &args); err != nil {
			log.Warn("service: неверные аргументы", zap.Error(err))
			return failure("invalidparameter", err.Error())
		}
		state, err := h.svc.GetState(ctx, args.CourseID)
		if err != nil {
			return serviceFailure(ctx, err)
		}
		payload = state
	}

	data, err := json.Marshal(payload)
	if err != nil {
		log.Error("service: не удалось закодировать ответ", zap.Error(err))
		return failure("servererror", "internal error")
	}
	return models.ServiceResponse{Error: false, Data: string(data)}
}

func (h *CourseEditorHandler) decodeArgs(raw json.RawMessage, dst any) error {
	if err := json.Unmarshal(raw, dst); err != nil {
		return err
	}
	return h.validate.Struct(dst)
}

func failure(code, msg string) models.ServiceResponse {
	return models.ServiceResponse{Error: true, Exception: &models.ServiceException{ErrorCode: code, Message: msg}}
}

func serviceFailure(ctx context.Context, err error) models.ServiceResponse {
	switch {
	case errors.Is(err, services.ErrInvalidArgument):
		return failure("invalidargument", err.Error())
	case errors.Is(err, services.ErrNotFound):
		return failure("notfound", err.Error())
	default:
		logger.WithCtx(ctx).Error("service: внутренняя ошибка", zap.Error(err))
		return failure("servererror", "internal error")
	}
}

// GetState
// @Summary      Состояние курса для редактора
// @Description  Курс, разделы и модули в том же виде, что и core_courseformat_get_state
// @Tags         courseeditor
// @Produce      json
// @Param        id   path  int  true  "ID курса"
// @Success      200  {object}  models.CourseState
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Security     ApiKeyAuth
// @Router       /api/courses/{id}/state [get]
func (h *CourseEditorHandler) GetState(w http.ResponseWriter, r *http.Request) {
	log := logger.WithCtx(r.Context())

	idStr := mux.Vars(r)["id"]
	id, err := strconv.Atoi(idStr)
	if err != nil || id <= 0 {
		log.Warn("courseeditor: неверный id курса", zap.String("raw", idStr))
		helpers.Error(w, http.StatusBadRequest, "bad id")
		return
	}

	state, err := h.svc.GetState(r.Context(), id)
	if errors.Is(err, services.ErrNotFound) {
		helpers.Error(w, http.StatusNotFound, "course not found")
		return
	}
	if err != nil {
		log.Error("courseeditor: ошибка получения состояния", zap.Error(err), zap.Int("course_id", id))
		helpers.Error(w, http.StatusInternalServerError, "internal error")
		return
	}

	log.Info("courseeditor: состояние отдано", zap.Int("course_id", id),
		zap.Int("sections", len(state.Sections)), zap.Int("cms", len(state.Modules)))
	helpers.JSON(w, http.StatusOK, state)
}
