package models

import "encoding/json"

const (
	MethodUpdateCourse = "core_courseformat_update_course"
	MethodGetState     = "core_courseformat_get_state"
)

// Действия core_courseformat_update_course.
const (
	ActionCmMove       = "cm_move"
	ActionSectionMove  = "section_move"
	ActionCmState      = "cm_state"
	ActionSectionState = "section_state"
	ActionCourseState  = "course_state"
	ActionCmHide       = "cm_hide"
	ActionCmShow       = "cm_show"
	ActionSectionHide  = "section_hide"
	ActionSectionShow  = "section_show"
)

// ServiceCall — один вызов в пакетном запросе.
type ServiceCall struct {
	Index      int             `json:"index" validate:"gte=0"`
	MethodName string          `json:"methodname" validate:"required,oneof=core_courseformat_update_course core_courseformat_get_state"`
	Args       json.RawMessage `json:"args" validate:"required"`
}

// UpdateCourseArgs — аргументы core_courseformat_update_course.
type UpdateCourseArgs struct {
	Action          string `json:"action" validate:"required,oneof=cm_move section_move cm_state section_state course_state cm_hide cm_show section_hide section_show"`
	CourseID        int    `json:"courseid" validate:"required,gt=0"`
	IDs             []int  `json:"ids,omitempty" validate:"omitempty,dive,gt=0"`
	TargetSectionID *int   `json:"targetsectionid,omitempty" validate:"omitempty,gt=0"`
	TargetCmID      *int   `json:"targetcmid,omitempty" validate:"omitempty,gt=0"`
}

// GetStateArgs — аргументы core_courseformat_get_state.
type GetStateArgs struct {
	CourseID int `json:"courseid" validate:"required,gt=0"`
}

// ServiceException — описание ошибки одного вызова.
type ServiceException struct {
	ErrorCode string `json:"errorcode"`
	Message   string `json:"message"`
}

// ServiceResponse — ответ на один вызов. Data — JSON, закодированный в строку.
type ServiceResponse struct {
	Error     bool              `json:"error"`
	Data      string            `json:"data,omitempty"`
	Exception *ServiceException `json:"exception,omitempty"`
}
