package routes

import (
	"net/http"

	"courseeditor/internal/handlers"
	"courseeditor/internal/middleware"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func InitRoutes(
	router *mux.Router,
	jwtSecret string,
	editorHandler *handlers.CourseEditorHandler,
) {
	router.Use(middleware.RequestID, middleware.Recoverer, middleware.Logging)

	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()

	// --- Защищённые JWT: только редактирующие преподаватели и админы ---
	editing := api.PathPrefix("").Subrouter()
	editing.Use(middleware.JWTAuth(jwtSecret), middleware.AdminFastLane, middleware.AnyRole("editingteacher", "manager"))

	editing.HandleFunc("/service", editorHandler.Service).Methods(http.MethodPost, http.MethodOptions)
	editing.HandleFunc("/courses/{id:[0-9]+}/state", editorHandler.GetState).Methods(http.MethodGet)
}
