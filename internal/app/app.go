package app

import (
	"context"

	"courseeditor/internal/config"
	"courseeditor/internal/db"
	"courseeditor/internal/handlers"
	"courseeditor/internal/repository"
	"courseeditor/internal/routes"
	"courseeditor/internal/services"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
)

// InitApp собирает зависимости. Пул возвращается, чтобы main закрыл его при выходе.
func InitApp(ctx context.Context, cfg *config.Config) (*mux.Router, *pgxpool.Pool, error) {
	conn, err := db.NewPostgresConnection(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	// Репозитории
	courseRepo := repository.NewCourseRepository(conn)

	// Сервисы
	editorService := services.NewCourseEditorService(courseRepo)

	// Хендлеры
	editorHandler := handlers.NewCourseEditorHandler(editorService)

	// Маршруты
	router := mux.NewRouter()
	routes.InitRoutes(router, cfg.JWTSecret, editorHandler)

	return router, conn, nil
}
