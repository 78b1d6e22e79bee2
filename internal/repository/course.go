package repository

import (
	"context"
	"errors"
	"fmt"

	"courseeditor/internal/logger"
	"courseeditor/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

var ErrCourseNotFound = errors.New("курс не найден")

type CourseRepo interface {
	LoadStructure(ctx context.Context, courseID int) (*models.CourseStructure, error)
	// EditStructure блокирует строку курса, читает структуру и вызывает fn в той же транзакции.
	// Ошибка fn откатывает всё.
	EditStructure(ctx context.Context, courseID int, fn func(st *models.CourseStructure, w CourseWriter) error) error
}

// CourseWriter пишет изменения курса внутри EditStructure.
type CourseWriter interface {
	SaveModulePlacements(ctx context.Context, placements []models.ModulePlacement) error
	SaveSectionPlacements(ctx context.Context, placements []models.SectionPlacement) error
	SetModulesVisible(ctx context.Context, ids []int, visible bool) error
	SetSectionsVisible(ctx context.Context, ids []int, visible bool) error
}

// dbtx — общее у *pgxpool.Pool и pgx.Tx.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

type CourseRepository struct {
	db *pgxpool.Pool
}

func NewCourseRepository(db *pgxpool.Pool) *CourseRepository {
	return &CourseRepository{db: db}
}

// LoadStructure читает курс без блокировок (для *_state и get_state).
func (r *CourseRepository) LoadStructure(ctx context.Context, courseID int) (*models.CourseStructure, error) {
	return loadStructure(ctx, r.db, courseID, false)
}

func (r *CourseRepository) EditStructure(ctx context.Context, courseID int, fn func(st *models.CourseStructure, w CourseWriter) error) error {
	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		st, err := loadStructure(ctx, tx, courseID, true)
		if err != nil {
			return err
		}
		return fn(st, &courseWriter{q: tx, courseID: courseID})
	})
}

// loadStructure: разделы по номеру, модули по (раздел, позиция). С lock строка курса
// берётся FOR UPDATE, и правки одного курса идут по очереди.
func loadStructure(ctx context.Context, q dbtx, courseID int, lock bool) (*models.CourseStructure, error) {
	logger.Log.Debug("Загрузка структуры курса (repo)", zap.Int("course_id", courseID), zap.Bool("lock", lock))

	query := `SELECT id, fullname, format FROM courses WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}

	var out models.CourseStructure
	err := q.QueryRow(ctx, query, courseID).Scan(&out.Course.ID, &out.Course.FullName, &out.Course.Format)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrCourseNotFound
	}
	if err != nil {
		logger.Log.Error("Ошибка чтения курса (repo)", zap.Error(err))
		return nil, err
	}

	rows, err := q.Query(ctx, `
		SELECT id, course_id, section, name, summary, visible
		FROM course_sections
		WHERE course_id = $1
		ORDER BY section`, courseID)
	if err != nil {
		return nil, err
	}
	sections, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Section, error) {
		var s models.Section
		err := row.Scan(&s.ID, &s.CourseID, &s.Number, &s.Name, &s.Summary, &s.Visible)
		return s, err
	})
	if err != nil {
		logger.Log.Error("Ошибка чтения разделов (repo)", zap.Error(err))
		return nil, err
	}
	out.Sections = sections

	rows, err = q.Query(ctx, `
		SELECT m.id, m.course_id, m.section_id, m.name, m.modname, m.visible, m.position
		FROM course_modules m
		JOIN course_sections s ON s.id = m.section_id
		WHERE m.course_id = $1
		ORDER BY s.section, m.position, m.id`, courseID)
	if err != nil {
		return nil, err
	}
	modules, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Module, error) {
		var m models.Module
		err := row.Scan(&m.ID, &m.CourseID, &m.SectionID, &m.Name, &m.ModName, &m.Visible, &m.Position)
		return m, err
	})
	if err != nil {
		logger.Log.Error("Ошибка чтения модулей (repo)", zap.Error(err))
		return nil, err
	}
	out.Modules = modules

	return &out, nil
}

type courseWriter struct {
	q        dbtx
	courseID int
}

func (w *courseWriter) SaveModulePlacements(ctx context.Context, placements []models.ModulePlacement) error {
	batch := &pgx.Batch{}
	for _, p := range placements {
		batch.Queue(
			`UPDATE course_modules SET section_id=$1, position=$2, updated_at=now() WHERE id=$3 AND course_id=$4`,
			p.SectionID, p.Position, p.ModuleID, w.courseID,
		)
	}
	if err := sendBatch(ctx, w.q, batch, len(placements)); err != nil {
		logger.Log.Error("Ошибка сохранения положения модулей (repo)", zap.Int("course_id", w.courseID), zap.Error(err))
		return err
	}
	return nil
}

// SaveSectionPlacements перенумеровывает разделы. Сначала номера уводятся в отрицательные,
// иначе UNIQUE (course_id, section) сработает на промежуточном состоянии.
func (w *courseWriter) SaveSectionPlacements(ctx context.Context, placements []models.SectionPlacement) error {
	park := &pgx.Batch{}
	final := &pgx.Batch{}
	for _, p := range placements {
		park.Queue(`UPDATE course_sections SET section = -section - 1 WHERE id=$1 AND course_id=$2`, p.SectionID, w.courseID)
		final.Queue(`UPDATE course_sections SET section=$1, updated_at=now() WHERE id=$2 AND course_id=$3`, p.Number, p.SectionID, w.courseID)
	}
	if err := sendBatch(ctx, w.q, park, len(placements)); err != nil {
		return err
	}
	if err := sendBatch(ctx, w.q, final, len(placements)); err != nil {
		logger.Log.Error("Ошибка перенумерации разделов (repo)", zap.Int("course_id", w.courseID), zap.Error(err))
		return err
	}
	return nil
}

func (w *courseWriter) SetModulesVisible(ctx context.Context, ids []int, visible bool) error {
	_, err := w.q.Exec(ctx,
		`UPDATE course_modules SET visible=$1, updated_at=now() WHERE course_id=$2 AND id = ANY($3)`,
		visible, w.courseID, ids,
	)
	return err
}

func (w *courseWriter) SetSectionsVisible(ctx context.Context, ids []int, visible bool) error {
	_, err := w.q.Exec(ctx,
		`UPDATE course_sections SET visible=$1, updated_at=now() WHERE course_id=$2 AND id = ANY($3)`,
		visible, w.courseID, ids,
	)
	return err
}

func sendBatch(ctx context.Context, q dbtx, batch *pgx.Batch, n int) error {
	if n == 0 {
		return nil
	}
	br := q.SendBatch(ctx, batch)
	for i := 0; i < n; i++ {
		tag, err := br.Exec()
		if err != nil {
			_ = br.Close()
			return err
		}
		if tag.RowsAffected() != 1 {
			_ = br.Close()
			return fmt.Errorf("запрос %d пакета затронул %d строк", i, tag.RowsAffected())
		}
	}
	return br.Close()
}
