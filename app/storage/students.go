package storage

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"schoolbot/app/conversation"
	"schoolbot/core/logger"
	"log/slog"
)

const insertStudent = `INSERT INTO students (name, age, grade) VALUES ($1, $2, $3) RETURNING id`

// StudentsRepo persists completed registrations to Postgres.
type StudentsRepo struct {
	db *sqlx.DB
}

func NewStudentsRepo(db *sqlx.DB) *StudentsRepo {
	return &StudentsRepo{db: db}
}

// AddStudent inserts one student row and returns its id.
func (r *StudentsRepo) AddStudent(ctx context.Context, st conversation.Student) (int64, error) {
	var id int64
	if err := r.db.QueryRowxContext(ctx, insertStudent, st.Name, st.Age, st.Grade).Scan(&id); err != nil {
		logger.SVCStudents.LogAttrs(ctx, slog.LevelError, "insert failed",
			slog.String("event", "insert.failed"),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
		return 0, fmt.Errorf("insert student: %w", err)
	}

	logger.SVCStudents.LogAttrs(ctx, slog.LevelInfo, "student saved",
		slog.String("event", "insert.ok"),
		slog.Int64("student_id", id),
	)
	return id, nil
}
