package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"subject-rag/internal/config"
	"subject-rag/internal/helper"
)

var (
	ErrDuplicateSubject = errors.New("db: subject already exists")
	ErrSubjectNotFound  = errors.New("db: subject not found")
)

// Subject is a named grouping of documents forming one knowledge base. Its
// id is the opaque identifier the vector store namespaces collections by.
type Subject struct {
	bun.BaseModel `bun:"table:subjects,alias:s"`

	ID          int64     `bun:"id,pk,autoincrement" json:"id"`
	Name        string    `bun:"name,notnull,unique" json:"name"`
	Description string    `bun:"description" json:"description,omitempty"`
	CreatedAt   time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
}

// Document records one uploaded file for a subject. The extracted text lives
// in the vector store, not here.
type Document struct {
	bun.BaseModel `bun:"table:documents,alias:d"`

	ID         int64     `bun:"id,pk,autoincrement" json:"id"`
	UUID       string    `bun:"uuid,notnull" json:"uuid"`
	SubjectID  int64     `bun:"subject_id,notnull" json:"subject_id"`
	Filename   string    `bun:"filename,notnull" json:"filename"`
	FileType   string    `bun:"file_type" json:"file_type"`
	UploadedAt time.Time `bun:"uploaded_at,nullzero,notnull,default:current_timestamp" json:"uploaded_at"`
}

// Connect opens the Postgres metadata store.
func Connect(cfg *config.DatabaseConfig) *bun.DB {
	password := ""
	if cfg.PasswordEnv != "" {
		password = os.Getenv(cfg.PasswordEnv)
	}
	sqldb := sql.OpenDB(pgdriver.NewConnector(
		pgdriver.WithDSN(cfg.DSN),
		pgdriver.WithPassword(password),
	))
	db := bun.NewDB(sqldb, pgdialect.New())
	if cfg.Debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

// Init creates the metadata tables if they do not exist.
func Init(ctx context.Context, db *bun.DB) error {
	for _, model := range []any{(*Subject)(nil), (*Document)(nil)} {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

// CreateSubject inserts a subject; names are unique.
func CreateSubject(ctx context.Context, db *bun.DB, name, description string) (*Subject, error) {
	exists, err := db.NewSelect().Model((*Subject)(nil)).Where("name = ?", name).Exists(ctx)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateSubject, name)
	}

	subject := &Subject{Name: name, Description: description}
	if _, err := db.NewInsert().Model(subject).Returning("*").Exec(ctx); err != nil {
		return nil, err
	}
	return subject, nil
}

// GetSubject fetches one subject by id.
func GetSubject(ctx context.Context, db *bun.DB, id int64) (*Subject, error) {
	subject := new(Subject)
	err := db.NewSelect().Model(subject).Where("s.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrSubjectNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return subject, nil
}

// ListSubjects returns subjects ordered by creation.
func ListSubjects(ctx context.Context, db *bun.DB, offset, limit int) ([]Subject, error) {
	var subjects []Subject
	err := db.NewSelect().
		Model(&subjects).
		Order("s.id ASC").
		Offset(offset).
		Limit(limit).
		Scan(ctx)
	return subjects, err
}

// RecordDocument stores the upload record for a processed file.
func RecordDocument(ctx context.Context, db *bun.DB, subjectID int64, filename string) (*Document, error) {
	id, err := helper.GenerateUUID()
	if err != nil {
		return nil, err
	}
	doc := &Document{
		UUID:      id,
		SubjectID: subjectID,
		Filename:  filename,
		FileType:  strings.TrimPrefix(filepath.Ext(filename), "."),
	}
	if _, err := db.NewInsert().Model(doc).Returning("*").Exec(ctx); err != nil {
		return nil, err
	}
	return doc, nil
}

// ListDocuments returns the upload records for a subject.
func ListDocuments(ctx context.Context, db *bun.DB, subjectID int64) ([]Document, error) {
	var docs []Document
	err := db.NewSelect().
		Model(&docs).
		Where("d.subject_id = ?", subjectID).
		Order("d.id ASC").
		Scan(ctx)
	return docs, err
}
