package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/elimu-cd/elimu/core"
	"github.com/elimu-cd/elimu/core/material"
)

type materialRow struct {
	ID             string      `db:"id"`
	Title          string      `db:"title"`
	Description    string      `db:"description"`
	Type           string      `db:"material_type"`
	FilePath       string      `db:"file_path"`
	FileName       string      `db:"file_name"`
	FileSize       int64       `db:"file_size"`
	FileExtension  string      `db:"file_extension"`
	CourseID       string      `db:"course_id"`
	TeacherID      string      `db:"teacher_id"`
	FolderID       null.String `db:"folder_id"`
	IsPublic       bool        `db:"is_public"`
	IsDownloadable bool        `db:"is_downloadable"`
	DownloadCount  int         `db:"download_count"`
	ViewCount      int         `db:"view_count"`
	CreatedAt      time.Time   `db:"created_at"`
	UpdatedAt      time.Time   `db:"updated_at"`
}

func (r materialRow) toMaterial() material.Material {
	return material.Material{
		ID:             r.ID,
		Title:          r.Title,
		Description:    r.Description,
		Type:           r.Type,
		FilePath:       r.FilePath,
		FileName:       r.FileName,
		FileSize:       r.FileSize,
		FileExtension:  r.FileExtension,
		CourseID:       r.CourseID,
		TeacherID:      r.TeacherID,
		FolderID:       r.FolderID.String,
		IsPublic:       r.IsPublic,
		IsDownloadable: r.IsDownloadable,
		DownloadCount:  r.DownloadCount,
		ViewCount:      r.ViewCount,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

var materialColumns = []string{
	"id", "title", "description", "material_type", "file_path", "file_name",
	"file_size", "file_extension", "course_id", "teacher_id", "folder_id",
	"is_public", "is_downloadable", "download_count", "view_count",
	"created_at", "updated_at",
}

type folderRow struct {
	ID              string      `db:"id"`
	Name            string      `db:"name"`
	Description     string      `db:"description"`
	CourseID        string      `db:"course_id"`
	ParentID        null.String `db:"parent_id"`
	CreatedBy       string      `db:"created_by"`
	MaterialsCount  int         `db:"materials_count"`
	SubfoldersCount int         `db:"subfolders_count"`
	CreatedAt       time.Time   `db:"created_at"`
	UpdatedAt       time.Time   `db:"updated_at"`
}

func (r folderRow) toFolder() material.Folder {
	return material.Folder{
		ID:              r.ID,
		Name:            r.Name,
		Description:     r.Description,
		CourseID:        r.CourseID,
		ParentID:        r.ParentID.String,
		CreatedBy:       r.CreatedBy,
		MaterialsCount:  r.MaterialsCount,
		SubfoldersCount: r.SubfoldersCount,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

// folderColumns includes the direct-child counts, derived per read.
var folderColumns = []string{
	"f.id", "f.name", "f.description", "f.course_id", "f.parent_id", "f.created_by",
	"(SELECT COUNT(*) FROM materials m WHERE m.folder_id = f.id) AS materials_count",
	"(SELECT COUNT(*) FROM material_folders c WHERE c.parent_id = f.id) AS subfolders_count",
	"f.created_at", "f.updated_at",
}

type accessRow struct {
	ID         string    `db:"id"`
	StudentID  string    `db:"student_id"`
	MaterialID string    `db:"material_id"`
	Action     string    `db:"action"`
	AccessedAt time.Time `db:"accessed_at"`
}

type materialRepository struct {
	db *sqlx.DB
}

var _ material.Repository = (*materialRepository)(nil)

func NewMaterialRepository(db *sqlx.DB) *materialRepository {
	return &materialRepository{db: db}
}

func (repo *materialRepository) CourseExists(ctx context.Context, courseID string) (bool, error) {
	var exists bool
	err := repo.db.GetContext(ctx, &exists,
		"SELECT EXISTS (SELECT 1 FROM courses WHERE id = $1)", courseID)
	return exists, errors.Wrap(err, "checking course")
}

func (repo *materialRepository) CreateMaterial(ctx context.Context, m material.Material) (material.Material, error) {
	m.ID = uuid.New().String()
	query, args, err := psql.Insert("materials").
		Columns(materialColumns...).
		Values(
			m.ID, m.Title, m.Description, m.Type, m.FilePath, m.FileName,
			m.FileSize, m.FileExtension, m.CourseID, m.TeacherID,
			null.NewString(m.FolderID, m.FolderID != ""), m.IsPublic, m.IsDownloadable,
			m.DownloadCount, m.ViewCount, m.CreatedAt, m.UpdatedAt,
		).ToSql()
	if err != nil {
		return material.Material{}, errors.Wrap(err, "building query")
	}
	if _, err = repo.db.ExecContext(ctx, query, args...); err != nil {
		return material.Material{}, errors.Wrap(err, "inserting material")
	}
	return m, nil
}

func (repo *materialRepository) GetMaterialByID(ctx context.Context, id string) (material.Material, error) {
	query, args, err := psql.Select(materialColumns...).From("materials").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return material.Material{}, errors.Wrap(err, "building query")
	}
	var row materialRow
	if err = repo.db.GetContext(ctx, &row, query, args...); err != nil {
		return material.Material{}, trapNoRowsErr(err, material.ErrNotFound)
	}
	return row.toMaterial(), nil
}

func (repo *materialRepository) QueryMaterials(ctx context.Context, qf material.QueryFilter, ordering []core.DBOrdering, pg core.Pagination) (int, []material.Material, error) {
	base := psql.Select().From("materials")
	if qf.Search != "" {
		pattern := "%" + qf.Search + "%"
		base = base.Where(sq.Or{sq.ILike{"title": pattern}, sq.ILike{"description": pattern}})
	}
	if qf.CourseID != "" {
		base = base.Where(sq.Eq{"course_id": qf.CourseID})
	}
	if qf.Type != "" {
		base = base.Where(sq.Eq{"material_type": qf.Type})
	}
	if qf.IsPublic != nil {
		base = base.Where(sq.Eq{"is_public": *qf.IsPublic})
	}
	if qf.IsDownloadable != nil {
		base = base.Where(sq.Eq{"is_downloadable": *qf.IsDownloadable})
	}
	if qf.TeacherID != "" {
		base = base.Where(sq.Eq{"teacher_id": qf.TeacherID})
	}
	if qf.EnrolledStudentID != "" {
		base = base.Where(sq.Expr(
			"course_id IN (SELECT course_id FROM course_enrollments WHERE student_id = ? AND is_active)",
			qf.EnrolledStudentID))
	}

	total, err := count(ctx, repo.db, base.Columns("COUNT(*)"))
	if err != nil {
		return 0, nil, err
	}

	qb := applyPagination(applyOrdering(base.Columns(materialColumns...), ordering, "created_at DESC"), pg)
	query, args, err := qb.ToSql()
	if err != nil {
		return 0, nil, errors.Wrap(err, "building query")
	}
	var rows []materialRow
	if err = repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return 0, nil, errors.Wrap(err, "querying materials")
	}
	mats := make([]material.Material, 0, len(rows))
	for _, row := range rows {
		mats = append(mats, row.toMaterial())
	}
	return total, mats, nil
}

func (repo *materialRepository) UpdateMaterial(ctx context.Context, m material.Material) (material.Material, error) {
	query, args, err := psql.Update("materials").
		Set("title", m.Title).
		Set("description", m.Description).
		Set("material_type", m.Type).
		Set("folder_id", null.NewString(m.FolderID, m.FolderID != "")).
		Set("is_public", m.IsPublic).
		Set("is_downloadable", m.IsDownloadable).
		Set("updated_at", m.UpdatedAt).
		Where(sq.Eq{"id": m.ID}).
		ToSql()
	if err != nil {
		return material.Material{}, errors.Wrap(err, "building query")
	}
	res, err := repo.db.ExecContext(ctx, query, args...)
	if err != nil {
		return material.Material{}, errors.Wrap(err, "updating material")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return material.Material{}, material.ErrNotFound
	}
	return repo.GetMaterialByID(ctx, m.ID)
}

func (repo *materialRepository) DeleteMaterial(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, "DELETE FROM materials WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting material")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return material.ErrNotFound
	}
	return nil
}

// RecordAccess appends the audit row and bumps the matching counter in one
// transaction.
func (repo *materialRepository) RecordAccess(ctx context.Context, a material.Access) (material.Access, error) {
	a.ID = uuid.New().String()
	err := runInTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		var id string
		err := tx.GetContext(ctx, &id, "SELECT id FROM materials WHERE id = $1 FOR UPDATE", a.MaterialID)
		if err != nil {
			return trapNoRowsErr(err, material.ErrNotFound)
		}

		if _, err = tx.ExecContext(ctx,
			"INSERT INTO material_accesses (id, student_id, material_id, action, accessed_at) "+
				"VALUES ($1, $2, $3, $4, $5)",
			a.ID, a.StudentID, a.MaterialID, a.Action, a.AccessedAt); err != nil {
			return errors.Wrap(err, "inserting access")
		}

		column := "view_count"
		if a.Action == material.ActionDownload {
			column = "download_count"
		}
		_, err = tx.ExecContext(ctx,
			"UPDATE materials SET "+column+" = "+column+" + 1 WHERE id = $1", a.MaterialID)
		return errors.Wrap(err, "bumping counter")
	})
	if err != nil {
		return material.Access{}, err
	}
	return a, nil
}

func (repo *materialRepository) QueryAccesses(ctx context.Context, teacherID string, pg core.Pagination) (int, []material.Access, error) {
	base := psql.Select().
		From("material_accesses a").
		Join("materials m ON m.id = a.material_id").
		Where(sq.Eq{"m.teacher_id": teacherID})

	total, err := count(ctx, repo.db, base.Columns("COUNT(*)"))
	if err != nil {
		return 0, nil, err
	}

	qb := applyPagination(base.
		Columns("a.id", "a.student_id", "a.material_id", "a.action", "a.accessed_at").
		OrderBy("a.accessed_at DESC"), pg)
	query, args, err := qb.ToSql()
	if err != nil {
		return 0, nil, errors.Wrap(err, "building query")
	}
	var rows []accessRow
	if err = repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return 0, nil, errors.Wrap(err, "querying accesses")
	}
	accesses := make([]material.Access, 0, len(rows))
	for _, row := range rows {
		accesses = append(accesses, material.Access(row))
	}
	return total, accesses, nil
}

func (repo *materialRepository) MaterialStats(ctx context.Context, materialID string) (int, int, []material.Access, error) {
	var counts struct {
		Views     int `db:"views"`
		Downloads int `db:"downloads"`
	}
	err := repo.db.GetContext(ctx, &counts,
		"SELECT COUNT(*) FILTER (WHERE action = 'view') AS views, "+
			"COUNT(*) FILTER (WHERE action = 'download') AS downloads "+
			"FROM material_accesses WHERE material_id = $1", materialID)
	if err != nil {
		return 0, 0, nil, errors.Wrap(err, "counting accesses")
	}

	var rows []accessRow
	err = repo.db.SelectContext(ctx, &rows,
		"SELECT id, student_id, material_id, action, accessed_at FROM material_accesses "+
			"WHERE material_id = $1 ORDER BY accessed_at DESC LIMIT 10", materialID)
	if err != nil {
		return 0, 0, nil, errors.Wrap(err, "querying recent accesses")
	}
	recent := make([]material.Access, 0, len(rows))
	for _, row := range rows {
		recent = append(recent, material.Access(row))
	}
	return counts.Views, counts.Downloads, recent, nil
}

// Folders

func (repo *materialRepository) CreateFolder(ctx context.Context, f material.Folder) (material.Folder, error) {
	f.ID = uuid.New().String()
	query, args, err := psql.Insert("material_folders").
		Columns("id", "name", "description", "course_id", "parent_id", "created_by", "created_at", "updated_at").
		Values(f.ID, f.Name, f.Description, f.CourseID,
			null.NewString(f.ParentID, f.ParentID != ""), f.CreatedBy, f.CreatedAt, f.UpdatedAt).
		ToSql()
	if err != nil {
		return material.Folder{}, errors.Wrap(err, "building query")
	}
	if _, err = repo.db.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return material.Folder{}, material.ErrFolderExists
		}
		return material.Folder{}, errors.Wrap(err, "inserting folder")
	}
	return f, nil
}

func (repo *materialRepository) GetFolderByID(ctx context.Context, id string) (material.Folder, error) {
	query, args, err := psql.Select(folderColumns...).
		From("material_folders f").
		Where(sq.Eq{"f.id": id}).
		ToSql()
	if err != nil {
		return material.Folder{}, errors.Wrap(err, "building query")
	}
	var row folderRow
	if err = repo.db.GetContext(ctx, &row, query, args...); err != nil {
		return material.Folder{}, trapNoRowsErr(err, material.ErrFolderNotFound)
	}
	return row.toFolder(), nil
}

func (repo *materialRepository) QueryFolders(ctx context.Context, ff material.FolderFilter, ordering []core.DBOrdering, pg core.Pagination) (int, []material.Folder, error) {
	base := psql.Select().From("material_folders f")
	if ff.Search != "" {
		pattern := "%" + ff.Search + "%"
		base = base.Where(sq.Or{sq.ILike{"f.name": pattern}, sq.ILike{"f.description": pattern}})
	}
	if ff.CourseID != "" {
		base = base.Where(sq.Eq{"f.course_id": ff.CourseID})
	}

	total, err := count(ctx, repo.db, base.Columns("COUNT(*)"))
	if err != nil {
		return 0, nil, err
	}

	qb := applyPagination(applyOrdering(base.Columns(folderColumns...), ordering, "f.name ASC"), pg)
	query, args, err := qb.ToSql()
	if err != nil {
		return 0, nil, errors.Wrap(err, "building query")
	}
	var rows []folderRow
	if err = repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return 0, nil, errors.Wrap(err, "querying folders")
	}
	folders := make([]material.Folder, 0, len(rows))
	for _, row := range rows {
		folders = append(folders, row.toFolder())
	}
	return total, folders, nil
}

func (repo *materialRepository) UpdateFolder(ctx context.Context, f material.Folder) (material.Folder, error) {
	query, args, err := psql.Update("material_folders").
		Set("name", f.Name).
		Set("description", f.Description).
		Set("parent_id", null.NewString(f.ParentID, f.ParentID != "")).
		Set("updated_at", f.UpdatedAt).
		Where(sq.Eq{"id": f.ID}).
		ToSql()
	if err != nil {
		return material.Folder{}, errors.Wrap(err, "building query")
	}
	res, err := repo.db.ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return material.Folder{}, material.ErrFolderExists
		}
		return material.Folder{}, errors.Wrap(err, "updating folder")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return material.Folder{}, material.ErrFolderNotFound
	}
	return repo.GetFolderByID(ctx, f.ID)
}

func (repo *materialRepository) DeleteFolder(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, "DELETE FROM material_folders WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting folder")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return material.ErrFolderNotFound
	}
	return nil
}
