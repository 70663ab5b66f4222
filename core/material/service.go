package material

import (
	"context"
	"io"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"github.com/elimu-cd/elimu/core"
	"github.com/elimu-cd/elimu/core/enrollment"
	"github.com/elimu-cd/elimu/core/user"
)

var (
	// errors
	ErrNotFound       = errors.New("material not found")
	ErrFolderNotFound = errors.New("folder not found")
	ErrFolderExists   = errors.New("folder already exists")
	ErrCourseNotFound = errors.New("course not found")
	ErrFileNotFound   = errors.New("file not found")

	errNotOwner        = errors.New("you do not have permission to perform this action")
	errNotDownloadable = errors.New("Material is not downloadable")
	errAccessDenied    = errors.New("Access denied")
	errUnknownCourse   = "course not found"
	errDuplicateFolder = "a folder with this name already exists here"
)

type (
	// FileStore persists uploaded material files.
	FileStore interface {
		// Save writes the upload and returns its storage path and size.
		Save(ctx context.Context, name string, src io.Reader) (path string, size int64, err error)
		// Open returns the stored file for streaming. ErrFileNotFound when absent.
		Open(ctx context.Context, path string) (io.ReadCloser, error)
		Remove(ctx context.Context, path string) error
	}

	// Repository implements material storage. RecordAccess appends the audit
	// row and bumps the matching counter in one transaction, so the counters
	// move in lockstep with the log.
	Repository interface {
		CourseExists(ctx context.Context, courseID string) (bool, error)

		CreateMaterial(ctx context.Context, m Material) (Material, error)
		GetMaterialByID(ctx context.Context, id string) (Material, error)
		QueryMaterials(ctx context.Context, qf QueryFilter, ordering []core.DBOrdering, pg core.Pagination) (int, []Material, error)
		UpdateMaterial(ctx context.Context, m Material) (Material, error)
		DeleteMaterial(ctx context.Context, id string) error

		RecordAccess(ctx context.Context, a Access) (Access, error)
		QueryAccesses(ctx context.Context, teacherID string, pg core.Pagination) (int, []Access, error)
		// MaterialStats counts the access log by action and returns the 10 most
		// recent rows, newest first.
		MaterialStats(ctx context.Context, materialID string) (views, downloads int, recent []Access, err error)

		CreateFolder(ctx context.Context, f Folder) (Folder, error)
		GetFolderByID(ctx context.Context, id string) (Folder, error)
		QueryFolders(ctx context.Context, ff FolderFilter, ordering []core.DBOrdering, pg core.Pagination) (int, []Folder, error)
		UpdateFolder(ctx context.Context, f Folder) (Folder, error)
		DeleteFolder(ctx context.Context, id string) error
	}

	Service struct {
		repo   Repository
		store  FileStore
		enrSvc *enrollment.Service
		logger core.Logger
	}
)

func NewService(repo Repository, store FileStore, enrSvc *enrollment.Service, logger core.Logger) *Service {
	return &Service{repo: repo, store: store, enrSvc: enrSvc, logger: logger}
}

// Upload stores the file and creates the material. file_size and
// file_extension come from the stored file, never from the request.
func (svc *Service) Upload(ctx context.Context, actor user.User, nm NewMaterial, filename string, file io.Reader) (Material, error) {
	if err := nm.Validate(core.Validate); err != nil {
		return Material{}, err
	}
	if err := validateUploadName(filename); err != nil {
		return Material{}, err
	}

	exists, err := svc.repo.CourseExists(ctx, nm.CourseID)
	if err != nil {
		return Material{}, errors.Wrap(err, "checking course")
	}
	if !exists {
		return Material{}, core.NewValidationError(nil, core.FieldError{Field: "course_id", Error: errUnknownCourse})
	}
	if nm.FolderID != "" {
		if _, err = svc.repo.GetFolderByID(ctx, nm.FolderID); err != nil {
			if errors.Cause(err) == ErrFolderNotFound {
				return Material{}, core.NewValidationError(nil, core.FieldError{Field: "folder_id", Error: "folder not found"})
			}
			return Material{}, errors.Wrap(err, "checking folder")
		}
	}

	path, size, err := svc.store.Save(ctx, filename, file)
	if err != nil {
		return Material{}, errors.Wrap(err, "saving file")
	}

	now := time.Now().UTC()
	m := Material{
		Title:          nm.Title,
		Description:    nm.Description,
		Type:           nm.Type,
		FilePath:       path,
		FileName:       filepath.Base(path),
		FileSize:       size,
		FileExtension:  fileExtension(filename),
		CourseID:       nm.CourseID,
		TeacherID:      actor.ID,
		FolderID:       nm.FolderID,
		IsPublic:       nm.IsPublic,
		IsDownloadable: nm.Downloadable(),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	m, err = svc.repo.CreateMaterial(ctx, m)
	if err != nil {
		if rmErr := svc.store.Remove(ctx, path); rmErr != nil {
			svc.logger.Warn("removing orphaned upload: " + rmErr.Error())
		}
		return Material{}, errors.Wrap(err, "creating material")
	}
	return m, nil
}

// Get returns a material by ID for any authenticated caller.
func (svc *Service) Get(ctx context.Context, id string) (Material, error) {
	return svc.repo.GetMaterialByID(ctx, id)
}

// Query lists materials the actor may see: teachers their own uploads,
// everyone else the materials of courses they are actively enrolled in.
func (svc *Service) Query(ctx context.Context, actor user.User, qf QueryFilter, ordering []core.DBOrdering, pg core.Pagination) (int, []Material, error) {
	qf.Clean()
	if actor.IsTeacher() {
		qf.TeacherID = actor.ID
	} else {
		qf.EnrolledStudentID = actor.ID
	}
	return svc.repo.QueryMaterials(ctx, qf, ordering, pg)
}

// QueryTeacherMaterials lists the teacher's own uploads.
func (svc *Service) QueryTeacherMaterials(ctx context.Context, teacherID string, pg core.Pagination) (int, []Material, error) {
	qf := QueryFilter{TeacherID: teacherID}
	return svc.repo.QueryMaterials(ctx, qf, nil, pg)
}

// Update modifies a material's metadata. Owning teacher only.
func (svc *Service) Update(ctx context.Context, actor user.User, id string, um UpdateMaterial) (Material, error) {
	m, err := svc.getOwned(ctx, actor, id)
	if err != nil {
		return Material{}, err
	}
	if err = um.Validate(core.Validate); err != nil {
		return Material{}, err
	}

	if um.Title != "" {
		m.Title = um.Title
	}
	if um.Description != "" {
		m.Description = um.Description
	}
	if um.Type != "" {
		m.Type = um.Type
	}
	if um.FolderID != nil {
		m.FolderID = *um.FolderID
	}
	if um.IsPublic != nil {
		m.IsPublic = *um.IsPublic
	}
	if um.IsDownloadable != nil {
		m.IsDownloadable = *um.IsDownloadable
	}
	m.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateMaterial(ctx, m)
}

// Delete removes a material and its stored file. Owning teacher only.
func (svc *Service) Delete(ctx context.Context, actor user.User, id string) error {
	m, err := svc.getOwned(ctx, actor, id)
	if err != nil {
		return err
	}
	if err = svc.repo.DeleteMaterial(ctx, m.ID); err != nil {
		return err
	}
	if err = svc.store.Remove(ctx, m.FilePath); err != nil {
		svc.logger.Warn("removing deleted material file: " + err.Error())
	}
	return nil
}

// Download opens the material's file for streaming after recording the access.
// The audit row and the download_count increment land together.
func (svc *Service) Download(ctx context.Context, actor user.User, id string) (Material, io.ReadCloser, error) {
	m, err := svc.repo.GetMaterialByID(ctx, id)
	if err != nil {
		return Material{}, nil, err
	}
	if !m.IsDownloadable {
		return Material{}, nil, core.NewPermissionError(errNotDownloadable)
	}
	if err = svc.checkAccess(ctx, actor, m); err != nil {
		return Material{}, nil, err
	}

	if _, err = svc.repo.RecordAccess(ctx, Access{
		StudentID:  actor.ID,
		MaterialID: m.ID,
		Action:     ActionDownload,
		AccessedAt: time.Now().UTC(),
	}); err != nil {
		return Material{}, nil, errors.Wrap(err, "recording download")
	}
	m.DownloadCount++

	file, err := svc.store.Open(ctx, m.FilePath)
	if err != nil {
		return Material{}, nil, err
	}
	return m, file, nil
}

// RecordView registers a view. Unlike Download, is_downloadable is ignored;
// any caller passing the access gate may register a view.
func (svc *Service) RecordView(ctx context.Context, actor user.User, id string) error {
	m, err := svc.repo.GetMaterialByID(ctx, id)
	if err != nil {
		return err
	}
	if err = svc.checkAccess(ctx, actor, m); err != nil {
		return err
	}
	_, err = svc.repo.RecordAccess(ctx, Access{
		StudentID:  actor.ID,
		MaterialID: m.ID,
		Action:     ActionView,
		AccessedAt: time.Now().UTC(),
	})
	return errors.Wrap(err, "recording view")
}

// Stats returns access statistics for the owning teacher.
func (svc *Service) Stats(ctx context.Context, actor user.User, id string) (Stats, error) {
	m, err := svc.repo.GetMaterialByID(ctx, id)
	if err != nil {
		return Stats{}, err
	}
	if !actor.IsTeacher() || m.TeacherID != actor.ID {
		return Stats{}, core.NewPermissionError(errAccessDenied)
	}

	views, downloads, recent, err := svc.repo.MaterialStats(ctx, m.ID)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		MaterialID:     m.ID,
		Title:          m.Title,
		ViewCount:      views,
		DownloadCount:  downloads,
		RecentAccesses: recent,
	}, nil
}

// QueryAccesses lists access rows across all of the teacher's materials.
func (svc *Service) QueryAccesses(ctx context.Context, teacherID string, pg core.Pagination) (int, []Access, error) {
	return svc.repo.QueryAccesses(ctx, teacherID, pg)
}

// CreateFolder creates a folder under the unique (name, course, parent) rule.
func (svc *Service) CreateFolder(ctx context.Context, actor user.User, nf NewFolder) (Folder, error) {
	if err := nf.Validate(core.Validate); err != nil {
		return Folder{}, err
	}

	exists, err := svc.repo.CourseExists(ctx, nf.CourseID)
	if err != nil {
		return Folder{}, errors.Wrap(err, "checking course")
	}
	if !exists {
		return Folder{}, core.NewValidationError(nil, core.FieldError{Field: "course_id", Error: errUnknownCourse})
	}
	if nf.ParentID != "" {
		if _, err = svc.repo.GetFolderByID(ctx, nf.ParentID); err != nil {
			if errors.Cause(err) == ErrFolderNotFound {
				return Folder{}, core.NewValidationError(nil, core.FieldError{Field: "parent_folder", Error: "folder not found"})
			}
			return Folder{}, errors.Wrap(err, "checking parent folder")
		}
	}

	now := time.Now().UTC()
	f := Folder{
		Name:        nf.Name,
		Description: nf.Description,
		CourseID:    nf.CourseID,
		ParentID:    nf.ParentID,
		CreatedBy:   actor.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	f, err = svc.repo.CreateFolder(ctx, f)
	if errors.Cause(err) == ErrFolderExists {
		return Folder{}, core.NewValidationError(nil, core.FieldError{Field: "name", Error: errDuplicateFolder})
	}
	return f, err
}

// GetFolder returns a folder with its direct-child counts.
func (svc *Service) GetFolder(ctx context.Context, id string) (Folder, error) {
	return svc.repo.GetFolderByID(ctx, id)
}

// QueryFolders lists folders, optionally narrowed to a course.
func (svc *Service) QueryFolders(ctx context.Context, ff FolderFilter, ordering []core.DBOrdering, pg core.Pagination) (int, []Folder, error) {
	ff.Clean()
	return svc.repo.QueryFolders(ctx, ff, ordering, pg)
}

// UpdateFolder modifies a folder. Uniqueness is re-checked on rename/move.
func (svc *Service) UpdateFolder(ctx context.Context, id string, uf UpdateFolder) (Folder, error) {
	f, err := svc.repo.GetFolderByID(ctx, id)
	if err != nil {
		return Folder{}, err
	}
	if err = uf.Validate(core.Validate); err != nil {
		return Folder{}, err
	}

	if uf.Name != "" {
		f.Name = uf.Name
	}
	if uf.Description != "" {
		f.Description = uf.Description
	}
	if uf.ParentID != nil {
		f.ParentID = *uf.ParentID
	}
	f.UpdatedAt = time.Now().UTC()

	f, err = svc.repo.UpdateFolder(ctx, f)
	if errors.Cause(err) == ErrFolderExists {
		return Folder{}, core.NewValidationError(nil, core.FieldError{Field: "name", Error: errDuplicateFolder})
	}
	return f, err
}

// DeleteFolder removes a folder. Children cascade at the storage layer.
func (svc *Service) DeleteFolder(ctx context.Context, id string) error {
	return svc.repo.DeleteFolder(ctx, id)
}

// checkAccess admits the owning teacher and actively enrolled students.
func (svc *Service) checkAccess(ctx context.Context, actor user.User, m Material) error {
	if actor.IsTeacher() && m.TeacherID == actor.ID {
		return nil
	}
	enrolled, err := svc.enrSvc.IsActivelyEnrolled(ctx, actor.ID, m.CourseID)
	if err != nil {
		return errors.Wrap(err, "checking enrollment")
	}
	if !enrolled {
		return core.NewPermissionError(errAccessDenied)
	}
	return nil
}

// getOwned fetches a material and verifies the actor owns it.
func (svc *Service) getOwned(ctx context.Context, actor user.User, id string) (Material, error) {
	m, err := svc.repo.GetMaterialByID(ctx, id)
	if err != nil {
		return Material{}, err
	}
	if m.TeacherID != actor.ID {
		return Material{}, core.NewPermissionError(errNotOwner)
	}
	return m, nil
}
