package material

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/elimu-cd/elimu/core"
)

// Material types
const (
	TypeDocument     = "document"
	TypeVideo        = "video"
	TypeAudio        = "audio"
	TypePresentation = "presentation"
	TypeImage        = "image"
	TypeOther        = "other"
)

// Access actions
const (
	ActionView     = "view"
	ActionDownload = "download"
)

// allowedExtensions are the upload file extensions accepted, lowercase and
// without the leading dot.
var allowedExtensions = []string{
	"pdf", "doc", "docx", "ppt", "pptx", "mp4", "avi", "mov",
	"mp3", "wav", "jpg", "jpeg", "png", "gif", "txt", "zip", "rar",
}

type Material struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Type        string `json:"material_type"`

	FilePath      string `json:"-"`
	FileName      string `json:"file_name"`
	FileSize      int64  `json:"file_size"`
	FileExtension string `json:"file_extension"`

	CourseID  string `json:"course_id"`
	TeacherID string `json:"teacher_id"`
	FolderID  string `json:"folder_id,omitempty"`

	IsPublic       bool `json:"is_public"`
	IsDownloadable bool `json:"is_downloadable"`

	DownloadCount int `json:"download_count"`
	ViewCount     int `json:"view_count"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (m Material) FileSizeMB() float64 {
	mb := float64(m.FileSize) / (1 << 20)
	return float64(int(mb*100+0.5)) / 100
}

// MarshalJSON includes the derived file_size_mb, recomputed on every read.
func (m Material) MarshalJSON() ([]byte, error) {
	type alias Material
	return json.Marshal(struct {
		alias
		FileSizeMB float64 `json:"file_size_mb"`
	}{alias(m), m.FileSizeMB()})
}

// Folder organizes a course's materials as a flat parent-reference tree.
// The (name, course, parent) triple is unique.
type Folder struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	CourseID    string `json:"course_id"`
	ParentID    string `json:"parent_folder,omitempty"`
	CreatedBy   string `json:"created_by"`

	// direct children only, counted on read
	MaterialsCount  int `json:"materials_count"`
	SubfoldersCount int `json:"subfolders_count"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Access is one append-only audit row. Rows are never mutated or deleted.
type Access struct {
	ID         string    `json:"id"`
	StudentID  string    `json:"student_id"`
	MaterialID string    `json:"material_id"`
	Action     string    `json:"action"`
	AccessedAt time.Time `json:"accessed_at"`
}

// Stats summarizes a material's access log for its owning teacher.
type Stats struct {
	MaterialID     string   `json:"material_id"`
	Title          string   `json:"title"`
	ViewCount      int      `json:"view_count"`
	DownloadCount  int      `json:"download_count"`
	RecentAccesses []Access `json:"recent_accesses"`
}

// NewMaterial contains the metadata of a material upload; the file itself
// arrives separately as a multipart part.
type NewMaterial struct {
	Title       string `json:"title" form:"title" validate:"required,max=200"`
	Description string `json:"description" form:"description"`
	Type        string `json:"material_type" form:"material_type" validate:"omitempty,oneof=document video audio presentation image other"`
	CourseID    string `json:"course_id" form:"course_id" validate:"required"`
	FolderID    string `json:"folder_id" form:"folder_id"`

	IsPublic       bool  `json:"is_public" form:"is_public"`
	IsDownloadable *bool `json:"is_downloadable" form:"is_downloadable"`
}

func (nm *NewMaterial) Validate(validate *validator.Validate) error {
	nm.Title = core.CleanString(nm.Title)
	if nm.Type == "" {
		nm.Type = TypeDocument
	}
	return validate.Struct(nm)
}

func (nm NewMaterial) Downloadable() bool {
	if nm.IsDownloadable == nil {
		return true
	}
	return *nm.IsDownloadable
}

// UpdateMaterial defines what information may be provided to modify a Material.
// The file is immutable after upload; re-uploading means a new material.
type UpdateMaterial struct {
	Title       string  `json:"title" validate:"omitempty,max=200"`
	Description string  `json:"description"`
	Type        string  `json:"material_type" validate:"omitempty,oneof=document video audio presentation image other"`
	FolderID    *string `json:"folder_id"`

	IsPublic       *bool `json:"is_public"`
	IsDownloadable *bool `json:"is_downloadable"`
}

func (um *UpdateMaterial) Validate(validate *validator.Validate) error {
	um.Title = core.CleanString(um.Title)
	return validate.Struct(um)
}

// NewFolder contains information needed to create a new Folder.
type NewFolder struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description"`
	CourseID    string `json:"course_id" validate:"required"`
	ParentID    string `json:"parent_folder"`
}

func (nf *NewFolder) Validate(validate *validator.Validate) error {
	nf.Name = core.CleanString(nf.Name)
	return validate.Struct(nf)
}

// UpdateFolder defines what information may be provided to modify a Folder.
type UpdateFolder struct {
	Name        string  `json:"name" validate:"omitempty,max=100"`
	Description string  `json:"description"`
	ParentID    *string `json:"parent_folder"`
}

func (uf *UpdateFolder) Validate(validate *validator.Validate) error {
	uf.Name = core.CleanString(uf.Name)
	return validate.Struct(uf)
}

// QueryFilter narrows material list results.
type QueryFilter struct {
	Search         string `query:"search"`
	CourseID       string `query:"course"`
	Type           string `query:"material_type"`
	IsPublic       *bool  `query:"is_public"`
	IsDownloadable *bool  `query:"is_downloadable"`

	TeacherID         string `query:"-"`
	EnrolledStudentID string `query:"-"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}

// FolderFilter narrows folder list results.
type FolderFilter struct {
	Search   string `query:"search"`
	CourseID string `query:"course_id"`
}

func (ff *FolderFilter) Clean() {
	ff.Search = core.CleanString(ff.Search)
}

// fileExtension returns the lowercase extension of name without the dot.
func fileExtension(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}

// validateUploadName checks the upload's extension against the allow-list.
func validateUploadName(name string) error {
	ext := fileExtension(name)
	for _, allowed := range allowedExtensions {
		if ext == allowed {
			return nil
		}
	}
	return core.NewValidationError(
		nil, core.FieldError{Field: "file", Error: "file extension is not allowed"},
	)
}
