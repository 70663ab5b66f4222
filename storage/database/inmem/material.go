package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/elimu-cd/elimu/core"
	"github.com/elimu-cd/elimu/core/material"
)

type materialRepository struct {
	db *DB
}

var _ material.Repository = (*materialRepository)(nil)

func NewMaterialRepository(db *DB) *materialRepository {
	return &materialRepository{db: db}
}

func (repo *materialRepository) CourseExists(ctx context.Context, courseID string) (bool, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	_, ok := repo.db.courses[courseID]
	return ok, nil
}

func (repo *materialRepository) CreateMaterial(ctx context.Context, m material.Material) (material.Material, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	m.ID = uuid.New().String()
	repo.db.materials[m.ID] = &m
	return m, nil
}

func (repo *materialRepository) GetMaterialByID(ctx context.Context, id string) (material.Material, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if m, ok := repo.db.materials[id]; ok {
		return *m, nil
	}
	return material.Material{}, material.ErrNotFound
}

func (repo *materialRepository) QueryMaterials(ctx context.Context, qf material.QueryFilter, ordering []core.DBOrdering, pg core.Pagination) (int, []material.Material, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	mats := make([]material.Material, 0, len(repo.db.materials))
	for _, m := range repo.db.materials {
		if !matches(qf.Search, m.Title, m.Description) {
			continue
		}
		if qf.CourseID != "" && m.CourseID != qf.CourseID {
			continue
		}
		if qf.Type != "" && m.Type != qf.Type {
			continue
		}
		if qf.IsPublic != nil && m.IsPublic != *qf.IsPublic {
			continue
		}
		if qf.IsDownloadable != nil && m.IsDownloadable != *qf.IsDownloadable {
			continue
		}
		if qf.TeacherID != "" && m.TeacherID != qf.TeacherID {
			continue
		}
		if qf.EnrolledStudentID != "" && !repo.db.isActivelyEnrolled(qf.EnrolledStudentID, m.CourseID) {
			continue
		}
		mats = append(mats, *m)
	}

	sortBy(len(mats), ordering, core.DBOrdering{Field: "created_at"},
		func(field string, i, j int) bool {
			switch field {
			case "title":
				return mats[i].Title < mats[j].Title
			case "download_count":
				return mats[i].DownloadCount < mats[j].DownloadCount
			case "view_count":
				return mats[i].ViewCount < mats[j].ViewCount
			default:
				return mats[i].CreatedAt.Before(mats[j].CreatedAt)
			}
		},
		func(i, j int) { mats[i], mats[j] = mats[j], mats[i] })

	total := len(mats)
	lo, hi := paginate(total, pg)
	return total, mats[lo:hi], nil
}

func (repo *materialRepository) UpdateMaterial(ctx context.Context, m material.Material) (material.Material, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.materials[m.ID]
	if !ok {
		return material.Material{}, material.ErrNotFound
	}
	// counters only move through RecordAccess
	m.DownloadCount = orig.DownloadCount
	m.ViewCount = orig.ViewCount
	repo.db.materials[m.ID] = &m
	return m, nil
}

func (repo *materialRepository) DeleteMaterial(ctx context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.materials[id]; !ok {
		return material.ErrNotFound
	}
	delete(repo.db.materials, id)
	return nil
}

func (repo *materialRepository) RecordAccess(ctx context.Context, a material.Access) (material.Access, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	m, ok := repo.db.materials[a.MaterialID]
	if !ok {
		return material.Access{}, material.ErrNotFound
	}
	a.ID = uuid.New().String()
	repo.db.accesses = append(repo.db.accesses, &a)
	if a.Action == material.ActionDownload {
		m.DownloadCount++
	} else {
		m.ViewCount++
	}
	return a, nil
}

func (repo *materialRepository) QueryAccesses(ctx context.Context, teacherID string, pg core.Pagination) (int, []material.Access, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	accesses := make([]material.Access, 0)
	for _, a := range repo.db.accesses {
		if m, ok := repo.db.materials[a.MaterialID]; ok && m.TeacherID == teacherID {
			accesses = append(accesses, *a)
		}
	}
	sort.Slice(accesses, func(i, j int) bool { return accesses[i].AccessedAt.After(accesses[j].AccessedAt) })

	total := len(accesses)
	lo, hi := paginate(total, pg)
	return total, accesses[lo:hi], nil
}

func (repo *materialRepository) MaterialStats(ctx context.Context, materialID string) (int, int, []material.Access, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var views, downloads int
	recent := make([]material.Access, 0)
	for _, a := range repo.db.accesses {
		if a.MaterialID != materialID {
			continue
		}
		if a.Action == material.ActionDownload {
			downloads++
		} else {
			views++
		}
		recent = append(recent, *a)
	}
	sort.Slice(recent, func(i, j int) bool { return recent[i].AccessedAt.After(recent[j].AccessedAt) })
	if len(recent) > 10 {
		recent = recent[:10]
	}
	return views, downloads, recent, nil
}

// Folders

func (repo *materialRepository) CreateFolder(ctx context.Context, f material.Folder) (material.Folder, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if repo.folderExists(f.Name, f.CourseID, f.ParentID, "") {
		return material.Folder{}, material.ErrFolderExists
	}
	f.ID = uuid.New().String()
	repo.db.folders[f.ID] = &f
	return repo.withCounts(f), nil
}

func (repo *materialRepository) GetFolderByID(ctx context.Context, id string) (material.Folder, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if f, ok := repo.db.folders[id]; ok {
		return repo.withCounts(*f), nil
	}
	return material.Folder{}, material.ErrFolderNotFound
}

func (repo *materialRepository) QueryFolders(ctx context.Context, ff material.FolderFilter, ordering []core.DBOrdering, pg core.Pagination) (int, []material.Folder, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	folders := make([]material.Folder, 0, len(repo.db.folders))
	for _, f := range repo.db.folders {
		if !matches(ff.Search, f.Name, f.Description) {
			continue
		}
		if ff.CourseID != "" && f.CourseID != ff.CourseID {
			continue
		}
		folders = append(folders, repo.withCounts(*f))
	}

	sortBy(len(folders), ordering, core.DBOrdering{Field: "name", Ascending: true},
		func(field string, i, j int) bool {
			if field == "created_at" {
				return folders[i].CreatedAt.Before(folders[j].CreatedAt)
			}
			return folders[i].Name < folders[j].Name
		},
		func(i, j int) { folders[i], folders[j] = folders[j], folders[i] })

	total := len(folders)
	lo, hi := paginate(total, pg)
	return total, folders[lo:hi], nil
}

func (repo *materialRepository) UpdateFolder(ctx context.Context, f material.Folder) (material.Folder, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.folders[f.ID]
	if !ok {
		return material.Folder{}, material.ErrFolderNotFound
	}
	if repo.folderExists(f.Name, f.CourseID, f.ParentID, f.ID) {
		return material.Folder{}, material.ErrFolderExists
	}
	orig.Name = f.Name
	orig.Description = f.Description
	orig.ParentID = f.ParentID
	orig.UpdatedAt = f.UpdatedAt
	return repo.withCounts(*orig), nil
}

func (repo *materialRepository) DeleteFolder(ctx context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.folders[id]; !ok {
		return material.ErrFolderNotFound
	}
	// cascade through the whole subtree, then detach its materials
	doomed := map[string]bool{id: true}
	for changed := true; changed; {
		changed = false
		for fid, f := range repo.db.folders {
			if !doomed[fid] && doomed[f.ParentID] {
				doomed[fid] = true
				changed = true
			}
		}
	}
	for fid := range doomed {
		delete(repo.db.folders, fid)
	}
	for _, m := range repo.db.materials {
		if doomed[m.FolderID] {
			m.FolderID = ""
		}
	}
	return nil
}

// folderExists checks the (name, course, parent) uniqueness rule.
// Callers hold the lock.
func (repo *materialRepository) folderExists(name, courseID, parentID, excludeID string) bool {
	for _, f := range repo.db.folders {
		if f.ID != excludeID && f.Name == name && f.CourseID == courseID && f.ParentID == parentID {
			return true
		}
	}
	return false
}

// withCounts fills in the direct-child counts. Callers hold the lock.
func (repo *materialRepository) withCounts(f material.Folder) material.Folder {
	f.MaterialsCount, f.SubfoldersCount = 0, 0
	for _, m := range repo.db.materials {
		if m.FolderID == f.ID {
			f.MaterialsCount++
		}
	}
	for _, sub := range repo.db.folders {
		if sub.ParentID == f.ID {
			f.SubfoldersCount++
		}
	}
	return f
}
