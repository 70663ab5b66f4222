package testutil

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/elimu-cd/elimu/core"
	"github.com/elimu-cd/elimu/core/catalog"
	"github.com/elimu-cd/elimu/core/enrollment"
	"github.com/elimu-cd/elimu/core/liveclass"
	"github.com/elimu-cd/elimu/core/user"
)

func init() {
	if err := os.Setenv("ENV", "TEST"); err != nil {
		panic(err)
	}
	core.InitConf()
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	uname, email, pwd, role string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Username:  uname,
		Email:     email,
		FirstName: uname,
		LastName:  "Test",
		Role:      role,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateCategory(t *testing.T, repo catalog.Repository, name string) catalog.Category {
	t.Helper()

	now := time.Now().UTC()
	cat, err := repo.CreateCategory(context.Background(), catalog.Category{
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateCategory() failed: %v", err)
	}
	return cat
}

func CreateCourse(
	t *testing.T,
	repo catalog.Repository,
	title, teacherID, categoryID, status string,
	maxStudents int,
) catalog.Course {
	t.Helper()

	now := time.Now().UTC()
	course := catalog.Course{
		Title:            title,
		Description:      title + " description",
		ShortDescription: title + " in short",
		CategoryID:       categoryID,
		TeacherID:        teacherID,
		Difficulty:       catalog.DifficultyBeginner,
		Status:           status,
		MaxStudents:      maxStudents,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if status == catalog.StatusPublished {
		course.PublishedAt = now
	}
	course, err := repo.CreateCourse(context.Background(), course)
	if err != nil {
		t.Fatalf("CreateCourse() failed: %v", err)
	}
	return course
}

func Enroll(t *testing.T, repo enrollment.Repository, studentID, courseID string) enrollment.Enrollment {
	t.Helper()

	enr, err := repo.Enroll(context.Background(), studentID, courseID)
	if err != nil {
		t.Fatalf("Enroll() failed: %v", err)
	}
	return enr
}

func CreateLiveClass(
	t *testing.T,
	repo liveclass.Repository,
	title, teacherID, courseID, status string,
	maxParticipants int,
) liveclass.LiveClass {
	t.Helper()

	now := time.Now().UTC()
	lc, err := repo.CreateLiveClass(context.Background(), liveclass.LiveClass{
		Title:           title,
		Description:     title + " description",
		CourseID:        courseID,
		TeacherID:       teacherID,
		ScheduledAt:     now.Add(24 * time.Hour),
		DurationMinutes: 60,
		Status:          status,
		MaxParticipants: maxParticipants,
		CreatedAt:       now,
		UpdatedAt:       now,
	})
	if err != nil {
		t.Fatalf("CreateLiveClass() failed: %v", err)
	}
	return lc
}
