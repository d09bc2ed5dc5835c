package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/DYJJ/Academic-StarChain-sub001/core/grade"
	"github.com/DYJJ/Academic-StarChain-sub001/core/user"
	dummydb "github.com/DYJJ/Academic-StarChain-sub001/storage/database/dummy"
)

func NewDB(t *testing.T) *dummydb.DB {
	t.Helper()
	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open() failed: %v", err)
	}
	return db
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	usr.SetActive(isActive)
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

func CreateGrade(
	t *testing.T,
	repo grade.Repository,
	studentID, courseID, teacherID string,
	score float64,
	status grade.Status,
	semester string,
	metadata map[string]interface{},
) grade.Grade {
	t.Helper()

	now := time.Now().UTC()
	g := grade.Grade{
		StudentID: studentID,
		CourseID:  courseID,
		TeacherID: teacherID,
		Score:     score,
		Status:    status,
		Semester:  semester,
		Metadata:  metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}
	g, err := repo.CreateGrade(context.Background(), g)
	if err != nil {
		t.Fatalf("CreateGrade() failed: %v", err)
	}
	return g
}
