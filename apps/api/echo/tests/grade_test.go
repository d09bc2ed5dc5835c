package tests

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/DYJJ/Academic-StarChain-sub001/core/grade"
	"github.com/DYJJ/Academic-StarChain-sub001/core/user"
	testutil "github.com/DYJJ/Academic-StarChain-sub001/tests"
)

func Test_gradeApi_create(t *testing.T) {
	server := setup(t)

	teacher := testutil.CreateUser(t, usrRepo, "Teacher", "teach01", "teach@test.cd", "pwd", []string{user.RoleTeacher}, true)
	student := testutil.CreateUser(t, usrRepo, "Student", "stud01", "stud@test.cd", "pwd", []string{user.RoleStudent}, true)

	t.Run("authentication required", func(t *testing.T) {
		tt := httpTest{method: http.MethodPost, path: "/v1/grades", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)}
		req, rec := newRequest(tt.method, tt.path)
		server.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("student forbidden", func(t *testing.T) {
		body := marchallObj(t, grade.NewGrade{StudentID: student.ID, CourseID: "MATH101", Score: 90, Semester: "2025-fall"})
		req, rec := newAuthRequest(http.MethodPost, "/v1/grades", getToken(t, student), body)
		server.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Errorf("code = %d; want %d", rec.Code, http.StatusForbidden)
		}
	})

	t.Run("teacher creates pending grade", func(t *testing.T) {
		body := marchallObj(t, grade.NewGrade{StudentID: student.ID, CourseID: "MATH101", Score: 90, Semester: "2025-fall"})
		req, rec := newAuthRequest(http.MethodPost, "/v1/grades", getToken(t, teacher), body)
		server.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("code = %d; want %d; body %s", rec.Code, http.StatusCreated, rec.Body.String())
		}
		var g grade.Grade
		if err := json.Unmarshal(rec.Body.Bytes(), &g); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		if g.Status != grade.StatusPending {
			t.Errorf("Status = %s; want %s", g.Status, grade.StatusPending)
		}
		if g.TeacherID != teacher.ID {
			t.Errorf("TeacherID = %s; want %s", g.TeacherID, teacher.ID)
		}
	})

	t.Run("score out of range", func(t *testing.T) {
		body := marchallObj(t, grade.NewGrade{StudentID: student.ID, CourseID: "MATH101", Score: 101, Semester: "2025-fall"})
		req, rec := newAuthRequest(http.MethodPost, "/v1/grades", getToken(t, teacher), body)
		server.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("code = %d; want %d", rec.Code, http.StatusBadRequest)
		}
	})
}

func Test_gradeApi_editAndHistory(t *testing.T) {
	server := setup(t)

	teacher := testutil.CreateUser(t, usrRepo, "Teacher", "teach01", "teach@test.cd", "pwd", []string{user.RoleTeacher}, true)
	student := testutil.CreateUser(t, usrRepo, "Student", "stud01", "stud@test.cd", "pwd", []string{user.RoleStudent}, true)
	g := testutil.CreateGrade(t, gradeRepo, student.ID, "MATH101", teacher.ID, 80, grade.StatusVerified, "2025-fall", nil)

	t.Run("content edit forces re-review", func(t *testing.T) {
		body := []byte(`{"score": 85, "reason": "recount"}`)
		req, rec := newAuthRequest(http.MethodPut, "/v1/grades/"+g.ID, getToken(t, teacher), body)
		server.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %d; body %s", rec.Code, rec.Body.String())
		}
		var updated grade.Grade
		if err := json.Unmarshal(rec.Body.Bytes(), &updated); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		if updated.Status != grade.StatusPending {
			t.Errorf("Status = %s; want %s", updated.Status, grade.StatusPending)
		}
		if updated.Score != 85 {
			t.Errorf("Score = %g; want 85", updated.Score)
		}
	})

	t.Run("student reads the audit trail", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/grades/"+g.ID+"/history", getToken(t, student))
		server.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %d; body %s", rec.Code, rec.Body.String())
		}
		var edits []grade.EditHistory
		if err := json.Unmarshal(rec.Body.Bytes(), &edits); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		if !assert.Len(t, edits, 1) {
			return
		}
		if edits[0].EditNumber != 1 {
			t.Errorf("EditNumber = %d; want 1", edits[0].EditNumber)
		}
		if edits[0].Reason != "recount" {
			t.Errorf("Reason = %q; want \"recount\"", edits[0].Reason)
		}
	})

	t.Run("student cannot edit", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPut, "/v1/grades/"+g.ID, getToken(t, student), []byte(`{"score": 100}`))
		server.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Errorf("code = %d; want %d", rec.Code, http.StatusForbidden)
		}
	})
}

func Test_gradeApi_review(t *testing.T) {
	server := setup(t)

	teacher := testutil.CreateUser(t, usrRepo, "Teacher", "teach01", "teach@test.cd", "pwd", []string{user.RoleTeacher}, true)
	other := testutil.CreateUser(t, usrRepo, "Other", "teach02", "teach2@test.cd", "pwd", []string{user.RoleTeacher}, true)
	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin01", "admin@test.cd", "pwd", []string{user.RoleAdminPrincipal}, true)
	student := testutil.CreateUser(t, usrRepo, "Student", "stud01", "stud@test.cd", "pwd", []string{user.RoleStudent}, true)

	t.Run("owner teacher verifies", func(t *testing.T) {
		g := testutil.CreateGrade(t, gradeRepo, student.ID, "MATH101", teacher.ID, 80, grade.StatusPending, "2025-fall", nil)
		req, rec := newAuthRequest(http.MethodPost, "/v1/grades/"+g.ID+"/verify", getToken(t, teacher), []byte(`{"reason": "checked"}`))
		server.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %d; body %s", rec.Code, rec.Body.String())
		}
		var updated grade.Grade
		if err := json.Unmarshal(rec.Body.Bytes(), &updated); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		if updated.Status != grade.StatusVerified {
			t.Errorf("Status = %s; want %s", updated.Status, grade.StatusVerified)
		}
	})

	t.Run("other teacher forbidden", func(t *testing.T) {
		g := testutil.CreateGrade(t, gradeRepo, student.ID, "MATH102", teacher.ID, 80, grade.StatusPending, "2025-fall", nil)
		req, rec := newAuthRequest(http.MethodPost, "/v1/grades/"+g.ID+"/reject", getToken(t, other), []byte(`{"reason": "nope"}`))
		server.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Errorf("code = %d; want %d", rec.Code, http.StatusForbidden)
		}
	})

	t.Run("teacher cannot revive rejected grade", func(t *testing.T) {
		g := testutil.CreateGrade(t, gradeRepo, student.ID, "MATH103", teacher.ID, 80, grade.StatusRejected, "2025-fall", nil)
		req, rec := newAuthRequest(http.MethodPost, "/v1/grades/"+g.ID+"/verify", getToken(t, teacher))
		server.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("code = %d; want %d", rec.Code, http.StatusBadRequest)
		}
	})

	t.Run("admin force-verifies rejected grade", func(t *testing.T) {
		g := testutil.CreateGrade(t, gradeRepo, student.ID, "MATH104", teacher.ID, 80, grade.StatusRejected, "2025-fall", nil)
		req, rec := newAuthRequest(http.MethodPost, "/v1/grades/"+g.ID+"/verify", getToken(t, admin), []byte(`{"reason": "appeal upheld"}`))
		server.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %d; body %s", rec.Code, rec.Body.String())
		}
	})
}

func Test_gradeApi_queryScoping(t *testing.T) {
	server := setup(t)

	teacher := testutil.CreateUser(t, usrRepo, "Teacher", "teach01", "teach@test.cd", "pwd", []string{user.RoleTeacher}, true)
	other := testutil.CreateUser(t, usrRepo, "Other", "teach02", "teach2@test.cd", "pwd", []string{user.RoleTeacher}, true)
	student := testutil.CreateUser(t, usrRepo, "Student", "stud01", "stud@test.cd", "pwd", []string{user.RoleStudent}, true)

	testutil.CreateGrade(t, gradeRepo, student.ID, "MATH101", teacher.ID, 80, grade.StatusPending, "2025-fall", nil)
	testutil.CreateGrade(t, gradeRepo, "other-student", "MATH101", teacher.ID, 70, grade.StatusPending, "2025-fall", nil)
	testutil.CreateGrade(t, gradeRepo, student.ID, "BIO201", other.ID, 60, grade.StatusPending, "2025-fall", nil)

	query := func(t *testing.T, usr user.User) []grade.Grade {
		req, rec := newAuthRequest(http.MethodGet, "/v1/grades", getToken(t, usr))
		server.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %d; body %s", rec.Code, rec.Body.String())
		}
		var grades []grade.Grade
		if err := json.Unmarshal(rec.Body.Bytes(), &grades); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		return grades
	}

	assert.Len(t, query(t, student), 2)
	assert.Len(t, query(t, teacher), 2)
	assert.Len(t, query(t, other), 1)
}

func Test_gradeApi_analyze(t *testing.T) {
	server := setup(t)

	teacher := testutil.CreateUser(t, usrRepo, "Teacher", "teach01", "teach@test.cd", "pwd", []string{user.RoleTeacher}, true)
	student := testutil.CreateUser(t, usrRepo, "Student", "stud01", "stud@test.cd", "pwd", []string{user.RoleStudent}, true)
	testutil.CreateGrade(t, gradeRepo, student.ID, "MATH101", teacher.ID, 80, grade.StatusVerified, "2025-fall", nil)

	t.Run("student analyzes own grades", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/grades/analysis", getToken(t, student))
		server.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %d; body %s", rec.Code, rec.Body.String())
		}
		var resp struct {
			StudentID string `json:"student_id"`
			Report    string `json:"report"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		if resp.StudentID != student.ID {
			t.Errorf("StudentID = %s; want %s", resp.StudentID, student.ID)
		}
		if resp.Report == "" {
			t.Error("empty report")
		}
	})

	t.Run("student cannot analyze others", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/grades/analysis?student_id=other", getToken(t, student))
		server.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Errorf("code = %d; want %d", rec.Code, http.StatusForbidden)
		}
	})
}
