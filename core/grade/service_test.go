package grade_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/DYJJ/Academic-StarChain-sub001/core"
	"github.com/DYJJ/Academic-StarChain-sub001/core/grade"
	"github.com/DYJJ/Academic-StarChain-sub001/core/user"
	dummydb "github.com/DYJJ/Academic-StarChain-sub001/storage/database/dummy"
	testutil "github.com/DYJJ/Academic-StarChain-sub001/tests"
)

type mailRecorder struct {
	sync.Mutex
	sent []core.EmailMessage
}

func (m *mailRecorder) SendMessages(messages ...*core.EmailMessage) {
	m.Lock()
	defer m.Unlock()
	for _, msg := range messages {
		m.sent = append(m.sent, *msg)
	}
}

func (m *mailRecorder) count() int {
	m.Lock()
	defer m.Unlock()
	return len(m.sent)
}

type testEnv struct {
	svc       *grade.Service
	gradeRepo grade.Repository
	usrRepo   user.Repository
	mail      *mailRecorder
}

func newTestEnv(t *testing.T) *testEnv {
	db := testutil.NewDB(t)
	gradeRepo := dummydb.NewGradeRepository(db)
	usrRepo := dummydb.NewUserRepository(db)
	mail := new(mailRecorder)
	svc := grade.NewService(db, gradeRepo, usrRepo, nil, mail, nil)
	return &testEnv{svc: svc, gradeRepo: gradeRepo, usrRepo: usrRepo, mail: mail}
}

func teacherActor(id string) grade.Actor {
	return grade.Actor{ID: id, Roles: []string{user.RoleTeacher}}
}

func studentActor(id string) grade.Actor {
	return grade.Actor{ID: id, Roles: []string{user.RoleStudent}}
}

func adminActor(id string) grade.Actor {
	return grade.Actor{ID: id, Roles: []string{user.RoleAdmin}}
}

func fp(v float64) *float64            { return &v }
func stp(v grade.Status) *grade.Status { return &v }

func TestService_Create(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	t.Run("teacher creates own grade", func(t *testing.T) {
		g, err := env.svc.Create(ctx, teacherActor("t1"), grade.NewGrade{
			StudentID: "s1", CourseID: "MATH101", Score: 88, Semester: "2025-fall",
		})
		if err != nil {
			t.Fatalf("Create() failed: %v", err)
		}
		if g.Status != grade.StatusPending {
			t.Errorf("Status = %s; want %s", g.Status, grade.StatusPending)
		}
		if g.TeacherID != "t1" {
			t.Errorf("TeacherID = %s; want t1", g.TeacherID)
		}
	})

	t.Run("teacher cannot create for another teacher", func(t *testing.T) {
		g, err := env.svc.Create(ctx, teacherActor("t1"), grade.NewGrade{
			StudentID: "s1", CourseID: "MATH102", TeacherID: "t2", Score: 50, Semester: "2025-fall",
		})
		if err != nil {
			t.Fatalf("Create() failed: %v", err)
		}
		if g.TeacherID != "t1" {
			t.Errorf("TeacherID = %s; want t1", g.TeacherID)
		}
	})

	t.Run("admin must name a teacher", func(t *testing.T) {
		_, err := env.svc.Create(ctx, adminActor("a1"), grade.NewGrade{
			StudentID: "s1", CourseID: "MATH103", Score: 50, Semester: "2025-fall",
		})
		var vErr *core.ValidationError
		if !assert.ErrorAs(t, err, &vErr) {
			t.Fatalf("Create() error = %v; want ValidationError", err)
		}
	})

	t.Run("student cannot create", func(t *testing.T) {
		_, err := env.svc.Create(ctx, studentActor("s1"), grade.NewGrade{
			StudentID: "s1", CourseID: "MATH104", Score: 100, Semester: "2025-fall",
		})
		assert.ErrorIs(t, err, grade.ErrPermissionDenied)
	})

	t.Run("score out of range", func(t *testing.T) {
		for _, score := range []float64{-1, 100.5} {
			_, err := env.svc.Create(ctx, teacherActor("t1"), grade.NewGrade{
				StudentID: "s1", CourseID: "MATH105", Score: score, Semester: "2025-fall",
			})
			var vErr *core.ValidationError
			assert.ErrorAs(t, err, &vErr)
		}
	})

	t.Run("boundary scores are valid", func(t *testing.T) {
		for _, score := range []float64{0, 100} {
			if _, err := env.svc.Create(ctx, teacherActor("t1"), grade.NewGrade{
				StudentID: "s1", CourseID: "MATH106", Score: score, Semester: "2025-fall",
			}); err != nil {
				t.Errorf("Create(score=%g) failed: %v", score, err)
			}
		}
	})
}

func TestService_Edit_noop(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	actor := teacherActor("t1")
	g := testutil.CreateGrade(t, env.gradeRepo, "s1", "MATH101", "t1", 85, grade.StatusPending, "2025-fall", nil)

	updated, err := env.svc.Edit(ctx, actor, g.ID, grade.EditGrade{Score: fp(85)})
	if err != nil {
		t.Fatalf("Edit() failed: %v", err)
	}
	if updated.UpdatedAt != g.UpdatedAt {
		t.Error("no-op edit must not touch the grade")
	}

	edits, err := env.svc.History(ctx, actor, g.ID)
	if err != nil {
		t.Fatalf("History() failed: %v", err)
	}
	if len(edits) != 0 {
		t.Errorf("no-op edit created %d audit entries; want 0", len(edits))
	}
}

func TestService_Edit_numbering(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	actor := teacherActor("t1")
	g := testutil.CreateGrade(t, env.gradeRepo, "s1", "MATH101", "t1", 10, grade.StatusPending, "2025-fall", nil)

	for i := 1; i <= 5; i++ {
		if _, err := env.svc.Edit(ctx, actor, g.ID, grade.EditGrade{Score: fp(float64(10 + i))}); err != nil {
			t.Fatalf("Edit() #%d failed: %v", i, err)
		}
	}

	edits, err := env.svc.History(ctx, actor, g.ID)
	if err != nil {
		t.Fatalf("History() failed: %v", err)
	}
	if len(edits) != 5 {
		t.Fatalf("len(edits) = %d; want 5", len(edits))
	}
	for i, e := range edits {
		if e.EditNumber != i+1 {
			t.Errorf("edits[%d].EditNumber = %d; want %d", i, e.EditNumber, i+1)
		}
	}

	// old/new snapshots chain up
	for i := 1; i < len(edits); i++ {
		if edits[i].OldValues != edits[i-1].NewValues {
			t.Errorf("edits[%d].OldValues does not match edits[%d].NewValues", i, i-1)
		}
	}
}

func TestService_Edit_concurrentNumbering(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	actor := teacherActor("t1")
	g := testutil.CreateGrade(t, env.gradeRepo, "s1", "MATH101", "t1", 0, grade.StatusPending, "2025-fall", nil)

	// distinct target scores so every edit is a content change
	const n = 200
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 1; i <= n; i++ {
		wg.Add(1)
		go func(score float64) {
			defer wg.Done()
			if _, err := env.svc.Edit(ctx, actor, g.ID, grade.EditGrade{Score: fp(score)}); err != nil {
				errs <- err
			}
		}(float64(i) / 2)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("Edit() failed: %v", err)
	}

	edits, err := env.svc.History(ctx, actor, g.ID)
	if err != nil {
		t.Fatalf("History() failed: %v", err)
	}
	if len(edits) != n {
		t.Fatalf("len(edits) = %d; want %d", len(edits), n)
	}
	seen := make(map[int]bool, n)
	for _, e := range edits {
		if seen[e.EditNumber] {
			t.Errorf("duplicate edit number %d", e.EditNumber)
		}
		seen[e.EditNumber] = true
	}
	for i := 1; i <= n; i++ {
		if !seen[i] {
			t.Errorf("missing edit number %d", i)
		}
	}
}

type failingCountRepo struct {
	grade.Repository
}

func (failingCountRepo) CountEdits(ctx context.Context, gradeID string, exec ...core.DBExecutor) (int, error) {
	return 0, errors.New("count unavailable")
}

type logRecorder struct {
	sync.Mutex
	warnings []string
}

func (l *logRecorder) Debug(msg string, args ...interface{}) {}
func (l *logRecorder) Info(msg string, args ...interface{})  {}
func (l *logRecorder) Warn(msg string, args ...interface{}) {
	l.Lock()
	defer l.Unlock()
	l.warnings = append(l.warnings, msg)
}
func (l *logRecorder) Error(msg string, args ...interface{}) {}
func (l *logRecorder) Fatal(msg string, args ...interface{}) {}

func TestService_Edit_countFailureDegrades(t *testing.T) {
	db := testutil.NewDB(t)
	gradeRepo := dummydb.NewGradeRepository(db)
	logs := new(logRecorder)
	svc := grade.NewService(db, failingCountRepo{gradeRepo}, dummydb.NewUserRepository(db), nil, nil, logs)
	ctx := context.Background()
	actor := teacherActor("t1")
	g := testutil.CreateGrade(t, gradeRepo, "s1", "MATH101", "t1", 60, grade.StatusPending, "2025-fall", nil)

	updated, err := svc.Edit(ctx, actor, g.ID, grade.EditGrade{Score: fp(61)})
	if err != nil {
		t.Fatalf("Edit() failed: %v", err)
	}
	if updated.Score != 61 {
		t.Errorf("Score = %g; want 61", updated.Score)
	}

	edits, err := svc.History(ctx, actor, g.ID)
	if err != nil {
		t.Fatalf("History() failed: %v", err)
	}
	if len(edits) != 1 {
		t.Fatalf("len(edits) = %d; want 1", len(edits))
	}
	if edits[0].EditNumber != 1 {
		t.Errorf("EditNumber = %d; want 1", edits[0].EditNumber)
	}
	if len(logs.warnings) != 1 {
		t.Errorf("logged %d warnings; want 1", len(logs.warnings))
	}
}

func TestService_Edit_autoReReview(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	actor := teacherActor("t1")

	t.Run("content edit sends VERIFIED back to PENDING", func(t *testing.T) {
		g := testutil.CreateGrade(t, env.gradeRepo, "s1", "MATH101", "t1", 85, grade.StatusVerified, "2025-fall", nil)
		updated, err := env.svc.Edit(ctx, actor, g.ID, grade.EditGrade{Score: fp(90)})
		if err != nil {
			t.Fatalf("Edit() failed: %v", err)
		}
		if updated.Status != grade.StatusPending {
			t.Errorf("Status = %s; want %s", updated.Status, grade.StatusPending)
		}
	})

	t.Run("re-review wins over requested status", func(t *testing.T) {
		g := testutil.CreateGrade(t, env.gradeRepo, "s1", "MATH102", "t1", 85, grade.StatusVerified, "2025-fall", nil)
		updated, err := env.svc.Edit(ctx, adminActor("a1"), g.ID, grade.EditGrade{Score: fp(90), Status: stp(grade.StatusVerified)})
		if err != nil {
			t.Fatalf("Edit() failed: %v", err)
		}
		if updated.Status != grade.StatusPending {
			t.Errorf("Status = %s; want %s", updated.Status, grade.StatusPending)
		}
	})

	t.Run("status-only change creates no audit entry", func(t *testing.T) {
		g := testutil.CreateGrade(t, env.gradeRepo, "s1", "MATH103", "t1", 85, grade.StatusPending, "2025-fall", nil)
		updated, err := env.svc.Verify(ctx, actor, g.ID, "looks right")
		if err != nil {
			t.Fatalf("Verify() failed: %v", err)
		}
		if updated.Status != grade.StatusVerified {
			t.Errorf("Status = %s; want %s", updated.Status, grade.StatusVerified)
		}
		edits, err := env.svc.History(ctx, actor, g.ID)
		if err != nil {
			t.Fatalf("History() failed: %v", err)
		}
		if len(edits) != 0 {
			t.Errorf("status change created %d audit entries; want 0", len(edits))
		}
	})
}

func TestService_Edit_transitions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	actor := teacherActor("t1")

	t.Run("pending to verified", func(t *testing.T) {
		g := testutil.CreateGrade(t, env.gradeRepo, "s1", "MATH101", "t1", 85, grade.StatusPending, "2025-fall", nil)
		if _, err := env.svc.Verify(ctx, actor, g.ID, ""); err != nil {
			t.Errorf("Verify() failed: %v", err)
		}
	})

	t.Run("pending to rejected", func(t *testing.T) {
		g := testutil.CreateGrade(t, env.gradeRepo, "s1", "MATH102", "t1", 85, grade.StatusPending, "2025-fall", nil)
		if _, err := env.svc.Reject(ctx, actor, g.ID, "wrong score"); err != nil {
			t.Errorf("Reject() failed: %v", err)
		}
	})

	t.Run("teacher cannot revive a rejected grade", func(t *testing.T) {
		g := testutil.CreateGrade(t, env.gradeRepo, "s1", "MATH103", "t1", 85, grade.StatusRejected, "2025-fall", nil)
		_, err := env.svc.Verify(ctx, actor, g.ID, "")
		var vErr *core.ValidationError
		assert.ErrorAs(t, err, &vErr)
	})

	t.Run("admin force-sets any status", func(t *testing.T) {
		g := testutil.CreateGrade(t, env.gradeRepo, "s1", "MATH104", "t1", 85, grade.StatusRejected, "2025-fall", nil)
		updated, err := env.svc.Verify(ctx, adminActor("a1"), g.ID, "appeal upheld")
		if err != nil {
			t.Fatalf("Verify() failed: %v", err)
		}
		if updated.Status != grade.StatusVerified {
			t.Errorf("Status = %s; want %s", updated.Status, grade.StatusVerified)
		}
	})
}

func TestService_Edit_permissions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	g := testutil.CreateGrade(t, env.gradeRepo, "s1", "MATH101", "t1", 85, grade.StatusPending, "2025-fall", nil)

	t.Run("student denied", func(t *testing.T) {
		_, err := env.svc.Edit(ctx, studentActor("s1"), g.ID, grade.EditGrade{Score: fp(100)})
		assert.ErrorIs(t, err, grade.ErrPermissionDenied)
	})

	t.Run("other teacher denied", func(t *testing.T) {
		_, err := env.svc.Edit(ctx, teacherActor("t2"), g.ID, grade.EditGrade{Score: fp(100)})
		assert.ErrorIs(t, err, grade.ErrPermissionDenied)
	})

	t.Run("owner teacher allowed", func(t *testing.T) {
		if _, err := env.svc.Edit(ctx, teacherActor("t1"), g.ID, grade.EditGrade{Score: fp(90)}); err != nil {
			t.Errorf("Edit() failed: %v", err)
		}
	})

	t.Run("admin allowed", func(t *testing.T) {
		if _, err := env.svc.Edit(ctx, adminActor("a1"), g.ID, grade.EditGrade{Score: fp(95)}); err != nil {
			t.Errorf("Edit() failed: %v", err)
		}
	})

	t.Run("validation reported before lookup", func(t *testing.T) {
		_, err := env.svc.Edit(ctx, teacherActor("t1"), "no-such-id", grade.EditGrade{Score: fp(101)})
		var vErr *core.ValidationError
		assert.ErrorAs(t, err, &vErr)
	})

	t.Run("missing grade", func(t *testing.T) {
		_, err := env.svc.Edit(ctx, teacherActor("t1"), "no-such-id", grade.EditGrade{Score: fp(50)})
		assert.ErrorIs(t, err, grade.ErrNotFound)
	})
}

func TestService_Edit_reasonDefault(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	actor := teacherActor("t1")
	g := testutil.CreateGrade(t, env.gradeRepo, "s1", "MATH101", "t1", 60, grade.StatusPending, "2025-fall", nil)

	if _, err := env.svc.Edit(ctx, actor, g.ID, grade.EditGrade{Score: fp(61)}); err != nil {
		t.Fatalf("Edit() failed: %v", err)
	}
	if _, err := env.svc.Edit(ctx, actor, g.ID, grade.EditGrade{Score: fp(62), Reason: "transcription error"}); err != nil {
		t.Fatalf("Edit() failed: %v", err)
	}

	edits, err := env.svc.History(ctx, actor, g.ID)
	if err != nil {
		t.Fatalf("History() failed: %v", err)
	}
	if len(edits) != 2 {
		t.Fatalf("len(edits) = %d; want 2", len(edits))
	}
	if edits[0].Reason != core.Conf.DefaultEditReason {
		t.Errorf("edits[0].Reason = %q; want default %q", edits[0].Reason, core.Conf.DefaultEditReason)
	}
	if edits[1].Reason != "transcription error" {
		t.Errorf("edits[1].Reason = %q", edits[1].Reason)
	}
}

func TestService_Edit_metadata(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	actor := teacherActor("t1")
	g := testutil.CreateGrade(t, env.gradeRepo, "s1", "MATH101", "t1", 60, grade.StatusPending, "2025-fall",
		map[string]interface{}{"weight": 0.4})

	t.Run("same metadata is a no-op", func(t *testing.T) {
		if _, err := env.svc.Edit(ctx, actor, g.ID, grade.EditGrade{Metadata: map[string]interface{}{"weight": 0.4}}); err != nil {
			t.Fatalf("Edit() failed: %v", err)
		}
		edits, _ := env.svc.History(ctx, actor, g.ID)
		if len(edits) != 0 {
			t.Errorf("len(edits) = %d; want 0", len(edits))
		}
	})

	t.Run("changed metadata is audited", func(t *testing.T) {
		if _, err := env.svc.Edit(ctx, actor, g.ID, grade.EditGrade{Metadata: map[string]interface{}{"weight": 0.5}}); err != nil {
			t.Fatalf("Edit() failed: %v", err)
		}
		edits, _ := env.svc.History(ctx, actor, g.ID)
		if len(edits) != 1 {
			t.Errorf("len(edits) = %d; want 1", len(edits))
		}
	})

	t.Run("malformed metadata is rejected", func(t *testing.T) {
		_, err := env.svc.Edit(ctx, actor, g.ID, grade.EditGrade{Metadata: map[string]interface{}{"fn": func() {}}})
		var vErr *core.ValidationError
		assert.ErrorAs(t, err, &vErr)
	})
}

func TestService_notifyVerdict(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	student := testutil.CreateUser(t, env.usrRepo, "Jane", "jane01", "jane@test.cd", "", []string{user.RoleStudent}, true)
	g := testutil.CreateGrade(t, env.gradeRepo, student.ID, "MATH101", "t1", 85, grade.StatusPending, "2025-fall", nil)

	if _, err := env.svc.Verify(ctx, teacherActor("t1"), g.ID, ""); err != nil {
		t.Fatalf("Verify() failed: %v", err)
	}
	if env.mail.count() != 1 {
		t.Errorf("sent %d emails; want 1", env.mail.count())
	}

	// back to pending; no verdict mail
	if _, err := env.svc.Requeue(ctx, adminActor("a1"), g.ID, ""); err != nil {
		t.Fatalf("Requeue() failed: %v", err)
	}
	if env.mail.count() != 1 {
		t.Errorf("sent %d emails; want 1", env.mail.count())
	}
}

func TestService_readScoping(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	g1 := testutil.CreateGrade(t, env.gradeRepo, "s1", "MATH101", "t1", 85, grade.StatusPending, "2025-fall", nil)
	g2 := testutil.CreateGrade(t, env.gradeRepo, "s2", "MATH101", "t1", 70, grade.StatusPending, "2025-fall", nil)
	g3 := testutil.CreateGrade(t, env.gradeRepo, "s1", "BIO201", "t2", 90, grade.StatusPending, "2025-fall", nil)

	t.Run("student sees own grades only", func(t *testing.T) {
		grades, err := env.svc.Query(ctx, studentActor("s1"), nil, nil)
		if err != nil {
			t.Fatalf("Query() failed: %v", err)
		}
		assert.Len(t, grades, 2)

		if _, err = env.svc.GetByID(ctx, studentActor("s1"), g2.ID); err != grade.ErrNotFound {
			t.Errorf("GetByID() error = %v; want ErrNotFound", err)
		}
	})

	t.Run("teacher sees authored grades", func(t *testing.T) {
		grades, err := env.svc.Query(ctx, teacherActor("t1"), nil, nil)
		if err != nil {
			t.Fatalf("Query() failed: %v", err)
		}
		assert.Len(t, grades, 2)

		if _, err = env.svc.GetByID(ctx, teacherActor("t1"), g3.ID); err != grade.ErrNotFound {
			t.Errorf("GetByID() error = %v; want ErrNotFound", err)
		}
	})

	t.Run("admin sees everything", func(t *testing.T) {
		grades, err := env.svc.Query(ctx, adminActor("a1"), nil, nil)
		if err != nil {
			t.Fatalf("Query() failed: %v", err)
		}
		assert.Len(t, grades, 3)

		if _, err = env.svc.GetByID(ctx, adminActor("a1"), g1.ID); err != nil {
			t.Errorf("GetByID() failed: %v", err)
		}
	})

	t.Run("history follows read scoping", func(t *testing.T) {
		if _, err := env.svc.History(ctx, studentActor("s2"), g1.ID); err != grade.ErrNotFound {
			t.Errorf("History() error = %v; want ErrNotFound", err)
		}
	})
}

func TestService_Delete(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	g1 := testutil.CreateGrade(t, env.gradeRepo, "s1", "MATH101", "t1", 85, grade.StatusPending, "2025-fall", nil)
	g2 := testutil.CreateGrade(t, env.gradeRepo, "s1", "MATH102", "t2", 85, grade.StatusPending, "2025-fall", nil)

	t.Run("student denied", func(t *testing.T) {
		assert.ErrorIs(t, env.svc.Delete(ctx, studentActor("s1"), g1.ID), grade.ErrPermissionDenied)
	})

	t.Run("teacher cannot delete others' grades", func(t *testing.T) {
		assert.ErrorIs(t, env.svc.Delete(ctx, teacherActor("t1"), g1.ID, g2.ID), grade.ErrPermissionDenied)
	})

	t.Run("owner teacher deletes own", func(t *testing.T) {
		if err := env.svc.Delete(ctx, teacherActor("t1"), g1.ID); err != nil {
			t.Fatalf("Delete() failed: %v", err)
		}
		if _, err := env.svc.GetByID(ctx, adminActor("a1"), g1.ID); err != grade.ErrNotFound {
			t.Errorf("GetByID() error = %v; want ErrNotFound", err)
		}
	})

	t.Run("admin deletes any", func(t *testing.T) {
		if err := env.svc.Delete(ctx, adminActor("a1"), g2.ID); err != nil {
			t.Fatalf("Delete() failed: %v", err)
		}
	})
}
