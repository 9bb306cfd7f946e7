package attsession

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/attendance"
	"github.com/trezcool/darasa/core/class"
)

const (
	teacherID = "11111111-1111-1111-1111-111111111111"
	otherID   = "22222222-2222-2222-2222-222222222222"
	classID   = "33333333-3333-3333-3333-333333333333"
)

type fakeClassService struct {
	classes map[string]class.Class
	rosters map[string][]class.Student
}

func (f *fakeClassService) GetOwnedClass(clsID, tchID string) (class.Class, error) {
	cls, ok := f.classes[clsID]
	if !ok {
		return class.Class{}, class.ErrNotFound
	}
	if cls.TeacherID != tchID {
		return class.Class{}, class.ErrNotOwner
	}
	return cls, nil
}

func (f *fakeClassService) Roster(clsID string) ([]class.Student, error) {
	return f.rosters[clsID], nil
}

type fakeAttendanceService struct {
	mu       sync.Mutex
	records  map[string]attendance.Record // classID|date -> record
	failSave error
	saves    int
}

func newFakeAttendanceService() *fakeAttendanceService {
	return &fakeAttendanceService{records: make(map[string]attendance.Record)}
}

func (f *fakeAttendanceService) key(clsID string, date time.Time) string {
	return clsID + "|" + date.Format(core.DateLayout)
}

func (f *fakeAttendanceService) Exists(clsID string, date time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.records[f.key(clsID, core.DateOf(date))]
	return ok, nil
}

func (f *fakeAttendanceService) Save(clsID, tchID string, date time.Time, students []attendance.StudentRecord) (attendance.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSave != nil {
		return attendance.Record{}, f.failSave
	}
	key := f.key(clsID, core.DateOf(date))
	if _, ok := f.records[key]; ok {
		return attendance.Record{}, attendance.ErrDuplicate
	}
	f.saves++
	rec := attendance.Record{
		ID:        fmt.Sprintf("rec-%d", f.saves),
		ClassID:   clsID,
		TeacherID: tchID,
		Date:      core.DateOf(date),
		Students:  students,
		CreatedAt: time.Now().UTC(),
	}
	f.records[key] = rec
	return rec, nil
}

func setup(t *testing.T, rosterSize int) (*Service, *fakeClassService, *fakeAttendanceService) {
	t.Helper()

	roster := make([]class.Student, 0, rosterSize)
	for i := 1; i <= rosterSize; i++ {
		roster = append(roster, class.Student{
			ID:         fmt.Sprintf("std-%d", i),
			ClassID:    classID,
			Name:       fmt.Sprintf("Student %d", i),
			RollNumber: fmt.Sprintf("r%02d", i),
			Section:    "A",
		})
	}
	classSvc := &fakeClassService{
		classes: map[string]class.Class{
			classID: {ID: classID, TeacherID: teacherID, Name: "Form 1", Section: "A"},
		},
		rosters: map[string][]class.Student{classID: roster},
	}
	attSvc := newFakeAttendanceService()
	conf := &core.Config{SecretKey: []byte("secret")}
	return NewService(classSvc, attSvc, conf), classSvc, attSvc
}

func start(t *testing.T, svc *Service) StartResult {
	t.Helper()
	res, err := svc.Start(teacherID, classID, time.Now())
	require.NoError(t, err)
	require.NotEmpty(t, res.SessionID)
	return res
}

func TestStartPreconditions(t *testing.T) {
	svc, classSvc, attSvc := setup(t, 2)

	t.Run("unknown class", func(t *testing.T) {
		_, err := svc.Start(teacherID, "nope", time.Now())
		assert.Equal(t, class.ErrNotFound, errors.Cause(err))
	})

	t.Run("not owner", func(t *testing.T) {
		_, err := svc.Start(otherID, classID, time.Now())
		assert.Equal(t, class.ErrNotOwner, errors.Cause(err))
	})

	t.Run("attendance already recorded", func(t *testing.T) {
		date := time.Date(2021, time.March, 8, 10, 30, 0, 0, time.UTC)
		_, err := attSvc.Save(classID, teacherID, date, []attendance.StudentRecord{{StudentID: "std-1", Status: attendance.StatusPresent}})
		require.NoError(t, err)

		_, err = svc.Start(teacherID, classID, date)
		assert.Equal(t, ErrAttendanceExists, errors.Cause(err))
	})

	t.Run("empty roster", func(t *testing.T) {
		classSvc.rosters[classID] = nil
		_, err := svc.Start(teacherID, classID, time.Now())
		assert.Equal(t, ErrEmptyRoster, errors.Cause(err))
	})
}

func TestStartEvictsPriorActiveSession(t *testing.T) {
	svc, _, _ := setup(t, 2)

	first := start(t, svc)
	second := start(t, svc)

	// at no instant do two sessions of the same teacher both report active
	assert.Equal(t, 1, svc.registry.len())

	_, err := svc.Status(first.SessionID, teacherID)
	assert.Equal(t, ErrSessionNotFound, errors.Cause(err))
	assert.Equal(t, DeviceNoSession, svc.Current(first.SessionID).Status)

	view, err := svc.Status(second.SessionID, teacherID)
	require.NoError(t, err)
	assert.True(t, view.Active)
}

func TestAssignIsIdempotent(t *testing.T) {
	svc, _, _ := setup(t, 2)
	res := start(t, svc)

	first, err := svc.Assign(res.SessionID, teacherID)
	require.NoError(t, err)
	require.True(t, first.HasStudent)

	// a retried assign returns the same student and does not advance
	second, err := svc.Assign(res.SessionID, teacherID)
	require.NoError(t, err)
	assert.Equal(t, first.Student.ID, second.Student.ID)
	assert.Equal(t, first.Position, second.Position)

	view, err := svc.Status(res.SessionID, teacherID)
	require.NoError(t, err)
	assert.Equal(t, 0, view.Position)
	assert.True(t, view.HasStudent)
}

func TestAssignAuth(t *testing.T) {
	svc, _, _ := setup(t, 2)
	res := start(t, svc)

	_, err := svc.Assign(res.SessionID, otherID)
	assert.Equal(t, ErrNotOwner, errors.Cause(err))

	_, err = svc.Assign("nope", teacherID)
	assert.Equal(t, ErrSessionNotFound, errors.Cause(err))
}

func TestHandshakeFlow(t *testing.T) {
	svc, _, _ := setup(t, 2)
	res := start(t, svc)
	sessID := res.SessionID

	// device polls before any assignment: active but no student
	view := svc.Current(sessID)
	assert.Equal(t, DeviceActive, view.Status)
	assert.False(t, view.HasStudent)
	assert.Empty(t, view.AttendanceToken)

	// operator assigns S1
	asg, err := svc.Assign(sessID, teacherID)
	require.NoError(t, err)
	assert.Equal(t, "std-1", asg.Student.ID)
	assert.Equal(t, 1, asg.Position)
	assert.Equal(t, 2, asg.Total)

	// device now sees S1 with a token
	view = svc.Current(sessID)
	require.True(t, view.HasStudent)
	assert.Equal(t, "std-1", view.Student.ID)
	require.NotEmpty(t, view.AttendanceToken)

	// device marks S1 present
	prog, err := svc.Mark(view.AttendanceToken, attendance.StatusPresent)
	require.NoError(t, err)
	assert.Equal(t, DeviceWaiting, prog.Status)
	assert.Equal(t, 1, prog.Present)
	assert.Equal(t, 1, prog.Position)

	// back to waiting until the operator assigns again
	view = svc.Current(sessID)
	assert.Equal(t, DeviceActive, view.Status)
	assert.False(t, view.HasStudent)

	status, err := svc.Status(sessID, teacherID)
	require.NoError(t, err)
	assert.Equal(t, 1, status.Position)
	assert.Equal(t, attendance.StatusPresent, status.Records["std-1"])

	// operator assigns S2; device marks absent; roster exhausted
	asg, err = svc.Assign(sessID, teacherID)
	require.NoError(t, err)
	assert.Equal(t, "std-2", asg.Student.ID)

	view = svc.Current(sessID)
	require.True(t, view.HasStudent)
	prog, err = svc.Mark(view.AttendanceToken, attendance.StatusAbsent)
	require.NoError(t, err)
	assert.Equal(t, DeviceDone, prog.Status)
	assert.Equal(t, 1, prog.Present)
	assert.Equal(t, 1, prog.Absent)

	view = svc.Current(sessID)
	assert.Equal(t, DeviceDone, view.Status)
	assert.Equal(t, 1, view.Present)
	assert.Equal(t, 1, view.Absent)

	// assigning past the end just signals done
	asg, err = svc.Assign(sessID, teacherID)
	require.NoError(t, err)
	assert.True(t, asg.IsDone)
	assert.False(t, asg.HasStudent)
}

func TestMarkPreconditions(t *testing.T) {
	svc, _, _ := setup(t, 2)
	res := start(t, svc)

	t.Run("invalid status", func(t *testing.T) {
		_, err := svc.Mark("whatever", attendance.Status("late"))
		assert.Equal(t, ErrInvalidStatus, errors.Cause(err))
	})

	t.Run("invalid token", func(t *testing.T) {
		_, err := svc.Mark("not-a-token", attendance.StatusPresent)
		assert.Equal(t, ErrInvalidToken, errors.Cause(err))
	})

	t.Run("no student assigned", func(t *testing.T) {
		token := makeToken(res.SessionID, "std-1", svc.conf)
		_, err := svc.Mark(token, attendance.StatusPresent)
		assert.Equal(t, ErrNoStudentAssigned, errors.Cause(err))
	})

	t.Run("unknown session", func(t *testing.T) {
		token := makeToken("gone", "std-1", svc.conf)
		_, err := svc.Mark(token, attendance.StatusPresent)
		assert.Equal(t, ErrSessionNotFound, errors.Cause(err))
	})
}

func TestStaleTokenIsRejected(t *testing.T) {
	svc, _, _ := setup(t, 3)
	res := start(t, svc)
	sessID := res.SessionID

	_, err := svc.Assign(sessID, teacherID)
	require.NoError(t, err)
	staleToken := svc.Current(sessID).AttendanceToken
	require.NotEmpty(t, staleToken)

	// operator skips S1 and assigns S2; the old token must not resolve S2
	_, err = svc.Skip(sessID, teacherID)
	require.NoError(t, err)
	_, err = svc.Assign(sessID, teacherID)
	require.NoError(t, err)

	_, err = svc.Mark(staleToken, attendance.StatusPresent)
	assert.Equal(t, ErrStudentMismatch, errors.Cause(err))

	// the assigned student is untouched
	view, err := svc.Status(sessID, teacherID)
	require.NoError(t, err)
	assert.Equal(t, 1, view.Position)
	assert.Equal(t, "std-2", view.Student.ID)
}

func TestSkipBehavesLikeDeviceAbsent(t *testing.T) {
	svc, _, _ := setup(t, 2)
	res := start(t, svc)
	sessID := res.SessionID

	_, err := svc.Skip(sessID, teacherID)
	assert.Equal(t, ErrNoStudentAssigned, errors.Cause(err))

	_, err = svc.Assign(sessID, teacherID)
	require.NoError(t, err)

	_, err = svc.Skip(sessID, otherID)
	assert.Equal(t, ErrNotOwner, errors.Cause(err))

	prog, err := svc.Skip(sessID, teacherID)
	require.NoError(t, err)
	assert.Equal(t, DeviceWaiting, prog.Status)
	assert.Equal(t, 1, prog.Absent)

	view, err := svc.Status(sessID, teacherID)
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusAbsent, view.Records["std-1"])
	assert.Equal(t, 1, view.Position)
	assert.False(t, view.HasStudent)
}

func TestCursorAdvancesByOne(t *testing.T) {
	svc, _, _ := setup(t, 3)
	res := start(t, svc)
	sessID := res.SessionID

	positions := []int{0}
	resolve := []func() error{
		func() error {
			view := svc.Current(sessID)
			_, err := svc.Mark(view.AttendanceToken, attendance.StatusPresent)
			return err
		},
		func() error { _, err := svc.Skip(sessID, teacherID); return err },
		func() error {
			view := svc.Current(sessID)
			_, err := svc.Mark(view.AttendanceToken, attendance.StatusAbsent)
			return err
		},
	}
	for _, fn := range resolve {
		_, err := svc.Assign(sessID, teacherID)
		require.NoError(t, err)
		require.NoError(t, fn())

		view, err := svc.Status(sessID, teacherID)
		require.NoError(t, err)
		positions = append(positions, view.Position)
	}
	assert.Equal(t, []int{0, 1, 2, 3}, positions)
}

func TestStopPersistDefaultsUnmarkedToAbsent(t *testing.T) {
	svc, _, attSvc := setup(t, 3)
	res := start(t, svc)
	sessID := res.SessionID

	// only S1 gets marked (present)
	_, err := svc.Assign(sessID, teacherID)
	require.NoError(t, err)
	view := svc.Current(sessID)
	_, err = svc.Mark(view.AttendanceToken, attendance.StatusPresent)
	require.NoError(t, err)

	summary, err := svc.Stop(sessID, teacherID, true)
	require.NoError(t, err)
	assert.Equal(t, Summary{Total: 3, Present: 1, Absent: 2, RecordID: summary.RecordID}, summary)
	require.NotEmpty(t, summary.RecordID)

	require.Equal(t, 1, attSvc.saves)
	var rec attendance.Record
	for _, r := range attSvc.records {
		rec = r
	}
	require.Len(t, rec.Students, 3)
	byID := make(map[string]attendance.Status, len(rec.Students))
	for _, sr := range rec.Students {
		byID[sr.StudentID] = sr.Status
	}
	assert.Equal(t, attendance.StatusPresent, byID["std-1"])
	assert.Equal(t, attendance.StatusAbsent, byID["std-2"])
	assert.Equal(t, attendance.StatusAbsent, byID["std-3"])
}

func TestStopDiscard(t *testing.T) {
	svc, _, attSvc := setup(t, 2)
	res := start(t, svc)
	sessID := res.SessionID

	for i := 0; i < 2; i++ {
		_, err := svc.Assign(sessID, teacherID)
		require.NoError(t, err)
		view := svc.Current(sessID)
		_, err = svc.Mark(view.AttendanceToken, attendance.StatusPresent)
		require.NoError(t, err)
	}

	summary, err := svc.Stop(sessID, teacherID, false)
	require.NoError(t, err)
	assert.Equal(t, Summary{Total: 2, Present: 2}, summary)
	assert.Zero(t, attSvc.saves)

	// the session is gone entirely
	assert.Equal(t, DeviceNoSession, svc.Current(sessID).Status)
	_, err = svc.Status(sessID, teacherID)
	assert.Equal(t, ErrSessionNotFound, errors.Cause(err))
}

func TestStopIsNotRepeatable(t *testing.T) {
	svc, _, attSvc := setup(t, 2)
	res := start(t, svc)

	_, err := svc.Stop(res.SessionID, teacherID, true)
	require.NoError(t, err)

	// a retried stop must not create a second record
	_, err = svc.Stop(res.SessionID, teacherID, true)
	assert.Equal(t, ErrSessionNotFound, errors.Cause(err))
	assert.Equal(t, 1, attSvc.saves)
}

func TestStopAuth(t *testing.T) {
	svc, _, _ := setup(t, 2)
	res := start(t, svc)

	_, err := svc.Stop(res.SessionID, otherID, false)
	assert.Equal(t, ErrNotOwner, errors.Cause(err))

	_, err = svc.Stop("nope", teacherID, false)
	assert.Equal(t, ErrSessionNotFound, errors.Cause(err))
}

func TestStopSurvivesFailedSave(t *testing.T) {
	svc, _, attSvc := setup(t, 2)
	res := start(t, svc)
	sessID := res.SessionID

	attSvc.failSave = errors.New("db down")
	_, err := svc.Stop(sessID, teacherID, true)
	require.Error(t, err)

	// the session must remain intact so the operator can retry
	view, err := svc.Status(sessID, teacherID)
	require.NoError(t, err)
	assert.True(t, view.Active)

	attSvc.failSave = nil
	summary, err := svc.Stop(sessID, teacherID, true)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 1, attSvc.saves)
}

func TestOperationsAfterStopLoseGracefully(t *testing.T) {
	svc, _, _ := setup(t, 2)
	res := start(t, svc)
	sessID := res.SessionID

	_, err := svc.Assign(sessID, teacherID)
	require.NoError(t, err)
	token := svc.Current(sessID).AttendanceToken

	_, err = svc.Stop(sessID, teacherID, false)
	require.NoError(t, err)

	_, err = svc.Assign(sessID, teacherID)
	assert.Equal(t, ErrSessionNotFound, errors.Cause(err))
	_, err = svc.Mark(token, attendance.StatusPresent)
	assert.Equal(t, ErrSessionNotFound, errors.Cause(err))
	_, err = svc.Skip(sessID, teacherID)
	assert.Equal(t, ErrSessionNotFound, errors.Cause(err))
}

// TestConcurrentHandshake runs an operator loop and a device loop with no
// shared clock, the way the two clients actually behave, and checks that the
// protocol loses no student and resolves each exactly once.
func TestConcurrentHandshake(t *testing.T) {
	const rosterSize = 25
	svc, _, attSvc := setup(t, rosterSize)
	res := start(t, svc)
	sessID := res.SessionID

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(2)

	// operator: auto-assign whenever waiting
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
			}
			if asg, err := svc.Assign(sessID, teacherID); err == nil && asg.IsDone {
				return
			}
		}
	}()

	// device: poll current, mark whatever is assigned
	go func() {
		defer wg.Done()
		defer close(done)
		for {
			view := svc.Current(sessID)
			switch view.Status {
			case DeviceDone, DeviceEnded, DeviceNoSession:
				return
			case DeviceActive:
				if view.HasStudent {
					status := attendance.StatusPresent
					if view.Position%2 == 0 {
						status = attendance.StatusAbsent
					}
					_, _ = svc.Mark(view.AttendanceToken, status)
				}
			}
		}
	}()

	waitCh := make(chan struct{})
	go func() { wg.Wait(); close(waitCh) }()
	select {
	case <-waitCh:
	case <-time.After(10 * time.Second):
		t.Fatal("handshake did not complete")
	}

	view, err := svc.Status(sessID, teacherID)
	require.NoError(t, err)
	assert.Equal(t, rosterSize, view.Position)
	assert.Equal(t, rosterSize, view.Present+view.Absent)
	assert.Zero(t, view.Pending)
	assert.Len(t, view.Records, rosterSize)

	summary, err := svc.Stop(sessID, teacherID, true)
	require.NoError(t, err)
	assert.Equal(t, rosterSize, summary.Total)
	assert.Equal(t, 1, attSvc.saves)
}
