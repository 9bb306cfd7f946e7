package attsession

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/attendance"
	"github.com/trezcool/darasa/core/class"
)

var (
	// errors
	ErrSessionNotFound   = errors.New("attendance session not found")
	ErrNotOwner          = errors.New("attendance session does not belong to this teacher")
	ErrAttendanceExists  = errors.New("attendance already recorded for this class and date")
	ErrEmptyRoster       = errors.New("class has no students enrolled")
	ErrSessionEnded      = errors.New("attendance session has ended")
	ErrNoStudentAssigned = errors.New("no student is currently assigned")
	ErrStudentMismatch   = errors.New("student is no longer the assigned student")
	ErrInvalidStatus     = errors.New("status must be present or absent")
	ErrInvalidToken      = errors.New("invalid attendance token")
)

// Device-facing status strings. The device only ever sees these; internal
// error detail never crosses that surface.
const (
	DeviceNoSession = "no_session"
	DeviceEnded     = "ended"
	DeviceDone      = "done"
	DeviceActive    = "active"
	DeviceWaiting   = "waiting"
)

type (
	// ClassService is the slice of class.ServiceInterface the coordinator needs.
	ClassService interface {
		GetOwnedClass(classID, teacherID string) (class.Class, error)
		Roster(classID string) ([]class.Student, error)
	}

	// AttendanceService is the slice of attendance.ServiceInterface the
	// coordinator needs.
	AttendanceService interface {
		Exists(classID string, date time.Time) (bool, error)
		Save(classID, teacherID string, date time.Time, students []attendance.StudentRecord) (attendance.Record, error)
	}

	ServiceInterface interface {
		Start(teacherID, classID string, date time.Time) (StartResult, error)
		Stop(sessionID, teacherID string, persist bool) (Summary, error)
		Assign(sessionID, teacherID string) (Assignment, error)
		Skip(sessionID, teacherID string) (Progress, error)
		Status(sessionID, teacherID string) (StatusView, error)
		Current(sessionID string) DeviceView
		Mark(token string, status attendance.Status) (Progress, error)
	}

	Service struct {
		registry *registry
		classSvc ClassService
		attSvc   AttendanceService
		conf     *core.Config
	}

	StartResult struct {
		SessionID     string `json:"session_id"`
		TotalStudents int    `json:"total_students"`
	}

	Summary struct {
		Total    int    `json:"total"`
		Present  int    `json:"present"`
		Absent   int    `json:"absent"`
		RecordID string `json:"record_id,omitempty"`
	}

	Assignment struct {
		IsDone     bool           `json:"is_done"`
		HasStudent bool           `json:"has_student"`
		Student    *RosterStudent `json:"student,omitempty"`
		Position   int            `json:"position"` // 1-based
		Total      int            `json:"total"`
	}

	// Progress is the post-mark/skip view: where the session now stands.
	Progress struct {
		Status   string `json:"status"` // waiting | done
		Present  int    `json:"present"`
		Absent   int    `json:"absent"`
		Position int    `json:"position"` // students resolved so far
		Total    int    `json:"total"`
	}

	// StatusView is the operator's poll-friendly read model.
	StatusView struct {
		Active     bool                         `json:"active"`
		HasStudent bool                         `json:"has_student"`
		ClassID    string                       `json:"class_id"`
		Date       time.Time                    `json:"date"`
		Total      int                          `json:"total"`
		Position   int                          `json:"position"` // cursor
		Student    *RosterStudent               `json:"student,omitempty"`
		Present    int                          `json:"present"`
		Absent     int                          `json:"absent"`
		Pending    int                          `json:"pending"`
		Records    map[string]attendance.Status `json:"records"`
	}

	// DeviceView is everything the scanning device is allowed to see.
	DeviceView struct {
		Status          string         `json:"status"` // no_session | ended | done | waiting | active
		HasStudent      bool           `json:"has_student"`
		Student         *RosterStudent `json:"student,omitempty"`
		AttendanceToken string         `json:"attendance_token,omitempty"`
		Position        int            `json:"position,omitempty"` // 1-based
		Total           int            `json:"total,omitempty"`
		Present         int            `json:"present,omitempty"`
		Absent          int            `json:"absent,omitempty"`
	}
)

var _ ServiceInterface = (*Service)(nil) // interface compliance check

func NewService(classSvc ClassService, attSvc AttendanceService, conf *core.Config) *Service {
	return &Service{
		registry: newRegistry(),
		classSvc: classSvc,
		attSvc:   attSvc,
		conf:     conf,
	}
}

// Start opens a new session for (teacherID, classID, date) with a fresh
// roster snapshot. Any other active session of the same teacher is dropped
// without finalization: last writer wins.
func (svc *Service) Start(teacherID, classID string, date time.Time) (StartResult, error) {
	if _, err := svc.classSvc.GetOwnedClass(classID, teacherID); err != nil {
		return StartResult{}, err
	}

	exists, err := svc.attSvc.Exists(classID, date)
	if err != nil {
		return StartResult{}, errors.Wrap(err, "checking existing attendance")
	}
	if exists {
		return StartResult{}, ErrAttendanceExists
	}

	students, err := svc.classSvc.Roster(classID)
	if err != nil {
		return StartResult{}, errors.Wrap(err, "fetching roster")
	}
	if len(students) == 0 {
		return StartResult{}, ErrEmptyRoster
	}

	roster := make([]RosterStudent, 0, len(students))
	for _, std := range students {
		roster = append(roster, RosterStudent{
			ID:         std.ID,
			Name:       std.Name,
			RollNumber: std.RollNumber,
			Section:    std.Section,
		})
	}

	sess := &Session{
		ID:        uuid.New().String(),
		ClassID:   classID,
		TeacherID: teacherID,
		Date:      core.DateOf(date),
		Roster:    roster,
		CreatedAt: time.Now().UTC(),
		active:    true,
		outcomes:  make(map[string]attendance.Status, len(roster)),
	}
	svc.registry.add(sess)

	return StartResult{SessionID: sess.ID, TotalStudents: len(roster)}, nil
}

// Stop ends the session. With persist, every still-unresolved student is
// defaulted to absent and the full sheet is saved as one attendance record;
// the session survives a failed save so the operator can retry.
func (svc *Service) Stop(sessionID, teacherID string, persist bool) (Summary, error) {
	sess, ok := svc.registry.get(sessionID)
	if !ok {
		return Summary{}, ErrSessionNotFound
	}

	sess.mu.Lock()
	if sess.TeacherID != teacherID {
		sess.mu.Unlock()
		return Summary{}, ErrNotOwner
	}
	if !sess.active {
		sess.mu.Unlock()
		return Summary{}, ErrSessionEnded
	}

	total := len(sess.Roster)
	summary := Summary{Total: total}

	if persist {
		records := make([]attendance.StudentRecord, 0, total)
		for _, std := range sess.Roster {
			status, ok := sess.outcomes[std.ID]
			if !ok {
				status = attendance.StatusAbsent
			}
			if status == attendance.StatusPresent {
				summary.Present++
			}
			records = append(records, attendance.StudentRecord{StudentID: std.ID, Status: status})
		}
		summary.Absent = total - summary.Present

		rec, err := svc.attSvc.Save(sess.ClassID, sess.TeacherID, sess.Date, records)
		if err != nil {
			sess.mu.Unlock()
			return Summary{}, errors.Wrap(err, "saving attendance record")
		}
		summary.RecordID = rec.ID
	} else {
		summary.Present, summary.Absent = sess.counts()
	}

	sess.active = false
	sess.mu.Unlock()
	svc.registry.remove(sess.ID)

	return summary, nil
}

// Assign hands the student at the cursor to the device. Re-assigning while a
// student is already assigned is idempotent: the same student is returned and
// the cursor does not move, so a retried operator request is harmless.
func (svc *Service) Assign(sessionID, teacherID string) (Assignment, error) {
	sess, ok := svc.registry.get(sessionID)
	if !ok {
		return Assignment{}, ErrSessionNotFound
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.TeacherID != teacherID {
		return Assignment{}, ErrNotOwner
	}

	switch sess.state() {
	case StateEnded:
		return Assignment{}, ErrSessionEnded
	case StateExhausted:
		return Assignment{IsDone: true, Position: sess.cursor, Total: len(sess.Roster)}, nil
	case StateWaiting:
		sess.assigned = true
	case StateAssigned:
		// idempotent re-assign
	}

	std := sess.Roster[sess.cursor]
	return Assignment{
		HasStudent: true,
		Student:    &std,
		Position:   sess.cursor + 1,
		Total:      len(sess.Roster),
	}, nil
}

// Current is the device's poll. Unauthenticated: the scanner holds no
// operator credentials, so it only ever learns the minimum — and it never
// sees a student until the operator has explicitly assigned one.
func (svc *Service) Current(sessionID string) DeviceView {
	sess, ok := svc.registry.get(sessionID)
	if !ok {
		return DeviceView{Status: DeviceNoSession}
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	switch sess.state() {
	case StateEnded:
		return DeviceView{Status: DeviceEnded}
	case StateExhausted:
		present, absent := sess.counts()
		return DeviceView{Status: DeviceDone, Total: len(sess.Roster), Present: present, Absent: absent}
	case StateWaiting:
		// nothing assigned yet; the device should back off and re-poll
		return DeviceView{Status: DeviceActive}
	}

	std := sess.Roster[sess.cursor]
	return DeviceView{
		Status:          DeviceActive,
		HasStudent:      true,
		Student:         &std,
		AttendanceToken: makeToken(sess.ID, std.ID, svc.conf),
		Position:        sess.cursor + 1,
		Total:           len(sess.Roster),
	}
}

// Mark resolves the currently assigned student with the device-reported
// outcome. The token is the device's only authority; a stale token (the
// operator has since reassigned) is rejected rather than ever recording
// against the wrong student.
func (svc *Service) Mark(token string, status attendance.Status) (Progress, error) {
	if !status.Valid() {
		return Progress{}, ErrInvalidStatus
	}
	sessionID, studentID, err := parseToken(token, svc.conf)
	if err != nil {
		return Progress{}, err
	}

	sess, ok := svc.registry.get(sessionID)
	if !ok {
		return Progress{}, ErrSessionNotFound
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if !sess.active {
		return Progress{}, ErrSessionEnded
	}
	if !sess.assigned {
		return Progress{}, ErrNoStudentAssigned
	}
	if sess.Roster[sess.cursor].ID != studentID {
		return Progress{}, ErrStudentMismatch
	}

	return sess.resolve(studentID, status), nil
}

// Skip is the operator's escape hatch for an unresponsive device: it resolves
// the currently assigned student as absent, authenticated by teacher identity
// instead of by token.
func (svc *Service) Skip(sessionID, teacherID string) (Progress, error) {
	sess, ok := svc.registry.get(sessionID)
	if !ok {
		return Progress{}, ErrSessionNotFound
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.TeacherID != teacherID {
		return Progress{}, ErrNotOwner
	}
	if !sess.active {
		return Progress{}, ErrSessionEnded
	}
	if !sess.assigned {
		return Progress{}, ErrNoStudentAssigned
	}

	return sess.resolve(sess.Roster[sess.cursor].ID, attendance.StatusAbsent), nil
}

// Status is the operator's read model. Pure projection, safe to poll.
func (svc *Service) Status(sessionID, teacherID string) (StatusView, error) {
	sess, ok := svc.registry.get(sessionID)
	if !ok {
		return StatusView{}, ErrSessionNotFound
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.TeacherID != teacherID {
		return StatusView{}, ErrNotOwner
	}

	total := len(sess.Roster)
	present, absent := sess.counts()
	records := make(map[string]attendance.Status, len(sess.outcomes))
	for id, status := range sess.outcomes {
		records[id] = status
	}

	view := StatusView{
		Active:     sess.active,
		HasStudent: sess.assigned,
		ClassID:    sess.ClassID,
		Date:       sess.Date,
		Total:      total,
		Position:   sess.cursor,
		Present:    present,
		Absent:     absent,
		Pending:    total - present - absent,
		Records:    records,
	}
	if sess.cursor < total {
		std := sess.Roster[sess.cursor]
		view.Student = &std
	}
	return view, nil
}

// resolve records the outcome, advances the cursor and clears the assignment
// as one atomic step. mu must be held.
func (s *Session) resolve(studentID string, status attendance.Status) Progress {
	s.outcomes[studentID] = status
	s.cursor++
	s.assigned = false

	present, absent := s.counts()
	progress := Progress{
		Status:   DeviceWaiting,
		Present:  present,
		Absent:   absent,
		Position: s.cursor,
		Total:    len(s.Roster),
	}
	if s.cursor >= len(s.Roster) {
		progress.Status = DeviceDone
	}
	return progress
}
