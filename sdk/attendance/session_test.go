package attendance

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/sdk"
)

// fakeAPI is an in-process server for one class; requestCount tracks every
// hit so tests can assert that client-side gates fire before any traffic.
type fakeAPI struct {
	t            *testing.T
	classID      string
	roster       []sdk.RosterEntry
	records      map[string]sdk.AttendanceRecord // by date
	rosterErr    bool
	recordErr    bool
	requestCount int64
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	return &fakeAPI{
		t:       t,
		classID: "c1",
		roster: []sdk.RosterEntry{
			{StudentID: "s1", Name: "Amani Kalala", RollNo: 1},
			{StudentID: "s2", Name: "Bintu Mwamba", RollNo: 2},
			{StudentID: "s3", Name: "Chanda Ilunga", RollNo: 3},
		},
		records: make(map[string]sdk.AttendanceRecord),
	}
}

func (f *fakeAPI) server() *httptest.Server {
	mux := http.NewServeMux()
	prefix := "/api/classes/" + f.classID
	mux.HandleFunc(prefix+"/roster", func(w http.ResponseWriter, r *http.Request) {
		if f.rosterErr {
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "oops"})
			return
		}
		// serve the wire shape the real server emits for roster students
		students := make([]map[string]interface{}, 0, len(f.roster))
		for _, s := range f.roster {
			students = append(students, map[string]interface{}{
				"id": s.StudentID, "name": s.Name, "roll_no": s.RollNo,
			})
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"class":    sdk.Class{ID: f.classID, Name: "4A"},
			"students": students,
		})
	})
	mux.HandleFunc(prefix+"/attendance/history", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]sdk.DaySummary{})
	})
	mux.HandleFunc(prefix+"/attendance", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			if f.recordErr {
				w.WriteHeader(http.StatusInternalServerError)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "oops"})
				return
			}
			rec, ok := f.records[r.URL.Query().Get("date")]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "not found"})
				return
			}
			_ = json.NewEncoder(w).Encode(rec)
		case http.MethodPost:
			var sa sdk.SubmitAttendance
			if err := json.NewDecoder(r.Body).Decode(&sa); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			if _, exists := f.records[sa.Date]; exists {
				w.WriteHeader(http.StatusConflict)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "attendance already recorded for this date"})
				return
			}
			rec := sdk.AttendanceRecord{
				ID:       "rec-" + sa.Date,
				ClassID:  f.classID,
				Date:     sa.Date,
				Students: sa.Students,
			}
			f.records[sa.Date] = rec
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(rec)
		}
	})
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&f.requestCount, 1)
		mux.ServeHTTP(w, r)
	}))
}

func newTestSession(t *testing.T, api *fakeAPI, date string) (*Session, func()) {
	t.Helper()
	srv := api.server()
	client := sdk.NewClient(srv.URL, sdk.NewMemoryTokenStore(), sdk.TokenKeyTeacher)
	return NewSession(client, api.classID, date, nil), srv.Close
}

func mockNow(t *testing.T, date string) {
	t.Helper()
	now, err := time.Parse(DateLayout, date)
	if err != nil {
		t.Fatalf("time.Parse() failed, %v", err)
	}
	nowFunc = func() time.Time { return now }
	t.Cleanup(func() { nowFunc = time.Now })
}

func statuses(entries []Entry) map[string]Status {
	m := make(map[string]Status, len(entries))
	for _, e := range entries {
		m[e.StudentID] = e.Status
	}
	return m
}

func TestSession_Load_freshDay(t *testing.T) {
	api := newFakeAPI(t)
	sess, teardown := newTestSession(t, api, "2021-09-06")
	defer teardown()

	if err := sess.Load(context.Background()); err != nil {
		t.Fatalf("Load() failed, %v", err)
	}
	if got := sess.State(); got != StateUnlockedDraft {
		t.Errorf("State() = %s, want %s", got, StateUnlockedDraft)
	}

	entries := sess.Entries()
	if len(entries) != len(api.roster) {
		t.Fatalf("len(Entries()) = %d, want %d", len(entries), len(api.roster))
	}
	for i, e := range entries {
		if e.StudentID != api.roster[i].StudentID {
			t.Errorf("Entries()[%d].StudentID = %s, want %s (roster order)", i, e.StudentID, api.roster[i].StudentID)
		}
		if e.Status != StatusPresent {
			t.Errorf("Entries()[%d].Status = %s, want %s", i, e.Status, StatusPresent)
		}
	}
}

func TestSession_Load_recordedDay(t *testing.T) {
	api := newFakeAPI(t)
	api.records["2021-09-06"] = sdk.AttendanceRecord{
		ID:      "rec1",
		ClassID: api.classID,
		Date:    "2021-09-06",
		Students: []sdk.AttendanceEntry{
			{StudentID: "s2", Status: "absent"},
			{StudentID: "s3", Status: "sick"},  // unknown status -> present
			{StudentID: "s9", Status: "leave"}, // not in roster -> dropped
		},
	}
	sess, teardown := newTestSession(t, api, "2021-09-06")
	defer teardown()

	if err := sess.Load(context.Background()); err != nil {
		t.Fatalf("Load() failed, %v", err)
	}
	if got := sess.State(); got != StateLockedView {
		t.Errorf("State() = %s, want %s", got, StateLockedView)
	}

	entries := sess.Entries()
	if len(entries) != 3 {
		t.Fatalf("len(Entries()) = %d, want 3", len(entries))
	}
	want := map[string]Status{"s1": StatusPresent, "s2": StatusAbsent, "s3": StatusPresent}
	for id, status := range statuses(entries) {
		if status != want[id] {
			t.Errorf("status[%s] = %s, want %s", id, status, want[id])
		}
	}

	// locked: edits and submissions are rejected without touching the server
	before := atomic.LoadInt64(&api.requestCount)
	if err := sess.SetStatus("s1", StatusAbsent); errors.Cause(err) != ErrLocked {
		t.Errorf("SetStatus() error = %v, want %v", err, ErrLocked)
	}
	if _, err := sess.Submit(context.Background()); errors.Cause(err) != ErrLocked {
		t.Errorf("Submit() error = %v, want %v", err, ErrLocked)
	}
	if after := atomic.LoadInt64(&api.requestCount); after != before {
		t.Errorf("server hit %d times while locked, want 0", after-before)
	}
}

func TestSession_Load_emptyRecord(t *testing.T) {
	api := newFakeAPI(t)
	api.records["2021-09-06"] = sdk.AttendanceRecord{ID: "rec1", ClassID: api.classID, Date: "2021-09-06"}
	sess, teardown := newTestSession(t, api, "2021-09-06")
	defer teardown()

	if err := sess.Load(context.Background()); err != nil {
		t.Fatalf("Load() failed, %v", err)
	}
	// a record with no entries does not lock the day
	if got := sess.State(); got != StateUnlockedDraft {
		t.Errorf("State() = %s, want %s", got, StateUnlockedDraft)
	}
	for id, status := range statuses(sess.Entries()) {
		if status != StatusPresent {
			t.Errorf("status[%s] = %s, want %s", id, status, StatusPresent)
		}
	}
	if err := sess.SetStatus("s1", StatusAbsent); err != nil {
		t.Errorf("SetStatus() failed, %v", err)
	}
}

func TestSession_Load_recordLookupFails(t *testing.T) {
	api := newFakeAPI(t)
	api.recordErr = true
	sess, teardown := newTestSession(t, api, "2021-09-06")
	defer teardown()

	if err := sess.Load(context.Background()); err != nil {
		t.Fatalf("Load() failed, %v", err)
	}
	if got := sess.State(); got != StateUnlockedDraft {
		t.Errorf("State() = %s, want %s", got, StateUnlockedDraft)
	}
	for id, status := range statuses(sess.Entries()) {
		if status != StatusPresent {
			t.Errorf("status[%s] = %s, want %s", id, status, StatusPresent)
		}
	}
}

func TestSession_Load_rosterFails(t *testing.T) {
	api := newFakeAPI(t)
	api.rosterErr = true
	sess, teardown := newTestSession(t, api, "2021-09-06")
	defer teardown()

	err := sess.Load(context.Background())
	if errors.Cause(err) != ErrNoRoster {
		t.Fatalf("Load() error = %v, want %v", err, ErrNoRoster)
	}
	if _, err = sess.Submit(context.Background()); errors.Cause(err) != ErrNoRoster {
		t.Errorf("Submit() error = %v, want %v", err, ErrNoRoster)
	}
}

func TestSession_SetStatus(t *testing.T) {
	api := newFakeAPI(t)
	sess, teardown := newTestSession(t, api, "2021-09-06")
	defer teardown()

	if err := sess.Load(context.Background()); err != nil {
		t.Fatalf("Load() failed, %v", err)
	}

	tests := []struct {
		name      string
		studentID string
		status    Status
		wantErr   error
	}{
		{name: "absent", studentID: "s1", status: StatusAbsent},
		{name: "leave", studentID: "s2", status: StatusLeave},
		{name: "late", studentID: "s3", status: StatusLate},
		{name: "back to present", studentID: "s1", status: StatusPresent},
		{name: "unknown student", studentID: "nope", status: StatusAbsent, wantErr: ErrUnknownStudent},
		{name: "invalid status", studentID: "s1", status: Status("lol"), wantErr: ErrInvalidStatus},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := sess.SetStatus(tt.studentID, tt.status)
			if errors.Cause(err) != tt.wantErr {
				t.Errorf("SetStatus() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSession_Submit(t *testing.T) {
	mockNow(t, "2021-09-06")
	api := newFakeAPI(t)
	sess, teardown := newTestSession(t, api, "2021-09-06")
	defer teardown()

	if err := sess.Load(context.Background()); err != nil {
		t.Fatalf("Load() failed, %v", err)
	}
	if err := sess.SetStatus("s2", StatusAbsent); err != nil {
		t.Fatalf("SetStatus() failed, %v", err)
	}
	if err := sess.SetStatus("s3", StatusLate); err != nil {
		t.Fatalf("SetStatus() failed, %v", err)
	}

	rec, err := sess.Submit(context.Background())
	if err != nil {
		t.Fatalf("Submit() failed, %v", err)
	}
	if got := sess.State(); got != StateLockedView {
		t.Errorf("State() = %s, want %s", got, StateLockedView)
	}

	// payload covers the roster exactly, in roster order, late folded to present
	if len(rec.Students) != len(api.roster) {
		t.Fatalf("len(rec.Students) = %d, want %d", len(rec.Students), len(api.roster))
	}
	wantStatuses := []string{"present", "absent", "present"}
	for i, e := range rec.Students {
		if e.StudentID != api.roster[i].StudentID {
			t.Errorf("rec.Students[%d].StudentID = %s, want %s", i, e.StudentID, api.roster[i].StudentID)
		}
		if e.Status != wantStatuses[i] {
			t.Errorf("rec.Students[%d].Status = %s, want %s", i, e.Status, wantStatuses[i])
		}
	}
	// the draft reflects the normalized statuses
	if got := statuses(sess.Entries())["s3"]; got != StatusPresent {
		t.Errorf("status[s3] = %s, want %s after submission", got, StatusPresent)
	}

	// a fresh session for the same day sees the record and refuses re-submission
	sess2, teardown2 := newTestSession(t, api, "2021-09-06")
	defer teardown2()
	if err = sess2.Load(context.Background()); err != nil {
		t.Fatalf("Load() failed, %v", err)
	}
	if got := sess2.State(); got != StateLockedView {
		t.Errorf("State() = %s, want %s", got, StateLockedView)
	}
}

func TestSession_Submit_futureDate(t *testing.T) {
	mockNow(t, "2021-09-06")
	api := newFakeAPI(t)
	sess, teardown := newTestSession(t, api, "2021-09-07")
	defer teardown()

	if err := sess.Load(context.Background()); err != nil {
		t.Fatalf("Load() failed, %v", err)
	}

	before := atomic.LoadInt64(&api.requestCount)
	if _, err := sess.Submit(context.Background()); errors.Cause(err) != ErrFutureDate {
		t.Fatalf("Submit() error = %v, want %v", err, ErrFutureDate)
	}
	if after := atomic.LoadInt64(&api.requestCount); after != before {
		t.Errorf("server hit %d times for a future date, want 0", after-before)
	}
	if got := sess.State(); got != StateUnlockedDraft {
		t.Errorf("State() = %s, want %s (draft intact)", got, StateUnlockedDraft)
	}
}

func TestSession_Submit_localTodayAheadOfUTC(t *testing.T) {
	// 08:00 on Sep 7 in UTC+14 is still Sep 6 in UTC; the local calendar
	// date is what counts
	nowFunc = func() time.Time {
		return time.Date(2021, 9, 7, 8, 0, 0, 0, time.FixedZone("UTC+14", 14*60*60))
	}
	t.Cleanup(func() { nowFunc = time.Now })

	api := newFakeAPI(t)
	sess, teardown := newTestSession(t, api, "2021-09-07")
	defer teardown()

	if err := sess.Load(context.Background()); err != nil {
		t.Fatalf("Load() failed, %v", err)
	}
	if _, err := sess.Submit(context.Background()); err != nil {
		t.Fatalf("Submit() failed, %v", err)
	}
	if got := sess.State(); got != StateLockedView {
		t.Errorf("State() = %s, want %s", got, StateLockedView)
	}
}

func TestSession_Submit_conflict(t *testing.T) {
	mockNow(t, "2021-09-06")
	api := newFakeAPI(t)
	api.records["2021-09-06"] = sdk.AttendanceRecord{ID: "rec1", ClassID: api.classID, Date: "2021-09-06"}
	sess, teardown := newTestSession(t, api, "2021-09-06")
	defer teardown()

	// the seeded record has no entries, so the session loads unlocked and the
	// server-side write-once guard is what rejects the re-submission
	if err := sess.Load(context.Background()); err != nil {
		t.Fatalf("Load() failed, %v", err)
	}
	if err := sess.SetStatus("s1", StatusLeave); err != nil {
		t.Fatalf("SetStatus() failed, %v", err)
	}
	_, err := sess.Submit(context.Background())
	if errors.Cause(err) != sdk.ErrAlreadyMarked {
		t.Fatalf("Submit() error = %v, want %v", err, sdk.ErrAlreadyMarked)
	}
	// failure keeps the draft editable with edits intact
	if got := sess.State(); got != StateUnlockedDraft {
		t.Errorf("State() = %s, want %s", got, StateUnlockedDraft)
	}
	if got := statuses(sess.Entries())["s1"]; got != StatusLeave {
		t.Errorf("status[s1] = %s, want %s", got, StatusLeave)
	}
}

func TestSession_SelectDate_discardsStaleResponses(t *testing.T) {
	api := newFakeAPI(t)
	api.records["2021-09-03"] = sdk.AttendanceRecord{
		ID:      "rec1",
		ClassID: api.classID,
		Date:    "2021-09-03",
		Students: []sdk.AttendanceEntry{
			{StudentID: "s1", Status: "absent"},
			{StudentID: "s2", Status: "absent"},
			{StudentID: "s3", Status: "absent"},
		},
	}

	release := make(chan struct{})
	srv := api.server()
	defer srv.Close()
	// wrap the fake with a gate that stalls the first day's record lookup
	gated := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/attendance") &&
			r.URL.Query().Get("date") == "2021-09-03" {
			select {
			case <-release:
			case <-r.Context().Done():
				return
			}
		}
		res, err := http.Get(srv.URL + r.URL.Path + "?" + r.URL.RawQuery)
		if err != nil {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		defer func() { _ = res.Body.Close() }()
		w.WriteHeader(res.StatusCode)
		_, _ = io.Copy(w, res.Body)
	}))
	defer gated.Close()

	client := sdk.NewClient(gated.URL, sdk.NewMemoryTokenStore(), sdk.TokenKeyTeacher)
	sess := NewSession(client, api.classID, "2021-09-03", nil)

	staleDone := make(chan error, 1)
	go func() { staleDone <- sess.Load(context.Background()) }()

	// switch days while the first load is stalled on the record lookup
	time.Sleep(50 * time.Millisecond)
	if err := sess.SelectDate(context.Background(), "2021-09-06"); err != nil {
		t.Fatalf("SelectDate() failed, %v", err)
	}
	close(release)
	if err := <-staleDone; err != nil {
		t.Fatalf("stale Load() failed, %v", err)
	}

	// the stale (locked, all-absent) response must not clobber the new day
	if got := sess.Date(); got != "2021-09-06" {
		t.Errorf("Date() = %s, want 2021-09-06", got)
	}
	if got := sess.State(); got != StateUnlockedDraft {
		t.Errorf("State() = %s, want %s", got, StateUnlockedDraft)
	}
	for id, status := range statuses(sess.Entries()) {
		if status != StatusPresent {
			t.Errorf("status[%s] = %s, want %s", id, status, StatusPresent)
		}
	}
}
