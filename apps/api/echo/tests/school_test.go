package tests

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"testing"

	"github.com/google/uuid"

	"github.com/trezcool/darasa/core/school"
	"github.com/trezcool/darasa/core/user"
)

func Test_schoolApi_classCreate(t *testing.T) {
	app := setup(t)

	teacher := createUser(t, "Teacher", "teacher", "teacher@test.cd", "", []string{user.RoleTeacher}, true)
	admin := createUser(t, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdmin}, true)

	createClass(t, "4A", "4", "")

	type extraTest struct {
		checkClass bool
	}
	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Admin required", token: getToken(t, teacher), wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "required fields", token: getToken(t, admin), body: marchallObj(t, school.NewClass{}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"name": "this field is required", "grade": "this field is required"}),
		},
		{
			name: "duplicate name", token: getToken(t, admin), body: marchallObj(t, school.NewClass{Name: "4a", Grade: "4"}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"name": "a class with this name already exists"}),
		},
		{
			name: "invalid homeroom teacher id", token: getToken(t, admin),
			body:     marchallObj(t, school.NewClass{Name: "5A", Grade: "5", HomeroomTeacherID: "lol"}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"homeroom_teacher_id": "homeroom_teacher_id must be a valid version 4 UUID"}),
		},
		{
			name: "created", token: getToken(t, admin),
			body:     marchallObj(t, school.NewClass{Name: "5A", Grade: "5", HomeroomTeacherID: teacher.ID}),
			wantCode: http.StatusCreated, extra: extraTest{checkClass: true},
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/api/classes"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)

			if extra, ok := tt.extra.(extraTest); ok && extra.checkClass {
				if rec.Code != tt.wantCode {
					t.Fatalf("failed! code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
				}
				var cls school.Class
				if err := json.Unmarshal(rec.Body.Bytes(), &cls); err != nil {
					t.Fatalf("json.Unmarshal() failed, %v", err)
				}
				if cls.ID == "" {
					t.Error("failed! empty class ID")
				}
				if cls.Name != "5A" || cls.Grade != "5" || cls.HomeroomTeacherID != teacher.ID {
					t.Errorf("failed! class = %+v", cls)
				}
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_schoolApi_roster(t *testing.T) {
	app := setup(t)

	teacher := createUser(t, "Teacher", "teacher", "teacher@test.cd", "", []string{user.RoleTeacher}, true)
	pupil := createUser(t, "Hero", "hero", "hero@test.cd", "", []string{user.RoleStudent}, true)

	cls := createClass(t, "4A", "4", teacher.ID)
	// created out of roll order on purpose
	std2 := createStudent(t, cls.ID, "Bintu Mwamba", 2, "")
	std1 := createStudent(t, cls.ID, "Amani Kalala", 1, "")
	std3 := createStudent(t, cls.ID, "Chanda Ilunga", 3, "")

	empty := createClass(t, "4B", "4", "")

	path := func(classID string) string { return fmt.Sprintf("/api/classes/%s/roster", classID) }

	tests := []httpTest{
		{name: "Auth required", path: path(cls.ID), wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Teacher or admin required", path: path(cls.ID), token: getToken(t, pupil),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "Unknown class", path: path(uuid.New().String()), token: getToken(t, teacher),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "not found"}),
		},
		{
			name: "Ordered by roll number", path: path(cls.ID), token: getToken(t, teacher), wantCode: http.StatusOK,
			wantData: marchallObj(t, school.Roster{Class: cls, Students: []school.Student{std1, std2, std3}}),
		},
		{
			name: "Empty class", path: path(empty.ID), token: getToken(t, teacher), wantCode: http.StatusOK,
			wantData: marchallObj(t, school.Roster{Class: empty, Students: []school.Student{}}),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodGet

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_schoolApi_ownClass(t *testing.T) {
	app := setup(t)

	teacher := createUser(t, "Teacher", "teacher", "teacher@test.cd", "", []string{user.RoleTeacher}, true)
	freeTeacher := createUser(t, "Floater", "floater", "floater@test.cd", "", []string{user.RoleTeacher}, true)
	admin := createUser(t, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdmin}, true)

	cls := createClass(t, "4A", "4", teacher.ID)

	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Teacher portal only", token: getToken(t, admin), wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "No homeroom assignment", token: getToken(t, freeTeacher), wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "not found"}),
		},
		{name: "Found", token: getToken(t, teacher), wantCode: http.StatusOK, wantData: marchallObj(t, cls)},
	}
	for _, tt := range tests {
		tt.method = http.MethodGet
		tt.path = "/api/teachers/me/class"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_schoolApi_subjectQuery(t *testing.T) {
	app := setup(t)

	teacher := createUser(t, "Teacher", "teacher", "teacher@test.cd", "", []string{user.RoleTeacher}, true)
	pupil := createUser(t, "Hero", "hero", "hero@test.cd", "", []string{user.RoleStudent}, true)

	cls4 := createClass(t, "4A", "4", teacher.ID)
	cls5 := createClass(t, "5A", "5", "")
	math := createSubject(t, cls4.ID, "Mathematics", "math4")
	sci := createSubject(t, cls4.ID, "Science", "sci4")
	hist := createSubject(t, cls5.ID, "History", "hist5")

	token := getToken(t, teacher)

	tests := []httpTest{
		{name: "Auth required", path: "/api/subjects", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Teacher or admin required", path: "/api/subjects", token: getToken(t, pupil),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "Get all", path: "/api/subjects", token: token, wantCode: http.StatusOK,
			wantData: marchallList(t, hist, math, sci), // name asc
		},
		{
			name: "class filter", path: "/api/subjects?class_id=" + cls4.ID, token: token,
			wantCode: http.StatusOK, wantData: marchallList(t, math, sci),
		},
		{
			name: "class-scoped listing", path: fmt.Sprintf("/api/classes/%s/subjects", cls5.ID), token: token,
			wantCode: http.StatusOK, wantData: marchallList(t, hist),
		},
		{
			name: "class-scoped listing, unknown class", path: fmt.Sprintf("/api/classes/%s/subjects", uuid.New().String()),
			token: token, wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "not found"}),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodGet

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_schoolApi_studentQuery(t *testing.T) {
	app := setup(t)

	teacher := createUser(t, "Teacher", "teacher", "teacher@test.cd", "", []string{user.RoleTeacher}, true)

	cls4 := createClass(t, "4A", "4", teacher.ID)
	cls5 := createClass(t, "5A", "5", "")
	std1 := createStudent(t, cls4.ID, "Amani Kalala", 1, "")
	std2 := createStudent(t, cls4.ID, "Bintu Mwamba", 2, "")
	std3 := createStudent(t, cls5.ID, "Chanda Ilunga", 1, "")

	path := func(search, classID, grade string) string {
		v := url.Values{}
		if search != "" {
			v.Add("search", search)
		}
		if classID != "" {
			v.Add("class_id", classID)
		}
		if grade != "" {
			v.Add("grade", grade)
		}
		return "/api/students?" + v.Encode()
	}
	token := getToken(t, teacher)
	empty := marchallList(t)

	tests := []httpTest{
		{name: "Get all", path: "/api/students", token: token, wantData: marchallList(t, std1, std3, std2)},
		{name: "search (unknown)", path: path("lol", "", ""), token: token, wantData: empty},
		{name: "search=aman", path: path("aman", "", ""), token: token, wantData: marchallList(t, std1)},
		{name: "class_id", path: path("", cls4.ID, ""), token: token, wantData: marchallList(t, std1, std2)},
		{name: "grade=5", path: path("", "", "5"), token: token, wantData: marchallList(t, std3)},
		{name: "search & grade (empty)", path: path("aman", "", "5"), token: token, wantData: empty},
	}
	for _, tt := range tests {
		tt.method = http.MethodGet
		tt.wantCode = http.StatusOK

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}
