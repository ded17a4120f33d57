package controllers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	gorillaws "github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itsbooking/portal/internal/app/models"
	"github.com/itsbooking/portal/internal/app/models/dto"
	"github.com/itsbooking/portal/internal/booking"
	"github.com/itsbooking/portal/internal/bootstrap"
	"github.com/itsbooking/portal/internal/config"
	"github.com/itsbooking/portal/internal/pkg/auth"
	"github.com/itsbooking/portal/internal/pkg/websocket"
	"github.com/itsbooking/portal/internal/testutil"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Field   string `json:"field"`
	} `json:"error"`
}

type apiTest struct {
	t      *testing.T
	deps   *bootstrap.Dependencies
	router *gin.Engine
	course *models.Course

	coordinator, assistant, assistant2, student, outsider *models.User
}

func newAPITest(t *testing.T) *apiTest {
	t.Helper()

	cfg := config.Default()
	cfg.Server.Mode = "test"
	cfg.Storage.Path = t.TempDir()
	cfg.JWT.Secret = "controller-test-secret"
	cfg.JWT.Issuer = "itsbooking"

	database := testutil.NewDB(t)
	deps, err := bootstrap.BuildDependencies(cfg, database, zerolog.Nop())
	require.NoError(t, err)

	a := &apiTest{
		t:      t,
		deps:   deps,
		router: bootstrap.SetupRouter(cfg, deps, zerolog.Nop()),
	}

	env := &testutil.Env{DB: database, Repos: deps.Repos}
	a.coordinator = env.User(t, "course_coordinator", models.RoleCoordinator)
	a.assistant = env.User(t, "assistant", models.RoleAssistant)
	a.assistant2 = env.User(t, "assistant1", models.RoleAssistant)
	a.student = env.User(t, "student", models.RoleStudent)
	a.outsider = env.User(t, "student1", models.RoleStudent)

	course, err := deps.Courses.CreateCourse(context.Background(), &dto.CreateCourseRequest{
		Title:       "Algoritmer og datastrukturer",
		Code:        "TDT4120",
		Coordinator: a.coordinator.Username,
	})
	require.NoError(t, err)
	env.Join(t, course, a.assistant, a.assistant2, a.student)
	a.course = course
	return a
}

func (a *apiTest) token(u *models.User) string {
	tok, _, err := a.deps.JWT.GenerateAccessToken(auth.Subject{UserID: u.ID, Username: u.Username, Role: string(u.Role)})
	require.NoError(a.t, err)
	return tok
}

func (a *apiTest) do(u *models.User, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	a.t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if u != nil {
		req.Header.Set("Authorization", "Bearer "+a.token(u))
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func (a *apiTest) get(u *models.User, path string) *httptest.ResponseRecorder {
	return a.do(u, http.MethodGet, path, nil, "")
}

func (a *apiTest) sendJSON(u *models.User, method, path string, v interface{}) *httptest.ResponseRecorder {
	a.t.Helper()
	b, err := json.Marshal(v)
	require.NoError(a.t, err)
	return a.do(u, method, path, bytes.NewReader(b), "application/json")
}

func (a *apiTest) upload(u *models.User, method, path, field, filename, content string) *httptest.ResponseRecorder {
	a.t.Helper()
	body, contentType := testutil.MultipartBody(a.t, field, filename, []byte(content))
	return a.do(u, method, path, body, contentType)
}

// decode unwraps the envelope of w into v and returns the envelope
func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	if v != nil {
		require.NoError(t, json.Unmarshal(env.Data, v), string(env.Data))
	}
	return env
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	env := decode(t, w, nil)
	require.NotNil(t, env.Error, w.Body.String())
	return env.Error.Code
}

// interval returns the booking interval of the test course on day at hh:mm
func (a *apiTest) interval(day booking.Weekday, hh, mm int) *models.BookingInterval {
	a.t.Helper()
	start, err := booking.NewTimeOfDay(hh, mm)
	require.NoError(a.t, err)
	bi, err := a.deps.Repos.BookingIntervalRepository.GetByNK(context.Background(), booking.IntervalKey(start, day, a.course.Code), false)
	require.NoError(a.t, err)
	return bi
}

func (a *apiTest) firstSlot(bi *models.BookingInterval) int64 {
	a.t.Helper()
	slots, err := a.deps.Repos.ReservationRepository.ListIntervals(context.Background(), bi.ID)
	require.NoError(a.t, err)
	require.NotEmpty(a.t, slots)
	return slots[0].ID
}

func TestAuthEndpoints(t *testing.T) {
	a := newAPITest(t)

	w := a.sendJSON(nil, http.MethodPost, "/api/v1/auth/login", dto.LoginRequest{Username: "student", Password: testutil.Password})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var tok struct {
		AccessToken string `json:"accessToken"`
		TokenType   string `json:"tokenType"`
		User        struct {
			Username string      `json:"username"`
			Role     models.Role `json:"role"`
		} `json:"user"`
	}
	env := decode(t, w, &tok)
	assert.True(t, env.Success)
	assert.Equal(t, "Bearer", tok.TokenType)
	assert.Equal(t, models.RoleStudent, tok.User.Role)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	w = httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	var me struct {
		Username  string `json:"username"`
		HasAvatar bool   `json:"hasAvatar"`
	}
	decode(t, w, &me)
	assert.Equal(t, "student", me.Username)
	assert.False(t, me.HasAvatar)

	w = a.sendJSON(nil, http.MethodPost, "/api/v1/auth/login", dto.LoginRequest{Username: "student", Password: "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, string(dto.ErrorCodeInvalidCredentials), errorCode(t, w))

	w = a.sendJSON(nil, http.MethodPost, "/api/v1/auth/login", map[string]string{"username": "student"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.get(nil, "/api/v1/home")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	a := newAPITest(t)

	w := a.get(nil, "/api/v1/health")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = a.get(nil, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "itsbooking_http_requests_total")
	assert.Contains(t, w.Body.String(), "itsbooking_websocket_clients")
}

func TestBookingFlow(t *testing.T) {
	a := newAPITest(t)
	bi := a.interval(0, 8, 0)
	slot := a.firstSlot(bi)
	toggle := "/api/v1/booking/registration-switch?nk=" + bi.NK
	reserve := "/api/v1/courses/" + a.course.Slug + "/reservations"

	w := a.get(a.student, toggle)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, string(dto.ErrorCodeForbidden), errorCode(t, w))

	w = a.get(a.assistant, "/api/v1/booking/registration-switch")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.get(a.assistant, "/api/v1/booking/registration-switch?nk=does-not-exist")
	assert.Equal(t, http.StatusNotFound, w.Code)

	// nobody is registered yet
	w = a.sendJSON(a.student, http.MethodPost, reserve, dto.ReserveRequest{ReservationIntervalID: slot})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, string(dto.ErrorCodeNoAssistants), errorCode(t, w))

	w = a.get(a.coordinator, "/api/v1/booking/max-assistants?nk="+bi.NK+"&num=many")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.get(a.coordinator, "/api/v1/booking/max-assistants?nk="+bi.NK+"&num=2")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"nk":"`+bi.NK+`","max_available_assistants":2}`, w.Body.String())

	w = a.get(a.assistant, toggle)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"registration_available":false,"available_assistants_count":1}`, w.Body.String())

	w = a.sendJSON(a.student, http.MethodPost, reserve, dto.ReserveRequest{ReservationIntervalID: slot})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		ID        int64  `json:"id"`
		Assistant string `json:"assistant"`
	}
	decode(t, w, &created)
	assert.NotZero(t, created.ID)

	w = a.sendJSON(a.student, http.MethodPost, reserve, dto.ReserveRequest{ReservationIntervalID: slot})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = a.sendJSON(a.assistant, http.MethodPost, reserve, dto.ReserveRequest{ReservationIntervalID: slot})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = a.sendJSON(a.student, http.MethodPost, reserve, map[string]int{"reservationIntervalId": 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// each role gets its own reservation page
	w = a.get(a.student, "/api/v1/reservations")
	require.Equal(t, http.StatusOK, w.Code)
	var mine []struct {
		ID int64 `json:"id"`
	}
	decode(t, w, &mine)
	require.Len(t, mine, 1)
	assert.Equal(t, created.ID, mine[0].ID)

	w = a.get(a.assistant, "/api/v1/reservations?course="+a.course.Slug)
	require.Equal(t, http.StatusOK, w.Code)
	var views []struct {
		NK    string `json:"nk"`
		Slots []struct {
			ReservationIntervalID int64 `json:"reservationIntervalId"`
			Reservation           *struct {
				ID int64 `json:"id"`
			} `json:"reservation"`
		} `json:"slots"`
	}
	decode(t, w, &views)
	require.Len(t, views, 1)
	assert.Equal(t, bi.NK, views[0].NK)
	require.NotEmpty(t, views[0].Slots)
	require.NotNil(t, views[0].Slots[0].Reservation)
	assert.Equal(t, created.ID, views[0].Slots[0].Reservation.ID)

	w = a.get(a.coordinator, "/api/v1/reservations")
	assert.Equal(t, http.StatusForbidden, w.Code)

	path := "/api/v1/reservations/" + strconv.FormatInt(created.ID, 10)
	w = a.do(a.outsider, http.MethodDelete, path, nil, "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = a.do(a.student, http.MethodDelete, path, nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = a.do(a.student, http.MethodDelete, path, nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = a.do(a.student, http.MethodDelete, "/api/v1/reservations/abc", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// toggling again unregisters
	w = a.get(a.assistant, toggle)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"registration_available":true,"available_assistants_count":0}`, w.Body.String())
}

func TestCourseViews(t *testing.T) {
	a := newAPITest(t)

	w := a.get(a.student, "/api/v1/home")
	require.Equal(t, http.StatusOK, w.Code)
	var home struct {
		Courses []struct {
			Slug string `json:"slug"`
		} `json:"courses"`
	}
	decode(t, w, &home)
	require.Len(t, home.Courses, 1)
	assert.Equal(t, "tdt4120", home.Courses[0].Slug)

	w = a.get(a.student, "/api/v1/courses/tdt4120/table")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var table struct {
		Days   []struct{ Name string } `json:"days"`
		Blocks []struct {
			Cells []struct {
				NK string `json:"nk"`
			} `json:"cells"`
		} `json:"blocks"`
	}
	decode(t, w, &table)
	assert.Len(t, table.Days, 5)
	require.Len(t, table.Blocks, 5)
	assert.Len(t, table.Blocks[0].Cells, 5)

	w = a.get(a.coordinator, "/api/v1/courses/tdt4120")
	require.Equal(t, http.StatusOK, w.Code)
	var landing struct {
		Role     models.Role `json:"role"`
		Overview *struct {
			TotalIntervals int `json:"totalIntervals"`
		} `json:"overview"`
	}
	decode(t, w, &landing)
	assert.Equal(t, models.RoleCoordinator, landing.Role)
	assert.NotNil(t, landing.Overview)

	w = a.get(a.outsider, "/api/v1/courses/tdt4120")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = a.get(a.student, "/api/v1/courses/tma4100/table")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, string(dto.ErrorCodeResourceNotFound), errorCode(t, w))
}

func TestExerciseEndpoints(t *testing.T) {
	a := newAPITest(t)
	base := "/api/v1/courses/tdt4120/exercises"

	w := a.upload(a.assistant, http.MethodPost, base, "file", "oving1.pdf", "x")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = a.upload(a.student, http.MethodPost, base, "attachment", "oving1.pdf", "x")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.upload(a.student, http.MethodPost, base, "file", "..", "x")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, string(dto.ErrorCodeValidationFailed), errorCode(t, w))

	w = a.upload(a.student, http.MethodPost, base, "file", "oving1.py", "print('hei')")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var ex struct {
		ID     int64  `json:"id"`
		Status string `json:"status"`
	}
	decode(t, w, &ex)
	assert.Equal(t, models.ExerciseUnreviewed, ex.Status)
	exPath := "/api/v1/exercises/" + strconv.FormatInt(ex.ID, 10)

	w = a.get(a.assistant, base+"?unreviewed=true")
	require.Equal(t, http.StatusOK, w.Code)
	var page struct {
		Items      []struct{ ID int64 } `json:"items"`
		Pagination struct {
			TotalItems int64 `json:"totalItems"`
		} `json:"pagination"`
	}
	decode(t, w, &page)
	require.Len(t, page.Items, 1)
	assert.Equal(t, int64(1), page.Pagination.TotalItems)

	w = a.get(a.assistant, exPath+"/file")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "print('hei')", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment")
	assert.Contains(t, w.Header().Get("Content-Disposition"), "oving1.py")

	w = a.sendJSON(a.student, http.MethodPut, exPath+"/review", map[string]interface{}{"approved": true})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = a.sendJSON(a.assistant, http.MethodPut, exPath+"/review", map[string]interface{}{"feedback": "bra"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.sendJSON(a.assistant, http.MethodPut, exPath+"/review", map[string]interface{}{"feedback": "bra", "approved": true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, w, &ex)
	assert.Equal(t, models.ExerciseApproved, ex.Status)

	w = a.get(a.coordinator, base+"?unreviewed=1")
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &page)
	assert.Empty(t, page.Items)

	w = a.get(a.student, exPath)
	require.Equal(t, http.StatusOK, w.Code)

	w = a.do(a.student, http.MethodDelete, exPath, nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = a.get(a.student, exPath)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAnnouncementEndpoints(t *testing.T) {
	a := newAPITest(t)
	base := "/api/v1/courses/tdt4120/announcements"
	req := dto.CreateAnnouncementRequest{Title: "Sal endret", Content: "Øvingstimen flyttes til R7."}

	w := a.sendJSON(a.assistant, http.MethodPost, base, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = a.sendJSON(a.coordinator, http.MethodPost, base, map[string]string{"title": "no content"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.sendJSON(a.coordinator, http.MethodPost, base, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var ann struct {
		ID           int64  `json:"id"`
		Title        string `json:"title"`
		CommentCount int    `json:"commentCount"`
		Comments     []struct {
			Content string `json:"content"`
		} `json:"comments"`
	}
	decode(t, w, &ann)
	path := "/api/v1/announcements/" + strconv.FormatInt(ann.ID, 10)

	w = a.sendJSON(a.assistant, http.MethodPost, path+"/comments", dto.CreateCommentRequest{Content: "Notert"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = a.sendJSON(a.student, http.MethodPost, path+"/comments", dto.CreateCommentRequest{Content: "Hei"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = a.get(a.assistant2, path)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &ann)
	assert.Equal(t, 1, ann.CommentCount)
	require.Len(t, ann.Comments, 1)
	assert.Equal(t, "Notert", ann.Comments[0].Content)

	w = a.get(a.assistant, base)
	require.Equal(t, http.StatusOK, w.Code)

	w = a.get(a.student, base)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = a.do(a.coordinator, http.MethodDelete, path, nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = a.get(a.coordinator, path)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAvatarEndpoints(t *testing.T) {
	a := newAPITest(t)

	w := a.get(a.student, "/api/v1/profile/avatar")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = a.upload(a.student, http.MethodPut, "/api/v1/profile/avatar", "avatar", "notes.txt", "hello")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.upload(a.student, http.MethodPut, "/api/v1/profile/avatar", "avatar", "me.png", "png-bytes")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var user struct {
		HasAvatar bool `json:"hasAvatar"`
	}
	decode(t, w, &user)
	assert.True(t, user.HasAvatar)

	w = a.get(a.student, "/api/v1/profile/avatar")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "png-bytes", w.Body.String())
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Disposition"), "inline"))

	w = a.do(a.student, http.MethodDelete, "/api/v1/profile/avatar", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = a.get(a.student, "/api/v1/profile/avatar")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCourseEventsOverWebsocket(t *testing.T) {
	a := newAPITest(t)

	ctx, cancel := context.WithCancel(context.Background())
	go a.deps.Hub.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-a.deps.Hub.Done()
	})

	srv := httptest.NewServer(a.router)
	t.Cleanup(srv.Close)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/ws/courses/tdt4120?token="

	_, resp, err := gorillaws.DefaultDialer.Dial(wsURL+a.token(a.outsider), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn, _, err := gorillaws.DefaultDialer.Dial(wsURL+a.token(a.student), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.Eventually(t, func() bool {
		return a.deps.Hub.GetClientsCount(a.course.ID) == 1
	}, 2*time.Second, 10*time.Millisecond)

	bi := a.interval(1, 10, 0)
	w := a.get(a.assistant, "/api/v1/booking/registration-switch?nk="+bi.NK)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var event struct {
		Type     string          `json:"type"`
		CourseID int64           `json:"courseId"`
		Payload  json.RawMessage `json:"payload"`
	}
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, websocket.EventAvailabilityToggled, event.Type)
	assert.Equal(t, a.course.ID, event.CourseID)
	assert.Contains(t, string(event.Payload), bi.NK)
}
