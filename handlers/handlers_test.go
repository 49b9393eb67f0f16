package handlers_test

import (
	"bytes"
	"encoding/json"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"rabbitquest/handlers"
	"rabbitquest/routes"
	"rabbitquest/services"
	"rabbitquest/storage"
	"rabbitquest/testutil"
)

type server struct {
	t      *testing.T
	router *gin.Engine
}

func newServer(t *testing.T) *server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.NewDB(t)
	log := testutil.Logger()
	tokens := services.NewTokenService("handler-test-secret-handler-test-secret", "issuer", "audience")
	identity := services.NewGormIdentityStore(db, services.DefaultPasswordPolicy())
	authService := services.NewAuthService(db, identity, tokens, log)
	quizService := services.NewQuizService(db, nil, services.RatingAppend, log)
	avatars := storage.NewLocalFileStorage(t.TempDir(), 128)
	userService := services.NewUserService(db, identity, quizService, avatars, log)

	router := gin.New()
	routes.SetupRoutes(router,
		handlers.NewAuthHandler(authService, log),
		handlers.NewQuizHandler(quizService, log),
		handlers.NewUserHandler(userService, log),
		handlers.NewMainPageHandler(quizService, userService, log),
		tokens, avatars.Dir(), log)

	return &server{t: t, router: router}
}

func (s *server) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	s.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			s.t.Fatal(err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *server) expect(w *httptest.ResponseRecorder, status int) {
	s.t.Helper()
	if w.Code != status {
		s.t.Fatalf("status = %d, want %d; body %s", w.Code, status, w.Body.String())
	}
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return out
}

func (s *server) signUp(email, username string) services.LoginResponse {
	s.t.Helper()
	w := s.do(http.MethodPost, "/api/auth/register-and-login", "", gin.H{
		"email": email, "username": username, "password": "Pass123!",
	})
	s.expect(w, http.StatusOK)
	return decode[services.LoginResponse](s.t, w)
}

func quizBody() gin.H {
	return gin.H{
		"title":       "Planets",
		"description": "Solar system",
		"category":    "Science",
		"questions": []gin.H{{
			"title":          "Largest planet?",
			"points":         10,
			"timeLimit":      30,
			"answers":        []string{"Jupiter", "Mars"},
			"correctAnswers": []string{"Jupiter"},
		}},
	}
}

func (s *server) createQuiz(token string) uint {
	s.t.Helper()
	w := s.do(http.MethodPost, "/api/quiz/create", token, quizBody())
	s.expect(w, http.StatusCreated)
	return decode[struct {
		QuizID uint `json:"quizId"`
	}](s.t, w).QuizID
}

func TestAuthFlow(t *testing.T) {
	s := newServer(t)
	creds := gin.H{"email": "a@x.com", "username": "alice", "password": "Pass123!"}

	s.expect(s.do(http.MethodPost, "/api/auth/register", "", creds), http.StatusCreated)
	s.expect(s.do(http.MethodPost, "/api/auth/register", "", creds), http.StatusConflict)

	w := s.do(http.MethodPost, "/api/auth/login", "", gin.H{"email": "a@x.com", "password": "wrong"})
	s.expect(w, http.StatusUnauthorized)

	w = s.do(http.MethodPost, "/api/auth/login", "", gin.H{"email": "a@x.com", "password": "Pass123!"})
	s.expect(w, http.StatusOK)
	login := decode[services.LoginResponse](t, w)
	if login.AccessToken == "" || login.RefreshToken == "" || login.Username != "alice" || login.IsAdmin {
		t.Fatalf("login = %+v", login)
	}

	w = s.do(http.MethodPost, "/api/auth/refresh-token", "", gin.H{"refreshToken": login.RefreshToken})
	s.expect(w, http.StatusOK)
	rotated := decode[services.LoginResponse](t, w)

	s.expect(s.do(http.MethodPost, "/api/auth/refresh-token", "", gin.H{"refreshToken": login.RefreshToken}), http.StatusUnauthorized)
	s.expect(s.do(http.MethodPost, "/api/auth/revoke", "", gin.H{"refreshToken": rotated.RefreshToken}), http.StatusNoContent)
	s.expect(s.do(http.MethodPost, "/api/auth/revoke", "", gin.H{"refreshToken": rotated.RefreshToken}), http.StatusNotFound)
}

func TestRegisterValidation(t *testing.T) {
	s := newServer(t)

	w := s.do(http.MethodPost, "/api/auth/register", "", gin.H{"email": "not-an-email", "password": "Pass123!"})
	s.expect(w, http.StatusBadRequest)
	body := decode[struct {
		Fields map[string]string `json:"fields"`
	}](t, w)
	if body.Fields["RegisterRequest.Email"] == "" || body.Fields["RegisterRequest.Username"] == "" {
		t.Errorf("fields = %v, want email and username problems", body.Fields)
	}

	w = s.do(http.MethodPost, "/api/auth/register", "", gin.H{"email": "a@x.com", "username": "alice", "password": "weak"})
	s.expect(w, http.StatusBadRequest)
	details := decode[struct {
		Details []string `json:"details"`
	}](t, w)
	if len(details.Details) == 0 {
		t.Errorf("password policy details missing: %s", w.Body.String())
	}
}

func TestQuizLifecycle(t *testing.T) {
	s := newServer(t)
	author := s.signUp("a@x.com", "alice")
	player := s.signUp("b@x.com", "bob")

	s.expect(s.do(http.MethodPost, "/api/quiz/create", "", quizBody()), http.StatusUnauthorized)
	id := s.createQuiz(author.AccessToken)
	path := "/api/quiz/" + strconv.FormatUint(uint64(id), 10)

	w := s.do(http.MethodGet, path, "", nil)
	s.expect(w, http.StatusOK)
	if strings.Contains(w.Body.String(), "correctAnswers") {
		t.Errorf("anonymous view leaks answers: %s", w.Body.String())
	}
	w = s.do(http.MethodGet, path, author.AccessToken, nil)
	s.expect(w, http.StatusOK)
	if !strings.Contains(w.Body.String(), `"correctAnswers":["Jupiter"]`) {
		t.Errorf("author view lacks answers: %s", w.Body.String())
	}

	s.expect(s.do(http.MethodGet, "/api/quiz/999", "", nil), http.StatusNotFound)
	s.expect(s.do(http.MethodGet, "/api/quiz/abc", "", nil), http.StatusBadRequest)

	s.expect(s.do(http.MethodPost, "/api/quiz/rate", player.AccessToken, gin.H{"quizId": id, "rating": 3}), http.StatusOK)
	w = s.do(http.MethodPost, "/api/quiz/rate", player.AccessToken, gin.H{"quizId": id, "rating": 5})
	s.expect(w, http.StatusOK)
	rating := decode[services.RatingResult](t, w)
	if rating.AverageRating != 4 || rating.TotalRatings != 2 {
		t.Errorf("rating = %+v, want 4 over 2", rating)
	}
	s.expect(s.do(http.MethodPost, "/api/quiz/rate", player.AccessToken, gin.H{"quizId": id, "rating": 7}), http.StatusBadRequest)
	s.expect(s.do(http.MethodPost, "/api/quiz/rate", player.AccessToken, gin.H{"quizId": 999, "rating": 2}), http.StatusNotFound)

	s.expect(s.do(http.MethodPost, path+"/start", player.AccessToken, nil), http.StatusNoContent)
	s.expect(s.do(http.MethodPost, path+"/complete", player.AccessToken, nil), http.StatusNoContent)

	w = s.do(http.MethodGet, "/api/user/profile", player.AccessToken, nil)
	s.expect(w, http.StatusOK)
	profile := decode[services.UserProfile](t, w)
	if len(profile.CompletedQuizzes) != 1 || profile.CompletedQuizzes[0].ID != id {
		t.Errorf("profile = %+v, want one completed quiz", profile)
	}

	s.expect(s.do(http.MethodDelete, path, player.AccessToken, nil), http.StatusForbidden)
	s.expect(s.do(http.MethodDelete, path, author.AccessToken, nil), http.StatusOK)
	s.expect(s.do(http.MethodGet, path, "", nil), http.StatusNotFound)
}

func TestCreateQuizValidation(t *testing.T) {
	s := newServer(t)
	author := s.signUp("a@x.com", "alice")

	body := quizBody()
	body["questions"] = []gin.H{}
	s.expect(s.do(http.MethodPost, "/api/quiz/create", author.AccessToken, body), http.StatusBadRequest)

	body = quizBody()
	body["questions"].([]gin.H)[0]["correctAnswers"] = []string{"Pluto"}
	w := s.do(http.MethodPost, "/api/quiz/create", author.AccessToken, body)
	s.expect(w, http.StatusBadRequest)
	if !strings.Contains(w.Body.String(), "Pluto") {
		t.Errorf("body = %s, want the offending answer named", w.Body.String())
	}
}

func TestMainPage(t *testing.T) {
	s := newServer(t)
	author := s.signUp("a@x.com", "alice")
	s.signUp("b@x.com", "bob")
	s.createQuiz(author.AccessToken)

	w := s.do(http.MethodGet, "/api/mainpage/quizzes?searchTerm=planets", "", nil)
	s.expect(w, http.StatusOK)
	if quizzes := decode[[]services.QuizSummary](t, w); len(quizzes) != 1 || quizzes[0].Category.Name != "Science" {
		t.Errorf("quizzes = %+v", quizzes)
	}

	w = s.do(http.MethodGet, "/api/mainpage/quizzes?searchTerm=history", "", nil)
	s.expect(w, http.StatusOK)
	if w.Body.String() != "[]" {
		t.Errorf("empty search body = %s, want []", w.Body.String())
	}

	w = s.do(http.MethodGet, "/api/mainpage/users?searchTerm=bo", "", nil)
	s.expect(w, http.StatusOK)
	if users := decode[[]services.UserSummary](t, w); len(users) != 1 || users[0].Username != "bob" {
		t.Errorf("users = %+v", users)
	}

	w = s.do(http.MethodGet, "/api/mainpage/categories", "", nil)
	s.expect(w, http.StatusOK)
	if cats := decode[[]services.CategoryDTO](t, w); len(cats) != 1 || cats[0].Name != "Science" {
		t.Errorf("categories = %+v", cats)
	}
}

func TestAvatarUpload(t *testing.T) {
	s := newServer(t)
	user := s.signUp("a@x.com", "alice")

	s.expect(s.do(http.MethodGet, "/api/user/avatar", user.AccessToken, nil), http.StatusNotFound)

	var img bytes.Buffer
	if err := png.Encode(&img, image.NewRGBA(image.Rect(0, 0, 16, 16))); err != nil {
		t.Fatal(err)
	}
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("avatarFile", "me.png")
	if err != nil {
		t.Fatal(err)
	}
	part.Write(img.Bytes())
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/user/avatar", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+user.AccessToken)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	s.expect(w, http.StatusOK)
	url := decode[struct {
		AvatarURL string `json:"avatarUrl"`
	}](t, w).AvatarURL

	w = s.do(http.MethodGet, "/api/user/avatar", user.AccessToken, nil)
	s.expect(w, http.StatusOK)
	if !strings.Contains(w.Body.String(), url) {
		t.Errorf("avatar = %s, want %s", w.Body.String(), url)
	}

	s.expect(s.do(http.MethodGet, url, "", nil), http.StatusOK)
	s.expect(s.do(http.MethodPost, "/api/user/avatar", user.AccessToken, nil), http.StatusBadRequest)
}

func TestHealth(t *testing.T) {
	s := newServer(t)
	s.expect(s.do(http.MethodGet, "/health", "", nil), http.StatusOK)
}
