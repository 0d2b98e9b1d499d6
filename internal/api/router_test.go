package api

import (
	"bytes"
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/d60-Lab/living-legends/config"
	"github.com/d60-Lab/living-legends/internal/api/handler"
	"github.com/d60-Lab/living-legends/internal/generator"
	"github.com/d60-Lab/living-legends/internal/model"
	"github.com/d60-Lab/living-legends/internal/repository"
	"github.com/d60-Lab/living-legends/internal/service"
	"github.com/d60-Lab/living-legends/internal/storystate"
	"github.com/d60-Lab/living-legends/pkg/database"
	"github.com/d60-Lab/living-legends/pkg/response"
)

const adminKey = "admin-secret"

type testServer struct {
	router *gin.Engine
	db     *gorm.DB
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db, err := database.OpenMemory(t.Name(), model.All()...)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	deps := service.Deps{DB: db, Engine: config.Default().Engine}
	stories := repository.NewStoryRepository(db)
	auth := service.NewAuthService(repository.NewUserRepository(db), config.JWTConfig{Secret: "test", TTL: time.Hour})
	h := handler.New(handler.Options{
		Auth:          auth,
		Stories:       service.NewStoryService(stories, repository.NewCommentRepository(db), repository.NewEvidenceRepository(db), nil),
		Comments:      service.NewCommentService(deps, nil),
		Follows:       service.NewFollowService(stories, repository.NewFollowRepository(db)),
		Notifications: service.NewNotificationService(repository.NewNotificationRepository(db)),
		Resetter:      service.NewSeedService(deps, generator.Offline{}, rand.New(rand.NewSource(1))),
		Categories:    service.NewCategoryService(repository.NewCategoryClickRepository(db)),
		Translator:    service.NewTranslateService(generator.Offline{}),
	})
	return &testServer{
		router: NewRouter(h, auth, RouterOptions{Mode: gin.TestMode, AdminKey: adminKey}),
		db:     db,
	}
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}, hdr ...string) (*httptest.ResponseRecorder, response.Response) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	var resp response.Response
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return w, resp
}

func (s *testServer) story(t *testing.T, state model.StoryState) string {
	t.Helper()
	now := time.Now()
	st := &model.Story{ID: uuid.NewString(), Title: "标题", Body: "正文", CreatedAt: now, UpdatedAt: now}
	st.SetState(storystate.New(state, now))
	require.NoError(t, repository.NewStoryRepository(s.db).Create(context.Background(), st))
	return st.ID
}

func (s *testServer) register(t *testing.T, name string) string {
	t.Helper()
	w, resp := s.do(t, http.MethodPost, "/api/register", "", map[string]string{
		"username": name, "email": name + "@example.com", "password": "secret123",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	data := resp.Data.(map[string]interface{})
	return data["token"].(string)
}

func TestRouter_Health(t *testing.T) {
	s := newTestServer(t)
	w, _ := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_RegisterLogin(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "night")

	w, _ := s.do(t, http.MethodPost, "/api/register", "", map[string]string{
		"username": "night", "email": "other@example.com", "password": "secret123",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w, resp := s.do(t, http.MethodPost, "/api/login", "", map[string]string{"username": "night", "password": "secret123"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, resp.Data.(map[string]interface{})["token"])

	w, _ = s.do(t, http.MethodPost, "/api/login", "", map[string]string{"username": "night", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = s.do(t, http.MethodPost, "/api/register", "", map[string]string{"username": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_SubmitComment(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t, "reader")
	id := s.story(t, model.StateInitial)

	w, _ := s.do(t, http.MethodPost, "/api/stories/"+id+"/comments", "", map[string]string{"content": "hi"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, resp := s.do(t, http.MethodPost, "/api/stories/"+id+"/comments", token, map[string]string{"content": "我也看到了"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	data := resp.Data.(map[string]interface{})
	assert.EqualValues(t, 1, data["user_comment_count"])
	assert.Equal(t, true, data["ai_response_pending"])

	w, _ = s.do(t, http.MethodPost, "/api/stories/"+id+"/comments", token, map[string]string{"content": "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = s.do(t, http.MethodPost, "/api/stories/missing/comments", token, map[string]string{"content": "hi"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_CommentOnLockedStory(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t, "reader")
	id := s.story(t, model.StateLocked)

	w, resp := s.do(t, http.MethodPost, "/api/stories/"+id+"/comments", token, map[string]string{"content": "还有人吗"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "post locked", resp.Message)
}

func TestRouter_StoriesAndDetail(t *testing.T) {
	s := newTestServer(t)
	id := s.story(t, model.StateInitial)
	s.story(t, model.StateInit)

	w, resp := s.do(t, http.MethodGet, "/api/stories?page=1&per_page=8", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := resp.Data.(map[string]interface{})
	assert.EqualValues(t, 1, data["total"])

	w, resp = s.do(t, http.MethodGet, "/api/stories/"+id, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	detail := resp.Data.(map[string]interface{})
	assert.Equal(t, false, detail["locked"])

	w, _ = s.do(t, http.MethodGet, "/api/stories/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_FollowAndNotifications(t *testing.T) {
	s := newTestServer(t)
	follower := s.register(t, "follower")
	author := s.register(t, "author")
	id := s.story(t, model.StateInitial)

	w, resp := s.do(t, http.MethodPost, "/api/stories/"+id+"/follow", follower, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "followed", resp.Data.(map[string]interface{})["status"])

	w, resp = s.do(t, http.MethodGet, "/api/stories/"+id+"/follow", follower, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, resp.Data.(map[string]interface{})["followed"])

	w, _ = s.do(t, http.MethodPost, "/api/stories/"+id+"/comments", author, map[string]string{"content": "有人吗"})
	require.Equal(t, http.StatusCreated, w.Code)

	w, resp = s.do(t, http.MethodGet, "/api/notifications", follower, nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := resp.Data.(map[string]interface{})
	assert.EqualValues(t, 1, data["unread"])
	items := data["notifications"].([]interface{})
	require.Len(t, items, 1)
	noteID := items[0].(map[string]interface{})["id"].(string)

	w, resp = s.do(t, http.MethodPost, "/api/notifications/read", follower, map[string][]string{"ids": {noteID}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, resp.Data.(map[string]interface{})["updated"])

	w, resp = s.do(t, http.MethodGet, "/api/notifications", author, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 0, resp.Data.(map[string]interface{})["unread"])
}

func TestRouter_AdminReset(t *testing.T) {
	s := newTestServer(t)

	w, _ := s.do(t, http.MethodPost, "/api/admin/reset_ai_stories", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w, _ = s.do(t, http.MethodPost, "/api/admin/reset_ai_stories", "", nil, "X-ADMIN-KEY", "wrong")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, resp := s.do(t, http.MethodPost, "/api/admin/reset_ai_stories", "", nil, "X-ADMIN-KEY", adminKey)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	seeded := resp.Data.(map[string]interface{})["seeded"].([]interface{})
	assert.Len(t, seeded, 3)
}

func TestRouter_CategoryClicks(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t, "archivist")

	w, _ := s.do(t, http.MethodPost, "/api/track-category-click", "", map[string]string{"category": "subway_ghost"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w, _ = s.do(t, http.MethodPost, "/api/track-category-click", token, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp response.Response
	for _, cat := range []string{"subway_ghost", "mirror", "subway_ghost", "urban_legend", "mirror", "subway_ghost"} {
		w, resp = s.do(t, http.MethodPost, "/api/track-category-click", token, map[string]string{"category": cat})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}
	assert.EqualValues(t, 3, resp.Data.(map[string]interface{})["click_count"])

	w, resp = s.do(t, http.MethodGet, "/api/user-top-categories", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	cats := resp.Data.(map[string]interface{})["categories"].([]interface{})
	require.Len(t, cats, 2)
	assert.Equal(t, "subway_ghost", cats[0].(map[string]interface{})["category"])
	assert.EqualValues(t, 3, cats[0].(map[string]interface{})["click_count"])
	assert.Equal(t, "mirror", cats[1].(map[string]interface{})["category"])
}

func TestRouter_Translate(t *testing.T) {
	s := newTestServer(t)

	w, resp := s.do(t, http.MethodPost, "/api/translate", "", map[string]string{"text": ""})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "", resp.Data.(map[string]interface{})["translated"])

	w, resp = s.do(t, http.MethodPost, "/api/translate", "", map[string]string{"text": "门又响了", "target": "en"})
	require.Equal(t, http.StatusOK, w.Code)
	data := resp.Data.(map[string]interface{})
	assert.Contains(t, data, "translated")
	assert.Nil(t, data["translated"])
	assert.NotEmpty(t, data["error"])
}
