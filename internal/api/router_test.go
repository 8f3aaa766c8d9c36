package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/void-feed/config"
	"github.com/d60-Lab/void-feed/internal/api/handler"
	"github.com/d60-Lab/void-feed/internal/api/middleware"
	"github.com/d60-Lab/void-feed/internal/model"
	"github.com/d60-Lab/void-feed/internal/repository"
	"github.com/d60-Lab/void-feed/internal/service"
)

const secret = "router-test-secret-0123"

type stubGateway struct {
	posts     []model.Post
	fetchErr  error
	markErr   error
	markCalls atomic.Int32
}

func (g *stubGateway) FetchLive(context.Context) ([]model.Post, error) {
	if g.fetchErr != nil {
		return nil, g.fetchErr
	}
	return g.posts, nil
}

func (g *stubGateway) MarkDeleted(context.Context, string, string) error {
	g.markCalls.Add(1)
	return g.markErr
}

func (g *stubGateway) RecordDeletion(context.Context, string, string) error { return nil }

func (g *stubGateway) SubscribeChanges(context.Context, func()) (func() error, error) {
	return func() error { return nil }, nil
}

type stubDeletions struct{ rows []repository.DeleterCount }

func (s stubDeletions) Create(context.Context, string, string, time.Time) (bool, error) {
	return true, nil
}

func (s stubDeletions) GetByPost(context.Context, string) (*model.DeletionRecord, error) {
	return nil, errors.New("not implemented")
}

func (s stubDeletions) CountByDeleter(context.Context) ([]repository.DeleterCount, error) {
	return s.rows, nil
}

type stubAudio struct{ on bool }

func (a *stubAudio) SetEnabled(on bool) { a.on = on }
func (a *stubAudio) Enabled() bool      { return a.on }

type fixture struct {
	router *gin.Engine
	store  *service.FeedStore
	gw     *stubGateway
	audio  *stubAudio
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := &config.Config{}
	cfg.Server.Mode = gin.TestMode
	cfg.Auth.JWTSecret = secret
	cfg.RateLimit.DeletesPerSecond = 100
	cfg.RateLimit.Burst = 100

	at := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	gw := &stubGateway{posts: []model.Post{
		{ID: "p1", Kind: model.PostKindQuote, Content: "<b>hi</b>", CreatedAt: at},
		{ID: "p2", Kind: model.PostKindMeme, Content: "lol", CreatedAt: at.Add(time.Minute)},
	}}
	store := service.NewFeedStore()
	notices := service.NewNoticeLog(10)
	syncer := service.NewFeedSyncer(store, gw, notices, time.Second, time.Second)
	require.NoError(t, syncer.Refresh(context.Background()))

	controller := service.NewFeedController(store, gw, nil, notices,
		service.WithWaitFunc(func(ctx context.Context, _ time.Duration) error { return ctx.Err() }))
	t.Cleanup(controller.Close)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	tally := service.NewDeletionTally(stubDeletions{rows: []repository.DeleterCount{{UserID: "u1", Count: 3}}}, rdb, time.Minute)

	audio := &stubAudio{on: true}
	h := handler.NewHandler(store, controller, syncer, notices, tally, audio)
	return &fixture{router: NewRouter(cfg, h), store: store, gw: gw, audio: audio}
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (f *fixture) do(t *testing.T, method, path, body, user string) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != "" {
		tok, err := middleware.IssueToken(secret, "", user, jwt.RegisteredClaims{})
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return w.Code, env
}

func TestGetFeedSanitizesContent(t *testing.T) {
	f := newFixture(t)
	code, env := f.do(t, http.MethodGet, "/api/v1/feed", "", "")
	require.Equal(t, http.StatusOK, code)

	var feed handler.FeedView
	require.NoError(t, json.Unmarshal(env.Data, &feed))
	require.Len(t, feed.Posts, 2)
	assert.Equal(t, "p2", feed.Posts[0].ID)
	assert.Equal(t, "hi", feed.Posts[1].Content)
	assert.Equal(t, service.Classify("p1"), feed.Posts[1].Variant)
	assert.Equal(t, "0:00", feed.Posts[1].SurvivalLabel)
	assert.Equal(t, 2, feed.Stats.Active)
}

func TestGetFeedStatsMatchPosts(t *testing.T) {
	f := newFixture(t)
	code, _ := f.do(t, http.MethodDelete, "/api/v1/feed/posts/p2", "", "u1")
	require.Equal(t, http.StatusOK, code)

	code, env := f.do(t, http.MethodGet, "/api/v1/feed", "", "")
	require.Equal(t, http.StatusOK, code)
	var feed handler.FeedView
	require.NoError(t, json.Unmarshal(env.Data, &feed))
	assert.Equal(t, len(feed.Posts), feed.Stats.Active)
	assert.Equal(t, service.FeedStats{Active: 1, Deleted: 1, Efficiency: 50}, feed.Stats)
}

func TestDeletePost(t *testing.T) {
	f := newFixture(t)

	code, _ := f.do(t, http.MethodDelete, "/api/v1/feed/posts/p1", "", "")
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, int32(0), f.gw.markCalls.Load())

	code, env := f.do(t, http.MethodDelete, "/api/v1/feed/posts/p1", "", "u1")
	require.Equal(t, http.StatusOK, code)
	var res service.DeleteResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, service.OutcomeCommitted, res.Outcome)
	assert.Equal(t, service.FeedStats{Active: 1, Deleted: 1, Efficiency: 50}, res.Stats)

	code, env = f.do(t, http.MethodGet, "/api/v1/notices", "", "")
	require.Equal(t, http.StatusOK, code)
	var notices []service.Notice
	require.NoError(t, json.Unmarshal(env.Data, &notices))
	require.NotEmpty(t, notices)
	assert.Equal(t, service.NoticePostTerminated, notices[0].Code)
}

func TestDeletePostPersistenceFailure(t *testing.T) {
	f := newFixture(t)
	f.gw.markErr = errors.New("db down")

	code, env := f.do(t, http.MethodDelete, "/api/v1/feed/posts/p2", "", "u1")
	assert.Equal(t, http.StatusBadGateway, code)
	var res service.DeleteResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, service.OutcomeRolledBack, res.Outcome)
	assert.Equal(t, 2, f.store.Stats().Active)
}

func TestRefreshFetchFailure(t *testing.T) {
	f := newFixture(t)
	f.gw.fetchErr = errors.New("offline")

	code, _ := f.do(t, http.MethodPost, "/api/v1/feed/refresh", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, 2, f.store.Stats().Active)
}

func TestSetAudio(t *testing.T) {
	f := newFixture(t)

	code, _ := f.do(t, http.MethodPut, "/api/v1/audio", `{}`, "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = f.do(t, http.MethodPut, "/api/v1/audio", `{"enabled": false}`, "")
	assert.Equal(t, http.StatusOK, code)
	assert.False(t, f.audio.on)
}

func TestTopDeleters(t *testing.T) {
	f := newFixture(t)
	code, env := f.do(t, http.MethodGet, "/api/v1/deleters/top?n=5", "", "")
	require.Equal(t, http.StatusOK, code)

	var list []repository.DeleterCount
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list, 1)
	assert.Equal(t, "u1", list[0].UserID)
	assert.Equal(t, int64(3), list[0].Count)
}
