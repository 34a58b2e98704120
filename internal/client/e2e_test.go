package client_test

import (
	"context"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	gormsqlite "github.com/glebarez/sqlite"
	"github.com/suPer8Hu/prompt-history/internal/ai"
	"github.com/suPer8Hu/prompt-history/internal/auth"
	"github.com/suPer8Hu/prompt-history/internal/client"
	"github.com/suPer8Hu/prompt-history/internal/history"
	"github.com/suPer8Hu/prompt-history/internal/httpapi"
	"github.com/suPer8Hu/prompt-history/internal/httpapi/handlers"
	"github.com/suPer8Hu/prompt-history/internal/models"
	"gorm.io/gorm"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db, err := gorm.Open(gormsqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &history.Message{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	tokens := auth.NewTokenService(auth.NewGormSessionStore(db), auth.TokenConfig{
		AccessSecret:  "a",
		RefreshSecret: "r",
	})
	provider := ai.ProviderFunc(func(ctx context.Context, messages []ai.Message) (string, error) {
		return strings.ToUpper(messages[len(messages)-1].Content), nil
	})
	h := handlers.NewHandler(db, tokens, history.NewService(history.NewRepo(db), provider, nil), false)
	srv := httptest.NewServer(httpapi.NewRouter(h, httpapi.RouterConfig{}))
	t.Cleanup(srv.Close)
	return srv
}

func newClient(t *testing.T, srv *httptest.Server) (*client.Client, http.CookieJar) {
	t.Helper()
	jar, _ := cookiejar.New(nil)
	c, err := client.New(srv.URL, &http.Client{Jar: jar})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c, jar
}

// dropAccess simulates expiry of the short-lived credential.
func dropAccess(t *testing.T, jar http.CookieJar, base string) {
	t.Helper()
	u, _ := url.Parse(base)
	jar.SetCookies(u, []*http.Cookie{{Name: "accessToken", Value: "", Path: "/", MaxAge: -1}})
}

func TestClient_TransparentRefresh(t *testing.T) {
	srv := newServer(t)
	c, jar := newClient(t, srv)
	ctx := context.Background()

	if c.State() != client.Anonymous {
		t.Fatalf("expected anonymous, got %s", c.State())
	}
	if _, err := c.Register(ctx, "a@x.com", "password1", ""); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := c.SubmitPrompt(ctx, "hi"); err != nil {
		t.Fatalf("submit: %v", err)
	}

	dropAccess(t, jar, srv.URL)
	msgs, err := c.ListHistory(ctx)
	if err != nil {
		t.Fatalf("list after access expiry: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Response != "HI" {
		t.Fatalf("unexpected history: %+v", msgs)
	}
	if c.State() != client.Authenticated || c.User().Email != "a@x.com" {
		t.Fatalf("expected authenticated a@x.com, got %s %+v", c.State(), c.User())
	}
}

func TestClient_LogoutThenRevoked(t *testing.T) {
	srv := newServer(t)
	c, _ := newClient(t, srv)
	ctx := context.Background()

	if _, err := c.Register(ctx, "a@x.com", "password1", ""); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := c.Logout(ctx); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if c.State() != client.Anonymous || c.User() != nil {
		t.Fatalf("expected anonymous after logout, got %s", c.State())
	}
	if err := c.Logout(ctx); err != nil {
		t.Fatalf("second logout: %v", err)
	}

	if _, err := c.ListHistory(ctx); !client.IsAuthFailure(err) {
		t.Fatalf("expected auth failure, got %v", err)
	}
	if c.State() != client.Revoked {
		t.Fatalf("expected revoked, got %s", c.State())
	}

	if _, err := c.Login(ctx, "a@x.com", "password1"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := c.ClearHistory(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
}
