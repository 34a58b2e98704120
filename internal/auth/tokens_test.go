package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/suPer8Hu/prompt-history/internal/common"
	"github.com/suPer8Hu/prompt-history/internal/models"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(gormsqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func newTestService(t *testing.T) (*TokenService, *GormSessionStore, models.User) {
	t.Helper()
	db := openTestDB(t)
	u := models.User{Email: "a@x.com", PasswordHash: "x"}
	if err := db.Create(&u).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	store := NewGormSessionStore(db)
	svc := NewTokenService(store, TokenConfig{
		AccessSecret:  "access",
		RefreshSecret: "refresh",
	})
	return svc, store, u
}

func TestIssuePair_StoresRefresh(t *testing.T) {
	svc, store, u := newTestService(t)
	ctx := context.Background()

	pair, err := svc.IssuePair(ctx, Identity{UserID: u.ID, Email: u.Email})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	stored, err := store.Get(ctx, u.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored != pair.Refresh {
		t.Fatalf("stored refresh does not match issued one")
	}
	if pair.AccessTTL != 15*time.Minute || pair.RefreshTTL != 7*24*time.Hour {
		t.Fatalf("unexpected ttls: %s %s", pair.AccessTTL, pair.RefreshTTL)
	}

	id, err := svc.VerifyAccess(pair.Access)
	if err != nil || id.UserID != u.ID {
		t.Fatalf("verify access: id=%+v err=%v", id, err)
	}
	// the classes use distinct secrets
	if _, err := svc.VerifyAccess(pair.Refresh); err == nil {
		t.Fatalf("refresh token must not verify as access token")
	}
}

func TestIssuePair_UnknownAccount(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.IssuePair(context.Background(), Identity{UserID: 9999, Email: "ghost@x.com"})
	if !errors.Is(err, common.ErrUnauthenticated) {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
}

func TestRefresh_RotatesAndInvalidatesPredecessor(t *testing.T) {
	svc, _, u := newTestService(t)
	ctx := context.Background()

	login, err := svc.IssuePair(ctx, Identity{UserID: u.ID, Email: u.Email})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	_, first, err := svc.Refresh(ctx, login.Refresh)
	if err != nil {
		t.Fatalf("first refresh: %v", err)
	}
	id, second, err := svc.Refresh(ctx, first.Refresh)
	if err != nil {
		t.Fatalf("second refresh: %v", err)
	}
	if id.UserID != u.ID || id.Email != u.Email {
		t.Fatalf("unexpected identity: %+v", id)
	}

	seen := map[string]bool{login.Refresh: true, first.Refresh: true, second.Refresh: true}
	if len(seen) != 3 {
		t.Fatalf("expected three distinct refresh tokens")
	}

	for _, old := range []string{login.Refresh, first.Refresh} {
		if _, _, err := svc.Refresh(ctx, old); !errors.Is(err, common.ErrUnauthenticated) {
			t.Fatalf("rotated-out token must fail refresh, got %v", err)
		}
	}
	// the failed attempts must not disturb the current credential
	if _, _, err := svc.Refresh(ctx, second.Refresh); err != nil {
		t.Fatalf("current token should still refresh: %v", err)
	}
}

func TestRefresh_Failures(t *testing.T) {
	svc, _, u := newTestService(t)
	ctx := context.Background()
	id := Identity{UserID: u.ID, Email: u.Email}

	pair, _ := svc.IssuePair(ctx, id)
	expired, _ := Sign(id, "refresh", -time.Second)
	wrongClass := pair.Access
	ghost, _ := Sign(Identity{UserID: 4242, Email: "ghost@x.com"}, "refresh", time.Hour)

	cases := map[string]string{
		"empty":       "",
		"garbage":     "not-a-token",
		"expired":     expired,
		"wrong class": wrongClass,
		"no account":  ghost,
	}
	for name, tok := range cases {
		if _, _, err := svc.Refresh(ctx, tok); !errors.Is(err, common.ErrUnauthenticated) {
			t.Fatalf("%s: expected unauthenticated, got %v", name, err)
		}
	}
}

func TestRefresh_ValidButNotStored(t *testing.T) {
	svc, _, u := newTestService(t)
	ctx := context.Background()
	id := Identity{UserID: u.ID, Email: u.Email}

	if _, err := svc.IssuePair(ctx, id); err != nil {
		t.Fatalf("issue: %v", err)
	}
	// cryptographically valid and unexpired, but never stored
	stray, _ := Sign(id, "refresh", time.Hour)
	if _, _, err := svc.Refresh(ctx, stray); !errors.Is(err, common.ErrUnauthenticated) {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
}

func TestLogout_Lenient(t *testing.T) {
	svc, store, u := newTestService(t)
	ctx := context.Background()
	id := Identity{UserID: u.ID, Email: u.Email}

	pair, _ := svc.IssuePair(ctx, id)

	if uid, ok := svc.Logout(ctx, ""); ok || uid != 0 {
		t.Fatalf("logout without credential should revoke nothing")
	}
	expired, _ := Sign(id, "refresh", -time.Second)
	if _, ok := svc.Logout(ctx, expired); ok {
		t.Fatalf("expired credential should not revoke")
	}

	uid, ok := svc.Logout(ctx, pair.Refresh)
	if !ok || uid != u.ID {
		t.Fatalf("expected revoke of uid=%d, got uid=%d ok=%v", u.ID, uid, ok)
	}
	stored, _ := store.Get(ctx, u.ID)
	if stored != "" {
		t.Fatalf("expected stored credential to be cleared")
	}
	// twice in a row is fine
	svc.Logout(ctx, pair.Refresh)

	if _, _, err := svc.Refresh(ctx, pair.Refresh); !errors.Is(err, common.ErrUnauthenticated) {
		t.Fatalf("revoked credential must fail refresh, got %v", err)
	}
}

func TestSessionStore_UnknownAccount(t *testing.T) {
	db := openTestDB(t)
	store := NewGormSessionStore(db)
	ctx := context.Background()

	if _, err := store.Get(ctx, 77); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
	if err := store.Set(ctx, 77, "x"); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
	if err := store.Clear(ctx, 77); err != nil {
		t.Fatalf("clear should be idempotent: %v", err)
	}
}
