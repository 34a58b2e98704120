package main

import (
	"context"
	"encoding/json"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/suPer8Hu/prompt-history/internal/audit"
	"gorm.io/gorm"
)

type recordingAcker struct {
	acked   bool
	nacked  bool
	requeue bool
}

func (a *recordingAcker) Ack(tag uint64, multiple bool) error {
	a.acked = true
	return nil
}

func (a *recordingAcker) Nack(tag uint64, multiple, requeue bool) error {
	a.nacked = true
	a.requeue = requeue
	return nil
}

func (a *recordingAcker) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

func openTestDB(t *testing.T, migrate bool) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(gormsqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if migrate {
		if err := db.AutoMigrate(&audit.Event{}); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

func delivery(t *testing.T, ack amqp.Acknowledger, body []byte, redelivered bool) amqp.Delivery {
	t.Helper()
	return amqp.Delivery{Acknowledger: ack, DeliveryTag: 1, Body: body, Redelivered: redelivered}
}

func eventBody(t *testing.T) (audit.Event, []byte) {
	t.Helper()
	e := audit.NewEvent(audit.PromptCreated, 7, "01HZZZZZZZZZZZZZZZZZZZZZZZ")
	body, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return e, body
}

func TestHandleDelivery_StoresAndAcks(t *testing.T) {
	db := openTestDB(t, true)
	e, body := eventBody(t)
	ack := &recordingAcker{}

	handleDelivery(context.Background(), audit.NewRepo(db), 0, delivery(t, ack, body, false))
	if !ack.acked || ack.nacked {
		t.Fatalf("expected ack, got %+v", ack)
	}
	var n int64
	db.Model(&audit.Event{}).Where("id = ?", e.ID).Count(&n)
	if n != 1 {
		t.Fatalf("expected stored event, got %d", n)
	}
}

func TestHandleDelivery_DrainsAfterShutdown(t *testing.T) {
	db := openTestDB(t, true)
	e, body := eventBody(t)
	ack := &recordingAcker{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	handleDelivery(ctx, audit.NewRepo(db), 0, delivery(t, ack, body, false))

	if !ack.acked || ack.nacked {
		t.Fatalf("valid event must be stored during shutdown, got %+v", ack)
	}
	var n int64
	db.Model(&audit.Event{}).Where("id = ?", e.ID).Count(&n)
	if n != 1 {
		t.Fatalf("expected stored event, got %d", n)
	}
}

func TestHandleDelivery_BadMessageDeadLettered(t *testing.T) {
	ack := &recordingAcker{}
	handleDelivery(context.Background(), audit.NewRepo(openTestDB(t, true)), 0,
		delivery(t, ack, []byte(`{"type":"prompt.created"}`), false))
	if !ack.nacked || ack.requeue {
		t.Fatalf("expected nack without requeue, got %+v", ack)
	}
}

func TestHandleDelivery_StorageFailureRequeuedOnce(t *testing.T) {
	// no migration: every insert fails
	repo := audit.NewRepo(openTestDB(t, false))
	_, body := eventBody(t)

	first := &recordingAcker{}
	handleDelivery(context.Background(), repo, 0, delivery(t, first, body, false))
	if !first.nacked || !first.requeue {
		t.Fatalf("first failure should requeue, got %+v", first)
	}

	again := &recordingAcker{}
	handleDelivery(context.Background(), repo, 0, delivery(t, again, body, true))
	if !again.nacked || again.requeue {
		t.Fatalf("redelivered failure should dead-letter, got %+v", again)
	}
}
