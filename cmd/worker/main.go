package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/suPer8Hu/prompt-history/internal/audit"
	"github.com/suPer8Hu/prompt-history/internal/config"
	"github.com/suPer8Hu/prompt-history/internal/db"
	"github.com/suPer8Hu/prompt-history/internal/store/rabbitmq"
)

func main() {
	cfg := config.Load()
	if cfg.RabbitURL == "" {
		log.Fatalf("RABBIT_URL is required")
	}

	gdb := db.Connect(cfg.DBDSN)
	if err := db.Migrate(gdb, &audit.Event{}); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	repo := audit.NewRepo(gdb)

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("rabbit dial: %v", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		log.Fatalf("rabbit channel: %v", err)
	}
	defer ch.Close()

	if err := rabbitmq.DeclareQueues(ch, cfg.RabbitQueue); err != nil {
		log.Fatalf("queue declare: %v", err)
	}

	concurrency := cfg.WorkerConcurrency
	if err := ch.Qos(concurrency, 0, false); err != nil {
		log.Fatalf("qos: %v", err)
	}

	msgs, err := ch.Consume(cfg.RabbitQueue, "", false, false, false, false, nil)
	if err != nil {
		log.Fatalf("consume: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("[worker] started, queue=%s concurrency=%d", cfg.RabbitQueue, concurrency)

	// worker pool
	jobs := make(chan amqp.Delivery, concurrency*2)

	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			for d := range jobs {
				handleDelivery(ctx, repo, workerID, d)
			}
		}(i)
	}

	// dispatcher
	for {
		select {
		case <-ctx.Done():
			log.Printf("[worker] shutting down")
			close(jobs)
			wg.Wait()
			return

		case d, ok := <-msgs:
			if !ok {
				log.Printf("[worker] delivery channel closed")
				close(jobs)
				wg.Wait()
				return
			}
			jobs <- d
		}
	}
}

// insertTimeout bounds one event write. Writes are detached from the
// shutdown signal so buffered deliveries still drain after SIGTERM.
const insertTimeout = 5 * time.Second

// handleDelivery stores one audit event. Malformed bodies go to the DLQ.
// A failed write is requeued once and dead-lettered on redelivery; a write
// cut short by a deadline is always requeued since the event itself is fine.
func handleDelivery(ctx context.Context, repo *audit.Repo, workerID int, d amqp.Delivery) {
	e, err := rabbitmq.DecodeEvent(d.Body)
	if err != nil {
		log.Printf("[worker] worker=%d bad message id=%s: %v", workerID, d.MessageId, err)
		_ = d.Nack(false, false)
		return
	}

	ictx, cancel := context.WithTimeout(context.WithoutCancel(ctx), insertTimeout)
	defer cancel()

	start := time.Now()
	if err := repo.Insert(ictx, &e); err != nil {
		log.Printf("[worker] worker=%d insert event=%s type=%s failed cost=%s err=%v",
			workerID, e.ID, e.Type, time.Since(start), err)
		requeue := !d.Redelivered ||
			errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		_ = d.Nack(false, requeue)
		return
	}

	if err := d.Ack(false); err != nil {
		log.Printf("[worker] worker=%d ack failed event=%s err=%v", workerID, e.ID, err)
	}
}
