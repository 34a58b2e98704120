// Command promptctl is a terminal client for the prompt history API.
//
//	promptctl [-register] -email E -password P <history|ask PROMPT|clear|logout>
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/suPer8Hu/prompt-history/internal/client"
	"github.com/suPer8Hu/prompt-history/internal/historysync"
)

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func defaultBackupDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ".prompt-history"
	}
	return filepath.Join(dir, "prompt-history")
}

func main() {
	log.SetFlags(0)
	log.SetPrefix("promptctl: ")

	apiURL := flag.String("api", envOr("PROMPT_API_URL", "http://localhost:4000"), "API base URL")
	email := flag.String("email", os.Getenv("PROMPT_EMAIL"), "account email")
	password := flag.String("password", os.Getenv("PROMPT_PASSWORD"), "account password")
	register := flag.Bool("register", false, "create the account before running the command")
	backupDir := flag.String("backup-dir", defaultBackupDir(), "directory for the local history backup")
	timeout := flag.Duration("timeout", 2*time.Minute, "overall command timeout")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: promptctl [flags] <history|ask PROMPT|clear|logout>\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 || *email == "" || *password == "" {
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	c, err := client.New(*apiURL, nil)
	if err != nil {
		log.Fatal(err)
	}

	var user *client.User
	if *register {
		user, err = c.Register(ctx, *email, *password, "")
	} else {
		user, err = c.Login(ctx, *email, *password)
	}
	if err != nil {
		log.Fatalf("sign in: %v", err)
	}

	engine := historysync.New(c, historysync.NewFileBackup(*backupDir))
	if err := engine.Establish(ctx, user.ID); err != nil {
		log.Fatalf("load history: %v", err)
	}

	switch args[0] {
	case "history":
		printHistory(engine.Messages())
	case "ask":
		prompt := strings.TrimSpace(strings.Join(args[1:], " "))
		if prompt == "" {
			log.Fatal("ask needs a prompt")
		}
		msg, err := engine.Submit(ctx, prompt)
		if err != nil {
			log.Fatalf("ask: %v", err)
		}
		fmt.Println(msg.Response)
	case "clear":
		if err := engine.Clear(ctx); err != nil {
			log.Fatalf("clear: %v", err)
		}
		fmt.Println("history cleared")
	case "logout":
		engine.Reset()
		if err := c.Logout(ctx); err != nil {
			log.Printf("logout: %v", err)
		}
		fmt.Println("signed out")
	default:
		flag.Usage()
		os.Exit(2)
	}
}

func printHistory(msgs []client.Message) {
	if len(msgs) == 0 {
		fmt.Println("(no history)")
		return
	}
	for _, m := range msgs {
		fmt.Printf("[%s] > %s\n%s\n\n", m.CreatedAt.Local().Format("2006-01-02 15:04"), m.Prompt, m.Response)
	}
}
