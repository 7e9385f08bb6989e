// Command usertool creates accounts from the terminal. It talks to the
// database directly through the same service layer as the server, so created
// users get the full treatment: bcrypt hash, role lookup and a queued
// verification email.
package main

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"golang.org/x/term"

	"github.com/avolkovs/authkeeper/internal/common"
	"github.com/avolkovs/authkeeper/internal/logging"
	"github.com/avolkovs/authkeeper/internal/server/config"
	"github.com/avolkovs/authkeeper/internal/server/queue"
	"github.com/avolkovs/authkeeper/internal/server/repositories/repomanager"
	"github.com/avolkovs/authkeeper/internal/server/services"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()

	reader := bufio.NewReader(os.Stdin)

	fmt.Println("Enter user name (email)")
	email, err := reader.ReadString('\n')
	if err != nil {
		log.Fatalf("%v", err)
	}
	email = strings.TrimSpace(email)

	fmt.Println("Enter role (admin, employee, agent)")
	role, err := reader.ReadString('\n')
	if err != nil {
		log.Fatalf("%v", err)
	}
	role = strings.TrimSpace(role)

	fmt.Println("Enter password")
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer common.WipeByteArray(password)

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("db init error: %v", err)
	}
	defer db.Close()

	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	m := repomanager.NewPostgresRepositoryManager()
	if err := m.RunMigrations(ctx, db); err != nil {
		log.Fatalf("migration error: %v", err)
	}

	q := queue.NewQueue(db, m, logger, cfg.JobMaxAttempts)
	as := services.NewAuthService(db, m, q, logger, cfg)

	user, err := as.CreateUser(ctx, email, string(password), role)
	if err != nil {
		log.Fatalf("create user error: %v", err)
	}

	fmt.Printf("Success! Created user %s (%s)\n", user.Email, user.ID)
}
