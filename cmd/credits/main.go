// Command credits grants credits to a user account, addressed by id or email.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Hakan2211/cinevido-sub002/internal/credits"
	"github.com/Hakan2211/cinevido-sub002/internal/infra"
	"github.com/Hakan2211/cinevido-sub002/internal/sqlinline"
)

func main() {
	var (
		idFlag    string
		emailFlag string
		grantFlag int
	)

	flag.StringVar(&idFlag, "id", "", "user ID to credit (UUID)")
	flag.StringVar(&emailFlag, "email", "", "user email to credit")
	flag.IntVar(&grantFlag, "grant", 0, "number of credits to add (negative to remove)")
	flag.Parse()

	userID := strings.TrimSpace(idFlag)
	email := strings.TrimSpace(emailFlag)

	if userID == "" && email == "" {
		exitWithError(errors.New("either -id or -email must be provided"))
	}
	if grantFlag == 0 {
		exitWithError(errors.New("-grant must be non-zero"))
	}

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		exitWithError(errors.New("DATABASE_URL is required"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		exitWithError(fmt.Errorf("failed to connect database: %w", err))
	}
	defer pool.Close()

	logger := infra.NewLogger("cli").With().Str("cmd", "credits").Logger()
	runner := infra.NewSQLRunner(pool, logger)

	if userID == "" {
		lookupCtx, cancelLookup := context.WithTimeout(context.Background(), 5*time.Second)
		row := runner.QueryRow(lookupCtx, sqlinline.QSelectUserByEmail, email)
		var role string
		var balance int
		err := row.Scan(&userID, &email, &role, &balance)
		cancelLookup()
		if err != nil {
			exitWithError(fmt.Errorf("failed to load user: %w", err))
		}
	}

	ledger := credits.NewLedger(runner)
	grantCtx, cancelGrant := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelGrant()

	balance, err := ledger.Grant(grantCtx, userID, grantFlag)
	if err != nil {
		exitWithError(fmt.Errorf("failed to grant credits: %w", err))
	}

	fmt.Printf("user %s credited %+d, balance now %d\n", userID, grantFlag, balance)
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}
