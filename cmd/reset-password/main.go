package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"go-inventory-ledger/internal/repository"
	"go-inventory-ledger/internal/service"
	"go-inventory-ledger/pkg/config"
	"go-inventory-ledger/pkg/database"
	"go-inventory-ledger/pkg/logger"

	"github.com/joho/godotenv"
)

// reset-password sets a new password for an existing account and reactivates it.
func main() {
	logg := logger.New(logger.Options{ServiceName: "reset-password"})

	// 1. Load Env
	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on system env")
	}

	email := flag.String("email", "", "email of the account to reset")
	password := flag.String("password", "", "new password (min 6 characters)")
	flag.Parse()

	if strings.TrimSpace(*email) == "" || *password == "" {
		fmt.Fprintln(os.Stderr, "usage: reset-password -email <email> -password <new password>")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "loading config", err)
		os.Exit(1)
	}
	ctx := logg.WithField(context.Background(), "email", *email)

	// 2. Setup Database
	client, err := database.Connect(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "connecting database", err)
		os.Exit(1)
	}
	defer client.Close()

	// 3. Find the account
	userRepo := repository.NewUserRepo(client.DB())
	user, err := userRepo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(*email)))
	if err != nil {
		logg.Error(ctx, "user not found", err)
		os.Exit(1)
	}

	// 4. Update through the user service so the password rules apply
	active := true
	if _, err := service.NewUserService(userRepo).UpdateUser(ctx, user.ID, &service.UpdateUserRequest{
		Password: password,
		IsActive: &active,
	}); err != nil {
		logg.Error(ctx, "failed to reset password", err)
		os.Exit(1)
	}

	logg.Info(ctx, "password reset")
}
