package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/stockyard-backend/internal/staff"
	"github.com/angelmondragon/stockyard-backend/pkg/config"
	"github.com/angelmondragon/stockyard-backend/pkg/db"
	"github.com/angelmondragon/stockyard-backend/pkg/enums"
	"github.com/angelmondragon/stockyard-backend/pkg/logger"
	"github.com/angelmondragon/stockyard-backend/pkg/security"
)

const tempPasswordLength = 16

var errNoSessions = errors.New("sessions are not available to create-staff")

// noSessions satisfies the staff service; account creation never logs in.
type noSessions struct{}

func (noSessions) Start(context.Context, string, string) error { return errNoSessions }
func (noSessions) Revoke(context.Context, string) error        { return errNoSessions }

func main() {
	email := flag.String("email", "", "staff email address")
	name := flag.String("name", "", "display name")
	role := flag.String("role", string(enums.StaffRoleStaff), "admin|staff")
	password := flag.String("password", "", "initial password (generated when empty)")
	flag.Parse()

	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "create-staff"})
	_ = godotenv.Load()

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	staffRole, err := enums.ParseStaffRole(*role)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid -role: %v\n", err)
		os.Exit(2)
	}

	secret := *password
	generated := secret == ""
	if generated {
		secret, err = security.GenerateTempPassword(tempPasswordLength)
		requireResource(ctx, logg, "password generator", err)
	}

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer dbClient.Close()

	svc, err := staff.NewService(staff.ServiceParams{
		Repo:           staff.NewRepository(dbClient.DB()),
		SessionManager: noSessions{},
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
	})
	requireResource(ctx, logg, "staff service", err)

	created, err := svc.Create(ctx, staff.CreateParams{
		Email:       *email,
		DisplayName: *name,
		Role:        staffRole,
		Password:    secret,
	})
	if err != nil {
		logg.Error(ctx, "create staff failed", err)
		os.Exit(1)
	}

	fmt.Printf("created %s account %s (%s)\n", created.Role, created.Email, created.ID)
	if generated {
		fmt.Printf("temporary password: %s\n", secret)
	}
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
