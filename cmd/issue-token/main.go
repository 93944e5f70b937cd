package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/approval-workflow/internal/config"
	"github.com/garyjia/approval-workflow/internal/container"
	"github.com/garyjia/approval-workflow/internal/domain/entity"
	domainwf "github.com/garyjia/approval-workflow/internal/domain/workflow"
	"github.com/garyjia/approval-workflow/pkg/utils"
)

// Prints a bearer token for a profile. With -create the profile is added
// first, which is how the first admin is bootstrapped.
func main() {
	configPath := flag.String("config", os.Getenv("APPROVAL_CONFIG"), "path to config.yaml (optional)")
	email := flag.String("email", "", "profile email")
	name := flag.String("name", "", "full name for a created profile")
	role := flag.String("role", string(domainwf.RoleEmployee), "role for a created profile")
	create := flag.Bool("create", false, "create the profile if it does not exist")
	flag.Parse()

	if *email == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger, err := utils.NewLogger(utils.LoggerConfig{Level: "warn", OutputPath: "stderr", Format: "console"})
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	cc, err := cfg.ToContainerConfig()
	if err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := container.ProvideDatabase(&cc.Database, logger)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.DB.Close()

	repos, err := container.ProvideRepositories(db.TxManager, logger)
	if err != nil {
		log.Fatalf("Failed to create repositories: %v", err)
	}

	profile, err := repos.Profiles.GetByEmail(ctx, *email)
	if err != nil {
		log.Fatalf("Failed to look up profile: %v", err)
	}
	if profile == nil {
		if !*create {
			log.Fatalf("No profile with email %s (use -create)", *email)
		}
		r := domainwf.Role(*role)
		if !r.IsValid() {
			log.Fatalf("Unknown role %q", *role)
		}
		now := time.Now().UTC()
		profile = &entity.Profile{
			ID:        uuid.NewString(),
			Email:     *email,
			FullName:  *name,
			Role:      r,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := repos.Profiles.Create(ctx, profile); err != nil {
			log.Fatalf("Failed to create profile: %v", err)
		}
		fmt.Fprintf(os.Stderr, "Created %s profile %s\n", profile.Role, profile.ID)
	}

	token, err := container.ProvideIdentity(cc.Auth, repos.Profiles, logger).Issue(profile)
	if err != nil {
		log.Fatalf("Failed to sign token: %v", err)
	}
	fmt.Println(token)
}
