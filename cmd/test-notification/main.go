package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"go.uber.org/zap"

	"github.com/garyjia/approval-workflow/internal/application/port"
	"github.com/garyjia/approval-workflow/internal/config"
	"github.com/garyjia/approval-workflow/internal/container"
	"github.com/garyjia/approval-workflow/pkg/utils"
)

// Sends one test message to a user over every configured delivery channel,
// without starting the server. The in-app feed is not written.
func main() {
	configPath := flag.String("config", os.Getenv("APPROVAL_CONFIG"), "path to config.yaml (optional)")
	email := flag.String("email", "", "recipient profile email")
	message := flag.String("message", "Test notification from the approval workflow", "message body")
	link := flag.String("link", "/", "link attached to the message")
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
	// No browser sessions exist outside the server
	cc.Channels.WebSocketEnabled = false

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	fmt.Println("=== Notification Channel Test ===")

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
		log.Fatalf("No profile with email %s", *email)
	}
	fmt.Printf("Recipient: %s (%s, role %s)\n", profile.Email, profile.ID, profile.Role)

	var awsCfg *aws.Config
	if cc.NeedsAWS() {
		if awsCfg, err = container.ProvideAWS(ctx, cc.AWS); err != nil {
			log.Fatalf("Failed to load AWS config: %v", err)
		}
	}
	bundle, err := container.ProvideChannels(&cc.Channels, awsCfg, cc.AWS.Endpoint, logger)
	if err != nil {
		log.Fatalf("Failed to build channels: %v", err)
	}
	channels := bundle.Channels

	if len(channels) == 0 {
		fmt.Println("No delivery channels are enabled; set notifications.lark or notifications.email")
		return
	}

	delivery := port.Delivery{
		UserID:  profile.ID,
		Email:   profile.Email,
		LarkID:  profile.LarkID,
		Title:   "Test notification",
		Message: *message,
		Link:    *link,
	}

	failed := 0
	for _, ch := range channels {
		if err := ch.Deliver(ctx, delivery); err != nil {
			failed++
			fmt.Printf("✗ %s: %v\n", ch.Name(), err)
			logger.Warn("Delivery failed", zap.String("channel", ch.Name()), zap.Error(err))
			continue
		}
		fmt.Printf("✓ %s\n", ch.Name())
	}

	if failed > 0 {
		os.Exit(1)
	}
}
