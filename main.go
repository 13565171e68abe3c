package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"agromarket/internal/config"
	"agromarket/internal/models"
	"agromarket/internal/repositories"
	"agromarket/internal/services"
	"agromarket/pkg/cache"
	"agromarket/pkg/rabbitmq"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:          "agromarket",
		Short:        "B2B marketplace for agricultural inputs",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the environment")

	loadConfig := func() (*config.Config, error) {
		return config.Load(envFile)
	}

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and queue consumers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runServer(cfg)
		},
	}
	root.RunE = serve.RunE

	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := openDatabase(cfg)
			if err != nil {
				return err
			}
			log.Println("Database schema is up to date")
			return closeDatabase(db)
		},
	}

	root.AddCommand(serve, migrate, newImportClientsCmd(loadConfig), newCreateStaffCmd(loadConfig))
	return root
}

func newImportClientsCmd(loadConfig func() (*config.Config, error)) *cobra.Command {
	var (
		representative string
		dryRun         bool
	)
	cmd := &cobra.Command{
		Use:   "import-clients FILE",
		Short: "Import a representative's clients from a CSV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := openDatabase(cfg)
			if err != nil {
				return err
			}
			defer closeDatabase(db)

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			svc := services.NewImportService(repositories.NewGORMClientRepository(db), repositories.NewGORMCommissionRepository(db))
			report, err := svc.ImportClients(cmd.Context(), f, representative, dryRun)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, row := range report.Rows {
				for field, msg := range row.Errors {
					fmt.Fprintf(out, "line %d: %s: %s\n", row.Line, field, msg)
				}
			}
			fmt.Fprintf(out, "total=%d valid=%d invalid=%d inserted=%d dry_run=%t\n",
				report.Total, report.Valid, report.Invalid, report.Inserted, report.DryRun)
			return nil
		},
	}
	cmd.Flags().StringVar(&representative, "representative", "", "ID of the representative who owns the clients")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate only")
	_ = cmd.MarkFlagRequired("representative")
	return cmd
}

func newCreateStaffCmd(loadConfig func() (*config.Config, error)) *cobra.Command {
	var (
		reg  services.Registration
		role string
	)
	cmd := &cobra.Command{
		Use:   "create-staff",
		Short: "Create an approved admin or representative account",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := openDatabase(cfg)
			if err != nil {
				return err
			}
			defer closeDatabase(db)

			auth := services.NewAuthService(repositories.NewGORMUserRepository(db), cfg.JWTSecret, nil, nil)
			user, err := auth.CreateStaff(cmd.Context(), reg, models.Role(role))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s %s (%s)\n", user.Role, user.Email, user.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&reg.Email, "email", "", "login email")
	cmd.Flags().StringVar(&reg.Password, "password", "", "initial password")
	cmd.Flags().StringVar(&reg.CompanyName, "name", "", "display or company name")
	cmd.Flags().StringVar(&reg.Document, "document", "", "CNPJ or CPF")
	cmd.Flags().StringVar(&reg.Phone, "phone", "", "phone with area code")
	cmd.Flags().StringVar(&role, "role", string(models.RoleAdmin), "admin or representative")
	for _, f := range []string{"email", "password", "name", "document"} {
		_ = cmd.MarkFlagRequired(f)
	}
	return cmd
}

func openDatabase(cfg *config.Config) (*gorm.DB, error) {
	db, err := repositories.Open(cfg.DBDriver, cfg.DatabaseDSN)
	if err != nil {
		return nil, err
	}
	if err := repositories.AutoMigrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func closeDatabase(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func runServer(cfg *config.Config) error {
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer closeDatabase(db)

	// --- Initialize RabbitMQ Client ---
	// publisher stays a nil interface without a broker; notifications are then skipped.
	var publisher services.Publisher
	var mqClient *rabbitmq.Client
	if cfg.RabbitMQURL != "" {
		mqClient, err = rabbitmq.NewClient(rabbitmq.Config{
			URL:    cfg.RabbitMQURL,
			Queues: []rabbitmq.Queue{rabbitmq.EmailQueue, rabbitmq.WhatsAppQueue, rabbitmq.ChatbotQueue, rabbitmq.OrderQueue},
		})
		if err != nil {
			return fmt.Errorf("failed to initialize RabbitMQ client: %w", err)
		}
		defer mqClient.Close() // Ensure the connection is closed on exit
		publisher = mqClient
	} else {
		log.Println("RABBITMQ_URL not set; notifications are disabled")
	}

	dedup := cache.NewMemoryCache("agromarket")
	if cfg.RedisAddr != "" {
		dedup = cache.NewRedisCache(cfg.RedisAddr, "agromarket")
	}

	srv, err := newServer(cfg, serverDeps{DB: db, Publisher: publisher, Cache: dedup})
	if err != nil {
		return err
	}

	if mqClient != nil {
		if err := startConsumers(mqClient, srv); err != nil {
			return err
		}
	}

	// --- Start HTTP Server ---
	log.Printf("Starting server on port %s", cfg.AppPort)

	// Graceful shutdown handling
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.app.Listen(cfg.AppPort)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed to start: %w", err)
	case <-ctx.Done():
	}

	log.Println("Shutting down server...")
	if err := srv.app.Shutdown(); err != nil {
		log.Printf("Error during Fiber shutdown: %v", err)
	}
	srv.notifier.Wait()
	log.Println("Server gracefully stopped")
	return nil
}

// startConsumers attaches the queue handlers served by this process.
func startConsumers(mq *rabbitmq.Client, srv *server) error {
	whatsAppHandler := services.WhatsAppDeliveryHandler(srv.whatsapp)
	if !srv.whatsapp.Enabled() {
		whatsAppHandler = func(body []byte) error {
			log.Printf("WhatsApp delivery skipped: %s", string(body))
			return nil
		}
	}

	consumers := map[string]func([]byte) error{
		rabbitmq.EmailQueue.Name:    services.EmailDeliveryHandler(),
		rabbitmq.WhatsAppQueue.Name: whatsAppHandler,
		rabbitmq.ChatbotQueue.Name:  srv.chatbot.Handle,
		rabbitmq.OrderQueue.Name: func(body []byte) error {
			log.Printf("Received order event: %s", string(body))
			return nil
		},
	}
	for queue, handler := range consumers {
		if err := mq.Consume(queue, handler); err != nil {
			return err
		}
	}
	return nil
}
