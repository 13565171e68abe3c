package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// BankDetails are printed on every payment document.
type BankDetails struct {
	Beneficiary     string
	BeneficiaryCNPJ string
	BankName        string
	BankCode        string
	Agency          string
	Account         string
	PIXKey          string
}

// Config holds everything the server and the CLI need.
type Config struct {
	AppPort     string
	DBDriver    string
	DatabaseDSN string
	JWTSecret   string
	RabbitMQURL string
	RedisAddr   string
	StorageDir  string

	WhatsAppVerifyToken   string
	WhatsAppAppSecret     string
	WhatsAppToken         string
	WhatsAppPhoneNumberID string
	WhatsAppAPIVersion    string

	RecaptchaSecret    string
	RecaptchaMinScore  float64
	MinFormFillSeconds int

	Bank          BankDetails
	BoletoDueDays int

	OrderRetryMaxAttempts int
	OrderRetryBaseDelay   time.Duration
	OrderRetryJitter      time.Duration

	PricingTiers      []decimal.Decimal
	CommissionMaxRate decimal.Decimal
	CommissionMinRate decimal.Decimal
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("APP_PORT", ":8080")
	v.SetDefault("DB_DRIVER", "postgres")
	v.SetDefault("DATABASE_DSN", "host=127.0.0.1 user=postgres password=postgres dbname=agromarket port=5432 sslmode=disable")
	v.SetDefault("JWT_SECRET", "change_me")
	v.SetDefault("RABBITMQ_URL", "")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("STORAGE_DIR", "./data/documents")

	v.SetDefault("WHATSAPP_VERIFY_TOKEN", "")
	v.SetDefault("WHATSAPP_APP_SECRET", "")
	v.SetDefault("WHATSAPP_TOKEN", "")
	v.SetDefault("WHATSAPP_PHONE_NUMBER_ID", "")
	v.SetDefault("WHATSAPP_API_VERSION", "v20.0")

	v.SetDefault("RECAPTCHA_SECRET", "")
	v.SetDefault("RECAPTCHA_MIN_SCORE", 0.5)
	v.SetDefault("MIN_FORM_FILL_SECONDS", 3)

	v.SetDefault("BANK_BENEFICIARY", "Agromarket Insumos Agricolas Ltda")
	v.SetDefault("BANK_BENEFICIARY_CNPJ", "11.222.333/0001-81")
	v.SetDefault("BANK_NAME", "Banco do Brasil")
	v.SetDefault("BANK_CODE", "001")
	v.SetDefault("BANK_AGENCY", "1234-5")
	v.SetDefault("BANK_ACCOUNT", "98765-4")
	v.SetDefault("PIX_KEY", "financeiro@agromarket.com.br")
	v.SetDefault("BOLETO_DUE_DAYS", 3)

	v.SetDefault("ORDER_RETRY_MAX_ATTEMPTS", 3)
	v.SetDefault("ORDER_RETRY_BASE_DELAY", "200ms")
	v.SetDefault("ORDER_RETRY_JITTER", "300ms")

	v.SetDefault("PRICING_TIERS", "0.25,0.50,0.80")
	v.SetDefault("COMMISSION_MAX_RATE", "0.05")
	v.SetDefault("COMMISSION_MIN_RATE", "0.01")
}

// Load reads an optional .env file, then the environment, on top of the defaults.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	if err := godotenv.Load(envFiles...); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	v := viper.New()
	SetDefaults(v)
	v.AutomaticEnv()
	return FromViper(v)
}

// FromViper builds a Config from an already populated viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		AppPort:     v.GetString("APP_PORT"),
		DBDriver:    v.GetString("DB_DRIVER"),
		DatabaseDSN: v.GetString("DATABASE_DSN"),
		JWTSecret:   v.GetString("JWT_SECRET"),
		RabbitMQURL: v.GetString("RABBITMQ_URL"),
		RedisAddr:   v.GetString("REDIS_ADDR"),
		StorageDir:  v.GetString("STORAGE_DIR"),

		WhatsAppVerifyToken:   v.GetString("WHATSAPP_VERIFY_TOKEN"),
		WhatsAppAppSecret:     v.GetString("WHATSAPP_APP_SECRET"),
		WhatsAppToken:         v.GetString("WHATSAPP_TOKEN"),
		WhatsAppPhoneNumberID: v.GetString("WHATSAPP_PHONE_NUMBER_ID"),
		WhatsAppAPIVersion:    v.GetString("WHATSAPP_API_VERSION"),

		RecaptchaSecret:    v.GetString("RECAPTCHA_SECRET"),
		RecaptchaMinScore:  v.GetFloat64("RECAPTCHA_MIN_SCORE"),
		MinFormFillSeconds: v.GetInt("MIN_FORM_FILL_SECONDS"),

		Bank: BankDetails{
			Beneficiary:     v.GetString("BANK_BENEFICIARY"),
			BeneficiaryCNPJ: v.GetString("BANK_BENEFICIARY_CNPJ"),
			BankName:        v.GetString("BANK_NAME"),
			BankCode:        v.GetString("BANK_CODE"),
			Agency:          v.GetString("BANK_AGENCY"),
			Account:         v.GetString("BANK_ACCOUNT"),
			PIXKey:          v.GetString("PIX_KEY"),
		},
		BoletoDueDays: v.GetInt("BOLETO_DUE_DAYS"),

		OrderRetryMaxAttempts: v.GetInt("ORDER_RETRY_MAX_ATTEMPTS"),
		OrderRetryBaseDelay:   v.GetDuration("ORDER_RETRY_BASE_DELAY"),
		OrderRetryJitter:      v.GetDuration("ORDER_RETRY_JITTER"),
	}

	if cfg.DBDriver != "postgres" && cfg.DBDriver != "sqlite" {
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}

	tiers, err := parseDecimals(v.GetString("PRICING_TIERS"))
	if err != nil {
		return nil, fmt.Errorf("invalid PRICING_TIERS: %w", err)
	}
	cfg.PricingTiers = tiers

	if cfg.CommissionMaxRate, err = decimal.NewFromString(v.GetString("COMMISSION_MAX_RATE")); err != nil {
		return nil, fmt.Errorf("invalid COMMISSION_MAX_RATE: %w", err)
	}
	if cfg.CommissionMinRate, err = decimal.NewFromString(v.GetString("COMMISSION_MIN_RATE")); err != nil {
		return nil, fmt.Errorf("invalid COMMISSION_MIN_RATE: %w", err)
	}

	return cfg, nil
}

func parseDecimals(raw string) ([]decimal.Decimal, error) {
	var out []decimal.Decimal
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		d, err := decimal.NewFromString(part)
		if err != nil {
			return nil, err
		}
		if !d.IsPositive() || d.GreaterThan(decimal.NewFromInt(1)) {
			return nil, fmt.Errorf("tier %s outside (0, 1]", part)
		}
		out = append(out, d)
	}
	return out, nil
}
