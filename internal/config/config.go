package config

import (
	"context"
	"log"

	"github.com/joho/godotenv"
	"gorm.io/gorm"

	pkgconfig "github.com/Skotchmaster/shop_checkout/pkg/config"
	"github.com/Skotchmaster/shop_checkout/pkg/db"
)

// Load reads .env when present, then the process environment.
func Load() *pkgconfig.Config {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("notice: .env not loaded (%v), using process environment", err)
	}

	cfg := pkgconfig.Load()
	pkgconfig.MustNonEmpty(cfg.DatabaseURL, "DATABASE_URL")
	pkgconfig.MustNonEmptyBytes(cfg.JWTAccessSecret, "JWT_SECRET")
	pkgconfig.MustGateway(cfg.Gateway)
	return &cfg
}

func InitDB(ctx context.Context, cfg *pkgconfig.Config) (*gorm.DB, error) {
	return db.Open(ctx, cfg.DBDriver, cfg.DatabaseURL)
}
