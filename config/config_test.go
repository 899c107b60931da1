package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "auction_house", cfg.Database.DBName)
	assert.Equal(t, 5*time.Minute, cfg.Auction.RoundDuration)
	assert.Equal(t, 60*time.Second, cfg.Auction.AntiSnipingThreshold)
	assert.Equal(t, 120*time.Second, cfg.Auction.AntiSnipingExtension)
	assert.Equal(t, 10, cfg.Auction.TopN)
	assert.Equal(t, int64(5), cfg.Auction.MinBidStepPercent)
	assert.Equal(t, int64(100), cfg.Auction.BidRateLimit)
	assert.Equal(t, 10*time.Second, cfg.Auction.BidRateWindow)
	assert.Equal(t, 2*time.Second, cfg.Auction.LockTTL)
	assert.Equal(t, 4, cfg.Scheduler.Workers)
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 9090
auction:
  round_duration: 30s
  top_n: 3
  min_bid_step_percent: 10
  admin_token: sekrit
scheduler:
  workers: 2
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Auction.RoundDuration)
	assert.Equal(t, 3, cfg.Auction.TopN)
	assert.Equal(t, int64(10), cfg.Auction.MinBidStepPercent)
	assert.Equal(t, "sekrit", cfg.Auction.AdminToken)
	assert.Equal(t, 2, cfg.Scheduler.Workers)

	// Untouched keys keep defaults.
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, int64(100), cfg.Auction.BidRateLimit)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("AUCTION_SERVER_PORT", "7001")
	t.Setenv("AUCTION_AUCTION_TOP_N", "25")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 7001, cfg.Server.Port)
	assert.Equal(t, 25, cfg.Auction.TopN)
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{
		Host: "db", Port: 5433, User: "u", Password: "p",
		DBName: "auctions", SSLMode: "require",
	}
	assert.Equal(t, "postgres://u:p@db:5433/auctions?sslmode=require", d.DSN())
}

func TestRedisConfig_Addr(t *testing.T) {
	r := RedisConfig{Host: "cache", Port: 6380}
	assert.Equal(t, "cache:6380", r.Addr())
}
