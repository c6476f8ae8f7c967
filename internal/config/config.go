// Package config loads environment-backed settings for the crawler and
// indexer, adapted from the teacher's env package and extended to also load
// a .env file via github.com/joho/godotenv - matching the original Python
// implementation's load_dotenv() call (see original_source/src/spider/db.py)
// - and to assemble the Postgres DSN described in SPEC_FULL §6.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Load reads a .env file if present (a missing file is not an error - it is
// entirely normal in a container or CI environment where variables are
// injected directly) before any GetEnv* call is made.
func Load() {
	_ = godotenv.Load()
}

// GetEnv reads an environment variable or returns defaultVal.
func GetEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

// GetEnvAsInt reads an environment variable as an int or returns defaultVal.
func GetEnvAsInt(key string, defaultVal int) int {
	value := GetEnv(key, "")
	if parsed, err := strconv.Atoi(value); err == nil {
		return parsed
	}
	return defaultVal
}

// GetEnvAsDuration reads an environment variable, interpreted as a count of
// seconds, as a time.Duration, or returns defaultVal.
func GetEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	value := GetEnv(key, "")
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return defaultVal
}

// Store holds the settings needed to connect to the relational store.
type Store struct {
	User     string
	Password string
	Host     string
	Port     string
	DBName   string
}

// StoreFromEnv reads USER, PASSWORD, HOST, PORT, DBNAME per SPEC_FULL §6.
func StoreFromEnv() Store {
	return Store{
		User:     GetEnv("USER", "isearch"),
		Password: GetEnv("PASSWORD", ""),
		Host:     GetEnv("HOST", "localhost"),
		Port:     GetEnv("PORT", "5432"),
		DBName:   GetEnv("DBNAME", "isearch"),
	}
}

// DSN assembles a PostgreSQL connection string with the password
// percent-encoded, matching the original's
// f"postgresql+asyncpg://{user}:{quote_plus(password)}@{host}:{port}/{dbname}".
func (s Store) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s",
		s.User, url.QueryEscape(s.Password), s.Host, s.Port, s.DBName)
}

// Crawler holds crawler-tuning settings, generalising the teacher's
// CrawlerSettings/NewFromEnv pattern.
type Crawler struct {
	Workers      int
	FetchTimeout time.Duration
	MaxCrawl     int
	PerHostConns int
	UserAgent    string
}

// CrawlerFromEnv reads WORKERS, FETCH_TIMEOUT_SECONDS, MAX_CRAWL,
// PER_HOST_CONNS and ISEARCH_USER_AGENT, falling back to SPEC_FULL §6's
// defaults.
func CrawlerFromEnv() Crawler {
	return Crawler{
		Workers:      GetEnvAsInt("WORKERS", 35),
		FetchTimeout: GetEnvAsDuration("FETCH_TIMEOUT_SECONDS", 8*time.Second),
		MaxCrawl:     GetEnvAsInt("MAX_CRAWL", 1000),
		PerHostConns: GetEnvAsInt("PER_HOST_CONNS", 60),
		UserAgent:    GetEnv("ISEARCH_USER_AGENT", "iSearch"),
	}
}

// Indexer holds indexer-tuning settings.
type Indexer struct {
	Workers   int
	Stopwords string
}

// IndexerFromEnv reads INDEX_WORKERS and STOPWORDS_FILE.
func IndexerFromEnv() Indexer {
	return Indexer{
		Workers:   GetEnvAsInt("INDEX_WORKERS", 30),
		Stopwords: GetEnv("STOPWORDS_FILE", "stopwords.txt"),
	}
}
