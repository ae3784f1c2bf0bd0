package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/riskibarqy/streakwatch/internal/platform/logging"
)

// Config stores runtime configuration for the service.
type Config struct {
	AppEnv                     string
	ServiceName                string
	ServiceVersion             string
	HTTPAddr                   string
	ReadTimeout                time.Duration
	WriteTimeout               time.Duration
	CORSAllowedOrigins         []string
	CacheTTL                   time.Duration
	FBrefBaseURL               string
	FBrefUserAgent             string
	FBrefTimeout               time.Duration
	FBrefMaxRetries            int
	FBrefCircuitEnabled        bool
	FBrefCircuitFailureCount   int
	FBrefCircuitOpenTimeout    time.Duration
	FBrefCircuitHalfOpenMaxReq int
	FBrefCompIDByLeague        map[string]int64
	InternalJobToken           string
	RefreshMaxWorkers          int
	RefreshFetchDelay          time.Duration
	PprofEnabled               bool
	PprofAddr                  string
	UptraceEnabled             bool
	UptraceDSN                 string
	PyroscopeEnabled           bool
	PyroscopeServerAddress     string
	PyroscopeAppName           string
	PyroscopeAuthToken         string
	PyroscopeUploadRate        time.Duration
	LogLevel                   logging.Level
}

func Load() (Config, error) {
	appEnv, err := parseAppEnv(getEnv("APP_ENV", EnvDev))
	if err != nil {
		return Config{}, err
	}

	readTimeout, err := time.ParseDuration(getEnv("APP_READ_TIMEOUT", "10s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse APP_READ_TIMEOUT: %w", err)
	}

	writeTimeout, err := time.ParseDuration(getEnv("APP_WRITE_TIMEOUT", "30s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse APP_WRITE_TIMEOUT: %w", err)
	}

	cacheTTL, err := time.ParseDuration(getEnv("CACHE_TTL", "1h"))
	if err != nil {
		return Config{}, fmt.Errorf("parse CACHE_TTL: %w", err)
	}
	if cacheTTL <= 0 {
		return Config{}, fmt.Errorf("CACHE_TTL must be > 0")
	}

	fbrefTimeout, err := time.ParseDuration(getEnv("FBREF_TIMEOUT", "20s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse FBREF_TIMEOUT: %w", err)
	}
	if fbrefTimeout <= 0 {
		return Config{}, fmt.Errorf("FBREF_TIMEOUT must be > 0")
	}
	fbrefMaxRetries, err := getEnvAsInt("FBREF_MAX_RETRIES", 1)
	if err != nil {
		return Config{}, fmt.Errorf("parse FBREF_MAX_RETRIES: %w", err)
	}
	if fbrefMaxRetries < 0 {
		return Config{}, fmt.Errorf("FBREF_MAX_RETRIES must be >= 0")
	}
	fbrefCircuitEnabled, err := strconv.ParseBool(getEnv("FBREF_CIRCUIT_ENABLED", "true"))
	if err != nil {
		return Config{}, fmt.Errorf("parse FBREF_CIRCUIT_ENABLED: %w", err)
	}
	fbrefCircuitFailureCount, err := getEnvAsInt("FBREF_CIRCUIT_FAILURE_COUNT", 5)
	if err != nil {
		return Config{}, fmt.Errorf("parse FBREF_CIRCUIT_FAILURE_COUNT: %w", err)
	}
	if fbrefCircuitFailureCount < 1 {
		return Config{}, fmt.Errorf("FBREF_CIRCUIT_FAILURE_COUNT must be >= 1")
	}
	fbrefCircuitOpenTimeout, err := time.ParseDuration(getEnv("FBREF_CIRCUIT_OPEN_TIMEOUT", "15s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse FBREF_CIRCUIT_OPEN_TIMEOUT: %w", err)
	}
	if fbrefCircuitOpenTimeout <= 0 {
		return Config{}, fmt.Errorf("FBREF_CIRCUIT_OPEN_TIMEOUT must be > 0")
	}
	fbrefCircuitHalfOpenMaxReq, err := getEnvAsInt("FBREF_CIRCUIT_HALF_OPEN_MAX_REQ", 2)
	if err != nil {
		return Config{}, fmt.Errorf("parse FBREF_CIRCUIT_HALF_OPEN_MAX_REQ: %w", err)
	}
	if fbrefCircuitHalfOpenMaxReq < 1 {
		return Config{}, fmt.Errorf("FBREF_CIRCUIT_HALF_OPEN_MAX_REQ must be >= 1")
	}
	fbrefCompIDByLeague, err := parseIDMap(getEnv("FBREF_COMP_ID_MAP", ""))
	if err != nil {
		return Config{}, fmt.Errorf("parse FBREF_COMP_ID_MAP: %w", err)
	}

	refreshMaxWorkers, err := getEnvAsInt("REFRESH_MAX_WORKERS", 2)
	if err != nil {
		return Config{}, fmt.Errorf("parse REFRESH_MAX_WORKERS: %w", err)
	}
	if refreshMaxWorkers < 1 {
		return Config{}, fmt.Errorf("REFRESH_MAX_WORKERS must be >= 1")
	}
	refreshFetchDelay, err := time.ParseDuration(getEnv("REFRESH_FETCH_DELAY", "3s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse REFRESH_FETCH_DELAY: %w", err)
	}
	if refreshFetchDelay < 0 {
		return Config{}, fmt.Errorf("REFRESH_FETCH_DELAY must be >= 0")
	}

	pprofEnabled, err := strconv.ParseBool(getEnv("PPROF_ENABLED", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("parse PPROF_ENABLED: %w", err)
	}
	pprofAddr := strings.TrimSpace(getEnv("PPROF_ADDR", ":6060"))
	if pprofEnabled && pprofAddr == "" {
		return Config{}, fmt.Errorf("PPROF_ADDR is required when PPROF_ENABLED=true")
	}

	uptraceEnabled, err := strconv.ParseBool(getEnv("UPTRACE_ENABLED", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("parse UPTRACE_ENABLED: %w", err)
	}
	uptraceDSN := strings.TrimSpace(getEnv("UPTRACE_DSN", ""))
	if uptraceEnabled && uptraceDSN == "" {
		return Config{}, fmt.Errorf("UPTRACE_DSN is required when UPTRACE_ENABLED=true")
	}

	pyroscopeEnabled, err := strconv.ParseBool(getEnv("PYROSCOPE_ENABLED", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("parse PYROSCOPE_ENABLED: %w", err)
	}
	pyroscopeServerAddress := strings.TrimSpace(getEnv("PYROSCOPE_SERVER_ADDRESS", ""))
	if pyroscopeEnabled && pyroscopeServerAddress == "" {
		return Config{}, fmt.Errorf("PYROSCOPE_SERVER_ADDRESS is required when PYROSCOPE_ENABLED=true")
	}
	pyroscopeUploadRate, err := time.ParseDuration(getEnv("PYROSCOPE_UPLOAD_RATE", "15s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse PYROSCOPE_UPLOAD_RATE: %w", err)
	}
	if pyroscopeUploadRate <= 0 {
		return Config{}, fmt.Errorf("PYROSCOPE_UPLOAD_RATE must be > 0")
	}

	cfg := Config{
		AppEnv:                     appEnv,
		ServiceName:                getEnv("APP_SERVICE_NAME", "streakwatch-api"),
		ServiceVersion:             getEnv("APP_SERVICE_VERSION", "dev"),
		HTTPAddr:                   getEnv("APP_HTTP_ADDR", ":8080"),
		ReadTimeout:                readTimeout,
		WriteTimeout:               writeTimeout,
		CORSAllowedOrigins:         splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		CacheTTL:                   cacheTTL,
		FBrefBaseURL:               strings.TrimSpace(getEnv("FBREF_BASE_URL", "https://fbref.com")),
		FBrefUserAgent:             strings.TrimSpace(getEnv("FBREF_USER_AGENT", "")),
		FBrefTimeout:               fbrefTimeout,
		FBrefMaxRetries:            fbrefMaxRetries,
		FBrefCircuitEnabled:        fbrefCircuitEnabled,
		FBrefCircuitFailureCount:   fbrefCircuitFailureCount,
		FBrefCircuitOpenTimeout:    fbrefCircuitOpenTimeout,
		FBrefCircuitHalfOpenMaxReq: fbrefCircuitHalfOpenMaxReq,
		FBrefCompIDByLeague:        fbrefCompIDByLeague,
		InternalJobToken:           strings.TrimSpace(getEnv("INTERNAL_JOB_TOKEN", "")),
		RefreshMaxWorkers:          refreshMaxWorkers,
		RefreshFetchDelay:          refreshFetchDelay,
		PprofEnabled:               pprofEnabled,
		PprofAddr:                  pprofAddr,
		UptraceEnabled:             uptraceEnabled,
		UptraceDSN:                 uptraceDSN,
		PyroscopeEnabled:           pyroscopeEnabled,
		PyroscopeServerAddress:     pyroscopeServerAddress,
		PyroscopeAuthToken:         strings.TrimSpace(getEnv("PYROSCOPE_AUTH_TOKEN", "")),
		PyroscopeUploadRate:        pyroscopeUploadRate,
		LogLevel:                   parseLogLevel(getEnv("APP_LOG_LEVEL", "info")),
	}
	cfg.PyroscopeAppName = strings.TrimSpace(getEnv("PYROSCOPE_APP_NAME", cfg.ServiceName))
	if cfg.PyroscopeEnabled && cfg.PyroscopeAppName == "" {
		return Config{}, fmt.Errorf("PYROSCOPE_APP_NAME cannot be empty when PYROSCOPE_ENABLED=true")
	}
	if len(cfg.CORSAllowedOrigins) == 0 {
		return Config{}, fmt.Errorf("CORS_ALLOWED_ORIGINS cannot be empty")
	}
	if cfg.FBrefBaseURL == "" {
		return Config{}, fmt.Errorf("FBREF_BASE_URL cannot be empty")
	}

	return cfg, nil
}

func parseLogLevel(v string) logging.Level {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "debug":
		return logging.LevelDebug
	case "warn", "warning":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if strings.TrimSpace(value) == "" {
		return fallback
	}

	return value
}

func getEnvAsInt(key string, fallback int) (int, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback, nil
	}

	out, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}

	return out, nil
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		item := strings.TrimSpace(part)
		if item == "" {
			continue
		}
		out = append(out, item)
	}

	return out
}

// parseIDMap reads "league-slug:number" pairs separated by commas, used to
// override or extend the built-in competition table.
func parseIDMap(raw string) (map[string]int64, error) {
	out := make(map[string]int64)
	parts := strings.Split(raw, ",")
	for _, part := range parts {
		item := strings.TrimSpace(part)
		if item == "" {
			continue
		}

		segments := strings.SplitN(item, ":", 2)
		if len(segments) != 2 {
			return nil, fmt.Errorf("invalid map item %q, expected league_id:number", item)
		}

		key := strings.TrimSpace(segments[0])
		if key == "" {
			return nil, fmt.Errorf("empty league id in item %q", item)
		}
		value, err := strconv.ParseInt(strings.TrimSpace(segments[1]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number in item %q: %w", item, err)
		}
		if value <= 0 {
			return nil, fmt.Errorf("id must be > 0 in item %q", item)
		}

		out[key] = value
	}
	return out, nil
}

const (
	EnvDev   = "dev"
	EnvStage = "stage"
	EnvProd  = "prod"
)

func parseAppEnv(v string) (string, error) {
	value := strings.ToLower(strings.TrimSpace(v))
	switch value {
	case EnvDev, EnvStage, EnvProd:
		return value, nil
	default:
		return "", fmt.Errorf("invalid APP_ENV %q: valid values are %s, %s, %s", v, EnvDev, EnvStage, EnvProd)
	}
}
