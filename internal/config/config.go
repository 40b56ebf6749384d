// Package config provides configuration for the integritas chat server.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the server configuration.
type Config struct {
	// Server settings
	HTTPPort int
	BasePath string

	// Upstream MCP host
	HostURL     string
	HostTimeout time.Duration

	// Object storage
	StorageURL       string
	StoragePublicURL string
	StorageUser      string
	StoragePass      string
	StorageParamPath string
	StorageRegion    string
	UploadBucket     string
	UploadTTL        time.Duration
	PublicPathPrefix string
	UploadMaxSize    string

	// Rate limiting
	RateLimitStore string
	RateLimitTable string
	RateLimitPGDSN string

	// Streaming relay
	ToolRunner    string
	MCPServerURL  string
	MockToolDelay time.Duration
}

// Load loads configuration from environment variables.
func Load() *Config {
	return &Config{
		HTTPPort:         getEnvInt("HTTP_PORT", 3000),
		BasePath:         normalizeBasePath(getEnv("BASE_PATH", "/mcp")),
		HostURL:          getEnv("MCP_HOST_URL", "http://127.0.0.1:8788/chat"),
		HostTimeout:      time.Duration(getEnvInt("HOST_TIMEOUT_MS", 0)) * time.Millisecond,
		StorageURL:       getEnv("MINIO_URL", ""),
		StoragePublicURL: getEnv("MINIO_PUBLIC_URL", ""),
		StorageUser:      getEnv("MINIO_USER", ""),
		StoragePass:      getEnv("MINIO_PASS", ""),
		StorageParamPath: getEnv("MINIO_PARAM_PREFIX", ""),
		StorageRegion:    getEnv("STORAGE_REGION", "us-east-1"),
		UploadBucket:     getEnv("UPLOAD_BUCKET", "aiuploads"),
		UploadTTL:        time.Duration(getEnvInt("UPLOAD_TTL_MS", 3600000)) * time.Millisecond,
		PublicPathPrefix: getEnv("PUBLIC_PATH_PREFIX", "/files"),
		UploadMaxSize:    getEnv("UPLOAD_MAX_SIZE", "50M"),
		RateLimitStore:   strings.ToLower(getEnv("RATE_LIMIT_STORE", "memory")),
		RateLimitTable:   getEnv("RATE_LIMIT_TABLE", "rate_limits"),
		RateLimitPGDSN:   getEnv("RATE_LIMIT_PG_DSN", ""),
		ToolRunner:       strings.ToLower(getEnv("TOOL_RUNNER", "mock")),
		MCPServerURL:     getEnv("MCP_SERVER_URL", ""),
		MockToolDelay:    time.Duration(getEnvInt("MOCK_TOOL_DELAY_MS", 0)) * time.Millisecond,
	}
}

// ClientConfig holds the defaults of the terminal client. Flags override it.
type ClientConfig struct {
	ServerURL       string
	APIKey          string
	DBPath          string
	Profile         string
	Transport       string
	Timeout         time.Duration
	TypewriterDelay time.Duration
	LinkParsePolicy string
}

// LoadClient loads the client configuration from environment variables.
func LoadClient() *ClientConfig {
	return &ClientConfig{
		ServerURL:       strings.TrimSuffix(getEnv("INTEGRITAS_SERVER", "http://127.0.0.1:3000/mcp"), "/"),
		APIKey:          getEnv("INTEGRITAS_API_KEY", ""),
		DBPath:          getEnv("INTEGRITAS_DB", "integritas.db"),
		Profile:         getEnv("INTEGRITAS_PROFILE", "default"),
		Transport:       strings.ToLower(getEnv("INTEGRITAS_TRANSPORT", "http")),
		Timeout:         time.Duration(getEnvInt("INTEGRITAS_TIMEOUT_MS", 0)) * time.Millisecond,
		TypewriterDelay: time.Duration(getEnvInt("INTEGRITAS_TYPEWRITER_MS", 15)) * time.Millisecond,
		LinkParsePolicy: strings.ToLower(getEnv("LINK_PARSE_POLICY", "silent")),
	}
}

// normalizeBasePath turns "mcp/", "/mcp/" and "/mcp" into "/mcp" and "/" into "".
func normalizeBasePath(p string) string {
	p = strings.Trim(strings.TrimSpace(p), "/")
	if p == "" {
		return ""
	}
	return "/" + p
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}
