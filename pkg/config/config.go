package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Signed-PDF policies for OCR (OCR_ON_SIGNED).
const (
	SignedBlock      = "block"
	SignedAsk        = "ask"
	SignedInvalidate = "invalidate"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Upload    UploadConfig    `mapstructure:"upload"`
	Tools     ToolsConfig     `mapstructure:"tools"`
	OCR       OCRConfig       `mapstructure:"ocr"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Admin     AdminConfig     `mapstructure:"admin"`
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	Host         string        `mapstructure:"host"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	Environment  string        `mapstructure:"environment"`
	TrustProxy   bool          `mapstructure:"trust_proxy"`
}

// UploadConfig holds the upload root layout and the size/page ceilings.
type UploadConfig struct {
	Folder           string `mapstructure:"folder"`
	MaxContentLength int64  `mapstructure:"max_content_length"`
	TTLHours         int    `mapstructure:"ttl_hours"`
	MaxPDFPages      int    `mapstructure:"max_pdf_pages"`
	MaxTotalPages    int    `mapstructure:"max_total_pages"`
	EditMaxPages     int    `mapstructure:"edit_max_pages"`
}

// TTL returns the upload time-to-live as a duration.
func (c *UploadConfig) TTL() time.Duration {
	return time.Duration(c.TTLHours) * time.Hour
}

// ToolsConfig holds external binary paths and wall timeouts (seconds).
type ToolsConfig struct {
	GhostscriptBin     string `mapstructure:"ghostscript_bin"`
	GhostscriptTimeout int    `mapstructure:"ghostscript_timeout"`
	LibreOfficeBin     string `mapstructure:"libreoffice_bin"`
	LibreOfficeTimeout int    `mapstructure:"libreoffice_timeout"`
}

// OCRConfig holds the OCR engine defaults.
type OCRConfig struct {
	Bin      string `mapstructure:"bin"`
	Langs    string `mapstructure:"langs"`
	Timeout  int    `mapstructure:"timeout"`
	MemMB    int    `mapstructure:"mem_mb"`
	Jobs     int    `mapstructure:"jobs"`
	Clean    bool   `mapstructure:"clean"`
	OnSigned string `mapstructure:"on_signed"`
}

// RateLimitConfig holds per-minute request budgets.
type RateLimitConfig struct {
	Default     int            `mapstructure:"default"`
	PerEndpoint map[string]int `mapstructure:"per_endpoint"`
}

// Limit returns the per-minute budget for an endpoint name.
func (c *RateLimitConfig) Limit(endpoint string) int {
	if n, ok := c.PerEndpoint[endpoint]; ok && n > 0 {
		return n
	}
	return c.Default
}

// AdminConfig holds the admin surface settings.
type AdminConfig struct {
	Token string `mapstructure:"token"`
}

// Load loads configuration from environment and config files.
func Load(serviceName string) (*Config, error) {
	v := viper.New()

	setDefaults(v)
	bindEnv(v)

	v.SetConfigName(serviceName)
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/pdfacil")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.OCR.OnSigned = strings.ToLower(cfg.OCR.OnSigned)
	switch cfg.OCR.OnSigned {
	case SignedBlock, SignedAsk, SignedInvalidate:
	default:
		return nil, fmt.Errorf("invalid OCR_ON_SIGNED %q: must be block, ask or invalidate", cfg.OCR.OnSigned)
	}

	if cfg.Upload.Folder == "" {
		return nil, fmt.Errorf("upload folder must not be empty")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.read_timeout", 60*time.Second)
	v.SetDefault("server.write_timeout", 600*time.Second)
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.trust_proxy", false)

	v.SetDefault("upload.folder", "./uploads")
	v.SetDefault("upload.max_content_length", int64(100<<20))
	v.SetDefault("upload.ttl_hours", 2)
	v.SetDefault("upload.max_pdf_pages", 800)
	v.SetDefault("upload.max_total_pages", 2000)
	v.SetDefault("upload.edit_max_pages", 500)

	v.SetDefault("tools.ghostscript_bin", "")
	v.SetDefault("tools.ghostscript_timeout", 60)
	v.SetDefault("tools.libreoffice_bin", "")
	v.SetDefault("tools.libreoffice_timeout", 120)

	v.SetDefault("ocr.bin", "")
	v.SetDefault("ocr.langs", "por+eng")
	v.SetDefault("ocr.timeout", 300)
	v.SetDefault("ocr.mem_mb", 1024)
	v.SetDefault("ocr.jobs", 1)
	v.SetDefault("ocr.clean", false)
	v.SetDefault("ocr.on_signed", SignedBlock)

	v.SetDefault("rate_limit.default", 10)
	v.SetDefault("rate_limit.per_endpoint", map[string]int{
		"convert":     5,
		"merge":       3,
		"compress":    5,
		"split":       5,
		"preview":     20,
		"ocr":         5,
		"admin_stats": 30,
	})

	v.SetDefault("admin.token", "")
}

// bindEnv wires the flat environment names the deployment uses onto the
// structured keys. Server keys additionally honor a PDFACIL_ prefix.
func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix("PDFACIL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, env := range map[string]string{
		"upload.folder":             "UPLOAD_FOLDER",
		"upload.max_content_length": "MAX_CONTENT_LENGTH",
		"upload.ttl_hours":          "UPLOAD_TTL_HOURS",
		"upload.max_pdf_pages":      "MAX_PDF_PAGES",
		"upload.max_total_pages":    "MAX_TOTAL_PAGES",
		"upload.edit_max_pages":     "EDIT_MAX_PAGES",
		"tools.ghostscript_bin":     "GHOSTSCRIPT_BIN",
		"tools.ghostscript_timeout": "GHOSTSCRIPT_TIMEOUT",
		"tools.libreoffice_bin":     "LIBREOFFICE_BIN",
		"tools.libreoffice_timeout": "LIBREOFFICE_TIMEOUT",
		"ocr.bin":                   "OCR_BIN",
		"ocr.langs":                 "OCR_LANGS",
		"ocr.timeout":               "OCR_TIMEOUT",
		"ocr.mem_mb":                "OCR_MEM_MB",
		"ocr.jobs":                  "OCR_JOBS",
		"ocr.clean":                 "OCR_CLEAN",
		"ocr.on_signed":             "OCR_ON_SIGNED",
		"admin.token":               "ADMIN_TOKEN",
	} {
		_ = v.BindEnv(key, env)
	}
}
