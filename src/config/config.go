package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultAPIKeyPath = "/run/secrets/api_keys/openai"
	APIKeyPathEnvVar  = "OCR_API_KEY_FILE"
	EnvPathEnvVar     = "VIBER_AGENT_ENV"

	AnchorRight = "right"
	AnchorLeft  = "left"
	AnchorFull  = "full"

	BackendAuto   = "auto"
	BackendScreen = "screen"

	DefaultModel   = "gpt-4o-mini"
	DefaultBaseURL = "https://api.openai.com/v1/chat/completions"
)

type LoadOptions struct {
	APIKeyPathOverride string
	EnvPathOverride    string
}

// Timings are the pipeline's tuning knobs.
type Timings struct {
	InitialWait      time.Duration
	PanelLoadWait    time.Duration
	WindowTimeout    time.Duration
	RetryTimeout     time.Duration
	PollInterval     time.Duration
	RetryExtraWait   time.Duration
	FocusSettle      time.Duration
	MessageInputWait time.Duration
	CloseSettle      time.Duration
}

// Panel describes the contact panel crop relative to the Viber window.
type Panel struct {
	Anchor     string
	Width      int
	Top        int
	TopPadding int
	Height     int
}

type Config struct {
	ViberExe      string
	TitlePattern  string
	URIScheme     string
	Timings       Timings
	Panel         Panel
	CaptureMode   string
	MinImageBytes int
	LastCapture   string

	APIKey        string
	APIKeyPath    string
	Model         string
	BaseURL       string
	Providers     []string
	FixName       bool
	OCRTimeout    time.Duration
	NameDenylist  []string
	MinAlphaRatio float64

	InputAutomationID string
	SendAutomationID  string
	SendButtonName    string

	Host              string
	Port              int
	AgentAPIKey       string
	Workers           int
	QueueSize         int
	EnableFileLogging bool
}

func Load() (*Config, error) {
	return LoadWithOptions(LoadOptions{})
}

func LoadWithOptions(opts LoadOptions) (*Config, error) {
	// Load configuration from sources in priority order:
	// 1) explicit override path
	// 2) .env in the application (executable) directory
	// 3) VIBER_AGENT_ENV as a path to a config file
	envPath := resolveEnvPath(opts)
	dotenvValues := readDotenvValues(envPath)
	if envPath != "" {
		_ = godotenv.Load(envPath)
	}

	apiKeyPath := resolveAPIKeyPath(opts, dotenvValues)

	cfg := &Config{
		ViberExe:     resolveViberExe(),
		TitlePattern: getEnvWithDefault("WINDOW_TITLE_PATTERN", ".*Viber.*"),
		URIScheme:    getEnvWithDefault("APP_URI_SCHEME", "viber"),
		Timings: Timings{
			InitialWait:      getEnvSeconds("INITIAL_WAIT", 1.0),
			PanelLoadWait:    getEnvSeconds("PANEL_LOAD_WAIT", 1.0),
			WindowTimeout:    getEnvSeconds("WINDOW_WAIT_TIMEOUT", 14),
			RetryTimeout:     getEnvSeconds("WINDOW_RETRY_TIMEOUT", 7),
			PollInterval:     getEnvSeconds("WINDOW_POLL_INTERVAL", 0.25),
			RetryExtraWait:   getEnvSeconds("RETRY_EXTRA_WAIT", 1.5),
			FocusSettle:      getEnvSeconds("FOCUS_SETTLE", 0.3),
			MessageInputWait: getEnvSeconds("MESSAGE_INPUT_WAIT", 2.0),
			CloseSettle:      getEnvSeconds("CLOSE_SETTLE", 0.5),
		},
		Panel: Panel{
			Anchor:     resolveAnchor(os.Getenv("PANEL_ANCHOR")),
			Width:      getEnvInt("PANEL_WIDTH", 290),
			Top:        getEnvInt("PANEL_TOP", 40),
			TopPadding: getEnvInt("PANEL_TOP_PADDING", 30),
			Height:     getEnvInt("PANEL_HEIGHT", 250),
		},
		CaptureMode:   resolveCaptureMode(os.Getenv("CAPTURE_BACKEND")),
		MinImageBytes: getEnvInt("CAPTURE_MIN_BYTES", 20000),
		LastCapture:   getEnvWithDefault("LAST_CAPTURE_PATH", "last_capture.png"),

		APIKey:        resolveAPIKey(apiKeyPath),
		APIKeyPath:    apiKeyPath,
		Model:         getEnvWithDefault("OCR_MODEL", getEnvWithDefault("OPENAI_OCR_MODEL", DefaultModel)),
		BaseURL:       getEnvWithDefault("OCR_BASE_URL", DefaultBaseURL),
		Providers:     splitList(os.Getenv("PROVIDERS")),
		FixName:       getEnvBool("OCR_FIX_NAME", true),
		OCRTimeout:    getEnvSeconds("OCR_TIMEOUT", 45),
		NameDenylist:  splitList(os.Getenv("NAME_DENYLIST")),
		MinAlphaRatio: getEnvFloat("NAME_MIN_ALPHA_RATIO", 0.5),

		InputAutomationID: os.Getenv("INPUT_AUTOMATION_ID"),
		SendAutomationID:  os.Getenv("SEND_AUTOMATION_ID"),
		SendButtonName:    getEnvWithDefault("SEND_BUTTON_NAME", "Send"),

		Host:              getEnvWithDefault("AGENT_HOST", "0.0.0.0"),
		Port:              getEnvInt("AGENT_PORT", 5050),
		AgentAPIKey:       strings.TrimSpace(os.Getenv("AGENT_API_KEY")),
		Workers:           getEnvInt("WORKERS", 2),
		QueueSize:         getEnvInt("QUEUE_SIZE", 4),
		EnableFileLogging: strings.ToLower(os.Getenv("ENABLE_FILE_LOGGING")) == "true",
	}

	return cfg, nil
}

// HasOCR reports whether the recognition service can be called at all.
func (c *Config) HasOCR() bool {
	return c != nil && c.APIKey != "" && c.Model != ""
}

func resolveEnvPath(opts LoadOptions) string {
	if p := strings.TrimSpace(opts.EnvPathOverride); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	if execPath, err := os.Executable(); err == nil {
		exeEnv := filepath.Join(filepath.Dir(execPath), ".env")
		if _, err := os.Stat(exeEnv); err == nil {
			return exeEnv
		}
	}

	if alt := os.Getenv(EnvPathEnvVar); alt != "" {
		if _, err := os.Stat(alt); err == nil {
			return alt
		}
	}

	return ""
}

func readDotenvValues(envPath string) map[string]string {
	if envPath == "" {
		return map[string]string{}
	}

	values, err := godotenv.Read(envPath)
	if err != nil {
		return map[string]string{}
	}

	return values
}

func resolveAPIKeyPath(opts LoadOptions, dotenvValues map[string]string) string {
	keyPath := DefaultAPIKeyPath

	if envPath := strings.TrimSpace(os.Getenv(APIKeyPathEnvVar)); envPath != "" {
		keyPath = envPath
	}

	if dotenvPath := strings.TrimSpace(dotenvValues[APIKeyPathEnvVar]); dotenvPath != "" {
		keyPath = dotenvPath
	}

	if overridePath := strings.TrimSpace(opts.APIKeyPathOverride); overridePath != "" {
		keyPath = overridePath
	}

	return keyPath
}

func resolveAPIKey(keyPath string) string {
	if data, err := os.ReadFile(keyPath); err == nil {
		if fileKey := strings.TrimSpace(string(data)); fileKey != "" {
			return fileKey
		}
	}

	if k := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); k != "" {
		return k
	}
	return strings.TrimSpace(os.Getenv("OPENROUTER_API_KEY"))
}

// resolveViberExe defaults to %LOCALAPPDATA%\Viber\Viber.exe.
func resolveViberExe() string {
	if v := strings.TrimSpace(os.Getenv("VIBER_EXE")); v != "" {
		return v
	}
	return filepath.Join(os.Getenv("LOCALAPPDATA"), "Viber", "Viber.exe")
}

func resolveAnchor(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case AnchorLeft:
		return AnchorLeft
	case AnchorFull, "full-width", "width":
		return AnchorFull
	default:
		return AnchorRight
	}
}

func resolveCaptureMode(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case BackendScreen, "mss", "grab":
		return BackendScreen
	default:
		return BackendAuto
	}
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvSeconds reads a float number of seconds ("1.5"), ignoring negatives.
func getEnvSeconds(key string, defaultSeconds float64) time.Duration {
	secs := getEnvFloat(key, defaultSeconds)
	if secs < 0 {
		secs = defaultSeconds
	}
	return time.Duration(secs * float64(time.Second))
}
