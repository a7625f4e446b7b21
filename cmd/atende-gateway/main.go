// ABOUTME: Entry point for the atende-gateway WhatsApp attendance server
// ABOUTME: Wires the store, queue, flow engine, pipeline and dashboard API

package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/redis/go-redis/v9"

	"github.com/inauguralar/atende-gateway/internal/api"
	"github.com/inauguralar/atende-gateway/internal/bot"
	"github.com/inauguralar/atende-gateway/internal/config"
	"github.com/inauguralar/atende-gateway/internal/dedupe"
	"github.com/inauguralar/atende-gateway/internal/events"
	"github.com/inauguralar/atende-gateway/internal/flow"
	"github.com/inauguralar/atende-gateway/internal/lock"
	"github.com/inauguralar/atende-gateway/internal/media"
	"github.com/inauguralar/atende-gateway/internal/nlp"
	"github.com/inauguralar/atende-gateway/internal/operator"
	"github.com/inauguralar/atende-gateway/internal/queue"
	"github.com/inauguralar/atende-gateway/internal/session"
	"github.com/inauguralar/atende-gateway/internal/store"
	"github.com/inauguralar/atende-gateway/internal/transport"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
       _                 _
  __ _| |_ ___ _ __   __| | ___        __ _ __ _| |_ _____      ____ _ _   _
 / _' | __/ _ \ '_ \ / _' |/ _ \_____ / _' |/ _' | __/ _ \ \ /\ / / _' | | | |
| (_| | ||  __/ | | | (_| |  __/_____| (_| | (_| | ||  __/\ V  V / (_| | |_| |
 \__,_|\__\___|_| |_|\__,_|\___|      \__, |\__,_|\__\___| \_/\_/ \__,_|\__, |
                                      |___/                             |___/
`

// getConfigPath returns the path to the gateway config file.
// Priority: ATENDE_CONFIG env var > XDG_CONFIG_HOME/atende/gateway.yaml > ~/.config/atende/gateway.yaml
func getConfigPath() string {
	if envPath := os.Getenv("ATENDE_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "gateway.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "atende", "gateway.yaml")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: atende-gateway <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve    Start the gateway server")
		fmt.Println("  init     Create a new config file interactively")
		fmt.Println("  health   Check gateway health")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "health":
		err = runHealth(ctx)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config:   %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:     %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	if cfg.Store.Path != "" {
		fmt.Printf("Store:    %s\n", cfg.Store.Path)
	} else {
		fmt.Printf("Store:    in-memory\n")
	}
	green.Print("    ▶ ")
	if cfg.Redis.Addr != "" {
		fmt.Printf("Redis:    %s\n", cfg.Redis.Addr)
	} else {
		fmt.Printf("Redis:    disabled (in-process queue and lock)\n")
	}
	fmt.Println()

	logger.Info("starting atende-gateway",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
	)

	// Persistence.
	var st store.Store
	if cfg.Store.Path != "" {
		st, err = store.NewSQLiteStore(cfg.Store.Path, logger)
		if err != nil {
			return fmt.Errorf("opening store: %w", err)
		}
	} else {
		st = store.NewMemoryStore()
	}
	defer st.Close()

	// Queue and claim lock, shared via Redis when configured.
	var q queue.Queue
	var locker lock.Locker
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connecting to redis at %s: %w", cfg.Redis.Addr, err)
		}
		q = queue.NewRedisQueue(client, cfg.Redis.QueueKey)
		locker = lock.NewRedisLocker(client, "", cfg.Redis.LockTTL)
	} else {
		q = queue.NewMemoryQueue()
		locker = lock.NewMemoryLocker(cfg.Redis.LockTTL)
	}

	broadcaster := events.NewBroadcaster(logger)
	defer broadcaster.Close()

	// Outbound transport. Without a provider URL the bot runs headless,
	// useful for dashboard-only deployments and tests.
	var outbound *transport.FallbackSender
	var rawSender transport.Sender
	if cfg.WhatsApp.BaseURL != "" {
		rawSender = transport.NewHTTPSender(cfg.WhatsApp.BaseURL, cfg.WhatsApp.Session, cfg.WhatsApp.Token)
		outbound = transport.NewFallbackSender(rawSender, logger)
	}

	// Media uploads.
	var uploads *media.Store
	if cfg.Media.Dir != "" {
		uploads = media.NewStore(cfg.Media.Dir, cfg.Media.MaxBytes, logger)
	}

	// Intent detection chain.
	detector := buildDetector(cfg.NLP, logger)

	engine := flow.NewEngine(flow.Config{
		CompanyName:         cfg.Flow.CompanyName,
		BusinessHours:       cfg.Flow.BusinessHours,
		BusinessDays:        cfg.Flow.BusinessDays,
		StoreAddress:        cfg.Flow.StoreAddress,
		StoreLatitude:       cfg.Flow.StoreLatitude,
		StoreLongitude:      cfg.Flow.StoreLongitude,
		PaymentInPerson:     cfg.Flow.PaymentInPerson,
		PaymentOnline:       cfg.Flow.PaymentOnline,
		DeliveryInfo:        cfg.Flow.DeliveryInfo,
		ExchangePolicy:      cfg.Flow.ExchangePolicy,
		ContactInfo:         cfg.Flow.ContactInfo,
		CatalogURL:          cfg.Flow.CatalogURL,
		CityAllowed:         cfg.Flow.CityAllowed,
		OnlineStores:        cfg.Flow.OnlineStores,
		InstagramURL:        cfg.Flow.InstagramURL,
		PIXKey:              cfg.Flow.PIXKey,
		MercadoLivreURL:     cfg.Flow.MercadoLivreURL,
		CatalogCardImage:    cfg.Flow.CatalogCardImage,
		OrderSummaryImage:   cfg.Flow.OrderSummaryImage,
		OrderConfirmedImage: cfg.Flow.OrderConfirmedImage,
		AvgHandleTime:       cfg.Flow.AvgHandleTime,
	}, q, detector, nil, uploads, logger)

	sessions := session.NewManager(st, "")
	operators := operator.NewService(sessions, st, locker, q, broadcaster, logger)

	dd := dedupe.New(cfg.Bot.DedupeTTL, cfg.Bot.DedupeCap)
	defer dd.Close()

	processor := bot.NewProcessor(bot.Config{
		OperatorNumbers: cfg.WhatsApp.OperatorNumbers,
		OperatorGroup:   cfg.WhatsApp.OperatorGroup,
		RateLimit:       cfg.Bot.RateLimit,
		RateWindow:      cfg.Bot.RateWindow,
		FeedbackDelay:   cfg.Bot.FeedbackDelay,
	}, engine, sessions, dd, outbound, broadcaster, operators, logger)

	reaper := session.NewReaper(sessions, q, broadcaster, rawSender,
		cfg.Session.ReapInterval, cfg.Session.Timeout, logger)
	go reaper.Run(ctx)

	server := api.NewServer(cfg.Server.HTTPAddr, api.Deps{
		Sessions:    sessions,
		Store:       st,
		Queue:       q,
		Operators:   operators,
		Broadcaster: broadcaster,
		Processor:   processor,
		Outbound:    outbound,

		AvgHandleTime: cfg.Flow.AvgHandleTime,
	}, logger)

	return server.ListenAndServe(ctx)
}

// buildDetector assembles the intent chain from config. No providers means
// no NLP: free text falls back to re-prompting.
func buildDetector(cfg config.NLPConfig, logger *slog.Logger) nlp.Detector {
	var detectors []nlp.Detector
	var timeout time.Duration
	for i, p := range cfg.Providers {
		switch p.Type {
		case "keyword":
			detectors = append(detectors, nlp.KeywordClassifier{})
		case "http":
			detectors = append(detectors, nlp.NewHTTPProvider(fmt.Sprintf("http-provider-%d", i), p.URL, os.Getenv("NLP_API_KEY")))
			if p.Timeout > timeout {
				timeout = p.Timeout
			}
		}
	}
	if len(detectors) == 0 {
		return nil
	}
	return nlp.NewChain(logger, timeout, detectors...)
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = &colorHandler{
			level: level,
		}
	}

	return slog.New(handler)
}

// colorHandler provides colorized log output with thread-safe writes.
type colorHandler struct {
	mu     sync.Mutex
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var buf strings.Builder

	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05") + " "))

	switch r.Level {
	case slog.LevelDebug:
		buf.WriteString(color.MagentaString("DBG "))
	case slog.LevelInfo:
		buf.WriteString(color.CyanString("INF "))
	case slog.LevelWarn:
		buf.WriteString(color.YellowString("WRN "))
	case slog.LevelError:
		buf.WriteString(color.New(color.FgRed, color.Bold).Sprint("ERR "))
	default:
		buf.WriteString("??? ")
	}

	buf.WriteString(r.Message)

	for _, a := range h.attrs {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
	}

	r.Attrs(func(a slog.Attr) bool {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
		return true
	})

	buf.WriteString("\n")
	fmt.Print(buf.String())
	return nil
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	newAttrs = append(newAttrs, attrs...)
	return &colorHandler{
		level:  h.level,
		attrs:  newAttrs,
		groups: h.groups,
	}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	newGroups := make([]string, len(h.groups), len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups = append(newGroups, name)
	return &colorHandler{
		level:  h.level,
		attrs:  h.attrs,
		groups: newGroups,
	}
}

func runHealth(ctx context.Context) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	url := fmt.Sprintf("http://%s/health", cfg.Server.HTTPAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	fmt.Println("healthy")
	return nil
}

func runInit() error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("atende-gateway configuration setup")
	fmt.Println("==================================")
	fmt.Println()

	defaultConfigPath := getConfigPath()
	outputFile := prompt(reader, "Config file path", defaultConfigPath)

	if _, err := os.Stat(outputFile); err == nil {
		overwrite := prompt(reader, "File exists. Overwrite?", "no")
		if strings.ToLower(overwrite) != "yes" && strings.ToLower(overwrite) != "y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	fmt.Println("\n--- Server Configuration ---")
	httpAddr := prompt(reader, "HTTP address", "localhost:8080")

	fmt.Println("\n--- WhatsApp Provider ---")
	wppURL := prompt(reader, "WPPConnect base URL (empty to run headless)", "http://localhost:21465")
	wppSession := prompt(reader, "WPPConnect session name", "atende")
	operatorGroup := prompt(reader, "Operator group ID (empty to disable forwarding)", "")

	fmt.Println("\n--- Persistence ---")
	dbPath := prompt(reader, "SQLite database path (empty for in-memory)", "./atende.db")
	redisAddr := prompt(reader, "Redis address (empty for in-process queue)", "")

	fmt.Println("\n--- Business ---")
	companyName := prompt(reader, "Company name", "Minha Loja")
	cityAllowed := prompt(reader, "City served for WhatsApp purchases (empty for all)", "")
	pixKey := prompt(reader, "PIX key", "")

	fmt.Println("\n--- Logging Configuration ---")
	logLevel := prompt(reader, "Log level (debug/info/warn/error)", "info")
	logFormat := prompt(reader, "Log format (text/json)", "text")

	var cfg strings.Builder
	cfg.WriteString("# atende-gateway configuration\n")
	cfg.WriteString("# Generated by atende-gateway init\n\n")

	cfg.WriteString("server:\n")
	cfg.WriteString(fmt.Sprintf("  http_addr: %q\n", httpAddr))
	cfg.WriteString("\n")

	cfg.WriteString("whatsapp:\n")
	cfg.WriteString(fmt.Sprintf("  base_url: %q\n", wppURL))
	cfg.WriteString(fmt.Sprintf("  session: %q\n", wppSession))
	cfg.WriteString("  token: \"${WPP_TOKEN}\"\n")
	if operatorGroup != "" {
		cfg.WriteString(fmt.Sprintf("  operator_group: %q\n", operatorGroup))
	}
	cfg.WriteString("\n")

	cfg.WriteString("store:\n")
	cfg.WriteString(fmt.Sprintf("  path: %q\n", dbPath))
	cfg.WriteString("\n")

	if redisAddr != "" {
		cfg.WriteString("redis:\n")
		cfg.WriteString(fmt.Sprintf("  addr: %q\n", redisAddr))
		cfg.WriteString("  lock_ttl: \"30s\"\n")
		cfg.WriteString("\n")
	}

	cfg.WriteString("flow:\n")
	cfg.WriteString(fmt.Sprintf("  company_name: %q\n", companyName))
	if cityAllowed != "" {
		cfg.WriteString(fmt.Sprintf("  city_allowed: %q\n", cityAllowed))
	}
	if pixKey != "" {
		cfg.WriteString(fmt.Sprintf("  pix_key: %q\n", pixKey))
	}
	cfg.WriteString("  avg_handle_time: \"3m\"\n")
	cfg.WriteString("\n")

	cfg.WriteString("nlp:\n")
	cfg.WriteString("  providers:\n")
	cfg.WriteString("    - type: keyword\n")
	cfg.WriteString("\n")

	cfg.WriteString("media:\n")
	cfg.WriteString("  dir: \"./uploads\"\n")
	cfg.WriteString("\n")

	cfg.WriteString("session:\n")
	cfg.WriteString("  timeout: \"30m\"\n")
	cfg.WriteString("  reap_interval: \"5m\"\n")
	cfg.WriteString("\n")

	cfg.WriteString("logging:\n")
	cfg.WriteString(fmt.Sprintf("  level: %q\n", logLevel))
	cfg.WriteString(fmt.Sprintf("  format: %q\n", logFormat))

	configDir := filepath.Dir(outputFile)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(outputFile, []byte(cfg.String()), 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	fmt.Printf("\nConfig written to %s\n", outputFile)
	fmt.Println("\nTo start the server:")
	fmt.Printf("  atende-gateway serve\n")

	return nil
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		fmt.Println()
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}
