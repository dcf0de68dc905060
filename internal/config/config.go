package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/IamAkshayKaushik/DirectDrop/internal/chunker"
	"github.com/joho/godotenv"
)

// Config holds DirectDrop configuration. Fields are unexported to prevent modification.
type Config struct {
	relayURL           string
	publicOrigin       string
	chunkSize          int
	compress           bool
	watch              bool
	downloadDir        string
	logFile            string
	stunServerAddr     string
	listenPort         string
	serviceName        string
	serviceDisplayName string
	serviceDescription string
}

func New() *Config {
	_ = godotenv.Load() // ignore error if .env not found

	relayURL := os.Getenv("DIRECTDROP_RELAY_URL")
	if relayURL == "" {
		relayURL = "http://localhost:8080"
	}

	publicOrigin := os.Getenv("DIRECTDROP_PUBLIC_ORIGIN")
	if publicOrigin == "" {
		publicOrigin = relayURL
	}

	chunkSize, err := strconv.Atoi(os.Getenv("DIRECTDROP_CHUNK_SIZE"))
	if err != nil || chunkSize <= 0 {
		chunkSize = chunker.DefaultChunkSize
	}

	downloadDir := os.Getenv("DIRECTDROP_DOWNLOAD_DIR")
	if downloadDir == "" {
		downloadDir = "."
	}

	logFile := os.Getenv("DIRECTDROP_LOG_FILE")
	if logFile == "" {
		logFile = filepath.Join(os.TempDir(), "directdrop.log")
	}

	stunServer := os.Getenv("DIRECTDROP_STUN_SERVER")
	if stunServer == "" {
		stunServer = "stun.l.google.com:19302"
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	serviceName := os.Getenv("SERVICE_NAME")
	if serviceName == "" {
		serviceName = "DirectDropRelay"
	}

	serviceDisplayName := os.Getenv("SERVICE_DISPLAY_NAME")
	if serviceDisplayName == "" {
		serviceDisplayName = "DirectDrop Relay"
	}

	serviceDescription := os.Getenv("SERVICE_DESCRIPTION")
	if serviceDescription == "" {
		serviceDescription = "Pairs DirectDrop peers by connection id and forwards their transfer frames"
	}

	return &Config{
		relayURL:           relayURL,
		publicOrigin:       publicOrigin,
		chunkSize:          chunkSize,
		compress:           parseBool(os.Getenv("DIRECTDROP_COMPRESS")),
		watch:              parseBool(os.Getenv("DIRECTDROP_WATCH")),
		downloadDir:        downloadDir,
		logFile:            logFile,
		stunServerAddr:     stunServer,
		listenPort:         port,
		serviceName:        serviceName,
		serviceDisplayName: serviceDisplayName,
		serviceDescription: serviceDescription,
	}
}

func parseBool(v string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	return err == nil && b
}

// Getter methods (immutable from outside)

func (c *Config) RelayURL() string {
	return c.relayURL
}

func (c *Config) PublicOrigin() string {
	return c.publicOrigin
}

func (c *Config) ChunkSize() int {
	return c.chunkSize
}

func (c *Config) Compress() bool {
	return c.compress
}

func (c *Config) Watch() bool {
	return c.watch
}

func (c *Config) DownloadDir() string {
	return c.downloadDir
}

func (c *Config) LogFile() string {
	return c.logFile
}

func (c *Config) StunServerAddr() string {
	return c.stunServerAddr
}

func (c *Config) ListenPort() string {
	return c.listenPort
}

func (c *Config) ServiceName() string {
	return c.serviceName
}

func (c *Config) ServiceDisplayName() string {
	return c.serviceDisplayName
}

func (c *Config) ServiceDescription() string {
	return c.serviceDescription
}

// Overrides applied from CLI flags. Empty/zero values keep the current setting.

func (c *Config) WithRelayURL(url string) *Config {
	if url != "" {
		c.relayURL = url
	}
	return c
}

func (c *Config) WithDownloadDir(dir string) *Config {
	if dir != "" {
		c.downloadDir = dir
	}
	return c
}

func (c *Config) WithCompress(on bool) *Config {
	c.compress = c.compress || on
	return c
}

func (c *Config) WithWatch(on bool) *Config {
	c.watch = c.watch || on
	return c
}

func (c *Config) WithListenPort(port string) *Config {
	if port != "" {
		c.listenPort = port
	}
	return c
}
