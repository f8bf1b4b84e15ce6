package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the immutable process configuration, loaded once at startup and
// passed into component constructors.
type Config struct {
	Environment string
	Server      ServerConfig
	Database    DatabaseConfig
	Line        LineConfig
	Storage     StorageConfig
}

type ServerConfig struct {
	Port int
}

type DatabaseConfig struct {
	Path string
}

type LineConfig struct {
	ChannelSecret      string
	ChannelAccessToken string
	ContentAPIBaseURL  string
}

type StorageConfig struct {
	Type       string
	LocalDir   string
	SharePoint SharePointConfig
}

type SharePointConfig struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	DriveID      string
	Folder       string
}

func Load() (Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("linevault_env", "")
	v.SetDefault("app_env", "")
	v.SetDefault("go_env", "")
	v.SetDefault("linevault_port", 8080)
	v.SetDefault("linevault_db_path", "data/linevault")
	v.SetDefault("line_channel_secret", "")
	v.SetDefault("line_channel_access_token", "")
	v.SetDefault("line_content_api_url", "")
	v.SetDefault("storage_type", "local")
	v.SetDefault("linevault_storage_dir", "storage")
	v.SetDefault("sharepoint_tenant_id", "")
	v.SetDefault("sharepoint_client_id", "")
	v.SetDefault("sharepoint_client_secret", "")
	v.SetDefault("sharepoint_drive_id", "")
	v.SetDefault("sharepoint_folder", "LineVaultData")

	env := resolveEnvironment(v)
	port := v.GetInt("linevault_port")
	if port <= 0 || port > 65535 {
		return Config{}, fmt.Errorf("invalid LINEVAULT_PORT: %d", port)
	}

	cfg := Config{
		Environment: env,
		Server:      ServerConfig{Port: port},
		Database: DatabaseConfig{
			Path: strings.TrimSpace(v.GetString("linevault_db_path")),
		},
		Line: LineConfig{
			ChannelSecret:      strings.TrimSpace(v.GetString("line_channel_secret")),
			ChannelAccessToken: strings.TrimSpace(v.GetString("line_channel_access_token")),
			ContentAPIBaseURL:  strings.TrimSpace(v.GetString("line_content_api_url")),
		},
		Storage: StorageConfig{
			Type:     strings.ToLower(strings.TrimSpace(v.GetString("storage_type"))),
			LocalDir: strings.TrimSpace(v.GetString("linevault_storage_dir")),
			SharePoint: SharePointConfig{
				TenantID:     strings.TrimSpace(v.GetString("sharepoint_tenant_id")),
				ClientID:     strings.TrimSpace(v.GetString("sharepoint_client_id")),
				ClientSecret: strings.TrimSpace(v.GetString("sharepoint_client_secret")),
				DriveID:      strings.TrimSpace(v.GetString("sharepoint_drive_id")),
				Folder:       strings.TrimSpace(v.GetString("sharepoint_folder")),
			},
		},
	}

	if cfg.Database.Path == "" {
		cfg.Database.Path = "data/linevault"
	}

	switch cfg.Storage.Type {
	case "", "local":
		cfg.Storage.Type = "local"
	case "sharepoint":
		sp := cfg.Storage.SharePoint
		if sp.TenantID == "" || sp.ClientID == "" || sp.ClientSecret == "" || sp.DriveID == "" {
			return Config{}, fmt.Errorf("STORAGE_TYPE=sharepoint requires SHAREPOINT_TENANT_ID, SHAREPOINT_CLIENT_ID, SHAREPOINT_CLIENT_SECRET and SHAREPOINT_DRIVE_ID")
		}
	default:
		return Config{}, fmt.Errorf("invalid STORAGE_TYPE: %s", cfg.Storage.Type)
	}

	if !cfg.IsLocalDevelopment() {
		if cfg.Line.ChannelSecret == "" {
			return Config{}, fmt.Errorf("LINE_CHANNEL_SECRET is required outside local/dev environments")
		}
		if cfg.Line.ChannelAccessToken == "" {
			return Config{}, fmt.Errorf("LINE_CHANNEL_ACCESS_TOKEN is required outside local/dev environments")
		}
	}
	if cfg.IsLocalDevelopment() && cfg.Line.ChannelSecret == "" {
		cfg.Line.ChannelSecret = "linevault-local-dev"
	}

	return cfg, nil
}

func (c Config) IsLocalDevelopment() bool {
	switch strings.ToLower(strings.TrimSpace(c.Environment)) {
	case "", "local", "dev", "development", "test":
		return true
	default:
		return false
	}
}

func resolveEnvironment(v *viper.Viper) string {
	for _, key := range []string{"linevault_env", "app_env", "go_env"} {
		value := strings.TrimSpace(v.GetString(key))
		if value != "" {
			return strings.ToLower(value)
		}
	}
	return ""
}
