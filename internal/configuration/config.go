package configuration

import (
	"encoding/json"
	"os"
)

type MongoConfig struct {
	Uri                string `json:"uri"`
	Database           string `json:"database"`
	MessagesCollection string `json:"messagesCollection"`
	UsersCollection    string `json:"usersCollection"`
	SocketRoute        string `json:"socketRoute"`
}

type ServerConfig struct {
	AppPort        int      `json:"app_port"`
	SocketPort     int      `json:"socket_port"`
	AllowedOrigins []string `json:"allowed_origins"`
}

type UploadConfig struct {
	Path string `json:"path"`
}

type Config struct {
	ChatDatabase MongoConfig  `json:"mongo"`
	Server       ServerConfig `json:"server"`
	Upload       UploadConfig `json:"upload"`
}

// LoadConfig reads a JSON config file. The MERCURY_CONFIG environment
// variable overrides the given path.
func LoadConfig(config_path string) (*Config, error) {
	if env := os.Getenv("MERCURY_CONFIG"); env != "" {
		config_path = env
	}

	file, err := os.ReadFile(config_path)
	if err != nil {
		return nil, err
	}

	var config Config
	err = json.Unmarshal(file, &config)
	if err != nil {
		return nil, err
	}

	if config.ChatDatabase.SocketRoute == "" {
		config.ChatDatabase.SocketRoute = "ws"
	}
	if config.Upload.Path == "" {
		config.Upload.Path = "./uploads"
	}

	return &config, nil
}
