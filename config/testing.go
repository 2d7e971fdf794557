package config

import (
	"github.com/creasty/defaults"
)

const testConfig = `
MongoDB:
    ConnectionString: null
    AuthenticationMechanism: null
    SocketTimeout: 5s
    TLS:
        Enable: false
        VerifyCertificate: false
        CAFile: null
    Database: WIREWATCH-TEST
Storage:
    Driver: memory
    WriteTimeout: 1s
LogConfig:
    LogLevel: 3
    LogPath: null
    LogToFile: false
    LogToDB: false
Capture:
    Interface: lo
    SnapshotLength: 1600
    Promiscuous: false
    ReadTimeout: 100ms
    StatsInterval: 1s
API:
    Address: 127.0.0.1:0
    RecentLimit: 100
    TopIPLimit: 10
GeoIP:
    Enabled: false
    Timeout: 1s
`

// LoadTestingConfig loads the hard coded testing config. If mongoURI is not
// empty the config is switched to the mongodb driver.
func LoadTestingConfig(mongoURI string) (*Config, error) {
	config := &Config{}

	// Initialize table config to the default values
	if err := defaults.Set(&config.T); err != nil {
		return nil, err
	}

	// Initialize static config to the default values
	if err := defaults.Set(&config.S); err != nil {
		return nil, err
	}

	// Deserialize the yaml file contents into the static config
	if err := parseStaticConfig([]byte(testConfig), &config.S); err != nil {
		return nil, err
	}

	if mongoURI != "" {
		config.S.MongoDB.ConnectionString = mongoURI
		config.S.Storage.Driver = "mongodb"
	}

	config.S.Version = "v0.0.0+testing"

	// Use the static config to initialize the running config
	if err := initRunningConfig(&config.S, &config.R); err != nil {
		return nil, err
	}

	return config, nil
}
