package config

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"reflect"
	"time"

	yaml "gopkg.in/yaml.v2"
)

type (
	//StaticCfg is the container for other static config sections
	StaticCfg struct {
		MongoDB MongoDBStaticCfg `yaml:"MongoDB"`
		Storage StorageStaticCfg `yaml:"Storage"`
		Log     LogStaticCfg     `yaml:"LogConfig"`
		Capture CaptureStaticCfg `yaml:"Capture"`
		API     APIStaticCfg     `yaml:"API"`
		GeoIP   GeoIPStaticCfg   `yaml:"GeoIP"`
		Version string           `yaml:"-"`
	}

	//MongoDBStaticCfg contains the means for connecting to MongoDB
	MongoDBStaticCfg struct {
		ConnectionString string        `yaml:"ConnectionString" default:"mongodb://localhost:27017"`
		AuthMechanism    string        `yaml:"AuthenticationMechanism"`
		SocketTimeout    time.Duration `yaml:"SocketTimeout" default:"10s"`
		TLS              TLSStaticCfg  `yaml:"TLS"`
		Database         string        `yaml:"Database" default:"network_packets"`
	}

	//TLSStaticCfg contains the means for connecting to MongoDB over TLS
	TLSStaticCfg struct {
		Enabled           bool   `yaml:"Enable"`
		VerifyCertificate bool   `yaml:"VerifyCertificate"`
		CAFile            string `yaml:"CAFile"`
	}

	//StorageStaticCfg selects the backend the packet store is written to
	StorageStaticCfg struct {
		Driver          string        `yaml:"Driver" default:"mongodb"`
		SQLitePath      string        `yaml:"SQLitePath" default:"wirewatch.db"`
		MySQLDataSource string        `yaml:"MySQLDataSource"`
		WriteTimeout    time.Duration `yaml:"WriteTimeout" default:"5s"`
		Retention       time.Duration `yaml:"Retention"`
		PurgeSchedule   string        `yaml:"PurgeSchedule" default:"@every 1h"`
	}

	//LogStaticCfg contains the configuration for logging
	LogStaticCfg struct {
		LogLevel  int    `yaml:"LogLevel" default:"2"`
		LogPath   string `yaml:"LogPath" default:"/var/lib/wirewatch/logs"`
		LogToFile bool   `yaml:"LogToFile"`
		LogToDB   bool   `yaml:"LogToDB"`
	}

	//CaptureStaticCfg controls the live packet capture
	CaptureStaticCfg struct {
		Interface      string        `yaml:"Interface" default:"any"`
		SnapshotLength int32         `yaml:"SnapshotLength" default:"65536"`
		Promiscuous    bool          `yaml:"Promiscuous" default:"true"`
		BPFFilter      string        `yaml:"BPFFilter"`
		ReadTimeout    time.Duration `yaml:"ReadTimeout" default:"500ms"`
		StatsInterval  time.Duration `yaml:"StatsInterval" default:"1m"`
	}

	//APIStaticCfg controls the read-only query server
	APIStaticCfg struct {
		Address     string `yaml:"Address" default:"0.0.0.0:5000"`
		RecentLimit int    `yaml:"RecentLimit" default:"100"`
		TopIPLimit  int    `yaml:"TopIPLimit" default:"10"`
	}

	//GeoIPStaticCfg contains the details for contacting the geolocation service
	GeoIPStaticCfg struct {
		Enabled bool          `yaml:"Enabled" default:"true"`
		URL     string        `yaml:"URL" default:"http://ip-api.com/json/"`
		Timeout time.Duration `yaml:"Timeout" default:"3s"`
	}
)

// loadStaticConfig overlays the yaml file at cfgPath onto config
func loadStaticConfig(cfgPath string, config *StaticCfg) error {
	_, err := os.Stat(cfgPath)
	if os.IsNotExist(err) {
		// run with the defaults
		expandConfig(reflect.ValueOf(config).Elem())
		return nil
	}

	cfgFile, err := ioutil.ReadFile(cfgPath)
	if err != nil {
		return err
	}

	return parseStaticConfig(cfgFile, config)
}

// parseStaticConfig deserializes yaml data into config and expands
// environment variables found in its strings
func parseStaticConfig(cfgFile []byte, config *StaticCfg) error {
	err := yaml.Unmarshal(cfgFile, config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read config: %s\n", err.Error())
		return err
	}

	// expand env variables, config is a pointer
	// so we have to call elem on the reflect value
	expandConfig(reflect.ValueOf(config).Elem())

	// clean all filepaths
	if config.Log.LogPath != "" {
		config.Log.LogPath = filepath.Clean(config.Log.LogPath)
	}
	if config.Storage.SQLitePath != "" && config.Storage.SQLitePath != ":memory:" {
		config.Storage.SQLitePath = filepath.Clean(config.Storage.SQLitePath)
	}

	return nil
}
