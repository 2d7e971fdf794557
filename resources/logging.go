package resources

import (
	"os"
	"path"
	"time"

	"github.com/activecm/mgorus"
	"github.com/netprobe/wirewatch/config"
	"github.com/netprobe/wirewatch/database"
	"github.com/netprobe/wirewatch/util"
	"github.com/rifflock/lfshook"
	log "github.com/sirupsen/logrus"
)

// initLogger creates the logger for logging to stderr
func initLogger(logConfig *config.LogStaticCfg) *log.Logger {
	var logs = &log.Logger{}

	logs.Formatter = &log.TextFormatter{FullTimestamp: true}

	logs.Out = os.Stderr
	logs.Hooks = make(log.LevelHooks)

	switch logConfig.LogLevel {
	case 3:
		logs.Level = log.DebugLevel
	case 2:
		logs.Level = log.InfoLevel
	case 1:
		logs.Level = log.WarnLevel
	default:
		logs.Level = log.ErrorLevel
	}
	return logs
}

// addFileLogger writes each level to its own file under a directory named
// after the start time
func addFileLogger(logger *log.Logger, logPath string) error {
	time := time.Now().Format(util.TimeFormat)
	logPath = path.Join(logPath, time)
	if !util.Exists(logPath) {
		if err := os.MkdirAll(logPath, 0755); err != nil {
			return err
		}
	}

	logger.Hooks.Add(lfshook.NewHook(lfshook.PathMap{
		log.DebugLevel: path.Join(logPath, "debug.log"),
		log.InfoLevel:  path.Join(logPath, "info.log"),
		log.WarnLevel:  path.Join(logPath, "warn.log"),
		log.ErrorLevel: path.Join(logPath, "error.log"),
		log.FatalLevel: path.Join(logPath, "fatal.log"),
		log.PanicLevel: path.Join(logPath, "panic.log"),
	}, nil))
	return nil
}

// addMongoLogger copies log entries into a collection of the selected database
func addMongoLogger(logger *log.Logger, db *database.DB, collection string) error {
	if err := db.CreateCollection(collection, nil); err != nil {
		return err
	}
	logger.Hooks.Add(
		mgorus.NewHookerFromSession(
			db.Session, db.GetSelectedDB(), collection,
		),
	)
	return nil
}
