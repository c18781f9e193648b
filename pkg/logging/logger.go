package logging

import (
	"encoding/json"

	"github.com/Gobusters/ectologger"
	"go.uber.org/zap"
)

// NewLogger builds the application logger: an ectologger whose sink writes
// structured messages through zap.
func NewLogger(appName string, pretty bool) (ectologger.Logger, func(), error) {
	var zl *zap.Logger
	var err error
	if pretty {
		zl, err = zap.NewDevelopment()
	} else {
		zl, err = zap.NewProduction()
	}
	if err != nil {
		return nil, nil, err
	}
	zl = zl.Named(appName)

	sink := zl.Sugar()
	logger := ectologger.NewEctoLogger(func(msg ectologger.EctoLogMessage) {
		data, err := json.Marshal(msg)
		if err != nil {
			sink.Infow("log message", "app", appName)
			return
		}
		sink.Info(string(data))
	})

	flush := func() {
		_ = zl.Sync()
	}
	return logger, flush, nil
}
