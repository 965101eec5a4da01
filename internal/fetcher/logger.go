package fetcher

import (
	"github.com/wb-go/wbf/zlog"
)

// zlogAdapter routes retryablehttp logs into zlog.
type zlogAdapter struct{}

func (zlogAdapter) Error(msg string, kv ...interface{}) {
	zlog.Logger.Error().Fields(kv).Msg(msg)
}

func (zlogAdapter) Warn(msg string, kv ...interface{}) {
	zlog.Logger.Warn().Fields(kv).Msg(msg)
}

func (zlogAdapter) Info(msg string, kv ...interface{}) {
	zlog.Logger.Debug().Fields(kv).Msg(msg)
}

func (zlogAdapter) Debug(msg string, kv ...interface{}) {
	zlog.Logger.Debug().Fields(kv).Msg(msg)
}
