package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/okian/shaker/pkg/logger"
)

// badgerLogger routes storage engine messages into the service logger.
type badgerLogger struct {
	log logger.Logger
}

func (b badgerLogger) Errorf(format string, args ...any) {
	b.log.Error(context.Background(), msg(format, args))
}

func (b badgerLogger) Warningf(format string, args ...any) {
	b.log.Warn(context.Background(), msg(format, args))
}

func (b badgerLogger) Infof(format string, args ...any) {
	b.log.Debug(context.Background(), msg(format, args))
}

func (b badgerLogger) Debugf(format string, args ...any) {
	b.log.Debug(context.Background(), msg(format, args))
}

func msg(format string, args []any) string {
	return strings.TrimSpace(fmt.Sprintf(format, args...))
}
