package debug

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/devops"
	"go.uber.org/zap"

	"github.com/dyike/StockQA/config"
	"github.com/dyike/StockQA/pkg/logger"
)

// devopsInit is swapped in tests.
var devopsInit = func(ctx context.Context, port int) error {
	return devops.Init(ctx, devops.WithDevServerPort(fmt.Sprint(port)))
}

type EinoDebugger struct {
	config *config.Config
	logger *zap.SugaredLogger
}

func NewEinoDebugger(cfg *config.Config, l *zap.SugaredLogger) *EinoDebugger {
	return &EinoDebugger{
		config: cfg,
		logger: logger.Nop(l),
	}
}

// Initialize starts the Eino visual debug server when EINO_DEBUG_ENABLED is set.
func (d *EinoDebugger) Initialize(ctx context.Context) error {
	if !d.config.EinoDebugEnabled {
		return nil
	}

	if d.config.Debug {
		d.logger.Infof("[EinoDebug] Initializing Eino visual debug plugin on port %d", d.config.EinoDebugPort)
	}

	if err := devopsInit(ctx, d.config.EinoDebugPort); err != nil {
		return fmt.Errorf("failed to initialize Eino debug plugin: %w", err)
	}

	d.logger.Infof("[EinoDebug] Debug server at %s", d.GetDebugURL())
	return nil
}

func (d *EinoDebugger) IsEnabled() bool {
	return d.config.EinoDebugEnabled
}

func (d *EinoDebugger) GetDebugURL() string {
	if !d.config.EinoDebugEnabled {
		return ""
	}
	return fmt.Sprintf("http://localhost:%d", d.config.EinoDebugPort)
}
