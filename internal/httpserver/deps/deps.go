package deps

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/llmhub/llmhub/internal/discovery"
	"github.com/llmhub/llmhub/internal/gateway"
	"github.com/llmhub/llmhub/internal/logger"
	"github.com/llmhub/llmhub/internal/maintenance"
	"github.com/llmhub/llmhub/internal/recovery"
	"github.com/llmhub/llmhub/internal/registry"
	"github.com/llmhub/llmhub/internal/resource"
	"github.com/llmhub/llmhub/internal/tools"
	"github.com/llmhub/llmhub/internal/translate"
	"github.com/llmhub/llmhub/internal/upstream"
)

// Deps carries everything route registrars may need. The bridge and
// gateway binaries share one route registry; registrars whose
// dependencies are nil skip registration, so each binary only mounts
// the routes it can serve.
type Deps struct {
	Logger    logger.Logger
	StartTime time.Time
	Version   string
	TimeNow   func() time.Time // for testing, defaults to time.Now
	Metrics   *prometheus.Registry

	// Bridge side. Nil on the gateway binary.
	Upstream    *upstream.Client
	Models      *registry.ModelRegistry
	Discovery   *discovery.Poller
	Resource    *resource.Monitor
	Maintenance *maintenance.Monitor
	Recovery    *recovery.Manager
	Translator  *translate.Translator
	Catalog     *tools.Catalog

	// Gateway side. Nil on the bridge binary.
	Services   *gateway.ServiceRegistry
	Aggregator *gateway.Aggregator
}
