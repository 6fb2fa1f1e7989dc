package winevent

import (
	"github.com/anacrolix/log"
	"github.com/jonboulle/clockwork"
)

// WaiterConfig holds the settings shared by the wait calls of a Waiter.
type WaiterConfig struct {
	// Timeouts are measured against this clock. It must be monotonic, which the real clock is.
	Clock  clockwork.Clock
	Logger log.Logger
	// Optional.
	Metrics *Metrics
}

func NewDefaultWaiterConfig() *WaiterConfig {
	return &WaiterConfig{
		Clock:  clockwork.NewRealClock(),
		Logger: log.Default.WithNames("winevent"),
	}
}

// Fills unset fields from the defaults.
func (cfg *WaiterConfig) setDefaults() {
	def := NewDefaultWaiterConfig()
	if cfg.Clock == nil {
		cfg.Clock = def.Clock
	}
	if cfg.Logger.IsZero() {
		cfg.Logger = def.Logger
	}
}
