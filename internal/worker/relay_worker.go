package worker

import (
	"github.com/deskflow/helpdesk-service/internal/service"
)

// StartEventRelay registers the Redis stream relay handlers.
func StartEventRelay(relay *service.StreamRelay) {
	if relay == nil {
		return
	}
	relay.RegisterHandlers()
}
