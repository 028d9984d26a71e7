// Package notify shows a best-effort local desktop toast when a mission
// reaches a terminal state. It is Windows-only and a no-op everywhere else,
// matching the underlying toast library's own platform restriction.
package notify

import (
	"fmt"
	"runtime"

	"github.com/go-toast/toast"

	"github.com/cuemby/aegis/internal/events"
	"github.com/cuemby/aegis/internal/log"
)

// Notifier pushes a Windows toast notification for mission completion,
// failure, and cancellation events.
type Notifier struct {
	appID        string
	dashboardURL string

	bus    *events.Bus
	sub    *events.Subscription
	stopCh chan struct{}
	doneCh chan struct{}
}

// New creates a Notifier. dashboardURL is used as the toast's "open" action
// target; pass "" to default to the local control plane.
func New(appID, dashboardURL string, bus *events.Bus) *Notifier {
	if appID == "" {
		appID = "Aegis"
	}
	if dashboardURL == "" {
		dashboardURL = "http://localhost:8080"
	}
	return &Notifier{
		appID:        appID,
		dashboardURL: dashboardURL,
		bus:          bus,
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}
}

// IsSupported reports whether toast notifications can be shown on this
// platform.
func (n *Notifier) IsSupported() bool {
	return runtime.GOOS == "windows"
}

// Start subscribes to mission terminal events and begins showing toasts.
func (n *Notifier) Start() {
	n.sub = n.bus.Subscribe(events.GlobalTarget, []events.Type{
		events.MissionCompleted, events.MissionFailed, events.MissionCancelled,
	})
	go n.run()
}

// Stop unsubscribes from the bus.
func (n *Notifier) Stop() {
	close(n.stopCh)
	<-n.doneCh
	n.bus.Unsubscribe(n.sub)
}

func (n *Notifier) run() {
	defer close(n.doneCh)
	logger := log.WithComponent("notify")
	for {
		select {
		case <-n.stopCh:
			return
		case evt, ok := <-n.sub.Ch:
			if !ok {
				return
			}
			if err := n.notify(evt); err != nil {
				logger.Debug().Err(err).Str("mission_id", evt.MissionID).Msg("toast not shown")
			}
		}
	}
}

func (n *Notifier) notify(evt events.Event) error {
	title, message := titleAndMessage(evt)
	return n.push(title, message)
}

func titleAndMessage(evt events.Event) (string, string) {
	switch p := evt.Payload.(type) {
	case events.MissionCompletedPayload:
		return "Mission completed", fmt.Sprintf("mission %s finished in %dms", evt.MissionID, p.DurationMs)
	case events.MissionFailedPayload:
		return "Mission failed", fmt.Sprintf("mission %s failed: %s", evt.MissionID, p.Reason)
	case events.MissionCancelledPayload:
		return "Mission cancelled", fmt.Sprintf("mission %s cancelled: %s", evt.MissionID, p.Reason)
	default:
		return "Mission update", evt.MissionID
	}
}

// push shows the toast itself. Only reachable on Windows; elsewhere it
// returns an error the caller logs at debug level rather than treating as a
// failure.
func (n *Notifier) push(title, message string) error {
	if runtime.GOOS != "windows" {
		return fmt.Errorf("toast notifications only supported on windows")
	}

	notification := toast.Notification{
		AppID:   n.appID,
		Title:   title,
		Message: message,
		Audio:   toast.Default,
		Actions: []toast.Action{
			{Type: "protocol", Label: "Open Dashboard", Arguments: n.dashboardURL},
		},
	}
	return notification.Push()
}
