// Package notify is the boundary to the message-delivery layer. Every call is
// fire-and-forget: delivery is not guaranteed and no acknowledgment is awaited,
// which is why callers (e.g. machine bring-down) treat notified agents as gone
// immediately instead of waiting for them to acknowledge.
package notify

import (
	log "github.com/sirupsen/logrus"
)

type Notifier interface {
	// ShutdownAgent tells an agent to terminate all of its executors.
	ShutdownAgent(agentID string, message string)

	// RescindOffer tells a framework that a previously issued offer has been
	// withdrawn.
	RescindOffer(frameworkID string, offerID string)

	// LostAgent tells a framework that an agent hosting its tasks is gone.
	LostAgent(frameworkID string, agentID string)
}

// LogNotifier logs each notification instead of delivering it; the real
// delivery channel is owned by the transport layer.
type LogNotifier struct{}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) ShutdownAgent(agentID string, message string) {
	log.WithField("agent", agentID).Infof("shutdown notice: %s", message)
}

func (n *LogNotifier) RescindOffer(frameworkID string, offerID string) {
	log.WithFields(log.Fields{"framework": frameworkID, "offer": offerID}).Info("offer rescinded")
}

func (n *LogNotifier) LostAgent(frameworkID string, agentID string) {
	log.WithFields(log.Fields{"framework": frameworkID, "agent": agentID}).Info("agent lost")
}
