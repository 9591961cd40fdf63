package notify

import (
	"context"
	"fmt"

	"listing-watch/utils"
)

// Message is one outbound digest.
type Message struct {
	Subject   string
	HTMLBody  string
	Recipient string
}

// Notifier delivers digests. Delivery is best effort: callers log a
// *DeliveryError and carry on.
type Notifier interface {
	Deliver(ctx context.Context, msg Message) error
}

// DeliveryError wraps a transport failure.
type DeliveryError struct {
	Recipient string
	Err       error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver to %s: %v", e.Recipient, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// LogNotifier writes digests to the log instead of sending them.
type LogNotifier struct {
	logger *utils.Logger
}

func NewLogNotifier(logger *utils.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Deliver(_ context.Context, msg Message) error {
	n.logger.Info("[notify] %s (%d bytes, not sent)", msg.Subject, len(msg.HTMLBody))
	n.logger.Debug("[notify] body:\n%s", msg.HTMLBody)
	return nil
}
