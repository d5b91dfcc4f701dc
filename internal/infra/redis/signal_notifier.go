package redis

import (
	"context"
	"encoding/json"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/hostscout/api/internal/scanner"
	"github.com/hostscout/api/pkg/domain/shared"
	"github.com/hostscout/api/pkg/logger"
)

// ScanSignalChannel is the Redis pub/sub channel carrying pause and
// cancel requests from the API process to whichever worker runs the
// job.
const ScanSignalChannel = "hostscout:scans:signal"

// ScanSignal is one pause or cancel request for a running scan job.
type ScanSignal struct {
	JobID  string `json:"job_id"`
	Signal string `json:"signal"`
}

// SignalNotifier delivers scan interrupts across processes. The API
// side publishes; the worker side listens and raises the flag on its
// interrupt hub.
type SignalNotifier struct {
	client *Client
	logger *logger.Logger
}

// NewSignalNotifier creates a SignalNotifier.
func NewSignalNotifier(client *Client, log *logger.Logger) *SignalNotifier {
	return &SignalNotifier{
		client: client,
		logger: log.With("component", "signal_notifier"),
	}
}

// PublishPause requests a pause of the job.
func (n *SignalNotifier) PublishPause(ctx context.Context, jobID shared.ID) error {
	return n.publish(ctx, jobID, scanner.SignalPause)
}

// PublishCancel requests cancellation of the job.
func (n *SignalNotifier) PublishCancel(ctx context.Context, jobID shared.ID) error {
	return n.publish(ctx, jobID, scanner.SignalCancel)
}

func (n *SignalNotifier) publish(ctx context.Context, jobID shared.ID, sig scanner.Signal) error {
	data, err := json.Marshal(ScanSignal{JobID: jobID.String(), Signal: sig.String()})
	if err != nil {
		return fmt.Errorf("failed to marshal scan signal: %w", err)
	}
	if err := n.client.Client().Publish(ctx, ScanSignalChannel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish scan signal: %w", err)
	}
	n.logger.Debug("published scan signal", "job_id", jobID.String(), "signal", sig.String())
	return nil
}

// StartListener subscribes to the signal channel and forwards signals
// to the hub. Signals for jobs this process does not run are ignored;
// the worker that owns the job sees the same message.
func (n *SignalNotifier) StartListener(ctx context.Context, hub *scanner.InterruptHub) error {
	pubsub := n.client.Client().Subscribe(ctx, ScanSignalChannel)

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to scan signals: %w", err)
	}

	n.logger.Info("listening for scan signals", "channel", ScanSignalChannel)
	go n.listenLoop(ctx, pubsub, hub)
	return nil
}

func (n *SignalNotifier) listenLoop(ctx context.Context, pubsub *goredis.PubSub, hub *scanner.InterruptHub) {
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			n.logger.Info("scan signal listener stopping")
			return

		case msg, ok := <-ch:
			if !ok {
				n.logger.Warn("scan signal channel closed")
				return
			}

			var sig ScanSignal
			if err := json.Unmarshal([]byte(msg.Payload), &sig); err != nil {
				n.logger.Error("failed to unmarshal scan signal",
					"payload", msg.Payload, "error", err)
				continue
			}

			jobID, err := shared.IDFromString(sig.JobID)
			if err != nil {
				n.logger.Error("scan signal carries invalid job id", "job_id", sig.JobID)
				continue
			}

			var value scanner.Signal
			switch sig.Signal {
			case "pause":
				value = scanner.SignalPause
			case "cancel":
				value = scanner.SignalCancel
			default:
				n.logger.Error("unknown scan signal", "signal", sig.Signal)
				continue
			}

			if hub.Signal(jobID, value) {
				n.logger.Info("delivered scan signal",
					"job_id", sig.JobID, "signal", sig.Signal)
			}
		}
	}
}
