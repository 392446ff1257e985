package notify

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/repairdesk/repair-desk/internal/observability"
)

// TargetKind labels who a delivery is for.
type TargetKind string

const (
	TargetStaffBroadcast TargetKind = "staff_broadcast"
	TargetTechnician     TargetKind = "technician"
	TargetCustomer       TargetKind = "customer"
	TargetAdmin          TargetKind = "admin"
)

var errNoRecipient = errors.New("no recipient chat")

// Delivery is one message addressed to one chat.
type Delivery struct {
	Target  TargetKind
	ChatID  string
	Message Message
}

// Failure records a delivery that did not go through.
type Failure struct {
	Target TargetKind
	ChatID string
	Err    error
}

// Report summarises a dispatch.
type Report struct {
	Attempted int
	Failures  []Failure
}

// Degraded reports whether any delivery failed.
func (r Report) Degraded() bool {
	return len(r.Failures) > 0
}

// Merge folds other into r.
func (r *Report) Merge(other Report) {
	r.Attempted += other.Attempted
	r.Failures = append(r.Failures, other.Failures...)
}

// Dispatcher fans out deliveries. Each delivery gets one attempt; failures are logged and
// reported, never returned.
type Dispatcher struct {
	transport Transport
	logger    *zap.Logger
	metrics   *observability.Metrics
	timeout   time.Duration
}

// NewDispatcher wires a dispatcher; timeout <= 0 leaves sends bounded only by ctx.
func NewDispatcher(transport Transport, logger *zap.Logger, metrics *observability.Metrics, timeout time.Duration) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		transport: transport,
		logger:    logger.Named("notify"),
		metrics:   metrics,
		timeout:   timeout,
	}
}

// Dispatch attempts every delivery in order.
func (d *Dispatcher) Dispatch(ctx context.Context, deliveries ...Delivery) Report {
	var report Report
	for _, delivery := range deliveries {
		report.Attempted++
		err := d.send(ctx, delivery)
		d.metrics.RecordNotification(string(delivery.Target), err == nil)
		if err == nil {
			continue
		}
		d.logger.Warn("notification failed",
			zap.String("target", string(delivery.Target)),
			zap.String("chat_id", delivery.ChatID),
			zap.Error(err))
		report.Failures = append(report.Failures, Failure{Target: delivery.Target, ChatID: delivery.ChatID, Err: err})
	}
	return report
}

func (d *Dispatcher) send(ctx context.Context, delivery Delivery) (err error) {
	if delivery.ChatID == "" {
		return errNoRecipient
	}
	if d.transport == nil {
		return errors.New("no transport configured")
	}
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("transport panicked", zap.Any("panic", r))
			err = errors.New("transport panicked")
		}
	}()
	return d.transport.Send(ctx, delivery.ChatID, delivery.Message)
}
