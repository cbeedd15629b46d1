package main

import (
	"context"
	"os"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/propbox/internal/logic"
	"github.com/sweeney/propbox/internal/mqtt"
	"github.com/sweeney/propbox/internal/status"
)

// loop polls module states and mirrors them to the board and MQTT.
type loop struct {
	game       *game
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	board      *status.Board
	logger     *zap.Logger
	heartbeat  time.Duration
	session    string
	now        func() time.Time

	watcher *logic.Watcher
}

func (l *loop) samples() []logic.Sample {
	out := make([]logic.Sample, len(l.game.modules))
	for i, m := range l.game.modules {
		out[i] = logic.Sample{Module: m.Name(), State: m.State().String()}
	}
	return out
}

// baseline registers every module on the board with its current state.
func (l *loop) baseline() {
	l.watcher = logic.NewWatcher(l.now())
	samples := l.samples()
	l.watcher.Process(l.now(), samples)
	for _, s := range samples {
		l.board.Upsert(s.Module, s.State, l.game.describe[s.Module])
	}
	l.refresh()
}

func (l *loop) refresh() {
	if l.game.attrs != nil {
		for _, a := range l.game.attrs() {
			l.board.Upsert(a.Name, a.Value, a.Desc)
		}
	}
	if l.mqttStatus != nil {
		l.board.SetMQTTConnected(l.mqttStatus.IsConnected())
	}
}

// run polls on every tick until a signal arrives or ctx is cancelled.
// Either way every module is destroyed and SHUTDOWN is published.
func (l *loop) run(ctx context.Context, tick <-chan time.Time, sig <-chan os.Signal) error {
	if l.watcher == nil {
		l.baseline()
	}

	for {
		select {
		case s := <-sig:
			l.logger.Info("received signal, shutting down", zap.Stringer("signal", s))
			l.shutdown(signalName(s))
			return nil

		case <-ctx.Done():
			l.logger.Info("context done, shutting down")
			l.shutdown("CONTEXT")
			return nil

		case <-tick:
			l.poll(l.now())
		}
	}
}

func (l *loop) poll(t time.Time) {
	for _, e := range l.watcher.Process(t, l.samples()) {
		l.logger.Info("module state changed", zap.String("module", e.Module), zap.String("from", e.From), zap.String("to", e.To))
		l.board.Upsert(e.Module, e.To, l.game.describe[e.Module])

		event := mqtt.StateEvent{Timestamp: e.Timestamp, Module: e.Module, From: e.From, To: e.To, Session: l.session}
		if err := l.publisher.Publish(event); err != nil {
			// Don't crash on publish failure
			l.logger.Warn("publish error", zap.Error(err))
		}
	}
	l.refresh()

	if hb := l.watcher.CheckHeartbeat(t, l.heartbeat); hb != nil {
		l.logger.Info("heartbeat",
			zap.Duration("uptime", hb.Uptime),
			zap.Int("transitions", hb.Counts.Transitions),
			zap.Int("passed", hb.Counts.Passed),
			zap.Int("failed", hb.Counts.Failed),
		)
		snap := l.board.Snapshot()
		event := mqtt.SystemEvent{
			Timestamp:  hb.Timestamp,
			Event:      "HEARTBEAT",
			RawPayload: status.FormatStatusEvent(snap, "HEARTBEAT", ""),
		}
		if err := l.publisher.PublishSystem(event); err != nil {
			l.logger.Warn("heartbeat publish error", zap.Error(err))
		}
	}
}

// shutdown destroys the root and waits for its worker to exit before
// destroying the children, since a root Step in progress may still start them.
func (l *loop) shutdown(reason string) {
	if root := l.game.root; root != nil {
		root.Destroy()
		<-root.Stopped()
	}
	for _, m := range l.game.modules {
		m.Destroy()
	}

	l.refresh()
	snap := l.board.Snapshot()
	event := mqtt.SystemEvent{
		Timestamp:  l.now(),
		Event:      "SHUTDOWN",
		Reason:     reason,
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "SHUTDOWN", reason),
	}
	if err := l.publisher.PublishSystem(event); err != nil {
		l.logger.Warn("failed to publish shutdown event", zap.Error(err))
	} else {
		l.logger.Info("published shutdown event")
	}
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	default:
		return "UNKNOWN"
	}
}
