// Package monitor reads ESC telemetry frames, logs state changes and faults
// and exports the decoded status as Prometheus metrics.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"gobldc/core"
	"gobldc/protocol"
)

// PollInterval bounds how long Run waits for a frame before checking ctx
const PollInterval = 250 * time.Millisecond

var ErrUnknownMessage = errors.New("unknown message")

// Monitor decodes frames from one link
type Monitor struct {
	link    *protocol.HostTransport
	metrics *Metrics

	mu       sync.Mutex
	last     core.Status
	haveLast bool
	statuses uint64
	events   uint64
}

// New starts reading frames from port. metrics may be nil.
func New(port io.ReadCloser, metrics *Metrics) *Monitor {
	m := &Monitor{
		link:    protocol.NewHostTransport(port),
		metrics: metrics,
	}
	if metrics != nil {
		metrics.RegisterLink(m.link.Stats)
	}
	return m
}

// Run handles frames until ctx is done or the link closes. A closed link
// is a normal end of input.
func (m *Monitor) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		msg, err := m.link.ReceiveFrame(PollInterval)
		switch {
		case errors.Is(err, protocol.ErrFrameTimeout):
			continue
		case errors.Is(err, protocol.ErrTransportClosed):
			return nil
		case err != nil:
			return err
		}

		if err := m.Handle(msg); err != nil {
			log.WithError(err).Warn("dropping frame")
		}
	}
}

// Handle decodes one frame
func (m *Monitor) Handle(msg *protocol.MessageBlock) error {
	id, data, err := msg.MessageID()
	if err != nil {
		return fmt.Errorf("message id: %w", err)
	}

	switch id {
	case protocol.MsgStatus:
		st, err := core.DecodeStatus(data)
		if err != nil {
			return err
		}
		m.handleStatus(&st)
	case protocol.MsgEvent:
		evt, err := core.DecodeEvent(data)
		if err != nil {
			return fmt.Errorf("event: %w", err)
		}
		m.handleEvent(&evt)
	default:
		return fmt.Errorf("%w %d", ErrUnknownMessage, id)
	}
	return nil
}

func (m *Monitor) handleStatus(st *core.Status) {
	m.mu.Lock()
	prev, havePrev := m.last, m.haveLast
	m.last, m.haveLast = *st, true
	m.statuses++
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.Observe(st)
	}

	fields := log.Fields{
		"seq":    st.Seq,
		"state":  st.State.String(),
		"speed":  st.Speed,
		"period": st.Period,
		"vbatt":  st.Battery,
		"error":  st.TimingError,
	}
	log.WithFields(fields).Debug("status")

	if !havePrev || prev.State != st.State {
		log.WithFields(fields).Info("state change")
	}
	if raised := st.Faults &^ prev.Faults; raised != 0 {
		for id := core.FaultID(1); id < core.MaxFaults; id++ {
			if raised.Has(id) {
				log.WithFields(fields).WithField("fault", id.String()).Warn("fault latched")
			}
		}
	}
	if havePrev && st.Seq != prev.Seq+1 {
		log.WithFields(log.Fields{"seq": st.Seq, "prev": prev.Seq}).Debug("status sequence gap")
	}
}

func (m *Monitor) handleEvent(evt *core.Event) {
	m.mu.Lock()
	m.events++
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.ObserveEvent(evt)
	}
	log.WithFields(log.Fields{
		"type":  evt.Name(),
		"arg":   evt.Arg,
		"clock": evt.Clock,
		"v1":    evt.Value1,
		"v2":    evt.Value2,
	}).Info("event")
}

// Last returns the most recent status and whether one has been received
func (m *Monitor) Last() (core.Status, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.last, m.haveLast
}

// Counts returns the number of status and event frames handled
func (m *Monitor) Counts() (statuses, events uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.statuses, m.events
}

// Stats returns the link decoder counters
func (m *Monitor) Stats() protocol.DecoderStats {
	return m.link.Stats()
}

// Close stops the link
func (m *Monitor) Close() error {
	return m.link.Close()
}

// Serve exposes the metrics handler on addr until ctx is done
func Serve(ctx context.Context, addr, path string, metrics *Metrics) error {
	mux := http.NewServeMux()
	mux.Handle(path, metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()
	log.WithField("addr", addr).Info("serving metrics")

	select {
	case err := <-errc:
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
