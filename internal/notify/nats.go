// nats.go publishes run reports and daemon heartbeats over NATS.
//
// Authentication uses an NKey seed: the daemon signs the server nonce
// with the seed's private key, so no password ever crosses the wire.
// Run reports go to <prefix>.runs.<job>, heartbeats to
// <prefix>.heartbeat.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nkeys"
)

// NATSConfig holds connection settings for the NATS notifier.
type NATSConfig struct {
	Servers       string // comma-separated server URLs
	NKeySeed      string // seed for NKey auth (starts with SU)
	SubjectPrefix string // e.g. "cronrun"
	Host          string // this host's name, included in heartbeats
}

// NATSNotifier publishes run reports and heartbeats.
type NATSNotifier struct {
	config NATSConfig
	nc     *nats.Conn
	logger *slog.Logger
}

// heartbeat is the periodic liveness document.
type heartbeat struct {
	Host      string `json:"host"`
	Version   string `json:"version"`
	Timestamp string `json:"timestamp"`
}

// NewNATSNotifier connects to NATS with NKey authentication. The
// connection reconnects indefinitely on its own; publishes during an
// outage buffer up to the client's reconnect buffer.
func NewNATSNotifier(cfg NATSConfig, logger *slog.Logger) (*NATSNotifier, error) {
	kp, err := nkeys.FromSeed([]byte(cfg.NKeySeed))
	if err != nil {
		return nil, fmt.Errorf("invalid nkey seed: %w", err)
	}
	pubKey, err := kp.PublicKey()
	if err != nil {
		return nil, fmt.Errorf("failed to get public key: %w", err)
	}

	log := logger.With(slog.String("component", "nats"))

	opts := []nats.Option{
		nats.Name("cronrun-" + cfg.Host),
		nats.Nkey(pubKey, func(nonce []byte) ([]byte, error) {
			return kp.Sign(nonce)
		}),
		nats.ReconnectWait(time.Second),
		nats.MaxReconnects(-1),
		nats.PingInterval(30 * time.Second),
		nats.MaxPingsOutstanding(3),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				log.Warn("NATS disconnected", slog.String("error", err.Error()))
			} else {
				log.Info("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS reconnected", slog.String("server", nc.ConnectedUrl()))
		}),
	}

	nc, err := nats.Connect(cfg.Servers, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	log.Info("NATS connected", slog.String("server", nc.ConnectedUrl()))

	return &NATSNotifier{
		config: cfg,
		nc:     nc,
		logger: log,
	}, nil
}

// NotifyRun publishes the report to <prefix>.runs.<job>.
func (n *NATSNotifier) NotifyRun(ctx context.Context, report *Report) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	subject := fmt.Sprintf("%s.runs.%s", n.config.SubjectPrefix, report.Job)
	if err := n.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}

	n.logger.Debug("run report published",
		slog.String("subject", subject),
		slog.String("job", report.Job),
	)
	return nil
}

// StartHeartbeat publishes a liveness message every interval until the
// context is cancelled. Runs in its own goroutine.
func (n *NATSNotifier) StartHeartbeat(ctx context.Context, interval time.Duration, version string) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		subject := n.config.SubjectPrefix + ".heartbeat"
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				hb := heartbeat{
					Host:      n.config.Host,
					Version:   version,
					Timestamp: time.Now().UTC().Format(time.RFC3339),
				}
				data, err := json.Marshal(hb)
				if err != nil {
					continue
				}
				if err := n.nc.Publish(subject, data); err != nil {
					n.logger.Warn("heartbeat publish failed",
						slog.String("error", err.Error()),
					)
				}
			}
		}
	}()
}

// Shutdown drains the connection so buffered reports flush before exit.
func (n *NATSNotifier) Shutdown(ctx context.Context) error {
	if n.nc == nil {
		return nil
	}
	if err := n.nc.Drain(); err != nil {
		return err
	}
	n.logger.Info("NATS connection drained")
	return nil
}
