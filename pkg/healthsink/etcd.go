package healthsink

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/NCarlsonMSFT/service-fabric-observer/pkg/report"
)

// EtcdSinkOptions configures the etcd-backed health sink.
type EtcdSinkOptions struct {
	Endpoints   []string
	DialTimeout time.Duration
	Namespace   string
	Prefix      string
	TLS         *tls.Config
	Clock       func() time.Time
}

// EtcdSink persists health entries in etcd. Each entry lives under
// <prefix>/<target key>/<source>/<property>, so writes are last-write-wins
// per (entity, source, property). Entries with RemoveWhenExpired are bound
// to a lease sized to the entry TTL and disappear from the health view on
// expiry without further action from the reporter.
type EtcdSink struct {
	client *clientv3.Client
	prefix string
	now    func() time.Time
}

// Record is a health entry read back from the store.
type Record struct {
	Target      string
	SourceID    string
	Property    string
	State       report.State
	Description string
	ReportedAt  time.Time
}

type entryPayload struct {
	Target      string `json:"target"`
	Source      string `json:"source"`
	Property    string `json:"property"`
	State       string `json:"state"`
	Description string `json:"description,omitempty"`
	Immediate   bool   `json:"immediate,omitempty"`
	ReportedAt  string `json:"reported_at"`
}

// NewEtcdSink constructs a health sink backed by etcd.
func NewEtcdSink(opts EtcdSinkOptions) (*EtcdSink, error) {
	if len(opts.Endpoints) == 0 {
		return nil, errors.New("health sink requires at least one etcd endpoint")
	}
	trimmedPrefix := strings.TrimSpace(opts.Prefix)
	if trimmedPrefix == "" {
		trimmedPrefix = "cluster_health"
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	dialTimeout := opts.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 5 * time.Second
	}

	cfg := clientv3.Config{
		Endpoints:           opts.Endpoints,
		DialTimeout:         dialTimeout,
		TLS:                 opts.TLS,
		RejectOldCluster:    true,
		PermitWithoutStream: true,
	}

	client, err := clientv3.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("create etcd client: %w", err)
	}

	normalizedPrefix := strings.TrimRight(applyNamespace(opts.Namespace, trimmedPrefix), "/")

	return &EtcdSink{
		client: client,
		prefix: normalizedPrefix,
		now:    clock,
	}, nil
}

// Close releases underlying client resources.
func (s *EtcdSink) Close() error {
	if s == nil {
		return nil
	}
	return s.client.Close()
}

// ReportHealth implements Sink.
func (s *EtcdSink) ReportHealth(ctx context.Context, target report.Target, entry Entry) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if target == nil {
		return errors.New("health sink requires a target")
	}

	payload := entryPayload{
		Target:      target.Key(),
		Source:      entry.SourceID,
		Property:    entry.Property,
		State:       string(entry.State),
		Description: entry.Description,
		Immediate:   entry.SendImmediately,
		ReportedAt:  s.now().UTC().Format(time.RFC3339Nano),
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	ctx = clientv3.WithRequireLeader(ctx)

	var putOpts []clientv3.OpOption
	if entry.RemoveWhenExpired && entry.TTL > 0 {
		lease, err := s.client.Grant(ctx, leaseSeconds(entry.TTL))
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			return fmt.Errorf("grant health entry lease: %w", err)
		}
		putOpts = append(putOpts, clientv3.WithLease(lease.ID))
	}

	_, err = s.client.Put(ctx, s.entryKey(target, entry), string(encoded), putOpts...)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return fmt.Errorf("store health entry: %w", err)
	}
	return nil
}

// Status returns the live health records under the sink prefix. Expired
// entries have already been removed by their leases and do not appear.
func (s *EtcdSink) Status(ctx context.Context) ([]Record, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	ctx = clientv3.WithRequireLeader(ctx)
	prefix := s.prefix
	if prefix == "" {
		prefix = "/"
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	resp, err := s.client.Get(ctx, prefix, clientv3.WithPrefix())
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("list health entries: %w", err)
	}

	records := make([]Record, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var payload entryPayload
		if err := json.Unmarshal(kv.Value, &payload); err != nil {
			return nil, fmt.Errorf("parse health entry payload: %w", err)
		}
		reportedAt, err := time.Parse(time.RFC3339Nano, payload.ReportedAt)
		if err != nil {
			return nil, fmt.Errorf("parse health entry timestamp: %w", err)
		}
		records = append(records, Record{
			Target:      payload.Target,
			SourceID:    payload.Source,
			Property:    payload.Property,
			State:       report.State(payload.State),
			Description: payload.Description,
			ReportedAt:  reportedAt,
		})
	}

	return records, nil
}

func (s *EtcdSink) entryKey(target report.Target, entry Entry) string {
	return path.Join(s.prefix, target.Key(), url.PathEscape(entry.SourceID), url.PathEscape(entry.Property))
}

// leaseSeconds rounds the TTL up to whole seconds; etcd leases cannot be
// shorter than one second.
func leaseSeconds(ttl time.Duration) int64 {
	seconds := int64(ttl / time.Second)
	if ttl%time.Second > 0 {
		seconds++
	}
	if seconds < 1 {
		seconds = 1
	}
	return seconds
}

func applyNamespace(namespace, key string) string {
	normalizedKey := "/" + strings.TrimLeft(key, "/")
	trimmedNamespace := strings.Trim(namespace, "/")
	if trimmedNamespace == "" {
		return normalizedKey
	}
	return "/" + trimmedNamespace + normalizedKey
}

var _ Sink = (*EtcdSink)(nil)
