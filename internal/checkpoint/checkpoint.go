// Package checkpoint is an offline verifier station. It keeps a set of
// trusted root certificates and admits passes whose chain ends at one of
// them.
package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"entrypass/go-core/internal/certificate"
	"entrypass/go-core/internal/pass"
	"entrypass/go-core/internal/platform/ratelimiter"
	"entrypass/go-core/internal/protocol"
)

type Result string

const (
	ResultAdmitted    Result = "admitted"
	ResultRejected    Result = "rejected"
	ResultUntrusted   Result = "untrusted"
	ResultThrottled   Result = "throttled"
	ResultRootTrusted Result = "root_trusted"
)

const (
	EventPassAdmit = "pass.admit"
	EventRootTrust = "root.trust"
)

var (
	ErrNotRoot            = errors.New("certificate has a parent")
	ErrRootInvalid        = errors.New("root certificate is invalid")
	ErrNotAMessage        = errors.New("data is not an entrypass message")
	ErrUnsupportedMessage = errors.New("message type is not handled by the checkpoint")
)

type AuditEvent struct {
	ID        string    `json:"id"`
	EventType string    `json:"event_type"`
	Issuer    string    `json:"issuer,omitempty"`
	Root      string    `json:"root,omitempty"`
	Result    Result    `json:"result"`
	Reason    string    `json:"reason,omitempty"`
	At        time.Time `json:"at"`
}

func (e AuditEvent) Admitted() bool { return e.Result == ResultAdmitted }

type Options struct {
	Logger  *slog.Logger
	Limiter *ratelimiter.Keyed
	Metrics *Metrics
	Now     func() time.Time
	// Audit receives every event after it is logged.
	Audit func(AuditEvent)
}

// Checkpoint is safe for concurrent use.
type Checkpoint struct {
	logger  *slog.Logger
	limiter *ratelimiter.Keyed
	metrics *Metrics
	now     func() time.Time
	audit   func(AuditEvent)

	mu    sync.RWMutex
	roots map[string]*certificate.Certificate
}

func New(opts Options) *Checkpoint {
	c := &Checkpoint{
		logger:  opts.Logger,
		limiter: opts.Limiter,
		metrics: opts.Metrics,
		now:     opts.Now,
		audit:   opts.Audit,
		roots:   map[string]*certificate.Certificate{},
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// TrustRoot adds a parentless certificate that is currently valid and signed
// by its own key. It returns the certificate fingerprint.
func (c *Checkpoint) TrustRoot(root *certificate.Certificate) (string, error) {
	ev, err := c.trustRoot(root)
	return ev.Root, err
}

func (c *Checkpoint) trustRoot(root *certificate.Certificate) (AuditEvent, error) {
	if root == nil {
		return AuditEvent{}, fmt.Errorf("%w: nil certificate", ErrRootInvalid)
	}
	if root.Parent != nil {
		return AuditEvent{}, ErrNotRoot
	}
	if res := root.VerifyAt(c.now()); !res.Success {
		return AuditEvent{}, fmt.Errorf("%w: %s", ErrRootInvalid, res.Reason)
	}
	fp, err := root.Fingerprint()
	if err != nil {
		return AuditEvent{}, fmt.Errorf("%w: %v", ErrRootInvalid, err)
	}

	c.mu.Lock()
	c.roots[fp] = root
	n := len(c.roots)
	c.mu.Unlock()

	c.metrics.setTrustedRoots(n)
	if key, err := root.Key(); err == nil {
		c.logger.Debug("root key", "root", fp, slog.Any("key", key))
	}
	return c.emit(AuditEvent{EventType: EventRootTrust, Root: fp, Result: ResultRootTrusted, Reason: root.Name}), nil
}

// TrustedRoots lists the fingerprints of trusted roots in lexical order.
func (c *Checkpoint) TrustedRoots() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.roots))
	for fp := range c.roots {
		out = append(out, fp)
	}
	sort.Strings(out)
	return out
}

func (c *Checkpoint) isTrusted(fp string, root *certificate.Certificate) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	known, ok := c.roots[fp]
	return ok && certificate.Equivalent(known, root)
}

// Admit decides whether p grants entry now. The issuer's rate bucket is only
// charged once the pass has verified and its chain ends at a trusted root, so
// forged passes cannot drain the quota of a genuine issuer.
func (c *Checkpoint) Admit(p *pass.Pass) AuditEvent {
	ev := AuditEvent{EventType: EventPassAdmit}
	if p == nil || p.Certificate == nil {
		ev.Result, ev.Reason = ResultRejected, "pass has no issuer certificate"
		return c.emit(ev)
	}
	issuer, err := p.Certificate.Fingerprint()
	if err != nil {
		ev.Result, ev.Reason = ResultRejected, err.Error()
		return c.emit(ev)
	}
	ev.Issuer = issuer

	now := c.now()
	started := time.Now()
	res := p.VerifyAt(now)
	c.metrics.observeVerify(time.Since(started).Seconds())
	if !res.Success {
		ev.Result, ev.Reason = ResultRejected, res.Reason
		return c.emit(ev)
	}

	root := p.Certificate.Root()
	if root == nil {
		ev.Result, ev.Reason = ResultRejected, "certificate chain has no root"
		return c.emit(ev)
	}
	if ev.Root, err = root.Fingerprint(); err != nil {
		ev.Result, ev.Reason = ResultRejected, err.Error()
		return c.emit(ev)
	}
	if !c.isTrusted(ev.Root, root) {
		ev.Result, ev.Reason = ResultUntrusted, fmt.Sprintf("root certificate '%s' is not trusted", root.Name)
		return c.emit(ev)
	}

	allowed := c.limiter.Allow(issuer, now)
	c.metrics.setTrackedIssuers(c.limiter.Tracked())
	if !allowed {
		ev.Result, ev.Reason = ResultThrottled, "issuer rate limit exceeded"
		return c.emit(ev)
	}
	ev.Result, ev.Reason = ResultAdmitted, res.Reason
	c.logger.Debug("pass holder", slog.Any("holder", p.Info), "issuer", issuer)
	return c.emit(ev)
}

// HandleMessage processes one scanned frame. Root trust requests register the
// root; shown passes go through Admit.
func (c *Checkpoint) HandleMessage(raw []byte) (AuditEvent, error) {
	msg, ok, err := protocol.Decode(raw)
	if err != nil {
		return AuditEvent{}, err
	}
	if !ok {
		return AuditEvent{}, ErrNotAMessage
	}
	switch msg.Type {
	case protocol.RequestRootTrust:
		return c.trustRoot(msg.Certificate)
	case protocol.PassShow:
		return c.Admit(msg.Pass), nil
	default:
		return AuditEvent{}, fmt.Errorf("%w: %s", ErrUnsupportedMessage, msg.Type)
	}
}

func (c *Checkpoint) emit(ev AuditEvent) AuditEvent {
	ev.ID = uuid.NewString()
	ev.At = c.now().UTC()
	if ev.EventType == EventPassAdmit {
		c.metrics.observeDecision(ev.Result)
	}
	level := slog.LevelInfo
	if ev.Result != ResultAdmitted && ev.Result != ResultRootTrusted {
		level = slog.LevelWarn
	}
	c.logger.Log(context.Background(), level, "checkpoint decision",
		"event_id", ev.ID,
		"event_type", ev.EventType,
		"result", string(ev.Result),
		"issuer", ev.Issuer,
		"root", ev.Root,
		"reason", ev.Reason,
	)
	if c.audit != nil {
		c.audit(ev)
	}
	return ev
}
