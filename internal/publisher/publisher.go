// Package publisher implements the GOOSE publication side: one
// retransmission state machine per control block reference, driven by
// init/update/stop commands. Commands for the same reference are
// serialized through the reference's actor goroutine, so no frame is
// ever emitted with a stale state number.
package publisher

import (
	"fmt"
	"sync"
	"time"

	"icc.tech/procbus-agent/internal/core"
)

// Transmitter puts an encoded frame on the wire. Implementations must
// be safe for concurrent use; every publication goroutine calls it.
type Transmitter interface {
	Transmit(frame []byte) error
}

// Config describes one GOOSE publication.
type Config struct {
	// Header supplies destination MAC, source MAC, VLAN tag and APPID.
	// EtherType and the length field are owned by the encoder.
	Header core.EthernetHeader

	GoCbRef    string
	GoID       string
	DatSet     string
	ConfRev    uint32
	NdsCom     bool
	Simulation bool

	// MinRepetition is the delay after a state change before the first
	// repeat; the interval then doubles until it reaches MaxRepetition.
	MinRepetition time.Duration
	MaxRepetition time.Duration
}

func (c *Config) validate() error {
	if c.GoCbRef == "" {
		return fmt.Errorf("%w: empty go_cb_ref", core.ErrConfigInvalid)
	}
	if c.MinRepetition <= 0 || c.MaxRepetition < c.MinRepetition {
		return fmt.Errorf("%w: repetition window %v..%v", core.ErrConfigInvalid,
			c.MinRepetition, c.MaxRepetition)
	}
	return nil
}

// timeAllowedToLive is twice the slowest repetition interval, in
// milliseconds, so subscribers survive a single lost repeat.
func (c *Config) timeAllowedToLive() uint32 {
	return uint32(2 * c.MaxRepetition.Milliseconds())
}

// Options configure a Publisher.
type Options struct {
	// PersistStNum carries st_num across stop/init cycles of the same
	// reference: a re-initialized publication resumes above its last
	// state number instead of restarting at 1.
	PersistStNum bool
}

// Publisher owns the set of active publications.
type Publisher struct {
	tx   Transmitter
	opts Options

	mu        sync.Mutex
	pubs      map[string]*publication
	lastStNum map[string]uint32
	closed    bool
}

// New creates a Publisher that emits frames through tx.
func New(tx Transmitter, opts Options) *Publisher {
	return &Publisher{
		tx:        tx,
		opts:      opts,
		pubs:      make(map[string]*publication),
		lastStNum: make(map[string]uint32),
	}
}

// Init starts a publication: the first frame (sq_num 0) is sent
// immediately and the retransmission timer armed at MinRepetition.
func (p *Publisher) Init(cfg Config, data []core.Data) error {
	if err := cfg.validate(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return core.ErrPublisherClosed
	}
	if _, ok := p.pubs[cfg.GoCbRef]; ok {
		return fmt.Errorf("%w: %s", core.ErrAlreadyPublished, cfg.GoCbRef)
	}
	stNum := uint32(1)
	if p.opts.PersistStNum {
		if last := p.lastStNum[cfg.GoCbRef]; last > 0 {
			stNum = last + 1
		}
	}
	pb := newPublication(cfg, p.tx, stNum, data)
	p.pubs[cfg.GoCbRef] = pb
	go pb.run()
	return nil
}

// Update publishes a new data set state: st_num increments, sq_num
// resets to zero, the frame goes out immediately and the interval
// falls back to MinRepetition.
func (p *Publisher) Update(goCbRef string, data []core.Data) error {
	p.mu.Lock()
	pb, ok := p.pubs[goCbRef]
	p.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", core.ErrUnknownReference, goCbRef)
	}
	select {
	case pb.cmds <- updateCmd{data: data}:
		return nil
	case <-pb.done:
		return fmt.Errorf("%w: %s", core.ErrUnknownReference, goCbRef)
	}
}

// Stop halts a publication. When Stop returns, no further frame for
// the reference will be transmitted.
func (p *Publisher) Stop(goCbRef string) error {
	p.mu.Lock()
	pb, ok := p.pubs[goCbRef]
	if ok {
		delete(p.pubs, goCbRef)
	}
	p.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", core.ErrUnknownReference, goCbRef)
	}
	ack := make(chan struct{})
	select {
	case pb.cmds <- stopCmd{ack: ack}:
		<-ack
	case <-pb.done:
	}
	p.mu.Lock()
	p.lastStNum[goCbRef] = pb.stNum
	p.mu.Unlock()
	return nil
}

// Active returns the references currently publishing.
func (p *Publisher) Active() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	refs := make([]string, 0, len(p.pubs))
	for ref := range p.pubs {
		refs = append(refs, ref)
	}
	return refs
}

// Close stops every publication and rejects further Init calls.
func (p *Publisher) Close() {
	p.mu.Lock()
	p.closed = true
	pubs := p.pubs
	p.pubs = make(map[string]*publication)
	p.mu.Unlock()
	for ref, pb := range pubs {
		ack := make(chan struct{})
		select {
		case pb.cmds <- stopCmd{ack: ack}:
			<-ack
		case <-pb.done:
		}
		p.mu.Lock()
		p.lastStNum[ref] = pb.stNum
		p.mu.Unlock()
	}
}
