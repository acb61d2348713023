package publisher

import (
	"log/slog"
	"math"
	"time"

	"icc.tech/procbus-agent/internal/codec"
	"icc.tech/procbus-agent/internal/core"
	"icc.tech/procbus-agent/internal/metrics"
)

type updateCmd struct {
	data []core.Data
}

type stopCmd struct {
	ack chan struct{}
}

// publication is the per-reference actor. The counters below need no
// lock: only the run goroutine touches them until done is closed.
type publication struct {
	cfg  Config
	tx   Transmitter
	cmds chan any
	done chan struct{}

	stNum uint32
	sqNum uint32
	t     core.Timestamp
	data  []core.Data
}

func newPublication(cfg Config, tx Transmitter, stNum uint32, data []core.Data) *publication {
	return &publication{
		cfg:   cfg,
		tx:    tx,
		cmds:  make(chan any),
		done:  make(chan struct{}),
		stNum: stNum,
		data:  data,
	}
}

// run owns the retransmission timer. A single select loop serializes
// timer fires against commands, so a stale fire can never slip out
// after an update or stop.
func (pb *publication) run() {
	defer close(pb.done)
	metrics.ActivePublications.Inc()
	defer metrics.ActivePublications.Dec()

	pb.t = core.Now()
	pb.send()
	interval := pb.cfg.MinRepetition
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			pb.bumpSqNum()
			pb.send()
			interval = nextInterval(interval, pb.cfg.MaxRepetition)
			timer.Reset(interval)

		case cmd := <-pb.cmds:
			switch c := cmd.(type) {
			case updateCmd:
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				pb.stNum++
				pb.sqNum = 0
				pb.data = c.data
				pb.t = core.Now()
				pb.send()
				interval = pb.cfg.MinRepetition
				timer.Reset(interval)

			case stopCmd:
				close(c.ack)
				return
			}
		}
	}
}

// bumpSqNum increments sq_num, rolling over to 1: zero is reserved
// for the first frame after a state change.
func (pb *publication) bumpSqNum() {
	if pb.sqNum == math.MaxUint32 {
		pb.sqNum = 1
		return
	}
	pb.sqNum++
}

// nextInterval doubles the repetition interval up to the cap.
func nextInterval(cur, max time.Duration) time.Duration {
	if cur >= max/2 {
		return max
	}
	return 2 * cur
}

func (pb *publication) send() {
	pdu := core.GoosePdu{
		GoCbRef:           pb.cfg.GoCbRef,
		TimeAllowedToLive: pb.cfg.timeAllowedToLive(),
		DatSet:            pb.cfg.DatSet,
		GoID:              pb.cfg.GoID,
		T:                 pb.t,
		StNum:             pb.stNum,
		SqNum:             pb.sqNum,
		Simulation:        pb.cfg.Simulation,
		ConfRev:           pb.cfg.ConfRev,
		NdsCom:            pb.cfg.NdsCom,
		NumDatSetEntries:  uint32(len(pb.data)),
		AllData:           pb.data,
	}
	kind := "retransmit"
	if pb.sqNum == 0 {
		kind = "state_change"
	}
	frame, err := codec.EncodeGoose(pb.cfg.Header, &pdu)
	if err != nil {
		slog.Error("goose encode failed",
			"go_cb_ref", pb.cfg.GoCbRef, "st_num", pb.stNum, "error", err)
		metrics.PublishErrorsTotal.WithLabelValues(pb.cfg.GoCbRef, "encode").Inc()
		return
	}
	if err := pb.tx.Transmit(frame); err != nil {
		slog.Error("goose transmit failed",
			"go_cb_ref", pb.cfg.GoCbRef, "st_num", pb.stNum, "sq_num", pb.sqNum, "error", err)
		metrics.PublishErrorsTotal.WithLabelValues(pb.cfg.GoCbRef, "transmit").Inc()
		return
	}
	slog.Debug("goose frame sent",
		"go_cb_ref", pb.cfg.GoCbRef, "st_num", pb.stNum, "sq_num", pb.sqNum, "kind", kind)
	metrics.GooseTransmitsTotal.WithLabelValues(pb.cfg.GoCbRef, kind).Inc()
}
