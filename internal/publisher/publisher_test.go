package publisher

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"icc.tech/procbus-agent/internal/codec"
	"icc.tech/procbus-agent/internal/core"
)

// fakeTx decodes every transmitted frame so the tests assert on PDU
// fields rather than raw bytes.
type fakeTx struct {
	mu     sync.Mutex
	frames []core.GooseMessage
}

func (f *fakeTx) Transmit(b []byte) error {
	msg, err := codec.DecodeGooseFrame(b)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, msg)
	return nil
}

func (f *fakeTx) snapshot() []core.GooseMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]core.GooseMessage(nil), f.frames...)
}

func (f *fakeTx) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.frames)
}

func waitForFrames(t *testing.T, tx *fakeTx, n int, timeout time.Duration) []core.GooseMessage {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if tx.count() >= n {
			return tx.snapshot()
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d frames, have %d", n, tx.count())
	return nil
}

func testConfig(ref string) Config {
	return Config{
		Header: core.EthernetHeader{
			DstMAC: [6]byte{0x01, 0x0C, 0xCD, 0x01, 0x00, 0x01},
			SrcMAC: [6]byte{2, 0, 0, 0, 0, 1},
			AppID:  0x1000,
		},
		GoCbRef:       ref,
		GoID:          "gid",
		DatSet:        ref + "$DS",
		ConfRev:       1,
		MinRepetition: 20 * time.Millisecond,
		MaxRepetition: 80 * time.Millisecond,
	}
}

func TestInitSendsImmediatelyThenRetransmits(t *testing.T) {
	tx := &fakeTx{}
	p := New(tx, Options{})
	defer p.Close()

	data := []core.Data{core.Boolean(true), core.Integer(42)}
	require.NoError(t, p.Init(testConfig("IED1/LLN0$GO$a"), data))

	frames := waitForFrames(t, tx, 3, time.Second)
	first := frames[0]
	assert.Equal(t, uint32(1), first.Pdu.StNum)
	assert.Equal(t, uint32(0), first.Pdu.SqNum)
	assert.Equal(t, uint32(2), first.Pdu.NumDatSetEntries)
	assert.Equal(t, core.Boolean(true), first.Pdu.AllData[0])
	// TAL is twice the slowest repetition interval, in milliseconds.
	assert.Equal(t, uint32(160), first.Pdu.TimeAllowedToLive)
	assert.Equal(t, core.EtherTypeGoose, first.Header.EtherType)

	for i, msg := range frames[:3] {
		assert.Equal(t, uint32(1), msg.Pdu.StNum, "frame %d", i)
		assert.Equal(t, uint32(i), msg.Pdu.SqNum, "frame %d", i)
		// The event timestamp is frozen across retransmissions.
		assert.Equal(t, first.Pdu.T, msg.Pdu.T, "frame %d", i)
	}
}

func TestUpdateBumpsStNumAndResetsSqNum(t *testing.T) {
	tx := &fakeTx{}
	p := New(tx, Options{})
	defer p.Close()

	ref := "IED1/LLN0$GO$b"
	require.NoError(t, p.Init(testConfig(ref), []core.Data{core.Boolean(false)}))
	waitForFrames(t, tx, 2, time.Second)

	require.NoError(t, p.Update(ref, []core.Data{core.Boolean(true)}))
	frames := waitForFrames(t, tx, 3, time.Second)

	var updated *core.GooseMessage
	for i := range frames {
		if frames[i].Pdu.StNum == 2 {
			updated = &frames[i]
			break
		}
	}
	require.NotNil(t, updated, "no frame with st_num 2 seen")
	assert.Equal(t, uint32(0), updated.Pdu.SqNum)
	assert.Equal(t, core.Boolean(true), updated.Pdu.AllData[0])
	assert.NotEqual(t, frames[0].Pdu.T, updated.Pdu.T,
		"event timestamp must be refreshed on state change")
}

func TestStopIsRaceFree(t *testing.T) {
	tx := &fakeTx{}
	p := New(tx, Options{})
	defer p.Close()

	ref := "IED1/LLN0$GO$c"
	require.NoError(t, p.Init(testConfig(ref), nil))
	waitForFrames(t, tx, 1, time.Second)

	require.NoError(t, p.Stop(ref))
	n := tx.count()
	time.Sleep(250 * time.Millisecond) // > 3 × MaxRepetition
	assert.Equal(t, n, tx.count(), "frames emitted after Stop returned")

	err := p.Update(ref, nil)
	assert.ErrorIs(t, err, core.ErrUnknownReference)
	err = p.Stop(ref)
	assert.ErrorIs(t, err, core.ErrUnknownReference)
}

func TestIntervalDoublesToCap(t *testing.T) {
	assert.Equal(t, 40*time.Millisecond, nextInterval(20*time.Millisecond, 80*time.Millisecond))
	assert.Equal(t, 80*time.Millisecond, nextInterval(40*time.Millisecond, 80*time.Millisecond))
	assert.Equal(t, 80*time.Millisecond, nextInterval(80*time.Millisecond, 80*time.Millisecond))
	// Odd cap: never overshoot.
	assert.Equal(t, 50*time.Millisecond, nextInterval(30*time.Millisecond, 50*time.Millisecond))
}

func TestPersistStNumAcrossStopInit(t *testing.T) {
	tx := &fakeTx{}
	p := New(tx, Options{PersistStNum: true})
	defer p.Close()

	ref := "IED1/LLN0$GO$d"
	cfg := testConfig(ref)
	require.NoError(t, p.Init(cfg, nil))
	waitForFrames(t, tx, 1, time.Second)
	require.NoError(t, p.Update(ref, nil))
	waitForFrames(t, tx, 2, time.Second)
	require.NoError(t, p.Stop(ref))

	require.NoError(t, p.Init(cfg, nil))
	frames := waitForFrames(t, tx, tx.count()+1, time.Second)
	last := frames[len(frames)-1]
	assert.Equal(t, uint32(3), last.Pdu.StNum, "st_num must resume above the persisted value")
	assert.Equal(t, uint32(0), last.Pdu.SqNum)
}

func TestFreshStNumWithoutPersistence(t *testing.T) {
	tx := &fakeTx{}
	p := New(tx, Options{})
	defer p.Close()

	ref := "IED1/LLN0$GO$e"
	cfg := testConfig(ref)
	require.NoError(t, p.Init(cfg, nil))
	waitForFrames(t, tx, 1, time.Second)
	require.NoError(t, p.Update(ref, nil))
	waitForFrames(t, tx, 2, time.Second)
	require.NoError(t, p.Stop(ref))

	require.NoError(t, p.Init(cfg, nil))
	frames := waitForFrames(t, tx, tx.count()+1, time.Second)
	assert.Equal(t, uint32(1), frames[len(frames)-1].Pdu.StNum)
}

func TestInitValidation(t *testing.T) {
	p := New(&fakeTx{}, Options{})
	defer p.Close()

	cfg := testConfig("IED1/LLN0$GO$f")
	cfg.GoCbRef = ""
	assert.ErrorIs(t, p.Init(cfg, nil), core.ErrConfigInvalid)

	cfg = testConfig("IED1/LLN0$GO$f")
	cfg.MinRepetition = 100 * time.Millisecond
	cfg.MaxRepetition = 50 * time.Millisecond
	assert.ErrorIs(t, p.Init(cfg, nil), core.ErrConfigInvalid)
}

func TestInitDuplicateAndClose(t *testing.T) {
	tx := &fakeTx{}
	p := New(tx, Options{})

	ref := "IED1/LLN0$GO$g"
	require.NoError(t, p.Init(testConfig(ref), nil))
	assert.ErrorIs(t, p.Init(testConfig(ref), nil), core.ErrAlreadyPublished)

	p.Close()
	n := tx.count()
	time.Sleep(250 * time.Millisecond)
	assert.Equal(t, n, tx.count(), "frames emitted after Close")
	assert.ErrorIs(t, p.Init(testConfig(ref), nil), core.ErrPublisherClosed)
}
