package codec

import (
	"bytes"
	"errors"
	"testing"

	"icc.tech/procbus-agent/internal/core"
)

func u16ptr(v uint16) *uint16 { return &v }

// sampleAsdu builds an ASDU in the 9-2 LE shape: 8 samples, global
// sync, rate 4000.
func sampleAsdu(svID string, cnt uint16) core.SavAsdu {
	samples := make([]core.Sample, 8)
	for i := range samples {
		samples[i] = core.Sample{
			Value:   int32(i*1000 - 4000),
			Quality: core.Quality{Validity: core.ValidityGood},
		}
	}
	samples[3].Quality = core.Quality{Validity: core.ValidityQuestionable, OldData: true}
	return core.SavAsdu{
		SvID:     svID,
		SmpCnt:   cnt,
		ConfRev:  1,
		SmpSynch: core.SmpSynchGlobal,
		SmpRate:  u16ptr(4000),
		Samples:  samples,
	}
}

func TestSMVRoundTripMinimal(t *testing.T) {
	h := core.EthernetHeader{
		DstMAC: [6]byte{0x01, 0x0C, 0xCD, 0x04, 0x00, 0x01},
		SrcMAC: [6]byte{2, 0, 0, 0, 0, 9},
		AppID:  0x4000,
	}
	pdu := core.SavPdu{
		NoAsdu: 1,
		Asdus:  []core.SavAsdu{sampleAsdu("MU01", 42)},
	}
	frame, err := EncodeSMV(h, &pdu)
	if err != nil {
		t.Fatalf("EncodeSMV failed: %v", err)
	}
	msg, err := DecodeSMVFrame(frame)
	if err != nil {
		t.Fatalf("DecodeSMVFrame failed: %v", err)
	}
	if msg.Header.EtherType != core.EtherTypeSMV {
		t.Errorf("EtherType = 0x%04x", msg.Header.EtherType)
	}
	if msg.Pdu.Simulation {
		t.Error("simulation flag set on plain frame")
	}
	got := msg.Pdu.Asdus[0]
	if got.SvID != "MU01" || got.SmpCnt != 42 || got.ConfRev != 1 {
		t.Errorf("ASDU fields: %+v", got)
	}
	if got.DatSet != nil || got.RefrTm != nil || got.SmpMod != nil || got.GmIdentity != nil {
		t.Errorf("absent optionals came back: %+v", got)
	}
	if got.SmpRate == nil || *got.SmpRate != 4000 {
		t.Errorf("SmpRate = %v", got.SmpRate)
	}
	if len(got.Samples) != 8 {
		t.Fatalf("sample count = %d", len(got.Samples))
	}
	if got.Samples[0].Value != -4000 || !got.Samples[0].Quality.IsGood() {
		t.Errorf("sample 0 = %+v", got.Samples[0])
	}
	if !got.Samples[3].Quality.OldData || got.Samples[3].Quality.Validity != core.ValidityQuestionable {
		t.Errorf("sample 3 quality = %+v", got.Samples[3].Quality)
	}
}

func TestSMVRoundTripAllOptionals(t *testing.T) {
	ds := "MU01/LLN0$DS1"
	refr := core.Timestamp{Seconds: 1700000000, Fraction: 0x400000,
		Quality: core.TimeQuality{LeapSecondsKnown: true, Accuracy: 10}}
	a := sampleAsdu("MU01", 7)
	a.DatSet = &ds
	a.RefrTm = &refr
	a.SmpMod = u16ptr(1)
	a.GmIdentity = &[8]byte{1, 2, 3, 4, 5, 6, 7, 8}

	pdu := core.SavPdu{
		Simulation: true,
		NoAsdu:     1,
		Security:   []byte{0xCA, 0xFE},
		Asdus:      []core.SavAsdu{a},
	}
	frame, err := EncodeSMV(core.EthernetHeader{HasVLAN: true, TCI: 0x8002, AppID: 0x4001}, &pdu)
	if err != nil {
		t.Fatal(err)
	}
	msg, err := DecodeSMVFrame(frame)
	if err != nil {
		t.Fatal(err)
	}
	if !msg.Header.Simulated() || !msg.Pdu.Simulation {
		t.Error("simulation bit lost in reserved word")
	}
	if !bytes.Equal(msg.Pdu.Security, []byte{0xCA, 0xFE}) {
		t.Errorf("security = %x", msg.Pdu.Security)
	}
	got := msg.Pdu.Asdus[0]
	if got.DatSet == nil || *got.DatSet != ds {
		t.Errorf("DatSet = %v", got.DatSet)
	}
	if got.RefrTm == nil || *got.RefrTm != refr {
		t.Errorf("RefrTm = %v", got.RefrTm)
	}
	if got.SmpMod == nil || *got.SmpMod != 1 {
		t.Errorf("SmpMod = %v", got.SmpMod)
	}
	if got.GmIdentity == nil || *got.GmIdentity != [8]byte{1, 2, 3, 4, 5, 6, 7, 8} {
		t.Errorf("GmIdentity = %v", got.GmIdentity)
	}
}

func TestEncodeSMVExactSize(t *testing.T) {
	// The encoder sizes the frame up front; the returned slice must
	// have filled its buffer exactly. 8 ASDUs of 12 samples each.
	asdus := make([]core.SavAsdu, 8)
	for i := range asdus {
		a := sampleAsdu("MU01", uint16(i))
		a.Samples = make([]core.Sample, 12)
		asdus[i] = a
	}
	pdu := core.SavPdu{NoAsdu: 8, Asdus: asdus}
	frame, err := EncodeSMV(core.EthernetHeader{}, &pdu)
	if err != nil {
		t.Fatal(err)
	}
	if len(frame) != cap(frame) {
		t.Errorf("wrote %d octets into a %d-octet buffer", len(frame), cap(frame))
	}
	msg, err := DecodeSMVFrame(frame)
	if err != nil {
		t.Fatal(err)
	}
	if len(msg.Pdu.Asdus) != 8 || len(msg.Pdu.Asdus[7].Samples) != 12 {
		t.Errorf("decoded %d ASDUs", len(msg.Pdu.Asdus))
	}
	if int(msg.Header.Length)+msg.Header.HeaderSize()-8 != len(frame) {
		t.Errorf("length field %d inconsistent with frame size %d", msg.Header.Length, len(frame))
	}
}

func TestEncodeSMVCountMismatch(t *testing.T) {
	pdu := core.SavPdu{NoAsdu: 2, Asdus: []core.SavAsdu{sampleAsdu("MU01", 0)}}
	_, err := EncodeSMV(core.EthernetHeader{}, &pdu)
	if !errors.Is(err, core.ErrAsduCountMismatch) {
		t.Errorf("expected ErrAsduCountMismatch, got %v", err)
	}
}

func TestEncodeSMVOversizeApdu(t *testing.T) {
	pdu := core.SavPdu{
		NoAsdu:   1,
		Security: make([]byte, 70000),
		Asdus:    []core.SavAsdu{sampleAsdu("MU01", 0)},
	}
	frame, err := EncodeSMV(core.EthernetHeader{}, &pdu)
	if !errors.Is(err, core.ErrInvalidLength) {
		t.Fatalf("expected ErrInvalidLength, got %v", err)
	}
	if frame != nil {
		t.Errorf("oversize encode returned %d octets", len(frame))
	}
}

func TestDecodeSMVCountMismatch(t *testing.T) {
	pdu := core.SavPdu{NoAsdu: 1, Asdus: []core.SavAsdu{sampleAsdu("MU01", 0)}}
	frame, err := EncodeSMV(core.EthernetHeader{}, &pdu)
	if err != nil {
		t.Fatal(err)
	}
	// Raise the declared count: noASDU is the first field inside the
	// savPdu wrapper.
	i := bytes.Index(frame, []byte{0x60})
	if i < 0 || frame[i+2] != tagNoAsdu {
		t.Fatalf("savPdu layout unexpected around offset %d", i)
	}
	frame[i+4] = 3
	_, err = DecodeSMVFrame(frame)
	if !errors.Is(err, core.ErrAsduCountMismatch) {
		t.Errorf("expected ErrAsduCountMismatch, got %v", err)
	}
}

func TestDecodeSMVIgnoresTrailingAsdus(t *testing.T) {
	// Two ASDUs on the wire, only one declared: the extra one is
	// silently ignored.
	pdu := core.SavPdu{NoAsdu: 2, Asdus: []core.SavAsdu{sampleAsdu("A", 0), sampleAsdu("B", 1)}}
	frame, err := EncodeSMV(core.EthernetHeader{}, &pdu)
	if err != nil {
		t.Fatal(err)
	}
	// The two-ASDU savPdu content is 182 octets, so its length takes
	// the 0x81 long form and noASDU starts three octets past the tag.
	i := bytes.Index(frame, []byte{0x60, 0x81})
	if i < 0 || frame[i+3] != tagNoAsdu || frame[i+5] != 2 {
		t.Fatalf("savPdu layout unexpected around offset %d", i)
	}
	frame[i+5] = 1
	msg, err := DecodeSMVFrame(frame)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(msg.Pdu.Asdus) != 1 || msg.Pdu.Asdus[0].SvID != "A" {
		t.Errorf("decoded %+v", msg.Pdu.Asdus)
	}
}

func TestDecodeSMVTruncated(t *testing.T) {
	pdu := core.SavPdu{NoAsdu: 1, Asdus: []core.SavAsdu{sampleAsdu("MU01", 5)}}
	frame, err := EncodeSMV(core.EthernetHeader{}, &pdu)
	if err != nil {
		t.Fatal(err)
	}
	for n := 0; n < len(frame); n++ {
		if _, err := DecodeSMVFrame(frame[:n]); err == nil {
			t.Errorf("prefix of %d octets decoded without error", n)
		}
	}
}

func TestDecodeSMVOddSampleRegion(t *testing.T) {
	pdu := core.SavPdu{NoAsdu: 1, Asdus: []core.SavAsdu{{
		SvID:     "MU01",
		SmpSynch: core.SmpSynchNone,
		Samples:  []core.Sample{{Value: 1}},
	}}}
	frame, err := EncodeSMV(core.EthernetHeader{}, &pdu)
	if err != nil {
		t.Fatal(err)
	}
	// Shrink the sample region by one octet (8 → 7) and adjust the
	// three enclosing lengths: savPdu at 22, the ASDU sequence at 27,
	// the ASDU itself at 29.
	if frame[22] != tagSavPdu || frame[27] != tagAsduSeq || frame[29] != tagAsdu {
		t.Fatalf("savPdu layout unexpected: % x", frame[22:31])
	}
	i := bytes.Index(frame[22:], []byte{tagSampleData, 8}) + 22
	if i < 22 {
		t.Fatal("sample region not found")
	}
	frame[i+1] = 7
	frame[23]--
	frame[28]--
	frame[30]--
	_, err = DecodeSMVFrame(frame[:len(frame)-1])
	if !errors.Is(err, core.ErrInvalidLength) {
		t.Errorf("expected ErrInvalidLength, got %v", err)
	}
}

func BenchmarkEncodeSMV(b *testing.B) {
	asdus := make([]core.SavAsdu, 8)
	for i := range asdus {
		asdus[i] = sampleAsdu("MU01", uint16(i))
	}
	pdu := core.SavPdu{NoAsdu: 8, Asdus: asdus}
	h := core.EthernetHeader{AppID: 0x4000}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := EncodeSMV(h, &pdu); err != nil {
			b.Fatal(err)
		}
	}
}
