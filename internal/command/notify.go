package command

import (
	"fmt"
	"time"

	"icc.tech/procbus-agent/internal/core"
)

// HeaderView is the JSON presentation of a frame header.
type HeaderView struct {
	DstMAC    string `json:"dst_mac"`
	SrcMAC    string `json:"src_mac"`
	VLANID    uint16 `json:"vlan_id,omitempty"`
	VLANPrio  uint8  `json:"vlan_priority,omitempty"`
	AppID     uint16 `json:"appid"`
	Simulated bool   `json:"simulated,omitempty"`
}

func headerView(h core.EthernetHeader) HeaderView {
	v := HeaderView{
		DstMAC:    macString(h.DstMAC),
		SrcMAC:    macString(h.SrcMAC),
		AppID:     h.AppID,
		Simulated: h.Simulated(),
	}
	if h.HasVLAN {
		v.VLANID = h.VLANID()
		v.VLANPrio = h.VLANPriority()
	}
	return v
}

func macString(mac [6]byte) string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x",
		mac[0], mac[1], mac[2], mac[3], mac[4], mac[5])
}

// GooseNotification is the JSON presentation of a decoded GOOSE frame.
type GooseNotification struct {
	Kind              string      `json:"kind"` // always "goose"
	Header            HeaderView  `json:"header"`
	GoCbRef           string      `json:"go_cb_ref"`
	TimeAllowedToLive uint32      `json:"time_allowed_to_live"`
	DatSet            string      `json:"dat_set"`
	GoID              string      `json:"go_id"`
	T                 time.Time   `json:"t"`
	StNum             uint32      `json:"st_num"`
	SqNum             uint32      `json:"sq_num"`
	Simulation        bool        `json:"simulation"`
	ConfRev           uint32      `json:"conf_rev"`
	NdsCom            bool        `json:"nds_com"`
	Data              []DataValue `json:"data"`
}

// NewGooseNotification builds the notification for a decoded message.
func NewGooseNotification(msg core.GooseMessage) GooseNotification {
	return GooseNotification{
		Kind:              "goose",
		Header:            headerView(msg.Header),
		GoCbRef:           msg.Pdu.GoCbRef,
		TimeAllowedToLive: msg.Pdu.TimeAllowedToLive,
		DatSet:            msg.Pdu.DatSet,
		GoID:              msg.Pdu.GoID,
		T:                 msg.Pdu.T.Time(),
		StNum:             msg.Pdu.StNum,
		SqNum:             msg.Pdu.SqNum,
		Simulation:        msg.Pdu.Simulation,
		ConfRev:           msg.Pdu.ConfRev,
		NdsCom:            msg.Pdu.NdsCom,
		Data:              fromDataSeq(msg.Pdu.AllData),
	}
}

// SampleView is the JSON presentation of one sampled value.
type SampleView struct {
	Value   int32  `json:"value"`
	Quality uint32 `json:"quality"`
	Good    bool   `json:"good"`
}

// AsduView is the JSON presentation of one SMV ASDU.
type AsduView struct {
	SvID     string       `json:"sv_id"`
	DatSet   string       `json:"dat_set,omitempty"`
	SmpCnt   uint16       `json:"smp_cnt"`
	ConfRev  uint32       `json:"conf_rev"`
	RefrTm   *time.Time   `json:"refr_tm,omitempty"`
	SmpSynch uint8        `json:"smp_synch"`
	SmpRate  *uint16      `json:"smp_rate,omitempty"`
	Samples  []SampleView `json:"samples"`
}

// SmvNotification is the JSON presentation of a decoded SMV frame.
type SmvNotification struct {
	Kind       string     `json:"kind"` // always "smv"
	Header     HeaderView `json:"header"`
	Simulation bool       `json:"simulation"`
	NoAsdu     uint16     `json:"no_asdu"`
	Asdus      []AsduView `json:"asdus"`
}

// NewSmvNotification builds the notification for a decoded message.
func NewSmvNotification(msg core.SMVMessage) SmvNotification {
	n := SmvNotification{
		Kind:       "smv",
		Header:     headerView(msg.Header),
		Simulation: msg.Pdu.Simulation,
		NoAsdu:     msg.Pdu.NoAsdu,
		Asdus:      make([]AsduView, len(msg.Pdu.Asdus)),
	}
	for i := range msg.Pdu.Asdus {
		a := &msg.Pdu.Asdus[i]
		av := AsduView{
			SvID:     a.SvID,
			SmpCnt:   a.SmpCnt,
			ConfRev:  a.ConfRev,
			SmpSynch: a.SmpSynch,
			SmpRate:  a.SmpRate,
			Samples:  make([]SampleView, len(a.Samples)),
		}
		if a.DatSet != nil {
			av.DatSet = *a.DatSet
		}
		if a.RefrTm != nil {
			t := a.RefrTm.Time()
			av.RefrTm = &t
		}
		for j, s := range a.Samples {
			av.Samples[j] = SampleView{
				Value:   s.Value,
				Quality: s.Quality.Word(),
				Good:    s.Quality.IsGood(),
			}
		}
		n.Asdus[i] = av
	}
	return n
}
