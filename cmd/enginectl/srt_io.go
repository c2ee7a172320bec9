package main

import (
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/alxayo/streamengine/internal/core/request"
	"github.com/alxayo/streamengine/internal/core/ubuf"
	"github.com/alxayo/streamengine/internal/core/upipe"
	"github.com/alxayo/streamengine/internal/core/upump"
	"github.com/alxayo/streamengine/internal/core/uref"
	"github.com/alxayo/streamengine/internal/srt/receiver"
	"github.com/alxayo/streamengine/internal/srt/sender"
	"github.com/alxayo/streamengine/internal/srt/wire"
)

// srtReceiverNode pairs a UDP listener with internal/srt/receiver's reorder
// buffer and a downstream pipe (normally a pcmBridge): datagrams arrive on
// readLoop, release-ready payloads are pulled on a upump timer tick and
// handed downstream as raw block urefs.
//
// Full handshake/ACK negotiation is internal/srt's own concern, exercised
// by its package tests; this wires the clear-text data-plane pump only
// (see DESIGN.md).
type srtReceiverNode struct {
	conn    *net.UDPConn
	buf     *receiver.Buffer
	out     upipe.Pipe
	blockMgr *ubuf.Manager
	log     *slog.Logger
}

func startSRTReceiver(mgr *upump.Manager, listen string, latencyMS int, out upipe.Pipe, log *slog.Logger) (*srtReceiverNode, error) {
	addr, err := net.ResolveUDPAddr("udp", listen)
	if err != nil {
		return nil, fmt.Errorf("enginectl: resolve srt listen addr: %w", err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("enginectl: listen udp: %w", err)
	}

	n := &srtReceiverNode{
		conn:     conn,
		buf:      receiver.NewBuffer(mgr.Clock(), upump.DurationToTicks(time.Duration(latencyMS)*time.Millisecond)),
		out:      out,
		blockMgr: ubuf.NewBlockManager(nil, 0, 0, 0, 0),
		log:      log,
	}
	go n.readLoop()

	w := mgr.AllocTimer(20*time.Millisecond, 20*time.Millisecond, func(any) { n.releaseTick() }, nil)
	w.Start()
	return n, nil
}

func (n *srtReceiverNode) readLoop() {
	pkt := make([]byte, 65536)
	for {
		nr, _, err := n.conn.ReadFromUDP(pkt)
		if err != nil {
			return // listener closed
		}
		if wire.IsControl(pkt[:nr]) {
			continue // NAK/ACK control-plane exchange not reimplemented here
		}
		hdr, ok := wire.ParseDataHeader(pkt[:nr])
		if !ok || nr < wire.HeaderSize {
			continue
		}
		if nr == wire.HeaderSize {
			n.log.Warn("srt receiver: dropped zero-size data packet", "seq", hdr.Sequence)
			continue
		}
		body := append([]byte(nil), pkt[wire.HeaderSize:nr]...)
		n.buf.Insert(hdr.Sequence, body)
	}
}

func (n *srtReceiverNode) releaseTick() {
	for _, d := range n.buf.Release() {
		u, err := n.blockMgr.Allocate(len(d.Data))
		if err != nil {
			n.log.Warn("srt receiver: allocate block failed", "error", err)
			continue
		}
		plane, _, _ := u.MapWrite("")
		copy(plane, d.Data)
		if err := n.out.Input(uref.NewData(u)); err != nil {
			n.log.Warn("srt receiver: downstream input failed", "error", err)
		}
	}
}

func (n *srtReceiverNode) Close() error { return n.conn.Close() }

// srtSenderSink is the crossblender's output when the graph's output kind
// is "srt": it interleaves the incoming planar sound uref and hands it to
// internal/srt/sender for framing and transmission over UDP.
type srtSenderSink struct {
	*upipe.Base
	conn       *net.UDPConn
	s          *sender.Sender
	channels   int
	sampleSize int
	seqTS      uint32
}

func startSRTSender(probe *request.Chain, mgr *upump.Manager, dest string, destSocketID uint32, latencyMS, channels, sampleSize int) (*srtSenderSink, error) {
	addr, err := net.ResolveUDPAddr("udp", dest)
	if err != nil {
		return nil, fmt.Errorf("enginectl: resolve srt dest addr: %w", err)
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("enginectl: dial udp: %w", err)
	}

	sink := &srtSenderSink{channels: channels, sampleSize: sampleSize, conn: conn}
	sink.s = sender.NewSender(mgr.Clock(), upump.DurationToTicks(time.Duration(latencyMS)*time.Millisecond), destSocketID, func(b []byte) error {
		_, err := conn.Write(b)
		return err
	})
	sink.Base = upipe.NewBase(probe, nil, nil)

	w := mgr.AllocTimer(time.Second, time.Second, func(any) { sink.s.Drain() }, nil)
	w.Start()
	return sink, nil
}

func (s *srtSenderSink) Control(cmd *upipe.Command) error {
	if handled, err := s.Base.HandleCommon(cmd, nil); handled {
		return err
	}
	if cmd.Kind == upipe.CmdSetFlowDef {
		return nil
	}
	return fmt.Errorf("enginectl: srt sender sink unhandled command %s", cmd.Kind)
}

func (s *srtSenderSink) Input(u *uref.Uref) error {
	defer u.Free()
	payload := interleaveSound(u, s.channels, s.sampleSize)
	if payload == nil {
		return nil
	}
	s.seqTS++
	return s.s.SendPayload(payload, s.seqTS)
}

func (s *srtSenderSink) Close() error { return s.conn.Close() }
