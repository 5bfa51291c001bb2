package capture

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// ReadPcap returns the non-empty TCP payloads to or from port, one segment
// per packet. Streams are not reassembled.
func ReadPcap(r io.Reader, port uint16) ([]Segment, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(4)
	if err != nil {
		return nil, fmt.Errorf("failed to read capture header: %w", err)
	}

	var (
		source   gopacket.PacketDataSource
		linkType layers.LinkType
	)
	if bytes.Equal(magic, []byte{0x0a, 0x0d, 0x0d, 0x0a}) {
		ng, err := pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
		if err != nil {
			return nil, fmt.Errorf("failed to open pcapng: %w", err)
		}
		source, linkType = ng, ng.LinkType()
	} else {
		pr, err := pcapgo.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("failed to open pcap: %w", err)
		}
		source, linkType = pr, pr.LinkType()
	}

	packets := gopacket.NewPacketSource(source, linkType)
	packets.DecodeOptions = gopacket.DecodeOptions{Lazy: true, NoCopy: false}

	var segments []Segment
	for n := 0; ; n++ {
		pkt, err := packets.NextPacket()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return segments, fmt.Errorf("failed to read packet %d: %w", n, err)
		}
		if seg, ok := agentxSegment(pkt, port); ok {
			seg.Index = len(segments)
			segments = append(segments, seg)
		}
	}
	return segments, nil
}

func agentxSegment(pkt gopacket.Packet, port uint16) (Segment, bool) {
	tcpLayer := pkt.Layer(layers.LayerTypeTCP)
	if tcpLayer == nil {
		return Segment{}, false
	}
	tcp := tcpLayer.(*layers.TCP)
	if uint16(tcp.SrcPort) != port && uint16(tcp.DstPort) != port {
		return Segment{}, false
	}
	if len(tcp.Payload) == 0 {
		return Segment{}, false
	}

	seg := Segment{
		Data:      append([]byte(nil), tcp.Payload...),
		Timestamp: pkt.Metadata().Timestamp,
	}
	if nl := pkt.NetworkLayer(); nl != nil {
		flow := nl.NetworkFlow()
		seg.Source = fmt.Sprintf("%s:%d->%s:%d", flow.Src(), tcp.SrcPort, flow.Dst(), tcp.DstPort)
	}
	return seg, true
}
