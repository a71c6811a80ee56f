package bdmv

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"bd3d/internal/h264"
)

// BDAV transport packets carry a 4-byte arrival timestamp before the
// 188-byte MPEG-TS packet.
const (
	bdavPacketSize = 192
	tpExtraHeader  = 4
	tsSyncByte     = 0x47

	// PIDs tsMuxeR assigns to the base and dependent video views.
	BaseVideoPID      = 0x1011
	DependentVideoPID = 0x1012
)

// StreamScan summarizes the video PIDs found in an m2ts prefix.
type StreamScan struct {
	Packets          int
	BasePackets      int
	DependentPackets int
	Base             h264.TypeSet
	Dependent        h264.TypeSet
}

// HasMVC reports whether the dependent view units are present: in the
// dependent PID when one exists, otherwise anywhere in the base PID.
func (s StreamScan) HasMVC() bool {
	if s.DependentPackets > 0 {
		return s.Dependent.Has(h264.NALSliceExt)
	}
	return s.Base.Has(h264.NALSliceExt)
}

// ScanM2TS reads up to limit bytes of a BDAV transport stream and scans the
// elementary stream payloads of both video PIDs for NAL unit types. PES
// headers are stripped before scanning. A limit <= 0 reads the whole file.
func ScanM2TS(path string, limit int64) (StreamScan, error) {
	file, err := os.Open(path)
	if err != nil {
		return StreamScan{}, err
	}
	defer file.Close()

	var reader io.Reader = bufio.NewReaderSize(file, bdavPacketSize*512)
	if limit > 0 {
		reader = io.LimitReader(reader, limit)
	}

	var (
		scan            StreamScan
		baseNAL, depNAL h264.Scanner
		packet          = make([]byte, bdavPacketSize)
	)
	for {
		if _, err := io.ReadFull(reader, packet); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return StreamScan{}, fmt.Errorf("read %s: %w", path, err)
		}
		scan.Packets++
		ts := packet[tpExtraHeader:]
		if ts[0] != tsSyncByte {
			continue
		}
		pid := uint16(ts[1]&0x1F)<<8 | uint16(ts[2])
		var target *h264.Scanner
		switch pid {
		case BaseVideoPID:
			scan.BasePackets++
			target = &baseNAL
		case DependentVideoPID:
			scan.DependentPackets++
			target = &depNAL
		default:
			continue
		}
		if payload, ok := esPayload(ts); ok {
			_, _ = target.Write(payload)
		}
	}
	scan.Base = baseNAL.Types()
	scan.Dependent = depNAL.Types()
	return scan, nil
}

// esPayload returns the elementary stream bytes of one TS packet, skipping
// the adaptation field and, at a unit start, the PES header.
func esPayload(ts []byte) ([]byte, bool) {
	payloadStart := ts[1]&0x40 != 0
	adaptation := (ts[3] & 0x30) >> 4
	index := 4
	switch adaptation {
	case 0, 2:
		return nil, false
	case 3:
		index += 1 + int(ts[4])
	}
	if index >= len(ts) {
		return nil, false
	}
	payload := ts[index:]
	if payloadStart && len(payload) >= 9 && payload[0] == 0x00 && payload[1] == 0x00 && payload[2] == 0x01 {
		start := 9 + int(payload[8])
		if start >= len(payload) {
			return nil, false
		}
		payload = payload[start:]
	}
	return payload, true
}
