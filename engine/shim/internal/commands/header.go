package commands

import "encoding/binary"

const RawReplyHeaderSize = 18

type RawReplyHeaderBuffer = [RawReplyHeaderSize]byte

type RawReplyHeader struct {
	ApiVersion  byte
	InfoHeader  byte
	RequestId   int64
	OperationId uint32
	ContentSize uint32
}

type UnpackedRawReplyHeader struct {
	RawReplyHeader

	// Parsed from InfoHeader.
	IsOperationComplete bool
	EventID             byte
}

func UnpackReplyHeader(rawheader [RawReplyHeaderSize]byte) (UnpackedRawReplyHeader, error) {
	var unpacked UnpackedRawReplyHeader

	var header RawReplyHeader
	if _, err := binary.Decode(rawheader[:], binary.BigEndian, &header); err != nil {
		return unpacked, err
	}

	unpacked.RawReplyHeader = header

	flags := (header.InfoHeader >> 4) & 0x0f
	unpacked.IsOperationComplete = (flags >> 0) > 0
	unpacked.EventID = (header.InfoHeader) & 0x0f

	return unpacked, nil
}
