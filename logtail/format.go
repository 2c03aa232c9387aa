package logtail

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"io"

	"github.com/pkg/errors"
)

// Entry tags. These are the only bytes LogFormat will accept as the first
// byte of a frame; anything else decodes as Corrupt.
const (
	tagHeader     byte = 1
	tagStart      byte = 2
	tagCommit     byte = 3
	tagCheckPoint byte = 4
	// tagOpaqueBase and above are command/rollback records the scanner
	// recognises structurally (length-prefixed, checksummed) but does not
	// interpret. The tag byte itself is preserved in OpaqueEntry.Tag.
	tagOpaqueBase byte = 5
)

var crc32cTable = crc32.MakeTable(crc32.Castagnoli)

// CurrentFormatVersion is the FormatVersion this package knows how to
// decode. EntryReader.ReadHeader rejects any segment whose Header declares a
// different value with ErrUnsupportedFormat rather than attempt to decode
// entries in a layout it doesn't understand.
const CurrentFormatVersion uint8 = 1

// DecodeStatus is the explicit sum type LogFormat uses in place of
// exception-driven control flow to distinguish a clean end of segment from
// truncation or corruption.
type DecodeStatus int

const (
	// DecodeOk indicates an entry was read successfully.
	DecodeOk DecodeStatus = iota
	// DecodeCleanEnd indicates the channel returned EOF exactly at an entry
	// boundary: nothing is wrong, the segment simply ends here.
	DecodeCleanEnd
	// DecodeCorrupt indicates an unknown tag, checksum mismatch, or a
	// truncated/partial frame.
	DecodeCorrupt
)

// DecodeResult is the outcome of decoding one entry from a positioned
// channel.
type DecodeResult struct {
	Status        DecodeStatus
	Entry         LogEntry
	BytesConsumed uint64
	// Err carries the reason for a DecodeCorrupt result. It is always nil
	// for DecodeOk and DecodeCleanEnd.
	Err error
}

// DecodeEntry reads exactly one framed entry from r, assumed to be
// positioned at an entry boundary. The frame format itself has been stable
// across every format version this scanner understands; callers that care
// about format compatibility check HeaderEntry.FormatVersion themselves
// before trusting the rest of a segment.
func DecodeEntry(r io.Reader) DecodeResult {
	var tagBuf [1]byte
	n, err := io.ReadFull(r, tagBuf[:])
	if err != nil {
		if err == io.EOF && n == 0 {
			return DecodeResult{Status: DecodeCleanEnd}
		}
		return DecodeResult{Status: DecodeCorrupt, Err: errors.Wrap(err, "read entry tag")}
	}

	tag := tagBuf[0]
	body, err := readBody(r, tag)
	if err != nil {
		return DecodeResult{Status: DecodeCorrupt, Err: err}
	}

	var checksumBuf [4]byte
	if _, err := io.ReadFull(r, checksumBuf[:]); err != nil {
		return DecodeResult{Status: DecodeCorrupt, Err: errors.Wrap(err, "read entry checksum")}
	}
	wantChecksum := binary.BigEndian.Uint32(checksumBuf[:])

	gotChecksum := crc32.Checksum(append(tagBuf[:], body...), crc32cTable)
	if gotChecksum != wantChecksum {
		return DecodeResult{Status: DecodeCorrupt, Err: errors.Errorf(
			"checksum mismatch: got %08x, want %08x", gotChecksum, wantChecksum)}
	}

	entry, err := decodeBody(tag, body)
	if err != nil {
		return DecodeResult{Status: DecodeCorrupt, Err: err}
	}

	return DecodeResult{
		Status:        DecodeOk,
		Entry:         entry,
		BytesConsumed: uint64(1 + len(body) + 4),
	}
}

// readBody reads the payload portion of a frame (everything between the tag
// byte and the checksum trailer), given the tag determines its shape.
func readBody(r io.Reader, tag byte) ([]byte, error) {
	switch {
	case tag == tagHeader:
		buf := make([]byte, 8+16+1)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, errors.Wrap(err, "read header body")
		}
		return buf, nil
	case tag == tagStart:
		fixed := make([]byte, 4+8+8+4)
		if _, err := io.ReadFull(r, fixed); err != nil {
			return nil, errors.Wrap(err, "read start body")
		}
		addLen := binary.BigEndian.Uint32(fixed[20:24])
		if addLen > maxEntrySize {
			return nil, errors.Errorf("start entry additional length %d exceeds max entry size", addLen)
		}
		additional := make([]byte, addLen)
		if _, err := io.ReadFull(r, additional); err != nil {
			return nil, errors.Wrap(err, "read start body additional bytes")
		}
		return append(fixed, additional...), nil
	case tag == tagCommit:
		buf := make([]byte, 8+8+4)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, errors.Wrap(err, "read commit body")
		}
		return buf, nil
	case tag == tagCheckPoint:
		buf := make([]byte, 8+8)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, errors.Wrap(err, "read checkpoint body")
		}
		return buf, nil
	case tag >= tagOpaqueBase:
		var lenBuf [4]byte
		if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
			return nil, errors.Wrap(err, "read opaque body length")
		}
		payloadLen := binary.BigEndian.Uint32(lenBuf[:])
		if payloadLen > maxEntrySize {
			return nil, errors.Errorf("opaque entry length %d exceeds max entry size", payloadLen)
		}
		payload := make([]byte, payloadLen)
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, errors.Wrap(err, "read opaque body payload")
		}
		return append(lenBuf[:], payload...), nil
	default:
		return nil, errors.Wrapf(errUnknownEntryTag, "tag %d", tag)
	}
}

// maxEntrySize bounds variable-length payloads so a corrupt length prefix
// cannot force an unbounded allocation.
const maxEntrySize = 64 * 1024 * 1024

func decodeBody(tag byte, body []byte) (LogEntry, error) {
	switch {
	case tag == tagHeader:
		var storeID StoreId
		copy(storeID[:], body[8:24])
		return LogEntry{
			Kind: KindHeader,
			Header: HeaderEntry{
				SegmentVersion: binary.BigEndian.Uint64(body[0:8]),
				StoreId:        storeID,
				FormatVersion:  body[24],
			},
		}, nil
	case tag == tagStart:
		return LogEntry{
			Kind: KindStart,
			Start: StartEntry{
				PreviousChecksum: binary.BigEndian.Uint32(body[0:4]),
				TimeWritten:      int64(binary.BigEndian.Uint64(body[4:12])),
				LastCommittedTx:  int64(binary.BigEndian.Uint64(body[12:20])),
				Additional:       append([]byte(nil), body[24:]...),
			},
		}, nil
	case tag == tagCommit:
		return LogEntry{
			Kind: KindCommit,
			Commit: CommitEntry{
				TxId:          int64(binary.BigEndian.Uint64(body[0:8])),
				TimeCommitted: int64(binary.BigEndian.Uint64(body[8:16])),
				Checksum:      binary.BigEndian.Uint32(body[16:20]),
			},
		}, nil
	case tag == tagCheckPoint:
		return LogEntry{
			Kind: KindCheckPoint,
			CheckPoint: CheckPointEntry{
				Target: LogPosition{
					SegmentVersion: binary.BigEndian.Uint64(body[0:8]),
					ByteOffset:     binary.BigEndian.Uint64(body[8:16]),
				},
			},
		}, nil
	case tag >= tagOpaqueBase:
		return LogEntry{
			Kind: KindOpaque,
			Opaque: OpaqueEntry{
				Tag:     tag,
				Payload: append([]byte(nil), body[4:]...),
			},
		}, nil
	default:
		return LogEntry{}, errors.Wrapf(errUnknownEntryTag, "tag %d", tag)
	}
}

// EncodeEntry writes e to w as a framed entry, returning the number of bytes
// written. It is the inverse of DecodeEntry and is used by production
// writers (out of this package's scope, §1) and by test fixtures.
func EncodeEntry(w io.Writer, e LogEntry) (int, error) {
	var buf bytes.Buffer
	switch e.Kind {
	case KindHeader:
		buf.WriteByte(tagHeader)
		writeUint64(&buf, e.Header.SegmentVersion)
		buf.Write(e.Header.StoreId[:])
		buf.WriteByte(e.Header.FormatVersion)
	case KindStart:
		buf.WriteByte(tagStart)
		writeUint32(&buf, e.Start.PreviousChecksum)
		writeInt64(&buf, e.Start.TimeWritten)
		writeInt64(&buf, e.Start.LastCommittedTx)
		writeUint32(&buf, uint32(len(e.Start.Additional)))
		buf.Write(e.Start.Additional)
	case KindCommit:
		buf.WriteByte(tagCommit)
		writeInt64(&buf, e.Commit.TxId)
		writeInt64(&buf, e.Commit.TimeCommitted)
		writeUint32(&buf, e.Commit.Checksum)
	case KindCheckPoint:
		buf.WriteByte(tagCheckPoint)
		writeUint64(&buf, e.CheckPoint.Target.SegmentVersion)
		writeUint64(&buf, e.CheckPoint.Target.ByteOffset)
	case KindOpaque:
		tag := e.Opaque.Tag
		if tag < tagOpaqueBase {
			tag = tagOpaqueBase
		}
		buf.WriteByte(tag)
		writeUint32(&buf, uint32(len(e.Opaque.Payload)))
		buf.Write(e.Opaque.Payload)
	default:
		return 0, errors.Errorf("logtail: cannot encode entry kind %v", e.Kind)
	}

	checksum := crc32.Checksum(buf.Bytes(), crc32cTable)
	var checksumBuf [4]byte
	binary.BigEndian.PutUint32(checksumBuf[:], checksum)
	buf.Write(checksumBuf[:])

	return w.Write(buf.Bytes())
}

func writeUint64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeInt64(buf *bytes.Buffer, v int64) {
	writeUint64(buf, uint64(v))
}
