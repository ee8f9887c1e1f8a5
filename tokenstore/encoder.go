package tokenstore

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"
)

const (
	recordFormatVersionCurrent = 2
	recordFormatVersionV1      = 1

	maxValueLen = 1<<16 - 1
)

// Record is the stored form of a token value.
//
// v1 carried only the value and the save time; v2 adds the source tag so a value written
// by another tool under the same key can be told apart.
type Record struct {
	Value   string
	Source  string
	SavedAt int64
}

// EncodeRecord serializes r in the current record format.
func EncodeRecord(r Record) ([]byte, error) {
	if len(r.Value) > maxValueLen {
		return nil, errors.New("token value too long")
	}
	if len(r.Source) > 255 {
		return nil, errors.New("source too long")
	}

	var buf bytes.Buffer
	buf.Grow(1 + 2 + len(r.Value) + 1 + len(r.Source) + 8)

	buf.WriteByte(recordFormatVersionCurrent)

	if err := binary.Write(&buf, binary.BigEndian, uint16(len(r.Value))); err != nil {
		return nil, err
	}
	buf.WriteString(r.Value)

	buf.WriteByte(byte(len(r.Source)))
	buf.WriteString(r.Source)

	if err := binary.Write(&buf, binary.BigEndian, r.SavedAt); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// DecodeRecord parses data written by any supported record format version.
func DecodeRecord(data []byte) (Record, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if version != recordFormatVersionCurrent && version != recordFormatVersionV1 {
		return Record{}, fmt.Errorf("%w: unknown version %d", ErrCorrupt, version)
	}

	var r Record

	var valueLen uint16
	if err := binary.Read(reader, binary.BigEndian, &valueLen); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	value := make([]byte, valueLen)
	if _, err := io.ReadFull(reader, value); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	r.Value = string(value)

	if version == recordFormatVersionCurrent {
		sourceLen, err := reader.ReadByte()
		if err != nil {
			return Record{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		source := make([]byte, sourceLen)
		if _, err := io.ReadFull(reader, source); err != nil {
			return Record{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		r.Source = string(source)
	}

	if err := binary.Read(reader, binary.BigEndian, &r.SavedAt); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if reader.Len() != 0 {
		return Record{}, fmt.Errorf("%w: trailing bytes", ErrCorrupt)
	}

	return r, nil
}

func newRecord(value, source string, now func() time.Time) Record {
	return Record{Value: value, Source: source, SavedAt: now().Unix()}
}
