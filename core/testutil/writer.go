package testutil

import (
	"encoding/binary"
	"math"
)

// Writer accumulates bytes in a chosen byte order.
type Writer struct {
	buf   []byte
	order binary.AppendByteOrder
}

// NewWriter returns a Writer using order.
func NewWriter(order binary.AppendByteOrder) *Writer {
	return &Writer{order: order}
}

// BE returns a big-endian Writer.
func BE() *Writer { return NewWriter(binary.BigEndian) }

// LE returns a little-endian Writer.
func LE() *Writer { return NewWriter(binary.LittleEndian) }

// SetOrder switches the byte order for subsequent writes.
func (w *Writer) SetOrder(order binary.AppendByteOrder) *Writer {
	w.order = order
	return w
}

func (w *Writer) Bytes() []byte { return w.buf }
func (w *Writer) Len() int      { return len(w.buf) }

func (w *Writer) Raw(b []byte) *Writer {
	w.buf = append(w.buf, b...)
	return w
}

func (w *Writer) U8(v uint8) *Writer {
	w.buf = append(w.buf, v)
	return w
}

func (w *Writer) Bool(v bool) *Writer {
	if v {
		return w.U8(1)
	}
	return w.U8(0)
}

func (w *Writer) U16(v uint16) *Writer {
	w.buf = w.order.AppendUint16(w.buf, v)
	return w
}

func (w *Writer) I16(v int16) *Writer { return w.U16(uint16(v)) }

func (w *Writer) U32(v uint32) *Writer {
	w.buf = w.order.AppendUint32(w.buf, v)
	return w
}

func (w *Writer) I32(v int32) *Writer { return w.U32(uint32(v)) }

func (w *Writer) U64(v uint64) *Writer {
	w.buf = w.order.AppendUint64(w.buf, v)
	return w
}

func (w *Writer) I64(v int64) *Writer { return w.U64(uint64(v)) }

func (w *Writer) F32(v float32) *Writer { return w.U32(math.Float32bits(v)) }

func (w *Writer) F64(v float64) *Writer { return w.U64(math.Float64bits(v)) }

// CString writes s followed by a zero byte.
func (w *Writer) CString(s string) *Writer {
	w.buf = append(w.buf, s...)
	w.buf = append(w.buf, 0)
	return w
}

// String writes a u32 length followed by the bytes of s.
func (w *Writer) String(s string) *Writer {
	w.U32(uint32(len(s)))
	w.buf = append(w.buf, s...)
	return w
}

// Align pads with zeros to the next multiple of n.
func (w *Writer) Align(n int) *Writer {
	for len(w.buf)%n != 0 {
		w.buf = append(w.buf, 0)
	}
	return w
}

// PadTo pads with zeros until the writer holds n bytes.
func (w *Writer) PadTo(n int) *Writer {
	for len(w.buf) < n {
		w.buf = append(w.buf, 0)
	}
	return w
}
