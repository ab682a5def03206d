package testutil

import (
	"encoding/binary"

	"github.com/google/uuid"
)

// Object is one serialized object of an Asset.
type Object struct {
	PathID int64
	// TypeID is the schema key. For format 17 and newer it is the position
	// of the class in the schema instead.
	TypeID  int32
	ClassID int16
	Data    []byte
}

// Ref is one external file reference of an Asset.
type Ref struct {
	Path     string
	GUID     uuid.UUID
	Type     int32
	FilePath string
}

// Add is one entry of the adds list.
type Add struct {
	ID    int64
	Value int32
}

// Asset describes a serialized file to encode.
type Asset struct {
	Format       uint32
	BigEndian    bool
	LongIDs      bool
	Schema       Schema
	Objects      []Object
	Adds         []Add
	Refs         []Ref
	Trailer      string
	DataAlignTo  int // defaults to 16
	ObjectAlign  int // defaults to 8
	ExtraDataGap int // bytes inserted before the object data region
}

// Bytes encodes the asset.
func (a Asset) Bytes() []byte {
	format := a.Format
	headerLen := 16
	if format >= 9 {
		headerLen += 4
	}

	objAlign := a.ObjectAlign
	if objAlign == 0 {
		objAlign = 8
	}
	data := BE()
	offsets := make([]int, len(a.Objects))
	for i, o := range a.Objects {
		data.Align(objAlign)
		offsets[i] = data.Len()
		data.Raw(o.Data)
	}

	// Metadata is written after headerLen placeholder bytes so that
	// alignment is computed on offsets from the start of the asset.
	meta := LE()
	if a.BigEndian || format < 9 {
		meta.SetOrder(binary.BigEndian)
	}
	meta.PadTo(headerLen)
	a.encodeMeta(meta, offsets)
	body := meta.Bytes()[headerLen:]

	dataAlign := a.DataAlignTo
	if dataAlign == 0 {
		dataAlign = 16
	}
	dataOffset := headerLen + len(body) + a.ExtraDataGap
	for dataOffset%dataAlign != 0 {
		dataOffset++
	}
	fileSize := dataOffset + data.Len()

	out := BE()
	out.U32(uint32(len(body))).U32(uint32(fileSize)).U32(format).U32(uint32(dataOffset))
	if format >= 9 {
		if a.BigEndian {
			out.U32(1)
		} else {
			out.U32(0)
		}
	}
	out.Raw(body).PadTo(dataOffset).Raw(data.Bytes())
	return out.Bytes()
}

func (a Asset) encodeMeta(w *Writer, offsets []int) {
	format := a.Format
	EncodeSchema(w, format, a.Schema)
	if format >= 7 && format <= 13 {
		if a.LongIDs {
			w.U32(1)
		} else {
			w.U32(0)
		}
	}

	w.U32(uint32(len(a.Objects)))
	for i, o := range a.Objects {
		if format >= 14 {
			w.Align(4)
		}
		a.writeID(w, o.PathID)
		w.U32(uint32(offsets[i])).U32(uint32(len(o.Data))).I32(o.TypeID)
		if format < 17 {
			w.I16(o.ClassID).I16(0)
			if format == 15 || format == 16 {
				w.U8(0)
			}
		}
	}
	if format >= 11 {
		w.U32(uint32(len(a.Adds)))
		for _, add := range a.Adds {
			if format >= 14 {
				w.Align(4)
			}
			a.writeID(w, add.ID)
			w.I32(add.Value)
		}
	}
	if format >= 6 {
		w.U32(uint32(len(a.Refs)))
		for _, r := range a.Refs {
			w.CString(r.Path).Raw(r.GUID[:]).I32(r.Type).CString(r.FilePath)
		}
	}
	w.CString(a.Trailer)
}

func (a Asset) writeID(w *Writer, id int64) {
	if a.LongIDs || a.Format >= 14 {
		w.I64(id)
		return
	}
	w.I32(int32(id))
}
