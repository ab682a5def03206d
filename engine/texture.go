package engine

import (
	"fmt"

	unitycore "github.com/meigma/unitypack/core"
)

// TextAsset is a text or binary file imported as an asset.
type TextAsset struct {
	Name     string
	Script   []byte
	PathName string
}

// Text returns the contents as a string.
func (t *TextAsset) Text() string {
	return string(t.Script)
}

func newTextAsset(_ *unitycore.Asset, r *unitycore.Record) (*TextAsset, error) {
	if err := needFields(r, "m_Name", "m_Script"); err != nil {
		return nil, err
	}
	return &TextAsset{
		Name:     r.Field("m_Name").Str(),
		Script:   r.Field("m_Script").Bytes(),
		PathName: r.Field("m_PathName").Str(),
	}, nil
}

// StreamingInfo locates data stored in a resource file next to the asset.
type StreamingInfo struct {
	Offset uint64
	Size   uint32
	Path   string
}

// Texture2D is an image. Its pixels are either inline or streamed from a
// resource file in the same bundle.
type Texture2D struct {
	Name          string
	Width         int32
	Height        int32
	TextureFormat int32
	MipCount      int32
	ImageData     []byte
	StreamData    StreamingInfo

	source *unitycore.Asset
}

// Streamed reports whether the pixels live in a resource file.
func (t *Texture2D) Streamed() bool {
	return len(t.ImageData) == 0 && t.StreamData.Size > 0
}

// Data returns the encoded pixel data, reading it from the resource file
// when it is streamed.
func (t *Texture2D) Data() ([]byte, error) {
	if !t.Streamed() {
		return t.ImageData, nil
	}
	b := t.source.Bundle()
	if b == nil {
		return nil, fmt.Errorf("%w: texture %s streams from %s outside any bundle",
			unitycore.ErrAssetNotFound, t.Name, t.StreamData.Path)
	}
	res := b.Resource(t.StreamData.Path)
	if res == nil {
		return nil, fmt.Errorf("%w: texture %s resource %s",
			unitycore.ErrAssetNotFound, t.Name, t.StreamData.Path)
	}
	return res.ReadRaw(int64(t.StreamData.Offset), int64(t.StreamData.Size))
}

func newTexture2D(src *unitycore.Asset, r *unitycore.Record) (*Texture2D, error) {
	if err := needFields(r, "m_Name", "m_Width", "m_Height"); err != nil {
		return nil, err
	}
	stream := r.Field("m_StreamData")
	return &Texture2D{
		Name:          r.Field("m_Name").Str(),
		Width:         int32(r.Field("m_Width").Int()),
		Height:        int32(r.Field("m_Height").Int()),
		TextureFormat: int32(r.Field("m_TextureFormat").Int()),
		MipCount:      int32(r.Field("m_MipCount").Int()),
		ImageData:     r.Field("image data").Bytes(),
		StreamData: StreamingInfo{
			Offset: stream.Field("offset").Uint(),
			Size:   uint32(stream.Field("size").Uint()),
			Path:   stream.Field("path").Str(),
		},
		source: src,
	}, nil
}
