// Package audio defines the transport-ready form of a finished recording.
package audio

import "encoding/base64"

// MIMETypeOgg is the container type produced by the capture path: opus
// packets boxed into an Ogg stream.
const MIMETypeOgg = "audio/ogg"

// Payload is an encoded recording ready to inline into a matching request.
type Payload struct {
	Data     string `json:"data"` // base64
	MIMEType string `json:"mimeType"`
}

// Encode converts raw container bytes into a Payload. Empty input yields an
// empty Data string; the caller decides whether that is usable.
func Encode(raw []byte, mimeType string) Payload {
	p := Payload{MIMEType: mimeType}
	if len(raw) == 0 {
		return p
	}
	p.Data = base64.StdEncoding.EncodeToString(raw)
	return p
}

// Empty reports whether the payload carries no audio data.
func (p Payload) Empty() bool {
	return p.Data == ""
}
