package audio

import (
	"encoding/base64"
	"testing"
)

func TestEncode(t *testing.T) {
	raw := []byte{0x4f, 0x67, 0x67, 0x53} // "OggS"
	p := Encode(raw, MIMETypeOgg)

	if p.MIMEType != "audio/ogg" {
		t.Errorf("MIMEType = %q, want audio/ogg", p.MIMEType)
	}
	decoded, err := base64.StdEncoding.DecodeString(p.Data)
	if err != nil {
		t.Fatalf("Data is not valid base64: %v", err)
	}
	if string(decoded) != "OggS" {
		t.Errorf("Decoded data = %q, want OggS", decoded)
	}
	if p.Empty() {
		t.Error("Payload with data reported Empty")
	}
}

func TestEncodeEmptyInput(t *testing.T) {
	p := Encode(nil, MIMETypeOgg)
	if p.Data != "" {
		t.Errorf("Empty input should encode to empty string, got %q", p.Data)
	}
	if !p.Empty() {
		t.Error("Payload without data should report Empty")
	}
	// Media type is still declared even for empty payloads
	if p.MIMEType != MIMETypeOgg {
		t.Errorf("MIMEType = %q, want %q", p.MIMEType, MIMETypeOgg)
	}
}
