package fipwire

import "testing"

func TestEncodeSize(t *testing.T) {
	b := NewPacket(RequestSetLED).Encode()
	if len(b) != PacketSize {
		t.Fatalf("encoded packet is %d bytes, want %d", len(b), PacketSize)
	}
}

func TestEncodeFieldOrder(t *testing.T) {
	p := ControlPacket{
		ServerID:     0x01020304,
		Page:         0x05,
		DataSize:     0x0607,
		HeaderError:  0x08,
		HeaderInfo:   0x09,
		Request:      RequestSetImage,
		Param1:       0x0A,
		Param2:       0x0B,
		Param3:       0x0C,
		RequestError: 0x0D,
		RequestInfo:  0x0E,
	}
	b := p.Encode()
	// Spot-check big-endian placement of the first and sixth fields.
	if b[0] != 0x01 || b[1] != 0x02 || b[2] != 0x03 || b[3] != 0x04 {
		t.Fatalf("server_id bytes wrong: % x", b[0:4])
	}
	if b[20] != 0 || b[21] != 0 || b[22] != 0 || b[23] != byte(RequestSetImage) {
		t.Fatalf("request bytes wrong: % x", b[20:24])
	}
}

func TestRoundTrip(t *testing.T) {
	requests := []Request{
		RequestFolderRemoved, RequestSaveFile, RequestSetImageFile,
		RequestSetImage, RequestFileOp, RequestStartServer,
		RequestFactoryProbe, RequestClearImage, RequestSetLED,
		Request(0xBEEF), // unknown opcodes round-trip too
	}
	for _, req := range requests {
		p := NewPacket(req)
		p.ServerID = 7
		p.Page = 255
		p.DataSize = 0x38400
		p.Param1 = 1
		p.Param2 = 0xFFFFFFFF
		p.Param3 = 3
		p.HeaderInfo = 11
		p.RequestInfo = 13

		out, err := DecodePacket(p.Encode())
		if err != nil {
			t.Fatalf("decode failed for %v: %v", req, err)
		}
		if out != p {
			t.Fatalf("round trip mismatch for %v:\n in: %+v\nout: %+v", req, p, out)
		}
	}
}

func TestDecodeShortBuffer(t *testing.T) {
	if _, err := DecodePacket(make([]byte, PacketSize-1)); err == nil {
		t.Fatalf("expected error for undersized buffer")
	}
}

func TestRequestKnown(t *testing.T) {
	if !RequestFactoryProbe.Known() {
		t.Errorf("factory probe should be catalogued")
	}
	if Request(0x55).Known() {
		t.Errorf("0x55 should not be catalogued")
	}
	// Unknown opcodes must still leave the packet inspectable.
	p := NewPacket(Request(0x55))
	p.RequestError = 4
	out, err := DecodePacket(p.Encode())
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if !out.HasError() {
		t.Errorf("error fields must survive an unknown opcode")
	}
}

func TestHasError(t *testing.T) {
	cases := []struct {
		header, request uint32
		want            bool
	}{
		{0, 0, false},
		{1, 0, true},
		{0, 1, true},
		{3, 9, true},
		{0xFFFFFFFF, 0, true},
	}
	for _, c := range cases {
		p := ControlPacket{HeaderError: c.header, RequestError: c.request}
		if p.HasError() != c.want {
			t.Errorf("HasError(header=%d, request=%d) = %v, want %v",
				c.header, c.request, p.HasError(), c.want)
		}
	}
}
