package main

import "lyrica/internal/playback"

const (
	frameSOF0 = 0xAA
	frameSOF1 = 0x55

	cmdKeyDown    = 0x20
	cmdKeyUp      = 0x21
	cmdReleaseAll = 0x22
)

// hidFrame is one command for the USB-HID bridge microcontroller.
type hidFrame struct {
	Cmd   byte
	Usage byte // HID usage; unused for cmdReleaseAll
}

// Encode builds the on-wire representation:
//
//	[SOF0][SOF1][LEN][CMD][payload...][CKS]
//
// LEN counts CMD plus payload; CKS is the XOR of LEN, CMD and the payload.
func (f hidFrame) Encode() []byte {
	var payload []byte
	if f.Cmd != cmdReleaseAll {
		payload = []byte{f.Usage}
	}

	length := byte(len(payload) + 1) // +1 for CMD byte
	cks := length ^ f.Cmd
	for _, b := range payload {
		cks ^= b
	}

	out := []byte{frameSOF0, frameSOF1, length, f.Cmd}
	out = append(out, payload...)
	out = append(out, cks)
	return out
}

func keyFrame(down bool, code playback.KeyCode) hidFrame {
	cmd := byte(cmdKeyUp)
	if down {
		cmd = cmdKeyDown
	}
	return hidFrame{Cmd: cmd, Usage: byte(code)}
}
