package keymap

import (
	"slices"
	"strings"
)

// Linux input key codes (from <linux/input-event-codes.h>), by key name.
// Names follow the unshifted character on a US keyboard where there is one.
var linuxCodes = map[string]uint16{
	"esc":        1,
	"1":          2,
	"2":          3,
	"3":          4,
	"4":          5,
	"5":          6,
	"6":          7,
	"7":          8,
	"8":          9,
	"9":          10,
	"0":          11,
	"-":          12,
	"=":          13,
	"backspace":  14,
	"tab":        15,
	"q":          16,
	"w":          17,
	"e":          18,
	"r":          19,
	"t":          20,
	"y":          21,
	"u":          22,
	"i":          23,
	"o":          24,
	"p":          25,
	"[":          26,
	"]":          27,
	"enter":      28,
	"leftctrl":   29,
	"a":          30,
	"s":          31,
	"d":          32,
	"f":          33,
	"g":          34,
	"h":          35,
	"j":          36,
	"k":          37,
	"l":          38,
	";":          39,
	"'":          40,
	"`":          41,
	"leftshift":  42,
	"\\":         43,
	"z":          44,
	"x":          45,
	"c":          46,
	"v":          47,
	"b":          48,
	"n":          49,
	"m":          50,
	",":          51,
	".":          52,
	"/":          53,
	"rightshift": 54,
	"leftalt":    56,
	"space":      57,
	"f1":         59,
	"f2":         60,
	"f3":         61,
	"f4":         62,
	"f5":         63,
	"f6":         64,
	"f7":         65,
	"f8":         66,
	"f9":         67,
	"f10":        68,
	"f11":        87,
	"f12":        88,
	"home":       102,
	"up":         103,
	"pageup":     104,
	"left":       105,
	"right":      106,
	"end":        107,
	"down":       108,
	"pagedown":   109,
	"insert":     110,
	"delete":     111,
	"pause":      119,
}

// USB HID keyboard usage IDs (HID Usage Tables, page 0x07), by key name.
var hidUsages = map[string]uint8{
	"a":          0x04,
	"b":          0x05,
	"c":          0x06,
	"d":          0x07,
	"e":          0x08,
	"f":          0x09,
	"g":          0x0A,
	"h":          0x0B,
	"i":          0x0C,
	"j":          0x0D,
	"k":          0x0E,
	"l":          0x0F,
	"m":          0x10,
	"n":          0x11,
	"o":          0x12,
	"p":          0x13,
	"q":          0x14,
	"r":          0x15,
	"s":          0x16,
	"t":          0x17,
	"u":          0x18,
	"v":          0x19,
	"w":          0x1A,
	"x":          0x1B,
	"y":          0x1C,
	"z":          0x1D,
	"1":          0x1E,
	"2":          0x1F,
	"3":          0x20,
	"4":          0x21,
	"5":          0x22,
	"6":          0x23,
	"7":          0x24,
	"8":          0x25,
	"9":          0x26,
	"0":          0x27,
	"enter":      0x28,
	"esc":        0x29,
	"backspace":  0x2A,
	"tab":        0x2B,
	"space":      0x2C,
	"-":          0x2D,
	"=":          0x2E,
	"[":          0x2F,
	"]":          0x30,
	"\\":         0x31,
	";":          0x33,
	"'":          0x34,
	"`":          0x35,
	",":          0x36,
	".":          0x37,
	"/":          0x38,
	"f1":         0x3A,
	"f2":         0x3B,
	"f3":         0x3C,
	"f4":         0x3D,
	"f5":         0x3E,
	"f6":         0x3F,
	"f7":         0x40,
	"f8":         0x41,
	"f9":         0x42,
	"f10":        0x43,
	"f11":        0x44,
	"f12":        0x45,
	"pause":      0x48,
	"insert":     0x49,
	"home":       0x4A,
	"pageup":     0x4B,
	"delete":     0x4C,
	"end":        0x4D,
	"pagedown":   0x4E,
	"right":      0x4F,
	"left":       0x50,
	"down":       0x51,
	"up":         0x52,
	"leftctrl":   0xE0,
	"leftshift":  0xE1,
	"leftalt":    0xE2,
	"rightshift": 0xE5,
}

// Spelled-out aliases for punctuation, so YAML files need no quoting tricks.
var aliases = map[string]string{
	"escape":       "esc",
	"return":       "enter",
	"minus":        "-",
	"equal":        "=",
	"leftbrace":    "[",
	"rightbrace":   "]",
	"semicolon":    ";",
	"apostrophe":   "'",
	"grave":        "`",
	"backslash":    "\\",
	"comma":        ",",
	"dot":          ".",
	"period":       ".",
	"slash":        "/",
	"spacebar":     "space",
	"pgup":         "pageup",
	"pgdn":         "pagedown",
	"del":          "delete",
	"ctrl":         "leftctrl",
	"shift":        "leftshift",
	"alt":          "leftalt",
	"pause_break":  "pause",
	"scroll_pause": "pause",

	// ISO keyboards carry # on the key the US layout calls backslash.
	"#":          "\\",
	"numbersign": "\\",
}

// Normalize lower-cases a key name and resolves aliases.
func Normalize(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" && name != "" {
		return "space"
	}
	if a, ok := aliases[n]; ok {
		return a
	}
	return n
}

// LinuxCode returns the input key code for a key name.
func LinuxCode(name string) (uint16, bool) {
	c, ok := linuxCodes[Normalize(name)]
	return c, ok
}

// HIDUsage returns the USB HID usage for a key name.
func HIDUsage(name string) (uint8, bool) {
	u, ok := hidUsages[Normalize(name)]
	return u, ok
}

// KeyNames lists every key name known to the Linux table, sorted.
func KeyNames() []string {
	out := make([]string, 0, len(linuxCodes))
	for n := range linuxCodes {
		out = append(out, n)
	}
	slices.Sort(out)
	return out
}
