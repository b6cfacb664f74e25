//go:build linux

package main

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"lyrica/internal/playback"
)

// uinput ioctls (from <linux/uinput.h>)
const (
	uiSetEvBit   = 0x40045564
	uiSetKeyBit  = 0x40045565
	uiDevCreate  = 0x5501
	uiDevDestroy = 0x5502

	busVirtual = 0x06
)

// uinputUserDev mirrors struct uinput_user_dev.
type uinputUserDev struct {
	Name         [80]byte
	BusType      uint16
	Vendor       uint16
	Product      uint16
	Version      uint16
	FFEffectsMax uint32
	AbsMax       [64]int32
	AbsMin       [64]int32
	AbsFuzz      [64]int32
	AbsFlat      [64]int32
}

// uinputSink is a virtual keyboard. Key codes are Linux input key codes.
type uinputSink struct {
	logger *slog.Logger

	mu   sync.Mutex
	f    *os.File
	down map[playback.KeyCode]struct{}
}

// openUinputSink creates a virtual keyboard able to emit the given key codes.
func openUinputSink(path string, codes []playback.KeyCode, logger *slog.Logger) (*uinputSink, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w (tip: load the uinput module and grant write access)", path, err)
	}
	fd := int(f.Fd())

	fail := func(err error) (*uinputSink, error) {
		_ = f.Close()
		return nil, err
	}

	if err := unix.IoctlSetInt(fd, uiSetEvBit, EV_KEY); err != nil {
		return fail(fmt.Errorf("UI_SET_EVBIT EV_KEY: %w", err))
	}
	if err := unix.IoctlSetInt(fd, uiSetEvBit, EV_SYN); err != nil {
		return fail(fmt.Errorf("UI_SET_EVBIT EV_SYN: %w", err))
	}
	for _, c := range codes {
		if err := unix.IoctlSetInt(fd, uiSetKeyBit, int(c)); err != nil {
			return fail(fmt.Errorf("UI_SET_KEYBIT %d: %w", c, err))
		}
	}

	dev := uinputUserDev{BusType: busVirtual, Vendor: 0x1209, Product: 0x4C59, Version: 1}
	copy(dev.Name[:], "lyrica virtual keyboard")

	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.NativeEndian, &dev); err != nil {
		return fail(fmt.Errorf("encode uinput_user_dev: %w", err))
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		return fail(fmt.Errorf("write uinput_user_dev: %w", err))
	}
	if err := ioctlNoArg(fd, uiDevCreate); err != nil {
		return fail(fmt.Errorf("UI_DEV_CREATE: %w", err))
	}

	logger.Info("uinput: virtual keyboard created", "device", path, "keys", len(codes))

	return &uinputSink{
		logger: logger.With("sink", "uinput"),
		f:      f,
		down:   make(map[playback.KeyCode]struct{}),
	}, nil
}

func ioctlNoArg(fd int, req uintptr) error {
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), req, 0); errno != 0 {
		return errno
	}
	return nil
}

func (s *uinputSink) Press(code playback.KeyCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.emit(code, evValuePress); err != nil {
		return err
	}
	s.down[code] = struct{}{}
	return nil
}

func (s *uinputSink) Release(code playback.KeyCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.emit(code, evValueRelease); err != nil {
		return err
	}
	delete(s.down, code)
	return nil
}

// emit writes one key event followed by SYN_REPORT. Caller holds mu.
func (s *uinputSink) emit(code playback.KeyCode, value int32) error {
	if s.f == nil {
		return fmt.Errorf("uinput: device closed")
	}

	now := time.Now()
	evs := [2]inputEvent{
		{Sec: now.Unix(), Usec: int64(now.Nanosecond() / 1000), Type: EV_KEY, Code: uint16(code), Value: value},
		{Sec: now.Unix(), Usec: int64(now.Nanosecond() / 1000), Type: EV_SYN, Code: SYN_REPORT},
	}

	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.NativeEndian, &evs); err != nil {
		return fmt.Errorf("uinput: encode event: %w", err)
	}
	if _, err := s.f.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("uinput: write: %w", err)
	}
	return nil
}

// Close releases keys that are still down and destroys the device.
func (s *uinputSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}

	for code := range s.down {
		if err := s.emit(code, evValueRelease); err != nil {
			s.logger.Warn("uinput: release on close failed", "code", code, "error", err)
		}
	}
	clear(s.down)

	err := ioctlNoArg(int(s.f.Fd()), uiDevDestroy)
	if cerr := s.f.Close(); cerr != nil && err == nil {
		err = cerr
	}
	s.f = nil
	s.logger.Info("uinput: virtual keyboard destroyed")
	return err
}
