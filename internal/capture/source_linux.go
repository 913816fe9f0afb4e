//go:build linux

package capture

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/sys/unix"
)

// evdevSource reads raw events from /dev/input event devices. Keyboards
// contribute key events; pointer devices contribute relative motion,
// buttons, and wheel events.
type evdevSource struct {
	mu   sync.Mutex
	x, y float64 // tracked cursor estimate, evdev only reports deltas
}

func newPlatformSource() Source {
	return &evdevSource{}
}

// event-device record layout on 64-bit kernels: two 8-byte time fields,
// then type, code, value.
const eventSize = 24

const (
	evSyn = 0x00
	evKey = 0x01
	evRel = 0x02

	relX      = 0x00
	relY      = 0x01
	relHWheel = 0x06
	relWheel  = 0x08

	btnMouseFirst = 0x110
	btnMouseLast  = 0x117

	valueRelease = 0
	valuePress   = 1
	valueRepeat  = 2
)

var buttonNames = map[uint16]string{
	0x110: "Left",
	0x111: "Right",
	0x112: "Middle",
	0x113: "Side",
	0x114: "Extra",
	0x115: "Forward",
	0x116: "Back",
	0x117: "Task",
}

// Run opens every discovered input device and reads events until the
// context ends. It returns ErrNotAvailable when no device can be opened.
func (s *evdevSource) Run(ctx context.Context, emit func(RawEvent)) error {
	devices, err := findInputDevices()
	if err != nil || len(devices) == 0 {
		return ErrNotAvailable
	}

	var fds []int
	for _, dev := range devices {
		fd, err := unix.Open(dev, unix.O_RDONLY, 0)
		if err != nil {
			continue
		}
		fds = append(fds, fd)
	}
	if len(fds) == 0 {
		return ErrNotAvailable
	}

	// Closing the descriptors unblocks the readers on cancellation.
	go func() {
		<-ctx.Done()
		for _, fd := range fds {
			unix.Close(fd)
		}
	}()

	var wg sync.WaitGroup
	for _, fd := range fds {
		wg.Add(1)
		go func(fd int) {
			defer wg.Done()
			s.readLoop(fd, emit)
		}(fd)
	}
	wg.Wait()

	return ctx.Err()
}

// readLoop parses event records from one device until the descriptor is
// closed.
func (s *evdevSource) readLoop(fd int, emit func(RawEvent)) {
	buf := make([]byte, eventSize*64)
	var dx, dy float64

	for {
		n, err := unix.Read(fd, buf)
		if err != nil || n < eventSize {
			return
		}

		for off := 0; off+eventSize <= n; off += eventSize {
			typ := binary.LittleEndian.Uint16(buf[off+16 : off+18])
			code := binary.LittleEndian.Uint16(buf[off+18 : off+20])
			value := int32(binary.LittleEndian.Uint32(buf[off+20 : off+24]))

			switch typ {
			case evKey:
				s.emitKey(code, value, emit)

			case evRel:
				switch code {
				case relX:
					dx += float64(value)
				case relY:
					dy += float64(value)
				case relWheel:
					emit(RawEvent{Kind: Wheel, DY: int(value)})
				case relHWheel:
					emit(RawEvent{Kind: Wheel, DX: int(value)})
				}

			case evSyn:
				if dx != 0 || dy != 0 {
					x, y := s.advance(dx, dy)
					dx, dy = 0, 0
					emit(RawEvent{Kind: Move, X: x, Y: y})
				}
			}
		}
	}
}

func (s *evdevSource) emitKey(code uint16, value int32, emit func(RawEvent)) {
	if code >= btnMouseFirst && code <= btnMouseLast {
		name := buttonNames[code]
		switch value {
		case valuePress:
			emit(RawEvent{Kind: ButtonDown, Button: name})
		case valueRelease:
			emit(RawEvent{Kind: ButtonUp, Button: name})
		}
		return
	}

	name := keyName(code)
	switch value {
	case valuePress, valueRepeat:
		emit(RawEvent{Kind: KeyDown, Key: name})
	case valueRelease:
		emit(RawEvent{Kind: KeyUp, Key: name})
	}
}

// advance applies a relative motion to the tracked cursor position,
// clamped at the origin.
func (s *evdevSource) advance(dx, dy float64) (float64, float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.x += dx
	s.y += dy
	if s.x < 0 {
		s.x = 0
	}
	if s.y < 0 {
		s.y = 0
	}
	return s.x, s.y
}

// findInputDevices scans /proc/bus/input/devices for keyboards and
// pointer devices and returns their event nodes.
func findInputDevices() ([]string, error) {
	f, err := os.Open("/proc/bus/input/devices")
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var devices []string
	var handler string
	wanted := false

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()

		if strings.HasPrefix(line, "H: Handlers=") {
			for _, part := range strings.Fields(line) {
				if strings.HasPrefix(part, "event") {
					handler = "/dev/input/" + part
				}
			}
		}

		// Key capability bitmaps long enough to cover real keys mark
		// keyboards; any REL bitmap marks a pointer device.
		if strings.HasPrefix(line, "B: KEY=") && len(line) > 10 {
			wanted = true
		}
		if strings.HasPrefix(line, "B: REL=") {
			wanted = true
		}

		if line == "" {
			if wanted && handler != "" {
				devices = append(devices, handler)
			}
			handler = ""
			wanted = false
		}
	}
	if wanted && handler != "" {
		devices = append(devices, handler)
	}

	return devices, scanner.Err()
}

// keyName maps an evdev key code to a readable identifier.
func keyName(code uint16) string {
	if name, ok := keyCodeNames[code]; ok {
		return name
	}
	return fmt.Sprintf("Key%d", code)
}

var keyCodeNames = map[uint16]string{
	1:   "Escape",
	2:   "Num1",
	3:   "Num2",
	4:   "Num3",
	5:   "Num4",
	6:   "Num5",
	7:   "Num6",
	8:   "Num7",
	9:   "Num8",
	10:  "Num9",
	11:  "Num0",
	12:  "Minus",
	13:  "Equal",
	14:  "Backspace",
	15:  "Tab",
	16:  "KeyQ",
	17:  "KeyW",
	18:  "KeyE",
	19:  "KeyR",
	20:  "KeyT",
	21:  "KeyY",
	22:  "KeyU",
	23:  "KeyI",
	24:  "KeyO",
	25:  "KeyP",
	26:  "LeftBracket",
	27:  "RightBracket",
	28:  "Return",
	29:  "ControlLeft",
	30:  "KeyA",
	31:  "KeyS",
	32:  "KeyD",
	33:  "KeyF",
	34:  "KeyG",
	35:  "KeyH",
	36:  "KeyJ",
	37:  "KeyK",
	38:  "KeyL",
	39:  "SemiColon",
	40:  "Quote",
	41:  "BackQuote",
	42:  "ShiftLeft",
	43:  "BackSlash",
	44:  "KeyZ",
	45:  "KeyX",
	46:  "KeyC",
	47:  "KeyV",
	48:  "KeyB",
	49:  "KeyN",
	50:  "KeyM",
	51:  "Comma",
	52:  "Dot",
	53:  "Slash",
	54:  "ShiftRight",
	56:  "Alt",
	57:  "Space",
	58:  "CapsLock",
	59:  "F1",
	60:  "F2",
	61:  "F3",
	62:  "F4",
	63:  "F5",
	64:  "F6",
	65:  "F7",
	66:  "F8",
	67:  "F9",
	68:  "F10",
	87:  "F11",
	88:  "F12",
	97:  "ControlRight",
	100: "AltGr",
	102: "Home",
	103: "UpArrow",
	104: "PageUp",
	105: "LeftArrow",
	106: "RightArrow",
	107: "End",
	108: "DownArrow",
	109: "PageDown",
	110: "Insert",
	111: "Delete",
	125: "MetaLeft",
	126: "MetaRight",
}
