//go:build linux

package hotkey

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/micmonay/keybd_event"
)

// DefaultSettle is how long a fresh uinput device needs before the
// compositor accepts its events.
const DefaultSettle = 2 * time.Second

type keyBonding interface {
	SetKeys(keys ...int)
	HasALT(bool)
	HasCTRL(bool)
	HasSHIFT(bool)
	HasSuper(bool)
	Launching() error
}

// Keybd injects chords through a virtual uinput keyboard.
type Keybd struct {
	Settle time.Duration

	newBonding func() (keyBonding, error)
	now        func() time.Time

	once    sync.Once
	initErr error
	readyAt time.Time

	mu sync.Mutex
	kb keyBonding
}

func NewKeybd() *Keybd {
	return &Keybd{Settle: DefaultSettle}
}

// Warmup creates the virtual device so the settle delay elapses before the
// first chord is needed.
func (k *Keybd) Warmup() error {
	return k.init()
}

func (k *Keybd) init() error {
	k.once.Do(func() {
		newBonding := k.newBonding
		if newBonding == nil {
			newBonding = newKeyBonding
		}
		now := k.now
		if now == nil {
			now = time.Now
		}

		kb, err := newBonding()
		if err != nil {
			k.initErr = fmt.Errorf("create virtual keyboard: %w", err)
			return
		}
		k.kb = kb
		k.readyAt = now().Add(k.Settle)
	})
	return k.initErr
}

func (k *Keybd) Send(ctx context.Context, raw string) error {
	combo, err := ParseCombo(raw)
	if err != nil {
		return err
	}
	code, ok := keyCodes[combo.Key]
	if !ok {
		return fmt.Errorf("key %q has no uinput code", combo.Key)
	}
	if err := k.init(); err != nil {
		return err
	}
	if err := k.waitReady(ctx); err != nil {
		return err
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	k.kb.SetKeys(code)
	k.kb.HasCTRL(combo.Ctrl)
	k.kb.HasALT(combo.Alt)
	k.kb.HasSHIFT(combo.Shift)
	k.kb.HasSuper(combo.Super)
	if err := k.kb.Launching(); err != nil {
		return fmt.Errorf("send %s: %w", combo, err)
	}
	return nil
}

func (k *Keybd) waitReady(ctx context.Context) error {
	now := k.now
	if now == nil {
		now = time.Now
	}
	wait := k.readyAt.Sub(now())
	if wait <= 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func newKeyBonding() (keyBonding, error) {
	kb, err := keybd_event.NewKeyBonding()
	if err != nil {
		return nil, err
	}
	return &kb, nil
}

var keyCodes = map[string]int{
	"a": keybd_event.VK_A, "b": keybd_event.VK_B, "c": keybd_event.VK_C, "d": keybd_event.VK_D,
	"e": keybd_event.VK_E, "f": keybd_event.VK_F, "g": keybd_event.VK_G, "h": keybd_event.VK_H,
	"i": keybd_event.VK_I, "j": keybd_event.VK_J, "k": keybd_event.VK_K, "l": keybd_event.VK_L,
	"m": keybd_event.VK_M, "n": keybd_event.VK_N, "o": keybd_event.VK_O, "p": keybd_event.VK_P,
	"q": keybd_event.VK_Q, "r": keybd_event.VK_R, "s": keybd_event.VK_S, "t": keybd_event.VK_T,
	"u": keybd_event.VK_U, "v": keybd_event.VK_V, "w": keybd_event.VK_W, "x": keybd_event.VK_X,
	"y": keybd_event.VK_Y, "z": keybd_event.VK_Z,

	"0": keybd_event.VK_0, "1": keybd_event.VK_1, "2": keybd_event.VK_2, "3": keybd_event.VK_3,
	"4": keybd_event.VK_4, "5": keybd_event.VK_5, "6": keybd_event.VK_6, "7": keybd_event.VK_7,
	"8": keybd_event.VK_8, "9": keybd_event.VK_9,

	"f1": keybd_event.VK_F1, "f2": keybd_event.VK_F2, "f3": keybd_event.VK_F3, "f4": keybd_event.VK_F4,
	"f5": keybd_event.VK_F5, "f6": keybd_event.VK_F6, "f7": keybd_event.VK_F7, "f8": keybd_event.VK_F8,
	"f9": keybd_event.VK_F9, "f10": keybd_event.VK_F10, "f11": keybd_event.VK_F11, "f12": keybd_event.VK_F12,
	"f13": keybd_event.VK_F13, "f14": keybd_event.VK_F14, "f15": keybd_event.VK_F15, "f16": keybd_event.VK_F16,
	"f17": keybd_event.VK_F17, "f18": keybd_event.VK_F18, "f19": keybd_event.VK_F19, "f20": keybd_event.VK_F20,
	"f21": keybd_event.VK_F21, "f22": keybd_event.VK_F22, "f23": keybd_event.VK_F23, "f24": keybd_event.VK_F24,

	"space":    keybd_event.VK_SPACE,
	"enter":    keybd_event.VK_ENTER,
	"tab":      keybd_event.VK_TAB,
	"esc":      keybd_event.VK_ESC,
	"home":     keybd_event.VK_HOME,
	"end":      keybd_event.VK_END,
	"insert":   keybd_event.VK_INSERT,
	"delete":   keybd_event.VK_DELETE,
	"pageup":   keybd_event.VK_PAGEUP,
	"pagedown": keybd_event.VK_PAGEDOWN,
	"up":       keybd_event.VK_UP,
	"down":     keybd_event.VK_DOWN,
	"left":     keybd_event.VK_LEFT,
	"right":    keybd_event.VK_RIGHT,
	"print":    keybd_event.VK_SYSRQ,
}
