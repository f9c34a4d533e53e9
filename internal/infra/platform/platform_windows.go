//go:build windows

package platform

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/windows"

	"github.com/idlelock/idlelock/internal/domain"
)

var (
	user32   = windows.NewLazySystemDLL("user32.dll")
	kernel32 = windows.NewLazySystemDLL("kernel32.dll")
	wtsapi32 = windows.NewLazySystemDLL("wtsapi32.dll")
	shell32  = windows.NewLazySystemDLL("shell32.dll")
	comctl32 = windows.NewLazySystemDLL("comctl32.dll")
	gdi32    = windows.NewLazySystemDLL("gdi32.dll")

	procRegisterClassExW      = user32.NewProc("RegisterClassExW")
	procCreateWindowExW       = user32.NewProc("CreateWindowExW")
	procDestroyWindow         = user32.NewProc("DestroyWindow")
	procDefWindowProcW        = user32.NewProc("DefWindowProcW")
	procGetMessageW           = user32.NewProc("GetMessageW")
	procTranslateMessage      = user32.NewProc("TranslateMessage")
	procDispatchMessageW      = user32.NewProc("DispatchMessageW")
	procPostMessageW          = user32.NewProc("PostMessageW")
	procSendMessageW          = user32.NewProc("SendMessageW")
	procPostQuitMessage       = user32.NewProc("PostQuitMessage")
	procSetWindowsHookExW     = user32.NewProc("SetWindowsHookExW")
	procUnhookWindowsHookEx   = user32.NewProc("UnhookWindowsHookEx")
	procCallNextHookEx        = user32.NewProc("CallNextHookEx")
	procLockWorkStation       = user32.NewProc("LockWorkStation")
	procMessageBoxW           = user32.NewProc("MessageBoxW")
	procSetWindowPos          = user32.NewProc("SetWindowPos")
	procSetWindowTextW        = user32.NewProc("SetWindowTextW")
	procShowWindow            = user32.NewProc("ShowWindow")
	procSetForegroundWindow   = user32.NewProc("SetForegroundWindow")
	procGetSystemMetrics      = user32.NewProc("GetSystemMetrics")
	procLoadCursorW           = user32.NewProc("LoadCursorW")
	procGetModuleHandleW      = kernel32.NewProc("GetModuleHandleW")
	procGetTickCount64        = kernel32.NewProc("GetTickCount64")
	procWTSRegisterSession    = wtsapi32.NewProc("WTSRegisterSessionNotification")
	procWTSUnRegisterSession  = wtsapi32.NewProc("WTSUnRegisterSessionNotification")
	procSHQueryUserNotifState = shell32.NewProc("SHQueryUserNotificationState")
	procInitCommonControlsEx  = comctl32.NewProc("InitCommonControlsEx")
	procGetStockObject        = gdi32.NewProc("GetStockObject")
)

const (
	whKeyboardLL = 13
	whMouseLL    = 14
	hcAction     = 0

	wmDestroy          = 0x0002
	wmClose            = 0x0010
	wmEndSession       = 0x0016
	wmSetFont          = 0x0030
	wmWindowPosChanged = 0x0047
	wmCommand          = 0x0111
	wmWTSSessionChange = 0x02B1
	wmApp              = 0x8000
	wmAppOpenPrompt    = wmApp + 1
	wmAppStepPrompt    = wmApp + 2
	wmAppClosePrompt   = wmApp + 3

	wtsSessionLock       = 0x7
	wtsSessionUnlock     = 0x8
	notifyForThisSession = 0

	errorClassAlreadyExists = 1410

	// SHQueryUserNotificationState results that mean "present but not interacting".
	qunsNotPresent           = 1
	qunsBusy                 = 2
	qunsRunningD3DFullScreen = 3
	qunsQuietTime            = 6

	hostClassName = "IdleLockHost"
)

// msg mirrors the Win32 MSG structure.
type msg struct {
	hwnd     uintptr
	message  uint32
	wParam   uintptr
	lParam   uintptr
	time     uint32
	pt       struct{ x, y int32 }
	lPrivate uint32
}

// wndClassEx mirrors WNDCLASSEXW.
type wndClassEx struct {
	cbSize        uint32
	style         uint32
	lpfnWndProc   uintptr
	cbClsExtra    int32
	cbWndExtra    int32
	hInstance     uintptr
	hIcon         uintptr
	hCursor       uintptr
	hbrBackground uintptr
	lpszMenuName  *uint16
	lpszClassName *uint16
	hIconSm       uintptr
}

// current is the started platform. Low-level hooks and window procedures
// are process-wide, so only one Platform may be running at a time.
var current atomic.Pointer[Platform]

// Callbacks are created once: the runtime caps the number of callbacks.
var (
	callbackOnce   sync.Once
	keyboardHookCB uintptr
	mouseHookCB    uintptr
	hostProcCB     uintptr
	promptProcCB   uintptr
)

func initCallbacks() {
	callbackOnce.Do(func() {
		keyboardHookCB = windows.NewCallback(keyboardHook)
		mouseHookCB = windows.NewCallback(mouseHook)
		hostProcCB = windows.NewCallback(hostProc)
		promptProcCB = windows.NewCallback(promptProc)
	})
}

// Platform is the Win32 implementation. Hooks, session notifications and
// the prompt all live on one locked OS thread running a message pump; the
// guard loop drives the prompt by sending messages to the host window.
type Platform struct {
	log  *logrus.Entry
	sink domain.ActivitySink

	instance uintptr
	host     uintptr
	keyHook  uintptr
	ptrHook  uintptr
	session  bool
	prompt   *prompt

	promptErr error
	done      chan struct{}
	closeOnce sync.Once
}

// New creates the Windows platform.
func New(log *logrus.Entry) (domain.Platform, error) {
	return &Platform{log: log, done: make(chan struct{})}, nil
}

func (p *Platform) Ticks() uint64 {
	r, _, _ := procGetTickCount64.Call()
	return uint64(r)
}

// Start spawns the message thread and waits until hooks and session
// notifications are registered.
func (p *Platform) Start(sink domain.ActivitySink) error {
	if !current.CompareAndSwap(nil, p) {
		return fmt.Errorf("%w: another platform instance is running", domain.ErrHookFailed)
	}
	p.sink = sink
	initCallbacks()

	ready := make(chan error, 1)
	go p.pump(ready)
	if err := <-ready; err != nil {
		current.CompareAndSwap(p, nil)
		return err
	}
	return nil
}

func (p *Platform) pump(ready chan<- error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(p.done)

	if err := p.setup(); err != nil {
		p.teardown()
		ready <- err
		return
	}
	ready <- nil

	var m msg
	for {
		r, _, err := procGetMessageW.Call(uintptr(unsafe.Pointer(&m)), 0, 0, 0)
		switch int32(r) {
		case -1:
			p.log.WithError(err).Error("message loop failed")
			p.teardown()
			return
		case 0:
			return
		}
		procTranslateMessage.Call(uintptr(unsafe.Pointer(&m)))
		procDispatchMessageW.Call(uintptr(unsafe.Pointer(&m)))
	}
}

func (p *Platform) setup() error {
	p.instance, _, _ = procGetModuleHandleW.Call(0)

	if err := registerClass(p.instance, hostClassName, hostProcCB); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrHookFailed, err)
	}
	host, err := createWindow(0, hostClassName, "IdleLock hidden", 0, 0, 0, 0, 0, 0, 0, p.instance)
	if err != nil {
		return fmt.Errorf("%w: host window: %v", domain.ErrHookFailed, err)
	}
	p.host = host

	p.keyHook, _, err = procSetWindowsHookExW.Call(whKeyboardLL, keyboardHookCB, p.instance, 0)
	if p.keyHook == 0 {
		return fmt.Errorf("%w: keyboard: %v", domain.ErrHookFailed, err)
	}
	p.ptrHook, _, err = procSetWindowsHookExW.Call(whMouseLL, mouseHookCB, p.instance, 0)
	if p.ptrHook == 0 {
		return fmt.Errorf("%w: mouse: %v", domain.ErrHookFailed, err)
	}

	r, _, err := procWTSRegisterSession.Call(p.host, notifyForThisSession)
	if r == 0 {
		return fmt.Errorf("%w: %v", domain.ErrSessionNotify, err)
	}
	p.session = true

	p.log.WithField("tick", p.Ticks()).Debug("hooks and session notifications registered")
	return nil
}

// teardown releases everything setup acquired. Runs on the message thread
// and is safe to call more than once.
func (p *Platform) teardown() {
	if p.prompt != nil {
		p.prompt.destroy()
		p.prompt = nil
	}
	if p.keyHook != 0 {
		procUnhookWindowsHookEx.Call(p.keyHook)
		p.keyHook = 0
	}
	if p.ptrHook != 0 {
		procUnhookWindowsHookEx.Call(p.ptrHook)
		p.ptrHook = 0
	}
	if p.session {
		procWTSUnRegisterSession.Call(p.host)
		p.session = false
	}
}

func (p *Platform) OpenPrompt(graceSeconds int) error {
	if p.host == 0 {
		return domain.ErrPromptFailed
	}
	r, _, _ := procSendMessageW.Call(p.host, wmAppOpenPrompt, uintptr(graceSeconds), 0)
	if r == 0 {
		return p.promptErr
	}
	return nil
}

func (p *Platform) StepPrompt(remaining int) {
	if p.host != 0 {
		procPostMessageW.Call(p.host, wmAppStepPrompt, uintptr(remaining), 0)
	}
}

func (p *Platform) ClosePrompt() {
	if p.host != 0 {
		procPostMessageW.Call(p.host, wmAppClosePrompt, 0, 0)
	}
}

func (p *Platform) UserEngaged() bool {
	var state int32
	hr, _, _ := procSHQueryUserNotifState.Call(uintptr(unsafe.Pointer(&state)))
	if hr != 0 {
		return false
	}
	switch state {
	case qunsNotPresent, qunsBusy, qunsRunningD3DFullScreen, qunsQuietTime:
		return true
	}
	return false
}

func (p *Platform) LockSession() error {
	r, _, err := procLockWorkStation.Call()
	if r == 0 {
		return fmt.Errorf("%w: %v", domain.ErrLockFailed, err)
	}
	return nil
}

func (p *Platform) Alert(title, message string) {
	t, _ := windows.UTF16PtrFromString(title)
	m, _ := windows.UTF16PtrFromString(message)
	const mbOK, mbIconError, mbTopmost = 0x0, 0x10, 0x40000
	procMessageBoxW.Call(0, uintptr(unsafe.Pointer(m)), uintptr(unsafe.Pointer(t)), mbOK|mbIconError|mbTopmost)
}

// Close destroys the host window, which unhooks and ends the message loop.
func (p *Platform) Close() error {
	p.closeOnce.Do(func() {
		if p.host == 0 {
			return
		}
		procPostMessageW.Call(p.host, wmClose, 0, 0)
		<-p.done
		p.host = 0
		current.CompareAndSwap(p, nil)
	})
	return nil
}

// ─── Callbacks (message thread) ─────────────────────────────────────────────

func keyboardHook(code, wParam, lParam uintptr) uintptr {
	if int32(code) == hcAction {
		if p := current.Load(); p != nil {
			p.sink.Observe(domain.KeyboardActivity)
		}
	}
	r, _, _ := procCallNextHookEx.Call(0, code, wParam, lParam)
	return r
}

func mouseHook(code, wParam, lParam uintptr) uintptr {
	if int32(code) == hcAction {
		if p := current.Load(); p != nil {
			p.sink.Observe(domain.PointerActivity)
		}
	}
	r, _, _ := procCallNextHookEx.Call(0, code, wParam, lParam)
	return r
}

func hostProc(hwnd, message, wParam, lParam uintptr) uintptr {
	p := current.Load()
	if p == nil {
		return defWindowProc(hwnd, message, wParam, lParam)
	}

	switch message {
	case wmWTSSessionChange:
		switch wParam {
		case wtsSessionLock:
			p.sink.Post(domain.SessionLock)
		case wtsSessionUnlock:
			p.sink.Post(domain.SessionUnlock)
		}
		return 0

	case wmAppOpenPrompt:
		if p.prompt != nil {
			return 1
		}
		pr, err := openPrompt(p.instance, int(wParam))
		if err != nil {
			p.promptErr = fmt.Errorf("%w: %v", domain.ErrPromptFailed, err)
			return 0
		}
		p.prompt = pr
		return 1

	case wmAppStepPrompt:
		if p.prompt != nil {
			p.prompt.step(int(wParam))
		}
		return 0

	case wmAppClosePrompt:
		if p.prompt != nil {
			p.prompt.destroy()
			p.prompt = nil
		}
		return 0

	case wmEndSession:
		if wParam != 0 {
			p.log.Info("session ending, releasing hooks")
			p.teardown()
		}
		return 0

	case wmClose:
		procDestroyWindow.Call(hwnd)
		return 0

	case wmDestroy:
		if p.keyHook == 0 && p.ptrHook == 0 {
			p.log.Error("input hooks already released before shutdown")
		}
		p.teardown()
		procPostQuitMessage.Call(0)
		return 0
	}
	return defWindowProc(hwnd, message, wParam, lParam)
}

func defWindowProc(hwnd, message, wParam, lParam uintptr) uintptr {
	r, _, _ := procDefWindowProcW.Call(hwnd, message, wParam, lParam)
	return r
}

func registerClass(instance uintptr, name string, proc uintptr) error {
	className, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return err
	}
	const idcArrow, colorBtnFace = 32512, 15
	cursor, _, _ := procLoadCursorW.Call(0, idcArrow)
	wc := wndClassEx{
		lpfnWndProc:   proc,
		hInstance:     instance,
		hCursor:       cursor,
		hbrBackground: colorBtnFace + 1,
		lpszClassName: className,
	}
	wc.cbSize = uint32(unsafe.Sizeof(wc))
	r, _, callErr := procRegisterClassExW.Call(uintptr(unsafe.Pointer(&wc)))
	if r == 0 {
		if errno, ok := callErr.(windows.Errno); ok && errno == errorClassAlreadyExists {
			return nil
		}
		return fmt.Errorf("register class %s: %v", name, callErr)
	}
	return nil
}

// createWindow wraps CreateWindowExW. id is the control identifier for
// child windows.
func createWindow(exStyle uintptr, class, title string, style, x, y, w, h, parent, id, instance uintptr) (uintptr, error) {
	c, err := windows.UTF16PtrFromString(class)
	if err != nil {
		return 0, err
	}
	t, err := windows.UTF16PtrFromString(title)
	if err != nil {
		return 0, err
	}
	hwnd, _, callErr := procCreateWindowExW.Call(
		exStyle,
		uintptr(unsafe.Pointer(c)),
		uintptr(unsafe.Pointer(t)),
		style, x, y, w, h,
		parent, id, instance, 0,
	)
	if hwnd == 0 {
		return 0, fmt.Errorf("create %s window: %v", class, callErr)
	}
	return hwnd, nil
}
