//go:build windows

package platform

import (
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/idlelock/idlelock/internal/domain"
)

const (
	promptClassName = "IdleLockPrompt"
	promptTitle     = "IdleLock"
	promptWidth     = 360
	promptHeight    = 160

	wsPopup   = 0x80000000
	wsCaption = 0x00C00000
	wsSysMenu = 0x00080000
	wsVisible = 0x10000000
	wsChild   = 0x40000000

	wsExTopmost    = 0x00000008
	wsExToolWindow = 0x00000080

	ssCenter        = 0x1
	bsDefPushButton = 0x1
	pbsSmooth       = 0x1
	idCancel        = 2

	wmUser      = 0x0400
	pbmSetRange = wmUser + 1
	pbmSetStep  = wmUser + 4
	pbmStepIt   = wmUser + 5

	swpNoSize     = 0x0001
	swpNoMove     = 0x0002
	swpNoActivate = 0x0010
	swShow        = 5

	smCxScreen     = 0
	smCyScreen     = 1
	defaultGUIFont = 17
	iccProgress    = 0x00000020
)

// hwndTopmost is HWND_TOPMOST, (HWND)-1.
const hwndTopmost = ^uintptr(0)

type initCommonControlsEx struct {
	size uint32
	icc  uint32
}

// prompt is the countdown window: a message, a progress bar ranged over
// the grace period and a Cancel button.
type prompt struct {
	hwnd     uintptr
	label    uintptr
	progress uintptr

	// reasserting suppresses the WM_WINDOWPOSCHANGED our own SetWindowPos causes.
	reasserting bool
}

// openPrompt creates and shows the prompt. Runs on the message thread.
func openPrompt(instance uintptr, graceSeconds int) (*prompt, error) {
	icc := initCommonControlsEx{icc: iccProgress}
	icc.size = uint32(unsafe.Sizeof(icc))
	procInitCommonControlsEx.Call(uintptr(unsafe.Pointer(&icc)))

	if err := registerClass(instance, promptClassName, promptProcCB); err != nil {
		return nil, err
	}

	cx, _, _ := procGetSystemMetrics.Call(smCxScreen)
	cy, _, _ := procGetSystemMetrics.Call(smCyScreen)
	x := (int(cx) - promptWidth) / 2
	y := (int(cy) - promptHeight) / 2

	hwnd, err := createWindow(wsExTopmost|wsExToolWindow, promptClassName, promptTitle,
		wsPopup|wsCaption|wsSysMenu, uintptr(x), uintptr(y), promptWidth, promptHeight, 0, 0, instance)
	if err != nil {
		return nil, err
	}
	pr := &prompt{hwnd: hwnd}

	pr.label, err = createWindow(0, "STATIC", countdownText(graceSeconds),
		wsChild|wsVisible|ssCenter, 16, 16, promptWidth-40, 36, hwnd, 0, instance)
	if err != nil {
		pr.destroy()
		return nil, err
	}
	pr.progress, err = createWindow(0, "msctls_progress32", "",
		wsChild|wsVisible|pbsSmooth, 16, 58, promptWidth-40, 18, hwnd, 0, instance)
	if err != nil {
		pr.destroy()
		return nil, err
	}
	button, err := createWindow(0, "BUTTON", "Cancel",
		wsChild|wsVisible|bsDefPushButton, promptWidth/2-50, 86, 90, 26, hwnd, idCancel, instance)
	if err != nil {
		pr.destroy()
		return nil, err
	}

	font, _, _ := procGetStockObject.Call(defaultGUIFont)
	for _, h := range []uintptr{pr.label, button} {
		procSendMessageW.Call(h, wmSetFont, font, 1)
	}

	procSendMessageW.Call(pr.progress, pbmSetRange, 0, uintptr(graceSeconds)<<16)
	procSendMessageW.Call(pr.progress, pbmSetStep, 1, 0)

	procShowWindow.Call(hwnd, swShow)
	procSetForegroundWindow.Call(hwnd)
	return pr, nil
}

// step advances the progress bar and updates the message.
func (pr *prompt) step(remaining int) {
	procSendMessageW.Call(pr.progress, pbmStepIt, 0, 0)
	setText(pr.label, countdownText(remaining))
}

// destroy closes the window and its children.
func (pr *prompt) destroy() {
	if pr.hwnd != 0 {
		procDestroyWindow.Call(pr.hwnd)
		pr.hwnd = 0
	}
}

// reassertTopmost keeps the prompt above other topmost windows that were
// raised after it.
func (pr *prompt) reassertTopmost() {
	if pr.reasserting {
		return
	}
	pr.reasserting = true
	procSetWindowPos.Call(pr.hwnd, hwndTopmost, 0, 0, 0, 0, swpNoMove|swpNoSize|swpNoActivate)
	pr.reasserting = false
}

func promptProc(hwnd, message, wParam, lParam uintptr) uintptr {
	p := current.Load()
	if p == nil || p.prompt == nil || p.prompt.hwnd != hwnd {
		return defWindowProc(hwnd, message, wParam, lParam)
	}

	switch message {
	case wmCommand:
		if wParam&0xFFFF == idCancel {
			p.sink.Post(domain.PromptDismissed)
		}
		return 0
	case wmClose:
		p.sink.Post(domain.PromptDismissed)
		return 0
	case wmWindowPosChanged:
		p.prompt.reassertTopmost()
	}
	return defWindowProc(hwnd, message, wParam, lParam)
}

func setText(hwnd uintptr, text string) {
	t, err := windows.UTF16PtrFromString(text)
	if err != nil {
		return
	}
	procSetWindowTextW.Call(hwnd, uintptr(unsafe.Pointer(t)))
}
