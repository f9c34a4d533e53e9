//go:build linux

package platform

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/screensaver"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/godbus/dbus/v5"
	"github.com/sirupsen/logrus"

	"github.com/idlelock/idlelock/internal/domain"
)

const (
	screenSaverName  = "org.freedesktop.ScreenSaver"
	screenSaverPath  = "/org/freedesktop/ScreenSaver"
	gnomeSaverName   = "org.gnome.ScreenSaver"
	gnomeSaverPath   = "/org/gnome/ScreenSaver"
	notificationName = "org.freedesktop.Notifications"
	notificationPath = "/org/freedesktop/Notifications"
	sessionMgrName   = "org.gnome.SessionManager"
	sessionMgrPath   = "/org/gnome/SessionManager"

	appName         = "idlelock"
	cancelAction    = "cancel"
	urgencyCritical = byte(2)

	// closedByUser is the NotificationClosed reason for an explicit dismissal.
	closedByUser = uint32(2)

	// inhibitIdle is the GNOME session manager flag for "inhibit idle".
	inhibitIdle = uint32(8)

	inputPoll   = 200 * time.Millisecond
	callTimeout = 2 * time.Second
)

// idleSource reports how long ago the user last produced input.
type idleSource interface {
	sinceInput() (time.Duration, error)
	close()
}

// xSource queries the X screensaver extension.
type xSource struct {
	conn *xgb.Conn
	root xproto.Drawable
}

func newXSource() (*xSource, error) {
	conn, err := xgb.NewConn()
	if err != nil {
		return nil, err
	}
	if err := screensaver.Init(conn); err != nil {
		conn.Close()
		return nil, err
	}
	root := xproto.Setup(conn).DefaultScreen(conn).Root
	return &xSource{conn: conn, root: xproto.Drawable(root)}, nil
}

func (s *xSource) sinceInput() (time.Duration, error) {
	info, err := screensaver.QueryInfo(s.conn, s.root).Reply()
	if err != nil {
		return 0, err
	}
	return time.Duration(info.MsSinceUserInput) * time.Millisecond, nil
}

func (s *xSource) close() { s.conn.Close() }

// busSource asks the session's screensaver service. Resolution is one second.
type busSource struct {
	obj dbus.BusObject
}

func (s *busSource) sinceInput() (time.Duration, error) {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	var seconds uint32
	if err := s.obj.CallWithContext(ctx, screenSaverName+".GetSessionIdleTime", 0).Store(&seconds); err != nil {
		return 0, err
	}
	return time.Duration(seconds) * time.Second, nil
}

func (s *busSource) close() {}

// Platform is the Linux implementation: input from X11 (or the session
// screensaver service under Wayland), lock state and locking through
// org.freedesktop.ScreenSaver, and the prompt as a desktop notification.
type Platform struct {
	log  *logrus.Entry
	base time.Time

	conn    *dbus.Conn
	idle    idleSource
	signals chan *dbus.Signal
	sink    domain.ActivitySink
	lock    lockState // owned by watchSignals

	mu       sync.Mutex
	notifyID uint32
	grace    int

	stop      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New creates the Linux platform. Nothing is connected until Start.
func New(log *logrus.Entry) (domain.Platform, error) {
	return &Platform{log: log, base: time.Now(), stop: make(chan struct{})}, nil
}

// Ticks returns milliseconds on the monotonic clock since New.
func (p *Platform) Ticks() uint64 {
	return uint64(time.Since(p.base).Milliseconds()) + 1
}

func (p *Platform) Start(sink domain.ActivitySink) error {
	p.sink = sink

	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return fmt.Errorf("%w: session bus: %v", domain.ErrSessionNotify, err)
	}
	p.conn = conn

	for _, iface := range []string{screenSaverName, gnomeSaverName} {
		if err := conn.AddMatchSignal(
			dbus.WithMatchInterface(iface),
			dbus.WithMatchMember("ActiveChanged"),
		); err != nil {
			return fmt.Errorf("%w: %s: %v", domain.ErrSessionNotify, iface, err)
		}
	}
	for _, member := range []string{"ActionInvoked", "NotificationClosed"} {
		if err := conn.AddMatchSignal(
			dbus.WithMatchInterface(notificationName),
			dbus.WithMatchMember(member),
		); err != nil {
			p.log.WithError(err).WithField("signal", member).Warn("prompt dismissal unavailable")
		}
	}

	p.idle, err = p.openIdleSource()
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrHookFailed, err)
	}

	p.signals = make(chan *dbus.Signal, 16)
	conn.Signal(p.signals)

	p.wg.Add(2)
	go p.watchSignals()
	go p.pollInput()
	return nil
}

func (p *Platform) openIdleSource() (idleSource, error) {
	xs, xerr := newXSource()
	if xerr == nil {
		p.log.Debug("input source: X screensaver extension")
		return xs, nil
	}

	bs := &busSource{obj: p.conn.Object(screenSaverName, screenSaverPath)}
	if _, err := bs.sinceInput(); err != nil {
		return nil, fmt.Errorf("no input source: x11: %v; screensaver: %v", xerr, err)
	}
	p.log.WithError(xerr).Info("X11 unavailable, polling session idle time")
	return bs, nil
}

func (p *Platform) pollInput() {
	defer p.wg.Done()
	ticker := time.NewTicker(inputPoll)
	defer ticker.Stop()
	tracker := newInputTracker(inputPoll)

	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			since, err := p.idle.sinceInput()
			if err != nil {
				p.log.WithError(err).Debug("query input idle time")
				continue
			}
			// The sources do not tell keyboard from pointer input.
			if tracker.seen(since) {
				p.sink.Report(domain.KeyboardActivity)
			}
		}
	}
}

func (p *Platform) watchSignals() {
	defer p.wg.Done()
	for {
		select {
		case <-p.stop:
			return
		case sig, ok := <-p.signals:
			if !ok {
				return
			}
			p.handleSignal(sig)
		}
	}
}

func (p *Platform) handleSignal(sig *dbus.Signal) {
	switch sig.Name {
	case screenSaverName + ".ActiveChanged", gnomeSaverName + ".ActiveChanged":
		if len(sig.Body) < 1 {
			return
		}
		active, ok := sig.Body[0].(bool)
		if !ok || !p.lock.changed(active) {
			return
		}
		if active {
			p.sink.Post(domain.SessionLock)
		} else {
			p.sink.Post(domain.SessionUnlock)
		}

	case notificationName + ".ActionInvoked":
		if len(sig.Body) < 2 {
			return
		}
		id, _ := sig.Body[0].(uint32)
		key, _ := sig.Body[1].(string)
		if key == cancelAction && p.isPrompt(id) {
			p.sink.Post(domain.PromptDismissed)
		}

	case notificationName + ".NotificationClosed":
		if len(sig.Body) < 2 {
			return
		}
		id, _ := sig.Body[0].(uint32)
		reason, _ := sig.Body[1].(uint32)
		if reason == closedByUser && p.isPrompt(id) {
			p.sink.Post(domain.PromptDismissed)
		}
	}
}

func (p *Platform) isPrompt(id uint32) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return id != 0 && id == p.notifyID
}

// ─── Prompt ─────────────────────────────────────────────────────────────────

func (p *Platform) OpenPrompt(graceSeconds int) error {
	id, err := p.notify(0, "Idle session", countdownText(graceSeconds), progressPercent(graceSeconds, graceSeconds))
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPromptFailed, err)
	}
	p.mu.Lock()
	p.notifyID = id
	p.grace = graceSeconds
	p.mu.Unlock()
	return nil
}

func (p *Platform) StepPrompt(remaining int) {
	p.mu.Lock()
	id, grace := p.notifyID, p.grace
	p.mu.Unlock()
	if id == 0 {
		return
	}
	if _, err := p.notify(id, "Idle session", countdownText(remaining), progressPercent(grace, remaining)); err != nil {
		p.log.WithError(err).Debug("update prompt")
	}
}

func (p *Platform) ClosePrompt() {
	p.mu.Lock()
	id := p.notifyID
	p.notifyID = 0
	p.mu.Unlock()
	if id == 0 || p.conn == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	obj := p.conn.Object(notificationName, notificationPath)
	if err := obj.CallWithContext(ctx, notificationName+".CloseNotification", 0, id).Err; err != nil {
		p.log.WithError(err).Debug("close prompt")
	}
}

func (p *Platform) notify(replaces uint32, summary, body string, percent int) (uint32, error) {
	if p.conn == nil {
		return 0, domain.ErrSessionNotify
	}
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	hints := map[string]dbus.Variant{
		"urgency":  dbus.MakeVariant(urgencyCritical),
		"value":    dbus.MakeVariant(int32(percent)),
		"resident": dbus.MakeVariant(true),
	}
	var id uint32
	obj := p.conn.Object(notificationName, notificationPath)
	err := obj.CallWithContext(ctx, notificationName+".Notify", 0,
		appName, replaces, "system-lock-screen", summary, body,
		[]string{cancelAction, "Cancel"}, hints, int32(0),
	).Store(&id)
	return id, err
}

// ─── Session ────────────────────────────────────────────────────────────────

// UserEngaged asks the GNOME session manager whether something inhibits
// idle, which is how video players and presentation tools signal presence.
func (p *Platform) UserEngaged() bool {
	if p.conn == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	var inhibited bool
	obj := p.conn.Object(sessionMgrName, sessionMgrPath)
	if err := obj.CallWithContext(ctx, sessionMgrName+".IsInhibited", 0, inhibitIdle).Store(&inhibited); err != nil {
		return false
	}
	return inhibited
}

func (p *Platform) LockSession() error {
	if p.conn == nil {
		return domain.ErrLockFailed
	}
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	var errs []error
	for _, target := range [][2]string{{screenSaverName, screenSaverPath}, {gnomeSaverName, gnomeSaverPath}} {
		err := p.conn.Object(target[0], dbus.ObjectPath(target[1])).CallWithContext(ctx, target[0]+".Lock", 0).Err
		if err == nil {
			return nil
		}
		errs = append(errs, err)
	}
	return fmt.Errorf("%w: %v", domain.ErrLockFailed, errs)
}

// Alert raises a critical notification, falling back to stderr when no
// notification service is reachable.
func (p *Platform) Alert(title, message string) {
	conn := p.conn
	if conn == nil {
		c, err := dbus.ConnectSessionBus()
		if err == nil {
			conn = c
			defer c.Close()
		}
	}
	if conn != nil {
		ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
		defer cancel()
		hints := map[string]dbus.Variant{"urgency": dbus.MakeVariant(urgencyCritical)}
		err := conn.Object(notificationName, notificationPath).CallWithContext(ctx, notificationName+".Notify", 0,
			appName, uint32(0), "dialog-error", title, message, []string{}, hints, int32(0)).Err
		if err == nil {
			return
		}
	}
	fmt.Fprintf(os.Stderr, "%s: %s\n", title, message)
}

func (p *Platform) Close() error {
	p.closeOnce.Do(func() {
		close(p.stop)
		p.wg.Wait()
		p.ClosePrompt()
		if p.idle != nil {
			p.idle.close()
		}
		if p.conn != nil {
			if p.signals != nil {
				p.conn.RemoveSignal(p.signals)
			}
			if err := p.conn.Close(); err != nil {
				p.log.WithError(err).Debug("close session bus")
			}
		}
	})
	return nil
}
