package ui

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"e6pools/pkg/config"
	"e6pools/pkg/pipeline"
)

// NotificationSender interface for platform-specific notification implementations
type NotificationSender interface {
	Send(title, message string) error
}

// LinuxNotificationSender sends notifications on Linux using notify-send
type LinuxNotificationSender struct{}

func (l *LinuxNotificationSender) Send(title, message string) error {
	return exec.Command("notify-send", title, message).Run()
}

// MacOSNotificationSender sends notifications on macOS using osascript
type MacOSNotificationSender struct{}

func (m *MacOSNotificationSender) Send(title, message string) error {
	script := fmt.Sprintf(`display notification %q with title %q`, message, title)
	return exec.Command("osascript", "-e", script).Run()
}

// WindowsNotificationSender sends notifications on Windows using PowerShell
type WindowsNotificationSender struct{}

func (w *WindowsNotificationSender) Send(title, message string) error {
	script := fmt.Sprintf(`
		[Windows.UI.Notifications.ToastNotificationManager, Windows.UI.Notifications, ContentType = WindowsRuntime] | Out-Null
		[Windows.Data.Xml.Dom.XmlDocument, Windows.Data.Xml.Dom.XmlDocument, ContentType = WindowsRuntime] | Out-Null
		$xml = @"
<toast>
	<visual>
		<binding template="ToastText02">
			<text id="1">%s</text>
			<text id="2">%s</text>
		</binding>
	</visual>
</toast>
"@
		$doc = [Windows.Data.Xml.Dom.XmlDocument]::new()
		$doc.LoadXml($xml)
		$toast = [Windows.UI.Notifications.ToastNotification]::new($doc)
		[Windows.UI.Notifications.ToastNotificationManager]::CreateToastNotifier("e6pools").Show($toast)
	`, title, message)

	return exec.Command("powershell", "-NoProfile", "-NonInteractive", "-Command", script).Run()
}

// Notifier sends desktop notifications at the end of a run
type Notifier struct {
	sender NotificationSender
	cfg    config.NotificationConfig
}

// NewNotifier picks the sender for the current platform
func NewNotifier(cfg config.NotificationConfig) *Notifier {
	var sender NotificationSender
	switch runtime.GOOS {
	case "linux":
		sender = &LinuxNotificationSender{}
	case "darwin":
		sender = &MacOSNotificationSender{}
	case "windows":
		sender = &WindowsNotificationSender{}
	}
	return NewNotifierWithSender(cfg, sender)
}

// NewNotifierWithSender uses the given sender, which may be nil.
func NewNotifierWithSender(cfg config.NotificationConfig, sender NotificationSender) *Notifier {
	return &Notifier{sender: sender, cfg: cfg}
}

func (n *Notifier) send(title, message string) {
	if n.sender == nil || !n.cfg.Enabled {
		return
	}
	// Notifications are best effort.
	_ = n.sender.Send(title, message)
}

// NotifyReport announces the outcome of a run.
func (n *Notifier) NotifyReport(r *pipeline.Report) {
	if r.Failed() {
		if n.cfg.OnError {
			n.send("e6pools finished with errors", reportMessage(r))
		}
		return
	}
	if n.cfg.OnComplete {
		n.send("e6pools finished", reportMessage(r))
	}
}

// NotifyError announces a run that could not complete.
func (n *Notifier) NotifyError(err error) {
	if n.cfg.OnError {
		n.send("e6pools failed", err.Error())
	}
}

func reportMessage(r *pipeline.Report) string {
	parts := []string{fmt.Sprintf("%d of %d pools archived", r.Archived(), len(r.Requested))}
	if c := r.FailureCount(); c > 0 {
		parts = append(parts, fmt.Sprintf("%d failures", c))
	}
	return strings.Join(parts, ", ")
}
