// ui.go
package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"

	"github.com/jroimartin/gocui"

	"cdchat/internal"
	"cdchat/internal/reactor"
)

type ChatUI struct {
	gui         *gocui.Gui
	client      *internal.Client
	reactor     *reactor.Reactor
	addr        string
	msgView     string
	inputView   string
	statusView  string
	channelView string
	helpView    string
	showHelp    bool

	mu       sync.Mutex
	pending  bytes.Buffer
	active   string
	channels []string
}

// uiWriter appends chat output to the messages view. gocui may run queued
// updates out of order, so writes are buffered and every update drains them.
type uiWriter struct {
	ui *ChatUI
}

func (w uiWriter) Write(p []byte) (int, error) {
	w.ui.mu.Lock()
	w.ui.pending.Write(p)
	w.ui.mu.Unlock()

	w.ui.gui.Update(func(g *gocui.Gui) error {
		v, err := g.View(w.ui.msgView)
		if err != nil {
			return nil
		}
		w.ui.mu.Lock()
		defer w.ui.mu.Unlock()
		v.Write(w.ui.pending.Bytes())
		w.ui.pending.Reset()
		return nil
	})
	return len(p), nil
}

func NewChatUI(cfg internal.ClientConfig, conn net.Conn, r *reactor.Reactor, logOut io.Writer) (*ChatUI, error) {
	g, err := gocui.NewGui(gocui.OutputNormal)
	if err != nil {
		return nil, err
	}

	ui := &ChatUI{
		gui:         g,
		reactor:     r,
		addr:        conn.RemoteAddr().String(),
		msgView:     "messages",
		inputView:   "input",
		statusView:  "status",
		channelView: "channels",
		helpView:    "help",
	}
	ui.client = internal.NewClient(cfg.Name, conn, r, uiWriter{ui}, logOut)
	ui.client.OnChange = ui.refresh

	g.Cursor = true
	g.SetManagerFunc(ui.layout)
	return ui, nil
}

func (ui *ChatUI) layout(g *gocui.Gui) error {
	maxX, maxY := g.Size()

	sidebarWidth := 20
	msgWidth := maxX - sidebarWidth - 1
	msgHeight := maxY - 6

	// Messages view
	if v, err := g.SetView(ui.msgView, 0, 0, msgWidth, msgHeight); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "Messages"
		v.Wrap = true
		v.Autoscroll = true
	}

	// Channels view
	if v, err := g.SetView(ui.channelView, msgWidth+1, 0, maxX-1, msgHeight); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "Channels"
		v.Wrap = true
		ui.updateChannels()
	}

	// Status bar
	if v, err := g.SetView(ui.statusView, 0, msgHeight+1, maxX-1, msgHeight+3); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "Status"
		v.Wrap = true
		ui.updateStatus()
	}

	// Input field
	if v, err := g.SetView(ui.inputView, 0, msgHeight+3, maxX-1, maxY-1); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "Input"
		v.Editable = true
		v.Wrap = true

		if _, err := g.SetCurrentView(ui.inputView); err != nil {
			return err
		}
	}

	// Help window
	if !ui.showHelp {
		if err := g.DeleteView(ui.helpView); err != nil && err != gocui.ErrUnknownView {
			return err
		}
		return nil
	}
	if v, err := g.SetView(ui.helpView, maxX/6, maxY/6, maxX*5/6, maxY*5/6); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "Help"
		fmt.Fprintln(v, `Commands:
/join <channel> - Join a channel and make it active
exit            - Leave the chat
anything else   - Send to the active channel

Keybindings:
Ctrl-C          - Quit
F1              - Toggle help
Tab             - Switch views
Enter           - Send`)
	}
	return nil
}

// refresh runs on the reactor goroutine after the client's channels changed.
func (ui *ChatUI) refresh() {
	ui.mu.Lock()
	ui.active = ui.client.ActiveChannel()
	ui.channels = ui.client.Channels()
	ui.mu.Unlock()

	ui.updateChannels()
	ui.updateStatus()
}

func (ui *ChatUI) updateChannels() {
	ui.gui.Update(func(g *gocui.Gui) error {
		v, err := g.View(ui.channelView)
		if err != nil {
			return nil
		}
		v.Clear()

		ui.mu.Lock()
		defer ui.mu.Unlock()
		for _, name := range append([]string{internal.DefaultChannel}, ui.channels...) {
			prefix := "  "
			if name == ui.active {
				prefix = "* "
			}
			fmt.Fprintf(v, "%s%s\n", prefix, channelLabel(name))
		}
		return nil
	})
}

func (ui *ChatUI) updateStatus() {
	ui.gui.Update(func(g *gocui.Gui) error {
		v, err := g.View(ui.statusView)
		if err != nil {
			return nil
		}
		v.Clear()

		ui.mu.Lock()
		defer ui.mu.Unlock()
		fmt.Fprintf(v, "Connected to %s as %s | Channel: %s | F1: Help",
			ui.addr, ui.client.Name(), channelLabel(ui.active))
		return nil
	})
}

func channelLabel(name string) string {
	if name == internal.DefaultChannel {
		return "(default)"
	}
	return name
}

func (ui *ChatUI) keybindings() error {
	// Quit
	if err := ui.gui.SetKeybinding("", gocui.KeyCtrlC, gocui.ModNone, ui.quit); err != nil {
		return err
	}

	// Toggle help
	if err := ui.gui.SetKeybinding("", gocui.KeyF1, gocui.ModNone,
		func(_ *gocui.Gui, _ *gocui.View) error {
			ui.showHelp = !ui.showHelp
			return nil
		}); err != nil {
		return err
	}

	// Send message
	if err := ui.gui.SetKeybinding(ui.inputView, gocui.KeyEnter, gocui.ModNone,
		ui.handleInput); err != nil {
		return err
	}

	// Switch views
	if err := ui.gui.SetKeybinding("", gocui.KeyTab, gocui.ModNone,
		func(g *gocui.Gui, v *gocui.View) error {
			next := ui.inputView
			if v != nil && v.Name() == ui.inputView {
				next = ui.msgView
			}
			_, err := g.SetCurrentView(next)
			return err
		}); err != nil {
		return err
	}

	return nil
}

func (ui *ChatUI) quit(_ *gocui.Gui, _ *gocui.View) error {
	if err := ui.reactor.Post(ui.client.Quit); err != nil {
		return gocui.ErrQuit
	}
	return nil
}

func (ui *ChatUI) handleInput(_ *gocui.Gui, v *gocui.View) error {
	input := strings.TrimSpace(v.Buffer())
	v.Clear()
	v.SetCursor(0, 0)
	if input == "" {
		return nil
	}

	if err := ui.reactor.Post(func() { ui.client.HandleInput(input) }); err != nil {
		return gocui.ErrQuit
	}
	return nil
}

// Run starts the session and blocks until the user quits or the server
// closes the connection.
func (ui *ChatUI) Run() error {
	if err := ui.keybindings(); err != nil {
		return err
	}
	if err := ui.client.Start(); err != nil {
		return err
	}

	go func() {
		ui.reactor.RunForever(context.Background())
		ui.gui.Update(func(*gocui.Gui) error { return gocui.ErrQuit })
	}()

	if err := ui.gui.MainLoop(); err != nil && err != gocui.ErrQuit {
		return err
	}
	return nil
}

func (ui *ChatUI) Close() {
	ui.reactor.Stop()
	ui.gui.Close()
}

func RunWithUI(cfg internal.ClientConfig, conn net.Conn, r *reactor.Reactor, logOut io.Writer) error {
	ui, err := NewChatUI(cfg, conn, r, logOut)
	if err != nil {
		return err
	}
	defer ui.Close()

	return ui.Run()
}
