// Package tui is the per-session Bubble Tea front end. Every session owns a
// style engine; its nodes are restyled by the engine and the view only
// renders content through them.
package tui

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"mosaic-style/internal/binding"
	"mosaic-style/internal/config"
	"mosaic-style/internal/engine"
	"mosaic-style/internal/native"
	"mosaic-style/internal/prefs"
	"mosaic-style/internal/scope"
	"mosaic-style/internal/state"
	"mosaic-style/internal/theme"
)

const (
	statusLiveOn  = "STATUS: [LIVE]"
	statusLiveOff = "STATUS: [    ]"
	promptPrefix  = "MSC-USER ~ $ "
	keyHelp       = "t theme  s scheme  a adaptive  i invert  v tone  e emphasis  +/- load  q quit"
	loadStep      = 10
)

type (
	repaintMsg     struct{}
	statusTickMsg  struct{}
	persistDoneMsg struct{ err error }
)

// Session describes the connecting client.
type Session struct {
	User       string
	RemoteAddr string
	Term       string
	// TrueColor is set when the client advertised COLORTERM=truecolor.
	TrueColor bool
	Width     int
	Height    int
	// Theme is the theme selected by username routing, if any.
	Theme string
}

// Options are shared by every session's model.
type Options struct {
	Catalog *theme.Catalog
	Prefs   prefs.Store
	// Theme is the default ambient theme name or config.AdaptiveTheme.
	Theme       string
	ColorScheme theme.Scheme
	Logger      *slog.Logger
}

// Model is the interactive UI of one session.
type Model struct {
	engine *engine.Engine
	chrome *engine.StyleSheet
	cards  *engine.StyleSheet
	logger *slog.Logger
	prefs  prefs.Store
	user   string

	header   *native.Node
	label    *native.Node
	viewport *native.Node
	prompt   *native.Node
	warning  *native.Node
	card     *native.Node
	inset    *native.Node
	gauge    *native.Node
	ids      map[*native.Node]binding.ID

	repaint chan struct{}
	done    chan struct{}

	observerHash string
	statusBlink  bool
	viewportTop  int

	tone       int
	emphasized bool
	inverted   bool
	load       int
	notice     string

	closeOnce sync.Once
}

// NewModel builds the model and its engine and mounts every node. r is the
// session's lipgloss renderer; nil uses the default renderer.
func NewModel(sess Session, opts Options, r *lipgloss.Renderer) (*Model, error) {
	if opts.Catalog == nil {
		opts.Catalog = theme.NewCatalog()
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	logger := opts.Logger.With("user", sess.User)

	m := &Model{
		logger:       logger,
		prefs:        opts.Prefs,
		user:         sess.User,
		header:       native.NewNode("header", r),
		label:        native.NewNode("label", r),
		viewport:     native.NewNode("viewport", r),
		prompt:       native.NewNode("prompt", r),
		warning:      native.NewNode("warning", r),
		card:         native.NewNode("card", r),
		inset:        native.NewNode("inset", r),
		gauge:        native.NewNode("gauge", r),
		ids:          make(map[*native.Node]binding.ID),
		repaint:      make(chan struct{}, 1),
		done:         make(chan struct{}),
		observerHash: deriveObserverHash(sess.RemoteAddr),
		statusBlink:  true,
		load:         40,
	}

	initial, adaptive := initialAppearance(sess, opts, logger)
	engineOpts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithFlush(func(binding.Report) { m.requestRepaint() }),
	}
	if adaptive {
		engineOpts = append(engineOpts, engine.WithAdaptiveThemes())
	}
	initial = initial.WithScreen(sess.Width, sess.Height).WithFontScale(1)
	eng, err := engine.New(opts.Catalog, initial, engineOpts...)
	if err != nil {
		return nil, fmt.Errorf("tui: %w", err)
	}
	m.engine = eng

	if m.chrome, err = eng.CreateStyleSheet(sheetChrome, chromeRecipe, chromeDeps); err != nil {
		eng.Close()
		return nil, err
	}
	if m.cards, err = eng.CreateStyleSheet(sheetCards, cardsRecipe, cardsDeps); err != nil {
		eng.Close()
		return nil, err
	}
	m.render()
	return m, nil
}

// initialAppearance picks the starting theme: saved preferences win over
// username routing, which wins over the server default. Named themes are
// downgraded to monochrome on terminals that cannot render them.
func initialAppearance(sess Session, opts Options, logger *slog.Logger) (state.Snapshot, bool) {
	name := opts.Theme
	scheme := opts.ColorScheme
	if sess.Theme != "" {
		name = sess.Theme
	}

	if opts.Prefs != nil && sess.User != "" {
		saved, err := opts.Prefs.Get(sess.User)
		switch {
		case err == nil:
			if saved.Adaptive {
				name = config.AdaptiveTheme
			} else if opts.Catalog.Has(saved.Theme) {
				name = saved.Theme
			}
			if s, err := theme.ParseScheme(saved.ColorScheme); err == nil {
				scheme = s
			}
		case errors.Is(err, prefs.ErrNotFound):
		default:
			logger.Warn("preferences_unavailable", "error", err)
		}
	}

	snap := state.Snapshot{ColorScheme: scheme}
	if name == config.AdaptiveTheme || name == "" {
		return snap, true
	}
	th, _, err := opts.Catalog.ResolveForTerm(name, theme.ResolveOptions{Term: sess.Term, ForceColor: sess.TrueColor})
	if err != nil {
		logger.Warn("theme_unavailable", "theme", name, "error", err)
		return snap, true
	}
	return snap.WithTheme(th), false
}

// Close unmounts every node and detaches the engine from the shared catalog.
func (m *Model) Close() {
	m.closeOnce.Do(func() {
		for node, id := range m.ids {
			m.engine.Unmount(id)
			node.Detach()
		}
		m.engine.Close()
		close(m.done)
	})
}

// Engine exposes the session's style engine.
func (m *Model) Engine() *engine.Engine { return m.engine }

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.waitForRepaint(), statusTick())
}

// Update advances model state in response to events.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.apply(m.engine.Update(func(s state.Snapshot) state.Snapshot {
			return s.WithScreen(msg.Width, msg.Height)
		}))
	case repaintMsg:
		return m, m.waitForRepaint()
	case statusTickMsg:
		m.statusBlink = !m.statusBlink
		return m, statusTick()
	case persistDoneMsg:
		if msg.err != nil {
			m.notice = "preferences not saved: " + msg.err.Error()
		}
	case tea.KeyMsg:
		return m, m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "q", "ctrl+c":
		m.Close()
		return tea.Quit
	case "t":
		m.apply(m.engine.SetTheme(m.nextTheme()))
		return m.persist()
	case "s":
		m.apply(m.engine.SetColorScheme(m.engine.Snapshot().ColorScheme.Flip()))
		return m.persist()
	case "a":
		m.apply(m.engine.SetAdaptive(!m.engine.Adaptive()))
		return m.persist()
	case "i":
		m.inverted = !m.inverted
		m.render()
	case "v":
		m.tone = (m.tone + 1) % len(tones)
		m.render()
	case "e":
		m.emphasized = !m.emphasized
		m.render()
	case "+", "=":
		m.load = min(m.load+loadStep, 100)
		m.render()
	case "-":
		m.load = max(m.load-loadStep, 0)
		m.render()
	case "up", "k":
		m.viewportTop = max(m.viewportTop-1, 0)
	case "down", "j":
		m.viewportTop++
	}
	return nil
}

func (m *Model) apply(_ state.Fact, err error) {
	if err != nil {
		m.notice = err.Error()
		return
	}
	m.notice = ""
}

func (m *Model) nextTheme() string {
	names := m.engine.Catalog().Names()
	current := m.engine.Snapshot().ThemeName
	for i, name := range names {
		if name == current {
			return names[(i+1)%len(names)]
		}
	}
	return names[0]
}

// render mounts every node on the first call and rebinds them afterwards;
// nodes whose keys, selection and scope are unchanged are left alone.
func (m *Model) render() {
	p := m.engine.Begin()
	m.place(p, m.header, m.chrome, binding.Key("header"))
	m.place(p, m.label, m.chrome, binding.Key("label"))
	m.place(p, m.viewport, m.chrome, binding.Key("viewport"))
	m.place(p, m.prompt, m.chrome, binding.Key("prompt"))
	m.place(p, m.warning, m.chrome, binding.Key("warning"))

	m.cards.UseVariants(p, map[string]any{
		"tone":     tones[m.tone],
		"emphasis": m.emphasized,
	})
	m.place(p, m.card, m.cards, binding.Key("card"))
	m.place(p, m.gauge, m.cards, binding.Key("gauge", m.load))

	frame := scope.ResetFrame()
	if m.inverted {
		frame = scope.Inverted()
	}
	p.Scope(func() {
		m.cards.UseVariants(p, map[string]any{})
		if err := p.WithTheme(frame, func() {
			m.place(p, m.inset, m.cards, binding.Key("card"))
		}); err != nil {
			m.notice = err.Error()
		}
	})
	p.End()
}

func (m *Model) place(p *engine.Pass, node *native.Node, sheet *engine.StyleSheet, uses ...binding.Use) {
	id, mounted := m.ids[node]
	var err error
	if mounted {
		err = p.Update(id, sheet, uses...)
	} else {
		id, err = p.Mount(node, sheet, uses...)
		if id != 0 {
			m.ids[node] = id
		}
	}
	if err != nil {
		m.notice = err.Error()
	}
}

func (m *Model) requestRepaint() {
	select {
	case m.repaint <- struct{}{}:
	default:
	}
}

func (m *Model) waitForRepaint() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-m.done:
			return nil
		default:
		}
		select {
		case <-m.repaint:
			return repaintMsg{}
		case <-m.done:
			return nil
		}
	}
}

func statusTick() tea.Cmd {
	return tea.Tick(NextStatusTick(), func(time.Time) tea.Msg { return statusTickMsg{} })
}

// NextStatusTick returns the status indicator blink interval.
func NextStatusTick() time.Duration { return 450 * time.Millisecond }

func (m *Model) persist() tea.Cmd {
	if m.prefs == nil || m.user == "" {
		return nil
	}
	snap := m.engine.Snapshot()
	p := prefs.Preferences{
		ColorScheme: string(snap.ColorScheme),
		Adaptive:    m.engine.Adaptive(),
	}
	if !p.Adaptive {
		p.Theme = snap.ThemeName
	}
	store, user, logger := m.prefs, m.user, m.logger
	return func() tea.Msg {
		err := store.Put(user, p)
		if err != nil {
			logger.Error("preferences_save_failed", "error", err)
		}
		return persistDoneMsg{err: err}
	}
}

// View renders the fixed header, the scrolling viewport and the prompt.
func (m *Model) View() string {
	return strings.Join([]string{
		m.renderHeader(),
		m.renderViewport(),
		m.renderPrompt(),
	}, "\n")
}

func (m *Model) renderHeader() string {
	snap := m.engine.Snapshot()
	status := statusLiveOff
	if m.statusBlink {
		status = statusLiveOn
	}
	mode := string(snap.ColorScheme)
	if m.engine.Adaptive() {
		mode += " adaptive"
	}
	return strings.Join([]string{
		m.header.Render(fmt.Sprintf("MOSAIC STYLE v.1.0 // THEME: %s [%s]", strings.ToUpper(snap.ThemeName), mode)),
		m.header.Render(fmt.Sprintf("%s  OBSERVER: [%s]", status, m.observerHash)),
	}, "\n")
}

func (m *Model) viewportLines() []string {
	snap := m.engine.Snapshot()
	stats := m.engine.Stats()
	scopeName := "ambient"
	if m.inverted {
		scopeName = "inverted"
	}

	body := fmt.Sprintf("tone: %s\nemphasis: %v\nload: %s %d%%",
		tones[m.tone], m.emphasized, m.gauge.Render(" "), m.load)

	var b strings.Builder
	fmt.Fprintf(&b, "%s %dx%d (%s)\n\n", m.label.Render("SCREEN"), snap.Screen.Width, snap.Screen.Height, snap.Breakpoint)
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		m.card.Render(body),
		" ",
		m.inset.Render("scope: "+scopeName),
	))
	fmt.Fprintf(&b, "\n\n%s bound=%d recomputes=%d writes=%d dropped=%d errors=%d",
		m.label.Render("BINDINGS"), stats.Bound, stats.Recomputes, stats.Writes, stats.Dropped, stats.Errors)
	return strings.Split(b.String(), "\n")
}

func (m *Model) renderViewport() string {
	lines := m.viewportLines()
	height := max(m.engine.Snapshot().Screen.Height-chromeRows, 1)
	top := min(m.viewportTop, max(len(lines)-height, 0))
	to := min(top+height, len(lines))
	return m.viewport.Render(strings.Join(lines[top:to], "\n"))
}

func (m *Model) renderPrompt() string {
	lines := []string{m.prompt.Render(promptPrefix + keyHelp)}
	if m.notice != "" {
		lines = append(lines, m.warning.Render(m.notice))
	}
	return strings.Join(lines, "\n")
}

// deriveObserverHash fingerprints the caller's host so the same client sees
// the same observer id across ports.
func deriveObserverHash(remoteAddr string) string {
	sum := sha256.Sum256([]byte(normalizeRemoteAddr(remoteAddr)))
	return strings.ToUpper(hex.EncodeToString(sum[:]))[:12]
}

func normalizeRemoteAddr(remoteAddr string) string {
	addr := strings.TrimSpace(remoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return strings.Trim(addr, "[]")
}
