package tui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	bm "github.com/charmbracelet/wish/bubbletea"

	"mosaic-style/internal/router"
)

// ProgramHandler builds one Bubble Tea program per SSH session. The
// session's model is closed when the connection ends.
func ProgramHandler(opts Options) bm.ProgramHandler {
	return func(s ssh.Session) *tea.Program {
		pty, _, _ := s.Pty()
		info, _ := router.SessionInfoFrom(s.Context())

		sess := Session{
			User:       s.User(),
			RemoteAddr: info.RemoteAddr,
			Term:       pty.Term,
			TrueColor:  trueColor(s.Environ()),
			Width:      pty.Window.Width,
			Height:     pty.Window.Height,
			Theme:      info.Identity.Theme,
		}
		if sess.RemoteAddr == "" && s.RemoteAddr() != nil {
			sess.RemoteAddr = s.RemoteAddr().String()
		}

		m, err := NewModel(sess, opts, bm.MakeRenderer(s))
		if err != nil {
			wish.Fatalln(s, err)
			return nil
		}
		go func() {
			<-s.Context().Done()
			m.Close()
		}()

		return tea.NewProgram(m, append(bm.MakeOptions(s), tea.WithAltScreen())...)
	}
}

func trueColor(environ []string) bool {
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key != "COLORTERM" {
			continue
		}
		value = strings.ToLower(value)
		return value == "truecolor" || value == "24bit"
	}
	return false
}
