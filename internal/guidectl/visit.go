package guidectl

import (
	"bufio"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"audioguide/internal/domain"
	"audioguide/internal/guide"
	"audioguide/pkg/errors"
	"audioguide/pkg/logger"
)

const visitHelp = `commands:
  register <phone> <full name>   register or resume your visit
  languages                      list narration languages
  lang <code>                    choose or change the narration language
  code <artifact code>           open an artifact
  scan <decoded qr text>         open an artifact from a scanned code
  play | pause | replay          control playback
  seek <seconds>                 jump within the narration
  back | home                    navigate
  status                         show where you are
  logout                         forget this visit
  ok                             acknowledge an expired session
  quit                           leave the guide`

// lockedWriter serializes writes from the prompt loop and the expiry watcher
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

type visitor struct {
	flow      *guide.Flow
	out       io.Writer
	preferred domain.Language
}

func runVisit(ctx context.Context, api guide.GuideAPI, persister guide.Persister, log *logger.Logger, preferred domain.Language, in io.Reader, out io.Writer) error {
	out = &lockedWriter{w: out}

	store := guide.NewSessionStore(persister, log)
	flow := guide.NewFlow(api, store, guide.NewWatcher(guide.WatchInterval), log)
	defer flow.Close()

	flow.OnExpire(func() {
		fmt.Fprintln(out, "\nYour access time has expired. Please contact staff to renew it. Type 'ok' to continue.")
	})

	resumed, err := flow.Resume(ctx)
	if err != nil {
		return err
	}

	v := &visitor{flow: flow, out: out, preferred: preferred}
	if resumed {
		fmt.Fprintf(out, "Welcome back, %s.\n", flow.Snapshot().Session.Name)
		v.languageStep()
	} else {
		fmt.Fprintln(out, "Welcome to the museum audio guide.")
	}
	v.prompt()

	lines := make(chan string)
	done := make(chan struct{})
	defer close(done)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			case <-done:
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			quit := v.handle(ctx, line)
			if quit {
				return nil
			}
		}
	}
}

// handle runs one command line and reports whether the visitor quit
func (v *visitor) handle(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	var err error
	switch cmd {
	case "quit", "exit":
		return true
	case "help", "?":
		fmt.Fprintln(v.out, visitHelp)
	case "status":
		v.status()
	case "languages":
		for _, info := range domain.Languages() {
			fmt.Fprintf(v.out, "  %s  %s (%s)\n", info.Code, info.NativeName, info.Name)
		}
	case "register":
		err = v.register(ctx, args)
	case "lang":
		err = v.language(args)
	case "code", "scan":
		err = v.open(ctx, strings.Join(args, " "))
	case "play":
		err = v.flow.Play(ctx)
	case "pause":
		err = v.flow.Pause()
	case "seek":
		err = v.seek(args)
	case "replay":
		err = v.flow.Replay(ctx)
	case "back":
		if err = v.flow.Back(); err == nil {
			v.languageStep()
		}
	case "home":
		if err = v.flow.Home(); err == nil {
			v.languageStep()
		}
	case "logout":
		err = v.flow.Logout()
	case "ok":
		err = v.flow.Acknowledge()
	default:
		fmt.Fprintf(v.out, "Unknown command %q. Type 'help'.\n", cmd)
	}

	if err != nil {
		v.report(err)
	}
	v.prompt()
	return false
}

func (v *visitor) register(ctx context.Context, args []string) error {
	var phone, name string
	if len(args) > 0 {
		phone = args[0]
		name = strings.Join(args[1:], " ")
	}
	session, err := v.flow.Register(ctx, name, phone)
	if err != nil {
		return err
	}
	fmt.Fprintf(v.out, "Hello, %s. Your visit is valid until %s.\n", session.Name, formatTime(session.ExpiresAt))
	v.languageStep()
	return nil
}

// languageStep shows the language prompt with the visit counters once they
// have loaded
func (v *visitor) languageStep() {
	if v.flow.Snapshot().State != guide.StateLanguage {
		return
	}
	v.flow.Wait()
	v.status()
}

func (v *visitor) language(args []string) error {
	if len(args) != 1 {
		return errors.NewValidationError("Please choose a language, for example: lang vi", nil)
	}
	lang := domain.Language(strings.ToLower(args[0]))
	if v.flow.Snapshot().State == guide.StatePlaying {
		return v.flow.ChangeLanguage(lang)
	}
	return v.flow.SelectLanguage(lang)
}

func (v *visitor) open(ctx context.Context, code string) error {
	if _, err := v.flow.SubmitCode(ctx, code); err != nil {
		return err
	}
	v.status()
	return nil
}

func (v *visitor) seek(args []string) error {
	if len(args) != 1 {
		return errors.NewValidationError("Please give a position in seconds, for example: seek 90", nil)
	}
	position, err := time.ParseDuration(args[0])
	if err != nil {
		seconds, convErr := strconv.ParseFloat(args[0], 64)
		if convErr != nil {
			return errors.NewValidationError("Please give a position in seconds, for example: seek 90", nil)
		}
		position = time.Duration(seconds * float64(time.Second))
	}
	return v.flow.Seek(position)
}

func (v *visitor) status() {
	view := v.flow.Snapshot()
	switch view.State {
	case guide.StateRegistration:
		fmt.Fprintln(v.out, "Please register: register <phone> <full name>")
	case guide.StateLanguage:
		if view.Traffic != nil {
			fmt.Fprintf(v.out, "%d visits so far, %d visitors online now.\n", view.Traffic.TotalVisits, view.Traffic.ActiveSessions)
		}
		fmt.Fprintf(v.out, "Choose a language (suggested: %s). Type 'languages' for the list.\n", v.preferred)
	case guide.StateArtifact:
		fmt.Fprintf(v.out, "Language: %s. Enter an artifact code: code <code>\n", view.Language.NativeName())
	case guide.StatePlaying:
		fmt.Fprintf(v.out, "[%s] %s\n", view.ArtifactCode, view.Title)
		fmt.Fprintln(v.out, view.Description)
		if view.AudioURL == "" {
			fmt.Fprintf(v.out, "Narration is not available in %s.\n", view.Language.NativeName())
			return
		}
		state := "stopped"
		if view.Playing {
			state = "playing"
		}
		fmt.Fprintf(v.out, "Audio (%s): %s  %s at %s\n", view.Language, view.AudioURL, state, view.Position)
	case guide.StateExpired:
		fmt.Fprintln(v.out, "Your access time has expired. Type 'ok' to continue.")
	}
}

func (v *visitor) prompt() {
	fmt.Fprintf(v.out, "%s> ", v.flow.Snapshot().State)
}

func (v *visitor) report(err error) {
	switch {
	case stderrors.Is(err, guide.ErrStaleLookup):
		return
	case stderrors.Is(err, guide.ErrSessionExpired):
		fmt.Fprintln(v.out, "Your access time has expired. Type 'ok' to continue.")
	case stderrors.Is(err, guide.ErrWrongState):
		fmt.Fprintln(v.out, "That is not available right now. Type 'status' or 'help'.")
	default:
		fmt.Fprintln(v.out, describe(err))
	}
}
