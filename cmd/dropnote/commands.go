package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"dropnote/internal/api"
	"dropnote/internal/app"
	"dropnote/internal/countdown"
	"dropnote/internal/model"
	"dropnote/internal/mutation"
)

const usage = `usage: dropnote <command> [arguments]

commands:
  register -email E -password P   create an account and sign in
  login -email E -password P      sign in
  logout                          forget the stored credential
  whoami                          show the signed in identity
  drop <text>                     drop today's anonymous note
  inbox                           show the note you received
  read <noteId>                   show one note
  reply <noteId> <text>           answer a received note once
  appreciate <noteId>             appreciate a received note
  profile                         show your account
  delete-account -yes             delete your account and all notes
  watch <noteId>                  live countdown until the note expires
`

var errUsage = errors.New("invalid arguments")

// defaultFollowInterval is how often watch re-reads the note. Reads inside
// the detail window are served from the cache unless it was invalidated.
const defaultFollowInterval = 5 * time.Second

type CLI struct {
	App    *app.App
	Out    io.Writer
	APIURL string
	Live   bool
	Logger logrus.FieldLogger
	Now    func() time.Time
	// FollowInterval overrides defaultFollowInterval.
	FollowInterval time.Duration
}

func (c *CLI) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c *CLI) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprint(c.Out, usage)
		return errUsage
	}
	cmd, rest := args[0], args[1:]

	var err error
	switch cmd {
	case "register", "login":
		err = c.signIn(ctx, cmd, rest)
	case "logout":
		c.App.Logout(ctx)
		printDim(c.Out, "Signed out.")
	case "whoami":
		c.whoami()
	case "drop":
		err = c.drop(ctx, rest)
	case "inbox":
		err = c.inbox(ctx)
	case "read":
		err = c.read(ctx, rest)
	case "reply":
		err = c.reply(ctx, rest)
	case "appreciate":
		err = c.appreciate(ctx, rest)
	case "profile":
		err = c.profile(ctx)
	case "delete-account":
		err = c.deleteAccount(ctx, rest)
	case "watch":
		err = c.watch(ctx, rest)
	case "help", "-h", "--help":
		fmt.Fprint(c.Out, usage)
	default:
		fmt.Fprint(c.Out, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
	return describe(err)
}

// describe turns the errors a user can act on into plain sentences.
func describe(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, app.ErrNotAuthenticated):
		return errors.New("not signed in, run `dropnote login` first")
	case api.IsUnauthorized(err):
		return errors.New("session expired, please log in again")
	}
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		if msg := apiErr.ServerMessage(); msg != "" {
			return errors.New(msg)
		}
		if apiErr.Status == 0 {
			return fmt.Errorf("cannot reach the note service: %s", apiErr.Message)
		}
	}
	return err
}

func (c *CLI) signIn(ctx context.Context, cmd string, args []string) error {
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(c.Out)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*email) == "" || *password == "" {
		fs.Usage()
		return errUsage
	}

	signIn := c.App.Login
	if cmd == "register" {
		signIn = c.App.Register
	}
	s, err := signIn(ctx, *email, *password)
	if err != nil {
		return err
	}
	who := *email
	if s.Identity != nil && s.Identity.Email != "" {
		who = s.Identity.Email
	}
	fmt.Fprintln(c.Out, titleStyle.Render("Signed in as "+who))
	return nil
}

func (c *CLI) whoami() {
	s := c.App.CurrentSession()
	switch {
	case !s.Active():
		printDim(c.Out, "Not signed in.")
	case s.Identity == nil:
		fmt.Fprintln(c.Out, "Signed in (identity unavailable).")
	case s.Identity.Email != "":
		fmt.Fprintf(c.Out, "%s (%s)\n", s.Identity.Email, s.Identity.UserID)
	default:
		fmt.Fprintln(c.Out, s.Identity.UserID)
	}
}

func (c *CLI) drop(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	out, err := c.App.Drop(ctx, strings.Join(args, " "))
	if err != nil {
		return err
	}
	printNotice(c.Out, out.Notice, !out.Accepted())
	switch {
	case out.Accepted():
		printDim(c.Out, "note %s", out.NoteID)
	case out.State.Kind == mutation.KindRateLimited:
		fmt.Fprintln(c.Out, lockedStyle.Render("Drop locked. Come back tomorrow."))
	}
	return nil
}

func (c *CLI) inbox(ctx context.Context) error {
	note, err := c.App.CurrentNote(ctx)
	if err != nil {
		return err
	}
	if note == nil {
		printDim(c.Out, "No notes yet")
		return nil
	}
	c.printNote(*note)
	return nil
}

func (c *CLI) read(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	note, err := c.App.NoteDetail(ctx, args[0])
	if err != nil {
		return err
	}
	if note == nil {
		printDim(c.Out, "Note not available.")
		return nil
	}
	c.printNote(*note)
	return nil
}

func (c *CLI) printNote(n model.Note) {
	fmt.Fprintln(c.Out, noteStyle.Render(n.Content))
	status := countdown.FormatTimeLeft(n.Expiry().Sub(c.now()))
	if status != "Expired" {
		status += " left"
	}
	var flags []string
	if n.Replied || c.App.Mutations.HasReplied(n.ID) {
		flags = append(flags, "replied")
	}
	if c.App.IsAppreciated(n.ID) {
		flags = append(flags, "appreciated")
	}
	if len(flags) > 0 {
		status += " · " + strings.Join(flags, ", ")
	}
	printDim(c.Out, "%s · %s", n.ID, status)
}

func (c *CLI) reply(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return errUsage
	}
	out, err := c.App.Reply(ctx, args[0], strings.Join(args[1:], " "))
	if err != nil {
		return err
	}
	printNotice(c.Out, out.Notice, !out.Accepted())
	return nil
}

func (c *CLI) appreciate(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	notice, ok, err := c.App.Appreciate(ctx, args[0])
	if err != nil {
		return err
	}
	switch {
	case ok:
		printNotice(c.Out, notice, false)
	case c.App.IsAppreciated(args[0]):
		printDim(c.Out, "Already appreciated.")
	default:
		printDim(c.Out, "Note not available.")
	}
	return nil
}

func (c *CLI) profile(ctx context.Context) error {
	p, err := c.App.Profile(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.Out, titleStyle.Render(p.Email))
	printDim(c.Out, "id %s", p.ID)
	if !p.CreatedAt.IsZero() {
		printDim(c.Out, "member since %s", p.CreatedAt.Local().Format("2006-01-02"))
	}
	return nil
}

func (c *CLI) deleteAccount(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("delete-account", flag.ContinueOnError)
	fs.SetOutput(c.Out)
	yes := fs.Bool("yes", false, "confirm deletion")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !*yes {
		fmt.Fprintln(c.Out, lockedStyle.Render("This deletes your account and every note. Re-run with -yes to confirm."))
		return nil
	}
	resp, err := c.App.DeleteAccount(ctx)
	if err != nil {
		return err
	}
	msg := resp.Message
	if msg == "" {
		msg = "Account deleted."
	}
	fmt.Fprintln(c.Out, titleStyle.Render(msg))
	return nil
}

func (c *CLI) watch(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	note, err := c.App.NoteDetail(ctx, args[0])
	if err != nil {
		return err
	}
	if note == nil {
		printDim(c.Out, "Note not available.")
		return nil
	}
	fmt.Fprintln(c.Out, noteStyle.Render(note.Content))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if c.Live {
		sub, err := c.App.LiveSubscriber(c.APIURL)
		if err != nil {
			return err
		}
		go func() {
			if err := sub.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				c.logger().WithError(err).Warn("live updates stopped")
			}
		}()
	}

	gone := make(chan struct{})
	go c.follow(ctx, note.ID, gone, cancel)

	err = countdown.Run(ctx, note.Expiry(), countdown.DefaultInterval, c.now, func(left string) {
		if left == "Expired" {
			fmt.Fprintln(c.Out, lockedStyle.Render(left))
			return
		}
		printDim(c.Out, "%s left", left)
	})
	if err == nil {
		return nil
	}
	select {
	case <-gone:
		printDim(c.Out, "Note not available.")
		return nil
	default:
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// follow re-reads the watched note until ctx ends. When the inbox no longer
// holds noteID it closes gone and cancels the countdown.
func (c *CLI) follow(ctx context.Context, noteID string, gone chan<- struct{}, cancel context.CancelFunc) {
	every := c.FollowInterval
	if every <= 0 {
		every = defaultFollowInterval
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		note, err := c.App.NoteDetail(ctx, noteID)
		if ctx.Err() != nil {
			return
		}
		if err != nil && !errors.Is(err, app.ErrNotAuthenticated) && !api.IsUnauthorized(err) {
			c.logger().WithError(err).Debug("watch: note refresh failed")
			continue
		}
		if err != nil || note == nil || note.ID != noteID {
			close(gone)
			cancel()
			return
		}
	}
}

func (c *CLI) logger() logrus.FieldLogger {
	if c.Logger == nil {
		return logrus.StandardLogger()
	}
	return c.Logger
}
