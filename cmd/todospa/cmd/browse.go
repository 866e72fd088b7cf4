package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/GoCodeAlone/todospa/app"
	"github.com/GoCodeAlone/todospa/render"
)

const shellHelp = `Commands:
  go <path>    navigate to path, e.g. go /card
  add <name>   create a todo
  reload       fetch the todos again
  state        print the current state as JSON
  help         show this help
  quit         leave
`

// NewBrowseCommand creates the browse command, which runs the client
// against a todo server and renders each revision to stdout.
func NewBrowseCommand(root *rootOptions) *cobra.Command {
	var (
		baseURL string
		start   string
		email   string
	)
	cmd := &cobra.Command{
		Use:   "browse",
		Short: "Run the todo client in the terminal",
		Long: `Browse runs the client against a todo server. Each state revision is
rendered as text; commands are read line by line from stdin.

With --email the client signs in first. The password is read from the
config file or from TODOSPA_API_PASSWORD.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, logger, err := root.load(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("base-url") {
				cfg.API.BaseURL = baseURL
			}
			if cmd.Flags().Changed("start") {
				cfg.App.StartPath = start
			}
			if cmd.Flags().Changed("email") {
				cfg.API.Email = email
			}

			out := cmd.OutOrStdout()
			a, err := app.New(cfg,
				app.WithLogger(logger),
				app.WithRenderer(render.NewText(out, app.Links(), app.Views())),
			)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return browse(ctx, a, cmd.InOrStdin(), out)
		},
	}
	cmd.Flags().StringVar(&baseURL, "base-url", "", "Todo server URL, e.g. http://localhost:8080")
	cmd.Flags().StringVar(&start, "start", "", "Path to open first")
	cmd.Flags().StringVar(&email, "email", "", "Email to sign in with")
	return cmd
}

// browse runs a until the shell ends or ctx is done.
func browse(ctx context.Context, a *app.App, in io.Reader, out io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	runErr := make(chan error, 1)
	go func() { runErr <- a.Run(ctx) }()

	shellErr := shell(ctx, a, in, out)
	cancel()
	return errors.Join(shellErr, <-runErr)
}

// shell reads commands from in until quit, EOF or ctx is done. Each command
// is settled before the next prompt so its frames are printed first.
func shell(ctx context.Context, a *app.App, in io.Reader, out io.Writer) error {
	if err := a.Settle(ctx); err != nil {
		return nil
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		fmt.Fprint(out, "> ")
		var line string
		select {
		case <-ctx.Done():
			return nil
		case l, ok := <-lines:
			if !ok {
				fmt.Fprintln(out)
				return nil
			}
			line = l
		}

		verb, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
		arg = strings.TrimSpace(arg)
		switch verb {
		case "":
			continue
		case "quit", "exit":
			return nil
		case "help":
			fmt.Fprint(out, shellHelp)
			continue
		case "go":
			if arg == "" {
				fmt.Fprintln(out, "usage: go <path>")
				continue
			}
			a.Actions().NavigatePath(arg)
		case "add":
			if _, err := a.Actions().CreateTodo(ctx, arg); err != nil {
				fmt.Fprintf(out, "error: %s\n", err)
				continue
			}
		case "reload":
			a.Actions().LoadTodos(ctx)
		case "state":
			if err := printState(out, a); err != nil {
				return err
			}
			continue
		default:
			fmt.Fprintf(out, "unknown command %q, type help\n", verb)
			continue
		}

		if err := a.Settle(ctx); err != nil {
			return nil
		}
	}
}

func printState(out io.Writer, a *app.App) error {
	st := a.State()
	st.Session.CSRFToken = redact(st.Session.CSRFToken)
	st.Session.AuthToken = redact(st.Session.AuthToken)
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(st)
}

func redact(token string) string {
	if token == "" {
		return ""
	}
	return "[REDACTED]"
}
