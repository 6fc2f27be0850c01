package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/profilekeeper/internal/logging"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface is the command surface the REPL drives. App satisfies it; tests
// provide a stub.
type execIface interface {
	ended() bool
	Show(ctx context.Context) error
	EditPhoto(ctx context.Context) error
	EditName(ctx context.Context) error
	EditUsername(ctx context.Context) error
	EditDescription(ctx context.Context) error
	EditEmail(ctx context.Context) error
	ChangePassword(ctx context.Context) error
	DeleteAccount(ctx context.Context) error
	Logout(ctx context.Context) error
	SendVerification(ctx context.Context) error
}

const helpText = "Available commands: show, photo, name, username, description, email, password, verify, delete, logout, exit"

// runREPL reads commands from reader and dispatches them to a until the
// input ends, the user types "exit" or "quit", or the session ends (logout or
// account deletion).
//
// Handlers report their own results; the REPL only does I/O.
//
// The reader is shared with the presenter, so lines are read one at a time
// rather than through a bufio.Scanner.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for !a.ended() {
		printlnFn(fmt.Sprintf("pk %s> ", statusFn()))
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd := parts[0]
		ctx := logging.ContextWith(ctx, "command", cmd)

		switch cmd {
		case "help", "?":
			printlnFn(helpText)

		case "show", "s":
			_ = a.Show(ctx)

		case "photo":
			_ = a.EditPhoto(ctx)

		case "name":
			_ = a.EditName(ctx)

		case "username":
			_ = a.EditUsername(ctx)

		case "description", "desc":
			_ = a.EditDescription(ctx)

		case "email":
			_ = a.EditEmail(ctx)

		case "password":
			_ = a.ChangePassword(ctx)

		case "verify":
			_ = a.SendVerification(ctx)

		case "delete":
			_ = a.DeleteAccount(ctx)

		case "logout":
			_ = a.Logout(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}
