package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"sync"

	"github.com/dmitrijs2005/profilekeeper/internal/alerts"
	"github.com/dmitrijs2005/profilekeeper/internal/profile"
)

// Presenter renders profile dialogs on a terminal.
type Presenter struct {
	reader  *bufio.Reader
	out     io.Writer
	catalog *alerts.Catalog

	// secret reads hidden input; tests replace it.
	secret func(prompt string, w io.Writer) (string, error)

	busyMu    sync.Mutex
	busyDepth int
}

func NewPresenter(reader *bufio.Reader, out io.Writer, catalog *alerts.Catalog) *Presenter {
	return &Presenter{reader: reader, out: out, catalog: catalog, secret: GetPassword}
}

// Ask collects the inputs of d and then the user's choice among its options.
// A dialog with a single option besides cancel is answered with y/N; larger
// menus are numbered and anything unrecognised cancels.
func (p *Presenter) Ask(ctx context.Context, d profile.Dialog) (profile.Reply, error) {
	fmt.Fprintf(p.out, "\n== %s ==\n", d.Title)
	if d.Message != "" {
		fmt.Fprintln(p.out, d.Message)
	}

	values := make(map[string]string, len(d.Inputs))
	for _, in := range d.Inputs {
		var (
			v   string
			err error
		)
		switch in.Type {
		case profile.InputPassword:
			v, err = p.secret(in.Placeholder, p.out)
		default:
			v, err = GetTextWithDefault(p.reader, in.Placeholder, in.Default, p.out)
		}
		if err != nil {
			return profile.Reply{}, err
		}
		values[in.Name] = v
	}

	action, err := p.choose(d.Options)
	if err != nil {
		return profile.Reply{}, err
	}
	if action == profile.ActionCancel {
		return profile.Reply{}, nil
	}
	return profile.Reply{Action: action, Values: values}, nil
}

func (p *Presenter) choose(options []profile.Option) (string, error) {
	var actions []profile.Option
	for _, o := range options {
		if o.Action != profile.ActionCancel {
			actions = append(actions, o)
		}
	}

	switch len(actions) {
	case 0:
		return profile.ActionCancel, nil
	case 1:
		ok, err := GetYesNo(p.reader, actions[0].Label+"?", p.out)
		if err != nil || !ok {
			return profile.ActionCancel, err
		}
		return actions[0].Action, nil
	}

	for i, o := range actions {
		fmt.Fprintf(p.out, "  %d) %s\n", i+1, o.Label)
	}
	v, err := GetSimpleText(p.reader, "Choose an option (empty to cancel)", p.out)
	if err != nil {
		return profile.ActionCancel, err
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 || n > len(actions) {
		return profile.ActionCancel, nil
	}
	return actions[n-1].Action, nil
}

func (p *Presenter) Toast(ctx context.Context, code string) {
	m := p.catalog.Lookup(code)
	fmt.Fprintf(p.out, "* %s\n", m.Message)
}

func (p *Presenter) Alert(ctx context.Context, code string) {
	m := p.catalog.Lookup(code)
	fmt.Fprintf(p.out, "! %s: %s\n", m.Title, m.Message)
}

// Busy prints a marker and returns the function that ends it. Nested calls
// print once.
func (p *Presenter) Busy(ctx context.Context) func() {
	p.busyMu.Lock()
	p.busyDepth++
	if p.busyDepth == 1 {
		fmt.Fprint(p.out, "working... ")
	}
	p.busyMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.busyMu.Lock()
			defer p.busyMu.Unlock()
			p.busyDepth--
			if p.busyDepth == 0 {
				fmt.Fprintln(p.out, "done")
			}
		})
	}
}

// PickFile asks for the path of an image. An empty answer cancels.
func (p *Presenter) PickFile(ctx context.Context) (string, error) {
	return GetSimpleText(p.reader, "Path to an image file (empty to cancel)", p.out)
}

// Println writes a plain line.
func (p *Presenter) Println(args ...any) {
	fmt.Fprintln(p.out, args...)
}
