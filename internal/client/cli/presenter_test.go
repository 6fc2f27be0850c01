package cli

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/dmitrijs2005/profilekeeper/internal/alerts"
	"github.com/dmitrijs2005/profilekeeper/internal/profile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPresenter(input string) (*Presenter, *bytes.Buffer) {
	var out bytes.Buffer
	p := NewPresenter(rdr(input), &out, alerts.Default())
	return p, &out
}

func textDialog() profile.Dialog {
	return profile.Dialog{
		Title:   "Change username",
		Message: "Enter a new username.",
		Inputs:  []profile.Input{{Name: "username", Placeholder: "Your username", Type: profile.InputText, Default: "alice"}},
		Options: []profile.Option{{Label: "Cancel"}, {Label: "Save", Action: profile.ActionSave}},
	}
}

func TestPresenter_AskText(t *testing.T) {
	p, out := newTestPresenter("carol\ny\n")

	r, err := p.Ask(context.Background(), textDialog())

	require.NoError(t, err)
	assert.Equal(t, profile.ActionSave, r.Action)
	assert.Equal(t, "carol", r.Values["username"])
	assert.Contains(t, out.String(), "== Change username ==")
	assert.Contains(t, out.String(), "Your username [alice]")
}

func TestPresenter_AskTextKeepsDefault(t *testing.T) {
	p, _ := newTestPresenter("\ny\n")

	r, err := p.Ask(context.Background(), textDialog())

	require.NoError(t, err)
	assert.Equal(t, "alice", r.Values["username"])
}

func TestPresenter_AskDeclined(t *testing.T) {
	p, _ := newTestPresenter("carol\nn\n")

	r, err := p.Ask(context.Background(), textDialog())

	require.NoError(t, err)
	assert.Equal(t, profile.ActionCancel, r.Action)
	assert.Empty(t, r.Values)
}

func TestPresenter_AskEOF(t *testing.T) {
	p, _ := newTestPresenter("")

	_, err := p.Ask(context.Background(), textDialog())

	assert.ErrorIs(t, err, io.EOF)
}

func TestPresenter_AskPasswordsUseHiddenInput(t *testing.T) {
	p, _ := newTestPresenter("y\n")
	var prompts []string
	p.secret = func(prompt string, w io.Writer) (string, error) {
		prompts = append(prompts, prompt)
		return strings.ToLower(strings.ReplaceAll(prompt, " ", "")), nil
	}

	r, err := p.Ask(context.Background(), profile.Dialog{
		Title: "Change password",
		Inputs: []profile.Input{
			{Name: "currentPassword", Placeholder: "Current password", Type: profile.InputPassword},
			{Name: "password", Placeholder: "New password", Type: profile.InputPassword},
		},
		Options: []profile.Option{{Label: "Cancel"}, {Label: "Save", Action: profile.ActionSave}},
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"Current password", "New password"}, prompts)
	assert.Equal(t, "currentpassword", r.Values["currentPassword"])
	assert.Equal(t, "newpassword", r.Values["password"])
}

func TestPresenter_AskMenu(t *testing.T) {
	menu := profile.Dialog{
		Title: "Change profile photo",
		Options: []profile.Option{
			{Label: "Cancel"},
			{Label: "Choose from library", Action: profile.ActionLibrary},
			{Label: "Take a photo", Action: profile.ActionCamera},
		},
	}

	tests := map[string]string{
		"1\n": profile.ActionLibrary,
		"2\n": profile.ActionCamera,
		"3\n": profile.ActionCancel,
		"x\n": profile.ActionCancel,
		"\n":  profile.ActionCancel,
	}
	for in, want := range tests {
		p, out := newTestPresenter(in)
		r, err := p.Ask(context.Background(), menu)
		require.NoError(t, err)
		assert.Equal(t, want, r.Action, "input %q", in)
		assert.Contains(t, out.String(), "2) Take a photo")
	}
}

func TestPresenter_ToastAndAlert(t *testing.T) {
	p, out := newTestPresenter("")

	p.Toast(context.Background(), "profile/updated")
	p.Alert(context.Background(), "no/such-code")

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "* Your profile has been updated.", lines[0])
	assert.Contains(t, lines[1], "no/such-code")
}

func TestPresenter_BusyNests(t *testing.T) {
	p, out := newTestPresenter("")
	ctx := context.Background()

	outer := p.Busy(ctx)
	inner := p.Busy(ctx)
	inner()
	inner()
	assert.Equal(t, "working... ", out.String())

	outer()
	assert.Equal(t, "working... done\n", out.String())
}
