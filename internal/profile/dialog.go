package profile

import "github.com/dmitrijs2005/profilekeeper/internal/models"

// InputType tells the presenter how to collect a value.
type InputType string

const (
	InputText     InputType = "text"
	InputPassword InputType = "password"
)

// Reply actions. The empty action is a cancel.
const (
	ActionCancel  = ""
	ActionSave    = "save"
	ActionConfirm = "confirm"
	ActionCamera  = "camera"
	ActionLibrary = "library"
)

type Input struct {
	Name        string
	Placeholder string
	Type        InputType
	Default     string
}

type Option struct {
	Label  string
	Action string
}

// Dialog is a data-only request for the presenter.
type Dialog struct {
	Title   string
	Message string
	Inputs  []Input
	Options []Option
}

// Reply is what the presenter collected: the chosen action and the entered
// values keyed by input name.
type Reply struct {
	Action string
	Values map[string]string
}

func cancelOption() Option { return Option{Label: "Cancel", Action: ActionCancel} }

// Typed answers. Nothing outside this file reads Reply.Values.

type textAnswer struct {
	value string
}

type passwordAnswer struct {
	current string
	next    string
	confirm string
}

type photoAnswer struct {
	source models.PhotoSource
}

const (
	inputCurrentPassword = "currentPassword"
	inputPassword        = "password"
	inputConfirmPassword = "confirmPassword"
)

func textDialog(title, message, name, placeholder, current string) Dialog {
	return Dialog{
		Title:   title,
		Message: message,
		Inputs:  []Input{{Name: name, Placeholder: placeholder, Type: InputText, Default: current}},
		Options: []Option{cancelOption(), {Label: "Save", Action: ActionSave}},
	}
}

func decodeText(r Reply, name string) (textAnswer, bool) {
	if r.Action != ActionSave {
		return textAnswer{}, false
	}
	return textAnswer{value: r.Values[name]}, true
}

func passwordDialog() Dialog {
	return Dialog{
		Title:   "Change password",
		Message: "Enter your current password and the new one twice.",
		Inputs: []Input{
			{Name: inputCurrentPassword, Placeholder: "Current password", Type: InputPassword},
			{Name: inputPassword, Placeholder: "New password", Type: InputPassword},
			{Name: inputConfirmPassword, Placeholder: "Confirm password", Type: InputPassword},
		},
		Options: []Option{cancelOption(), {Label: "Save", Action: ActionSave}},
	}
}

func decodePassword(r Reply) (passwordAnswer, bool) {
	if r.Action != ActionSave {
		return passwordAnswer{}, false
	}
	return passwordAnswer{
		current: r.Values[inputCurrentPassword],
		next:    r.Values[inputPassword],
		confirm: r.Values[inputConfirmPassword],
	}, true
}

func photoDialog() Dialog {
	return Dialog{
		Title:   "Change profile photo",
		Message: "Take a new photo or choose one from your library?",
		Options: []Option{
			cancelOption(),
			{Label: "Choose from library", Action: ActionLibrary},
			{Label: "Take a photo", Action: ActionCamera},
		},
	}
}

func decodePhoto(r Reply) (photoAnswer, bool) {
	switch r.Action {
	case ActionCamera:
		return photoAnswer{source: models.PhotoFromCamera}, true
	case ActionLibrary:
		return photoAnswer{source: models.PhotoFromLibrary}, true
	}
	return photoAnswer{}, false
}

func confirmDialog(title, message, confirmLabel string) Dialog {
	return Dialog{
		Title:   title,
		Message: message,
		Options: []Option{cancelOption(), {Label: confirmLabel, Action: ActionConfirm}},
	}
}

func decodeConfirm(r Reply) bool {
	return r.Action == ActionConfirm
}
