package tui

import (
	"errors"
	"net/url"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/JYU-DI/timsync/internal/config"
)

// TargetForm prompts for the connection details of a sync target.
type TargetForm struct {
	form   *huh.Form
	name   string
	target config.Target
}

// NewTargetForm creates the prompt. Fields start from defaults; an empty
// host defaults to the public TIM instance. The name field is only shown
// when askName is set.
func NewTargetForm(name string, defaults config.Target, askName bool) *TargetForm {
	tf := &TargetForm{name: name, target: defaults}
	if tf.target.Host == "" {
		tf.target.Host = config.DefaultHost
	}

	nameGroup := huh.NewGroup(
		huh.NewInput().
			Title("Target name").
			Placeholder(config.DefaultTarget).
			Value(&tf.name).
			Validate(validateName),
	).Title("Sync target").
		WithHideFunc(func() bool { return !askName })

	remoteGroup := huh.NewGroup(
		huh.NewInput().
			Title("TIM host").
			Placeholder(config.DefaultHost).
			Value(&tf.target.Host).
			Validate(validateHost),
		huh.NewInput().
			Title("Folder in TIM").
			Description("Documents are synchronized below this folder, e.g. kurssit/tie/kurssi").
			Value(&tf.target.FolderRoot).
			Validate(validateFolderRoot),
	).Title("Remote")

	authGroup := huh.NewGroup(
		huh.NewInput().
			Title("Username").
			Value(&tf.target.Username).
			Validate(required("username")),
		huh.NewInput().
			Title("Password").
			Value(&tf.target.Password).
			EchoMode(huh.EchoModePassword),
	).Title("Authentication")

	tf.form = huh.NewForm(nameGroup, remoteGroup, authGroup)
	return tf
}

// Form returns the underlying huh.Form.
func (t *TargetForm) Form() *huh.Form { return t.form }

// Run shows the form on the terminal.
func (t *TargetForm) Run() error { return t.form.Run() }

// Name returns the entered target name.
func (t *TargetForm) Name() string { return strings.TrimSpace(t.name) }

// Target returns the entered target with normalized host and folder.
func (t *TargetForm) Target() config.Target {
	out := t.target
	out.Host = strings.TrimRight(strings.TrimSpace(out.Host), "/")
	out.FolderRoot = strings.Trim(strings.TrimSpace(out.FolderRoot), "/")
	out.Username = strings.TrimSpace(out.Username)
	return out
}

func validateName(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return errors.New("name is required")
	}
	if strings.ContainsAny(s, " ./\\") {
		return errors.New("name must not contain spaces, dots or slashes")
	}
	return nil
}

func validateHost(s string) error {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("host must be an http(s) URL")
	}
	return nil
}

func validateFolderRoot(s string) error {
	if strings.Trim(strings.TrimSpace(s), "/") == "" {
		return errors.New("folder is required")
	}
	return nil
}

func required(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return errors.New(field + " is required")
		}
		return nil
	}
}
