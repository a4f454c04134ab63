package templating

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aymerick/raymond"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	starlib "go.starlark.net/starlark"

	"github.com/JYU-DI/timsync/internal/parid"
)

// HelpersDir holds the project's script helpers.
const HelpersDir = "_helpers"

// Scripts is a set of helper functions written in Starlark. Each top level
// function of a _helpers/*.star file whose name does not start with "_"
// becomes a helper called with the hash arguments as keyword arguments.
type Scripts struct {
	fns map[string]*starlib.Function
}

// LoadScripts executes every .star file in the _helpers folder of the
// project. A missing folder yields an empty set.
func LoadScripts(fsys afero.Fs, projectDir string) (*Scripts, error) {
	s := &Scripts{fns: map[string]*starlib.Function{}}
	dir := filepath.Join(projectDir, HelpersDir)
	entries, err := afero.ReadDir(fsys, dir)
	if err != nil {
		return s, nil
	}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".star" {
			continue
		}
		if err := s.load(fsys, filepath.Join(dir, e.Name())); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Scripts) load(fsys afero.Fs, path string) error {
	src, err := afero.ReadFile(fsys, path)
	if err != nil {
		return fmt.Errorf("read helper script %q: %w", path, err)
	}

	thread := &starlib.Thread{Name: filepath.Base(path)}
	predeclared := starlib.StringDict{
		"par_id": starlib.NewBuiltin("par_id", builtinParID),
		"log":    starlib.NewBuiltin("log", builtinLog),
	}
	globals, err := starlib.ExecFile(thread, path, src, predeclared)
	if err != nil {
		return fmt.Errorf("execute helper script %q: %w", path, err)
	}
	globals.Freeze()

	for name, v := range globals {
		fn, ok := v.(*starlib.Function)
		if !ok || strings.HasPrefix(name, "_") {
			continue
		}
		if _, dup := s.fns[name]; dup {
			return fmt.Errorf("helper %q defined twice (again in %s)", name, path)
		}
		s.fns[name] = fn
	}
	return nil
}

// Names lists the helper names, sorted.
func (s *Scripts) Names() []string {
	names := make([]string, 0, len(s.fns))
	for name := range s.fns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Call runs helper name with kwargs and returns its result as text.
func (s *Scripts) Call(name string, kwargs map[string]any) (string, error) {
	fn, ok := s.fns[name]
	if !ok {
		return "", fmt.Errorf("unknown script helper %q", name)
	}
	keys := make([]string, 0, len(kwargs))
	for k := range kwargs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	args := make([]starlib.Tuple, 0, len(keys))
	for _, k := range keys {
		v, err := toStarlark(kwargs[k])
		if err != nil {
			return "", fmt.Errorf("helper %s: argument %s: %w", name, k, err)
		}
		args = append(args, starlib.Tuple{starlib.String(k), v})
	}

	thread := &starlib.Thread{Name: name}
	out, err := starlib.Call(thread, fn, nil, args)
	if err != nil {
		return "", fmt.Errorf("helper %s: %w", name, err)
	}
	switch v := out.(type) {
	case starlib.String:
		return string(v), nil
	case starlib.NoneType:
		return "", nil
	default:
		return v.String(), nil
	}
}

func (st *state) scriptHelper(name string) func(*raymond.Options) raymond.SafeString {
	return func(options *raymond.Options) raymond.SafeString {
		out, err := st.r.scripts.Call(name, options.Hash())
		if err != nil {
			st.fail(err)
		}
		return raymond.SafeString(out)
	}
}

func toStarlark(v any) (starlib.Value, error) {
	switch v := v.(type) {
	case nil:
		return starlib.None, nil
	case string:
		return starlib.String(v), nil
	case bool:
		return starlib.Bool(v), nil
	case int:
		return starlib.MakeInt(v), nil
	case int64:
		return starlib.MakeInt64(v), nil
	case float64:
		return starlib.Float(v), nil
	case []any:
		list := make([]starlib.Value, len(v))
		for i, item := range v {
			sv, err := toStarlark(item)
			if err != nil {
				return nil, err
			}
			list[i] = sv
		}
		return starlib.NewList(list), nil
	case map[string]any:
		dict := starlib.NewDict(len(v))
		for k, item := range v {
			sv, err := toStarlark(item)
			if err != nil {
				return nil, err
			}
			if err := dict.SetKey(starlib.String(k), sv); err != nil {
				return nil, err
			}
		}
		return dict, nil
	default:
		return nil, fmt.Errorf("unsupported value of type %T", v)
	}
}

// builtinParID implements par_id(seed="") -> string.
func builtinParID(
	_ *starlib.Thread,
	fn *starlib.Builtin,
	args starlib.Tuple,
	kwargs []starlib.Tuple,
) (starlib.Value, error) {
	var seed string
	if err := starlib.UnpackArgs(fn.Name(), args, kwargs, "seed?", &seed); err != nil {
		return nil, err
	}
	return starlib.String(parid.Hashed(seed)), nil
}

// builtinLog implements log(msg) -> None.
func builtinLog(
	thread *starlib.Thread,
	fn *starlib.Builtin,
	args starlib.Tuple,
	kwargs []starlib.Tuple,
) (starlib.Value, error) {
	var msg string
	if err := starlib.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &msg); err != nil {
		return nil, err
	}
	log.WithField("script", thread.Name).Info(msg)
	return starlib.None, nil
}
