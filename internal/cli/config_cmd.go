package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"agentloop/internal/config"
	"agentloop/internal/domain"
)

// ConfigOptions holds options for the config command.
type ConfigOptions struct {
	ConfigPath string // empty resolves via config.ResolvePath
	Action     string // get, set or unset
	Path       string // dotted key, e.g. "agent.maxSteps"
	Value      string // raw value for set; JSON literals keep their type
}

// configTree is the config file decoded without a schema so that edits
// keep keys the current version does not know about.
type configTree map[string]any

// RunConfig runs get/set/unset against the JSON config file and returns the
// process exit code.
func RunConfig(opts ConfigOptions, stdout, stderr io.Writer) int {
	path := config.ResolvePath(opts.ConfigPath)
	tree, err := readConfigTree(path)
	if errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(stderr, "Error: no configuration found at %s\n", path)
		fmt.Fprintln(stderr, "Run 'agentloop check --fix' first to create one.")
		return 1
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	keys := strings.Split(opts.Path, ".")
	switch opts.Action {
	case "get":
		v, ok := tree.get(keys)
		if !ok {
			fmt.Fprintf(stderr, "Error: path %q not found in config\n", opts.Path)
			return 1
		}
		fmt.Fprintln(stdout, formatConfigValue(v))
		return 0
	case "set":
		err = setConfigValue(tree, keys, parseConfigValue(opts.Value))
		if err == nil {
			err = checkConfigShape(tree)
		}
	case "unset":
		err = tree.unset(keys)
	default:
		fmt.Fprintf(stderr, "Error: unknown action %q (use get, set or unset)\n", opts.Action)
		return 1
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %s: %v\n", opts.Path, err)
		return 1
	}
	if err := writeConfigTree(path, tree); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Fprintln(stdout, "ok")
	return 0
}

func readConfigTree(path string) (configTree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var tree configTree
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if tree == nil {
		tree = configTree{}
	}
	return tree, nil
}

func writeConfigTree(path string, tree configTree) error {
	data, err := json.MarshalIndent(tree, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// parseConfigValue reads raw as a JSON literal (number, bool, null, array,
// object or quoted string) and falls back to the bare text.
func parseConfigValue(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err == nil {
		return v
	}
	return raw
}

func formatConfigValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}

func (t configTree) get(keys []string) (any, bool) {
	var cur any = map[string]any(t)
	for _, k := range keys {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[k]; !ok {
			return nil, false
		}
	}
	return cur, true
}

// set stores v at keys, replacing scalars on the way with objects.
func (t configTree) set(keys []string, v any) error {
	if len(keys) == 0 || keys[0] == "" {
		return errors.New("empty path")
	}
	m := map[string]any(t)
	for _, k := range keys[:len(keys)-1] {
		next, ok := m[k].(map[string]any)
		if !ok {
			next = map[string]any{}
			m[k] = next
		}
		m = next
	}
	m[keys[len(keys)-1]] = v
	return nil
}

func (t configTree) unset(keys []string) error {
	m := map[string]any(t)
	for i, k := range keys[:len(keys)-1] {
		next, ok := m[k].(map[string]any)
		if !ok {
			return fmt.Errorf("%q is not an object", strings.Join(keys[:i+1], "."))
		}
		m = next
	}
	last := keys[len(keys)-1]
	if _, ok := m[last]; !ok {
		return errors.New("not found")
	}
	delete(m, last)
	return nil
}

// checkConfigShape rejects edits that no longer decode into domain.Config,
// such as a string where a number is expected.
func checkConfigShape(tree configTree) error {
	data, err := json.Marshal(tree)
	if err != nil {
		return err
	}
	var c domain.Config
	return json.Unmarshal(data, &c)
}
