package tool

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/recodeai/recode"
)

// Workspace binds the core handlers to a directory. Relative tool paths
// resolve against Root; commands run with Root as working directory.
type Workspace struct {
	Root string
	// Shell runs execute_command lines. Defaults to /bin/sh.
	Shell string
	// MaxListEntries caps list_files and search_files output. Default 200.
	MaxListEntries int
}

// NewWorkspace creates a Workspace rooted at dir.
func NewWorkspace(dir string) *Workspace {
	return &Workspace{Root: dir, Shell: "/bin/sh", MaxListEntries: 200}
}

func (w *Workspace) resolve(rel string) (string, error) {
	path := rel
	if !filepath.IsAbs(path) {
		path = filepath.Join(w.Root, path)
	}
	path = filepath.Clean(path)

	root := filepath.Clean(w.Root)
	if path != root && !strings.HasPrefix(path, root+string(filepath.Separator)) {
		return "", Failf(FailureInvalidInput, "path %q is outside the workspace", rel)
	}
	return path, nil
}

// RegisterCore registers the filesystem and shell tools on a registry.
// browser_action is not included: browsing is a host collaborator and is
// registered by the host when available.
func RegisterCore(r *Registry, ws *Workspace) {
	r.MustRegister(Registration{
		Name:        "read_file",
		Description: "Read the contents of a file, line-numbered.",
		Handler:     ws.readFile,
	})
	r.MustRegister(Registration{
		Name:        "write_file",
		Description: "Write content to a file, creating parent directories as needed.",
		Handler:     ws.writeFile,
	})
	r.MustRegister(Registration{
		Name:        "apply_diff",
		Description: "Replace a section of a file using a search and replace block.",
		Handler:     ws.applyDiff,
	})
	r.MustRegister(Registration{
		Name:        "execute_command",
		Description: "Run a shell command in the workspace and capture its output.",
		Handler:     ws.executeCommand,
	})
	r.MustRegister(Registration{
		Name:        "list_files",
		Description: "List files in a directory, optionally recursive.",
		Handler:     ws.listFiles,
	})
	r.MustRegister(Registration{
		Name:        "search_files",
		Description: "Search file contents with a regular expression.",
		Handler:     ws.searchFiles,
	})
}

func (w *Workspace) readFile(_ context.Context, call recode.ToolUse) (string, error) {
	path, err := w.resolve(call.Param("path"))
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", classifyFSError(path, err)
	}

	// Line numbers help the model reference specific lines in later edits.
	lines := strings.Split(string(data), "\n")
	var b strings.Builder
	for i, line := range lines {
		fmt.Fprintf(&b, "%d | %s\n", i+1, line)
	}
	return strings.TrimSuffix(b.String(), "\n"), nil
}

func (w *Workspace) writeFile(_ context.Context, call recode.ToolUse) (string, error) {
	path, err := w.resolve(call.Param("path"))
	if err != nil {
		return "", err
	}
	content := call.Param("content")

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", classifyFSError(path, err)
	}
	_, statErr := os.Stat(path)
	existed := statErr == nil

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", classifyFSError(path, err)
	}
	verb := "created"
	if existed {
		verb = "overwrote"
	}
	return fmt.Sprintf("Successfully %s %s (%d bytes)", verb, call.Param("path"), len(content)), nil
}

func (w *Workspace) executeCommand(ctx context.Context, call recode.ToolUse) (string, error) {
	command := call.Param("command")

	shell := w.Shell
	if shell == "" {
		shell = "/bin/sh"
	}
	cmd := exec.CommandContext(ctx, shell, "-c", command)
	cmd.Dir = w.Root

	out, err := cmd.CombinedOutput()
	output := string(out)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if exitErr, ok := err.(*exec.ExitError); ok {
			return "", &Failure{
				Kind:   FailureNonZeroExit,
				Detail: fmt.Sprintf("command exited with code %d\n%s", exitErr.ExitCode(), output),
			}
		}
		return "", &Failure{Kind: FailureInvalidInput, Detail: "command could not be started", Err: err}
	}
	if output == "" {
		return "Command executed successfully with no output.", nil
	}
	return output, nil
}

func (w *Workspace) listFiles(_ context.Context, call recode.ToolUse) (string, error) {
	dir, err := w.resolve(call.Param("path"))
	if err != nil {
		return "", err
	}
	recursive := call.Param("recursive") == "true"
	limit := w.MaxListEntries
	if limit <= 0 {
		limit = 200
	}

	var entries []string
	hitLimit := false

	if recursive {
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if path == dir {
				return nil
			}
			rel, _ := filepath.Rel(dir, path)
			if d.IsDir() {
				rel += "/"
			}
			entries = append(entries, rel)
			if len(entries) >= limit {
				hitLimit = true
				return fs.SkipAll
			}
			return nil
		})
		if err != nil {
			return "", classifyFSError(dir, err)
		}
	} else {
		ents, err := os.ReadDir(dir)
		if err != nil {
			return "", classifyFSError(dir, err)
		}
		for _, ent := range ents {
			name := ent.Name()
			if ent.IsDir() {
				name += "/"
			}
			entries = append(entries, name)
			if len(entries) >= limit {
				hitLimit = true
				break
			}
		}
	}

	if len(entries) == 0 {
		return "(empty directory)", nil
	}
	out := strings.Join(entries, "\n")
	if hitLimit {
		out += fmt.Sprintf("\n(listing capped at %d entries)", limit)
	}
	return out, nil
}

func (w *Workspace) searchFiles(ctx context.Context, call recode.ToolUse) (string, error) {
	dir, err := w.resolve(call.Param("path"))
	if err != nil {
		return "", err
	}
	pattern := call.Param("regex")

	re, err := regexp.Compile(pattern)
	if err != nil {
		return "", &Failure{Kind: FailureInvalidInput, Detail: fmt.Sprintf("invalid regex %q", pattern), Err: err}
	}

	var filePattern string
	if fp := call.Param("file_pattern"); fp != "" {
		filePattern = fp
	}

	limit := w.MaxListEntries
	if limit <= 0 {
		limit = 200
	}

	var matches []string
	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}
		if filePattern != "" {
			ok, _ := filepath.Match(filePattern, d.Name())
			if !ok {
				return nil
			}
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil // unreadable file, keep searching
		}
		rel, _ := filepath.Rel(dir, path)
		for i, line := range strings.Split(string(data), "\n") {
			if re.MatchString(line) {
				matches = append(matches, fmt.Sprintf("%s:%d: %s", rel, i+1, strings.TrimSpace(line)))
				if len(matches) >= limit {
					return fs.SkipAll
				}
			}
		}
		return nil
	})
	if walkErr != nil {
		return "", classifyFSError(dir, walkErr)
	}

	if len(matches) == 0 {
		return fmt.Sprintf("No matches for %q.", pattern), nil
	}
	return strings.Join(matches, "\n"), nil
}

func classifyFSError(path string, err error) error {
	switch {
	case os.IsNotExist(err):
		return &Failure{Kind: FailureFileNotFound, Detail: fmt.Sprintf("%s does not exist", path), Err: err}
	case os.IsPermission(err):
		return &Failure{Kind: FailurePermissionDenied, Detail: fmt.Sprintf("permission denied for %s", path), Err: err}
	default:
		return err
	}
}
