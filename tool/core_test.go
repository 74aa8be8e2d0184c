package tool

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recodeai/recode"
)

func coreSetup(t *testing.T) (*Registry, string) {
	t.Helper()
	root := t.TempDir()
	reg := NewRegistry()
	RegisterCore(reg, NewWorkspace(root))
	return reg, root
}

func run(t *testing.T, reg *Registry, name string, params map[string]string) (string, error) {
	t.Helper()
	handler, ok := reg.Get(name)
	require.True(t, ok, "tool %q not registered", name)
	return handler(context.Background(), recode.ToolUse{ID: "t", Name: name, Params: params})
}

func TestCoreReadFile(t *testing.T) {
	reg, root := coreSetup(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("alpha\nbeta\n"), 0o644))

	t.Run("numbers lines", func(t *testing.T) {
		out, err := run(t, reg, "read_file", map[string]string{"path": "notes.txt"})
		require.NoError(t, err)
		assert.Contains(t, out, "1 | alpha")
		assert.Contains(t, out, "2 | beta")
	})

	t.Run("missing file classified", func(t *testing.T) {
		_, err := run(t, reg, "read_file", map[string]string{"path": "ghost.txt"})
		assert.Equal(t, FailureFileNotFound, KindOf(err))
	})

	t.Run("escape outside workspace rejected", func(t *testing.T) {
		_, err := run(t, reg, "read_file", map[string]string{"path": "../../etc/passwd"})
		assert.Equal(t, FailureInvalidInput, KindOf(err))
	})
}

func TestCoreWriteFile(t *testing.T) {
	reg, root := coreSetup(t)

	t.Run("creates file and parents", func(t *testing.T) {
		out, err := run(t, reg, "write_file", map[string]string{
			"path":    "sub/dir/new.txt",
			"content": "hello",
		})
		require.NoError(t, err)
		assert.Contains(t, out, "sub/dir/new.txt")

		data, err := os.ReadFile(filepath.Join(root, "sub/dir/new.txt"))
		require.NoError(t, err)
		assert.Equal(t, "hello", string(data))
	})

	t.Run("overwrite reported", func(t *testing.T) {
		_, err := run(t, reg, "write_file", map[string]string{"path": "dup.txt", "content": "v1"})
		require.NoError(t, err)
		out, err := run(t, reg, "write_file", map[string]string{"path": "dup.txt", "content": "v2"})
		require.NoError(t, err)
		assert.Contains(t, out, "overwrote")
	})
}

func TestCoreExecuteCommand(t *testing.T) {
	reg, _ := coreSetup(t)

	t.Run("captures stdout", func(t *testing.T) {
		out, err := run(t, reg, "execute_command", map[string]string{"command": "echo hi"})
		require.NoError(t, err)
		assert.Contains(t, out, "hi")
	})

	t.Run("non-zero exit is typed failure with output", func(t *testing.T) {
		_, err := run(t, reg, "execute_command", map[string]string{"command": "echo oops >&2; exit 3"})
		assert.Equal(t, FailureNonZeroExit, KindOf(err))
		assert.Contains(t, err.Error(), "oops")
	})
}

func TestCoreListFiles(t *testing.T) {
	reg, root := coreSetup(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.go"), []byte("package a"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "pkg"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "pkg", "b.go"), []byte("package b"), 0o644))

	t.Run("top level", func(t *testing.T) {
		out, err := run(t, reg, "list_files", map[string]string{"path": "."})
		require.NoError(t, err)
		assert.Contains(t, out, "a.go")
		assert.NotContains(t, out, "b.go")
	})

	t.Run("recursive", func(t *testing.T) {
		out, err := run(t, reg, "list_files", map[string]string{"path": ".", "recursive": "true"})
		require.NoError(t, err)
		assert.Contains(t, out, "a.go")
		assert.Contains(t, out, filepath.Join("pkg", "b.go"))
	})
}

func TestCoreSearchFiles(t *testing.T) {
	reg, root := coreSetup(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.go"), []byte("func main() {}\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "readme.md"), []byte("main entry\n"), 0o644))

	t.Run("matches with location", func(t *testing.T) {
		out, err := run(t, reg, "search_files", map[string]string{"path": ".", "regex": "func main"})
		require.NoError(t, err)
		assert.Contains(t, out, "main.go:1:")
	})

	t.Run("file pattern filters", func(t *testing.T) {
		out, err := run(t, reg, "search_files", map[string]string{"path": ".", "regex": "main", "file_pattern": "*.md"})
		require.NoError(t, err)
		assert.Contains(t, out, "readme.md")
		assert.NotContains(t, out, "main.go:")
	})

	t.Run("bad regex is invalid input", func(t *testing.T) {
		_, err := run(t, reg, "search_files", map[string]string{"path": ".", "regex": "["})
		assert.Equal(t, FailureInvalidInput, KindOf(err))
	})
}
