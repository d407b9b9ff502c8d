// CLI integration tests for recall: binary built once, each test runs
// against an isolated database seeded through the library.
package integration

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mesh-intelligence/recall/pkg/budget"
	"github.com/mesh-intelligence/recall/pkg/graph"
	"github.com/mesh-intelligence/recall/pkg/types"
)

// TestMain builds the recall binary once before running tests.
func TestMain(m *testing.M) {
	projectRoot, err := FindProjectRoot()
	if err != nil {
		buildErr = err
		os.Exit(1)
	}

	tmpDir, err := os.MkdirTemp("", "recall-test-*")
	if err != nil {
		buildErr = err
		os.Exit(1)
	}
	binPath := filepath.Join(tmpDir, "recall")
	recallBin = binPath

	cmd := exec.Command("go", "build", "-o", binPath, "./cmd/recall")
	cmd.Dir = projectRoot
	if output, err := cmd.CombinedOutput(); err != nil {
		buildErr = &BuildError{Err: err, Output: string(output)}
		os.Exit(1)
	}

	code := m.Run()

	os.RemoveAll(tmpDir)
	os.Exit(code)
}

// seed saves records into the test database through the library.
func (e *TestEnv) seed(fn func(g *graph.Graph) error) {
	e.t.Helper()

	g, err := graph.Open(types.Config{Path: e.Database})
	if err != nil {
		e.t.Fatalf("open database: %v", err)
	}
	defer g.Close()
	budget.Register(g)

	if err := fn(g); err != nil {
		e.t.Fatalf("seed database: %v", err)
	}
}

func TestInitCreatesDatabase(t *testing.T) {
	env := NewTestEnv(t)

	result := env.MustRunRecall("init")
	if !strings.Contains(result.Stdout, "initialized") {
		t.Errorf("unexpected init output: %q", result.Stdout)
	}

	if _, err := os.Stat(env.Database); os.IsNotExist(err) {
		t.Error("database file not created")
	}
}

func TestVersionOutput(t *testing.T) {
	env := NewTestEnv(t)

	result := env.MustRunRecall("version")
	if !strings.Contains(result.Stdout, "recall v") {
		t.Errorf("unexpected version output: %q", result.Stdout)
	}
}

func TestStatusOnEmptyDatabase(t *testing.T) {
	env := NewTestEnv(t)
	env.MustRunRecall("init")

	result := env.MustRunRecall("status")
	if !strings.Contains(result.Stdout, "operations: 0") {
		t.Errorf("unexpected status output: %q", result.Stdout)
	}
}

func TestHistoryAfterSave(t *testing.T) {
	env := NewTestEnv(t)
	env.MustRunRecall("init")

	env.seed(func(g *graph.Graph) error {
		return g.Save(&budget.BudgetItem{Label: "rent", Budgeted: 900})
	})

	result := env.MustRunRecall("history")
	if !strings.Contains(result.Stdout, "create") {
		t.Errorf("expected a create operation in history, got: %q", result.Stdout)
	}
	if !strings.Contains(result.Stdout, "*") {
		t.Errorf("expected a current marker in history, got: %q", result.Stdout)
	}
}

func TestUndoRedoCycle(t *testing.T) {
	env := NewTestEnv(t)
	env.MustRunRecall("init")

	env.seed(func(g *graph.Graph) error {
		return g.Save(&budget.BudgetItem{Label: "groceries", Budgeted: 120})
	})

	undo := env.MustRunRecall("undo")
	if !strings.Contains(undo.Stdout, "delete") {
		t.Errorf("undoing a create should replay delete, got: %q", undo.Stdout)
	}

	status := env.MustRunRecall("status")
	if strings.Contains(status.Stdout, "BudgetItem") {
		t.Errorf("expected no BudgetItem vertices after undo, got: %q", status.Stdout)
	}

	redo := env.MustRunRecall("redo")
	if !strings.Contains(redo.Stdout, "create") {
		t.Errorf("redo should replay create, got: %q", redo.Stdout)
	}

	status = env.MustRunRecall("status")
	if !strings.Contains(status.Stdout, "BudgetItem: 1") {
		t.Errorf("expected one BudgetItem vertex after redo, got: %q", status.Stdout)
	}
}

func TestUndoOnEmptyHistory(t *testing.T) {
	env := NewTestEnv(t)
	env.MustRunRecall("init")

	result := env.MustRunRecall("undo")
	if !strings.Contains(result.Stdout, "nothing to undo") {
		t.Errorf("unexpected undo output: %q", result.Stdout)
	}

	result = env.MustRunRecall("redo")
	if !strings.Contains(result.Stdout, "nothing to redo") {
		t.Errorf("unexpected redo output: %q", result.Stdout)
	}
}

func TestCompletionsCommand(t *testing.T) {
	env := NewTestEnv(t)
	env.MustRunRecall("init")

	env.seed(func(g *graph.Graph) error {
		if err := g.Save(&budget.BudgetItem{Label: "rent", Budgeted: 900}); err != nil {
			return err
		}
		return g.Save(&budget.BudgetItem{Label: "restaurants", Budgeted: 150})
	})

	result := env.MustRunRecall("completions", "BudgetItem", "label", "re")
	for _, want := range []string{"rent", "restaurants"} {
		if !strings.Contains(result.Stdout, want) {
			t.Errorf("expected %q in completions, got: %q", want, result.Stdout)
		}
	}

	result = env.MustRunRecall("completions", "BudgetItem", "label", "rent")
	if strings.Contains(result.Stdout, "restaurants") {
		t.Errorf("prefix filter leaked: %q", result.Stdout)
	}
}
