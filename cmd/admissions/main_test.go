package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hubenschmidt/go-admissions/scoring"
)

// setupConfig points the CLI at a fresh SQLite-backed, offline config.
func setupConfig(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "admissions.yaml")
	data := fmt.Sprintf(`database:
  dsn: %s
embedding:
  provider: offline
  dimension: 16
llm:
  provider: none
`, filepath.Join(dir, "admissions.db"))
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	t.Setenv("ADMISSIONS_DATABASE_DSN", "")
	t.Setenv("ADMISSIONS_VECTOR_DSN", "")
	t.Setenv("ADMISSIONS_EMBEDDING_PROVIDER", "")
	t.Setenv("REDIS_ADDR", "")
	configPath = path
	envFile = filepath.Join(dir, ".env")
}

func resetFlags(cmd *cobra.Command) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if f.Name == "config" || f.Name == "env-file" {
			return
		}
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	})
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()
	return buf.String(), err
}

func TestRootCmd_Use(t *testing.T) {
	assert.Equal(t, "admissions", rootCmd.Use)
	assert.Contains(t, rootCmd.Long, "retrieval index")
}

func TestRootCmd_HasSubcommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"document", "query", "ask", "recommend", "eligibility", "programs", "serve"} {
		assert.True(t, names[want], "missing %s", want)
	}
}

func TestQueryCmd_RequiresExactlyOneArg(t *testing.T) {
	setupConfig(t)
	_, err := execute(t, "query")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg(s)")
}

func TestQueryCmd_HasTopKFlag(t *testing.T) {
	flag := queryCmd.Flags().Lookup("top-k")
	require.NotNil(t, flag)
	assert.Equal(t, "k", flag.Shorthand)
	assert.Equal(t, "5", flag.DefValue)
}

func TestDocumentAddCmd_RequiresTitle(t *testing.T) {
	setupConfig(t)
	_, err := execute(t, "document", "add", "some content")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "title")
}

func TestDocumentLifecycle(t *testing.T) {
	setupConfig(t)

	out, err := execute(t, "query", "when is tuition due")
	require.NoError(t, err)
	assert.Contains(t, out, "No relevant information found")

	out, err = execute(t, "document", "add", "--title", "Fees", "--category", "fee-schedule",
		"Tuition is due by August 15.")
	require.NoError(t, err)
	m := regexp.MustCompile(`Added document (\S+)`).FindStringSubmatch(out)
	require.Len(t, m, 2)
	id := m[1]

	out, err = execute(t, "document", "list")
	require.NoError(t, err)
	assert.Contains(t, out, id)
	assert.Contains(t, out, "Total: 1 documents")

	out, err = execute(t, "document", "get", id)
	require.NoError(t, err)
	assert.Contains(t, out, "fee-schedule")

	out, err = execute(t, "query", "--top-k", "1", "when is tuition due")
	require.NoError(t, err)
	assert.Contains(t, out, "Tuition is due by August 15.")

	out, err = execute(t, "ask", "when is tuition due")
	require.NoError(t, err)
	assert.Contains(t, out, "[offline]")

	out, err = execute(t, "document", "delete", id)
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted document")

	out, err = execute(t, "document", "delete", id)
	require.NoError(t, err)
	assert.Contains(t, out, "not found")
}

func TestDocumentAddCmd_FromFile(t *testing.T) {
	setupConfig(t)
	path := filepath.Join(t.TempDir(), "policy.txt")
	require.NoError(t, os.WriteFile(path, []byte("Attendance below 75% bars students from exams."), 0o644))

	out, err := execute(t, "document", "add", "--title", "Attendance", "--category", "academic-policy", "--file", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Added document")

	_, err = execute(t, "document", "add", "--title", "Empty")
	require.Error(t, err)
}

func TestDocumentAddCmd_InvalidCategory(t *testing.T) {
	setupConfig(t)
	_, err := execute(t, "document", "add", "--title", "x", "--category", "brochure", "content")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation")
}

func TestRecommendCmd_JSON(t *testing.T) {
	setupConfig(t)
	out, err := execute(t, "recommend", "--score", "3.6", "--tags", "Biology,Chemistry,Physics",
		"--interests", "medicine", "--json")
	require.NoError(t, err)

	var matches []scoring.Match
	require.NoError(t, json.Unmarshal([]byte(out), &matches))
	require.Len(t, matches, 5)
	assert.Equal(t, "3", matches[0].Program.ID)
}

func TestEligibilityCmd(t *testing.T) {
	setupConfig(t)
	out, err := execute(t, "eligibility", "4", "--score", "3.2", "--tags", "mathematics,physics,chemistry")
	require.NoError(t, err)
	assert.Contains(t, out, "Eligible:    true")
	assert.Contains(t, out, "academic 60.0, subjects 40.0")
	assert.Contains(t, out, "Merit Scholarship")

	out, err = execute(t, "eligibility", "4", "--tags", "mathematics")
	require.NoError(t, err)
	assert.Contains(t, out, "Eligible:    false")
	assert.Contains(t, out, "academic 0.0, subjects 20.0")

	_, err = execute(t, "eligibility", "99")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestProgramsCmd(t *testing.T) {
	setupConfig(t)
	out, err := execute(t, "programs")
	require.NoError(t, err)
	assert.Contains(t, out, "Bachelor of Computer Science")
	assert.Contains(t, out, "Bachelor of Psychology")
}

func TestGetEnvOr(t *testing.T) {
	t.Setenv("ADMISSIONS_TEST_ENV", "")
	assert.Equal(t, "fallback", getEnvOr("ADMISSIONS_TEST_ENV", "fallback"))
	t.Setenv("ADMISSIONS_TEST_ENV", "set")
	assert.Equal(t, "set", getEnvOr("ADMISSIONS_TEST_ENV", "fallback"))
}
