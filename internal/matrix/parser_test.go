package matrix

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleMatrix = `# test matrix
[grid]
envs = py{27,34}-dj{18,19}

[runtimes]
py27: python2.7
py34: python3.4

[deps]
pytest
dj18: Django>=1.8,<1.9
dj19: Django>=1.9,<1.10

[commands]
{runtime} -m pytest tests
`

func TestParse_Sample(t *testing.T) {
	doc, err := Parse(strings.NewReader(sampleMatrix), "gridrun.ini")
	require.NoError(t, err)

	assert.Len(t, doc.Envs, 4)
	names := make([]string, len(doc.Envs))
	for i, e := range doc.Envs {
		names[i] = e.Name
	}
	assert.Equal(t, []string{"py27-dj18", "py27-dj19", "py34-dj18", "py34-dj19"}, names)

	assert.Equal(t, []Dependency{{Name: "pytest"}}, doc.BaseDeps)
	assert.Equal(t, Dependency{Name: "Django", Constraint: ">=1.8,<1.9"}, doc.Pins["dj18"])
	assert.Equal(t, Dependency{Name: "Django", Constraint: ">=1.9,<1.10"}, doc.Pins["dj19"])

	assert.Equal(t, "python2.7", doc.Runtimes["py27"])
	assert.Equal(t, DefaultInstallCommand, doc.InstallCommand)

	require.Len(t, doc.Commands, 1)
	assert.Equal(t, []string{"{runtime}", "-m", "pytest", "tests"}, doc.Commands[0].Argv)
	assert.Empty(t, doc.Commands[0].Dir)
}

func TestParse_InstallCommandOverride(t *testing.T) {
	input := `[grid]
envs = py38-dj32
install_command = {runtime} -m pip install --quiet {deps}

[deps]
dj32: Django>=3.2

[commands]
pytest
`
	doc, err := Parse(strings.NewReader(input), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"{runtime}", "-m", "pip", "install", "--quiet", "{deps}"}, doc.InstallCommand)
}

func TestParse_CommandDirectives(t *testing.T) {
	input := `[grid]
envs = py38-dj32

[deps]
dj32: Django>=3.2

[commands]
@src {runtime} -m pytest
{runtime} -m pytest "integration tests"
`
	doc, err := Parse(strings.NewReader(input), "")
	require.NoError(t, err)
	require.Len(t, doc.Commands, 2)

	assert.Equal(t, "src", doc.Commands[0].Dir)
	assert.Equal(t, []string{"{runtime}", "-m", "pytest"}, doc.Commands[0].Argv)

	assert.Empty(t, doc.Commands[1].Dir)
	assert.Equal(t, []string{"{runtime}", "-m", "pytest", "integration tests"}, doc.Commands[1].Argv)
}

func TestParse_PassthroughSections(t *testing.T) {
	input := `[grid]
envs = py38-dj32

[deps]
dj32: Django>=3.2

[commands]
pytest

[pytest]
addopts = -q
`
	doc, err := Parse(strings.NewReader(input), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"addopts = -q"}, doc.Passthrough["pytest"])
}

func TestParse_EnvsContinuationLines(t *testing.T) {
	input := `[grid]
envs = py38-dj32
    py39-dj40

[deps]
dj32: Django>=3.2
dj40: Django>=4.0

[commands]
pytest
`
	doc, err := Parse(strings.NewReader(input), "")
	require.NoError(t, err)
	assert.Len(t, doc.Envs, 2)
	assert.Equal(t, "py39-dj40", doc.Envs[1].Name)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantMsg string
	}{
		{
			name:    "missing envs",
			input:   "[grid]\n[commands]\npytest\n",
			wantMsg: "missing envs",
		},
		{
			name:    "missing commands",
			input:   "[grid]\nenvs = py38-dj32\n[deps]\ndj32: Django\n",
			wantMsg: "missing [commands]",
		},
		{
			name:    "unknown grid key",
			input:   "[grid]\nenvs = py38-dj32\nbogus = 1\n[deps]\ndj32: Django\n[commands]\npytest\n",
			wantMsg: "unknown key",
		},
		{
			name:    "content before section",
			input:   "envs = py38-dj32\n",
			wantMsg: "before first section",
		},
		{
			name:    "malformed section header",
			input:   "[grid\nenvs = py38-dj32\n",
			wantMsg: "malformed section header",
		},
		{
			name:    "duplicate pin",
			input:   "[grid]\nenvs = py38-dj32\n[deps]\ndj32: Django>=3.2\ndj32: Django>=4.0\n[commands]\npytest\n",
			wantMsg: "duplicate dependency pin",
		},
		{
			name:    "unterminated quote in command",
			input:   "[grid]\nenvs = py38-dj32\n[deps]\ndj32: Django\n[commands]\npytest \"unterminated\n",
			wantMsg: "unterminated quote",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.input), "gridrun.ini")
			require.Error(t, err)

			var parseErr *ParseError
			require.ErrorAs(t, err, &parseErr)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestParse_UnmatchedDepTagFailsBeforeExecution(t *testing.T) {
	input := `[grid]
envs = py{38,39}-dj{32,40}

[deps]
pytest
dj32: Django>=3.2,<3.3

[commands]
pytest
`
	_, err := Parse(strings.NewReader(input), "")
	require.Error(t, err)

	var pinErr *UnknownPinError
	require.True(t, errors.As(err, &pinErr))
	assert.Equal(t, "dj40", pinErr.DepTag)
	assert.Equal(t, "py38-dj40", pinErr.Env)
}

func TestCutPin(t *testing.T) {
	tests := []struct {
		line     string
		wantTag  string
		wantVal  string
		wantOK   bool
	}{
		{"dj32: Django>=3.2", "dj32", "Django>=3.2", true},
		{"pytest", "", "", false},
		{"pytest>=7", "", "", false},
		// A constraint containing a colon is a base dep, not a pin.
		{"pkg @ https://host:8080/x.tar.gz", "", "", false},
	}

	for _, tt := range tests {
		tag, val, ok := cutPin(tt.line)
		assert.Equal(t, tt.wantOK, ok, "line %q", tt.line)
		if ok {
			assert.Equal(t, tt.wantTag, tag)
			assert.Equal(t, tt.wantVal, val)
		}
	}
}

func TestParseDependency(t *testing.T) {
	tests := []struct {
		in   string
		want Dependency
	}{
		{"pytest", Dependency{Name: "pytest"}},
		{"Django>=1.8,<1.9", Dependency{Name: "Django", Constraint: ">=1.8,<1.9"}},
		{"requests==2.31.0", Dependency{Name: "requests", Constraint: "==2.31.0"}},
		{"pkg ~=1.0", Dependency{Name: "pkg", Constraint: "~=1.0"}},
	}

	for _, tt := range tests {
		got := parseDependency(tt.in)
		assert.Equal(t, tt.want, got, "input %q", tt.in)
		assert.Equal(t, strings.ReplaceAll(tt.in, " ", ""), strings.ReplaceAll(got.String(), " ", ""))
	}
}
