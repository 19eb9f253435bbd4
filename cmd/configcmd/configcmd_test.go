package configcmd

import (
	"bytes"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/mxpack/mxpack/internal/testutil"
)

func TestConfigShow(t *testing.T) {
	testutil.NewTestEnv(t)

	var out bytes.Buffer
	showCmd.SetOut(&out)
	showCmd.SetErr(&out)
	ConfigCmd.SetArgs([]string{"show"})
	if err := ConfigCmd.Execute(); err != nil {
		t.Fatalf("config show failed: %v", err)
	}

	if !strings.Contains(out.String(), "# no config file found") {
		t.Errorf("missing defaults banner in output:\n%s", out.String())
	}

	// Strip comment lines and confirm the rest parses as YAML with the
	// expected sections.
	var body strings.Builder
	for _, line := range strings.Split(out.String(), "\n") {
		if strings.HasPrefix(line, "#") {
			continue
		}
		body.WriteString(line)
		body.WriteString("\n")
	}

	var settings map[string]any
	if err := yaml.Unmarshal([]byte(body.String()), &settings); err != nil {
		t.Fatalf("output is not valid YAML: %v", err)
	}
	for _, section := range []string{"telegram", "matrix", "import", "dedup", "index"} {
		if _, ok := settings[section]; !ok {
			t.Errorf("output is missing the %q section", section)
		}
	}
}
