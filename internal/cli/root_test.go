//go:build !integration

package cli

import "testing"

func TestRootCommandTree(t *testing.T) {
	want := []string{"api", "worker", "migrate", "submit", "ask", "queue"}
	for _, name := range want {
		cmd, _, err := rootCmd.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("subcommand %q not registered: %v", name, err)
		}
	}

	f := rootCmd.PersistentFlags().Lookup("config")
	if f == nil || f.DefValue != "config.yaml" {
		t.Errorf("unexpected --config flag %+v", f)
	}
	if workerCmd.Flags().Lookup("metrics-port") == nil {
		t.Error("expected --metrics-port on worker")
	}
}

func TestArgsValidation(t *testing.T) {
	if err := submitCmd.Args(submitCmd, nil); err == nil {
		t.Error("submit without a URL should fail")
	}
	if err := askCmd.Args(askCmd, []string{"what", "is", "this"}); err != nil {
		t.Errorf("ask should accept several words: %v", err)
	}
}
