package config

import (
	"testing"

	"src.kati.dev/pkg/must"
	"src.kati.dev/pkg/testutil"
)

func TestLoad(t *testing.T) {
	testutil.InTempDir(t)
	must.WriteFile(".katirc", "jobs: 4\nshell: /bin/bash\nsilent: true\n")
	cfg, err := Load(".katirc")
	must.OK(err)
	if cfg.Jobs != 4 || cfg.Shell != "/bin/bash" || !cfg.Silent {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoadMissing(t *testing.T) {
	testutil.InTempDir(t)
	cfg, err := Load(".katirc")
	must.OK(err)
	if cfg != (Config{}) {
		t.Errorf("missing rc produced %+v", cfg)
	}
}

func TestLoadMalformed(t *testing.T) {
	testutil.InTempDir(t)
	must.WriteFile(".katirc", "jobs: [oops\n")
	if _, err := Load(".katirc"); err == nil {
		t.Errorf("malformed rc did not fail")
	}
}

func TestDefaultPath(t *testing.T) {
	testutil.Setenv(t, "KATIRC", "/etc/katirc")
	if got := DefaultPath(); got != "/etc/katirc" {
		t.Errorf("DefaultPath = %q", got)
	}
	testutil.Unsetenv(t, "KATIRC")
	if got := DefaultPath(); got != ".katirc" {
		t.Errorf("DefaultPath = %q", got)
	}
}
