package littlecheck

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	toml "github.com/pelletier/go-toml/v2"
	"go.uber.org/zap"
)

// ProjectFile is the name of the project configuration file.
const ProjectFile = "littlecheck.toml"

// ProjectConfig holds convention-based configuration for a directory of
// test files.
type ProjectConfig struct {
	BinDir        string            `toml:"bin"`
	Setup         string            `toml:"setup"`
	Teardown      string            `toml:"teardown"`
	Pattern       string            `toml:"pattern"`
	Substitutions map[string]string `toml:"substitutions"`
	dir           string            // resolved absolute base directory
}

// LoadProjectConfig loads project configuration from a directory.
// It reads littlecheck.toml if present, then auto-detects conventional
// files (bin/, setup.sh, teardown.sh) for any paths the TOML leaves unset.
// All paths in the returned config are absolute.
func LoadProjectConfig(dir string) (*ProjectConfig, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve dir: %w", err)
	}

	var fromTOML ProjectConfig
	data, err := os.ReadFile(filepath.Join(absDir, ProjectFile))
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, &fromTOML); err != nil {
			return nil, fmt.Errorf("parse %s: %w", ProjectFile, err)
		}
		if err := validateTOMLPaths(absDir, &fromTOML); err != nil {
			return nil, err
		}
	case !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("read %s: %w", ProjectFile, err)
	}

	return &ProjectConfig{
		BinDir:        resolveField(absDir, fromTOML.BinDir, "bin", isDir),
		Setup:         resolveField(absDir, fromTOML.Setup, "setup.sh", isFile),
		Teardown:      resolveField(absDir, fromTOML.Teardown, "teardown.sh", isFile),
		Pattern:       fromTOML.Pattern,
		Substitutions: fromTOML.Substitutions,
		dir:           absDir,
	}, nil
}

// resolveField applies the TOML value if set, otherwise auto-detects the
// conventional path.
func resolveField(base, tomlVal, convention string, check func(string) bool) string {
	if tomlVal != "" {
		return filepath.Join(base, tomlVal)
	}
	candidate := filepath.Join(base, convention)
	if check(candidate) {
		return candidate
	}
	return ""
}

func validateTOMLPaths(base string, from *ProjectConfig) error {
	checks := []struct {
		val  string
		desc string
	}{
		{from.BinDir, "bin directory"},
		{from.Setup, "setup script"},
		{from.Teardown, "teardown script"},
	}
	for _, c := range checks {
		if c.val == "" {
			continue
		}
		if _, err := os.Stat(filepath.Join(base, c.val)); err != nil {
			return fmt.Errorf("%s: %s %q not found: %w", ProjectFile, c.desc, c.val, err)
		}
	}
	return nil
}

// Apply folds the project configuration into p and runs the global setup
// script. Substitutions already in p win over the project's. The returned
// cleanup runs the global teardown script and must always be called.
func (cfg *ProjectConfig) Apply(p *Params) (cleanup func(), err error) {
	cleanup = func() {}
	log := p.Logger
	if log == nil {
		log = zap.NewNop()
	}

	if p.Pattern == "" {
		p.Pattern = cfg.Pattern
	}
	p.Substitutions = Substitutions(cfg.Substitutions).Merge(p.Substitutions)
	for _, script := range []string{cfg.Setup, cfg.Teardown} {
		if script != "" {
			p.Exclude = append(p.Exclude, script)
		}
	}

	if cfg.BinDir != "" {
		binDir := cfg.BinDir
		origSetup := p.Setup
		p.Setup = func(env *Env) error {
			if origSetup != nil {
				if err := origSetup(env); err != nil {
					return err
				}
			}
			path := binDir
			if cur := env.Getenv("PATH"); cur != "" {
				path += string(os.PathListSeparator) + cur
			}
			env.Setenv("PATH", path)
			return nil
		}
	}

	if cfg.Setup != "" {
		if err := runGlobalScript(cfg.dir, cfg.Setup); err != nil {
			return cleanup, fmt.Errorf("global setup failed: %w", err)
		}
	}
	if cfg.Teardown != "" {
		dir, script := cfg.dir, cfg.Teardown
		cleanup = func() {
			if err := runGlobalScript(dir, script); err != nil {
				log.Warn("global teardown failed", zap.Error(err))
			}
		}
	}
	return cleanup, nil
}

// RunWithProject runs the test files in p.Dir with the project
// configuration found there.
func RunWithProject(t *testing.T, p Params) {
	cfg, err := LoadProjectConfig(p.Dir)
	if err != nil {
		t.Fatal(err)
	}
	cleanup, err := cfg.Apply(&p)
	defer cleanup()
	if err != nil {
		t.Fatal(err)
	}
	Run(t, p)
}

// runGlobalScript runs a shell script in the project directory.
func runGlobalScript(dir, scriptPath string) error {
	cmd := exec.Command("/bin/sh", scriptPath)
	cmd.Dir = dir
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w\n%s", filepath.Base(scriptPath), err, strings.TrimSpace(string(output)))
	}
	return nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
