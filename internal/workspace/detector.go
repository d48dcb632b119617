package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ProjectType represents the type of project.
type ProjectType string

const (
	ProjectTypeGo      ProjectType = "go"
	ProjectTypeNode    ProjectType = "node"
	ProjectTypePython  ProjectType = "python"
	ProjectTypeRust    ProjectType = "rust"
	ProjectTypeUnknown ProjectType = "unknown"
)

// PackageManager names the tool that installs a project's dependencies.
type PackageManager string

const (
	PackageManagerGo    PackageManager = "go"
	PackageManagerNPM   PackageManager = "npm"
	PackageManagerPNPM  PackageManager = "pnpm"
	PackageManagerYarn  PackageManager = "yarn"
	PackageManagerPip   PackageManager = "pip"
	PackageManagerCargo PackageManager = "cargo"
	PackageManagerNone  PackageManager = ""
)

// Check is one verification step run_checks can perform.
type Check string

const (
	CheckBuild     Check = "build"
	CheckTypecheck Check = "typecheck"
	CheckLint      Check = "lint"
	CheckTest      Check = "test"
)

// AllChecks is the default order checks run in.
var AllChecks = []Check{CheckBuild, CheckTypecheck, CheckLint, CheckTest}

// Command is an executable plus its arguments.
type Command struct {
	Name string
	Args []string
}

func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Project is what Detect learns about a directory.
type Project struct {
	Root           string
	Type           ProjectType
	PackageManager PackageManager
}

// Detect inspects root for manifests and lockfiles.
func Detect(root string) Project {
	p := Project{Root: root, Type: DetectProjectType(root)}
	switch p.Type {
	case ProjectTypeGo:
		p.PackageManager = PackageManagerGo
	case ProjectTypeNode:
		p.PackageManager = detectNodeManager(root)
	case ProjectTypePython:
		p.PackageManager = PackageManagerPip
	case ProjectTypeRust:
		p.PackageManager = PackageManagerCargo
	}
	return p
}

func exists(root, name string) bool {
	_, err := os.Stat(filepath.Join(root, name))
	return err == nil
}

func detectNodeManager(root string) PackageManager {
	switch {
	case exists(root, "pnpm-lock.yaml"):
		return PackageManagerPNPM
	case exists(root, "yarn.lock"):
		return PackageManagerYarn
	default:
		return PackageManagerNPM
	}
}

// DetectProjectType detects the project type using manifest-first detection with extension fallback.
func DetectProjectType(root string) ProjectType {
	switch {
	case exists(root, "go.mod"):
		return ProjectTypeGo
	case exists(root, "package.json"):
		return ProjectTypeNode
	case exists(root, "pyproject.toml"), exists(root, "requirements.txt"):
		return ProjectTypePython
	case exists(root, "Cargo.toml"):
		return ProjectTypeRust
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return ProjectTypeUnknown
	}
	counts := make(map[ProjectType]int)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".go":
			counts[ProjectTypeGo]++
		case ".ts", ".tsx", ".js", ".jsx":
			counts[ProjectTypeNode]++
		case ".py":
			counts[ProjectTypePython]++
		case ".rs":
			counts[ProjectTypeRust]++
		}
	}

	best, bestCount := ProjectTypeUnknown, 0
	for _, t := range []ProjectType{ProjectTypeGo, ProjectTypeNode, ProjectTypePython, ProjectTypeRust} {
		if counts[t] > bestCount {
			best, bestCount = t, counts[t]
		}
	}
	// A couple of stray scripts do not make a project.
	if bestCount >= 3 {
		return best
	}
	return ProjectTypeUnknown
}

// CheckCommand returns the command for check, or false when the project
// type has no such step.
func (p Project) CheckCommand(check Check) (Command, bool) {
	switch p.Type {
	case ProjectTypeGo:
		switch check {
		case CheckBuild:
			return Command{"go", []string{"build", "./..."}}, true
		case CheckTypecheck:
			return Command{"go", []string{"vet", "./..."}}, true
		case CheckLint:
			return Command{"gofmt", []string{"-l", "."}}, true
		case CheckTest:
			return Command{"go", []string{"test", "./..."}}, true
		}
	case ProjectTypeNode:
		pm := string(p.PackageManager)
		switch check {
		case CheckBuild:
			return Command{pm, []string{"run", "build"}}, true
		case CheckTypecheck:
			if !exists(p.Root, "tsconfig.json") {
				return Command{}, false
			}
			return Command{"npx", []string{"tsc", "--noEmit"}}, true
		case CheckLint:
			return Command{pm, []string{"run", "lint"}}, true
		case CheckTest:
			return Command{pm, []string{"test"}}, true
		}
	case ProjectTypePython:
		switch check {
		case CheckBuild:
			return Command{"python", []string{"-m", "compileall", "-q", "."}}, true
		case CheckTypecheck:
			return Command{"mypy", []string{"."}}, true
		case CheckLint:
			return Command{"ruff", []string{"check", "."}}, true
		case CheckTest:
			return Command{"pytest", nil}, true
		}
	case ProjectTypeRust:
		switch check {
		case CheckBuild:
			return Command{"cargo", []string{"build"}}, true
		case CheckTypecheck:
			return Command{"cargo", []string{"check"}}, true
		case CheckLint:
			return Command{"cargo", []string{"clippy", "--", "-D", "warnings"}}, true
		case CheckTest:
			return Command{"cargo", []string{"test"}}, true
		}
	}
	return Command{}, false
}

// InstallCommand returns the command that installs packages, or restores
// the declared dependencies when packages is empty.
func (p Project) InstallCommand(packages []string, dev bool) (Command, error) {
	switch p.PackageManager {
	case PackageManagerGo:
		if len(packages) == 0 {
			return Command{"go", []string{"mod", "tidy"}}, nil
		}
		return Command{"go", append([]string{"get"}, packages...)}, nil

	case PackageManagerNPM:
		args := []string{"install"}
		if dev && len(packages) > 0 {
			args = append(args, "--save-dev")
		}
		return Command{"npm", append(args, packages...)}, nil

	case PackageManagerPNPM:
		if len(packages) == 0 {
			return Command{"pnpm", []string{"install"}}, nil
		}
		args := []string{"add"}
		if dev {
			args = append(args, "-D")
		}
		return Command{"pnpm", append(args, packages...)}, nil

	case PackageManagerYarn:
		if len(packages) == 0 {
			return Command{"yarn", []string{"install"}}, nil
		}
		args := []string{"add"}
		if dev {
			args = append(args, "--dev")
		}
		return Command{"yarn", append(args, packages...)}, nil

	case PackageManagerPip:
		if len(packages) > 0 {
			return Command{"pip", append([]string{"install"}, packages...)}, nil
		}
		if exists(p.Root, "requirements.txt") {
			return Command{"pip", []string{"install", "-r", "requirements.txt"}}, nil
		}
		return Command{"pip", []string{"install", "-e", "."}}, nil

	case PackageManagerCargo:
		if len(packages) == 0 {
			return Command{"cargo", []string{"fetch"}}, nil
		}
		args := []string{"add"}
		if dev {
			args = append(args, "--dev")
		}
		return Command{"cargo", append(args, packages...)}, nil
	}
	return Command{}, fmt.Errorf("cannot install dependencies: no manifest found in %s (create go.mod, package.json, pyproject.toml, requirements.txt or Cargo.toml first)", p.Root)
}
