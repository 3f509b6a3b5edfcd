package sandbox

import (
	"fmt"
	"runtime"
)

// Language is a supported source language tag
type Language string

const (
	LanguageCPP    Language = "cpp"
	LanguagePython Language = "python"
)

// Filename constants
const (
	FilenameCPP    = "main.cpp"
	FilenamePython = "main.py"

	executableBase = "main"
)

// SupportedLanguages lists the closed set of accepted language tags
func SupportedLanguages() []Language {
	return []Language{LanguageCPP, LanguagePython}
}

// ParseLanguage maps a request tag onto a Language
func ParseLanguage(tag string) (Language, error) {
	switch Language(tag) {
	case LanguageCPP, LanguagePython:
		return Language(tag), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedLanguage, tag)
	}
}

// Command is the source file name plus the single shell invocation that
// builds and runs it inside the workspace.
type Command struct {
	FileName   string
	Invocation string
}

// Toolchain names the binaries a strategy invokes. Only the direct-host
// strategy varies it per operating system.
type Toolchain struct {
	Shell            []string
	Compiler         string
	Python           string
	ExecutableSuffix string
	RunPrefix        string
}

// ContainerToolchain is the naming inside the runner image
func ContainerToolchain() Toolchain {
	return Toolchain{
		Shell:     []string{"sh", "-c"},
		Compiler:  "g++",
		Python:    "python3",
		RunPrefix: "./",
	}
}

// HostToolchain returns the default naming for goos
func HostToolchain(goos string) Toolchain {
	if goos == "windows" {
		return Toolchain{
			Shell:            []string{"cmd", "/C"},
			Compiler:         "g++",
			Python:           "python",
			ExecutableSuffix: ".exe",
			RunPrefix:        `.\`,
		}
	}
	return ContainerToolchain()
}

// CurrentHostToolchain is HostToolchain for the running OS
func CurrentHostToolchain() Toolchain {
	return HostToolchain(runtime.GOOS)
}

// BuildCommand returns the build-and-run command for language. For cpp the
// compile and run steps are chained with && so a failed compile never runs
// a binary.
func BuildCommand(language Language, tc Toolchain) (Command, error) {
	switch language {
	case LanguageCPP:
		exe := executableBase + tc.ExecutableSuffix
		return Command{
			FileName:   FilenameCPP,
			Invocation: fmt.Sprintf("%s %s -o %s && %s%s", tc.Compiler, FilenameCPP, exe, tc.RunPrefix, exe),
		}, nil
	case LanguagePython:
		return Command{
			FileName:   FilenamePython,
			Invocation: fmt.Sprintf("%s %s", tc.Python, FilenamePython),
		}, nil
	default:
		return Command{}, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, language)
	}
}
