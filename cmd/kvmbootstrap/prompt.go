package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"unicode"

	survey "github.com/AlecAivazis/survey/v2"
	"github.com/chzyer/readline"
	"golang.org/x/term"

	"github.com/Bibi40k/kvm-vm-bootstrap/internal/utils"
)

// stdinReader is the single shared buffered reader over os.Stdin.
// Multiple buffered readers over the same fd would consume each other's input.
var stdinReader = bufio.NewReader(os.Stdin)
var ansiEscapeRE = regexp.MustCompile(`\x1b\[[0-9;?]*[ -/]*[@-~]`)
var caretEscapeRE = regexp.MustCompile(`\^\[\[[0-9;?]*[ -/]*[@-~]`)

// stdinIsTerminal reports whether prompts can be shown.
func stdinIsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// readLine prints "  Field [current]: " and reads a line.
// Returns current if the user presses Enter without typing anything.
func readLine(field, current string) string {
	prompt := ""
	if current != "" {
		prompt = fmt.Sprintf("  %s [\033[36m%s\033[0m]: ", field, current)
	} else {
		prompt = fmt.Sprintf("  %s: ", field)
	}
	s := readPromptLine(prompt)
	if s == "" {
		return current
	}
	return s
}

// readPassword reads a password without echoing. Returns empty string if blank.
func readPassword(field string) string {
	fmt.Printf("  %s: ", field)
	pw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return ""
	}
	return string(pw)
}

// readNewPassword asks twice and enforces the minimum length. An empty
// first entry skips the password.
func readNewPassword(field string) string {
	for {
		pw := readPassword(field)
		if pw == "" {
			return ""
		}
		if err := utils.ValidatePassword(pw); err != nil {
			fmt.Printf("  %v\n", err)
			continue
		}
		if readPassword("Confirm "+strings.ToLower(field)) != pw {
			fmt.Println("  Passwords do not match")
			continue
		}
		return pw
	}
}

// readYesNo prints "  msg [Y/n]: " and returns true for y/yes, false for n/no.
func readYesNo(msg string, defaultYes bool) bool {
	hint := "[y/N]"
	if defaultYes {
		hint = "[Y/n]"
	}
	for {
		s := strings.ToLower(readPromptLine(fmt.Sprintf("  %s %s: ", msg, hint)))
		if s == "" {
			return defaultYes
		}
		if s == "y" || s == "yes" {
			return true
		}
		if s == "n" || s == "no" {
			return false
		}
		fmt.Println("  Enter y or n")
	}
}

func readPromptLine(prompt string) string {
	rl, err := readline.NewEx(&readline.Config{Prompt: prompt})
	if err == nil {
		cleanup := func() {
			_ = rl.Close()
			stdinReader.Reset(os.Stdin)
		}
		line, err := rl.Readline()
		if err == nil {
			cleanup()
			return strings.TrimSpace(line)
		}
		if errors.Is(err, readline.ErrInterrupt) {
			// Restore terminal before signal handler (it may os.Exit immediately).
			cleanup()
			if p, findErr := os.FindProcess(os.Getpid()); findErr == nil {
				_ = p.Signal(os.Interrupt)
			}
			return ""
		}
		cleanup()
		return ""
	}

	fmt.Print(prompt)
	line, _ := stdinReader.ReadString('\n')
	return sanitizeConsoleInput(line)
}

func sanitizeConsoleInput(raw string) string {
	raw = ansiEscapeRE.ReplaceAllString(raw, "")
	raw = caretEscapeRE.ReplaceAllString(raw, "")
	raw = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, raw)
	return strings.TrimSpace(raw)
}

// surveySelect wraps survey.AskOne for a Select prompt and drains the cursor
// position reports survey's queries leave queued in stdin.
func surveySelect(q *survey.Select, response *string) error {
	err := survey.AskOne(q, response)
	drainStdin()
	return err
}
