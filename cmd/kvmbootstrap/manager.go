package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	survey "github.com/AlecAivazis/survey/v2"
)

const menuExit = "Exit"

// runMenu is the interactive entry point: pick a profile, answer the
// prompts, confirm, provision. Errors are shown and the menu comes back.
func runMenu() error {
	a, err := loadApp()
	if err != nil {
		return err
	}

	for {
		fmt.Println()
		fmt.Println("\033[1mkvmbootstrap\033[0m — VM Provisioning")
		fmt.Println(strings.Repeat("─", 50))
		fmt.Printf("  VM dir:  %s\n", a.settings.VMDir)
		fmt.Printf("  Network: %s\n\n", a.settings.Network)

		var choice string
		if err := surveySelect(&survey.Select{
			Message: "Select OS profile:",
			Options: append(a.registry.Labels(), menuExit),
		}, &choice); err != nil {
			return nil // Ctrl+C → clean exit
		}
		if choice == menuExit || choice == "" {
			return nil
		}

		opts := defaultCreateOptions()
		opts.profile = choice
		fmt.Println()
		if err := runCreate(opts); err != nil {
			printError(err)
			fmt.Print("\nPress Enter to continue...")
			_, _ = stdinReader.ReadString('\n')
		}
	}
}

func runProfiles() error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "LABEL\tFAMILY\tVARIANT\tSOURCE")
	for _, p := range a.registry.List() {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.Label, p.Family, p.VariantTag, p.Source)
	}
	return w.Flush()
}

func runCheck() error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	orch, err := a.orchestrator()
	if err != nil {
		return err
	}

	fmt.Println("\033[1mHost check\033[0m")
	fmt.Println(strings.Repeat("─", 50))
	fmt.Printf("  fetcher=%s  seed_builder=%s  launcher=%s\n\n",
		a.settings.Fetcher, a.settings.SeedBuilder, a.settings.Launcher)

	var missing []string
	results := orch.CheckTools()
	for _, tool := range orch.RequiredTools() {
		if err := results[tool]; err != nil {
			fmt.Printf("  %s✗%s %s\n", clrRed, clrReset, tool)
			missing = append(missing, tool)
			continue
		}
		fmt.Printf("  %s✓%s %s\n", clrGreen, clrReset, tool)
	}

	dirErr := checkWritableDir(a.settings.VMDir)
	if dirErr != nil {
		fmt.Printf("  %s✗%s vm_dir %s: %v\n", clrRed, clrReset, a.settings.VMDir, dirErr)
	} else {
		fmt.Printf("  %s✓%s vm_dir %s\n", clrGreen, clrReset, a.settings.VMDir)
	}

	if len(missing) > 0 || dirErr != nil {
		return &userError{
			msg:  "host is missing prerequisites",
			hint: installHint(missing),
			err:  configError("prerequisites", dirErr),
		}
	}
	fmt.Printf("\n%s✓ Ready%s\n", clrGreen, clrReset)
	return nil
}

// checkWritableDir creates dir if needed and probes it with a temp file.
func checkWritableDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".kvmbootstrap-check-*")
	if err != nil {
		return err
	}
	_ = f.Close()
	return os.Remove(f.Name())
}

var packageFor = map[string]string{
	"wget":         "wget",
	"qemu-img":     "qemu-utils",
	"genisoimage":  "genisoimage",
	"virt-install": "virtinst",
}

func installHint(tools []string) string {
	if len(tools) == 0 {
		return "check permissions on vm_dir (VM_DIR / KVMBOOT_VM_DIR)"
	}
	var pkgs []string
	for _, t := range tools {
		if p, ok := packageFor[t]; ok {
			pkgs = append(pkgs, p)
		} else {
			pkgs = append(pkgs, t)
		}
	}
	return "sudo apt install " + strings.Join(pkgs, " ")
}
