// kvmbootstrap - CLI tool for provisioning VMs on a local KVM host
package main

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

var configFile string
var profilesFile string
var debugLogs bool

var createOpts = defaultCreateOptions()
var planOpts = defaultCreateOptions()

// mainSigCh receives SIGINT for the default handler. runCreate temporarily
// stops delivery to this channel so it can cancel the running session.
var mainSigCh = make(chan os.Signal, 1)

var rootCmd = &cobra.Command{
	Use:           "kvmbootstrap",
	Short:         "Provision KVM virtual machines from OS profiles",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		_ = initDebugLogger()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if !stdinIsTerminal() {
			return cmd.Help()
		}
		return runMenu()
	},
}

var createCmd = &cobra.Command{
	Use:           "create",
	Short:         "Create and launch a VM",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCreate(createOpts)
	},
}

var planCmd = &cobra.Command{
	Use:           "plan",
	Short:         "Show the artifacts and steps a create would use, without running them",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPlan(planOpts)
	},
}

var profilesCmd = &cobra.Command{
	Use:           "profiles",
	Short:         "List available OS profiles",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runProfiles()
	},
}

var checkCmd = &cobra.Command{
	Use:           "check",
	Short:         "Verify the host has the tools the configured backends need",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCheck()
	},
}

func addRequestFlags(cmd *cobra.Command, o *createOptions) {
	f := cmd.Flags()
	f.StringVar(&o.profile, "profile", "", "OS profile label (see 'kvmbootstrap profiles')")
	f.StringVar(&o.name, "name", "", "VM name ([A-Za-z0-9_-]+)")
	f.StringVar(&o.memory, "memory", o.memory, "Memory in MB")
	f.StringVar(&o.vcpus, "vcpus", o.vcpus, "Number of vCPUs")
	f.StringVar(&o.disk, "disk", o.disk, "Disk size, digits followed by M or G")
	f.StringVar(&o.username, "username", "", "Login user for cloud images")
	f.StringVar(&o.password, "password", "", "Login password for cloud images")
	f.StringArrayVar(&o.sshKeys, "ssh-key", nil, "SSH public key or key file (repeatable)")
	f.StringVar(&o.network, "network", "", "Network attachment, e.g. network=default or bridge=br0")
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "",
		"Path to settings file (YAML); KVMBOOT_* environment variables also apply")
	rootCmd.PersistentFlags().StringVar(&profilesFile, "profiles", "",
		"Path to profiles file (defaults to the built-in list)")
	rootCmd.PersistentFlags().BoolVar(&debugLogs, "debug", false, "Enable debug logging to "+debugLogPath)

	addRequestFlags(createCmd, &createOpts)
	createCmd.Flags().StringVar(&createOpts.result, "result", "",
		"Write the provisioning result to a YAML/JSON file (optional)")
	createCmd.Flags().BoolVarP(&createOpts.yes, "yes", "y", false, "Skip the confirmation prompt")

	addRequestFlags(planCmd, &planOpts)

	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(profilesCmd)
	rootCmd.AddCommand(checkCmd)
}

func main() {
	// Handle Ctrl+C outside a running session: print a clean message and exit 0.
	signal.Notify(mainSigCh, os.Interrupt)
	go func() {
		<-mainSigCh
		restoreTTYOnExit()
		fmt.Println("\nCancelled.")
		os.Exit(0)
	}()

	err := rootCmd.Execute()
	if err != nil {
		printError(err)
	}
	if debugCleanup != nil {
		debugCleanup()
	}
	os.Exit(exitCode(err))
}

func printError(err error) {
	fmt.Fprintf(os.Stderr, "%sError:%s %s\n", clrRed, clrReset, err.Error())
	if hint := hintFor(err); hint != "" {
		fmt.Fprintf(os.Stderr, "%sHint:%s %s%s%s\n", clrYellow, clrReset, clrCyan, hint, clrReset)
	}
}
