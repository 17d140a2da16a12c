package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Command represents a CLI command
type Command struct {
	Name        string
	Short       string
	Long        string
	Usage       string
	Run         func(args []string) error
	Subcommands []*Command
	Flags       []*Flag
}

// Flag represents a command flag
type Flag struct {
	Name     string
	Short    string
	Long     string
	Usage    string
	Required bool
	Value    interface{} // *string, *bool, *int
}

// App represents the CLI application
type App struct {
	Name        string
	Version     string
	Description string
	Commands    []*Command
	GlobalFlags []*Flag

	// Out receives usage and version output; nil means os.Stdout.
	Out io.Writer
}

// NewApp creates a new CLI application
func NewApp(name, version, description string) *App {
	return &App{
		Name:        name,
		Version:     version,
		Description: description,
		Commands:    []*Command{},
		GlobalFlags: []*Flag{},
	}
}

// AddCommand adds a command to the app
func (a *App) AddCommand(cmd *Command) {
	a.Commands = append(a.Commands, cmd)
}

// AddGlobalFlag adds a global flag to the app
func (a *App) AddGlobalFlag(flag *Flag) {
	a.GlobalFlags = append(a.GlobalFlags, flag)
}

func (a *App) out() io.Writer {
	if a.Out != nil {
		return a.Out
	}
	return os.Stdout
}

// Execute runs the CLI application with the process arguments
func (a *App) Execute() error {
	return a.ExecuteArgs(os.Args[1:])
}

// ExecuteArgs runs the CLI application with args (program name excluded)
func (a *App) ExecuteArgs(args []string) error {
	if len(args) == 0 {
		a.printUsage()
		return nil
	}

	if args[0] == "--version" || args[0] == "-v" {
		fmt.Fprintf(a.out(), "%s version %s\n", a.Name, a.Version)
		return nil
	}

	if args[0] == "--help" || args[0] == "-h" {
		a.printUsage()
		return nil
	}

	_, remainingArgs, err := parseFlags(args, a.GlobalFlags)
	if err != nil {
		return err
	}

	if len(remainingArgs) == 0 {
		a.printUsage()
		return nil
	}

	cmdName := remainingArgs[0]
	cmdArgs := remainingArgs[1:]

	cmd := findCommand(a.Commands, cmdName)
	if cmd == nil {
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmdName)
		a.printUsage()
		return fmt.Errorf("unknown command: %s", cmdName)
	}

	if len(cmdArgs) > 0 && len(cmd.Subcommands) > 0 && !strings.HasPrefix(cmdArgs[0], "-") {
		if subCmd := findCommand(cmd.Subcommands, cmdArgs[0]); subCmd != nil {
			return a.run(subCmd, cmdArgs[1:])
		}
	}

	if len(cmd.Subcommands) > 0 && cmd.Run == nil {
		cmd.printUsage(a.out())
		return nil
	}

	return a.run(cmd, cmdArgs)
}

func (a *App) run(cmd *Command, args []string) error {
	for _, arg := range args {
		if arg == "--help" || arg == "-h" {
			cmd.printUsage(a.out())
			return nil
		}
		if arg == "--" {
			break
		}
	}

	_, finalArgs, err := parseFlags(args, cmd.Flags)
	if err != nil {
		return fmt.Errorf("%s: %w", cmd.Name, err)
	}
	if cmd.Run == nil {
		return fmt.Errorf("command %s has no run function", cmd.Name)
	}
	return cmd.Run(finalArgs)
}

func findCommand(cmds []*Command, name string) *Command {
	for _, c := range cmds {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func lookupFlag(flags []*Flag, name string) *Flag {
	for _, f := range flags {
		if f.Name == name || (f.Short != "" && f.Short == name) || (f.Long != "" && f.Long == name) {
			return f
		}
	}
	return nil
}

// parseFlags parses flags from arguments and returns parsed flags and remaining args.
// Accepted forms: --name value, --name=value, -n value, -n2 (short flag with
// attached value) and bare boolean flags. Everything after "--" is left as is.
// Unknown flags are passed through in the remaining args.
func parseFlags(args []string, flags []*Flag) (map[string]interface{}, []string, error) {
	parsed := make(map[string]interface{})
	remaining := []string{}
	i := 0

	for i < len(args) {
		arg := args[i]

		if arg == "--" {
			remaining = append(remaining, args[i:]...)
			break
		}

		if len(arg) < 2 || arg[0] != '-' {
			remaining = append(remaining, arg)
			i++
			continue
		}

		isLong := strings.HasPrefix(arg, "--")
		flagName := strings.TrimLeft(arg, "-")
		value, hasValue := "", false
		if eq := strings.IndexByte(flagName, '='); eq != -1 {
			flagName, value, hasValue = flagName[:eq], flagName[eq+1:], true
		}

		flag := lookupFlag(flags, flagName)
		if flag == nil && !isLong && !hasValue && len(flagName) > 1 {
			// -n2: short flag followed by its value
			if f := lookupFlag(flags, flagName[:1]); f != nil && f.Short == flagName[:1] && !isBoolFlag(f) {
				flag, value, hasValue = f, flagName[1:], true
			}
		}

		if flag == nil {
			remaining = append(remaining, arg)
			i++
			continue
		}

		switch {
		case hasValue:
			i++
		case isBoolFlag(flag):
			value = "true"
			i++
		case i+1 < len(args) && !looksLikeFlag(args[i+1]):
			value = args[i+1]
			i += 2
		default:
			return parsed, remaining, fmt.Errorf("flag --%s needs a value", flag.Name)
		}

		if err := setFlagValue(flag, value); err != nil {
			return parsed, remaining, err
		}
		if isBoolFlag(flag) {
			parsed[flag.Name] = *flag.Value.(*bool)
		} else {
			parsed[flag.Name] = value
		}
	}

	for _, flag := range flags {
		if flag.Required {
			if _, ok := parsed[flag.Name]; !ok {
				return parsed, remaining, fmt.Errorf("flag --%s is required", flag.Name)
			}
		}
	}

	return parsed, remaining, nil
}

func isBoolFlag(flag *Flag) bool {
	_, ok := flag.Value.(*bool)
	return ok
}

// looksLikeFlag treats "-5" as a value, not a flag.
func looksLikeFlag(arg string) bool {
	if len(arg) < 2 || arg[0] != '-' {
		return false
	}
	_, err := strconv.Atoi(arg)
	return err != nil
}

// setFlagValue sets the value of a flag
func setFlagValue(flag *Flag, value string) error {
	switch v := flag.Value.(type) {
	case *string:
		*v = value
	case *bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("flag --%s: invalid boolean %q", flag.Name, value)
		}
		*v = b
	case *int:
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("flag --%s: invalid number %q", flag.Name, value)
		}
		*v = n
	case nil:
	default:
		return fmt.Errorf("flag --%s: unsupported value type %T", flag.Name, flag.Value)
	}
	return nil
}

// printUsage prints the usage information
func (a *App) printUsage() {
	w := a.out()
	fmt.Fprintf(w, "%s - %s\n\n", a.Name, a.Description)
	fmt.Fprintf(w, "Usage:\n  %s [command] [flags] [arguments]\n\n", a.Name)

	if len(a.Commands) > 0 {
		fmt.Fprintln(w, "Commands:")
		for _, cmd := range a.Commands {
			fmt.Fprintf(w, "  %-15s %s\n", cmd.Name, cmd.Short)
		}
		fmt.Fprintln(w)
	}

	if len(a.GlobalFlags) > 0 {
		fmt.Fprintln(w, "Global Flags:")
		for _, flag := range a.GlobalFlags {
			short := ""
			if flag.Short != "" {
				short = fmt.Sprintf("-%s, ", flag.Short)
			}
			fmt.Fprintf(w, "  %s--%s\t%s\n", short, flag.Name, flag.Usage)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Use '%s [command] --help' for more information about a command.\n", a.Name)
}

// PrintUsage prints usage for a specific command
func (cmd *Command) PrintUsage() {
	cmd.printUsage(os.Stdout)
}

func (cmd *Command) printUsage(w io.Writer) {
	if cmd.Long != "" {
		fmt.Fprintln(w, cmd.Long)
		fmt.Fprintln(w)
	} else if cmd.Short != "" {
		fmt.Fprintln(w, cmd.Short)
		fmt.Fprintln(w)
	}

	if cmd.Usage != "" {
		fmt.Fprintf(w, "Usage:\n  %s\n\n", cmd.Usage)
	} else {
		fmt.Fprintf(w, "Usage:\n  %s\n\n", cmd.Name)
	}

	if len(cmd.Flags) > 0 {
		fmt.Fprintln(w, "Flags:")
		for _, flag := range cmd.Flags {
			short := ""
			if flag.Short != "" {
				short = fmt.Sprintf("-%s, ", flag.Short)
			}
			required := ""
			if flag.Required {
				required = " (required)"
			}
			fmt.Fprintf(w, "  %s--%s\t%s%s\n", short, flag.Name, flag.Usage, required)
		}
		fmt.Fprintln(w)
	}

	if len(cmd.Subcommands) > 0 {
		fmt.Fprintln(w, "Subcommands:")
		for _, subCmd := range cmd.Subcommands {
			fmt.Fprintf(w, "  %-15s %s\n", subCmd.Name, subCmd.Short)
		}
		fmt.Fprintln(w)
	}
}
